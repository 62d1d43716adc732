package pipeline

import (
	"context"
	"fmt"

	"github.com/oshokin/releaser/internal/config"
	"github.com/oshokin/releaser/internal/domain/release"
	"github.com/oshokin/releaser/internal/logger"
	"github.com/oshokin/releaser/internal/service/builder"
	"github.com/oshokin/releaser/internal/service/checksum"
	"github.com/oshokin/releaser/internal/service/manifest"
	"github.com/oshokin/releaser/internal/service/packager"
	"github.com/oshokin/releaser/internal/service/target"
)

// BuildOptions configures the build command.
type BuildOptions struct {
	Common
	// Requests are the targets to build; empty means the host target.
	Requests []target.Request
	// All builds every supported target and ignores Requests.
	All bool
	// Release selects the optimized profile.
	Release bool
	// Test runs the test suite before each build.
	Test bool
	// Host overrides host detection.
	Host *target.Host
}

// Build resolves, builds and packages every requested target in order and
// stops at the first failure.
func Build(ctx context.Context, opts *BuildOptions) error {
	ctx = startRun(ctx, "build")
	runner := opts.runner()

	cfg, err := opts.load()
	if err != nil {
		return err
	}

	host := target.DetectHost(runner)
	if opts.Host != nil {
		host = *opts.Host
	}

	triples, err := resolveTargets(opts, host)
	if err != nil {
		return err
	}

	program, err := cfg.ProgramName()
	if err != nil {
		return err
	}

	caps := packager.ProbeCapabilities(ctx, runner, cfg.NativePackage.Builder)

	pkgOpts, renderer, err := packagerOptions(cfg, caps, program)
	if err != nil {
		return err
	}

	pkgOpts.Stdout, pkgOpts.Stderr = opts.stdout(), opts.stderr()

	invoker := builder.New(runner, builder.Options{
		Root:      cfg.Root,
		Toolchain: cfg.Toolchain,
		TargetDir: cfg.TargetDir,
		Program:   program,
		Release:   opts.Release,
		Test:      opts.Test,
		Stdout:    opts.stdout(),
		Stderr:    opts.stderr(),
	})
	pkg := packager.New(runner, renderer, caps, pkgOpts)

	logger.InfoKV(ctx, "Starting build", "targets", len(triples), "release", opts.Release)

	for _, t := range triples {
		if err = buildOne(ctx, invoker, pkg, t); err != nil {
			return err
		}
	}

	logger.Info(ctx, "Build completed successfully")

	return nil
}

func buildOne(ctx context.Context, invoker *builder.Invoker, pkg *packager.Packager, t release.Triple) error {
	ctx = logger.WithKV(ctx, "triple", t.String())

	artifact, err := invoker.Build(ctx, t)
	if err != nil {
		return err
	}

	outputs, err := pkg.Package(ctx, artifact)
	if err != nil {
		return err
	}

	for _, out := range outputs {
		sum, err := checksum.SumFile(out.Path)
		if err != nil {
			return fmt.Errorf("hash %s: %w", out.Path, err)
		}

		logger.InfoKV(ctx, "Packaged", "format", out.Format, "path", out.Path, "size", out.Size, "sha256", sum)
	}

	return nil
}

func resolveTargets(opts *BuildOptions, host target.Host) ([]release.Triple, error) {
	if opts.All {
		return target.All(), nil
	}

	requests := opts.Requests
	if len(requests) == 0 {
		requests = []target.Request{{}}
	}

	return target.ResolveAll(requests, host)
}

// packagerOptions reads project metadata only when native packages will be built.
func packagerOptions(cfg *config.Config, caps packager.Capabilities, program string) (packager.Options, *manifest.Renderer, error) {
	opts := packager.Options{
		ArtifactsDir:    cfg.ArtifactsDir,
		Program:         program,
		Format:          cfg.ArchiveFormat,
		Builder:         cfg.NativePackage.Builder,
		Prefix:          cfg.NativePackage.Prefix,
		ControlTemplate: cfg.NativePackage.ControlTemplate,
		Maintainer:      cfg.NativePackage.Maintainer,
	}

	if opts.Maintainer == "" {
		opts.Maintainer = fmt.Sprintf("%s <%s>", cfg.Publish.AuthorName, cfg.Publish.AuthorEmail)
	}

	if !caps.NativePackage() {
		return opts, manifest.New(), nil
	}

	project, err := cfg.LoadProject()
	if err != nil {
		return opts, nil, err
	}

	opts.Metadata = project.Metadata

	if opts.ControlTemplate == "" {
		return opts, manifest.New(), nil
	}

	renderer, err := manifest.LoadDir(cfg.TemplatesDir)
	if err != nil {
		return opts, nil, err
	}

	return opts, renderer, nil
}
