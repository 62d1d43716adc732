package packager

import (
	"bytes"
	"context"
	"crypto"
	"crypto/sha256"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	goupdate "github.com/doitdistributed/go-update"

	"github.com/oshokin/releaser/internal/domain/release"
	"github.com/oshokin/releaser/internal/exec"
	"github.com/oshokin/releaser/internal/failure"
	"github.com/oshokin/releaser/internal/logger"
	"github.com/oshokin/releaser/internal/service/manifest"
)

// Archive formats accepted in Options.Format.
const (
	FormatZip   = "zip"
	FormatTarXZ = "tar.xz"
)

const (
	stageDirName   = "stage"
	controlDirName = "DEBIAN"
	controlName    = "control"
	debExtension   = ".deb"

	keyArch       = "arch"
	keyMaintainer = "maintainer"
)

//go:embed control.tmpl
var defaultControl string

// debArch maps triple architectures onto Debian architecture names.
var debArch = map[string]string{
	release.ArchX86_64:  "amd64",
	release.ArchAarch64: "arm64",
}

var (
	errNotRegularFile  = errors.New("artifact is not a regular file")
	errNoDebArch       = errors.New("no Debian architecture for")
	errUnknownFormat   = errors.New("unknown archive format")
	errMissingPackages = errors.New("package builder reported success but wrote nothing")
)

// Options configures packaging for one release run.
type Options struct {
	// ArtifactsDir is the absolute output directory.
	ArtifactsDir string
	// Program is the binary name without suffix.
	Program string
	// Format is FormatZip or FormatTarXZ.
	Format string
	// Builder is the package-builder program, e.g. dpkg-deb.
	Builder string
	// Prefix is the install prefix inside the package, e.g. usr.
	Prefix string
	// ControlTemplate names a loaded template; empty selects the built-in one.
	ControlTemplate string
	// Maintainer is written to the control file.
	Maintainer string
	// Metadata supplies name, version and descriptions.
	Metadata release.ProjectMetadata
	// Stdout and Stderr receive the package builder output.
	Stdout io.Writer
	Stderr io.Writer
}

// Capabilities is the result of the one-time host probe.
type Capabilities struct {
	// Builder is the resolved package-builder path; empty when absent.
	Builder string
}

// NativePackage reports whether Debian packages can be produced.
func (c Capabilities) NativePackage() bool {
	return c.Builder != ""
}

// PathFinder is the part of exec.CommandRunner used by ProbeCapabilities.
type PathFinder interface {
	LookPath(file string) (string, error)
}

// ProbeCapabilities looks the package builder up once.
func ProbeCapabilities(ctx context.Context, finder PathFinder, builder string) Capabilities {
	path, err := finder.LookPath(builder)
	if err != nil {
		logger.InfoKV(ctx, "Package builder not found, native packages are disabled", "builder", builder)
		return Capabilities{}
	}

	logger.DebugKV(ctx, "Package builder found", "path", path)

	return Capabilities{Builder: path}
}

// Packager produces archives and native packages for build artifacts.
type Packager struct {
	runner   exec.CommandRunner
	renderer *manifest.Renderer
	caps     Capabilities
	opts     Options
}

// New creates a Packager. renderer must hold opts.ControlTemplate when it is set.
func New(runner exec.CommandRunner, renderer *manifest.Renderer, caps Capabilities, opts Options) *Packager {
	if opts.Format == "" {
		opts.Format = FormatZip
	}

	if renderer == nil {
		renderer = manifest.New()
	}

	return &Packager{
		runner:   runner,
		renderer: renderer,
		caps:     caps,
		opts:     opts,
	}
}

// Package writes the archive for artifact and, where possible, a native package.
// Outputs are overwritten, so re-running on the same artifact is idempotent.
func (p *Packager) Package(ctx context.Context, artifact release.BuildArtifact) ([]release.PackagedOutput, error) {
	ctx = logger.WithKV(ctx, "triple", artifact.Triple.String())

	if err := checkArtifact(artifact); err != nil {
		return nil, err
	}

	archive, err := p.archive(ctx, artifact)
	if err != nil {
		return nil, err
	}

	outputs := []release.PackagedOutput{archive}

	deb, ok, err := p.nativePackage(ctx, artifact)
	if err != nil {
		return nil, err
	}

	if ok {
		outputs = append(outputs, deb)
	}

	return outputs, nil
}

func checkArtifact(artifact release.BuildArtifact) error {
	details := map[string]string{
		"triple": artifact.Triple.String(),
		"path":   artifact.Path,
	}

	info, err := os.Stat(artifact.Path)
	if err != nil {
		return failure.WithDetails(failure.Wrap(failure.EArtifactNotFound, "build output is missing", err), details)
	}

	if !info.Mode().IsRegular() {
		return failure.WithDetails(failure.Wrap(failure.EArtifactNotFound, artifact.Path, errNotRegularFile), details)
	}

	return nil
}

func (p *Packager) archive(ctx context.Context, artifact release.BuildArtifact) (release.PackagedOutput, error) {
	entry := p.opts.Program + artifact.Triple.ExecutableSuffix()
	dst := filepath.Join(p.opts.ArtifactsDir, artifact.Triple.String()+"."+p.opts.Format)

	var err error

	switch p.opts.Format {
	case FormatZip:
		err = writeZip(dst, artifact.Path, entry)
	case FormatTarXZ:
		err = writeTarXZ(dst, artifact.Path, entry)
	default:
		return release.PackagedOutput{}, failure.Wrap(failure.EConfig, p.opts.Format, errUnknownFormat)
	}

	if err != nil {
		return release.PackagedOutput{}, fmt.Errorf("write archive %s: %w", dst, err)
	}

	out, err := output(artifact.Triple, release.FormatArchive, dst)
	if err != nil {
		return release.PackagedOutput{}, fmt.Errorf("stat archive: %w", err)
	}

	logger.InfoKV(ctx, "Archive written", "path", dst, "size", out.Size)

	return out, nil
}

// nativePackage builds the .deb. It reports ok=false when the step does not apply.
func (p *Packager) nativePackage(ctx context.Context, artifact release.BuildArtifact) (release.PackagedOutput, bool, error) {
	t := artifact.Triple
	if !t.IsLinux() {
		return release.PackagedOutput{}, false, nil
	}

	if !p.caps.NativePackage() {
		logger.InfoKV(ctx, "Skipping native package, builder is not installed", "builder", p.opts.Builder)
		return release.PackagedOutput{}, false, nil
	}

	arch, ok := debArch[t.Arch]
	if !ok {
		return release.PackagedOutput{}, false, failure.Wrap(failure.EUnsupportedTarget, t.String(), errNoDebArch)
	}

	stage := filepath.Join(p.opts.ArtifactsDir, stageDirName, t.String())
	if err := os.RemoveAll(stage); err != nil {
		return release.PackagedOutput{}, false, fmt.Errorf("reset staging directory: %w", err)
	}

	binDir := filepath.Join(stage, p.opts.Prefix, "bin")
	controlDir := filepath.Join(stage, controlDirName)

	for _, dir := range []string{binDir, controlDir} {
		if err := os.MkdirAll(dir, dirMode); err != nil {
			return release.PackagedOutput{}, false, fmt.Errorf("create staging directory: %w", err)
		}
	}

	if err := stageBinary(filepath.Join(binDir, p.opts.Program), artifact.Path); err != nil {
		return release.PackagedOutput{}, false, fmt.Errorf("stage binary: %w", err)
	}

	control, err := p.renderControl(arch)
	if err != nil {
		return release.PackagedOutput{}, false, err
	}

	if err = os.WriteFile(filepath.Join(controlDir, controlName), []byte(control), outputMode); err != nil {
		return release.PackagedOutput{}, false, fmt.Errorf("write control file: %w", err)
	}

	dst := filepath.Join(p.opts.ArtifactsDir, t.String()+debExtension)
	args := []string{"--build", "--root-owner-group", stage, dst}

	_, err = exec.Check(ctx, p.runner, p.caps.Builder, args, exec.RunOpts{
		Stdout: p.opts.Stdout,
		Stderr: p.opts.Stderr,
	})
	if err != nil {
		return release.PackagedOutput{}, false, err
	}

	out, err := output(t, release.FormatNativePackage, dst)
	if err != nil {
		return release.PackagedOutput{}, false, failure.WithDetails(
			failure.Wrap(failure.EArtifactNotFound, dst, errMissingPackages),
			map[string]string{"path": dst},
		)
	}

	logger.InfoKV(ctx, "Native package written", "path", dst, "size", out.Size)

	return out, true, nil
}

func (p *Packager) renderControl(arch string) (string, error) {
	meta := p.opts.Metadata
	values := map[string]any{
		release.KeyName:     meta.Name,
		release.KeyVersion:  meta.Version,
		release.KeyDesc:     meta.Description,
		release.KeyLongDesc: debDescription(meta.LongDescription),
		release.KeyRepo:     meta.Repository,
		keyArch:             arch,
		keyMaintainer:       p.opts.Maintainer,
	}

	if p.opts.ControlTemplate == "" {
		return p.renderer.RenderString(controlName, defaultControl, values)
	}

	rc := release.NewContext(meta, release.ReleaseInfo{}, nil, map[string]string{
		keyArch:       arch,
		keyMaintainer: p.opts.Maintainer,
	})

	return p.renderer.Render(p.opts.ControlTemplate, rc)
}

// stageBinary copies src to dst with an atomic, checksum-verified replace.
func stageBinary(dst, src string) error {
	data, err := os.ReadFile(filepath.Clean(src))
	if err != nil {
		return err
	}

	sum := sha256.Sum256(data)

	// The replace renames the existing target aside, so one must exist.
	if _, err = os.Stat(dst); errors.Is(err, os.ErrNotExist) {
		f, createErr := os.Create(filepath.Clean(dst))
		if createErr != nil {
			return createErr
		}

		_ = f.Close()
	}

	err = goupdate.Apply(bytes.NewReader(data), goupdate.Options{
		TargetPath: dst,
		TargetMode: executableMode,
		Checksum:   sum[:],
		Hash:       crypto.SHA256,
	})
	if err != nil {
		return err
	}

	for _, old := range []string{
		dst + ".old",
		filepath.Join(filepath.Dir(dst), "."+filepath.Base(dst)+".old"),
	} {
		if _, err = os.Stat(old); err == nil {
			_ = os.Remove(old)
		}
	}

	return nil
}

// debDescription indents the extended description; blank lines become " .".
func debDescription(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		line = strings.TrimRight(line, " \t\r")
		if line == "" {
			line = "."
		}

		lines[i] = " " + line
	}

	return strings.Join(lines, "\n")
}

func output(t release.Triple, format release.Format, path string) (release.PackagedOutput, error) {
	info, err := os.Stat(path)
	if err != nil {
		return release.PackagedOutput{}, err
	}

	return release.PackagedOutput{
		Triple: t,
		Format: format,
		Path:   path,
		Size:   info.Size(),
	}, nil
}
