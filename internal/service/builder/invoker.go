package builder

import (
	"context"
	"io"
	"path/filepath"

	"github.com/oshokin/releaser/internal/domain/release"
	"github.com/oshokin/releaser/internal/exec"
	"github.com/oshokin/releaser/internal/logger"
)

const (
	profileRelease = "release"
	profileDebug   = "debug"
)

// Options configures the toolchain invocation.
type Options struct {
	// Root is the absolute project root; the toolchain runs there.
	Root string
	// Toolchain is the build program, e.g. cargo.
	Toolchain string
	// TargetDir is the absolute toolchain output directory.
	TargetDir string
	// Program is the binary name without suffix.
	Program string
	// Release adds --release and selects the release profile directory.
	Release bool
	// Test runs `<toolchain> test` before every build.
	Test bool
	// Stdout and Stderr receive the toolchain output.
	Stdout io.Writer
	Stderr io.Writer
}

// Invoker runs the external toolchain for one triple at a time.
type Invoker struct {
	runner exec.CommandRunner
	opts   Options
}

// New creates an Invoker.
func New(runner exec.CommandRunner, opts Options) *Invoker {
	return &Invoker{runner: runner, opts: opts}
}

// Build runs the optional test step and then the build for t.
// Any non-zero exit is returned as E_EXTERNAL_TOOL_FAILURE; nothing is retried.
// The returned artifact path is where the toolchain is expected to have written
// the binary; the Invoker does not check or move it.
func (i *Invoker) Build(ctx context.Context, t release.Triple) (release.BuildArtifact, error) {
	runOpts := exec.RunOpts{
		Dir:    i.opts.Root,
		Stdout: i.opts.Stdout,
		Stderr: i.opts.Stderr,
	}

	if i.opts.Test {
		logger.InfoKV(ctx, "Running tests", "toolchain", i.opts.Toolchain)

		if _, err := exec.Check(ctx, i.runner, i.opts.Toolchain, []string{"test"}, runOpts); err != nil {
			return release.BuildArtifact{}, err
		}
	}

	args := []string{"build"}
	if i.opts.Release {
		args = append(args, "--release")
	}

	args = append(args, "--target", t.String())

	logger.InfoKV(ctx, "Building", "triple", t.String(), "release", i.opts.Release)

	if _, err := exec.Check(ctx, i.runner, i.opts.Toolchain, args, runOpts); err != nil {
		return release.BuildArtifact{}, err
	}

	return release.BuildArtifact{Triple: t, Path: i.ArtifactPath(t)}, nil
}

// ArtifactPath is <target_dir>/<triple>/<profile>/<program><suffix>.
func (i *Invoker) ArtifactPath(t release.Triple) string {
	profile := profileDebug
	if i.opts.Release {
		profile = profileRelease
	}

	return filepath.Join(i.opts.TargetDir, t.String(), profile, i.opts.Program+t.ExecutableSuffix())
}
