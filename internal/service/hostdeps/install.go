package hostdeps

import (
	"context"
	"io"

	"github.com/oshokin/releaser/internal/domain/release"
	"github.com/oshokin/releaser/internal/exec"
	"github.com/oshokin/releaser/internal/logger"
)

const (
	aptProgram    = "apt"
	rustupProgram = "rustup"
	crossLinker   = "gcc-mingw-w64"
)

// Options configures host preparation.
type Options struct {
	// Root is the directory every command runs in.
	Root string
	// Targets to register; empty means every supported triple.
	Targets []release.Triple
	// Stdout and Stderr receive the command output.
	Stdout io.Writer
	Stderr io.Writer
}

// Install runs each step in order and stops at the first failure.
// The system packages are only installed where apt is available.
func Install(ctx context.Context, runner exec.CommandRunner, opts *Options) error {
	ctx = logger.WithName(ctx, "deps")

	runOpts := exec.RunOpts{
		Dir:    opts.Root,
		Stdout: opts.Stdout,
		Stderr: opts.Stderr,
	}

	if _, err := runner.LookPath(aptProgram); err == nil {
		logger.InfoKV(ctx, "Installing cross linker", "package", crossLinker)

		steps := [][]string{
			{"update"},
			{"install", "--yes", "--", crossLinker},
		}

		for _, args := range steps {
			if _, err = exec.Check(ctx, runner, aptProgram, args, runOpts); err != nil {
				return err
			}
		}
	} else {
		logger.InfoKV(ctx, "apt not found, skipping system packages")
	}

	targets := opts.Targets
	if len(targets) == 0 {
		targets = release.SupportedTriples()
	}

	for _, t := range targets {
		logger.InfoKV(ctx, "Adding toolchain target", "triple", t.String())

		if _, err := exec.Check(ctx, runner, rustupProgram, []string{"target", "add", "--", t.String()}, runOpts); err != nil {
			return err
		}
	}

	return nil
}
