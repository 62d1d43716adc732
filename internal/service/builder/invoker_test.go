package builder

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/releaser/internal/domain/release"
	"github.com/oshokin/releaser/internal/exec"
	"github.com/oshokin/releaser/internal/exec/exectest"
	"github.com/oshokin/releaser/internal/failure"
)

var linuxGNU = release.Triple{Arch: release.ArchX86_64, OS: release.OSLinux, ABI: release.ABIGNU}

func newOptions(root string) Options {
	return Options{
		Root:      root,
		Toolchain: "cargo",
		TargetDir: filepath.Join(root, "target"),
		Program:   "sad",
		Release:   true,
		Test:      true,
	}
}

// TestBuild_TestsThenBuild checks the order and arguments of the toolchain calls.
func TestBuild_TestsThenBuild(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	runner := exectest.NewRunner()

	artifact, err := New(runner, newOptions(root)).Build(context.Background(), linuxGNU)
	require.NoError(t, err)
	require.Equal(t, []string{
		"cargo test",
		"cargo build --release --target x86_64-unknown-linux-gnu",
	}, runner.Lines())
	require.Equal(t, filepath.Join(root, "target", "x86_64-unknown-linux-gnu", "release", "sad"), artifact.Path)
	require.Equal(t, linuxGNU, artifact.Triple)

	for _, call := range runner.Calls() {
		require.Equal(t, root, call.Opts.Dir)
	}
}

// TestBuild_TestFailureStopsBuild makes sure failing tests prevent the build.
func TestBuild_TestFailureStopsBuild(t *testing.T) {
	t.Parallel()

	runner := exectest.NewRunner().On("cargo test", exectest.Response{Result: exec.CmdResult{ExitCode: 101}})

	_, err := New(runner, newOptions(t.TempDir())).Build(context.Background(), linuxGNU)
	require.True(t, failure.Is(err, failure.EExternalToolFailure))
	require.Equal(t, 101, failure.ExitCode(err))
	require.Equal(t, []string{"cargo test"}, runner.Lines())
}

// TestBuild_DebugWindows covers the debug profile and the .exe suffix.
func TestBuild_DebugWindows(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	opts := newOptions(root)
	opts.Release = false
	opts.Test = false

	runner := exectest.NewRunner()
	windows := release.Triple{Arch: release.ArchX86_64, OS: release.OSWindows, ABI: release.ABIGNU}

	artifact, err := New(runner, opts).Build(context.Background(), windows)
	require.NoError(t, err)
	require.Equal(t, []string{"cargo build --target x86_64-pc-windows-gnu"}, runner.Lines())
	require.Equal(t, filepath.Join(root, "target", "x86_64-pc-windows-gnu", "debug", "sad.exe"), artifact.Path)
}
