package packager

import (
	"archive/tar"
	"archive/zip"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/ulikunitz/xz"

	"github.com/oshokin/releaser/internal/domain/release"
	"github.com/oshokin/releaser/internal/exec"
	"github.com/oshokin/releaser/internal/exec/exectest"
	"github.com/oshokin/releaser/internal/failure"
	"github.com/oshokin/releaser/internal/service/manifest"
)

const binary = "#!/bin/sh\necho sad\n"

var (
	linuxGNU   = release.Triple{Arch: release.ArchX86_64, OS: release.OSLinux, ABI: release.ABIGNU}
	windowsGNU = release.Triple{Arch: release.ArchX86_64, OS: release.OSWindows, ABI: release.ABIGNU}
)

func newArtifact(t *testing.T, triple release.Triple) release.BuildArtifact {
	t.Helper()

	path := filepath.Join(t.TempDir(), "target", triple.String(), "release", "sad"+triple.ExecutableSuffix())
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(binary), 0o755))

	return release.BuildArtifact{Triple: triple, Path: path}
}

func newOptions(t *testing.T) Options {
	t.Helper()

	return Options{
		ArtifactsDir: filepath.Join(t.TempDir(), "artifacts"),
		Program:      "sad",
		Builder:      "dpkg-deb",
		Prefix:       "usr",
		Maintainer:   "ci-bot <ci@ci.ci>",
		Metadata: release.ProjectMetadata{
			Name:            "sad",
			Version:         "1.2.3",
			Description:     "Space Age seD",
			LongDescription: "Batch file edit tool.\n\nShows diffs before applying.",
			Repository:      "https://github.com/ms-jpq/sad",
		},
	}
}

// fakeBuilder writes the requested .deb like dpkg-deb would.
func fakeBuilder() exectest.Response {
	return exectest.Response{Do: func(call exectest.Call) error {
		return os.WriteFile(call.Args[len(call.Args)-1], []byte("!<arch>\n"), 0o600)
	}}
}

// TestPackage_ZipIdempotent packages the same artifact twice.
func TestPackage_ZipIdempotent(t *testing.T) {
	t.Parallel()

	artifact := newArtifact(t, linuxGNU)
	p := New(exectest.NewRunner(), nil, Capabilities{}, newOptions(t))

	first, err := p.Package(context.Background(), artifact)
	require.NoError(t, err)
	require.Len(t, first, 1)

	firstBytes, err := os.ReadFile(first[0].Path)
	require.NoError(t, err)

	second, err := p.Package(context.Background(), artifact)
	require.NoError(t, err)

	secondBytes, err := os.ReadFile(second[0].Path)
	require.NoError(t, err)
	require.Equal(t, firstBytes, secondBytes)
	require.Equal(t, "x86_64-unknown-linux-gnu.zip", filepath.Base(first[0].Path))
	require.Equal(t, release.FormatArchive, first[0].Format)
	require.Equal(t, int64(len(firstBytes)), first[0].Size)

	zr, err := zip.OpenReader(first[0].Path)
	require.NoError(t, err)

	defer zr.Close()

	require.Len(t, zr.File, 1)
	require.Equal(t, "sad", zr.File[0].Name)
	require.Equal(t, os.FileMode(0o755), zr.File[0].Mode().Perm())

	rc, err := zr.File[0].Open()
	require.NoError(t, err)

	defer rc.Close()

	contents, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.Equal(t, binary, string(contents))
}

// TestPackage_WindowsSuffix names the entry with .exe and never builds a .deb.
func TestPackage_WindowsSuffix(t *testing.T) {
	t.Parallel()

	runner := exectest.NewRunner()
	p := New(runner, nil, Capabilities{Builder: "/usr/bin/dpkg-deb"}, newOptions(t))

	outputs, err := p.Package(context.Background(), newArtifact(t, windowsGNU))
	require.NoError(t, err)
	require.Len(t, outputs, 1)
	require.Empty(t, runner.Calls())

	zr, err := zip.OpenReader(outputs[0].Path)
	require.NoError(t, err)

	defer zr.Close()

	require.Equal(t, "sad.exe", zr.File[0].Name)
}

// TestPackage_TarXZ reads the tarball back.
func TestPackage_TarXZ(t *testing.T) {
	t.Parallel()

	opts := newOptions(t)
	opts.Format = FormatTarXZ

	outputs, err := New(exectest.NewRunner(), nil, Capabilities{}, opts).Package(context.Background(), newArtifact(t, linuxGNU))
	require.NoError(t, err)
	require.Equal(t, "x86_64-unknown-linux-gnu.tar.xz", filepath.Base(outputs[0].Path))

	f, err := os.Open(outputs[0].Path)
	require.NoError(t, err)

	defer f.Close()

	xr, err := xz.NewReader(f)
	require.NoError(t, err)

	tr := tar.NewReader(xr)

	header, err := tr.Next()
	require.NoError(t, err)
	require.Equal(t, "sad", header.Name)
	require.Equal(t, int64(0o755), header.Mode)

	contents, err := io.ReadAll(tr)
	require.NoError(t, err)
	require.Equal(t, binary, string(contents))

	_, err = tr.Next()
	require.ErrorIs(t, err, io.EOF)
}

// TestPackage_MissingArtifact reports the path that was expected.
func TestPackage_MissingArtifact(t *testing.T) {
	t.Parallel()

	artifact := release.BuildArtifact{Triple: linuxGNU, Path: filepath.Join(t.TempDir(), "nope")}

	_, err := New(exectest.NewRunner(), nil, Capabilities{}, newOptions(t)).Package(context.Background(), artifact)
	require.True(t, failure.Is(err, failure.EArtifactNotFound))

	var fe *failure.Error
	require.ErrorAs(t, err, &fe)
	require.Equal(t, artifact.Path, fe.Details["path"])
}

// TestPackage_NativePackage stages the binary, renders control and calls the builder.
func TestPackage_NativePackage(t *testing.T) {
	t.Parallel()

	opts := newOptions(t)
	runner := exectest.NewRunner("dpkg-deb").On("/usr/bin/dpkg-deb", fakeBuilder())
	caps := ProbeCapabilities(context.Background(), runner, opts.Builder)
	require.True(t, caps.NativePackage())

	p := New(runner, nil, caps, opts)

	// Twice: the staging directory is recreated on every run.
	for range 2 {
		outputs, err := p.Package(context.Background(), newArtifact(t, linuxGNU))
		require.NoError(t, err)
		require.Len(t, outputs, 2)
		require.Equal(t, release.FormatNativePackage, outputs[1].Format)
		require.Equal(t, filepath.Join(opts.ArtifactsDir, "x86_64-unknown-linux-gnu.deb"), outputs[1].Path)
	}

	stage := filepath.Join(opts.ArtifactsDir, "stage", "x86_64-unknown-linux-gnu")
	require.Equal(t, []string{
		"/usr/bin/dpkg-deb --build --root-owner-group " + stage + " " + filepath.Join(opts.ArtifactsDir, "x86_64-unknown-linux-gnu.deb"),
		"/usr/bin/dpkg-deb --build --root-owner-group " + stage + " " + filepath.Join(opts.ArtifactsDir, "x86_64-unknown-linux-gnu.deb"),
	}, runner.Lines())

	staged, err := os.ReadFile(filepath.Join(stage, "usr", "bin", "sad"))
	require.NoError(t, err)
	require.Equal(t, binary, string(staged))

	entries, err := os.ReadDir(filepath.Join(stage, "usr", "bin"))
	require.NoError(t, err)
	require.Len(t, entries, 1)

	control, err := os.ReadFile(filepath.Join(stage, "DEBIAN", "control"))
	require.NoError(t, err)
	require.Equal(t, `Package: sad
Version: 1.2.3
Section: utils
Priority: optional
Architecture: amd64
Maintainer: ci-bot <ci@ci.ci>
Homepage: https://github.com/ms-jpq/sad
Description: Space Age seD
 Batch file edit tool.
 .
 Shows diffs before applying.
`, string(control))
}

// TestPackage_BuilderFailureIsFatal keeps a present but failing builder from being skipped.
func TestPackage_BuilderFailureIsFatal(t *testing.T) {
	t.Parallel()

	runner := exectest.NewRunner().On("/usr/bin/dpkg-deb", exectest.Response{
		Result: exec.CmdResult{ExitCode: 2, Stderr: "dpkg-deb: error: control file has bad permissions\n"},
	})

	_, err := New(runner, nil, Capabilities{Builder: "/usr/bin/dpkg-deb"}, newOptions(t)).
		Package(context.Background(), newArtifact(t, linuxGNU))
	require.True(t, failure.Is(err, failure.EExternalToolFailure))
	require.Equal(t, 2, failure.ExitCode(err))
}

// TestPackage_CustomControlTemplate renders a control file from the template set.
func TestPackage_CustomControlTemplate(t *testing.T) {
	t.Parallel()

	renderer := manifest.New()
	require.NoError(t, renderer.Add("control.tmpl", "Package: {{ .name }}\nArchitecture: {{ .arch }}\nDescription: {{ .long_desc }}\n"))

	opts := newOptions(t)
	opts.ControlTemplate = "control.tmpl"
	opts.Metadata.LongDescription = ""

	runner := exectest.NewRunner().On("/usr/bin/dpkg-deb", fakeBuilder())

	_, err := New(runner, renderer, Capabilities{Builder: "/usr/bin/dpkg-deb"}, opts).
		Package(context.Background(), newArtifact(t, linuxGNU))
	require.True(t, failure.Is(err, failure.EManifestRender))
	require.Empty(t, runner.Calls())
}

// TestProbeCapabilities disables native packages when the builder is absent.
func TestProbeCapabilities(t *testing.T) {
	t.Parallel()

	require.False(t, ProbeCapabilities(context.Background(), exectest.NewRunner(), "dpkg-deb").NativePackage())
}
