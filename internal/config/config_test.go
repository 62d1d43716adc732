package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/releaser/internal/failure"
)

// TestValidate checks defaults and rejected values.
func TestValidate(t *testing.T) {
	t.Parallel()

	cfg := new(Config)
	require.NoError(t, Validate(cfg))
	require.Equal(t, "cargo", cfg.Toolchain)
	require.Equal(t, ArchiveZip, cfg.ArchiveFormat)
	require.Equal(t, 10, cfg.Checksum.Attempts)
	require.Equal(t, 5*time.Second, cfg.Checksum.Delay)
	require.Equal(t, 1, cfg.Checksum.Parallelism)
	require.Equal(t, "CI_TOKEN", cfg.Publish.TokenEnv)

	err := Validate(&Config{ArchiveFormat: "rar"})
	require.True(t, failure.Is(err, failure.EConfig))

	err = Validate(&Config{Checksum: Checksum{Attempts: -1}})
	require.True(t, failure.Is(err, failure.EConfig))

	explicit := &Config{Checksum: Checksum{Attempts: 3}}
	require.NoError(t, Validate(explicit))
	require.Equal(t, 3, explicit.Checksum.Attempts)
	require.Equal(t, 5*time.Second, explicit.Checksum.Delay)
}

// TestValidatePublish covers the publish-only requirements.
func TestValidatePublish(t *testing.T) {
	t.Parallel()

	cfg := new(Config)
	require.NoError(t, Validate(cfg))
	require.True(t, failure.Is(ValidatePublish(cfg), failure.EConfig))

	cfg.Publish.Repository = "https://github.com/ms-jpq/homebrew-sad.git"
	require.True(t, failure.Is(ValidatePublish(cfg), failure.EConfig))

	cfg.Publish.Manifests = []Manifest{{Template: "homebrew.rb.tmpl", Dest: "../escape.rb"}}
	require.True(t, failure.Is(ValidatePublish(cfg), failure.EConfig))

	cfg.Publish.Manifests = []Manifest{{Template: "homebrew.rb.tmpl", Dest: "Formula/sad.rb"}}
	require.NoError(t, ValidatePublish(cfg))
}

// TestLoad_ResolvesPaths loads a file and checks relative paths are anchored at the config directory.
func TestLoad_ResolvesPaths(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, DefaultConfigFilename)

	contents := `
program: sad
artifacts_dir: out
checksum:
  attempts: 4
  delay: 250ms
publish:
  repository: https://github.com/ms-jpq/homebrew-sad.git
  manifests:
    - template: homebrew.rb.tmpl
      dest: sad.rb
  downloads:
    x86: https://example.com/x86.zip
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	cfg, err := Load(path, "")
	require.NoError(t, err)
	require.Equal(t, dir, cfg.Root)
	require.Equal(t, filepath.Join(dir, "out"), cfg.ArtifactsDir)
	require.Equal(t, filepath.Join(dir, "Cargo.toml"), cfg.ProjectManifest)
	require.Equal(t, filepath.Join(dir, "packages"), cfg.Publish.Path)
	require.Equal(t, 250*time.Millisecond, cfg.Checksum.Delay)
	require.Equal(t, 4, cfg.Checksum.Attempts)
	require.Equal(t, "https://example.com/x86.zip", cfg.Publish.Downloads["x86"])
	require.NoError(t, ValidatePublish(cfg))
}

// TestLoad_ChecksumDelay keeps an explicit zero delay and defaults an omitted one.
func TestLoad_ChecksumDelay(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		checksum string
		attempts int
		delay    time.Duration
	}{
		{name: "omitted with attempts", checksum: "  attempts: 5\n", attempts: 5, delay: 5 * time.Second},
		{name: "explicit zero", checksum: "  attempts: 5\n  delay: 0s\n", attempts: 5, delay: 0},
		{name: "explicit zero without attempts", checksum: "  delay: 0s\n", attempts: 10, delay: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			dir := t.TempDir()
			path := filepath.Join(dir, DefaultConfigFilename)
			require.NoError(t, os.WriteFile(path, []byte("program: sad\nchecksum:\n"+tt.checksum), 0o600))

			cfg, err := Load(path, "")
			require.NoError(t, err)
			require.Equal(t, tt.attempts, cfg.Checksum.Attempts)
			require.Equal(t, tt.delay, cfg.Checksum.Delay)
		})
	}
}

// TestLoad_MissingFile distinguishes the optional default file from an explicit one.
func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	cfg, err := Load("", dir)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "target"), cfg.TargetDir)

	_, err = Load(filepath.Join(dir, "nope.yaml"), dir)
	require.True(t, failure.Is(err, failure.EConfig))
}
