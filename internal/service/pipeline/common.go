package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/oshokin/releaser/internal/config"
	"github.com/oshokin/releaser/internal/domain/release"
	"github.com/oshokin/releaser/internal/exec"
	"github.com/oshokin/releaser/internal/logger"
)

const (
	tagTimeLayout   = "2006-01-02_15-04"
	titleTimeLayout = "2006-01-02 15:04"
)

// Common holds the inputs shared by every pipeline.
type Common struct {
	// ConfigPath is the configuration file; empty means <root>/releaser.yaml.
	ConfigPath string
	// Root is the project root; empty means the configuration file's directory.
	Root string
	// Runner starts subprocesses; nil means the real OS runner.
	Runner exec.CommandRunner
	// Now returns the current time; nil means time.Now.
	Now func() time.Time
	// Stdout and Stderr receive subprocess output and command results.
	Stdout io.Writer
	Stderr io.Writer
}

func (c *Common) runner() exec.CommandRunner {
	if c.Runner == nil {
		return exec.NewOSRunner()
	}

	return c.Runner
}

func (c *Common) now() time.Time {
	if c.Now == nil {
		return time.Now()
	}

	return c.Now()
}

func (c *Common) stdout() io.Writer {
	if c.Stdout == nil {
		return os.Stdout
	}

	return c.Stdout
}

func (c *Common) stderr() io.Writer {
	if c.Stderr == nil {
		return os.Stderr
	}

	return c.Stderr
}

func (c *Common) load() (*config.Config, error) {
	return config.Load(c.ConfigPath, c.Root)
}

// startRun names the logger and tags it with a fresh run identifier.
func startRun(ctx context.Context, name string) context.Context {
	ctx = logger.WithName(ctx, name)
	return logger.WithKV(ctx, "run_id", uuid.NewString())
}

// NewReleaseInfo derives the tag and title from the version and the clock.
// Non-empty tag or title override the derived values.
func NewReleaseInfo(version string, now time.Time, notes, tag, title string) release.ReleaseInfo {
	if tag == "" {
		tag = fmt.Sprintf("ci_%s_%s", version, now.Format(tagTimeLayout))
	}

	if title == "" {
		title = fmt.Sprintf("CI - %s | %s", version, now.Format(titleTimeLayout))
	}

	return release.ReleaseInfo{Tag: tag, Title: title, Notes: notes}
}

// commitMessage is the package repository commit subject.
func commitMessage(now time.Time) string {
	return "CI - " + now.Format(titleTimeLayout)
}
