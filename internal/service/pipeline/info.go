package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/oshokin/releaser/internal/config"
	"github.com/oshokin/releaser/internal/logger"
)

// InfoOptions configures the release-info command.
type InfoOptions struct {
	Common
	Tag   string
	Title string
}

// ReleaseInfo writes the release tag, title and notes as one JSON object to stdout.
func ReleaseInfo(ctx context.Context, opts *InfoOptions) error {
	ctx = startRun(ctx, "release-info")

	cfg, err := opts.load()
	if err != nil {
		return err
	}

	meta, err := config.LoadManifest(cfg.ProjectManifest)
	if err != nil {
		return err
	}

	notes, err := config.LoadNotes(cfg.NotesFile)
	if err != nil {
		return err
	}

	info := NewReleaseInfo(meta.Version, opts.now(), notes, opts.Tag, opts.Title)

	logger.DebugKV(ctx, "Release info", "tag", info.Tag)

	enc := json.NewEncoder(opts.stdout())
	enc.SetEscapeHTML(false)

	if err = enc.Encode(info); err != nil {
		return fmt.Errorf("write release info: %w", err)
	}

	return nil
}
