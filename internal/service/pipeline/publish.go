package pipeline

import (
	"context"
	"net/http"
	"os"

	"github.com/oshokin/releaser/internal/config"
	"github.com/oshokin/releaser/internal/domain/release"
	"github.com/oshokin/releaser/internal/failure"
	"github.com/oshokin/releaser/internal/logger"
	"github.com/oshokin/releaser/internal/repository/pkgrepo"
	"github.com/oshokin/releaser/internal/service/checksum"
	"github.com/oshokin/releaser/internal/service/manifest"
)

// PublishOptions configures the publish command.
type PublishOptions struct {
	Common
	// Tag and Title override the derived release names.
	Tag   string
	Title string
	// HTTPClient fetches published artifacts; nil uses the verifier default.
	HTTPClient *http.Client
	// Getenv reads the token variable; nil means os.Getenv.
	Getenv func(string) string
}

// Publish renders every configured manifest and pushes them to the package
// repository in a single commit. Nothing is written to the working copy
// unless every checksum and every manifest succeeded.
func Publish(ctx context.Context, opts *PublishOptions) error {
	ctx = startRun(ctx, "publish")
	runner := opts.runner()

	cfg, err := opts.load()
	if err != nil {
		return err
	}

	if err = config.ValidatePublish(cfg); err != nil {
		return err
	}

	project, err := cfg.LoadProject()
	if err != nil {
		return err
	}

	notes, err := config.LoadNotes(cfg.NotesFile)
	if err != nil {
		return err
	}

	now := opts.now()
	info := NewReleaseInfo(project.Metadata.Version, now, notes, opts.Tag, opts.Title)

	ctx = logger.WithKV(ctx, "tag", info.Tag)

	renderer, err := manifest.LoadDir(cfg.TemplatesDir)
	if err != nil {
		return err
	}

	for _, m := range cfg.Publish.Manifests {
		if !renderer.Has(m.Template) {
			return failure.WithDetails(
				failure.Newf(failure.EConfig, "manifest template %s is not in %s", m.Template, cfg.TemplatesDir),
				map[string]string{"template": m.Template, "dest": m.Dest},
			)
		}
	}

	logger.DebugKV(ctx, "Loaded manifest templates", "templates", renderer.Names())

	downloads, err := downloadURIs(renderer, project, info, cfg.Publish.Downloads)
	if err != nil {
		return err
	}

	verifier := checksum.New(checksum.Options{
		Attempts:    cfg.Checksum.Attempts,
		Delay:       cfg.Checksum.Delay,
		Timeout:     cfg.Checksum.Timeout,
		Parallelism: cfg.Checksum.Parallelism,
	}, opts.HTTPClient)

	records, err := verifier.SumAll(ctx, downloads)
	if err != nil {
		return err
	}

	rc := release.NewContext(project.Metadata, info, records, project.Extra)

	logger.DebugKV(ctx, "Checksums collected", "downloads", rc.DownloadKeys())

	files := make([]pkgrepo.File, 0, len(cfg.Publish.Manifests))

	for _, m := range cfg.Publish.Manifests {
		text, err := renderer.Render(m.Template, rc)
		if err != nil {
			return err
		}

		logger.DebugKV(ctx, "Rendered manifest", "template", m.Template, "dest", m.Dest)

		files = append(files, pkgrepo.File{Path: m.Dest, Content: []byte(text)})
	}

	getenv := opts.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}

	token := getenv(cfg.Publish.TokenEnv)
	if token == "" {
		logger.WarnKV(ctx, "Access token is not set, pushing without credentials", "env", cfg.Publish.TokenEnv)
	}

	remote := pkgrepo.Remote{
		URI:         cfg.Publish.Repository,
		Username:    cfg.Publish.Username,
		Token:       token,
		Path:        cfg.Publish.Path,
		Branch:      cfg.Publish.Branch,
		AuthorName:  cfg.Publish.AuthorName,
		AuthorEmail: cfg.Publish.AuthorEmail,
	}

	pushed, err := pkgrepo.Publish(ctx, runner, remote, files, commitMessage(now))
	if err != nil {
		return err
	}

	logger.InfoKV(ctx, "Publish completed successfully", "manifests", len(files), "pushed", pushed)

	return nil
}

// downloadURIs renders each configured URI pattern. Patterns see the project
// name, version and repository and the release tag.
func downloadURIs(
	renderer *manifest.Renderer,
	project *config.Project,
	info release.ReleaseInfo,
	patterns map[string]string,
) (map[string]string, error) {
	meta := project.Metadata
	values := map[string]any{
		release.KeyName:        meta.Name,
		release.KeyVersion:     meta.Version,
		release.KeyRepo:        meta.Repository,
		release.KeyProjectRepo: meta.Repository,
		release.KeyTag:         info.Tag,
	}

	uris := make(map[string]string, len(patterns))

	for key, pattern := range patterns {
		uri, err := renderer.RenderString("downloads."+key, pattern, values)
		if err != nil {
			return nil, err
		}

		uris[key] = uri
	}

	return uris, nil
}
