package cmd

import (
	"github.com/spf13/cobra"

	"github.com/oshokin/releaser/internal/service/pipeline"
)

func newPublishCommand() *cobra.Command {
	var tag, title string

	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Render manifests and push them to the package repository",
		Long: `Fetches every configured download, computes its SHA-256, renders the
configured manifests and force-pushes them to the package repository in one
commit. The access token is read from the variable named by publish.token_env.`,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			ctx, stop := signalContext()
			defer stop()

			return pipeline.Publish(ctx, &pipeline.PublishOptions{
				Common: common(),
				Tag:    tag,
				Title:  title,
			})
		},
	}

	cmd.Flags().StringVar(&tag, "tag", "", "release tag (default ci_<version>_<date>)")
	cmd.Flags().StringVar(&title, "title", "", "release title (default CI - <version> | <date>)")

	return cmd
}
