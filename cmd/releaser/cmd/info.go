package cmd

import (
	"github.com/spf13/cobra"

	"github.com/oshokin/releaser/internal/service/pipeline"
)

func newInfoCommand() *cobra.Command {
	var tag, title string

	cmd := &cobra.Command{
		Use:   "release-info",
		Short: "Print the release tag, title and notes as JSON",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			ctx, stop := signalContext()
			defer stop()

			return pipeline.ReleaseInfo(ctx, &pipeline.InfoOptions{
				Common: common(),
				Tag:    tag,
				Title:  title,
			})
		},
	}

	cmd.Flags().StringVar(&tag, "tag", "", "release tag override")
	cmd.Flags().StringVar(&title, "title", "", "release title override")

	return cmd
}
