package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/oshokin/releaser/internal/config"
	"github.com/oshokin/releaser/internal/exec"
	"github.com/oshokin/releaser/internal/service/hostdeps"
)

func newDepsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "deps",
		Short: "Install cross-compilation prerequisites",
		Long: `Installs the Windows cross linker with apt (when apt is available) and adds
every supported target triple to the toolchain installer.`,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			ctx, stop := signalContext()
			defer stop()

			cfg, err := config.Load(configPath, rootDir)
			if err != nil {
				return err
			}

			return hostdeps.Install(ctx, exec.NewOSRunner(), &hostdeps.Options{
				Root:   cfg.Root,
				Stdout: os.Stdout,
				Stderr: os.Stderr,
			})
		},
	}
}
