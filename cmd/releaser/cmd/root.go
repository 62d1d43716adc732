package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/releaser/internal/failure"
	"github.com/oshokin/releaser/internal/logger"
	"github.com/oshokin/releaser/internal/service/pipeline"
	"github.com/oshokin/releaser/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string
	// rootDir is the project root.
	rootDir string
	// logLevel is the minimum level written to stderr.
	logLevel string

	// rootCmd is the base command; every stage is a subcommand.
	rootCmd = &cobra.Command{
		Use:   "releaser",
		Short: "Build, package and publish cross-compiled releases",
		Long: `Builds a project for a fixed set of target triples, packages every build
into a reproducible archive (and a Debian package on Linux targets when
dpkg-deb is installed), and publishes package-manager manifests with the
checksums of the released artifacts to a package repository.

All relative paths resolve against the project root, which defaults to the
directory holding releaser.yaml.`,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			level, ok := logger.ParseLogLevel(logLevel)
			if !ok {
				return failure.Newf(failure.EConfig, "unknown log level %q", logLevel)
			}

			logger.SetLevel(level)

			return nil
		},
	}
)

// Execute runs the CLI and returns the first error for main to report.
func Execute() error {
	return rootCmd.Execute()
}

// signalContext is cancelled on SIGINT and SIGTERM; running subprocesses are killed.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
}

func common() pipeline.Common {
	return pipeline.Common{
		ConfigPath: configPath,
		Root:       rootDir,
		Stdout:     os.Stdout,
		Stderr:     os.Stderr,
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&configPath, "config", "c", "", "path to configuration file (default <root>/releaser.yaml)")
	flags.StringVar(&rootDir, "root", "", "project root (default: directory of the configuration file)")
	flags.StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn or error")

	rootCmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return failure.Wrap(failure.EConfig, "invalid flags", err)
	})

	rootCmd.AddCommand(
		newDepsCommand(),
		newBuildCommand(),
		newPublishCommand(),
		newInfoCommand(),
		version.NewCommand(),
	)
}
