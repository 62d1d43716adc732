package cmd

import (
	"github.com/spf13/cobra"

	"github.com/oshokin/releaser/internal/service/pipeline"
	"github.com/oshokin/releaser/internal/service/target"
)

func newBuildCommand() *cobra.Command {
	var (
		arch, osName, abi string
		triples           []string
		all               bool
		releaseProfile    bool
		runTests          bool
	)

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build and package one or more targets",
		Long: `Builds the project for the selected targets and packages each build.

Without selection flags the host target is built. --arch, --os and --abi
override single components of the host default; --triple names a complete
target and may be repeated; --all builds every supported target.`,
		Example: `  releaser build --release
  releaser build --arch aarch64 --abi musl
  releaser build --triple x86_64-pc-windows-gnu --triple x86_64-apple-darwin
  releaser build --all --release --test`,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			ctx, stop := signalContext()
			defer stop()

			return pipeline.Build(ctx, &pipeline.BuildOptions{
				Common:   common(),
				Requests: buildRequests(arch, osName, abi, triples),
				All:      all,
				Release:  releaseProfile,
				Test:     runTests,
			})
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&arch, "arch", "", "target architecture: x86_64 or aarch64")
	flags.StringVar(&osName, "os", "", "target operating system: unknown-linux, apple or pc-windows")
	flags.StringVar(&abi, "abi", "", "target ABI: gnu, musl or darwin")
	flags.StringVar(&abi, "compiler", "", "alias of --abi")
	flags.StringArrayVar(&triples, "triple", nil, "complete target triple (repeatable)")
	flags.BoolVar(&all, "all", false, "build every supported target")
	flags.BoolVarP(&releaseProfile, "release", "r", false, "build with the release profile")
	flags.BoolVar(&runTests, "test", false, "run the test suite before each build")

	_ = flags.MarkHidden("compiler")

	cmd.MarkFlagsMutuallyExclusive("all", "triple")
	cmd.MarkFlagsMutuallyExclusive("all", "arch")
	cmd.MarkFlagsMutuallyExclusive("all", "os")
	cmd.MarkFlagsMutuallyExclusive("all", "abi")

	return cmd
}

// buildRequests keeps components and triples together so the resolver can
// reject mixing them.
func buildRequests(arch, osName, abi string, triples []string) []target.Request {
	if len(triples) == 0 {
		return []target.Request{{Arch: arch, OS: osName, ABI: abi}}
	}

	requests := make([]target.Request, 0, len(triples))
	for _, t := range triples {
		requests = append(requests, target.Request{Arch: arch, OS: osName, ABI: abi, Triple: t})
	}

	return requests
}
