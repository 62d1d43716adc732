package main

import (
	"os"

	"github.com/oshokin/releaser/cmd/releaser/cmd"
	"github.com/oshokin/releaser/internal/failure"
)

func main() {
	if err := cmd.Execute(); err != nil {
		failure.Print(os.Stderr, err)
		os.Exit(failure.ExitCode(err))
	}
}
