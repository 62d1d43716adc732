package main

import (
	"os"
	"os/exec"

	"github.com/goyek/goyek/v2"
)

func run(a *goyek.A, name string, args ...string) {
	a.Helper()

	cmd := exec.CommandContext(a.Context(), name, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		a.Error(err)
	}
}

var vet = goyek.Define(goyek.Task{
	Name:  "vet",
	Usage: "Run go vet on all packages",
	Action: func(a *goyek.A) {
		run(a, "go", "vet", "./...")
	},
})

var test = goyek.Define(goyek.Task{
	Name:  "test",
	Usage: "Run the tests with the race detector",
	Action: func(a *goyek.A) {
		run(a, "go", "test", "-race", "./...")
	},
})

var compile = goyek.Define(goyek.Task{
	Name:  "build",
	Usage: "Build the releaser binary into bin/",
	Action: func(a *goyek.A) {
		run(a, "go", "build", "-o", "bin/", "./cmd/releaser")
	},
})

var all = goyek.Define(goyek.Task{
	Name:  "all",
	Usage: "Vet, test and build",
	Deps:  goyek.Deps{vet, test, compile},
})

func main() {
	goyek.SetDefault(all)
	goyek.Main(os.Args[1:])
}
