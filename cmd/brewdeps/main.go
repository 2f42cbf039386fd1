package main

import (
	"fmt"
	"os"

	"github.com/blackwell-systems/brewdeps/internal/app"
	errs "github.com/blackwell-systems/brewdeps/internal/errors"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	app.SetVersion(version, commit, date)
	if err := app.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(errs.ExitCode(err))
	}
}
