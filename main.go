package main

import (
	"fmt"
	"os"

	"github.com/theledlead/bookshelf/internal/cli"
)

// Version information - set at build time via ldflags
var (
	Version = "dev"
	Commit  = "unknown"
)

func main() {
	app := cli.NewApp(fmt.Sprintf("%s (%s)", Version, Commit))
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
