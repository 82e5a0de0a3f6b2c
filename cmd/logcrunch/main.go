package main

import (
	"fmt"
	"os"

	"github.com/runnerr0/logcrunch/internal/cli"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	if err := cli.Run(version); err != nil {
		fmt.Fprintf(os.Stderr, "logcrunch: %v\n", err)
		os.Exit(1)
	}
}
