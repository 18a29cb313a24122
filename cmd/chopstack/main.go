// Command chopstack is the CLI entry point for the orchestrator.
package main

import (
	"fmt"
	"os"

	"github.com/harrison/conductor/internal/cli"
)

// Version is injected at build time via -ldflags.
var Version = "dev"

func main() {
	rootCmd := cli.NewRootCommand(Version)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
