// Package main provides the entry point for the moviedex CLI.
package main

import (
	"os"

	"github.com/kailas-cloud/moviedex/cmd/moviedex/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
