// Package main provides the CLI for the leaptable query engine.
package main

import (
	"os"

	"github.com/leapstack-labs/leaptable/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
