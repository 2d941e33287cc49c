// Package main provides the LeapQuery CLI.
package main

import (
	"os"

	"github.com/leapstack-labs/leapquery/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
