// Command bvbench generates, runs and archives dynamic bit vector benchmarks.
package main

import (
	"fmt"
	"os"

	"github.com/eunmann/bvbench/internal/cli"
)

func main() {
	if err := cli.Run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
