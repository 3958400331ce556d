package main

import (
	"fmt"
	"os"

	"github.com/civiclens/signalgraph/internal/cli"
	"github.com/civiclens/signalgraph/internal/metrics"
)

func main() {
	// Initialize metrics (noop if disabled)
	metrics.InitFromEnv()

	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
