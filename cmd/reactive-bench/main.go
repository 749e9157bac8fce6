package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "reactive-bench",
		Short: "Benchmark and inspect reactive dependency graphs",
		Long: `reactive-bench exercises the reactive engine with synthetic graph
shapes and reports propagation throughput and latency.

Scenarios:

  • chain   - a deep linear derivation chain
  • diamond - wide fan-out re-joining into one node
  • fanout  - one atom driving many independent subscriptions

The serve command runs a demo graph with the HTTP inspector attached,
for poking at /graph, /metrics, and the /live event stream.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		runCmd(),
		serveCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "\033[31mError:\033[0m %s\n", err)
		os.Exit(1)
	}
}

// success prints a success message.
func success(format string, args ...any) {
	fmt.Printf("\033[32m✓\033[0m %s\n", fmt.Sprintf(format, args...))
}

// info prints an info message.
func info(format string, args ...any) {
	fmt.Printf("  %s\n", fmt.Sprintf(format, args...))
}
