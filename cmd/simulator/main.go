// Command simulator is the CLI driver of spec.md §6: it constructs a
// cluster from a scenario file, runs it for the scenario's fixed tick
// count, and prints a run summary. Exit code 0 on a successful run, 1 on
// any construction or validation error — failure modes produced by the
// driver itself are not part of the behavioral spec.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:           "simulator",
		Short:         "Two-layer gossip membership and replicated KV simulator",
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	root.AddCommand(runCmd())
	root.AddCommand(validateCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
