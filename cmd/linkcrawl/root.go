package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for linkcrawl.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "linkcrawl",
		Short: "Breadth-first link crawler",
		Long: `linkcrawl follows the links of a web page, breadth first, up to a depth
budget and reports every URL it discovered.

Requests to the same origin share one pooled HTTP session, and a request
answered with a 5xx status is retried after a short delay.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")

	cmd.AddCommand(NewCrawlCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
