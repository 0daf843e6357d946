// Package cli defines the Cobra command tree for the lectern CLI.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// version, commit, date are set via -ldflags at build time.
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// rootCmd is the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "lectern",
	Short: "Personal study assistant with hybrid retrieval and layered memory",
	Long: `Lectern answers questions from your own course material.

It ingests lecture notes and readings into a hybrid semantic + lexical
index, decides per question whether the material is strong enough to
teach from, and remembers what you tell it across sessions.

Start with 'lectern ingest <course> <files...>' and then 'lectern ask'.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute(v, c, d string) {
	version, commit, date = v, c, d
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(
		newAskCmd(),
		newIngestCmd(),
		newSearchCmd(),
		newRememberCmd(),
		newForgetCmd(),
		newContextCmd(),
		newStatusCmd(),
		newSweepCmd(),
		newWatchCmd(),
		newMCPCmd(),
		newVersionCmd(),
	)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("lectern %s (commit %s, built %s)\n", version, commit, date)
		},
	}
}
