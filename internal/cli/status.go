package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lectern/lectern/internal/config"
)

func newStatusCmd() *cobra.Command {
	var owner string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the corpus and memory state",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			stats := a.index.Stats()
			courses := map[string]int{}
			for _, s := range stats {
				courses[s.Course]++
			}

			var dbSize int64
			if fi, err := os.Stat(config.DBPath(a.dataDir)); err == nil {
				dbSize = fi.Size()
			}

			fmt.Printf("\nData dir: %s (db %.1f KB)\n", a.dataDir, float64(dbSize)/1024)
			fmt.Printf("Model:    %s (embedder %s, model %s)\n",
				a.cfg.DefaultModel, a.cfg.DefaultEmbedder, a.index.ModelID())
			fmt.Printf("Corpus:   %d passages, %d sources, %d courses\n",
				a.index.Len(), len(stats), len(courses))

			facts, _ := a.memStore.ListFacts(owner, 0)
			sessions, _ := a.memStore.SessionCount(owner)
			fmt.Printf("Student:  %s (%d facts, %d sessions answered)\n", owner, len(facts), sessions)

			if weak := a.manager.WeakTopics(owner, 5); len(weak) > 0 {
				fmt.Println("\nWeak topics:")
				for _, m := range weak {
					fmt.Printf("  • %s (mastery %.0f%%)\n", m.Topic, m.Level*100)
				}
			}

			if len(stats) > 0 {
				fmt.Println("\nSources:")
				fmt.Print(a.formatter.FormatSourceList(stats))
			}
			fmt.Println()
			return nil
		},
	}

	cmd.Flags().StringVarP(&owner, "user", "u", defaultOwner, "student identifier")

	return cmd
}
