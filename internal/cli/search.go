package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lectern/lectern/internal/index"
)

func newSearchCmd() *cobra.Command {
	var (
		course string
		topK   int
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the ingested material and show the confidence verdict",
		Long: `Run the hybrid retrieval alone, without generating an answer. Shows the
ranked passages and whether the confidence gate would teach from them.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")

			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			eng := a.newEngine(nil, "")
			res, err := eng.Search(context.Background(), query, index.QueryOptions{
				Course: course,
				TopK:   topK,
			})
			if err != nil {
				return err
			}

			fmt.Printf("Verdict: %s (top %.4f, cutoff %.4f, %d supporting)\n",
				res.Decision.Mode, res.Decision.TopScore, res.Decision.Cutoff, res.Decision.Supporting)
			if res.Degraded {
				fmt.Println("Note: embedding unavailable, lexical ranking only.")
			}
			if res.Broadened {
				fmt.Println("Note: course filter produced too little, search was broadened.")
			}
			fmt.Println()

			if len(res.Results) == 0 {
				fmt.Println("No passages matched.")
				return nil
			}

			for i, r := range res.Results {
				fmt.Printf("%d. %s / %s (score %.4f)\n", i+1, r.Chunk.Course, r.Chunk.SourceID, r.Fused)
				fmt.Printf("   %s\n\n", firstLine(r.Chunk.Text, 160))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&course, "course", "c", "", "restrict to one course")
	cmd.Flags().IntVarP(&topK, "top-k", "k", 0, "number of passages (default from config)")

	return cmd
}

// firstLine returns the first line of s, truncated to max bytes.
func firstLine(s string, max int) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if len(s) > max {
		s = s[:max] + "…"
	}
	return s
}
