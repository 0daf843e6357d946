package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lectern/lectern/internal/engine"
	"github.com/lectern/lectern/internal/index"
)

func newAskCmd() *cobra.Command {
	var (
		owner    string
		course   string
		model    string
		cont     bool
		noStream bool
		verbose  bool
	)

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask a question answered from your course material",
		Long: `Ask a question. Lectern retrieves the most relevant passages, and when
the material supports it, answers from them with your study memory as
context. When coverage is weak it tells you so and lists what material
exists instead of guessing.

Examples:
  lectern ask "What limits the rate of photosynthesis?"
  lectern ask "Walk me through the proof again" --course calculus
  lectern ask "continue" --continue`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			question := strings.Join(args, " ")

			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			llm := buildModel(a.cfg, model)
			if llm == nil {
				return fmt.Errorf("no completion model available; set default_model in config or pass --model")
			}

			modelName := a.cfg.DefaultModel
			if model != "" {
				modelName = model
			}
			eng := a.newEngine(llm, "")

			opts := engine.AskOptions{Course: course, Continue: cont}
			streamed := false
			if !noStream {
				opts.Stream = func(text string) {
					streamed = true
					fmt.Print(text)
				}
			}

			ans, err := eng.Ask(context.Background(), owner, question, opts)
			if err != nil {
				return err
			}

			if !streamed {
				fmt.Print(ans.Text)
			}
			fmt.Println()

			if verbose {
				fmt.Fprintf(os.Stderr, "\n[%s] model=%s top=%.4f cutoff=%.4f supporting=%d tokens=%d\n",
					ans.Mode, modelName, ans.Decision.TopScore, ans.Decision.Cutoff,
					ans.Decision.Supporting, ans.TokensUsed)
				if ans.Degraded {
					fmt.Fprintln(os.Stderr, "  (embedding unavailable, lexical ranking only)")
				}
				if ans.Broadened {
					fmt.Fprintln(os.Stderr, "  (course filter broadened)")
				}
				if ans.Mode == index.ModeTeach {
					for _, r := range ans.Results {
						fmt.Fprintf(os.Stderr, "  • %s / %s (%.4f)\n", r.Chunk.Course, r.Chunk.SourceID, r.Fused)
					}
				}
			}

			return nil
		},
	}

	cmd.Flags().StringVarP(&owner, "user", "u", defaultOwner, "student identifier")
	cmd.Flags().StringVarP(&course, "course", "c", "", "restrict retrieval to one course")
	cmd.Flags().StringVarP(&model, "model", "m", "", "completion provider override: claude, openai, gemini, ollama")
	cmd.Flags().BoolVar(&cont, "continue", false, "exclude passages already shown, paging through the material")
	cmd.Flags().BoolVar(&noStream, "no-stream", false, "print the full answer at once")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "show the retrieval verdict and sources used")

	return cmd
}
