package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lectern/lectern/internal/memory"
)

func newRememberCmd() *cobra.Command {
	var (
		owner      string
		kind       string
		confidence float64
		mastery    float64
	)

	cmd := &cobra.Command{
		Use:   "remember <key> <value...>",
		Short: "Store a durable fact or a mastery level",
		Long: `Save something Lectern should remember about you. Facts are keyed:
remembering the same kind and key again overwrites the value.

With --mastery the key is treated as a topic and the value is skipped:
  lectern remember kinetics --mastery 0.3

Examples:
  lectern remember exam_biology "Biology final on June 12" --kind exam
  lectern remember study_style "prefers worked examples first" --kind preference
  lectern remember thermodynamics --mastery 0.7`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]

			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			if cmd.Flags().Changed("mastery") {
				if err := a.memStore.UpsertMastery(memory.Mastery{
					Owner: owner,
					Topic: key,
					Level: mastery,
				}); err != nil {
					return err
				}
				fmt.Printf("Mastery of %s set to %.0f%% for %s.\n", key, mastery*100, owner)
				return nil
			}

			if len(args) < 2 {
				return fmt.Errorf("a fact needs a value: lectern remember <key> <value...>")
			}
			value := strings.Join(args[1:], " ")

			fk := memory.FactKind(strings.ToLower(kind))
			if !memory.ValidFactKind(fk) {
				return fmt.Errorf("unknown kind %q (valid: preference, fact, goal, struggle, insight, exam)", kind)
			}

			id, err := a.memStore.UpsertFact(memory.Fact{
				Owner:      owner,
				Kind:       fk,
				Key:        key,
				Value:      value,
				Confidence: confidence,
			})
			if err != nil {
				return err
			}

			a.manager.Profiles().Invalidate(owner)
			fmt.Printf("Remembered %s/%s (id: %s)\n", fk, key, id)
			return nil
		},
	}

	cmd.Flags().StringVarP(&owner, "user", "u", defaultOwner, "student identifier")
	cmd.Flags().StringVarP(&kind, "kind", "t", "fact", "fact kind: preference, fact, goal, struggle, insight, exam")
	cmd.Flags().Float64Var(&confidence, "confidence", 0, "confidence in [0,1] (default 0.7)")
	cmd.Flags().Float64Var(&mastery, "mastery", 0, "set mastery level in [0,1] for the topic named by <key>")

	return cmd
}
