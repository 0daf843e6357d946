package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newSweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Evict expired facts and old archived turns now",
		Long: `Run the memory sweep once: facts whose TTL has elapsed since their last
update are deleted, and archived turns older than the short-term TTL are
dropped. The same sweep runs on a schedule in watch mode.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			facts, err := a.memStore.SweepExpiredFacts()
			if err != nil {
				return err
			}
			turns, err := a.memStore.SweepOldTurns(a.cfg.Memory.ShortTermTTL.Duration)
			if err != nil {
				return err
			}

			fmt.Printf("Swept %d expired facts and %d old turns.\n", facts, turns)
			return nil
		},
	}
}
