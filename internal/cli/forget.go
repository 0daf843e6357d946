package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lectern/lectern/internal/memory"
)

func newForgetCmd() *cobra.Command {
	var (
		owner  string
		kind   string
		source string
		course string
		all    bool
	)

	cmd := &cobra.Command{
		Use:   "forget [key]",
		Short: "Delete a stored fact, or remove ingested material",
		Long: `Delete one durable fact by kind and key, or drop ingested passages by
source or course.

Examples:
  lectern forget exam_biology --kind exam
  lectern forget --source lecture-3
  lectern forget --course biology
  lectern forget --all`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			switch {
			case all:
				if err := a.manager.Purge(owner); err != nil {
					return err
				}
				fmt.Printf("Wiped all memory for %s.\n", owner)
				return nil

			case source != "":
				n := a.index.RemoveSource(source)
				if err := a.saveIndex(); err != nil {
					return fmt.Errorf("save index: %w", err)
				}
				fmt.Printf("Removed %d passages from source %s.\n", n, source)
				return nil

			case course != "":
				n := a.index.RemoveCourse(course)
				if err := a.saveIndex(); err != nil {
					return fmt.Errorf("save index: %w", err)
				}
				fmt.Printf("Removed %d passages from course %s.\n", n, course)
				return nil
			}

			if len(args) == 0 {
				return fmt.Errorf("nothing to forget: give a fact key, --source, or --course")
			}
			key := args[0]

			fk := memory.FactKind(strings.ToLower(kind))
			if !memory.ValidFactKind(fk) {
				return fmt.Errorf("unknown kind %q (valid: preference, fact, goal, struggle, insight, exam)", kind)
			}

			deleted, err := a.memStore.DeleteFact(owner, fk, key)
			if err != nil {
				return err
			}
			if !deleted {
				fmt.Printf("No fact %s/%s stored for %s.\n", fk, key, owner)
				return nil
			}

			a.manager.Profiles().Invalidate(owner)
			fmt.Printf("Forgot %s/%s.\n", fk, key)
			return nil
		},
	}

	cmd.Flags().StringVarP(&owner, "user", "u", defaultOwner, "student identifier")
	cmd.Flags().StringVarP(&kind, "kind", "t", "fact", "fact kind of the key being forgotten")
	cmd.Flags().StringVar(&source, "source", "", "remove all passages of this source")
	cmd.Flags().StringVar(&course, "course", "", "remove all passages of this course")
	cmd.Flags().BoolVar(&all, "all", false, "wipe every memory layer for the user")

	return cmd
}
