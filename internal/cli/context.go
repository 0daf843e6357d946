package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newContextCmd() *cobra.Command {
	var owner string

	cmd := &cobra.Command{
		Use:   "context <question>",
		Short: "Print the memory context a question would be answered with",
		Long: `Assemble and print the memory side of the prompt for a question:
profile, durable facts, weak topics, deep recall, and the recent turns
that would travel as chat history. Useful for seeing what Lectern
actually knows about you.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			question := strings.Join(args, " ")

			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			built := a.builder.Build(context.Background(), owner, question, a.buildOpts())

			if built.MemoryText == "" && len(built.History) == 0 {
				fmt.Println("No memory recorded yet.")
				return nil
			}

			if built.MemoryText != "" {
				fmt.Println(built.MemoryText)
			}
			if len(built.History) > 0 {
				fmt.Println("## Recent Conversation")
				fmt.Println()
				for _, t := range built.History {
					fmt.Printf("%s: %s\n", t.Role, t.Content)
				}
			}
			fmt.Printf("\n--- %d tokens (sections: %s) ---\n",
				built.TokensUsed, strings.Join(built.Sections, ", "))
			return nil
		},
	}

	cmd.Flags().StringVarP(&owner, "user", "u", defaultOwner, "student identifier")

	return cmd
}
