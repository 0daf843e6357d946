package cli

import (
	"github.com/spf13/cobra"

	mcpserver "github.com/lectern/lectern/internal/mcp"
)

func newMCPCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve Lectern over the Model Context Protocol on stdio",
		Long: `Expose search, memory context assembly, remember/forget, and status as
MCP tools so editor assistants and agent frameworks can use Lectern's
corpus and study memory directly.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			eng := a.newEngine(buildModel(a.cfg, ""), "")
			srv := mcpserver.NewServer(eng, a.manager, a.index, a.builder, a.buildOpts(), version, a.logger)
			return srv.Serve()
		},
	}
}
