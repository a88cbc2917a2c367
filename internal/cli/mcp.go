package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	leadflowmcp "github.com/valter-silva-au/leadflow/internal/mcp"
)

func newMCPCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "MCP server commands",
		Long:  "Commands for running the leadflow MCP (Model Context Protocol) server.",
	}

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Start the leadflow MCP server on stdio",
		Long: `Start the leadflow MCP server on stdio transport.

The server exposes the pipeline as MCP tools that AI assistants can call:
list_stages, list_leads, get_lead, create_lead, move_lead, retry_enrollment,
delete_stage, get_metrics and get_alerts.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := requirePipeline()
			if err != nil {
				return err
			}

			srv := leadflowmcp.NewServer(p, MetricsCalc, AlertEngine, appVersion)

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
			defer stop()

			if err := srv.Run(ctx); err != nil {
				return fmt.Errorf("running MCP server: %w", err)
			}
			return nil
		},
	}

	cmd.AddCommand(serve)
	return cmd
}
