package main

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/aretw0/skillflow/internal/cli"
	"github.com/aretw0/skillflow/internal/logging"
	"github.com/aretw0/skillflow/pkg/adapters/mcp"
	"github.com/aretw0/skillflow/pkg/observability"
	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp [dir]",
	Short: "Run the Model Context Protocol (MCP) server",
	Long: `Exposes the skill to AI agents through the send_intent and end_session tools.

Supported Transports:
- stdio (default): Uses Standard Input/Output. Ideal for local process integration.
- sse: Uses Server-Sent Events over HTTP. Ideal for remote agents or debuggers.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := projectDir(cmd, args)
		debug, _ := cmd.Flags().GetBool("debug")
		redisURL, _ := cmd.Flags().GetString("redis")
		transport, _ := cmd.Flags().GetString("transport")
		port, _ := cmd.Flags().GetInt("port")

		// Logs always go to stderr so they never corrupt JSON-RPC on stdout.
		level := slog.LevelInfo
		if debug {
			level = slog.LevelDebug
		}
		logger := logging.New(level)

		project, err := cli.LoadProject(dir, cli.ProjectOptions{
			Logger: logger,
			Hooks:  observability.LoggingHooks(logger),
		})
		if err != nil {
			return err
		}

		store, err := cli.OpenStore(cli.StoreOptions{Dir: dir, RedisURL: redisURL, Logger: logger})
		if err != nil {
			return err
		}
		defer store.Close()

		srv := mcp.NewServer(project.Skill, store.Manager, mcp.WithLogger(logger))

		switch transport {
		case "stdio":
			logger.Info("Starting skillflow MCP Server (Stdio)...")
			return srv.ServeStdio()
		case "sse":
			ctx := cli.NewSignalContext(cmd.Context())
			defer ctx.Cancel()

			if err := srv.ServeSSE(ctx, port); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			logger.Info("MCP Server stopped gracefully")
			return nil
		default:
			return fmt.Errorf("unknown transport: %s. Supported: stdio, sse", transport)
		}
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)

	mcpCmd.Flags().String("transport", "stdio", "Transport protocol to use: 'stdio' or 'sse'")
	mcpCmd.Flags().Int("port", 8081, "Port to listen on (only for SSE)")
}
