package main

import (
	"os"
	"strings"

	"github.com/aretw0/skillflow"
	"github.com/aretw0/skillflow/internal/cli"
	"github.com/aretw0/skillflow/internal/presentation/tui"
	"github.com/aretw0/skillflow/pkg/observability"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var chatCmd = &cobra.Command{
	Use:   "chat [dir]",
	Short: "Talk to a skill from the terminal",
	Long: `Starts an interactive session. Type an intent followed by key=value slots,
or /help for the list of commands. Pass --session to resume a conversation.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := projectDir(cmd, args)
		debug, _ := cmd.Flags().GetBool("debug")
		redisURL, _ := cmd.Flags().GetString("redis")
		sessionID, _ := cmd.Flags().GetString("session")
		watch, _ := cmd.Flags().GetBool("watch")

		logger := cli.NewLogger(debug)
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

		ctx := cli.NewSignalContext(cmd.Context())
		defer ctx.Cancel()

		if watch {
			if err := cli.WatchResponses(ctx, project, os.Stderr); err != nil {
				return err
			}
		}

		if sessionID == "" {
			sessionID = "chat-" + uuid.NewString()[:8]
		}

		if tui.IsTerminal(os.Stdout) {
			tui.PrintBanner(os.Stdout, strings.TrimSpace(skillflow.Version))
		}

		return cli.RunChat(ctx, &cli.Chat{
			Project:   project,
			Sessions:  store.Manager,
			SessionID: sessionID,
			In:        os.Stdin,
			Out:       os.Stdout,
			Render:    tui.RendererFor(os.Stdout),
			Logger:    logger,
		})
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)

	chatCmd.Flags().StringP("session", "s", "", "Session ID to create or resume")
	chatCmd.Flags().BoolP("watch", "w", false, "Reload response documents on change")
}
