package cmd

import (
	"context"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/joescharf/bugboard/internal/mcp"
	"github.com/joescharf/bugboard/internal/tracker"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP stdio server for Claude Code integration",
	Long: `Start an MCP (Model Context Protocol) server on stdio.

This lets Claude Code read and update the bug board natively. Configure in
Claude Code with:

  {
    "mcpServers": {
      "bugboard": { "command": "bugboard", "args": ["mcp"] }
    }
  }

Available tools: bugs_list, bugs_board, bugs_create, bugs_change_status,
bugs_delete, bugs_comments`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return mcpRun(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

// logNotifier sends notices to the logger. Stdout carries the MCP protocol,
// so nothing else may print there.
func logNotifier() tracker.Notifier {
	return tracker.NotifierFunc(func(n tracker.Notice) {
		logger.Info("notice", "level", n.Level, "message", n.Message)
	})
}

func mcpRun(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, shutdownSignals()...)
	defer stop()

	t, err := getTracker(ctx, logNotifier())
	if err != nil {
		return err
	}
	return mcp.NewServer(t, buildVersion).ServeStdio(ctx)
}
