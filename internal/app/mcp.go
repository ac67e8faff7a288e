package app

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/worktrack/internal/mcp"
	"github.com/blackwell-systems/worktrack/internal/store"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run an MCP stdio server over the local activity journal",
	Long: `Start a Model Context Protocol stdio server that an assistant can
query for your tracked activity. The server exposes four tools:

  classify_activity    Category and multiplier for an application or site
  get_bucket_history   Recent closed buckets with score and top activity
  get_recent_sessions  Last N tracking sessions with totals and score
  get_today_score      Today's average score and most used activities

Register it in your MCP client configuration:
  {"mcpServers":{"worktrack":{"command":"worktrack","args":["mcp"]}}}`,
	RunE: runMCP,
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func runMCP(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	db, err := store.Open(cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() { _ = db.Close() }()

	srv := mcp.NewServer(db, appVersion)
	return srv.Run(cmd.Context(), os.Stdin, os.Stdout)
}
