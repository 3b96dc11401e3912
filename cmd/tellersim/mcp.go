package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/leonletto/tellersim/internal/auth"
	tsmcp "github.com/leonletto/tellersim/internal/mcp"
)

func mcpCmd() *cobra.Command {
	var (
		url   string
		token string
	)

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start an MCP stdio server bridged to a running simulator",
		Long: `Starts an MCP server on stdin/stdout. The bridge attaches to the
simulator's observer endpoint and exposes the tools send_notification,
client_count, recent_messages and wait_for_message.

Configure in an MCP client:
  {
    "mcpServers": {
      "tellersim": {
        "type": "stdio",
        "command": "tellersim",
        "args": ["mcp", "--url", "ws://localhost:8080/ws/admin"]
      }
    }
  }`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			// stdout carries the MCP protocol; logs go to stderr.
			log := newLogger(cfg)

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			header := http.Header{}
			if token != "" {
				header.Set(auth.TokenHeader, token)
			}
			observer, err := tsmcp.Dial(ctx, url, header, log)
			if err != nil {
				return fmt.Errorf("simulator is not reachable: %w", err)
			}
			defer func() { _ = observer.Close() }()

			return tsmcp.NewServer(observer, tsmcp.WithVersion(Version)).Run(ctx)
		},
	}

	cmd.Flags().StringVar(&url, "url", "ws://localhost:8080/ws/admin", "Observer endpoint URL")
	cmd.Flags().StringVar(&token, "token", "", "Login token to present, if any")
	return cmd
}
