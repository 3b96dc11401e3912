package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/leonletto/tellersim/internal/cli"
)

func observeCmd() *cobra.Command {
	var (
		url    string
		method string
		params string
		raw    bool
		exit   bool
	)

	cmd := &cobra.Command{
		Use:   "observe",
		Short: "Watch simulator traffic and optionally inject a notification",
		Long: `Attach to the observer endpoint and print every mirrored frame.

With --method the command first broadcasts that notification to every
connected terminal, as a device or teller would.

Examples:
  tellersim observe
  tellersim observe --method CardReaderController.card_read --params '{"success":true}' --exit`,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := cli.ObserveOptions{Raw: raw || flagJSON, Exit: exit}
			if method != "" {
				inj := &cli.Injection{Method: method}
				if params != "" {
					if !json.Valid([]byte(params)) {
						return fmt.Errorf("--params is not valid JSON")
					}
					inj.Params = json.RawMessage(params)
				}
				opts.Inject = inj
			} else if exit {
				return fmt.Errorf("--exit requires --method")
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return cli.Observe(ctx, url, opts, os.Stdout)
		},
	}

	cmd.Flags().StringVar(&url, "url", "ws://localhost:8080/ws/admin", "Observer endpoint URL")
	cmd.Flags().StringVar(&method, "method", "", "Notification method to inject")
	cmd.Flags().StringVar(&params, "params", "", "Notification params as JSON")
	cmd.Flags().BoolVar(&raw, "raw", false, "Print events unformatted")
	cmd.Flags().BoolVar(&exit, "exit", false, "Exit once the injection is acknowledged")
	return cmd
}
