package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/leonletto/tellersim/internal/cli"
)

func clientCmd() *cobra.Command {
	var (
		url   string
		token string
		wait  time.Duration
		trace bool
	)

	cmd := &cobra.Command{
		Use:   "client",
		Short: "Run a scripted terminal session against a simulator",
		Long: `Connect as a terminal and run the stock session: ping, create_session,
request_help, read_card and dispense. Waits for the device notifications
each step triggers.

Examples:
  tellersim client
  tellersim client --url ws://localhost:9000/ws/tellerapp/client --trace`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			var opts []cli.ClientOption
			if trace {
				opts = append(opts, cli.WithTrace(printFrame))
			}
			c, err := cli.Dial(ctx, url, token, opts...)
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()

			var out io.Writer = os.Stdout
			if flagJSON {
				out = io.Discard
			}
			results, err := cli.RunScript(ctx, c, cli.DefaultScript(), wait, out)
			if flagJSON {
				if perr := printJSON(results); perr != nil {
					return perr
				}
			}
			return err
		},
	}

	cmd.Flags().StringVar(&url, "url", "ws://localhost:8080/ws/tellerapp/client", "Terminal endpoint URL")
	cmd.Flags().StringVar(&token, "token", "", "Login token (X-CSRFToken) when the simulator requires login")
	cmd.Flags().DurationVar(&wait, "wait", 10*time.Second, "How long to wait for device notifications")
	cmd.Flags().BoolVar(&trace, "trace", false, "Print every frame sent and received")
	return cmd
}

func printFrame(f cli.Frame) {
	arrow, color := "<-", "\x1b[32m"
	if f.Outgoing {
		arrow, color = "->", "\x1b[36m"
	}
	if !term.IsTerminal(int(os.Stderr.Fd())) { //nolint:gosec // G115: fd fits in int
		fmt.Fprintf(os.Stderr, "%s %s %s\n", f.At.Format("15:04:05.000"), arrow, f.Data)
		return
	}
	fmt.Fprintf(os.Stderr, "%s%s %s\x1b[0m %s\n", color, f.At.Format("15:04:05.000"), arrow, f.Data)
}
