package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/leonletto/tellersim/internal/app"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the simulator",
		Long: `Run the simulator on one listener serving the terminal endpoint, the
observer endpoint, the login and upload API and the admin console.

SIGINT or SIGTERM closes every connection, drops pending device
notifications, flushes the journal and exits.

Examples:
  tellersim serve
  tellersim serve --addr :9000 --journal traffic.db
  TELLERSIM_REQUIRE_LOGIN=true tellersim serve`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			flags := cmd.Flags()
			if flags.Changed("addr") {
				cfg.Server.Addr, _ = flags.GetString("addr")
			}
			if flags.Changed("journal") {
				cfg.Journal.Path, _ = flags.GetString("journal")
			}
			if flags.Changed("require-login") {
				cfg.Auth.RequireLogin, _ = flags.GetBool("require-login")
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			log := newLogger(cfg)
			ctx := context.Background()
			sim, err := app.New(ctx, cfg, Version, log)
			if err != nil {
				return err
			}

			if !flagJSON {
				fmt.Fprintf(os.Stderr, "tellersim %s\n  terminals: ws://%s%s\n  observers: ws://%s%s\n  admin:     http://%s/admin/\n",
					Version, cfg.Server.Addr, cfg.Server.TerminalPath, cfg.Server.Addr, cfg.Server.ObserverPath, cfg.Server.Addr)
			}
			return sim.Run(ctx)
		},
	}

	cmd.Flags().String("addr", "", "Listen address (default from config, :8080)")
	cmd.Flags().String("journal", "", "SQLite traffic journal path")
	cmd.Flags().Bool("require-login", false, "Require a login token on the terminal endpoint")
	return cmd
}
