package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/leonletto/tellersim/internal/auth"
)

func loginBodyCmd() *cobra.Command {
	var ip string

	cmd := &cobra.Command{
		Use:   "login-body",
		Short: "Print a POST /login body for the configured credentials",
		Long: `Encrypt the configured username and password with the shared key the
way a terminal does, and print the resulting /login request body.

Example:
  curl -s localhost:8080/login -H 'Content-Type: application/json' \
    -d "$(tellersim login-body)"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if flags := cmd.Flags(); flags.Changed("username") {
				cfg.Auth.Username, _ = flags.GetString("username")
			}
			if flags := cmd.Flags(); flags.Changed("password") {
				cfg.Auth.Password, _ = flags.GetString("password")
			}

			body, err := auth.NewLoginBody(auth.Credentials{
				Username: cfg.Auth.Username,
				Password: cfg.Auth.Password,
			}, cfg.Auth.EncryptionKey, ip)
			if err != nil {
				return fmt.Errorf("encrypt credentials: %w", err)
			}
			return printJSON(body)
		},
	}

	cmd.Flags().String("username", "", "Username (default from config)")
	cmd.Flags().String("password", "", "Password (default from config)")
	cmd.Flags().StringVar(&ip, "ip", "127.0.0.1", "Client IP to include")
	return cmd
}
