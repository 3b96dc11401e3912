package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	goruntime "runtime"

	"github.com/spf13/cobra"

	"github.com/leonletto/tellersim/internal/config"
	"github.com/leonletto/tellersim/internal/logger"
)

var (
	// Build info (set via ldflags).
	Version = "dev"
	Build   = "unknown"
)

var (
	// Global flags.
	flagConfig    string
	flagEnvFile   string
	flagLogLevel  string
	flagLogFormat string
	flagJSON      bool
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "tellersim",
		Short: "Teller terminal back-office simulator",
		Long: `tellersim stands in for the teller back office a self-service
terminal talks to. Terminals speak JSON-RPC 2.0 over a WebSocket and get
scripted replies plus simulated device notifications; observers watch the
traffic and inject notifications of their own.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&flagConfig, "config", config.DefaultConfigFile, "YAML config file (optional)")
	root.PersistentFlags().StringVar(&flagEnvFile, "env-file", config.DefaultEnvFile, ".env file (optional)")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Log level: debug, info, warn or error")
	root.PersistentFlags().StringVar(&flagLogFormat, "log-format", "", "Log format: json, text or auto")
	root.PersistentFlags().BoolVar(&flagJSON, "json", false, "JSON output for scripting")

	root.Version = Version
	root.SetVersionTemplate("tellersim v{{.Version}} (build: " + Build + ", " + goruntime.Version() + ")\n")

	root.AddCommand(serveCmd())
	root.AddCommand(clientCmd())
	root.AddCommand(observeCmd())
	root.AddCommand(loginBodyCmd())
	root.AddCommand(journalCmd())
	root.AddCommand(mcpCmd())
	root.AddCommand(versionCmd())
	return root
}

// loadConfig resolves the layered configuration and applies the global
// logging flags. Command flags are applied by the caller.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(config.Sources{YAMLPath: flagConfig, EnvFile: flagEnvFile})
	if err != nil {
		return nil, err
	}
	if flagLogLevel != "" {
		cfg.Logging.Level = flagLogLevel
	}
	if flagLogFormat != "" {
		cfg.Logging.Format = flagLogFormat
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) *slog.Logger {
	log := logger.New(cfg.Logging)
	slog.SetDefault(log)
	return log
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show tellersim version",
		RunE: func(cmd *cobra.Command, args []string) error {
			if flagJSON {
				return printJSON(map[string]string{
					"version":    Version,
					"build":      Build,
					"go_version": goruntime.Version(),
				})
			}
			fmt.Printf("tellersim v%s (build: %s, %s)\n", Version, Build, goruntime.Version())
			return nil
		},
	}
}
