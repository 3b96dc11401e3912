// Package config loads the simulator configuration from defaults, an
// optional YAML file, an optional .env file and TELLERSIM_* variables.
package config

import "time"

// Config is the resolved simulator configuration.
type Config struct {
	Server    ServerConfig  `yaml:"server"`
	Auth      AuthConfig    `yaml:"auth"`
	Mock      MockConfig    `yaml:"mock"`
	Delays    DelaysConfig  `yaml:"delays"`
	Observer  RateConfig    `yaml:"observer"`
	LoginRate RateConfig    `yaml:"login_rate"`
	Journal   JournalConfig `yaml:"journal"`
	Logging   LoggingConfig `yaml:"logging"`
}

// ServerConfig holds listener and connection limits.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	TerminalPath    string        `yaml:"terminal_path"`
	ObserverPath    string        `yaml:"observer_path"`
	SendBuffer      int           `yaml:"send_buffer"`
	MaxMessageBytes int64         `yaml:"max_message_bytes"`
	MaxBodyBytes    int64         `yaml:"max_body_bytes"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// AuthConfig holds the shared login secret and expected credentials.
type AuthConfig struct {
	Username      string        `yaml:"username"`
	Password      string        `yaml:"password"`
	EncryptionKey string        `yaml:"encryption_key"`
	RequireLogin  bool          `yaml:"require_login"`
	SessionTTL    time.Duration `yaml:"session_ttl"`
}

// MockConfig seeds the generated identifiers and the mock teller.
type MockConfig struct {
	SessionStart    int64  `yaml:"session_start"`
	CallStart       int64  `yaml:"call_start"`
	ImageStart      int64  `yaml:"image_start"`
	TellerID        int64  `yaml:"teller_id"`
	TellerFirstName string `yaml:"teller_first_name"`
	TellerLastName  string `yaml:"teller_last_name"`
	TellerUsername  string `yaml:"teller_username"`
}

// DelaysConfig holds the simulated device latencies.
type DelaysConfig struct {
	CallEstablished  time.Duration `yaml:"call_established"`
	CallReestablish  time.Duration `yaml:"call_reestablish"`
	CallEnded        time.Duration `yaml:"call_ended"`
	CommandComplete  time.Duration `yaml:"command_complete"`
	CardRead         time.Duration `yaml:"card_read"`
	DispenseComplete time.Duration `yaml:"dispense_complete"`
	SignatureCapture time.Duration `yaml:"signature_capture"`
	ChatEcho         time.Duration `yaml:"chat_echo"`
}

// RateConfig is a token bucket setting.
type RateConfig struct {
	Enabled   bool    `yaml:"enabled"`
	PerSecond float64 `yaml:"per_second"`
	Burst     int     `yaml:"burst"`
}

// JournalConfig enables the SQLite traffic journal when Path is set.
type JournalConfig struct {
	Path   string `yaml:"path"`
	Buffer int    `yaml:"buffer"`
}

// LoggingConfig selects the log level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Addr:            ":8080",
			TerminalPath:    "/ws/tellerapp/client",
			ObserverPath:    "/ws/admin",
			SendBuffer:      256,
			MaxMessageBytes: 1 << 20,
			MaxBodyBytes:    50 << 20,
			ShutdownTimeout: 10 * time.Second,
		},
		Auth: AuthConfig{
			Username:      "IK385001_T2",
			Password:      "IK385001_T2",
			EncryptionKey: "/A?D(G+KbPeSgVkYp3s6v9y$B&E)H@Mc",
			SessionTTL:    12 * time.Hour,
		},
		Mock: MockConfig{
			SessionStart:    1001,
			CallStart:       2001,
			ImageStart:      1,
			TellerID:        100,
			TellerFirstName: "John",
			TellerLastName:  "Doe",
			TellerUsername:  "john.doe",
		},
		Delays: DelaysConfig{
			CallEstablished:  1000 * time.Millisecond,
			CallReestablish:  500 * time.Millisecond,
			CallEnded:        500 * time.Millisecond,
			CommandComplete:  1000 * time.Millisecond,
			CardRead:         2000 * time.Millisecond,
			DispenseComplete: 3000 * time.Millisecond,
			SignatureCapture: 2000 * time.Millisecond,
			ChatEcho:         500 * time.Millisecond,
		},
		Observer:  RateConfig{Enabled: true, PerSecond: 10, Burst: 20},
		LoginRate: RateConfig{Enabled: true, PerSecond: 1, Burst: 5},
		Journal:   JournalConfig{Buffer: 1024},
		Logging:   LoggingConfig{Level: "info", Format: "auto"},
	}
}
