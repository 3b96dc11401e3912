package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Default file locations. Both files are optional.
const (
	DefaultConfigFile = "tellersim.yaml"
	DefaultEnvFile    = ".env"
)

// EnvPrefix prefixes every environment variable the loader reads.
const EnvPrefix = "TELLERSIM_"

// Sources names the files Load reads. Empty paths are skipped.
type Sources struct {
	YAMLPath string
	EnvFile  string
	// Getenv overrides os.Getenv, for tests.
	Getenv func(string) string
}

// Load returns a Config using the hierarchy: defaults < YAML < .env < ENV.
// Flags are applied by the caller, which must call Validate afterwards.
func Load(src Sources) (*Config, error) {
	cfg := Defaults()

	if src.YAMLPath != "" {
		if err := loadYAML(&cfg, src.YAMLPath); err != nil {
			return nil, fmt.Errorf("config yaml: %w", err)
		}
	}

	dotenv := map[string]string{}
	if src.EnvFile != "" {
		m, err := godotenv.Read(src.EnvFile)
		switch {
		case err == nil:
			dotenv = m
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("config env file %s: %w", src.EnvFile, err)
		}
	}

	getenv := src.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	lookup := func(key string) string {
		if v := getenv(key); v != "" {
			return v
		}
		return dotenv[key]
	}

	if err := loadEnv(&cfg, lookup); err != nil {
		return nil, fmt.Errorf("config env: %w", err)
	}
	return &cfg, nil
}

// loadYAML reads the YAML file and unmarshals it over cfg.
// Returns nil if the file does not exist.
func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: operator-supplied config path
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

type envReader struct {
	lookup func(string) string
	errs   []error
}

// loadEnv overlays TELLERSIM_* variables onto cfg. Unset or empty values
// leave the current setting alone; malformed values are reported.
func loadEnv(cfg *Config, lookup func(string) string) error {
	r := &envReader{lookup: lookup}

	r.setString(&cfg.Server.Addr, "ADDR")
	r.setString(&cfg.Server.TerminalPath, "TERMINAL_PATH")
	r.setString(&cfg.Server.ObserverPath, "OBSERVER_PATH")
	r.setInt(&cfg.Server.SendBuffer, "SEND_BUFFER")
	r.setInt64(&cfg.Server.MaxMessageBytes, "MAX_MESSAGE_BYTES")
	r.setInt64(&cfg.Server.MaxBodyBytes, "MAX_BODY_BYTES")
	r.setDuration(&cfg.Server.ShutdownTimeout, "SHUTDOWN_TIMEOUT")

	r.setString(&cfg.Auth.Username, "AUTH_USERNAME")
	r.setString(&cfg.Auth.Password, "AUTH_PASSWORD")
	r.setString(&cfg.Auth.EncryptionKey, "ENCRYPTION_KEY")
	r.setBool(&cfg.Auth.RequireLogin, "REQUIRE_LOGIN")
	r.setDuration(&cfg.Auth.SessionTTL, "SESSION_TTL")

	r.setInt64(&cfg.Mock.SessionStart, "SESSION_START")
	r.setInt64(&cfg.Mock.CallStart, "CALL_START")
	r.setInt64(&cfg.Mock.ImageStart, "IMAGE_START")
	r.setInt64(&cfg.Mock.TellerID, "TELLER_ID")
	r.setString(&cfg.Mock.TellerFirstName, "TELLER_FIRST_NAME")
	r.setString(&cfg.Mock.TellerLastName, "TELLER_LAST_NAME")
	r.setString(&cfg.Mock.TellerUsername, "TELLER_USERNAME")

	// Delays
	r.setDuration(&cfg.Delays.CallEstablished, "DELAY_CALL_ESTABLISHED")
	r.setDuration(&cfg.Delays.CallReestablish, "DELAY_CALL_REESTABLISH")
	r.setDuration(&cfg.Delays.CallEnded, "DELAY_CALL_ENDED")
	r.setDuration(&cfg.Delays.CommandComplete, "DELAY_COMMAND_COMPLETE")
	r.setDuration(&cfg.Delays.CardRead, "DELAY_CARD_READ")
	r.setDuration(&cfg.Delays.DispenseComplete, "DELAY_DISPENSE_COMPLETE")
	r.setDuration(&cfg.Delays.SignatureCapture, "DELAY_SIGNATURE_CAPTURE")
	r.setDuration(&cfg.Delays.ChatEcho, "DELAY_CHAT_ECHO")

	r.setBool(&cfg.Observer.Enabled, "OBSERVER_RATE_ENABLED")
	r.setFloat64(&cfg.Observer.PerSecond, "OBSERVER_RATE")
	r.setInt(&cfg.Observer.Burst, "OBSERVER_BURST")
	r.setBool(&cfg.LoginRate.Enabled, "LOGIN_RATE_ENABLED")
	r.setFloat64(&cfg.LoginRate.PerSecond, "LOGIN_RATE")
	r.setInt(&cfg.LoginRate.Burst, "LOGIN_BURST")

	r.setString(&cfg.Journal.Path, "JOURNAL_PATH")
	r.setInt(&cfg.Journal.Buffer, "JOURNAL_BUFFER")

	r.setString(&cfg.Logging.Level, "LOG_LEVEL")
	r.setString(&cfg.Logging.Format, "LOG_FORMAT")

	return errors.Join(r.errs...)
}

func (r *envReader) get(key string) (string, string, bool) {
	name := EnvPrefix + key
	v := strings.TrimSpace(r.lookup(name))
	return name, v, v != ""
}

func (r *envReader) setString(dst *string, key string) {
	if _, v, ok := r.get(key); ok {
		*dst = v
	}
}

func (r *envReader) setInt(dst *int, key string) {
	if name, v, ok := r.get(key); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			r.errs = append(r.errs, fmt.Errorf("%s: %w", name, err))
			return
		}
		*dst = n
	}
}

func (r *envReader) setInt64(dst *int64, key string) {
	if name, v, ok := r.get(key); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			r.errs = append(r.errs, fmt.Errorf("%s: %w", name, err))
			return
		}
		*dst = n
	}
}

func (r *envReader) setFloat64(dst *float64, key string) {
	if name, v, ok := r.get(key); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			r.errs = append(r.errs, fmt.Errorf("%s: %w", name, err))
			return
		}
		*dst = f
	}
}

func (r *envReader) setBool(dst *bool, key string) {
	if name, v, ok := r.get(key); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			r.errs = append(r.errs, fmt.Errorf("%s: %w", name, err))
			return
		}
		*dst = b
	}
}

func (r *envReader) setDuration(dst *time.Duration, key string) {
	if name, v, ok := r.get(key); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			r.errs = append(r.errs, fmt.Errorf("%s: %w", name, err))
			return
		}
		*dst = d
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	var errs []error
	check := func(bad bool, msg string) {
		if bad {
			errs = append(errs, errors.New(msg))
		}
	}

	check(c.Server.Addr == "", "server.addr is required")
	check(!strings.HasPrefix(c.Server.TerminalPath, "/"), "server.terminal_path must start with /")
	check(!strings.HasPrefix(c.Server.ObserverPath, "/"), "server.observer_path must start with /")
	check(c.Server.TerminalPath == c.Server.ObserverPath, "server.terminal_path and server.observer_path must differ")
	check(c.Server.SendBuffer < 1, "server.send_buffer must be >= 1")
	check(c.Server.MaxMessageBytes < 1, "server.max_message_bytes must be >= 1")
	check(c.Server.MaxBodyBytes < 1, "server.max_body_bytes must be >= 1")
	check(c.Server.ShutdownTimeout <= 0, "server.shutdown_timeout must be positive")

	check(c.Auth.Username == "" || c.Auth.Password == "", "auth.username and auth.password are required")
	check(c.Auth.EncryptionKey == "", "auth.encryption_key is required")
	check(c.Auth.SessionTTL <= 0, "auth.session_ttl must be positive")

	delays := []struct {
		name string
		d    time.Duration
	}{
		{"call_established", c.Delays.CallEstablished},
		{"call_reestablish", c.Delays.CallReestablish},
		{"call_ended", c.Delays.CallEnded},
		{"command_complete", c.Delays.CommandComplete},
		{"card_read", c.Delays.CardRead},
		{"dispense_complete", c.Delays.DispenseComplete},
		{"signature_capture", c.Delays.SignatureCapture},
		{"chat_echo", c.Delays.ChatEcho},
	}
	for _, d := range delays {
		check(d.d < 0, "delays."+d.name+" must not be negative")
	}

	checkRate := func(name string, rc RateConfig) {
		if rc.Enabled {
			check(rc.PerSecond <= 0, name+".per_second must be positive")
			check(rc.Burst < 1, name+".burst must be >= 1")
		}
	}
	checkRate("observer", c.Observer)
	checkRate("login_rate", c.LoginRate)

	check(c.Journal.Buffer < 1, "journal.buffer must be >= 1")

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("logging.level %q: must be debug, info, warn or error", c.Logging.Level))
	}
	switch c.Logging.Format {
	case "json", "text", "auto":
	default:
		errs = append(errs, fmt.Errorf("logging.format %q: must be json, text or auto", c.Logging.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validate: %w", errors.Join(errs...))
	}
	return nil
}
