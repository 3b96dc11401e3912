package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestDefaultsAreValid(t *testing.T) {
	cfg := Defaults()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "/ws/tellerapp/client", cfg.Server.TerminalPath)
	assert.Equal(t, "/ws/admin", cfg.Server.ObserverPath)
	assert.Equal(t, int64(50<<20), cfg.Server.MaxBodyBytes)
	assert.Equal(t, int64(1001), cfg.Mock.SessionStart)
	assert.Equal(t, int64(2001), cfg.Mock.CallStart)
	assert.Equal(t, 2*time.Second, cfg.Delays.CardRead)
}

func TestLoadMissingFilesUsesDefaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(Sources{
		YAMLPath: filepath.Join(dir, "missing.yaml"),
		EnvFile:  filepath.Join(dir, "missing.env"),
		Getenv:   envMap(nil),
	})
	require.NoError(t, err)
	assert.Equal(t, Defaults(), *cfg)
}

func TestLoadPrecedence(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "tellersim.yaml")
	envPath := filepath.Join(dir, ".env")

	require.NoError(t, os.WriteFile(yamlPath, []byte(`
server:
  addr: ":9000"
  send_buffer: 64
auth:
  username: yaml-user
  require_login: true
delays:
  card_read: 5ms
logging:
  level: debug
`), 0o600))
	require.NoError(t, os.WriteFile(envPath, []byte(
		"TELLERSIM_ADDR=:9100\nTELLERSIM_AUTH_USERNAME=dotenv-user\nTELLERSIM_LOG_FORMAT=json\n"), 0o600))

	cfg, err := Load(Sources{
		YAMLPath: yamlPath,
		EnvFile:  envPath,
		Getenv: envMap(map[string]string{
			"TELLERSIM_ADDR":          ":9200",
			"TELLERSIM_JOURNAL_PATH":  "/tmp/journal.db",
			"TELLERSIM_OBSERVER_RATE": "2.5",
		}),
	})
	require.NoError(t, err)

	assert.Equal(t, ":9200", cfg.Server.Addr, "process env beats .env and yaml")
	assert.Equal(t, "dotenv-user", cfg.Auth.Username, ".env beats yaml")
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, 64, cfg.Server.SendBuffer)
	assert.True(t, cfg.Auth.RequireLogin)
	assert.Equal(t, 5*time.Millisecond, cfg.Delays.CardRead)
	assert.Equal(t, 3*time.Second, cfg.Delays.DispenseComplete, "unset fields keep defaults")
	assert.Equal(t, "/tmp/journal.db", cfg.Journal.Path)
	assert.InDelta(t, 2.5, cfg.Observer.PerSecond, 0.0001)
	require.NoError(t, cfg.Validate())
}

func TestLoadRejectsMalformedInput(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("server: [unclosed"), 0o600))

	_, err := Load(Sources{YAMLPath: bad, Getenv: envMap(nil)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config yaml")

	_, err = Load(Sources{Getenv: envMap(map[string]string{
		"TELLERSIM_SEND_BUFFER":      "lots",
		"TELLERSIM_SHUTDOWN_TIMEOUT": "soon",
	})})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TELLERSIM_SEND_BUFFER")
	assert.Contains(t, err.Error(), "TELLERSIM_SHUTDOWN_TIMEOUT")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"empty addr", func(c *Config) { c.Server.Addr = "" }, "server.addr"},
		{"relative terminal path", func(c *Config) { c.Server.TerminalPath = "ws" }, "terminal_path must start"},
		{"same paths", func(c *Config) { c.Server.ObserverPath = c.Server.TerminalPath }, "must differ"},
		{"zero send buffer", func(c *Config) { c.Server.SendBuffer = 0 }, "send_buffer"},
		{"missing password", func(c *Config) { c.Auth.Password = "" }, "auth.username and auth.password"},
		{"missing key", func(c *Config) { c.Auth.EncryptionKey = "" }, "encryption_key"},
		{"negative delay", func(c *Config) { c.Delays.ChatEcho = -time.Second }, "delays.chat_echo"},
		{"zero observer rate", func(c *Config) { c.Observer.PerSecond = 0 }, "observer.per_second"},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }, "logging.level"},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Defaults()
			tc.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}

	t.Run("disabled limiter skips rate checks", func(t *testing.T) {
		cfg := Defaults()
		cfg.Observer = RateConfig{Enabled: false}
		assert.NoError(t, cfg.Validate())
	})
}
