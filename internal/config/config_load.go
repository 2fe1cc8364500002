package config

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/titanous/json5"
)

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Agent: AgentConfig{
			Binary:       "claude",
			Workspace:    "~/.goclaw/workspace",
			MaxTurns:     40,
			AllowedTools: FlexibleStringSlice{"Read", "Edit", "Bash"},
		},
		Sessions: SessionsConfig{
			SocketDir:         os.TempDir(),
			SessionRecordPath: "~/.goclaw/sessions.json",
			Product:           "goclaw",
			ReuseProbe:        "3s",
			SpawnPollInterval: "200ms",
			SpawnDeadline:     "10s",
		},
		Gateway: GatewayConfig{
			Bind:            "127.0.0.1:8787",
			RateLimitPerMin: 60,
		},
		Telegram: TelegramConfig{
			ChannelTag: "tg-",
		},
	}
}

// Load reads config from a JSON5 file, then overlays env vars. A
// missing file is tolerated; env overrides and defaults still apply.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := json5.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// applyEnvOverrides overlays env vars onto the config. Env vars take
// precedence over file values; secrets are never read from the file.
func (c *Config) applyEnvOverrides() {
	envStr := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	envStr("GOCLAW_AGENT_BINARY", &c.Agent.Binary)
	envStr("GOCLAW_WORKSPACE", &c.Agent.Workspace)

	envStr("GOCLAW_TELEGRAM_BOT_TOKEN", &c.Telegram.BotToken)
	if c.Telegram.BotToken != "" {
		c.Telegram.Enabled = true
	}

	envStr("GOCLAW_SESSION_RECORD_PATH", &c.Sessions.SessionRecordPath)
	envStr("GOCLAW_SOCKET_DIR", &c.Sessions.SocketDir)

	envStr("GOCLAW_GATEWAY_BIND", &c.Gateway.Bind)
	if v := os.Getenv("GOCLAW_GATEWAY_ALLOWED_CIDRS"); v != "" {
		c.Gateway.AllowedCIDRs = strings.Split(v, ",")
	}

	envStr("GOCLAW_TELEMETRY_ENDPOINT", &c.Telemetry.Endpoint)
	envStr("GOCLAW_TELEMETRY_PROTOCOL", &c.Telemetry.Protocol)
	envStr("GOCLAW_TELEMETRY_SERVICE_NAME", &c.Telemetry.ServiceName)
	if v := os.Getenv("GOCLAW_TELEMETRY_ENABLED"); v != "" {
		c.Telemetry.Enabled = v == "true" || v == "1"
	}
	if v := os.Getenv("GOCLAW_TELEMETRY_INSECURE"); v != "" {
		c.Telemetry.Insecure = v == "true" || v == "1"
	}

	envStr("GOCLAW_TSNET_HOSTNAME", &c.Tailscale.Hostname)
	envStr("GOCLAW_TSNET_AUTH_KEY", &c.Tailscale.AuthKey)
	envStr("GOCLAW_TSNET_DIR", &c.Tailscale.StateDir)
	if c.Tailscale.AuthKey != "" {
		c.Tailscale.Enabled = true
	}
}

// Save writes the config to a JSON file.
func Save(path string, cfg *Config) error {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	return os.WriteFile(path, data, 0600)
}

// Hash returns a SHA-256 hash of the config for optimistic concurrency.
func (c *Config) Hash() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	data, _ := json.Marshal(c)
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h[:8])
}

// WorkspacePath returns the expanded agent workspace path.
func (c *Config) WorkspacePath() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return ExpandHome(c.Agent.Workspace)
}

// ApplyEnvOverrides re-applies environment variable overrides onto the
// config. Call after a hot-reload to restore runtime secrets from env.
func (c *Config) ApplyEnvOverrides() {
	c.applyEnvOverrides()
}

// ExpandHome replaces a leading ~ with the user home directory.
func ExpandHome(path string) string {
	if path == "" || path[0] != '~' {
		return path
	}
	home, _ := os.UserHomeDir()
	if len(path) > 1 && path[1] == '/' {
		return home + path[1:]
	}
	return home
}
