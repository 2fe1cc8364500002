package config

import (
	"encoding/json"
	"fmt"
	"sync"
)

// FlexibleStringSlice accepts both ["str"] and [123] in JSON.
type FlexibleStringSlice []string

func (f *FlexibleStringSlice) UnmarshalJSON(data []byte) error {
	var ss []string
	if err := json.Unmarshal(data, &ss); err == nil {
		*f = ss
		return nil
	}
	var raw []interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	result := make([]string, 0, len(raw))
	for _, v := range raw {
		switch val := v.(type) {
		case string:
			result = append(result, val)
		case float64:
			result = append(result, fmt.Sprintf("%.0f", val))
		default:
			result = append(result, fmt.Sprintf("%v", val))
		}
	}
	*f = result
	return nil
}

// Config is the root configuration for the gateway daemon.
type Config struct {
	Agent     AgentConfig     `json:"agent"`
	Sessions  SessionsConfig  `json:"sessions"`
	Gateway   GatewayConfig   `json:"gateway"`
	Telegram  TelegramConfig  `json:"telegram,omitempty"`
	Cron      CronConfig      `json:"cron,omitempty"`
	Telemetry TelemetryConfig `json:"telemetry,omitempty"`
	Tailscale TailscaleConfig `json:"tailscale,omitempty"`

	mu sync.RWMutex
}

// AgentConfig describes how to invoke the external agent binary.
// Mirrors the CLI-invocation contract in pkg/protocol.AgentCLIParams.
type AgentConfig struct {
	Binary             string              `json:"binary"`
	Args               FlexibleStringSlice `json:"args,omitempty"`
	Workspace          string              `json:"workspace"`
	MaxTurns           int                 `json:"max_turns,omitempty"`
	AllowedTools       FlexibleStringSlice `json:"allowed_tools,omitempty"`
	SystemPromptAppend string              `json:"system_prompt_append,omitempty"`
}

// SessionsConfig configures session-host bookkeeping paths and timing.
type SessionsConfig struct {
	SocketDir         string `json:"socket_dir,omitempty"`          // default os.TempDir()
	SessionRecordPath string `json:"session_record_path,omitempty"` // default ~/.goclaw/sessions.json
	Product           string `json:"product,omitempty"`             // socket/pid filename prefix, default "goclaw"
	ReuseProbe        string `json:"reuse_probe,omitempty"`         // duration string, default "3s"
	SpawnPollInterval string `json:"spawn_poll_interval,omitempty"` // duration string, default "200ms"
	SpawnDeadline     string `json:"spawn_deadline,omitempty"`      // duration string, default "10s"
}

// GatewayConfig configures the synchronous HTTP transport adapter.
type GatewayConfig struct {
	Bind            string   `json:"bind,omitempty"` // default "127.0.0.1:8787"
	AllowedCIDRs    []string `json:"allowed_cidrs,omitempty"`
	RateLimitPerMin int      `json:"rate_limit_per_min,omitempty"` // default 60
}

// TelegramConfig configures the long-poll bot transport adapter.
type TelegramConfig struct {
	Enabled    bool   `json:"enabled,omitempty"`
	BotToken   string `json:"-"` // from env GOCLAW_TELEGRAM_BOT_TOKEN only
	ChannelTag string `json:"channel_tag,omitempty"` // channel-key prefix, default "tg-"
}

// TelemetryConfig configures OpenTelemetry export for traces and spans.
type TelemetryConfig struct {
	Enabled     bool              `json:"enabled,omitempty"`
	Endpoint    string            `json:"endpoint,omitempty"`
	Protocol    string            `json:"protocol,omitempty"` // "grpc" (default) or "http"
	Insecure    bool              `json:"insecure,omitempty"`
	ServiceName string            `json:"service_name,omitempty"`
	Headers     map[string]string `json:"headers,omitempty"`
}

// CronConfig configures the heartbeat job scheduler.
type CronConfig struct {
	Heartbeats []HeartbeatJob `json:"heartbeats,omitempty"`
}

// HeartbeatJob is one gronx-scheduled push, delivered through the
// Push Registry rather than the Channel Manager.
type HeartbeatJob struct {
	Channel  string `json:"channel"`
	Schedule string `json:"schedule"` // cron expression, e.g. "*/30 * * * *"
	Text     string `json:"text"`
}

// TailscaleConfig configures the optional tsnet listener for the
// gateway transport adapter.
type TailscaleConfig struct {
	Enabled   bool   `json:"enabled,omitempty"`
	Hostname  string `json:"hostname,omitempty"`
	StateDir  string `json:"state_dir,omitempty"`
	AuthKey   string `json:"-"` // from env GOCLAW_TSNET_AUTH_KEY only
	Ephemeral bool   `json:"ephemeral,omitempty"`
}

// ReplaceFrom copies all data fields from src into c, preserving c's mutex.
func (c *Config) ReplaceFrom(src *Config) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Agent = src.Agent
	c.Sessions = src.Sessions
	c.Gateway = src.Gateway
	c.Telegram = src.Telegram
	c.Cron = src.Cron
	c.Telemetry = src.Telemetry
	c.Tailscale = src.Tailscale
}

// Snapshot returns a copy of the config safe to read without holding c's lock.
func (c *Config) Snapshot() Config {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cp := *c
	cp.mu = sync.RWMutex{}
	return cp
}
