package cmd

import (
	"encoding/json"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/goclaw/internal/sessionhost"
	"github.com/nextlevelbuilder/goclaw/pkg/protocol"
)

const hostConfigEnv = "GOCLAW_SESSION_HOST_CONFIG"

// sessionHostCmd is the detached process entry point spawned by
// internal/sessions.spawnHost. It is never invoked directly by a user.
func sessionHostCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:    "session-host",
		Short:  "Run a single channel's session host (internal use)",
		Hidden: true,
		Run: func(cmd *cobra.Command, args []string) {
			runSessionHost()
		},
	}
	return cmd
}

func runSessionHost() {
	raw := os.Getenv(hostConfigEnv)
	if raw == "" {
		os.Stderr.WriteString("session-host: missing " + hostConfigEnv + "\n")
		os.Exit(1)
	}

	var cfg protocol.HostConfig
	if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
		os.Stderr.WriteString("session-host: invalid config: " + err.Error() + "\n")
		os.Exit(1)
	}

	var logger *slog.Logger
	if cfg.StderrLog != "" {
		f, err := os.OpenFile(cfg.StderrLog, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err == nil {
			logger = slog.New(slog.NewTextHandler(f, nil))
		}
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}

	host := sessionhost.New(cfg, logger)
	if err := host.Run(); err != nil {
		logger.Error("session host exited with error", "error", err)
		os.Exit(1)
	}
}
