package sessions

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"syscall"

	"github.com/nextlevelbuilder/goclaw/pkg/protocol"
)

// hostConfigEnv carries the single JSON configuration argument to a
// freshly spawned session host, per spec §4.2 Startup.
const hostConfigEnv = "GOCLAW_SESSION_HOST_CONFIG"

// spawnHost launches this same binary's hidden "session-host"
// subcommand as a detached child: no shared session, no controlling
// terminal, stdio disconnected, parent does not await it (spec §9
// Detached child survival).
func spawnHost(cfg protocol.HostConfig) error {
	data, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal host config: %w", err)
	}

	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("resolve executable: %w", err)
	}

	cmd := exec.Command(exe, "session-host")
	cmd.Env = sanitizedHostEnv(string(data))
	cmd.Dir = cfg.WorkingDir
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := cmd.Start(); err != nil {
		return err
	}
	return cmd.Process.Release()
}

// sanitizedHostEnv strips ambient credential variables that would
// steer the agent subprocess onto a different billing path and sets
// the marker variables that pin it to the intended mode, per spec §6
// Environment.
func sanitizedHostEnv(hostConfigJSON string) []string {
	blocked := map[string]bool{
		"ANTHROPIC_API_KEY":     true,
		"OPENAI_API_KEY":        true,
		"AWS_ACCESS_KEY_ID":     true,
		"AWS_SECRET_ACCESS_KEY": true,
	}
	base := os.Environ()
	out := make([]string, 0, len(base)+3)
	for _, kv := range base {
		k, _, _ := strings.Cut(kv, "=")
		if blocked[k] {
			continue
		}
		out = append(out, kv)
	}
	out = append(out,
		hostConfigEnv+"="+hostConfigJSON,
		"GOCLAW_SESSION_HOST=1",
		"GOCLAW_NONINTERACTIVE=1",
	)
	return out
}

// terminateHost reads the PID from pidFile and sends SIGTERM. Missing
// or unparsable PID files are not errors worth surfacing beyond a
// debug log — the host may simply not exist.
func terminateHost(pidFile string) error {
	data, err := os.ReadFile(pidFile)
	if err != nil {
		return err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return fmt.Errorf("parse pid file %s: %w", pidFile, err)
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	return proc.Signal(syscall.SIGTERM)
}
