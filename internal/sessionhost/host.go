// Package sessionhost implements the detached, single-purpose process
// that owns one agent subprocess and one local socket for a single
// channel, auto-respawning the agent on exit while preserving its
// resumable session identifier.
package sessionhost

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"

	"github.com/nextlevelbuilder/goclaw/pkg/protocol"
)

// noisyStderrPrefixes are excluded from the per-channel stderr log
// and the client mirror — chatter the agent emits routinely.
var noisyStderrPrefixes = []string{
	"npm warn",
	"(node:",
}

// Host is a single running session host instance.
type Host struct {
	cfg    protocol.HostConfig
	logger *slog.Logger

	listener net.Listener
	stderrLog *os.File

	mu            sync.Mutex
	state         State
	agent         *agentProc
	client        net.Conn
	clientWriter  *bufio.Writer
	pending       [][]byte
	lastSessionID string
}

// New constructs a Host from its startup configuration.
func New(cfg protocol.HostConfig, logger *slog.Logger) *Host {
	if logger == nil {
		logger = slog.Default()
	}
	return &Host{cfg: cfg, logger: logger.With("channel", cfg.Channel), lastSessionID: cfg.ResumeID}
}

// Run executes the host's full lifetime: startup, agent spawn, accept
// loop, and shutdown on a termination signal. It blocks until shutdown.
func (h *Host) Run() error {
	if err := h.startup(); err != nil {
		return err
	}
	defer h.cleanup()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM)
	signal.Ignore(syscall.SIGINT)

	go h.acceptLoop()

	if err := h.spawnInitialAgent(); err != nil {
		h.logger.Error("sessionhost: initial agent spawn failed", "error", err)
	}

	<-sigCh
	h.mu.Lock()
	h.state = StateTerminating
	h.mu.Unlock()
	return nil
}

func (h *Host) startup() error {
	_ = os.Remove(h.cfg.SocketPath)

	if h.cfg.StderrLog != "" {
		f, err := os.OpenFile(h.cfg.StderrLog, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err == nil {
			h.stderrLog = f
		}
	}

	if err := os.WriteFile(h.cfg.PIDFile, []byte(strconv.Itoa(os.Getpid())), 0o644); err != nil {
		return fmt.Errorf("sessionhost: write pid file: %w", err)
	}

	ln, err := net.Listen("unix", h.cfg.SocketPath)
	if err != nil {
		return fmt.Errorf("sessionhost: listen: %w", err)
	}
	h.listener = ln
	return nil
}

func (h *Host) cleanup() {
	h.mu.Lock()
	agent := h.agent
	h.mu.Unlock()

	if agent != nil {
		_ = agent.cmd.Process.Kill()
	}
	if h.listener != nil {
		_ = h.listener.Close()
	}
	if h.stderrLog != nil {
		_ = h.stderrLog.Close()
	}
	_ = os.Remove(h.cfg.SocketPath)
	_ = os.Remove(h.cfg.PIDFile)
}

// acceptLoop implements the single-client model: a new connection
// replaces (and destroys) any existing client connection without
// killing the agent.
func (h *Host) acceptLoop() {
	for {
		conn, err := h.listener.Accept()
		if err != nil {
			return
		}

		h.mu.Lock()
		if h.client != nil {
			_ = h.client.Close()
		}
		h.client = conn
		h.clientWriter = bufio.NewWriter(conn)
		h.mu.Unlock()

		go h.readClient(conn)
	}
}

func (h *Host) readClient(conn net.Conn) {
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
	for scanner.Scan() {
		line := append([]byte(nil), scanner.Bytes()...)
		h.handleClientLine(conn, line)
	}
}

func (h *Host) handleClientLine(conn net.Conn, line []byte) {
	var frame struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(line, &frame); err != nil {
		h.logger.Warn("sessionhost: unparsable client line", "error", err)
		return
	}
	if frame.Type == protocol.FrameTypeInterrupt {
		h.mu.Lock()
		agent := h.agent
		h.mu.Unlock()
		if agent != nil {
			_ = agent.cmd.Process.Signal(syscall.SIGINT)
		}
		return
	}

	h.mu.Lock()
	// A client replaced mid-respawn is harmless: lines still flow
	// through the same pending/agent state, keyed to the host, not
	// the connection.
	_ = conn
	switch h.state {
	case StateReady:
		agent := h.agent
		h.mu.Unlock()
		if agent != nil {
			_, _ = agent.stdin.Write(append(line, '\n'))
		}
	case StateDead:
		h.pending = append(h.pending, line)
		h.state = StateSpawning
		h.mu.Unlock()
		go h.respawnAndFlush()
	default: // StateSpawning, StateTerminating
		h.pending = append(h.pending, line)
		h.mu.Unlock()
	}
}

func (h *Host) spawnInitialAgent() error {
	h.mu.Lock()
	resumeID := h.lastSessionID
	h.mu.Unlock()

	agent, err := spawnAgent(h.cfg.Agent, h.cfg.WorkingDir, resumeID)
	if err != nil {
		h.mu.Lock()
		h.state = StateDead
		h.mu.Unlock()
		return err
	}

	h.mu.Lock()
	h.agent = agent
	h.state = StateReady
	h.mu.Unlock()

	go h.forwardStdout(agent)
	go h.forwardStderr(agent)
	go h.watchExit(agent)
	return nil
}

func (h *Host) respawnAndFlush() {
	h.mu.Lock()
	resumeID := h.lastSessionID
	h.mu.Unlock()

	agent, err := spawnAgent(h.cfg.Agent, h.cfg.WorkingDir, resumeID)
	if err != nil {
		h.logger.Error("sessionhost: respawn failed", "error", err)
		h.mu.Lock()
		h.state = StateDead
		h.mu.Unlock()
		return
	}

	h.mu.Lock()
	h.agent = agent
	toFlush := h.pending
	h.pending = nil
	h.state = StateReady
	h.mu.Unlock()

	for _, line := range toFlush {
		if _, err := agent.stdin.Write(append(line, '\n')); err != nil {
			h.logger.Warn("sessionhost: failed to flush buffered message", "error", err)
			break
		}
	}

	go h.forwardStdout(agent)
	go h.forwardStderr(agent)
	go h.watchExit(agent)
}

// forwardStdout forwards every agent stdout line verbatim to the
// currently connected client, after capturing session_id in passing.
func (h *Host) forwardStdout(agent *agentProc) {
	for agent.stdout.Scan() {
		line := agent.stdout.Bytes()

		var head struct {
			Type      string `json:"type"`
			SessionID string `json:"session_id"`
		}
		if err := json.Unmarshal(line, &head); err == nil && head.Type == protocol.FrameTypeResult && head.SessionID != "" {
			h.mu.Lock()
			h.lastSessionID = head.SessionID
			h.mu.Unlock()
		}

		h.writeToClient(line)
	}
}

func (h *Host) forwardStderr(agent *agentProc) {
	for agent.stderr.Scan() {
		text := agent.stderr.Text()
		if isNoisyStderr(text) {
			continue
		}
		if h.stderrLog != nil {
			_, _ = h.stderrLog.WriteString(text + "\n")
		}
		truncated := text
		if len(truncated) > protocol.MaxStderrMirrorBytes {
			truncated = truncated[:protocol.MaxStderrMirrorBytes]
		}
		ev := protocol.NewStderrEvent(truncated)
		if data, err := json.Marshal(ev); err == nil {
			h.writeToClient(data)
		}
	}
}

func isNoisyStderr(line string) bool {
	for _, p := range noisyStderrPrefixes {
		if len(line) >= len(p) && line[:len(p)] == p {
			return true
		}
	}
	return false
}

func (h *Host) watchExit(agent *agentProc) {
	err := agent.cmd.Wait()
	h.logger.Info("sessionhost: agent exited", "error", err)

	exitCode := 0
	if agent.cmd.ProcessState != nil {
		exitCode = agent.cmd.ProcessState.ExitCode()
	}

	h.mu.Lock()
	if h.agent == agent {
		h.state = StateDead
	}
	h.mu.Unlock()

	ev := protocol.ResultEvent{
		Type:    protocol.FrameTypeResult,
		IsError: true,
		Text:    fmt.Sprintf("[Session ended (exit code %d). Next message will start a fresh session with resume.]", exitCode),
	}
	if data, err := json.Marshal(ev); err == nil {
		h.writeToClient(data)
	}
}

func (h *Host) writeToClient(line []byte) {
	h.mu.Lock()
	w := h.clientWriter
	h.mu.Unlock()
	if w == nil {
		return
	}
	_, _ = w.Write(line)
	_, _ = w.Write([]byte{'\n'})
	_ = w.Flush()
}
