// Package sessions implements the Channel Manager: the per-channel
// dispatch engine that serializes turns against a session host's
// socket, coalesces backlogged messages, and persists resumable
// session identifiers across host and daemon restarts.
package sessions

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/nextlevelbuilder/goclaw/internal/bus"
	"github.com/nextlevelbuilder/goclaw/pkg/protocol"
)

// Config carries everything the Channel Manager needs to place and
// reconnect to session hosts. Constructed once at daemon start and
// passed explicitly — no ambient singleton (spec §9).
type Config struct {
	SocketDir         string
	SessionRecordPath string
	Product           string
	WorkingDir        string
	Agent             protocol.AgentCLIParams
	ReuseProbe        time.Duration
	SpawnPollInterval time.Duration
	SpawnDeadline     time.Duration
}

func (c Config) withDefaults() Config {
	if c.Product == "" {
		c.Product = "goclaw"
	}
	if c.SocketDir == "" {
		c.SocketDir = os.TempDir()
	}
	if c.ReuseProbe <= 0 {
		c.ReuseProbe = 3 * time.Second
	}
	if c.SpawnPollInterval <= 0 {
		c.SpawnPollInterval = 200 * time.Millisecond
	}
	if c.SpawnDeadline <= 0 {
		c.SpawnDeadline = 10 * time.Second
	}
	return c
}

// Manager is the Channel Manager. It owns the managed-channel map and
// the session-record map exclusively (spec §3 Ownership).
type Manager struct {
	cfg    Config
	logger *slog.Logger
	tracer trace.Tracer

	mu       sync.Mutex
	channels map[string]*managedChannel
	spawning map[string]chan struct{}

	recordMu sync.Mutex
	record   map[string]string
}

// New constructs a Manager, seeding the session record from disk
// (spec: "read once at daemon start to seed future resume attempts").
func New(cfg Config, logger *slog.Logger) *Manager {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		cfg:      cfg,
		logger:   logger,
		tracer:   otel.Tracer("goclaw/sessions"),
		channels: make(map[string]*managedChannel),
		spawning: make(map[string]chan struct{}),
		record:   loadSessionRecord(cfg.SessionRecordPath),
	}
}

// Send dispatches content to channel, spawning or reconnecting to its
// session host as needed. Non-blocking to call in the sense that
// concurrent sends for distinct channels never wait on one another;
// this call itself blocks until the future resolves, mirroring the
// spec's Future<Result> via a synchronous return plus context
// cancellation.
func (m *Manager) Send(ctx context.Context, channel string, content any, chanCtx *bus.ChannelContext, onEvent EventHandler) (Result, error) {
	ctx, span := m.tracer.Start(ctx, "channel.dispatch", trace.WithAttributes(
		attribute.String("channel", channel),
	))
	defer span.End()

	mc, err := m.connectOrSpawn(ctx, channel)
	if err != nil {
		span.RecordError(err)
		return Result{}, err
	}

	qm := &queuedMessage{
		content:  withContextPrefix(content, chanCtx),
		onEvent:  onEvent,
		resultCh: make(chan sendOutcome, 1),
	}

	mc.mu.Lock()
	if mc.closed {
		mc.mu.Unlock()
		return Result{}, ErrChannelDisconnected
	}
	if !mc.busy {
		mc.dispatchLocked(m, qm)
	} else {
		mc.queue = append(mc.queue, qm)
	}
	mc.mu.Unlock()

	select {
	case out := <-qm.resultCh:
		if out.err != nil {
			span.RecordError(out.err)
		}
		span.SetAttributes(attribute.Bool("coalesced", out.result.Coalesced))
		return out.result, out.err
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// connectOrSpawn implements spec §4.1's first-send algorithm:
// reuse-probe, stale-socket cleanup, detached spawn, and the
// pending-connections dedup map for concurrent callers of the same
// channel.
func (m *Manager) connectOrSpawn(ctx context.Context, channel string) (*managedChannel, error) {
	m.mu.Lock()
	if mc, ok := m.channels[channel]; ok {
		m.mu.Unlock()
		return mc, nil
	}
	if wait, ok := m.spawning[channel]; ok {
		m.mu.Unlock()
		select {
		case <-wait:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		m.mu.Lock()
		mc, ok := m.channels[channel]
		m.mu.Unlock()
		if !ok {
			return nil, ErrHostUnreachable
		}
		return mc, nil
	}
	done := make(chan struct{})
	m.spawning[channel] = done
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		delete(m.spawning, channel)
		m.mu.Unlock()
		close(done)
	}()

	mc, err := m.establishHost(channel)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.channels[channel] = mc
	m.mu.Unlock()
	go mc.readLoop(m)

	return mc, nil
}

func (m *Manager) socketPath(channel string) string {
	return filepath.Join(m.cfg.SocketDir, fmt.Sprintf("%s-%s.sock", m.cfg.Product, sanitizeKey(channel)))
}

func (m *Manager) pidPath(channel string) string {
	return filepath.Join(m.cfg.SocketDir, fmt.Sprintf("%s-%s.pid", m.cfg.Product, sanitizeKey(channel)))
}

func (m *Manager) establishHost(channel string) (*managedChannel, error) {
	sockPath := m.socketPath(channel)

	if conn, err := net.DialTimeout("unix", sockPath, m.cfg.ReuseProbe); err == nil {
		return newManagedChannel(channel, conn), nil
	}

	_ = os.Remove(sockPath)

	hostCfg := protocol.HostConfig{
		Channel:    channel,
		SocketPath: sockPath,
		PIDFile:    m.pidPath(channel),
		WorkingDir: m.cfg.WorkingDir,
		Agent:      m.cfg.Agent,
		ResumeID:   m.getSessionID(channel),
	}
	if err := spawnHost(hostCfg); err != nil {
		return nil, fmt.Errorf("sessions: spawn session host: %w", err)
	}

	deadline := time.Now().Add(m.cfg.SpawnDeadline)
	for time.Now().Before(deadline) {
		conn, err := net.DialTimeout("unix", sockPath, m.cfg.SpawnPollInterval)
		if err == nil {
			return newManagedChannel(channel, conn), nil
		}
		time.Sleep(m.cfg.SpawnPollInterval)
	}
	return nil, ErrHostUnreachable
}

func (m *Manager) forgetChannel(channel string, mc *managedChannel) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.channels[channel] == mc {
		delete(m.channels, channel)
	}
}

func (m *Manager) getSessionID(channel string) string {
	m.recordMu.Lock()
	defer m.recordMu.Unlock()
	return m.record[channel]
}

func (m *Manager) setSessionID(channel, id string) {
	m.recordMu.Lock()
	m.record[channel] = id
	snapshot := make(map[string]string, len(m.record))
	for k, v := range m.record {
		snapshot[k] = v
	}
	m.recordMu.Unlock()

	if err := saveSessionRecordAtomic(m.cfg.SessionRecordPath, snapshot); err != nil {
		m.logger.Warn("sessions: failed to persist session record", "channel", channel, "error", err)
	}
}

// Shutdown closes every host connection without killing the hosts.
// Used on hot reload: hosts remain running for the next daemon to
// reconnect to.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	channels := make([]*managedChannel, 0, len(m.channels))
	for _, mc := range m.channels {
		channels = append(channels, mc)
	}
	m.channels = make(map[string]*managedChannel)
	m.mu.Unlock()

	for _, mc := range channels {
		mc.mu.Lock()
		mc.closed = true
		conn := mc.conn
		mc.mu.Unlock()
		if conn != nil {
			_ = conn.Close()
		}
	}
}

// ShutdownHosts closes connections (as Shutdown) and additionally
// sends a termination signal to every known session host PID, found
// via PID files keyed by the union of currently-connected channels
// and the persisted session-record keys. Used on interactive
// interrupt (Ctrl+C).
func (m *Manager) ShutdownHosts() {
	m.mu.Lock()
	known := make(map[string]struct{}, len(m.channels))
	for ch := range m.channels {
		known[ch] = struct{}{}
	}
	m.mu.Unlock()

	m.recordMu.Lock()
	for ch := range m.record {
		known[ch] = struct{}{}
	}
	m.recordMu.Unlock()

	m.Shutdown()

	for ch := range known {
		if err := terminateHost(m.pidPath(ch)); err != nil {
			m.logger.Debug("sessions: terminate host", "channel", ch, "error", err)
		}
	}
}
