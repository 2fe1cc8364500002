package sessions

import (
	"bufio"
	"encoding/json"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/nextlevelbuilder/goclaw/pkg/protocol"
)

// EventHandler receives each intermediate line the session host
// forwards during a dispatch, already parsed into a generic payload.
type EventHandler func(event map[string]any)

// queuedMessage is one pending or in-flight send: the resolver is the
// suspended caller of Send.
type queuedMessage struct {
	content  any
	onEvent  EventHandler
	resultCh chan sendOutcome
}

type sendOutcome struct {
	result Result
	err    error
}

// managedChannel holds all per-channel dispatch state. Invariants
// (spec §3): at most one dispatch in flight (busy ⇒ exactly one);
// the queue holds only messages that arrived while busy; current is
// non-nil iff busy.
type managedChannel struct {
	key string

	mu      sync.Mutex
	conn    net.Conn
	busy    bool
	queue   []*queuedMessage
	current *queuedMessage
	start   time.Time
	closed  bool
}

func newManagedChannel(key string, conn net.Conn) *managedChannel {
	return &managedChannel{key: key, conn: conn}
}

// readLoop consumes framed lines from the host socket for the
// lifetime of the connection. It is the sole writer of busy/current
// transitions on the result path, and is started once per connection.
func (mc *managedChannel) readLoop(m *Manager) {
	scanner := bufio.NewScanner(mc.conn)
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(strings.TrimSpace(string(line))) == 0 {
			continue
		}
		mc.handleLine(m, line)
	}
	mc.disconnect(m, ErrChannelDisconnected)
}

func (mc *managedChannel) handleLine(m *Manager, line []byte) {
	var head struct {
		Type      string `json:"type"`
		SessionID string `json:"session_id"`
	}
	if err := json.Unmarshal(line, &head); err != nil {
		m.logger.Warn("sessions: unparsable line from host", "channel", mc.key, "error", err)
		return
	}

	switch head.Type {
	case protocol.FrameTypeResult:
		var ev protocol.ResultEvent
		_ = json.Unmarshal(line, &ev)
		mc.completeDispatch(m, ev)
	case protocol.FrameTypeStderr:
		var ev protocol.StderrEvent
		_ = json.Unmarshal(line, &ev)
		m.logger.Warn("sessions: agent stderr", "channel", mc.key, "text", truncate(ev.Text, protocol.MaxStderrMirrorBytes))
	default:
		mc.mu.Lock()
		cur := mc.current
		mc.mu.Unlock()
		if cur == nil || cur.onEvent == nil {
			return
		}
		var payload map[string]any
		if err := json.Unmarshal(line, &payload); err != nil {
			return
		}
		invokeHandlerSafely(m.logger, cur.onEvent, payload)
	}
}

func invokeHandlerSafely(logger *slog.Logger, h EventHandler, payload map[string]any) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("sessions: onEvent handler panicked", "recover", r)
		}
	}()
	h(payload)
}

// completeDispatch resolves the in-flight dispatch on a result line
// (agent-emitted or the host's synthetic agent-exit completion) and
// drains the next batch.
func (mc *managedChannel) completeDispatch(m *Manager, ev protocol.ResultEvent) {
	if ev.SessionID != "" {
		m.setSessionID(mc.key, ev.SessionID)
	}

	mc.mu.Lock()
	cur := mc.current
	if cur == nil {
		mc.mu.Unlock()
		return
	}
	res := Result{
		Text:       ev.Text,
		DurationMs: time.Since(mc.start).Milliseconds(),
		IsError:    ev.IsError,
	}
	mc.current = nil
	mc.busy = false
	mc.drainQueueLocked(m)
	mc.mu.Unlock()

	cur.resultCh <- sendOutcome{result: res}
}

// dispatchLocked writes one framed user turn to the host and marks
// the channel busy. Caller must hold mc.mu.
func (mc *managedChannel) dispatchLocked(m *Manager, qm *queuedMessage) {
	mc.busy = true
	mc.current = qm
	mc.start = time.Now()

	frame := protocol.NewUserFrame(qm.content)
	data, err := json.Marshal(frame)
	if err != nil {
		mc.failCurrentLocked(err)
		return
	}
	data = append(data, '\n')
	if _, err := mc.conn.Write(data); err != nil {
		mc.failCurrentLocked(ErrChannelDisconnected)
	}
}

func (mc *managedChannel) failCurrentLocked(err error) {
	cur := mc.current
	mc.current = nil
	mc.busy = false
	if cur != nil {
		cur.resultCh <- sendOutcome{err: err}
	}
}

// drainQueueLocked implements the coalescing algorithm (spec §4.1).
// Caller must hold mc.mu.
func (mc *managedChannel) drainQueueLocked(m *Manager) {
	if len(mc.queue) == 0 {
		return
	}
	batch := mc.queue
	mc.queue = nil

	if len(batch) == 1 {
		mc.dispatchLocked(m, batch[0])
		return
	}

	allText := true
	texts := make([]string, 0, len(batch))
	for _, qm := range batch {
		s, ok := qm.content.(string)
		if !ok {
			allText = false
			break
		}
		texts = append(texts, s)
	}

	if allText {
		combined := strings.Join(texts, "\n\n")
		for _, qm := range batch[:len(batch)-1] {
			qm.resultCh <- sendOutcome{result: Result{Coalesced: true}}
		}
		last := batch[len(batch)-1]
		last.content = combined
		mc.dispatchLocked(m, last)
		return
	}

	first := batch[0]
	mc.queue = append(append([]*queuedMessage{}, batch[1:]...), mc.queue...)
	mc.dispatchLocked(m, first)
}

// disconnect fails every queued and in-flight future with err and
// marks the channel closed. Called on socket EOF/error.
func (mc *managedChannel) disconnect(m *Manager, err error) {
	mc.mu.Lock()
	mc.closed = true
	cur := mc.current
	mc.current = nil
	mc.busy = false
	pending := mc.queue
	mc.queue = nil
	mc.mu.Unlock()

	if cur != nil {
		cur.resultCh <- sendOutcome{err: err}
	}
	for _, qm := range pending {
		qm.resultCh <- sendOutcome{err: err}
	}

	m.forgetChannel(mc.key, mc)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
