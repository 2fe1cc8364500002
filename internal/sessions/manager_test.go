package sessions

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"path/filepath"
	"testing"
	"time"
)

// fakeHost is a minimal stand-in for a session host: it listens on the
// exact socket path the Channel Manager would compute, accepts a
// single connection, and lets the test script responses to dispatched
// frames without spawning a real agent subprocess.
type fakeHost struct {
	ln   net.Listener
	conn chan net.Conn
}

func startFakeHost(t *testing.T, sockPath string) *fakeHost {
	t.Helper()
	ln, err := net.Listen("unix", sockPath)
	if err != nil {
		t.Fatalf("listen on %s: %v", sockPath, err)
	}
	fh := &fakeHost{ln: ln, conn: make(chan net.Conn, 1)}
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		fh.conn <- conn
	}()
	t.Cleanup(func() { ln.Close() })
	return fh
}

func (fh *fakeHost) accept(t *testing.T) net.Conn {
	t.Helper()
	select {
	case conn := <-fh.conn:
		return conn
	case <-time.After(2 * time.Second):
		t.Fatal("fake host: no connection accepted")
		return nil
	}
}

// readOneLine reads a single newline-delimited JSON line off conn.
func readOneLine(t *testing.T, conn net.Conn) map[string]any {
	t.Helper()
	scanner := bufio.NewScanner(conn)
	if !scanner.Scan() {
		t.Fatalf("readOneLine: scanner stopped: %v", scanner.Err())
	}
	var payload map[string]any
	if err := json.Unmarshal(scanner.Bytes(), &payload); err != nil {
		t.Fatalf("readOneLine: unmarshal: %v", err)
	}
	return payload
}

func writeResult(t *testing.T, conn net.Conn, text string) {
	t.Helper()
	data, err := json.Marshal(map[string]any{"type": "result", "text": text})
	if err != nil {
		t.Fatalf("marshal result: %v", err)
	}
	data = append(data, '\n')
	if _, err := conn.Write(data); err != nil {
		t.Fatalf("write result: %v", err)
	}
}

func newManagerWithSocketDir(t *testing.T, socketDir string) *Manager {
	t.Helper()
	dir := t.TempDir()
	return New(Config{
		SocketDir:         socketDir,
		SessionRecordPath: filepath.Join(dir, "sessions.json"),
		Product:           "goclaw-test",
	}, nil)
}

// TestManager_Send_RoundTripsThroughSocket covers the first-send path
// end to end: the manager dials the pre-listening "host" socket
// (skipping spawn) and resolves Send's result from the frame it writes
// back.
func TestManager_Send_RoundTripsThroughSocket(t *testing.T) {
	socketDir := t.TempDir()
	m := newManagerWithSocketDir(t, socketDir)

	channel := "tg-42"
	sockPath := m.socketPath(channel)
	fh := startFakeHost(t, sockPath)

	resultCh := make(chan Result, 1)
	errCh := make(chan error, 1)
	go func() {
		res, err := m.Send(context.Background(), channel, "hello", nil, nil)
		resultCh <- res
		errCh <- err
	}()

	conn := fh.accept(t)
	defer conn.Close()

	frame := readOneLine(t, conn)
	msg, _ := frame["message"].(map[string]any)
	if msg["content"] != "hello" {
		t.Fatalf("host received content %v, want %q", msg["content"], "hello")
	}

	writeResult(t, conn, "world")

	if err := <-errCh; err != nil {
		t.Fatalf("Send returned error: %v", err)
	}
	res := <-resultCh
	if res.Text != "world" {
		t.Errorf("Send result text = %q, want %q", res.Text, "world")
	}
}

// TestManager_Send_ReusesConnectedChannel verifies that a second Send
// for the same channel while the first connection is alive reuses the
// existing managedChannel instead of dialing again.
func TestManager_Send_ReusesConnectedChannel(t *testing.T) {
	socketDir := t.TempDir()
	m := newManagerWithSocketDir(t, socketDir)

	channel := "tg-42"
	sockPath := m.socketPath(channel)
	fh := startFakeHost(t, sockPath)

	res1Ch := make(chan Result, 1)
	go func() {
		res, _ := m.Send(context.Background(), channel, "first", nil, nil)
		res1Ch <- res
	}()

	conn := fh.accept(t)
	defer conn.Close()
	readOneLine(t, conn)
	writeResult(t, conn, "ack-1")
	<-res1Ch

	// Second send for the same channel must not attempt to accept a
	// new connection: the listener only ever had one pending Accept.
	res2Ch := make(chan Result, 1)
	go func() {
		res, _ := m.Send(context.Background(), channel, "second", nil, nil)
		res2Ch <- res
	}()

	frame := readOneLine(t, conn)
	msg, _ := frame["message"].(map[string]any)
	if msg["content"] != "second" {
		t.Fatalf("reused connection received %v, want %q", msg["content"], "second")
	}
	writeResult(t, conn, "ack-2")
	res2 := <-res2Ch
	if res2.Text != "ack-2" {
		t.Errorf("second send result = %q, want %q", res2.Text, "ack-2")
	}

	m.mu.Lock()
	_, stillTracked := m.channels[channel]
	m.mu.Unlock()
	if !stillTracked {
		t.Error("expected the channel to remain tracked between sends")
	}
}

// TestManager_Send_ContextCancelReturnsEarly verifies that Send
// respects context cancellation even while a dispatch is outstanding,
// without tearing down the channel's busy state (the eventual host
// result still resolves the abandoned queuedMessage's channel, not the
// caller, which already gave up).
func TestManager_Send_ContextCancelReturnsEarly(t *testing.T) {
	socketDir := t.TempDir()
	m := newManagerWithSocketDir(t, socketDir)

	channel := "tg-99"
	sockPath := m.socketPath(channel)
	fh := startFakeHost(t, sockPath)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := m.Send(ctx, channel, "hello", nil, nil)
		errCh <- err
	}()

	conn := fh.accept(t)
	defer conn.Close()
	readOneLine(t, conn)

	cancel()

	select {
	case err := <-errCh:
		if err == nil {
			t.Error("expected context cancellation error")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Send did not return after context cancellation")
	}
}

// TestManager_Shutdown_ClosesConnections verifies that Shutdown closes
// tracked connections, failing the in-flight Send with
// ErrChannelDisconnected, and clears the channel map. Signalling host
// PIDs is ShutdownHosts' job and is not exercised here.
func TestManager_Shutdown_ClosesConnections(t *testing.T) {
	socketDir := t.TempDir()
	m := newManagerWithSocketDir(t, socketDir)

	channel := "tg-1"
	sockPath := m.socketPath(channel)
	fh := startFakeHost(t, sockPath)

	resCh := make(chan error, 1)
	go func() {
		_, err := m.Send(context.Background(), channel, "hello", nil, nil)
		resCh <- err
	}()

	conn := fh.accept(t)
	readOneLine(t, conn)

	m.Shutdown()

	if err := <-resCh; err != ErrChannelDisconnected {
		t.Errorf("expected ErrChannelDisconnected after shutdown, got %v", err)
	}

	m.mu.Lock()
	n := len(m.channels)
	m.mu.Unlock()
	if n != 0 {
		t.Errorf("expected channel map cleared after Shutdown, got %d entries", n)
	}
}
