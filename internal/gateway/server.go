// Package gateway implements the synchronous HTTP transport adapter:
// a request derives a channel key, calls the Channel Manager's Send,
// and returns the result inline. It also exposes the Push Registry's
// bypass path and a WebSocket event hub for health/heartbeat
// broadcasts, independent of dispatch (spec §2, §4.3).
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/nextlevelbuilder/goclaw/internal/bus"
	"github.com/nextlevelbuilder/goclaw/internal/channels"
	"github.com/nextlevelbuilder/goclaw/internal/config"
	"github.com/nextlevelbuilder/goclaw/internal/push"
	"github.com/nextlevelbuilder/goclaw/internal/sessions"

	"tailscale.com/tsnet"
)

// Server is the HTTP transport adapter.
type Server struct {
	cfg       config.GatewayConfig
	tailscale config.TailscaleConfig
	manager   *sessions.Manager
	registry  *push.Registry
	logger    *slog.Logger
	limiter   *channels.WebhookRateLimiter
	hub       *eventHub
	upgrader  websocket.Upgrader

	tsnetSrv *tsnet.Server
	mux      *http.ServeMux
}

// NewServer constructs a Server. Per spec §7's configuration
// hard-fail: a gateway whose agent configuration grants shell-level
// tools must be started with an explicit CIDR allow list.
func NewServer(cfg config.GatewayConfig, tailscale config.TailscaleConfig, agentTools []string, manager *sessions.Manager, registry *push.Registry, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if grantsShell(agentTools) && len(cfg.AllowedCIDRs) == 0 {
		return nil, fmt.Errorf("gateway: agent configuration allows shell-equivalent tools; set allowed_cidrs before starting the HTTP adapter")
	}

	s := &Server{
		cfg:       cfg,
		tailscale: tailscale,
		manager:   manager,
		registry:  registry,
		logger:    logger.With("adapter", "http"),
		limiter:   channels.NewWebhookRateLimiter(cfg.RateLimitPerMin),
		hub:       newEventHub(),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     func(r *http.Request) bool { return true },
	}
	return s, nil
}

func grantsShell(tools []string) bool {
	for _, t := range tools {
		lower := strings.ToLower(t)
		if lower == "bash" || lower == "shell" {
			return true
		}
	}
	return false
}

// EventPublisher exposes the server's broadcast hub so other
// components (e.g. the cron heartbeat scheduler) can push events to
// connected WebSocket clients without depending on the HTTP layer.
func (s *Server) EventPublisher() bus.EventPublisher { return s.hub }

// BuildMux builds and caches the adapter's HTTP routing table.
func (s *Server) BuildMux() *http.ServeMux {
	if s.mux != nil {
		return s.mux
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/v1/send", s.handleSend)
	mux.HandleFunc("/v1/push", s.handlePush)
	mux.HandleFunc("/ws", s.handleWebSocket)
	s.mux = mux
	return mux
}

// Listen serves the adapter's mux on cfg.Bind until ctx is cancelled.
// A Tailscale-backed listener is used instead when configured.
func (s *Server) Listen(ctx context.Context) error {
	ln, err := s.listener(ctx)
	if err != nil {
		return err
	}
	if s.tsnetSrv != nil {
		defer s.tsnetSrv.Close()
	}

	srv := &http.Server{Handler: s.withCIDRGuard(s.BuildMux())}
	s.logger.Info("gateway: listening", "addr", ln.Addr().String())

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

func (s *Server) listener(ctx context.Context) (net.Listener, error) {
	if s.tailscale.Enabled {
		ln, srv, err := tsnetListener(ctx, s.tailscale)
		if err != nil {
			return nil, err
		}
		s.tsnetSrv = srv
		return ln, nil
	}

	bind := s.cfg.Bind
	if bind == "" {
		bind = "127.0.0.1:8787"
	}
	return net.Listen("tcp", bind)
}

// withCIDRGuard rejects requests from remotes outside cfg.AllowedCIDRs
// when one is configured. An empty list leaves the adapter open,
// matching its default loopback bind.
func (s *Server) withCIDRGuard(next http.Handler) http.Handler {
	if len(s.cfg.AllowedCIDRs) == 0 {
		return next
	}
	nets := parseCIDRs(s.cfg.AllowedCIDRs)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}
		ip := net.ParseIP(host)
		for _, n := range nets {
			if ip != nil && n.Contains(ip) {
				next.ServeHTTP(w, r)
				return
			}
		}
		s.logger.Warn("gateway: rejected remote outside allowed_cidrs", "remote", r.RemoteAddr)
		http.Error(w, "forbidden", http.StatusForbidden)
	})
}

func parseCIDRs(cidrs []string) []*net.IPNet {
	out := make([]*net.IPNet, 0, len(cidrs))
	for _, c := range cidrs {
		if _, n, err := net.ParseCIDR(c); err == nil {
			out = append(out, n)
		}
	}
	return out
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, `{"status":"ok"}`)
}

type sendRequest struct {
	Channel   string `json:"channel"`
	Text      string `json:"text"`
	UserName  string `json:"user_name,omitempty"`
	ChatTitle string `json:"chat_title,omitempty"`
}

// handleSend is the synchronous dispatch endpoint: it calls
// sessions.Manager.Send directly and returns the Result inline,
// bypassing any chat-bot transport.
func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !s.limiter.Allow(r.RemoteAddr) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
		return
	}

	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Channel == "" {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	key := "http-" + req.Channel
	chanCtx := &bus.ChannelContext{Channel: key, Adapter: "http", UserName: req.UserName, ChatTitle: req.ChatTitle}

	res, err := s.manager.Send(r.Context(), key, req.Text, chanCtx, nil)
	if err != nil {
		s.writeSendError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(res)
}

func (s *Server) writeSendError(w http.ResponseWriter, err error) {
	switch err {
	case sessions.ErrHostUnreachable:
		http.Error(w, err.Error(), http.StatusGatewayTimeout)
	case sessions.ErrChannelDisconnected:
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

type pushRequest struct {
	Channel string               `json:"channel"`
	Text    string               `json:"text"`
	Media   *bus.MediaAttachment `json:"media,omitempty"`
}

// handlePush is the Push Registry's HTTP front door (spec §5 P7): it
// never touches sessions.Manager state.
func (s *Server) handlePush(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req pushRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Channel == "" {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	delivered, err := s.registry.Send(req.Channel, req.Text, req.Media)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	if !delivered {
		http.Error(w, "no push handler for channel", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("gateway: websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	id := uuid.NewString()
	s.hub.Subscribe(id, func(ev bus.Event) {
		_ = conn.WriteJSON(ev)
	})
	defer s.hub.Unsubscribe(id)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// eventHub is a minimal bus.EventPublisher fanning broadcasts out to
// the WebSocket connections currently subscribed.
type eventHub struct {
	mu       sync.RWMutex
	handlers map[string]bus.EventHandler
}

func newEventHub() *eventHub {
	return &eventHub{handlers: make(map[string]bus.EventHandler)}
}

func (h *eventHub) Subscribe(id string, handler bus.EventHandler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handlers[id] = handler
}

func (h *eventHub) Unsubscribe(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.handlers, id)
}

func (h *eventHub) Broadcast(event bus.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, handler := range h.handlers {
		handler(event)
	}
}
