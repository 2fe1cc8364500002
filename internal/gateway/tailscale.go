package gateway

import (
	"context"
	"fmt"
	"net"

	"tailscale.com/tsnet"

	"github.com/nextlevelbuilder/goclaw/internal/config"
)

// tsnetListener starts an in-process Tailscale node and returns a
// listener bound to it instead of a bare TCP port, letting the
// gateway be reached over the tailnet without a public listener.
func tsnetListener(ctx context.Context, cfg config.TailscaleConfig) (net.Listener, *tsnet.Server, error) {
	if cfg.AuthKey == "" {
		return nil, nil, fmt.Errorf("gateway: tailscale enabled without an auth key (set GOCLAW_TSNET_AUTH_KEY)")
	}

	srv := &tsnet.Server{
		Hostname:  cfg.Hostname,
		Dir:       cfg.StateDir,
		AuthKey:   cfg.AuthKey,
		Ephemeral: cfg.Ephemeral,
	}

	ln, err := srv.Listen("tcp", ":80")
	if err != nil {
		srv.Close()
		return nil, nil, fmt.Errorf("gateway: tsnet listen: %w", err)
	}
	return ln, srv, nil
}
