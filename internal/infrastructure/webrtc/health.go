package webrtc

import (
	"context"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/pion/webrtc/v3"
	"go.uber.org/zap"
)

// HealthProbe checks the two preconditions for rebuilding a connection:
// the runtime can construct a peer connection, and at least one configured
// ICE server is reachable.
type HealthProbe struct {
	iceServers  []webrtc.ICEServer
	dialTimeout time.Duration
	logger      *zap.SugaredLogger
}

func NewHealthProbe(iceServers []webrtc.ICEServer, logger *zap.SugaredLogger) *HealthProbe {
	return &HealthProbe{
		iceServers:  iceServers,
		dialTimeout: 3 * time.Second,
		logger:      logger,
	}
}

func (h *HealthProbe) CheckHealth(ctx context.Context) bool {
	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{})
	if err != nil {
		h.logger.Warnw("peer connection capability unavailable", "error", err)
		return false
	}
	_ = pc.Close()

	if len(h.iceServers) == 0 {
		return true
	}
	for _, server := range h.iceServers {
		for _, raw := range server.URLs {
			if h.reachable(ctx, raw) {
				return true
			}
		}
	}
	h.logger.Warnw("no ice server reachable")
	return false
}

func (h *HealthProbe) reachable(ctx context.Context, raw string) bool {
	host := iceServerHost(raw)
	if host == "" {
		return false
	}
	d := net.Dialer{Timeout: h.dialTimeout}
	conn, err := d.DialContext(ctx, "udp", host)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

// iceServerHost extracts host:port from stun:/turn: style URLs.
func iceServerHost(raw string) string {
	if i := strings.Index(raw, ":"); i > 0 && !strings.Contains(raw[:i], "/") {
		scheme := raw[:i]
		if scheme == "stun" || scheme == "stuns" || scheme == "turn" || scheme == "turns" {
			hostport := raw[i+1:]
			if q := strings.Index(hostport, "?"); q >= 0 {
				hostport = hostport[:q]
			}
			if !strings.Contains(hostport, ":") {
				hostport += ":3478"
			}
			return hostport
		}
	}
	if u, err := url.Parse(raw); err == nil && u.Host != "" {
		return u.Host
	}
	return ""
}
