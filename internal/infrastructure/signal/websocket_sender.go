package signal

import (
	"context"
	"fmt"
	"sync"
	"time"

	"telecare/internal/core/domain"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// envelope is the wire shape of one outbound signal. The transport owns
// everything beyond this frame.
type envelope struct {
	Type      string           `json:"type"`
	SessionID domain.SessionID `json:"session_id"`
	Payload   any              `json:"payload"`
}

// WebSocketSender delivers outbound signals over a websocket. Writes are
// serialized and rate limited; candidate bursts during gathering stay within
// the transport's message budget.
type WebSocketSender struct {
	mu        sync.Mutex
	conn      *websocket.Conn
	sessionID domain.SessionID
	limiter   *rate.Limiter
	logger    *zap.SugaredLogger
}

// DialWebSocketSender connects to the signaling endpoint.
func DialWebSocketSender(ctx context.Context, url string, sessionID domain.SessionID, messagesPerSecond float64, burst int, logger *zap.SugaredLogger) (*WebSocketSender, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to dial signaling endpoint: %w", err)
	}
	if messagesPerSecond <= 0 {
		messagesPerSecond = 50
	}
	if burst <= 0 {
		burst = 100
	}
	return &WebSocketSender{
		conn:      conn,
		sessionID: sessionID,
		limiter:   rate.NewLimiter(rate.Limit(messagesPerSecond), burst),
		logger:    logger,
	}, nil
}

// SendSignal writes one signal frame. Signals are written in call order.
func (s *WebSocketSender) SendSignal(ctx context.Context, signalType string, payload any) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("signal send cancelled: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return fmt.Errorf("signal sender closed")
	}
	if err := s.conn.WriteJSON(envelope{
		Type:      signalType,
		SessionID: s.sessionID,
		Payload:   payload,
	}); err != nil {
		return fmt.Errorf("failed to write signal: %w", err)
	}
	return nil
}

func (s *WebSocketSender) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	return err
}
