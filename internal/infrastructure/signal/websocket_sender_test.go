package signal

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// newSignalServer accepts one websocket connection and forwards every frame
// it reads to the returned channel.
func newSignalServer(t *testing.T) (string, <-chan envelope) {
	t.Helper()
	received := make(chan envelope, 32)
	upgrader := websocket.Upgrader{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			var env envelope
			if err := conn.ReadJSON(&env); err != nil {
				return
			}
			received <- env
		}
	}))
	t.Cleanup(srv.Close)

	return "ws" + strings.TrimPrefix(srv.URL, "http"), received
}

func TestSendSignalDeliversFramesInOrder(t *testing.T) {
	url, received := newSignalServer(t)

	sender, err := DialWebSocketSender(context.Background(), url, "sess-1", 100, 100, zaptest.NewLogger(t).Sugar())
	require.NoError(t, err)
	defer sender.Close()

	require.NoError(t, sender.SendSignal(context.Background(), "offer", map[string]string{"sdp": "v=0"}))
	require.NoError(t, sender.SendSignal(context.Background(), "ice-candidate", map[string]string{"candidate": "c1"}))

	first := <-received
	assert.Equal(t, "offer", first.Type)
	assert.Equal(t, "sess-1", string(first.SessionID))

	second := <-received
	assert.Equal(t, "ice-candidate", second.Type)
}

func TestSendSignalAfterCloseFails(t *testing.T) {
	url, _ := newSignalServer(t)

	sender, err := DialWebSocketSender(context.Background(), url, "sess-1", 100, 100, zaptest.NewLogger(t).Sugar())
	require.NoError(t, err)

	require.NoError(t, sender.Close())
	// Close is idempotent.
	require.NoError(t, sender.Close())

	err = sender.SendSignal(context.Background(), "offer", nil)
	assert.Error(t, err)
}

func TestSendSignalRateLimitHonorsContext(t *testing.T) {
	url, _ := newSignalServer(t)

	// Burst of one with a near-zero refill rate: the second send must wait
	// and the cancelled context aborts it.
	sender, err := DialWebSocketSender(context.Background(), url, "sess-1", 0.001, 1, zaptest.NewLogger(t).Sugar())
	require.NoError(t, err)
	defer sender.Close()

	require.NoError(t, sender.SendSignal(context.Background(), "offer", nil))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err = sender.SendSignal(ctx, "ice-candidate", nil)
	assert.Error(t, err)
}

func TestDialFailure(t *testing.T) {
	_, err := DialWebSocketSender(context.Background(), "ws://127.0.0.1:1/ws", "sess-1", 0, 0, zaptest.NewLogger(t).Sugar())
	assert.Error(t, err)
}
