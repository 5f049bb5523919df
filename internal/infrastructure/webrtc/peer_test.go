package webrtc

import (
	"testing"

	"telecare/internal/core/domain"

	"github.com/pion/webrtc/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestConnectionPhaseProgressionToConnected(t *testing.T) {
	var snapshots []domain.ConnectionState
	c := NewPeerCore(zaptest.NewLogger(t).Sugar(), WithStateObserver(func(s domain.ConnectionState) {
		snapshots = append(snapshots, s)
	}))

	c.apply(connStateEvent(webrtc.PeerConnectionStateConnecting))
	c.apply(iceStateEvent(webrtc.ICEConnectionStateChecking))
	c.apply(gatheringEvent(webrtc.ICEGathererStateGathering))
	c.apply(iceStateEvent(webrtc.ICEConnectionStateConnected))
	c.apply(connStateEvent(webrtc.PeerConnectionStateConnected))
	c.apply(gatheringEvent(webrtc.ICEGathererStateComplete))

	require.Len(t, snapshots, 6)

	// While connecting the label stays below excellent.
	assert.False(t, snapshots[0].Connected)
	assert.Equal(t, domain.QualityGood, snapshots[0].Quality)

	final := c.State()
	assert.True(t, final.Connected)
	assert.Equal(t, domain.ConnectionConnected, final.ConnectionPhase)
	assert.Equal(t, domain.ICEConnected, final.ICEPhase)
	assert.Equal(t, domain.GatheringComplete, final.GatheringPhase)
	assert.Equal(t, domain.QualityExcellent, final.Quality)
}

func TestQualityLabelIsPessimistic(t *testing.T) {
	c := NewPeerCore(zaptest.NewLogger(t).Sugar())

	c.apply(connStateEvent(webrtc.PeerConnectionStateConnected))
	c.apply(iceStateEvent(webrtc.ICEConnectionStateConnected))
	require.Equal(t, domain.QualityExcellent, c.State().Quality)

	// A degraded ICE layer drags the label down even while the connection
	// phase still reads connected.
	c.apply(iceStateEvent(webrtc.ICEConnectionStateDisconnected))
	assert.Equal(t, domain.QualityPoor, c.State().Quality)
	assert.True(t, c.State().Connected)

	c.apply(iceStateEvent(webrtc.ICEConnectionStateFailed))
	assert.Equal(t, domain.QualityDisconnected, c.State().Quality)
}

func TestConnectionFailureUpdatesState(t *testing.T) {
	c := NewPeerCore(zaptest.NewLogger(t).Sugar())

	c.apply(connStateEvent(webrtc.PeerConnectionStateConnected))
	c.apply(connStateEvent(webrtc.PeerConnectionStateFailed))

	state := c.State()
	assert.False(t, state.Connected)
	assert.Equal(t, domain.ConnectionFailed, state.ConnectionPhase)
	assert.Equal(t, domain.QualityDisconnected, state.Quality)
}

func TestLocalMediaEvent(t *testing.T) {
	c := NewPeerCore(zaptest.NewLogger(t).Sugar())
	c.apply(localMediaEvent(true))
	assert.True(t, c.State().HasLocalMedia)
	c.apply(localMediaEvent(false))
	assert.False(t, c.State().HasLocalMedia)
}

func TestCreateAndCloseLifecycle(t *testing.T) {
	c := NewPeerCore(zaptest.NewLogger(t).Sugar())

	pc, err := c.Create(nil)
	require.NoError(t, err)
	require.NotNil(t, pc)
	assert.False(t, c.Closed())
	assert.Same(t, pc, c.Connection())

	require.NoError(t, c.Close())
	assert.True(t, c.Closed())
	assert.Nil(t, c.Connection())
	assert.Equal(t, domain.InitialConnectionState(), c.State())

	// Close is idempotent.
	require.NoError(t, c.Close())

	// Events arriving after close are dropped, not queued.
	c.enqueue(connStateEvent(webrtc.PeerConnectionStateConnected))
	assert.Equal(t, domain.InitialConnectionState(), c.State())
}

func TestCloseWithoutCreate(t *testing.T) {
	c := NewPeerCore(zaptest.NewLogger(t).Sugar())
	assert.NoError(t, c.Close())
}

func TestCreateResetsPreviousState(t *testing.T) {
	c := NewPeerCore(zaptest.NewLogger(t).Sugar())
	c.apply(connStateEvent(webrtc.PeerConnectionStateConnected))
	require.True(t, c.State().Connected)

	pc, err := c.Create(nil)
	require.NoError(t, err)
	defer c.Close()
	require.NotNil(t, pc)
	assert.Equal(t, domain.InitialConnectionState(), c.State())
}
