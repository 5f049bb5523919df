package webrtc

import (
	"fmt"
	"sync"

	"telecare/internal/core/domain"

	"github.com/pion/webrtc/v3"
	"go.uber.org/zap"
)

// event is one unit of work for the connection's apply loop. All state
// mutation goes through the loop so concurrent callback delivery is
// serialized, never interleaved.
type event interface{ isEvent() }

type connStateEvent webrtc.PeerConnectionState
type iceStateEvent webrtc.ICEConnectionState
type gatheringEvent webrtc.ICEGathererState
type signalingEvent webrtc.SignalingState
type localMediaEvent bool
type remoteTrackEvent struct {
	track    *webrtc.TrackRemote
	receiver *webrtc.RTPReceiver
}

func (connStateEvent) isEvent()   {}
func (iceStateEvent) isEvent()    {}
func (gatheringEvent) isEvent()   {}
func (signalingEvent) isEvent()   {}
func (localMediaEvent) isEvent()  {}
func (remoteTrackEvent) isEvent() {}

// PeerCore owns exactly one underlying peer connection per active session
// attempt and its externally observable state. The connection object is
// never shared across two logical sessions; other components reach it only
// through the accessors here.
type PeerCore struct {
	mu           sync.RWMutex
	pc           *webrtc.PeerConnection
	state        domain.ConnectionState
	remoteTracks []*webrtc.TrackRemote
	events       chan event
	quit         chan struct{}
	closed       bool

	portRangeMin uint16
	portRangeMax uint16

	onStateChange func(domain.ConnectionState)
	onRemoteTrack func(*webrtc.TrackRemote, *webrtc.RTPReceiver)

	logger *zap.SugaredLogger
}

type PeerCoreOption func(*PeerCore)

// WithPortRange restricts the ephemeral UDP port range of the ICE agent.
func WithPortRange(min, max uint16) PeerCoreOption {
	return func(c *PeerCore) {
		c.portRangeMin = min
		c.portRangeMax = max
	}
}

// WithStateObserver registers a callback invoked after every applied state
// change, outside the core's lock.
func WithStateObserver(fn func(domain.ConnectionState)) PeerCoreOption {
	return func(c *PeerCore) { c.onStateChange = fn }
}

// WithRemoteTrackObserver registers a callback for remote track arrival.
func WithRemoteTrackObserver(fn func(*webrtc.TrackRemote, *webrtc.RTPReceiver)) PeerCoreOption {
	return func(c *PeerCore) { c.onRemoteTrack = fn }
}

func NewPeerCore(logger *zap.SugaredLogger, opts ...PeerCoreOption) *PeerCore {
	c := &PeerCore{
		state:  domain.InitialConnectionState(),
		closed: true,
		logger: logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Create constructs a new underlying connection with a pre-gathered
// candidate pool. It replaces any previously held connection; sequencing
// teardown before creation is the recovery coordinator's job, the core does
// not auto-close.
func (c *PeerCore) Create(iceServers []webrtc.ICEServer) (*webrtc.PeerConnection, error) {
	settingEngine := webrtc.SettingEngine{}
	if c.portRangeMin > 0 && c.portRangeMax > 0 {
		if err := settingEngine.SetEphemeralUDPPortRange(c.portRangeMin, c.portRangeMax); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrConnectionCreateFailed, err)
		}
	}
	api := webrtc.NewAPI(webrtc.WithSettingEngine(settingEngine))

	pc, err := api.NewPeerConnection(webrtc.Configuration{
		ICEServers:           iceServers,
		ICECandidatePoolSize: 10,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrConnectionCreateFailed, err)
	}

	c.mu.Lock()
	if c.pc != nil {
		c.logger.Warnw("replacing peer connection without prior close")
	}
	c.pc = pc
	c.state = domain.InitialConnectionState()
	c.remoteTracks = nil
	c.events = make(chan event, 128)
	c.quit = make(chan struct{})
	c.closed = false
	events, quit := c.events, c.quit
	c.mu.Unlock()

	go c.applyLoop(events, quit)
	return pc, nil
}

// enqueue hands an event to the apply loop. Events arriving after close are
// dropped silently.
func (c *PeerCore) enqueue(ev event) {
	c.mu.RLock()
	events, quit, closed := c.events, c.quit, c.closed
	c.mu.RUnlock()
	if closed || events == nil {
		return
	}
	select {
	case events <- ev:
	case <-quit:
	}
}

func (c *PeerCore) applyLoop(events <-chan event, quit <-chan struct{}) {
	for {
		select {
		case <-quit:
			return
		case ev := <-events:
			c.apply(ev)
		}
	}
}

func (c *PeerCore) apply(ev event) {
	var (
		stateChanged bool
		track        *webrtc.TrackRemote
		receiver     *webrtc.RTPReceiver
	)

	c.mu.Lock()
	switch e := ev.(type) {
	case connStateEvent:
		c.state.ConnectionPhase = connectionPhase(webrtc.PeerConnectionState(e))
		stateChanged = true
	case iceStateEvent:
		c.state.ICEPhase = icePhase(webrtc.ICEConnectionState(e))
		stateChanged = true
	case gatheringEvent:
		c.state.GatheringPhase = gatheringPhase(webrtc.ICEGathererState(e))
		stateChanged = true
	case signalingEvent:
		c.state.SignalingPhase = signalingPhase(webrtc.SignalingState(e))
		stateChanged = true
	case localMediaEvent:
		c.state.HasLocalMedia = bool(e)
		stateChanged = true
	case remoteTrackEvent:
		c.remoteTracks = append(c.remoteTracks, e.track)
		c.state.HasRemoteMedia = true
		track, receiver = e.track, e.receiver
		stateChanged = true
	}
	if stateChanged {
		c.state.Connected = c.state.ConnectionPhase == domain.ConnectionConnected
		// Most pessimistic of the two phase mappings governs display.
		c.state.Quality = domain.DeriveQuality(c.state.ConnectionPhase, c.state.ICEPhase)
	}
	snapshot := c.state
	c.mu.Unlock()

	if track != nil && c.onRemoteTrack != nil {
		c.onRemoteTrack(track, receiver)
	}
	if stateChanged && c.onStateChange != nil {
		c.onStateChange(snapshot)
	}
}

// State returns a snapshot of the connection state.
func (c *PeerCore) State() domain.ConnectionState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Connection exposes the underlying connection for the stream exchange and
// stats provider. Nil when no connection is active.
func (c *PeerCore) Connection() *webrtc.PeerConnection {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.pc
}

// RemoteTracks returns the remote media handles received so far.
func (c *PeerCore) RemoteTracks() []*webrtc.TrackRemote {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*webrtc.TrackRemote, len(c.remoteTracks))
	copy(out, c.remoteTracks)
	return out
}

// Closed reports whether no connection is currently held.
func (c *PeerCore) Closed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

// Close releases the connection handle and resets the state to its initial
// values. Idempotent, and safe even if no connection was ever created.
func (c *PeerCore) Close() error {
	c.mu.Lock()
	if c.closed && c.pc == nil {
		c.mu.Unlock()
		return nil
	}
	pc := c.pc
	c.pc = nil
	c.closed = true
	if c.quit != nil {
		close(c.quit)
		c.quit = nil
	}
	c.events = nil
	c.remoteTracks = nil
	c.state = domain.InitialConnectionState()
	c.mu.Unlock()

	if pc != nil {
		if err := pc.Close(); err != nil {
			c.logger.Warnw("error closing peer connection", "error", err)
			return err
		}
	}
	return nil
}

func connectionPhase(s webrtc.PeerConnectionState) domain.ConnectionPhase {
	switch s {
	case webrtc.PeerConnectionStateNew:
		return domain.ConnectionNew
	case webrtc.PeerConnectionStateConnecting:
		return domain.ConnectionConnecting
	case webrtc.PeerConnectionStateConnected:
		return domain.ConnectionConnected
	case webrtc.PeerConnectionStateDisconnected:
		return domain.ConnectionDisconnected
	case webrtc.PeerConnectionStateFailed:
		return domain.ConnectionFailed
	case webrtc.PeerConnectionStateClosed:
		return domain.ConnectionClosed
	default:
		return domain.ConnectionNew
	}
}

func icePhase(s webrtc.ICEConnectionState) domain.ICEPhase {
	switch s {
	case webrtc.ICEConnectionStateNew:
		return domain.ICENew
	case webrtc.ICEConnectionStateChecking:
		return domain.ICEChecking
	case webrtc.ICEConnectionStateConnected:
		return domain.ICEConnected
	case webrtc.ICEConnectionStateCompleted:
		return domain.ICECompleted
	case webrtc.ICEConnectionStateDisconnected:
		return domain.ICEDisconnected
	case webrtc.ICEConnectionStateFailed:
		return domain.ICEFailed
	case webrtc.ICEConnectionStateClosed:
		return domain.ICEClosed
	default:
		return domain.ICENew
	}
}

func gatheringPhase(s webrtc.ICEGathererState) domain.GatheringPhase {
	switch s {
	case webrtc.ICEGathererStateGathering:
		return domain.GatheringInProgress
	case webrtc.ICEGathererStateComplete, webrtc.ICEGathererStateClosed:
		return domain.GatheringComplete
	default:
		return domain.GatheringNew
	}
}

func signalingPhase(s webrtc.SignalingState) domain.SignalingPhase {
	switch s {
	case webrtc.SignalingStateHaveLocalOffer:
		return domain.SignalingHaveLocalOffer
	case webrtc.SignalingStateHaveRemoteOffer:
		return domain.SignalingHaveRemoteOffer
	case webrtc.SignalingStateHaveLocalPranswer:
		return domain.SignalingHaveLocalPranswer
	case webrtc.SignalingStateHaveRemotePranswer:
		return domain.SignalingHaveRemotePranswer
	case webrtc.SignalingStateClosed:
		return domain.SignalingClosed
	default:
		return domain.SignalingStable
	}
}
