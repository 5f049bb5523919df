package webrtc

import (
	"context"

	"telecare/internal/core/domain"
	"telecare/internal/core/ports"

	"github.com/pion/webrtc/v3"
	"go.uber.org/zap"
)

// SignalRouter subscribes to the connection-lifecycle callbacks exactly once
// per connection instance and translates them into state events and outbound
// signals. Phase changes are funneled through the core's apply loop; local
// candidates go straight to the signal sender in discovery order.
type SignalRouter struct {
	core   *PeerCore
	sender ports.SignalSender
	logger *zap.SugaredLogger

	onCandidateSent func()
}

type RouterOption func(*SignalRouter)

// WithCandidateSentObserver is invoked after each successfully sent candidate.
func WithCandidateSentObserver(fn func()) RouterOption {
	return func(r *SignalRouter) { r.onCandidateSent = fn }
}

func NewSignalRouter(core *PeerCore, sender ports.SignalSender, logger *zap.SugaredLogger, opts ...RouterOption) *SignalRouter {
	r := &SignalRouter{core: core, sender: sender, logger: logger}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Bind wires all lifecycle callbacks of pc. Call once per Create.
func (r *SignalRouter) Bind(ctx context.Context, pc *webrtc.PeerConnection) {
	pc.OnICECandidate(func(candidate *webrtc.ICECandidate) {
		r.handleCandidate(ctx, candidate)
	})
	pc.OnTrack(func(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
		r.logger.Infow("remote track arrived",
			"track_id", track.ID(),
			"stream_id", track.StreamID(),
			"codec", track.Codec().MimeType,
		)
		r.core.enqueue(remoteTrackEvent{track: track, receiver: receiver})
	})
	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		r.logger.Infow("connection state changed", "state", state.String())
		r.core.enqueue(connStateEvent(state))
	})
	pc.OnICEConnectionStateChange(func(state webrtc.ICEConnectionState) {
		r.logger.Infow("ice connection state changed", "state", state.String())
		r.core.enqueue(iceStateEvent(state))
	})
	pc.OnICEGatheringStateChange(func(state webrtc.ICEGathererState) {
		r.core.enqueue(gatheringEvent(state))
	})
	pc.OnSignalingStateChange(func(state webrtc.SignalingState) {
		r.core.enqueue(signalingEvent(state))
	})
}

// handleCandidate serializes and sends one discovered candidate. Candidates
// discovered after the connection is closed are dropped silently; send
// failures are logged and never crash the local state machine.
func (r *SignalRouter) handleCandidate(ctx context.Context, candidate *webrtc.ICECandidate) {
	if candidate == nil {
		// End-of-gathering marker.
		return
	}
	if r.core.Closed() {
		return
	}
	init := candidate.ToJSON()
	payload := domain.ICECandidatePayload{
		Candidate:        init.Candidate,
		SDPMid:           init.SDPMid,
		SDPMLineIndex:    init.SDPMLineIndex,
		UsernameFragment: init.UsernameFragment,
	}
	if err := r.sender.SendSignal(ctx, domain.SignalTypeICECandidate, payload); err != nil {
		r.logger.Warnw("failed to send ice candidate signal", "error", err)
		return
	}
	if r.onCandidateSent != nil {
		r.onCandidateSent()
	}
}
