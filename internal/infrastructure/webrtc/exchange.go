package webrtc

import (
	"context"
	"sync"

	"telecare/internal/core/domain"

	"github.com/pion/webrtc/v3"
	"go.uber.org/zap"
)

// LocalStream groups the local capture tracks published as one stream.
type LocalStream struct {
	ID     string
	Tracks []webrtc.TrackLocal
}

// TrackSender is the narrow outbound-sender surface the exchange needs, so
// tests can substitute fakes for pion's concrete RTPSender.
type TrackSender interface {
	Track() webrtc.TrackLocal
	ReplaceTrack(webrtc.TrackLocal) error
}

// SenderConnection is the narrow connection surface for outbound track
// management.
type SenderConnection interface {
	AddTrack(webrtc.TrackLocal) (TrackSender, error)
	RemoveTrack(TrackSender) error
	Senders() []TrackSender
}

// ScreenCapture is a live screen capture: the track to publish, a release
// function, and a channel closed when the OS-level "stop sharing" control
// ends the capture.
type ScreenCapture struct {
	Track   webrtc.TrackLocal
	Release func() error
	Ended   <-chan struct{}
}

// ScreenCapturer acquires a screen-sharing video track. Implementations
// return domain.ErrCaptureDenied when the user refuses the permission
// prompt.
type ScreenCapturer interface {
	Capture(ctx context.Context) (*ScreenCapture, error)
}

// StreamExchange binds local media to the connection and manages in-place
// track replacement so device switching and screen share need no
// renegotiation. At most one outbound track-set transition runs at a time; a
// second call while one is in flight is an error, not an interleave.
type StreamExchange struct {
	mu       sync.Mutex
	conn     SenderConnection
	inFlight bool

	local *LocalStream

	sharing      bool
	shareClaim   bool
	savedVideo   webrtc.TrackLocal
	capture      *ScreenCapture
	shareStopped *sync.Once
	shareDone    chan struct{}

	capturer       ScreenCapturer
	onLocalMedia   func(bool)
	onShareStopped func()

	logger *zap.SugaredLogger
}

type ExchangeOption func(*StreamExchange)

// WithShareStoppedObserver sets the callback fired exactly once when a
// screen share ends, from either termination path.
func WithShareStoppedObserver(fn func()) ExchangeOption {
	return func(e *StreamExchange) { e.onShareStopped = fn }
}

// WithLocalMediaObserver reports local media presence changes, typically to
// the connection core's state.
func WithLocalMediaObserver(fn func(bool)) ExchangeOption {
	return func(e *StreamExchange) { e.onLocalMedia = fn }
}

func NewStreamExchange(capturer ScreenCapturer, logger *zap.SugaredLogger, opts ...ExchangeOption) *StreamExchange {
	e := &StreamExchange{capturer: capturer, logger: logger}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// BindConnection points the exchange at the active connection. Passing nil
// detaches it.
func (e *StreamExchange) BindConnection(conn SenderConnection) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.conn = conn
}

// BindPeerConnection adapts a pion connection into the sender surface.
func (e *StreamExchange) BindPeerConnection(pc *webrtc.PeerConnection) {
	e.BindConnection(&pionSenderConnection{pc: pc})
}

// begin claims the single in-flight transition slot.
func (e *StreamExchange) begin() (SenderConnection, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.conn == nil {
		return nil, domain.ErrNoActiveConnection
	}
	if e.inFlight {
		return nil, domain.ErrExchangeBusy
	}
	e.inFlight = true
	return e.conn, nil
}

func (e *StreamExchange) end() {
	e.mu.Lock()
	e.inFlight = false
	e.mu.Unlock()
}

// AddLocalStream removes all existing outbound tracks and publishes every
// track of the given stream.
func (e *StreamExchange) AddLocalStream(stream *LocalStream) error {
	conn, err := e.begin()
	if err != nil {
		return err
	}
	defer e.end()

	for _, s := range conn.Senders() {
		if err := conn.RemoveTrack(s); err != nil {
			e.logger.Warnw("failed to remove outbound track", "error", err)
		}
	}
	for _, track := range stream.Tracks {
		if _, err := conn.AddTrack(track); err != nil {
			return err
		}
	}

	e.mu.Lock()
	e.local = stream
	e.mu.Unlock()
	if e.onLocalMedia != nil {
		e.onLocalMedia(true)
	}
	e.logger.Infow("local stream attached", "stream_id", stream.ID, "tracks", len(stream.Tracks))
	return nil
}

// ReplaceTrack swaps the outbound track of the given kind in place, without
// a new offer/answer exchange. The displaced track is stopped to release the
// underlying device.
func (e *StreamExchange) ReplaceTrack(newTrack webrtc.TrackLocal, kind webrtc.RTPCodecType) error {
	conn, err := e.begin()
	if err != nil {
		return err
	}
	defer e.end()

	return e.replaceTrackLocked(conn, newTrack, kind)
}

// replaceTrackLocked performs the swap while the in-flight slot is held.
func (e *StreamExchange) replaceTrackLocked(conn SenderConnection, newTrack webrtc.TrackLocal, kind webrtc.RTPCodecType) error {
	for _, s := range conn.Senders() {
		current := s.Track()
		if current == nil || current.Kind() != kind {
			continue
		}
		if err := s.ReplaceTrack(newTrack); err != nil {
			return err
		}
		if current != newTrack {
			releaseTrack(current)
		}

		e.mu.Lock()
		if e.local != nil {
			for i, t := range e.local.Tracks {
				if t == current {
					e.local.Tracks[i] = newTrack
				}
			}
		}
		e.mu.Unlock()
		return nil
	}
	return domain.ErrNoMatchingSender
}

// StartScreenShare captures a screen video track and swaps it in for the
// current camera track, keeping the camera track as the restoration point.
// The OS "stop sharing" control converges on StopScreenShare through the
// capture's Ended channel.
func (e *StreamExchange) StartScreenShare(ctx context.Context) error {
	if e.capturer == nil {
		return domain.ErrCaptureDenied
	}
	e.mu.Lock()
	if e.sharing || e.shareClaim {
		e.mu.Unlock()
		return domain.ErrAlreadySharing
	}
	e.shareClaim = true
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		e.shareClaim = false
		e.mu.Unlock()
	}()

	capture, err := e.capturer.Capture(ctx)
	if err != nil {
		return err
	}

	conn, err := e.begin()
	if err != nil {
		if capture.Release != nil {
			_ = capture.Release()
		}
		return err
	}

	var saved webrtc.TrackLocal
	for _, s := range conn.Senders() {
		if t := s.Track(); t != nil && t.Kind() == webrtc.RTPCodecTypeVideo {
			saved = t
			break
		}
	}
	if saved == nil {
		e.end()
		if capture.Release != nil {
			_ = capture.Release()
		}
		return domain.ErrNoMatchingSender
	}

	if err := e.swapKeeping(conn, capture.Track, webrtc.RTPCodecTypeVideo); err != nil {
		e.end()
		if capture.Release != nil {
			_ = capture.Release()
		}
		return err
	}
	e.end()

	e.mu.Lock()
	e.sharing = true
	e.savedVideo = saved
	e.capture = capture
	e.shareStopped = &sync.Once{}
	e.shareDone = make(chan struct{})
	done := e.shareDone
	e.mu.Unlock()

	if capture.Ended != nil {
		go func() {
			select {
			case <-capture.Ended:
				if err := e.StopScreenShare(); err != nil && err != domain.ErrNotSharing {
					e.logger.Warnw("failed to stop screen share after capture ended", "error", err)
				}
			case <-done:
			}
		}()
	}

	e.logger.Infow("screen share started")
	return nil
}

// swapKeeping replaces the track of kind without stopping the displaced
// track, so it can be restored later.
func (e *StreamExchange) swapKeeping(conn SenderConnection, newTrack webrtc.TrackLocal, kind webrtc.RTPCodecType) error {
	for _, s := range conn.Senders() {
		if t := s.Track(); t != nil && t.Kind() == kind {
			return s.ReplaceTrack(newTrack)
		}
	}
	return domain.ErrNoMatchingSender
}

// StopScreenShare restores the saved camera track and releases the screen
// capture. Both the explicit call and the OS-driven termination converge
// here; the stopped side effect fires exactly once per share.
func (e *StreamExchange) StopScreenShare() error {
	e.mu.Lock()
	if !e.sharing {
		e.mu.Unlock()
		return domain.ErrNotSharing
	}
	e.sharing = false
	saved := e.savedVideo
	capture := e.capture
	stopped := e.shareStopped
	done := e.shareDone
	e.savedVideo = nil
	e.capture = nil
	e.mu.Unlock()

	if done != nil {
		close(done)
	}

	conn, err := e.begin()
	if err == nil {
		err = e.swapKeeping(conn, saved, webrtc.RTPCodecTypeVideo)
		e.end()
	}
	if err != nil {
		e.logger.Warnw("failed to restore camera track", "error", err)
	}

	if capture != nil && capture.Release != nil {
		if rerr := capture.Release(); rerr != nil {
			e.logger.Warnw("failed to release screen capture", "error", rerr)
		}
	}

	stopped.Do(func() {
		e.logger.Infow("screen share stopped")
		if e.onShareStopped != nil {
			e.onShareStopped()
		}
	})
	return err
}

// Sharing reports whether a screen share is active.
func (e *StreamExchange) Sharing() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sharing
}

// LocalStream returns the currently attached local stream.
func (e *StreamExchange) LocalStream() *LocalStream {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.local
}

// Detach drops the local stream reference and stops its tracks.
func (e *StreamExchange) Detach() {
	e.mu.Lock()
	local := e.local
	e.local = nil
	e.conn = nil
	e.mu.Unlock()
	if local != nil {
		for _, t := range local.Tracks {
			releaseTrack(t)
		}
	}
	if e.onLocalMedia != nil {
		e.onLocalMedia(false)
	}
}

// releaseTrack stops device-backed tracks that expose a stop hook.
func releaseTrack(t webrtc.TrackLocal) {
	type stopper interface{ Stop() error }
	type closer interface{ Close() error }
	switch v := t.(type) {
	case stopper:
		_ = v.Stop()
	case closer:
		_ = v.Close()
	}
}

// pionSenderConnection adapts *webrtc.PeerConnection to SenderConnection.
type pionSenderConnection struct {
	pc *webrtc.PeerConnection
}

type pionSender struct {
	s *webrtc.RTPSender
}

func (p *pionSender) Track() webrtc.TrackLocal               { return p.s.Track() }
func (p *pionSender) ReplaceTrack(t webrtc.TrackLocal) error { return p.s.ReplaceTrack(t) }

func (p *pionSenderConnection) AddTrack(t webrtc.TrackLocal) (TrackSender, error) {
	s, err := p.pc.AddTrack(t)
	if err != nil {
		return nil, err
	}
	return &pionSender{s: s}, nil
}

func (p *pionSenderConnection) RemoveTrack(s TrackSender) error {
	ps, ok := s.(*pionSender)
	if !ok {
		return domain.ErrNoMatchingSender
	}
	return p.pc.RemoveTrack(ps.s)
}

func (p *pionSenderConnection) Senders() []TrackSender {
	senders := p.pc.GetSenders()
	out := make([]TrackSender, 0, len(senders))
	for _, s := range senders {
		out = append(out, &pionSender{s: s})
	}
	return out
}
