package engine

import (
	"context"
	"io"
	"sync"
	"time"

	"telecare/internal/core/domain"
	"telecare/internal/core/ports"
	"telecare/internal/core/services"
	"telecare/internal/infrastructure/monitoring"
	"telecare/internal/infrastructure/presence"
	infrawebrtc "telecare/internal/infrastructure/webrtc"

	"github.com/pion/webrtc/v3"
	"go.uber.org/zap"
)

// Options carries the per-session wiring knobs resolved from configuration.
type Options struct {
	ICEServers   []webrtc.ICEServer
	PortRangeMin uint16
	PortRangeMax uint16
	MaxRetries   int
	RoomID       domain.RoomID

	SampleInterval time.Duration
	RecoveryDelay  time.Duration
	PresenceTick   time.Duration
	PresenceGrace  time.Duration

	Sender      ports.SignalSender
	Credentials ports.CredentialProvider
	Capturer    infrawebrtc.ScreenCapturer
	Transitions ports.TransitionLog
	Analytics   *services.AnalyticsService
	Collector   *monitoring.PrometheusCollector
}

// Engine is one session's connection engine. It composes the peer core,
// signal router, stream exchange, quality monitor, recovery coordinator and
// presence tracker; every session gets a fresh instance of each.
type Engine struct {
	sessionID domain.SessionID
	opts      Options

	core     *infrawebrtc.PeerCore
	router   *infrawebrtc.SignalRouter
	exchange *infrawebrtc.StreamExchange
	stats    *infrawebrtc.StatsProvider
	monitor  *monitoring.QualityMonitor
	recovery *services.RecoveryService
	presence *services.PresenceService

	mu      sync.Mutex
	runCtx  context.Context
	cancel  context.CancelFunc
	started bool

	logger *zap.SugaredLogger
}

func New(sessionID domain.SessionID, opts Options, logger *zap.SugaredLogger) *Engine {
	e := &Engine{
		sessionID: sessionID,
		opts:      opts,
		logger:    logger,
	}

	e.stats = infrawebrtc.NewStatsProvider(logger)

	quality := services.NewQualityService()
	monitorOpts := []monitoring.MonitorOption{
		monitoring.WithAssessmentObserver(func(a domain.QualityAssessment) {
			if opts.Analytics != nil {
				opts.Analytics.RecordQualitySample(sessionID, a)
			}
		}),
		monitoring.WithAlertObserver(func(a domain.QualityAssessment) {
			if opts.Analytics != nil {
				opts.Analytics.RecordQualityAlert(sessionID, a)
			}
		}),
	}
	if opts.Collector != nil {
		monitorOpts = append(monitorOpts, monitoring.WithCollector(opts.Collector))
	}
	if opts.SampleInterval > 0 {
		monitorOpts = append(monitorOpts, monitoring.WithInterval(opts.SampleInterval))
	}
	e.monitor = monitoring.NewQualityMonitor(sessionID, e.stats, quality, logger, monitorOpts...)

	probe := infrawebrtc.NewHealthProbe(opts.ICEServers, logger)
	recoveryOpts := []services.RecoveryOption{
		services.WithTerminalHandler(func(err error) {
			if opts.Collector != nil {
				opts.Collector.RecoveryExhausted()
			}
		}),
	}
	if opts.Collector != nil {
		recoveryOpts = append(recoveryOpts, services.WithAttemptObserver(func(int) {
			opts.Collector.RecoveryAttempted()
		}))
	}
	if opts.RecoveryDelay > 0 {
		recoveryOpts = append(recoveryOpts, services.WithBaseDelay(opts.RecoveryDelay))
	}
	e.recovery = services.NewRecoveryService(
		sessionID,
		opts.MaxRetries,
		opts.Credentials,
		probe,
		opts.Analytics,
		logger,
		recoveryOpts...,
	)

	var presenceOpts []services.PresenceOption
	if opts.PresenceTick > 0 && opts.PresenceGrace > 0 {
		presenceOpts = append(presenceOpts, services.WithPresenceTiming(opts.PresenceTick, opts.PresenceGrace))
	}
	e.presence = services.NewPresenceService(sessionID, opts.RoomID, opts.Transitions, logger, presenceOpts...)

	e.exchange = infrawebrtc.NewStreamExchange(opts.Capturer, logger)

	coreOpts := []infrawebrtc.PeerCoreOption{
		infrawebrtc.WithStateObserver(e.onStateChange),
		infrawebrtc.WithRemoteTrackObserver(e.onRemoteTrack),
	}
	if opts.PortRangeMin > 0 && opts.PortRangeMax > 0 {
		coreOpts = append(coreOpts, infrawebrtc.WithPortRange(opts.PortRangeMin, opts.PortRangeMax))
	}
	e.core = infrawebrtc.NewPeerCore(logger, coreOpts...)
	var routerOpts []infrawebrtc.RouterOption
	if opts.Collector != nil {
		routerOpts = append(routerOpts, infrawebrtc.WithCandidateSentObserver(opts.Collector.CandidateSent))
	}
	e.router = infrawebrtc.NewSignalRouter(e.core, opts.Sender, logger, routerOpts...)

	return e
}

// Start creates the underlying connection and launches the presence tick.
// Quality monitoring starts lazily once the connection reaches connected.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.started {
		e.mu.Unlock()
		return nil
	}
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	e.runCtx = runCtx
	e.cancel = cancel
	e.started = true
	e.mu.Unlock()

	if err := e.establish(runCtx); err != nil {
		cancel()
		return err
	}
	e.presence.Start(runCtx)
	if e.opts.Collector != nil {
		e.opts.Collector.SessionStarted()
	}
	e.logger.Infow("session engine started", "session_id", e.sessionID)
	return nil
}

// establish builds a fresh connection and rebinds every component to it.
func (e *Engine) establish(ctx context.Context) error {
	pc, err := e.core.Create(e.opts.ICEServers)
	if err != nil {
		return err
	}
	e.router.Bind(ctx, pc)
	e.stats.Bind(pc)
	e.exchange.BindPeerConnection(pc)
	if e.opts.Collector != nil {
		e.opts.Collector.ConnectionCreated()
	}
	return nil
}

func (e *Engine) onStateChange(state domain.ConnectionState) {
	e.mu.Lock()
	ctx := e.runCtx
	started := e.started
	e.mu.Unlock()
	if !started || ctx == nil {
		return
	}

	switch state.ConnectionPhase {
	case domain.ConnectionConnected:
		e.monitor.Start(ctx)
	case domain.ConnectionFailed:
		e.monitor.Stop()
		go e.recover(ctx)
	case domain.ConnectionDisconnected, domain.ConnectionClosed:
		e.monitor.Stop()
	}
}

// recover tears the failed connection down and rebuilds it under the bounded
// retry policy. Runs off the state-change path so the apply loop never blocks
// on backoff waits.
func (e *Engine) recover(ctx context.Context) {
	e.recovery.HandleNetworkDisconnection(ctx, func(ctx context.Context) error {
		e.exchange.Detach()
		if err := e.core.Close(); err != nil {
			e.logger.Warnw("teardown before reconnect failed", "session_id", e.sessionID, "error", err)
		}
		return e.establish(ctx)
	})
}

func (e *Engine) onRemoteTrack(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
	if receiver != nil {
		e.stats.WatchReceiver(receiver)
	}
	if track.Kind() == webrtc.RTPCodecTypeAudio {
		reader := presence.NewTrackLevelReader(track, presence.DefaultAudioLevelExtensionID, e.logger)
		if err := e.presence.AttachAudioSource(domain.ParticipantID(track.StreamID()), reader); err != nil {
			// Track arrived before the roster knew the participant; the
			// reader is attached on the next roster update instead.
			_ = reader.Close()
			e.logger.Debugw("audio source arrived before participant",
				"session_id", e.sessionID,
				"stream_id", track.StreamID(),
			)
		}
	}
}

// Close tears the whole engine down. Idempotent.
func (e *Engine) Close() error {
	e.mu.Lock()
	if !e.started {
		e.mu.Unlock()
		return nil
	}
	e.started = false
	cancel := e.cancel
	e.cancel = nil
	e.runCtx = nil
	e.mu.Unlock()

	e.monitor.Stop()
	e.presence.Destroy()
	e.exchange.Detach()
	err := e.core.Close()
	if cancel != nil {
		cancel()
	}
	if closer, ok := e.opts.Sender.(io.Closer); ok {
		_ = closer.Close()
	}
	if e.opts.Collector != nil {
		e.opts.Collector.SessionClosed()
		e.opts.Collector.ForgetSession(e.sessionID)
	}
	e.logger.Infow("session engine closed", "session_id", e.sessionID)
	return err
}

func (e *Engine) State() domain.ConnectionState {
	return e.core.State()
}

func (e *Engine) Quality() domain.QualityAssessment {
	return e.monitor.Latest()
}

func (e *Engine) Roster() []domain.Participant {
	return e.presence.Snapshot()
}

func (e *Engine) Recovery() domain.RecoveryState {
	return e.recovery.State()
}

func (e *Engine) ResetRecovery() {
	e.recovery.ResetRecovery()
}

// Exchange exposes the session's media exchange for local stream and
// screen-share operations.
func (e *Engine) Exchange() *infrawebrtc.StreamExchange {
	return e.exchange
}

// Presence exposes the session's roster tracker.
func (e *Engine) Presence() *services.PresenceService {
	return e.presence
}

// HandleTokenExpiry re-issues the session credential outside the retry
// budget.
func (e *Engine) HandleTokenExpiry(ctx context.Context) (string, bool) {
	return e.recovery.HandleTokenExpiry(ctx)
}
