package monitoring

import (
	"context"
	"sync"
	"time"

	"telecare/internal/core/domain"
	"telecare/internal/core/ports"
	"telecare/internal/core/services"

	"go.uber.org/zap"
)

// QualityMonitor samples connection statistics on a fixed interval while the
// connection is connected and turns each snapshot into a quality assessment.
// A critical alert is raised once per degradation transition, not on every
// tick spent inside the critical tier.
type QualityMonitor struct {
	sessionID domain.SessionID
	stats     ports.StatsProvider
	quality   *services.QualityService
	interval  time.Duration

	mu         sync.Mutex
	running    bool
	cancel     context.CancelFunc
	done       chan struct{}
	latest     domain.QualityAssessment
	inCritical bool

	onAssessment func(domain.QualityAssessment)
	onAlert      func(domain.QualityAssessment)
	collector    *PrometheusCollector

	logger *zap.SugaredLogger
}

type MonitorOption func(*QualityMonitor)

// WithAssessmentObserver is invoked with every produced assessment.
func WithAssessmentObserver(fn func(domain.QualityAssessment)) MonitorOption {
	return func(m *QualityMonitor) { m.onAssessment = fn }
}

// WithAlertObserver is invoked once per transition into the critical tier.
func WithAlertObserver(fn func(domain.QualityAssessment)) MonitorOption {
	return func(m *QualityMonitor) { m.onAlert = fn }
}

// WithCollector exports samples to prometheus.
func WithCollector(c *PrometheusCollector) MonitorOption {
	return func(m *QualityMonitor) { m.collector = c }
}

// WithInterval overrides the 1s sampling interval. Used by tests.
func WithInterval(d time.Duration) MonitorOption {
	return func(m *QualityMonitor) { m.interval = d }
}

func NewQualityMonitor(
	sessionID domain.SessionID,
	stats ports.StatsProvider,
	quality *services.QualityService,
	logger *zap.SugaredLogger,
	opts ...MonitorOption,
) *QualityMonitor {
	m := &QualityMonitor{
		sessionID: sessionID,
		stats:     stats,
		quality:   quality,
		interval:  time.Second,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start launches the sampling loop. Starting while already running is a
// no-op. The caller gates Start/Stop on the connection being connected.
func (m *QualityMonitor) Start(ctx context.Context) {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})
	m.running = true
	m.mu.Unlock()

	m.logger.Infow("quality monitoring started", "session_id", m.sessionID, "interval", m.interval)
	go m.loop(ctx)
}

// Stop cancels the sampling timer. Safe to call when not running.
func (m *QualityMonitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	m.cancel()
	done := m.done
	m.mu.Unlock()
	<-done
	m.logger.Infow("quality monitoring stopped", "session_id", m.sessionID)
}

// Running reports whether the sampling loop is active.
func (m *QualityMonitor) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// Latest returns the most recent assessment.
func (m *QualityMonitor) Latest() domain.QualityAssessment {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.latest
}

func (m *QualityMonitor) loop(ctx context.Context) {
	defer close(m.done)
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sample(ctx)
		}
	}
}

// Sample runs one sampling pass. Exposed for tests and manual probes.
func (m *QualityMonitor) Sample(ctx context.Context) {
	started := time.Now()
	metrics, err := m.stats.GetStats(ctx)
	if err != nil {
		m.logger.Debugw("stats sample skipped", "session_id", m.sessionID, "error", err)
		return
	}

	assessment := m.quality.Assess(metrics)
	critical := m.quality.IsCritical(assessment)

	m.mu.Lock()
	m.latest = assessment
	entered := critical && !m.inCritical
	m.inCritical = critical
	m.mu.Unlock()

	if m.collector != nil {
		m.collector.ObserveAssessment(m.sessionID, assessment)
		if metrics.RTT > 0 {
			m.collector.ObserveRTT(metrics.RTT.Seconds())
		}
		m.collector.ObserveSampleDuration(time.Since(started).Seconds())
	}
	if m.onAssessment != nil {
		m.onAssessment(assessment)
	}
	if entered {
		m.logger.Warnw("connection quality critical",
			"session_id", m.sessionID,
			"overall", assessment.Overall,
			"network_score", assessment.NetworkScore,
		)
		if m.collector != nil {
			m.collector.QualityAlertRaised()
		}
		if m.onAlert != nil {
			m.onAlert(assessment)
		}
	}
}
