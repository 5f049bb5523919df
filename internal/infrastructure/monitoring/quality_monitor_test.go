package monitoring

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"telecare/internal/core/domain"
	"telecare/internal/core/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type stubStats struct {
	mu      sync.Mutex
	metrics domain.ConnectionMetrics
	err     error
	calls   int
}

func (s *stubStats) GetStats(ctx context.Context) (domain.ConnectionMetrics, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.metrics, s.err
}

func (s *stubStats) set(m domain.ConnectionMetrics) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metrics = m
}

func healthyMetrics() domain.ConnectionMetrics {
	return domain.ConnectionMetrics{
		RTT:         40 * time.Millisecond,
		PacketsSent: 10000,
		Jitter:      5 * time.Millisecond,
		Bandwidth:   2_000_000,
		FrameRate:   30,
		Timestamp:   time.Now(),
	}
}

func collapsedMetrics() domain.ConnectionMetrics {
	return domain.ConnectionMetrics{
		RTT:         500 * time.Millisecond,
		PacketsSent: 1000,
		PacketsLost: 100,
		Jitter:      300 * time.Millisecond,
		Bandwidth:   50_000,
		Timestamp:   time.Now(),
	}
}

func newTestMonitor(t *testing.T, stats *stubStats, opts ...MonitorOption) *QualityMonitor {
	t.Helper()
	return NewQualityMonitor("sess-1", stats, services.NewQualityService(),
		zaptest.NewLogger(t).Sugar(), opts...)
}

func TestSampleUpdatesLatest(t *testing.T) {
	stats := &stubStats{metrics: healthyMetrics()}
	m := newTestMonitor(t, stats)

	m.Sample(context.Background())
	assert.Equal(t, domain.QualityExcellent, m.Latest().Overall)
}

func TestSampleSkipsOnStatsError(t *testing.T) {
	stats := &stubStats{err: errors.New("no connection")}
	var assessments int
	m := newTestMonitor(t, stats, WithAssessmentObserver(func(domain.QualityAssessment) {
		assessments++
	}))

	m.Sample(context.Background())
	assert.Zero(t, assessments)
	assert.Equal(t, domain.QualityAssessment{}, m.Latest())
}

func TestAlertFiresOncePerCriticalTransition(t *testing.T) {
	stats := &stubStats{metrics: collapsedMetrics()}
	var alerts []domain.QualityAssessment
	m := newTestMonitor(t, stats, WithAlertObserver(func(a domain.QualityAssessment) {
		alerts = append(alerts, a)
	}))

	ctx := context.Background()
	m.Sample(ctx)
	m.Sample(ctx)
	m.Sample(ctx)

	// Staying inside the critical tier produces a single alert.
	require.Len(t, alerts, 1)
	assert.Equal(t, domain.QualityDisconnected, alerts[0].Overall)

	// Recovering and collapsing again produces a second one.
	stats.set(healthyMetrics())
	m.Sample(ctx)
	stats.set(collapsedMetrics())
	m.Sample(ctx)
	assert.Len(t, alerts, 2)
}

func TestAssessmentObserverSeesEverySample(t *testing.T) {
	stats := &stubStats{metrics: healthyMetrics()}
	var seen []domain.QualityLevel
	m := newTestMonitor(t, stats, WithAssessmentObserver(func(a domain.QualityAssessment) {
		seen = append(seen, a.Overall)
	}))

	ctx := context.Background()
	m.Sample(ctx)
	stats.set(collapsedMetrics())
	m.Sample(ctx)

	assert.Equal(t, []domain.QualityLevel{domain.QualityExcellent, domain.QualityDisconnected}, seen)
}

func TestStartIsIdempotentAndStopWaits(t *testing.T) {
	stats := &stubStats{metrics: healthyMetrics()}
	m := newTestMonitor(t, stats, WithInterval(5*time.Millisecond))

	ctx := context.Background()
	m.Start(ctx)
	m.Start(ctx)
	assert.True(t, m.Running())

	require.Eventually(t, func() bool {
		return m.Latest().Overall == domain.QualityExcellent
	}, time.Second, time.Millisecond)

	m.Stop()
	assert.False(t, m.Running())

	// No samples arrive after Stop returns.
	stats.mu.Lock()
	after := stats.calls
	stats.mu.Unlock()
	time.Sleep(20 * time.Millisecond)
	stats.mu.Lock()
	assert.Equal(t, after, stats.calls)
	stats.mu.Unlock()
}

func TestStopWhenNotRunning(t *testing.T) {
	m := newTestMonitor(t, &stubStats{})
	m.Stop()

	m.Start(context.Background())
	m.Stop()
	m.Stop()
}
