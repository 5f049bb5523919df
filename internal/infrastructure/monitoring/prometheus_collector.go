package monitoring

import (
	"telecare/internal/core/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusCollector exports session engine metrics. Construct one per
// registry; tests pass their own registry to avoid global registration
// conflicts.
type PrometheusCollector struct {
	sessionsActive    prometheus.Gauge
	connectionsTotal  prometheus.Counter
	recoveryAttempts  prometheus.Counter
	recoveryExhausted prometheus.Counter
	qualityAlerts     prometheus.Counter
	candidatesSent    prometheus.Counter

	qualityScore   *prometheus.GaugeVec
	connectionRTT  prometheus.Histogram
	sampleDuration prometheus.Histogram
}

func NewPrometheusCollector(reg prometheus.Registerer) *PrometheusCollector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &PrometheusCollector{
		sessionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "telecare_sessions_active",
			Help: "Number of active session engines",
		}),

		connectionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "telecare_connections_total",
			Help: "Total peer connections created",
		}),

		recoveryAttempts: factory.NewCounter(prometheus.CounterOpts{
			Name: "telecare_recovery_attempts_total",
			Help: "Total recovery attempts across sessions",
		}),

		recoveryExhausted: factory.NewCounter(prometheus.CounterOpts{
			Name: "telecare_recovery_exhausted_total",
			Help: "Total sessions that exhausted their retry budget",
		}),

		qualityAlerts: factory.NewCounter(prometheus.CounterOpts{
			Name: "telecare_quality_alerts_total",
			Help: "Total critical quality degradation alerts",
		}),

		candidatesSent: factory.NewCounter(prometheus.CounterOpts{
			Name: "telecare_ice_candidates_sent_total",
			Help: "Total local ICE candidates signaled",
		}),

		qualityScore: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "telecare_quality_score",
			Help: "Latest composite quality score (0-100) per dimension",
		}, []string{"session_id", "dimension"}),

		connectionRTT: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "telecare_connection_rtt_seconds",
			Help:    "Round-trip time of the active candidate pair",
			Buckets: []float64{0.01, 0.05, 0.1, 0.2, 0.3, 0.5, 1, 2},
		}),

		sampleDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "telecare_stats_sample_duration_seconds",
			Help:    "Duration of one statistics sampling pass",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 10),
		}),
	}
}

func (p *PrometheusCollector) SessionStarted()    { p.sessionsActive.Inc() }
func (p *PrometheusCollector) SessionClosed()     { p.sessionsActive.Dec() }
func (p *PrometheusCollector) ConnectionCreated() { p.connectionsTotal.Inc() }
func (p *PrometheusCollector) RecoveryAttempted() { p.recoveryAttempts.Inc() }
func (p *PrometheusCollector) RecoveryExhausted() { p.recoveryExhausted.Inc() }
func (p *PrometheusCollector) CandidateSent()     { p.candidatesSent.Inc() }

func (p *PrometheusCollector) ObserveAssessment(sessionID domain.SessionID, a domain.QualityAssessment) {
	id := string(sessionID)
	p.qualityScore.WithLabelValues(id, "network").Set(a.NetworkScore)
	p.qualityScore.WithLabelValues(id, "video").Set(a.VideoScore)
	p.qualityScore.WithLabelValues(id, "audio").Set(a.AudioScore)
}

func (p *PrometheusCollector) ObserveRTT(rtt float64) {
	p.connectionRTT.Observe(rtt)
}

func (p *PrometheusCollector) ObserveSampleDuration(seconds float64) {
	p.sampleDuration.Observe(seconds)
}

func (p *PrometheusCollector) QualityAlertRaised() {
	p.qualityAlerts.Inc()
}

// ForgetSession drops the per-session gauge series once a session closes.
func (p *PrometheusCollector) ForgetSession(sessionID domain.SessionID) {
	p.qualityScore.DeletePartialMatch(prometheus.Labels{"session_id": string(sessionID)})
}
