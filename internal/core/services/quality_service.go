package services

import (
	"time"

	"telecare/internal/core/domain"
)

// QualityThresholds are the fixed boundaries for composite scoring. They
// must match the alerting contract exactly, so they are configuration-frozen
// defaults rather than tunables.
type QualityThresholds struct {
	RTTGood     time.Duration // above this, moderate latency penalty
	RTTPoor     time.Duration // above this, critical latency penalty
	LossMinor   float64
	LossModerate float64
	LossCritical float64
	JitterMinor    time.Duration
	JitterModerate time.Duration
	JitterCritical time.Duration
	BandwidthMinor    int // bps, below this minor penalty
	BandwidthModerate int
	BandwidthCritical int
}

// DefaultQualityThresholds returns the scoring boundaries.
func DefaultQualityThresholds() QualityThresholds {
	return QualityThresholds{
		RTTGood:           100 * time.Millisecond,
		RTTPoor:           300 * time.Millisecond,
		LossMinor:         0.005,
		LossModerate:      0.02,
		LossCritical:      0.05,
		JitterMinor:       30 * time.Millisecond,
		JitterModerate:    100 * time.Millisecond,
		JitterCritical:    200 * time.Millisecond,
		BandwidthMinor:    1_000_000,
		BandwidthModerate: 500_000,
		BandwidthCritical: 100_000,
	}
}

// QualityService turns metric snapshots into quality assessments. Assess is
// pure: the same snapshot always produces the same assessment.
type QualityService struct {
	thresholds QualityThresholds
}

func NewQualityService() *QualityService {
	return &QualityService{thresholds: DefaultQualityThresholds()}
}

// Assess computes per-dimension scores from a starting value of 100, maps
// them to levels, and takes the worst dimension as the overall label.
func (qs *QualityService) Assess(m domain.ConnectionMetrics) domain.QualityAssessment {
	t := qs.thresholds
	loss := m.PacketLossRate()

	var recs []string

	network := 100.0
	switch {
	case m.RTT > t.RTTPoor:
		network -= 40
		recs = append(recs, "High latency detected: consider turning off video to stabilize audio")
	case m.RTT > t.RTTGood:
		network -= 15
	}
	switch {
	case loss > t.LossCritical:
		network -= 40
		recs = append(recs, "Significant packet loss: check your network connection")
	case loss > t.LossModerate:
		network -= 20
	case loss > t.LossMinor:
		network -= 10
	}
	switch {
	case m.Jitter > t.JitterCritical:
		network -= 30
		recs = append(recs, "High jitter: audio and video may be choppy")
	case m.Jitter > t.JitterModerate:
		network -= 15
	case m.Jitter > t.JitterMinor:
		network -= 5
	}
	if m.Bandwidth > 0 {
		switch {
		case m.Bandwidth < t.BandwidthCritical:
			network -= 40
			recs = append(recs, "Very low bandwidth: close other applications using the network")
		case m.Bandwidth < t.BandwidthModerate:
			network -= 20
		case m.Bandwidth < t.BandwidthMinor:
			network -= 10
		}
	}

	video := 100.0
	if m.FrameRate > 0 {
		switch {
		case m.FrameRate < 10:
			video -= 30
			recs = append(recs, "Low frame rate: reduce video resolution")
		case m.FrameRate < 20:
			video -= 15
		}
	}
	if m.Bandwidth > 0 {
		switch {
		case m.Bandwidth < t.BandwidthCritical:
			video -= 40
		case m.Bandwidth < t.BandwidthModerate:
			video -= 20
		case m.Bandwidth < t.BandwidthMinor:
			video -= 10
		}
	}
	if m.FrameHeight > 0 && m.FrameHeight < 360 {
		video -= 10
	}

	audio := 100.0
	switch {
	case m.Jitter > t.JitterCritical:
		audio -= 40
	case m.Jitter > t.JitterModerate:
		audio -= 20
	case m.Jitter > t.JitterMinor:
		audio -= 10
	}
	switch {
	case loss > t.LossCritical:
		audio -= 40
	case loss > t.LossModerate:
		audio -= 20
	case loss > t.LossMinor:
		audio -= 10
	}

	network = clampScore(network)
	video = clampScore(video)
	audio = clampScore(audio)

	a := domain.QualityAssessment{
		Network:         domain.ScoreToQuality(network),
		Video:           domain.ScoreToQuality(video),
		Audio:           domain.ScoreToQuality(audio),
		NetworkScore:    network,
		VideoScore:      video,
		AudioScore:      audio,
		Recommendations: recs,
		Timestamp:       m.Timestamp,
	}
	a.Overall = domain.WorstQuality(a.Network, domain.WorstQuality(a.Video, a.Audio))
	return a
}

// IsCritical reports whether the assessment sits in the tier that raises a
// degradation alert.
func (qs *QualityService) IsCritical(a domain.QualityAssessment) bool {
	return a.Overall == domain.QualityDisconnected
}

func clampScore(s float64) float64 {
	if s < 0 {
		return 0
	}
	if s > 100 {
		return 100
	}
	return s
}
