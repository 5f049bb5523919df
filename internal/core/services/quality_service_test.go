package services

import (
	"testing"
	"time"

	"telecare/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cleanMetrics() domain.ConnectionMetrics {
	return domain.ConnectionMetrics{
		RTT:         40 * time.Millisecond,
		PacketsSent: 10000,
		Jitter:      5 * time.Millisecond,
		Bandwidth:   2_000_000,
		FrameRate:   30,
		FrameWidth:  1280,
		FrameHeight: 720,
		Timestamp:   time.Now(),
	}
}

func TestAssessCleanConnectionIsExcellent(t *testing.T) {
	qs := NewQualityService()
	a := qs.Assess(cleanMetrics())

	assert.Equal(t, domain.QualityExcellent, a.Overall)
	assert.Equal(t, 100.0, a.NetworkScore)
	assert.Equal(t, 100.0, a.VideoScore)
	assert.Equal(t, 100.0, a.AudioScore)
	assert.Empty(t, a.Recommendations)
	assert.False(t, qs.IsCritical(a))
}

func TestAssessIsPure(t *testing.T) {
	qs := NewQualityService()
	m := cleanMetrics()
	m.RTT = 150 * time.Millisecond
	m.PacketsLost = 120

	first := qs.Assess(m)
	second := qs.Assess(m)
	assert.Equal(t, first, second)
}

func TestAssessScoresDegradeMonotonically(t *testing.T) {
	qs := NewQualityService()

	mild := cleanMetrics()
	mild.RTT = 150 * time.Millisecond

	severe := mild
	severe.RTT = 400 * time.Millisecond
	severe.PacketsLost = 800 // 8% of 10000

	mildScore := qs.Assess(mild).NetworkScore
	severeScore := qs.Assess(severe).NetworkScore
	assert.Less(t, severeScore, mildScore)
}

func TestAssessCollapsedConnectionIsCritical(t *testing.T) {
	qs := NewQualityService()
	m := domain.ConnectionMetrics{
		RTT:         500 * time.Millisecond,
		PacketsSent: 1000,
		PacketsLost: 100, // 10% loss
		Jitter:      300 * time.Millisecond,
		Bandwidth:   50_000,
		Timestamp:   time.Now(),
	}

	a := qs.Assess(m)
	assert.Equal(t, 0.0, a.NetworkScore)
	assert.Equal(t, domain.QualityDisconnected, a.Network)
	assert.Equal(t, domain.QualityDisconnected, a.Overall)
	assert.True(t, qs.IsCritical(a))
	require.NotEmpty(t, a.Recommendations)
}

func TestAssessOverallIsWorstDimension(t *testing.T) {
	qs := NewQualityService()

	// Heavy jitter hurts audio harder than network.
	m := cleanMetrics()
	m.Jitter = 250 * time.Millisecond

	a := qs.Assess(m)
	assert.Equal(t, 70.0, a.NetworkScore)
	assert.Equal(t, 60.0, a.AudioScore)
	assert.Equal(t, domain.QualityFair, a.Audio)
	assert.Equal(t, a.Audio, a.Overall)
}

func TestAssessSkipsAbsentVideoSignals(t *testing.T) {
	qs := NewQualityService()

	// Audio-only call: no frame rate, no bandwidth estimate yet.
	m := domain.ConnectionMetrics{
		RTT:         50 * time.Millisecond,
		PacketsSent: 5000,
		Jitter:      10 * time.Millisecond,
		Timestamp:   time.Now(),
	}

	a := qs.Assess(m)
	assert.Equal(t, 100.0, a.VideoScore)
	assert.Equal(t, domain.QualityExcellent, a.Overall)
}

func TestAssessZeroSentPacketsDoesNotDivideByZero(t *testing.T) {
	qs := NewQualityService()
	m := domain.ConnectionMetrics{Timestamp: time.Now()}
	a := qs.Assess(m)
	assert.Equal(t, domain.QualityExcellent, a.Overall)
}

func TestIsCriticalOnlyForDisconnectedTier(t *testing.T) {
	qs := NewQualityService()
	for _, level := range []domain.QualityLevel{
		domain.QualityExcellent, domain.QualityGood, domain.QualityFair, domain.QualityPoor,
	} {
		assert.False(t, qs.IsCritical(domain.QualityAssessment{Overall: level}), string(level))
	}
	assert.True(t, qs.IsCritical(domain.QualityAssessment{Overall: domain.QualityDisconnected}))
}
