package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWorstQualityPicksPessimistic(t *testing.T) {
	assert.Equal(t, QualityPoor, WorstQuality(QualityExcellent, QualityPoor))
	assert.Equal(t, QualityPoor, WorstQuality(QualityPoor, QualityExcellent))
	assert.Equal(t, QualityDisconnected, WorstQuality(QualityDisconnected, QualityGood))
	assert.Equal(t, QualityGood, WorstQuality(QualityGood, QualityGood))
}

func TestDeriveQualityTable(t *testing.T) {
	cases := []struct {
		name string
		conn ConnectionPhase
		ice  ICEPhase
		want QualityLevel
	}{
		{"both healthy", ConnectionConnected, ICEConnected, QualityExcellent},
		{"connected but ice checking", ConnectionConnected, ICEChecking, QualityGood},
		{"connected but ice disconnected", ConnectionConnected, ICEDisconnected, QualityPoor},
		{"connected but ice failed", ConnectionConnected, ICEFailed, QualityDisconnected},
		{"connecting with ice completed", ConnectionConnecting, ICECompleted, QualityGood},
		{"disconnected wins over excellent ice", ConnectionDisconnected, ICEConnected, QualityPoor},
		{"failed connection", ConnectionFailed, ICEConnected, QualityDisconnected},
		{"closed connection", ConnectionClosed, ICECompleted, QualityDisconnected},
		{"fresh connection", ConnectionNew, ICENew, QualityGood},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, DeriveQuality(tc.conn, tc.ice))
		})
	}
}

func TestScoreToQualityCutoffs(t *testing.T) {
	assert.Equal(t, QualityExcellent, ScoreToQuality(100))
	assert.Equal(t, QualityExcellent, ScoreToQuality(90))
	assert.Equal(t, QualityGood, ScoreToQuality(89.9))
	assert.Equal(t, QualityGood, ScoreToQuality(70))
	assert.Equal(t, QualityFair, ScoreToQuality(69.9))
	assert.Equal(t, QualityFair, ScoreToQuality(50))
	assert.Equal(t, QualityPoor, ScoreToQuality(49.9))
	assert.Equal(t, QualityPoor, ScoreToQuality(20))
	assert.Equal(t, QualityDisconnected, ScoreToQuality(19.9))
	assert.Equal(t, QualityDisconnected, ScoreToQuality(0))
}

func TestUnknownLevelRanksAsGood(t *testing.T) {
	assert.Equal(t, QualityGood.Rank(), QualityLevel("bogus").Rank())
}
