package domain

import "time"

// ConnectionMetrics is an immutable snapshot of connection statistics,
// replaced wholesale on every sampling tick. Counters are cumulative within
// one connection lifetime; a new connection resets them.
type ConnectionMetrics struct {
	RTT             time.Duration `json:"rtt"`
	PacketsLost     uint64        `json:"packets_lost"`
	PacketsSent     uint64        `json:"packets_sent"`
	PacketsReceived uint64        `json:"packets_received"`
	BytesSent       uint64        `json:"bytes_sent"`
	BytesReceived   uint64        `json:"bytes_received"`
	Jitter          time.Duration `json:"jitter"`
	Bandwidth       int           `json:"bandwidth"` // bits per second
	FrameRate       float64       `json:"frame_rate"`
	FrameWidth      int           `json:"frame_width"`
	FrameHeight     int           `json:"frame_height"`
	Timestamp       time.Time     `json:"timestamp"`
}

// PacketLossRate returns lost/sent clamped to a sane divisor.
func (m ConnectionMetrics) PacketLossRate() float64 {
	sent := m.PacketsSent
	if sent == 0 {
		sent = 1
	}
	return float64(m.PacketsLost) / float64(sent)
}

// QualityAssessment is derived from the latest ConnectionMetrics. Overall is
// always the worst of the three dimensions, never an average.
type QualityAssessment struct {
	Network         QualityLevel `json:"network"`
	Video           QualityLevel `json:"video"`
	Audio           QualityLevel `json:"audio"`
	Overall         QualityLevel `json:"overall"`
	NetworkScore    float64      `json:"network_score"`
	VideoScore      float64      `json:"video_score"`
	AudioScore      float64      `json:"audio_score"`
	Recommendations []string     `json:"recommendations,omitempty"`
	Timestamp       time.Time    `json:"timestamp"`
}
