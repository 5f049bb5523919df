package webrtc

import (
	"context"
	"sync"
	"time"

	"telecare/internal/core/domain"

	"github.com/pion/rtcp"
	"github.com/pion/webrtc/v3"
	"go.uber.org/zap"
)

// VideoInfoFunc reports the current inbound video frame rate and resolution.
type VideoInfoFunc func() (fps float64, width, height int)

// StatsProvider maps the connection's statistics capability into
// ConnectionMetrics snapshots. RTT and bandwidth come from the succeeded
// candidate pair, packet and byte counters from the RTP stream reports, and
// loss/jitter are enriched from RTCP receiver reports when available.
type StatsProvider struct {
	mu sync.Mutex
	pc *webrtc.PeerConnection

	remoteFractionLost float64
	remoteJitter       time.Duration
	remoteRTT          time.Duration

	videoInfo VideoInfoFunc
	logger    *zap.SugaredLogger
}

func NewStatsProvider(logger *zap.SugaredLogger) *StatsProvider {
	return &StatsProvider{logger: logger}
}

// Bind points the provider at the active connection; nil detaches it.
func (p *StatsProvider) Bind(pc *webrtc.PeerConnection) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pc = pc
	p.remoteFractionLost = 0
	p.remoteJitter = 0
	p.remoteRTT = 0
}

// SetVideoInfo installs the inbound video frame info hook.
func (p *StatsProvider) SetVideoInfo(fn VideoInfoFunc) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.videoInfo = fn
}

// GetStats produces one immutable metrics snapshot.
func (p *StatsProvider) GetStats(ctx context.Context) (domain.ConnectionMetrics, error) {
	p.mu.Lock()
	pc := p.pc
	remoteJitter := p.remoteJitter
	remoteRTT := p.remoteRTT
	videoInfo := p.videoInfo
	p.mu.Unlock()

	if pc == nil {
		return domain.ConnectionMetrics{}, domain.ErrNoActiveConnection
	}

	m := domain.ConnectionMetrics{Timestamp: time.Now()}
	report := pc.GetStats()
	for _, s := range report {
		switch st := s.(type) {
		case webrtc.ICECandidatePairStats:
			if st.State == webrtc.StatsICECandidatePairStateSucceeded {
				m.RTT = time.Duration(st.CurrentRoundTripTime * float64(time.Second))
				m.Bandwidth = int(st.AvailableOutgoingBitrate)
			}
		case webrtc.InboundRTPStreamStats:
			m.PacketsReceived += uint64(st.PacketsReceived)
			if st.PacketsLost > 0 {
				m.PacketsLost += uint64(st.PacketsLost)
			}
			m.BytesReceived += st.BytesReceived
			if j := time.Duration(st.Jitter * float64(time.Second)); j > m.Jitter {
				m.Jitter = j
			}
		case webrtc.OutboundRTPStreamStats:
			m.PacketsSent += uint64(st.PacketsSent)
			m.BytesSent += st.BytesSent
		}
	}

	if m.RTT == 0 && remoteRTT > 0 {
		m.RTT = remoteRTT
	}
	if remoteJitter > m.Jitter {
		m.Jitter = remoteJitter
	}
	if videoInfo != nil {
		m.FrameRate, m.FrameWidth, m.FrameHeight = videoInfo()
	}
	return m, nil
}

// WatchReceiver consumes RTCP packets from a receiver until it closes,
// folding receiver-report loss and jitter into subsequent snapshots.
func (p *StatsProvider) WatchReceiver(receiver *webrtc.RTPReceiver) {
	go func() {
		for {
			packets, _, err := receiver.ReadRTCP()
			if err != nil {
				return
			}
			p.ingestRTCP(packets)
		}
	}()
}

func (p *StatsProvider) ingestRTCP(packets []rtcp.Packet) {
	for _, packet := range packets {
		rr, ok := packet.(*rtcp.ReceiverReport)
		if !ok {
			continue
		}
		for _, report := range rr.Reports {
			p.mu.Lock()
			p.remoteFractionLost = float64(report.FractionLost) / 255.0
			p.remoteJitter = time.Duration(report.Jitter) * time.Millisecond
			if report.LastSenderReport != 0 && report.Delay != 0 {
				// Coarse RTT estimate from the DLSR field.
				p.remoteRTT = time.Duration(report.Delay) * time.Second / 65536
			}
			p.mu.Unlock()
		}
	}
}
