package presence

import (
	"math"
	"sync"
	"time"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v3"
	"go.uber.org/zap"
)

// DefaultAudioLevelExtensionID is the usual negotiated id for the
// urn:ietf:params:rtp-hdrext:ssrc-audio-level header extension.
const DefaultAudioLevelExtensionID = 1

// staleAfter bounds how long the last observed level counts as current.
const staleAfter = 500 * time.Millisecond

// TrackLevelReader derives a normalized volume level (0-1) from a remote
// audio track. It prefers the ssrc-audio-level header extension and falls
// back to a payload amplitude heuristic when the extension was not
// negotiated.
type TrackLevelReader struct {
	mu        sync.Mutex
	level     float64
	updatedAt time.Time
	closed    bool

	extensionID uint8
	done        chan struct{}
	logger      *zap.SugaredLogger
}

func NewTrackLevelReader(track *webrtc.TrackRemote, extensionID uint8, logger *zap.SugaredLogger) *TrackLevelReader {
	if extensionID == 0 {
		extensionID = DefaultAudioLevelExtensionID
	}
	r := &TrackLevelReader{
		extensionID: extensionID,
		done:        make(chan struct{}),
		logger:      logger,
	}
	go r.readLoop(track)
	return r
}

func (r *TrackLevelReader) readLoop(track *webrtc.TrackRemote) {
	buf := make([]byte, 1500)
	pkt := &rtp.Packet{}
	for {
		select {
		case <-r.done:
			return
		default:
		}

		n, _, err := track.Read(buf)
		if err != nil {
			r.logger.Debugw("audio track read ended", "track_id", track.ID(), "error", err)
			return
		}
		if err := pkt.Unmarshal(buf[:n]); err != nil {
			continue
		}
		r.observe(levelFromPacket(pkt, r.extensionID))
	}
}

func (r *TrackLevelReader) observe(level float64) {
	r.mu.Lock()
	r.level = level
	r.updatedAt = time.Now()
	r.mu.Unlock()
}

// Level returns the instantaneous normalized volume. Levels go stale fast:
// once packets stop arriving the participant reads as silent.
func (r *TrackLevelReader) Level() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed || time.Since(r.updatedAt) > staleAfter {
		return 0
	}
	return r.level
}

func (r *TrackLevelReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	close(r.done)
	return nil
}

// levelFromPacket extracts the dBov audio level when present and converts it
// to linear scale; otherwise estimates from payload amplitude.
func levelFromPacket(pkt *rtp.Packet, extensionID uint8) float64 {
	if ext := pkt.GetExtension(extensionID); len(ext) > 0 {
		ale := rtp.AudioLevelExtension{}
		if err := ale.Unmarshal(ext); err == nil {
			// Level is attenuation in dBov, 0 loudest, 127 silence.
			return math.Pow(10, -float64(ale.Level)/20)
		}
	}
	if len(pkt.Payload) == 0 {
		return 0
	}
	var sum float64
	for _, b := range pkt.Payload {
		sum += math.Abs(float64(int8(b)))
	}
	return sum / float64(len(pkt.Payload)) / 128
}
