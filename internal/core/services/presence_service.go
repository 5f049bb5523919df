package services

import (
	"context"
	"sync"
	"time"

	"telecare/internal/core/domain"
	"telecare/internal/core/ports"

	"go.uber.org/zap"
)

// PresenceService owns the participant roster for one session and derives
// speaking and dominant-speaker state from per-participant audio levels.
// External callers only read snapshots or submit update requests.
type PresenceService struct {
	mu           sync.RWMutex
	sessionID    domain.SessionID
	roomID       domain.RoomID
	participants map[domain.ParticipantID]*domain.Participant
	levels       map[domain.ParticipantID]ports.AudioLevelSource

	dominant       domain.ParticipantID
	lastDominantAt time.Time

	tickInterval      time.Duration
	speakingThreshold float64
	dominantGrace     time.Duration

	onSpeakerDetected func(domain.ParticipantID)

	transitions ports.TransitionLog
	logger      *zap.SugaredLogger

	cancel  context.CancelFunc
	done    chan struct{}
	running bool
}

type PresenceOption func(*PresenceService)

// WithSpeakerDetected sets the notification fired once per transition into
// speaking.
func WithSpeakerDetected(fn func(domain.ParticipantID)) PresenceOption {
	return func(p *PresenceService) { p.onSpeakerDetected = fn }
}

// WithPresenceTiming overrides the tick interval and dominant-speaker grace
// period. Used by tests.
func WithPresenceTiming(tick, grace time.Duration) PresenceOption {
	return func(p *PresenceService) {
		p.tickInterval = tick
		p.dominantGrace = grace
	}
}

func NewPresenceService(
	sessionID domain.SessionID,
	roomID domain.RoomID,
	transitions ports.TransitionLog,
	logger *zap.SugaredLogger,
	opts ...PresenceOption,
) *PresenceService {
	p := &PresenceService{
		sessionID:         sessionID,
		roomID:            roomID,
		participants:      make(map[domain.ParticipantID]*domain.Participant),
		levels:            make(map[domain.ParticipantID]ports.AudioLevelSource),
		tickInterval:      100 * time.Millisecond,
		speakingThreshold: 0.01,
		dominantGrace:     2 * time.Second,
		transitions:       transitions,
		logger:            logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start launches the speaking-detection tick. Starting twice is a no-op.
func (p *PresenceService) Start(ctx context.Context) {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	p.running = true
	p.mu.Unlock()

	go p.loop(ctx)
}

func (p *PresenceService) loop(ctx context.Context) {
	defer close(p.done)
	ticker := time.NewTicker(p.tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.detectSpeaking(time.Now())
		}
	}
}

// AddParticipant inserts or, for an already-known id, updates the entry.
func (p *PresenceService) AddParticipant(info domain.Participant) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if existing, ok := p.participants[info.ID]; ok {
		existing.DisplayName = info.DisplayName
		existing.IsAudioEnabled = info.IsAudioEnabled
		existing.IsVideoEnabled = info.IsVideoEnabled
		if info.IsHost {
			p.assignHostLocked(info.ID)
		}
		return
	}
	cp := info
	if cp.Quality == "" {
		cp.Quality = domain.QualityGood
	}
	p.participants[info.ID] = &cp
	if info.IsHost {
		p.assignHostLocked(info.ID)
	}
	p.logger.Infow("participant joined",
		"session_id", p.sessionID,
		"participant_id", info.ID,
		"display_name", info.DisplayName,
	)
}

// RemoveParticipant drops the entry, detaches its audio analysis and clears
// dominant-speaker status if it pointed at the removed id. Unknown ids are
// a no-op.
func (p *PresenceService) RemoveParticipant(id domain.ParticipantID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.participants[id]; !ok {
		return
	}
	delete(p.participants, id)
	if src, ok := p.levels[id]; ok {
		_ = src.Close()
		delete(p.levels, id)
	}
	if p.dominant == id {
		p.dominant = ""
	}
	p.logger.Infow("participant left", "session_id", p.sessionID, "participant_id", id)
}

// UpdateParticipant applies a partial update in place. Unknown ids error.
func (p *PresenceService) UpdateParticipant(id domain.ParticipantID, upd domain.ParticipantUpdate) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	part, ok := p.participants[id]
	if !ok {
		return domain.ErrParticipantNotFound
	}
	if upd.DisplayName != nil {
		part.DisplayName = *upd.DisplayName
	}
	if upd.AudioEnabled != nil {
		part.IsAudioEnabled = *upd.AudioEnabled
	}
	if upd.VideoEnabled != nil {
		part.IsVideoEnabled = *upd.VideoEnabled
	}
	if upd.Quality != nil {
		part.Quality = *upd.Quality
	}
	return nil
}

// AttachAudioSource binds an audio analysis source to a participant. A
// participant without one is silently excluded from speaking detection.
func (p *PresenceService) AttachAudioSource(id domain.ParticipantID, src ports.AudioLevelSource) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.participants[id]; !ok {
		return domain.ErrParticipantNotFound
	}
	if old, ok := p.levels[id]; ok {
		_ = old.Close()
	}
	p.levels[id] = src
	return nil
}

// MakeHost transfers host status atomically: the previous holder loses it in
// the same roster update that grants it to the target.
func (p *PresenceService) MakeHost(id domain.ParticipantID) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.participants[id]; !ok {
		return domain.ErrParticipantNotFound
	}
	p.assignHostLocked(id)
	return nil
}

func (p *PresenceService) assignHostLocked(id domain.ParticipantID) {
	for _, part := range p.participants {
		part.IsHost = part.ID == id
	}
}

// ApplyRosterEvent folds an external roster change into the roster. Events
// for unknown ids are no-ops; duplicate joins are updates.
func (p *PresenceService) ApplyRosterEvent(ev domain.RosterEvent) {
	switch ev.Kind {
	case domain.RosterJoined:
		p.AddParticipant(domain.Participant{
			ID:             ev.ParticipantID,
			DisplayName:    ev.DisplayName,
			IsAudioEnabled: true,
			IsVideoEnabled: true,
			IsHost:         ev.IsHost,
		})
	case domain.RosterLeft:
		p.RemoveParticipant(ev.ParticipantID)
	case domain.RosterRoomCreated, domain.RosterRoomClosed:
		p.logger.Debugw("room lifecycle event",
			"session_id", p.sessionID,
			"kind", ev.Kind,
			"room_id", ev.RoomID,
		)
	}
}

// ApplyTransition records a breakout relocation and updates the roster: a
// participant moving to another room leaves this one. Appending to the log
// is best-effort.
func (p *PresenceService) ApplyTransition(ctx context.Context, rec domain.BreakoutTransition) {
	if p.transitions != nil {
		if err := p.transitions.Append(ctx, p.sessionID, rec); err != nil {
			p.logger.Warnw("transition record not persisted",
				"session_id", p.sessionID,
				"participant_id", rec.ParticipantID,
				"error", err,
			)
		}
	}
	if rec.ToRoom != p.roomID {
		p.RemoveParticipant(rec.ParticipantID)
	}
}

// detectSpeaking runs one tick: level above threshold marks speaking and the
// transition into speaking fires the notification exactly once.
func (p *PresenceService) detectSpeaking(now time.Time) {
	var detected []domain.ParticipantID

	p.mu.Lock()
	var loudest domain.ParticipantID
	var loudestLevel float64
	anySpeaking := false

	for id, part := range p.participants {
		src, ok := p.levels[id]
		if !ok || !part.IsAudioEnabled {
			if part.IsSpeaking {
				part.IsSpeaking = false
			}
			continue
		}
		level := src.Level()
		speaking := level > p.speakingThreshold
		if speaking {
			anySpeaking = true
			part.LastSpeakingTime = now
			if !part.IsSpeaking {
				part.IsSpeaking = true
				detected = append(detected, id)
			}
			if level > loudestLevel {
				loudestLevel = level
				loudest = id
			}
		} else {
			part.IsSpeaking = false
		}
	}

	if anySpeaking {
		p.dominant = loudest
		p.lastDominantAt = now
	} else if p.dominant != "" && now.Sub(p.lastDominantAt) > p.dominantGrace {
		// Grace period avoids flicker during natural speech pauses.
		p.dominant = ""
	}
	p.mu.Unlock()

	for _, id := range detected {
		p.logger.Debugw("speaker detected", "session_id", p.sessionID, "participant_id", id)
		if p.onSpeakerDetected != nil {
			p.onSpeakerDetected(id)
		}
	}
}

// Tick runs one detection pass immediately. Exposed for tests and for
// callers that drive detection from their own scheduler.
func (p *PresenceService) Tick(now time.Time) {
	p.detectSpeaking(now)
}

// DominantSpeaker returns the current dominant speaker, if any.
func (p *PresenceService) DominantSpeaker() (domain.ParticipantID, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.dominant, p.dominant != ""
}

// OptimalLayout returns the layout hint for the current roster size.
func (p *PresenceService) OptimalLayout() domain.LayoutHint {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return domain.OptimalLayout(len(p.participants))
}

// Snapshot returns a copy of the roster.
func (p *PresenceService) Snapshot() []domain.Participant {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]domain.Participant, 0, len(p.participants))
	for _, part := range p.participants {
		out = append(out, *part)
	}
	return out
}

// Participant returns a copy of one roster entry.
func (p *PresenceService) Participant(id domain.ParticipantID) (domain.Participant, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	part, ok := p.participants[id]
	if !ok {
		return domain.Participant{}, false
	}
	return *part, true
}

// Destroy stops the tick, releases all analysis sources and clears the
// roster. Safe to call multiple times.
func (p *PresenceService) Destroy() {
	p.mu.Lock()
	if p.running {
		p.running = false
		p.cancel()
		done := p.done
		p.mu.Unlock()
		<-done
		p.mu.Lock()
	}
	for id, src := range p.levels {
		_ = src.Close()
		delete(p.levels, id)
	}
	p.participants = make(map[domain.ParticipantID]*domain.Participant)
	p.dominant = ""
	p.mu.Unlock()
}
