package services

import (
	"context"
	"testing"
	"time"

	"telecare/internal/core/domain"
	"telecare/internal/infrastructure/repositories/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type stubLevelSource struct {
	level  float64
	closed bool
}

func (s *stubLevelSource) Level() float64 { return s.level }
func (s *stubLevelSource) Close() error {
	s.closed = true
	return nil
}

func newTestPresence(t *testing.T, opts ...PresenceOption) *PresenceService {
	t.Helper()
	return NewPresenceService("sess-1", "room-main", memory.NewTransitionLog(),
		zaptest.NewLogger(t).Sugar(), opts...)
}

func TestAddParticipantDuplicateJoinIsUpdate(t *testing.T) {
	p := newTestPresence(t)

	p.AddParticipant(domain.Participant{ID: "alice", DisplayName: "Alice"})
	p.AddParticipant(domain.Participant{ID: "alice", DisplayName: "Alice M.", IsAudioEnabled: true})

	assert.Len(t, p.Snapshot(), 1)
	part, ok := p.Participant("alice")
	require.True(t, ok)
	assert.Equal(t, "Alice M.", part.DisplayName)
	assert.True(t, part.IsAudioEnabled)
}

func TestHostTransferIsAtomic(t *testing.T) {
	p := newTestPresence(t)
	p.AddParticipant(domain.Participant{ID: "alice", IsHost: true})
	p.AddParticipant(domain.Participant{ID: "bob"})
	p.AddParticipant(domain.Participant{ID: "carol"})

	require.NoError(t, p.MakeHost("bob"))

	hosts := 0
	for _, part := range p.Snapshot() {
		if part.IsHost {
			hosts++
			assert.Equal(t, domain.ParticipantID("bob"), part.ID)
		}
	}
	assert.Equal(t, 1, hosts)
}

func TestMakeHostUnknownParticipant(t *testing.T) {
	p := newTestPresence(t)
	assert.ErrorIs(t, p.MakeHost("ghost"), domain.ErrParticipantNotFound)
}

func TestUpdateParticipantPartial(t *testing.T) {
	p := newTestPresence(t)
	p.AddParticipant(domain.Participant{ID: "alice", DisplayName: "Alice", IsVideoEnabled: true})

	muted := false
	require.NoError(t, p.UpdateParticipant("alice", domain.ParticipantUpdate{AudioEnabled: &muted}))

	part, _ := p.Participant("alice")
	assert.Equal(t, "Alice", part.DisplayName)
	assert.True(t, part.IsVideoEnabled)
	assert.False(t, part.IsAudioEnabled)

	assert.ErrorIs(t, p.UpdateParticipant("ghost", domain.ParticipantUpdate{}), domain.ErrParticipantNotFound)
}

func TestSpeakerDetectedFiresOncePerTransition(t *testing.T) {
	var detections []domain.ParticipantID
	p := newTestPresence(t, WithSpeakerDetected(func(id domain.ParticipantID) {
		detections = append(detections, id)
	}))

	p.AddParticipant(domain.Participant{ID: "alice", IsAudioEnabled: true})
	src := &stubLevelSource{level: 0.5}
	require.NoError(t, p.AttachAudioSource("alice", src))

	now := time.Now()
	p.Tick(now)
	p.Tick(now.Add(100 * time.Millisecond))
	p.Tick(now.Add(200 * time.Millisecond))

	// Continuous speech produces exactly one detection.
	assert.Equal(t, []domain.ParticipantID{"alice"}, detections)

	// Silence then speech again produces a second one.
	src.level = 0
	p.Tick(now.Add(300 * time.Millisecond))
	src.level = 0.5
	p.Tick(now.Add(400 * time.Millisecond))
	assert.Equal(t, []domain.ParticipantID{"alice", "alice"}, detections)
}

func TestSilentLevelBelowThresholdNotSpeaking(t *testing.T) {
	p := newTestPresence(t)
	p.AddParticipant(domain.Participant{ID: "alice", IsAudioEnabled: true})
	require.NoError(t, p.AttachAudioSource("alice", &stubLevelSource{level: 0.005}))

	p.Tick(time.Now())
	part, _ := p.Participant("alice")
	assert.False(t, part.IsSpeaking)
}

func TestMutedParticipantNeverSpeaks(t *testing.T) {
	p := newTestPresence(t)
	p.AddParticipant(domain.Participant{ID: "alice", IsAudioEnabled: false})
	require.NoError(t, p.AttachAudioSource("alice", &stubLevelSource{level: 0.9}))

	p.Tick(time.Now())
	part, _ := p.Participant("alice")
	assert.False(t, part.IsSpeaking)
	_, ok := p.DominantSpeaker()
	assert.False(t, ok)
}

func TestDominantSpeakerGracePeriod(t *testing.T) {
	p := newTestPresence(t, WithPresenceTiming(10*time.Millisecond, 2*time.Second))
	p.AddParticipant(domain.Participant{ID: "alice", IsAudioEnabled: true})
	src := &stubLevelSource{level: 0.5}
	require.NoError(t, p.AttachAudioSource("alice", src))

	start := time.Now()
	p.Tick(start)
	id, ok := p.DominantSpeaker()
	require.True(t, ok)
	assert.Equal(t, domain.ParticipantID("alice"), id)

	// Inside the grace window the dominant speaker persists through silence.
	src.level = 0
	p.Tick(start.Add(time.Second))
	_, ok = p.DominantSpeaker()
	assert.True(t, ok)

	// Past the grace window it clears.
	p.Tick(start.Add(3 * time.Second))
	_, ok = p.DominantSpeaker()
	assert.False(t, ok)
}

func TestDominantSpeakerIsLoudest(t *testing.T) {
	p := newTestPresence(t)
	p.AddParticipant(domain.Participant{ID: "alice", IsAudioEnabled: true})
	p.AddParticipant(domain.Participant{ID: "bob", IsAudioEnabled: true})
	require.NoError(t, p.AttachAudioSource("alice", &stubLevelSource{level: 0.3}))
	require.NoError(t, p.AttachAudioSource("bob", &stubLevelSource{level: 0.8}))

	p.Tick(time.Now())
	id, ok := p.DominantSpeaker()
	require.True(t, ok)
	assert.Equal(t, domain.ParticipantID("bob"), id)
}

func TestRemoveParticipantClearsDominantAndSource(t *testing.T) {
	p := newTestPresence(t)
	p.AddParticipant(domain.Participant{ID: "alice", IsAudioEnabled: true})
	src := &stubLevelSource{level: 0.5}
	require.NoError(t, p.AttachAudioSource("alice", src))
	p.Tick(time.Now())

	p.RemoveParticipant("alice")
	assert.True(t, src.closed)
	_, ok := p.DominantSpeaker()
	assert.False(t, ok)

	// Unknown id removal is a no-op.
	p.RemoveParticipant("ghost")
}

func TestOptimalLayoutByRosterSize(t *testing.T) {
	p := newTestPresence(t)

	p.AddParticipant(domain.Participant{ID: "p1"})
	p.AddParticipant(domain.Participant{ID: "p2"})
	assert.Equal(t, domain.LayoutSidebar, p.OptimalLayout())

	p.AddParticipant(domain.Participant{ID: "p3"})
	assert.Equal(t, domain.LayoutGrid, p.OptimalLayout())

	p.AddParticipant(domain.Participant{ID: "p4"})
	assert.Equal(t, domain.LayoutGrid, p.OptimalLayout())

	p.AddParticipant(domain.Participant{ID: "p5"})
	assert.Equal(t, domain.LayoutSpeaker, p.OptimalLayout())
}

func TestApplyRosterEvents(t *testing.T) {
	p := newTestPresence(t)

	p.ApplyRosterEvent(domain.RosterEvent{Kind: domain.RosterJoined, ParticipantID: "alice", DisplayName: "Alice", IsHost: true})
	p.ApplyRosterEvent(domain.RosterEvent{Kind: domain.RosterJoined, ParticipantID: "bob", DisplayName: "Bob"})
	assert.Len(t, p.Snapshot(), 2)

	part, _ := p.Participant("alice")
	assert.True(t, part.IsHost)

	p.ApplyRosterEvent(domain.RosterEvent{Kind: domain.RosterLeft, ParticipantID: "bob"})
	assert.Len(t, p.Snapshot(), 1)

	// Unknown participant leaving is tolerated.
	p.ApplyRosterEvent(domain.RosterEvent{Kind: domain.RosterLeft, ParticipantID: "ghost"})
	assert.Len(t, p.Snapshot(), 1)
}

func TestApplyTransitionRecordsAndRemoves(t *testing.T) {
	log := memory.NewTransitionLog()
	p := NewPresenceService("sess-1", "room-main", log, zaptest.NewLogger(t).Sugar())
	p.AddParticipant(domain.Participant{ID: "alice"})
	p.AddParticipant(domain.Participant{ID: "bob"})

	ctx := context.Background()
	p.ApplyTransition(ctx, domain.BreakoutTransition{
		ParticipantID: "alice",
		FromRoom:      "room-main",
		ToRoom:        "room-breakout-1",
		Kind:          domain.TransitionManual,
		Timestamp:     time.Now(),
	})

	// Alice moved away, Bob stays.
	assert.Len(t, p.Snapshot(), 1)

	recs, err := log.List(ctx, "sess-1")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, domain.ParticipantID("alice"), recs[0].ParticipantID)

	// A transition into this room keeps the participant.
	p.ApplyTransition(ctx, domain.BreakoutTransition{
		ParticipantID: "bob",
		ToRoom:        "room-main",
		Kind:          domain.TransitionAuto,
		Timestamp:     time.Now(),
	})
	assert.Len(t, p.Snapshot(), 1)
}

func TestDestroyIdempotentAndReleasesSources(t *testing.T) {
	p := newTestPresence(t)
	p.Start(context.Background())
	p.AddParticipant(domain.Participant{ID: "alice", IsAudioEnabled: true})
	src := &stubLevelSource{level: 0.5}
	require.NoError(t, p.AttachAudioSource("alice", src))

	p.Destroy()
	assert.True(t, src.closed)
	assert.Empty(t, p.Snapshot())

	p.Destroy()
}
