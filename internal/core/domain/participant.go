package domain

import "time"

// Participant is one roster entry, keyed by ID. At most one participant
// holds IsHost at any time.
type Participant struct {
	ID               ParticipantID `json:"id"`
	DisplayName      string        `json:"display_name"`
	IsCurrentUser    bool          `json:"is_current_user"`
	IsAudioEnabled   bool          `json:"is_audio_enabled"`
	IsVideoEnabled   bool          `json:"is_video_enabled"`
	IsSpeaking       bool          `json:"is_speaking"`
	LastSpeakingTime time.Time     `json:"last_speaking_time"`
	Quality          QualityLevel  `json:"quality"`
	IsHost           bool          `json:"is_host"`
}

// ParticipantUpdate is a partial in-place update; nil fields are unchanged.
type ParticipantUpdate struct {
	DisplayName  *string
	AudioEnabled *bool
	VideoEnabled *bool
	Quality      *QualityLevel
}

// LayoutHint suggests how a rendering client should arrange tiles.
type LayoutHint string

const (
	LayoutSidebar LayoutHint = "sidebar"
	LayoutGrid    LayoutHint = "grid"
	LayoutSpeaker LayoutHint = "speaker"
)

// OptimalLayout picks a layout hint for the given participant count.
func OptimalLayout(n int) LayoutHint {
	switch {
	case n <= 2:
		return LayoutSidebar
	case n <= 4:
		return LayoutGrid
	default:
		return LayoutSpeaker
	}
}

// RosterEventKind is the kind of an externally produced roster change.
type RosterEventKind string

const (
	RosterJoined      RosterEventKind = "joined"
	RosterLeft        RosterEventKind = "left"
	RosterRoomCreated RosterEventKind = "room_created"
	RosterRoomClosed  RosterEventKind = "room_closed"
)

// RosterEvent is consumed from the session bookkeeping collaborator. Events
// for unknown participants are tolerated; duplicate joins act as updates.
type RosterEvent struct {
	Kind          RosterEventKind `json:"kind"`
	ParticipantID ParticipantID   `json:"participant_id"`
	DisplayName   string          `json:"display_name,omitempty"`
	RoomID        RoomID          `json:"room_id,omitempty"`
	IsHost        bool            `json:"is_host,omitempty"`
}

// TransitionKind classifies a breakout room relocation.
type TransitionKind string

const (
	TransitionManual TransitionKind = "manual"
	TransitionAuto   TransitionKind = "auto"
	TransitionSelf   TransitionKind = "self"
)

// BreakoutTransition records a single participant relocation. Records are
// append-only and immutable once created. FromRoom is empty when the
// participant joined from the main room.
type BreakoutTransition struct {
	ParticipantID ParticipantID  `json:"participant_id"`
	FromRoom      RoomID         `json:"from_room,omitempty"`
	ToRoom        RoomID         `json:"to_room"`
	InitiatorID   ParticipantID  `json:"initiator_id"`
	Kind          TransitionKind `json:"kind"`
	Reason        string         `json:"reason,omitempty"`
	Timestamp     time.Time      `json:"timestamp"`
}
