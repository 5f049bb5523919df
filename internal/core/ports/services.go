package ports

import (
	"context"

	"telecare/internal/core/domain"
)

// SignalSender delivers an outbound signal to the external signaling
// transport. Fire-and-forget from the engine's perspective; delivery
// guarantees belong to the transport.
type SignalSender interface {
	SendSignal(ctx context.Context, signalType string, payload any) error
}

// StatsProvider exposes the connection's statistics capability. The engine
// maps the report into a ConnectionMetrics snapshot every sampling tick.
type StatsProvider interface {
	GetStats(ctx context.Context) (domain.ConnectionMetrics, error)
}

// AudioLevelSource reports the instantaneous normalized volume (0-1) of one
// participant's audio. Participants without an attached source are never
// considered for speaking detection.
type AudioLevelSource interface {
	Level() float64
	Close() error
}

// CredentialProvider re-issues the session credential on token expiry.
type CredentialProvider interface {
	Refresh(ctx context.Context, sessionID domain.SessionID) (string, error)
}

// HealthProbe verifies basic reachability and the minimum runtime
// capability surface required to re-establish a connection.
type HealthProbe interface {
	CheckHealth(ctx context.Context) bool
}

// SessionEngine is one session's connection engine: connection lifecycle,
// quality monitoring, recovery and presence, isolated from other sessions.
type SessionEngine interface {
	Start(ctx context.Context) error
	Close() error
	State() domain.ConnectionState
	Quality() domain.QualityAssessment
	Roster() []domain.Participant
	Recovery() domain.RecoveryState
	ResetRecovery()
}
