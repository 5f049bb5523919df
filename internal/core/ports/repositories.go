package ports

import (
	"context"

	"telecare/internal/core/domain"
)

// TransitionLog is the injected durable queue for breakout transition
// records. Records are append-only and listed in insertion order.
type TransitionLog interface {
	Append(ctx context.Context, sessionID domain.SessionID, rec domain.BreakoutTransition) error
	List(ctx context.Context, sessionID domain.SessionID) ([]domain.BreakoutTransition, error)
}

// AnalyticsSink receives best-effort quality and recovery events keyed by
// session. Implementations may drop events; callers never block on it.
type AnalyticsSink interface {
	RecordEvent(ctx context.Context, event domain.AnalyticsEvent) error
}
