package memory

import (
	"context"
	"sync"

	"telecare/internal/core/domain"
)

// TransitionLog is the in-memory TransitionLog used in tests and when Redis
// is disabled.
type TransitionLog struct {
	mu      sync.RWMutex
	records map[domain.SessionID][]domain.BreakoutTransition
}

func NewTransitionLog() *TransitionLog {
	return &TransitionLog{records: make(map[domain.SessionID][]domain.BreakoutTransition)}
}

func (l *TransitionLog) Append(ctx context.Context, sessionID domain.SessionID, rec domain.BreakoutTransition) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records[sessionID] = append(l.records[sessionID], rec)
	return nil
}

func (l *TransitionLog) List(ctx context.Context, sessionID domain.SessionID) ([]domain.BreakoutTransition, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	recs := l.records[sessionID]
	out := make([]domain.BreakoutTransition, len(recs))
	copy(out, recs)
	return out, nil
}
