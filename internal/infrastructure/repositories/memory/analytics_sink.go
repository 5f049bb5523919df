package memory

import (
	"context"
	"sync"

	"telecare/internal/core/domain"
)

// AnalyticsSink buffers events in memory. Used in tests and when no
// external sink is configured.
type AnalyticsSink struct {
	mu     sync.RWMutex
	events []domain.AnalyticsEvent
}

func NewAnalyticsSink() *AnalyticsSink {
	return &AnalyticsSink{}
}

func (s *AnalyticsSink) RecordEvent(ctx context.Context, event domain.AnalyticsEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

// Events returns a copy of everything recorded so far.
func (s *AnalyticsSink) Events() []domain.AnalyticsEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.AnalyticsEvent, len(s.events))
	copy(out, s.events)
	return out
}
