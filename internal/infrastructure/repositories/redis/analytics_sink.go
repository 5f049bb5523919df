package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"telecare/internal/core/domain"

	"github.com/redis/go-redis/v9"
)

const analyticsStreamKey = "telecare:events"

// maxStreamLength caps the event stream so an unattended sink cannot grow
// without bound.
const maxStreamLength = 100_000

// AnalyticsSink forwards engine events into a Redis stream consumed by the
// external analytics pipeline.
type AnalyticsSink struct {
	client *redis.Client
}

func NewAnalyticsSink(client *redis.Client) *AnalyticsSink {
	return &AnalyticsSink{client: client}
}

func (s *AnalyticsSink) RecordEvent(ctx context.Context, event domain.AnalyticsEvent) error {
	detail, err := json.Marshal(event.Detail)
	if err != nil {
		return fmt.Errorf("failed to marshal event detail: %w", err)
	}
	return s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: analyticsStreamKey,
		MaxLen: maxStreamLength,
		Approx: true,
		Values: map[string]any{
			"kind":       string(event.Kind),
			"session_id": string(event.SessionID),
			"detail":     detail,
		},
	}).Err()
}
