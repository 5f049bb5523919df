package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"telecare/internal/core/domain"
	"telecare/pkg/retry"

	"github.com/redis/go-redis/v9"
)

const transitionKeyPrefix = "telecare:transitions:"

// TransitionLog persists breakout transition records as an append-only list
// per session. It replaces the original's browser-storage retry queue with
// an explicit durable queue whose guarantees are testable.
type TransitionLog struct {
	client *redis.Client
	retry  retry.Config
}

func NewTransitionLog(client *redis.Client) *TransitionLog {
	cfg := retry.DefaultConfig()
	cfg.MaxAttempts = 2
	return &TransitionLog{client: client, retry: cfg}
}

func transitionKey(sessionID domain.SessionID) string {
	return transitionKeyPrefix + string(sessionID)
}

func (l *TransitionLog) Append(ctx context.Context, sessionID domain.SessionID, rec domain.BreakoutTransition) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal transition record: %w", err)
	}
	return retry.Retry(ctx, l.retry, func() error {
		return l.client.RPush(ctx, transitionKey(sessionID), data).Err()
	})
}

func (l *TransitionLog) List(ctx context.Context, sessionID domain.SessionID) ([]domain.BreakoutTransition, error) {
	raw, err := l.client.LRange(ctx, transitionKey(sessionID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read transition log: %w", err)
	}
	out := make([]domain.BreakoutTransition, 0, len(raw))
	for _, item := range raw {
		var rec domain.BreakoutTransition
		if err := json.Unmarshal([]byte(item), &rec); err != nil {
			return nil, fmt.Errorf("corrupt transition record: %w", err)
		}
		out = append(out, rec)
	}
	return out, nil
}
