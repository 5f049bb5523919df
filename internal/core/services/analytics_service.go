package services

import (
	"context"
	"time"

	"telecare/internal/core/domain"
	"telecare/internal/core/ports"
	"telecare/pkg/circuitbreaker"
	"telecare/pkg/retry"

	"go.uber.org/zap"
)

// AnalyticsService forwards quality and recovery events to the external
// sink. Forwarding is best-effort: every call returns immediately and the
// engine's state transitions never wait on delivery. A circuit breaker stops
// hammering a sink that is down.
type AnalyticsService struct {
	sink    ports.AnalyticsSink
	breaker *circuitbreaker.CircuitBreaker
	retry   retry.Config
	timeout time.Duration
	logger  *zap.SugaredLogger
}

func NewAnalyticsService(sink ports.AnalyticsSink, logger *zap.SugaredLogger) *AnalyticsService {
	rc := retry.DefaultConfig()
	rc.MaxAttempts = 2
	return &AnalyticsService{
		sink:    sink,
		breaker: circuitbreaker.New(circuitbreaker.DefaultConfig()),
		retry:   rc,
		timeout: 5 * time.Second,
		logger:  logger,
	}
}

func (a *AnalyticsService) RecordQualitySample(sessionID domain.SessionID, assessment domain.QualityAssessment) {
	a.record(domain.AnalyticsEvent{
		Kind:      domain.AnalyticsQualitySample,
		SessionID: sessionID,
		Detail: map[string]any{
			"overall":       assessment.Overall,
			"network_score": assessment.NetworkScore,
			"video_score":   assessment.VideoScore,
			"audio_score":   assessment.AudioScore,
		},
	})
}

func (a *AnalyticsService) RecordQualityAlert(sessionID domain.SessionID, assessment domain.QualityAssessment) {
	a.record(domain.AnalyticsEvent{
		Kind:      domain.AnalyticsQualityAlert,
		SessionID: sessionID,
		Detail: map[string]any{
			"overall":         assessment.Overall,
			"recommendations": assessment.Recommendations,
		},
	})
}

func (a *AnalyticsService) RecordRecoveryAttempt(sessionID domain.SessionID, kind domain.ErrorKind, attempt int) {
	a.record(domain.AnalyticsEvent{
		Kind:      domain.AnalyticsRecoveryAttempt,
		SessionID: sessionID,
		Detail:    map[string]any{"error_kind": kind, "attempt": attempt},
	})
}

func (a *AnalyticsService) RecordRecoveryExhausted(sessionID domain.SessionID, kind domain.ErrorKind) {
	a.record(domain.AnalyticsEvent{
		Kind:      domain.AnalyticsRecoveryExhausted,
		SessionID: sessionID,
		Detail:    map[string]any{"error_kind": kind},
	})
}

func (a *AnalyticsService) record(event domain.AnalyticsEvent) {
	if a == nil || a.sink == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
		defer cancel()

		err := a.breaker.Execute(func() error {
			return retry.Retry(ctx, a.retry, func() error {
				return a.sink.RecordEvent(ctx, event)
			})
		})
		if err != nil {
			a.logger.Debugw("analytics event dropped",
				"session_id", event.SessionID,
				"kind", event.Kind,
				"error", err,
			)
		}
	}()
}
