package services

import (
	"context"
	"sync"
	"time"

	"telecare/internal/core/domain"
	"telecare/internal/core/ports"

	"go.uber.org/zap"
)

// RecoveryFunc performs one reconnection attempt.
type RecoveryFunc func(ctx context.Context) error

// RecoveryService owns the single authoritative recovery attempt for a
// session. It enforces the bounded backoff policy: the caller's loop decides
// whether to call again, the service never recurses internally.
type RecoveryService struct {
	mu        sync.Mutex
	state     domain.RecoveryState
	baseDelay time.Duration
	exhausted bool

	creds     ports.CredentialProvider
	probe     ports.HealthProbe
	analytics *AnalyticsService
	sessionID domain.SessionID

	onTerminal    func(err error)
	onUserMessage func(msg string)
	onAttempt     func(attempt int)

	logger *zap.SugaredLogger
}

type RecoveryOption func(*RecoveryService)

// WithTerminalHandler sets the callback invoked once per exhaustion with the
// terminal error.
func WithTerminalHandler(fn func(error)) RecoveryOption {
	return func(r *RecoveryService) { r.onTerminal = fn }
}

// WithUserMessageHandler sets the callback for user-actionable messages
// (permission remediation, reload prompts).
func WithUserMessageHandler(fn func(string)) RecoveryOption {
	return func(r *RecoveryService) { r.onUserMessage = fn }
}

// WithAttemptObserver sets a callback invoked before each recovery attempt.
func WithAttemptObserver(fn func(attempt int)) RecoveryOption {
	return func(r *RecoveryService) { r.onAttempt = fn }
}

// WithBaseDelay overrides the 1s backoff base. Used by tests.
func WithBaseDelay(d time.Duration) RecoveryOption {
	return func(r *RecoveryService) { r.baseDelay = d }
}

func NewRecoveryService(
	sessionID domain.SessionID,
	maxRetries int,
	creds ports.CredentialProvider,
	probe ports.HealthProbe,
	analytics *AnalyticsService,
	logger *zap.SugaredLogger,
	opts ...RecoveryOption,
) *RecoveryService {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	r := &RecoveryService{
		state: domain.RecoveryState{
			MaxRetries: maxRetries,
			Phase:      domain.RecoveryInitial,
		},
		baseDelay: time.Second,
		creds:     creds,
		probe:     probe,
		analytics: analytics,
		sessionID: sessionID,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// State returns a snapshot of the recovery state.
func (r *RecoveryService) State() domain.RecoveryState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// AttemptRecovery runs one bounded recovery attempt. If the retry budget is
// already spent it reports terminal failure and returns false without
// invoking fn. Otherwise it increments the count, waits the backoff delay
// (cancellable through ctx) and invokes fn once. Success resets the count.
func (r *RecoveryService) AttemptRecovery(ctx context.Context, kind domain.ErrorKind, fn RecoveryFunc) bool {
	r.mu.Lock()
	if r.state.RetryCount >= r.state.MaxRetries {
		r.mu.Unlock()
		r.reportExhausted(kind)
		return false
	}
	r.state.RetryCount++
	r.state.IsRecovering = true
	r.state.Phase = domain.RecoveryReconnecting
	attempt := r.state.RetryCount
	r.mu.Unlock()

	delay := r.backoffDelay(attempt)
	r.logger.Infow("attempting recovery",
		"session_id", r.sessionID,
		"error_kind", kind,
		"attempt", attempt,
		"backoff", delay,
	)
	r.recordAttempt(kind, attempt)

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		r.finish(false, ctx.Err())
		return false
	case <-timer.C:
	}

	err := fn(ctx)
	if err != nil {
		r.logger.Warnw("recovery attempt failed",
			"session_id", r.sessionID,
			"attempt", attempt,
			"error", err,
		)
		r.finish(false, err)
		r.mu.Lock()
		spent := r.state.RetryCount >= r.state.MaxRetries
		r.mu.Unlock()
		if spent {
			r.reportExhausted(kind)
		}
		return false
	}

	r.logger.Infow("recovery succeeded", "session_id", r.sessionID, "attempt", attempt)
	r.finish(true, nil)
	return true
}

// HandleTokenExpiry re-issues the session credential. Credential refresh is
// not subject to the backoff policy and does not touch the retry count.
func (r *RecoveryService) HandleTokenExpiry(ctx context.Context) (string, bool) {
	if r.creds == nil {
		r.logger.Warnw("token expiry with no credential provider", "session_id", r.sessionID)
		return "", false
	}
	token, err := r.creds.Refresh(ctx, r.sessionID)
	if err != nil {
		r.logger.Errorw("credential refresh failed", "session_id", r.sessionID, "error", err)
		r.message("Your session expired and could not be renewed. Please sign in again.")
		return "", false
	}
	r.logger.Infow("credential refreshed", "session_id", r.sessionID)
	return token, true
}

// HandleNetworkDisconnection pre-checks connection health, then delegates to
// the bounded retry path.
func (r *RecoveryService) HandleNetworkDisconnection(ctx context.Context, fn RecoveryFunc) bool {
	if !r.CheckConnectionHealth(ctx) {
		r.message("You appear to be offline. Reconnection will resume once the network is back.")
		return false
	}
	return r.AttemptRecovery(ctx, domain.ErrorKindNetwork, fn)
}

// HandlePermissionError attempts one remediation call. Permission failures
// are not retried with backoff; beyond the single attempt the user must act.
func (r *RecoveryService) HandlePermissionError(ctx context.Context, remediate RecoveryFunc) bool {
	if remediate != nil {
		if err := remediate(ctx); err == nil {
			r.logger.Infow("permission remediation succeeded", "session_id", r.sessionID)
			return true
		}
	}
	r.message("Camera or microphone access was denied. Please allow access in your settings and try again.")
	return false
}

// CheckConnectionHealth probes reachability and the runtime capability
// surface needed to rebuild a connection.
func (r *RecoveryService) CheckConnectionHealth(ctx context.Context) bool {
	if r.probe == nil {
		return true
	}
	return r.probe.CheckHealth(ctx)
}

// ResetRecovery clears the retry budget. It is the only way to leave the
// exhausted state and maps to an explicit user action.
func (r *RecoveryService) ResetRecovery() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state.RetryCount = 0
	r.state.IsRecovering = false
	r.state.LastError = ""
	r.state.Phase = domain.RecoveryInitial
	r.exhausted = false
}

func (r *RecoveryService) backoffDelay(attempt int) time.Duration {
	return r.baseDelay << (attempt - 1)
}

func (r *RecoveryService) finish(success bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state.IsRecovering = false
	if success {
		r.state.RetryCount = 0
		r.state.LastError = ""
		r.state.Phase = domain.RecoveryRecovered
		return
	}
	if err != nil {
		r.state.LastError = err.Error()
	}
}

// reportExhausted fires the terminal report once per exhaustion.
func (r *RecoveryService) reportExhausted(kind domain.ErrorKind) {
	r.mu.Lock()
	already := r.exhausted
	r.exhausted = true
	r.state.Phase = domain.RecoveryInitial
	r.state.IsRecovering = false
	r.mu.Unlock()
	if already {
		return
	}
	r.logger.Errorw("recovery exhausted",
		"session_id", r.sessionID,
		"error_kind", kind,
		"max_retries", r.state.MaxRetries,
	)
	r.message("We could not reconnect your session. Please refresh the page to try again.")
	if r.onTerminal != nil {
		r.onTerminal(domain.ErrRecoveryExhausted)
	}
	if r.analytics != nil {
		r.analytics.RecordRecoveryExhausted(r.sessionID, kind)
	}
}

func (r *RecoveryService) recordAttempt(kind domain.ErrorKind, attempt int) {
	if r.onAttempt != nil {
		r.onAttempt(attempt)
	}
	if r.analytics != nil {
		r.analytics.RecordRecoveryAttempt(r.sessionID, kind, attempt)
	}
}

func (r *RecoveryService) message(msg string) {
	if r.onUserMessage != nil {
		r.onUserMessage(msg)
	}
}
