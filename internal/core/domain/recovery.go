package domain

// RecoveryPhase tracks where a session is in its recovery state machine.
type RecoveryPhase string

const (
	RecoveryInitial      RecoveryPhase = "initial"
	RecoveryReconnecting RecoveryPhase = "reconnecting"
	RecoveryRecovered    RecoveryPhase = "recovered"
)

// ErrorKind classifies a failure for recovery routing. Each kind routes to a
// distinct handler with a distinct retry policy.
type ErrorKind string

const (
	ErrorKindNetwork     ErrorKind = "network"
	ErrorKindTokenExpiry ErrorKind = "token_expired"
	ErrorKindPermission  ErrorKind = "permission_denied"
	ErrorKindServer      ErrorKind = "server_error"
)

// RecoveryState is owned by the recovery coordinator. RetryCount never
// exceeds MaxRetries; once reached, recovery is abandoned until an explicit
// reset by the caller.
type RecoveryState struct {
	IsRecovering bool          `json:"is_recovering"`
	RetryCount   int           `json:"retry_count"`
	MaxRetries   int           `json:"max_retries"`
	LastError    string        `json:"last_error,omitempty"`
	Phase        RecoveryPhase `json:"phase"`
}
