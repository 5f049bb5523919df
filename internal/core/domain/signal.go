package domain

// SignalTypeICECandidate is the outbound signal type for discovered
// candidates. Delivery guarantees belong to the external transport.
const SignalTypeICECandidate = "ice-candidate"

// ICECandidatePayload is the serialized shape of a discovered candidate.
type ICECandidatePayload struct {
	Candidate        string  `json:"candidate"`
	SDPMid           *string `json:"sdp_mid"`
	SDPMLineIndex    *uint16 `json:"sdp_mline_index"`
	UsernameFragment *string `json:"username_fragment"`
}

// AnalyticsEventKind labels events forwarded to the external metrics sink.
type AnalyticsEventKind string

const (
	AnalyticsQualitySample    AnalyticsEventKind = "quality_sample"
	AnalyticsQualityAlert     AnalyticsEventKind = "quality_alert"
	AnalyticsRecoveryAttempt  AnalyticsEventKind = "recovery_attempt"
	AnalyticsRecoveryExhausted AnalyticsEventKind = "recovery_exhausted"
)

// AnalyticsEvent is a best-effort report keyed by session. Forwarding it
// must never block the engine's own state transitions.
type AnalyticsEvent struct {
	Kind      AnalyticsEventKind `json:"kind"`
	SessionID SessionID          `json:"session_id"`
	Detail    map[string]any     `json:"detail,omitempty"`
}
