package domain

import "errors"

var (
	ErrConnectionCreateFailed = errors.New("peer connection could not be created")
	ErrNoActiveConnection     = errors.New("no active connection")
	ErrNoMatchingSender       = errors.New("no matching sender for track kind")
	ErrExchangeBusy           = errors.New("track transition already in progress")
	ErrAlreadySharing         = errors.New("screen share already active")
	ErrNotSharing             = errors.New("no screen share active")
	ErrCaptureDenied          = errors.New("screen capture permission denied")
	ErrRecoveryExhausted      = errors.New("recovery retries exhausted")
	ErrSessionNotFound        = errors.New("session not found")
	ErrParticipantNotFound    = errors.New("participant not found")
)
