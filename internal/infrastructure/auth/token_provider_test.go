package auth

import (
	"context"
	"testing"
	"time"

	"telecare/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRefreshAndVerifyRoundTrip(t *testing.T) {
	p := NewTokenProvider("test-secret", time.Minute)

	token, err := p.Refresh(context.Background(), "sess-1")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	id, err := p.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, domain.SessionID("sess-1"), id)
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	issuer := NewTokenProvider("secret-a", time.Minute)
	verifier := NewTokenProvider("secret-b", time.Minute)

	token, err := issuer.Refresh(context.Background(), "sess-1")
	require.NoError(t, err)

	_, err = verifier.Verify(token)
	assert.Error(t, err)
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	p := NewTokenProvider("test-secret", time.Minute)
	// Force immediate expiry.
	p.ttl = -time.Minute

	token, err := p.Refresh(context.Background(), "sess-1")
	require.NoError(t, err)

	_, err = p.Verify(token)
	assert.Error(t, err)
}

func TestVerifyRejectsGarbage(t *testing.T) {
	p := NewTokenProvider("test-secret", time.Minute)
	_, err := p.Verify("not-a-token")
	assert.Error(t, err)
}

func TestZeroTTLGetsDefault(t *testing.T) {
	p := NewTokenProvider("test-secret", 0)
	assert.Equal(t, 15*time.Minute, p.ttl)
}
