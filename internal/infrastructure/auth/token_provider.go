package auth

import (
	"context"
	"fmt"
	"time"

	"telecare/internal/core/domain"

	"github.com/golang-jwt/jwt/v5"
)

// TokenProvider issues and re-issues the short-lived session credential used
// by the token-expiry recovery path.
type TokenProvider struct {
	secret []byte
	ttl    time.Duration
}

func NewTokenProvider(secret string, ttl time.Duration) *TokenProvider {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &TokenProvider{secret: []byte(secret), ttl: ttl}
}

// Refresh issues a fresh session token.
func (p *TokenProvider) Refresh(ctx context.Context, sessionID domain.SessionID) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   string(sessionID),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(p.ttl)),
		Issuer:    "telecare",
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(p.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates a session token, returning its session id.
func (p *TokenProvider) Verify(tokenString string) (domain.SessionID, error) {
	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return p.secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("invalid session token: %w", err)
	}
	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || !token.Valid {
		return "", fmt.Errorf("invalid session token claims")
	}
	return domain.SessionID(claims.Subject), nil
}
