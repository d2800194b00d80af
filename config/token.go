package config

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenInfo is what the client can read from a login token without the
// server's signing key.
type TokenInfo struct {
	Subject   string
	ExpiresAt time.Time // zero if the token carries no exp claim
}

// Expired reports whether the token has expired at now, allowing for clock skew.
func (t TokenInfo) Expired(now time.Time, skew time.Duration) bool {
	return !t.ExpiresAt.IsZero() && now.After(t.ExpiresAt.Add(skew))
}

// InspectToken decodes the claims of a JWT without verifying its signature.
// The backend verifies; this is only used to warn about stale logins early.
func InspectToken(token string) (TokenInfo, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return TokenInfo{}, fmt.Errorf("failed to parse token: %w", err)
	}

	var info TokenInfo
	sub, err := claims.GetSubject()
	if err != nil {
		return TokenInfo{}, fmt.Errorf("invalid sub claim: %w", err)
	}
	info.Subject = sub

	exp, err := claims.GetExpirationTime()
	if err != nil {
		return TokenInfo{}, fmt.Errorf("invalid exp claim: %w", err)
	}
	if exp != nil {
		info.ExpiresAt = exp.Time
	}
	return info, nil
}
