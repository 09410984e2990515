// Package auth turns bearer tokens into caller identities.
//
// Tokens are HS256-signed JWTs. The subject claim is the caller's account
// id; a token that verifies is treated as signed by that account.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"service-auction/internal/domain"
	"service-auction/pkg/clock"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const issuer = "service-auction"

var (
	ErrMissingToken = errors.New("auth: missing bearer token")
	ErrInvalidToken = errors.New("auth: invalid token")
)

type Claims struct {
	jwt.RegisteredClaims
}

type TokenManager struct {
	secret     []byte
	expiration time.Duration
	clock      clock.Clock
}

func NewTokenManager(secret string, expiration time.Duration, clk clock.Clock) (*TokenManager, error) {
	if len(secret) < 16 {
		return nil, fmt.Errorf("auth: secret must be at least 16 bytes")
	}
	if expiration <= 0 {
		expiration = time.Hour
	}
	return &TokenManager{secret: []byte(secret), expiration: expiration, clock: clk}, nil
}

// IssueToken signs a token for the given account.
func (m *TokenManager) IssueToken(subject string) (string, time.Time, error) {
	if subject == "" {
		return "", time.Time{}, fmt.Errorf("auth: empty subject")
	}
	now := m.clock.Now()
	exp := now.Add(m.expiration)

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        uuid.NewString(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("auth: sign token: %w", err)
	}
	return signed, exp, nil
}

// Authenticate validates a raw token and returns the signing identity.
func (m *TokenManager) Authenticate(tokenStr string) (domain.Identity, error) {
	if tokenStr == "" {
		return domain.Identity{}, ErrMissingToken
	}

	token, err := jwt.ParseWithClaims(
		tokenStr,
		&Claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return m.secret, nil
		},
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(m.clock.Now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject == "" {
		return domain.Identity{}, ErrInvalidToken
	}

	return domain.Identity{ID: claims.Subject, Signer: true}, nil
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, error) {
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", ErrMissingToken
	}
	return strings.TrimSpace(header[len(prefix):]), nil
}
