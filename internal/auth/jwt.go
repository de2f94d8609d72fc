// Package auth verifies bearer tokens and carries the caller's identity
// through the request context.
//
// Two token kinds are accepted:
//   - Firebase ID tokens (RS256, signed by Google), the production path
//   - locally signed HS256 tokens from TokenService, for development and tests
//
// Both verify to the same Identity. The user row is resolved from
// Identity.Subject later, in the server's user middleware.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is wrapped by every verification failure.
var ErrInvalidToken = errors.New("auth: invalid token")

// Provider names recorded on an Identity.
const (
	ProviderFirebase = "firebase"
	ProviderLocal    = "local"
)

// Identity is what a verified token says about its holder.
type Identity struct {
	Subject  string
	Email    string
	Name     string
	Picture  string
	Provider string
}

// Verifier checks a raw bearer token.
type Verifier interface {
	Verify(ctx context.Context, rawToken string) (*Identity, error)
}

const localIssuer = "drink-journal"

// TokenService signs and verifies HS256 tokens with a shared secret.
type TokenService struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenService creates a TokenService with the given secret.
// Example: JWT_SECRET=$(openssl rand -hex 32)
func NewTokenService(secret string) (*TokenService, error) {
	if len(secret) < 32 {
		return nil, errors.New("auth: JWT secret must be at least 32 characters")
	}
	return &TokenService{secret: []byte(secret), ttl: 24 * time.Hour}, nil
}

type localClaims struct {
	Email   string `json:"email,omitempty"`
	Name    string `json:"name,omitempty"`
	Picture string `json:"picture,omitempty"`
	jwt.RegisteredClaims
}

// Generate signs a token for id that is valid for 24 hours.
func (s *TokenService) Generate(id Identity) (string, error) {
	return s.GenerateWithDuration(id, s.ttl)
}

// GenerateWithDuration signs a token with a custom lifetime. A negative d
// produces an already expired token, which tests use.
func (s *TokenService) GenerateWithDuration(id Identity, d time.Duration) (string, error) {
	if id.Subject == "" {
		return "", errors.New("auth: subject is required")
	}
	now := time.Now()

	c := localClaims{
		Email:   id.Email,
		Name:    id.Name,
		Picture: id.Picture,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.Subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(d)),
			Issuer:    localIssuer,
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}
	return signed, nil
}

// Verify checks signature, algorithm, issuer and expiry.
//
// jwt.WithValidMethods pins HS256. Without it a token claiming "none" or an
// RS256 token crafted around the shared secret could get through.
func (s *TokenService) Verify(_ context.Context, raw string) (*Identity, error) {
	token, err := jwt.ParseWithClaims(
		raw,
		&localClaims{},
		func(*jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(localIssuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: token expired", ErrInvalidToken)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	c, ok := token.Claims.(*localClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("%w: bad claims", ErrInvalidToken)
	}
	if c.Subject == "" {
		return nil, fmt.Errorf("%w: token has no subject", ErrInvalidToken)
	}

	return &Identity{
		Subject:  c.Subject,
		Email:    c.Email,
		Name:     c.Name,
		Picture:  c.Picture,
		Provider: ProviderLocal,
	}, nil
}

// ChainVerifier tries each verifier in order and returns the first success.
type ChainVerifier []Verifier

func (c ChainVerifier) Verify(ctx context.Context, raw string) (*Identity, error) {
	if len(c) == 0 {
		return nil, fmt.Errorf("%w: no verifier configured", ErrInvalidToken)
	}
	var lastErr error
	for _, v := range c {
		id, err := v.Verify(ctx, raw)
		if err == nil {
			return id, nil
		}
		lastErr = err
	}
	return nil, lastErr
}
