// Package auth issues and validates the HS256 bearer tokens of the player API.
// The token subject is the account id.
package auth

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrMissingToken is returned when no bearer token was presented.
	ErrMissingToken = errors.New("missing bearer token")
	// ErrInvalidToken wraps every signature, expiry or claim failure.
	ErrInvalidToken = errors.New("invalid bearer token")
)

// Config holds the signing secret and expected issuer.
type Config struct {
	Secret string
	Issuer string
}

// Claims is the validated identity behind a request.
type Claims struct {
	AccountID string
	Scopes    []string
	ExpiresAt time.Time
}

// HasScope reports whether scope was granted.
func (c *Claims) HasScope(scope string) bool {
	return c != nil && slices.Contains(c.Scopes, scope)
}

type tokenClaims struct {
	Scope string `json:"scope,omitempty"`
	jwt.RegisteredClaims
}

// Issue signs a token for accountID carrying scopes, valid for ttl from now.
func Issue(cfg Config, accountID string, scopes []string, ttl time.Duration, now time.Time) (string, error) {
	if accountID == "" {
		return "", errors.New("auth: account id required")
	}
	sorted := slices.Clone(scopes)
	slices.Sort(sorted)
	claims := tokenClaims{
		Scope: strings.Join(slices.Compact(sorted), " "),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   accountID,
			Issuer:    cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(cfg.Secret))
}

// IssuePlayerToken signs a token with the player scopes.
func IssuePlayerToken(cfg Config, accountID string, ttl time.Duration, now time.Time) (string, error) {
	return Issue(cfg, accountID, PlayerScopes(), ttl, now)
}

// Parse validates token and returns its claims.
func Parse(token string, cfg Config) (*Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrMissingToken
	}

	var tc tokenClaims
	_, err := jwt.ParseWithClaims(token, &tc, func(*jwt.Token) (interface{}, error) {
		return []byte(cfg.Secret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(cfg.Issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if tc.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}

	return &Claims{
		AccountID: tc.Subject,
		Scopes:    strings.Fields(tc.Scope),
		ExpiresAt: tc.ExpiresAt.Time,
	}, nil
}
