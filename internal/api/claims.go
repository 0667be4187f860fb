package api

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Scopes carried by API tokens.
const (
	// ScopeRead allows every GET route.
	ScopeRead = "read"

	// ScopeControl additionally allows arming commands and refresh.
	ScopeControl = "control"
)

// defaultTokenTTL applies when the configured TTL is not positive.
const defaultTokenTTL = 15 * time.Minute

// ErrTokenInvalid is returned for tokens that fail signature, expiry or
// claim checks.
var ErrTokenInvalid = errors.New("api: invalid token")

// Claims extends the registered JWT claims with the granted scopes.
type Claims struct {
	jwt.RegisteredClaims
	Scopes []string `json:"scopes"`
}

// HasScope reports whether the token grants scope. Control implies read.
func (c *Claims) HasScope(scope string) bool {
	if slices.Contains(c.Scopes, scope) {
		return true
	}
	return scope == ScopeRead && slices.Contains(c.Scopes, ScopeControl)
}

// GenerateToken creates a signed HS256 bearer token for subject.
func GenerateToken(subject string, scopes []string, secret string, ttl time.Duration) (string, error) {
	if subject == "" {
		return "", fmt.Errorf("%w: subject is required", ErrTokenInvalid)
	}
	for _, sc := range scopes {
		if sc != ScopeRead && sc != ScopeControl {
			return "", fmt.Errorf("%w: unknown scope %q", ErrTokenInvalid, sc)
		}
	}
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}

	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
		Scopes: scopes,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

// ParseToken validates a bearer token and returns its claims.
func ParseToken(tokenString, secret string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(_ *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrTokenInvalid)
	}
	if len(claims.Scopes) == 0 {
		return nil, fmt.Errorf("%w: missing scopes", ErrTokenInvalid)
	}
	return claims, nil
}
