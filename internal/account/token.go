package account

import (
	"maps"
	"time"
)

// RefreshMargin is how long before the server-declared expiry a token is
// treated as stale.
const RefreshMargin = 12 * time.Hour

// Token is a cloud bearer token. It is never modified after creation;
// a refresh replaces it wholesale.
type Token struct {
	Value string
	// ExpiresAt is the server-declared expiry in unix seconds.
	ExpiresAt int64
	Profile   map[string]any
}

// Expiry returns ExpiresAt as a time.
func (t *Token) Expiry() time.Time {
	return time.Unix(t.ExpiresAt, 0)
}

// Stale reports whether the token is within RefreshMargin of expiry.
func (t *Token) Stale(now time.Time) bool {
	if t == nil || t.Value == "" || t.ExpiresAt == 0 {
		return true
	}
	return now.Unix() >= t.ExpiresAt-int64(RefreshMargin/time.Second)
}

// Remaining returns the time left until the server-declared expiry.
func (t *Token) Remaining(now time.Time) time.Duration {
	return t.Expiry().Sub(now)
}

// ProfileCopy returns a shallow copy of the profile map.
func (t *Token) ProfileCopy() map[string]any {
	if t == nil || t.Profile == nil {
		return map[string]any{}
	}
	return maps.Clone(t.Profile)
}
