// Package account keeps the cloud bearer token for one account fresh.
//
// A Session logs in lazily: EnsureValid does nothing while the held token
// has more than RefreshMargin left, and logs in otherwise. Callers that
// receive an auth rejection with a token they believed valid call
// EnsureValid(ctx, true) once to force a new login.
//
// The password is hashed with HashPassword when the session is built and
// only the digest is used afterwards. Logins are persisted through a Store
// so a restart does not need to log in again.
package account
