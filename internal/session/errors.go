package session

import "errors"

var (
	// ErrConfig means the device metadata or account profile lacks what is
	// needed to derive broker credentials.
	ErrConfig = errors.New("session: incomplete mqtt configuration")

	// ErrNotConnected means a publish was attempted while the session was
	// not subscribed.
	ErrNotConnected = errors.New("session: not connected")
)
