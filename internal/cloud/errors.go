package cloud

import "errors"

// Sentinel errors for cloud API calls. Every error returned by Client
// wraps exactly one of them.
var (
	// ErrAuth means the server rejected the credentials or token (HTTP 401/403).
	ErrAuth = errors.New("cloud: authentication rejected")

	// ErrConnectivity covers transport failures, unexpected status codes and
	// response bodies that do not have the expected shape.
	ErrConnectivity = errors.New("cloud: request failed")
)
