package directory

import "errors"

var (
	// ErrUpdateFailed wraps every refresh failure together with its cause.
	ErrUpdateFailed = errors.New("directory: update failed")

	// ErrNoSharedDevices means the cloud returned an empty device list.
	ErrNoSharedDevices = errors.New("directory: no shared devices")
)
