package device

import "errors"

// Domain errors for the device package.
var (
	// ErrInvalidID is returned for device ids that cannot be used in a topic.
	ErrInvalidID = errors.New("device: invalid id")

	// ErrUnknownCommand is returned for commands other than disarm, arm_home and arm_away.
	ErrUnknownCommand = errors.New("device: unknown command")
)
