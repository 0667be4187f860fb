package manager

import "errors"

// ErrUnknownDevice means a command named a device that is not in the
// current device set.
var ErrUnknownDevice = errors.New("manager: unknown device")
