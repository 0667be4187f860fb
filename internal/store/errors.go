package store

import "errors"

// ErrCorrupt means a stored value could not be decoded.
var ErrCorrupt = errors.New("store: corrupt value")
