package session

// State is the lifecycle position of a device session.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateSubscribed
	StateDisconnected
	StateBackoff
	StateClosed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateSubscribed:
		return "subscribed"
	case StateDisconnected:
		return "disconnected"
	case StateBackoff:
		return "backoff"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// ReadyResult is the outcome of waiting for a session to be subscribed.
type ReadyResult int

const (
	Ready ReadyResult = iota
	TimedOut
	Closed
)

// String returns the result name.
func (r ReadyResult) String() string {
	switch r {
	case Ready:
		return "ready"
	case TimedOut:
		return "timed out"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}
