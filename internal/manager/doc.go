// Package manager keeps a device session running for every device in the
// current device set and routes commands to them.
//
// The device set is recorded with Apply at any time, but sessions are
// only started after Start. Removed devices have their session closed
// and awaited before their telemetry leaves the fused view.
package manager
