// Package fusion holds the merged, push-updated view of an account.
//
// Device metadata arrives from the directory every few hours and
// telemetry arrives from device sessions at any time. Each change
// produces a new immutable Snapshot that is swapped in atomically, so
// readers never see a half-applied update.
package fusion
