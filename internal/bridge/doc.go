// Package bridge assembles the account, directory, device sessions and
// fused view into the surface a host consumes.
//
// Device metadata flows from the directory into the fused view and the
// session manager; telemetry flows from the sessions into the fused view
// and, when configured, into InfluxDB. Commands go through Dispatch and
// are recorded in the audit log.
package bridge
