// Package api implements the local HTTP REST API and WebSocket server of
// the Chuango bridge.
//
// This package provides:
//   - REST endpoints for the fused snapshot, devices and arming commands
//   - WebSocket hub that pushes every new snapshot to connected clients
//   - JWT bearer authentication with read and control scopes
//   - Middleware stack (request ID, logging, recovery, body limit)
//
// # Architecture
//
// The server is a thin host surface over a Backend (the bridge). It never
// talks to the cloud or the hubs itself. Commands are forwarded to the
// Backend and their outcome is mapped to a status code; snapshots flow
// back through Backend.Subscribe and are broadcast to WebSocket clients.
//
// # Security
//
// Every route except /health requires a bearer token signed with the
// configured secret. Arming and refresh additionally require the
// control scope. Browsers cannot set headers on a WebSocket upgrade, so
// the token may also be passed as the token query parameter there.
package api
