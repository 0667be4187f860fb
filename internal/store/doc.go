// Package store persists the bridge's account state in SQLite.
//
// Values live in a single key/value table created by the migrations
// package. Structured values are stored as JSON.
package store
