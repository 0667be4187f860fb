// Package cloud is the client for the DreamCatcher Life REST API.
//
// Three calls are supported: zone lookup for a region, login, and the
// list of devices shared with the account. Every request carries the
// mobile app identity headers the service expects.
//
// Errors wrap ErrAuth when the server rejects credentials (HTTP 401 or
// 403) and ErrConnectivity for everything else, including bodies that do
// not parse. Callers branch with errors.Is.
//
// With a debug-level logger attached, requests and responses are logged
// with passwords and tokens masked.
package cloud
