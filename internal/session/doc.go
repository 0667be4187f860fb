// Package session maintains one authenticated MQTT connection per alarm
// hub.
//
// Each Session runs its own goroutine with an independent retry timeline:
// after a failure it waits 5s, 10s, 20s, 40s and then 60s between
// attempts, and a successful subscribe resets the delay. Inbound messages
// are folded into the device's Telemetry by Apply and pushed to a
// TelemetrySink.
//
// Publish waits for the session to be subscribed rather than queueing:
// if the ready gate does not open within the publish wait the call
// fails with ErrNotConnected.
package session
