// Package device defines the alarm hub model shared by every layer of the
// bridge.
//
// # Key Types
//
//   - Device: cloud metadata for a shared hub, refreshed every few hours
//   - Telemetry: live state pushed by the hub over MQTT
//   - Command: an arming request, mapped to the hub's single-letter mode code
//   - PanelState: the alarm panel view derived from Telemetry
//
// Device and Telemetry are values. Callers copy them freely; Telemetry.Clone
// detaches the Issues slice.
package device
