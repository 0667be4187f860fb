package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/chuango-bridge/internal/device"
)

// Measurement names.
const (
	measurementTelemetry = "alarm_telemetry"
	measurementAccount   = "alarm_account"
)

// WriteTelemetry records one telemetry update for a hub.
// The write is non-blocking; data is batched and sent asynchronously.
func (c *Client) WriteTelemetry(deviceID string, tel device.Telemetry) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(TelemetryPoint(deviceID, tel, time.Now()))
}

// WriteTokenExpiry records the remaining bearer token lifetime.
func (c *Client) WriteTokenExpiry(expiresAt time.Time, now time.Time) {
	if !c.IsConnected() {
		return
	}
	point := write.NewPoint(
		measurementAccount,
		nil,
		map[string]interface{}{
			"token_remaining_s": int64(expiresAt.Sub(now).Seconds()),
		},
		now,
	)
	c.writeAPI.WritePoint(point)
}

// TelemetryPoint builds the point written for a telemetry update.
//
// Tags carry the device id and the derived panel state. Mode is kept as a
// tag too so dashboards can group by it.
func TelemetryPoint(deviceID string, tel device.Telemetry, ts time.Time) *write.Point {
	fields := map[string]interface{}{
		"online":       tel.Online,
		"online_known": tel.OnlineKnown,
		"available":    tel.Available(),
		"alarm_active": tel.AlarmActive,
		"issues":       len(tel.Issues),
	}
	if tel.TriggerCode != "" {
		fields["trigger_code"] = tel.TriggerCode
	}
	if tel.PowerState != "" {
		fields["power_state"] = tel.PowerState
	}
	if tel.LastTopic != "" {
		fields["last_topic"] = tel.LastTopic
	}

	return write.NewPoint(
		measurementTelemetry,
		map[string]string{
			"device_id":   deviceID,
			"mode":        string(tel.Mode),
			"panel_state": string(tel.PanelState()),
		},
		fields,
		ts,
	)
}
