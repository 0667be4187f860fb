// Package influxdb records alarm telemetry history in InfluxDB.
//
// History is optional. When enabled, every telemetry update pushed by a
// device session is written as one alarm_telemetry point, and the bearer
// token lifetime is sampled on each login.
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // history turned off
//	}
//	defer client.Close()
//
//	client.WriteTelemetry("A1B2C3", tel)
package influxdb
