package influxdb_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/chuango-bridge/internal/device"
	"github.com/nerrad567/chuango-bridge/internal/infrastructure/config"
	"github.com/nerrad567/chuango-bridge/internal/infrastructure/influxdb"
)

// fakeInflux answers /ping and captures line protocol sent to /api/v2/write.
func fakeInflux(t *testing.T) (*httptest.Server, <-chan string) {
	t.Helper()
	writes := make(chan string, 16)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ping":
			w.WriteHeader(http.StatusNoContent)
		case "/api/v2/write":
			body, _ := io.ReadAll(r.Body)
			writes <- string(body)
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)

	return srv, writes
}

func testConfig(url string) config.InfluxDBConfig {
	return config.InfluxDBConfig{
		Enabled:       true,
		URL:           url,
		Token:         "test-token",
		Org:           "home",
		Bucket:        "alarm",
		BatchSize:     1,
		FlushInterval: 1,
	}
}

func TestConnect_Disabled(t *testing.T) {
	cfg := testConfig("http://127.0.0.1:1")
	cfg.Enabled = false

	_, err := influxdb.Connect(context.Background(), cfg)
	if !errors.Is(err, influxdb.ErrDisabled) {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
}

func TestConnect_Unreachable(t *testing.T) {
	_, err := influxdb.Connect(context.Background(), testConfig("http://127.0.0.1:1"))
	if !errors.Is(err, influxdb.ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestWriteTelemetry(t *testing.T) {
	srv, writes := fakeInflux(t)

	client, err := influxdb.Connect(context.Background(), testConfig(srv.URL))
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	if err := client.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}

	client.WriteTelemetry("A1B2C3", device.Telemetry{Mode: device.ModeArmedAway, Online: true, OnlineKnown: true})
	client.Flush()

	select {
	case body := <-writes:
		if !strings.Contains(body, "alarm_telemetry") || !strings.Contains(body, "device_id=A1B2C3") {
			t.Errorf("write body = %q, want alarm_telemetry point for A1B2C3", body)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no write received")
	}
}

func TestClose_Idempotent(t *testing.T) {
	srv, _ := fakeInflux(t)

	client, err := influxdb.Connect(context.Background(), testConfig(srv.URL))
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	if err := client.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if err := client.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if client.IsConnected() {
		t.Error("IsConnected() = true after Close")
	}

	// Writes after close are dropped silently.
	client.WriteTelemetry("A1B2C3", device.NewTelemetry())
	client.Flush()

	if err := client.HealthCheck(context.Background()); !errors.Is(err, influxdb.ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}
}

func TestTelemetryPoint(t *testing.T) {
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tel := device.Telemetry{
		Mode:        device.ModeDisarmed,
		AlarmActive: true,
		TriggerCode: "3",
		Issues:      []device.FieldIssue{{Field: "power", Kind: device.IssueAbsent}},
	}

	p := influxdb.TelemetryPoint("A1B2C3", tel, ts)

	if p.Name() != "alarm_telemetry" {
		t.Errorf("Name() = %q, want alarm_telemetry", p.Name())
	}
	if !p.Time().Equal(ts) {
		t.Errorf("Time() = %v, want %v", p.Time(), ts)
	}

	tags := map[string]string{}
	for _, tag := range p.TagList() {
		tags[tag.Key] = tag.Value
	}
	if tags["device_id"] != "A1B2C3" {
		t.Errorf("device_id tag = %q, want A1B2C3", tags["device_id"])
	}
	if tags["panel_state"] != "triggered" {
		t.Errorf("panel_state tag = %q, want triggered", tags["panel_state"])
	}

	fields := map[string]interface{}{}
	for _, f := range p.FieldList() {
		fields[f.Key] = f.Value
	}
	if fields["alarm_active"] != true {
		t.Errorf("alarm_active field = %v, want true", fields["alarm_active"])
	}
	if fields["trigger_code"] != "3" {
		t.Errorf("trigger_code field = %v, want 3", fields["trigger_code"])
	}
	if fields["issues"] != int64(1) {
		t.Errorf("issues field = %v (%T), want int64(1)", fields["issues"], fields["issues"])
	}
	if _, ok := fields["power_state"]; ok {
		t.Error("empty power_state should not be written")
	}
}
