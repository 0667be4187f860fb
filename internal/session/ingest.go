package session

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/nerrad567/chuango-bridge/internal/device"
	"github.com/nerrad567/chuango-bridge/internal/infrastructure/mqtt"
)

// Apply folds one inbound message into t.
//
// Every message updates LastSeen and LastTopic. Fields missing from a
// recognised message keep their previous value and are listed in Issues
// as absent; fields with an unusable value are listed as invalid.
// Issues always describe the latest message only.
func Apply(t *device.Telemetry, topic string, payload []byte, now time.Time) {
	t.LastSeen = now
	t.LastTopic = topic
	t.Issues = nil

	kind := mqtt.Topics{}.Classify(topic)
	if kind == mqtt.KindOther {
		return
	}

	obj, ok := decodeObject(payload)
	if !ok {
		t.Issues = append(t.Issues, device.FieldIssue{Field: "payload", Kind: device.IssueInvalid, Raw: preview(payload)})
		return
	}

	switch kind {
	case mqtt.KindOnline:
		applyOnline(t, obj)
	case mqtt.KindConfig:
		if res, ok := result(t, obj); ok {
			applyConfig(t, res)
		}
	case mqtt.KindInfo:
		if res, ok := result(t, obj); ok {
			applyInfo(t, res)
		}
	}
}

func decodeObject(payload []byte) (map[string]any, bool) {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	var obj map[string]any
	if err := dec.Decode(&obj); err != nil || obj == nil {
		return nil, false
	}
	return obj, true
}

// result returns m.res, recording an issue when it is missing.
func result(t *device.Telemetry, obj map[string]any) (map[string]any, bool) {
	m, ok := obj["m"].(map[string]any)
	if !ok {
		recordMissing(t, "m.res", obj["m"])
		return nil, false
	}
	res, ok := m["res"].(map[string]any)
	if !ok {
		recordMissing(t, "m.res", m["res"])
		return nil, false
	}
	return res, true
}

func applyOnline(t *device.Telemetry, obj map[string]any) {
	param, ok := scalar(obj["param"])
	switch {
	case obj["param"] == nil:
		t.Issues = append(t.Issues, device.FieldIssue{Field: "param", Kind: device.IssueAbsent})
	case !ok:
		t.Issues = append(t.Issues, device.FieldIssue{Field: "param", Kind: device.IssueInvalid})
	}
	t.Online = param == "1" || strings.EqualFold(param, "true")
	t.OnlineKnown = true

	if msg, ok := scalar(obj["msg"]); ok {
		t.OnlineMessage = msg
	} else {
		t.OnlineMessage = ""
	}
}

func applyConfig(t *device.Telemetry, res map[string]any) {
	if raw, ok := field(t, res, "mode"); ok {
		t.ModeRaw = raw
		mode, valid := device.ParseMode(raw)
		t.Mode = mode
		if !valid {
			t.Issues = append(t.Issues, device.FieldIssue{Field: "mode", Kind: device.IssueInvalid, Raw: raw})
		}
	}

	if raw, ok := field(t, res, "alarm"); ok {
		switch strings.ToLower(raw) {
		case "1", "true":
			t.AlarmActive = true
		case "0", "false":
			t.AlarmActive = false
		default:
			t.Issues = append(t.Issues, device.FieldIssue{Field: "alarm", Kind: device.IssueInvalid, Raw: raw})
		}
	}

	if raw, ok := field(t, res, "trig"); ok {
		t.TriggerCode = raw
	}
	if raw, ok := field(t, res, "power"); ok {
		t.PowerState = raw
	}
	if raw, ok := field(t, res, "time"); ok {
		t.DeviceTime = raw
	}
}

func applyInfo(t *device.Telemetry, res map[string]any) {
	if raw, ok := field(t, res, "tz"); ok {
		t.Timezone = raw
	}
	if raw, ok := field(t, res, "w_v"); ok {
		t.Firmware = raw
	}
	if raw, ok := field(t, res, "ip"); ok {
		t.LocalIP = raw
	}
	if raw, ok := field(t, res, "qs_d"); ok {
		t.QSD = raw
	}
	if raw, ok := field(t, res, "qs_p"); ok {
		t.QSP = raw
	}
}

// field returns res[key] as text, recording an issue when it is absent
// or not a scalar.
func field(t *device.Telemetry, res map[string]any, key string) (string, bool) {
	v, present := res[key]
	if !present || v == nil {
		t.Issues = append(t.Issues, device.FieldIssue{Field: key, Kind: device.IssueAbsent})
		return "", false
	}
	raw, ok := scalar(v)
	if !ok {
		t.Issues = append(t.Issues, device.FieldIssue{Field: key, Kind: device.IssueInvalid})
		return "", false
	}
	return raw, true
}

func recordMissing(t *device.Telemetry, name string, v any) {
	kind := device.IssueInvalid
	if v == nil {
		kind = device.IssueAbsent
	}
	t.Issues = append(t.Issues, device.FieldIssue{Field: name, Kind: kind})
}

// scalar renders a JSON scalar as text. Objects, arrays and null are not
// scalars.
func scalar(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		return x, true
	case json.Number:
		return x.String(), true
	case bool:
		return strconv.FormatBool(x), true
	default:
		return "", false
	}
}

const previewLimit = 200

func preview(payload []byte) string {
	if len(payload) > previewLimit {
		payload = payload[:previewLimit]
	}
	return strings.ToValidUTF8(string(payload), "�")
}
