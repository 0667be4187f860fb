package logging

import (
	"strings"
	"testing"
)

func TestIsSensitive(t *testing.T) {
	tests := []struct {
		key  string
		want bool
	}{
		{"password", true},
		{"Password", true},
		{"token", true},
		{"mqttToken", true},
		{"Authorization", true},
		{"Cookie", true},
		{"email", false},
		{"region", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			if got := IsSensitive(tt.key); got != tt.want {
				t.Errorf("IsSensitive(%q) = %v, want %v", tt.key, got, tt.want)
			}
		})
	}
}

func TestRedact(t *testing.T) {
	in := map[string]any{
		"name":     "user@example.com",
		"password": "5f4dcc3b5aa765d61d8327deb882cf99",
		"mqtt": map[string]any{
			"domain": "mqtt.example.com",
			"token":  "secret",
		},
		"list": []any{
			map[string]any{"token": "x", "ID": "dev1"},
		},
	}

	out := Redact(in)

	if out["name"] != "user@example.com" {
		t.Errorf("name = %v, want unchanged", out["name"])
	}
	if out["password"] != redacted {
		t.Errorf("password = %v, want %q", out["password"], redacted)
	}

	mqtt := out["mqtt"].(map[string]any)
	if mqtt["token"] != redacted {
		t.Errorf("mqtt.token = %v, want %q", mqtt["token"], redacted)
	}
	if mqtt["domain"] != "mqtt.example.com" {
		t.Errorf("mqtt.domain = %v, want unchanged", mqtt["domain"])
	}

	item := out["list"].([]any)[0].(map[string]any)
	if item["token"] != redacted || item["ID"] != "dev1" {
		t.Errorf("list[0] = %v, want token redacted and ID kept", item)
	}

	// Input untouched.
	if in["password"] == redacted {
		t.Error("Redact modified its input")
	}
	if in["mqtt"].(map[string]any)["token"] != "secret" {
		t.Error("Redact modified a nested input map")
	}
}

func TestRedact_Nil(t *testing.T) {
	if got := Redact(nil); got != nil {
		t.Errorf("Redact(nil) = %v, want nil", got)
	}
}

func TestRedactStrings(t *testing.T) {
	out := RedactStrings(map[string]string{"token": "abc", "region": "DE"})
	if out["token"] != redacted {
		t.Errorf("token = %q, want %q", out["token"], redacted)
	}
	if out["region"] != "DE" {
		t.Errorf("region = %q, want DE", out["region"])
	}
}

func TestTruncate(t *testing.T) {
	long := strings.Repeat("a", MaxLoggedBody+10)

	got := Truncate(long, MaxLoggedBody)
	if !strings.HasPrefix(got, strings.Repeat("a", MaxLoggedBody)) {
		t.Error("Truncate should keep the first limit characters")
	}
	if !strings.HasSuffix(got, "...(truncated)") {
		t.Errorf("Truncate should mark the cut, got suffix %q", got[len(got)-20:])
	}

	if got := Truncate("short", MaxLoggedBody); got != "short" {
		t.Errorf("Truncate(short) = %q, want unchanged", got)
	}
}
