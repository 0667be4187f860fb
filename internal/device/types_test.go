package device

import (
	"errors"
	"testing"
)

func TestDevice_TypeCode(t *testing.T) {
	tests := []struct {
		name string
		dev  Device
		want string
	}{
		{"mpid preferred", Device{MPID: "302", ProductID: "17"}, "302"},
		{"product id fallback", Device{ProductID: "17"}, "17"},
		{"neither", Device{}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.dev.TypeCode(); got != tt.want {
				t.Errorf("TypeCode() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDevice_DisplayName(t *testing.T) {
	if got := (Device{ID: "A1", Alias: "Home"}).DisplayName(); got != "Home" {
		t.Errorf("DisplayName() = %q, want Home", got)
	}
	if got := (Device{ID: "A1"}).DisplayName(); got != "A1" {
		t.Errorf("DisplayName() = %q, want A1", got)
	}
}

func TestValidateID(t *testing.T) {
	tests := []struct {
		id      string
		wantErr bool
	}{
		{"A1B2C3", false},
		{"dev-01_x", false},
		{"", true},
		{"a/b", true},
		{"a+b", true},
		{"a#", true},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			err := ValidateID(tt.id)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateID(%q) error = %v, wantErr %v", tt.id, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidID) {
				t.Errorf("ValidateID(%q) error = %v, want ErrInvalidID", tt.id, err)
			}
		})
	}
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		code   string
		want   Mode
		wantOK bool
	}{
		{"d", ModeDisarmed, true},
		{"D", ModeDisarmed, true},
		{"h", ModeArmedHome, true},
		{"H", ModeArmedHome, true},
		{"a", ModeArmedAway, true},
		{"A", ModeArmedAway, true},
		{"x", ModeUnknown, false},
		{"", ModeUnknown, false},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			got, ok := ParseMode(tt.code)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("ParseMode(%q) = %v, %v, want %v, %v", tt.code, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestCommand_ModeCode(t *testing.T) {
	tests := []struct {
		cmd     Command
		want    string
		wantErr bool
	}{
		{CommandDisarm, "d", false},
		{CommandArmHome, "h", false},
		{CommandArmAway, "a", false},
		{"arm_night", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(string(tt.cmd), func(t *testing.T) {
			got, err := tt.cmd.ModeCode()
			if (err != nil) != tt.wantErr {
				t.Fatalf("ModeCode() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrUnknownCommand) {
				t.Errorf("ModeCode() error = %v, want ErrUnknownCommand", err)
			}
			if got != tt.want {
				t.Errorf("ModeCode() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTelemetry_Available(t *testing.T) {
	tests := []struct {
		name string
		tel  Telemetry
		want bool
	}{
		{"unknown online", Telemetry{}, true},
		{"reported online", Telemetry{Online: true, OnlineKnown: true}, true},
		{"reported offline", Telemetry{Online: false, OnlineKnown: true}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.tel.Available(); got != tt.want {
				t.Errorf("Available() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTelemetry_MarkOffline(t *testing.T) {
	tel := Telemetry{Online: true, OnlineKnown: true}
	tel.MarkOffline()
	if tel.Available() {
		t.Error("Available() = true after MarkOffline")
	}
}

func TestTelemetry_PanelState(t *testing.T) {
	tests := []struct {
		name string
		tel  Telemetry
		want PanelState
	}{
		{"alarm overrides mode", Telemetry{AlarmActive: true, Mode: ModeDisarmed}, PanelTriggered},
		{"disarmed", Telemetry{Mode: ModeDisarmed}, PanelDisarmed},
		{"armed home", Telemetry{Mode: ModeArmedHome}, PanelArmedHome},
		{"armed away", Telemetry{Mode: ModeArmedAway}, PanelArmedAway},
		{"unknown", NewTelemetry(), PanelUnknown},
		{"zero value", Telemetry{}, PanelUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.tel.PanelState(); got != tt.want {
				t.Errorf("PanelState() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTelemetry_Clone(t *testing.T) {
	orig := Telemetry{Issues: []FieldIssue{{Field: "mode", Kind: IssueAbsent}}}
	cpy := orig.Clone()
	cpy.Issues[0].Field = "changed"

	if orig.Issues[0].Field != "mode" {
		t.Error("Clone() shares the Issues slice with the original")
	}
}
