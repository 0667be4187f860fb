package device

import (
	"fmt"
	"strings"
	"time"
)

// Device is the metadata the cloud reports for one shared alarm hub.
// It is replaced wholesale on every directory refresh.
type Device struct {
	ID         string `json:"id"`
	IntID      int64  `json:"int_id,omitempty"`
	Alias      string `json:"alias,omitempty"`
	ProductID  string `json:"product_id,omitempty"`
	MPID       string `json:"mpid,omitempty"`
	DeviceType string `json:"device_type,omitempty"`

	MQTTDomain string `json:"mqtt_domain,omitempty"`
	MQTTIP     string `json:"mqtt_ip,omitempty"`
	MQTTPort   int    `json:"mqtt_port,omitempty"`
	MQTTToken  string `json:"-"`

	HomeID   string `json:"home_id,omitempty"`
	RoomID   string `json:"room_id,omitempty"`
	RoomName string `json:"room_name,omitempty"`
	UserAuth string `json:"user_auth,omitempty"`
}

// TypeCode returns the code used in the device's topics. MPID wins over
// ProductID when both are present.
func (d Device) TypeCode() string {
	if d.MPID != "" {
		return d.MPID
	}
	return d.ProductID
}

// DisplayName returns the alias, or the id when no alias is set.
func (d Device) DisplayName() string {
	if d.Alias != "" {
		return d.Alias
	}
	return d.ID
}

// ValidateID rejects ids that are empty or would break topic construction.
func ValidateID(id string) error {
	if id == "" {
		return fmt.Errorf("%w: empty", ErrInvalidID)
	}
	if strings.ContainsAny(id, "/+#\x00") {
		return fmt.Errorf("%w: %q contains a topic separator or wildcard", ErrInvalidID, id)
	}
	return nil
}

// Mode is the arming mode reported by a hub.
type Mode string

const (
	ModeUnknown   Mode = "unknown"
	ModeDisarmed  Mode = "disarmed"
	ModeArmedHome Mode = "armed_home"
	ModeArmedAway Mode = "armed_away"
)

// ParseMode maps the single-letter wire code to a Mode. Codes are
// case-insensitive; anything else yields ModeUnknown and false.
func ParseMode(code string) (Mode, bool) {
	switch strings.ToLower(strings.TrimSpace(code)) {
	case "d":
		return ModeDisarmed, true
	case "h":
		return ModeArmedHome, true
	case "a":
		return ModeArmedAway, true
	default:
		return ModeUnknown, false
	}
}

// Command is an arming request from a consumer.
type Command string

const (
	CommandDisarm  Command = "disarm"
	CommandArmHome Command = "arm_home"
	CommandArmAway Command = "arm_away"
)

// ModeCode returns the wire code sent in a host_stat request.
func (c Command) ModeCode() (string, error) {
	switch c {
	case CommandDisarm:
		return "d", nil
	case CommandArmHome:
		return "h", nil
	case CommandArmAway:
		return "a", nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownCommand, string(c))
	}
}

// IssueKind says why a telemetry field was not applied.
type IssueKind string

const (
	IssueAbsent  IssueKind = "absent"
	IssueInvalid IssueKind = "invalid"
)

// FieldIssue records one field of the last message that could not be used.
type FieldIssue struct {
	Field string    `json:"field"`
	Kind  IssueKind `json:"kind"`
	Raw   string    `json:"raw,omitempty"`
}

// Telemetry is the live state of a hub as seen over MQTT. Only the
// owning device session writes it.
type Telemetry struct {
	Online        bool   `json:"online"`
	OnlineKnown   bool   `json:"online_known"`
	OnlineMessage string `json:"online_message,omitempty"`

	Mode        Mode   `json:"mode"`
	ModeRaw     string `json:"mode_raw,omitempty"`
	AlarmActive bool   `json:"alarm_active"`
	TriggerCode string `json:"trigger_code,omitempty"`
	PowerState  string `json:"power_state,omitempty"`
	DeviceTime  string `json:"device_time,omitempty"`

	Firmware string `json:"firmware,omitempty"`
	LocalIP  string `json:"local_ip,omitempty"`
	Timezone string `json:"timezone,omitempty"`
	QSD      string `json:"qs_d,omitempty"`
	QSP      string `json:"qs_p,omitempty"`

	LastSeen  time.Time `json:"last_seen,omitempty"`
	LastTopic string    `json:"last_topic,omitempty"`

	// Issues lists problems with the most recent message only.
	Issues []FieldIssue `json:"issues,omitempty"`
}

// NewTelemetry returns the state of a hub nothing has been heard from.
func NewTelemetry() Telemetry {
	return Telemetry{Mode: ModeUnknown}
}

// Clone returns a copy that shares no slices with t.
func (t Telemetry) Clone() Telemetry {
	if t.Issues != nil {
		t.Issues = append([]FieldIssue(nil), t.Issues...)
	}
	return t
}

// Available reports whether the hub should be treated as reachable.
// A hub whose online status has never been reported counts as available.
func (t Telemetry) Available() bool {
	return !t.OnlineKnown || t.Online
}

// MarkOffline records that the session lost its broker connection.
func (t *Telemetry) MarkOffline() {
	t.Online = false
	t.OnlineKnown = true
}

// PanelState is the alarm panel view derived from telemetry.
type PanelState string

const (
	PanelUnknown   PanelState = "unknown"
	PanelTriggered PanelState = "triggered"
	PanelDisarmed  PanelState = "disarmed"
	PanelArmedHome PanelState = "armed_home"
	PanelArmedAway PanelState = "armed_away"
)

// PanelState derives the panel state. An active alarm overrides the mode.
func (t Telemetry) PanelState() PanelState {
	if t.AlarmActive {
		return PanelTriggered
	}
	switch t.Mode {
	case ModeDisarmed:
		return PanelDisarmed
	case ModeArmedHome:
		return PanelArmedHome
	case ModeArmedAway:
		return PanelArmedAway
	default:
		return PanelUnknown
	}
}
