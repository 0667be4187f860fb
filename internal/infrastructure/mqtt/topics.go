package mqtt

import (
	"fmt"
	"strings"
)

// TopicPrefix is the root of every device topic on the vendor broker.
const TopicPrefix = "smart"

// Suffixes of the device output topics the bridge interprets.
const (
	SuffixOnline = "/dout/online"
	SuffixConfig = "/dout/config"
	SuffixInfo   = "/dout/info"
)

// Topics provides builders for device topics.
//
//	topics := mqtt.Topics{}
//	sub := topics.DeviceOut("A1B2C3", "302")
//	// Returns: "smart/A1B2C3/dc/302/dout/#"
type Topics struct{}

// DeviceBase returns the common prefix for a device.
//
// Example: smart/A1B2C3/dc/302
func (Topics) DeviceBase(deviceID, typeCode string) string {
	return fmt.Sprintf("%s/%s/dc/%s", TopicPrefix, deviceID, typeCode)
}

// DeviceOut returns the wildcard for everything a device publishes.
//
// Example: smart/A1B2C3/dc/302/dout/#
func (t Topics) DeviceOut(deviceID, typeCode string) string {
	return t.DeviceBase(deviceID, typeCode) + "/dout/#"
}

// DeviceConfigIn returns the topic that accepts mode commands.
//
// Example: smart/A1B2C3/dc/302/din/config
func (t Topics) DeviceConfigIn(deviceID, typeCode string) string {
	return t.DeviceBase(deviceID, typeCode) + "/din/config"
}

// MessageKind classifies an inbound device topic.
type MessageKind int

const (
	KindOther MessageKind = iota
	KindOnline
	KindConfig
	KindInfo
)

// String returns the kind name.
func (k MessageKind) String() string {
	switch k {
	case KindOnline:
		return "online"
	case KindConfig:
		return "config"
	case KindInfo:
		return "info"
	default:
		return "other"
	}
}

// Classify returns the kind of an inbound topic by its suffix.
func (Topics) Classify(topic string) MessageKind {
	switch {
	case strings.HasSuffix(topic, SuffixOnline):
		return KindOnline
	case strings.HasSuffix(topic, SuffixConfig):
		return KindConfig
	case strings.HasSuffix(topic, SuffixInfo):
		return KindInfo
	default:
		return KindOther
	}
}
