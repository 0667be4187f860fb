package cloud

import (
	"fmt"

	"github.com/nerrad567/chuango-bridge/internal/device"
)

// Endpoint is a host the cloud directs the app to.
type Endpoint struct {
	Domain string `json:"domain"`
	IP     string `json:"ip,omitempty"`
	Port   int    `json:"port"`
}

// BaseURL returns the https base for the endpoint.
func (e Endpoint) BaseURL() string {
	return fmt.Sprintf("https://%s:%d", e.Domain, e.Port)
}

// Valid reports whether the endpoint can be dialled.
func (e Endpoint) Valid() bool {
	return e.Domain != "" && e.Port > 0 && e.Port <= 65535
}

// Zone is the pair of account and broker hosts serving a region.
type Zone struct {
	Region string   `json:"region"`
	Auth   Endpoint `json:"am"`
	MQTT   Endpoint `json:"mqtt"`
}

// LoginRequest carries the account credentials. The password is only
// ever the MD5 hex digest.
type LoginRequest struct {
	CountryCode string
	Email       string
	PasswordMD5 string
	InstallID   string
}

// LoginResult is a successful login.
type LoginResult struct {
	Token string
	// ExpiresAt is the server-declared expiry in unix seconds.
	ExpiresAt int64
	Profile   map[string]any
}

type wireEndpoint struct {
	Domain flexString `json:"domain"`
	IP     flexString `json:"ip"`
	Port   flexInt    `json:"port"`
}

func (w wireEndpoint) endpoint() Endpoint {
	return Endpoint{Domain: string(w.Domain), IP: string(w.IP), Port: int(w.Port)}
}

type wireZone struct {
	Region flexString   `json:"region"`
	AM     wireEndpoint `json:"am"`
	MQTT   wireEndpoint `json:"mqtt"`
}

type wireLogin struct {
	Token    flexString     `json:"token"`
	ExpireAt flexInt        `json:"expireAt"`
	UserInfo map[string]any `json:"userInfo"`
}

type wireMQTT struct {
	Domain flexString `json:"domain"`
	IP     flexString `json:"ip"`
	Port   flexInt    `json:"port"`
	Token  flexString `json:"token"`
}

type wireDevice struct {
	ID        flexString `json:"ID"`
	DevIDInt  flexInt    `json:"devIdInt"`
	ProductID flexString `json:"product_id"`
	DType     flexString `json:"dtype"`
	MPID      flexString `json:"mpid"`
	Alias     flexString `json:"alias"`
	UserAuth  flexString `json:"userAuth"`
	MQTT      wireMQTT   `json:"mqtt"`
	HomeID    flexString `json:"homeID"`
	RoomID    flexString `json:"roomID"`
	RoomName  flexString `json:"roomName"`
}

func (w wireDevice) device() device.Device {
	return device.Device{
		ID:         string(w.ID),
		IntID:      int64(w.DevIDInt),
		Alias:      string(w.Alias),
		ProductID:  string(w.ProductID),
		MPID:       string(w.MPID),
		DeviceType: string(w.DType),
		MQTTDomain: string(w.MQTT.Domain),
		MQTTIP:     string(w.MQTT.IP),
		MQTTPort:   int(w.MQTT.Port),
		MQTTToken:  string(w.MQTT.Token),
		HomeID:     string(w.HomeID),
		RoomID:     string(w.RoomID),
		RoomName:   string(w.RoomName),
		UserAuth:   string(w.UserAuth),
	}
}
