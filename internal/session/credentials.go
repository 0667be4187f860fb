package session

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/nerrad567/chuango-bridge/internal/device"
	"github.com/nerrad567/chuango-bridge/internal/infrastructure/mqtt"
)

// Credentials are the broker parameters derived for one device.
type Credentials struct {
	Host     string
	Port     int
	ClientID string
	Username string
	Password string
	Topic    string
	TypeCode string
}

// Params converts the credentials to dial parameters.
func (c Credentials) Params() mqtt.Params {
	return mqtt.Params{
		Host:     c.Host,
		Port:     c.Port,
		ClientID: c.ClientID,
		Username: c.Username,
		Password: c.Password,
	}
}

// NewClientID returns a client id in the vendor app's format,
// and_<device id>_<8 random digits>.
func NewClientID(deviceID string) string {
	n, err := rand.Int(rand.Reader, big.NewInt(100_000_000))
	if err != nil {
		// crypto/rand does not fail on supported platforms.
		panic(err)
	}
	return fmt.Sprintf("and_%s_%08d", deviceID, n.Int64())
}

// Username returns <device id>_<userDB><userId> from the account profile.
func Username(deviceID string, profile map[string]any) (string, error) {
	userDB := profileString(profile, "userDB")
	userID := profileString(profile, "userId")
	if userDB == "" || userID == "" {
		return "", fmt.Errorf("%w: profile lacks userDB or userId", ErrConfig)
	}
	return deviceID + "_" + userDB + userID, nil
}

// DeriveCredentials builds the broker parameters for dev.
func DeriveCredentials(dev device.Device, profile map[string]any, clientID string) (Credentials, error) {
	typeCode := dev.TypeCode()
	if typeCode == "" {
		return Credentials{}, fmt.Errorf("%w: device %s has no mpid or product_id", ErrConfig, dev.ID)
	}
	if dev.MQTTDomain == "" || dev.MQTTPort == 0 || dev.MQTTToken == "" {
		return Credentials{}, fmt.Errorf("%w: device %s lacks broker host, port or token", ErrConfig, dev.ID)
	}
	username, err := Username(dev.ID, profile)
	if err != nil {
		return Credentials{}, err
	}

	return Credentials{
		Host:     dev.MQTTDomain,
		Port:     dev.MQTTPort,
		ClientID: clientID,
		Username: username,
		Password: dev.MQTTToken,
		Topic:    mqtt.Topics{}.DeviceOut(dev.ID, typeCode),
		TypeCode: typeCode,
	}, nil
}

// profileString returns a profile value as text. Numbers arrive from JSON
// as float64 and are formatted without a fraction.
func profileString(profile map[string]any, key string) string {
	switch v := profile[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		if v == float64(int64(v)) {
			return fmt.Sprintf("%d", int64(v))
		}
		return fmt.Sprintf("%v", v)
	default:
		return fmt.Sprintf("%v", v)
	}
}
