package mqtt

import (
	"crypto/tls"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

// Connection constants.
const (
	// defaultConnectTimeout is the maximum time to wait for a connection.
	defaultConnectTimeout = 10 * time.Second

	// defaultPublishTimeout is the maximum time to wait for publish acknowledgment.
	defaultPublishTimeout = 5 * time.Second

	// defaultDisconnectQuiesce is the time to wait for pending operations on disconnect.
	defaultDisconnectQuiesce = 250 // milliseconds

	// defaultKeepAlive is the keepalive interval the vendor app uses.
	defaultKeepAlive = 60 * time.Second

	// maxQoS is the maximum QoS level supported.
	maxQoS = 2

	// tlsMinVersion is the minimum TLS version for broker connections.
	tlsMinVersion = tls.VersionTLS12
)

// Params describes one device broker connection.
type Params struct {
	Host     string
	Port     int
	ClientID string
	Username string
	Password string

	// KeepAlive and ConnectTimeout fall back to package defaults when zero.
	KeepAlive      time.Duration
	ConnectTimeout time.Duration
}

// Validate reports missing connection fields.
func (p Params) Validate() error {
	switch {
	case p.Host == "":
		return fmt.Errorf("%w: host is required", ErrInvalidParams)
	case p.Port < 1 || p.Port > 65535:
		return fmt.Errorf("%w: port %d out of range", ErrInvalidParams, p.Port)
	case p.ClientID == "":
		return fmt.Errorf("%w: client id is required", ErrInvalidParams)
	}
	return nil
}

// BrokerURL returns the ssl:// URL for the broker.
func (p Params) BrokerURL() string {
	return fmt.Sprintf("ssl://%s:%d", p.Host, p.Port)
}

// buildClientOptions creates paho MQTT options for one device connection.
//
// This configures:
//   - Broker URL (always ssl://)
//   - Client ID and credentials
//   - Clean session with no automatic reconnect; the caller owns retries
//   - In-order message delivery on a single goroutine
func buildClientOptions(p Params, tlsConfig *tls.Config) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions()

	opts.AddBroker(p.BrokerURL())
	opts.SetClientID(p.ClientID)

	if p.Username != "" {
		opts.SetUsername(p.Username)
		opts.SetPassword(p.Password)
	}

	opts.SetCleanSession(true)

	opts.SetAutoReconnect(false)
	opts.SetConnectRetry(false)

	// Handlers run sequentially so telemetry is applied in arrival order.
	opts.SetOrderMatters(true)

	connectTimeout := p.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = defaultConnectTimeout
	}
	opts.SetConnectTimeout(connectTimeout)

	keepAlive := p.KeepAlive
	if keepAlive <= 0 {
		keepAlive = defaultKeepAlive
	}
	opts.SetKeepAlive(keepAlive)

	opts.SetTLSConfig(tlsConfig)

	return opts
}
