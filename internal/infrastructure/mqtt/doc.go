// Package mqtt provides broker connectivity for device sessions.
//
// This package manages:
//   - TLS connections to the vendor broker, one per device
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Connection loss notification
//
// # Architecture
//
// Every alarm hub is reached through its own authenticated connection.
// A Dialer holds the shared TLS configuration and creates Clients; each
// Client is a single connection that never reconnects by itself. The
// session layer watches Lost and dials again with its own backoff.
//
//	session ─ Dial ─▶ Client ─ TLS ─▶ vendor broker
//
// # Security Considerations
//
//   - Connections always use TLS 1.2+ against the system trust store
//   - The password is the per-device MQTT token from the cloud
//
// # Usage
//
//	dialer := mqtt.NewDialer(cfg.MQTT)
//	client, err := dialer.Dial(ctx, mqtt.Params{
//	    Host: "mqtt.example.com", Port: 8883,
//	    ClientID: clientID, Username: user, Password: token,
//	})
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.Topics{}.DeviceOut(id, typeCode), 1, handle)
//	<-client.Lost()
package mqtt
