package session

import "time"

// Diagnostics describes the session for troubleshooting. It never
// contains the broker password.
type Diagnostics struct {
	DeviceID        string    `json:"device_id"`
	State           string    `json:"state"`
	TLS             bool      `json:"tls"`
	Host            string    `json:"host,omitempty"`
	Port            int       `json:"port,omitempty"`
	Username        string    `json:"username,omitempty"`
	ClientID        string    `json:"client_id"`
	SubscribeTopic  string    `json:"subscribe_topic,omitempty"`
	PasswordPresent bool      `json:"password_present"`
	Attempts        int       `json:"attempts"`
	ConnectedAt     time.Time `json:"connected_at,omitempty"`
	LastError       string    `json:"last_error,omitempty"`
}

// Diagnostics returns the derived connection parameters and progress.
// Parameters are derived from the current metadata when no connection
// attempt has been made yet.
func (s *Session) Diagnostics() Diagnostics {
	s.mu.Lock()
	d := Diagnostics{
		DeviceID:    s.id,
		State:       s.state.String(),
		TLS:         true,
		ClientID:    s.clientID,
		Attempts:    s.attempts,
		ConnectedAt: s.connectedAt,
	}
	if s.lastErr != nil {
		d.LastError = s.lastErr.Error()
	}
	creds := s.creds
	s.mu.Unlock()

	if creds == nil {
		if dev, ok := s.source.Device(s.id); ok {
			if c, err := DeriveCredentials(dev, s.source.Profile(), s.clientID); err == nil {
				creds = &c
			} else {
				d.Host = dev.MQTTDomain
				d.Port = dev.MQTTPort
				d.PasswordPresent = dev.MQTTToken != ""
			}
		}
	}
	if creds != nil {
		d.Host = creds.Host
		d.Port = creds.Port
		d.Username = creds.Username
		d.SubscribeTopic = creds.Topic
		d.PasswordPresent = creds.Password != ""
	}
	return d
}
