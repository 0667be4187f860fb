package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// WebSocket message types.
const (
	WSTypeSubscribe   = "subscribe"
	WSTypeUnsubscribe = "unsubscribe"
	WSTypePing        = "ping"
	WSTypePong        = "pong"
	WSTypeEvent       = "event"
	WSTypeResponse    = "response"
	WSTypeError       = "error"
)

// Event channels.
const (
	// ChannelSnapshot carries every new fused snapshot. Clients are
	// subscribed to it on connect.
	ChannelSnapshot = "snapshot"

	// ChannelStatus carries bridge status after each snapshot.
	ChannelStatus = "status"
)

// WSMessage is the envelope for every frame in either direction.
type WSMessage struct {
	Type      string `json:"type"`
	ID        string `json:"id,omitempty"`
	EventType string `json:"event_type,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   any    `json:"payload,omitempty"`
}

// WSSubscribePayload is the payload for subscribe/unsubscribe messages.
type WSSubscribePayload struct {
	Channels []string `json:"channels"`
}

// inbound mirrors WSMessage with the payload left undecoded.
type inbound struct {
	Type    string          `json:"type"`
	ID      string          `json:"id"`
	Payload json.RawMessage `json:"payload"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Clients authenticate with a bearer token, not cookies, so any
	// origin may connect.
	CheckOrigin: func(_ *http.Request) bool { return true },
}

// handleWebSocket upgrades the connection after checking the bearer token
// from the Authorization header or the token query parameter. The client
// immediately receives the current snapshot.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	raw := bearerToken(r)
	if raw == "" {
		raw = r.URL.Query().Get("token")
	}
	claims, ok := s.authenticate(w, r, raw)
	if !ok {
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	initial, err := encodeEvent(ChannelSnapshot, s.backend.Snapshot())
	if err != nil {
		s.logger.Error("failed to marshal initial snapshot", "error", err)
	}
	s.hub.attach(conn, claims.Subject, initial)
}

func encodeEvent(channel string, payload any) ([]byte, error) {
	return encode(WSMessage{Type: WSTypeEvent, EventType: channel, Payload: payload})
}

func encode(msg WSMessage) ([]byte, error) {
	msg.Timestamp = time.Now().UTC().Format(time.RFC3339)
	return json.Marshal(msg)
}

// handle processes one inbound frame and returns the reply, if any.
func (c *wsClient) handle(data []byte) []byte {
	var msg inbound
	if err := json.Unmarshal(data, &msg); err != nil {
		return replyError("", "invalid JSON message")
	}

	switch msg.Type {
	case WSTypePing:
		return reply(msg.ID, WSTypePong, nil)
	case WSTypeSubscribe, WSTypeUnsubscribe:
		var sub WSSubscribePayload
		if err := json.Unmarshal(msg.Payload, &sub); err != nil || len(sub.Channels) == 0 {
			return replyError(msg.ID, "payload must list channels")
		}
		for _, ch := range sub.Channels {
			if ch != ChannelSnapshot && ch != ChannelStatus {
				return replyError(msg.ID, "unknown channel: "+ch)
			}
		}
		on := msg.Type == WSTypeSubscribe
		c.setChannels(sub.Channels, on)
		key := "unsubscribed"
		if on {
			key = "subscribed"
		}
		return reply(msg.ID, WSTypeResponse, map[string]any{key: sub.Channels})
	default:
		return replyError(msg.ID, "unknown message type: "+msg.Type)
	}
}

func reply(id, msgType string, payload any) []byte {
	data, err := encode(WSMessage{Type: msgType, ID: id, Payload: payload})
	if err != nil {
		return nil
	}
	return data
}

func replyError(id, message string) []byte {
	return reply(id, WSTypeError, map[string]string{"message": message})
}
