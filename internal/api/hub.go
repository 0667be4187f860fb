package api

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/chuango-bridge/internal/infrastructure/config"
	"github.com/nerrad567/chuango-bridge/internal/infrastructure/logging"
)

const (
	defaultPingInterval = 30 * time.Second
	defaultPongTimeout  = 10 * time.Second

	// clientQueueSize bounds the events queued for one slow client.
	clientQueueSize = 64
)

// Hub tracks WebSocket clients and fans events out to them.
type Hub struct {
	logger       *logging.Logger
	readLimit    int64
	pingInterval time.Duration
	pongTimeout  time.Duration

	mu      sync.RWMutex
	clients map[*wsClient]struct{}
}

// NewHub creates a hub with timing taken from cfg.
func NewHub(cfg config.WebSocketConfig, logger *logging.Logger) *Hub {
	h := &Hub{
		logger:       logger,
		readLimit:    int64(cfg.MaxMessageSize),
		pingInterval: time.Duration(cfg.PingInterval) * time.Second,
		pongTimeout:  time.Duration(cfg.PongTimeout) * time.Second,
		clients:      make(map[*wsClient]struct{}),
	}
	if h.pingInterval <= 0 {
		h.pingInterval = defaultPingInterval
	}
	if h.pongTimeout <= 0 {
		h.pongTimeout = defaultPongTimeout
	}
	return h
}

// Run blocks until ctx ends, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()

	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[*wsClient]struct{})
	h.mu.Unlock()

	for c := range clients {
		close(c.queue)
		c.conn.Close()
	}
}

// Broadcast queues an event for every client subscribed to channel.
// It never blocks; a client with a full queue misses the event.
func (h *Hub) Broadcast(channel string, payload any) {
	data, err := encodeEvent(channel, payload)
	if err != nil {
		h.logger.Error("failed to marshal broadcast message", "channel", channel, "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if c.subscribed(channel) {
			c.enqueue(data)
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// attach starts serving conn. initial is queued before any broadcast.
func (h *Hub) attach(conn *websocket.Conn, subject string, initial []byte) {
	c := &wsClient{
		hub:      h,
		conn:     conn,
		subject:  subject,
		queue:    make(chan []byte, clientQueueSize),
		channels: map[string]bool{ChannelSnapshot: true},
	}
	if initial != nil {
		c.queue <- initial
	}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("websocket client connected", "subject", subject, "clients", n)

	go c.writeLoop()
	go c.readLoop()
}

// detach removes c. Only the call that finds c closes its queue, so the
// queue is closed exactly once even when Run races with a disconnect.
func (h *Hub) detach(c *wsClient) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	n := len(h.clients)
	h.mu.Unlock()

	if ok {
		close(c.queue)
		h.logger.Debug("websocket client disconnected", "subject", c.subject, "clients", n)
	}
}

// wsClient is one connected WebSocket peer.
type wsClient struct {
	hub     *Hub
	conn    *websocket.Conn
	subject string
	queue   chan []byte

	mu       sync.RWMutex
	channels map[string]bool
}

func (c *wsClient) subscribed(channel string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.channels[channel]
}

func (c *wsClient) setChannels(channels []string, on bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ch := range channels {
		if on {
			c.channels[ch] = true
		} else {
			delete(c.channels, ch)
		}
	}
}

// enqueue drops data when the queue is full or already closed.
func (c *wsClient) enqueue(data []byte) {
	defer func() {
		recover() //nolint:errcheck // send on a queue closed by detach
	}()
	select {
	case c.queue <- data:
	default:
	}
}

func (c *wsClient) extendReadDeadline() {
	//nolint:errcheck // a failed deadline surfaces as a read error
	c.conn.SetReadDeadline(time.Now().Add(c.hub.pingInterval + c.hub.pongTimeout))
}

// readLoop handles inbound messages until the peer goes away.
func (c *wsClient) readLoop() {
	defer func() {
		c.hub.detach(c)
		c.conn.Close()
	}()

	if c.hub.readLimit > 0 {
		c.conn.SetReadLimit(c.hub.readLimit)
	}
	c.extendReadDeadline()
	c.conn.SetPongHandler(func(string) error {
		c.extendReadDeadline()
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("websocket read error", "subject", c.subject, "error", err)
			}
			return
		}
		c.extendReadDeadline()
		if reply := c.handle(data); reply != nil {
			c.enqueue(reply)
		}
	}
}

// writeLoop drains the queue and keeps the connection alive with pings.
func (c *wsClient) writeLoop() {
	ticker := time.NewTicker(c.hub.pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	write := func(kind int, data []byte) error {
		//nolint:errcheck // a failed deadline surfaces as a write error
		c.conn.SetWriteDeadline(time.Now().Add(c.hub.pongTimeout))
		return c.conn.WriteMessage(kind, data)
	}

	for {
		select {
		case data, ok := <-c.queue:
			if !ok {
				write(websocket.CloseMessage, nil) //nolint:errcheck // closing anyway
				return
			}
			if err := write(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			if err := write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
