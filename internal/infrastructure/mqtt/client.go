package mqtt

import (
	"context"
	"fmt"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

// Client is one live broker connection created by Dialer.Dial.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Client struct {
	client         pahomqtt.Client
	publishTimeout time.Duration
	logger         Logger

	lost     chan struct{}
	lostOnce sync.Once
	lostErr  error
	errMu    sync.RWMutex

	closeOnce sync.Once
}

// MessageHandler is the callback signature for received messages.
//
// Handlers run one at a time in arrival order and should not block.
type MessageHandler func(topic string, payload []byte) error

func newClient(publishTimeout time.Duration, logger Logger) *Client {
	if publishTimeout <= 0 {
		publishTimeout = defaultPublishTimeout
	}
	return &Client{
		publishTimeout: publishTimeout,
		logger:         logger,
		lost:           make(chan struct{}),
	}
}

// Lost returns a channel that is closed once the connection is gone,
// whether dropped by the broker or closed locally.
func (c *Client) Lost() <-chan struct{} {
	return c.lost
}

// Err returns why the connection was lost, or nil while it is up.
func (c *Client) Err() error {
	c.errMu.RLock()
	defer c.errMu.RUnlock()
	return c.lostErr
}

func (c *Client) markLost(err error) {
	c.lostOnce.Do(func() {
		c.errMu.Lock()
		if err == nil {
			c.lostErr = ErrConnectionLost
		} else {
			c.lostErr = fmt.Errorf("%w: %w", ErrConnectionLost, err)
		}
		c.errMu.Unlock()
		close(c.lost)
	})
}

// IsConnected returns the current connection state.
func (c *Client) IsConnected() bool {
	select {
	case <-c.lost:
		return false
	default:
	}
	return c.client != nil && c.client.IsConnected()
}

// Close disconnects from the broker. It is safe to call more than once.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		if c.client != nil {
			c.client.Disconnect(defaultDisconnectQuiesce)
		}
		c.markLost(nil)
	})
	return nil
}

// HealthCheck verifies the connection is alive.
func (c *Client) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("mqtt health check: %w", ctx.Err())
	default:
	}

	if !c.IsConnected() {
		return ErrNotConnected
	}

	return nil
}

// wrapHandler wraps a MessageHandler with panic recovery and optional logging.
func (c *Client) wrapHandler(handler MessageHandler) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		defer func() {
			if r := recover(); r != nil {
				if c.logger != nil {
					c.logger.Error("MQTT handler panic recovered",
						"topic", msg.Topic(),
						"panic", r,
					)
				}
			}
		}()

		if err := handler(msg.Topic(), msg.Payload()); err != nil {
			if c.logger != nil {
				c.logger.Warn("MQTT handler returned error",
					"topic", msg.Topic(),
					"error", err,
				)
			}
		}
	}
}
