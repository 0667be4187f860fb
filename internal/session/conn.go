package session

import (
	"context"

	"github.com/nerrad567/chuango-bridge/internal/infrastructure/mqtt"
)

// Conn is one live broker connection.
type Conn interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Lost() <-chan struct{}
	Err() error
	Close() error
}

// DialFunc opens a broker connection.
type DialFunc func(ctx context.Context, p mqtt.Params) (Conn, error)

// DialWith adapts an mqtt.Dialer to a DialFunc.
func DialWith(d *mqtt.Dialer) DialFunc {
	return func(ctx context.Context, p mqtt.Params) (Conn, error) {
		c, err := d.Dial(ctx, p)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
}
