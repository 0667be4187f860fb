package mqtt

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/chuango-bridge/internal/infrastructure/config"
)

// Logger interface for optional logging support.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
}

// Dialer opens broker connections that share one TLS configuration.
//
// Thread Safety:
//   - Dial is safe for concurrent use; every device session dials through
//     the same Dialer.
type Dialer struct {
	keepAlive      time.Duration
	connectTimeout time.Duration
	publishTimeout time.Duration

	tlsOnce   sync.Once
	tlsConfig *tls.Config
	tlsErr    error

	// newClient is replaced in tests.
	newClient func(*pahomqtt.ClientOptions) pahomqtt.Client

	logger   Logger
	loggerMu sync.RWMutex
}

// NewDialer creates a Dialer from the shared MQTT settings.
func NewDialer(cfg config.MQTTConfig) *Dialer {
	return &Dialer{
		keepAlive:      time.Duration(cfg.KeepAlive) * time.Second,
		connectTimeout: time.Duration(cfg.ConnectTimeout) * time.Second,
		publishTimeout: time.Duration(cfg.PublishTimeout) * time.Second,
		newClient:      pahomqtt.NewClient,
	}
}

// SetLogger sets a logger for handler errors and panics.
func (d *Dialer) SetLogger(logger Logger) {
	d.loggerMu.Lock()
	d.logger = logger
	d.loggerMu.Unlock()
}

func (d *Dialer) getLogger() Logger {
	d.loggerMu.RLock()
	defer d.loggerMu.RUnlock()
	return d.logger
}

// TLSConfig returns the shared client TLS configuration, loading the
// system certificate pool on first use.
func (d *Dialer) TLSConfig() (*tls.Config, error) {
	d.tlsOnce.Do(func() {
		pool, err := x509.SystemCertPool()
		if err != nil {
			d.tlsErr = fmt.Errorf("loading system cert pool: %w", err)
			return
		}
		d.tlsConfig = &tls.Config{
			MinVersion: tlsMinVersion,
			RootCAs:    pool,
		}
	})
	return d.tlsConfig, d.tlsErr
}

// Dial connects to the broker described by p.
//
// The returned Client reports connection loss through Lost. It never
// reconnects on its own.
func (d *Dialer) Dial(ctx context.Context, p Params) (*Client, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if p.KeepAlive == 0 {
		p.KeepAlive = d.keepAlive
	}
	if p.ConnectTimeout == 0 {
		p.ConnectTimeout = d.connectTimeout
	}

	tlsConfig, err := d.TLSConfig()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	c := newClient(d.publishTimeout, d.getLogger())

	opts := buildClientOptions(p, tlsConfig)
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		c.markLost(err)
	})

	c.client = d.newClient(opts)

	token := c.client.Connect()
	if err := waitToken(ctx, token, opts.ConnectTimeout); err != nil {
		c.client.Disconnect(0)
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	return c, nil
}

// waitToken waits for a paho token while honouring ctx.
func waitToken(ctx context.Context, token pahomqtt.Token, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = defaultConnectTimeout
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-token.Done():
		return token.Error()
	case <-timer.C:
		return fmt.Errorf("timeout after %v", timeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}
