package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"dexanalytics/internal/config"
	"dexanalytics/internal/pubsub"

	"github.com/nats-io/nats.go"
	"gitlab.com/nevasik7/alerting/logger"
)

var _ pubsub.Broadcaster = (*Client)(nil)

var ErrNotConnected = errors.New("nats connection not ready")

type Client struct {
	nc  *nats.Conn
	log logger.Logger
}

func New(log logger.Logger, cfg *config.NATSConfig) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("nats config is required")
	}

	url := cfg.URL
	if url == "" {
		return nil, errors.New("nats url is required")
	}

	opts := []nats.Option{
		nats.Name("clmm-indexer"),
		nats.Timeout(5 * time.Second),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1), // endless reconnected
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warnf("NATS disconnected, error=%v", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Infof("NATS reconnected, url=%s", nc.ConnectedUrl())
		}),
		nats.ErrorHandler(func(_ *nats.Conn, sub *nats.Subscription, err error) {
			logAsyncError(log, sub, err)
		}),
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	log.Infof("Connected to NATS successfully, url=%s", url)

	return &Client{
		nc:  nc,
		log: log,
	}, nil
}

// logAsyncError reports errors the server or client raise outside a call.
// A slow consumer means the subscriber buffer overflowed and events were lost.
func logAsyncError(log logger.Logger, sub *nats.Subscription, err error) {
	subject := "-"
	if sub != nil {
		subject = sub.Subject
	}

	if errors.Is(err, nats.ErrSlowConsumer) {
		dropped := -1
		if sub != nil {
			if n, dErr := sub.Dropped(); dErr == nil {
				dropped = n
			}
		}
		log.Errorf("NATS slow consumer on %s, events dropped=%d, raise ingest.buffer", subject, dropped)
		return
	}

	log.Errorf("NATS async error on %s, error=%v", subject, err)
}

// Publish sends data as JSON; []byte is sent as is
func (c *Client) Publish(_ context.Context, subject string, data interface{}) error {
	if !c.Ready() {
		return ErrNotConnected
	}

	var payload []byte
	switch v := data.(type) {
	case []byte:
		payload = v
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("encode message for %s: %w", subject, err)
		}
		payload = b
	}

	if err := c.nc.Publish(subject, payload); err != nil {
		return fmt.Errorf("publish to %s: %w", subject, err)
	}
	return nil
}

func (c *Client) Health(_ context.Context) error {
	if !c.Ready() {
		return ErrNotConnected
	}
	return nil
}

func (c *Client) Ready() bool {
	if c.nc == nil {
		return false
	}
	return c.nc.Status() == nats.CONNECTED
}

func (c *Client) Status() nats.Status {
	if c.nc == nil {
		return nats.DISCONNECTED
	}
	return c.nc.Status()
}

func (c *Client) Close() error {
	if c.nc == nil {
		return nil
	}

	// check not close this conn
	if c.nc.Status() == nats.CLOSED {
		return nil
	}

	if err := c.nc.Drain(); err != nil {
		c.log.Errorf("Failed to drain connection to NATS, error=%v", err)
		c.nc.Close()
		return fmt.Errorf("failed to drain connection to NATS: %w", err)
	}

	c.nc.Close()
	c.log.Infof("NATS connection closed gracefully")
	return nil
}
