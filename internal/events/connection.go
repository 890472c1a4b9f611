package events

import (
	"fmt"
	"time"

	"github.com/Bernard-Murphy/dbay-public/internal/platform/logger"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// ConnOptions tunes the NATS connection. Zero values take the defaults below.
type ConnOptions struct {
	Name          string
	DialTimeout   time.Duration
	MaxReconnects int
	ReconnectWait time.Duration
}

func (o ConnOptions) withDefaults() ConnOptions {
	if o.Name == "" {
		o.Name = "dbay-web activity publisher"
	}
	if o.DialTimeout <= 0 {
		o.DialTimeout = 5 * time.Second
	}
	if o.MaxReconnects == 0 {
		o.MaxReconnects = 5
	}
	if o.ReconnectWait <= 0 {
		o.ReconnectWait = 2 * time.Second
	}
	return o
}

// NewConnection dials the activity event bus. Connection state changes are
// logged under the "events" logger.
func NewConnection(url string, opts ConnOptions, log *logger.Logger) (*nats.Conn, error) {
	opts = opts.withDefaults()
	log = log.Named("events")

	nc, err := nats.Connect(url,
		nats.Name(opts.Name),
		nats.Timeout(opts.DialTimeout),
		nats.MaxReconnects(opts.MaxReconnects),
		nats.ReconnectWait(opts.ReconnectWait),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn("Lost connection to event bus", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Info("Reconnected to event bus", zap.String("server", c.ConnectedUrl()))
		}),
		nats.ClosedHandler(func(*nats.Conn) {
			log.Info("Event bus connection closed")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("events: connect %s: %w", url, err)
	}
	log.Info("Connected to event bus", zap.String("server", nc.ConnectedUrl()))
	return nc, nil
}
