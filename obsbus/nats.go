package obsbus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/kandev/hsm/internal/hsmconfig"
	"github.com/kandev/hsm/internal/hsmlog"
)

// NATSBus implements Bus over a NATS connection, so interpreter updates can
// be observed from another process or another machine entirely.
type NATSBus struct {
	conn   *nats.Conn
	logger *hsmlog.Logger
	config hsmconfig.BusConfig
}

// NewNATSBus dials NATS with the reconnect/backoff behavior an hsmctl host
// expects from a long-lived observer connection.
func NewNATSBus(cfg hsmconfig.BusConfig, log *hsmlog.Logger) (*NATSBus, error) {
	if log == nil {
		log = hsmlog.Default()
	}
	bus := &NATSBus{
		logger: log,
		config: cfg,
	}

	opts := []nats.Option{
		nats.Name(cfg.ClientID),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(2 * time.Second),
		nats.ReconnectBufSize(5 * 1024 * 1024), // 5MB buffer during reconnect

		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				log.Warn("nats disconnected", zap.Error(err))
			} else {
				log.Info("nats disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("nats reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			if err := nc.LastError(); err != nil {
				log.Error("nats connection closed", zap.Error(err))
			} else {
				log.Info("nats connection closed")
			}
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			subject := ""
			if sub != nil {
				subject = sub.Subject
			}
			log.Error("nats error", zap.Error(err), zap.String("subject", subject))
		}),
	}

	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("obsbus: connect to nats: %w", err)
	}

	bus.conn = conn
	log.Info("connected to nats", zap.String("url", cfg.URL))

	return bus, nil
}

// Publish sends an update to a subject.
func (b *NATSBus) Publish(ctx context.Context, subject string, update *Update) error {
	data, err := json.Marshal(update)
	if err != nil {
		return fmt.Errorf("obsbus: marshal update: %w", err)
	}

	if err := b.conn.Publish(subject, data); err != nil {
		b.logger.Error("publish update failed",
			zap.String("subject", subject),
			zap.String("service_id", update.ServiceID),
			zap.Error(err))
		return fmt.Errorf("obsbus: publish update: %w", err)
	}

	b.logger.Debug("published update",
		zap.String("subject", subject),
		zap.String("update_id", update.ID),
		zap.String("service_id", update.ServiceID))

	return nil
}

// Subscribe creates a subscription to a subject pattern.
func (b *NATSBus) Subscribe(subject string, handler Handler) (Subscription, error) {
	sub, err := b.conn.Subscribe(subject, b.msgHandler(handler))
	if err != nil {
		return nil, fmt.Errorf("obsbus: subscribe to %s: %w", subject, err)
	}

	b.logger.Debug("subscribed to subject", zap.String("subject", subject))
	return &natsSubscription{sub: sub}, nil
}

// msgHandler adapts a Handler into a nats.MsgHandler.
func (b *NATSBus) msgHandler(handler Handler) nats.MsgHandler {
	return func(msg *nats.Msg) {
		var update Update
		if err := json.Unmarshal(msg.Data, &update); err != nil {
			b.logger.Error("unmarshal update failed",
				zap.String("subject", msg.Subject),
				zap.Error(err))
			return
		}

		if err := handler(context.Background(), &update); err != nil {
			b.logger.Error("update handler failed",
				zap.String("subject", msg.Subject),
				zap.String("update_id", update.ID),
				zap.Error(err))
		}
	}
}

// Close drains pending messages and closes the NATS connection.
func (b *NATSBus) Close() {
	if b.conn != nil {
		if err := b.conn.Drain(); err != nil {
			b.logger.Warn("error draining nats connection", zap.Error(err))
			b.conn.Close()
		}
		b.logger.Info("nats connection closed")
	}
}

// IsConnected reports whether the NATS connection is active.
func (b *NATSBus) IsConnected() bool {
	if b.conn == nil {
		return false
	}
	return b.conn.IsConnected()
}
