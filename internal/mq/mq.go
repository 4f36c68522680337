// Package mq carries background work, such as outbound mail, over a broker.
package mq

import (
	"context"
	"errors"
	"fmt"

	"github.com/moneytrail/apiserver/config"
	"github.com/moneytrail/apiserver/internal/log"
)

// ErrDisabled is returned by Open when no broker is configured.
var ErrDisabled = errors.New("message queue disabled")

// Message represents a broker-agnostic payload delivered to subscribers.
type Message struct {
	ID         string
	Data       []byte
	Attributes map[string]string
	Attempt    int
}

// Handler processes a message. Return an error to have it redelivered.
type Handler func(ctx context.Context, msg Message) error

// Backend defines the broker-agnostic operations used by the app.
type Backend interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
	Subscribe(ctx context.Context, channel string, handler Handler) error
	Close() error
}

// MQ wraps a backend with logging.
type MQ struct {
	backend Backend
	logger  *log.Logger
}

// New constructs an MQ wrapper for the provided backend.
func New(backend Backend, logger *log.Logger) *MQ {
	return &MQ{backend: backend, logger: logger.WithComponent(log.ComponentMQ)}
}

// Open connects to the broker selected by cfg.Backend.
func Open(ctx context.Context, cfg config.MQConfig, logger *log.Logger) (*MQ, error) {
	var (
		backend Backend
		err     error
	)
	switch cfg.Backend {
	case config.MQBackendRabbitMQ:
		backend, err = NewRabbitMQClient(cfg.RabbitMQ)
	case config.MQBackendPubSub:
		backend, err = NewPubSubClient(ctx, cfg.PubSub)
	case config.MQBackendNone, "":
		return nil, ErrDisabled
	default:
		return nil, fmt.Errorf("unknown mq backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", cfg.Backend, err)
	}
	return New(backend, logger), nil
}

// Publish sends a message to the named channel.
func (m *MQ) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	id, err := m.backend.Publish(ctx, channel, data, attrs)
	if err != nil {
		m.logger.ErrorContext(ctx, "publish failed", "channel", channel, log.FieldError, err)
		return "", err
	}
	m.logger.DebugContext(ctx, "message published", "channel", channel, "message_id", id)
	return id, nil
}

// Subscribe consumes messages from the named channel until ctx is done.
func (m *MQ) Subscribe(ctx context.Context, channel string, handler Handler) error {
	m.logger.Info("subscribing", "channel", channel)
	return m.backend.Subscribe(ctx, channel, func(ctx context.Context, msg Message) error {
		if err := handler(ctx, msg); err != nil {
			m.logger.WarnContext(ctx, "message handler failed",
				"channel", channel,
				"message_id", msg.ID,
				"attempt", msg.Attempt,
				log.FieldError, err,
			)
			return err
		}
		return nil
	})
}

// Close closes the underlying backend.
func (m *MQ) Close() error {
	return m.backend.Close()
}
