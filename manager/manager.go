// Package manager bridges events between server instances over a
// message broker. Each backend (channel, kafka, rabbitmq, nats) lives
// in its own sub-package and registers itself with the manager
// registry.
package manager

import (
	"context"
	"fmt"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/sockwire/sockwire/internal/engine/ids"
	"github.com/sockwire/sockwire/internal/engine/jsoncodec"
	loggingpkg "github.com/sockwire/sockwire/internal/engine/logging"
)

// Metadata keys set on every envelope message.
const (
	MetadataKeyEvent  = "sockwire_event"
	MetadataKeyOrigin = "sockwire_origin"
)

// Envelope is the wire format for one event forwarded between
// instances.
type Envelope struct {
	// Event is the event name.
	Event string `json:"event"`
	// SocketID identifies the originating connection, if any.
	SocketID string `json:"sid,omitempty"`
	// Namespace the event belongs to.
	Namespace string `json:"namespace,omitempty"`
	// Data is the event payload.
	Data any `json:"data,omitempty"`
	// OriginID identifies the instance that published the envelope.
	// Set by Emit; consumers skip their own envelopes.
	OriginID string `json:"origin_id,omitempty"`
}

// Config provides the configuration values needed by manager backends.
// This interface allows backends to access only the config they need
// without depending on the full config package.
type Config interface {
	// GetManagerSystem returns the backend name.
	GetManagerSystem() string
	// GetManagerTopic returns the broker topic carrying envelopes.
	GetManagerTopic() string

	// Kafka
	GetKafkaBrokers() []string
	GetKafkaConsumerGroup() string

	// RabbitMQ
	GetRabbitMQURL() string

	// NATS
	GetNATSURL() string
}

// Bus combines a publisher and subscriber pair produced by a builder.
type Bus struct {
	Publisher  message.Publisher
	Subscriber message.Subscriber
}

// Builder is the function signature for creating a bus from config.
// Each backend package should provide a Builder function that can be
// registered.
type Builder func(ctx context.Context, cfg Config, logger watermill.LoggerAdapter) (Bus, error)

// Handler receives envelopes published by other instances.
type Handler func(ctx context.Context, env Envelope) error

// Manager publishes local events to the broker and feeds remote
// envelopes into a handler.
type Manager struct {
	bus      Bus
	topic    string
	originID string
	logger   loggingpkg.ServiceLogger

	closeOnce sync.Once
	closeErr  error
}

// New builds the bus for the configured backend and returns a Manager
// ready to Emit and Run.
func New(ctx context.Context, cfg Config, logger loggingpkg.ServiceLogger) (*Manager, error) {
	if cfg == nil {
		return nil, fmt.Errorf("manager: config is required")
	}
	if cfg.GetManagerTopic() == "" {
		return nil, fmt.Errorf("manager: topic is required")
	}
	if logger == nil {
		logger = loggingpkg.Nop()
	}

	bus, err := Build(ctx, cfg, loggingpkg.NewWatermillAdapter(logger))
	if err != nil {
		return nil, err
	}

	return &Manager{
		bus:      bus,
		topic:    cfg.GetManagerTopic(),
		originID: ids.NewConnectionID(),
		logger:   logger,
	}, nil
}

// NewWithBus wraps an existing bus, bypassing the registry. Useful in
// tests.
func NewWithBus(bus Bus, topic string, logger loggingpkg.ServiceLogger) *Manager {
	if logger == nil {
		logger = loggingpkg.Nop()
	}
	return &Manager{
		bus:      bus,
		topic:    topic,
		originID: ids.NewConnectionID(),
		logger:   logger,
	}
}

// OriginID returns the identifier this instance stamps on outgoing
// envelopes.
func (m *Manager) OriginID() string { return m.originID }

// Emit publishes the envelope for other instances to consume. The
// envelope's OriginID is overwritten with this instance's identifier.
func (m *Manager) Emit(ctx context.Context, env Envelope) error {
	if env.Event == "" {
		return fmt.Errorf("manager: envelope event is required")
	}
	env.OriginID = m.originID

	payload, err := jsoncodec.Marshal(env)
	if err != nil {
		return fmt.Errorf("manager: failed to marshal envelope: %w", err)
	}

	msg := message.NewMessage(ids.NewEnvelopeID(), payload)
	msg.Metadata.Set(MetadataKeyEvent, env.Event)
	msg.Metadata.Set(MetadataKeyOrigin, env.OriginID)
	if ctx != nil {
		msg.SetContext(ctx)
	}

	return m.bus.Publisher.Publish(m.topic, msg)
}

// Run subscribes to the envelope topic and calls handle for every
// envelope published by another instance. It blocks until ctx is
// cancelled or the subscription closes.
func (m *Manager) Run(ctx context.Context, handle Handler) error {
	if handle == nil {
		return fmt.Errorf("manager: handler is required")
	}

	messages, err := m.bus.Subscriber.Subscribe(ctx, m.topic)
	if err != nil {
		return fmt.Errorf("manager: failed to subscribe to %q: %w", m.topic, err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			m.consume(ctx, msg, handle)
		}
	}
}

func (m *Manager) consume(ctx context.Context, msg *message.Message, handle Handler) {
	var env Envelope
	if err := jsoncodec.Unmarshal(msg.Payload, &env); err != nil {
		m.logger.Error("Dropping malformed envelope", err, loggingpkg.LogFields{
			"message_uuid": msg.UUID,
			"topic":        m.topic,
		})
		msg.Ack()
		return
	}

	if env.OriginID == m.originID {
		msg.Ack()
		return
	}

	if err := handle(ctx, env); err != nil {
		m.logger.Error("Envelope handler failed", err, loggingpkg.LogFields{
			"message_uuid": msg.UUID,
			"event":        env.Event,
			"topic":        m.topic,
		})
		msg.Nack()
		return
	}
	msg.Ack()
}

// Close shuts down the publisher and subscriber. Safe to call more
// than once.
func (m *Manager) Close() error {
	m.closeOnce.Do(func() {
		var errs []error
		if m.bus.Publisher != nil {
			if err := m.bus.Publisher.Close(); err != nil {
				errs = append(errs, err)
			}
		}
		if m.bus.Subscriber != nil {
			if err := m.bus.Subscriber.Close(); err != nil {
				errs = append(errs, err)
			}
		}
		if len(errs) > 0 {
			m.closeErr = fmt.Errorf("manager: close failed: %v", errs)
		}
	})
	return m.closeErr
}
