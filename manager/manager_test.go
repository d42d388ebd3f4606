package manager

import (
	"context"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockConfig struct {
	system string
	topic  string
}

func (m *mockConfig) GetManagerSystem() string      { return m.system }
func (m *mockConfig) GetManagerTopic() string       { return m.topic }
func (m *mockConfig) GetKafkaBrokers() []string     { return nil }
func (m *mockConfig) GetKafkaConsumerGroup() string { return "" }
func (m *mockConfig) GetRabbitMQURL() string        { return "" }
func (m *mockConfig) GetNATSURL() string            { return "" }

func newTestBus(t *testing.T) Bus {
	t.Helper()
	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	t.Cleanup(func() { _ = pubSub.Close() })
	return Bus{Publisher: pubSub, Subscriber: pubSub}
}

func TestEmitAndRunRoundtrip(t *testing.T) {
	bus := newTestBus(t)
	local := NewWithBus(bus, "events", nil)
	remote := NewWithBus(bus, "events", nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	received := make(chan Envelope, 1)
	go func() {
		_ = local.Run(ctx, func(ctx context.Context, env Envelope) error {
			received <- env
			return nil
		})
	}()

	// Let the subscription attach before publishing.
	time.Sleep(50 * time.Millisecond)

	err := remote.Emit(ctx, Envelope{
		Event:     "broadcast",
		SocketID:  "sid-1",
		Namespace: "/",
		Data:      map[string]any{"text": "hi"},
	})
	require.NoError(t, err)

	select {
	case env := <-received:
		assert.Equal(t, "broadcast", env.Event)
		assert.Equal(t, "sid-1", env.SocketID)
		assert.Equal(t, remote.OriginID(), env.OriginID)
	case <-ctx.Done():
		t.Fatal("timed out waiting for envelope")
	}
}

func TestRunSkipsOwnEnvelopes(t *testing.T) {
	bus := newTestBus(t)
	mgr := NewWithBus(bus, "events", nil)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	received := make(chan Envelope, 1)
	go func() {
		_ = mgr.Run(ctx, func(ctx context.Context, env Envelope) error {
			received <- env
			return nil
		})
	}()

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, mgr.Emit(ctx, Envelope{Event: "self"}))

	select {
	case env := <-received:
		t.Fatalf("own envelope must be skipped, got %+v", env)
	case <-ctx.Done():
	}
}

func TestRunAcksMalformedEnvelopes(t *testing.T) {
	bus := newTestBus(t)
	mgr := NewWithBus(bus, "events", nil)
	other := NewWithBus(bus, "events", nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	received := make(chan Envelope, 1)
	go func() {
		_ = mgr.Run(ctx, func(ctx context.Context, env Envelope) error {
			received <- env
			return nil
		})
	}()

	time.Sleep(50 * time.Millisecond)

	// Malformed payloads are dropped without stopping the loop.
	err := bus.Publisher.Publish("events", message.NewMessage("bad", []byte("{not json")))
	require.NoError(t, err)

	require.NoError(t, other.Emit(ctx, Envelope{Event: "good"}))

	select {
	case env := <-received:
		assert.Equal(t, "good", env.Event)
	case <-ctx.Done():
		t.Fatal("timed out waiting for the valid envelope")
	}
}

func TestEmitRequiresEvent(t *testing.T) {
	mgr := NewWithBus(newTestBus(t), "events", nil)
	err := mgr.Emit(context.Background(), Envelope{})
	require.Error(t, err)
}

func TestRunRequiresHandler(t *testing.T) {
	mgr := NewWithBus(newTestBus(t), "events", nil)
	err := mgr.Run(context.Background(), nil)
	require.Error(t, err)
}

func TestNewValidation(t *testing.T) {
	ctx := context.Background()

	t.Run("nil config", func(t *testing.T) {
		_, err := New(ctx, nil, nil)
		require.Error(t, err)
	})

	t.Run("missing topic", func(t *testing.T) {
		_, err := New(ctx, &mockConfig{system: "channel"}, nil)
		require.Error(t, err)
	})

	t.Run("unknown backend", func(t *testing.T) {
		_, err := New(ctx, &mockConfig{system: "carrier-pigeon", topic: "events"}, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown backend")
	})
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	assert.False(t, r.Has("custom"))

	r.Register("custom", func(ctx context.Context, cfg Config, logger watermill.LoggerAdapter) (Bus, error) {
		return Bus{}, nil
	})

	assert.True(t, r.Has("custom"))
	assert.Contains(t, r.Names(), "custom")

	_, err := r.Build(context.Background(), &mockConfig{system: "custom"}, watermill.NopLogger{})
	require.NoError(t, err)

	_, err = r.Build(context.Background(), &mockConfig{system: "missing"}, watermill.NopLogger{})
	require.Error(t, err)
}

func TestManagerClose(t *testing.T) {
	mgr := NewWithBus(newTestBus(t), "events", nil)
	require.NoError(t, mgr.Close())
	require.NoError(t, mgr.Close())
}
