// Package channel provides an in-memory Go channel manager backend.
// This backend is useful for testing and single-process setups.
package channel

import (
	"context"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/sockwire/sockwire/manager"
)

// BackendName is the name used to register this backend.
const BackendName = "channel"

// Factory allows overriding the channel creation for testing.
var Factory = func(cfg gochannel.Config, logger watermill.LoggerAdapter) (message.Publisher, message.Subscriber) {
	pubSub := gochannel.NewGoChannel(cfg, logger)
	return pubSub, pubSub
}

func init() {
	manager.Register(BackendName, Build)
}

// Build creates a new Go channel bus.
func Build(ctx context.Context, cfg manager.Config, logger watermill.LoggerAdapter) (manager.Bus, error) {
	pub, sub := Factory(gochannel.Config{}, logger)
	return manager.Bus{
		Publisher:  pub,
		Subscriber: sub,
	}, nil
}
