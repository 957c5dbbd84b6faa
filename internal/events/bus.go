// Sonar - self-hosted music library server
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sonarhost/sonar

//go:build !nats

package events

import (
	"context"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// Bus is the CRUD fan-out transport. The default build is an in-process
// Watermill GoChannel pub/sub, adequate for a single-process deployment;
// the "nats" build tag swaps this file for a JetStream-backed Bus with
// the identical Publish/Subscriber surface.
type Bus struct {
	pubSub *gochannel.GoChannel
	logger watermill.LoggerAdapter
}

// NewBus constructs the default in-process Bus.
func NewBus() *Bus {
	logger := watermill.NewStdLogger(false, false)
	return &Bus{
		pubSub: gochannel.NewGoChannel(gochannel.Config{}, logger),
		logger: logger,
	}
}

// Publish emits ev on its Topic.
func (b *Bus) Publish(ctx context.Context, ev Event) error {
	data, err := marshalEvent(ev)
	if err != nil {
		return err
	}
	msg := message.NewMessage(watermill.NewUUID(), data)
	return b.pubSub.Publish(ev.Topic(), msg)
}

func (b *Bus) publisher() message.Publisher   { return b.pubSub }
func (b *Bus) subscriber() message.Subscriber { return b.pubSub }

// Close releases the Bus's resources.
func (b *Bus) Close() error {
	return b.pubSub.Close()
}
