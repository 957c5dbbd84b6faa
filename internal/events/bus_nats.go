// Sonar - self-hosted music library server
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sonarhost/sonar

//go:build nats

package events

import (
	"context"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	natsgo "github.com/nats-io/nats.go"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/sonarhost/sonar/internal/sonarerr"
)

// NATSConfig configures the durable, JetStream-backed Bus.
type NATSConfig struct {
	URL           string
	MaxReconnects int
}

// Bus is the CRUD fan-out transport, backed here by NATS JetStream for
// durable, multi-process delivery. A circuit breaker guards Publish so a
// NATS outage degrades to publish errors instead of blocking catalog
// writers indefinitely (mirrors the teacher's resilient publisher
// wrapper, trimmed to the one knob Sonar needs).
type Bus struct {
	pub    message.Publisher
	sub    message.Subscriber
	cb     *gobreaker.CircuitBreaker[any]
	logger watermill.LoggerAdapter
}

// NewNATSBus dials url and constructs a durable Bus.
func NewNATSBus(cfg NATSConfig) (*Bus, error) {
	logger := watermill.NewStdLogger(false, false)

	natsOpts := []natsgo.Option{
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(cfg.MaxReconnects),
	}

	pub, err := wmNats.NewPublisher(wmNats.PublisherConfig{
		URL:         cfg.URL,
		NatsOptions: natsOpts,
		Marshaler:   &wmNats.NATSMarshaler{},
		JetStream:   wmNats.JetStreamConfig{Disabled: false, AutoProvision: true},
	}, logger)
	if err != nil {
		return nil, sonarerr.WrapInternal(err, "create nats publisher")
	}

	sub, err := wmNats.NewSubscriber(wmNats.SubscriberConfig{
		URL:         cfg.URL,
		NatsOptions: natsOpts,
		Unmarshaler: &wmNats.NATSMarshaler{},
		JetStream:   wmNats.JetStreamConfig{Disabled: false, AutoProvision: true},
	}, logger)
	if err != nil {
		return nil, sonarerr.WrapInternal(err, "create nats subscriber")
	}

	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{Name: "events-bus"})

	return &Bus{pub: pub, sub: sub, cb: cb, logger: logger}, nil
}

func (b *Bus) Publish(ctx context.Context, ev Event) error {
	data, err := marshalEvent(ev)
	if err != nil {
		return err
	}
	msg := message.NewMessage(watermill.NewUUID(), data)
	_, err = b.cb.Execute(func() (any, error) {
		return nil, b.pub.Publish(ev.Topic(), msg)
	})
	return err
}

func (b *Bus) publisher() message.Publisher   { return b.pub }
func (b *Bus) subscriber() message.Subscriber { return b.sub }

// Close releases the Bus's connections.
func (b *Bus) Close() error {
	if err := b.pub.Close(); err != nil {
		return err
	}
	return b.sub.Close()
}
