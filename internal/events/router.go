// Sonar - self-hosted music library server
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sonarhost/sonar

package events

import (
	"context"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"

	"github.com/sonarhost/sonar/internal/logging"
)

// Handler processes one Event. Returning an error triggers the router's
// retry middleware; a handler that still fails after retries is logged
// and the message is dropped (spec: search-sync and worker wakes are
// best-effort side effects of a catalog write, never a reason to fail
// the write itself).
type Handler func(ctx context.Context, ev Event) error

// Router dispatches Events published on Bus to registered Handlers,
// matching suture.Service so it can be supervised alongside the other
// background workers.
type Router struct {
	bus    *Bus
	router *message.Router
}

// NewRouter constructs a Router over bus with panic recovery and
// bounded retry middleware, mirroring the teacher's Watermill router
// setup.
func NewRouter(bus *Bus) (*Router, error) {
	wmRouter, err := message.NewRouter(message.RouterConfig{}, bus.logger)
	if err != nil {
		return nil, err
	}
	// Added first, so it wraps the recoverer and retry middleware: an error
	// that survives the retries is logged and the message acked, which
	// drops it instead of leaving it nacked for redelivery.
	wmRouter.AddMiddleware(func(h message.HandlerFunc) message.HandlerFunc {
		return func(msg *message.Message) ([]*message.Message, error) {
			produced, err := h(msg)
			if err != nil {
				logging.CtxErr(msg.Context(), err).Str("message_uuid", msg.UUID).Msg("event handler failed after retries; dropping message")
				return nil, nil
			}
			return produced, nil
		}
	})
	wmRouter.AddMiddleware(middleware.Recoverer)
	wmRouter.AddMiddleware(middleware.Retry{
		MaxRetries:      3,
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     time.Second,
		Multiplier:      2,
	}.Middleware)

	return &Router{bus: bus, router: wmRouter}, nil
}

// AddHandler subscribes handler to every Event of kind, name identifying
// it for logging.
func (r *Router) AddHandler(name string, kind Kind, handler Handler) {
	r.router.AddConsumerHandler(name, "catalog."+string(kind), r.bus.subscriber(), func(msg *message.Message) error {
		ev, err := unmarshalEvent(msg.Payload)
		if err != nil {
			logging.CtxErr(msg.Context(), err).Str("handler", name).Msg("decode event")
			return nil
		}
		return handler(msg.Context(), ev)
	})
}

// Serve runs the router until ctx is cancelled.
func (r *Router) Serve(ctx context.Context) error {
	return r.router.Run(ctx)
}
