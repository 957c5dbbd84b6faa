// Sonar - self-hosted music library server
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sonarhost/sonar

// Package events implements the CRUD fan-out bus: after any
// artist/album/track/playlist create/update/delete, the catalog
// publishes an Event; registered handlers consume it to keep the search
// index in sync (internal/search) and to push change notifications to
// websocket clients (internal/rpc). The default Bus is an in-process
// Watermill GoChannel built by NewBus; building with the "nats" tag
// swaps in a JetStream-backed Bus for durable, multi-process delivery,
// built instead by NewNATSBus(NATSConfig), which also returns an error.
// Publish and the Router surface are the same in both builds.
package events
