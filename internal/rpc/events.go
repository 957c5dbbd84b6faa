// Sonar - self-hosted music library server
// SPDX-License-Identifier: AGPL-3.0-or-later

package rpc

import (
	"context"

	"github.com/sonarhost/sonar/internal/events"
	"github.com/sonarhost/sonar/internal/ids"
	"github.com/sonarhost/sonar/internal/logging"
)

var idKindToEventKind = map[ids.Kind]events.Kind{
	ids.KindArtist:   events.KindArtist,
	ids.KindAlbum:    events.KindAlbum,
	ids.KindTrack:    events.KindTrack,
	ids.KindPlaylist: events.KindPlaylist,
}

// publish emits a catalog change event for id, best-effort: a dropped event
// means a stale search document or a missed client notification, never a
// failed catalog write, so the error is logged and swallowed.
// internal/events.Router is where the search-sync and websocket-notify
// handlers this feeds are
// registered (cmd/sonar-server wiring), per the internal/events DESIGN.md
// entry.
func (s *Server) publish(ctx context.Context, op events.Operation, id ids.ID) {
	kind, ok := idKindToEventKind[id.Kind()]
	if !ok {
		return
	}
	if err := s.bus.Publish(ctx, events.Event{Kind: kind, Operation: op, ID: id.Uint32()}); err != nil {
		logging.CtxErr(ctx, err).Str("id", id.String()).Msg("publish catalog event")
	}
}
