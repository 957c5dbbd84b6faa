// Sonar - self-hosted music library server
// SPDX-License-Identifier: AGPL-3.0-or-later

package rpc

import (
	"net/http"
	"time"

	"github.com/sonarhost/sonar/internal/catalog"
)

func (s *Server) handleScrobbleList(w http.ResponseWriter, r *http.Request) {
	re := newResponder(w, r)
	scrobbles, err := s.scrobbles.ListByUser(r.Context(), authUser(r).ID)
	if err != nil {
		re.fail(err)
		return
	}
	re.ok(scrobbles)
}

func (s *Server) handleScrobbleCreate(w http.ResponseWriter, r *http.Request) {
	re := newResponder(w, r)
	trackID, err := queryID(r, "track_id")
	if err != nil {
		re.fail(err)
		return
	}
	var body struct {
		ListenedAt       time.Time `json:"listened_at"`
		ListenDurationMS int64     `json:"listen_duration_ms"`
		ClientName       *string   `json:"client_name"`
	}
	if err := decodeJSON(r, &body); err != nil {
		re.fail(err)
		return
	}
	scrobble, err := s.scrobbles.Create(r.Context(), catalog.ScrobbleCreate{
		UserID:           authUser(r).ID,
		TrackID:          trackID,
		ListenedAt:       body.ListenedAt,
		ListenDurationMS: body.ListenDurationMS,
		ClientName:       body.ClientName,
	})
	if err != nil {
		re.fail(err)
		return
	}
	for _, worker := range s.scrobblerWorkers {
		worker.Wake()
	}
	re.created(scrobble)
}

func (s *Server) handleScrobbleDelete(w http.ResponseWriter, r *http.Request) {
	re := newResponder(w, r)
	id, err := pathScrobbleID(r)
	if err != nil {
		re.fail(err)
		return
	}
	if err := s.scrobbles.Delete(r.Context(), id); err != nil {
		re.fail(err)
		return
	}
	re.noContent()
}
