// Sonar - self-hosted music library server
// SPDX-License-Identifier: AGPL-3.0-or-later

package rpc

import (
	"net/http"

	"github.com/sonarhost/sonar/internal/catalog"
	"github.com/sonarhost/sonar/internal/events"
)

func (s *Server) handleArtistList(w http.ResponseWriter, r *http.Request) {
	re := newResponder(w, r)
	artists, err := s.artists.List(r.Context())
	if err != nil {
		re.fail(err)
		return
	}
	re.ok(artists)
}

func (s *Server) handleArtistGet(w http.ResponseWriter, r *http.Request) {
	re := newResponder(w, r)
	id, err := pathArtistID(r)
	if err != nil {
		re.fail(err)
		return
	}
	artist, err := s.artists.Get(r.Context(), id)
	if err != nil {
		re.fail(err)
		return
	}
	re.ok(artist)
}

// handleArtistLookup is the "find_or_create_by_name" verb (spec §4.4):
// resolve an artist by name, creating it if it does not already exist.
func (s *Server) handleArtistLookup(w http.ResponseWriter, r *http.Request) {
	re := newResponder(w, r)
	name := r.URL.Query().Get("name")
	artist, err := s.artists.FindOrCreateByName(r.Context(), name)
	if err != nil {
		re.fail(err)
		return
	}
	re.ok(artist)
	s.publish(r.Context(), events.OpCreate, artist.ID)
}

func (s *Server) handleArtistCreate(w http.ResponseWriter, r *http.Request) {
	re := newResponder(w, r)
	var in catalog.ArtistCreate
	if err := decodeJSON(r, &in); err != nil {
		re.fail(err)
		return
	}
	artist, err := s.artists.Create(r.Context(), in)
	if err != nil {
		re.fail(err)
		return
	}
	re.created(artist)
	s.publish(r.Context(), events.OpCreate, artist.ID)
}

func (s *Server) handleArtistUpdate(w http.ResponseWriter, r *http.Request) {
	re := newResponder(w, r)
	id, err := pathArtistID(r)
	if err != nil {
		re.fail(err)
		return
	}
	var in catalog.ArtistUpdate
	if err := decodeJSON(r, &in); err != nil {
		re.fail(err)
		return
	}
	artist, err := s.artists.Update(r.Context(), id, in)
	if err != nil {
		re.fail(err)
		return
	}
	re.ok(artist)
	s.publish(r.Context(), events.OpUpdate, artist.ID)
}

func (s *Server) handleArtistDelete(w http.ResponseWriter, r *http.Request) {
	re := newResponder(w, r)
	id, err := pathArtistID(r)
	if err != nil {
		re.fail(err)
		return
	}
	if err := s.artists.Delete(r.Context(), id); err != nil {
		re.fail(err)
		return
	}
	re.noContent()
	s.publish(r.Context(), events.OpDelete, id)
}
