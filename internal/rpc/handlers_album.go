// Sonar - self-hosted music library server
// SPDX-License-Identifier: AGPL-3.0-or-later

package rpc

import (
	"net/http"

	"github.com/sonarhost/sonar/internal/catalog"
	"github.com/sonarhost/sonar/internal/events"
)

func (s *Server) handleAlbumList(w http.ResponseWriter, r *http.Request) {
	re := newResponder(w, r)
	if artistParam := r.URL.Query().Get("artist_id"); artistParam != "" {
		artistID, err := queryID(r, "artist_id")
		if err != nil {
			re.fail(err)
			return
		}
		albums, err := s.albums.ListByArtist(r.Context(), artistID)
		if err != nil {
			re.fail(err)
			return
		}
		re.ok(albums)
		return
	}
	albums, err := s.albums.List(r.Context())
	if err != nil {
		re.fail(err)
		return
	}
	re.ok(albums)
}

func (s *Server) handleAlbumGet(w http.ResponseWriter, r *http.Request) {
	re := newResponder(w, r)
	id, err := pathAlbumID(r)
	if err != nil {
		re.fail(err)
		return
	}
	album, err := s.albums.Get(r.Context(), id)
	if err != nil {
		re.fail(err)
		return
	}
	re.ok(album)
}

func (s *Server) handleAlbumLookup(w http.ResponseWriter, r *http.Request) {
	re := newResponder(w, r)
	artistID, err := queryID(r, "artist_id")
	if err != nil {
		re.fail(err)
		return
	}
	name := r.URL.Query().Get("name")
	album, err := s.albums.FindOrCreateByName(r.Context(), artistID, name)
	if err != nil {
		re.fail(err)
		return
	}
	re.ok(album)
	s.publish(r.Context(), events.OpCreate, album.ID)
}

func (s *Server) handleAlbumCreate(w http.ResponseWriter, r *http.Request) {
	re := newResponder(w, r)
	var in catalog.AlbumCreate
	if err := decodeJSON(r, &in); err != nil {
		re.fail(err)
		return
	}
	album, err := s.albums.Create(r.Context(), in)
	if err != nil {
		re.fail(err)
		return
	}
	re.created(album)
	s.publish(r.Context(), events.OpCreate, album.ID)
}

func (s *Server) handleAlbumUpdate(w http.ResponseWriter, r *http.Request) {
	re := newResponder(w, r)
	id, err := pathAlbumID(r)
	if err != nil {
		re.fail(err)
		return
	}
	var in catalog.AlbumUpdate
	if err := decodeJSON(r, &in); err != nil {
		re.fail(err)
		return
	}
	album, err := s.albums.Update(r.Context(), id, in)
	if err != nil {
		re.fail(err)
		return
	}
	re.ok(album)
	s.publish(r.Context(), events.OpUpdate, album.ID)
}

func (s *Server) handleAlbumDelete(w http.ResponseWriter, r *http.Request) {
	re := newResponder(w, r)
	id, err := pathAlbumID(r)
	if err != nil {
		re.fail(err)
		return
	}
	if err := s.albums.Delete(r.Context(), id); err != nil {
		re.fail(err)
		return
	}
	re.noContent()
	s.publish(r.Context(), events.OpDelete, id)
}
