// Sonar - self-hosted music library server
// SPDX-License-Identifier: AGPL-3.0-or-later

package rpc

import (
	"net/http"

	"github.com/sonarhost/sonar/internal/catalog"
	"github.com/sonarhost/sonar/internal/events"
	"github.com/sonarhost/sonar/internal/ids"
)

func (s *Server) handlePlaylistList(w http.ResponseWriter, r *http.Request) {
	re := newResponder(w, r)
	ownerID, err := queryID(r, "owner_id")
	if err != nil {
		re.fail(err)
		return
	}
	playlists, err := s.playlists.ListByOwner(r.Context(), ownerID)
	if err != nil {
		re.fail(err)
		return
	}
	re.ok(playlists)
}

func (s *Server) handlePlaylistGet(w http.ResponseWriter, r *http.Request) {
	re := newResponder(w, r)
	id, err := pathPlaylistID(r)
	if err != nil {
		re.fail(err)
		return
	}
	playlist, err := s.playlists.Get(r.Context(), id)
	if err != nil {
		re.fail(err)
		return
	}
	re.ok(playlist)
}

func (s *Server) handlePlaylistCreate(w http.ResponseWriter, r *http.Request) {
	re := newResponder(w, r)
	var in catalog.PlaylistCreate
	if err := decodeJSON(r, &in); err != nil {
		re.fail(err)
		return
	}
	playlist, err := s.playlists.Create(r.Context(), in)
	if err != nil {
		re.fail(err)
		return
	}
	re.created(playlist)
	s.publish(r.Context(), events.OpCreate, playlist.ID)
}

func (s *Server) handlePlaylistUpdate(w http.ResponseWriter, r *http.Request) {
	re := newResponder(w, r)
	id, err := pathPlaylistID(r)
	if err != nil {
		re.fail(err)
		return
	}
	var in catalog.PlaylistUpdate
	if err := decodeJSON(r, &in); err != nil {
		re.fail(err)
		return
	}
	playlist, err := s.playlists.Update(r.Context(), id, in)
	if err != nil {
		re.fail(err)
		return
	}
	re.ok(playlist)
	s.publish(r.Context(), events.OpUpdate, playlist.ID)
}

func (s *Server) handlePlaylistDelete(w http.ResponseWriter, r *http.Request) {
	re := newResponder(w, r)
	id, err := pathPlaylistID(r)
	if err != nil {
		re.fail(err)
		return
	}
	if err := s.playlists.Delete(r.Context(), id); err != nil {
		re.fail(err)
		return
	}
	re.noContent()
	s.publish(r.Context(), events.OpDelete, id)
}

// duplicateRequest names the new owner and title for handlePlaylistDuplicate
// (spec §8 playlist-duplicate scenario: the copy is independent of edits to
// the original).
type duplicateRequest struct {
	Name        string      `json:"name"`
	OwnerUserID ids.UserID `json:"owner_user_id"`
}

func (s *Server) handlePlaylistDuplicate(w http.ResponseWriter, r *http.Request) {
	re := newResponder(w, r)
	id, err := pathPlaylistID(r)
	if err != nil {
		re.fail(err)
		return
	}
	var in duplicateRequest
	if err := decodeJSON(r, &in); err != nil {
		re.fail(err)
		return
	}
	playlist, err := s.playlists.Duplicate(r.Context(), id, in.Name, in.OwnerUserID)
	if err != nil {
		re.fail(err)
		return
	}
	re.created(playlist)
	s.publish(r.Context(), events.OpCreate, playlist.ID)
}

func (s *Server) handlePlaylistTracks(w http.ResponseWriter, r *http.Request) {
	re := newResponder(w, r)
	id, err := pathPlaylistID(r)
	if err != nil {
		re.fail(err)
		return
	}
	tracks, err := s.playlists.Tracks(r.Context(), id)
	if err != nil {
		re.fail(err)
		return
	}
	re.ok(tracks)
}

// trackIDsRequest carries a track id list; handlePlaylistTracksInsert and
// handlePlaylistTracksRemove compose it onto the current sequence since
// PlaylistService.Update only knows how to replace the sequence wholesale.
type trackIDsRequest struct {
	TrackIDs []ids.TrackID `json:"track_ids"`
}

func (s *Server) handlePlaylistTracksInsert(w http.ResponseWriter, r *http.Request) {
	re := newResponder(w, r)
	id, err := pathPlaylistID(r)
	if err != nil {
		re.fail(err)
		return
	}
	var in trackIDsRequest
	if err := decodeJSON(r, &in); err != nil {
		re.fail(err)
		return
	}
	current, err := s.playlists.Tracks(r.Context(), id)
	if err != nil {
		re.fail(err)
		return
	}
	merged := append(append([]ids.TrackID{}, current...), in.TrackIDs...)
	playlist, err := s.playlists.Update(r.Context(), id, catalog.PlaylistUpdate{TrackIDs: merged, ReplaceTracks: true})
	if err != nil {
		re.fail(err)
		return
	}
	re.ok(playlist)
	s.publish(r.Context(), events.OpUpdate, playlist.ID)
}

func (s *Server) handlePlaylistTracksRemove(w http.ResponseWriter, r *http.Request) {
	re := newResponder(w, r)
	id, err := pathPlaylistID(r)
	if err != nil {
		re.fail(err)
		return
	}
	var in trackIDsRequest
	if err := decodeJSON(r, &in); err != nil {
		re.fail(err)
		return
	}
	remove := make(map[ids.TrackID]int, len(in.TrackIDs))
	for _, id := range in.TrackIDs {
		remove[id]++
	}
	current, err := s.playlists.Tracks(r.Context(), id)
	if err != nil {
		re.fail(err)
		return
	}
	kept := make([]ids.TrackID, 0, len(current))
	for _, trackID := range current {
		if remove[trackID] > 0 {
			remove[trackID]--
			continue
		}
		kept = append(kept, trackID)
	}
	playlist, err := s.playlists.Update(r.Context(), id, catalog.PlaylistUpdate{TrackIDs: kept, ReplaceTracks: true})
	if err != nil {
		re.fail(err)
		return
	}
	re.ok(playlist)
	s.publish(r.Context(), events.OpUpdate, playlist.ID)
}

func (s *Server) handlePlaylistTracksClear(w http.ResponseWriter, r *http.Request) {
	re := newResponder(w, r)
	id, err := pathPlaylistID(r)
	if err != nil {
		re.fail(err)
		return
	}
	playlist, err := s.playlists.Update(r.Context(), id, catalog.PlaylistUpdate{TrackIDs: nil, ReplaceTracks: true})
	if err != nil {
		re.fail(err)
		return
	}
	re.ok(playlist)
	s.publish(r.Context(), events.OpUpdate, playlist.ID)
}
