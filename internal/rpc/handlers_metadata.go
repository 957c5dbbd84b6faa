// Sonar - self-hosted music library server
// SPDX-License-Identifier: AGPL-3.0-or-later

package rpc

import (
	"net/http"

	"github.com/sonarhost/sonar/internal/ids"
	"github.com/sonarhost/sonar/internal/sonarerr"
)

func (s *Server) handleMetadataProviders(w http.ResponseWriter, r *http.Request) {
	re := newResponder(w, r)
	re.ok(s.metadataSvc.Providers())
}

// handleMetadataFetch applies a provider's metadata onto the given entity
// (spec §4.9 "fetch_* writes the folded record back to the catalog"); the
// entity kind is read off the tagged id itself rather than a separate
// parameter.
func (s *Server) handleMetadataFetch(w http.ResponseWriter, r *http.Request) {
	re := newResponder(w, r)
	id, err := queryID(r, "id")
	if err != nil {
		re.fail(err)
		return
	}
	switch id.Kind() {
	case ids.KindArtist:
		artist, err := s.metadataSvc.FetchArtist(r.Context(), id)
		if err != nil {
			re.fail(err)
			return
		}
		re.ok(artist)
	case ids.KindAlbum:
		album, err := s.metadataSvc.FetchAlbum(r.Context(), id)
		if err != nil {
			re.fail(err)
			return
		}
		re.ok(album)
	case ids.KindTrack:
		track, err := s.metadataSvc.FetchTrack(r.Context(), id)
		if err != nil {
			re.fail(err)
			return
		}
		re.ok(track)
	default:
		re.fail(sonarerr.Invalidf("metadata fetch is not supported for id kind %s", id.Kind()))
	}
}

func (s *Server) handleMetadataAlbumTracks(w http.ResponseWriter, r *http.Request) {
	re := newResponder(w, r)
	id, err := pathAlbumID(r)
	if err != nil {
		re.fail(err)
		return
	}
	tracks, err := s.metadataSvc.ViewAlbumTracks(r.Context(), id)
	if err != nil {
		re.fail(err)
		return
	}
	re.ok(tracks)
}
