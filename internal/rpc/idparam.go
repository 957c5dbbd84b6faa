// Sonar - self-hosted music library server
// SPDX-License-Identifier: AGPL-3.0-or-later

package rpc

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sonarhost/sonar/internal/ids"
	"github.com/sonarhost/sonar/internal/sonarerr"
)

// pathID parses the {id} chi URL parameter as a tagged ID of kind, giving a
// uniform 400 (rather than a 404 from a failed store lookup) for a
// malformed id on every handler.
func pathID(r *http.Request, kind ids.Kind) (ids.ID, error) {
	raw := chi.URLParam(r, "id")
	id, err := ids.ParseKind(raw, kind)
	if err != nil {
		return 0, sonarerr.Invalidf("invalid %s id %q: %v", kind, raw, err)
	}
	return id, nil
}

func pathUserID(r *http.Request) (ids.UserID, error)         { return pathID(r, ids.KindUser) }
func pathImageID(r *http.Request) (ids.ImageID, error)       { return pathID(r, ids.KindImage) }
func pathArtistID(r *http.Request) (ids.ArtistID, error)     { return pathID(r, ids.KindArtist) }
func pathAlbumID(r *http.Request) (ids.AlbumID, error)       { return pathID(r, ids.KindAlbum) }
func pathTrackID(r *http.Request) (ids.TrackID, error)       { return pathID(r, ids.KindTrack) }
func pathPlaylistID(r *http.Request) (ids.PlaylistID, error) { return pathID(r, ids.KindPlaylist) }
func pathScrobbleID(r *http.Request) (ids.ScrobbleID, error) { return pathID(r, ids.KindScrobble) }

// pathAnyID parses the {id} chi URL parameter as a tagged ID of any kind,
// used by the favorite/pin endpoints whose target can be any entity kind.
func pathAnyID(r *http.Request) (ids.ID, error) {
	raw := chi.URLParam(r, "id")
	id, err := ids.Parse(raw)
	if err != nil {
		return 0, sonarerr.Invalidf("invalid id %q: %v", raw, err)
	}
	return id, nil
}

// queryID parses a generic tagged ID (kind self-describing via its
// "sonar:<kind>:<hex>" prefix) from a query parameter, used by the list,
// lookup, metadata-fetch and scrobble endpoints that take an id that way.
func queryID(r *http.Request, name string) (ids.ID, error) {
	raw := r.URL.Query().Get(name)
	id, err := ids.Parse(raw)
	if err != nil {
		return 0, sonarerr.Invalidf("invalid %s %q: %v", name, raw, err)
	}
	return id, nil
}

func queryUintParam(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}
