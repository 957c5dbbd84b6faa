// Sonar - self-hosted music library server
// SPDX-License-Identifier: AGPL-3.0-or-later

package subsonic

import (
	"net/http"
	"time"

	"github.com/sonarhost/sonar/internal/catalog"
	"github.com/sonarhost/sonar/internal/ids"
)

func (s *Server) handleScrobble(w http.ResponseWriter, r *http.Request) {
	re := newResponder(w, r)
	idStr := r.URL.Query().Get("id")
	if idStr == "" {
		re.failCode(errRequiredParameterMissing, "missing parameter: id")
		return
	}
	id, err := ids.ParseKind(idStr, ids.KindTrack)
	if err != nil {
		re.failCode(errDataNotFound, "not found")
		return
	}
	ctx := r.Context()
	user := userFromContext(r)
	creds := parseCredentials(r)

	listenedAt := time.Now()
	if ts, ok := queryUint(r, "time"); ok {
		listenedAt = time.UnixMilli(int64(ts))
	}

	var clientName *string
	if creds.Client != "" {
		clientName = &creds.Client
	}

	_, err = s.scrobbles.Create(ctx, catalog.ScrobbleCreate{
		UserID:      user.ID,
		TrackID:     id,
		ListenedAt:  listenedAt,
		ClientName:  clientName,
	})
	if err != nil {
		re.fail(err)
		return
	}
	re.ok(func(*Response) {})
}

// parseAnnotationTargets reads every "id" Subsonic sends star/unstar
// (plural is legal: a client can star several items in one call).
func parseAnnotationTargets(r *http.Request) ([]ids.ID, *responseError) {
	raw := r.URL.Query()["id"]
	if len(raw) == 0 {
		return nil, &responseError{code: errRequiredParameterMissing, message: "missing parameter: id"}
	}
	out := make([]ids.ID, 0, len(raw))
	for _, v := range raw {
		id, err := ids.Parse(v)
		if err != nil {
			return nil, &responseError{code: errDataNotFound, message: "not found"}
		}
		out = append(out, id)
	}
	return out, nil
}

func (s *Server) handleStar(w http.ResponseWriter, r *http.Request) {
	re := newResponder(w, r)
	targets, rerr := parseAnnotationTargets(r)
	if rerr != nil {
		re.failCode(rerr.code, rerr.message)
		return
	}
	user := userFromContext(r)
	for _, id := range targets {
		if err := s.favorites.Add(r.Context(), user.ID, id); err != nil {
			re.fail(err)
			return
		}
	}
	re.ok(func(*Response) {})
}

func (s *Server) handleUnstar(w http.ResponseWriter, r *http.Request) {
	re := newResponder(w, r)
	targets, rerr := parseAnnotationTargets(r)
	if rerr != nil {
		re.failCode(rerr.code, rerr.message)
		return
	}
	user := userFromContext(r)
	for _, id := range targets {
		if err := s.favorites.Remove(r.Context(), user.ID, id); err != nil {
			re.fail(err)
			return
		}
	}
	re.ok(func(*Response) {})
}

// handleSetRating maps Subsonic's 1-5 star rating onto Sonar's boolean
// favorite: a rating of 0 unstars, any positive rating stars. Sonar's
// catalog has no graduated rating scale to preserve the exact value
// against.
func (s *Server) handleSetRating(w http.ResponseWriter, r *http.Request) {
	re := newResponder(w, r)
	idStr := r.URL.Query().Get("id")
	if idStr == "" {
		re.failCode(errRequiredParameterMissing, "missing parameter: id")
		return
	}
	id, err := ids.Parse(idStr)
	if err != nil {
		re.failCode(errDataNotFound, "not found")
		return
	}
	rating := queryIntDefault(r, "rating", 0)
	user := userFromContext(r)

	if rating <= 0 {
		err = s.favorites.Remove(r.Context(), user.ID, id)
	} else {
		err = s.favorites.Add(r.Context(), user.ID, id)
	}
	if err != nil {
		re.fail(err)
		return
	}
	re.ok(func(*Response) {})
}

func (s *Server) handleGetStarred2(w http.ResponseWriter, r *http.Request) {
	re := newResponder(w, r)
	ctx := r.Context()
	user := userFromContext(r)

	favs, err := s.favorites.List(ctx, user.ID)
	if err != nil {
		re.fail(err)
		return
	}
	starred, err := loadStarredSet(ctx, s.favorites, user.ID)
	if err != nil {
		re.fail(err)
		return
	}

	out := Starred2{Artist: []ArtistID3{}, Album: []AlbumID3{}, Song: []Child{}}
	for _, f := range favs {
		switch f.TargetID.Kind() {
		case ids.KindArtist:
			a, err := s.artists.Get(ctx, f.TargetID)
			if err != nil {
				continue
			}
			out.Artist = append(out.Artist, artistToID3(a, starred))
		case ids.KindAlbum:
			al, err := s.albums.Get(ctx, f.TargetID)
			if err != nil {
				continue
			}
			artist, err := s.artists.Get(ctx, al.ArtistID)
			if err != nil {
				continue
			}
			out.Album = append(out.Album, albumToID3(al, artist.Name, starred))
		case ids.KindTrack:
			t, err := s.tracks.Get(ctx, f.TargetID)
			if err != nil {
				continue
			}
			al, err := s.albums.Get(ctx, t.AlbumID)
			if err != nil {
				continue
			}
			artist, err := s.artists.Get(ctx, al.ArtistID)
			if err != nil {
				continue
			}
			child := trackToChild(ctx, s.tracks, t, al.Name, artist.Name, starred)
			attachAudio(ctx, s.audio, t, &child)
			out.Song = append(out.Song, child)
		}
	}
	re.ok(func(resp *Response) { resp.Starred2 = &out })
}
