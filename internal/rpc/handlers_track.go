// Sonar - self-hosted music library server
// SPDX-License-Identifier: AGPL-3.0-or-later

package rpc

import (
	"io"
	"net/http"
	"strconv"

	"github.com/sonarhost/sonar/internal/blob"
	"github.com/sonarhost/sonar/internal/catalog"
	"github.com/sonarhost/sonar/internal/events"
	"github.com/sonarhost/sonar/internal/logging"
	"github.com/sonarhost/sonar/internal/sonarerr"
)

func (s *Server) handleTrackList(w http.ResponseWriter, r *http.Request) {
	re := newResponder(w, r)
	if r.URL.Query().Get("album_id") != "" {
		albumID, err := queryID(r, "album_id")
		if err != nil {
			re.fail(err)
			return
		}
		tracks, err := s.tracks.ListByAlbum(r.Context(), albumID)
		if err != nil {
			re.fail(err)
			return
		}
		re.ok(tracks)
		return
	}
	tracks, err := s.tracks.List(r.Context())
	if err != nil {
		re.fail(err)
		return
	}
	re.ok(tracks)
}

func (s *Server) handleTrackGet(w http.ResponseWriter, r *http.Request) {
	re := newResponder(w, r)
	id, err := pathTrackID(r)
	if err != nil {
		re.fail(err)
		return
	}
	track, err := s.tracks.Get(r.Context(), id)
	if err != nil {
		re.fail(err)
		return
	}
	re.ok(track)
}

func (s *Server) handleTrackLookup(w http.ResponseWriter, r *http.Request) {
	re := newResponder(w, r)
	albumID, err := queryID(r, "album_id")
	if err != nil {
		re.fail(err)
		return
	}
	name := r.URL.Query().Get("name")
	track, err := s.tracks.FindOrCreateByName(r.Context(), albumID, name)
	if err != nil {
		re.fail(err)
		return
	}
	re.ok(track)
	s.publish(r.Context(), events.OpCreate, track.ID)
}

func (s *Server) handleTrackCreate(w http.ResponseWriter, r *http.Request) {
	re := newResponder(w, r)
	var in catalog.TrackCreate
	if err := decodeJSON(r, &in); err != nil {
		re.fail(err)
		return
	}
	track, err := s.tracks.Create(r.Context(), in)
	if err != nil {
		re.fail(err)
		return
	}
	re.created(track)
	s.publish(r.Context(), events.OpCreate, track.ID)
}

func (s *Server) handleTrackUpdate(w http.ResponseWriter, r *http.Request) {
	re := newResponder(w, r)
	id, err := pathTrackID(r)
	if err != nil {
		re.fail(err)
		return
	}
	var in catalog.TrackUpdate
	if err := decodeJSON(r, &in); err != nil {
		re.fail(err)
		return
	}
	track, err := s.tracks.Update(r.Context(), id, in)
	if err != nil {
		re.fail(err)
		return
	}
	re.ok(track)
	s.publish(r.Context(), events.OpUpdate, track.ID)
}

func (s *Server) handleTrackDelete(w http.ResponseWriter, r *http.Request) {
	re := newResponder(w, r)
	id, err := pathTrackID(r)
	if err != nil {
		re.fail(err)
		return
	}
	if err := s.tracks.Delete(r.Context(), id); err != nil {
		re.fail(err)
		return
	}
	re.noContent()
	s.publish(r.Context(), events.OpDelete, id)
}

// handleTrackStat reports the size of a track's preferred audio without
// transferring bytes (spec §6 "track ... stat(size)").
func (s *Server) handleTrackStat(w http.ResponseWriter, r *http.Request) {
	re := newResponder(w, r)
	id, err := pathTrackID(r)
	if err != nil {
		re.fail(err)
		return
	}
	track, err := s.tracks.Get(r.Context(), id)
	if err != nil {
		re.fail(err)
		return
	}
	if track.PreferredAudioID == nil {
		re.fail(sonarerr.NotFoundf("track %s has no preferred audio", id))
		return
	}
	audio, err := s.audio.Get(r.Context(), *track.PreferredAudioID)
	if err != nil {
		re.fail(err)
		return
	}
	re.ok(map[string]int64{"size": audio.Size})
}

// handleTrackDownload streams track bytes, honoring a Range header for the
// spec's "chunk-at(offset,length)" verb.
func (s *Server) handleTrackDownload(w http.ResponseWriter, r *http.Request) {
	re := newResponder(w, r)
	id, err := pathTrackID(r)
	if err != nil {
		re.fail(err)
		return
	}
	rng, partial := parseByteRange(r.Header.Get("Range"))
	rc, err := s.tracks.Download(r.Context(), id, rng)
	if err != nil {
		re.fail(err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Accept-Ranges", "bytes")
	if partial {
		w.WriteHeader(http.StatusPartialContent)
	}
	if _, err := io.Copy(w, rc); err != nil {
		logging.CtxErr(r.Context(), err).Str("track_id", id.String()).Msg("stream track download")
	}
}

// parseByteRange decodes a single-range "bytes=<offset>-<end>" header into
// a blob.Range, defaulting to the whole object (Length -1, meaning "to
// end") on anything it can't parse. The second return reports whether a
// Range header was actually honored, so callers know to answer 206
// instead of 200.
func parseByteRange(header string) (blob.Range, bool) {
	const prefix = "bytes="
	if len(header) <= len(prefix) || header[:len(prefix)] != prefix {
		return blob.Range{Length: -1}, false
	}
	spec := header[len(prefix):]
	dash := -1
	for i, c := range spec {
		if c == '-' {
			dash = i
			break
		}
	}
	if dash < 0 {
		return blob.Range{Length: -1}, false
	}
	offset, err := strconv.ParseInt(spec[:dash], 10, 64)
	if err != nil {
		return blob.Range{Length: -1}, false
	}
	if dash == len(spec)-1 {
		return blob.Range{Offset: offset, Length: -1}, true
	}
	end, err := strconv.ParseInt(spec[dash+1:], 10, 64)
	if err != nil || end < offset {
		return blob.Range{Offset: offset, Length: -1}, true
	}
	return blob.Range{Offset: offset, Length: end - offset + 1}, true
}
