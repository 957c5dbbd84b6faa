// Sonar - self-hosted music library server
// SPDX-License-Identifier: AGPL-3.0-or-later

package subsonic

import (
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/sonarhost/sonar/internal/blob"
	"github.com/sonarhost/sonar/internal/ids"
	"github.com/sonarhost/sonar/internal/logging"
)

// parseByteRange reads a single "bytes=<start>-<end>" HTTP Range header
// into a blob.Range, the same shape internal/rpc's track download endpoint
// accepts; malformed or absent headers fall back to reading the whole
// object (Length -1, meaning "to end") from the start. The second return
// reports whether a Range header was actually honored, so callers know to
// answer 206 instead of 200.
func parseByteRange(header string) (blob.Range, bool) {
	const prefix = "bytes="
	if !strings.HasPrefix(header, prefix) {
		return blob.Range{Length: -1}, false
	}
	parts := strings.SplitN(header[len(prefix):], "-", 2)
	if len(parts) != 2 {
		return blob.Range{Length: -1}, false
	}
	start, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return blob.Range{Length: -1}, false
	}
	if parts[1] == "" {
		return blob.Range{Offset: start, Length: -1}, true
	}
	end, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil || end < start {
		return blob.Range{Offset: start, Length: -1}, true
	}
	return blob.Range{Offset: start, Length: end - start + 1}, true
}

func (s *Server) handleGetCoverArt(w http.ResponseWriter, r *http.Request) {
	re := newResponder(w, r)
	idStr := r.URL.Query().Get("id")
	if idStr == "" {
		re.failCode(errRequiredParameterMissing, "missing parameter: id")
		return
	}
	id, err := ids.ParseKind(idStr, ids.KindImage)
	if err != nil {
		re.failCode(errDataNotFound, "not found")
		return
	}
	image, err := s.images.Get(r.Context(), id)
	if err != nil {
		re.fail(err)
		return
	}
	rc, err := s.images.Read(r.Context(), id, blob.Range{Length: -1})
	if err != nil {
		re.fail(err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", image.MimeType)
	if _, err := io.Copy(w, rc); err != nil {
		logging.CtxErr(r.Context(), err).Str("image_id", id.String()).Msg("stream subsonic cover art")
	}
}

// streamOrDownload backs both "stream" and "download": Subsonic
// distinguishes them by client intent (transcoding hints, Content-
// Disposition), not by a different underlying read. Sonar does not
// transcode, so both serve the stored audio rendition as-is.
func (s *Server) streamOrDownload(w http.ResponseWriter, r *http.Request, asAttachment bool) {
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
	track, err := s.tracks.Get(ctx, id)
	if err != nil {
		re.fail(err)
		return
	}
	if track.PreferredAudioID == nil {
		re.failCode(errDataNotFound, "track has no audio")
		return
	}
	audio, err := s.audio.Get(ctx, *track.PreferredAudioID)
	if err != nil {
		re.fail(err)
		return
	}

	rng, partial := parseByteRange(r.Header.Get("Range"))
	rc, err := s.tracks.Download(ctx, id, rng)
	if err != nil {
		re.fail(err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", audio.MimeType)
	w.Header().Set("Accept-Ranges", "bytes")
	if asAttachment {
		filename := track.Name
		if audio.Filename != nil {
			filename = *audio.Filename
		}
		w.Header().Set("Content-Disposition", "attachment; filename=\""+filename+"\"")
	}
	if partial {
		w.WriteHeader(http.StatusPartialContent)
	}
	if _, err := io.Copy(w, rc); err != nil {
		logging.CtxErr(ctx, err).Str("track_id", id.String()).Msg("stream subsonic audio")
	}
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	s.streamOrDownload(w, r, false)
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	s.streamOrDownload(w, r, true)
}
