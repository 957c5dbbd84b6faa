// Sonar - self-hosted music library server
// SPDX-License-Identifier: AGPL-3.0-or-later

package rpc

import (
	"io"
	"net/http"

	"github.com/sonarhost/sonar/internal/blob"
	"github.com/sonarhost/sonar/internal/logging"
	"github.com/sonarhost/sonar/internal/sonarerr"
)

const maxImageUploadBytes = 16 << 20 // 16MiB, generous for cover art/avatars

func (s *Server) handleImageCreate(w http.ResponseWriter, r *http.Request) {
	re := newResponder(w, r)
	mimeType := r.Header.Get("Content-Type")
	if mimeType == "" {
		re.fail(sonarerr.Invalidf("missing Content-Type"))
		return
	}
	image, err := s.images.Create(r.Context(), mimeType, io.LimitReader(r.Body, maxImageUploadBytes))
	if err != nil {
		re.fail(err)
		return
	}
	re.created(image)
}

func (s *Server) handleImageDownload(w http.ResponseWriter, r *http.Request) {
	re := newResponder(w, r)
	id, err := pathImageID(r)
	if err != nil {
		re.fail(err)
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
		logging.CtxErr(r.Context(), err).Str("image_id", id.String()).Msg("stream image download")
	}
}

func (s *Server) handleImageDelete(w http.ResponseWriter, r *http.Request) {
	re := newResponder(w, r)
	id, err := pathImageID(r)
	if err != nil {
		re.fail(err)
		return
	}
	if err := s.images.Delete(r.Context(), id); err != nil {
		re.fail(err)
		return
	}
	re.noContent()
}
