// Sonar - self-hosted music library server
// SPDX-License-Identifier: AGPL-3.0-or-later

package rpc

import (
	"net/http"

	"github.com/sonarhost/sonar/internal/events"
	"github.com/sonarhost/sonar/internal/ids"
	"github.com/sonarhost/sonar/internal/importer"
	"github.com/sonarhost/sonar/internal/sonarerr"
)

const maxImportFormMemory = 32 << 20 // 32MiB held in memory before spilling to temp files

// handleImport accepts one multipart-encoded audio file (spec §4.5
// "import(file, artist_id?, album_id?)"), staging it through
// internal/importer.Importer.Run.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	re := newResponder(w, r)

	if err := r.ParseMultipartForm(maxImportFormMemory); err != nil {
		re.fail(sonarerr.Invalidf("invalid multipart import body: %v", err))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		re.fail(sonarerr.Invalidf("missing file field: %v", err))
		return
	}
	defer file.Close()

	in := importer.Import{Filepath: header.Filename, Data: file}

	if raw := r.FormValue("artist_id"); raw != "" {
		id, err := ids.ParseKind(raw, ids.KindArtist)
		if err != nil {
			re.fail(sonarerr.Invalidf("invalid artist_id %q: %v", raw, err))
			return
		}
		in.ArtistID = &id
	}
	if raw := r.FormValue("album_id"); raw != "" {
		id, err := ids.ParseKind(raw, ids.KindAlbum)
		if err != nil {
			re.fail(sonarerr.Invalidf("invalid album_id %q: %v", raw, err))
			return
		}
		in.AlbumID = &id
	}

	track, err := s.importer.Run(r.Context(), in)
	if err != nil {
		re.fail(err)
		return
	}
	re.created(track)
	// The importer resolves artist/album via find-or-create directly against
	// the catalog services, bypassing the publish() call the dedicated RPC
	// handlers make; emit the track event here so search indexing still
	// picks up imported tracks.
	s.publish(r.Context(), events.OpCreate, track.ID)
}
