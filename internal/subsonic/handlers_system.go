// Sonar - self-hosted music library server
// SPDX-License-Identifier: AGPL-3.0-or-later

package subsonic

import "net/http"

// handlePing answers the connectivity check every client runs before
// anything else; by the time this handler runs, withCredentials has
// already authenticated the request, so success here implies valid auth.
func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	newResponder(w, r).ok(func(*Response) {})
}

// handleGetLicense reports an always-valid license: Sonar is self-hosted
// and performs no license-server check.
func (s *Server) handleGetLicense(w http.ResponseWriter, r *http.Request) {
	newResponder(w, r).ok(func(resp *Response) {
		resp.License = &License{Valid: true}
	})
}

// handleGetMusicFolders reports Sonar's single, unnamed catalog as one
// synthetic music folder; Sonar has no concept of multiple library roots.
func (s *Server) handleGetMusicFolders(w http.ResponseWriter, r *http.Request) {
	newResponder(w, r).ok(func(resp *Response) {
		resp.MusicFolders = &MusicFolders{
			MusicFolder: []MusicFolder{{ID: 1, Name: "Music"}},
		}
	})
}
