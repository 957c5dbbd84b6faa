// Sonar - self-hosted music library server
// SPDX-License-Identifier: AGPL-3.0-or-later

package rpc

import "net/http"

func (s *Server) handleDownloadList(w http.ResponseWriter, r *http.Request) {
	re := newResponder(w, r)
	re.ok(s.downloads.List(authUser(r).ID))
}
