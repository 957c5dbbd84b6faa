// Sonar - self-hosted music library server
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package subsonic implements the legacy Subsonic/OpenSubsonic-compatible
// HTTP surface (spec §4.11) over the same catalog services internal/rpc
// uses, so existing Subsonic clients (DSub, Symfonium, play:Sub, ...) can
// browse and stream a Sonar library without modification. The surface is
// read-mostly: browsing, search, playlists, star/rating annotations, and
// media streaming; it does not expose artist/album/track mutation, import,
// subscriptions, or downloads, which stay on the typed internal/rpc API.
//
// Every handler reads its query-string parameters directly from the
// request, runs behind withCredentials, which authenticates the legacy u/p
// scheme and rejects token (t+s) requests with error 41, does its catalog
// work, and renders exactly one of the *Response's body fields through
// responder, which picks JSON or XML encoding from the request's "f"
// parameter the way every Subsonic server does.
package subsonic
