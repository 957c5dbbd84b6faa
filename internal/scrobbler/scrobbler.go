// Sonar - self-hosted music library server
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sonarhost/sonar

package scrobbler

import (
	"context"
	"time"
)

// Listen is the denormalized view of a scrobble a Scrobbler submits; the
// worker resolves track/album/artist names once per listen so adapters
// never need catalog access of their own.
type Listen struct {
	ArtistName string
	AlbumName  string
	TrackName  string
	ListenedAt time.Time
	DurationMS int64
}

// Scrobbler is one external scrobble submission target (spec §4.10),
// e.g. one user's linked Last.fm account.
type Scrobbler interface {
	// Name identifies this scrobbler in the scrobble_submission tracking
	// table and in logs; must be stable across restarts.
	Name() string
	Submit(ctx context.Context, listen Listen) error
}
