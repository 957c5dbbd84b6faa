// Sonar - self-hosted music library server
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sonarhost/sonar

package scrobbler

import (
	"context"

	lastfm "github.com/shkh/lastfm-go"

	"github.com/sonarhost/sonar/internal/sonarerr"
)

// LastFM submits listens to Last.fm on behalf of one linked account. A
// session key is obtained once during account linking (outside this
// package) and handed to NewLastFM; lastfm-go's API calls are
// synchronous HTTP requests, so Submit blocks for the duration of one
// call.
type LastFM struct {
	api *lastfm.Api
}

// NewLastFM constructs a Scrobbler against a single Last.fm account
// identified by sessionKey.
func NewLastFM(apiKey, apiSecret, sessionKey string) *LastFM {
	api := lastfm.New(apiKey, apiSecret)
	api.SetSession(sessionKey)
	return &LastFM{api: api}
}

func (l *LastFM) Name() string { return "lastfm" }

// Submit scrobbles one listen. Last.fm ignores scrobbles for tracks
// played for less than half their duration or under four minutes, but
// that eligibility decision belongs to the caller that recorded the
// scrobble in the first place; Submit always attempts the call.
func (l *LastFM) Submit(ctx context.Context, listen Listen) error {
	_, err := l.api.Track.Scrobble(lastfm.P{
		"artist":    listen.ArtistName,
		"track":     listen.TrackName,
		"album":     listen.AlbumName,
		"timestamp": listen.ListenedAt.Unix(),
		"duration":  listen.DurationMS / 1000,
	})
	if err != nil {
		return sonarerr.WrapInternal(err, "lastfm scrobble %q", listen.TrackName)
	}
	return nil
}
