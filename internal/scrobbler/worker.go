// Sonar - self-hosted music library server
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sonarhost/sonar

package scrobbler

import (
	"context"

	"github.com/sonarhost/sonar/internal/catalog"
	"github.com/sonarhost/sonar/internal/ids"
	"github.com/sonarhost/sonar/internal/logging"
	"github.com/sonarhost/sonar/internal/metrics"
)

// scanBatchSize bounds how many pending scrobbles one wake processes;
// any remainder is picked up on the next wake.
const scanBatchSize = 200

// Worker drives one registered Scrobbler (spec §4.10): it blocks on a
// level-triggered wake channel, and on wake submits every scrobble not
// yet recorded as submitted to this scrobbler.
type Worker struct {
	scrobbler Scrobbler
	userID    *ids.UserID // nil for a scrobbler that is not user-scoped

	scrobbles *catalog.ScrobbleService
	tracks    *catalog.TrackService
	albums    *catalog.AlbumService
	artists   *catalog.ArtistService

	wake chan struct{}
}

// NewWorker constructs a dispatch Worker for scrobbler. userID scopes the
// pending-submission scan to one user's scrobbles; pass nil for a
// scrobbler that submits on behalf of every user.
func NewWorker(scrobbler Scrobbler, userID *ids.UserID, scrobbles *catalog.ScrobbleService, tracks *catalog.TrackService, albums *catalog.AlbumService, artists *catalog.ArtistService) *Worker {
	return &Worker{
		scrobbler: scrobbler,
		userID:    userID,
		scrobbles: scrobbles,
		tracks:    tracks,
		albums:    albums,
		artists:   artists,
		wake:      make(chan struct{}, 1),
	}
}

// Wake signals the worker to scan for pending scrobbles. Any number of
// wakes before the worker gets to run collapse into a single scan (spec
// §4.10 "level-triggered... any number of wakes collapse into one scan").
func (w *Worker) Wake() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// Serve runs an initial scan, then waits for wakes until ctx is
// cancelled. It matches suture.Service so it can be supervised alongside
// the other background workers.
func (w *Worker) Serve(ctx context.Context) error {
	w.scan(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.wake:
			w.scan(ctx)
		}
	}
}

func (w *Worker) scan(ctx context.Context) {
	pending, err := w.scrobbles.PendingSubmissions(ctx, w.scrobbler.Name(), w.userID, scanBatchSize)
	if err != nil {
		logging.CtxErr(ctx, err).Str("scrobbler", w.scrobbler.Name()).Msg("list pending scrobbles")
		return
	}
	for _, scrobbleID := range pending {
		if err := w.submitOne(ctx, scrobbleID); err != nil {
			metrics.ScrobbleSubmissionsTotal.WithLabelValues(w.scrobbler.Name(), "failure").Inc()
			logging.CtxErr(ctx, err).Str("scrobbler", w.scrobbler.Name()).Str("scrobble_id", scrobbleID.String()).Msg("submit scrobble")
			continue
		}
		metrics.ScrobbleSubmissionsTotal.WithLabelValues(w.scrobbler.Name(), "success").Inc()
		if err := w.scrobbles.MarkSubmitted(ctx, scrobbleID, w.scrobbler.Name()); err != nil {
			logging.CtxErr(ctx, err).Str("scrobbler", w.scrobbler.Name()).Str("scrobble_id", scrobbleID.String()).Msg("mark scrobble submitted")
		}
	}
}

func (w *Worker) submitOne(ctx context.Context, scrobbleID ids.ScrobbleID) error {
	sc, err := w.scrobbles.Get(ctx, scrobbleID)
	if err != nil {
		return err
	}
	track, err := w.tracks.Get(ctx, sc.TrackID)
	if err != nil {
		return err
	}
	album, err := w.albums.Get(ctx, track.AlbumID)
	if err != nil {
		return err
	}
	artist, err := w.artists.Get(ctx, album.ArtistID)
	if err != nil {
		return err
	}

	return w.scrobbler.Submit(ctx, Listen{
		ArtistName: artist.Name,
		AlbumName:  album.Name,
		TrackName:  track.Name,
		ListenedAt: sc.ListenedAt,
		DurationMS: sc.ListenDurationMS,
	})
}
