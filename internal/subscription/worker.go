// Sonar - self-hosted music library server
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sonarhost/sonar

package subscription

import (
	"context"
	"time"

	"github.com/sonarhost/sonar/internal/download"
	"github.com/sonarhost/sonar/internal/logging"
)

// pollInterval is how often the worker checks for due subscriptions; it
// is independent of any one subscription's own re-submission interval.
const pollInterval = 5 * time.Minute

// Worker is the long-lived background task that re-submits due
// subscriptions to the download orchestrator (spec §4.8). Its Serve
// method matches suture.Service so it can be supervised alongside the
// other background workers.
type Worker struct {
	store     *Store
	downloads *download.Controller
	pollEvery time.Duration
}

// NewWorker constructs a subscription Worker.
func NewWorker(s *Store, downloads *download.Controller) *Worker {
	return &Worker{store: s, downloads: downloads, pollEvery: pollInterval}
}

// Serve runs the poll loop until ctx is cancelled.
func (w *Worker) Serve(ctx context.Context) error {
	ticker := time.NewTicker(w.pollEvery)
	defer ticker.Stop()

	w.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

func (w *Worker) tick(ctx context.Context) {
	due, err := w.store.ListDue(ctx, time.Now())
	if err != nil {
		logging.CtxErr(ctx, err).Msg("list due subscriptions")
		return
	}
	for _, sub := range due {
		w.downloads.Request(ctx, sub.UserID, sub.ExternalID)
		if err := w.store.MarkSubmitted(ctx, sub.ID, time.Now()); err != nil {
			logging.CtxErr(ctx, err).Uint32("subscription_id", sub.ID).Msg("mark subscription submitted")
		}
	}
}
