// Sonar - self-hosted music library server
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sonarhost/sonar

package catalog

import (
	"context"
	"database/sql"
	"time"

	"github.com/sonarhost/sonar/internal/ids"
	"github.com/sonarhost/sonar/internal/metrics"
	"github.com/sonarhost/sonar/internal/sonarerr"
	"github.com/sonarhost/sonar/internal/store"
)

// Scrobble is one recorded listen, feeding the listen_count aggregates and
// the scrobbler dispatch worker (spec §3/§4.4/§4.10).
type Scrobble struct {
	ID               ids.ScrobbleID
	UserID           ids.UserID
	TrackID          ids.TrackID
	ListenedAt       time.Time
	ListenDurationMS int64
	ClientName       *string
	CreatedAt        time.Time
}

// ScrobbleService implements the scrobble entity family and its
// per-scrobbler submission tracking table.
type ScrobbleService struct {
	store *store.Store
}

// NewScrobbleService constructs the scrobble service over s.
func NewScrobbleService(s *store.Store) *ScrobbleService {
	return &ScrobbleService{store: s}
}

func scanScrobble(row rowScanner) (Scrobble, error) {
	var rawID, userID, trackID uint32
	var listenedAt, createdAt time.Time
	var listenDurationMS int64
	var clientName sql.NullString
	if err := row.Scan(&rawID, &userID, &trackID, &listenedAt, &listenDurationMS, &clientName, &createdAt); err != nil {
		return Scrobble{}, err
	}
	s := Scrobble{
		ID:               ids.NewScrobbleID(rawID),
		UserID:           ids.NewUserID(userID),
		TrackID:          ids.NewTrackID(trackID),
		ListenedAt:       listenedAt,
		ListenDurationMS: listenDurationMS,
		CreatedAt:        createdAt,
	}
	if clientName.Valid {
		s.ClientName = &clientName.String
	}
	return s, nil
}

// ListByUser returns a user's scrobbles, most recent first.
func (s *ScrobbleService) ListByUser(ctx context.Context, userID ids.UserID) ([]Scrobble, error) {
	w := store.ListWhere(ctx, s.store.Reader(), "scrobble", "user_id = ?", []any{userID.Sequence()}).OrderBy("ORDER BY listened_at DESC")
	return store.ScanTyped(ctx, w, func(r *sql.Rows) (Scrobble, error) { return scanScrobble(r) })
}

// Get fetches one scrobble by id.
func (s *ScrobbleService) Get(ctx context.Context, id ids.ScrobbleID) (Scrobble, error) {
	return store.Get(ctx, s.store.Reader(), "scrobble", id.Sequence(), func(r *sql.Rows) (Scrobble, error) { return scanScrobble(r) })
}

// ScrobbleCreate is the input to Create.
type ScrobbleCreate struct {
	UserID           ids.UserID
	TrackID          ids.TrackID
	ListenedAt       time.Time
	ListenDurationMS int64
	ClientName       *string
}

// Create inserts a scrobble row. Per-scrobbler submissions are recorded
// separately via MarkSubmitted as the dispatch worker succeeds against
// each configured scrobbler (spec §4.10).
func (s *ScrobbleService) Create(ctx context.Context, in ScrobbleCreate) (Scrobble, error) {
	start := time.Now()
	defer func() {
		metrics.CatalogOperationDuration.WithLabelValues("scrobble", "create").Observe(time.Since(start).Seconds())
	}()

	var created Scrobble
	err := s.store.WithTx(ctx, func(tx *sql.Tx) error {
		seqRow := tx.QueryRowContext(ctx, "SELECT nextval('scrobble_seq')")
		var seq int64
		if err := seqRow.Scan(&seq); err != nil {
			return sonarerr.WrapInternal(err, "allocate scrobble id")
		}
		_, err := tx.ExecContext(ctx,
			"INSERT INTO scrobble (id, user_id, track_id, listened_at, listen_duration_ms, client_name) VALUES (?, ?, ?, ?, ?, ?)",
			seq, in.UserID.Sequence(), in.TrackID.Sequence(), in.ListenedAt, in.ListenDurationMS, in.ClientName)
		if err != nil {
			return sonarerr.WrapInternal(err, "insert scrobble")
		}
		row := tx.QueryRowContext(ctx, "SELECT * FROM scrobble WHERE id = ?", seq)
		sc, err := scanScrobble(row)
		if err != nil {
			return sonarerr.WrapInternal(err, "read back created scrobble")
		}
		created = sc
		return nil
	})
	if err != nil {
		metrics.CatalogOperationErrors.WithLabelValues("scrobble", "create", sonarerr.KindOf(err).String()).Inc()
		return Scrobble{}, err
	}
	return created, nil
}

// PendingSubmissions returns scrobble ids that have not yet been recorded
// as submitted to scrobbler, used by the dispatch worker to find its
// backlog. userID narrows the scan to one user's scrobbles, for
// scrobblers that are scoped to a single linked account (spec §4.10
// "optionally filtered by user when the scrobbler is user-scoped");
// pass nil for a global scrobbler.
func (s *ScrobbleService) PendingSubmissions(ctx context.Context, scrobbler string, userID *ids.UserID, limit int) ([]ids.ScrobbleID, error) {
	query := `
		SELECT sc.id FROM scrobble sc
		WHERE NOT EXISTS (
			SELECT 1 FROM scrobble_submission ss WHERE ss.scrobble_id = sc.id AND ss.scrobbler = ?
		)
	`
	args := []any{scrobbler}
	if userID != nil {
		query += " AND sc.user_id = ?"
		args = append(args, userID.Sequence())
	}
	query += " ORDER BY sc.listened_at LIMIT ?"
	args = append(args, limit)

	rows, err := s.store.Reader().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, sonarerr.WrapInternal(err, "list pending submissions")
	}
	defer rows.Close()

	var out []ids.ScrobbleID
	for rows.Next() {
		var rawID uint32
		if err := rows.Scan(&rawID); err != nil {
			return nil, sonarerr.WrapInternal(err, "scan pending submission")
		}
		out = append(out, ids.NewScrobbleID(rawID))
	}
	return out, rows.Err()
}

// Delete removes a scrobble and its per-scrobbler submission records.
func (s *ScrobbleService) Delete(ctx context.Context, id ids.ScrobbleID) error {
	err := s.store.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM scrobble_submission WHERE scrobble_id = ?", id.Sequence()); err != nil {
			return sonarerr.WrapInternal(err, "delete scrobble submissions")
		}
		res, err := tx.ExecContext(ctx, "DELETE FROM scrobble WHERE id = ?", id.Sequence())
		if err != nil {
			return sonarerr.WrapInternal(err, "delete scrobble")
		}
		n, err := res.RowsAffected()
		if err != nil {
			return sonarerr.WrapInternal(err, "check delete scrobble result")
		}
		if n == 0 {
			return sonarerr.NotFoundf("no scrobble with id %s", id)
		}
		return nil
	})
	if err != nil {
		metrics.CatalogOperationErrors.WithLabelValues("scrobble", "delete", sonarerr.KindOf(err).String()).Inc()
	}
	return err
}

// MarkSubmitted records that scrobbleID was successfully submitted to
// scrobbler, idempotent under retries.
func (s *ScrobbleService) MarkSubmitted(ctx context.Context, scrobbleID ids.ScrobbleID, scrobbler string) error {
	_, err := s.store.Reader().ExecContext(ctx, `
		INSERT INTO scrobble_submission (scrobble_id, scrobbler) VALUES (?, ?)
		ON CONFLICT (scrobble_id, scrobbler) DO NOTHING
	`, scrobbleID.Sequence(), scrobbler)
	if err != nil {
		return sonarerr.WrapInternal(err, "mark scrobble submitted")
	}
	return nil
}
