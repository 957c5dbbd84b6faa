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

// Favorite marks that a user favorited an arbitrary catalog entity; the
// target's kind is recovered from the tagged id itself (spec §3/§4.4).
type Favorite struct {
	UserID    ids.UserID
	TargetID  ids.ID
	CreatedAt time.Time
}

// FavoriteService implements the (user, target) favorite relation.
type FavoriteService struct {
	store *store.Store
}

// NewFavoriteService constructs the favorite service over s.
func NewFavoriteService(s *store.Store) *FavoriteService {
	return &FavoriteService{store: s}
}

// Add marks target as a favorite of user, no-op if already favorited.
func (s *FavoriteService) Add(ctx context.Context, userID ids.UserID, targetID ids.ID) error {
	_, err := s.store.Reader().ExecContext(ctx, `
		INSERT INTO favorite (user_id, target_id) VALUES (?, ?)
		ON CONFLICT (user_id, target_id) DO NOTHING
	`, userID.Sequence(), uint32(targetID))
	if err != nil {
		metrics.CatalogOperationErrors.WithLabelValues("favorite", "add", sonarerr.KindOf(err).String()).Inc()
		return sonarerr.WrapInternal(err, "add favorite")
	}
	return nil
}

// Remove unmarks target as a favorite of user.
func (s *FavoriteService) Remove(ctx context.Context, userID ids.UserID, targetID ids.ID) error {
	_, err := s.store.Reader().ExecContext(ctx, "DELETE FROM favorite WHERE user_id = ? AND target_id = ?", userID.Sequence(), uint32(targetID))
	if err != nil {
		return sonarerr.WrapInternal(err, "remove favorite")
	}
	return nil
}

// List returns every favorite a user has, most recent first.
func (s *FavoriteService) List(ctx context.Context, userID ids.UserID) ([]Favorite, error) {
	rows, err := s.store.Reader().QueryContext(ctx,
		"SELECT user_id, target_id, created_at FROM favorite WHERE user_id = ? ORDER BY created_at DESC", userID.Sequence())
	if err != nil {
		return nil, sonarerr.WrapInternal(err, "list favorites")
	}
	defer rows.Close()

	var out []Favorite
	for rows.Next() {
		var uid, rawTarget uint32
		var createdAt time.Time
		if err := rows.Scan(&uid, &rawTarget, &createdAt); err != nil {
			return nil, sonarerr.WrapInternal(err, "scan favorite row")
		}
		out = append(out, Favorite{UserID: ids.NewUserID(uid), TargetID: ids.ID(rawTarget), CreatedAt: createdAt})
	}
	return out, rows.Err()
}

// IsFavorite reports whether user has favorited target.
func (s *FavoriteService) IsFavorite(ctx context.Context, userID ids.UserID, targetID ids.ID) (bool, error) {
	row := s.store.Reader().QueryRowContext(ctx, "SELECT 1 FROM favorite WHERE user_id = ? AND target_id = ?", userID.Sequence(), uint32(targetID))
	var one int
	if err := row.Scan(&one); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, sonarerr.WrapInternal(err, "check favorite")
	}
	return true, nil
}
