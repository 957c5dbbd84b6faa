// Sonar - self-hosted music library server
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sonarhost/sonar

package catalog

import (
	"context"
	"database/sql"

	"github.com/sonarhost/sonar/internal/ids"
	"github.com/sonarhost/sonar/internal/sonarerr"
	"github.com/sonarhost/sonar/internal/store"
)

// PinService implements the (user, target) pin relation: unlike Favorite it
// carries no timestamp, matching a user's homepage shortcut list rather
// than a listening history signal (spec §3/§4.4).
type PinService struct {
	store *store.Store
}

// NewPinService constructs the pin service over s.
func NewPinService(s *store.Store) *PinService {
	return &PinService{store: s}
}

// Add pins target for user, no-op if already pinned.
func (s *PinService) Add(ctx context.Context, userID ids.UserID, targetID ids.ID) error {
	_, err := s.store.Reader().ExecContext(ctx, `
		INSERT INTO pin (user_id, target_id) VALUES (?, ?)
		ON CONFLICT (user_id, target_id) DO NOTHING
	`, userID.Sequence(), uint32(targetID))
	if err != nil {
		return sonarerr.WrapInternal(err, "add pin")
	}
	return nil
}

// Remove unpins target for user.
func (s *PinService) Remove(ctx context.Context, userID ids.UserID, targetID ids.ID) error {
	_, err := s.store.Reader().ExecContext(ctx, "DELETE FROM pin WHERE user_id = ? AND target_id = ?", userID.Sequence(), uint32(targetID))
	if err != nil {
		return sonarerr.WrapInternal(err, "remove pin")
	}
	return nil
}

// List returns every target a user has pinned.
func (s *PinService) List(ctx context.Context, userID ids.UserID) ([]ids.ID, error) {
	rows, err := s.store.Reader().QueryContext(ctx, "SELECT target_id FROM pin WHERE user_id = ?", userID.Sequence())
	if err != nil {
		return nil, sonarerr.WrapInternal(err, "list pins")
	}
	defer rows.Close()

	var out []ids.ID
	for rows.Next() {
		var rawTarget uint32
		if err := rows.Scan(&rawTarget); err != nil {
			return nil, sonarerr.WrapInternal(err, "scan pin row")
		}
		out = append(out, ids.ID(rawTarget))
	}
	return out, rows.Err()
}

// IsPinned reports whether user has pinned target.
func (s *PinService) IsPinned(ctx context.Context, userID ids.UserID, targetID ids.ID) (bool, error) {
	row := s.store.Reader().QueryRowContext(ctx, "SELECT 1 FROM pin WHERE user_id = ? AND target_id = ?", userID.Sequence(), uint32(targetID))
	var one int
	if err := row.Scan(&one); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, sonarerr.WrapInternal(err, "check pin")
	}
	return true, nil
}
