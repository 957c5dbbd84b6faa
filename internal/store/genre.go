// Sonar - self-hosted music library server
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sonarhost/sonar

package store

import (
	"context"
	"database/sql"

	"github.com/sonarhost/sonar/internal/sonarerr"
)

// GenreStore is the generic tagging layer keyed on (namespace, identifier)
// shared by artist, album, and track (spec §3 "Genres").
type GenreStore struct {
	store *Store
}

// Genres returns the genre sub-service bound to s.
func (s *Store) Genres() *GenreStore {
	return &GenreStore{store: s}
}

// List returns every genre attached to (namespace, identifier), sorted
// alphabetically.
func (g *GenreStore) List(ctx context.Context, namespace string, identifier uint32) ([]string, error) {
	rows, err := g.store.Reader().QueryContext(ctx, "SELECT genre FROM genre WHERE namespace = ? AND identifier = ? ORDER BY genre", namespace, identifier)
	if err != nil {
		return nil, sonarerr.WrapInternal(err, "list genres")
	}
	defer rows.Close()

	out := make([]string, 0)
	for rows.Next() {
		var genre string
		if err := rows.Scan(&genre); err != nil {
			return nil, sonarerr.WrapInternal(err, "scan genre row")
		}
		out = append(out, genre)
	}
	return out, rows.Err()
}

// Add attaches a genre, no-op if already present. Must run inside a
// Store.WithTx call.
func (g *GenreStore) Add(ctx context.Context, tx *sql.Tx, namespace string, identifier uint32, genre string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO genre (namespace, identifier, genre) VALUES (?, ?, ?)
		ON CONFLICT (namespace, identifier, genre) DO NOTHING
	`, namespace, identifier, genre)
	if err != nil {
		return sonarerr.WrapInternal(err, "add genre")
	}
	return nil
}

// Remove detaches a genre, if present.
func (g *GenreStore) Remove(ctx context.Context, tx *sql.Tx, namespace string, identifier uint32, genre string) error {
	_, err := tx.ExecContext(ctx, "DELETE FROM genre WHERE namespace = ? AND identifier = ? AND genre = ?", namespace, identifier, genre)
	if err != nil {
		return sonarerr.WrapInternal(err, "remove genre")
	}
	return nil
}

// Replace clears and re-sets the full genre set for an entity in one
// transaction, the operation catalog services expose as "set genres".
func (g *GenreStore) Replace(ctx context.Context, tx *sql.Tx, namespace string, identifier uint32, genres []string) error {
	if _, err := tx.ExecContext(ctx, "DELETE FROM genre WHERE namespace = ? AND identifier = ?", namespace, identifier); err != nil {
		return sonarerr.WrapInternal(err, "clear genres")
	}
	for _, genre := range genres {
		if err := g.Add(ctx, tx, namespace, identifier, genre); err != nil {
			return err
		}
	}
	return nil
}

// DeleteAll removes every genre tag attached to an entity, used on cascade
// delete.
func (g *GenreStore) DeleteAll(ctx context.Context, tx *sql.Tx, namespace string, identifier uint32) error {
	_, err := tx.ExecContext(ctx, "DELETE FROM genre WHERE namespace = ? AND identifier = ?", namespace, identifier)
	if err != nil {
		return sonarerr.WrapInternal(err, "delete all genres")
	}
	return nil
}
