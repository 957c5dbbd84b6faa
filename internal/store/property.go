// Sonar - self-hosted music library server
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sonarhost/sonar

package store

import (
	"context"
	"database/sql"

	"github.com/sonarhost/sonar/internal/ids"
	"github.com/sonarhost/sonar/internal/sonarerr"
)

// PropertyStore is the generic key/value annotation layer keyed on
// (namespace, identifier[, user]) that every catalog entity shares (spec
// §3 "Properties"). namespace is the entity kind name, e.g. "artist" or
// "track"; identifier is that entity's raw id sequence.
type PropertyStore struct {
	store *Store
}

// Properties returns the property sub-service bound to s.
func (s *Store) Properties() *PropertyStore {
	return &PropertyStore{store: s}
}

// Get returns a single property value, or a NotFound error if unset. A nil
// userID looks up the global (non-user-scoped) property.
func (p *PropertyStore) Get(ctx context.Context, namespace string, identifier uint32, key string, userID *ids.ID) (string, error) {
	q := p.store.Reader()
	var row *sql.Row
	if userID == nil {
		row = queryRow(ctx, q, "SELECT value FROM property WHERE namespace = ? AND identifier = ? AND key = ? AND user_id IS NULL", namespace, identifier, key)
	} else {
		row = queryRow(ctx, q, "SELECT value FROM property WHERE namespace = ? AND identifier = ? AND key = ? AND user_id = ?", namespace, identifier, key, *userID)
	}
	var value string
	if err := row.Scan(&value); err != nil {
		if err == sql.ErrNoRows {
			return "", sonarerr.NotFoundf("no property %s on %s:%d", key, namespace, identifier)
		}
		return "", sonarerr.WrapInternal(err, "get property")
	}
	return value, nil
}

// List returns every property set on (namespace, identifier) for the given
// scope (nil userID selects global properties only), as a key/value map.
func (p *PropertyStore) List(ctx context.Context, namespace string, identifier uint32, userID *ids.ID) (map[string]string, error) {
	var rows *sql.Rows
	var err error
	if userID == nil {
		rows, err = p.store.Reader().QueryContext(ctx, "SELECT key, value FROM property WHERE namespace = ? AND identifier = ? AND user_id IS NULL", namespace, identifier)
	} else {
		rows, err = p.store.Reader().QueryContext(ctx, "SELECT key, value FROM property WHERE namespace = ? AND identifier = ? AND user_id = ?", namespace, identifier, *userID)
	}
	if err != nil {
		return nil, sonarerr.WrapInternal(err, "list properties")
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, sonarerr.WrapInternal(err, "scan property row")
		}
		out[key] = value
	}
	return out, rows.Err()
}

// Set upserts a property value. Must run inside a Store.WithTx call so the
// property write lands atomically with whatever entity mutation triggered
// it (spec §4.2).
func (p *PropertyStore) Set(ctx context.Context, tx *sql.Tx, namespace string, identifier uint32, key, value string, userID *ids.ID) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO property (namespace, identifier, key, value, user_id)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (namespace, identifier, key, user_id) DO UPDATE SET value = excluded.value
	`, namespace, identifier, key, value, userIDArg(userID))
	if err != nil {
		return sonarerr.WrapInternal(err, "set property")
	}
	return nil
}

// Delete removes a single property, if present.
func (p *PropertyStore) Delete(ctx context.Context, tx *sql.Tx, namespace string, identifier uint32, key string, userID *ids.ID) error {
	_, err := tx.ExecContext(ctx, `
		DELETE FROM property WHERE namespace = ? AND identifier = ? AND key = ? AND user_id IS NOT DISTINCT FROM ?
	`, namespace, identifier, key, userIDArg(userID))
	if err != nil {
		return sonarerr.WrapInternal(err, "delete property")
	}
	return nil
}

// DeleteAll removes every property (global and user-scoped) attached to an
// entity, used when that entity itself is deleted (spec §4.2 cascade).
func (p *PropertyStore) DeleteAll(ctx context.Context, tx *sql.Tx, namespace string, identifier uint32) error {
	_, err := tx.ExecContext(ctx, "DELETE FROM property WHERE namespace = ? AND identifier = ?", namespace, identifier)
	if err != nil {
		return sonarerr.WrapInternal(err, "delete all properties")
	}
	return nil
}

func userIDArg(userID *ids.ID) any {
	if userID == nil {
		return nil
	}
	return *userID
}

func queryRow(ctx context.Context, q querier, query string, args ...any) *sql.Row {
	return q.QueryRowContext(ctx, query, args...)
}
