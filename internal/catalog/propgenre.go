// Sonar - self-hosted music library server
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sonarhost/sonar

package catalog

import (
	"context"
	"database/sql"

	"github.com/sonarhost/sonar/internal/ids"
	"github.com/sonarhost/sonar/internal/store"
)

// applyPropertyUpdates validates and applies a property update list inside
// tx, the shape every entity's create/update uses (spec §4.4).
func applyPropertyUpdates(ctx context.Context, tx *sql.Tx, props *store.PropertyStore, namespace string, identifier uint32, updates []PropertyUpdate, userID *ids.ID) error {
	for _, u := range updates {
		key, err := ids.NewPropertyKey(u.Key)
		if err != nil {
			return err
		}
		switch u.Action {
		case PropertySet:
			value, err := ids.NewPropertyValue(u.Value)
			if err != nil {
				return err
			}
			if err := props.Set(ctx, tx, namespace, identifier, key, value, userID); err != nil {
				return err
			}
		case PropertyRemove:
			if err := props.Delete(ctx, tx, namespace, identifier, key, userID); err != nil {
				return err
			}
		}
	}
	return nil
}

// applyGenreUpdates validates and applies a genre update list inside tx.
func applyGenreUpdates(ctx context.Context, tx *sql.Tx, genres *store.GenreStore, namespace string, identifier uint32, updates []GenreUpdate) error {
	for _, u := range updates {
		genre, err := ids.NewGenre(u.Genre)
		if err != nil {
			return err
		}
		switch u.Action {
		case GenreAdd:
			if err := genres.Add(ctx, tx, namespace, identifier, genre); err != nil {
				return err
			}
		case GenreRemove:
			if err := genres.Remove(ctx, tx, namespace, identifier, genre); err != nil {
				return err
			}
		}
	}
	return nil
}

// validateGenreSet validates a full genre set passed at create time.
func validateGenreSet(genres []string) ([]string, error) {
	out := make([]string, 0, len(genres))
	for _, g := range genres {
		v, err := ids.NewGenre(g)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
