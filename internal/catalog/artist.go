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

// Artist is the post-insert/post-update view of an artist row plus its
// derived aggregate columns (spec §3).
type Artist struct {
	ID         ids.ArtistID
	Name       string
	CoverArtID *ids.ImageID
	CreatedAt  time.Time

	AlbumCount  int64
	ListenCount int64
}

// ArtistService implements the artist entity family (spec §4.4).
type ArtistService struct {
	store *store.Store
}

// NewArtistService constructs the artist service over s.
func NewArtistService(s *store.Store) *ArtistService {
	return &ArtistService{store: s}
}

const artistNamespace = "artist"

func scanArtist(row rowScanner) (Artist, error) {
	var rawID uint32
	var name string
	var coverArtID sql.NullInt64
	var createdAt time.Time
	if err := row.Scan(&rawID, &name, &coverArtID, &createdAt); err != nil {
		return Artist{}, err
	}
	a := Artist{ID: ids.NewArtistID(rawID), Name: name, CreatedAt: createdAt}
	if coverArtID.Valid {
		id := ids.NewImageID(uint32(coverArtID.Int64))
		a.CoverArtID = &id
	}
	return a, nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows, letting scan
// helpers serve both Get (single row) and List/GetBulk (row iterator).
type rowScanner interface {
	Scan(dest ...any) error
}

func (s *ArtistService) loadAggregate(ctx context.Context, a *Artist) error {
	row := s.store.Reader().QueryRowContext(ctx,
		"SELECT album_count, listen_count FROM artist_aggregate WHERE artist_id = ?", a.ID.Sequence())
	if err := row.Scan(&a.AlbumCount, &a.ListenCount); err != nil {
		if err == sql.ErrNoRows {
			return nil
		}
		return sonarerr.WrapInternal(err, "load artist aggregate")
	}
	return nil
}

// List returns every artist, ordered by id.
func (s *ArtistService) List(ctx context.Context) ([]Artist, error) {
	start := time.Now()
	defer func() {
		metrics.CatalogOperationDuration.WithLabelValues("artist", "list").Observe(time.Since(start).Seconds())
	}()

	artists, err := store.QueryAndScan(ctx, s.store.Reader(), "SELECT * FROM artist ORDER BY id", nil,
		func(r *sql.Rows) (Artist, error) { return scanArtist(r) })
	if err != nil {
		metrics.CatalogOperationErrors.WithLabelValues("artist", "list", sonarerr.KindOf(err).String()).Inc()
		return nil, err
	}
	for i := range artists {
		if err := s.loadAggregate(ctx, &artists[i]); err != nil {
			return nil, err
		}
	}
	return artists, nil
}

// Get fetches one artist by id.
func (s *ArtistService) Get(ctx context.Context, id ids.ArtistID) (Artist, error) {
	a, err := store.Get(ctx, s.store.Reader(), "artist", id.Sequence(),
		func(r *sql.Rows) (Artist, error) { return scanArtist(r) })
	if err != nil {
		metrics.CatalogOperationErrors.WithLabelValues("artist", "get", sonarerr.KindOf(err).String()).Inc()
		return Artist{}, err
	}
	if err := s.loadAggregate(ctx, &a); err != nil {
		return Artist{}, err
	}
	return a, nil
}

// Properties returns every property currently set on an artist, keyed by
// property key. Used by internal/metadata to recover a provider's
// external id (stored as a property) before querying that provider.
func (s *ArtistService) Properties(ctx context.Context, id ids.ArtistID) (map[string]string, error) {
	return s.store.Properties().List(ctx, artistNamespace, id.Sequence(), nil)
}

// GetBulk fetches artists by id, preserving order and duplicates (spec
// §4.2/§4.4).
func (s *ArtistService) GetBulk(ctx context.Context, idList []ids.ArtistID) ([]Artist, error) {
	raw := make([]uint32, len(idList))
	for i, id := range idList {
		raw[i] = id.Sequence()
	}
	artists, err := store.GetBulk(ctx, s.store.Reader(), "artist", raw,
		func(r *sql.Rows) (Artist, error) { return scanArtist(r) },
		func(a Artist) uint32 { return a.ID.Sequence() })
	if err != nil {
		return nil, err
	}
	for i := range artists {
		if err := s.loadAggregate(ctx, &artists[i]); err != nil {
			return nil, err
		}
	}
	return artists, nil
}

// ArtistCreate is the input to Create.
type ArtistCreate struct {
	Name       string
	CoverArtID *ids.ImageID
	Properties []PropertyUpdate
	Genres     []string
}

// Create inserts a new artist row, its property set, and its genre set in
// one transaction (spec §4.4 "create").
func (s *ArtistService) Create(ctx context.Context, in ArtistCreate) (Artist, error) {
	start := time.Now()
	defer func() {
		metrics.CatalogOperationDuration.WithLabelValues("artist", "create").Observe(time.Since(start).Seconds())
	}()

	if in.Name == "" {
		return Artist{}, sonarerr.Invalidf("artist name must not be empty")
	}
	genres, err := validateGenreSet(in.Genres)
	if err != nil {
		return Artist{}, err
	}

	var created Artist
	err = s.store.WithTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, "SELECT nextval('artist_seq')")
		var seq int64
		if err := row.Scan(&seq); err != nil {
			return sonarerr.WrapInternal(err, "allocate artist id")
		}

		var coverArg any
		if in.CoverArtID != nil {
			coverArg = *in.CoverArtID
		}
		if _, err := tx.ExecContext(ctx, "INSERT INTO artist (id, name, cover_art_id) VALUES (?, ?, ?)", seq, in.Name, coverArg); err != nil {
			return sonarerr.WrapInternal(err, "insert artist")
		}

		if err := applyPropertyUpdates(ctx, tx, s.store.Properties(), artistNamespace, uint32(seq), in.Properties, nil); err != nil {
			return err
		}
		if err := s.store.Genres().Replace(ctx, tx, artistNamespace, uint32(seq), genres); err != nil {
			return err
		}

		row = tx.QueryRowContext(ctx, "SELECT * FROM artist WHERE id = ?", seq)
		a, err := scanArtist(row)
		if err != nil {
			return sonarerr.WrapInternal(err, "read back created artist")
		}
		created = a
		return nil
	})
	if err != nil {
		metrics.CatalogOperationErrors.WithLabelValues("artist", "create", sonarerr.KindOf(err).String()).Inc()
		return Artist{}, err
	}
	return created, nil
}

// FindOrCreateByName is a read-then-create inside one transaction; a
// concurrent create racing on the same name is resolved by re-reading the
// unique-constraint winner (spec §4.4).
func (s *ArtistService) FindOrCreateByName(ctx context.Context, name string) (Artist, error) {
	if name == "" {
		return Artist{}, sonarerr.Invalidf("artist name must not be empty")
	}

	var result Artist
	err := s.store.WithTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, "SELECT * FROM artist WHERE name = ?", name)
		if a, err := scanArtist(row); err == nil {
			result = a
			return nil
		} else if err != sql.ErrNoRows {
			return sonarerr.WrapInternal(err, "find artist by name")
		}

		seqRow := tx.QueryRowContext(ctx, "SELECT nextval('artist_seq')")
		var seq int64
		if err := seqRow.Scan(&seq); err != nil {
			return sonarerr.WrapInternal(err, "allocate artist id")
		}

		_, err := tx.ExecContext(ctx, "INSERT INTO artist (id, name) VALUES (?, ?) ON CONFLICT (name) DO NOTHING", seq, name)
		if err != nil {
			return sonarerr.WrapInternal(err, "insert artist")
		}

		row = tx.QueryRowContext(ctx, "SELECT * FROM artist WHERE name = ?", name)
		a, err := scanArtist(row)
		if err != nil {
			return sonarerr.WrapInternal(err, "read back artist after find-or-create")
		}
		result = a
		return nil
	})
	if err != nil {
		return Artist{}, err
	}
	return result, nil
}

// ArtistUpdate is the input to Update; absent ValueUpdates default to
// Unchanged.
type ArtistUpdate struct {
	Name       ids.ValueUpdate[string]
	CoverArtID ids.ValueUpdate[ids.ID]
	Properties []PropertyUpdate
	Genres     []GenreUpdate
}

// Update applies each field's ValueUpdate, then the property/genre update
// lists, returning the post-update entity (spec §4.4 "update").
func (s *ArtistService) Update(ctx context.Context, id ids.ArtistID, in ArtistUpdate) (Artist, error) {
	nameClause, err := store.ApplyStringUpdate("name", in.Name)
	if err != nil {
		return Artist{}, err
	}
	coverClause := store.ApplyNullableIDUpdate("cover_art_id", in.CoverArtID)

	var updated Artist
	err = s.store.WithTx(ctx, func(tx *sql.Tx) error {
		if query, args, ok := store.BuildUpdate("artist", id.Sequence(), nameClause, coverClause); ok {
			if _, err := tx.ExecContext(ctx, query, args...); err != nil {
				return sonarerr.WrapInternal(err, "update artist")
			}
		}

		if err := applyPropertyUpdates(ctx, tx, s.store.Properties(), artistNamespace, id.Sequence(), in.Properties, nil); err != nil {
			return err
		}
		if err := applyGenreUpdates(ctx, tx, s.store.Genres(), artistNamespace, id.Sequence(), in.Genres); err != nil {
			return err
		}

		row := tx.QueryRowContext(ctx, "SELECT * FROM artist WHERE id = ?", id.Sequence())
		a, err := scanArtist(row)
		if err != nil {
			if err == sql.ErrNoRows {
				return sonarerr.NotFoundf("no artist with id %s", id)
			}
			return sonarerr.WrapInternal(err, "read back updated artist")
		}
		updated = a
		return nil
	})
	if err != nil {
		metrics.CatalogOperationErrors.WithLabelValues("artist", "update", sonarerr.KindOf(err).String()).Inc()
		return Artist{}, err
	}
	if err := s.loadAggregate(ctx, &updated); err != nil {
		return Artist{}, err
	}
	return updated, nil
}

// Delete removes the artist row and cascades down through every album and
// track it owns, clearing every dependent join along the way (spec §4.4's
// cascade rule).
func (s *ArtistService) Delete(ctx context.Context, id ids.ArtistID) error {
	err := s.store.WithTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, "SELECT id FROM album WHERE artist_id = ?", id.Sequence())
		if err != nil {
			return sonarerr.WrapInternal(err, "list artist albums")
		}
		var albumIDs []ids.AlbumID
		for rows.Next() {
			var seq uint32
			if err := rows.Scan(&seq); err != nil {
				rows.Close()
				return sonarerr.WrapInternal(err, "scan artist album id")
			}
			albumIDs = append(albumIDs, ids.NewAlbumID(seq))
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return sonarerr.WrapInternal(err, "iterate artist albums")
		}
		rows.Close()

		for _, albumID := range albumIDs {
			if _, err := deleteAlbumRow(ctx, tx, s.store, albumID); err != nil {
				return err
			}
		}

		if _, err := tx.ExecContext(ctx, "DELETE FROM favorite WHERE target_id = ?", id.Uint32()); err != nil {
			return sonarerr.WrapInternal(err, "delete artist favorites")
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM pin WHERE target_id = ?", id.Uint32()); err != nil {
			return sonarerr.WrapInternal(err, "delete artist pins")
		}
		if err := s.store.Properties().DeleteAll(ctx, tx, artistNamespace, id.Sequence()); err != nil {
			return err
		}
		if err := s.store.Genres().DeleteAll(ctx, tx, artistNamespace, id.Sequence()); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, "DELETE FROM artist WHERE id = ?", id.Sequence())
		if err != nil {
			return sonarerr.WrapInternal(err, "delete artist")
		}
		n, err := res.RowsAffected()
		if err != nil {
			return sonarerr.WrapInternal(err, "check delete artist result")
		}
		if n == 0 {
			return sonarerr.NotFoundf("no artist with id %s", id)
		}
		return nil
	})
	if err != nil {
		metrics.CatalogOperationErrors.WithLabelValues("artist", "delete", sonarerr.KindOf(err).String()).Inc()
	}
	return err
}
