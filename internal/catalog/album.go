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

// Album is the post-insert/post-update view of an album row plus its
// derived aggregate columns.
type Album struct {
	ID         ids.AlbumID
	Name       string
	ArtistID   ids.ArtistID
	CoverArtID *ids.ImageID
	CreatedAt  time.Time

	TrackCount  int64
	DurationMS  int64
	ListenCount int64
}

// AlbumService implements the album entity family (spec §4.4).
type AlbumService struct {
	store *store.Store
}

// NewAlbumService constructs the album service over s.
func NewAlbumService(s *store.Store) *AlbumService {
	return &AlbumService{store: s}
}

const albumNamespace = "album"

func scanAlbum(row rowScanner) (Album, error) {
	var rawID, artistID uint32
	var name string
	var coverArtID sql.NullInt64
	var createdAt time.Time
	if err := row.Scan(&rawID, &name, &artistID, &coverArtID, &createdAt); err != nil {
		return Album{}, err
	}
	a := Album{
		ID:        ids.NewAlbumID(rawID),
		Name:      name,
		ArtistID:  ids.NewArtistID(artistID),
		CreatedAt: createdAt,
	}
	if coverArtID.Valid {
		id := ids.NewImageID(uint32(coverArtID.Int64))
		a.CoverArtID = &id
	}
	return a, nil
}

func (s *AlbumService) loadAggregate(ctx context.Context, a *Album) error {
	row := s.store.Reader().QueryRowContext(ctx,
		"SELECT track_count, duration_ms, listen_count FROM album_aggregate WHERE album_id = ?", a.ID.Sequence())
	if err := row.Scan(&a.TrackCount, &a.DurationMS, &a.ListenCount); err != nil {
		if err == sql.ErrNoRows {
			return nil
		}
		return sonarerr.WrapInternal(err, "load album aggregate")
	}
	return nil
}

// List returns every album.
func (s *AlbumService) List(ctx context.Context) ([]Album, error) {
	albums, err := store.List(ctx, s.store.Reader(), "album", func(r *sql.Rows) (Album, error) { return scanAlbum(r) })
	if err != nil {
		return nil, err
	}
	for i := range albums {
		if err := s.loadAggregate(ctx, &albums[i]); err != nil {
			return nil, err
		}
	}
	return albums, nil
}

// ListByArtist returns every album by the given artist, in id order.
func (s *AlbumService) ListByArtist(ctx context.Context, artistID ids.ArtistID) ([]Album, error) {
	w := store.ListWhere(ctx, s.store.Reader(), "album", "artist_id = ?", []any{artistID.Sequence()})
	albums, err := store.ScanTyped(ctx, w, func(r *sql.Rows) (Album, error) { return scanAlbum(r) })
	if err != nil {
		return nil, err
	}
	for i := range albums {
		if err := s.loadAggregate(ctx, &albums[i]); err != nil {
			return nil, err
		}
	}
	return albums, nil
}

// Properties returns every property currently set on an album, keyed by
// property key.
func (s *AlbumService) Properties(ctx context.Context, id ids.AlbumID) (map[string]string, error) {
	return s.store.Properties().List(ctx, albumNamespace, id.Sequence(), nil)
}

// Get fetches one album by id.
func (s *AlbumService) Get(ctx context.Context, id ids.AlbumID) (Album, error) {
	a, err := store.Get(ctx, s.store.Reader(), "album", id.Sequence(), func(r *sql.Rows) (Album, error) { return scanAlbum(r) })
	if err != nil {
		return Album{}, err
	}
	if err := s.loadAggregate(ctx, &a); err != nil {
		return Album{}, err
	}
	return a, nil
}

// GetBulk fetches albums by id, preserving order and duplicates.
func (s *AlbumService) GetBulk(ctx context.Context, idList []ids.AlbumID) ([]Album, error) {
	raw := make([]uint32, len(idList))
	for i, id := range idList {
		raw[i] = id.Sequence()
	}
	albums, err := store.GetBulk(ctx, s.store.Reader(), "album", raw,
		func(r *sql.Rows) (Album, error) { return scanAlbum(r) },
		func(a Album) uint32 { return a.ID.Sequence() })
	if err != nil {
		return nil, err
	}
	for i := range albums {
		if err := s.loadAggregate(ctx, &albums[i]); err != nil {
			return nil, err
		}
	}
	return albums, nil
}

// AlbumCreate is the input to Create.
type AlbumCreate struct {
	Name       string
	ArtistID   ids.ArtistID
	CoverArtID *ids.ImageID
	Properties []PropertyUpdate
	Genres     []string
}

// Create inserts a new album row under an existing artist.
func (s *AlbumService) Create(ctx context.Context, in AlbumCreate) (Album, error) {
	if in.Name == "" {
		return Album{}, sonarerr.Invalidf("album name must not be empty")
	}
	genres, err := validateGenreSet(in.Genres)
	if err != nil {
		return Album{}, err
	}

	var created Album
	err = s.store.WithTx(ctx, func(tx *sql.Tx) error {
		seqRow := tx.QueryRowContext(ctx, "SELECT nextval('album_seq')")
		var seq int64
		if err := seqRow.Scan(&seq); err != nil {
			return sonarerr.WrapInternal(err, "allocate album id")
		}

		var coverArg any
		if in.CoverArtID != nil {
			coverArg = *in.CoverArtID
		}
		_, err := tx.ExecContext(ctx, "INSERT INTO album (id, name, artist_id, cover_art_id) VALUES (?, ?, ?, ?)",
			seq, in.Name, in.ArtistID.Sequence(), coverArg)
		if err != nil {
			return sonarerr.WrapInternal(err, "insert album")
		}

		if err := applyPropertyUpdates(ctx, tx, s.store.Properties(), albumNamespace, uint32(seq), in.Properties, nil); err != nil {
			return err
		}
		if err := s.store.Genres().Replace(ctx, tx, albumNamespace, uint32(seq), genres); err != nil {
			return err
		}

		row := tx.QueryRowContext(ctx, "SELECT * FROM album WHERE id = ?", seq)
		a, err := scanAlbum(row)
		if err != nil {
			return sonarerr.WrapInternal(err, "read back created album")
		}
		created = a
		return nil
	})
	if err != nil {
		metrics.CatalogOperationErrors.WithLabelValues("album", "create", sonarerr.KindOf(err).String()).Inc()
		return Album{}, err
	}
	return created, nil
}

// FindOrCreateByName finds an album by (artist, name) or creates it,
// inside one transaction (spec §4.4).
func (s *AlbumService) FindOrCreateByName(ctx context.Context, artistID ids.ArtistID, name string) (Album, error) {
	if name == "" {
		return Album{}, sonarerr.Invalidf("album name must not be empty")
	}

	var result Album
	err := s.store.WithTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, "SELECT * FROM album WHERE artist_id = ? AND name = ?", artistID.Sequence(), name)
		if a, err := scanAlbum(row); err == nil {
			result = a
			return nil
		} else if err != sql.ErrNoRows {
			return sonarerr.WrapInternal(err, "find album by name")
		}

		seqRow := tx.QueryRowContext(ctx, "SELECT nextval('album_seq')")
		var seq int64
		if err := seqRow.Scan(&seq); err != nil {
			return sonarerr.WrapInternal(err, "allocate album id")
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO album (id, name, artist_id) VALUES (?, ?, ?)
			ON CONFLICT (artist_id, name) DO NOTHING
		`, seq, name, artistID.Sequence())
		if err != nil {
			return sonarerr.WrapInternal(err, "insert album")
		}

		row = tx.QueryRowContext(ctx, "SELECT * FROM album WHERE artist_id = ? AND name = ?", artistID.Sequence(), name)
		a, err := scanAlbum(row)
		if err != nil {
			return sonarerr.WrapInternal(err, "read back album after find-or-create")
		}
		result = a
		return nil
	})
	if err != nil {
		return Album{}, err
	}
	return result, nil
}

// AlbumUpdate is the input to Update.
type AlbumUpdate struct {
	Name       ids.ValueUpdate[string]
	ArtistID   ids.ValueUpdate[ids.ID]
	CoverArtID ids.ValueUpdate[ids.ID]
	Properties []PropertyUpdate
	Genres     []GenreUpdate
}

// Update applies each field's ValueUpdate, then property/genre updates.
func (s *AlbumService) Update(ctx context.Context, id ids.AlbumID, in AlbumUpdate) (Album, error) {
	nameClause, err := store.ApplyStringUpdate("name", in.Name)
	if err != nil {
		return Album{}, err
	}
	artistClause, err := store.ApplyIDUpdate("artist_id", in.ArtistID)
	if err != nil {
		return Album{}, err
	}
	coverClause := store.ApplyNullableIDUpdate("cover_art_id", in.CoverArtID)

	var updated Album
	err = s.store.WithTx(ctx, func(tx *sql.Tx) error {
		if query, args, ok := store.BuildUpdate("album", id.Sequence(), nameClause, artistClause, coverClause); ok {
			if _, err := tx.ExecContext(ctx, query, args...); err != nil {
				return sonarerr.WrapInternal(err, "update album")
			}
		}
		if err := applyPropertyUpdates(ctx, tx, s.store.Properties(), albumNamespace, id.Sequence(), in.Properties, nil); err != nil {
			return err
		}
		if err := applyGenreUpdates(ctx, tx, s.store.Genres(), albumNamespace, id.Sequence(), in.Genres); err != nil {
			return err
		}

		row := tx.QueryRowContext(ctx, "SELECT * FROM album WHERE id = ?", id.Sequence())
		a, err := scanAlbum(row)
		if err != nil {
			if err == sql.ErrNoRows {
				return sonarerr.NotFoundf("no album with id %s", id)
			}
			return sonarerr.WrapInternal(err, "read back updated album")
		}
		updated = a
		return nil
	})
	if err != nil {
		metrics.CatalogOperationErrors.WithLabelValues("album", "update", sonarerr.KindOf(err).String()).Inc()
		return Album{}, err
	}
	if err := s.loadAggregate(ctx, &updated); err != nil {
		return Album{}, err
	}
	return updated, nil
}

// deleteAlbumRow cascades to every track on the album, then clears the
// album's own favorites, pins, properties, and genres before deleting the
// album row, returning how many album rows were removed. Called both by
// AlbumService.Delete and by ArtistService cascading down from a deleted
// artist.
func deleteAlbumRow(ctx context.Context, tx *sql.Tx, st *store.Store, id ids.AlbumID) (int64, error) {
	rows, err := tx.QueryContext(ctx, "SELECT id FROM track WHERE album_id = ?", id.Sequence())
	if err != nil {
		return 0, sonarerr.WrapInternal(err, "list album tracks")
	}
	var trackIDs []ids.TrackID
	for rows.Next() {
		var seq uint32
		if err := rows.Scan(&seq); err != nil {
			rows.Close()
			return 0, sonarerr.WrapInternal(err, "scan album track id")
		}
		trackIDs = append(trackIDs, ids.NewTrackID(seq))
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return 0, sonarerr.WrapInternal(err, "iterate album tracks")
	}
	rows.Close()

	for _, trackID := range trackIDs {
		if _, err := deleteTrackRow(ctx, tx, st, trackID); err != nil {
			return 0, err
		}
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM favorite WHERE target_id = ?", id.Uint32()); err != nil {
		return 0, sonarerr.WrapInternal(err, "delete album favorites")
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM pin WHERE target_id = ?", id.Uint32()); err != nil {
		return 0, sonarerr.WrapInternal(err, "delete album pins")
	}
	if err := st.Properties().DeleteAll(ctx, tx, albumNamespace, id.Sequence()); err != nil {
		return 0, err
	}
	if err := st.Genres().DeleteAll(ctx, tx, albumNamespace, id.Sequence()); err != nil {
		return 0, err
	}
	res, err := tx.ExecContext(ctx, "DELETE FROM album WHERE id = ?", id.Sequence())
	if err != nil {
		return 0, sonarerr.WrapInternal(err, "delete album")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, sonarerr.WrapInternal(err, "check delete album result")
	}
	return n, nil
}

// Delete removes the album row and cascades down through every track it
// owns (spec §4.4's cascade rule).
func (s *AlbumService) Delete(ctx context.Context, id ids.AlbumID) error {
	err := s.store.WithTx(ctx, func(tx *sql.Tx) error {
		n, err := deleteAlbumRow(ctx, tx, s.store, id)
		if err != nil {
			return err
		}
		if n == 0 {
			return sonarerr.NotFoundf("no album with id %s", id)
		}
		return nil
	})
	if err != nil {
		metrics.CatalogOperationErrors.WithLabelValues("album", "delete", sonarerr.KindOf(err).String()).Inc()
	}
	return err
}
