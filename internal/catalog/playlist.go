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

// Playlist is an ordered, owner-scoped list of tracks; the same track may
// appear more than once (spec §3/§4.4).
type Playlist struct {
	ID          ids.PlaylistID
	Name        string
	OwnerUserID ids.UserID
	CoverArtID  *ids.ImageID
	CreatedAt   time.Time
}

// PlaylistService implements the playlist entity family, including the
// ordered track sequence and the duplicate operation (spec §4.4).
type PlaylistService struct {
	store *store.Store
}

// NewPlaylistService constructs the playlist service over s.
func NewPlaylistService(s *store.Store) *PlaylistService {
	return &PlaylistService{store: s}
}

const playlistNamespace = "playlist"

func scanPlaylist(row rowScanner) (Playlist, error) {
	var rawID, ownerID uint32
	var name string
	var coverArtID sql.NullInt64
	var createdAt time.Time
	if err := row.Scan(&rawID, &name, &ownerID, &coverArtID, &createdAt); err != nil {
		return Playlist{}, err
	}
	p := Playlist{ID: ids.NewPlaylistID(rawID), Name: name, OwnerUserID: ids.NewUserID(ownerID), CreatedAt: createdAt}
	if coverArtID.Valid {
		id := ids.NewImageID(uint32(coverArtID.Int64))
		p.CoverArtID = &id
	}
	return p, nil
}

// ListByOwner returns every playlist owned by the given user.
func (s *PlaylistService) ListByOwner(ctx context.Context, ownerID ids.UserID) ([]Playlist, error) {
	w := store.ListWhere(ctx, s.store.Reader(), "playlist", "owner_user_id = ?", []any{ownerID.Sequence()})
	return store.ScanTyped(ctx, w, func(r *sql.Rows) (Playlist, error) { return scanPlaylist(r) })
}

// Get fetches one playlist by id.
func (s *PlaylistService) Get(ctx context.Context, id ids.PlaylistID) (Playlist, error) {
	return store.Get(ctx, s.store.Reader(), "playlist", id.Sequence(), func(r *sql.Rows) (Playlist, error) { return scanPlaylist(r) })
}

// Tracks returns the playlist's track id sequence in position order,
// duplicates included.
func (s *PlaylistService) Tracks(ctx context.Context, id ids.PlaylistID) ([]ids.TrackID, error) {
	rows, err := s.store.Reader().QueryContext(ctx,
		"SELECT track_id FROM playlist_track WHERE playlist_id = ? ORDER BY position", id.Sequence())
	if err != nil {
		return nil, sonarerr.WrapInternal(err, "list playlist tracks")
	}
	defer rows.Close()

	var out []ids.TrackID
	for rows.Next() {
		var trackID uint32
		if err := rows.Scan(&trackID); err != nil {
			return nil, sonarerr.WrapInternal(err, "scan playlist track")
		}
		out = append(out, ids.NewTrackID(trackID))
	}
	return out, rows.Err()
}

// PlaylistCreate is the input to Create.
type PlaylistCreate struct {
	Name        string
	OwnerUserID ids.UserID
	CoverArtID  *ids.ImageID
	TrackIDs    []ids.TrackID
}

// Create inserts a new playlist row and its initial ordered track sequence.
func (s *PlaylistService) Create(ctx context.Context, in PlaylistCreate) (Playlist, error) {
	if in.Name == "" {
		return Playlist{}, sonarerr.Invalidf("playlist name must not be empty")
	}

	var created Playlist
	err := s.store.WithTx(ctx, func(tx *sql.Tx) error {
		seqRow := tx.QueryRowContext(ctx, "SELECT nextval('playlist_seq')")
		var seq int64
		if err := seqRow.Scan(&seq); err != nil {
			return sonarerr.WrapInternal(err, "allocate playlist id")
		}

		var coverArg any
		if in.CoverArtID != nil {
			coverArg = *in.CoverArtID
		}
		_, err := tx.ExecContext(ctx, "INSERT INTO playlist (id, name, owner_user_id, cover_art_id) VALUES (?, ?, ?, ?)",
			seq, in.Name, in.OwnerUserID.Sequence(), coverArg)
		if err != nil {
			return sonarerr.WrapInternal(err, "insert playlist")
		}

		if err := insertPlaylistTracks(ctx, tx, uint32(seq), 0, in.TrackIDs); err != nil {
			return err
		}

		row := tx.QueryRowContext(ctx, "SELECT * FROM playlist WHERE id = ?", seq)
		p, err := scanPlaylist(row)
		if err != nil {
			return sonarerr.WrapInternal(err, "read back created playlist")
		}
		created = p
		return nil
	})
	if err != nil {
		metrics.CatalogOperationErrors.WithLabelValues("playlist", "create", sonarerr.KindOf(err).String()).Inc()
		return Playlist{}, err
	}
	return created, nil
}

func insertPlaylistTracks(ctx context.Context, tx *sql.Tx, playlistID uint32, startPosition int, trackIDs []ids.TrackID) error {
	for i, trackID := range trackIDs {
		if _, err := tx.ExecContext(ctx, "INSERT INTO playlist_track (playlist_id, position, track_id) VALUES (?, ?, ?)",
			playlistID, startPosition+i, trackID.Sequence()); err != nil {
			return sonarerr.WrapInternal(err, "insert playlist track")
		}
	}
	return nil
}

// PlaylistUpdate is the input to Update. When ReplaceTracks is set,
// TrackIDs replaces the entire ordered sequence; otherwise TrackIDs is
// ignored.
type PlaylistUpdate struct {
	Name       ids.ValueUpdate[string]
	CoverArtID ids.ValueUpdate[ids.ID]
	TrackIDs   []ids.TrackID
	ReplaceTracks bool
}

// Update applies field ValueUpdates and, if ReplaceTracks is set, replaces
// the track sequence wholesale.
func (s *PlaylistService) Update(ctx context.Context, id ids.PlaylistID, in PlaylistUpdate) (Playlist, error) {
	nameClause, err := store.ApplyStringUpdate("name", in.Name)
	if err != nil {
		return Playlist{}, err
	}
	coverClause := store.ApplyNullableIDUpdate("cover_art_id", in.CoverArtID)

	var updated Playlist
	err = s.store.WithTx(ctx, func(tx *sql.Tx) error {
		if query, args, ok := store.BuildUpdate("playlist", id.Sequence(), nameClause, coverClause); ok {
			if _, err := tx.ExecContext(ctx, query, args...); err != nil {
				return sonarerr.WrapInternal(err, "update playlist")
			}
		}
		if in.ReplaceTracks {
			if _, err := tx.ExecContext(ctx, "DELETE FROM playlist_track WHERE playlist_id = ?", id.Sequence()); err != nil {
				return sonarerr.WrapInternal(err, "clear playlist tracks")
			}
			if err := insertPlaylistTracks(ctx, tx, id.Sequence(), 0, in.TrackIDs); err != nil {
				return err
			}
		}

		row := tx.QueryRowContext(ctx, "SELECT * FROM playlist WHERE id = ?", id.Sequence())
		p, err := scanPlaylist(row)
		if err != nil {
			if err == sql.ErrNoRows {
				return sonarerr.NotFoundf("no playlist with id %s", id)
			}
			return sonarerr.WrapInternal(err, "read back updated playlist")
		}
		updated = p
		return nil
	})
	if err != nil {
		metrics.CatalogOperationErrors.WithLabelValues("playlist", "update", sonarerr.KindOf(err).String()).Inc()
		return Playlist{}, err
	}
	return updated, nil
}

// Delete removes a playlist row and its track sequence.
func (s *PlaylistService) Delete(ctx context.Context, id ids.PlaylistID) error {
	err := s.store.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM playlist_track WHERE playlist_id = ?", id.Sequence()); err != nil {
			return sonarerr.WrapInternal(err, "delete playlist tracks")
		}
		if err := s.store.Properties().DeleteAll(ctx, tx, playlistNamespace, id.Sequence()); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, "DELETE FROM playlist WHERE id = ?", id.Sequence())
		if err != nil {
			return sonarerr.WrapInternal(err, "delete playlist")
		}
		n, err := res.RowsAffected()
		if err != nil {
			return sonarerr.WrapInternal(err, "check delete playlist result")
		}
		if n == 0 {
			return sonarerr.NotFoundf("no playlist with id %s", id)
		}
		return nil
	})
	if err != nil {
		metrics.CatalogOperationErrors.WithLabelValues("playlist", "delete", sonarerr.KindOf(err).String()).Inc()
	}
	return err
}

// Duplicate copies a playlist's row, cover, properties, and full track
// sequence under a new name and owner (spec §4.4 "duplicate").
func (s *PlaylistService) Duplicate(ctx context.Context, id ids.PlaylistID, newName string, newOwnerID ids.UserID) (Playlist, error) {
	if newName == "" {
		return Playlist{}, sonarerr.Invalidf("playlist name must not be empty")
	}

	var created Playlist
	err := s.store.WithTx(ctx, func(tx *sql.Tx) error {
		srcRow := tx.QueryRowContext(ctx, "SELECT * FROM playlist WHERE id = ?", id.Sequence())
		src, err := scanPlaylist(srcRow)
		if err != nil {
			if err == sql.ErrNoRows {
				return sonarerr.NotFoundf("no playlist with id %s", id)
			}
			return sonarerr.WrapInternal(err, "read source playlist")
		}

		seqRow := tx.QueryRowContext(ctx, "SELECT nextval('playlist_seq')")
		var seq int64
		if err := seqRow.Scan(&seq); err != nil {
			return sonarerr.WrapInternal(err, "allocate playlist id")
		}

		var coverArg any
		if src.CoverArtID != nil {
			coverArg = *src.CoverArtID
		}
		if _, err := tx.ExecContext(ctx, "INSERT INTO playlist (id, name, owner_user_id, cover_art_id) VALUES (?, ?, ?, ?)",
			seq, newName, newOwnerID.Sequence(), coverArg); err != nil {
			return sonarerr.WrapInternal(err, "insert duplicated playlist")
		}

		trackRows, err := tx.QueryContext(ctx, "SELECT track_id FROM playlist_track WHERE playlist_id = ? ORDER BY position", id.Sequence())
		if err != nil {
			return sonarerr.WrapInternal(err, "read source playlist tracks")
		}
		var trackIDs []ids.TrackID
		for trackRows.Next() {
			var trackID uint32
			if err := trackRows.Scan(&trackID); err != nil {
				trackRows.Close()
				return sonarerr.WrapInternal(err, "scan source playlist track")
			}
			trackIDs = append(trackIDs, ids.NewTrackID(trackID))
		}
		trackErr := trackRows.Err()
		trackRows.Close()
		if trackErr != nil {
			return sonarerr.WrapInternal(trackErr, "iterate source playlist tracks")
		}
		if err := insertPlaylistTracks(ctx, tx, uint32(seq), 0, trackIDs); err != nil {
			return err
		}

		props, err := s.store.Properties().List(ctx, playlistNamespace, id.Sequence(), nil)
		if err != nil {
			return err
		}
		for key, value := range props {
			if err := s.store.Properties().Set(ctx, tx, playlistNamespace, uint32(seq), key, value, nil); err != nil {
				return err
			}
		}

		row := tx.QueryRowContext(ctx, "SELECT * FROM playlist WHERE id = ?", seq)
		p, err := scanPlaylist(row)
		if err != nil {
			return sonarerr.WrapInternal(err, "read back duplicated playlist")
		}
		created = p
		return nil
	})
	if err != nil {
		metrics.CatalogOperationErrors.WithLabelValues("playlist", "duplicate", sonarerr.KindOf(err).String()).Inc()
		return Playlist{}, err
	}
	return created, nil
}
