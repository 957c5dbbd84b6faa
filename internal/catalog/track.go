// Sonar - self-hosted music library server
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sonarhost/sonar

package catalog

import (
	"context"
	"database/sql"
	"io"
	"time"

	"github.com/sonarhost/sonar/internal/blob"
	"github.com/sonarhost/sonar/internal/ids"
	"github.com/sonarhost/sonar/internal/metrics"
	"github.com/sonarhost/sonar/internal/sonarerr"
	"github.com/sonarhost/sonar/internal/store"
)

// Track is the post-insert/post-update view of a track row plus its
// derived listen_count.
type Track struct {
	ID               ids.TrackID
	Name             string
	AlbumID          ids.AlbumID
	CoverArtID       *ids.ImageID
	PreferredAudioID *ids.AudioID
	LyricsID         *ids.LyricsID
	CreatedAt        time.Time

	ListenCount int64
}

// TrackService implements the track entity family (spec §4.4), including
// the audio association and blob-backed download path.
type TrackService struct {
	store *store.Store
	blobs blob.Store
}

// NewTrackService constructs the track service over s, downloading audio
// bytes through blobs.
func NewTrackService(s *store.Store, blobs blob.Store) *TrackService {
	return &TrackService{store: s, blobs: blobs}
}

const trackNamespace = "track"

func scanTrack(row rowScanner) (Track, error) {
	var rawID, albumID uint32
	var name string
	var coverArtID, preferredAudioID, lyricsID sql.NullInt64
	var createdAt time.Time
	if err := row.Scan(&rawID, &name, &albumID, &coverArtID, &preferredAudioID, &lyricsID, &createdAt); err != nil {
		return Track{}, err
	}
	t := Track{
		ID:        ids.NewTrackID(rawID),
		Name:      name,
		AlbumID:   ids.NewAlbumID(albumID),
		CreatedAt: createdAt,
	}
	if coverArtID.Valid {
		id := ids.NewImageID(uint32(coverArtID.Int64))
		t.CoverArtID = &id
	}
	if preferredAudioID.Valid {
		id := ids.NewAudioID(uint32(preferredAudioID.Int64))
		t.PreferredAudioID = &id
	}
	if lyricsID.Valid {
		id := ids.NewLyricsID(uint32(lyricsID.Int64))
		t.LyricsID = &id
	}
	return t, nil
}

func (s *TrackService) loadAggregate(ctx context.Context, t *Track) error {
	row := s.store.Reader().QueryRowContext(ctx,
		"SELECT listen_count FROM track_aggregate WHERE track_id = ?", t.ID.Sequence())
	if err := row.Scan(&t.ListenCount); err != nil {
		if err == sql.ErrNoRows {
			return nil
		}
		return sonarerr.WrapInternal(err, "load track aggregate")
	}
	return nil
}

// List returns every track.
func (s *TrackService) List(ctx context.Context) ([]Track, error) {
	tracks, err := store.List(ctx, s.store.Reader(), "track", func(r *sql.Rows) (Track, error) { return scanTrack(r) })
	if err != nil {
		return nil, err
	}
	for i := range tracks {
		if err := s.loadAggregate(ctx, &tracks[i]); err != nil {
			return nil, err
		}
	}
	return tracks, nil
}

// ListByAlbum returns every track on the given album, in id order.
func (s *TrackService) ListByAlbum(ctx context.Context, albumID ids.AlbumID) ([]Track, error) {
	w := store.ListWhere(ctx, s.store.Reader(), "track", "album_id = ?", []any{albumID.Sequence()})
	tracks, err := store.ScanTyped(ctx, w, func(r *sql.Rows) (Track, error) { return scanTrack(r) })
	if err != nil {
		return nil, err
	}
	for i := range tracks {
		if err := s.loadAggregate(ctx, &tracks[i]); err != nil {
			return nil, err
		}
	}
	return tracks, nil
}

// Properties returns every property currently set on a track, keyed by
// property key.
func (s *TrackService) Properties(ctx context.Context, id ids.TrackID) (map[string]string, error) {
	return s.store.Properties().List(ctx, trackNamespace, id.Sequence(), nil)
}

// Get fetches one track by id.
func (s *TrackService) Get(ctx context.Context, id ids.TrackID) (Track, error) {
	t, err := store.Get(ctx, s.store.Reader(), "track", id.Sequence(), func(r *sql.Rows) (Track, error) { return scanTrack(r) })
	if err != nil {
		return Track{}, err
	}
	if err := s.loadAggregate(ctx, &t); err != nil {
		return Track{}, err
	}
	return t, nil
}

// GetBulk fetches tracks by id, preserving order and duplicates.
func (s *TrackService) GetBulk(ctx context.Context, idList []ids.TrackID) ([]Track, error) {
	raw := make([]uint32, len(idList))
	for i, id := range idList {
		raw[i] = id.Sequence()
	}
	tracks, err := store.GetBulk(ctx, s.store.Reader(), "track", raw,
		func(r *sql.Rows) (Track, error) { return scanTrack(r) },
		func(t Track) uint32 { return t.ID.Sequence() })
	if err != nil {
		return nil, err
	}
	for i := range tracks {
		if err := s.loadAggregate(ctx, &tracks[i]); err != nil {
			return nil, err
		}
	}
	return tracks, nil
}

// TrackCreate is the input to Create.
type TrackCreate struct {
	Name       string
	AlbumID    ids.AlbumID
	CoverArtID *ids.ImageID
	LyricsID   *ids.LyricsID
	Properties []PropertyUpdate
	Genres     []string
}

// Create inserts a new track row under an existing album. Audio is attached
// afterward via AddAudio.
func (s *TrackService) Create(ctx context.Context, in TrackCreate) (Track, error) {
	if in.Name == "" {
		return Track{}, sonarerr.Invalidf("track name must not be empty")
	}
	genres, err := validateGenreSet(in.Genres)
	if err != nil {
		return Track{}, err
	}

	var created Track
	err = s.store.WithTx(ctx, func(tx *sql.Tx) error {
		seqRow := tx.QueryRowContext(ctx, "SELECT nextval('track_seq')")
		var seq int64
		if err := seqRow.Scan(&seq); err != nil {
			return sonarerr.WrapInternal(err, "allocate track id")
		}

		var coverArg, lyricsArg any
		if in.CoverArtID != nil {
			coverArg = *in.CoverArtID
		}
		if in.LyricsID != nil {
			lyricsArg = *in.LyricsID
		}
		_, err := tx.ExecContext(ctx,
			"INSERT INTO track (id, name, album_id, cover_art_id, lyrics_id) VALUES (?, ?, ?, ?, ?)",
			seq, in.Name, in.AlbumID.Sequence(), coverArg, lyricsArg)
		if err != nil {
			return sonarerr.WrapInternal(err, "insert track")
		}

		if err := applyPropertyUpdates(ctx, tx, s.store.Properties(), trackNamespace, uint32(seq), in.Properties, nil); err != nil {
			return err
		}
		if err := s.store.Genres().Replace(ctx, tx, trackNamespace, uint32(seq), genres); err != nil {
			return err
		}

		row := tx.QueryRowContext(ctx, "SELECT * FROM track WHERE id = ?", seq)
		t, err := scanTrack(row)
		if err != nil {
			return sonarerr.WrapInternal(err, "read back created track")
		}
		created = t
		return nil
	})
	if err != nil {
		metrics.CatalogOperationErrors.WithLabelValues("track", "create", sonarerr.KindOf(err).String()).Inc()
		return Track{}, err
	}
	return created, nil
}

// FindOrCreateByName finds a track by (album, name) or creates it.
func (s *TrackService) FindOrCreateByName(ctx context.Context, albumID ids.AlbumID, name string) (Track, error) {
	if name == "" {
		return Track{}, sonarerr.Invalidf("track name must not be empty")
	}

	var result Track
	err := s.store.WithTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, "SELECT * FROM track WHERE album_id = ? AND name = ?", albumID.Sequence(), name)
		if t, err := scanTrack(row); err == nil {
			result = t
			return nil
		} else if err != sql.ErrNoRows {
			return sonarerr.WrapInternal(err, "find track by name")
		}

		seqRow := tx.QueryRowContext(ctx, "SELECT nextval('track_seq')")
		var seq int64
		if err := seqRow.Scan(&seq); err != nil {
			return sonarerr.WrapInternal(err, "allocate track id")
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO track (id, name, album_id) VALUES (?, ?, ?)
			ON CONFLICT (album_id, name) DO NOTHING
		`, seq, name, albumID.Sequence())
		if err != nil {
			return sonarerr.WrapInternal(err, "insert track")
		}

		row = tx.QueryRowContext(ctx, "SELECT * FROM track WHERE album_id = ? AND name = ?", albumID.Sequence(), name)
		t, err := scanTrack(row)
		if err != nil {
			return sonarerr.WrapInternal(err, "read back track after find-or-create")
		}
		result = t
		return nil
	})
	if err != nil {
		return Track{}, err
	}
	return result, nil
}

// TrackUpdate is the input to Update.
type TrackUpdate struct {
	Name       ids.ValueUpdate[string]
	AlbumID    ids.ValueUpdate[ids.ID]
	CoverArtID ids.ValueUpdate[ids.ID]
	LyricsID   ids.ValueUpdate[ids.ID]
	Properties []PropertyUpdate
	Genres     []GenreUpdate
}

// Update applies each field's ValueUpdate, then property/genre updates.
func (s *TrackService) Update(ctx context.Context, id ids.TrackID, in TrackUpdate) (Track, error) {
	nameClause, err := store.ApplyStringUpdate("name", in.Name)
	if err != nil {
		return Track{}, err
	}
	albumClause, err := store.ApplyIDUpdate("album_id", in.AlbumID)
	if err != nil {
		return Track{}, err
	}
	coverClause := store.ApplyNullableIDUpdate("cover_art_id", in.CoverArtID)
	lyricsClause := store.ApplyNullableIDUpdate("lyrics_id", in.LyricsID)

	var updated Track
	err = s.store.WithTx(ctx, func(tx *sql.Tx) error {
		if query, args, ok := store.BuildUpdate("track", id.Sequence(), nameClause, albumClause, coverClause, lyricsClause); ok {
			if _, err := tx.ExecContext(ctx, query, args...); err != nil {
				return sonarerr.WrapInternal(err, "update track")
			}
		}
		if err := applyPropertyUpdates(ctx, tx, s.store.Properties(), trackNamespace, id.Sequence(), in.Properties, nil); err != nil {
			return err
		}
		if err := applyGenreUpdates(ctx, tx, s.store.Genres(), trackNamespace, id.Sequence(), in.Genres); err != nil {
			return err
		}

		row := tx.QueryRowContext(ctx, "SELECT * FROM track WHERE id = ?", id.Sequence())
		t, err := scanTrack(row)
		if err != nil {
			if err == sql.ErrNoRows {
				return sonarerr.NotFoundf("no track with id %s", id)
			}
			return sonarerr.WrapInternal(err, "read back updated track")
		}
		updated = t
		return nil
	})
	if err != nil {
		metrics.CatalogOperationErrors.WithLabelValues("track", "update", sonarerr.KindOf(err).String()).Inc()
		return Track{}, err
	}
	if err := s.loadAggregate(ctx, &updated); err != nil {
		return Track{}, err
	}
	return updated, nil
}

// deleteTrackRow clears every row that references trackID (audio links,
// playlist entries, scrobbles, favorites, pins) and its properties/genres,
// then deletes the track row itself, returning how many track rows were
// removed. Called both by TrackService.Delete and by AlbumService/
// ArtistService cascading down from a deleted parent.
func deleteTrackRow(ctx context.Context, tx *sql.Tx, st *store.Store, id ids.TrackID) (int64, error) {
	if _, err := tx.ExecContext(ctx, "DELETE FROM track_audio WHERE track_id = ?", id.Sequence()); err != nil {
		return 0, sonarerr.WrapInternal(err, "delete track audio links")
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM playlist_track WHERE track_id = ?", id.Sequence()); err != nil {
		return 0, sonarerr.WrapInternal(err, "delete playlist track entries")
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM scrobble_submission WHERE scrobble_id IN (SELECT id FROM scrobble WHERE track_id = ?)", id.Sequence()); err != nil {
		return 0, sonarerr.WrapInternal(err, "delete track scrobble submissions")
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM scrobble WHERE track_id = ?", id.Sequence()); err != nil {
		return 0, sonarerr.WrapInternal(err, "delete track scrobbles")
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM favorite WHERE target_id = ?", id.Uint32()); err != nil {
		return 0, sonarerr.WrapInternal(err, "delete track favorites")
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM pin WHERE target_id = ?", id.Uint32()); err != nil {
		return 0, sonarerr.WrapInternal(err, "delete track pins")
	}
	if err := st.Properties().DeleteAll(ctx, tx, trackNamespace, id.Sequence()); err != nil {
		return 0, err
	}
	if err := st.Genres().DeleteAll(ctx, tx, trackNamespace, id.Sequence()); err != nil {
		return 0, err
	}
	res, err := tx.ExecContext(ctx, "DELETE FROM track WHERE id = ?", id.Sequence())
	if err != nil {
		return 0, sonarerr.WrapInternal(err, "delete track")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, sonarerr.WrapInternal(err, "check delete track result")
	}
	return n, nil
}

// Delete removes the track row along with every join, scrobble, favorite,
// and pin that references it (spec §4.4's cascade rule).
func (s *TrackService) Delete(ctx context.Context, id ids.TrackID) error {
	err := s.store.WithTx(ctx, func(tx *sql.Tx) error {
		n, err := deleteTrackRow(ctx, tx, s.store, id)
		if err != nil {
			return err
		}
		if n == 0 {
			return sonarerr.NotFoundf("no track with id %s", id)
		}
		return nil
	})
	if err != nil {
		metrics.CatalogOperationErrors.WithLabelValues("track", "delete", sonarerr.KindOf(err).String()).Inc()
	}
	return err
}

// AddAudio links an existing audio row to a track. If preferred is true, any
// previously preferred audio for this track loses that flag, keeping the
// at-most-one-preferred-per-track invariant (spec §4.4).
func (s *TrackService) AddAudio(ctx context.Context, trackID ids.TrackID, audioID ids.AudioID, preferred bool) error {
	return s.store.WithTx(ctx, func(tx *sql.Tx) error {
		if preferred {
			if _, err := tx.ExecContext(ctx, "UPDATE track_audio SET preferred = false WHERE track_id = ?", trackID.Sequence()); err != nil {
				return sonarerr.WrapInternal(err, "clear preferred audio")
			}
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO track_audio (track_id, audio_id, preferred) VALUES (?, ?, ?)
			ON CONFLICT (track_id, audio_id) DO UPDATE SET preferred = excluded.preferred
		`, trackID.Sequence(), audioID.Sequence(), preferred)
		if err != nil {
			return sonarerr.WrapInternal(err, "link track audio")
		}
		if preferred {
			if _, err := tx.ExecContext(ctx, "UPDATE track SET preferred_audio_id = ? WHERE id = ?", audioID.Sequence(), trackID.Sequence()); err != nil {
				return sonarerr.WrapInternal(err, "set preferred audio")
			}
		}
		return nil
	})
}

// Download streams the bytes of a track's preferred audio through the blob
// store, honoring a byte range (spec §4.3/§4.4 "download").
func (s *TrackService) Download(ctx context.Context, trackID ids.TrackID, r blob.Range) (io.ReadCloser, error) {
	t, err := s.Get(ctx, trackID)
	if err != nil {
		return nil, err
	}
	if t.PreferredAudioID == nil {
		return nil, sonarerr.NotFoundf("track %s has no preferred audio", trackID)
	}

	row := s.store.Reader().QueryRowContext(ctx, "SELECT blob_key FROM audio WHERE id = ?", t.PreferredAudioID.Sequence())
	var blobKey string
	if err := row.Scan(&blobKey); err != nil {
		return nil, sonarerr.WrapInternal(err, "load preferred audio blob key")
	}
	return s.blobs.Read(ctx, blobKey, r)
}
