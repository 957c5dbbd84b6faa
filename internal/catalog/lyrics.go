// Sonar - self-hosted music library server
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sonarhost/sonar

package catalog

import (
	"context"
	"database/sql"

	"github.com/sonarhost/sonar/internal/ids"
	"github.com/sonarhost/sonar/internal/metrics"
	"github.com/sonarhost/sonar/internal/sonarerr"
	"github.com/sonarhost/sonar/internal/store"
)

// LyricsKind distinguishes time-synced lyrics (per-line offsets) from a
// single unsynced block of text (spec §3 "Lyrics").
type LyricsKind string

const (
	LyricsSynced   LyricsKind = "synced"
	LyricsUnsynced LyricsKind = "unsynced"
)

// LyricsLine is one line of lyrics text. OffsetMS/DurationMS are only
// meaningful when the parent Lyrics.Kind is LyricsSynced.
type LyricsLine struct {
	OffsetMS   *int64
	DurationMS *int64
	Text       string
}

// Lyrics is a track's lyric content, referenced by track.lyrics_id.
type Lyrics struct {
	ID    ids.LyricsID
	Kind  LyricsKind
	Lines []LyricsLine
}

// LyricsService implements the lyrics entity family (spec §4.4).
type LyricsService struct {
	store *store.Store
}

// NewLyricsService constructs the lyrics service over s.
func NewLyricsService(s *store.Store) *LyricsService {
	return &LyricsService{store: s}
}

// Get fetches one lyrics row by id along with its ordered lines.
func (s *LyricsService) Get(ctx context.Context, id ids.LyricsID) (Lyrics, error) {
	row := s.store.Reader().QueryRowContext(ctx, "SELECT id, kind FROM lyrics WHERE id = ?", id.Sequence())
	var rawID uint32
	var kind string
	if err := row.Scan(&rawID, &kind); err != nil {
		if err == sql.ErrNoRows {
			return Lyrics{}, sonarerr.NotFoundf("no lyrics with id %s", id)
		}
		return Lyrics{}, sonarerr.WrapInternal(err, "get lyrics")
	}

	rows, err := s.store.Reader().QueryContext(ctx,
		"SELECT offset_ms, duration_ms, text FROM lyrics_line WHERE lyrics_id = ? ORDER BY position", id.Sequence())
	if err != nil {
		return Lyrics{}, sonarerr.WrapInternal(err, "list lyrics lines")
	}
	defer rows.Close()

	var lines []LyricsLine
	for rows.Next() {
		var offsetMS, durationMS sql.NullInt64
		var text string
		if err := rows.Scan(&offsetMS, &durationMS, &text); err != nil {
			return Lyrics{}, sonarerr.WrapInternal(err, "scan lyrics line")
		}
		line := LyricsLine{Text: text}
		if offsetMS.Valid {
			line.OffsetMS = &offsetMS.Int64
		}
		if durationMS.Valid {
			line.DurationMS = &durationMS.Int64
		}
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return Lyrics{}, sonarerr.WrapInternal(err, "iterate lyrics lines")
	}

	return Lyrics{ID: ids.NewLyricsID(rawID), Kind: LyricsKind(kind), Lines: lines}, nil
}

// Create inserts a lyrics row and its ordered lines in one transaction.
func (s *LyricsService) Create(ctx context.Context, kind LyricsKind, lines []LyricsLine) (Lyrics, error) {
	if kind != LyricsSynced && kind != LyricsUnsynced {
		return Lyrics{}, sonarerr.Invalidf("unknown lyrics kind %q", kind)
	}
	if kind == LyricsSynced {
		var prev *int64
		for i, line := range lines {
			if line.OffsetMS == nil {
				continue
			}
			if prev != nil && *line.OffsetMS < *prev {
				return Lyrics{}, sonarerr.Invalidf("synced lyrics line %d offset %d is before the previous offset %d", i, *line.OffsetMS, *prev)
			}
			prev = line.OffsetMS
		}
	}

	var created Lyrics
	err := s.store.WithTx(ctx, func(tx *sql.Tx) error {
		seqRow := tx.QueryRowContext(ctx, "SELECT nextval('lyrics_seq')")
		var seq int64
		if err := seqRow.Scan(&seq); err != nil {
			return sonarerr.WrapInternal(err, "allocate lyrics id")
		}
		if _, err := tx.ExecContext(ctx, "INSERT INTO lyrics (id, kind) VALUES (?, ?)", seq, string(kind)); err != nil {
			return sonarerr.WrapInternal(err, "insert lyrics")
		}
		for i, line := range lines {
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO lyrics_line (lyrics_id, position, offset_ms, duration_ms, text) VALUES (?, ?, ?, ?, ?)",
				seq, i, line.OffsetMS, line.DurationMS, line.Text); err != nil {
				return sonarerr.WrapInternal(err, "insert lyrics line")
			}
		}
		created = Lyrics{ID: ids.NewLyricsID(uint32(seq)), Kind: kind, Lines: lines}
		return nil
	})
	if err != nil {
		metrics.CatalogOperationErrors.WithLabelValues("lyrics", "create", sonarerr.KindOf(err).String()).Inc()
		return Lyrics{}, err
	}
	return created, nil
}

// Delete removes a lyrics row and its lines. Callers must first clear any
// track.lyrics_id referencing it.
func (s *LyricsService) Delete(ctx context.Context, id ids.LyricsID) error {
	err := s.store.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM lyrics_line WHERE lyrics_id = ?", id.Sequence()); err != nil {
			return sonarerr.WrapInternal(err, "delete lyrics lines")
		}
		res, err := tx.ExecContext(ctx, "DELETE FROM lyrics WHERE id = ?", id.Sequence())
		if err != nil {
			return sonarerr.WrapInternal(err, "delete lyrics")
		}
		n, err := res.RowsAffected()
		if err != nil {
			return sonarerr.WrapInternal(err, "check delete lyrics result")
		}
		if n == 0 {
			return sonarerr.NotFoundf("no lyrics with id %s", id)
		}
		return nil
	})
	if err != nil {
		metrics.CatalogOperationErrors.WithLabelValues("lyrics", "delete", sonarerr.KindOf(err).String()).Inc()
	}
	return err
}
