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

// Audio is one encoded rendition of a track: a probed media stream plus the
// blob key its bytes live under (spec §4.3/§4.4).
type Audio struct {
	ID         ids.AudioID
	Bitrate    int64
	DurationMS int64
	Channels   int64
	SampleRate int64
	MimeType   string
	Filename   *string
	BlobKey    string
	Size       int64
	CreatedAt  time.Time
}

// AudioService stores probed audio metadata and streams the underlying
// bytes through blob.Store.
type AudioService struct {
	store *store.Store
	blobs blob.Store
}

// NewAudioService constructs the audio service over s, writing bytes to
// blobs.
func NewAudioService(s *store.Store, blobs blob.Store) *AudioService {
	return &AudioService{store: s, blobs: blobs}
}

func scanAudio(row rowScanner) (Audio, error) {
	var rawID uint32
	var bitrate, durationMS, channels, sampleRate, size int64
	var mimeType, blobKey string
	var filename sql.NullString
	var createdAt time.Time
	if err := row.Scan(&rawID, &bitrate, &durationMS, &channels, &sampleRate, &mimeType, &filename, &blobKey, &size, &createdAt); err != nil {
		return Audio{}, err
	}
	a := Audio{
		ID:         ids.NewAudioID(rawID),
		Bitrate:    bitrate,
		DurationMS: durationMS,
		Channels:   channels,
		SampleRate: sampleRate,
		MimeType:   mimeType,
		BlobKey:    blobKey,
		Size:       size,
		CreatedAt:  createdAt,
	}
	if filename.Valid {
		a.Filename = &filename.String
	}
	return a, nil
}

// Get fetches one audio row by id.
func (s *AudioService) Get(ctx context.Context, id ids.AudioID) (Audio, error) {
	return store.Get(ctx, s.store.Reader(), "audio", id.Sequence(), func(r *sql.Rows) (Audio, error) { return scanAudio(r) })
}

// AudioCreate is the input to Create; Data is streamed into the blob store
// under a freshly generated key and its length becomes Size.
type AudioCreate struct {
	Bitrate    int64
	DurationMS int64
	Channels   int64
	SampleRate int64
	MimeType   string
	Filename   *string
	Data       io.Reader
}

// Create writes Data to the blob store, then inserts the audio row
// recording its key and size.
func (s *AudioService) Create(ctx context.Context, in AudioCreate) (Audio, error) {
	start := time.Now()
	defer func() {
		metrics.CatalogOperationDuration.WithLabelValues("audio", "create").Observe(time.Since(start).Seconds())
	}()

	key := blob.NewKey(blob.KindAudio)
	size, err := s.blobs.Write(ctx, key, in.Data)
	if err != nil {
		metrics.CatalogOperationErrors.WithLabelValues("audio", "create", sonarerr.KindOf(err).String()).Inc()
		return Audio{}, sonarerr.WrapInternal(err, "write audio blob")
	}

	var created Audio
	err = s.store.WithTx(ctx, func(tx *sql.Tx) error {
		seqRow := tx.QueryRowContext(ctx, "SELECT nextval('audio_seq')")
		var seq int64
		if err := seqRow.Scan(&seq); err != nil {
			return sonarerr.WrapInternal(err, "allocate audio id")
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO audio (id, bitrate, duration_ms, channels, sample_rate, mime_type, filename, blob_key, size)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, seq, in.Bitrate, in.DurationMS, in.Channels, in.SampleRate, in.MimeType, in.Filename, key, size)
		if err != nil {
			return sonarerr.WrapInternal(err, "insert audio")
		}
		row := tx.QueryRowContext(ctx, "SELECT * FROM audio WHERE id = ?", seq)
		a, err := scanAudio(row)
		if err != nil {
			return sonarerr.WrapInternal(err, "read back created audio")
		}
		created = a
		return nil
	})
	if err != nil {
		metrics.CatalogOperationErrors.WithLabelValues("audio", "create", sonarerr.KindOf(err).String()).Inc()
		if delErr := s.blobs.Delete(ctx, key); delErr != nil {
			return Audio{}, sonarerr.WrapInternal(err, "insert audio row (blob cleanup also failed: %v)", delErr)
		}
		return Audio{}, err
	}
	return created, nil
}

// Delete removes the audio row and its backing blob. Callers must first
// remove any track_audio link and clear track.preferred_audio_id.
func (s *AudioService) Delete(ctx context.Context, id ids.AudioID) error {
	a, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	err = s.store.WithTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, "DELETE FROM audio WHERE id = ?", id.Sequence())
		if err != nil {
			return sonarerr.WrapInternal(err, "delete audio")
		}
		n, err := res.RowsAffected()
		if err != nil {
			return sonarerr.WrapInternal(err, "check delete audio result")
		}
		if n == 0 {
			return sonarerr.NotFoundf("no audio with id %s", id)
		}
		return nil
	})
	if err != nil {
		metrics.CatalogOperationErrors.WithLabelValues("audio", "delete", sonarerr.KindOf(err).String()).Inc()
		return err
	}
	return s.blobs.Delete(ctx, a.BlobKey)
}
