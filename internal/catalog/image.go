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

// Image is cover art or avatar artwork, shared by reference from artist,
// album, track, playlist, and user rows (spec §3/§4.3).
type Image struct {
	ID        ids.ImageID
	MimeType  string
	BlobKey   string
	Size      int64
	CreatedAt time.Time
}

// ImageService stores image metadata and streams bytes through blob.Store.
type ImageService struct {
	store *store.Store
	blobs blob.Store
}

// NewImageService constructs the image service over s, writing bytes to
// blobs.
func NewImageService(s *store.Store, blobs blob.Store) *ImageService {
	return &ImageService{store: s, blobs: blobs}
}

func scanImage(row rowScanner) (Image, error) {
	var rawID uint32
	var mimeType, blobKey string
	var size int64
	var createdAt time.Time
	if err := row.Scan(&rawID, &mimeType, &blobKey, &size, &createdAt); err != nil {
		return Image{}, err
	}
	return Image{ID: ids.NewImageID(rawID), MimeType: mimeType, BlobKey: blobKey, Size: size, CreatedAt: createdAt}, nil
}

// Get fetches one image row by id.
func (s *ImageService) Get(ctx context.Context, id ids.ImageID) (Image, error) {
	return store.Get(ctx, s.store.Reader(), "image", id.Sequence(), func(r *sql.Rows) (Image, error) { return scanImage(r) })
}

// Create writes data to the blob store, then inserts the image row.
func (s *ImageService) Create(ctx context.Context, mimeType string, data io.Reader) (Image, error) {
	if mimeType == "" {
		return Image{}, sonarerr.Invalidf("image mime type must not be empty")
	}
	key := blob.NewKey(blob.KindImage)
	size, err := s.blobs.Write(ctx, key, data)
	if err != nil {
		return Image{}, sonarerr.WrapInternal(err, "write image blob")
	}

	var created Image
	err = s.store.WithTx(ctx, func(tx *sql.Tx) error {
		seqRow := tx.QueryRowContext(ctx, "SELECT nextval('image_seq')")
		var seq int64
		if err := seqRow.Scan(&seq); err != nil {
			return sonarerr.WrapInternal(err, "allocate image id")
		}
		_, err := tx.ExecContext(ctx, "INSERT INTO image (id, mime_type, blob_key, size) VALUES (?, ?, ?, ?)", seq, mimeType, key, size)
		if err != nil {
			return sonarerr.WrapInternal(err, "insert image")
		}
		row := tx.QueryRowContext(ctx, "SELECT * FROM image WHERE id = ?", seq)
		img, err := scanImage(row)
		if err != nil {
			return sonarerr.WrapInternal(err, "read back created image")
		}
		created = img
		return nil
	})
	if err != nil {
		metrics.CatalogOperationErrors.WithLabelValues("image", "create", sonarerr.KindOf(err).String()).Inc()
		if delErr := s.blobs.Delete(ctx, key); delErr != nil {
			return Image{}, sonarerr.WrapInternal(err, "insert image row (blob cleanup also failed: %v)", delErr)
		}
		return Image{}, err
	}
	return created, nil
}

// Read streams the image's bytes through the blob store.
func (s *ImageService) Read(ctx context.Context, id ids.ImageID, r blob.Range) (io.ReadCloser, error) {
	img, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.blobs.Read(ctx, img.BlobKey, r)
}

// Delete removes the image row and its blob. Foreign key references from
// artist/album/track/playlist/user cover_art_id columns must be cleared
// first (no ON DELETE cascade in the schema, matching the other entities).
func (s *ImageService) Delete(ctx context.Context, id ids.ImageID) error {
	img, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	err = s.store.WithTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, "DELETE FROM image WHERE id = ?", id.Sequence())
		if err != nil {
			return sonarerr.WrapInternal(err, "delete image")
		}
		n, err := res.RowsAffected()
		if err != nil {
			return sonarerr.WrapInternal(err, "check delete image result")
		}
		if n == 0 {
			return sonarerr.NotFoundf("no image with id %s", id)
		}
		return nil
	})
	if err != nil {
		metrics.CatalogOperationErrors.WithLabelValues("image", "delete", sonarerr.KindOf(err).String()).Inc()
		return err
	}
	return s.blobs.Delete(ctx, img.BlobKey)
}
