// Sonar - self-hosted music library server
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sonarhost/sonar

// Package blob is the opaque byte storage layer behind audio and image
// rows (spec §4.3): write/read/delete keyed by an opaque string, never by
// content hash. A memory backend and a filesystem backend are behavioral
// substitutes for each other so tests never need a real disk.
package blob

import (
	"context"
	"io"
)

// Range bounds a read: Offset defaults to 0, Length<0 means "to the end".
// Both fields mirror an HTTP Range request, which is exactly how the
// subsonic stream/download handlers use it.
type Range struct {
	Offset int64
	Length int64
}

// Store is the contract both backends implement.
type Store interface {
	// Write streams data to key, overwriting any existing blob. It
	// returns the number of bytes written so callers can persist it as
	// the entity row's size column without a second stat.
	Write(ctx context.Context, key string, data io.Reader) (int64, error)

	// Read returns a ranged, lazily-read byte stream for key. Callers
	// that need the total length read it off the owning row, per spec
	// §4.3 ("read returns a lazy byte sequence of unknown total length").
	Read(ctx context.Context, key string, r Range) (io.ReadCloser, error)

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Exists reports whether key is currently stored.
	Exists(ctx context.Context, key string) (bool, error)

	// Keys lists every stored key with the given prefix, used by Sweep to
	// find blobs no longer referenced by any catalog row.
	Keys(ctx context.Context, prefix string) ([]string, error)
}
