// Sonar - self-hosted music library server
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sonarhost/sonar

package search

import (
	"context"
	"fmt"
)

// Kind discriminates the entity family a Document or Hit belongs to.
type Kind string

const (
	KindArtist   Kind = "artist"
	KindAlbum    Kind = "album"
	KindTrack    Kind = "track"
	KindPlaylist Kind = "playlist"
)

// Document is the denormalized projection written to the index on every
// catalog create/update (spec §4.12): "(kind, id, artist name, album
// name, track name, playlist name, lyrics text where applicable)".
// Fields are exported so the built-in backend can index them by
// reflection; unused fields for a given Kind stay zero.
type Document struct {
	Kind         Kind
	ID           uint32
	ArtistName   string
	AlbumName    string
	TrackName    string
	PlaylistName string
	Lyrics       string
}

// key is the backend-internal document identifier, stable and reversible
// so Search can recover (Kind, ID) from a hit without a side table.
func key(kind Kind, id uint32) string {
	return fmt.Sprintf("%s:%d", kind, id)
}

// Hit is one ranked result from a Backend, in backend-assigned order.
type Hit struct {
	Kind Kind
	ID   uint32
}

// Backend is the search index implementation behind a single interface
// (spec Non-goals: "the search indexer backend (built-in vs external)
// behind a single search interface" is out of scope to choose among —
// only the built-in is required, but nothing above this interface may
// depend on it concretely).
type Backend interface {
	// Index upserts docs, replacing any existing document with the same
	// (Kind, ID).
	Index(ctx context.Context, docs []Document) error
	// Delete removes the document for (kind, id), a no-op if absent.
	Delete(ctx context.Context, kind Kind, id uint32) error
	// Search returns ranked hits for query, most relevant first, capped
	// at limit.
	Search(ctx context.Context, query string, limit int) ([]Hit, error)
}
