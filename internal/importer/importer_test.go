// Sonar - self-hosted music library server
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sonarhost/sonar

package importer

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/sonarhost/sonar/internal/blob"
	"github.com/sonarhost/sonar/internal/catalog"
	"github.com/sonarhost/sonar/internal/config"
	"github.com/sonarhost/sonar/internal/store"
)

// fakeExtractor returns a fixed Metadata or an error, letting tests exercise
// the first-wins merge and path fallback without touching real media files.
type fakeExtractor struct {
	name string
	meta Metadata
	err  error
}

func (f fakeExtractor) Name() string { return f.name }
func (f fakeExtractor) Extract(string) (Metadata, error) {
	if f.err != nil {
		return Metadata{}, f.err
	}
	return f.meta, nil
}

func setupTestStore(t *testing.T) *store.Store {
	t.Helper()
	dir := t.TempDir()
	s, err := store.Open(context.Background(), config.DatabaseConfig{Path: filepath.Join(dir, "test.duckdb")})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestImportUsesExtractorMetadataOverPath(t *testing.T) {
	s := setupTestStore(t)
	blobs := blob.NewMemoryStore()
	artists := catalog.NewArtistService(s)
	albums := catalog.NewAlbumService(s)
	tracks := catalog.NewTrackService(s, blobs)
	audio := catalog.NewAudioService(s, blobs)

	imp := New(Config{MaxImportSizeBytes: 1 << 20, MaxConcurrentImport: 2},
		[]Extractor{fakeExtractor{name: "fake", meta: Metadata{Title: "Master of Puppets", Artist: "Metallica", Album: "Master of Puppets"}}},
		artists, albums, tracks, audio)

	track, err := imp.Run(context.Background(), Import{
		Filepath: "library/Wrong Artist/Wrong Album/01 wrong.mp3",
		Data:     bytes.NewReader([]byte("not really audio")),
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if track.Name != "Master of Puppets" {
		t.Errorf("track name = %q, want extractor title", track.Name)
	}

	album, err := albums.Get(context.Background(), track.AlbumID)
	if err != nil {
		t.Fatalf("Get album: %v", err)
	}
	if album.Name != "Master of Puppets" {
		t.Errorf("album name = %q, want %q", album.Name, "Master of Puppets")
	}
}

func TestImportFallsBackToPathComponents(t *testing.T) {
	s := setupTestStore(t)
	blobs := blob.NewMemoryStore()
	artists := catalog.NewArtistService(s)
	albums := catalog.NewAlbumService(s)
	tracks := catalog.NewTrackService(s, blobs)
	audio := catalog.NewAudioService(s, blobs)

	imp := New(Config{MaxImportSizeBytes: 1 << 20, MaxConcurrentImport: 2}, nil, artists, albums, tracks, audio)

	track, err := imp.Run(context.Background(), Import{
		Filepath: "library/Metallica/Master of Puppets/04 Battery.mp3",
		Data:     bytes.NewReader([]byte("not really audio")),
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if track.Name != "04 Battery" {
		t.Errorf("track name = %q, want path-derived name", track.Name)
	}

	album, err := albums.Get(context.Background(), track.AlbumID)
	if err != nil {
		t.Fatalf("Get album: %v", err)
	}
	if album.Name != "Master of Puppets" {
		t.Errorf("album name = %q, want %q", album.Name, "Master of Puppets")
	}
}

func TestImportRejectsOversizedFile(t *testing.T) {
	s := setupTestStore(t)
	blobs := blob.NewMemoryStore()
	artists := catalog.NewArtistService(s)
	albums := catalog.NewAlbumService(s)
	tracks := catalog.NewTrackService(s, blobs)
	audio := catalog.NewAudioService(s, blobs)

	imp := New(Config{MaxImportSizeBytes: 4, MaxConcurrentImport: 1}, nil, artists, albums, tracks, audio)

	_, err := imp.Run(context.Background(), Import{
		Filepath: "library/A/B/c.mp3",
		Data:     bytes.NewReader([]byte("way more than four bytes")),
	})
	if err == nil {
		t.Fatal("expected an error for an oversized import")
	}
}
