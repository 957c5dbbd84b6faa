// Sonar - self-hosted music library server
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sonarhost/sonar

package metadata

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/sonarhost/sonar/internal/blob"
	"github.com/sonarhost/sonar/internal/catalog"
	"github.com/sonarhost/sonar/internal/config"
	"github.com/sonarhost/sonar/internal/store"
)

func strPtr(s string) *string { return &s }

// stubProvider returns a fixed record for every supported kind, letting
// tests exercise merge behavior deterministically.
type stubProvider struct {
	name    string
	kinds   map[RequestKind]bool
	artist  ArtistMetadata
	album   AlbumMetadata
	track   TrackMetadata
	failErr error
}

func (p stubProvider) Name() string                  { return p.name }
func (p stubProvider) Supports(k RequestKind) bool    { return p.kinds[k] }
func (p stubProvider) ArtistMetadata(context.Context, ArtistMetadataRequest) (ArtistMetadata, error) {
	if p.failErr != nil {
		return ArtistMetadata{}, p.failErr
	}
	return p.artist, nil
}
func (p stubProvider) AlbumMetadata(context.Context, AlbumMetadataRequest) (AlbumMetadata, error) {
	return p.album, nil
}
func (p stubProvider) AlbumTracksMetadata(context.Context, AlbumTracksMetadataRequest) (AlbumTracksMetadata, error) {
	return AlbumTracksMetadata{}, nil
}
func (p stubProvider) TrackMetadata(context.Context, TrackMetadataRequest) (TrackMetadata, error) {
	return p.track, nil
}

func TestFoldArtistNameFirstPresentWins(t *testing.T) {
	candidates := []ArtistMetadata{
		{Name: nil, Properties: map[string]string{}},
		{Name: strPtr("Metallica"), Properties: map[string]string{}},
		{Name: strPtr("Ignored"), Properties: map[string]string{}},
	}
	got := foldArtist(candidates)
	if got.Name == nil || *got.Name != "Metallica" {
		t.Fatalf("expected first-present name to win, got %v", got.Name)
	}
}

func TestFoldArtistPropertiesPrimaryWins(t *testing.T) {
	candidates := []ArtistMetadata{
		{Properties: map[string]string{"formed": "1981"}},
		{Properties: map[string]string{"formed": "wrong", "country": "US"}},
	}
	got := foldArtist(candidates)
	if got.Properties["formed"] != "1981" {
		t.Fatalf("expected primary provider's value to win, got %q", got.Properties["formed"])
	}
	if got.Properties["country"] != "US" {
		t.Fatalf("expected a key absent from the primary to be filled by the next provider")
	}
}

func TestFoldArtistCoverLargerWins(t *testing.T) {
	candidates := []ArtistMetadata{
		{Cover: []byte("short")},
		{Cover: []byte("a much longer cover payload")},
	}
	got := foldArtist(candidates)
	if string(got.Cover) != "a much longer cover payload" {
		t.Fatalf("expected the larger cover to win, got %q", got.Cover)
	}
}

func TestFoldArtistGenresDeduped(t *testing.T) {
	candidates := []ArtistMetadata{
		{Genres: []string{"thrash metal", "metal"}},
		{Genres: []string{"metal", "rock"}},
	}
	got := foldArtist(candidates)
	seen := map[string]int{}
	for _, g := range got.Genres {
		seen[g]++
	}
	for g, n := range seen {
		if n != 1 {
			t.Fatalf("genre %q appeared %d times, expected deduped union", g, n)
		}
	}
	if len(got.Genres) != 3 {
		t.Fatalf("expected 3 distinct genres, got %v", got.Genres)
	}
}

func setupService(t *testing.T) (*Service, *catalog.ArtistService) {
	t.Helper()
	dir := t.TempDir()
	s, err := store.Open(context.Background(), config.DatabaseConfig{Path: filepath.Join(dir, "test.duckdb")})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	blobs := blob.NewMemoryStore()
	artists := catalog.NewArtistService(s)
	albums := catalog.NewAlbumService(s)
	tracks := catalog.NewTrackService(s, blobs)
	images := catalog.NewImageService(s, blobs)

	primary := stubProvider{
		name:   "primary",
		kinds:  map[RequestKind]bool{RequestArtist: true},
		artist: ArtistMetadata{Name: strPtr("Metallica"), Properties: map[string]string{"formed": "1981"}},
	}
	secondary := stubProvider{
		name:   "secondary",
		kinds:  map[RequestKind]bool{RequestArtist: true},
		artist: ArtistMetadata{Name: strPtr("Ignored"), Properties: map[string]string{"formed": "wrong", "country": "US"}},
	}
	svc := NewService(artists, albums, tracks, images, primary, secondary)
	return svc, artists
}

func TestFetchArtistCommitsFoldedRecord(t *testing.T) {
	svc, artists := setupService(t)

	created, err := artists.Create(context.Background(), catalog.ArtistCreate{Name: "Placeholder"})
	if err != nil {
		t.Fatalf("create artist: %v", err)
	}

	updated, err := svc.FetchArtist(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("fetch artist metadata: %v", err)
	}
	if updated.Name != "Metallica" {
		t.Fatalf("expected name to be committed from the primary provider, got %q", updated.Name)
	}

	props, err := artists.Properties(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("load properties: %v", err)
	}
	if props["formed"] != "1981" || props["country"] != "US" {
		t.Fatalf("unexpected merged properties: %+v", props)
	}
}

func TestViewArtistSkipsFailingProvider(t *testing.T) {
	dir := t.TempDir()
	s, err := store.Open(context.Background(), config.DatabaseConfig{Path: filepath.Join(dir, "test.duckdb")})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	blobs := blob.NewMemoryStore()
	artists := catalog.NewArtistService(s)
	albums := catalog.NewAlbumService(s)
	tracks := catalog.NewTrackService(s, blobs)
	images := catalog.NewImageService(s, blobs)

	failing := stubProvider{name: "failing", kinds: map[RequestKind]bool{RequestArtist: true}, failErr: context.DeadlineExceeded}
	working := stubProvider{name: "working", kinds: map[RequestKind]bool{RequestArtist: true}, artist: ArtistMetadata{Name: strPtr("Metallica")}}
	svc := NewService(artists, albums, tracks, images, failing, working)

	created, err := artists.Create(context.Background(), catalog.ArtistCreate{Name: "Placeholder"})
	if err != nil {
		t.Fatalf("create artist: %v", err)
	}

	md, err := svc.ViewArtist(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("view artist: %v", err)
	}
	if md.Name == nil || *md.Name != "Metallica" {
		t.Fatalf("expected the failing provider to be skipped, got %v", md.Name)
	}
}
