// Sonar - self-hosted music library server
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sonarhost/sonar

package search

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/sonarhost/sonar/internal/catalog"
	"github.com/sonarhost/sonar/internal/config"
	"github.com/sonarhost/sonar/internal/ids"
	"github.com/sonarhost/sonar/internal/store"
)

type serviceFixture struct {
	svc       *Service
	artists   *catalog.ArtistService
	albums    *catalog.AlbumService
	tracks    *catalog.TrackService
	playlists *catalog.PlaylistService
}

func setupService(t *testing.T) *serviceFixture {
	t.Helper()
	dir := t.TempDir()
	s, err := store.Open(context.Background(), config.DatabaseConfig{Path: filepath.Join(dir, "test.duckdb")})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	backend, err := NewBleveBackend("")
	if err != nil {
		t.Fatalf("new bleve backend: %v", err)
	}
	t.Cleanup(func() { backend.Close() })

	artists := catalog.NewArtistService(s)
	albums := catalog.NewAlbumService(s)
	tracks := catalog.NewTrackService(s)
	playlists := catalog.NewPlaylistService(s)
	lyrics := catalog.NewLyricsService(s)

	return &serviceFixture{
		svc:       NewService(backend, artists, albums, tracks, playlists, lyrics),
		artists:   artists,
		albums:    albums,
		tracks:    tracks,
		playlists: playlists,
	}
}

func TestSyncArtistAndSearchFindsIt(t *testing.T) {
	fx := setupService(t)
	ctx := context.Background()

	artist, err := fx.artists.Create(ctx, catalog.ArtistCreate{Name: "Metallica"})
	if err != nil {
		t.Fatalf("create artist: %v", err)
	}
	if err := fx.svc.SyncArtist(ctx, artist.ID); err != nil {
		t.Fatalf("sync artist: %v", err)
	}

	results, err := fx.svc.Search(ctx, ids.UserID(0), Query{Text: "Metallica"})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 1 || results[0].Artist == nil || results[0].Artist.Name != "Metallica" {
		t.Fatalf("expected one artist result for Metallica, got %+v", results)
	}
}

func TestSyncTrackIndexesArtistAndAlbumNames(t *testing.T) {
	fx := setupService(t)
	ctx := context.Background()

	artist, err := fx.artists.Create(ctx, catalog.ArtistCreate{Name: "Metallica"})
	if err != nil {
		t.Fatalf("create artist: %v", err)
	}
	album, err := fx.albums.Create(ctx, catalog.AlbumCreate{Name: "Master of Puppets", ArtistID: artist.ID})
	if err != nil {
		t.Fatalf("create album: %v", err)
	}
	track, err := fx.tracks.Create(ctx, catalog.TrackCreate{Name: "Battery", AlbumID: album.ID})
	if err != nil {
		t.Fatalf("create track: %v", err)
	}
	if err := fx.svc.SyncTrack(ctx, track.ID); err != nil {
		t.Fatalf("sync track: %v", err)
	}
	if err := fx.svc.SyncArtist(ctx, artist.ID); err != nil {
		t.Fatalf("sync artist: %v", err)
	}

	results, err := fx.svc.Search(ctx, ids.UserID(0), Query{Text: "Battery"})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 1 || results[0].Track == nil || results[0].Track.Name != "Battery" {
		t.Fatalf("expected one track result for Battery, got %+v", results)
	}

	byArtist, err := fx.svc.Search(ctx, ids.UserID(0), Query{Text: "Metallica"})
	if err != nil {
		t.Fatalf("search by artist name: %v", err)
	}
	if len(byArtist) != 2 {
		t.Fatalf("expected artist + track to both match on artist name, got %+v", byArtist)
	}
}

func TestRemoveDeletesDocument(t *testing.T) {
	fx := setupService(t)
	ctx := context.Background()

	artist, err := fx.artists.Create(ctx, catalog.ArtistCreate{Name: "Ghost"})
	if err != nil {
		t.Fatalf("create artist: %v", err)
	}
	if err := fx.svc.SyncArtist(ctx, artist.ID); err != nil {
		t.Fatalf("sync artist: %v", err)
	}
	if err := fx.svc.Remove(ctx, KindArtist, uint32(artist.ID)); err != nil {
		t.Fatalf("remove: %v", err)
	}

	results, err := fx.svc.Search(ctx, ids.UserID(0), Query{Text: "Ghost"})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected no results after removal, got %+v", results)
	}
}
