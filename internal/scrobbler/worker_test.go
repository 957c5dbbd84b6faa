// Sonar - self-hosted music library server
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sonarhost/sonar

package scrobbler

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/sonarhost/sonar/internal/catalog"
	"github.com/sonarhost/sonar/internal/config"
	"github.com/sonarhost/sonar/internal/ids"
	"github.com/sonarhost/sonar/internal/store"
)

type fakeScrobbler struct {
	mu       sync.Mutex
	name     string
	received []Listen
	failNext bool
}

func (f *fakeScrobbler) Name() string { return f.name }

func (f *fakeScrobbler) Submit(_ context.Context, listen Listen) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNext {
		f.failNext = false
		return context.DeadlineExceeded
	}
	f.received = append(f.received, listen)
	return nil
}

func (f *fakeScrobbler) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.received)
}

type fixture struct {
	store     *store.Store
	artists   *catalog.ArtistService
	albums    *catalog.AlbumService
	tracks    *catalog.TrackService
	scrobbles *catalog.ScrobbleService
	userID    ids.UserID
	trackID   ids.TrackID
}

func setupFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	s, err := store.Open(context.Background(), config.DatabaseConfig{Path: filepath.Join(dir, "test.duckdb")})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	users := catalog.NewUserService(s)
	user, err := users.Create(context.Background(), catalog.UserCreate{Username: "listener", Password: "hunter22"})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}

	artists := catalog.NewArtistService(s)
	artist, err := artists.Create(context.Background(), catalog.ArtistCreate{Name: "Metallica"})
	if err != nil {
		t.Fatalf("create artist: %v", err)
	}
	albums := catalog.NewAlbumService(s)
	album, err := albums.Create(context.Background(), catalog.AlbumCreate{Name: "Master of Puppets", ArtistID: artist.ID})
	if err != nil {
		t.Fatalf("create album: %v", err)
	}
	tracks := catalog.NewTrackService(s)
	track, err := tracks.Create(context.Background(), catalog.TrackCreate{Name: "Battery", AlbumID: album.ID})
	if err != nil {
		t.Fatalf("create track: %v", err)
	}

	return &fixture{
		store:     s,
		artists:   artists,
		albums:    albums,
		tracks:    tracks,
		scrobbles: catalog.NewScrobbleService(s),
		userID:    user.ID,
		trackID:   track.ID,
	}
}

func (fx *fixture) createScrobble(t *testing.T, listenedAt time.Time) ids.ScrobbleID {
	t.Helper()
	sc, err := fx.scrobbles.Create(context.Background(), catalog.ScrobbleCreate{
		UserID:           fx.userID,
		TrackID:          fx.trackID,
		ListenedAt:       listenedAt,
		ListenDurationMS: 180_000,
	})
	if err != nil {
		t.Fatalf("create scrobble: %v", err)
	}
	return sc.ID
}

func TestWorkerScanSubmitsPendingScrobbles(t *testing.T) {
	fx := setupFixture(t)
	fx.createScrobble(t, time.Now().Add(-time.Hour))
	fx.createScrobble(t, time.Now().Add(-time.Minute))

	fake := &fakeScrobbler{name: "lastfm"}
	w := NewWorker(fake, &fx.userID, fx.scrobbles, fx.tracks, fx.albums, fx.artists)

	w.scan(context.Background())

	if got := fake.count(); got != 2 {
		t.Fatalf("expected 2 submissions, got %d", got)
	}
	for _, listen := range fake.received {
		if listen.ArtistName != "Metallica" || listen.AlbumName != "Master of Puppets" || listen.TrackName != "Battery" {
			t.Fatalf("unexpected listen: %+v", listen)
		}
	}
}

func TestWorkerScanIsIdempotentAfterMarkSubmitted(t *testing.T) {
	fx := setupFixture(t)
	fx.createScrobble(t, time.Now().Add(-time.Hour))

	fake := &fakeScrobbler{name: "lastfm"}
	w := NewWorker(fake, &fx.userID, fx.scrobbles, fx.tracks, fx.albums, fx.artists)

	w.scan(context.Background())
	w.scan(context.Background())

	if got := fake.count(); got != 1 {
		t.Fatalf("expected exactly 1 submission across two scans, got %d", got)
	}
}

func TestWorkerScanLeavesFailedSubmissionForNextScan(t *testing.T) {
	fx := setupFixture(t)
	fx.createScrobble(t, time.Now().Add(-time.Hour))

	fake := &fakeScrobbler{name: "lastfm", failNext: true}
	w := NewWorker(fake, &fx.userID, fx.scrobbles, fx.tracks, fx.albums, fx.artists)

	w.scan(context.Background())
	if got := fake.count(); got != 0 {
		t.Fatalf("expected the failing submit to not record success, got %d", got)
	}

	w.scan(context.Background())
	if got := fake.count(); got != 1 {
		t.Fatalf("expected the retried scan to succeed, got %d", got)
	}
}

func TestWakeCollapsesMultipleSignals(t *testing.T) {
	fx := setupFixture(t)
	fake := &fakeScrobbler{name: "lastfm"}
	w := NewWorker(fake, &fx.userID, fx.scrobbles, fx.tracks, fx.albums, fx.artists)

	for i := 0; i < 5; i++ {
		w.Wake()
	}
	if len(w.wake) != 1 {
		t.Fatalf("expected wake channel depth 1, got %d", len(w.wake))
	}
}
