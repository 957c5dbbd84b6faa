// Sonar - self-hosted music library server
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sonarhost/sonar

package external

import (
	"context"
	"io"
	"testing"

	gobreaker "github.com/sony/gobreaker/v2"
)

// stubAdapter enriches a request by filling in a fixed artist name once,
// letting tests exercise the enrich-to-fixed-point loop deterministically.
type stubAdapter struct {
	UnimplementedAdapter
	name       string
	enrichOnce string
	enriched   bool
	extractID  MediaID
	extractTy  MediaType
}

func (s *stubAdapter) Name() string { return s.name }

func (s *stubAdapter) Enrich(_ context.Context, req *MediaRequest) (EnrichStatus, error) {
	if s.enriched || s.enrichOnce == "" {
		return NotModified, nil
	}
	s.enriched = true
	return req.Merge(MediaRequest{Artist: &s.enrichOnce}), nil
}

func (s *stubAdapter) Extract(_ context.Context, _ MediaRequest) (MediaType, MediaID, error) {
	if s.extractID == "" {
		return UnimplementedAdapter{}.Extract(context.Background(), MediaRequest{})
	}
	return s.extractTy, s.extractID, nil
}

func TestMediaRequestMergeFirstWins(t *testing.T) {
	existing := "Metallica"
	req := MediaRequest{Artist: &existing}

	other := "Wrong Artist"
	status := req.Merge(MediaRequest{Artist: &other, Album: strPtr("Master of Puppets")})

	if status != Modified {
		t.Fatalf("expected Modified since Album was empty")
	}
	if *req.Artist != "Metallica" {
		t.Errorf("artist = %q, want existing value preserved", *req.Artist)
	}
	if req.Album == nil || *req.Album != "Master of Puppets" {
		t.Errorf("album not merged in")
	}
}

func TestMediaRequestMergeDedupesExternalIDs(t *testing.T) {
	req := MediaRequest{ExternalIDs: []MediaID{"a", "b"}}
	status := req.Merge(MediaRequest{ExternalIDs: []MediaID{"b", "c"}})

	if status != Modified {
		t.Fatalf("expected Modified from new id c")
	}
	if len(req.ExternalIDs) != 3 {
		t.Errorf("external ids = %v, want 3 deduped entries", req.ExternalIDs)
	}
}

func TestRegistryEnrichRunsToFixedPoint(t *testing.T) {
	reg := NewRegistry(
		AdapterConfig{Adapter: &stubAdapter{name: "one", enrichOnce: "Metallica"}, Priority: 0},
		AdapterConfig{Adapter: &stubAdapter{name: "two"}, Priority: 1},
	)

	req := &MediaRequest{}
	if err := reg.Enrich(context.Background(), req); err != nil {
		t.Fatalf("Enrich: %v", err)
	}
	if req.Artist == nil || *req.Artist != "Metallica" {
		t.Errorf("artist = %v, want enriched value", req.Artist)
	}
}

func TestRegistryExtractTriesAdaptersInPriorityOrder(t *testing.T) {
	first := &stubAdapter{name: "first"} // no extractID, falls through
	second := &stubAdapter{name: "second", extractID: "spotify:track:1", extractTy: MediaTrack}

	reg := NewRegistry(
		AdapterConfig{Adapter: first, Priority: 0},
		AdapterConfig{Adapter: second, Priority: 1},
	)

	adapter, mediaType, id, err := reg.Extract(context.Background(), MediaRequest{})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if adapter.Name() != "second" {
		t.Errorf("adapter = %q, want second (first has nothing to extract)", adapter.Name())
	}
	if mediaType != MediaTrack || id != "spotify:track:1" {
		t.Errorf("got (%v, %v), want (MediaTrack, spotify:track:1)", mediaType, id)
	}
}

func TestRegistryFetchArtistOpensCircuitAfterFailures(t *testing.T) {
	failing := &failingFetchAdapter{name: "failing"}
	reg := NewRegistry(AdapterConfig{
		Adapter:  failing,
		Priority: 0,
		CircuitCfg: gobreaker.Settings{
			MaxRequests: 1,
			ReadyToTrip: func(counts gobreaker.Counts) bool { return counts.ConsecutiveFailures >= 2 },
		},
	})

	for i := 0; i < 2; i++ {
		if _, err := reg.FetchArtist(context.Background(), failing, "x"); err == nil {
			t.Fatalf("expected failure on attempt %d", i)
		}
	}

	if _, err := reg.FetchArtist(context.Background(), failing, "x"); err == nil {
		t.Fatal("expected circuit-open error on third call")
	}
}

type failingFetchAdapter struct {
	UnimplementedAdapter
	name string
}

func (f *failingFetchAdapter) Name() string { return f.name }
func (f *failingFetchAdapter) FetchArtist(context.Context, MediaID) (Artist, error) {
	return Artist{}, io.ErrUnexpectedEOF
}

func strPtr(s string) *string { return &s }
