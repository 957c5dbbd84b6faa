// Sonar - self-hosted music library server
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sonarhost/sonar

//go:build !nats

package events

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestRouterDispatchesToMatchingKindHandler(t *testing.T) {
	bus := NewBus()
	t.Cleanup(func() { bus.Close() })

	router, err := NewRouter(bus)
	if err != nil {
		t.Fatalf("new router: %v", err)
	}

	var mu sync.Mutex
	var received []Event
	done := make(chan struct{}, 1)

	router.AddHandler("test-artist-handler", KindArtist, func(_ context.Context, ev Event) error {
		mu.Lock()
		received = append(received, ev)
		mu.Unlock()
		select {
		case done <- struct{}{}:
		default:
		}
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() { _ = router.Serve(ctx) }()
	<-router.router.Running()

	if err := bus.Publish(ctx, Event{Kind: KindArtist, Operation: OpCreate, ID: 7}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	// A track event must not reach the artist handler.
	if err := bus.Publish(ctx, Event{Kind: KindTrack, Operation: OpCreate, ID: 8}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for handler dispatch")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(received) != 1 || received[0].ID != 7 || received[0].Kind != KindArtist {
		t.Fatalf("expected exactly one artist event with id 7, got %+v", received)
	}
}

func TestEventTopicIsKindScoped(t *testing.T) {
	ev := Event{Kind: KindAlbum, Operation: OpUpdate, ID: 1}
	if got, want := ev.Topic(), "catalog.album"; got != want {
		t.Fatalf("Topic() = %q, want %q", got, want)
	}
}
