// Sonar - self-hosted music library server
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sonarhost/sonar

package external

import (
	"context"
	"io"
	"sort"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/sonarhost/sonar/internal/metrics"
	"github.com/sonarhost/sonar/internal/sonarerr"
)

// AdapterConfig registers one Adapter with the priority it's consulted at
// (lower runs first) and the resilience settings guarding it.
type AdapterConfig struct {
	Adapter     Adapter
	Priority    int
	RateLimit   rate.Limit // requests per second; zero disables limiting
	RateBurst   int
	CircuitCfg  gobreaker.Settings // Name is overwritten with Adapter.Name()
}

type registeredAdapter struct {
	adapter  Adapter
	priority int
	breaker  *gobreaker.CircuitBreaker[any]
	limiter  *rate.Limiter
}

// Registry holds the priority-ordered set of adapters and dispatches
// Enrich/Extract/Fetch*/Download calls across them (spec §4.6).
type Registry struct {
	adapters []registeredAdapter
}

// NewRegistry builds a Registry from configs, sorted by ascending
// priority so Extract tries the most specific/preferred adapter first.
func NewRegistry(configs ...AdapterConfig) *Registry {
	entries := make([]registeredAdapter, 0, len(configs))
	for _, c := range configs {
		settings := c.CircuitCfg
		settings.Name = c.Adapter.Name()
		if settings.ReadyToTrip == nil {
			settings.ReadyToTrip = func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			}
		}
		adapterName := c.Adapter.Name()
		settings.OnStateChange = func(name string, from, to gobreaker.State) {
			metrics.ExternalAdapterCircuitState.WithLabelValues(adapterName).Set(float64(to))
		}

		var limiter *rate.Limiter
		if c.RateLimit > 0 {
			burst := c.RateBurst
			if burst <= 0 {
				burst = 1
			}
			limiter = rate.NewLimiter(c.RateLimit, burst)
		}

		entries = append(entries, registeredAdapter{
			adapter:  c.Adapter,
			priority: c.Priority,
			breaker:  gobreaker.NewCircuitBreaker[any](settings),
			limiter:  limiter,
		})
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].priority < entries[j].priority })
	return &Registry{adapters: entries}
}

// Enrich runs every adapter's Enrich in priority order, repeating the pass
// until a full round changes nothing (spec §4.6 "enrich-to-fixed-point").
func (r *Registry) Enrich(ctx context.Context, request *MediaRequest) error {
	status := Modified
	for status == Modified {
		status = NotModified
		for _, a := range r.adapters {
			result, err := callBreaker(a, "enrich", func() (EnrichStatus, error) {
				return a.adapter.Enrich(ctx, request)
			})
			if err != nil {
				continue
			}
			if result == Modified {
				status = Modified
			}
		}
	}
	return nil
}

// Extract asks each adapter in turn to resolve request to a concrete
// external id, returning the first adapter that succeeds.
func (r *Registry) Extract(ctx context.Context, request MediaRequest) (Adapter, MediaType, MediaID, error) {
	for _, a := range r.adapters {
		mediaType, id, err := callBreakerPair(a, "extract", func() (MediaType, MediaID, error) {
			return a.adapter.Extract(ctx, request)
		})
		if err == nil {
			return a.adapter, mediaType, id, nil
		}
	}
	return nil, 0, "", sonarerr.Invalidf("no adapter could extract request")
}

// Resolve finds the adapter that recognizes id and the media type it
// names, trying Extract on each registered adapter with a request seeded
// by id alone (spec §4.7 "find the service owning an external id").
func (r *Registry) Resolve(ctx context.Context, id MediaID) (Adapter, MediaType, error) {
	adapter, mediaType, _, err := r.Extract(ctx, RequestFromID(id))
	if err != nil {
		return nil, 0, err
	}
	return adapter, mediaType, nil
}

// ResolveExpecting is Resolve, additionally requiring the resolved media
// type to match want.
func (r *Registry) ResolveExpecting(ctx context.Context, id MediaID, want MediaType) (Adapter, error) {
	adapter, mediaType, err := r.Resolve(ctx, id)
	if err != nil {
		return nil, err
	}
	if mediaType != want {
		return nil, sonarerr.Invalidf("external id %q resolved to %s, want %s", id, mediaType, want)
	}
	return adapter, nil
}

// Adapters returns the registered adapters in priority order.
func (r *Registry) Adapters() []Adapter {
	out := make([]Adapter, len(r.adapters))
	for i, a := range r.adapters {
		out[i] = a.adapter
	}
	return out
}

// FetchArtist dispatches to the adapter that owns id.
func (r *Registry) FetchArtist(ctx context.Context, a Adapter, id MediaID) (Artist, error) {
	ra := r.find(a)
	return callBreaker(ra, "fetch_artist", func() (Artist, error) { return a.FetchArtist(ctx, id) })
}

// FetchAlbum dispatches to the adapter that owns id.
func (r *Registry) FetchAlbum(ctx context.Context, a Adapter, id MediaID) (Album, error) {
	ra := r.find(a)
	return callBreaker(ra, "fetch_album", func() (Album, error) { return a.FetchAlbum(ctx, id) })
}

// FetchTrack dispatches to the adapter that owns id.
func (r *Registry) FetchTrack(ctx context.Context, a Adapter, id MediaID) (Track, error) {
	ra := r.find(a)
	return callBreaker(ra, "fetch_track", func() (Track, error) { return a.FetchTrack(ctx, id) })
}

// FetchPlaylist dispatches to the adapter that owns id.
func (r *Registry) FetchPlaylist(ctx context.Context, a Adapter, id MediaID) (Playlist, error) {
	ra := r.find(a)
	return callBreaker(ra, "fetch_playlist", func() (Playlist, error) { return a.FetchPlaylist(ctx, id) })
}

// FetchCompilation dispatches to the adapter that owns id.
func (r *Registry) FetchCompilation(ctx context.Context, a Adapter, id MediaID) (Compilation, error) {
	ra := r.find(a)
	return callBreaker(ra, "fetch_compilation", func() (Compilation, error) { return a.FetchCompilation(ctx, id) })
}

// FetchGroup dispatches to the adapter that owns id.
func (r *Registry) FetchGroup(ctx context.Context, a Adapter, id MediaID) ([]MediaID, error) {
	ra := r.find(a)
	return callBreaker(ra, "fetch_group", func() ([]MediaID, error) { return a.FetchGroup(ctx, id) })
}

// DownloadTrack dispatches to the adapter that owns id.
func (r *Registry) DownloadTrack(ctx context.Context, a Adapter, id MediaID) (io.ReadCloser, error) {
	ra := r.find(a)
	return callBreaker(ra, "download_track", func() (io.ReadCloser, error) { return a.DownloadTrack(ctx, id) })
}

func (r *Registry) find(a Adapter) registeredAdapter {
	for _, ra := range r.adapters {
		if ra.adapter == a {
			return ra
		}
	}
	return registeredAdapter{adapter: a}
}

// callBreaker runs fn through ra's rate limiter and circuit breaker,
// recording per-adapter call latency. A zero-value registeredAdapter (no
// breaker registered, e.g. find() falling through) calls fn directly.
func callBreaker[T any](ra registeredAdapter, operation string, fn func() (T, error)) (T, error) {
	start := time.Now()
	defer func() {
		metrics.ExternalAdapterCallDuration.WithLabelValues(adapterLabel(ra), operation).Observe(time.Since(start).Seconds())
	}()

	if ra.limiter != nil {
		if err := ra.limiter.Wait(context.Background()); err != nil {
			var zero T
			return zero, sonarerr.WrapInternal(err, "rate limit wait")
		}
	}
	if ra.breaker == nil {
		return fn()
	}
	result, err := ra.breaker.Execute(func() (any, error) { return fn() })
	if err != nil {
		var zero T
		return zero, err
	}
	return result.(T), nil
}

// callBreakerPair is callBreaker for two-value-plus-error results, which
// Go generics can't express as a single type parameter.
func callBreakerPair[A, B any](ra registeredAdapter, operation string, fn func() (A, B, error)) (A, B, error) {
	type pair struct {
		a A
		b B
	}
	p, err := callBreaker(ra, operation, func() (pair, error) {
		a, b, err := fn()
		return pair{a, b}, err
	})
	return p.a, p.b, err
}

func adapterLabel(ra registeredAdapter) string {
	if ra.adapter == nil {
		return "unknown"
	}
	return ra.adapter.Name()
}
