// Sonar - self-hosted music library server
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sonarhost/sonar

/*
Package middleware provides HTTP middleware components for the application.

This package implements infrastructure middleware for compression, performance
monitoring, request ID tracking, and Prometheus metrics integration. These
components can be nested into a middleware stack for HTTP request
processing.

Key Components:

  - Compression: Gzip compression for any response when the client accepts gzip
  - Performance Monitor: Request latency tracking with percentile calculations
  - Request ID: UUID-based request tracking for distributed tracing
  - Prometheus Metrics: HTTP request/response instrumentation

Middleware Stack:

The middleware in this package nests around a handler:

	http.HandleFunc("/api/v1/endpoint",
	    middleware.PrometheusMetrics( // Layer 1: Metrics
	        middleware.Compression(    // Layer 2: Gzip
	            middleware.RequestID(  // Layer 3: Request tracking
	                handler,           // Layer 4: Business logic
	            ),
	        ),
	    ),
	)

Usage Example - Compression:

	import "github.com/sonarhost/sonar/internal/middleware"

	// Wrap handler with gzip compression
	http.HandleFunc("/api/v1/data",
	    middleware.Compression(handler),
	)

	// Every response is compressed when the request's
	// Accept-Encoding header contains gzip

Usage Example - Performance Monitoring:

	// Create a performance monitor keeping the last 1000 requests
	perfMon := middleware.NewPerformanceMonitor(1000)

	// Wrap handler
	http.Handle("/api/v1/stats",
	    perfMon.Middleware(handler),
	)

	// Get per-endpoint statistics
	for _, s := range perfMon.GetStats() {
	    fmt.Printf("%s p50: %dms, p95: %dms, p99: %dms\n",
	        s.Path, s.P50Duration, s.P95Duration, s.P99Duration)
	}

Usage Example - Request ID:

	// Request ID middleware
	http.HandleFunc("/api/v1/logs",
	    middleware.RequestID(handler),
	)

	// Access request ID in handler
	func handler(w http.ResponseWriter, r *http.Request) {
	    requestID := r.Context().Value(middleware.RequestIDKey).(string)
	    log.Printf("[%s] Processing request", requestID)
	}

Performance Characteristics:

  - Compression: 70-90% size reduction for JSON (text/json mime types)
  - Compression overhead: ~1-2ms for typical responses
  - Metrics overhead: <0.1ms per request
  - Request ID overhead: <0.01ms (UUID generation)
  - Performance monitor: mutex-guarded sliding window of latency samples

Compression Details:

The compression middleware:
  - Compresses every response, whatever its size or mime type, when the
    request's Accept-Encoding header contains gzip
  - Skips WebSocket upgrade requests
  - Sets Content-Encoding and removes Content-Length
  - Provides no Flush; compressed bytes reach the client as the gzip
    writer emits them and when it is closed after the handler returns

Performance Monitor:

The performance monitor tracks:
  - Request count per endpoint
  - Latency percentiles (p50, p95, p99), minimum, maximum and average
  - A sliding window of the most recent requests, sized by the argument
    to NewPerformanceMonitor
  - Thread-safe concurrent access with RWMutex

Thread Safety:

All middleware components are thread-safe:
  - Compression uses per-request gzip writers
  - Performance monitor uses sync.RWMutex
  - Request ID uses context.Context (immutable)
  - Prometheus metrics use atomic operations

See Also:

  - internal/rpc: mounts RequestID on the RPC router
  - internal/metrics: Prometheus metrics definitions
*/
package middleware
