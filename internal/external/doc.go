// Sonar - self-hosted music library server
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sonarhost/sonar

// Package external implements the priority-ordered external service
// registry (spec §4.6): a set of adapters that can enrich a media request
// with additional identifying fields, extract a concrete (MediaType,
// MediaID) from a request, fetch the external representation of an
// artist/album/track/playlist/compilation, and download a track's audio.
// Each adapter call runs behind its own circuit breaker and rate limiter
// so one misbehaving provider can't stall or exhaust the others.
package external
