// Sonar - self-hosted music library server
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sonarhost/sonar

// Package download implements the per-(user, external id) download
// orchestrator (spec §4.7): Request starts a background task that
// recursively materializes an external artist/album/track/playlist into
// the catalog, List reports each user's in-flight and finished tasks, and
// Delete cancels a running one. One task tracks its own status rather
// than routing every update through a single actor loop, since Go's
// goroutine-plus-mutex idiom doesn't need the original's channel-actor
// indirection to stay race-free.
package download
