// Sonar - self-hosted music library server
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sonarhost/sonar

// Package search implements the search index sync and query path (spec
// §4.12): after any artist/album/track/playlist create/update/delete, the
// catalog's CRUD callbacks (wired in internal/events) write a denormalized
// Document into a Backend; Search asks the Backend for ranked document
// keys and re-hydrates them from the catalog, preserving the backend's
// ranking order.
package search
