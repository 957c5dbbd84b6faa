// Sonar - self-hosted music library server
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sonarhost/sonar

// Package store is the single DuckDB-backed persistence layer every
// catalog entity and sub-service (property, genre) builds on. It owns
// schema migration, write-transaction serialization, and the generic
// list/get helpers; it has no knowledge of artists, albums, or tracks by
// name — internal/catalog supplies the table names, scan functions, and
// value-update columns for its own entities.
package store
