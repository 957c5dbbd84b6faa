// Sonar - self-hosted music library server
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sonarhost/sonar

package store

import (
	"context"
	"fmt"
)

// schemaStatements is the catalog schema implied by spec §3 and laid out
// explicitly in spec §6: one table per primary entity, join tables for
// many-to-many and scoped relations, and views that derive the aggregate
// columns (album duration/track count, artist/album/track listen_count)
// so services never write them directly (spec §4.2, §8 invariants).
var schemaStatements = []string{
	`CREATE SEQUENCE IF NOT EXISTS artist_seq START 1`,
	`CREATE SEQUENCE IF NOT EXISTS album_seq START 1`,
	`CREATE SEQUENCE IF NOT EXISTS track_seq START 1`,
	`CREATE SEQUENCE IF NOT EXISTS playlist_seq START 1`,
	`CREATE SEQUENCE IF NOT EXISTS audio_seq START 1`,
	`CREATE SEQUENCE IF NOT EXISTS image_seq START 1`,
	`CREATE SEQUENCE IF NOT EXISTS user_seq START 1`,
	`CREATE SEQUENCE IF NOT EXISTS lyrics_seq START 1`,
	`CREATE SEQUENCE IF NOT EXISTS scrobble_seq START 1`,
	`CREATE SEQUENCE IF NOT EXISTS subscription_seq START 1`,

	`CREATE TABLE IF NOT EXISTS image (
		id BIGINT PRIMARY KEY,
		mime_type VARCHAR NOT NULL,
		blob_key VARCHAR NOT NULL,
		size BIGINT NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT current_timestamp
	)`,

	`CREATE TABLE IF NOT EXISTS artist (
		id BIGINT PRIMARY KEY,
		name VARCHAR NOT NULL UNIQUE,
		cover_art_id BIGINT REFERENCES image(id),
		created_at TIMESTAMP NOT NULL DEFAULT current_timestamp
	)`,

	`CREATE TABLE IF NOT EXISTS album (
		id BIGINT PRIMARY KEY,
		name VARCHAR NOT NULL,
		artist_id BIGINT NOT NULL REFERENCES artist(id),
		cover_art_id BIGINT REFERENCES image(id),
		created_at TIMESTAMP NOT NULL DEFAULT current_timestamp,
		UNIQUE(artist_id, name)
	)`,

	`CREATE TABLE IF NOT EXISTS lyrics (
		id BIGINT PRIMARY KEY,
		kind VARCHAR NOT NULL CHECK (kind IN ('synced','unsynced'))
	)`,

	`CREATE TABLE IF NOT EXISTS lyrics_line (
		lyrics_id BIGINT NOT NULL REFERENCES lyrics(id),
		position INTEGER NOT NULL,
		offset_ms BIGINT,
		duration_ms BIGINT,
		text VARCHAR NOT NULL,
		PRIMARY KEY (lyrics_id, position)
	)`,

	`CREATE TABLE IF NOT EXISTS track (
		id BIGINT PRIMARY KEY,
		name VARCHAR NOT NULL,
		album_id BIGINT NOT NULL REFERENCES album(id),
		cover_art_id BIGINT REFERENCES image(id),
		preferred_audio_id BIGINT,
		lyrics_id BIGINT REFERENCES lyrics(id),
		created_at TIMESTAMP NOT NULL DEFAULT current_timestamp,
		UNIQUE(album_id, name)
	)`,

	`CREATE TABLE IF NOT EXISTS audio (
		id BIGINT PRIMARY KEY,
		bitrate INTEGER NOT NULL,
		duration_ms BIGINT NOT NULL,
		channels INTEGER NOT NULL,
		sample_rate INTEGER NOT NULL,
		mime_type VARCHAR NOT NULL,
		filename VARCHAR,
		blob_key VARCHAR NOT NULL,
		size BIGINT NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT current_timestamp
	)`,

	`CREATE TABLE IF NOT EXISTS track_audio (
		track_id BIGINT NOT NULL REFERENCES track(id),
		audio_id BIGINT NOT NULL REFERENCES audio(id),
		preferred BOOLEAN NOT NULL DEFAULT false,
		PRIMARY KEY (track_id, audio_id)
	)`,

	`CREATE TABLE IF NOT EXISTS sonar_user (
		id BIGINT PRIMARY KEY,
		username VARCHAR NOT NULL UNIQUE,
		password_hash VARCHAR NOT NULL,
		is_admin BOOLEAN NOT NULL DEFAULT false,
		avatar_image_id BIGINT REFERENCES image(id),
		created_at TIMESTAMP NOT NULL DEFAULT current_timestamp
	)`,

	`CREATE TABLE IF NOT EXISTS playlist (
		id BIGINT PRIMARY KEY,
		name VARCHAR NOT NULL,
		owner_user_id BIGINT NOT NULL REFERENCES sonar_user(id),
		cover_art_id BIGINT REFERENCES image(id),
		created_at TIMESTAMP NOT NULL DEFAULT current_timestamp
	)`,

	`CREATE TABLE IF NOT EXISTS playlist_track (
		playlist_id BIGINT NOT NULL REFERENCES playlist(id),
		position INTEGER NOT NULL,
		track_id BIGINT NOT NULL REFERENCES track(id),
		created_at TIMESTAMP NOT NULL DEFAULT current_timestamp,
		PRIMARY KEY (playlist_id, position)
	)`,

	`CREATE TABLE IF NOT EXISTS scrobble (
		id BIGINT PRIMARY KEY,
		user_id BIGINT NOT NULL REFERENCES sonar_user(id),
		track_id BIGINT NOT NULL REFERENCES track(id),
		listened_at TIMESTAMP NOT NULL,
		listen_duration_ms BIGINT NOT NULL,
		client_name VARCHAR,
		created_at TIMESTAMP NOT NULL DEFAULT current_timestamp
	)`,

	`CREATE TABLE IF NOT EXISTS scrobble_submission (
		scrobble_id BIGINT NOT NULL REFERENCES scrobble(id),
		scrobbler VARCHAR NOT NULL,
		submitted_at TIMESTAMP NOT NULL DEFAULT current_timestamp,
		PRIMARY KEY (scrobble_id, scrobbler)
	)`,

	`CREATE TABLE IF NOT EXISTS favorite (
		user_id BIGINT NOT NULL REFERENCES sonar_user(id),
		target_id BIGINT NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT current_timestamp,
		PRIMARY KEY (user_id, target_id)
	)`,

	`CREATE TABLE IF NOT EXISTS pin (
		user_id BIGINT NOT NULL REFERENCES sonar_user(id),
		target_id BIGINT NOT NULL,
		PRIMARY KEY (user_id, target_id)
	)`,

	`CREATE TABLE IF NOT EXISTS property (
		namespace VARCHAR NOT NULL,
		identifier BIGINT NOT NULL,
		key VARCHAR NOT NULL,
		value VARCHAR NOT NULL,
		user_id BIGINT REFERENCES sonar_user(id),
		PRIMARY KEY (namespace, identifier, key, user_id)
	)`,

	`CREATE TABLE IF NOT EXISTS genre (
		namespace VARCHAR NOT NULL,
		identifier BIGINT NOT NULL,
		genre VARCHAR NOT NULL,
		PRIMARY KEY (namespace, identifier, genre)
	)`,

	`CREATE TABLE IF NOT EXISTS subscription (
		id BIGINT PRIMARY KEY,
		user_id BIGINT NOT NULL REFERENCES sonar_user(id),
		external_id VARCHAR NOT NULL,
		media_type VARCHAR,
		interval_seconds BIGINT,
		description VARCHAR,
		created_at TIMESTAMP NOT NULL DEFAULT current_timestamp,
		last_submitted_at TIMESTAMP,
		UNIQUE(user_id, external_id)
	)`,

	// Aggregate columns (spec §3, §4.2, §8 invariants) are always derived,
	// never written by services: album duration/track_count, artist
	// album_count, and artist/album/track listen_count (resolved as
	// global, currently-live scrobbles per SPEC_FULL.md/DESIGN.md Open
	// Question #2).
	`CREATE OR REPLACE VIEW album_aggregate AS
		SELECT
			al.id AS album_id,
			COUNT(t.id) AS track_count,
			COALESCE(SUM(au.duration_ms), 0) AS duration_ms,
			COALESCE((SELECT COUNT(*) FROM scrobble s
				JOIN track t2 ON t2.id = s.track_id
				WHERE t2.album_id = al.id), 0) AS listen_count
		FROM album al
		LEFT JOIN track t ON t.album_id = al.id
		LEFT JOIN track_audio ta ON ta.track_id = t.id AND ta.preferred = true
		LEFT JOIN audio au ON au.id = ta.audio_id
		GROUP BY al.id`,

	`CREATE OR REPLACE VIEW artist_aggregate AS
		SELECT
			ar.id AS artist_id,
			COUNT(DISTINCT al.id) AS album_count,
			COALESCE((SELECT COUNT(*) FROM scrobble s
				JOIN track t ON t.id = s.track_id
				JOIN album al2 ON al2.id = t.album_id
				WHERE al2.artist_id = ar.id), 0) AS listen_count
		FROM artist ar
		LEFT JOIN album al ON al.artist_id = ar.id
		GROUP BY ar.id`,

	`CREATE OR REPLACE VIEW track_aggregate AS
		SELECT
			t.id AS track_id,
			COALESCE((SELECT COUNT(*) FROM scrobble s WHERE s.track_id = t.id), 0) AS listen_count
		FROM track t`,
}

// migrate applies every schema statement. DuckDB's CREATE ... IF NOT EXISTS
// and CREATE OR REPLACE VIEW make this idempotent across restarts.
func (s *Store) migrate(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema statement: %w\n%s", err, stmt)
		}
	}
	return nil
}
