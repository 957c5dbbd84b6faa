// Sonar - self-hosted music library server
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sonarhost/sonar

package store

import (
	"context"
	"database/sql"
	"testing"

	"github.com/sonarhost/sonar/internal/config"
)

// testDBSemaphore serializes DuckDB connection creation across tests;
// concurrent CGO connection setup is a known source of flakiness under CI
// resource pressure.
var testDBSemaphore = make(chan struct{}, 1)

func setupTestStore(t *testing.T) *Store {
	t.Helper()

	testDBSemaphore <- struct{}{}
	t.Cleanup(func() { <-testDBSemaphore })

	s, err := Open(context.Background(), config.DatabaseConfig{
		Path:      ":memory:",
		MaxMemory: "512MB",
	})
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func insertTestArtist(t *testing.T, s *Store, id uint32, name string) {
	t.Helper()
	err := s.WithTx(context.Background(), func(tx *sql.Tx) error {
		_, err := tx.ExecContext(context.Background(), "INSERT INTO artist (id, name) VALUES (?, ?)", id, name)
		return err
	})
	if err != nil {
		t.Fatalf("insert test artist: %v", err)
	}
}

func scanArtistName(rows *sql.Rows) (string, error) {
	var id uint32
	var name string
	var coverArtID sql.NullInt64
	var createdAt any
	if err := rows.Scan(&id, &name, &coverArtID, &createdAt); err != nil {
		return "", err
	}
	return name, nil
}

func TestOpenMigratesSchema(t *testing.T) {
	s := setupTestStore(t)

	var count int
	row := s.Reader().QueryRowContext(context.Background(),
		"SELECT count(*) FROM information_schema.tables WHERE table_name = 'artist'")
	if err := row.Scan(&count); err != nil {
		t.Fatalf("check schema: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected artist table to exist, got count %d", count)
	}
}

func TestWithTxCommitsOnSuccess(t *testing.T) {
	s := setupTestStore(t)
	insertTestArtist(t, s, 1, "Metallica")

	name, err := Get(context.Background(), s.Reader(), "artist", 1, scanArtistName)
	if err != nil {
		t.Fatalf("get artist: %v", err)
	}
	if name != "Metallica" {
		t.Fatalf("expected Metallica, got %q", name)
	}
}

func TestWithTxRollsBackOnError(t *testing.T) {
	s := setupTestStore(t)

	sentinel := sql.ErrConnDone
	err := s.WithTx(context.Background(), func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(context.Background(), "INSERT INTO artist (id, name) VALUES (?, ?)", 2, "Ghost"); err != nil {
			return err
		}
		return sentinel
	})
	if err != sentinel {
		t.Fatalf("expected sentinel error, got %v", err)
	}

	_, err = Get(context.Background(), s.Reader(), "artist", 2, scanArtistName)
	if err == nil {
		t.Fatal("expected rolled-back insert to be absent")
	}
}

func TestGetBulkPreservesOrderAndDuplicates(t *testing.T) {
	s := setupTestStore(t)
	insertTestArtist(t, s, 1, "Metallica")
	insertTestArtist(t, s, 2, "Ghost")
	insertTestArtist(t, s, 3, "Opeth")

	names, err := GetBulk(context.Background(), s.Reader(), "artist",
		[]uint32{2, 1, 2, 3}, scanArtistNameWithID, func(r namedRow) uint32 { return r.id })
	if err != nil {
		t.Fatalf("get bulk: %v", err)
	}

	want := []string{"Ghost", "Metallica", "Ghost", "Opeth"}
	if len(names) != len(want) {
		t.Fatalf("expected %d results, got %d", len(want), len(names))
	}
	for i, n := range names {
		if n.name != want[i] {
			t.Fatalf("position %d: expected %s, got %s", i, want[i], n.name)
		}
	}
}

type namedRow struct {
	id   uint32
	name string
}

func scanArtistNameWithID(rows *sql.Rows) (namedRow, error) {
	var id uint32
	var name string
	var coverArtID sql.NullInt64
	var createdAt any
	if err := rows.Scan(&id, &name, &coverArtID, &createdAt); err != nil {
		return namedRow{}, err
	}
	return namedRow{id: id, name: name}, nil
}

func TestGetBulkMissingIDIsNotFound(t *testing.T) {
	s := setupTestStore(t)
	insertTestArtist(t, s, 1, "Metallica")

	_, err := GetBulk(context.Background(), s.Reader(), "artist",
		[]uint32{1, 99}, scanArtistNameWithID, func(r namedRow) uint32 { return r.id })
	if err == nil {
		t.Fatal("expected not-found error for missing id")
	}
}

func TestPropertyStoreSetGetDelete(t *testing.T) {
	s := setupTestStore(t)
	insertTestArtist(t, s, 1, "Metallica")
	props := s.Properties()

	err := s.WithTx(context.Background(), func(tx *sql.Tx) error {
		return props.Set(context.Background(), tx, "artist", 1, "country", "US", nil)
	})
	if err != nil {
		t.Fatalf("set property: %v", err)
	}

	value, err := props.Get(context.Background(), "artist", 1, "country", nil)
	if err != nil {
		t.Fatalf("get property: %v", err)
	}
	if value != "US" {
		t.Fatalf("expected US, got %q", value)
	}

	err = s.WithTx(context.Background(), func(tx *sql.Tx) error {
		return props.Delete(context.Background(), tx, "artist", 1, "country", nil)
	})
	if err != nil {
		t.Fatalf("delete property: %v", err)
	}

	if _, err := props.Get(context.Background(), "artist", 1, "country", nil); err == nil {
		t.Fatal("expected property to be gone after delete")
	}
}

func TestGenreStoreReplace(t *testing.T) {
	s := setupTestStore(t)
	insertTestArtist(t, s, 1, "Opeth")
	genres := s.Genres()

	err := s.WithTx(context.Background(), func(tx *sql.Tx) error {
		return genres.Replace(context.Background(), tx, "artist", 1, []string{"progressive metal", "death metal"})
	})
	if err != nil {
		t.Fatalf("replace genres: %v", err)
	}

	got, err := genres.List(context.Background(), "artist", 1)
	if err != nil {
		t.Fatalf("list genres: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 genres, got %d", len(got))
	}
}
