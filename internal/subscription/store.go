// Sonar - self-hosted music library server
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sonarhost/sonar

package subscription

import (
	"context"
	"database/sql"
	"time"

	"github.com/sonarhost/sonar/internal/external"
	"github.com/sonarhost/sonar/internal/ids"
	"github.com/sonarhost/sonar/internal/sonarerr"
	"github.com/sonarhost/sonar/internal/store"
)

// Subscription is a persisted intent to periodically re-download a given
// external id for a user (spec §3 "Subscription").
type Subscription struct {
	ID               uint32
	UserID           ids.UserID
	ExternalID       external.MediaID
	MediaType        *external.MediaType
	Interval         time.Duration // zero means the controller's default
	Description      string
	CreatedAt        time.Time
	LastSubmittedAt  *time.Time
}

// DefaultInterval is how often a subscription with no explicit interval
// is re-submitted (spec §4.8 "default every few hours").
const DefaultInterval = 6 * time.Hour

func (s Subscription) effectiveInterval() time.Duration {
	if s.Interval > 0 {
		return s.Interval
	}
	return DefaultInterval
}

func (s Subscription) due(now time.Time) bool {
	if s.LastSubmittedAt == nil {
		return true
	}
	return now.Sub(*s.LastSubmittedAt) >= s.effectiveInterval()
}

// Store persists subscriptions over internal/store.
type Store struct {
	store *store.Store
}

// NewStore constructs a subscription Store over s.
func NewStore(s *store.Store) *Store {
	return &Store{store: s}
}

func scanSubscription(row interface{ Scan(dest ...any) error }) (Subscription, error) {
	var id, userID uint32
	var externalID string
	var mediaType sql.NullString
	var intervalSeconds sql.NullInt64
	var description sql.NullString
	var createdAt time.Time
	var lastSubmittedAt sql.NullTime

	if err := row.Scan(&id, &userID, &externalID, &mediaType, &intervalSeconds, &description, &createdAt, &lastSubmittedAt); err != nil {
		return Subscription{}, err
	}

	sub := Subscription{
		ID:         id,
		UserID:     ids.NewUserID(userID),
		ExternalID: external.MediaID(externalID),
		CreatedAt:  createdAt,
	}
	if mediaType.Valid {
		mt := parseMediaType(mediaType.String)
		sub.MediaType = &mt
	}
	if intervalSeconds.Valid {
		sub.Interval = time.Duration(intervalSeconds.Int64) * time.Second
	}
	if description.Valid {
		sub.Description = description.String
	}
	if lastSubmittedAt.Valid {
		t := lastSubmittedAt.Time
		sub.LastSubmittedAt = &t
	}
	return sub, nil
}

func parseMediaType(s string) external.MediaType {
	switch s {
	case "artist":
		return external.MediaArtist
	case "album":
		return external.MediaAlbum
	case "track":
		return external.MediaTrack
	case "playlist":
		return external.MediaPlaylist
	case "compilation":
		return external.MediaCompilation
	default:
		return external.MediaGroup
	}
}

// ListByUser returns every subscription owned by userID.
func (s *Store) ListByUser(ctx context.Context, userID ids.UserID) ([]Subscription, error) {
	rows, err := s.store.Reader().QueryContext(ctx, "SELECT * FROM subscription WHERE user_id = ? ORDER BY id", userID.Sequence())
	if err != nil {
		return nil, sonarerr.WrapInternal(err, "list subscriptions")
	}
	defer rows.Close()

	var out []Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, sonarerr.WrapInternal(err, "scan subscription row")
		}
		out = append(out, sub)
	}
	return out, rows.Err()
}

// ListDue returns every subscription across all users whose interval has
// elapsed since its last submission (or that has never been submitted).
func (s *Store) ListDue(ctx context.Context, now time.Time) ([]Subscription, error) {
	rows, err := s.store.Reader().QueryContext(ctx, "SELECT * FROM subscription")
	if err != nil {
		return nil, sonarerr.WrapInternal(err, "list subscriptions")
	}
	defer rows.Close()

	var due []Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, sonarerr.WrapInternal(err, "scan subscription row")
		}
		if sub.due(now) {
			due = append(due, sub)
		}
	}
	return due, rows.Err()
}

// Create persists a new subscription.
func (s *Store) Create(ctx context.Context, userID ids.UserID, externalID external.MediaID, mediaType *external.MediaType, interval time.Duration, description string) (Subscription, error) {
	if externalID == "" {
		return Subscription{}, sonarerr.Invalidf("subscription external id must not be empty")
	}

	var created Subscription
	err := s.store.WithTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, "SELECT nextval('subscription_seq')")
		var seq int64
		if err := row.Scan(&seq); err != nil {
			return sonarerr.WrapInternal(err, "allocate subscription id")
		}

		var mediaTypeArg, intervalArg, descriptionArg any
		if mediaType != nil {
			mediaTypeArg = mediaType.String()
		}
		if interval > 0 {
			intervalArg = int64(interval / time.Second)
		}
		if description != "" {
			descriptionArg = description
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO subscription (id, user_id, external_id, media_type, interval_seconds, description)
			VALUES (?, ?, ?, ?, ?, ?)
		`, seq, userID.Sequence(), string(externalID), mediaTypeArg, intervalArg, descriptionArg); err != nil {
			return sonarerr.WrapInternal(err, "insert subscription")
		}

		row = tx.QueryRowContext(ctx, "SELECT * FROM subscription WHERE id = ?", seq)
		sub, err := scanSubscription(row)
		if err != nil {
			return sonarerr.WrapInternal(err, "read back created subscription")
		}
		created = sub
		return nil
	})
	if err != nil {
		return Subscription{}, err
	}
	return created, nil
}

// Delete removes a subscription by id, scoped to userID so one user can't
// delete another's subscription by guessing its id.
func (s *Store) Delete(ctx context.Context, userID ids.UserID, id uint32) error {
	result, err := s.store.Reader().ExecContext(ctx, "DELETE FROM subscription WHERE id = ? AND user_id = ?", id, userID.Sequence())
	if err != nil {
		return sonarerr.WrapInternal(err, "delete subscription")
	}
	n, err := result.RowsAffected()
	if err != nil {
		return sonarerr.WrapInternal(err, "check delete result")
	}
	if n == 0 {
		return sonarerr.NotFoundf("subscription %d not found", id)
	}
	return nil
}

// MarkSubmitted records that id was just re-submitted to the download
// orchestrator.
func (s *Store) MarkSubmitted(ctx context.Context, id uint32, at time.Time) error {
	_, err := s.store.Reader().ExecContext(ctx, "UPDATE subscription SET last_submitted_at = ? WHERE id = ?", at, id)
	if err != nil {
		return sonarerr.WrapInternal(err, "mark subscription submitted")
	}
	return nil
}
