// Sonar - self-hosted music library server
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sonarhost/sonar

package catalog

import (
	"context"
	"database/sql"
	"regexp"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/google/uuid"
	"github.com/sonarhost/sonar/internal/ids"
	"github.com/sonarhost/sonar/internal/metrics"
	"github.com/sonarhost/sonar/internal/sonarerr"
	"github.com/sonarhost/sonar/internal/store"
)

var usernamePattern = regexp.MustCompile(`^[a-z0-9_]{3,24}$`)

// User is an account row, never carrying its password hash past this
// package's boundary (spec §3/§4.4).
type User struct {
	ID            ids.UserID
	Username      string
	IsAdmin       bool
	AvatarImageID *ids.ImageID
	CreatedAt     time.Time
}

// UserService implements the user entity family, plus an in-process login
// token store (spec §4.4 "authenticate"). Tokens do not survive restart,
// matching the teacher's in-memory session table pattern.
type UserService struct {
	store *store.Store

	mu     sync.RWMutex
	tokens map[string]ids.UserID
}

// NewUserService constructs the user service over s.
func NewUserService(s *store.Store) *UserService {
	return &UserService{store: s, tokens: make(map[string]ids.UserID)}
}

func scanUser(row rowScanner) (User, error) {
	var rawID uint32
	var username, passwordHash string
	var isAdmin bool
	var avatarImageID sql.NullInt64
	var createdAt time.Time
	if err := row.Scan(&rawID, &username, &passwordHash, &isAdmin, &avatarImageID, &createdAt); err != nil {
		return User{}, err
	}
	u := User{ID: ids.NewUserID(rawID), Username: username, IsAdmin: isAdmin, CreatedAt: createdAt}
	if avatarImageID.Valid {
		id := ids.NewImageID(uint32(avatarImageID.Int64))
		u.AvatarImageID = &id
	}
	return u, nil
}

func validateUsername(username string) error {
	if !usernamePattern.MatchString(username) {
		return sonarerr.Invalidf("username must be 3-24 lowercase ascii letters, digits, or underscores")
	}
	return nil
}

// List returns every user.
func (s *UserService) List(ctx context.Context) ([]User, error) {
	return store.List(ctx, s.store.Reader(), "sonar_user", func(r *sql.Rows) (User, error) { return scanUser(r) })
}

// Get fetches one user by id.
func (s *UserService) Get(ctx context.Context, id ids.UserID) (User, error) {
	return store.Get(ctx, s.store.Reader(), "sonar_user", id.Sequence(), func(r *sql.Rows) (User, error) { return scanUser(r) })
}

// GetByUsername fetches one user by username.
func (s *UserService) GetByUsername(ctx context.Context, username string) (User, error) {
	row := s.store.Reader().QueryRowContext(ctx, "SELECT * FROM sonar_user WHERE username = ?", username)
	u, err := scanUser(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return User{}, sonarerr.NotFoundf("no user %q", username)
		}
		return User{}, sonarerr.WrapInternal(err, "get user by username")
	}
	return u, nil
}

// UserCreate is the input to Create.
type UserCreate struct {
	Username string
	Password string
	IsAdmin  bool
}

// Create hashes Password with bcrypt and inserts the user row.
func (s *UserService) Create(ctx context.Context, in UserCreate) (User, error) {
	start := time.Now()
	defer func() {
		metrics.CatalogOperationDuration.WithLabelValues("user", "create").Observe(time.Since(start).Seconds())
	}()

	if err := validateUsername(in.Username); err != nil {
		return User{}, err
	}
	if len(in.Password) < 8 {
		return User{}, sonarerr.Invalidf("password must be at least 8 characters")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, sonarerr.WrapInternal(err, "hash password")
	}

	var created User
	err = s.store.WithTx(ctx, func(tx *sql.Tx) error {
		seqRow := tx.QueryRowContext(ctx, "SELECT nextval('user_seq')")
		var seq int64
		if err := seqRow.Scan(&seq); err != nil {
			return sonarerr.WrapInternal(err, "allocate user id")
		}
		_, err := tx.ExecContext(ctx, "INSERT INTO sonar_user (id, username, password_hash, is_admin) VALUES (?, ?, ?, ?)",
			seq, in.Username, string(hash), in.IsAdmin)
		if err != nil {
			return sonarerr.WrapInternal(err, "insert user")
		}
		row := tx.QueryRowContext(ctx, "SELECT * FROM sonar_user WHERE id = ?", seq)
		u, err := scanUser(row)
		if err != nil {
			return sonarerr.WrapInternal(err, "read back created user")
		}
		created = u
		return nil
	})
	if err != nil {
		metrics.CatalogOperationErrors.WithLabelValues("user", "create", sonarerr.KindOf(err).String()).Inc()
		return User{}, err
	}
	return created, nil
}

// Delete removes a user row. Callers must first clear any playlist,
// favorite, pin, and scrobble rows owned by it.
func (s *UserService) Delete(ctx context.Context, id ids.UserID) error {
	err := s.store.WithTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, "DELETE FROM sonar_user WHERE id = ?", id.Sequence())
		if err != nil {
			return sonarerr.WrapInternal(err, "delete user")
		}
		n, err := res.RowsAffected()
		if err != nil {
			return sonarerr.WrapInternal(err, "check delete user result")
		}
		if n == 0 {
			return sonarerr.NotFoundf("no user with id %s", id)
		}
		return nil
	})
	if err != nil {
		metrics.CatalogOperationErrors.WithLabelValues("user", "delete", sonarerr.KindOf(err).String()).Inc()
		return err
	}
	s.mu.Lock()
	for token, uid := range s.tokens {
		if uid == id {
			delete(s.tokens, token)
		}
	}
	s.mu.Unlock()
	return nil
}

// Authenticate checks username/password against the stored bcrypt hash and,
// on success, mints and remembers a bearer token (spec §4.4
// "authenticate"). The token is process-local and does not survive a
// restart.
func (s *UserService) Authenticate(ctx context.Context, username, password string) (token string, user User, err error) {
	u, err := s.VerifyPassword(ctx, username, password)
	if err != nil {
		return "", User{}, err
	}

	tok := uuid.NewString()
	s.mu.Lock()
	s.tokens[tok] = u.ID
	s.mu.Unlock()
	return tok, u, nil
}

// VerifyPassword checks username/password against the stored bcrypt hash
// without minting a bearer token. Used by callers that re-check credentials
// on every request rather than holding a session (the legacy subsonic
// surface's "u"/"p" params), where minting one token per call would leak
// the in-memory token table.
func (s *UserService) VerifyPassword(ctx context.Context, username, password string) (User, error) {
	row := s.store.Reader().QueryRowContext(ctx, "SELECT * FROM sonar_user WHERE username = ?", username)
	var rawID uint32
	var uname, passwordHash string
	var isAdmin bool
	var avatarImageID sql.NullInt64
	var createdAt time.Time
	if err := row.Scan(&rawID, &uname, &passwordHash, &isAdmin, &avatarImageID, &createdAt); err != nil {
		if err == sql.ErrNoRows {
			return User{}, sonarerr.Unauthorizedf("invalid username or password")
		}
		return User{}, sonarerr.WrapInternal(err, "authenticate")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(passwordHash), []byte(password)); err != nil {
		return User{}, sonarerr.Unauthorizedf("invalid username or password")
	}

	u := User{ID: ids.NewUserID(rawID), Username: uname, IsAdmin: isAdmin, CreatedAt: createdAt}
	if avatarImageID.Valid {
		id := ids.NewImageID(uint32(avatarImageID.Int64))
		u.AvatarImageID = &id
	}
	return u, nil
}

// UserByToken resolves a bearer token minted by Authenticate, or
// Unauthorized if unknown.
func (s *UserService) UserByToken(ctx context.Context, token string) (User, error) {
	s.mu.RLock()
	id, ok := s.tokens[token]
	s.mu.RUnlock()
	if !ok {
		return User{}, sonarerr.Unauthorizedf("unknown or expired token")
	}
	return s.Get(ctx, id)
}

// Logout forgets a bearer token.
func (s *UserService) Logout(token string) {
	s.mu.Lock()
	delete(s.tokens, token)
	s.mu.Unlock()
}
