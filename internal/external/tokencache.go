// Sonar - self-hosted music library server
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sonarhost/sonar

package external

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
)

// tokenKeyPrefix namespaces adapter OAuth/session tokens within the
// shared badger database so the cache can share a handle with other
// restart-durable caches (e.g. internal/metadata's enrich-result cache).
const tokenKeyPrefix = "external:token:"

// cachedToken is what TokenCache persists per (adapter, key) pair.
type cachedToken struct {
	Value     string    `json:"value"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (t cachedToken) expired() bool {
	return !t.ExpiresAt.IsZero() && time.Now().After(t.ExpiresAt)
}

// TokenCache persists adapter access tokens (OAuth bearer tokens, session
// cookies) across restarts so an adapter doesn't have to re-authenticate
// on every process start.
type TokenCache struct {
	db *badger.DB
}

// NewTokenCache wraps an already-open badger database.
func NewTokenCache(db *badger.DB) *TokenCache {
	return &TokenCache{db: db}
}

// Get returns the cached token for (adapter, key), or ok=false if absent
// or expired.
func (c *TokenCache) Get(ctx context.Context, adapter, key string) (string, bool, error) {
	var tok cachedToken
	found := false

	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(tokenKeyPrefix + adapter + ":" + key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &tok)
		})
	})
	if err != nil {
		return "", false, fmt.Errorf("get cached token: %w", err)
	}
	if !found || tok.expired() {
		return "", false, nil
	}
	return tok.Value, true, nil
}

// Set stores value for (adapter, key), expiring it at ttl from now. A
// zero ttl means the token never expires on its own (still subject to
// the adapter evicting it with a fresh Set).
func (c *TokenCache) Set(ctx context.Context, adapter, key, value string, ttl time.Duration) error {
	tok := cachedToken{Value: value}
	if ttl > 0 {
		tok.ExpiresAt = time.Now().Add(ttl)
	}
	data, err := json.Marshal(tok)
	if err != nil {
		return fmt.Errorf("marshal cached token: %w", err)
	}
	return c.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry([]byte(tokenKeyPrefix+adapter+":"+key), data)
		if ttl > 0 {
			entry = entry.WithTTL(ttl)
		}
		return txn.SetEntry(entry)
	})
}

// Delete evicts a cached token, forcing the adapter to re-authenticate on
// its next call.
func (c *TokenCache) Delete(ctx context.Context, adapter, key string) error {
	return c.db.Update(func(txn *badger.Txn) error {
		err := txn.Delete([]byte(tokenKeyPrefix + adapter + ":" + key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		return err
	})
}
