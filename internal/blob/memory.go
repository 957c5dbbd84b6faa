// Sonar - self-hosted music library server
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sonarhost/sonar

package blob

import (
	"bytes"
	"context"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/sonarhost/sonar/internal/sonarerr"
)

// MemoryStore is an in-process Store backed by a map, the behavioral
// substitute for FilesystemStore used in tests and the "memory" storage
// backend (spec §4.3, §9 config).
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemoryStore constructs an empty in-memory blob store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

func (m *MemoryStore) Write(ctx context.Context, key string, data io.Reader) (int64, error) {
	buf, err := io.ReadAll(data)
	if err != nil {
		return 0, sonarerr.WrapInternal(err, "read blob data for %s", key)
	}
	m.mu.Lock()
	m.data[key] = buf
	m.mu.Unlock()
	return int64(len(buf)), nil
}

func (m *MemoryStore) Read(ctx context.Context, key string, r Range) (io.ReadCloser, error) {
	m.mu.RLock()
	buf, ok := m.data[key]
	m.mu.RUnlock()
	if !ok {
		return nil, sonarerr.NotFoundf("no blob %s", key)
	}

	start := r.Offset
	if start < 0 || start > int64(len(buf)) {
		return nil, sonarerr.Invalidf("range offset %d out of bounds for blob %s", start, key)
	}
	end := int64(len(buf))
	if r.Length >= 0 && start+r.Length < end {
		end = start + r.Length
	}
	return io.NopCloser(bytes.NewReader(buf[start:end])), nil
}

func (m *MemoryStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	delete(m.data, key)
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Exists(ctx context.Context, key string) (bool, error) {
	m.mu.RLock()
	_, ok := m.data[key]
	m.mu.RUnlock()
	return ok, nil
}

func (m *MemoryStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]string, 0)
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}
