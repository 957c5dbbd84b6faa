// Sonar - self-hosted music library server
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sonarhost/sonar

package search

import (
	"context"
	"strconv"
	"strings"

	"github.com/blevesearch/bleve/v2"

	"github.com/sonarhost/sonar/internal/sonarerr"
)

// BleveBackend is the built-in Backend (spec §9 open question resolved:
// the built-in is the sole required implementation), grounded on
// Aunali321-korus's use of bleve/v2 for the same kind of music-metadata
// search index.
type BleveBackend struct {
	index bleve.Index
}

// NewBleveBackend opens (or creates) a bleve index at path. An empty path
// builds an in-memory-only index, for tests and for the storage backend
// "memory" configuration.
func NewBleveBackend(path string) (*BleveBackend, error) {
	if path == "" {
		idx, err := bleve.NewMemOnly(bleve.NewIndexMapping())
		if err != nil {
			return nil, sonarerr.WrapInternal(err, "create in-memory search index")
		}
		return &BleveBackend{index: idx}, nil
	}

	idx, err := bleve.Open(path)
	if err == nil {
		return &BleveBackend{index: idx}, nil
	}
	idx, err = bleve.New(path, bleve.NewIndexMapping())
	if err != nil {
		return nil, sonarerr.WrapInternal(err, "open search index at %q", path)
	}
	return &BleveBackend{index: idx}, nil
}

// Close releases the underlying bleve index's file handles.
func (b *BleveBackend) Close() error {
	return b.index.Close()
}

func (b *BleveBackend) Index(ctx context.Context, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}
	batch := b.index.NewBatch()
	for _, doc := range docs {
		if err := batch.Index(key(doc.Kind, doc.ID), doc); err != nil {
			return sonarerr.WrapInternal(err, "stage document %s:%d for indexing", doc.Kind, doc.ID)
		}
	}
	if err := b.index.Batch(batch); err != nil {
		return sonarerr.WrapInternal(err, "apply search index batch")
	}
	return nil
}

func (b *BleveBackend) Delete(ctx context.Context, kind Kind, id uint32) error {
	if err := b.index.Delete(key(kind, id)); err != nil {
		return sonarerr.WrapInternal(err, "delete document %s:%d from search index", kind, id)
	}
	return nil
}

func (b *BleveBackend) Search(ctx context.Context, query string, limit int) ([]Hit, error) {
	req := bleve.NewSearchRequest(bleve.NewQueryStringQuery(query))
	req.Size = limit
	result, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, sonarerr.WrapInternal(err, "search index for %q", query)
	}

	hits := make([]Hit, 0, len(result.Hits))
	for _, match := range result.Hits {
		kind, id, ok := splitKey(match.ID)
		if !ok {
			continue
		}
		hits = append(hits, Hit{Kind: kind, ID: id})
	}
	return hits, nil
}

func splitKey(docID string) (Kind, uint32, bool) {
	kindPart, idPart, found := strings.Cut(docID, ":")
	if !found {
		return "", 0, false
	}
	id, err := strconv.ParseUint(idPart, 10, 32)
	if err != nil {
		return "", 0, false
	}
	return Kind(kindPart), uint32(id), true
}
