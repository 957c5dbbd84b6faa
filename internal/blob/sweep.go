// Sonar - self-hosted music library server
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sonarhost/sonar

package blob

import (
	"context"

	"github.com/sonarhost/sonar/internal/sonarerr"
	"github.com/sonarhost/sonar/internal/store"
)

// Sweep deletes every blob under kind whose key is not referenced by any
// audio or image row (spec §3: "unreferenced blobs become GC candidates").
// It runs outside any write transaction: a blob written moments ago but
// not yet committed is tolerated as a false negative on the next sweep,
// never as a false positive that deletes a live blob.
func Sweep(ctx context.Context, s Store, st *store.Store, kind Kind) (deleted int, err error) {
	var column, table string
	switch kind {
	case KindAudio:
		table, column = "audio", "blob_key"
	case KindImage:
		table, column = "image", "blob_key"
	default:
		return 0, sonarerr.Invalidf("sweep: unknown blob kind %q", kind)
	}

	rows, err := st.Reader().QueryContext(ctx, "SELECT "+column+" FROM "+table)
	if err != nil {
		return 0, sonarerr.WrapInternal(err, "query referenced blob keys")
	}
	referenced := make(map[string]struct{})
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			rows.Close()
			return 0, sonarerr.WrapInternal(err, "scan referenced blob key")
		}
		referenced[key] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return 0, sonarerr.WrapInternal(err, "iterate referenced blob keys")
	}
	rows.Close()

	keys, err := s.Keys(ctx, string(kind)+"/")
	if err != nil {
		return 0, sonarerr.WrapInternal(err, "list stored blob keys")
	}

	for _, key := range keys {
		if _, ok := referenced[key]; ok {
			continue
		}
		if err := s.Delete(ctx, key); err != nil {
			return deleted, sonarerr.WrapInternal(err, "delete unreferenced blob %s", key)
		}
		deleted++
	}
	return deleted, nil
}
