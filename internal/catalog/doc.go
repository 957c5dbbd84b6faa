// Sonar - self-hosted music library server
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sonarhost/sonar

// Package catalog implements the entity services over internal/store:
// artist, album, track, playlist, user, audio, image, scrobble, favorite,
// and pin. Every create/update/delete runs inside store.Store.WithTx so a
// row write and its property/genre/join writes land atomically; list/get
// operations build on store's generic List/ListWhere/Get/GetBulk helpers.
package catalog

import (
	"github.com/sonarhost/sonar/internal/ids"
)

// PropertyAction tags a single property update's disposition.
type PropertyAction int

const (
	// PropertySet upserts Value under Key.
	PropertySet PropertyAction = iota
	// PropertyRemove deletes Key if present.
	PropertyRemove
)

// PropertyUpdate is one element of the list services accept for bulk
// property mutation on create/update (spec §3 "Properties and genres
// update using a list of {key, action}").
type PropertyUpdate struct {
	Key    string
	Value  string
	Action PropertyAction
}

// GenreAction tags a single genre update's disposition, mirroring
// PropertyAction for the simpler genre set.
type GenreAction int

const (
	GenreAdd GenreAction = iota
	GenreRemove
)

// GenreUpdate is one element of the list services accept for bulk genre
// mutation.
type GenreUpdate struct {
	Genre  string
	Action GenreAction
}

// namespaceFor returns the value of the store's property/genre "namespace"
// column for an entity kind: one per kind, matching ids.Kind.String().
func namespaceFor(kind ids.Kind) string {
	return kind.String()
}
