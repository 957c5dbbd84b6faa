// Sonar - self-hosted music library server
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sonarhost/sonar

package events

import "github.com/goccy/go-json"

// Kind is the entity family a CRUD Event touches.
type Kind string

const (
	KindArtist   Kind = "artist"
	KindAlbum    Kind = "album"
	KindTrack    Kind = "track"
	KindPlaylist Kind = "playlist"
)

// Operation is the CRUD verb that produced an Event.
type Operation string

const (
	OpCreate Operation = "create"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

// Event is one catalog mutation, carrying enough to resync the search
// index (spec §4.12) or wake a background worker without a round trip
// back through the catalog.
type Event struct {
	Kind      Kind      `json:"kind"`
	Operation Operation `json:"operation"`
	ID        uint32    `json:"id"`
}

// Topic names the bus subject an Event is published/subscribed on,
// namespaced "catalog.<kind>" so a handler can subscribe to one entity
// family's create/update/delete as a single wildcard-free topic and
// switch on Operation itself.
func (e Event) Topic() string {
	return "catalog." + string(e.Kind)
}

func marshalEvent(e Event) ([]byte, error) {
	return json.Marshal(e)
}

func unmarshalEvent(data []byte) (Event, error) {
	var e Event
	err := json.Unmarshal(data, &e)
	return e, err
}
