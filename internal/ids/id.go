// Sonar - self-hosted music library server
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ids provides the tagged identifier kernel shared by every catalog
// entity: a 32-bit integer whose high byte encodes the entity Kind and whose
// low 24 bits are a per-kind sequence, plus its "sonar:<kind>:<hex>" textual
// form.
package ids

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Kind tags the entity family an ID belongs to. The numeric value occupies
// the high byte of the packed 32-bit identifier.
type Kind uint8

const (
	KindArtist Kind = iota + 1
	KindAlbum
	KindTrack
	KindPlaylist
	KindAudio
	KindImage
	KindUser
	KindLyrics
	KindScrobble
)

const (
	kindShift = 24
	kindMask  = uint32(0xFF) << kindShift
	seqMask   = ^kindMask
)

var kindNames = map[Kind]string{
	KindArtist:   "artist",
	KindAlbum:    "album",
	KindTrack:    "track",
	KindPlaylist: "playlist",
	KindAudio:    "audio",
	KindImage:    "image",
	KindUser:     "user",
	KindLyrics:   "lyrics",
	KindScrobble: "scrobble",
}

var namesToKind = func() map[string]Kind {
	m := make(map[string]Kind, len(kindNames))
	for k, v := range kindNames {
		m[v] = k
	}
	return m
}()

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// InvalidIDError reports why a raw value or string could not be interpreted
// as a valid tagged ID.
type InvalidIDError struct {
	Value   string
	Message string
}

func (e *InvalidIDError) Error() string {
	return fmt.Sprintf("%s is not a valid id: %s", e.Value, e.Message)
}

// ID is a tagged entity identifier: kind in the high byte, sequence in the
// low 24 bits. The zero value is never valid.
type ID uint32

// New packs a kind and a per-kind sequence number into an ID. The sequence
// is truncated to 24 bits; callers (the persistence layer) are responsible
// for never issuing a sequence that would overflow it in practice.
func New(kind Kind, seq uint32) ID {
	return ID(uint32(kind)<<kindShift | (seq & seqMask))
}

// FromUint32 validates and wraps a raw packed value.
func FromUint32(kind Kind, raw uint32) (ID, error) {
	gotKind := Kind(raw >> kindShift)
	if gotKind != kind {
		return 0, &InvalidIDError{
			Value:   strconv.FormatUint(uint64(raw), 16),
			Message: fmt.Sprintf("not a %s id", kind),
		}
	}
	return ID(raw), nil
}

// Kind returns the entity kind tagged into the ID.
func (id ID) Kind() Kind {
	return Kind(uint32(id) >> kindShift)
}

// Sequence returns the low 24 bits: the per-kind row sequence.
func (id ID) Sequence() uint32 {
	return uint32(id) & seqMask
}

// Uint32 returns the packed representation.
func (id ID) Uint32() uint32 {
	return uint32(id)
}

// String renders the reversible "sonar:<kind>:<hex>" textual form.
func (id ID) String() string {
	return fmt.Sprintf("sonar:%s:%x", id.Kind(), uint32(id))
}

// Parse reverses String, validating the kind tag embedded in the hex value
// against the kind named in the string.
func Parse(s string) (ID, error) {
	rest, ok := strings.CutPrefix(s, "sonar:")
	if !ok {
		return 0, &InvalidIDError{Value: s, Message: "missing sonar: prefix"}
	}
	kindStr, hexVal, ok := strings.Cut(rest, ":")
	if !ok {
		return 0, &InvalidIDError{Value: s, Message: "missing kind separator"}
	}
	kind, ok := namesToKind[kindStr]
	if !ok {
		return 0, &InvalidIDError{Value: s, Message: "unknown kind " + kindStr}
	}
	raw, err := strconv.ParseUint(hexVal, 16, 32)
	if err != nil {
		return 0, &InvalidIDError{Value: s, Message: "value must be a 32-bit hexadecimal number"}
	}
	return FromUint32(kind, uint32(raw))
}

// ParseKind parses a string id and additionally requires it to tag the
// given kind, the shape every typed-id parser (ArtistID, AlbumID, ...)
// needs.
func ParseKind(s string, kind Kind) (ID, error) {
	id, err := Parse(s)
	if err != nil {
		return 0, err
	}
	if id.Kind() != kind {
		return 0, &InvalidIDError{Value: s, Message: fmt.Sprintf("not a %s id", kind)}
	}
	return id, nil
}

// MarshalJSON renders the ID in its textual form, so wire payloads never
// see the raw packed integer.
func (id ID) MarshalJSON() ([]byte, error) {
	return json.Marshal(id.String())
}

// UnmarshalJSON parses the textual form back into an ID.
func (id *ID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := Parse(s)
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// Value returns the ID as the signed 64-bit integer DuckDB expects (the
// packed uint32 widened, never negative). Its (int64, error) signature
// does not satisfy database/sql/driver.Valuer.
func (id ID) Value() (int64, error) {
	return int64(uint32(id)), nil
}

// Per-kind aliases so catalog service signatures read ArtistID/AlbumID/...
// instead of a bare ID. The kind tag packed into the value (checked by
// FromUint32/ParseKind at every boundary) is what actually prevents an
// album ID from being accepted where a track ID is expected; the aliases
// are documentation, not a distinct Go type.
type ArtistID = ID
type AlbumID = ID
type TrackID = ID
type PlaylistID = ID
type AudioID = ID
type ImageID = ID
type UserID = ID
type LyricsID = ID
type ScrobbleID = ID

// NewArtistID, NewAlbumID, ... construct a typed ID of the given kind from
// a persistence-layer row sequence.
func NewArtistID(seq uint32) ArtistID     { return New(KindArtist, seq) }
func NewAlbumID(seq uint32) AlbumID       { return New(KindAlbum, seq) }
func NewTrackID(seq uint32) TrackID       { return New(KindTrack, seq) }
func NewPlaylistID(seq uint32) PlaylistID { return New(KindPlaylist, seq) }
func NewAudioID(seq uint32) AudioID       { return New(KindAudio, seq) }
func NewImageID(seq uint32) ImageID       { return New(KindImage, seq) }
func NewUserID(seq uint32) UserID         { return New(KindUser, seq) }
func NewLyricsID(seq uint32) LyricsID     { return New(KindLyrics, seq) }
func NewScrobbleID(seq uint32) ScrobbleID { return New(KindScrobble, seq) }
