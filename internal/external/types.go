// Sonar - self-hosted music library server
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sonarhost/sonar

package external

import "time"

// MediaID identifies a piece of media within one external service's own
// namespace. It carries no meaning outside the adapter that produced it.
type MediaID string

// MediaType classifies the kind of external media a MediaID refers to.
// Group covers a result set that resolves to more than one same-class
// entity (e.g. a disambiguation list); Compilation covers an external
// playlist whose tracks are imported as a various-artists album rather
// than attributed to one artist.
type MediaType int

const (
	MediaArtist MediaType = iota
	MediaAlbum
	MediaTrack
	MediaPlaylist
	MediaCompilation
	MediaGroup
)

func (t MediaType) String() string {
	switch t {
	case MediaArtist:
		return "artist"
	case MediaAlbum:
		return "album"
	case MediaTrack:
		return "track"
	case MediaPlaylist:
		return "playlist"
	case MediaCompilation:
		return "compilation"
	case MediaGroup:
		return "group"
	default:
		return "unknown"
	}
}

// Image is raw external cover art data, fetched alongside an Artist or
// Album and handed to catalog.ImageService.Create by the caller.
type Image struct {
	Data     []byte
	MimeType string
}

// Artist is an adapter's external representation of an artist.
type Artist struct {
	Name       string
	Albums     []MediaID
	Cover      *Image
	Genres     []string
	Properties map[string]string
}

// Album is an adapter's external representation of an album.
type Album struct {
	Name       string
	Artist     MediaID
	Tracks     []MediaID
	Cover      *Image
	Genres     []string
	Properties map[string]string
}

// Track is an adapter's external representation of a track.
type Track struct {
	Name       string
	Artist     MediaID
	Album      MediaID
	Lyrics     *TrackLyrics
	Properties map[string]string
}

// TrackLyrics is a track's lyrics as recovered from an external source,
// shaped to feed catalog.LyricsService.Create directly.
type TrackLyrics struct {
	Synced bool
	Lines  []TrackLyricsLine
}

// TrackLyricsLine is one line of external lyrics.
type TrackLyricsLine struct {
	OffsetMS *int64
	Text     string
}

// Playlist is an adapter's external representation of a playlist.
type Playlist struct {
	Name       string
	Tracks     []MediaID
	Properties map[string]string
}

// Compilation is a playlist-shaped external result whose tracks don't
// share one artist, so each track names its own artist/album/title
// instead of linking to a MediaID (e.g. a "various artists" chart).
type Compilation struct {
	Name       string
	Tracks     []CompilationTrack
	Properties map[string]string
}

// CompilationTrack is one entry of a Compilation.
type CompilationTrack struct {
	Artist string
	Album  string
	Track  string
}

// MediaRequest accumulates what is known about one piece of media as it
// passes through the registry's enrich step. Every field starts out
// possibly empty; Merge folds in whatever another request (or adapter
// enrich call) contributed, first-present-wins.
type MediaRequest struct {
	Artist      *string
	Album       *string
	Track       *string
	Playlist    *string
	Duration    *time.Duration
	MediaType   *MediaType
	ExternalIDs []MediaID
}

// EnrichStatus reports whether Merge changed the request, driving the
// registry's enrich-to-fixed-point loop.
type EnrichStatus int

const (
	NotModified EnrichStatus = iota
	Modified
)

// Merge folds other into r, keeping r's value wherever r already has one
// and taking other's otherwise (spec §4.6 "first-present-wins"). It
// reports Modified if any field changed.
func (r *MediaRequest) Merge(other MediaRequest) EnrichStatus {
	status := NotModified

	mergeString(&r.Artist, other.Artist, &status)
	mergeString(&r.Album, other.Album, &status)
	mergeString(&r.Track, other.Track, &status)
	mergeString(&r.Playlist, other.Playlist, &status)
	if r.Duration == nil && other.Duration != nil {
		r.Duration = other.Duration
		status = Modified
	}
	if r.MediaType == nil && other.MediaType != nil {
		r.MediaType = other.MediaType
		status = Modified
	}

	seen := make(map[MediaID]bool, len(r.ExternalIDs))
	for _, id := range r.ExternalIDs {
		seen[id] = true
	}
	for _, id := range other.ExternalIDs {
		if !seen[id] {
			r.ExternalIDs = append(r.ExternalIDs, id)
			seen[id] = true
			status = Modified
		}
	}

	return status
}

func mergeString(dst **string, src *string, status *EnrichStatus) {
	if *dst == nil && src != nil {
		*dst = src
		*status = Modified
	}
}

// RequestFromID seeds a MediaRequest from a single already-known external
// id, the shape a one-off subscribe or download call starts from.
func RequestFromID(id MediaID) MediaRequest {
	return MediaRequest{ExternalIDs: []MediaID{id}}
}
