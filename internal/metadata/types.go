// Sonar - self-hosted music library server
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sonarhost/sonar

package metadata

import (
	"github.com/sonarhost/sonar/internal/catalog"
	"github.com/sonarhost/sonar/internal/ids"
)

// RequestKind tags which of the four metadata shapes a provider is being
// asked for, matching spec §4.9's view_artist/view_album/
// view_album_tracks/view_track operations.
type RequestKind int

const (
	RequestArtist RequestKind = iota
	RequestAlbum
	RequestAlbumTracks
	RequestTrack
)

// ArtistMetadataRequest carries the catalog state a provider needs to
// locate its own external record for an artist: the row itself plus
// whatever properties are already attached (a provider's own external
// id, stored as a property on a prior fetch, lives here).
type ArtistMetadataRequest struct {
	Artist     catalog.Artist
	Properties map[string]string
}

// ArtistMetadata is one provider's candidate record, or the folded
// result of merging every provider's candidate.
type ArtistMetadata struct {
	Name       *string
	Genres     []string
	Properties map[string]string
	Cover      []byte
}

// AlbumMetadataRequest mirrors ArtistMetadataRequest for albums.
type AlbumMetadataRequest struct {
	Album      catalog.Album
	Properties map[string]string
}

// AlbumMetadata mirrors ArtistMetadata for albums.
type AlbumMetadata struct {
	Name       *string
	Genres     []string
	Properties map[string]string
	Cover      []byte
}

// AlbumTracksMetadataRequest asks a provider for per-track metadata
// across an entire album in one call, the shape the original batches to
// avoid one round trip per track.
type AlbumTracksMetadataRequest struct {
	Album           catalog.Album
	AlbumProperties map[string]string
	Tracks          []catalog.Track
	Properties      map[ids.TrackID]map[string]string
}

// AlbumTracksMetadata maps each requested track to its candidate record.
// A track absent from the map means the provider found nothing for it.
type AlbumTracksMetadata struct {
	Tracks map[ids.TrackID]TrackMetadata
}

// TrackMetadataRequest mirrors ArtistMetadataRequest for tracks.
type TrackMetadataRequest struct {
	Track      catalog.Track
	Properties map[string]string
}

// TrackMetadata mirrors ArtistMetadata for tracks, without genres (spec
// §3 attaches genres to artist/album, not track).
type TrackMetadata struct {
	Name       *string
	Properties map[string]string
	Cover      []byte
}
