// Sonar - self-hosted music library server
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sonarhost/sonar

package metadata

import "context"

// Provider is one external metadata source (spec §4.9's
// "providers are queried in registration order").
type Provider interface {
	Name() string
	Supports(kind RequestKind) bool

	ArtistMetadata(ctx context.Context, req ArtistMetadataRequest) (ArtistMetadata, error)
	AlbumMetadata(ctx context.Context, req AlbumMetadataRequest) (AlbumMetadata, error)
	AlbumTracksMetadata(ctx context.Context, req AlbumTracksMetadataRequest) (AlbumTracksMetadata, error)
	TrackMetadata(ctx context.Context, req TrackMetadataRequest) (TrackMetadata, error)
}
