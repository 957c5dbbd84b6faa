// Sonar - self-hosted music library server
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sonarhost/sonar

package metadata

import (
	"context"
	"io"
	"net/http"
	"strconv"

	"golang.org/x/oauth2/clientcredentials"

	"github.com/zmb3/spotify"

	"github.com/sonarhost/sonar/internal/ids"
	"github.com/sonarhost/sonar/internal/sonarerr"
)

// PropertySpotifyID is the property key a prior enrichment (internal/
// external's Spotify adapter, or a manual tag) stores a catalog entity's
// Spotify id under; SpotifyProvider looks it up before querying.
const PropertySpotifyID = "spotify_id"

// SpotifyProvider is the Spotify Web API metadata provider (spec §4.9),
// authenticated app-only via client credentials since metadata lookup
// needs no per-user scope.
type SpotifyProvider struct {
	client     spotify.Client
	httpClient *http.Client
}

// NewSpotifyProvider authenticates with clientID/clientSecret and
// returns a ready SpotifyProvider.
func NewSpotifyProvider(ctx context.Context, clientID, clientSecret string) (*SpotifyProvider, error) {
	cfg := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     spotify.TokenURL,
	}
	httpClient := cfg.Client(ctx)
	return &SpotifyProvider{client: spotify.NewClient(httpClient), httpClient: httpClient}, nil
}

func (p *SpotifyProvider) Name() string { return "spotify" }

func (p *SpotifyProvider) Supports(kind RequestKind) bool {
	switch kind {
	case RequestArtist, RequestAlbum, RequestAlbumTracks, RequestTrack:
		return true
	default:
		return false
	}
}

func (p *SpotifyProvider) spotifyID(properties map[string]string) (spotify.ID, error) {
	id, ok := properties[PropertySpotifyID]
	if !ok || id == "" {
		return "", sonarerr.Invalidf("missing required property: %s", PropertySpotifyID)
	}
	return spotify.ID(id), nil
}

func (p *SpotifyProvider) downloadFirstImage(images []spotify.Image) ([]byte, error) {
	if len(images) == 0 {
		return nil, nil
	}
	resp, err := p.httpClient.Get(images[0].URL)
	if err != nil {
		return nil, sonarerr.WrapInternal(err, "download spotify image")
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, sonarerr.WrapInternal(err, "read spotify image")
	}
	return data, nil
}

func (p *SpotifyProvider) ArtistMetadata(_ context.Context, req ArtistMetadataRequest) (ArtistMetadata, error) {
	spotifyID, err := p.spotifyID(req.Properties)
	if err != nil {
		return ArtistMetadata{}, err
	}
	artist, err := p.client.GetArtist(spotifyID)
	if err != nil {
		return ArtistMetadata{}, sonarerr.WrapInternal(err, "fetch spotify artist")
	}
	cover, err := p.downloadFirstImage(artist.Images)
	if err != nil {
		return ArtistMetadata{}, err
	}
	name := artist.Name
	return ArtistMetadata{Name: &name, Genres: artist.Genres, Cover: cover}, nil
}

func (p *SpotifyProvider) AlbumMetadata(_ context.Context, req AlbumMetadataRequest) (AlbumMetadata, error) {
	spotifyID, err := p.spotifyID(req.Properties)
	if err != nil {
		return AlbumMetadata{}, err
	}
	album, err := p.client.GetAlbum(spotifyID)
	if err != nil {
		return AlbumMetadata{}, sonarerr.WrapInternal(err, "fetch spotify album")
	}
	cover, err := p.downloadFirstImage(album.Images)
	if err != nil {
		return AlbumMetadata{}, err
	}
	name := album.Name
	return AlbumMetadata{Name: &name, Genres: album.Genres, Cover: cover}, nil
}

func (p *SpotifyProvider) AlbumTracksMetadata(_ context.Context, req AlbumTracksMetadataRequest) (AlbumTracksMetadata, error) {
	spotifyID, err := p.spotifyID(req.AlbumProperties)
	if err != nil {
		return AlbumTracksMetadata{}, err
	}

	byTrackSpotifyID := make(map[spotify.ID]ids.TrackID, len(req.Tracks))
	for _, t := range req.Tracks {
		if sid, ok := req.Properties[t.ID][PropertySpotifyID]; ok && sid != "" {
			byTrackSpotifyID[spotify.ID(sid)] = t.ID
		}
	}

	out := AlbumTracksMetadata{Tracks: make(map[ids.TrackID]TrackMetadata)}
	album, err := p.client.GetAlbum(spotifyID)
	if err != nil {
		return AlbumTracksMetadata{}, sonarerr.WrapInternal(err, "fetch spotify album tracks")
	}
	page := &album.Tracks
	for {
		for _, track := range page.Tracks {
			trackID, known := byTrackSpotifyID[track.ID]
			if !known {
				continue
			}
			out.Tracks[trackID] = simplifiedTrackMetadata(track)
		}
		if err := p.client.NextPage(page); err != nil {
			if err == spotify.ErrNoMorePages {
				break
			}
			return AlbumTracksMetadata{}, sonarerr.WrapInternal(err, "page spotify album tracks")
		}
	}
	return out, nil
}

func (p *SpotifyProvider) TrackMetadata(_ context.Context, req TrackMetadataRequest) (TrackMetadata, error) {
	spotifyID, err := p.spotifyID(req.Properties)
	if err != nil {
		return TrackMetadata{}, err
	}
	track, err := p.client.GetTrack(spotifyID)
	if err != nil {
		return TrackMetadata{}, sonarerr.WrapInternal(err, "fetch spotify track")
	}
	name := track.Name
	return TrackMetadata{
		Name: &name,
		Properties: map[string]string{
			"disc_number":  strconv.Itoa(track.DiscNumber),
			"track_number": strconv.Itoa(track.TrackNumber),
		},
	}, nil
}

func simplifiedTrackMetadata(track spotify.SimpleTrack) TrackMetadata {
	name := track.Name
	return TrackMetadata{
		Name: &name,
		Properties: map[string]string{
			"disc_number":  strconv.Itoa(track.DiscNumber),
			"track_number": strconv.Itoa(track.TrackNumber),
		},
	}
}
