// Sonar - self-hosted music library server
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sonarhost/sonar

package metadata

import (
	"bytes"
	"context"

	"github.com/gabriel-vasile/mimetype"

	"github.com/sonarhost/sonar/internal/catalog"
	"github.com/sonarhost/sonar/internal/ids"
	"github.com/sonarhost/sonar/internal/logging"
)

// Service implements the view_*/fetch_* operations (spec §4.9) over a
// fixed, ordered set of providers.
type Service struct {
	providers []Provider
	artists   *catalog.ArtistService
	albums    *catalog.AlbumService
	tracks    *catalog.TrackService
	images    *catalog.ImageService
}

// NewService constructs a metadata Service querying providers in the
// order given; that order is the "primary" in properties' primary-wins
// merge rule.
func NewService(artists *catalog.ArtistService, albums *catalog.AlbumService, tracks *catalog.TrackService, images *catalog.ImageService, providers ...Provider) *Service {
	return &Service{providers: providers, artists: artists, albums: albums, tracks: tracks, images: images}
}

// Providers lists the configured providers' names, in query order.
func (s *Service) Providers() []string {
	names := make([]string, len(s.providers))
	for i, p := range s.providers {
		names[i] = p.Name()
	}
	return names
}

// ViewArtist folds every supporting provider's candidate record for
// artistID into one (spec §4.9 "view_artist").
func (s *Service) ViewArtist(ctx context.Context, artistID ids.ArtistID) (ArtistMetadata, error) {
	artist, err := s.artists.Get(ctx, artistID)
	if err != nil {
		return ArtistMetadata{}, err
	}
	props, err := s.artists.Properties(ctx, artistID)
	if err != nil {
		return ArtistMetadata{}, err
	}
	req := ArtistMetadataRequest{Artist: artist, Properties: props}

	var candidates []ArtistMetadata
	for _, p := range s.providers {
		if !p.Supports(RequestArtist) {
			continue
		}
		md, err := p.ArtistMetadata(ctx, req)
		if err != nil {
			logging.CtxErr(ctx, err).Str("provider", p.Name()).Str("artist_id", artistID.String()).Msg("artist metadata provider failed")
			continue
		}
		candidates = append(candidates, md)
	}
	return foldArtist(candidates), nil
}

// FetchArtist views then commits the folded record to the catalog (spec
// §4.9 "fetch_artist").
func (s *Service) FetchArtist(ctx context.Context, artistID ids.ArtistID) (catalog.Artist, error) {
	md, err := s.ViewArtist(ctx, artistID)
	if err != nil {
		return catalog.Artist{}, err
	}

	update := catalog.ArtistUpdate{
		Name:       nameUpdate(md.Name),
		CoverArtID: ids.Unchanged[ids.ID](),
		Properties: propertyUpdates(md.Properties),
		Genres:     genreUpdates(md.Genres),
	}
	if len(md.Cover) > 0 {
		image, err := s.uploadCover(ctx, md.Cover)
		if err != nil {
			return catalog.Artist{}, err
		}
		update.CoverArtID = ids.Set(ids.ID(image.ID))
	}
	return s.artists.Update(ctx, artistID, update)
}

// ViewAlbum folds every supporting provider's candidate record for
// albumID (spec §4.9 "view_album").
func (s *Service) ViewAlbum(ctx context.Context, albumID ids.AlbumID) (AlbumMetadata, error) {
	album, err := s.albums.Get(ctx, albumID)
	if err != nil {
		return AlbumMetadata{}, err
	}
	props, err := s.albums.Properties(ctx, albumID)
	if err != nil {
		return AlbumMetadata{}, err
	}
	req := AlbumMetadataRequest{Album: album, Properties: props}

	var candidates []AlbumMetadata
	for _, p := range s.providers {
		if !p.Supports(RequestAlbum) {
			continue
		}
		md, err := p.AlbumMetadata(ctx, req)
		if err != nil {
			logging.CtxErr(ctx, err).Str("provider", p.Name()).Str("album_id", albumID.String()).Msg("album metadata provider failed")
			continue
		}
		candidates = append(candidates, md)
	}
	return foldAlbum(candidates), nil
}

// FetchAlbum views then commits the folded record to the catalog (spec
// §4.9 "fetch_album").
func (s *Service) FetchAlbum(ctx context.Context, albumID ids.AlbumID) (catalog.Album, error) {
	md, err := s.ViewAlbum(ctx, albumID)
	if err != nil {
		return catalog.Album{}, err
	}

	update := catalog.AlbumUpdate{
		Name:       nameUpdate(md.Name),
		ArtistID:   ids.Unchanged[ids.ID](),
		CoverArtID: ids.Unchanged[ids.ID](),
		Properties: propertyUpdates(md.Properties),
		Genres:     genreUpdates(md.Genres),
	}
	if len(md.Cover) > 0 {
		image, err := s.uploadCover(ctx, md.Cover)
		if err != nil {
			return catalog.Album{}, err
		}
		update.CoverArtID = ids.Set(ids.ID(image.ID))
	}
	return s.albums.Update(ctx, albumID, update)
}

// ViewAlbumTracks folds every supporting provider's per-track candidate
// records for every track on albumID in one batched query per provider
// (spec §4.9 "view_album_tracks").
func (s *Service) ViewAlbumTracks(ctx context.Context, albumID ids.AlbumID) (AlbumTracksMetadata, error) {
	album, err := s.albums.Get(ctx, albumID)
	if err != nil {
		return AlbumTracksMetadata{}, err
	}
	tracks, err := s.tracks.ListByAlbum(ctx, albumID)
	if err != nil {
		return AlbumTracksMetadata{}, err
	}
	trackProps := make(map[ids.TrackID]map[string]string, len(tracks))
	for _, t := range tracks {
		props, err := s.tracks.Properties(ctx, t.ID)
		if err != nil {
			return AlbumTracksMetadata{}, err
		}
		trackProps[t.ID] = props
	}
	albumProps, err := s.albums.Properties(ctx, albumID)
	if err != nil {
		return AlbumTracksMetadata{}, err
	}
	req := AlbumTracksMetadataRequest{Album: album, AlbumProperties: albumProps, Tracks: tracks, Properties: trackProps}

	byTrack := make(map[ids.TrackID][]TrackMetadata, len(tracks))
	for _, p := range s.providers {
		if !p.Supports(RequestAlbumTracks) {
			continue
		}
		md, err := p.AlbumTracksMetadata(ctx, req)
		if err != nil {
			logging.CtxErr(ctx, err).Str("provider", p.Name()).Str("album_id", albumID.String()).Msg("album tracks metadata provider failed")
			continue
		}
		for trackID, tmd := range md.Tracks {
			byTrack[trackID] = append(byTrack[trackID], tmd)
		}
	}

	folded := make(map[ids.TrackID]TrackMetadata, len(byTrack))
	for trackID, candidates := range byTrack {
		folded[trackID] = foldTrack(candidates)
	}
	return AlbumTracksMetadata{Tracks: folded}, nil
}

// FetchAlbumTracks views then commits every track's folded record to the
// catalog (spec §4.9 "fetch_album_tracks").
func (s *Service) FetchAlbumTracks(ctx context.Context, albumID ids.AlbumID) ([]catalog.Track, error) {
	viewed, err := s.ViewAlbumTracks(ctx, albumID)
	if err != nil {
		return nil, err
	}

	var updated []catalog.Track
	for trackID, md := range viewed.Tracks {
		t, err := s.applyTrackMetadata(ctx, trackID, md)
		if err != nil {
			return nil, err
		}
		updated = append(updated, t)
	}
	return updated, nil
}

// ViewTrack folds every supporting provider's candidate record for
// trackID (spec §4.9 "view_track").
func (s *Service) ViewTrack(ctx context.Context, trackID ids.TrackID) (TrackMetadata, error) {
	track, err := s.tracks.Get(ctx, trackID)
	if err != nil {
		return TrackMetadata{}, err
	}
	props, err := s.tracks.Properties(ctx, trackID)
	if err != nil {
		return TrackMetadata{}, err
	}
	req := TrackMetadataRequest{Track: track, Properties: props}

	var candidates []TrackMetadata
	for _, p := range s.providers {
		if !p.Supports(RequestTrack) {
			continue
		}
		md, err := p.TrackMetadata(ctx, req)
		if err != nil {
			logging.CtxErr(ctx, err).Str("provider", p.Name()).Str("track_id", trackID.String()).Msg("track metadata provider failed")
			continue
		}
		candidates = append(candidates, md)
	}
	return foldTrack(candidates), nil
}

// FetchTrack views then commits the folded record to the catalog (spec
// §4.9 "fetch_track").
func (s *Service) FetchTrack(ctx context.Context, trackID ids.TrackID) (catalog.Track, error) {
	md, err := s.ViewTrack(ctx, trackID)
	if err != nil {
		return catalog.Track{}, err
	}
	return s.applyTrackMetadata(ctx, trackID, md)
}

func (s *Service) applyTrackMetadata(ctx context.Context, trackID ids.TrackID, md TrackMetadata) (catalog.Track, error) {
	update := catalog.TrackUpdate{
		Name:       nameUpdate(md.Name),
		AlbumID:    ids.Unchanged[ids.ID](),
		CoverArtID: ids.Unchanged[ids.ID](),
		LyricsID:   ids.Unchanged[ids.ID](),
		Properties: propertyUpdates(md.Properties),
	}
	if len(md.Cover) > 0 {
		image, err := s.uploadCover(ctx, md.Cover)
		if err != nil {
			return catalog.Track{}, err
		}
		update.CoverArtID = ids.Set(ids.ID(image.ID))
	}
	return s.tracks.Update(ctx, trackID, update)
}

func (s *Service) uploadCover(ctx context.Context, data []byte) (catalog.Image, error) {
	mimeType := mimetype.Detect(data).String()
	return s.images.Create(ctx, mimeType, bytes.NewReader(data))
}

func nameUpdate(name *string) ids.ValueUpdate[string] {
	if name == nil {
		return ids.Unchanged[string]()
	}
	return ids.Set(*name)
}

// propertyUpdates turns a folded properties map directly into the
// PropertySet list every entity service's Update accepts (spec §4.9
// "writes properties via the derived update list").
func propertyUpdates(properties map[string]string) []catalog.PropertyUpdate {
	if len(properties) == 0 {
		return nil
	}
	out := make([]catalog.PropertyUpdate, 0, len(properties))
	for key, value := range properties {
		out = append(out, catalog.PropertyUpdate{Key: key, Value: value, Action: catalog.PropertySet})
	}
	return out
}

func genreUpdates(genres []string) []catalog.GenreUpdate {
	if len(genres) == 0 {
		return nil
	}
	out := make([]catalog.GenreUpdate, 0, len(genres))
	for _, g := range genres {
		out = append(out, catalog.GenreUpdate{Genre: g, Action: catalog.GenreAdd})
	}
	return out
}

// foldArtist applies spec §4.9's merge rules: name first-present,
// properties primary-wins (first provider in registration order to set a
// key keeps it), cover larger-of-two by byte length. Genre merging is not
// named by spec §4.9; a dedup union across providers is used since
// dropping a provider's genres entirely would silently discard data spec
// §4.9 doesn't say to discard.
func foldArtist(candidates []ArtistMetadata) ArtistMetadata {
	var out ArtistMetadata
	seenGenre := make(map[string]bool)
	out.Properties = make(map[string]string)
	for _, c := range candidates {
		if out.Name == nil && c.Name != nil {
			out.Name = c.Name
		}
		for _, g := range c.Genres {
			if !seenGenre[g] {
				seenGenre[g] = true
				out.Genres = append(out.Genres, g)
			}
		}
		for k, v := range c.Properties {
			if _, exists := out.Properties[k]; !exists {
				out.Properties[k] = v
			}
		}
		if len(c.Cover) > len(out.Cover) {
			out.Cover = c.Cover
		}
	}
	return out
}

func foldAlbum(candidates []AlbumMetadata) AlbumMetadata {
	var out AlbumMetadata
	seenGenre := make(map[string]bool)
	out.Properties = make(map[string]string)
	for _, c := range candidates {
		if out.Name == nil && c.Name != nil {
			out.Name = c.Name
		}
		for _, g := range c.Genres {
			if !seenGenre[g] {
				seenGenre[g] = true
				out.Genres = append(out.Genres, g)
			}
		}
		for k, v := range c.Properties {
			if _, exists := out.Properties[k]; !exists {
				out.Properties[k] = v
			}
		}
		if len(c.Cover) > len(out.Cover) {
			out.Cover = c.Cover
		}
	}
	return out
}

func foldTrack(candidates []TrackMetadata) TrackMetadata {
	var out TrackMetadata
	out.Properties = make(map[string]string)
	for _, c := range candidates {
		if out.Name == nil && c.Name != nil {
			out.Name = c.Name
		}
		for k, v := range c.Properties {
			if _, exists := out.Properties[k]; !exists {
				out.Properties[k] = v
			}
		}
		if len(c.Cover) > len(out.Cover) {
			out.Cover = c.Cover
		}
	}
	return out
}
