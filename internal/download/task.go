// Sonar - self-hosted music library server
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sonarhost/sonar

package download

import (
	"bytes"
	"context"

	"github.com/sonarhost/sonar/internal/catalog"
	"github.com/sonarhost/sonar/internal/external"
	"github.com/sonarhost/sonar/internal/ids"
	"github.com/sonarhost/sonar/internal/sonarerr"
)

type downloadDeps struct {
	registry  *external.Registry
	artists   *catalog.ArtistService
	albums    *catalog.AlbumService
	tracks    *catalog.TrackService
	audio     *catalog.AudioService
	images    *catalog.ImageService
	playlists *catalog.PlaylistService
}

// download resolves externalID to its owning adapter and media type, then
// recursively materializes the external artist/album/track/playlist tree
// into the catalog (spec §4.7, ported from the original source's
// recursive-materialization algorithm one media type at a time).
func download(ctx context.Context, d downloadDeps, userID ids.UserID, externalID external.MediaID) (*external.MediaType, error) {
	adapter, mediaType, err := d.registry.Resolve(ctx, externalID)
	if err != nil {
		return nil, err
	}

	switch mediaType {
	case external.MediaArtist:
		return &mediaType, d.downloadArtist(ctx, adapter, externalID)
	case external.MediaAlbum:
		return &mediaType, d.downloadAlbum(ctx, adapter, externalID)
	case external.MediaTrack:
		return &mediaType, d.downloadTrack(ctx, adapter, externalID)
	case external.MediaPlaylist:
		return &mediaType, d.downloadPlaylist(ctx, adapter, externalID, userID)
	default:
		return &mediaType, sonarerr.Invalidf("unsupported external media type %s for download", mediaType)
	}
}

func (d downloadDeps) downloadArtist(ctx context.Context, adapter external.Adapter, externalID external.MediaID) error {
	extArtist, err := d.registry.FetchArtist(ctx, adapter, externalID)
	if err != nil {
		return err
	}
	artist, err := d.findOrCreateArtist(ctx, extArtist)
	if err != nil {
		return err
	}

	for _, albumExternalID := range extArtist.Albums {
		albumAdapter, err := d.registry.ResolveExpecting(ctx, albumExternalID, external.MediaAlbum)
		if err != nil {
			return err
		}
		if err := d.downloadAlbumInto(ctx, albumAdapter, albumExternalID, artist.ID); err != nil {
			return err
		}
	}
	return nil
}

func (d downloadDeps) downloadAlbum(ctx context.Context, adapter external.Adapter, externalID external.MediaID) error {
	extAlbum, err := d.registry.FetchAlbum(ctx, adapter, externalID)
	if err != nil {
		return err
	}
	artistAdapter, err := d.registry.ResolveExpecting(ctx, extAlbum.Artist, external.MediaArtist)
	if err != nil {
		return err
	}
	extArtist, err := d.registry.FetchArtist(ctx, artistAdapter, extAlbum.Artist)
	if err != nil {
		return err
	}
	artist, err := d.findOrCreateArtist(ctx, extArtist)
	if err != nil {
		return err
	}
	return d.downloadAlbumInto(ctx, adapter, externalID, artist.ID)
}

// downloadAlbumInto fetches and materializes one album (given its
// already-resolved artist) plus every one of its tracks.
func (d downloadDeps) downloadAlbumInto(ctx context.Context, adapter external.Adapter, externalID external.MediaID, artistID ids.ArtistID) error {
	extAlbum, err := d.registry.FetchAlbum(ctx, adapter, externalID)
	if err != nil {
		return err
	}
	album, err := d.findOrCreateAlbum(ctx, extAlbum, artistID)
	if err != nil {
		return err
	}

	for _, trackExternalID := range extAlbum.Tracks {
		trackAdapter, err := d.registry.ResolveExpecting(ctx, trackExternalID, external.MediaTrack)
		if err != nil {
			return err
		}
		extTrack, err := d.registry.FetchTrack(ctx, trackAdapter, trackExternalID)
		if err != nil {
			return err
		}
		track, err := d.findOrCreateTrack(ctx, extTrack, album.ID)
		if err != nil {
			return err
		}
		if err := d.downloadTrackAudio(ctx, trackAdapter, trackExternalID, track); err != nil {
			return err
		}
	}
	return nil
}

func (d downloadDeps) downloadTrack(ctx context.Context, adapter external.Adapter, externalID external.MediaID) error {
	extTrack, err := d.registry.FetchTrack(ctx, adapter, externalID)
	if err != nil {
		return err
	}
	albumAdapter, err := d.registry.ResolveExpecting(ctx, extTrack.Album, external.MediaAlbum)
	if err != nil {
		return err
	}
	extAlbum, err := d.registry.FetchAlbum(ctx, albumAdapter, extTrack.Album)
	if err != nil {
		return err
	}
	artistAdapter, err := d.registry.ResolveExpecting(ctx, extAlbum.Artist, external.MediaArtist)
	if err != nil {
		return err
	}
	extArtist, err := d.registry.FetchArtist(ctx, artistAdapter, extAlbum.Artist)
	if err != nil {
		return err
	}
	artist, err := d.findOrCreateArtist(ctx, extArtist)
	if err != nil {
		return err
	}
	album, err := d.findOrCreateAlbum(ctx, extAlbum, artist.ID)
	if err != nil {
		return err
	}
	track, err := d.findOrCreateTrack(ctx, extTrack, album.ID)
	if err != nil {
		return err
	}
	return d.downloadTrackAudio(ctx, adapter, externalID, track)
}

func (d downloadDeps) downloadPlaylist(ctx context.Context, adapter external.Adapter, externalID external.MediaID, userID ids.UserID) error {
	extPlaylist, err := d.registry.FetchPlaylist(ctx, adapter, externalID)
	if err != nil {
		return err
	}

	trackIDs := make([]ids.TrackID, 0, len(extPlaylist.Tracks))
	for _, trackExternalID := range extPlaylist.Tracks {
		trackAdapter, err := d.registry.ResolveExpecting(ctx, trackExternalID, external.MediaTrack)
		if err != nil {
			return err
		}
		extTrack, err := d.registry.FetchTrack(ctx, trackAdapter, trackExternalID)
		if err != nil {
			return err
		}
		albumAdapter, err := d.registry.ResolveExpecting(ctx, extTrack.Album, external.MediaAlbum)
		if err != nil {
			return err
		}
		extAlbum, err := d.registry.FetchAlbum(ctx, albumAdapter, extTrack.Album)
		if err != nil {
			return err
		}
		artistAdapter, err := d.registry.ResolveExpecting(ctx, extAlbum.Artist, external.MediaArtist)
		if err != nil {
			return err
		}
		extArtist, err := d.registry.FetchArtist(ctx, artistAdapter, extAlbum.Artist)
		if err != nil {
			return err
		}
		artist, err := d.findOrCreateArtist(ctx, extArtist)
		if err != nil {
			return err
		}
		album, err := d.findOrCreateAlbum(ctx, extAlbum, artist.ID)
		if err != nil {
			return err
		}
		track, err := d.findOrCreateTrack(ctx, extTrack, album.ID)
		if err != nil {
			return err
		}
		if err := d.downloadTrackAudio(ctx, trackAdapter, trackExternalID, track); err != nil {
			return err
		}
		trackIDs = append(trackIDs, track.ID)
	}

	playlist, err := d.findOrCreatePlaylist(ctx, extPlaylist, userID)
	if err != nil {
		return err
	}
	_, err = d.playlists.Update(ctx, playlist.ID, catalog.PlaylistUpdate{
		TrackIDs:      trackIDs,
		ReplaceTracks: true,
	})
	return err
}

func (d downloadDeps) findOrCreateArtist(ctx context.Context, extArtist external.Artist) (catalog.Artist, error) {
	return d.artists.FindOrCreateByName(ctx, extArtist.Name)
}

func (d downloadDeps) findOrCreateAlbum(ctx context.Context, extAlbum external.Album, artistID ids.ArtistID) (catalog.Album, error) {
	album, err := d.albums.FindOrCreateByName(ctx, artistID, extAlbum.Name)
	if err != nil {
		return catalog.Album{}, err
	}
	if extAlbum.Cover != nil && album.CoverArtID == nil {
		mimeType := extAlbum.Cover.MimeType
		if mimeType == "" {
			mimeType = "application/octet-stream"
		}
		image, err := d.images.Create(ctx, mimeType, bytes.NewReader(extAlbum.Cover.Data))
		if err == nil {
			updated, err := d.albums.Update(ctx, album.ID, catalog.AlbumUpdate{
				CoverArtID: ids.Set(ids.ID(image.ID)),
			})
			if err == nil {
				album = updated
			}
		}
	}
	return album, nil
}

func (d downloadDeps) findOrCreateTrack(ctx context.Context, extTrack external.Track, albumID ids.AlbumID) (catalog.Track, error) {
	return d.tracks.FindOrCreateByName(ctx, albumID, extTrack.Name)
}

// findOrCreatePlaylist finds an existing playlist of the same name owned
// by userID, or creates an empty one; its track list is set separately by
// the caller via a single ReplaceTracks update.
func (d downloadDeps) findOrCreatePlaylist(ctx context.Context, extPlaylist external.Playlist, userID ids.UserID) (catalog.Playlist, error) {
	existing, err := d.playlists.ListByOwner(ctx, userID)
	if err != nil {
		return catalog.Playlist{}, err
	}
	for _, p := range existing {
		if p.Name == extPlaylist.Name {
			return p, nil
		}
	}
	return d.playlists.Create(ctx, catalog.PlaylistCreate{
		Name:        extPlaylist.Name,
		OwnerUserID: userID,
	})
}

// downloadTrackAudio skips fetching audio for a track that already has a
// preferred audio source (spec §4.7 "do not re-download existing audio").
func (d downloadDeps) downloadTrackAudio(ctx context.Context, adapter external.Adapter, externalID external.MediaID, track catalog.Track) error {
	if track.PreferredAudioID != nil {
		return nil
	}

	stream, err := d.registry.DownloadTrack(ctx, adapter, externalID)
	if err != nil {
		return err
	}
	defer stream.Close()

	filename := string(externalID)
	audioRow, err := d.audio.Create(ctx, catalog.AudioCreate{
		MimeType: "application/octet-stream",
		Filename: &filename,
		Data:     stream,
	})
	if err != nil {
		return err
	}
	return d.tracks.AddAudio(ctx, track.ID, audioRow.ID, true)
}
