// Sonar - self-hosted music library server
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sonarhost/sonar

package search

import (
	"context"
	"strings"

	"github.com/sonarhost/sonar/internal/catalog"
	"github.com/sonarhost/sonar/internal/ids"
)

const defaultSearchLimit = 50

// Result is one re-hydrated hit, exactly one of its entity fields set
// according to Kind, in the order the Backend ranked it.
type Result struct {
	Kind     Kind
	Artist   *catalog.Artist
	Album    *catalog.Album
	Track    *catalog.Track
	Playlist *catalog.Playlist
}

// Query is the input to Service.Search (spec §4.12 "search(user,
// {query, limit?})").
type Query struct {
	Text  string
	Limit int
}

// Service keeps the Backend in sync with catalog mutations and answers
// search queries by re-hydrating backend hits through the catalog
// services (spec §4.12).
type Service struct {
	backend   Backend
	artists   *catalog.ArtistService
	albums    *catalog.AlbumService
	tracks    *catalog.TrackService
	playlists *catalog.PlaylistService
	lyrics    *catalog.LyricsService
}

// NewService constructs a search Service over backend.
func NewService(backend Backend, artists *catalog.ArtistService, albums *catalog.AlbumService, tracks *catalog.TrackService, playlists *catalog.PlaylistService, lyrics *catalog.LyricsService) *Service {
	return &Service{backend: backend, artists: artists, albums: albums, tracks: tracks, playlists: playlists, lyrics: lyrics}
}

// SyncArtist re-indexes one artist, called after create/update.
func (s *Service) SyncArtist(ctx context.Context, id ids.ArtistID) error {
	artist, err := s.artists.Get(ctx, id)
	if err != nil {
		return err
	}
	return s.backend.Index(ctx, []Document{{
		Kind:       KindArtist,
		ID:         uint32(id),
		ArtistName: artist.Name,
	}})
}

// SyncAlbum re-indexes one album, pulling in its artist's name so a query
// for the artist still surfaces the album (spec §4.12's document shape
// carries both).
func (s *Service) SyncAlbum(ctx context.Context, id ids.AlbumID) error {
	album, err := s.albums.Get(ctx, id)
	if err != nil {
		return err
	}
	artist, err := s.artists.Get(ctx, album.ArtistID)
	if err != nil {
		return err
	}
	return s.backend.Index(ctx, []Document{{
		Kind:       KindAlbum,
		ID:         uint32(id),
		ArtistName: artist.Name,
		AlbumName:  album.Name,
	}})
}

// SyncTrack re-indexes one track, pulling in its album and artist names
// and, if present, its lyrics text joined into a single field.
func (s *Service) SyncTrack(ctx context.Context, id ids.TrackID) error {
	track, err := s.tracks.Get(ctx, id)
	if err != nil {
		return err
	}
	album, err := s.albums.Get(ctx, track.AlbumID)
	if err != nil {
		return err
	}
	artist, err := s.artists.Get(ctx, album.ArtistID)
	if err != nil {
		return err
	}

	var lyricsText string
	if track.LyricsID != nil {
		lyrics, err := s.lyrics.Get(ctx, *track.LyricsID)
		if err != nil {
			return err
		}
		lyricsText = joinLyricsLines(lyrics.Lines)
	}

	return s.backend.Index(ctx, []Document{{
		Kind:       KindTrack,
		ID:         uint32(id),
		ArtistName: artist.Name,
		AlbumName:  album.Name,
		TrackName:  track.Name,
		Lyrics:     lyricsText,
	}})
}

// SyncPlaylist re-indexes one playlist.
func (s *Service) SyncPlaylist(ctx context.Context, id ids.PlaylistID) error {
	playlist, err := s.playlists.Get(ctx, id)
	if err != nil {
		return err
	}
	return s.backend.Index(ctx, []Document{{
		Kind:         KindPlaylist,
		ID:           uint32(id),
		PlaylistName: playlist.Name,
	}})
}

// Remove deletes the document for (kind, id), called after a delete.
func (s *Service) Remove(ctx context.Context, kind Kind, id uint32) error {
	return s.backend.Delete(ctx, kind, id)
}

func joinLyricsLines(lines []catalog.LyricsLine) string {
	texts := make([]string, len(lines))
	for i, line := range lines {
		texts[i] = line.Text
	}
	return strings.Join(texts, "\n")
}

// Search asks the Backend for ranked hits and re-hydrates them from the
// catalog, preserving the Backend's order (spec §4.12). userID is
// accepted for parity with the spec's "search(user, ...)" signature;
// playlists are not yet owner-scoped in the index (see DESIGN.md).
func (s *Service) Search(ctx context.Context, userID ids.UserID, q Query) ([]Result, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	hits, err := s.backend.Search(ctx, q.Text, limit)
	if err != nil {
		return nil, err
	}
	if len(hits) == 0 {
		return nil, nil
	}

	var artistIDs []ids.ArtistID
	var albumIDs []ids.AlbumID
	var trackIDs []ids.TrackID
	for _, h := range hits {
		switch h.Kind {
		case KindArtist:
			artistIDs = append(artistIDs, ids.ArtistID(h.ID))
		case KindAlbum:
			albumIDs = append(albumIDs, ids.AlbumID(h.ID))
		case KindTrack:
			trackIDs = append(trackIDs, ids.TrackID(h.ID))
		}
	}

	artists, err := bulkMap(ctx, s.artists.GetBulk, artistIDs, func(a catalog.Artist) ids.ArtistID { return a.ID })
	if err != nil {
		return nil, err
	}
	albums, err := bulkMap(ctx, s.albums.GetBulk, albumIDs, func(a catalog.Album) ids.AlbumID { return a.ID })
	if err != nil {
		return nil, err
	}
	tracks, err := bulkMap(ctx, s.tracks.GetBulk, trackIDs, func(t catalog.Track) ids.TrackID { return t.ID })
	if err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(hits))
	for _, h := range hits {
		switch h.Kind {
		case KindArtist:
			if a, ok := artists[ids.ArtistID(h.ID)]; ok {
				results = append(results, Result{Kind: KindArtist, Artist: &a})
			}
		case KindAlbum:
			if a, ok := albums[ids.AlbumID(h.ID)]; ok {
				results = append(results, Result{Kind: KindAlbum, Album: &a})
			}
		case KindTrack:
			if t, ok := tracks[ids.TrackID(h.ID)]; ok {
				results = append(results, Result{Kind: KindTrack, Track: &t})
			}
		case KindPlaylist:
			playlist, err := s.playlists.Get(ctx, ids.PlaylistID(h.ID))
			if err != nil {
				continue
			}
			results = append(results, Result{Kind: KindPlaylist, Playlist: &playlist})
		}
	}
	return results, nil
}

func bulkMap[ID comparable, T any](ctx context.Context, getBulk func(context.Context, []ID) ([]T, error), idList []ID, keyOf func(T) ID) (map[ID]T, error) {
	if len(idList) == 0 {
		return nil, nil
	}
	items, err := getBulk(ctx, idList)
	if err != nil {
		return nil, err
	}
	out := make(map[ID]T, len(items))
	for _, item := range items {
		out[keyOf(item)] = item
	}
	return out, nil
}
