// Sonar - self-hosted music library server
// SPDX-License-Identifier: AGPL-3.0-or-later

package subsonic

import (
	"context"
	"net/http"
	"sort"
	"strings"

	"github.com/sonarhost/sonar/internal/catalog"
	"github.com/sonarhost/sonar/internal/ids"
)

// buildIndex groups artists by the upper-cased first letter of their name,
// the layout both getIndexes and getArtists share (spec §6 "getIndexes",
// "getArtists" share a grouping shape).
func buildIndex(artists []catalog.Artist, starred starredSet) []IndexEntry {
	byLetter := make(map[string][]ArtistID3)
	for _, a := range artists {
		letter := "#"
		if a.Name != "" {
			letter = strings.ToUpper(a.Name[:1])
		}
		byLetter[letter] = append(byLetter[letter], artistToID3(a, starred))
	}
	letters := make([]string, 0, len(byLetter))
	for l := range byLetter {
		letters = append(letters, l)
	}
	sort.Strings(letters)

	out := make([]IndexEntry, 0, len(letters))
	for _, l := range letters {
		group := byLetter[l]
		sort.Slice(group, func(i, j int) bool { return group[i].Name < group[j].Name })
		out = append(out, IndexEntry{Name: l, Artist: group})
	}
	return out
}

func (s *Server) handleGetIndexes(w http.ResponseWriter, r *http.Request) {
	re := newResponder(w, r)
	user := userFromContext(r)
	artists, err := s.artists.List(r.Context())
	if err != nil {
		re.fail(err)
		return
	}
	starred, err := loadStarredSet(r.Context(), s.favorites, user.ID)
	if err != nil {
		re.fail(err)
		return
	}
	re.ok(func(resp *Response) {
		resp.Indexes = &Indexes{Index: buildIndex(artists, starred)}
	})
}

func (s *Server) handleGetArtists(w http.ResponseWriter, r *http.Request) {
	re := newResponder(w, r)
	user := userFromContext(r)
	artists, err := s.artists.List(r.Context())
	if err != nil {
		re.fail(err)
		return
	}
	starred, err := loadStarredSet(r.Context(), s.favorites, user.ID)
	if err != nil {
		re.fail(err)
		return
	}
	re.ok(func(resp *Response) {
		resp.Artists = &ArtistsID3{Index: buildIndex(artists, starred)}
	})
}

func (s *Server) handleGetArtist(w http.ResponseWriter, r *http.Request) {
	re := newResponder(w, r)
	idStr := r.URL.Query().Get("id")
	if idStr == "" {
		re.failCode(errRequiredParameterMissing, "missing parameter: id")
		return
	}
	id, err := ids.ParseKind(idStr, ids.KindArtist)
	if err != nil {
		re.failCode(errDataNotFound, "not found")
		return
	}
	ctx := r.Context()
	user := userFromContext(r)
	artist, err := s.artists.Get(ctx, id)
	if err != nil {
		re.fail(err)
		return
	}
	albums, err := s.albums.ListByArtist(ctx, id)
	if err != nil {
		re.fail(err)
		return
	}
	starred, err := loadStarredSet(ctx, s.favorites, user.ID)
	if err != nil {
		re.fail(err)
		return
	}

	out := artistToID3(artist, starred)
	out.Album = make([]AlbumID3, 0, len(albums))
	for _, al := range albums {
		out.Album = append(out.Album, albumToID3(al, artist.Name, starred))
	}

	re.ok(func(resp *Response) { resp.Artist = &out })
}

func (s *Server) handleGetAlbum(w http.ResponseWriter, r *http.Request) {
	re := newResponder(w, r)
	idStr := r.URL.Query().Get("id")
	if idStr == "" {
		re.failCode(errRequiredParameterMissing, "missing parameter: id")
		return
	}
	id, err := ids.ParseKind(idStr, ids.KindAlbum)
	if err != nil {
		re.failCode(errDataNotFound, "not found")
		return
	}
	ctx := r.Context()
	user := userFromContext(r)
	album, err := s.albums.Get(ctx, id)
	if err != nil {
		re.fail(err)
		return
	}
	artist, err := s.artists.Get(ctx, album.ArtistID)
	if err != nil {
		re.fail(err)
		return
	}
	tracks, err := s.tracks.ListByAlbum(ctx, id)
	if err != nil {
		re.fail(err)
		return
	}
	starred, err := loadStarredSet(ctx, s.favorites, user.ID)
	if err != nil {
		re.fail(err)
		return
	}

	out := albumToID3(album, artist.Name, starred)
	out.Song = s.childrenFor(ctx, tracks, album.Name, artist.Name, starred)

	re.ok(func(resp *Response) { resp.Album = &out })
}

func (s *Server) childrenFor(ctx context.Context, tracks []catalog.Track, albumName, artistName string, starred starredSet) []Child {
	out := make([]Child, 0, len(tracks))
	for _, t := range tracks {
		child := trackToChild(ctx, s.tracks, t, albumName, artistName, starred)
		attachAudio(ctx, s.audio, t, &child)
		out = append(out, child)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Track != out[j].Track {
			return out[i].Track < out[j].Track
		}
		return out[i].Title < out[j].Title
	})
	return out
}

// handleGetAlbumList2 supports a single ordering regardless of the "type"
// parameter: alphabetical by name. Sonar tracks neither play history nor a
// "recently added" index fast enough to serve "random"/"frequent"/"recent"
// cheaply yet, so every type degrades to the one ordering it can serve
// correctly rather than silently returning the wrong list for an
// unsupported type.
func (s *Server) handleGetAlbumList2(w http.ResponseWriter, r *http.Request) {
	re := newResponder(w, r)
	ctx := r.Context()
	user := userFromContext(r)

	albums, err := s.albums.List(ctx)
	if err != nil {
		re.fail(err)
		return
	}
	sort.Slice(albums, func(i, j int) bool { return albums[i].Name < albums[j].Name })

	size := queryIntDefault(r, "size", 10)
	if size > 500 {
		size = 500
	}
	offset := queryIntDefault(r, "offset", 0)
	if offset < 0 || offset >= len(albums) {
		re.ok(func(resp *Response) { resp.AlbumList2 = &AlbumList2{Album: []AlbumID3{}} })
		return
	}
	end := offset + size
	if end > len(albums) {
		end = len(albums)
	}
	page := albums[offset:end]

	starred, err := loadStarredSet(ctx, s.favorites, user.ID)
	if err != nil {
		re.fail(err)
		return
	}
	artistNames, err := s.artistNameCache(ctx, page)
	if err != nil {
		re.fail(err)
		return
	}

	out := make([]AlbumID3, 0, len(page))
	for _, a := range page {
		out = append(out, albumToID3(a, artistNames[a.ArtistID], starred))
	}
	re.ok(func(resp *Response) { resp.AlbumList2 = &AlbumList2{Album: out} })
}

// artistNameCache resolves each distinct artist referenced by albums once,
// instead of once per album.
func (s *Server) artistNameCache(ctx context.Context, albums []catalog.Album) (map[ids.ArtistID]string, error) {
	artistIDs := make([]ids.ArtistID, 0, len(albums))
	seen := make(map[ids.ArtistID]bool)
	for _, a := range albums {
		if !seen[a.ArtistID] {
			seen[a.ArtistID] = true
			artistIDs = append(artistIDs, a.ArtistID)
		}
	}
	artists, err := s.artists.GetBulk(ctx, artistIDs)
	if err != nil {
		return nil, err
	}
	names := make(map[ids.ArtistID]string, len(artists))
	for _, a := range artists {
		names[a.ID] = a.Name
	}
	return names, nil
}

func (s *Server) handleGetSong(w http.ResponseWriter, r *http.Request) {
	re := newResponder(w, r)
	idStr := r.URL.Query().Get("id")
	if idStr == "" {
		re.failCode(errRequiredParameterMissing, "missing parameter: id")
		return
	}
	id, err := ids.ParseKind(idStr, ids.KindTrack)
	if err != nil {
		re.failCode(errDataNotFound, "not found")
		return
	}
	ctx := r.Context()
	user := userFromContext(r)
	track, err := s.tracks.Get(ctx, id)
	if err != nil {
		re.fail(err)
		return
	}
	album, err := s.albums.Get(ctx, track.AlbumID)
	if err != nil {
		re.fail(err)
		return
	}
	artist, err := s.artists.Get(ctx, album.ArtistID)
	if err != nil {
		re.fail(err)
		return
	}
	starred, err := loadStarredSet(ctx, s.favorites, user.ID)
	if err != nil {
		re.fail(err)
		return
	}

	child := trackToChild(ctx, s.tracks, track, album.Name, artist.Name, starred)
	attachAudio(ctx, s.audio, track, &child)

	re.ok(func(resp *Response) { resp.Song = &child })
}
