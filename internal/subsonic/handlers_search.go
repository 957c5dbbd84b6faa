// Sonar - self-hosted music library server
// SPDX-License-Identifier: AGPL-3.0-or-later

package subsonic

import (
	"net/http"

	"github.com/sonarhost/sonar/internal/ids"
	"github.com/sonarhost/sonar/internal/search"
)

// handleSearch3 is the ID3-tagged search method every modern Subsonic
// client calls; Sonar has no legacy "search2" directory-tagged catalog to
// serve the older method against, so only search3 is implemented.
func (s *Server) handleSearch3(w http.ResponseWriter, r *http.Request) {
	re := newResponder(w, r)
	ctx := r.Context()
	user := userFromContext(r)

	query := r.URL.Query().Get("query")
	limit := queryIntDefault(r, "songCount", 20) + queryIntDefault(r, "albumCount", 20) + queryIntDefault(r, "artistCount", 20)

	hits, err := s.searchSvc.Search(ctx, user.ID, search.Query{Text: query, Limit: limit})
	if err != nil {
		re.fail(err)
		return
	}

	starred, err := loadStarredSet(ctx, s.favorites, user.ID)
	if err != nil {
		re.fail(err)
		return
	}

	result := SearchResult3{Artist: []ArtistID3{}, Album: []AlbumID3{}, Song: []Child{}}
	albumArtists := make(map[ids.AlbumID]string)
	for _, hit := range hits {
		switch {
		case hit.Artist != nil:
			result.Artist = append(result.Artist, artistToID3(*hit.Artist, starred))
		case hit.Album != nil:
			artistName := albumArtists[hit.Album.ID]
			if artistName == "" {
				if artist, err := s.artists.Get(ctx, hit.Album.ArtistID); err == nil {
					artistName = artist.Name
					albumArtists[hit.Album.ID] = artistName
				}
			}
			result.Album = append(result.Album, albumToID3(*hit.Album, artistName, starred))
		case hit.Track != nil:
			album, err := s.albums.Get(ctx, hit.Track.AlbumID)
			if err != nil {
				continue
			}
			artist, err := s.artists.Get(ctx, album.ArtistID)
			if err != nil {
				continue
			}
			child := trackToChild(ctx, s.tracks, *hit.Track, album.Name, artist.Name, starred)
			attachAudio(ctx, s.audio, *hit.Track, &child)
			result.Song = append(result.Song, child)
		case hit.Playlist != nil && hit.Playlist.OwnerUserID == user.ID:
			// Subsonic's search3 has no playlist slot; owned playlist hits
			// are simply not representable in this response shape.
		}
	}

	re.ok(func(resp *Response) { resp.SearchResult3 = &result })
}
