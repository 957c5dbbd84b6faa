// Sonar - self-hosted music library server
// SPDX-License-Identifier: AGPL-3.0-or-later

package subsonic

import (
	"context"
	"strconv"
	"time"

	"github.com/sonarhost/sonar/internal/catalog"
	"github.com/sonarhost/sonar/internal/ids"
)

// isoTime renders t the way Subsonic clients expect: millisecond-precision
// UTC with a literal "Z" offset.
func isoTime(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z")
}

// starredSet indexes a user's favorites by target id so conversion
// functions can fill in the "starred" attribute without a lookup per row.
type starredSet map[ids.ID]time.Time

func loadStarredSet(ctx context.Context, favorites *catalog.FavoriteService, userID ids.UserID) (starredSet, error) {
	favs, err := favorites.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	set := make(starredSet, len(favs))
	for _, f := range favs {
		set[f.TargetID] = f.CreatedAt
	}
	return set, nil
}

func (s starredSet) at(id ids.ID) string {
	if s == nil {
		return ""
	}
	if t, ok := s[id]; ok {
		return isoTime(t)
	}
	return ""
}

func artistToID3(a catalog.Artist, starred starredSet) ArtistID3 {
	out := ArtistID3{
		ID:         a.ID.String(),
		Name:       a.Name,
		AlbumCount: int(a.AlbumCount),
		Starred:    starred.at(a.ID),
	}
	if a.CoverArtID != nil {
		out.CoverArt = a.CoverArtID.String()
	}
	return out
}

func albumToID3(a catalog.Album, artistName string, starred starredSet) AlbumID3 {
	out := AlbumID3{
		ID:        a.ID.String(),
		Name:      a.Name,
		Artist:    artistName,
		ArtistID:  a.ArtistID.String(),
		SongCount: int(a.TrackCount),
		Duration:  int(a.DurationMS / 1000),
		Created:   isoTime(a.CreatedAt),
		Starred:   starred.at(a.ID),
	}
	if a.CoverArtID != nil {
		out.CoverArt = a.CoverArtID.String()
	}
	return out
}

// trackToChild renders a track as a song Child node. albumName/artistName
// are passed in rather than re-fetched per song; trackNumber comes from
// the track's free-form properties (set by the importer under
// "track_number"), defaulting to 0 when absent.
func trackToChild(ctx context.Context, tracks *catalog.TrackService, t catalog.Track, albumName, artistName string, starred starredSet) Child {
	child := Child{
		ID:       t.ID.String(),
		Parent:   t.AlbumID.String(),
		IsDir:    false,
		Title:    t.Name,
		Album:    albumName,
		Artist:   artistName,
		AlbumID:  t.AlbumID.String(),
		Type:     "music",
		Created:  isoTime(t.CreatedAt),
		Starred:  starred.at(t.ID),
	}
	if t.CoverArtID != nil {
		child.CoverArt = t.CoverArtID.String()
	}
	if props, err := tracks.Properties(ctx, t.ID); err == nil {
		if n, err := strconv.Atoi(props["track_number"]); err == nil {
			child.Track = n
		}
	}
	return child
}

// attachAudio fills in the size/duration/bitrate/contentType/suffix
// attributes that require fetching the track's preferred audio rendition;
// left zero-valued when the track has no stored audio yet.
func attachAudio(ctx context.Context, audio *catalog.AudioService, t catalog.Track, child *Child) {
	if t.PreferredAudioID == nil {
		return
	}
	a, err := audio.Get(ctx, *t.PreferredAudioID)
	if err != nil {
		return
	}
	child.Size = a.Size
	child.Duration = int(a.DurationMS / 1000)
	child.BitRate = int(a.Bitrate / 1000)
	child.ContentType = a.MimeType
}
