// Sonar - self-hosted music library server
// SPDX-License-Identifier: AGPL-3.0-or-later

package subsonic

import (
	"context"
	"net/http"

	"github.com/sonarhost/sonar/internal/catalog"
	"github.com/sonarhost/sonar/internal/ids"
)

func playlistToID3(p catalog.Playlist, ownerName string, songCount int, duration int) PlaylistID3 {
	out := PlaylistID3{
		ID:        p.ID.String(),
		Name:      p.Name,
		Owner:     ownerName,
		Public:    false,
		SongCount: songCount,
		Duration:  duration,
		Created:   isoTime(p.CreatedAt),
		Changed:   isoTime(p.CreatedAt),
	}
	if p.CoverArtID != nil {
		out.CoverArt = p.CoverArtID.String()
	}
	return out
}

func (s *Server) handleGetPlaylists(w http.ResponseWriter, r *http.Request) {
	re := newResponder(w, r)
	ctx := r.Context()
	user := userFromContext(r)

	playlists, err := s.playlists.ListByOwner(ctx, user.ID)
	if err != nil {
		re.fail(err)
		return
	}

	out := make([]PlaylistID3, 0, len(playlists))
	for _, p := range playlists {
		trackIDs, err := s.playlists.Tracks(ctx, p.ID)
		if err != nil {
			re.fail(err)
			return
		}
		duration, err := s.sumDuration(ctx, trackIDs)
		if err != nil {
			re.fail(err)
			return
		}
		out = append(out, playlistToID3(p, user.Username, len(trackIDs), duration))
	}
	re.ok(func(resp *Response) { resp.Playlists = &Playlists{Playlist: out} })
}

func (s *Server) handleGetPlaylist(w http.ResponseWriter, r *http.Request) {
	re := newResponder(w, r)
	idStr := r.URL.Query().Get("id")
	if idStr == "" {
		re.failCode(errRequiredParameterMissing, "missing parameter: id")
		return
	}
	id, err := ids.ParseKind(idStr, ids.KindPlaylist)
	if err != nil {
		re.failCode(errDataNotFound, "not found")
		return
	}
	out, err := s.buildPlaylistWithSongs(r.Context(), id, userFromContext(r))
	if err != nil {
		re.fail(err)
		return
	}
	re.ok(func(resp *Response) { resp.Playlist = &out })
}

// buildPlaylistWithSongs renders a playlist's full song list, shared by
// getPlaylist and by createPlaylist's echoed result (updatePlaylist replies
// with an empty ok).
func (s *Server) buildPlaylistWithSongs(ctx context.Context, id ids.PlaylistID, user catalog.User) (PlaylistWithSongs, error) {
	playlist, err := s.playlists.Get(ctx, id)
	if err != nil {
		return PlaylistWithSongs{}, err
	}
	trackIDs, err := s.playlists.Tracks(ctx, id)
	if err != nil {
		return PlaylistWithSongs{}, err
	}
	tracks, err := s.tracks.GetBulk(ctx, trackIDs)
	if err != nil {
		return PlaylistWithSongs{}, err
	}
	starred, err := loadStarredSet(ctx, s.favorites, user.ID)
	if err != nil {
		return PlaylistWithSongs{}, err
	}

	entries := make([]Child, 0, len(tracks))
	duration := 0
	for _, t := range tracks {
		album, err := s.albums.Get(ctx, t.AlbumID)
		if err != nil {
			continue
		}
		artist, err := s.artists.Get(ctx, album.ArtistID)
		if err != nil {
			continue
		}
		child := trackToChild(ctx, s.tracks, t, album.Name, artist.Name, starred)
		attachAudio(ctx, s.audio, t, &child)
		duration += child.Duration
		entries = append(entries, child)
	}

	return PlaylistWithSongs{
		PlaylistID3: playlistToID3(playlist, user.Username, len(entries), duration),
		Entry:       entries,
	}, nil
}

func (s *Server) handleCreatePlaylist(w http.ResponseWriter, r *http.Request) {
	re := newResponder(w, r)
	name := r.URL.Query().Get("name")
	if name == "" {
		re.failCode(errRequiredParameterMissing, "missing parameter: name")
		return
	}
	ctx := r.Context()
	user := userFromContext(r)

	trackIDs, err := parseSongIDs(r.URL.Query()["songId"])
	if err != nil {
		re.failCode(errGeneric, err.Error())
		return
	}

	playlist, err := s.playlists.Create(ctx, catalog.PlaylistCreate{
		Name:        name,
		OwnerUserID: user.ID,
		TrackIDs:    trackIDs,
	})
	if err != nil {
		re.fail(err)
		return
	}
	s.respondPlaylist(w, r, playlist.ID)
}

func (s *Server) handleUpdatePlaylist(w http.ResponseWriter, r *http.Request) {
	re := newResponder(w, r)
	idStr := r.URL.Query().Get("playlistId")
	if idStr == "" {
		re.failCode(errRequiredParameterMissing, "missing parameter: playlistId")
		return
	}
	id, err := ids.ParseKind(idStr, ids.KindPlaylist)
	if err != nil {
		re.failCode(errDataNotFound, "not found")
		return
	}
	ctx := r.Context()

	current, err := s.playlists.Tracks(ctx, id)
	if err != nil {
		re.fail(err)
		return
	}
	toAdd, err := parseSongIDs(r.URL.Query()["songIdToAdd"])
	if err != nil {
		re.failCode(errGeneric, err.Error())
		return
	}
	toRemoveIdx := make(map[int]bool)
	for _, idxStr := range r.URL.Query()["songIndexToRemove"] {
		if n, ok := parseIndex(idxStr); ok {
			toRemoveIdx[n] = true
		}
	}

	merged := make([]ids.TrackID, 0, len(current)+len(toAdd))
	for i, t := range current {
		if !toRemoveIdx[i] {
			merged = append(merged, t)
		}
	}
	merged = append(merged, toAdd...)

	update := catalog.PlaylistUpdate{TrackIDs: merged, ReplaceTracks: true}
	if name := r.URL.Query().Get("name"); name != "" {
		update.Name = ids.Set(name)
	}
	if _, err := s.playlists.Update(ctx, id, update); err != nil {
		re.fail(err)
		return
	}
	newResponder(w, r).ok(func(*Response) {})
}

// sumDuration totals a track list's stored audio duration, skipping tracks
// that have no preferred audio (or a lookup miss) rather than failing the
// whole playlist over one incomplete track. Used where only the total is
// needed, not the rendered song list (getPlaylists).
func (s *Server) sumDuration(ctx context.Context, trackIDs []ids.TrackID) (int, error) {
	tracks, err := s.tracks.GetBulk(ctx, trackIDs)
	if err != nil {
		return 0, err
	}
	total := 0
	for _, t := range tracks {
		if t.PreferredAudioID == nil {
			continue
		}
		a, err := s.audio.Get(ctx, *t.PreferredAudioID)
		if err != nil {
			continue
		}
		total += int(a.DurationMS / 1000)
	}
	return total, nil
}

func (s *Server) handleDeletePlaylist(w http.ResponseWriter, r *http.Request) {
	re := newResponder(w, r)
	idStr := r.URL.Query().Get("id")
	if idStr == "" {
		re.failCode(errRequiredParameterMissing, "missing parameter: id")
		return
	}
	id, err := ids.ParseKind(idStr, ids.KindPlaylist)
	if err != nil {
		re.failCode(errDataNotFound, "not found")
		return
	}
	if err := s.playlists.Delete(r.Context(), id); err != nil {
		re.fail(err)
		return
	}
	re.ok(func(*Response) {})
}

func (s *Server) respondPlaylist(w http.ResponseWriter, r *http.Request, id ids.PlaylistID) {
	re := newResponder(w, r)
	out, err := s.buildPlaylistWithSongs(r.Context(), id, userFromContext(r))
	if err != nil {
		re.fail(err)
		return
	}
	re.ok(func(resp *Response) { resp.Playlist = &out })
}
