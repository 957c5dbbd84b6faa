// Sonar - self-hosted music library server
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sonarhost/sonar

package external

import (
	"context"
	"io"

	"github.com/sonarhost/sonar/internal/sonarerr"
)

// Adapter is one external service. Every method is optional: an adapter
// embeds UnimplementedAdapter and overrides only what it supports, so the
// registry can call any method on any adapter uniformly and treat an
// "unsupported" Invalid error as "this adapter has nothing to add" rather
// than a hard failure.
type Adapter interface {
	// Name identifies the adapter in metrics and logs.
	Name() string

	// Enrich adds whatever fields it can infer to request and reports
	// whether it changed anything.
	Enrich(ctx context.Context, request *MediaRequest) (EnrichStatus, error)

	// Extract resolves request to a concrete external id this adapter
	// recognizes, or an Invalid error if it can't.
	Extract(ctx context.Context, request MediaRequest) (MediaType, MediaID, error)

	FetchArtist(ctx context.Context, id MediaID) (Artist, error)
	FetchAlbum(ctx context.Context, id MediaID) (Album, error)
	FetchTrack(ctx context.Context, id MediaID) (Track, error)
	FetchPlaylist(ctx context.Context, id MediaID) (Playlist, error)
	FetchCompilation(ctx context.Context, id MediaID) (Compilation, error)
	// FetchGroup resolves a group id to its member ids.
	FetchGroup(ctx context.Context, id MediaID) ([]MediaID, error)

	// DownloadTrack streams the audio bytes for a track id.
	DownloadTrack(ctx context.Context, id MediaID) (io.ReadCloser, error)
}

// UnimplementedAdapter gives every method of Adapter a "not supported"
// default, the Go equivalent of the default trait methods external
// services are built against; embed it and override only what applies.
type UnimplementedAdapter struct{}

func (UnimplementedAdapter) Enrich(context.Context, *MediaRequest) (EnrichStatus, error) {
	return NotModified, nil
}

func (UnimplementedAdapter) Extract(context.Context, MediaRequest) (MediaType, MediaID, error) {
	return 0, "", sonarerr.Invalidf("not supported")
}

func (UnimplementedAdapter) FetchArtist(context.Context, MediaID) (Artist, error) {
	return Artist{}, sonarerr.Invalidf("not supported")
}

func (UnimplementedAdapter) FetchAlbum(context.Context, MediaID) (Album, error) {
	return Album{}, sonarerr.Invalidf("not supported")
}

func (UnimplementedAdapter) FetchTrack(context.Context, MediaID) (Track, error) {
	return Track{}, sonarerr.Invalidf("not supported")
}

func (UnimplementedAdapter) FetchPlaylist(context.Context, MediaID) (Playlist, error) {
	return Playlist{}, sonarerr.Invalidf("not supported")
}

func (UnimplementedAdapter) FetchCompilation(context.Context, MediaID) (Compilation, error) {
	return Compilation{}, sonarerr.Invalidf("not supported")
}

func (UnimplementedAdapter) FetchGroup(context.Context, MediaID) ([]MediaID, error) {
	return nil, sonarerr.Invalidf("not supported")
}

func (UnimplementedAdapter) DownloadTrack(context.Context, MediaID) (io.ReadCloser, error) {
	return nil, sonarerr.Invalidf("not supported")
}
