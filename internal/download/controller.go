// Sonar - self-hosted music library server
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sonarhost/sonar

package download

import (
	"context"
	"sync"

	"github.com/sonarhost/sonar/internal/catalog"
	"github.com/sonarhost/sonar/internal/external"
	"github.com/sonarhost/sonar/internal/ids"
	"github.com/sonarhost/sonar/internal/metrics"
)

// Status is a download task's lifecycle state.
type Status int

const (
	StatusDownloading Status = iota
	StatusComplete
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusDownloading:
		return "downloading"
	case StatusComplete:
		return "complete"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Download is a snapshot of one task, returned by List.
type Download struct {
	UserID      ids.UserID
	ExternalID  external.MediaID
	Status      Status
	Description string
}

type key struct {
	userID     ids.UserID
	externalID external.MediaID
}

type task struct {
	key
	status      Status
	description string
	cancel      context.CancelFunc
}

// Controller tracks in-flight and finished download tasks and drives them
// through the registry and catalog services.
type Controller struct {
	registry  *external.Registry
	artists   *catalog.ArtistService
	albums    *catalog.AlbumService
	tracks    *catalog.TrackService
	audio     *catalog.AudioService
	images    *catalog.ImageService
	playlists *catalog.PlaylistService

	mu    sync.Mutex
	tasks map[key]*task
}

// NewController wires a Controller to the registry and catalog services
// its tasks materialize into.
func NewController(registry *external.Registry, artists *catalog.ArtistService, albums *catalog.AlbumService, tracks *catalog.TrackService, audio *catalog.AudioService, images *catalog.ImageService, playlists *catalog.PlaylistService) *Controller {
	return &Controller{
		registry:  registry,
		artists:   artists,
		albums:    albums,
		tracks:    tracks,
		audio:     audio,
		images:    images,
		playlists: playlists,
		tasks:     make(map[key]*task),
	}
}

// List returns every task belonging to userID, in no particular order.
func (c *Controller) List(userID ids.UserID) []Download {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Download, 0)
	for k, t := range c.tasks {
		if k.userID != userID {
			continue
		}
		out = append(out, Download{UserID: k.userID, ExternalID: k.externalID, Status: t.status, Description: t.description})
	}
	return out
}

// Request starts a background download of externalID for userID. A
// request for an id already downloading is a no-op; a request for one
// that previously completed or failed restarts it.
func (c *Controller) Request(ctx context.Context, userID ids.UserID, externalID external.MediaID) {
	k := key{userID: userID, externalID: externalID}

	c.mu.Lock()
	if existing, ok := c.tasks[k]; ok && existing.status == StatusDownloading {
		c.mu.Unlock()
		return
	}
	taskCtx, cancel := context.WithCancel(context.Background())
	c.tasks[k] = &task{key: k, status: StatusDownloading, cancel: cancel}
	c.mu.Unlock()

	metrics.DownloadTasksInFlight.Inc()
	go c.run(taskCtx, k)
}

// Delete cancels a running task for (userID, externalID) and forgets it.
// It is a no-op if no such task exists.
func (c *Controller) Delete(userID ids.UserID, externalID external.MediaID) {
	k := key{userID: userID, externalID: externalID}

	c.mu.Lock()
	defer c.mu.Unlock()
	if t, ok := c.tasks[k]; ok {
		t.cancel()
		delete(c.tasks, k)
	}
}

func (c *Controller) run(ctx context.Context, k key) {
	mediaType, err := download(ctx, downloadDeps{
		registry:  c.registry,
		artists:   c.artists,
		albums:    c.albums,
		tracks:    c.tracks,
		audio:     c.audio,
		images:    c.images,
		playlists: c.playlists,
	}, k.userID, k.externalID)

	c.mu.Lock()
	defer c.mu.Unlock()
	metrics.DownloadTasksInFlight.Dec()

	t, ok := c.tasks[k]
	if !ok {
		return // deleted while running
	}
	label := "unknown"
	if mediaType != nil {
		label = mediaType.String()
	}
	if err != nil {
		t.status = StatusFailed
		t.description = err.Error()
		metrics.DownloadTasksTotal.WithLabelValues(label, "failed").Inc()
		return
	}
	t.status = StatusComplete
	metrics.DownloadTasksTotal.WithLabelValues(label, "complete").Inc()
}
