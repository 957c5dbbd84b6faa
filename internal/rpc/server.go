// Sonar - self-hosted music library server
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package rpc implements the typed HTTP+JSON request/response surface
// (spec §6 "Typed RPC surface"): every catalog verb, token authentication,
// admin enforcement, and an optional websocket notification channel,
// mirroring the teacher's internal/api package's router/handler/response
// split but sized for Sonar's verb list rather than Cartographus's
// analytics dashboard.
package rpc

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	"github.com/sonarhost/sonar/internal/audit"
	"github.com/sonarhost/sonar/internal/catalog"
	"github.com/sonarhost/sonar/internal/download"
	"github.com/sonarhost/sonar/internal/events"
	"github.com/sonarhost/sonar/internal/external"
	"github.com/sonarhost/sonar/internal/importer"
	"github.com/sonarhost/sonar/internal/metadata"
	sonarmiddleware "github.com/sonarhost/sonar/internal/middleware"
	"github.com/sonarhost/sonar/internal/search"
	"github.com/sonarhost/sonar/internal/subscription"
)

// Server holds every dependency an RPC handler needs. It is constructed
// once by cmd/sonar-server and mounted at the process HTTP server.
type Server struct {
	users       *catalog.UserService
	images      *catalog.ImageService
	artists     *catalog.ArtistService
	albums      *catalog.AlbumService
	tracks      *catalog.TrackService
	playlists   *catalog.PlaylistService
	favorites   *catalog.FavoriteService
	pins        *catalog.PinService
	scrobbles   *catalog.ScrobbleService
	audio       *catalog.AudioService

	registry      *external.Registry
	downloads     *download.Controller
	subscriptions *subscription.Store
	metadataSvc   *metadata.Service
	searchSvc     *search.Service
	importer      *importer.Importer

	bus   *events.Bus
	hub   *Hub
	authz *authorizer
	audit *audit.Logger

	scrobblerWorkers []ScrobblerWaker
}

// ScrobblerWaker is the subset of *scrobbler.Worker handleScrobbleCreate
// needs: a level-triggered signal that pending scrobbles are waiting.
type ScrobblerWaker interface {
	Wake()
}

// Config bundles every service Server needs, named the way cmd/sonar-server
// already constructs them.
type Config struct {
	Users       *catalog.UserService
	Images      *catalog.ImageService
	Artists     *catalog.ArtistService
	Albums      *catalog.AlbumService
	Tracks      *catalog.TrackService
	Playlists   *catalog.PlaylistService
	Favorites   *catalog.FavoriteService
	Pins        *catalog.PinService
	Scrobbles   *catalog.ScrobbleService
	Audio       *catalog.AudioService
	Registry    *external.Registry
	Downloads   *download.Controller
	Subscriptions *subscription.Store
	Metadata    *metadata.Service
	Search      *search.Service
	Importer    *importer.Importer
	Bus         *events.Bus
	// Audit records auth/authz security events (spec's admin-only method
	// gate and per-request auth). Nil disables audit logging entirely.
	Audit *audit.Logger
	// ScrobblerWorkers are woken after every scrobble create so dispatch
	// happens promptly instead of waiting on each worker's next wake from
	// elsewhere. Empty is valid: scrobbles still queue for whenever a
	// worker next wakes.
	ScrobblerWorkers []ScrobblerWaker
}

// NewServer constructs the RPC surface and its websocket notify hub.
func NewServer(cfg Config) (*Server, error) {
	az, err := newAuthorizer()
	if err != nil {
		return nil, err
	}
	return &Server{
		users:         cfg.Users,
		images:        cfg.Images,
		artists:       cfg.Artists,
		albums:        cfg.Albums,
		tracks:        cfg.Tracks,
		playlists:     cfg.Playlists,
		favorites:     cfg.Favorites,
		pins:          cfg.Pins,
		scrobbles:     cfg.Scrobbles,
		audio:         cfg.Audio,
		registry:      cfg.Registry,
		downloads:     cfg.Downloads,
		subscriptions: cfg.Subscriptions,
		metadataSvc:   cfg.Metadata,
		searchSvc:     cfg.Search,
		importer:      cfg.Importer,
		bus:           cfg.Bus,
		hub:           newHub(),
		authz:         az,
		audit:         cfg.Audit,
		scrobblerWorkers: cfg.ScrobblerWorkers,
	}, nil
}

// Hub exposes the websocket notification hub so cmd/sonar-server can
// register it with the supervisor tree (it implements suture.Service via
// Serve).
func (s *Server) Hub() *Hub { return s.hub }

// Routes builds the chi router for the whole RPC surface.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(func(next http.Handler) http.Handler { return sonarmiddleware.RequestID(next.ServeHTTP) })
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE"},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	}))

	r.Get("/docs/*", httpSwagger.Handler(httpSwagger.URL("/docs/swagger.json")))
	r.Get("/docs/swagger.json", s.handleSwaggerJSON)
	r.Handle("/metrics", promhttp.Handler())

	r.Post("/v1/users/login", s.handleLogin)

	r.Group(func(r chi.Router) {
		r.Use(s.withAuth)

		r.Post("/v1/users/logout", s.handleLogout)
		r.Get("/v1/users", s.handleUserList)
		r.Post("/v1/users", s.handleUserCreate)
		r.Delete("/v1/users/{id}", s.handleUserDelete)

		r.Post("/v1/images", s.handleImageCreate)
		r.Get("/v1/images/{id}/download", s.handleImageDownload)
		r.Delete("/v1/images/{id}", s.handleImageDelete)

		r.Get("/v1/artists", s.handleArtistList)
		r.Post("/v1/artists", s.handleArtistCreate)
		r.Get("/v1/artists/lookup", s.handleArtistLookup)
		r.Get("/v1/artists/{id}", s.handleArtistGet)
		r.Put("/v1/artists/{id}", s.handleArtistUpdate)
		r.Delete("/v1/artists/{id}", s.handleArtistDelete)

		r.Get("/v1/albums", s.handleAlbumList)
		r.Post("/v1/albums", s.handleAlbumCreate)
		r.Get("/v1/albums/lookup", s.handleAlbumLookup)
		r.Get("/v1/albums/{id}", s.handleAlbumGet)
		r.Put("/v1/albums/{id}", s.handleAlbumUpdate)
		r.Delete("/v1/albums/{id}", s.handleAlbumDelete)

		r.Get("/v1/tracks", s.handleTrackList)
		r.Post("/v1/tracks", s.handleTrackCreate)
		r.Get("/v1/tracks/lookup", s.handleTrackLookup)
		r.Get("/v1/tracks/{id}", s.handleTrackGet)
		r.Put("/v1/tracks/{id}", s.handleTrackUpdate)
		r.Delete("/v1/tracks/{id}", s.handleTrackDelete)
		r.Get("/v1/tracks/{id}/stat", s.handleTrackStat)
		r.Get("/v1/tracks/{id}/download", s.handleTrackDownload)

		r.Get("/v1/playlists", s.handlePlaylistList)
		r.Post("/v1/playlists", s.handlePlaylistCreate)
		r.Get("/v1/playlists/{id}", s.handlePlaylistGet)
		r.Put("/v1/playlists/{id}", s.handlePlaylistUpdate)
		r.Delete("/v1/playlists/{id}", s.handlePlaylistDelete)
		r.Post("/v1/playlists/{id}/duplicate", s.handlePlaylistDuplicate)
		r.Get("/v1/playlists/{id}/tracks", s.handlePlaylistTracks)
		r.Post("/v1/playlists/{id}/tracks", s.handlePlaylistTracksInsert)
		r.Delete("/v1/playlists/{id}/tracks", s.handlePlaylistTracksRemove)
		r.Delete("/v1/playlists/{id}/tracks/all", s.handlePlaylistTracksClear)

		r.Get("/v1/favorites", s.handleFavoriteList)
		r.Post("/v1/favorites/{id}", s.handleFavoriteAdd)
		r.Delete("/v1/favorites/{id}", s.handleFavoriteRemove)

		r.Get("/v1/pins", s.handlePinList)
		r.Post("/v1/pins/{id}", s.handlePinSet)
		r.Delete("/v1/pins/{id}", s.handlePinUnset)

		r.Get("/v1/scrobbles", s.handleScrobbleList)
		r.Post("/v1/scrobbles", s.handleScrobbleCreate)
		r.Delete("/v1/scrobbles/{id}", s.handleScrobbleDelete)

		r.Get("/v1/subscriptions", s.handleSubscriptionList)
		r.Post("/v1/subscriptions", s.handleSubscriptionCreate)
		r.Delete("/v1/subscriptions/{id}", s.handleSubscriptionDelete)
		r.Post("/v1/subscriptions/{id}/submit", s.handleSubscriptionSubmit)

		r.Get("/v1/downloads", s.handleDownloadList)

		r.Post("/v1/import", s.handleImport)

		r.Get("/v1/search", s.handleSearch)

		r.Get("/v1/metadata/providers", s.handleMetadataProviders)
		r.Post("/v1/metadata/fetch", s.handleMetadataFetch)
		r.Get("/v1/metadata/albums/{id}/tracks", s.handleMetadataAlbumTracks)

		r.Get("/v1/notify", s.handleWebsocket)
	})

	return r
}
