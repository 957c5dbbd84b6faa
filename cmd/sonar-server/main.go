// Sonar - self-hosted music library server
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sonarhost/sonar

// Package main is the entry point for the Sonar server.
//
// Sonar is a self-hosted music library server: it ingests tagged audio
// files into a relational catalog, serves them over a typed RPC surface
// and a Subsonic-compatible API, and keeps a full-text search index and
// websocket notify channel in sync with every catalog mutation. It can
// optionally enrich the catalog from external metadata providers, submit
// listens to scrobbling services, and poll subscriptions for new
// releases.
//
// # Application Architecture
//
// main wires every subsystem in dependency order: configuration, storage
// (DuckDB catalog, blob store, search index), the catalog services,
// the optional external integrations (metadata providers, scrobblers),
// the background workers (download orchestrator, subscription poller,
// scrobble dispatchers), the CRUD event bus and its search-sync/websocket
// handlers, and finally the two HTTP surfaces (Subsonic, typed RPC). All
// long-running pieces are added to a three-layer suture supervisor tree
// (storage, workers, transport) so a crash in one worker cannot take
// down the HTTP surfaces.
//
// # Configuration
//
// Configuration loads via koanf with layered sources (highest priority
// wins): SONAR_-prefixed environment variables, an optional YAML file
// (see config.DefaultConfigPaths or SONAR_CONFIG_PATH), then built-in
// defaults.
//
// # Signal handling
//
// SIGINT and SIGTERM trigger a graceful shutdown: the supervisor tree's
// root context is cancelled, every service is given its configured grace
// period to stop, and any service that misses that window is logged.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/sonarhost/sonar/internal/audit"
	"github.com/sonarhost/sonar/internal/blob"
	"github.com/sonarhost/sonar/internal/catalog"
	"github.com/sonarhost/sonar/internal/config"
	"github.com/sonarhost/sonar/internal/download"
	"github.com/sonarhost/sonar/internal/events"
	"github.com/sonarhost/sonar/internal/external"
	"github.com/sonarhost/sonar/internal/ids"
	"github.com/sonarhost/sonar/internal/importer"
	"github.com/sonarhost/sonar/internal/logging"
	"github.com/sonarhost/sonar/internal/metadata"
	"github.com/sonarhost/sonar/internal/rpc"
	"github.com/sonarhost/sonar/internal/scrobbler"
	"github.com/sonarhost/sonar/internal/search"
	"github.com/sonarhost/sonar/internal/store"
	"github.com/sonarhost/sonar/internal/subscription"
	"github.com/sonarhost/sonar/internal/subsonic"
	"github.com/sonarhost/sonar/internal/supervisor"
	"github.com/sonarhost/sonar/internal/supervisor/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("load configuration")
	}
	if err := cfg.Validate(); err != nil {
		logging.Fatal().Err(err).Msg("invalid configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})
	logging.Info().Msg("starting sonar")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := store.Open(ctx, cfg.Database)
	if err != nil {
		logging.Fatal().Err(err).Msg("open catalog database")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("close catalog database")
		}
	}()

	blobs, err := blob.New(cfg.Storage)
	if err != nil {
		logging.Fatal().Err(err).Msg("open blob store")
	}

	searchIndexPath := cfg.Search.IndexPath
	if cfg.Storage.Backend == "memory" {
		searchIndexPath = ""
	}
	searchBackend, err := search.NewBleveBackend(searchIndexPath)
	if err != nil {
		logging.Fatal().Err(err).Msg("open search index")
	}
	defer func() {
		if err := searchBackend.Close(); err != nil {
			logging.Error().Err(err).Msg("close search index")
		}
	}()

	// Catalog services.
	users := catalog.NewUserService(db)
	images := catalog.NewImageService(db, blobs)
	artists := catalog.NewArtistService(db)
	albums := catalog.NewAlbumService(db)
	tracks := catalog.NewTrackService(db, blobs)
	audioSvc := catalog.NewAudioService(db, blobs)
	playlists := catalog.NewPlaylistService(db)
	favorites := catalog.NewFavoriteService(db)
	pins := catalog.NewPinService(db)
	scrobbles := catalog.NewScrobbleService(db)
	lyrics := catalog.NewLyricsService(db)

	searchSvc := search.NewService(searchBackend, artists, albums, tracks, playlists, lyrics)

	// No concrete external.Adapter ships in this build (see DESIGN.md):
	// the registry starts empty, and enrich/extract calls simply find no
	// adapter willing to handle a request until one is registered.
	registry := external.NewRegistry()

	downloads := download.NewController(registry, artists, albums, tracks, audioSvc, images, playlists)

	subscriptions := subscription.NewStore(db)
	subscriptionWorker := subscription.NewWorker(subscriptions, downloads)

	metadataProviders := buildMetadataProviders(ctx, cfg.External)
	metadataSvc := metadata.NewService(artists, albums, tracks, images, metadataProviders...)

	scrobblerWorkers := buildScrobblerWorkers(cfg.External, scrobbles, tracks, albums, artists)
	rpcScrobblerWakers := make([]rpc.ScrobblerWaker, len(scrobblerWorkers))
	for i, w := range scrobblerWorkers {
		rpcScrobblerWakers[i] = w
	}

	tagExtractor := importer.TagExtractor{}
	importPipeline := importer.New(importer.Config{
		MaxImportSizeBytes:  cfg.Import.MaxSizeBytes,
		MaxConcurrentImport: cfg.Import.MaxConcurrent,
	}, []importer.Extractor{tagExtractor}, artists, albums, tracks, audioSvc)

	bus := events.NewBus()
	router, err := events.NewRouter(bus)
	if err != nil {
		logging.Fatal().Err(err).Msg("construct event router")
	}

	auditLogger := buildAuditLogger(ctx, db, cfg.Audit)
	if auditLogger != nil {
		defer func() {
			if err := auditLogger.Close(); err != nil {
				logging.Error().Err(err).Msg("close audit logger")
			}
		}()
	}

	rpcServer, err := rpc.NewServer(rpc.Config{
		Users:            users,
		Images:           images,
		Artists:          artists,
		Albums:           albums,
		Tracks:           tracks,
		Playlists:        playlists,
		Favorites:        favorites,
		Pins:             pins,
		Scrobbles:        scrobbles,
		Audio:            audioSvc,
		Registry:         registry,
		Downloads:        downloads,
		Subscriptions:    subscriptions,
		Metadata:         metadataSvc,
		Search:           searchSvc,
		Importer:         importPipeline,
		Bus:              bus,
		Audit:            auditLogger,
		ScrobblerWorkers: rpcScrobblerWakers,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("construct rpc server")
	}

	subsonicServer := subsonic.NewServer(subsonic.Config{
		Users:     users,
		Artists:   artists,
		Albums:    albums,
		Tracks:    tracks,
		Playlists: playlists,
		Favorites: favorites,
		Images:    images,
		Audio:     audioSvc,
		Scrobbles: scrobbles,
		Search:    searchSvc,
		Audit:     auditLogger,
	})

	registerSearchSyncHandlers(router, searchSvc, rpcServer.Hub())

	slogLogger := logging.NewSlogLogger()
	tree, err := supervisor.NewSupervisorTree(slogLogger, supervisor.DefaultTreeConfig())
	if err != nil {
		logging.Fatal().Err(err).Msg("construct supervisor tree")
	}

	tree.AddWorkerService(router)
	tree.AddWorkerService(subscriptionWorker)
	for _, w := range scrobblerWorkers {
		tree.AddWorkerService(w)
	}

	tree.AddTransportService(rpcServer.Hub())

	subsonicHTTP := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.SubsonicPort),
		Handler:      subsonicServer.Routes(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	rpcHTTP := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.RPCPort),
		Handler:      rpcServer.Routes(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	tree.AddTransportService(services.NewHTTPServerService("subsonic", subsonicHTTP, cfg.Server.ShutdownGrace))
	tree.AddTransportService(services.NewHTTPServerService("rpc", rpcHTTP, cfg.Server.ShutdownGrace))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("received shutdown signal")
		cancel()
	}()

	logging.Info().
		Str("subsonic_addr", subsonicHTTP.Addr).
		Str("rpc_addr", rpcHTTP.Addr).
		Msg("serving")

	errCh := tree.ServeBackground(ctx)
	select {
	case <-ctx.Done():
		logging.Info().Msg("context canceled, waiting for supervisor to finish")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("supervisor tree error")
		}
	}
	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("supervisor shutdown error")
		}
	}

	if unstopped, err := tree.UnstoppedServiceReport(); err == nil && len(unstopped) > 0 {
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("service failed to stop within shutdown grace")
		}
	}

	logging.Info().Msg("sonar stopped")
}

// buildMetadataProviders constructs every metadata.Provider whose
// required credentials are present in cfg, skipping (with a warning) any
// name listed in MetadataProviders that Sonar has no credentials for.
func buildMetadataProviders(ctx context.Context, cfg config.ExternalConfig) []metadata.Provider {
	var providers []metadata.Provider
	for _, name := range cfg.MetadataProviders {
		switch name {
		case "spotify":
			if cfg.SpotifyClientID == "" || cfg.SpotifyClientSecret == "" {
				logging.Warn().Msg("spotify metadata provider listed but no client credentials configured, skipping")
				continue
			}
			provider, err := metadata.NewSpotifyProvider(ctx, cfg.SpotifyClientID, cfg.SpotifyClientSecret)
			if err != nil {
				logging.Error().Err(err).Msg("initialize spotify metadata provider")
				continue
			}
			providers = append(providers, provider)
		default:
			logging.Warn().Str("provider", name).Msg("unknown metadata provider, skipping")
		}
	}
	return providers
}

// buildScrobblerWorkers constructs one scrobbler.Worker per configured,
// credentialed scrobbler backend. Last.fm is account-scoped (one linked
// session key), so its worker scans every user's pending scrobbles
// (userID nil) rather than one user's.
func buildScrobblerWorkers(cfg config.ExternalConfig, scrobbles *catalog.ScrobbleService, tracks *catalog.TrackService, albums *catalog.AlbumService, artists *catalog.ArtistService) []*scrobbler.Worker {
	var workers []*scrobbler.Worker
	for _, name := range cfg.Scrobblers {
		switch name {
		case "lastfm":
			if cfg.LastFMAPIKey == "" || cfg.LastFMAPISecret == "" || cfg.LastFMSessionKey == "" {
				logging.Warn().Msg("lastfm scrobbler listed but no credentials configured, skipping")
				continue
			}
			lastFM := scrobbler.NewLastFM(cfg.LastFMAPIKey, cfg.LastFMAPISecret, cfg.LastFMSessionKey)
			workers = append(workers, scrobbler.NewWorker(lastFM, nil, scrobbles, tracks, albums, artists))
		default:
			logging.Warn().Str("scrobbler", name).Msg("unknown scrobbler, skipping")
		}
	}
	return workers
}

// buildAuditLogger constructs the audit trail over db, or returns nil if
// the audit table fails to initialize: audit logging is a security
// nice-to-have, never a reason to refuse to start.
func buildAuditLogger(ctx context.Context, db *store.Store, cfg config.AuditConfig) *audit.Logger {
	auditStore := audit.NewDuckDBStore(db.DB())
	if err := auditStore.CreateTable(ctx); err != nil {
		logging.Warn().Err(err).Msg("create audit events table, audit logging disabled")
		return nil
	}
	auditConfig := audit.DefaultConfig()
	auditConfig.RetentionDays = cfg.RetentionDays
	logger := audit.NewLogger(auditStore, auditConfig)
	logger.StartCleanupRoutine(ctx)
	return logger
}

// registerSearchSyncHandlers subscribes the search index and the
// websocket notify hub to every catalog change event: a create/update
// re-indexes the entity, a delete removes its document, and every event
// (regardless of operation) is also forwarded to connected notify
// clients.
func registerSearchSyncHandlers(router *events.Router, searchSvc *search.Service, hub *rpc.Hub) {
	sync := map[events.Kind]func(ctx context.Context, id ids.ID) error{
		events.KindArtist:   func(ctx context.Context, id ids.ID) error { return searchSvc.SyncArtist(ctx, id) },
		events.KindAlbum:    func(ctx context.Context, id ids.ID) error { return searchSvc.SyncAlbum(ctx, id) },
		events.KindTrack:    func(ctx context.Context, id ids.ID) error { return searchSvc.SyncTrack(ctx, id) },
		events.KindPlaylist: func(ctx context.Context, id ids.ID) error { return searchSvc.SyncPlaylist(ctx, id) },
	}
	for kind, syncFn := range sync {
		kind, syncFn := kind, syncFn
		router.AddHandler("search-sync-"+string(kind), kind, func(ctx context.Context, ev events.Event) error {
			if ev.Operation == events.OpDelete {
				return searchSvc.Remove(ctx, search.Kind(kind), ev.ID)
			}
			return syncFn(ctx, ids.ID(ev.ID))
		})
	}

	for _, kind := range []events.Kind{events.KindArtist, events.KindAlbum, events.KindTrack, events.KindPlaylist} {
		kind := kind
		router.AddHandler("notify-"+string(kind), kind, func(_ context.Context, ev events.Event) error {
			hub.NotifyEvent(ev)
			return nil
		})
	}
}
