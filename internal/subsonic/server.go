// Sonar - self-hosted music library server
// SPDX-License-Identifier: AGPL-3.0-or-later

package subsonic

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sonarhost/sonar/internal/audit"
	"github.com/sonarhost/sonar/internal/catalog"
	"github.com/sonarhost/sonar/internal/search"
)

// Server holds every catalog dependency the Subsonic surface reads from.
// It shares the same services internal/rpc.Server does; Subsonic never
// gets its own copy of the catalog.
type Server struct {
	users     *catalog.UserService
	artists   *catalog.ArtistService
	albums    *catalog.AlbumService
	tracks    *catalog.TrackService
	playlists *catalog.PlaylistService
	favorites *catalog.FavoriteService
	images    *catalog.ImageService
	audio     *catalog.AudioService
	scrobbles *catalog.ScrobbleService
	searchSvc *search.Service
	audit     *audit.Logger
}

// Config bundles Server's dependencies, named the way cmd/sonar-server
// constructs them.
type Config struct {
	Users     *catalog.UserService
	Artists   *catalog.ArtistService
	Albums    *catalog.AlbumService
	Tracks    *catalog.TrackService
	Playlists *catalog.PlaylistService
	Favorites *catalog.FavoriteService
	Images    *catalog.ImageService
	Audio     *catalog.AudioService
	Scrobbles *catalog.ScrobbleService
	Search    *search.Service
	// Audit records per-request authentication failures. Nil disables
	// audit logging entirely.
	Audit *audit.Logger
}

// NewServer constructs the Subsonic adapter over cfg.
func NewServer(cfg Config) *Server {
	return &Server{
		users:     cfg.Users,
		artists:   cfg.Artists,
		albums:    cfg.Albums,
		tracks:    cfg.Tracks,
		playlists: cfg.Playlists,
		favorites: cfg.Favorites,
		images:    cfg.Images,
		audio:     cfg.Audio,
		scrobbles: cfg.Scrobbles,
		searchSvc: cfg.Search,
		audit:     cfg.Audit,
	}
}

// Routes mounts every supported method twice, with and without the
// ".view" suffix legacy clients still use, matching the reference
// implementation's routing.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(s.withCredentials)

	mount := func(method string, h http.HandlerFunc) {
		r.Get("/"+method, h)
		r.Get("/"+method+".view", h)
		r.Post("/"+method, h)
		r.Post("/"+method+".view", h)
	}

	mount("ping", s.handlePing)
	mount("getLicense", s.handleGetLicense)
	mount("getMusicFolders", s.handleGetMusicFolders)
	mount("getIndexes", s.handleGetIndexes)
	mount("getArtists", s.handleGetArtists)
	mount("getArtist", s.handleGetArtist)
	mount("getAlbum", s.handleGetAlbum)
	mount("getAlbumList2", s.handleGetAlbumList2)
	mount("getSong", s.handleGetSong)
	mount("search3", s.handleSearch3)
	mount("getPlaylists", s.handleGetPlaylists)
	mount("getPlaylist", s.handleGetPlaylist)
	mount("createPlaylist", s.handleCreatePlaylist)
	mount("updatePlaylist", s.handleUpdatePlaylist)
	mount("deletePlaylist", s.handleDeletePlaylist)
	mount("getCoverArt", s.handleGetCoverArt)
	mount("stream", s.handleStream)
	mount("download", s.handleDownload)
	mount("scrobble", s.handleScrobble)
	mount("star", s.handleStar)
	mount("unstar", s.handleUnstar)
	mount("setRating", s.handleSetRating)
	mount("getStarred2", s.handleGetStarred2)

	return r
}

// credentialsContextKey stores the parsed, authenticated catalog.User on
// the request context so handlers don't each re-run authenticate.
type credentialsContextKey struct{}

// withCredentials authenticates every request up front: every Subsonic
// method requires u/p (or t/s, which we reject, see authenticate), so
// there is no unauthenticated method to special-case the way internal/rpc
// does for login.
func (s *Server) withCredentials(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		creds := parseCredentials(r)
		re := newResponder(w, r)
		if creds.Client == "" {
			re.failCode(errRequiredParameterMissing, "missing parameter: c")
			return
		}
		user, rerr := authenticate(r.Context(), s.users, creds)
		if rerr != nil {
			if s.audit != nil && rerr.code == errWrongUsernameOrPassword {
				s.audit.LogAuthFailure(r.Context(), "", creds.Username, audit.Source{IPAddress: r.RemoteAddr, UserAgent: r.UserAgent()}, rerr.message)
			}
			re.failCode(rerr.code, rerr.message)
			return
		}
		ctx := context.WithValue(r.Context(), credentialsContextKey{}, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func userFromContext(r *http.Request) catalog.User {
	u, _ := r.Context().Value(credentialsContextKey{}).(catalog.User)
	return u
}

// queryUint parses a decimal query parameter, reporting false when it is
// absent or malformed.
func queryUint(r *http.Request, name string) (uint64, bool) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0, false
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// queryIntDefault parses an optional decimal query parameter, falling
// back to def on absence or malformed input.
func queryIntDefault(r *http.Request, name string, def int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
