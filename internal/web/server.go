package web

import (
	"context"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	zlog "github.com/rs/zerolog/log"
	"golang.org/x/oauth2"

	"github.com/justestif/go-find-that-song/internal/auth"
	"github.com/justestif/go-find-that-song/internal/clustering"
	"github.com/justestif/go-find-that-song/internal/config"
	"github.com/justestif/go-find-that-song/internal/db"
	"github.com/justestif/go-find-that-song/internal/lastfm"
	"github.com/justestif/go-find-that-song/internal/playlist"
	"github.com/justestif/go-find-that-song/internal/ratelimit"
	"github.com/justestif/go-find-that-song/internal/recommend"
	"github.com/justestif/go-find-that-song/internal/spotify"
)

const sessionPruneInterval = time.Hour

// ServerConfig holds server configuration. Database and LastFM are optional.
type ServerConfig struct {
	Config      *config.Config
	Database    *db.DB
	LastFM      *lastfm.Client
	TemplatesFS fs.FS
	StaticFS    fs.FS
}

// Server is the HTTP server for the web application.
type Server struct {
	router   chi.Router
	server   *http.Server
	limiter  *ratelimit.KeyedRateLimiter
	dbStore  *DBSessionStore
	handlers *Handlers
}

// NewServer creates a new web server.
func NewServer(cfg ServerConfig) (*Server, error) {
	appCfg := cfg.Config
	authn := auth.New(appCfg.Spotify)

	templates, err := NewTemplates(cfg.TemplatesFS)
	if err != nil {
		return nil, errors.Wrap(err, "loading templates")
	}

	s := &Server{}
	secure := appCfg.IsProduction()

	var (
		sessions SessionManager
		history  History
		recorder playlist.Recorder
		ping     func(ctx context.Context) error
	)
	if cfg.Database != nil {
		s.dbStore = NewDBSessionStore(cfg.Database, secure)
		sessions = s.dbStore
		history = NewDBHistory(cfg.Database)
		recorder = history
		ping = cfg.Database.Ping
	} else {
		sessions = NewSessionStore(secure)
	}

	var (
		resolverOpts []recommend.Option
		tagger       clustering.ArtistTagger
	)
	if cfg.LastFM != nil {
		resolverOpts = append(resolverOpts, recommend.WithTagCharts(cfg.LastFM, appCfg.LastFM.TracksPerTag, appCfg.LastFM.Concurrency))
		tagger = cfg.LastFM
	}
	resolver := recommend.New(resolverOpts...)
	zlog.Debug().Strs("strategies", resolver.Steps()).Msg("recommendation chain")

	market := appCfg.Spotify.Market
	catalogs := func(ctx context.Context, token *oauth2.Token) Catalog {
		return spotify.New(authn.Client(ctx, token)).WithMarket(market)
	}

	s.handlers = NewHandlers(HandlersConfig{
		Auth:              authn,
		Catalogs:          catalogs,
		Sessions:          sessions,
		Templates:         templates,
		Generator:         playlist.NewService(resolver, recorder),
		Suggester:         clustering.NewSuggester(tagger, clustering.DefaultConfig()),
		History:           history,
		Ping:              ping,
		DefaultTrackCount: appCfg.Generator.DefaultTrackCount,
		SecureCookies:     secure,
	})

	s.limiter = ratelimit.New(appCfg.Generator.RequestsPerSecond, appCfg.Generator.Burst)
	s.router = newRouter(s.handlers, routerConfig{
		Limiter:    s.limiter,
		StaticFS:   cfg.StaticFS,
		TrustProxy: appCfg.Server.TrustProxy,
	})

	s.server = &http.Server{
		Addr:         appCfg.Addr(),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s, nil
}

// routerConfig holds the router inputs that are not handlers.
type routerConfig struct {
	Limiter  *ratelimit.KeyedRateLimiter
	StaticFS fs.FS
	// TrustProxy rewrites RemoteAddr from forwarding headers.
	TrustProxy bool
}

// newRouter configures middleware and routes.
func newRouter(h *Handlers, cfg routerConfig) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	if cfg.TrustProxy {
		r.Use(middleware.RealIP)
	}
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))

	// Static files
	fileServer := http.FileServer(http.FS(cfg.StaticFS))
	r.Handle("/static/*", http.StripPrefix("/static/", fileServer))

	r.Get("/", h.Home)
	r.Get("/health", h.Health)

	// Auth routes
	r.Get("/login", h.Login)
	r.Get("/callback", h.Callback)
	r.Post("/logout", h.Logout)

	r.Group(func(r chi.Router) {
		r.Use(h.requireSession)

		r.Get("/recently-played", h.RecentlyPlayed)
		r.Get("/top-tracks", h.TopTracks)
		r.Get("/top-artists", h.TopArtists)
		r.Get("/top-albums", h.TopAlbums)
		r.Get("/generate-playlist", h.GeneratePlaylist)
		r.Post("/generate-playlist/history/delete", h.ForgetHistory)
		r.With(ratelimit.Middleware(cfg.Limiter, sessionUserKey)).Post("/create-playlist", h.CreatePlaylist)
	})

	return r
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	zlog.Info().Str("addr", s.server.Addr).Msgf("Starting server at http://%s", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.limiter.Stop()
	return s.server.Shutdown(ctx)
}

// Run starts the server and handles graceful shutdown on interrupt signals.
func (s *Server) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if s.dbStore != nil {
		go s.dbStore.PruneExpired(ctx, sessionPruneInterval)
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		zlog.Info().Msg("Shutting down server...")
	}

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "server shutdown")
	}

	zlog.Info().Msg("Server stopped")
	return nil
}
