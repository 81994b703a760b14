package server

import (
	"context"
	"io/fs"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"github.com/sendrec/ivplayer/internal/auth"
	"github.com/sendrec/ivplayer/internal/database"
	"github.com/sendrec/ivplayer/internal/docs"
	"github.com/sendrec/ivplayer/internal/httputil"
	"github.com/sendrec/ivplayer/internal/ratelimit"
	"github.com/sendrec/ivplayer/internal/session"
	"github.com/sendrec/ivplayer/internal/validate"
	"github.com/sendrec/ivplayer/internal/video"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type Config struct {
	DB               database.DBTX
	Pinger           Pinger
	Storage          video.ObjectStorage
	Locator          video.Locator
	WebFS            fs.FS
	JWTSecret        string
	BaseURL          string
	MaxUploadBytes   int64
	S3PublicEndpoint string
	// CORSOrigins may call the viewer API from another site; empty allows
	// any origin.
	CORSOrigins []string
	EnableDocs  bool
	// Sessions configures playback sessions; its Catalog is filled in from
	// the video handler.
	Sessions session.Config
}

type Server struct {
	router         chi.Router
	pinger         Pinger
	authHandler    *auth.Handler
	videoHandler   *video.Handler
	sessionHandler *session.Handler
	sessions       *session.Manager
	corsOrigins    []string
	webFS          fs.FS
	enableDocs     bool
	limiters       []*ratelimit.Limiter
}

func New(cfg Config) *Server {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(slogMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(securityHeaders(SecurityConfig{
		BaseURL:         cfg.BaseURL,
		StorageEndpoint: cfg.S3PublicEndpoint,
		EmbedAncestors:  cfg.CORSOrigins,
	}))

	s := &Server{router: r, pinger: cfg.Pinger, webFS: cfg.WebFS, corsOrigins: cfg.CORSOrigins, enableDocs: cfg.EnableDocs}

	if cfg.DB != nil {
		jwtSecret := cfg.JWTSecret
		if jwtSecret == "" {
			log.Fatal("JWT_SECRET is required; set the environment variable")
		}

		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = "http://localhost:8080"
		}

		s.authHandler = auth.NewHandler(cfg.DB, jwtSecret)
		s.videoHandler = video.NewHandler(cfg.DB, cfg.Storage, baseURL, cfg.MaxUploadBytes)
		if cfg.Locator != nil {
			s.videoHandler.SetLocator(cfg.Locator)
		}

		sessionCfg := cfg.Sessions
		sessionCfg.Catalog = s.videoHandler
		s.sessions = session.NewManager(sessionCfg)
		s.sessionHandler = session.NewHandler(s.sessions)
	}

	s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Sessions returns the playback session manager, or nil when the server has
// no database.
func (s *Server) Sessions() *session.Manager {
	return s.sessions
}

// Close stops the background work of the rate limiters.
func (s *Server) Close() {
	for _, l := range s.limiters {
		l.Stop()
	}
}

func (s *Server) limiter(rps float64, burst int, opts ...ratelimit.Option) *ratelimit.Limiter {
	l := ratelimit.NewLimiter(rps, burst, opts...)
	s.limiters = append(s.limiters, l)
	return l
}

// viewerCORS lets embedding pages on other origins drive sessions.
func (s *Server) viewerCORS() func(http.Handler) http.Handler {
	origins := s.corsOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
		MaxAge:         600,
	}).Handler
}

func (s *Server) routes() {
	s.router.Get("/api/health", s.handleHealth)
	s.router.Get("/api/limits", s.handleLimits)

	if s.enableDocs {
		s.router.Get("/api/docs", docs.HandleDocs)
		s.router.Get("/api/docs/openapi.yaml", docs.HandleSpec)
	}

	if s.authHandler != nil {
		authLimiter := s.limiter(0.5, 5)
		s.router.Route("/api/auth", func(r chi.Router) {
			r.Use(authLimiter.Middleware)
			r.Post("/register", s.authHandler.Register)
			r.Post("/login", s.authHandler.Login)
		})

		s.router.Route("/api/keys", func(r chi.Router) {
			r.Use(s.authHandler.Middleware)
			r.Get("/", s.authHandler.ListAPIKeys)
			r.Post("/", s.authHandler.CreateAPIKey)
			r.Delete("/{id}", s.authHandler.DeleteAPIKey)
		})
	}

	if s.videoHandler != nil {
		videoLimiter := s.limiter(2, 10)
		s.router.Route("/api/videos", func(r chi.Router) {
			r.Use(videoLimiter.Middleware)
			r.Use(s.authHandler.Middleware)
			r.Post("/", s.videoHandler.Create)
			r.Get("/", s.videoHandler.List)
			r.Get("/{id}", s.videoHandler.Get)
			r.Patch("/{id}", s.videoHandler.Update)
			r.Delete("/{id}", s.videoHandler.Delete)
			r.Post("/{id}/upload-url", s.videoHandler.UploadURL)
			r.Get("/{id}/interactions", s.videoHandler.GetInteractions)
			r.Put("/{id}/interactions", s.videoHandler.PutInteractions)
			r.Get("/{id}/qr", s.videoHandler.QRCode)
		})

		watchLimiter := s.limiter(5, 20)
		s.router.Route("/api/watch/{shareToken}", func(r chi.Router) {
			r.Use(s.viewerCORS())
			r.Use(watchLimiter.Middleware)
			r.Get("/", s.videoHandler.Watch)
			r.Post("/sessions", s.sessionHandler.Create)
		})

		s.router.Get("/embed/{shareToken}", s.videoHandler.EmbedPage)
	}

	if s.sessionHandler != nil {
		controlLimiter := s.limiter(20, 40, ratelimit.WithKey(ratelimit.ByURLParam("id")))
		s.router.Route("/api/sessions/{id}", func(r chi.Router) {
			r.Use(s.viewerCORS())
			r.Use(controlLimiter.Middleware)
			r.Get("/", s.sessionHandler.Get)
			r.Delete("/", s.sessionHandler.Delete)
			r.Post("/play", s.sessionHandler.Play())
			r.Post("/pause", s.sessionHandler.Pause())
			r.Post("/seek", s.sessionHandler.Seek)
			r.Post("/mute", s.sessionHandler.Mute())
			r.Post("/unmute", s.sessionHandler.Unmute())
			r.Post("/fullscreen", s.sessionHandler.Fullscreen())
			r.Post("/click", s.sessionHandler.Click)
			r.Post("/dialog/close", s.sessionHandler.CloseDialog())
		})
	}

	if s.webFS != nil {
		spa := newSPAFileServer(s.webFS)
		s.router.NotFound(spa.ServeHTTP)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if s.pinger != nil {
		if err := s.pinger.Ping(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unhealthy","error":"database unreachable"}`))
			return
		}
	}
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func (s *Server) handleLimits(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, validate.FieldLimits())
}
