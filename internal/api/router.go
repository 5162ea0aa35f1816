package api

import (
	"net/http"
	"time"

	"jinxcore/internal/config"
	"jinxcore/internal/game"
	"jinxcore/internal/observability"
	"jinxcore/internal/preview"
	"jinxcore/internal/sidebar"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// EngineInterface defines the engine methods used by the API.
// Keep this minimal - only include methods the API layer actually calls.
type EngineInterface interface {
	// Stats returns online count, TPS, MSPT and uptime
	Stats() game.Stats
	// Players returns the connected players
	Players() []game.Player
	// Seen returns the presence history
	Seen() *game.SeenStore
}

// SidebarInterface defines the sidebar driver methods used by the API.
type SidebarInterface interface {
	LastFrame() *sidebar.Frame
	Tracker() *sidebar.Tracker
}

// RouterConfig contains all dependencies needed to construct the HTTP router.
//
// Example usage in tests:
//
//	cfg := api.RouterConfig{
//	    Engine:    game.NewEngine(20, 0),
//	    Sidebar:   driver,
//	    Config:    config.NewLive(config.DefaultSidebar()),
//	    Templates: sidebar.NewTemplateStore(t.TempDir()),
//	    RateLimitConfig: &api.RateLimitConfig{
//	        RequestsPerSecond: 1000, // High limit for tests
//	        Burst:             1000,
//	    },
//	}
//	router := api.NewRouter(cfg)
//	ts := httptest.NewServer(router)
type RouterConfig struct {
	// Engine is the tick engine (required)
	Engine EngineInterface

	// Sidebar is the sidebar driver (required)
	Sidebar SidebarInterface

	// Config is the live sidebar configuration (required)
	Config *config.Live

	// Templates is the sidebar template store (required)
	Templates *sidebar.TemplateStore

	// Preview renders frames for /api/sidebar/preview.png.
	// If nil, one is created with default options.
	Preview *preview.Renderer

	// AdminAuth guards the write routes. If nil, writes are loopback-only.
	AdminAuth *AdminAuth

	// RateLimiter is an optional pre-configured rate limiter.
	// If nil, a new one will be created using RateLimitConfig.
	RateLimiter *IPRateLimiter

	// RateLimitConfig is optional configuration for the rate limiter.
	// Only used if RateLimiter is nil. If both are nil, uses DefaultRateLimitConfig.
	RateLimitConfig *RateLimitConfig

	// CORSOrigins is an optional list of allowed CORS origins.
	// If nil, only localhost origins are allowed.
	CORSOrigins []string

	// DisableLogging disables the request logger middleware (useful for benchmarks).
	DisableLogging bool
}

// routerHandlers holds the dependencies shared by the route handlers.
type routerHandlers struct {
	engine    EngineInterface
	sidebar   SidebarInterface
	config    *config.Live
	templates *sidebar.TemplateStore
	preview   *preview.Renderer
	auth      *AdminAuth
}

// NewRouter constructs the HTTP router with all middleware and routes.
//
// The only goroutine it may start is the rate limiter's sweeper, and only
// when cfg.RateLimiter is nil. No listeners are opened, so it is safe
// to use with httptest.NewServer.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Middleware - Order matters!
	if !cfg.DisableLogging {
		r.Use(middleware.Logger)
	}
	r.Use(middleware.Recoverer)
	r.Use(metricsMiddleware)

	// Rate limiting (BEFORE CORS to reject early and save CPU)
	rateLimiter := cfg.RateLimiter
	if rateLimiter == nil {
		rateLimitCfg := DefaultRateLimitConfig
		if cfg.RateLimitConfig != nil {
			rateLimitCfg = *cfg.RateLimitConfig
		}
		rateLimiter = NewIPRateLimiter(rateLimitCfg)
	}
	r.Use(rateLimiter.Middleware)

	corsOrigins := cfg.CORSOrigins
	if corsOrigins == nil {
		corsOrigins = []string{
			"http://localhost:*",
			"http://127.0.0.1:*",
		}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{"GET", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: false,
	}))

	auth := cfg.AdminAuth
	if auth == nil {
		auth = NewAdminAuth("")
	}
	renderer := cfg.Preview
	if renderer == nil {
		renderer = preview.NewRenderer(preview.DefaultOptions())
	}

	h := &routerHandlers{
		engine:    cfg.Engine,
		sidebar:   cfg.Sidebar,
		config:    cfg.Config,
		templates: cfg.Templates,
		preview:   renderer,
		auth:      auth,
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/stats", h.handleGetStats)

		// Sidebar
		r.Get("/sidebar", h.handleGetSidebar)
		r.Get("/sidebar/preview.png", h.handleSidebarPreview)
		r.Get("/sidebar/config", h.handleGetSidebarConfig)
		r.Get("/sidebar/template", h.handleGetTemplate)

		// Admin writes
		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware)
			r.Put("/sidebar/config", h.handlePutSidebarConfig)
			r.Put("/sidebar/template", h.handlePutTemplate)
		})

		// Presence
		r.Get("/players", h.handleListPlayers)
		r.Get("/players/{name}", h.handleGetPlayer)
	})

	return r
}

// metricsMiddleware records request counts and latency by route pattern so
// label cardinality stays bounded.
func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		endpoint := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				endpoint = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		observability.RecordRequest(r.Method, endpoint, status, time.Since(start))
	})
}
