package api

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"jinxcore/internal/config"
	"jinxcore/internal/preview"
	"jinxcore/internal/sidebar"

	"github.com/go-chi/chi/v5"
)

// Engine is what the server needs from the game engine: the read side
// for the API and the join/leave side for WebSocket sessions.
type Engine interface {
	EngineInterface
	PlayerRegistry
}

// ServerOptions wires the server's collaborators.
type ServerOptions struct {
	Engine    Engine
	Sidebar   SidebarInterface
	Config    *config.Live
	Templates *sidebar.TemplateStore
	Preview   *preview.Renderer
	AdminAuth *AdminAuth

	// Hub is the session hub. Build it first with NewHub so the sidebar
	// driver can use it as its client source. If nil, one is created with
	// DefaultHubConfig.
	Hub *Hub
}

// Server is the HTTP API server with WebSocket support.
// It combines the HTTP router with the session hub that feeds the sidebar.
type Server struct {
	router      *chi.Mux
	hub         *Hub
	rateLimiter *IPRateLimiter
	httpServer  *http.Server
}

// NewServer creates a new API server.
//
// IMPORTANT: No listener is opened until Start() is called.
// For testing HTTP endpoints use Router() with httptest.
func NewServer(opts ServerOptions) *Server {
	hub := opts.Hub
	if hub == nil {
		hub = NewHub(opts.Engine, DefaultHubConfig())
	}
	s := &Server{
		hub:         hub,
		rateLimiter: NewIPRateLimiter(DefaultRateLimitConfig),
	}

	s.router = NewRouter(RouterConfig{
		Engine:      opts.Engine,
		Sidebar:     opts.Sidebar,
		Config:      opts.Config,
		Templates:   opts.Templates,
		Preview:     opts.Preview,
		AdminAuth:   opts.AdminAuth,
		RateLimiter: s.rateLimiter,
	})

	// Add WebSocket routes (these need the hub instance)
	s.router.Get("/ws", s.hub.HandleWebSocket)

	return s
}

// Start listens on addr and blocks until Shutdown.
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Printf("🌐 API server starting on %s", addr)
	log.Printf("🔌 Game clients join at ws://localhost%s/ws?name=<player>", addr)

	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown disconnects every session, then drains HTTP requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.Close()
	defer s.rateLimiter.Stop()

	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// Router returns the HTTP handler for use with httptest.
//
// Example:
//
//	server := api.NewServer(opts)
//	ts := httptest.NewServer(server.Router())
//	defer ts.Close()
//	resp, _ := http.Get(ts.URL + "/api/stats")
func (s *Server) Router() http.Handler {
	return s.router
}

// Hub returns the session hub. It is the sidebar driver's client source.
func (s *Server) Hub() *Hub {
	return s.hub
}
