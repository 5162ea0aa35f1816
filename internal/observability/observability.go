// Package observability owns the process metrics and the localhost debug
// server (pprof, Prometheus, health).
package observability

import (
	"log"
	"net/http"
	"net/http/pprof"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics with bounded cardinality (no per-player labels)
var (
	// Server tick metrics
	gameTickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "game_tick_duration_seconds",
		Help:    "Time spent in a server tick",
		Buckets: []float64{0.0001, 0.001, 0.005, 0.01, 0.025, 0.05},
	})

	playerCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "game_player_count",
		Help: "Current number of online players",
	})

	// Sidebar driver metrics
	sidebarTicks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sidebar_ticks_total",
		Help: "Sidebar driver iterations by outcome",
	}, []string{"state"}) // Bounded: "enabled", "disabled", "idle"

	sidebarTickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "sidebar_tick_duration_seconds",
		Help:    "Time spent rendering and sending one sidebar tick",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5},
	})

	sidebarPackets = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sidebar_packets_total",
		Help: "Sidebar packets delivered to client queues",
	}, []string{"kind"}) // Bounded: "objective_add", "objective_update", "objective_remove", "display", "score"

	sidebarSendFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sidebar_send_failures_total",
		Help: "Per-client sidebar sends that failed or timed out",
	})

	sidebarTracked = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sidebar_tracked_clients",
		Help: "Clients currently holding the sidebar objective",
	})

	// DoS detection metrics - use ONLY bounded label values
	connectionRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "connection_rejected_total",
		Help: "Connections rejected by rate limiter or origin check",
	}, []string{"reason"})

	// HTTP metrics with bounded labels
	requestTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "endpoint", "status"})

	requestLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "endpoint"})

	// WebSocket metrics
	wsConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "websocket_connections_active",
		Help: "Currently active WebSocket connections",
	})
)

// Config configures the debug server
type Config struct {
	Enabled       bool
	ListenAddr    string // MUST be loopback in production
	BasicAuthUser string // Optional basic auth
	BasicAuthPass string
}

// DefaultConfig returns safe defaults
func DefaultConfig() Config {
	return Config{
		Enabled:    true,
		ListenAddr: "127.0.0.1:6060",
	}
}

// NewDebugMux builds the debug handler. Exposed separately so tests can
// exercise it without opening a listener.
func NewDebugMux(cfg Config) http.Handler {
	mux := http.NewServeMux()

	// pprof endpoints for profiling
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	// Prometheus metrics endpoint
	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	if cfg.BasicAuthUser != "" {
		return basicAuthMiddleware(cfg.BasicAuthUser, cfg.BasicAuthPass, mux)
	}
	return mux
}

// StartDebugServer starts the internal observability server.
// It binds to loopback unless ALLOW_DEBUG_EXTERNAL=true.
func StartDebugServer(cfg Config) error {
	if !cfg.Enabled {
		log.Println("📊 Debug server disabled")
		return nil
	}

	if cfg.ListenAddr != "127.0.0.1:6060" && cfg.ListenAddr != "localhost:6060" {
		if os.Getenv("ALLOW_DEBUG_EXTERNAL") != "true" {
			log.Println("⚠️ Debug server forced to localhost for security")
			cfg.ListenAddr = "127.0.0.1:6060"
		}
	}

	handler := NewDebugMux(cfg)

	go func() {
		log.Printf("📊 Debug server starting on %s", cfg.ListenAddr)
		log.Printf("   - pprof:   http://%s/debug/pprof/", cfg.ListenAddr)
		log.Printf("   - metrics: http://%s/metrics", cfg.ListenAddr)

		if err := http.ListenAndServe(cfg.ListenAddr, handler); err != nil {
			log.Printf("⚠️ Debug server error: %v", err)
		}
	}()

	return nil
}

func basicAuthMiddleware(user, pass string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || u != user || p != pass {
			w.Header().Set("WWW-Authenticate", `Basic realm="debug"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RecordGameTick records server tick timing
func RecordGameTick(duration time.Duration) {
	gameTickDuration.Observe(duration.Seconds())
}

// UpdatePlayerCount updates the player gauge
func UpdatePlayerCount(count int) {
	playerCount.Set(float64(count))
}

// RecordSidebarTick records one driver iteration.
// state must be one of: "enabled", "disabled", "idle"
func RecordSidebarTick(state string, duration time.Duration) {
	sidebarTicks.WithLabelValues(state).Inc()
	sidebarTickDuration.Observe(duration.Seconds())
}

// RecordSidebarPacket counts a packet handed to a client queue.
func RecordSidebarPacket(kind string) {
	sidebarPackets.WithLabelValues(kind).Inc()
}

func RecordSidebarSendFailure() {
	sidebarSendFailures.Inc()
}

func UpdateSidebarTracked(count int) {
	sidebarTracked.Set(float64(count))
}

// RecordConnectionRejected increments the rejection counter
// reason must be one of: "rate_limit", "origin", "ws_total_limit", "ws_ip_limit"
func RecordConnectionRejected(reason string) {
	connectionRejected.WithLabelValues(reason).Inc()
}

// RecordRequest records HTTP request metrics
func RecordRequest(method, endpoint string, status int, duration time.Duration) {
	requestLatency.WithLabelValues(method, endpoint).Observe(duration.Seconds())
	requestTotal.WithLabelValues(method, endpoint, http.StatusText(status)).Inc()
}

// UpdateWSConnections updates WebSocket connection count
func UpdateWSConnections(count int) {
	wsConnectionsActive.Set(float64(count))
}
