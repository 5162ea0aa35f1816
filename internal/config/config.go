// Package config provides centralized configuration management.
// This is the SINGLE SOURCE OF TRUTH for server, sidebar and debug settings.
//
// Values come from defaults overridden by environment variables. The
// sidebar section is live: it can change at runtime through Live.
package config

import (
	"os"
	"strconv"
	"sync"
	"time"
)

// =============================================================================
// SERVER CONFIGURATION
// =============================================================================

// ServerConfig holds HTTP/WebSocket server and tick loop settings.
type ServerConfig struct {
	Port       int
	MaxPlayers int    // Hard cap on concurrently connected clients
	TickRate   int    // Target server ticks per second
	DataDir    string // Per-installation data (sidebar template, presence log)
	AdminToken string // Bearer token for admin writes; empty allows loopback only
}

// DefaultServer returns the default server configuration.
func DefaultServer() ServerConfig {
	return ServerConfig{
		Port:       3000,
		MaxPlayers: 100,
		TickRate:   20,
		DataDir:    "data",
	}
}

// ServerFromEnv returns server configuration with environment variable overrides.
func ServerFromEnv() ServerConfig {
	cfg := DefaultServer()

	if p := getEnvInt("PORT", 0); p > 0 {
		cfg.Port = p
	}
	if mp := getEnvInt("MAX_PLAYERS", 0); mp > 0 {
		cfg.MaxPlayers = mp
	}
	if tr := getEnvInt("TICK_RATE", 0); tr > 0 {
		cfg.TickRate = tr
	}
	if dir := os.Getenv("DATA_DIR"); dir != "" {
		cfg.DataDir = dir
	}
	cfg.AdminToken = os.Getenv("ADMIN_TOKEN")

	return cfg
}

// =============================================================================
// SIDEBAR CONFIGURATION
// =============================================================================

// SidebarConfig controls the live sidebar driver.
type SidebarConfig struct {
	Enabled           bool          `json:"enabled"`
	Title             string        `json:"title"`             // Used when the template has no title line
	UpdateIntervalSec int           `json:"updateIntervalSec"` // Seconds between ticks, floored at 1
	SendTimeout       time.Duration `json:"-"`                 // Per-client budget for one tick's packets
}

// DefaultSidebar returns the default sidebar configuration.
func DefaultSidebar() SidebarConfig {
	return SidebarConfig{
		Enabled:           true,
		Title:             "JinxCore",
		UpdateIntervalSec: 5,
		SendTimeout:       2 * time.Second,
	}
}

// SidebarFromEnv returns sidebar configuration with environment variable overrides.
func SidebarFromEnv() SidebarConfig {
	cfg := DefaultSidebar()

	if v := os.Getenv("SIDEBAR_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Enabled = b
		}
	}
	if t := os.Getenv("SIDEBAR_TITLE"); t != "" {
		cfg.Title = t
	}
	if sec := getEnvInt("SIDEBAR_UPDATE_INTERVAL_SEC", 0); sec > 0 {
		cfg.UpdateIntervalSec = sec
	}
	if ms := getEnvInt("SIDEBAR_SEND_TIMEOUT_MS", 0); ms > 0 {
		cfg.SendTimeout = time.Duration(ms) * time.Millisecond
	}

	return cfg
}

// Interval returns the tick interval, never less than one second.
func (c SidebarConfig) Interval() time.Duration {
	sec := c.UpdateIntervalSec
	if sec < 1 {
		sec = 1
	}
	return time.Duration(sec) * time.Second
}

// =============================================================================
// DEBUG SERVER CONFIGURATION
// =============================================================================

// DebugConfig holds the observability server settings.
type DebugConfig struct {
	Enabled    bool
	ListenAddr string
}

// DebugFromEnv returns debug server configuration with environment variable overrides.
func DebugFromEnv() DebugConfig {
	cfg := DebugConfig{Enabled: true, ListenAddr: "127.0.0.1:6060"}

	if os.Getenv("DISABLE_DEBUG_SERVER") == "true" {
		cfg.Enabled = false
	}
	if addr := os.Getenv("DEBUG_ADDR"); addr != "" {
		cfg.ListenAddr = addr
	}

	return cfg
}

// =============================================================================
// COMPLETE APP CONFIGURATION
// =============================================================================

// AppConfig holds the complete application configuration.
type AppConfig struct {
	Server  ServerConfig
	Sidebar SidebarConfig
	Debug   DebugConfig
}

// Load returns the complete configuration with environment overrides.
func Load() AppConfig {
	return AppConfig{
		Server:  ServerFromEnv(),
		Sidebar: SidebarFromEnv(),
		Debug:   DebugFromEnv(),
	}
}

// =============================================================================
// LIVE CONFIGURATION
// =============================================================================

// Live holds the runtime-mutable sidebar settings. Readers get a copy so no
// lock is held while the copy is in use.
type Live struct {
	mu      sync.RWMutex
	sidebar SidebarConfig
}

// NewLive starts from the given sidebar settings.
func NewLive(sidebar SidebarConfig) *Live {
	return &Live{sidebar: sidebar}
}

// Sidebar returns a snapshot of the sidebar settings.
func (l *Live) Sidebar() SidebarConfig {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.sidebar
}

// UpdateSidebar applies fn under the write lock and returns the result.
func (l *Live) UpdateSidebar(fn func(*SidebarConfig)) SidebarConfig {
	l.mu.Lock()
	defer l.mu.Unlock()
	fn(&l.sidebar)
	return l.sidebar
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}
