package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"jinxcore/internal/api"
	"jinxcore/internal/config"
	"jinxcore/internal/game"
	"jinxcore/internal/observability"
	"jinxcore/internal/preview"
	"jinxcore/internal/sidebar"

	"github.com/joho/godotenv"
)

func main() {
	// Load .env file from parent directory
	if err := godotenv.Load("../.env"); err != nil {
		// Try current directory as fallback
		if err := godotenv.Load(".env"); err != nil {
			log.Println("💡 No .env file found, using environment variables only")
		}
	} else {
		log.Println("✅ Loaded environment from ../.env")
	}

	log.Println("🎮 ================================")
	log.Println("🎮  JINXCORE - SIDEBAR SERVER")
	log.Println("🎮 ================================")

	// Load centralized configuration (SSOT - Single Source of Truth)
	appConfig := config.Load()
	serverCfg := appConfig.Server
	sidebarCfg := appConfig.Sidebar

	port := strconv.Itoa(serverCfg.Port)
	log.Printf("🎮 Config: %d TPS, %d max players, data in %s", serverCfg.TickRate, serverCfg.MaxPlayers, serverCfg.DataDir)

	engine := game.NewEngine(serverCfg.TickRate, serverCfg.MaxPlayers)

	// Start presence log
	eventLogPath := filepath.Join(serverCfg.DataDir, "presence.jsonl")
	if err := engine.StartEventLog(eventLogPath); err != nil {
		log.Printf("⚠️ Presence log disabled: %v", err)
	} else {
		log.Printf("📝 Presence log: %s", eventLogPath)
	}

	// Start debug server
	debugCfg := observability.DefaultConfig()
	debugCfg.Enabled = appConfig.Debug.Enabled
	debugCfg.ListenAddr = appConfig.Debug.ListenAddr
	debugCfg.BasicAuthUser = os.Getenv("DEBUG_USER")
	debugCfg.BasicAuthPass = os.Getenv("DEBUG_PASS")
	if err := observability.StartDebugServer(debugCfg); err != nil {
		log.Printf("⚠️ Debug server disabled: %v", err)
	}

	live := config.NewLive(sidebarCfg)
	templates := sidebar.NewTemplateStore(serverCfg.DataDir)
	log.Printf("📋 Sidebar template: %s (enabled=%v, every %ds)", templates.Path(), sidebarCfg.Enabled, sidebarCfg.UpdateIntervalSec)

	hub := api.NewHub(engine, api.HubConfig{
		MaxConnections: serverCfg.MaxPlayers,
		MaxPerIP:       api.MaxWSConnectionsPerIP,
		QueueSize:      api.DefaultSendQueueSize,
	})

	driver := sidebar.NewDriver(sidebar.DriverOptions{
		Clients: hub,
		Metrics: sidebar.MetricsFunc(func() sidebar.Metrics {
			st := engine.Stats()
			return sidebar.Metrics{Online: st.Online, TPS: st.TPS, Uptime: st.Uptime}
		}),
		Config:    live,
		Templates: templates,
	})

	server := api.NewServer(api.ServerOptions{
		Engine:    engine,
		Sidebar:   driver,
		Config:    live,
		Templates: templates,
		Preview:   preview.NewRenderer(preview.DefaultOptions()),
		AdminAuth: api.NewAdminAuth(serverCfg.AdminToken),
		Hub:       hub,
	})

	engine.Start()
	driver.Start()

	go func() {
		if err := server.Start(":" + port); err != nil {
			log.Fatalf("❌ Server error: %v", err)
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	log.Printf("🛑 Received %v, shutting down...", sig)

	driver.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("⚠️ HTTP shutdown: %v", err)
	}

	engine.Stop()
	log.Println("👋 Goodbye!")
}
