package config

import (
	"sync"
	"testing"
	"time"
)

func TestSidebarFromEnv(t *testing.T) {
	t.Setenv("SIDEBAR_ENABLED", "false")
	t.Setenv("SIDEBAR_TITLE", "Status")
	t.Setenv("SIDEBAR_UPDATE_INTERVAL_SEC", "3")
	t.Setenv("SIDEBAR_SEND_TIMEOUT_MS", "250")

	cfg := SidebarFromEnv()
	if cfg.Enabled {
		t.Error("expected sidebar disabled")
	}
	if cfg.Title != "Status" {
		t.Errorf("Title = %q, want Status", cfg.Title)
	}
	if cfg.Interval() != 3*time.Second {
		t.Errorf("Interval = %v, want 3s", cfg.Interval())
	}
	if cfg.SendTimeout != 250*time.Millisecond {
		t.Errorf("SendTimeout = %v, want 250ms", cfg.SendTimeout)
	}
}

func TestSidebarFromEnvIgnoresGarbage(t *testing.T) {
	t.Setenv("SIDEBAR_ENABLED", "maybe")
	t.Setenv("SIDEBAR_UPDATE_INTERVAL_SEC", "soon")

	cfg := SidebarFromEnv()
	def := DefaultSidebar()
	if cfg.Enabled != def.Enabled || cfg.UpdateIntervalSec != def.UpdateIntervalSec {
		t.Errorf("invalid env values should keep defaults, got %+v", cfg)
	}
}

func TestIntervalFloor(t *testing.T) {
	tests := []struct {
		sec  int
		want time.Duration
	}{
		{-5, time.Second},
		{0, time.Second},
		{1, time.Second},
		{10, 10 * time.Second},
	}
	for _, tt := range tests {
		cfg := SidebarConfig{UpdateIntervalSec: tt.sec}
		if got := cfg.Interval(); got != tt.want {
			t.Errorf("Interval(%d) = %v, want %v", tt.sec, got, tt.want)
		}
	}
}

func TestServerFromEnv(t *testing.T) {
	t.Setenv("PORT", "4000")
	t.Setenv("TICK_RATE", "10")
	t.Setenv("DATA_DIR", "/tmp/jinx")

	cfg := ServerFromEnv()
	if cfg.Port != 4000 || cfg.TickRate != 10 || cfg.DataDir != "/tmp/jinx" {
		t.Errorf("unexpected server config %+v", cfg)
	}
	if cfg.MaxPlayers != DefaultServer().MaxPlayers {
		t.Errorf("MaxPlayers = %d, want default", cfg.MaxPlayers)
	}
}

// TestLiveSnapshotIsCopy verifies readers never observe later writes through
// a snapshot they already hold.
func TestLiveSnapshotIsCopy(t *testing.T) {
	live := NewLive(DefaultSidebar())
	snap := live.Sidebar()

	live.UpdateSidebar(func(c *SidebarConfig) { c.Title = "Changed" })

	if snap.Title != "JinxCore" {
		t.Errorf("snapshot mutated: %q", snap.Title)
	}
	if live.Sidebar().Title != "Changed" {
		t.Errorf("update not applied")
	}
}

func TestLiveConcurrentAccess(t *testing.T) {
	live := NewLive(DefaultSidebar())
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			live.UpdateSidebar(func(c *SidebarConfig) { c.UpdateIntervalSec = i + 1 })
		}(i)
		go func() {
			defer wg.Done()
			_ = live.Sidebar().Interval()
		}()
	}
	wg.Wait()
}
