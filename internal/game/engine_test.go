package game

import (
	"errors"
	"sync"
	"testing"
	"time"
)

// TestNewEngine verifies engine creation with correct defaults
func TestNewEngine(t *testing.T) {
	tests := []struct {
		name     string
		tickRate int
		want     int
	}{
		{"standard 20 TPS", 20, 20},
		{"high 60 TPS", 60, 60},
		{"zero falls back to 20", 0, 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := NewEngine(tt.tickRate, 0)
			if engine.TickRate() != tt.want {
				t.Errorf("TickRate = %d, want %d", engine.TickRate(), tt.want)
			}
			if engine.TPS() != 0 {
				t.Errorf("TPS before any tick = %v, want 0", engine.TPS())
			}
		})
	}
}

// TestEngineStartStop verifies the loop ticks and stops cleanly
func TestEngineStartStop(t *testing.T) {
	engine := NewEngine(100, 0)
	engine.Start()
	time.Sleep(100 * time.Millisecond)
	engine.Stop()

	stats := engine.Stats()
	if stats.TickCount == 0 {
		t.Fatal("engine never ticked")
	}
	if stats.TPS <= 0 || stats.TPS > 100 {
		t.Errorf("TPS = %v, want within (0, 100]", stats.TPS)
	}

	// Should not panic on double stop
	engine.Stop()
}

func TestEngineRestart(t *testing.T) {
	engine := NewEngine(100, 0)
	engine.Start()
	engine.Stop()

	before := engine.Stats().TickCount
	engine.Start()
	time.Sleep(100 * time.Millisecond)
	engine.Stop()

	if after := engine.Stats().TickCount; after <= before {
		t.Errorf("tick count after restart = %d, want > %d", after, before)
	}
}

func TestAddPlayer(t *testing.T) {
	engine := NewEngine(20, 0)

	p, err := engine.AddPlayer("s1", "Steve", "127.0.0.1")
	if err != nil {
		t.Fatal(err)
	}
	if p.Name != "Steve" || p.UUID != OfflineUUID("Steve") {
		t.Errorf("unexpected player %+v", p)
	}

	again, err := engine.AddPlayer("s1", "Steve", "127.0.0.1")
	if err != nil || again != p {
		t.Error("re-adding a session should return the existing player")
	}
	if engine.OnlineCount() != 1 {
		t.Errorf("OnlineCount = %d, want 1", engine.OnlineCount())
	}

	if _, err := engine.AddPlayer("s2", "bad name!", ""); !errors.Is(err, ErrInvalidName) {
		t.Errorf("invalid name err = %v", err)
	}
}

func TestAddPlayerCapacity(t *testing.T) {
	engine := NewEngine(20, 2)
	engine.AddPlayer("a", "Alex", "")
	engine.AddPlayer("b", "Steve", "")

	if _, err := engine.AddPlayer("c", "Notch", ""); !errors.Is(err, ErrServerFull) {
		t.Fatalf("err = %v, want ErrServerFull", err)
	}

	engine.RemovePlayer("a")
	if _, err := engine.AddPlayer("c", "Notch", ""); err != nil {
		t.Errorf("slot freed but AddPlayer failed: %v", err)
	}
}

func TestRemovePlayerUpdatesSeen(t *testing.T) {
	engine := NewEngine(20, 0)
	engine.AddPlayer("a", "Alex", "10.0.0.1")
	engine.RemovePlayer("a")
	engine.RemovePlayer("a") // unknown ids are ignored

	if engine.OnlineCount() != 0 {
		t.Errorf("OnlineCount = %d, want 0", engine.OnlineCount())
	}
	rec, ok := engine.Seen().FindByName("alex")
	if !ok {
		t.Fatal("seen record missing")
	}
	if rec.Online || rec.LastAddress != "10.0.0.1" {
		t.Errorf("unexpected record %+v", rec)
	}
}

func TestCallbacks(t *testing.T) {
	engine := NewEngine(20, 0)

	var mu sync.Mutex
	var joined, left []string
	engine.SetCallbacks(
		func(p Player) { mu.Lock(); joined = append(joined, p.Name); mu.Unlock() },
		func(p Player) { mu.Lock(); left = append(left, p.Name); mu.Unlock() },
	)

	engine.AddPlayer("a", "Alex", "")
	engine.AddPlayer("b", "Steve", "")
	engine.RemovePlayer("a")

	if len(joined) != 2 || len(left) != 1 || left[0] != "Alex" {
		t.Errorf("joined=%v left=%v", joined, left)
	}
}

func TestPlayersOrdered(t *testing.T) {
	engine := NewEngine(20, 0)
	engine.AddPlayer("a", "First", "")
	time.Sleep(time.Millisecond)
	engine.AddPlayer("b", "Second", "")

	players := engine.Players()
	if len(players) != 2 || players[0].Name != "First" || players[1].Name != "Second" {
		t.Errorf("Players = %+v", players)
	}
}

func TestConcurrentJoinLeave(t *testing.T) {
	engine := NewEngine(100, 0)
	engine.Start()
	defer engine.Stop()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := string(rune('a'+i%26)) + string(rune('a'+i/26))
			engine.AddPlayer(id, "P_"+id, "")
			_ = engine.Stats()
			engine.RemovePlayer(id)
		}(i)
	}
	wg.Wait()

	if engine.OnlineCount() != 0 {
		t.Errorf("OnlineCount = %d after all left", engine.OnlineCount())
	}
}

func TestOfflineUUID(t *testing.T) {
	// Reference value from the vanilla offline-mode derivation.
	if got := OfflineUUID("Notch"); got != "b50ad385-829d-3141-a216-7e7d7539ba7f" {
		t.Errorf("OfflineUUID(Notch) = %s", got)
	}
	if OfflineUUID("a") == OfflineUUID("A") {
		t.Error("uuid should be case-sensitive")
	}
}

func TestValidName(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"Steve", true},
		{"a_b_9", true},
		{"", false},
		{"this_name_is_too_long", false},
		{"space here", false},
		{"émile", false},
	}
	for _, tt := range tests {
		if got := ValidName(tt.name); got != tt.want {
			t.Errorf("ValidName(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}
