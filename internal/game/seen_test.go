package game

import (
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestSeen() (*SeenStore, *fakeClock) {
	clock := &fakeClock{t: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	s := NewSeenStore()
	s.now = clock.now
	return s, clock
}

func TestSeenJoinLeave(t *testing.T) {
	s, clock := newTestSeen()

	rec := s.Join("u1", "Steve", "10.0.0.1")
	if !rec.Online || rec.LastAddress != "10.0.0.1" || !rec.LastSeen.Equal(clock.t) {
		t.Fatalf("after join: %+v", rec)
	}

	clock.advance(10 * time.Minute)
	rec = s.Leave("u1", "Steve")
	if rec.Online {
		t.Error("should be offline after leave")
	}
	if rec.Playtime != 10*time.Minute {
		t.Errorf("Playtime = %v, want 10m", rec.Playtime)
	}
	if rec.LastAddress != "10.0.0.1" {
		t.Error("leave should keep the last address")
	}

	clock.advance(time.Hour)
	s.Join("u1", "Steve", "10.0.0.2")
	clock.advance(5 * time.Minute)
	rec, _ = s.Get("u1")
	if got := rec.TotalPlaytime(clock.t); got != 15*time.Minute {
		t.Errorf("TotalPlaytime = %v, want 15m", got)
	}
}

func TestSeenMultipleSessions(t *testing.T) {
	s, clock := newTestSeen()

	s.Join("u1", "Steve", "")
	clock.advance(time.Minute)
	s.Join("u1", "Steve", "")
	clock.advance(time.Minute)

	if rec := s.Leave("u1", "Steve"); !rec.Online || rec.Sessions() != 1 {
		t.Errorf("one session left, got %+v", rec)
	}
	clock.advance(time.Minute)
	rec := s.Leave("u1", "Steve")
	if rec.Online {
		t.Error("last session closed, should be offline")
	}
	if rec.Playtime != 3*time.Minute {
		t.Errorf("Playtime = %v, want 3m from first join", rec.Playtime)
	}
}

func TestSeenLeaveWithoutJoin(t *testing.T) {
	s, _ := newTestSeen()
	rec := s.Leave("ghost", "Ghost")
	if rec.Online || rec.Playtime != 0 || rec.Name != "Ghost" {
		t.Errorf("unexpected record %+v", rec)
	}
}

func TestSeenFindByName(t *testing.T) {
	s, _ := newTestSeen()
	s.Join("u1", "Steve", "")
	s.Join("u2", "Alex", "")

	tests := []struct {
		query string
		uuid  string
		found bool
	}{
		{"Steve", "u1", true},
		{"steve", "u1", true},
		{"ALEX", "u2", true},
		{"Notch", "", false},
	}
	for _, tt := range tests {
		rec, ok := s.FindByName(tt.query)
		if ok != tt.found || rec.UUID != tt.uuid {
			t.Errorf("FindByName(%q) = %q,%v want %q,%v", tt.query, rec.UUID, ok, tt.uuid, tt.found)
		}
	}
}

func TestSeenTouchAndOrder(t *testing.T) {
	s, clock := newTestSeen()
	s.Join("u1", "Offline", "")
	s.Leave("u1", "Offline")
	clock.advance(time.Minute)
	s.Join("u2", "Online", "")

	clock.advance(time.Minute)
	s.Touch()

	off, _ := s.Get("u1")
	on, _ := s.Get("u2")
	if !on.LastSeen.Equal(clock.t) {
		t.Error("Touch should refresh online players")
	}
	if off.LastSeen.Equal(clock.t) {
		t.Error("Touch must not refresh offline players")
	}

	all := s.All()
	if len(all) != 2 || all[0].UUID != "u2" {
		t.Errorf("All should list online first, got %+v", all)
	}
}
