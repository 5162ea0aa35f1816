package game

import (
	"sort"
	"strings"
	"sync"
	"time"
)

// SeenRecord is the presence history of one player identity.
type SeenRecord struct {
	UUID        string        `json:"uuid"`
	Name        string        `json:"name"`
	LastSeen    time.Time     `json:"lastSeen"`
	Online      bool          `json:"online"`
	LastAddress string        `json:"lastAddress,omitempty"`
	Playtime    time.Duration `json:"playtime"` // completed sessions only

	sessions    int
	sessionFrom time.Time
}

// Sessions returns how many connections the identity currently holds.
func (r SeenRecord) Sessions() int {
	return r.sessions
}

// TotalPlaytime includes the running session when the player is online.
func (r SeenRecord) TotalPlaytime(now time.Time) time.Duration {
	total := r.Playtime
	if r.Online && now.After(r.sessionFrom) {
		total += now.Sub(r.sessionFrom)
	}
	return total
}

// SeenStore tracks join/leave history keyed by UUID.
type SeenStore struct {
	mu      sync.RWMutex
	records map[string]*SeenRecord
	now     func() time.Time
}

func NewSeenStore() *SeenStore {
	return &SeenStore{
		records: make(map[string]*SeenRecord),
		now:     time.Now,
	}
}

// Join marks the identity online. A player may hold several sessions;
// playtime accrues from the first one.
func (s *SeenStore) Join(uuid, name, address string) SeenRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	r, ok := s.records[uuid]
	if !ok {
		r = &SeenRecord{UUID: uuid}
		s.records[uuid] = r
	}
	r.Name = name
	r.LastSeen = now
	r.LastAddress = address
	if r.sessions == 0 {
		r.sessionFrom = now
	}
	r.sessions++
	r.Online = true
	return *r
}

// Leave releases one session. The record goes offline when the last
// session ends.
func (s *SeenStore) Leave(uuid, name string) SeenRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	r, ok := s.records[uuid]
	if !ok {
		r = &SeenRecord{UUID: uuid}
		s.records[uuid] = r
	}
	r.Name = name
	r.LastSeen = now
	if r.sessions > 0 {
		r.sessions--
		if r.sessions == 0 && now.After(r.sessionFrom) {
			r.Playtime += now.Sub(r.sessionFrom)
		}
	}
	r.Online = r.sessions > 0
	return *r
}

// Touch refreshes LastSeen for every online identity.
func (s *SeenStore) Touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for _, r := range s.records {
		if r.Online {
			r.LastSeen = now
		}
	}
}

// Get returns the record for uuid.
func (s *SeenStore) Get(uuid string) (SeenRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[uuid]
	if !ok {
		return SeenRecord{}, false
	}
	return *r, true
}

// FindByName looks a record up by case-insensitive name.
func (s *SeenStore) FindByName(name string) (SeenRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.records {
		if strings.EqualFold(r.Name, name) {
			return *r, true
		}
	}
	return SeenRecord{}, false
}

// All returns every record, online players first, then most recently seen.
func (s *SeenStore) All() []SeenRecord {
	s.mu.RLock()
	out := make([]SeenRecord, 0, len(s.records))
	for _, r := range s.records {
		out = append(out, *r)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Online != out[j].Online {
			return out[i].Online
		}
		if !out[i].LastSeen.Equal(out[j].LastSeen) {
			return out[i].LastSeen.After(out[j].LastSeen)
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Len returns the number of known identities.
func (s *SeenStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
