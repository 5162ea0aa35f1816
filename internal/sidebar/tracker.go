package sidebar

import "sync"

// Mode tells the driver whether a client needs the full objective creation
// sequence or only an update.
type Mode int

const (
	ModeAdd Mode = iota
	ModeUpdate
)

func (m Mode) String() string {
	if m == ModeAdd {
		return "add"
	}
	return "update"
}

// Tracker records which clients already hold the sidebar objective.
// All methods are short critical sections and safe for concurrent use.
type Tracker struct {
	mu  sync.Mutex
	ids map[string]struct{}
}

func NewTracker() *Tracker {
	return &Tracker{ids: make(map[string]struct{})}
}

// Sync forgets every tracked client that is not in current.
func (t *Tracker) Sync(current map[string]struct{}) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for id := range t.ids {
		if _, ok := current[id]; !ok {
			delete(t.ids, id)
		}
	}
}

// ModeFor returns ModeAdd and starts tracking id the first time it is seen,
// ModeUpdate afterwards. The id is tracked as soon as it is asked about,
// before the caller's send succeeds.
func (t *Tracker) ModeFor(id string) Mode {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.ids[id]; ok {
		return ModeUpdate
	}
	t.ids[id] = struct{}{}
	return ModeAdd
}

// Clear forgets all clients.
func (t *Tracker) Clear() {
	t.mu.Lock()
	clear(t.ids)
	t.mu.Unlock()
}

// Len returns the number of tracked clients.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.ids)
}

// Tracked reports whether id currently holds the objective.
func (t *Tracker) Tracked(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.ids[id]
	return ok
}
