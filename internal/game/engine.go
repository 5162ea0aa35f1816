// Package game runs the server tick loop and owns the connected player
// registry, tick timing and presence history.
package game

import (
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"jinxcore/internal/observability"
)

var (
	ErrServerFull  = errors.New("server is full")
	ErrInvalidName = errors.New("invalid player name")
)

// Engine is the server tick engine.
type Engine struct {
	mu      sync.RWMutex
	players map[string]*Player // keyed by session id

	seen     *SeenStore
	stats    TickStats
	eventLog *EventLog

	tickRate   int
	maxPlayers int
	running    bool
	ticker     *time.Ticker
	stopChan   chan struct{}
	done       chan struct{}
	startedAt  time.Time
	tickCount  uint64

	onJoin  func(Player)
	onLeave func(Player)
}

// Stats is a point-in-time view of server health.
type Stats struct {
	Online    int           `json:"online"`
	TPS       float64       `json:"tps"`
	MSPT      float64       `json:"mspt"`
	TargetTPS int           `json:"targetTps"`
	Uptime    time.Duration `json:"uptimeNanos"`
	TickCount uint64        `json:"tickCount"`
}

// NewEngine creates an engine ticking tickRate times per second.
// maxPlayers <= 0 means unlimited.
func NewEngine(tickRate, maxPlayers int) *Engine {
	if tickRate <= 0 {
		tickRate = 20
	}
	return &Engine{
		players:    make(map[string]*Player),
		seen:       NewSeenStore(),
		eventLog:   NewEventLog(),
		tickRate:   tickRate,
		maxPlayers: maxPlayers,
		startedAt:  time.Now(),
	}
}

// Start begins the tick loop. An engine may be started again after Stop;
// uptime counts from the latest Start.
func (e *Engine) Start() {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return
	}
	e.running = true
	e.startedAt = time.Now()
	e.ticker = time.NewTicker(time.Second / time.Duration(e.tickRate))
	e.stopChan = make(chan struct{})
	e.done = make(chan struct{})
	ticker, stop, done := e.ticker, e.stopChan, e.done
	e.mu.Unlock()

	go func() {
		defer close(done)
		for {
			select {
			case <-ticker.C:
				e.tick()
			case <-stop:
				return
			}
		}
	}()

	log.Printf("🎮 Game engine started at %d TPS", e.tickRate)
}

// Stop stops the tick loop and waits for the current tick to finish.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	e.ticker.Stop()
	close(e.stopChan)
	done := e.done
	e.mu.Unlock()

	<-done
	e.eventLog.Stop()
	log.Println("🛑 Game engine stopped")
}

func (e *Engine) tick() {
	start := time.Now()

	e.mu.Lock()
	e.tickCount++
	n := e.tickCount
	online := len(e.players)
	e.mu.Unlock()

	// Refresh last-seen once per second rather than every tick.
	if n%uint64(e.tickRate) == 0 {
		e.seen.Touch()
		observability.UpdatePlayerCount(online)
	}

	elapsed := time.Since(start)
	e.stats.Record(elapsed)
	observability.RecordGameTick(elapsed)
}

// AddPlayer registers a new session. Re-adding an existing session id
// returns the existing player.
func (e *Engine) AddPlayer(id, name, address string) (*Player, error) {
	if !ValidName(name) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}

	e.mu.Lock()
	if p, ok := e.players[id]; ok {
		e.mu.Unlock()
		return p, nil
	}
	if e.maxPlayers > 0 && len(e.players) >= e.maxPlayers {
		e.mu.Unlock()
		return nil, ErrServerFull
	}
	p := &Player{
		ID:       id,
		UUID:     OfflineUUID(name),
		Name:     name,
		Address:  address,
		JoinedAt: time.Now(),
	}
	e.players[id] = p
	online := len(e.players)
	tickNum := e.tickCount
	onJoin := e.onJoin
	e.mu.Unlock()

	e.seen.Join(p.UUID, p.Name, p.Address)
	e.eventLog.Emit(NewEvent(EventTypePlayerJoin, tickNum, p))
	observability.UpdatePlayerCount(online)
	log.Printf("👋 %s joined (%d online)", p.Name, online)

	if onJoin != nil {
		onJoin(*p)
	}
	return p, nil
}

// RemovePlayer unregisters a session. Unknown ids are ignored.
func (e *Engine) RemovePlayer(id string) {
	e.mu.Lock()
	p, ok := e.players[id]
	if !ok {
		e.mu.Unlock()
		return
	}
	delete(e.players, id)
	online := len(e.players)
	tickNum := e.tickCount
	onLeave := e.onLeave
	e.mu.Unlock()

	e.seen.Leave(p.UUID, p.Name)
	e.eventLog.Emit(NewEvent(EventTypePlayerLeave, tickNum, p))
	observability.UpdatePlayerCount(online)
	log.Printf("🚪 %s left (%d online)", p.Name, online)

	if onLeave != nil {
		onLeave(*p)
	}
}

// GetPlayer returns the session with the given id, or nil.
func (e *Engine) GetPlayer(id string) *Player {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.players[id]
}

// Players returns a copy of the connected players, oldest session first.
func (e *Engine) Players() []Player {
	e.mu.RLock()
	out := make([]Player, 0, len(e.players))
	for _, p := range e.players {
		out = append(out, *p)
	}
	e.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].JoinedAt.Equal(out[j].JoinedAt) {
			return out[i].JoinedAt.Before(out[j].JoinedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// OnlineCount returns the number of connected sessions.
func (e *Engine) OnlineCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.players)
}

// TickRate returns the target ticks per second.
func (e *Engine) TickRate() int {
	return e.tickRate
}

// TPS returns the measured ticks per second over the last TickSampleSize
// ticks, capped at the target rate.
func (e *Engine) TPS() float64 {
	return e.stats.TPS(e.tickRate)
}

// Uptime returns the time since the engine started.
func (e *Engine) Uptime() time.Duration {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return time.Since(e.startedAt)
}

// Stats returns a snapshot of server health.
func (e *Engine) Stats() Stats {
	e.mu.RLock()
	online := len(e.players)
	ticks := e.tickCount
	uptime := time.Since(e.startedAt)
	e.mu.RUnlock()

	return Stats{
		Online:    online,
		TPS:       e.stats.TPS(e.tickRate),
		MSPT:      e.stats.MSPT(),
		TargetTPS: e.tickRate,
		Uptime:    uptime,
		TickCount: ticks,
	}
}

// Seen exposes the presence history.
func (e *Engine) Seen() *SeenStore {
	return e.seen
}

// SetCallbacks registers join/leave hooks. They run outside the engine lock.
func (e *Engine) SetCallbacks(onJoin, onLeave func(Player)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onJoin = onJoin
	e.onLeave = onLeave
}

// StartEventLog begins appending presence events to filePath.
func (e *Engine) StartEventLog(filePath string) error {
	return e.eventLog.Start(filePath)
}

// StopEventLog flushes and closes the presence log.
func (e *Engine) StopEventLog() {
	e.eventLog.Stop()
}

// EventLogStats reports presence log counters.
func (e *Engine) EventLogStats() map[string]any {
	return e.eventLog.Stats()
}
