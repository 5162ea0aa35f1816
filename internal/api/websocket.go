package api

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"jinxcore/internal/game"
	"jinxcore/internal/observability"
	"jinxcore/internal/sidebar"

	"github.com/gorilla/websocket"
)

const (
	// MaxWSConnectionsTotal is the maximum number of WebSocket connections allowed
	MaxWSConnectionsTotal = 500

	// MaxWSConnectionsPerIP is the maximum WebSocket connections per IP
	MaxWSConnectionsPerIP = 10

	// DefaultSendQueueSize is the per-session outbound packet buffer
	DefaultSendQueueSize = 64

	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxMessageSize = 4096
)

var (
	ErrSessionClosed = errors.New("session closed")
	ErrSlowClient    = errors.New("client too slow")
)

// PlayerRegistry admits and releases players for WebSocket sessions.
type PlayerRegistry interface {
	AddPlayer(id, name, address string) (*game.Player, error)
	RemovePlayer(id string)
}

// HubConfig bounds the hub.
type HubConfig struct {
	MaxConnections int
	MaxPerIP       int
	QueueSize      int
}

// DefaultHubConfig returns production defaults.
func DefaultHubConfig() HubConfig {
	return HubConfig{
		MaxConnections: MaxWSConnectionsTotal,
		MaxPerIP:       MaxWSConnectionsPerIP,
		QueueSize:      DefaultSendQueueSize,
	}
}

// Session is one connected client. Packets queued with Send are written as
// binary WebSocket messages by a dedicated writer goroutine.
type Session struct {
	id   string
	name string
	ip   string
	conn *websocket.Conn
	hub  *Hub

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func (s *Session) ID() string   { return s.id }
func (s *Session) Name() string { return s.name }
func (s *Session) IP() string   { return s.ip }

// Send queues packet for delivery. If the queue stays full until ctx is
// done the session is closed as a slow consumer.
func (s *Session) Send(ctx context.Context, packet []byte) error {
	select {
	case <-s.done:
		return ErrSessionClosed
	default:
	}

	select {
	case s.send <- packet:
		return nil
	case <-s.done:
		return ErrSessionClosed
	case <-ctx.Done():
		log.Printf("⚠️ Closing slow client %s (%s)", s.name, s.id)
		s.Close()
		return fmt.Errorf("%w: %v", ErrSlowClient, ctx.Err())
	}
}

// Close disconnects the session and removes it from the hub. Safe to call
// more than once.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		s.conn.Close()
		s.hub.remove(s)
	})
}

// Done is closed when the session ends.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

func (s *Session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.Close()
	}()

	for {
		select {
		case packet := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.BinaryMessage, packet); err != nil {
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-s.done:
			return
		}
	}
}

// readPump discards client messages; it exists to process control frames
// and notice disconnects.
func (s *Session) readPump() {
	defer s.Close()

	s.conn.SetReadLimit(maxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// Hub owns every live session. It is the sidebar's client source.
type Hub struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	closed   bool

	players   PlayerRegistry
	cfg       HubConfig
	wsLimiter *WebSocketRateLimiter
	upgrader  websocket.Upgrader
}

// NewHub creates a hub admitting players through players.
func NewHub(players PlayerRegistry, cfg HubConfig) *Hub {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultSendQueueSize
	}
	if cfg.MaxPerIP <= 0 {
		cfg.MaxPerIP = MaxWSConnectionsPerIP
	}
	h := &Hub{
		sessions:  make(map[string]*Session),
		players:   players,
		cfg:       cfg,
		wsLimiter: NewWebSocketRateLimiter(cfg.MaxPerIP),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if IsAllowedOrigin(origin) {
				return true
			}
			log.Printf("⚠️ WebSocket connection rejected from origin: %s", origin)
			observability.RecordConnectionRejected("origin")
			return false
		},
	}
	return h
}

// Clients returns the currently connected sessions.
func (h *Hub) Clients() []sidebar.Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]sidebar.Client, 0, len(h.sessions))
	for _, s := range h.sessions {
		out = append(out, s)
	}
	return out
}

// Count returns the number of connected sessions.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// Session returns the session with id, or nil.
func (h *Hub) Session(id string) *Session {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.sessions[id]
}

// Close disconnects every session and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	sessions := make([]*Session, 0, len(h.sessions))
	for _, s := range h.sessions {
		sessions = append(sessions, s)
	}
	h.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
}

func (h *Hub) remove(s *Session) {
	h.mu.Lock()
	if h.sessions[s.id] != s {
		h.mu.Unlock()
		return
	}
	delete(h.sessions, s.id)
	count := len(h.sessions)
	h.mu.Unlock()

	h.wsLimiter.Release(s.ip)
	h.players.RemovePlayer(s.id)
	observability.UpdateWSConnections(count)
	log.Printf("📱 Client %s disconnected (%d remaining)", s.name, count)
}

// HandleWebSocket upgrades a join request (GET /ws?name=<player>).
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if !game.ValidName(name) {
		writeError(w, "name must be 1-16 letters, digits or underscores", http.StatusBadRequest)
		return
	}

	ip := GetClientIP(r)

	h.mu.RLock()
	total, closed := len(h.sessions), h.closed
	h.mu.RUnlock()

	if closed {
		writeError(w, "Server shutting down", http.StatusServiceUnavailable)
		return
	}
	if h.cfg.MaxConnections > 0 && total >= h.cfg.MaxConnections {
		log.Printf("⚠️ WebSocket connection rejected: total limit reached (%d)", total)
		observability.RecordConnectionRejected("ws_total_limit")
		writeError(w, "Too many connections", http.StatusServiceUnavailable)
		return
	}
	if !h.wsLimiter.Allow(ip) {
		log.Printf("⚠️ WebSocket connection rejected from %s: per-IP limit reached", ip)
		observability.RecordConnectionRejected("ws_ip_limit")
		writeError(w, "Too many connections from your IP", http.StatusTooManyRequests)
		return
	}

	id := newSessionID()
	if _, err := h.players.AddPlayer(id, name, ip); err != nil {
		h.wsLimiter.Release(ip)
		status := http.StatusBadRequest
		if errors.Is(err, game.ErrServerFull) {
			observability.RecordConnectionRejected("server_full")
			status = http.StatusServiceUnavailable
		}
		writeError(w, err.Error(), status)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		h.wsLimiter.Release(ip)
		h.players.RemovePlayer(id)
		return
	}

	s := &Session{
		id:   id,
		name: name,
		ip:   ip,
		conn: conn,
		hub:  h,
		send: make(chan []byte, h.cfg.QueueSize),
		done: make(chan struct{}),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		h.wsLimiter.Release(ip)
		h.players.RemovePlayer(id)
		return
	}
	h.sessions[id] = s
	count := len(h.sessions)
	h.mu.Unlock()

	observability.UpdateWSConnections(count)
	log.Printf("📱 Client %s connected from %s (%d total)", name, ip, count)

	go s.writePump()
	go s.readPump()
}

func newSessionID() string {
	b := make([]byte, 16)
	rand.Read(b)
	return hex.EncodeToString(b)
}
