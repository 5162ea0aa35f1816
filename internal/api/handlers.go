package api

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"math"
	"net/http"
	"strings"
	"time"

	"jinxcore/internal/config"
	"jinxcore/internal/game"
	"jinxcore/internal/sidebar"

	"github.com/go-chi/chi/v5"
)

const (
	maxConfigBodyBytes   = 16 << 10
	maxTemplateBodyBytes = 64 << 10
	maxTitleLength       = 128
)

// ============================================================================
// Stats
// ============================================================================

func (h *routerHandlers) handleGetStats(w http.ResponseWriter, r *http.Request) {
	st := h.engine.Stats()
	cfg := h.config.Sidebar()

	writeJSON(w, map[string]interface{}{
		"online":        st.Online,
		"tps":           math.Round(st.TPS*100) / 100,
		"mspt":          math.Round(st.MSPT*100) / 100,
		"targetTps":     st.TargetTPS,
		"uptime":        sidebar.FormatUptime(st.Uptime),
		"uptimeSeconds": int64(st.Uptime / time.Second),
		"tickCount":     st.TickCount,
		"sidebar": map[string]interface{}{
			"enabled":        cfg.Enabled,
			"trackedClients": h.sidebar.Tracker().Len(),
		},
	})
}

// ============================================================================
// Sidebar
// ============================================================================

func (h *routerHandlers) handleGetSidebar(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]interface{}{
		"enabled": h.config.Sidebar().Enabled,
		"frame":   h.sidebar.LastFrame(),
	})
}

func (h *routerHandlers) handleSidebarPreview(w http.ResponseWriter, r *http.Request) {
	frame := h.sidebar.LastFrame()
	if frame == nil {
		writeError(w, "No sidebar frame rendered yet", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	if err := h.preview.WritePNG(w, *frame); err != nil {
		log.Printf("⚠️ Sidebar preview encode failed: %v", err)
	}
}

func (h *routerHandlers) handleGetSidebarConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.config.Sidebar())
}

// sidebarConfigUpdate is a partial update; nil fields are left unchanged.
type sidebarConfigUpdate struct {
	Enabled           *bool   `json:"enabled"`
	Title             *string `json:"title"`
	UpdateIntervalSec *int    `json:"updateIntervalSec"`
}

func (h *routerHandlers) handlePutSidebarConfig(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxConfigBodyBytes)

	var req sidebarConfigUpdate
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.UpdateIntervalSec != nil && *req.UpdateIntervalSec < 1 {
		writeError(w, "updateIntervalSec must be at least 1", http.StatusBadRequest)
		return
	}
	if req.Title != nil {
		if strings.TrimSpace(*req.Title) == "" {
			writeError(w, "title must not be empty", http.StatusBadRequest)
			return
		}
		if len(*req.Title) > maxTitleLength {
			writeError(w, "title too long", http.StatusBadRequest)
			return
		}
	}

	updated := h.config.UpdateSidebar(func(c *config.SidebarConfig) {
		if req.Enabled != nil {
			c.Enabled = *req.Enabled
		}
		if req.Title != nil {
			c.Title = *req.Title
		}
		if req.UpdateIntervalSec != nil {
			c.UpdateIntervalSec = *req.UpdateIntervalSec
		}
	})

	log.Printf("⚙️ Sidebar config updated: enabled=%v title=%q interval=%ds",
		updated.Enabled, updated.Title, updated.UpdateIntervalSec)
	writeJSON(w, updated)
}

func (h *routerHandlers) handleGetTemplate(w http.ResponseWriter, r *http.Request) {
	t := h.templates.Load(h.config.Sidebar().Title)
	writeJSON(w, map[string]interface{}{
		"title":    t.Title,
		"lines":    t.Lines,
		"maxLines": sidebar.MaxLines,
	})
}

// handlePutTemplate replaces the template file. It accepts either JSON
// ({"title": ..., "lines": [...]}) or the raw file format as text/plain.
func (h *routerHandlers) handlePutTemplate(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxTemplateBodyBytes)
	fallback := h.config.Sidebar().Title

	var t sidebar.Template
	if strings.HasPrefix(r.Header.Get("Content-Type"), "text/plain") {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			writeError(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		t = sidebar.ParseTemplate(string(body), fallback)
	} else {
		if err := json.NewDecoder(r.Body).Decode(&t); err != nil {
			writeError(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		if err := validateTemplate(&t, fallback); err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	if err := h.templates.Save(t); err != nil {
		log.Printf("❌ Failed to save sidebar template: %v", err)
		writeError(w, "Failed to save template", http.StatusInternalServerError)
		return
	}

	log.Printf("📝 Sidebar template updated (%d lines)", len(t.Lines))
	saved := h.templates.Load(fallback)
	writeJSON(w, map[string]interface{}{
		"title":    saved.Title,
		"lines":    saved.Lines,
		"maxLines": sidebar.MaxLines,
	})
}

// validateTemplate normalizes a JSON template so that it survives a
// round trip through the file format. Lines past MaxLines are kept in the
// file and dropped on load, as with hand edits.
func validateTemplate(t *sidebar.Template, fallback string) error {
	if strings.ContainsAny(t.Title, "\r\n") {
		return errors.New("title must be a single line")
	}
	if strings.TrimSpace(t.Title) == "" {
		t.Title = fallback
	}
	lines := t.Lines[:0]
	for _, l := range t.Lines {
		if strings.ContainsAny(l, "\r\n") {
			return errors.New("lines must not contain line breaks")
		}
		if strings.TrimSpace(l) != "" {
			lines = append(lines, l)
		}
	}
	t.Lines = lines
	return nil
}

// ============================================================================
// Presence
// ============================================================================

// playerView is the public shape of a seen record. The last address is
// only shown to admins.
type playerView struct {
	UUID            string    `json:"uuid"`
	Name            string    `json:"name"`
	Online          bool      `json:"online"`
	LastSeen        time.Time `json:"lastSeen"`
	Sessions        int       `json:"sessions"`
	Playtime        string    `json:"playtime"`
	PlaytimeSeconds int64     `json:"playtimeSeconds"`
	LastAddress     string    `json:"lastAddress,omitempty"`
}

func newPlayerView(rec game.SeenRecord, now time.Time, withAddress bool) playerView {
	played := rec.TotalPlaytime(now)
	v := playerView{
		UUID:            rec.UUID,
		Name:            rec.Name,
		Online:          rec.Online,
		LastSeen:        rec.LastSeen,
		Sessions:        rec.Sessions(),
		Playtime:        sidebar.FormatUptime(played),
		PlaytimeSeconds: int64(played / time.Second),
	}
	if withAddress {
		v.LastAddress = rec.LastAddress
	}
	return v
}

func (h *routerHandlers) handleListPlayers(w http.ResponseWriter, r *http.Request) {
	now := time.Now()
	admin := h.auth.Authorized(r)

	records := h.engine.Seen().All()
	views := make([]playerView, 0, len(records))
	for _, rec := range records {
		views = append(views, newPlayerView(rec, now, admin))
	}

	writeJSON(w, map[string]interface{}{
		"online":  len(h.engine.Players()),
		"known":   len(views),
		"players": views,
	})
}

func (h *routerHandlers) handleGetPlayer(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	rec, ok := h.engine.Seen().FindByName(name)
	if !ok {
		writeError(w, "Player not found", http.StatusNotFound)
		return
	}
	writeJSON(w, newPlayerView(rec, time.Now(), h.auth.Authorized(r)))
}

// ============================================================================
// Helpers
// ============================================================================

func writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
