package sidebar

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"jinxcore/internal/text"
)

// Template placeholders substituted on every tick.
const (
	PlaceholderOnline = "%online%"
	PlaceholderTPS    = "%tps%"
	PlaceholderUptime = "%uptime%"
)

// Metrics is the live server state read once per tick.
type Metrics struct {
	Online int
	TPS    float64
	Uptime time.Duration
}

// MetricsSource supplies live metrics. Implementations must be safe to call
// from the driver goroutine.
type MetricsSource interface {
	Metrics() Metrics
}

// MetricsFunc adapts a function to MetricsSource.
type MetricsFunc func() Metrics

func (f MetricsFunc) Metrics() Metrics { return f() }

// sanitized clamps missing or malformed values to zero.
func (m Metrics) sanitized() Metrics {
	if m.Online < 0 {
		m.Online = 0
	}
	if math.IsNaN(m.TPS) || math.IsInf(m.TPS, 0) || m.TPS < 0 {
		m.TPS = 0
	}
	if m.Uptime < 0 {
		m.Uptime = 0
	}
	return m
}

// Line is one rendered overlay row.
type Line struct {
	Entry string          `json:"entry"`
	Score int32           `json:"score"`
	Text  text.StyledText `json:"text"`
}

// Frame is the rendered overlay for a single tick.
type Frame struct {
	Title      text.StyledText `json:"title"`
	Lines      []Line          `json:"lines"`
	RenderedAt time.Time       `json:"renderedAt"`
}

// EntryName is the synthetic score holder for line i.
func EntryName(i int) string {
	return "line_" + strconv.Itoa(i)
}

// FormatUptime renders d as "Nd Nh Nm", dropping leading zero units.
func FormatUptime(d time.Duration) string {
	total := int64(d / time.Second)
	if total < 0 {
		total = 0
	}
	days := total / 86400
	hours := (total % 86400) / 3600
	minutes := (total % 3600) / 60

	switch {
	case days > 0:
		return fmt.Sprintf("%dd %dh %dm", days, hours, minutes)
	case hours > 0:
		return fmt.Sprintf("%dh %dm", hours, minutes)
	default:
		return fmt.Sprintf("%dm", minutes)
	}
}

// Substitute replaces the placeholders in raw with values from m.
func Substitute(raw string, m Metrics) string {
	m = m.sanitized()
	r := strings.NewReplacer(
		PlaceholderOnline, strconv.Itoa(m.Online),
		PlaceholderTPS, strconv.FormatFloat(m.TPS, 'f', 2, 64),
		PlaceholderUptime, FormatUptime(m.Uptime),
	)
	return r.Replace(raw)
}

// Render substitutes metrics into the template and parses color markup.
// Line i of k gets score k-i so the client sorts them in template order.
func Render(t Template, m Metrics) Frame {
	f := Frame{
		Title: text.Parse(Substitute(t.Title, m)),
		Lines: make([]Line, 0, len(t.Lines)),
	}
	k := len(t.Lines)
	for i, raw := range t.Lines {
		f.Lines = append(f.Lines, Line{
			Entry: EntryName(i),
			Score: int32(k - i),
			Text:  text.Parse(Substitute(raw, m)),
		})
	}
	return f
}
