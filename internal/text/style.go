package text

import (
	"encoding/json"
	"strings"
)

// Marker starts an inline color code ("&a", "&C", ...).
const Marker = '&'

// Segment is a run of text drawn in a single color.
// Colored is false for runs before the first color code; those use the
// client's default color.
type Segment struct {
	Text    string
	Color   NamedColor
	Colored bool
}

// MarshalJSON encodes the segment as {"text": ..., "color": "<name>"},
// omitting color for uncolored runs.
func (s Segment) MarshalJSON() ([]byte, error) {
	out := struct {
		Text  string `json:"text"`
		Color string `json:"color,omitempty"`
	}{Text: s.Text}
	if s.Colored {
		out.Color = s.Color.Name()
	}
	return json.Marshal(out)
}

// StyledText is an ordered list of segments; concatenating their Text
// yields the visible string.
type StyledText []Segment

// Plain returns the visible text without styling.
func (t StyledText) Plain() string {
	var sb strings.Builder
	for _, seg := range t {
		sb.WriteString(seg.Text)
	}
	return sb.String()
}

// Plain builds a single uncolored segment, or nothing for "".
func Plain(s string) StyledText {
	if s == "" {
		return nil
	}
	return StyledText{{Text: s}}
}

// Parse converts "&<hex>" markup into styled segments. A marker not followed
// by a valid digit is kept as literal text. Parse never fails.
func Parse(raw string) StyledText {
	var (
		out     StyledText
		buf     strings.Builder
		current NamedColor
		colored bool
	)

	flush := func() {
		if buf.Len() == 0 {
			return
		}
		out = append(out, Segment{Text: buf.String(), Color: current, Colored: colored})
		buf.Reset()
	}

	runes := []rune(raw)
	for i := 0; i < len(runes); i++ {
		ch := runes[i]
		if ch == Marker && i+1 < len(runes) {
			if c, ok := ColorForCode(runes[i+1]); ok {
				flush()
				current, colored = c, true
				i++
				continue
			}
		}
		buf.WriteRune(ch)
	}
	flush()

	return out
}
