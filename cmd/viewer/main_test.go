package main

import (
	"testing"

	"jinxcore/internal/text"
)

func TestJoinURL(t *testing.T) {
	tests := []struct {
		server string
		want   string
	}{
		{"ws://localhost:8080", "ws://localhost:8080/ws?name=Steve"},
		{"http://localhost:8080/", "ws://localhost:8080/ws?name=Steve"},
		{"https://mc.example/jinx", "wss://mc.example/jinx/ws?name=Steve"},
	}
	for _, tt := range tests {
		got, err := joinURL(tt.server, "Steve")
		if err != nil {
			t.Fatalf("joinURL(%q): %v", tt.server, err)
		}
		if got != tt.want {
			t.Errorf("joinURL(%q) = %q, want %q", tt.server, got, tt.want)
		}
	}
}

func TestStyleForUsesSegmentColor(t *testing.T) {
	fg, _, _ := styleFor(text.Segment{Text: "x", Color: text.Gold, Colored: true}).Decompose()
	r, g, b := fg.RGB()
	want := text.Gold.RGBA()
	if r != int32(want.R) || g != int32(want.G) || b != int32(want.B) {
		t.Errorf("color = %d,%d,%d, want %v", r, g, b, want)
	}

	fg, _, _ = styleFor(text.Segment{Text: "x"}).Decompose()
	if r, g, b := fg.RGB(); r != 0xff || g != 0xff || b != 0xff {
		t.Errorf("uncolored segment = %d,%d,%d, want white", r, g, b)
	}
}
