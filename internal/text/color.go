// Package text holds the styled-text model shared by the sidebar renderer,
// the wire encoder and the preview/viewer front ends.
package text

import (
	"image/color"
	"strings"
)

// NamedColor is one of the 16 fixed chat colors selected by "&0".."&f".
type NamedColor uint8

const (
	Black NamedColor = iota
	DarkBlue
	DarkGreen
	DarkAqua
	DarkRed
	DarkPurple
	Gold
	Gray
	DarkGray
	Blue
	Green
	Aqua
	Red
	LightPurple
	Yellow
	White
)

// namedColors is indexed by the hex digit of the markup code.
var namedColors = [16]struct {
	name string
	rgb  color.RGBA
}{
	{"black", color.RGBA{0x00, 0x00, 0x00, 0xff}},
	{"dark_blue", color.RGBA{0x00, 0x00, 0xaa, 0xff}},
	{"dark_green", color.RGBA{0x00, 0xaa, 0x00, 0xff}},
	{"dark_aqua", color.RGBA{0x00, 0xaa, 0xaa, 0xff}},
	{"dark_red", color.RGBA{0xaa, 0x00, 0x00, 0xff}},
	{"dark_purple", color.RGBA{0xaa, 0x00, 0xaa, 0xff}},
	{"gold", color.RGBA{0xff, 0xaa, 0x00, 0xff}},
	{"gray", color.RGBA{0xaa, 0xaa, 0xaa, 0xff}},
	{"dark_gray", color.RGBA{0x55, 0x55, 0x55, 0xff}},
	{"blue", color.RGBA{0x55, 0x55, 0xff, 0xff}},
	{"green", color.RGBA{0x55, 0xff, 0x55, 0xff}},
	{"aqua", color.RGBA{0x55, 0xff, 0xff, 0xff}},
	{"red", color.RGBA{0xff, 0x55, 0x55, 0xff}},
	{"light_purple", color.RGBA{0xff, 0x55, 0xff, 0xff}},
	{"yellow", color.RGBA{0xff, 0xff, 0x55, 0xff}},
	{"white", color.RGBA{0xff, 0xff, 0xff, 0xff}},
}

// Name returns the wire name of the color ("dark_aqua", "gold", ...).
func (c NamedColor) Name() string {
	if int(c) >= len(namedColors) {
		return "white"
	}
	return namedColors[c].name
}

// RGBA returns the display color used by the preview renderer.
func (c NamedColor) RGBA() color.RGBA {
	if int(c) >= len(namedColors) {
		return namedColors[White].rgb
	}
	return namedColors[c].rgb
}

func (c NamedColor) String() string {
	return c.Name()
}

// ColorForCode maps a markup digit (0-9, a-f, A-F) to its color.
func ColorForCode(code rune) (NamedColor, bool) {
	switch {
	case code >= '0' && code <= '9':
		return NamedColor(code - '0'), true
	case code >= 'a' && code <= 'f':
		return NamedColor(code-'a') + 10, true
	case code >= 'A' && code <= 'F':
		return NamedColor(code-'A') + 10, true
	}
	return 0, false
}

// ColorByName is the inverse of Name, used when decoding components.
func ColorByName(name string) (NamedColor, bool) {
	name = strings.ToLower(name)
	for i, nc := range namedColors {
		if nc.name == name {
			return NamedColor(i), true
		}
	}
	return 0, false
}
