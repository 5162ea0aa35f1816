package protocol

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"jinxcore/internal/text"

	"github.com/Tnze/go-mc/nbt"
)

// NBT tag types used by text components.
const (
	tagEnd      = nbt.TagEnd
	tagByte     = nbt.TagByte
	tagString   = nbt.TagString
	tagList     = nbt.TagList
	tagCompound = nbt.TagCompound
)

// maxNBTDepth bounds nesting when flattening untrusted components.
const maxNBTDepth = 64

var ErrMalformedNBT = errors.New("malformed nbt")

// textComponent is the shape the sidebar sends: {text:"", extra:[...]}.
type textComponent struct {
	Text  string        `nbt:"text"`
	Extra []textSegment `nbt:"extra,omitempty"`
}

type textSegment struct {
	Text  string `nbt:"text"`
	Color string `nbt:"color,omitempty"`
}

type styleCompound struct {
	Color string `nbt:"color,omitempty"`
	Bold  bool   `nbt:"bold,omitempty"`
}

// wireComponent is what a reader accepts. Children stay raw so string and
// compound entries can be mixed in one extra list.
type wireComponent struct {
	Text  string           `nbt:"text"`
	Color string           `nbt:"color"`
	Bold  bool             `nbt:"bold"`
	Extra []nbt.RawMessage `nbt:"extra"`
}

// appendNBT appends v as an unnamed network NBT root.
func appendNBT(b []byte, v any) ([]byte, error) {
	buf := bytes.NewBuffer(b)
	enc := nbt.NewEncoder(buf)
	enc.NetworkFormat(true)
	if err := enc.Encode(v, ""); err != nil {
		return b, fmt.Errorf("%w: %v", ErrMalformedNBT, err)
	}
	return buf.Bytes(), nil
}

// decodeNBT reads one unnamed network NBT root into v and advances past it.
func (r *Reader) decodeNBT(v any) error {
	src := bytes.NewReader(r.data[r.off:])
	dec := nbt.NewDecoder(src)
	dec.NetworkFormat(true)
	if _, err := dec.Decode(v); err != nil {
		return nbtError(err)
	}
	r.off = len(r.data) - src.Len()
	return nil
}

func nbtError(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return ErrShortBuffer
	}
	return fmt.Errorf("%w: %v", ErrMalformedNBT, err)
}

func appendTextComponent(b []byte, t text.StyledText) ([]byte, error) {
	c := textComponent{}
	for _, seg := range t {
		s := textSegment{Text: seg.Text}
		if seg.Colored {
			s.Color = seg.Color.Name()
		}
		c.Extra = append(c.Extra, s)
	}
	return appendNBT(b, c)
}

// appendStyle writes a style compound for the styled number format.
func appendStyle(b []byte, s StyledFormat) ([]byte, error) {
	c := styleCompound{Bold: s.Bold}
	if s.Colored {
		c.Color = s.Color.Name()
	}
	return appendNBT(b, c)
}

// flatten walks a component tree depth first, carrying the parent color
// into children that set none.
func flatten(out text.StyledText, raw nbt.RawMessage, color text.NamedColor, colored bool, depth int) (text.StyledText, error) {
	if depth > maxNBTDepth {
		return out, fmt.Errorf("%w: nesting too deep", ErrMalformedNBT)
	}
	switch raw.Type {
	case tagString:
		var s string
		if err := raw.Unmarshal(&s); err != nil {
			return out, nbtError(err)
		}
		if s != "" {
			out = append(out, text.Segment{Text: s, Color: color, Colored: colored})
		}
		return out, nil
	case tagCompound:
	default:
		return out, fmt.Errorf("%w: component tag %d", ErrMalformedNBT, raw.Type)
	}

	var c wireComponent
	if err := raw.Unmarshal(&c); err != nil {
		return out, nbtError(err)
	}
	if nc, ok := text.ColorByName(c.Color); ok {
		color, colored = nc, true
	}
	if c.Text != "" {
		out = append(out, text.Segment{Text: c.Text, Color: color, Colored: colored})
	}
	var err error
	for _, child := range c.Extra {
		if out, err = flatten(out, child, color, colored, depth+1); err != nil {
			return out, err
		}
	}
	return out, nil
}

func readTextComponent(r *Reader) (text.StyledText, error) {
	var raw nbt.RawMessage
	if err := r.decodeNBT(&raw); err != nil {
		return nil, err
	}
	return flatten(nil, raw, 0, false, 0)
}

func readStyle(r *Reader) (StyledFormat, error) {
	var raw nbt.RawMessage
	if err := r.decodeNBT(&raw); err != nil {
		return StyledFormat{}, err
	}
	if raw.Type != tagCompound {
		return StyledFormat{}, fmt.Errorf("%w: style tag %d", ErrMalformedNBT, raw.Type)
	}
	var c wireComponent
	if err := raw.Unmarshal(&c); err != nil {
		return StyledFormat{}, nbtError(err)
	}
	color, colored := text.ColorByName(c.Color)
	return StyledFormat{Color: color, Colored: colored, Bold: c.Bold}, nil
}
