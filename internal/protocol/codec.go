// Package protocol encodes and decodes the clientbound scoreboard packets
// used by the live sidebar: set objective, display objective and update
// score, in the layout of the Java edition play protocol (769).
package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"unicode/utf8"

	"jinxcore/internal/text"
)

const (
	// MaxStringLength is the protocol cap for a string, in characters.
	MaxStringLength = 32767

	// MaxPacketSize is the largest packet body a client accepts.
	MaxPacketSize = 2097151

	maxVarIntBytes = 5
)

var (
	ErrVarIntTooBig   = errors.New("varint too big")
	ErrStringTooLong  = errors.New("string too long")
	ErrShortBuffer    = errors.New("unexpected end of packet")
	ErrPacketTooLarge = errors.New("packet too large")
)

// AppendVarInt appends v in the protocol's 7-bit little-endian group
// encoding. Negative values always take five bytes.
func AppendVarInt(b []byte, v int32) []byte {
	return binary.AppendUvarint(b, uint64(uint32(v)))
}

// VarIntSize returns the encoded length of v.
func VarIntSize(v int32) int {
	u := uint32(v)
	n := 1
	for u >= 0x80 {
		u >>= 7
		n++
	}
	return n
}

// Writer accumulates a packet body.
type Writer struct {
	buf []byte
}

// NewWriter returns an empty writer.
func NewWriter() *Writer {
	return &Writer{buf: make([]byte, 0, 64)}
}

// Bytes returns the encoded bytes. The slice aliases the writer's buffer.
func (w *Writer) Bytes() []byte {
	return w.buf
}

// Len returns the number of bytes written so far.
func (w *Writer) Len() int {
	return len(w.buf)
}

func (w *Writer) WriteU8(b byte) {
	w.buf = append(w.buf, b)
}

func (w *Writer) WriteBool(v bool) {
	if v {
		w.buf = append(w.buf, 1)
		return
	}
	w.buf = append(w.buf, 0)
}

func (w *Writer) WriteVarInt(v int32) {
	w.buf = AppendVarInt(w.buf, v)
}

// WriteString writes a varint byte length followed by UTF-8 bytes.
func (w *Writer) WriteString(s string) error {
	if n := utf8.RuneCountInString(s); n > MaxStringLength {
		return fmt.Errorf("%w: %d characters", ErrStringTooLong, n)
	}
	w.buf = AppendVarInt(w.buf, int32(len(s)))
	w.buf = append(w.buf, s...)
	return nil
}

// WriteTextComponent writes t as a network NBT text component.
func (w *Writer) WriteTextComponent(t text.StyledText) error {
	b, err := appendTextComponent(w.buf, t)
	if err != nil {
		return fmt.Errorf("text component: %w", err)
	}
	w.buf = b
	return nil
}

// Reader decodes a packet body.
type Reader struct {
	data []byte
	off  int
}

// NewReader reads from b without copying it.
func NewReader(b []byte) *Reader {
	return &Reader{data: b}
}

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int {
	return len(r.data) - r.off
}

func (r *Reader) next(n int) ([]byte, error) {
	if n < 0 || r.Remaining() < n {
		return nil, ErrShortBuffer
	}
	b := r.data[r.off : r.off+n]
	r.off += n
	return b, nil
}

func (r *Reader) ReadU8() (byte, error) {
	b, err := r.next(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *Reader) ReadBool() (bool, error) {
	b, err := r.ReadU8()
	if err != nil {
		return false, err
	}
	switch b {
	case 0:
		return false, nil
	case 1:
		return true, nil
	}
	return false, fmt.Errorf("invalid bool byte %#x", b)
}

func (r *Reader) ReadVarInt() (int32, error) {
	v, n := binary.Uvarint(r.data[r.off:])
	switch {
	case n == 0:
		return 0, ErrShortBuffer
	case n < 0, n > maxVarIntBytes, v > math.MaxUint32:
		return 0, ErrVarIntTooBig
	}
	r.off += n
	return int32(uint32(v)), nil
}

func (r *Reader) ReadString() (string, error) {
	n, err := r.ReadVarInt()
	if err != nil {
		return "", err
	}
	if n < 0 || int(n) > MaxStringLength*4 {
		return "", fmt.Errorf("%w: %d bytes", ErrStringTooLong, n)
	}
	b, err := r.next(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ReadTextComponent reads a network NBT text component and flattens it into
// styled segments.
func (r *Reader) ReadTextComponent() (text.StyledText, error) {
	t, err := readTextComponent(r)
	if err != nil {
		return nil, fmt.Errorf("text component: %w", err)
	}
	return t, nil
}
