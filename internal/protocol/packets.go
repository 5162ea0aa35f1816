package protocol

import (
	"errors"
	"fmt"

	"jinxcore/internal/text"
)

// Clientbound play packet IDs (protocol 769).
const (
	PacketDisplayObjective int32 = 0x5C
	PacketSetObjective     int32 = 0x64
	PacketUpdateScore      int32 = 0x68
)

var (
	ErrUnknownPacket = errors.New("unknown packet id")
	ErrTrailingBytes = errors.New("trailing bytes after packet")
)

// Packet is a clientbound packet this package can encode.
type Packet interface {
	PacketID() int32
	encode(w *Writer) error
}

// ObjectiveMode is the lifecycle action carried by a set objective packet.
type ObjectiveMode uint8

const (
	ModeAdd    ObjectiveMode = 0
	ModeRemove ObjectiveMode = 1
	ModeUpdate ObjectiveMode = 2
)

func (m ObjectiveMode) String() string {
	switch m {
	case ModeAdd:
		return "add"
	case ModeRemove:
		return "remove"
	case ModeUpdate:
		return "update"
	}
	return fmt.Sprintf("mode(%d)", uint8(m))
}

// RenderType selects how the client draws score values.
type RenderType int32

const (
	RenderInteger RenderType = 0
	RenderHearts  RenderType = 1
)

// NumberFormat overrides how a score value is drawn. Implementations are
// BlankFormat, StyledFormat and FixedFormat; a nil NumberFormat means the
// field is absent.
type NumberFormat interface {
	formatKind() int32
}

// BlankFormat hides the score value.
type BlankFormat struct{}

// StyledFormat draws the value with a style.
type StyledFormat struct {
	Color   text.NamedColor
	Colored bool
	Bold    bool
}

// FixedFormat replaces the value with fixed text.
type FixedFormat struct {
	Text text.StyledText
}

func (BlankFormat) formatKind() int32  { return 0 }
func (StyledFormat) formatKind() int32 { return 1 }
func (FixedFormat) formatKind() int32  { return 2 }

func writeNumberFormat(w *Writer, f NumberFormat) error {
	w.WriteBool(f != nil)
	if f == nil {
		return nil
	}
	w.WriteVarInt(f.formatKind())
	switch v := f.(type) {
	case BlankFormat:
		return nil
	case StyledFormat:
		b, err := appendStyle(w.buf, v)
		if err != nil {
			return err
		}
		w.buf = b
		return nil
	case FixedFormat:
		return w.WriteTextComponent(v.Text)
	}
	return fmt.Errorf("unsupported number format %T", f)
}

func readNumberFormat(r *Reader) (NumberFormat, error) {
	present, err := r.ReadBool()
	if err != nil || !present {
		return nil, err
	}
	kind, err := r.ReadVarInt()
	if err != nil {
		return nil, err
	}
	switch kind {
	case 0:
		return BlankFormat{}, nil
	case 1:
		return readStyle(r)
	case 2:
		t, err := r.ReadTextComponent()
		if err != nil {
			return nil, err
		}
		return FixedFormat{Text: t}, nil
	}
	return nil, fmt.Errorf("unknown number format %d", kind)
}

// ObjectiveDisplay is the payload of an Add or Update objective action.
type ObjectiveDisplay struct {
	Title  text.StyledText
	Render RenderType
	Format NumberFormat
}

// ObjectivePacket creates, updates or removes an objective. Build it with
// AddObjective, UpdateObjective or RemoveObjective; only Add and Update
// carry a display payload.
type ObjectivePacket struct {
	name    string
	mode    ObjectiveMode
	display ObjectiveDisplay
}

func AddObjective(name string, d ObjectiveDisplay) ObjectivePacket {
	return ObjectivePacket{name: name, mode: ModeAdd, display: d}
}

func UpdateObjective(name string, d ObjectiveDisplay) ObjectivePacket {
	return ObjectivePacket{name: name, mode: ModeUpdate, display: d}
}

func RemoveObjective(name string) ObjectivePacket {
	return ObjectivePacket{name: name, mode: ModeRemove}
}

func (p ObjectivePacket) Name() string        { return p.name }
func (p ObjectivePacket) Mode() ObjectiveMode { return p.mode }

// Display returns the payload; ok is false for Remove.
func (p ObjectivePacket) Display() (d ObjectiveDisplay, ok bool) {
	if p.mode == ModeRemove {
		return ObjectiveDisplay{}, false
	}
	return p.display, true
}

func (ObjectivePacket) PacketID() int32 { return PacketSetObjective }

func (p ObjectivePacket) encode(w *Writer) error {
	if err := w.WriteString(p.name); err != nil {
		return fmt.Errorf("objective name: %w", err)
	}
	w.WriteU8(byte(p.mode))
	if p.mode == ModeRemove {
		return nil
	}
	if err := w.WriteTextComponent(p.display.Title); err != nil {
		return fmt.Errorf("objective title: %w", err)
	}
	w.WriteVarInt(int32(p.display.Render))
	return writeNumberFormat(w, p.display.Format)
}

func decodeObjective(r *Reader) (ObjectivePacket, error) {
	var p ObjectivePacket
	var err error
	if p.name, err = r.ReadString(); err != nil {
		return p, err
	}
	mode, err := r.ReadU8()
	if err != nil {
		return p, err
	}
	p.mode = ObjectiveMode(mode)
	switch p.mode {
	case ModeRemove:
		return p, nil
	case ModeAdd, ModeUpdate:
	default:
		return p, fmt.Errorf("unknown objective mode %d", mode)
	}
	if p.display.Title, err = r.ReadTextComponent(); err != nil {
		return p, err
	}
	render, err := r.ReadVarInt()
	if err != nil {
		return p, err
	}
	p.display.Render = RenderType(render)
	p.display.Format, err = readNumberFormat(r)
	return p, err
}

// DisplaySlot is a screen position an objective can be shown in.
type DisplaySlot int32

const (
	SlotList      DisplaySlot = 0
	SlotSidebar   DisplaySlot = 1
	SlotBelowName DisplaySlot = 2
)

// DisplayObjectivePacket shows an objective in a slot.
type DisplayObjectivePacket struct {
	Slot      DisplaySlot
	Objective string
}

func (DisplayObjectivePacket) PacketID() int32 { return PacketDisplayObjective }

func (p DisplayObjectivePacket) encode(w *Writer) error {
	w.WriteVarInt(int32(p.Slot))
	return w.WriteString(p.Objective)
}

func decodeDisplayObjective(r *Reader) (DisplayObjectivePacket, error) {
	var p DisplayObjectivePacket
	slot, err := r.ReadVarInt()
	if err != nil {
		return p, err
	}
	p.Slot = DisplaySlot(slot)
	p.Objective, err = r.ReadString()
	return p, err
}

// ScorePacket sets one entry's score. DisplayName replaces the entry name
// on screen when non-nil.
type ScorePacket struct {
	Entry       string
	Objective   string
	Score       int32
	DisplayName *text.StyledText
	Format      NumberFormat
}

func (ScorePacket) PacketID() int32 { return PacketUpdateScore }

func (p ScorePacket) encode(w *Writer) error {
	if err := w.WriteString(p.Entry); err != nil {
		return fmt.Errorf("score entry: %w", err)
	}
	if err := w.WriteString(p.Objective); err != nil {
		return fmt.Errorf("score objective: %w", err)
	}
	w.WriteVarInt(p.Score)
	w.WriteBool(p.DisplayName != nil)
	if p.DisplayName != nil {
		if err := w.WriteTextComponent(*p.DisplayName); err != nil {
			return fmt.Errorf("score display name: %w", err)
		}
	}
	return writeNumberFormat(w, p.Format)
}

func decodeScore(r *Reader) (ScorePacket, error) {
	var p ScorePacket
	var err error
	if p.Entry, err = r.ReadString(); err != nil {
		return p, err
	}
	if p.Objective, err = r.ReadString(); err != nil {
		return p, err
	}
	if p.Score, err = r.ReadVarInt(); err != nil {
		return p, err
	}
	hasName, err := r.ReadBool()
	if err != nil {
		return p, err
	}
	if hasName {
		t, err := r.ReadTextComponent()
		if err != nil {
			return p, err
		}
		p.DisplayName = &t
	}
	p.Format, err = readNumberFormat(r)
	return p, err
}

// Marshal encodes p as [varint packet id][body].
func Marshal(p Packet) ([]byte, error) {
	w := NewWriter()
	w.WriteVarInt(p.PacketID())
	if err := p.encode(w); err != nil {
		return nil, fmt.Errorf("encode packet %#x: %w", p.PacketID(), err)
	}
	if w.Len() > MaxPacketSize {
		return nil, fmt.Errorf("%w: %d > %d", ErrPacketTooLarge, w.Len(), MaxPacketSize)
	}
	return w.Bytes(), nil
}

// Unmarshal decodes a packet produced by Marshal.
func Unmarshal(b []byte) (Packet, error) {
	r := NewReader(b)
	id, err := r.ReadVarInt()
	if err != nil {
		return nil, fmt.Errorf("packet id: %w", err)
	}

	var p Packet
	switch id {
	case PacketSetObjective:
		p, err = decodeObjective(r)
	case PacketDisplayObjective:
		p, err = decodeDisplayObjective(r)
	case PacketUpdateScore:
		p, err = decodeScore(r)
	default:
		return nil, fmt.Errorf("%w: %#x", ErrUnknownPacket, id)
	}
	if err != nil {
		return nil, fmt.Errorf("decode packet %#x: %w", id, err)
	}
	if r.Remaining() != 0 {
		return nil, fmt.Errorf("%w: %d", ErrTrailingBytes, r.Remaining())
	}
	return p, nil
}
