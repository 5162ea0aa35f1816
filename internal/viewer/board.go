// Package viewer keeps a client-side copy of the scoreboard built from the
// packets a server sends, the same way a game client would.
package viewer

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"jinxcore/internal/protocol"
	"jinxcore/internal/text"
)

var ErrUnknownObjective = errors.New("unknown objective")

// Change tells the caller what a packet did to the board.
type Change int

const (
	ChangeNone Change = iota
	ChangeCreated
	ChangeUpdated
	ChangeRemoved
	ChangeDisplayed
	ChangeScore
)

func (c Change) String() string {
	switch c {
	case ChangeCreated:
		return "created"
	case ChangeUpdated:
		return "updated"
	case ChangeRemoved:
		return "removed"
	case ChangeDisplayed:
		return "displayed"
	case ChangeScore:
		return "score"
	}
	return "none"
}

// Line is one sidebar row as the client would draw it.
type Line struct {
	Entry string
	Score int32
	Text  text.StyledText
}

// View is a snapshot of whatever occupies a display slot.
type View struct {
	Objective string
	Title     text.StyledText
	Lines     []Line
}

type score struct {
	value   int32
	display *text.StyledText
}

type objective struct {
	title  text.StyledText
	scores map[string]score
}

// Board applies set objective, display objective and update score packets.
// It is safe for concurrent use.
type Board struct {
	mu         sync.RWMutex
	objectives map[string]*objective
	slots      map[protocol.DisplaySlot]string
}

func NewBoard() *Board {
	return &Board{
		objectives: make(map[string]*objective),
		slots:      make(map[protocol.DisplaySlot]string),
	}
}

// ApplyBytes decodes one wire packet and applies it.
func (b *Board) ApplyBytes(raw []byte) (Change, error) {
	p, err := protocol.Unmarshal(raw)
	if err != nil {
		return ChangeNone, err
	}
	return b.Apply(p)
}

// Apply updates the board with p. Packets referring to objectives that do
// not exist are rejected and leave the board unchanged.
func (b *Board) Apply(p protocol.Packet) (Change, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch p := p.(type) {
	case protocol.ObjectivePacket:
		return b.applyObjective(p)

	case protocol.DisplayObjectivePacket:
		if p.Objective == "" {
			delete(b.slots, p.Slot)
			return ChangeDisplayed, nil
		}
		if _, ok := b.objectives[p.Objective]; !ok {
			return ChangeNone, fmt.Errorf("%w: display %q", ErrUnknownObjective, p.Objective)
		}
		b.slots[p.Slot] = p.Objective
		return ChangeDisplayed, nil

	case protocol.ScorePacket:
		obj, ok := b.objectives[p.Objective]
		if !ok {
			return ChangeNone, fmt.Errorf("%w: score for %q", ErrUnknownObjective, p.Objective)
		}
		obj.scores[p.Entry] = score{value: p.Score, display: p.DisplayName}
		return ChangeScore, nil
	}
	return ChangeNone, fmt.Errorf("unsupported packet %T", p)
}

func (b *Board) applyObjective(p protocol.ObjectivePacket) (Change, error) {
	name := p.Name()
	switch p.Mode() {
	case protocol.ModeAdd:
		d, _ := p.Display()
		// A repeated add starts the objective over, scores included.
		b.objectives[name] = &objective{title: d.Title, scores: make(map[string]score)}
		return ChangeCreated, nil

	case protocol.ModeUpdate:
		obj, ok := b.objectives[name]
		if !ok {
			return ChangeNone, fmt.Errorf("%w: update %q", ErrUnknownObjective, name)
		}
		d, _ := p.Display()
		obj.title = d.Title
		return ChangeUpdated, nil

	case protocol.ModeRemove:
		// A disabled sidebar is removed every tick, known or not.
		if _, ok := b.objectives[name]; !ok {
			return ChangeNone, nil
		}
		delete(b.objectives, name)
		for slot, shown := range b.slots {
			if shown == name {
				delete(b.slots, slot)
			}
		}
		return ChangeRemoved, nil
	}
	return ChangeNone, fmt.Errorf("unsupported objective mode %v", p.Mode())
}

// Slot returns what is shown in slot, ordered by descending score and then
// by entry name. ok is false when the slot is empty.
func (b *Board) Slot(slot protocol.DisplaySlot) (v View, ok bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	name, ok := b.slots[slot]
	if !ok {
		return View{}, false
	}
	obj := b.objectives[name]

	v = View{Objective: name, Title: obj.title, Lines: make([]Line, 0, len(obj.scores))}
	for entry, s := range obj.scores {
		t := text.Plain(entry)
		if s.display != nil {
			t = *s.display
		}
		v.Lines = append(v.Lines, Line{Entry: entry, Score: s.value, Text: t})
	}
	sort.Slice(v.Lines, func(i, j int) bool {
		if v.Lines[i].Score != v.Lines[j].Score {
			return v.Lines[i].Score > v.Lines[j].Score
		}
		return v.Lines[i].Entry < v.Lines[j].Entry
	})
	return v, true
}

// Sidebar is Slot(protocol.SlotSidebar).
func (b *Board) Sidebar() (View, bool) {
	return b.Slot(protocol.SlotSidebar)
}

// Objectives returns the number of known objectives.
func (b *Board) Objectives() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.objectives)
}

// Reset forgets everything, as a client does on reconnect.
func (b *Board) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objectives = make(map[string]*objective)
	b.slots = make(map[protocol.DisplaySlot]string)
}
