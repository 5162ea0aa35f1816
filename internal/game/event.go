package game

import (
	"fmt"
	"time"
)

// EventType classifies presence events.
type EventType uint8

const (
	EventTypeUnknown EventType = iota
	EventTypePlayerJoin
	EventTypePlayerLeave
)

// EventVersion is bumped when the log line format changes.
const EventVersion uint8 = 1

// Event is one line of the presence log.
type Event struct {
	Version   uint8     `json:"version"`
	Type      EventType `json:"type"`
	Timestamp int64     `json:"timestamp"` // Unix nano
	Sequence  uint64    `json:"sequence"`
	TickNum   uint64    `json:"tickNum"`
	PlayerID  string    `json:"playerId"`
	UUID      string    `json:"uuid"`
	Name      string    `json:"name"`
	Address   string    `json:"address,omitempty"`
}

// NewEvent stamps a presence event for p.
func NewEvent(eventType EventType, tickNum uint64, p *Player) Event {
	return Event{
		Version:   EventVersion,
		Type:      eventType,
		Timestamp: time.Now().UnixNano(),
		TickNum:   tickNum,
		PlayerID:  p.ID,
		UUID:      p.UUID,
		Name:      p.Name,
		Address:   p.Address,
	}
}

func (t EventType) String() string {
	switch t {
	case EventTypePlayerJoin:
		return "player_join"
	case EventTypePlayerLeave:
		return "player_leave"
	default:
		return "unknown"
	}
}

func (t EventType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *EventType) UnmarshalText(b []byte) error {
	switch string(b) {
	case "player_join":
		*t = EventTypePlayerJoin
	case "player_leave":
		*t = EventTypePlayerLeave
	case "unknown":
		*t = EventTypeUnknown
	default:
		return fmt.Errorf("unknown event type %q", b)
	}
	return nil
}
