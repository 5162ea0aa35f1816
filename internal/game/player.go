package game

import (
	"crypto/md5"
	"encoding/hex"
	"strings"
	"time"
)

// Player is a connected client session.
type Player struct {
	ID       string    `json:"id"`   // session id, unique per connection
	UUID     string    `json:"uuid"` // stable identity derived from the name
	Name     string    `json:"name"`
	Address  string    `json:"address,omitempty"`
	JoinedAt time.Time `json:"joinedAt"`
}

// SessionTime returns how long the player has been connected.
func (p *Player) SessionTime(now time.Time) time.Duration {
	if now.Before(p.JoinedAt) {
		return 0
	}
	return now.Sub(p.JoinedAt)
}

// OfflineUUID returns the name-based version 3 UUID used for players
// without an authenticated account ("OfflinePlayer:<name>").
func OfflineUUID(name string) string {
	sum := md5.Sum([]byte("OfflinePlayer:" + name))
	sum[6] = sum[6]&0x0f | 0x30
	sum[8] = sum[8]&0x3f | 0x80

	var sb strings.Builder
	sb.Grow(36)
	h := hex.EncodeToString(sum[:])
	sb.WriteString(h[0:8])
	sb.WriteByte('-')
	sb.WriteString(h[8:12])
	sb.WriteByte('-')
	sb.WriteString(h[12:16])
	sb.WriteByte('-')
	sb.WriteString(h[16:20])
	sb.WriteByte('-')
	sb.WriteString(h[20:32])
	return sb.String()
}

// ValidName reports whether name is an acceptable player name:
// 1 to 16 characters of letters, digits and underscores.
func ValidName(name string) bool {
	if len(name) == 0 || len(name) > 16 {
		return false
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
		default:
			return false
		}
	}
	return true
}
