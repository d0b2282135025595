package collab

import (
	"log/slog"
	"sync"

	"github.com/AntoninoBonanno/DragDropAnnotate/internal/annotation"
)

// Presence tracks who is looking at a surface and where their pointer is,
// in native image pixels.
type Presence struct {
	surfaceID string

	mu      sync.RWMutex
	members map[string]PresencePayload // clientID -> presence
}

func NewPresence(surfaceID string) *Presence {
	return &Presence{
		surfaceID: surfaceID,
		members:   make(map[string]PresencePayload),
	}
}

// Join adds a client with no cursor yet.
func (p *Presence) Join(clientID, displayName string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.members[clientID] = PresencePayload{DisplayName: displayName}
}

func (p *Presence) Leave(clientID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.members, clientID)
}

// MoveCursor records a pointer position, or clears it when at is nil. It
// returns the new presence and whether it changed. Unknown clients are
// ignored.
func (p *Presence) MoveCursor(clientID string, at *annotation.Coordinate) (PresencePayload, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	cur, ok := p.members[clientID]
	if !ok {
		return PresencePayload{}, false
	}

	var next *CursorPos
	if at != nil {
		next = &CursorPos{X: at.X, Y: at.Y}
	}
	if sameCursor(cur.Cursor, next) {
		return cur, false
	}
	cur.Cursor = next
	p.members[clientID] = cur
	return cur, true
}

func sameCursor(a, b *CursorPos) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// Snapshot returns a copy of every member's presence.
func (p *Presence) Snapshot() map[string]*PresencePayload {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make(map[string]*PresencePayload, len(p.members))
	for id, m := range p.members {
		if m.Cursor != nil {
			c := *m.Cursor
			m.Cursor = &c
		}
		out[id] = &m
	}
	return out
}

func (p *Presence) StateMessage() *Message {
	msg, err := newMessage(TypePresenceState, p.surfaceID, PresenceStatePayload{Presences: p.Snapshot()})
	if err != nil {
		slog.Error("marshal presence state", "error", err)
		return nil
	}
	return msg
}
