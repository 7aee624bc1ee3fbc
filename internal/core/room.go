package core

import (
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/Wombatlord/marain-chat-server/internal/domain"
)

// Inbox is the sending half of a user's private channel. Sends must never
// block; a full or dead inbox returns an error and the frame is dropped for
// that peer only.
type Inbox interface {
	TrySend(payload []byte) error
}

type occupant struct {
	user  *domain.User
	inbox Inbox
}

// Room is a threadsafe in-memory broadcast domain: an occupant set plus a
// bounded ring of recent payloads used for catch-up replay.
type Room struct {
	key  domain.RoomKey
	name domain.RoomName

	mu         sync.RWMutex
	occupants  map[domain.UserID]occupant
	history    []string
	historyCap int
}

func newRoom(key domain.RoomKey, name domain.RoomName, historyCap int) *Room {
	return &Room{
		key:        key,
		name:       name,
		occupants:  make(map[domain.UserID]occupant),
		historyCap: historyCap,
	}
}

func (r *Room) Key() domain.RoomKey   { return r.key }
func (r *Room) Name() domain.RoomName { return r.name }

func (r *Room) OccupantCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.occupants)
}

// OccupantNames returns a snapshot of the display names of everyone in the
// room.
func (r *Room) OccupantNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lo.Map(lo.Values(r.occupants), func(o occupant, _ int) string {
		return o.user.Name()
	})
}

// Inbox resolves an occupant's private channel, used for direct replies.
func (r *Room) Inbox(id domain.UserID) (Inbox, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, ok := r.occupants[id]
	if !ok {
		return nil, false
	}
	return o.inbox, true
}

func (r *Room) addOccupant(user *domain.User, inbox Inbox) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.occupants[user.ID()] = occupant{user: user, inbox: inbox}
	log.Info().Str("module", "core.room").Str("room", string(r.name)).Uint64("user", uint64(user.ID())).Msg("occupant added")
}

func (r *Room) removeOccupant(id domain.UserID) (occupant, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.occupants[id]
	if !ok {
		return occupant{}, false
	}
	delete(r.occupants, id)
	log.Info().Str("module", "core.room").Str("room", string(r.name)).Uint64("user", uint64(id)).Msg("occupant removed")
	return o, true
}

// Append adds a payload to the history ring, evicting the oldest entry once
// the cap is reached. A cap of zero or below disables the bound.
func (r *Room) Append(payload []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.appendLocked(payload)
}

func (r *Room) appendLocked(payload []byte) {
	if r.historyCap > 0 && len(r.history) >= r.historyCap {
		r.history = r.history[1:]
	}
	r.history = append(r.history, string(payload))
}

// HistorySnapshot returns a copy of the buffered payloads, oldest first.
func (r *Room) HistorySnapshot() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.history))
	copy(out, r.history)
	return out
}

// JoinedHistory is the catch-up replay payload: every buffered message,
// newline-joined, oldest first.
func (r *Room) JoinedHistory() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return strings.Join(r.history, "\n")
}

// Broadcast appends the payload to the room's history and fans it out to
// every occupant except the sender. Caught-up peers receive the payload
// itself; peers not yet caught up receive the full joined history instead
// and are marked caught up. The room lock is held for the whole
// append-and-scan, which is what serializes per-room delivery order; inbox
// sends are non-blocking so the lock is never held across a suspension.
func (r *Room) Broadcast(from domain.UserID, payload []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.appendLocked(payload)
	replay := strings.Join(r.history, "\n")

	sent, dropped := 0, 0
	for id, o := range r.occupants {
		if id == from {
			continue
		}
		out := payload
		if !o.user.CaughtUp() {
			out = []byte(replay)
		}
		if err := o.inbox.TrySend(out); err != nil {
			// Dead or saturated peer: drop for that peer only and leave
			// eviction to its own disconnect path.
			dropped++
			continue
		}
		o.user.SetCaughtUp(true)
		sent++
	}
	log.Debug().Str("module", "core.room").Str("room", string(r.name)).Uint64("from", uint64(from)).Int("sent_to", sent).Int("dropped", dropped).Msg("broadcast result")
}
