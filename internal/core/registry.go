// Package core owns the room registry and room state: the only mutable
// state shared across connections. All membership mutation funnels through
// the registry so a move appears instantaneous to broadcasters.
package core

import (
	"errors"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/Wombatlord/marain-chat-server/internal/domain"
)

// ErrRoomNotFound is returned when a room key resolves to nothing. For a
// user's own current room this should be impossible and indicates a
// membership bookkeeping bug; callers log it and drop the operation rather
// than terminating.
var ErrRoomNotFound = errors.New("room not found")

// ErrUserNotFound is returned when a user has no membership record, e.g. a
// migration racing with the disconnect path.
var ErrUserNotFound = errors.New("user not found in any room")

// Registry maps room keys to rooms and maintains the authoritative reverse
// index from user to room. The hub room exists from construction, before
// any connection is accepted.
type Registry struct {
	mu         sync.RWMutex
	rooms      map[domain.RoomKey]*Room
	roomOf     map[domain.UserID]domain.RoomKey
	historyCap int
}

func NewRegistry(historyCap int) *Registry {
	r := &Registry{
		rooms:      make(map[domain.RoomKey]*Room),
		roomOf:     make(map[domain.UserID]domain.RoomKey),
		historyCap: historyCap,
	}
	hub := domain.HubRoomKey()
	r.rooms[hub] = newRoom(hub, domain.HubRoomName, historyCap)
	return r
}

// Get resolves a room key. It never creates.
func (r *Registry) Get(key domain.RoomKey) (*Room, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	room, ok := r.rooms[key]
	if !ok {
		return nil, ErrRoomNotFound
	}
	return room, nil
}

// GetOrCreate resolves a room by name, creating it if absent. Creation is
// immediately visible to every holder of the registry.
func (r *Registry) GetOrCreate(name domain.RoomName) *Room {
	key := domain.RoomKeyFor(name)

	r.mu.RLock()
	room, ok := r.rooms[key]
	r.mu.RUnlock()
	if ok {
		return room
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.getOrCreateLocked(key, name)
}

func (r *Registry) getOrCreateLocked(key domain.RoomKey, name domain.RoomName) *Room {
	if room, ok := r.rooms[key]; ok {
		return room
	}
	room := newRoom(key, name, r.historyCap)
	r.rooms[key] = room
	log.Info().Str("module", "core.registry").Str("room", string(name)).Uint64("key", uint64(key)).Msg("created room")
	return room
}

// Admit inserts a freshly connected user into the hub room and records its
// membership. Called exactly once per user identity, before the
// connection's workers start.
func (r *Registry) Admit(user *domain.User, inbox Inbox) {
	r.mu.Lock()
	defer r.mu.Unlock()
	hub := r.rooms[domain.HubRoomKey()]
	hub.addOccupant(user, inbox)
	r.roomOf[user.ID()] = hub.key
	log.Info().Str("module", "core.registry").Uint64("user", uint64(user.ID())).Msg("admitted to hub")
}

// Migrate atomically moves the user from whichever room currently holds it
// into the room named, creating the destination on demand. The user's
// existing inbox travels with it; no observer can see the user in neither
// or both rooms. The user's room field is updated and its caught-up flag
// cleared before the move is visible to the caller.
func (r *Registry) Migrate(id domain.UserID, name domain.RoomName) (*Room, Inbox, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	fromKey, ok := r.roomOf[id]
	if !ok {
		return nil, nil, ErrUserNotFound
	}
	from, ok := r.rooms[fromKey]
	if !ok {
		return nil, nil, ErrRoomNotFound
	}

	dest := r.getOrCreateLocked(domain.RoomKeyFor(name), name)
	if dest == from {
		inbox, ok := from.Inbox(id)
		if !ok {
			return nil, nil, ErrUserNotFound
		}
		return dest, inbox, nil
	}

	occ, ok := from.removeOccupant(id)
	if !ok {
		return nil, nil, ErrUserNotFound
	}
	occ.user.SetRoom(dest.key)
	occ.user.SetCaughtUp(false)
	dest.addOccupant(occ.user, occ.inbox)
	r.roomOf[id] = dest.key
	log.Info().Str("module", "core.registry").Uint64("user", uint64(id)).Str("to", string(name)).Msg("migrated")
	return dest, occ.inbox, nil
}

// Remove drops the user from its current room. This is the authoritative
// disconnect path, driven only by the ingress router's observation of
// stream closure.
func (r *Registry) Remove(id domain.UserID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key, ok := r.roomOf[id]
	if !ok {
		return
	}
	if room, ok := r.rooms[key]; ok {
		room.removeOccupant(id)
	}
	delete(r.roomOf, id)
	log.Info().Str("module", "core.registry").Uint64("user", uint64(id)).Msg("removed")
}

// RoomOf is the reverse-index lookup: the room currently holding the user.
func (r *Registry) RoomOf(id domain.UserID) (domain.RoomKey, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	key, ok := r.roomOf[id]
	return key, ok
}

// RoomCount reports how many rooms exist. Rooms are never reaped.
func (r *Registry) RoomCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}
