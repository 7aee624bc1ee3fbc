// Package domain contains the chat entities, just meta-data and the
// synchronization they need to be shared across a connection's workers.
package domain

import (
	"errors"
	"fmt"
	"sync"
)

const MaxUsernameLen = 36

var (
	ErrUsernameTooLong = errors.New("username too long")
	ErrUsernameEmpty   = errors.New("username empty")
)

// UserID is assigned sequentially per process, starting at 0. It is not
// stable across reconnects.
type UserID uint64

// User is one connection's identity. Every worker in the connection's
// pipeline aliases the same *User, so all mutable fields sit behind mu.
type User struct {
	mu       sync.Mutex
	id       UserID
	name     string
	room     RoomKey
	caughtUp bool
}

// NewUser places the user in the given room, not yet caught up with its
// history.
func NewUser(id UserID, room RoomKey) *User {
	return &User{
		id:   id,
		name: fmt.Sprintf("guest-%d", id),
		room: room,
	}
}

func (u *User) ID() UserID { return u.id }

func (u *User) Name() string {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.name
}

func (u *User) SetName(name string) error {
	if len(name) == 0 {
		return ErrUsernameEmpty
	}
	if len(name) > MaxUsernameLen {
		return ErrUsernameTooLong
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	u.name = name
	return nil
}

// Room is advisory between migrations; the registry's reverse index is the
// authoritative record of membership.
func (u *User) Room() RoomKey {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.room
}

func (u *User) SetRoom(key RoomKey) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.room = key
}

// CaughtUp reports whether the user has received its current room's live
// stream since last joining. While false, the next broadcast delivered to
// this user is the room's full history replay.
func (u *User) CaughtUp() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.caughtUp
}

func (u *User) SetCaughtUp(v bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.caughtUp = v
}
