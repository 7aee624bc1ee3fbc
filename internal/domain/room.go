package domain

import "github.com/cespare/xxhash/v2"

// HubRoomName is the reserved room every connection is admitted into on
// arrival. Its key is derived the same way as any other room name.
const HubRoomName = "hub"

type (
	RoomName string
	RoomKey  uint64
)

// RoomKeyFor derives a room's key from its name. The mapping is a fixed
// 64-bit non-cryptographic hash; two names hashing to the same key are
// treated as the same room.
func RoomKeyFor(name RoomName) RoomKey {
	return RoomKey(xxhash.Sum64String(string(name)))
}

func HubRoomKey() RoomKey {
	return RoomKeyFor(HubRoomName)
}
