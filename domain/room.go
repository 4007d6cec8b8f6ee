package domain

import (
	"time"

	"github.com/google/uuid"
)

type RoomID string

type RoomKind string

const (
	RoomKindDirect RoomKind = "direct"
	RoomKindGroup  RoomKind = "group"
	RoomKindOpen   RoomKind = "open-community"
)

// Room is the durable channel entity. Membership is authoritative in the
// persistence layer; the in-memory directory only derives subscriber sets
// from it.
type Room struct {
	ID            RoomID
	Kind          RoomKind
	Name          string
	Members       []UserID
	CreatedBy     UserID
	CreatedAt     time.Time
	LastMessageID string
}

func NewRoom(kind RoomKind, name string, createdBy UserID, members []UserID) Room {
	return Room{
		ID:        RoomID(uuid.NewString()),
		Kind:      kind,
		Name:      name,
		Members:   members,
		CreatedBy: createdBy,
		CreatedAt: time.Now().UTC(),
	}
}

func (r Room) IsMember(userID UserID) bool {
	for _, m := range r.Members {
		if m == userID {
			return true
		}
	}
	return false
}
