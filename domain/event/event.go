package event

import (
	"chathub/domain"
)

// DomainEvent is anything fanned out to connected sessions. Room-scoped
// events report their room; global events (presence, notifications)
// return an empty RoomID.
type DomainEvent interface {
	Room() domain.RoomID
}

// MessageBroadcast carries a persisted message to room subscribers.
type MessageBroadcast struct {
	Message domain.Message
}

func (e MessageBroadcast) Room() domain.RoomID { return e.Message.RoomID }

// RoomHistory is the backlog payload sent right after a successful join.
type RoomHistory struct {
	RoomID   domain.RoomID
	Messages []domain.Message
}

func (e RoomHistory) Room() domain.RoomID { return e.RoomID }

// TypingChanged is emitted on typing start, explicit stop, and staleness
// expiry (Started=false for the last two).
type TypingChanged struct {
	Signal  domain.TypingSignal
	Started bool
}

func (e TypingChanged) Room() domain.RoomID { return e.Signal.RoomID }

type MemberLeft struct {
	RoomID      domain.RoomID
	UserID      domain.UserID
	DisplayName string
}

func (e MemberLeft) Room() domain.RoomID { return e.RoomID }

// OnlineStatus is the global best-effort presence signal broadcast on
// admission, eviction, and explicit status updates.
type OnlineStatus struct {
	UserID      domain.UserID
	DisplayName string
	Status      string
}

func (e OnlineStatus) Room() domain.RoomID { return "" }

// MessageAck is the synchronous reply to the sender, carrying the persisted
// record with its server-assigned identifier and timestamp.
type MessageAck struct {
	Message domain.Message
}

func (e MessageAck) Room() domain.RoomID { return e.Message.RoomID }

// ErrorRaised reports a failed client operation back to the originating
// session only.
type ErrorRaised struct {
	Reason string
	Detail string
}

func (e ErrorRaised) Room() domain.RoomID { return "" }

type NotificationSent struct {
	Notification domain.Notification
}

func (e NotificationSent) Room() domain.RoomID { return "" }
