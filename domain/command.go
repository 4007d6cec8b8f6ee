package domain

import (
	"time"
)

type Command interface {
	TargetRoom() RoomID
}

// Ack is the synchronous reply to the sender of a message, carrying the
// persisted record or the rejection error.
type Ack struct {
	Message Message
	Err     error
}

// SendMessageCommand is the inbound intent of a connected session.
// The Ack channel must be buffered with capacity 1 so the room worker
// never blocks on a sender that went away.
type SendMessageCommand struct {
	Room       RoomID
	SessionID  SessionID
	SenderID   UserID
	SenderName string
	Body       string
	Kind       MessageKind
	Attachment *Attachment
	CreatedAt  time.Time
	Ack        chan Ack
}

func (c SendMessageCommand) TargetRoom() RoomID { return c.Room }

type GetMessagesCommand struct {
	Room   RoomID
	Cursor *string
	Limit  int
}

func (c GetMessagesCommand) TargetRoom() RoomID { return c.Room }
