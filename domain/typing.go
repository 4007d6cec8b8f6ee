package domain

import "time"

// TypingSignal is ephemeral per-room per-user state. It has no durable
// representation and is lost on process restart.
type TypingSignal struct {
	RoomID      RoomID
	UserID      UserID
	DisplayName string
	At          time.Time
}
