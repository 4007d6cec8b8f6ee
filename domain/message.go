// Package domain contains core concepts of the presence and messaging system.
// This file defines Message events and related rules.
// Messages are immutable and validated by the domain.
package domain

import (
	"time"

	"github.com/google/uuid"
)

type MessageKind string

const (
	MessageKindText   MessageKind = "text"
	MessageKindImage  MessageKind = "image"
	MessageKindFile   MessageKind = "file"
	MessageKindSystem MessageKind = "system"
)

// Attachment carries the metadata of an image or file message.
type Attachment struct {
	Name      string `json:"name"`
	MimeType  string `json:"mime_type"`
	SizeBytes int64  `json:"size_bytes"`
}

// Message represents an immutable chat event. Once persisted it is never
// mutated, except for the soft-delete marker.
type Message struct {
	ID         uuid.UUID   `json:"id"`
	RoomID     RoomID      `json:"room_id"`
	SenderID   UserID      `json:"sender_id"`
	SenderName string      `json:"sender_name"`
	Body       string      `json:"body"`
	Kind       MessageKind `json:"kind"`
	Attachment *Attachment `json:"attachment,omitempty"`
	Lang       string      `json:"lang,omitempty"`
	CreatedAt  time.Time   `json:"created_at"`
	Deleted    bool        `json:"deleted,omitempty"`
}
