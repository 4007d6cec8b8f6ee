package domain

import (
	"time"

	"github.com/google/uuid"
)

// Notification is a durable point-to-point event. It is persisted before
// any live delivery attempt and stays queryable until marked read.
type Notification struct {
	ID        uuid.UUID      `json:"id"`
	UserID    UserID         `json:"user_id"`
	Kind      string         `json:"kind"`
	Title     string         `json:"title"`
	Body      string         `json:"body"`
	Payload   map[string]any `json:"payload,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	Delivered bool           `json:"delivered"`
	Read      bool           `json:"read"`
}

func NewNotification(target UserID, kind, title, body string, payload map[string]any) Notification {
	return Notification{
		ID:        uuid.New(),
		UserID:    target,
		Kind:      kind,
		Title:     title,
		Body:      body,
		Payload:   payload,
		CreatedAt: time.Now().UTC(),
	}
}
