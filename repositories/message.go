//go:generate go run go.uber.org/mock/mockgen -source=message.go -destination=../mocks/mock_message_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"chathub/contract"
	"chathub/domain"
	"chathub/errors"
)

const messageCollection = "msg"

type IMessageRepository interface {
	StoreMessage(message domain.Message) error
	Recent(roomID domain.RoomID, limit int) ([]domain.Message, error)
	Page(roomID domain.RoomID, cursor *string, limit int) ([]domain.Message, *string, error)
	MarkDeleted(roomID domain.RoomID, createdAt time.Time, id uuid.UUID) error
}

type MessageRepository struct {
	store contract.RecordStore
	log   *slog.Logger
}

func NewMessageRepository(store contract.RecordStore, log *slog.Logger) MessageRepository {
	return MessageRepository{store: store, log: log}
}

// messageKey formats the record key as "{room_id}:{timestamp_padded}:{uuid}" to:
//  1. Ensure chronological sorting using 19-digit zero padding
//     (lexicographical order).
//  2. Prevent data loss by using the UUID as a collision disconnector if two
//     messages arrive at the same nanosecond.
func messageKey(roomID domain.RoomID, at time.Time, id uuid.UUID) string {
	return fmt.Sprintf("%s:%019d:%s", roomID, at.UnixNano(), id)
}

func (m MessageRepository) StoreMessage(message domain.Message) error {
	key := messageKey(message.RoomID, message.CreatedAt, message.ID)
	return m.store.CreateRecord(messageCollection, key, message)
}

// Recent returns the newest messages of a room in chronological order.
// This is the backlog handed to a late joining client.
func (m MessageRepository) Recent(roomID domain.RoomID, limit int) ([]domain.Message, error) {
	messages, _, err := m.Page(roomID, nil, limit)
	if err != nil {
		return nil, err
	}
	// Page walks newest first; the backlog is delivered oldest first.
	lo.Reverse(messages)
	return messages, nil
}

// Page walks a room's history newest first, resuming after the cursor.
func (m MessageRepository) Page(roomID domain.RoomID, cursor *string, limit int) ([]domain.Message, *string, error) {
	records, next, err := m.store.Query(messageCollection, string(roomID)+":", cursor, limit, true)
	if err != nil {
		return nil, nil, err
	}

	messages := make([]domain.Message, 0, len(records))
	for _, record := range records {
		var message domain.Message
		if err := json.Unmarshal(record.Value, &message); err != nil {
			return nil, nil, err
		}
		messages = append(messages, message)
	}
	return messages, next, nil
}

// MarkDeleted sets the soft-delete marker. The record stays append-only
// otherwise; body and metadata are not rewritten.
func (m MessageRepository) MarkDeleted(roomID domain.RoomID, createdAt time.Time, id uuid.UUID) error {
	key := messageKey(roomID, createdAt, id)
	return m.store.TransactionalUpdate(messageCollection, key, func(current []byte) (any, error) {
		if current == nil {
			return nil, fmt.Errorf("%w: message %s", errors.ErrNotFound, id)
		}
		var message domain.Message
		if err := json.Unmarshal(current, &message); err != nil {
			return nil, err
		}
		message.Deleted = true
		return message, nil
	})
}
