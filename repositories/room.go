//go:generate go run go.uber.org/mock/mockgen -source=room.go -destination=../mocks/mock_room_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/samber/lo"

	"chathub/contract"
	"chathub/domain"
	"chathub/errors"
)

const roomCollection = "room"

type IRoomRepository interface {
	Create(room domain.Room) error
	Get(roomID domain.RoomID) (domain.Room, error)
	RoomsForUser(userID domain.UserID) ([]domain.Room, error)
	AddMember(roomID domain.RoomID, userID domain.UserID) error
	RemoveMember(roomID domain.RoomID, userID domain.UserID) error
	SetLastMessage(roomID domain.RoomID, messageID string) error
}

// RoomRepository persists the authoritative room records, including the
// member sets the directory authorizes against. Membership edits go through
// TransactionalUpdate so concurrent edits cannot lose each other.
type RoomRepository struct {
	store contract.RecordStore
	log   *slog.Logger
}

func NewRoomRepository(store contract.RecordStore, log *slog.Logger) RoomRepository {
	return RoomRepository{store: store, log: log}
}

func (r RoomRepository) Create(room domain.Room) error {
	return r.store.CreateRecord(roomCollection, string(room.ID), room)
}

func (r RoomRepository) Get(roomID domain.RoomID) (domain.Room, error) {
	var room domain.Room
	if err := r.store.GetRecord(roomCollection, string(roomID), &room); err != nil {
		return domain.Room{}, err
	}
	return room, nil
}

// RoomsForUser scans all rooms and keeps the ones the user is a member of.
func (r RoomRepository) RoomsForUser(userID domain.UserID) ([]domain.Room, error) {
	records, _, err := r.store.Query(roomCollection, "", nil, 0, false)
	if err != nil {
		return nil, err
	}

	var rooms []domain.Room
	for _, record := range records {
		var room domain.Room
		if err := json.Unmarshal(record.Value, &room); err != nil {
			return nil, err
		}
		if room.IsMember(userID) {
			rooms = append(rooms, room)
		}
	}
	return rooms, nil
}

func (r RoomRepository) AddMember(roomID domain.RoomID, userID domain.UserID) error {
	return r.mutateRoom(roomID, func(room domain.Room) (domain.Room, error) {
		if room.IsMember(userID) {
			return room, nil
		}
		room.Members = append(room.Members, userID)
		return room, nil
	})
}

func (r RoomRepository) RemoveMember(roomID domain.RoomID, userID domain.UserID) error {
	return r.mutateRoom(roomID, func(room domain.Room) (domain.Room, error) {
		room.Members = lo.Filter(room.Members, func(m domain.UserID, _ int) bool {
			return m != userID
		})
		return room, nil
	})
}

func (r RoomRepository) SetLastMessage(roomID domain.RoomID, messageID string) error {
	return r.mutateRoom(roomID, func(room domain.Room) (domain.Room, error) {
		room.LastMessageID = messageID
		return room, nil
	})
}

func (r RoomRepository) mutateRoom(roomID domain.RoomID, fn func(domain.Room) (domain.Room, error)) error {
	return r.store.TransactionalUpdate(roomCollection, string(roomID), func(current []byte) (any, error) {
		if current == nil {
			return nil, fmt.Errorf("%w: room %s", errors.ErrNotFound, roomID)
		}
		var room domain.Room
		if err := json.Unmarshal(current, &room); err != nil {
			return nil, err
		}
		return fn(room)
	})
}
