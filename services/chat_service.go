package services

import (
	"context"

	"chathub/contract"
	"chathub/domain"
	"chathub/repositories"
	"chathub/search"
)

// ChatService is the out-of-band read/write surface over the same
// repositories and directory the live path uses. It never touches a live
// session; all room access still goes through Authorize.
type ChatService struct {
	directory     contract.IRoomDirectory
	rooms         repositories.IRoomRepository
	messages      repositories.IMessageRepository
	notifications repositories.INotificationRepository
	index         *search.Index
}

func NewChatService(
	directory contract.IRoomDirectory,
	rooms repositories.IRoomRepository,
	messages repositories.IMessageRepository,
	notifications repositories.INotificationRepository,
	index *search.Index,
) *ChatService {
	return &ChatService{
		directory:     directory,
		rooms:         rooms,
		messages:      messages,
		notifications: notifications,
		index:         index,
	}
}

func (s *ChatService) CreateRoom(kind domain.RoomKind, name string, createdBy domain.UserID, members []domain.UserID) (domain.Room, error) {
	hasCreator := false
	for _, m := range members {
		if m == createdBy {
			hasCreator = true
			break
		}
	}
	if !hasCreator {
		members = append(members, createdBy)
	}

	room := domain.NewRoom(kind, name, createdBy, members)
	if err := s.rooms.Create(room); err != nil {
		return domain.Room{}, err
	}
	return room, nil
}

func (s *ChatService) RoomsForUser(userID domain.UserID) ([]domain.Room, error) {
	return s.rooms.RoomsForUser(userID)
}

// History returns a page of a room's messages, newest first, resuming after
// the cursor.
func (s *ChatService) History(ctx context.Context, userID domain.UserID, roomID domain.RoomID, cursor *string, limit int) ([]domain.Message, *string, error) {
	if err := s.directory.Authorize(ctx, userID, roomID); err != nil {
		return nil, nil, err
	}
	return s.messages.Page(roomID, cursor, limit)
}

func (s *ChatService) Search(ctx context.Context, userID domain.UserID, roomID domain.RoomID, terms string, limit int) ([]search.Hit, error) {
	if err := s.directory.Authorize(ctx, userID, roomID); err != nil {
		return nil, err
	}
	return s.index.Search(ctx, roomID, terms, limit)
}

func (s *ChatService) Notifications(userID domain.UserID, limit int) ([]domain.Notification, error) {
	return s.notifications.ForUser(userID, limit)
}
