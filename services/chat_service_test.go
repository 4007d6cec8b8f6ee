package services

import (
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"chathub/contract"
	"chathub/domain"
	"chathub/errors"
	"chathub/repositories"
	"chathub/search"
)

// memberDirectory authorizes through room membership only, without any live
// session state.
type memberDirectory struct {
	rooms repositories.IRoomRepository
}

func (d memberDirectory) Authorize(_ context.Context, userID domain.UserID, roomID domain.RoomID) error {
	room, err := d.rooms.Get(roomID)
	if err != nil {
		return err
	}
	if room.Kind != domain.RoomKindOpen && !room.IsMember(userID) {
		return errors.ErrAccessDenied
	}
	return nil
}

func (d memberDirectory) Subscribe(context.Context, domain.SessionID, domain.RoomID) ([]domain.Message, error) {
	return nil, nil
}
func (d memberDirectory) Unsubscribe(domain.SessionID, domain.RoomID)       {}
func (d memberDirectory) DropSession(domain.SessionID, []domain.RoomID)     {}
func (d memberDirectory) SubscribersOf(domain.RoomID) []contract.Subscriber { return nil }
func (d memberDirectory) IsSubscriber(domain.UserID, domain.RoomID) bool    { return false }

func newChatService(t *testing.T) (*ChatService, repositories.IMessageRepository) {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLogger(nil))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	index, err := search.NewIndex(t.TempDir(), slog.Default())
	require.NoError(t, err)
	t.Cleanup(func() { _ = index.Close() })

	store := repositories.NewStore(db, slog.Default())
	rooms := repositories.NewRoomRepository(store, slog.Default())
	messages := repositories.NewMessageRepository(store, slog.Default())
	notifications := repositories.NewNotificationRepository(store, slog.Default())

	service := NewChatService(memberDirectory{rooms: rooms}, rooms, messages, notifications, index)
	return service, messages
}

func TestChatService_CreateRoom_Always_Includes_Creator(t *testing.T) {
	req := require.New(t)
	service, _ := newChatService(t)

	// When the creator forgets to list themselves
	room, err := service.CreateRoom(domain.RoomKindGroup, "ops", "alice", []domain.UserID{"bob"})

	req.NoError(err)
	req.True(room.IsMember("alice"))
	req.True(room.IsMember("bob"))

	rooms, err := service.RoomsForUser("alice")
	req.NoError(err)
	req.Len(rooms, 1)
}

func TestChatService_History_Requires_Membership(t *testing.T) {
	req := require.New(t)
	service, messages := newChatService(t)

	room, err := service.CreateRoom(domain.RoomKindGroup, "ops", "alice", nil)
	req.NoError(err)

	base := time.Now().UTC()
	for i := 0; i < 3; i++ {
		req.NoError(messages.StoreMessage(domain.Message{
			ID:        uuid.New(),
			RoomID:    room.ID,
			SenderID:  "alice",
			Body:      fmt.Sprintf("message-%d", i),
			Kind:      domain.MessageKindText,
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}))
	}

	// Members read the page, newest first
	page, _, err := service.History(context.Background(), "alice", room.ID, nil, 10)
	req.NoError(err)
	req.Len(page, 3)
	req.Equal("message-2", page[0].Body)

	// Outsiders are turned away
	_, _, err = service.History(context.Background(), "mallory", room.ID, nil, 10)
	req.ErrorIs(err, errors.ErrAccessDenied)
}

func TestChatService_Search_Is_Authorized(t *testing.T) {
	req := require.New(t)
	service, _ := newChatService(t)

	room, err := service.CreateRoom(domain.RoomKindGroup, "ops", "alice", nil)
	req.NoError(err)

	_, err = service.Search(context.Background(), "mallory", room.ID, "anything", 10)
	req.ErrorIs(err, errors.ErrAccessDenied)
}
