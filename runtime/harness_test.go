package runtime

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"chathub/contract"
	"chathub/domain"
	"chathub/domain/event"
	"chathub/errors"
)

// recordingSink captures every event it consumes, for assertions.
type recordingSink struct {
	mu     sync.Mutex
	events []event.DomainEvent
}

func (s *recordingSink) Consume(_ context.Context, e event.DomainEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return nil
}

func (s *recordingSink) Events() []event.DomainEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]event.DomainEvent, len(s.events))
	copy(out, s.events)
	return out
}

func (s *recordingSink) Messages() []domain.Message {
	var messages []domain.Message
	for _, e := range s.Events() {
		if broadcast, ok := e.(event.MessageBroadcast); ok {
			messages = append(messages, broadcast.Message)
		}
	}
	return messages
}

// memoryRoomRepo is the in-memory stand-in for the badger room repository.
type memoryRoomRepo struct {
	mu    sync.Mutex
	rooms map[domain.RoomID]domain.Room
}

func newMemoryRoomRepo(rooms ...domain.Room) *memoryRoomRepo {
	repo := &memoryRoomRepo{rooms: make(map[domain.RoomID]domain.Room)}
	for _, room := range rooms {
		repo.rooms[room.ID] = room
	}
	return repo
}

func (r *memoryRoomRepo) Create(room domain.Room) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rooms[room.ID] = room
	return nil
}

func (r *memoryRoomRepo) Get(roomID domain.RoomID) (domain.Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[roomID]
	if !ok {
		return domain.Room{}, fmt.Errorf("%w: room %s", errors.ErrNotFound, roomID)
	}
	return room, nil
}

func (r *memoryRoomRepo) RoomsForUser(userID domain.UserID) ([]domain.Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Room
	for _, room := range r.rooms {
		if room.IsMember(userID) {
			out = append(out, room)
		}
	}
	return out, nil
}

func (r *memoryRoomRepo) AddMember(roomID domain.RoomID, userID domain.UserID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[roomID]
	if !ok {
		return fmt.Errorf("%w: room %s", errors.ErrNotFound, roomID)
	}
	room.Members = append(room.Members, userID)
	r.rooms[roomID] = room
	return nil
}

func (r *memoryRoomRepo) RemoveMember(roomID domain.RoomID, userID domain.UserID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[roomID]
	if !ok {
		return fmt.Errorf("%w: room %s", errors.ErrNotFound, roomID)
	}
	var members []domain.UserID
	for _, m := range room.Members {
		if m != userID {
			members = append(members, m)
		}
	}
	room.Members = members
	r.rooms[roomID] = room
	return nil
}

func (r *memoryRoomRepo) SetLastMessage(roomID domain.RoomID, messageID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[roomID]
	if !ok {
		return fmt.Errorf("%w: room %s", errors.ErrNotFound, roomID)
	}
	room.LastMessageID = messageID
	r.rooms[roomID] = room
	return nil
}

// memoryMessageRepo appends messages per room. failStore and storeDelay
// inject persistence failures and slowness.
type memoryMessageRepo struct {
	mu         sync.Mutex
	byRoom     map[domain.RoomID][]domain.Message
	failStore  error
	storeDelay time.Duration
}

func newMemoryMessageRepo() *memoryMessageRepo {
	return &memoryMessageRepo{byRoom: make(map[domain.RoomID][]domain.Message)}
}

func (r *memoryMessageRepo) StoreMessage(message domain.Message) error {
	if r.storeDelay > 0 {
		time.Sleep(r.storeDelay)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failStore != nil {
		return r.failStore
	}
	r.byRoom[message.RoomID] = append(r.byRoom[message.RoomID], message)
	return nil
}

func (r *memoryMessageRepo) Recent(roomID domain.RoomID, limit int) ([]domain.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	messages := r.byRoom[roomID]
	if len(messages) > limit {
		messages = messages[len(messages)-limit:]
	}
	out := make([]domain.Message, len(messages))
	copy(out, messages)
	return out, nil
}

func (r *memoryMessageRepo) Page(roomID domain.RoomID, cursor *string, limit int) ([]domain.Message, *string, error) {
	messages, err := r.Recent(roomID, limit)
	return messages, nil, err
}

func (r *memoryMessageRepo) MarkDeleted(roomID domain.RoomID, createdAt time.Time, id uuid.UUID) error {
	return nil
}

func (r *memoryMessageRepo) stored(roomID domain.RoomID) []domain.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Message, len(r.byRoom[roomID]))
	copy(out, r.byRoom[roomID])
	return out
}

// memoryNotificationRepo stores notifications keyed by id.
type memoryNotificationRepo struct {
	mu        sync.Mutex
	byID      map[string]domain.Notification
	failStore error
}

func newMemoryNotificationRepo() *memoryNotificationRepo {
	return &memoryNotificationRepo{byID: make(map[string]domain.Notification)}
}

func (r *memoryNotificationRepo) Store(n domain.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failStore != nil {
		return r.failStore
	}
	r.byID[n.ID.String()] = n
	return nil
}

func (r *memoryNotificationRepo) ForUser(userID domain.UserID, limit int) ([]domain.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Notification
	for _, n := range r.byID {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	return out, nil
}

func (r *memoryNotificationRepo) MarkDelivered(n domain.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.byID[n.ID.String()]
	if !ok {
		return fmt.Errorf("%w: notification %s", errors.ErrNotFound, n.ID)
	}
	stored.Delivered = true
	r.byID[n.ID.String()] = stored
	return nil
}

func (r *memoryNotificationRepo) MarkRead(notificationID string, userID domain.UserID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.byID[notificationID]
	if !ok || stored.UserID != userID {
		return fmt.Errorf("%w: notification %s for user %s", errors.ErrNotFound, notificationID, userID)
	}
	stored.Read = true
	r.byID[notificationID] = stored
	return nil
}

func (r *memoryNotificationRepo) get(id string) (domain.Notification, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.byID[id]
	return n, ok
}

// allowAll grants every capability; denyAll grants none.
type allowAll struct{}

func (allowAll) HasCapability(context.Context, domain.UserID, domain.Capability) (bool, error) {
	return true, nil
}

type denyAll struct{}

func (denyAll) HasCapability(context.Context, domain.UserID, domain.Capability) (bool, error) {
	return false, nil
}

// staticVerifier resolves credentials from a fixed map.
type staticVerifier struct {
	identities map[string]domain.Identity
}

func (v staticVerifier) VerifyIdentity(_ context.Context, credential string) (domain.Identity, error) {
	identity, ok := v.identities[credential]
	if !ok {
		return domain.Identity{}, fmt.Errorf("%w: unknown credential", errors.ErrAuthentication)
	}
	return identity, nil
}

var _ contract.CapabilityChecker = allowAll{}
var _ contract.CapabilityChecker = denyAll{}
var _ contract.IdentityVerifier = staticVerifier{}

func identityOf(userID string) domain.Identity {
	return domain.Identity{
		UserID:       domain.UserID(userID),
		Email:        userID + "@example.com",
		DisplayName:  userID,
		Capabilities: []domain.Capability{domain.CapabilityRead, domain.CapabilityWrite},
	}
}
