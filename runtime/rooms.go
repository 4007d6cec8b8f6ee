package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"chathub/contract"
	"chathub/domain"
	"chathub/domain/event"
	"chathub/errors"
	"chathub/repositories"
)

type roomShard struct {
	mu sync.RWMutex
	// room -> session -> owning user
	subscribers map[domain.RoomID]map[domain.SessionID]domain.UserID
}

// RoomDirectory owns the room-to-subscriber mapping. Membership is
// authoritative in the room repository; the directory only caches which
// member sessions are currently connected. Sharded by room identifier;
// cross-shard operations take the session shard first (via the registry),
// then the room shard.
type RoomDirectory struct {
	shards      []*roomShard
	sessions    contract.ISessionRegistry
	rooms       repositories.IRoomRepository
	messages    repositories.IMessageRepository
	permissions contract.CapabilityChecker
	fanout      *Fanout
	backlogSize int
	log         *slog.Logger
}

var _ contract.IRoomDirectory = (*RoomDirectory)(nil)

func NewRoomDirectory(
	shardCount int,
	sessions contract.ISessionRegistry,
	rooms repositories.IRoomRepository,
	messages repositories.IMessageRepository,
	permissions contract.CapabilityChecker,
	fanout *Fanout,
	backlogSize int,
	log *slog.Logger,
) *RoomDirectory {
	if shardCount <= 0 {
		shardCount = 16
	}
	shards := make([]*roomShard, shardCount)
	for i := range shards {
		shards[i] = &roomShard{subscribers: make(map[domain.RoomID]map[domain.SessionID]domain.UserID)}
	}
	return &RoomDirectory{
		shards:      shards,
		sessions:    sessions,
		rooms:       rooms,
		messages:    messages,
		permissions: permissions,
		fanout:      fanout,
		backlogSize: backlogSize,
		log:         log,
	}
}

func (d *RoomDirectory) shardFor(roomID domain.RoomID) *roomShard {
	return d.shards[shardIndex(string(roomID), len(d.shards))]
}

// Authorize allows a user listed in the room's member set, or any holder of
// the generic read capability when the room kind is open-community.
// Direct and group rooms deny unconditionally when not a member.
func (d *RoomDirectory) Authorize(ctx context.Context, userID domain.UserID, roomID domain.RoomID) error {
	room, err := d.rooms.Get(roomID)
	if err != nil {
		return err
	}

	if room.IsMember(userID) {
		return nil
	}

	if room.Kind == domain.RoomKindOpen {
		allowed, err := d.permissions.HasCapability(ctx, userID, domain.CapabilityRead)
		if err != nil {
			return err
		}
		if allowed {
			return nil
		}
	}

	return fmt.Errorf("%w: user %s in room %s", errors.ErrAccessDenied, userID, roomID)
}

// Subscribe re-checks authorization every time (membership revocations are
// eventually consistent; initial admission is not), registers the session in
// the room's subscriber set, and returns the bounded recent backlog so the
// late joining client can reconstruct history without a separate request.
func (d *RoomDirectory) Subscribe(ctx context.Context, sessionID domain.SessionID, roomID domain.RoomID) ([]domain.Message, error) {
	session, ok := d.sessions.SessionOf(sessionID)
	if !ok {
		return nil, fmt.Errorf("%w: session %s", errors.ErrNotFound, sessionID)
	}

	if err := d.Authorize(ctx, session.UserID, roomID); err != nil {
		return nil, err
	}

	// Session shard first, then room shard (fixed lock order).
	d.sessions.MarkSubscribed(sessionID, roomID)

	shard := d.shardFor(roomID)
	shard.mu.Lock()
	if _, ok := shard.subscribers[roomID]; !ok {
		shard.subscribers[roomID] = make(map[domain.SessionID]domain.UserID)
	}
	shard.subscribers[roomID][sessionID] = session.UserID
	shard.mu.Unlock()

	// The session may have been evicted between the two shard writes; the
	// eviction cascade ran before the room entry existed, so undo it here.
	if _, alive := d.sessions.SessionOf(sessionID); !alive {
		shard.mu.Lock()
		if members, ok := shard.subscribers[roomID]; ok {
			delete(members, sessionID)
			if len(members) == 0 {
				delete(shard.subscribers, roomID)
			}
		}
		shard.mu.Unlock()
		return nil, fmt.Errorf("%w: session %s", errors.ErrNotFound, sessionID)
	}

	backlog, err := d.messages.Recent(roomID, d.backlogSize)
	if err != nil {
		d.log.Warn("Backlog load failed", "room", roomID, "error", err)
		return nil, err
	}
	return backlog, nil
}

// Unsubscribe is idempotent. The member_left event only goes out when the
// session was actually removed.
func (d *RoomDirectory) Unsubscribe(sessionID domain.SessionID, roomID domain.RoomID) {
	session, _ := d.sessions.SessionOf(sessionID)

	d.sessions.MarkUnsubscribed(sessionID, roomID)

	shard := d.shardFor(roomID)
	shard.mu.Lock()
	removed := false
	if members, ok := shard.subscribers[roomID]; ok {
		if _, present := members[sessionID]; present {
			delete(members, sessionID)
			removed = true
		}
		if len(members) == 0 {
			delete(shard.subscribers, roomID)
		}
	}
	shard.mu.Unlock()

	if removed {
		d.fanout.Deliver(context.Background(), d.SubscribersOf(roomID), event.MemberLeft{
			RoomID:      roomID,
			UserID:      session.UserID,
			DisplayName: session.DisplayName,
		})
	}
}

// DropSession removes an evicted session from every room it was subscribed
// to. Pure map deletion; the global offline broadcast covers the signal.
func (d *RoomDirectory) DropSession(sessionID domain.SessionID, rooms []domain.RoomID) {
	for _, roomID := range rooms {
		shard := d.shardFor(roomID)
		shard.mu.Lock()
		if members, ok := shard.subscribers[roomID]; ok {
			delete(members, sessionID)
			if len(members) == 0 {
				delete(shard.subscribers, roomID)
			}
		}
		shard.mu.Unlock()
	}
}

// SubscribersOf resolves the room's subscriber set against the session
// registry at call time. A session evicted since its subscription simply
// does not resolve, so the result is always a subset of live sessions.
func (d *RoomDirectory) SubscribersOf(roomID domain.RoomID) []contract.Subscriber {
	shard := d.shardFor(roomID)
	shard.mu.RLock()
	members, ok := shard.subscribers[roomID]
	if !ok {
		shard.mu.RUnlock()
		return nil
	}
	ids := make(map[domain.SessionID]domain.UserID, len(members))
	for sessionID, userID := range members {
		ids[sessionID] = userID
	}
	shard.mu.RUnlock()

	var subscribers []contract.Subscriber
	for sessionID, userID := range ids {
		if sink, exists := d.sessions.SinkOf(sessionID); exists {
			subscribers = append(subscribers, contract.Subscriber{
				SessionID: sessionID,
				UserID:    userID,
				Sink:      sink,
			})
		}
	}
	return subscribers
}

func (d *RoomDirectory) IsSubscriber(userID domain.UserID, roomID domain.RoomID) bool {
	shard := d.shardFor(roomID)
	shard.mu.RLock()
	defer shard.mu.RUnlock()

	members, ok := shard.subscribers[roomID]
	if !ok {
		return false
	}
	for _, owner := range members {
		if owner == userID {
			return true
		}
	}
	return false
}
