// Package runtime owns the live connection state: session registry, room
// directory, typing tracker, message router and notification dispatcher.
// It orchestrates the system without containing business logic or domain rules.
package runtime

import (
	"hash/fnv"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"chathub/contract"
	"chathub/domain"
)

// sessionState is the registry's private view of one connection: the
// session snapshot, its delivery sink, and the rooms it is subscribed to.
// Other components reference sessions by identifier only.
type sessionState struct {
	session domain.Session
	sink    contract.EventSink
	rooms   map[domain.RoomID]struct{}
}

type sessionShard struct {
	mu       sync.RWMutex
	sessions map[domain.SessionID]*sessionState
	byUser   map[domain.UserID]map[domain.SessionID]struct{}
}

// SessionRegistry tracks currently connected sessions, sharded by user so
// multi-device users always land on the same shard and cross-shard
// operations can take the session shard before the room shard.
type SessionRegistry struct {
	shards []*sessionShard
	log    *slog.Logger
}

var _ contract.ISessionRegistry = (*SessionRegistry)(nil)

func NewSessionRegistry(shardCount int, log *slog.Logger) *SessionRegistry {
	if shardCount <= 0 {
		shardCount = 16
	}
	shards := make([]*sessionShard, shardCount)
	for i := range shards {
		shards[i] = &sessionShard{
			sessions: make(map[domain.SessionID]*sessionState),
			byUser:   make(map[domain.UserID]map[domain.SessionID]struct{}),
		}
	}
	return &SessionRegistry{shards: shards, log: log}
}

// newSessionID embeds the owning user so the shard can be derived from the
// session identifier alone.
func newSessionID(userID domain.UserID) domain.SessionID {
	return domain.SessionID(string(userID) + "." + uuid.NewString())
}

func userOfSession(sessionID domain.SessionID) domain.UserID {
	id := string(sessionID)
	if i := strings.LastIndex(id, "."); i > 0 {
		return domain.UserID(id[:i])
	}
	return domain.UserID(id)
}

func shardIndex(key string, count int) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(count))
}

func (r *SessionRegistry) shardForUser(userID domain.UserID) *sessionShard {
	return r.shards[shardIndex(string(userID), len(r.shards))]
}

func (r *SessionRegistry) shardForSession(sessionID domain.SessionID) *sessionShard {
	return r.shardForUser(userOfSession(sessionID))
}

// Admit registers a verified identity's connection and returns the new
// Session. The caller has already passed the auth collaborator; the registry
// never sees raw credentials.
func (r *SessionRegistry) Admit(identity domain.Identity, sink contract.EventSink) domain.Session {
	now := time.Now().UTC()
	session := domain.Session{
		ID:           newSessionID(identity.UserID),
		UserID:       identity.UserID,
		DisplayName:  identity.DisplayName,
		Capabilities: identity.Capabilities,
		ConnectedAt:  now,
		LastActivity: now,
	}

	shard := r.shardForUser(identity.UserID)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	shard.sessions[session.ID] = &sessionState{
		session: session,
		sink:    sink,
		rooms:   make(map[domain.RoomID]struct{}),
	}
	if _, ok := shard.byUser[identity.UserID]; !ok {
		shard.byUser[identity.UserID] = make(map[domain.SessionID]struct{})
	}
	shard.byUser[identity.UserID][session.ID] = struct{}{}

	return session
}

// Evict removes a session and returns the rooms it was subscribed to, for
// the directory and typing tracker to cascade the cleanup. It is idempotent:
// a second call for the same session reports ok=false and does nothing.
func (r *SessionRegistry) Evict(sessionID domain.SessionID) (domain.Session, []domain.RoomID, bool) {
	shard := r.shardForSession(sessionID)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	state, ok := shard.sessions[sessionID]
	if !ok {
		return domain.Session{}, nil, false
	}

	delete(shard.sessions, sessionID)
	if ids, ok := shard.byUser[state.session.UserID]; ok {
		delete(ids, sessionID)
		if len(ids) == 0 {
			delete(shard.byUser, state.session.UserID)
		}
	}

	rooms := make([]domain.RoomID, 0, len(state.rooms))
	for roomID := range state.rooms {
		rooms = append(rooms, roomID)
	}
	return state.session, rooms, true
}

// Touch refreshes the last-activity timestamp. Unknown sessions are ignored;
// activity refresh never fails a connection.
func (r *SessionRegistry) Touch(sessionID domain.SessionID) {
	shard := r.shardForSession(sessionID)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	if state, ok := shard.sessions[sessionID]; ok {
		state.session.LastActivity = time.Now().UTC()
	}
}

// SessionsForUser returns snapshot copies of every live session of a user,
// used by the notification dispatcher for multi-device fan-out.
func (r *SessionRegistry) SessionsForUser(userID domain.UserID) []domain.Session {
	shard := r.shardForUser(userID)
	shard.mu.RLock()
	defer shard.mu.RUnlock()

	ids, ok := shard.byUser[userID]
	if !ok {
		return nil
	}
	sessions := make([]domain.Session, 0, len(ids))
	for id := range ids {
		if state, exists := shard.sessions[id]; exists {
			sessions = append(sessions, state.session)
		}
	}
	return sessions
}

func (r *SessionRegistry) SinkOf(sessionID domain.SessionID) (contract.EventSink, bool) {
	shard := r.shardForSession(sessionID)
	shard.mu.RLock()
	defer shard.mu.RUnlock()

	state, ok := shard.sessions[sessionID]
	if !ok {
		return nil, false
	}
	return state.sink, true
}

// ForEachSink visits every connected session's sink. Used for global
// best-effort broadcasts such as online/offline presence.
func (r *SessionRegistry) ForEachSink(fn func(sessionID domain.SessionID, sink contract.EventSink)) {
	for _, shard := range r.shards {
		shard.mu.RLock()
		for id, state := range shard.sessions {
			fn(id, state.sink)
		}
		shard.mu.RUnlock()
	}
}

// MarkSubscribed records a room on the session so eviction can cascade.
// Called by the room directory, which takes the room shard after this.
func (r *SessionRegistry) MarkSubscribed(sessionID domain.SessionID, roomID domain.RoomID) {
	shard := r.shardForSession(sessionID)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	if state, ok := shard.sessions[sessionID]; ok {
		state.rooms[roomID] = struct{}{}
	}
}

func (r *SessionRegistry) MarkUnsubscribed(sessionID domain.SessionID, roomID domain.RoomID) {
	shard := r.shardForSession(sessionID)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	if state, ok := shard.sessions[sessionID]; ok {
		delete(state.rooms, roomID)
	}
}

// SessionOf returns a snapshot copy of one session.
func (r *SessionRegistry) SessionOf(sessionID domain.SessionID) (domain.Session, bool) {
	shard := r.shardForSession(sessionID)
	shard.mu.RLock()
	defer shard.mu.RUnlock()

	state, ok := shard.sessions[sessionID]
	if !ok {
		return domain.Session{}, false
	}
	return state.session, true
}
