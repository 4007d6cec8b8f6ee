package runtime

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"chathub/contract"
	"chathub/domain"
	"chathub/domain/event"
)

type typingKey struct {
	room domain.RoomID
	user domain.UserID
}

type typingShard struct {
	mu      sync.Mutex
	signals map[typingKey]domain.TypingSignal
}

// TypingTracker holds the ephemeral per-room per-user typing state.
// Nothing here touches durable storage; the whole map is lost on restart by
// design. Sharded by room identifier like the directory.
type TypingTracker struct {
	shards    []*typingShard
	sessions  contract.ISessionRegistry
	directory contract.IRoomDirectory
	fanout    *Fanout
	window    time.Duration
	log       *slog.Logger
}

var _ contract.ITypingTracker = (*TypingTracker)(nil)

func NewTypingTracker(
	shardCount int,
	sessions contract.ISessionRegistry,
	directory contract.IRoomDirectory,
	fanout *Fanout,
	window time.Duration,
	log *slog.Logger,
) *TypingTracker {
	if shardCount <= 0 {
		shardCount = 16
	}
	shards := make([]*typingShard, shardCount)
	for i := range shards {
		shards[i] = &typingShard{signals: make(map[typingKey]domain.TypingSignal)}
	}
	return &TypingTracker{
		shards:    shards,
		sessions:  sessions,
		directory: directory,
		fanout:    fanout,
		window:    window,
		log:       log,
	}
}

func (t *TypingTracker) shardFor(roomID domain.RoomID) *typingShard {
	return t.shards[shardIndex(string(roomID), len(t.shards))]
}

// SetTyping upserts or deletes the signal and broadcasts the change to the
// room's current subscribers. Repeated starts refresh the timestamp but keep
// a single live signal; a stop for an absent signal broadcasts nothing.
func (t *TypingTracker) SetTyping(ctx context.Context, signal domain.TypingSignal, typing bool) {
	key := typingKey{room: signal.RoomID, user: signal.UserID}
	shard := t.shardFor(signal.RoomID)

	shard.mu.Lock()
	_, existed := shard.signals[key]
	if typing {
		shard.signals[key] = signal
	} else {
		delete(shard.signals, key)
	}
	shard.mu.Unlock()

	if !typing && !existed {
		return
	}
	t.broadcast(ctx, signal, typing)
}

// ExpireStale removes any signal older than the inactivity window and emits
// a synthetic stop for each, guarding against clients that disconnect
// without sending an explicit stop.
func (t *TypingTracker) ExpireStale(ctx context.Context, now time.Time) {
	for _, shard := range t.shards {
		var expired []domain.TypingSignal

		shard.mu.Lock()
		for key, signal := range shard.signals {
			if now.Sub(signal.At) > t.window {
				delete(shard.signals, key)
				expired = append(expired, signal)
			}
		}
		shard.mu.Unlock()

		for _, signal := range expired {
			t.log.Debug("Expiring stale typing signal", "room", signal.RoomID, "user", signal.UserID)
			t.broadcast(ctx, signal, false)
		}
	}
}

// ClearUser drops the user's signals in the given rooms, emitting stop
// events. Part of the eviction cascade.
func (t *TypingTracker) ClearUser(ctx context.Context, userID domain.UserID, rooms []domain.RoomID) {
	for _, roomID := range rooms {
		key := typingKey{room: roomID, user: userID}
		shard := t.shardFor(roomID)

		shard.mu.Lock()
		signal, existed := shard.signals[key]
		if existed {
			delete(shard.signals, key)
		}
		shard.mu.Unlock()

		if existed {
			t.broadcast(ctx, signal, false)
		}
	}
}

// StatusOf derives online status purely from the presence of live sessions.
func (t *TypingTracker) StatusOf(userID domain.UserID) bool {
	return len(t.sessions.SessionsForUser(userID)) > 0
}

func (t *TypingTracker) broadcast(ctx context.Context, signal domain.TypingSignal, started bool) {
	subscribers := t.directory.SubscribersOf(signal.RoomID)
	t.fanout.Deliver(ctx, subscribers, event.TypingChanged{Signal: signal, Started: started})
}
