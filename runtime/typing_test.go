package runtime

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"chathub/domain"
	"chathub/domain/event"
)

type typingFixture struct {
	registry  *SessionRegistry
	directory *RoomDirectory
	tracker   *TypingTracker
}

func newTypingFixture(t *testing.T, window time.Duration, rooms ...domain.Room) *typingFixture {
	t.Helper()
	log := slog.New(slog.DiscardHandler)
	registry := NewSessionRegistry(16, log)
	fanout := NewFanout(log, time.Second)
	directory := NewRoomDirectory(16, registry, newMemoryRoomRepo(rooms...), newMemoryMessageRepo(), denyAll{}, fanout, 50, log)
	tracker := NewTypingTracker(16, registry, directory, fanout, window, log)
	return &typingFixture{registry: registry, directory: directory, tracker: tracker}
}

func typingEvents(sink *recordingSink) []event.TypingChanged {
	var out []event.TypingChanged
	for _, e := range sink.Events() {
		if typing, ok := e.(event.TypingChanged); ok {
			out = append(out, typing)
		}
	}
	return out
}

func signalFor(session domain.Session, roomID domain.RoomID, at time.Time) domain.TypingSignal {
	return domain.TypingSignal{
		RoomID:      roomID,
		UserID:      session.UserID,
		DisplayName: session.DisplayName,
		At:          at,
	}
}

func TestTypingTracker_Start_Reaches_Subscribers(t *testing.T) {
	req := require.New(t)
	fixture := newTypingFixture(t, 6*time.Second, groupRoom("general", "alice", "bob"))

	bobSink := &recordingSink{}
	alice := fixture.registry.Admit(identityOf("alice"), &recordingSink{})
	bob := fixture.registry.Admit(identityOf("bob"), bobSink)
	_, err := fixture.directory.Subscribe(context.Background(), alice.ID, "general")
	req.NoError(err)
	_, err = fixture.directory.Subscribe(context.Background(), bob.ID, "general")
	req.NoError(err)

	// When alice starts typing
	fixture.tracker.SetTyping(context.Background(), signalFor(alice, "general", time.Now()), true)

	// Then bob sees the start signal
	events := typingEvents(bobSink)
	req.Len(events, 1)
	req.True(events[0].Started)
	req.Equal(domain.UserID("alice"), events[0].Signal.UserID)
}

func TestTypingTracker_Repeated_Starts_Keep_One_Signal(t *testing.T) {
	req := require.New(t)
	fixture := newTypingFixture(t, 6*time.Second, groupRoom("general", "alice", "bob"))

	bobSink := &recordingSink{}
	alice := fixture.registry.Admit(identityOf("alice"), &recordingSink{})
	bob := fixture.registry.Admit(identityOf("bob"), bobSink)
	_, err := fixture.directory.Subscribe(context.Background(), alice.ID, "general")
	req.NoError(err)
	_, err = fixture.directory.Subscribe(context.Background(), bob.ID, "general")
	req.NoError(err)

	// When alice starts typing three times then stops once
	for i := 0; i < 3; i++ {
		fixture.tracker.SetTyping(context.Background(), signalFor(alice, "general", time.Now()), true)
	}
	fixture.tracker.SetTyping(context.Background(), signalFor(alice, "general", time.Now()), false)

	// Then a single stop suffices, there was only one live signal
	events := typingEvents(bobSink)
	req.Len(events, 4)
	req.False(events[3].Started)

	// And a second stop broadcasts nothing
	fixture.tracker.SetTyping(context.Background(), signalFor(alice, "general", time.Now()), false)
	req.Len(typingEvents(bobSink), 4)
}

func TestTypingTracker_ExpireStale_Emits_Synthetic_Stop(t *testing.T) {
	req := require.New(t)
	fixture := newTypingFixture(t, 6*time.Second, groupRoom("general", "alice", "bob"))

	bobSink := &recordingSink{}
	alice := fixture.registry.Admit(identityOf("alice"), &recordingSink{})
	bob := fixture.registry.Admit(identityOf("bob"), bobSink)
	_, err := fixture.directory.Subscribe(context.Background(), alice.ID, "general")
	req.NoError(err)
	_, err = fixture.directory.Subscribe(context.Background(), bob.ID, "general")
	req.NoError(err)

	// Given alice started typing ten seconds ago
	start := time.Now().Add(-10 * time.Second)
	fixture.tracker.SetTyping(context.Background(), signalFor(alice, "general", start), true)

	// When the sweeper runs
	fixture.tracker.ExpireStale(context.Background(), time.Now())

	// Then bob sees a synthetic stop
	events := typingEvents(bobSink)
	req.Len(events, 2)
	req.False(events[1].Started)

	// And a second sweep finds nothing left
	fixture.tracker.ExpireStale(context.Background(), time.Now())
	req.Len(typingEvents(bobSink), 2)
}

func TestTypingTracker_ExpireStale_Keeps_Fresh_Signals(t *testing.T) {
	req := require.New(t)
	fixture := newTypingFixture(t, 6*time.Second, groupRoom("general", "alice", "bob"))

	bobSink := &recordingSink{}
	alice := fixture.registry.Admit(identityOf("alice"), &recordingSink{})
	bob := fixture.registry.Admit(identityOf("bob"), bobSink)
	_, err := fixture.directory.Subscribe(context.Background(), alice.ID, "general")
	req.NoError(err)
	_, err = fixture.directory.Subscribe(context.Background(), bob.ID, "general")
	req.NoError(err)

	fixture.tracker.SetTyping(context.Background(), signalFor(alice, "general", time.Now()), true)

	fixture.tracker.ExpireStale(context.Background(), time.Now())

	// Only the original start, no synthetic stop
	req.Len(typingEvents(bobSink), 1)
}

func TestTypingTracker_ClearUser_On_Eviction(t *testing.T) {
	req := require.New(t)
	fixture := newTypingFixture(t, 6*time.Second, groupRoom("general", "alice", "bob"))

	bobSink := &recordingSink{}
	alice := fixture.registry.Admit(identityOf("alice"), &recordingSink{})
	bob := fixture.registry.Admit(identityOf("bob"), bobSink)
	_, err := fixture.directory.Subscribe(context.Background(), alice.ID, "general")
	req.NoError(err)
	_, err = fixture.directory.Subscribe(context.Background(), bob.ID, "general")
	req.NoError(err)

	fixture.tracker.SetTyping(context.Background(), signalFor(alice, "general", time.Now()), true)

	// When alice's typing state is cleared by the eviction cascade
	fixture.tracker.ClearUser(context.Background(), "alice", []domain.RoomID{"general"})

	// Then the room observes the stop
	events := typingEvents(bobSink)
	req.Len(events, 2)
	req.False(events[1].Started)
}

func TestTypingTracker_StatusOf_Follows_Sessions(t *testing.T) {
	req := require.New(t)
	fixture := newTypingFixture(t, 6*time.Second)

	// Given no session
	req.False(fixture.tracker.StatusOf("alice"))

	// When a session is admitted
	session := fixture.registry.Admit(identityOf("alice"), &recordingSink{})
	req.True(fixture.tracker.StatusOf("alice"))

	// And goes away
	fixture.registry.Evict(session.ID)
	req.False(fixture.tracker.StatusOf("alice"))
}
