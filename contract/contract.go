//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"
	"time"

	"chathub/domain"
	"chathub/domain/event"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// Worker doesn't protect itself.
// Can be silly, focused.
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes, avoiding the need
// for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// EventSink is one direction of delivery towards a connected session or an
// in-process consumer (projection, search index). Consume must honor ctx
// cancellation; fan-out callers bound it with a delivery timeout.
type EventSink interface {
	Consume(ctx context.Context, e event.DomainEvent) error
}

// ISessionRegistry owns the set of currently connected sessions.
// It exposes identifier-based lookups only, never embedded references.
type ISessionRegistry interface {
	Admit(identity domain.Identity, sink EventSink) domain.Session
	Evict(sessionID domain.SessionID) (domain.Session, []domain.RoomID, bool)
	Touch(sessionID domain.SessionID)
	SessionsForUser(userID domain.UserID) []domain.Session
	SessionOf(sessionID domain.SessionID) (domain.Session, bool)
	SinkOf(sessionID domain.SessionID) (EventSink, bool)
	ForEachSink(fn func(sessionID domain.SessionID, sink EventSink))
	MarkSubscribed(sessionID domain.SessionID, roomID domain.RoomID)
	MarkUnsubscribed(sessionID domain.SessionID, roomID domain.RoomID)
}

// IRoomDirectory owns room-to-subscriber mapping and room authorization.
type IRoomDirectory interface {
	Authorize(ctx context.Context, userID domain.UserID, roomID domain.RoomID) error
	Subscribe(ctx context.Context, sessionID domain.SessionID, roomID domain.RoomID) ([]domain.Message, error)
	Unsubscribe(sessionID domain.SessionID, roomID domain.RoomID)
	DropSession(sessionID domain.SessionID, rooms []domain.RoomID)
	SubscribersOf(roomID domain.RoomID) []Subscriber
	IsSubscriber(userID domain.UserID, roomID domain.RoomID) bool
}

// Subscriber pairs a live session identifier with its delivery sink.
type Subscriber struct {
	SessionID domain.SessionID
	UserID    domain.UserID
	Sink      EventSink
}

type ITypingTracker interface {
	SetTyping(ctx context.Context, signal domain.TypingSignal, typing bool)
	ExpireStale(ctx context.Context, now time.Time)
	ClearUser(ctx context.Context, userID domain.UserID, rooms []domain.RoomID)
	StatusOf(userID domain.UserID) bool
}

type INotificationDispatcher interface {
	Send(ctx context.Context, n domain.Notification) error
	MarkRead(ctx context.Context, notificationID string, userID domain.UserID) error
	FanOut(ctx context.Context, targets []domain.UserID, build func(domain.UserID) domain.Notification) map[domain.UserID]error
}

// IdentityVerifier is the external auth collaborator, called once per
// connection admission.
type IdentityVerifier interface {
	VerifyIdentity(ctx context.Context, credential string) (domain.Identity, error)
}

// CapabilityChecker is the external permission collaborator, consulted for
// open-community room authorization.
type CapabilityChecker interface {
	HasCapability(ctx context.Context, userID domain.UserID, capability domain.Capability) (bool, error)
}

// Record is one raw entry of the persistence collaborator.
type Record struct {
	Key   string
	Value []byte
}

// RecordStore is the durable source of truth for rooms, messages and
// notifications. Keys within a collection sort lexicographically; Query
// walks a prefix with an optional exclusive cursor.
type RecordStore interface {
	CreateRecord(collection, key string, record any) error
	GetRecord(collection, key string, out any) error
	Query(collection, prefix string, cursor *string, limit int, reverse bool) ([]Record, *string, error)
	TransactionalUpdate(collection, key string, mutate func(current []byte) (any, error)) error
}
