package sink

import (
	"context"
	"log/slog"

	"chathub/contract"
	"chathub/domain/event"
)

var _ contract.EventSink = (*SocketSink)(nil)

// SocketSink bridges the fan-out path and one websocket connection.
// Consume is called by fan-out; the write pump of the connection drains
// Events and pushes frames to the peer.
type SocketSink struct {
	Events chan event.DomainEvent
	log    *slog.Logger
}

func NewSocketSink(bufferSize int, log *slog.Logger) *SocketSink {
	return &SocketSink{
		Events: make(chan event.DomainEvent, bufferSize),
		log:    log,
	}
}

// Consume hands the event to the connection's channel. A full buffer means
// the peer cannot keep up; the event is dropped rather than blocking the
// room, and the client recovers through history backfill.
func (s *SocketSink) Consume(ctx context.Context, e event.DomainEvent) error {
	select {
	case s.Events <- e:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		s.log.Debug("Connection buffer full, dropping event", "room", e.Room())
		return nil
	}
}

// Push enqueues a direct reply (ack, history, error) on the same channel as
// fanned-out events, preserving per-connection ordering.
func (s *SocketSink) Push(e event.DomainEvent) {
	select {
	case s.Events <- e:
	default:
		s.log.Debug("Connection buffer full, dropping direct event", "room", e.Room())
	}
}
