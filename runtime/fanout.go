package runtime

import (
	"context"
	"log/slog"
	"time"

	"chathub/contract"
	"chathub/domain/event"
)

// Fanout delivers one event to multiple sinks independently.
//
// It provides best-effort delivery with no guarantees regarding retries or
// durability. A slow or unreachable sink is cut off by the per-sink timeout
// and never blocks delivery to the others; the subscriber simply misses the
// live event and relies on room history backfill on next join.
type Fanout struct {
	log     *slog.Logger
	timeout time.Duration
}

func NewFanout(log *slog.Logger, timeout time.Duration) *Fanout {
	return &Fanout{log: log, timeout: timeout}
}

// Deliver pushes the event to every subscriber concurrently and waits for
// all attempts to settle. Failures are logged, not surfaced.
func (f *Fanout) Deliver(ctx context.Context, subscribers []contract.Subscriber, e event.DomainEvent) {
	done := make(chan struct{}, len(subscribers))
	for _, sub := range subscribers {
		go func(sub contract.Subscriber) {
			defer func() { done <- struct{}{} }()
			f.deliverOne(ctx, sub.Sink, e, string(sub.SessionID))
		}(sub)
	}
	for range subscribers {
		<-done
	}
}

// DeliverSinks is Deliver for sinks without subscriber metadata
// (permanent in-process consumers like the search index).
func (f *Fanout) DeliverSinks(ctx context.Context, sinks []contract.EventSink, e event.DomainEvent) {
	for _, sink := range sinks {
		f.deliverOne(ctx, sink, e, "permanent")
	}
}

// deliverOne bounds the wait even when the sink does not honor its context,
// the way a synchronous consumer like the search index does not. The
// goroutine finishes on its own; the caller moves on.
func (f *Fanout) deliverOne(ctx context.Context, sink contract.EventSink, e event.DomainEvent, target string) {
	sinkCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	result := make(chan error, 1)
	go func() {
		result <- sink.Consume(sinkCtx, e)
	}()

	select {
	case err := <-result:
		if err != nil {
			f.log.Warn("Sink delivery failed",
				"target", target,
				"room", e.Room(),
				"error", err)
		}
	case <-sinkCtx.Done():
		f.log.Warn("Sink delivery timed out",
			"target", target,
			"room", e.Room())
	}
}
