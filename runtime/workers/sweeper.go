package workers

import (
	"context"
	"log/slog"
	"time"

	"chathub/contract"
)

var _ contract.Worker = (*SweeperWorker)(nil)

// SweeperWorker periodically expires stale typing signals so a client that
// disconnected without an explicit stop never leaves a ghost indicator.
type SweeperWorker struct {
	typing   contract.ITypingTracker
	interval time.Duration
	log      *slog.Logger
}

func NewSweeperWorker(typing contract.ITypingTracker, interval time.Duration, log *slog.Logger) *SweeperWorker {
	return &SweeperWorker{typing: typing, interval: interval, log: log}
}

func (w *SweeperWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Stopping typing sweeper")
			return ctx.Err()
		case now := <-ticker.C:
			w.typing.ExpireStale(ctx, now)
		}
	}
}
