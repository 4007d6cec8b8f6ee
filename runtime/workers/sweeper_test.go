package workers

import (
	"context"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"chathub/domain"
)

type countingTracker struct {
	sweeps atomic.Int32
}

func (t *countingTracker) SetTyping(context.Context, domain.TypingSignal, bool) {}
func (t *countingTracker) ExpireStale(_ context.Context, _ time.Time) {
	t.sweeps.Add(1)
}
func (t *countingTracker) ClearUser(context.Context, domain.UserID, []domain.RoomID) {}
func (t *countingTracker) StatusOf(domain.UserID) bool                              { return false }

func TestSweeperWorker_Ticks_Until_Canceled(t *testing.T) {
	req := require.New(t)
	tracker := &countingTracker{}
	worker := NewSweeperWorker(tracker, 20*time.Millisecond, slog.Default())

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()

	err := worker.Run(ctx)

	// Then the worker swept a few times and left on cancellation
	req.ErrorIs(err, context.DeadlineExceeded)
	req.GreaterOrEqual(tracker.sweeps.Load(), int32(3))
}
