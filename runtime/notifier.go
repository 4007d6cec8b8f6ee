package runtime

import (
	"context"
	"log/slog"
	"sync"

	"chathub/contract"
	"chathub/domain"
	"chathub/domain/event"
	"chathub/repositories"
)

// NotificationDispatcher delivers point-to-point events to every active
// session of a target user. Durability precedes delivery, mirroring the
// message router: the notification is persisted first, then pushed live;
// absence of active sessions is not an error.
type NotificationDispatcher struct {
	log           *slog.Logger
	sessions      contract.ISessionRegistry
	notifications repositories.INotificationRepository
	fanout        *Fanout
}

var _ contract.INotificationDispatcher = (*NotificationDispatcher)(nil)

func NewNotificationDispatcher(
	log *slog.Logger,
	sessions contract.ISessionRegistry,
	notifications repositories.INotificationRepository,
	fanout *Fanout,
) *NotificationDispatcher {
	return &NotificationDispatcher{
		log:           log,
		sessions:      sessions,
		notifications: notifications,
		fanout:        fanout,
	}
}

func (d *NotificationDispatcher) Send(ctx context.Context, n domain.Notification) error {
	if err := d.notifications.Store(n); err != nil {
		return err
	}

	targets := d.sessions.SessionsForUser(n.UserID)
	if len(targets) == 0 {
		// Left for asynchronous pull via the out-of-band query path.
		return nil
	}

	subscribers := make([]contract.Subscriber, 0, len(targets))
	for _, session := range targets {
		if sink, ok := d.sessions.SinkOf(session.ID); ok {
			subscribers = append(subscribers, contract.Subscriber{
				SessionID: session.ID,
				UserID:    session.UserID,
				Sink:      sink,
			})
		}
	}
	d.fanout.Deliver(ctx, subscribers, event.NotificationSent{Notification: n})

	if err := d.notifications.MarkDelivered(n); err != nil {
		d.log.Warn("Delivered flag update failed", "notification", n.ID, "error", err)
	}
	return nil
}

func (d *NotificationDispatcher) MarkRead(ctx context.Context, notificationID string, userID domain.UserID) error {
	return d.notifications.MarkRead(notificationID, userID)
}

// FanOut applies Send to each target independently; a failure for one target
// never aborts the others. The aggregate result reports per-target outcome.
func (d *NotificationDispatcher) FanOut(ctx context.Context, targets []domain.UserID, build func(domain.UserID) domain.Notification) map[domain.UserID]error {
	results := make(map[domain.UserID]error, len(targets))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, target := range targets {
		wg.Add(1)
		go func(target domain.UserID) {
			defer wg.Done()
			err := d.Send(ctx, build(target))
			mu.Lock()
			results[target] = err
			mu.Unlock()
		}(target)
	}
	wg.Wait()
	return results
}
