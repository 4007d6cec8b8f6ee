//go:generate go run go.uber.org/mock/mockgen -source=notification.go -destination=../mocks/mock_notification_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"chathub/contract"
	"chathub/domain"
	"chathub/errors"
)

const notificationCollection = "notif"

type INotificationRepository interface {
	Store(n domain.Notification) error
	ForUser(userID domain.UserID, limit int) ([]domain.Notification, error)
	MarkDelivered(n domain.Notification) error
	MarkRead(notificationID string, userID domain.UserID) error
}

// NotificationRepository keys notifications by target user so a device
// coming back online fetches its pending entries with one prefix scan.
type NotificationRepository struct {
	store contract.RecordStore
	log   *slog.Logger
}

func NewNotificationRepository(store contract.RecordStore, log *slog.Logger) NotificationRepository {
	return NotificationRepository{store: store, log: log}
}

func notificationKey(userID domain.UserID, at time.Time, id uuid.UUID) string {
	return fmt.Sprintf("%s:%019d:%s", userID, at.UnixNano(), id)
}

func (n NotificationRepository) Store(notification domain.Notification) error {
	key := notificationKey(notification.UserID, notification.CreatedAt, notification.ID)
	return n.store.CreateRecord(notificationCollection, key, notification)
}

// ForUser returns the newest notifications of a user, newest first.
func (n NotificationRepository) ForUser(userID domain.UserID, limit int) ([]domain.Notification, error) {
	records, _, err := n.store.Query(notificationCollection, string(userID)+":", nil, limit, true)
	if err != nil {
		return nil, err
	}

	notifications := make([]domain.Notification, 0, len(records))
	for _, record := range records {
		var notification domain.Notification
		if err := json.Unmarshal(record.Value, &notification); err != nil {
			return nil, err
		}
		notifications = append(notifications, notification)
	}
	return notifications, nil
}

func (n NotificationRepository) MarkDelivered(notification domain.Notification) error {
	key := notificationKey(notification.UserID, notification.CreatedAt, notification.ID)
	return n.mutate(key, func(current domain.Notification) domain.Notification {
		current.Delivered = true
		return current
	})
}

// MarkRead fails with NotFound when the notification does not exist under
// the caller's own prefix, so a user cannot mark another user's entries.
func (n NotificationRepository) MarkRead(notificationID string, userID domain.UserID) error {
	key, err := n.findKey(userID, notificationID)
	if err != nil {
		return err
	}
	return n.mutate(key, func(current domain.Notification) domain.Notification {
		current.Delivered = true
		current.Read = true
		return current
	})
}

func (n NotificationRepository) findKey(userID domain.UserID, notificationID string) (string, error) {
	records, _, err := n.store.Query(notificationCollection, string(userID)+":", nil, 0, true)
	if err != nil {
		return "", err
	}
	for _, record := range records {
		if strings.HasSuffix(record.Key, ":"+notificationID) {
			return record.Key, nil
		}
	}
	return "", fmt.Errorf("%w: notification %s", errors.ErrNotFound, notificationID)
}

func (n NotificationRepository) mutate(key string, fn func(domain.Notification) domain.Notification) error {
	return n.store.TransactionalUpdate(notificationCollection, key, func(current []byte) (any, error) {
		if current == nil {
			return nil, fmt.Errorf("%w: notification record %s", errors.ErrNotFound, key)
		}
		var notification domain.Notification
		if err := json.Unmarshal(current, &notification); err != nil {
			return nil, err
		}
		return fn(notification), nil
	})
}
