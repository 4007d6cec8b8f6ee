package ws

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"chathub/domain"
	"chathub/domain/event"
)

// Client -> server event types.
const (
	EventJoinRoom         = "join_room"
	EventLeaveRoom        = "leave_room"
	EventSendMessage      = "send_message"
	EventTypingStart      = "typing_start"
	EventTypingStop       = "typing_stop"
	EventNotificationRead = "notification_read"
	EventStatusUpdate     = "status_update"
)

// Server -> client event types.
const (
	EventMessageReceived  = "message_received"
	EventMessageAck       = "message_ack"
	EventRoomHistory      = "room_history"
	EventOnlineStatus     = "online_status"
	EventNotificationSent = "notification_sent"
	EventMemberLeft       = "member_left"
	EventError            = "error"
)

var validate = validator.New()

// ClientEvent is the inbound JSON envelope of the live connection.
type ClientEvent struct {
	Type           string             `json:"type" validate:"required,oneof=join_room leave_room send_message typing_start typing_stop notification_read status_update"`
	RoomID         string             `json:"room_id,omitempty"`
	Body           string             `json:"body,omitempty"`
	Kind           string             `json:"kind,omitempty"`
	Attachment     *domain.Attachment `json:"attachment,omitempty"`
	NotificationID string             `json:"notification_id,omitempty"`
	Status         string             `json:"status,omitempty"`
}

// Validate checks the envelope and the per-type required fields.
func (e ClientEvent) Validate() error {
	if err := validate.Struct(e); err != nil {
		return err
	}
	switch e.Type {
	case EventJoinRoom, EventLeaveRoom, EventTypingStart, EventTypingStop:
		if e.RoomID == "" {
			return fmt.Errorf("%s requires room_id", e.Type)
		}
	case EventSendMessage:
		if e.RoomID == "" {
			return fmt.Errorf("%s requires room_id", e.Type)
		}
		if e.Body == "" && e.Attachment == nil {
			return fmt.Errorf("%s requires a body or an attachment", e.Type)
		}
	case EventNotificationRead:
		if e.NotificationID == "" {
			return fmt.Errorf("%s requires notification_id", e.Type)
		}
	case EventStatusUpdate:
		if e.Status == "" {
			return fmt.Errorf("%s requires status", e.Type)
		}
	}
	return nil
}

// MessageKind defaults to text when the client omits it.
func (e ClientEvent) MessageKind() domain.MessageKind {
	if e.Kind == "" {
		return domain.MessageKindText
	}
	return domain.MessageKind(e.Kind)
}

// ServerEvent is the outbound JSON envelope.
type ServerEvent struct {
	Type         string               `json:"type"`
	RoomID       string               `json:"room_id,omitempty"`
	Message      *domain.Message      `json:"message,omitempty"`
	Messages     []domain.Message     `json:"messages,omitempty"`
	UserID       string               `json:"user_id,omitempty"`
	DisplayName  string               `json:"display_name,omitempty"`
	Status       string               `json:"status,omitempty"`
	Notification *domain.Notification `json:"notification,omitempty"`
	Reason       string               `json:"reason,omitempty"`
	Detail       string               `json:"detail,omitempty"`
}

// FromDomainEvent converts a fanned-out domain event into its wire envelope.
// Unknown events are skipped rather than leaked to the client.
func FromDomainEvent(e event.DomainEvent) (ServerEvent, bool) {
	switch evt := e.(type) {
	case event.MessageBroadcast:
		message := evt.Message
		return ServerEvent{Type: EventMessageReceived, RoomID: string(message.RoomID), Message: &message}, true
	case event.MessageAck:
		message := evt.Message
		return ServerEvent{Type: EventMessageAck, RoomID: string(message.RoomID), Message: &message}, true
	case event.RoomHistory:
		return ServerEvent{Type: EventRoomHistory, RoomID: string(evt.RoomID), Messages: evt.Messages}, true
	case event.TypingChanged:
		eventType := EventTypingStop
		if evt.Started {
			eventType = EventTypingStart
		}
		return ServerEvent{
			Type:        eventType,
			RoomID:      string(evt.Signal.RoomID),
			UserID:      string(evt.Signal.UserID),
			DisplayName: evt.Signal.DisplayName,
		}, true
	case event.MemberLeft:
		return ServerEvent{
			Type:        EventMemberLeft,
			RoomID:      string(evt.RoomID),
			UserID:      string(evt.UserID),
			DisplayName: evt.DisplayName,
		}, true
	case event.OnlineStatus:
		return ServerEvent{
			Type:        EventOnlineStatus,
			UserID:      string(evt.UserID),
			DisplayName: evt.DisplayName,
			Status:      evt.Status,
		}, true
	case event.NotificationSent:
		notification := evt.Notification
		return ServerEvent{Type: EventNotificationSent, Notification: &notification}, true
	case event.ErrorRaised:
		return ServerEvent{Type: EventError, Reason: evt.Reason, Detail: evt.Detail}, true
	default:
		return ServerEvent{}, false
	}
}
