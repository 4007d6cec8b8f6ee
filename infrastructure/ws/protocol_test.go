package ws

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"chathub/domain"
	"chathub/domain/event"
)

func TestClientEvent_Validate(t *testing.T) {
	tests := []struct {
		name    string
		event   ClientEvent
		wantErr bool
	}{
		{name: "join with room", event: ClientEvent{Type: EventJoinRoom, RoomID: "general"}},
		{name: "join without room", event: ClientEvent{Type: EventJoinRoom}, wantErr: true},
		{name: "message with body", event: ClientEvent{Type: EventSendMessage, RoomID: "general", Body: "hi"}},
		{name: "message with attachment only", event: ClientEvent{
			Type:       EventSendMessage,
			RoomID:     "general",
			Kind:       string(domain.MessageKindImage),
			Attachment: &domain.Attachment{Name: "cat.png", MimeType: "image/png"},
		}},
		{name: "message without body or attachment", event: ClientEvent{Type: EventSendMessage, RoomID: "general"}, wantErr: true},
		{name: "typing without room", event: ClientEvent{Type: EventTypingStart}, wantErr: true},
		{name: "notification read", event: ClientEvent{Type: EventNotificationRead, NotificationID: "abc"}},
		{name: "notification read without id", event: ClientEvent{Type: EventNotificationRead}, wantErr: true},
		{name: "status update without status", event: ClientEvent{Type: EventStatusUpdate}, wantErr: true},
		{name: "unknown type", event: ClientEvent{Type: "self_destruct"}, wantErr: true},
		{name: "empty type", event: ClientEvent{}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.event.Validate()
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestClientEvent_MessageKind_Defaults_To_Text(t *testing.T) {
	req := require.New(t)

	req.Equal(domain.MessageKindText, ClientEvent{Type: EventSendMessage}.MessageKind())
	req.Equal(domain.MessageKindImage, ClientEvent{Type: EventSendMessage, Kind: "image"}.MessageKind())
}

func TestFromDomainEvent_Maps_Known_Events(t *testing.T) {
	req := require.New(t)

	message := domain.Message{ID: uuid.New(), RoomID: "general", SenderID: "alice", Body: "hi"}

	broadcast, ok := FromDomainEvent(event.MessageBroadcast{Message: message})
	req.True(ok)
	req.Equal(EventMessageReceived, broadcast.Type)
	req.Equal("general", broadcast.RoomID)
	req.Equal(message.ID, broadcast.Message.ID)

	ack, ok := FromDomainEvent(event.MessageAck{Message: message})
	req.True(ok)
	req.Equal(EventMessageAck, ack.Type)

	started, ok := FromDomainEvent(event.TypingChanged{
		Signal:  domain.TypingSignal{RoomID: "general", UserID: "alice", DisplayName: "Alice"},
		Started: true,
	})
	req.True(ok)
	req.Equal(EventTypingStart, started.Type)
	req.Equal("alice", started.UserID)

	stopped, ok := FromDomainEvent(event.TypingChanged{
		Signal: domain.TypingSignal{RoomID: "general", UserID: "alice"},
	})
	req.True(ok)
	req.Equal(EventTypingStop, stopped.Type)

	raised, ok := FromDomainEvent(event.ErrorRaised{Reason: "NotInRoom", Detail: "join first"})
	req.True(ok)
	req.Equal(EventError, raised.Type)
	req.Equal("NotInRoom", raised.Reason)
}

func TestFromDomainEvent_Skips_Unknown_Events(t *testing.T) {
	// Given an event type with no wire mapping
	type internalEvent struct{ event.DomainEvent }

	// Then it is skipped instead of serialized
	_, ok := FromDomainEvent(internalEvent{})
	require.False(t, ok)
}
