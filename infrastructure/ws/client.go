package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"chathub/domain"
	"chathub/domain/event"
	"chathub/errors"
	"chathub/runtime"
	"chathub/sink"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	maxMessageSize = 64 * 1024
)

// Client owns one websocket connection and its admitted session.
// ReadPump translates inbound frames into orchestrator calls; WritePump
// drains the session sink and serializes outbound frames. The connection
// is the only writer of the socket.
type Client struct {
	conn    *websocket.Conn
	session domain.Session
	sink    *sink.SocketSink
	orch    *runtime.Orchestrator
	log     *slog.Logger
}

func NewClient(conn *websocket.Conn, session domain.Session, socketSink *sink.SocketSink, orch *runtime.Orchestrator, log *slog.Logger) *Client {
	return &Client{
		conn:    conn,
		session: session,
		sink:    socketSink,
		orch:    orch,
		log:     log.With("session", session.ID, "user", session.UserID),
	}
}

// ReadPump reads frames until the peer goes away, then evicts the session.
func (c *Client) ReadPump(ctx context.Context) {
	defer func() {
		c.orch.Disconnect(ctx, c.session.ID)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		c.orch.Touch(c.session.ID)
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Warn("Unexpected close", "error", err)
			}
			return
		}

		var evt ClientEvent
		if err := json.Unmarshal(raw, &evt); err != nil {
			c.pushError(errors.ErrValidation, "malformed event")
			continue
		}
		if err := evt.Validate(); err != nil {
			c.pushError(errors.ErrValidation, err.Error())
			continue
		}
		c.handle(ctx, evt)
	}
}

func (c *Client) handle(ctx context.Context, evt ClientEvent) {
	switch evt.Type {
	case EventJoinRoom:
		roomID := domain.RoomID(evt.RoomID)
		backlog, err := c.orch.JoinRoom(ctx, c.session.ID, roomID)
		if err != nil {
			c.pushError(err, "cannot join room "+evt.RoomID)
			return
		}
		c.sink.Push(event.RoomHistory{RoomID: roomID, Messages: backlog})

	case EventLeaveRoom:
		c.orch.LeaveRoom(c.session.ID, domain.RoomID(evt.RoomID))

	case EventSendMessage:
		cmd := domain.SendMessageCommand{
			Room:       domain.RoomID(evt.RoomID),
			SessionID:  c.session.ID,
			SenderID:   c.session.UserID,
			SenderName: c.session.DisplayName,
			Body:       evt.Body,
			Kind:       evt.MessageKind(),
			Attachment: evt.Attachment,
			CreatedAt:  time.Now(),
			Ack:        make(chan domain.Ack, 1),
		}
		message, err := c.orch.SendMessage(ctx, cmd)
		if err != nil {
			c.pushError(err, "message not delivered")
			return
		}
		c.sink.Push(event.MessageAck{Message: message})

	case EventTypingStart, EventTypingStop:
		started := evt.Type == EventTypingStart
		if err := c.orch.SetTyping(ctx, c.session.ID, domain.RoomID(evt.RoomID), started); err != nil {
			c.pushError(err, "typing signal rejected")
		}

	case EventNotificationRead:
		if err := c.orch.MarkNotificationRead(ctx, evt.NotificationID, c.session.UserID); err != nil {
			c.pushError(err, "notification not found")
		}

	case EventStatusUpdate:
		if err := c.orch.UpdateStatus(ctx, c.session.ID, evt.Status); err != nil {
			c.pushError(err, "status not updated")
		}
	}
}

// WritePump serializes sink events to the peer and keeps the connection
// alive with pings. It owns all writes to the socket.
func (c *Client) WritePump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case evt := <-c.sink.Events:
			frame, ok := FromDomainEvent(evt)
			if !ok {
				continue
			}
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(frame); err != nil {
				c.log.Debug("Write failed", "error", err)
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-ctx.Done():
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
			return
		}
	}
}

func (c *Client) pushError(err error, detail string) {
	c.sink.Push(event.ErrorRaised{Reason: errors.Reason(err), Detail: detail})
}
