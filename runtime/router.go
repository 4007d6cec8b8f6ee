package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"chathub/contract"
	"chathub/domain"
	"chathub/domain/event"
	"chathub/errors"
	"chathub/moderation"
	"chathub/repositories"
)

// MessageRouter drives each inbound message through
// RECEIVED -> VALIDATED -> PERSISTED -> BROADCAST -> ACKNOWLEDGED,
// with REJECTED reachable from the first two states.
//
// Ordering: rooms are assigned to workers by hash, so one room is always
// serialized on a single worker while distinct rooms proceed independently.
// Persistence strictly precedes broadcast so history and live view cannot
// diverge.
type MessageRouter struct {
	log            *slog.Logger
	directory      contract.IRoomDirectory
	messages       repositories.IMessageRepository
	rooms          repositories.IRoomRepository
	moderator      *moderation.Moderator
	fanout         *Fanout
	permanentSinks []contract.EventSink
	persistTimeout time.Duration
	commands       []chan domain.SendMessageCommand
}

func NewMessageRouter(
	log *slog.Logger,
	directory contract.IRoomDirectory,
	messages repositories.IMessageRepository,
	rooms repositories.IRoomRepository,
	moderator *moderation.Moderator,
	fanout *Fanout,
	numWorkers, bufferSize int,
	persistTimeout time.Duration,
) *MessageRouter {
	if numWorkers <= 0 {
		numWorkers = 4
	}
	commands := make([]chan domain.SendMessageCommand, numWorkers)
	for i := range commands {
		commands[i] = make(chan domain.SendMessageCommand, bufferSize)
	}
	return &MessageRouter{
		log:            log,
		directory:      directory,
		messages:       messages,
		rooms:          rooms,
		moderator:      moderator,
		fanout:         fanout,
		persistTimeout: persistTimeout,
		commands:       commands,
	}
}

// AddSinks registers permanent in-process consumers (projections, search
// index) that observe every broadcast message.
func (r *MessageRouter) AddSinks(sinks ...contract.EventSink) {
	r.permanentSinks = append(r.permanentSinks, sinks...)
}

// Dispatch routes the command to the worker owning its room.
func (r *MessageRouter) Dispatch(ctx context.Context, cmd domain.SendMessageCommand) error {
	worker := shardIndex(string(cmd.Room), len(r.commands))
	select {
	case r.commands[worker] <- cmd:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Workers returns one supervised worker per command channel.
func (r *MessageRouter) Workers() []contract.Worker {
	workers := make([]contract.Worker, len(r.commands))
	for i := range r.commands {
		workers[i] = &roomWorker{router: r, commands: r.commands[i], log: r.log}
	}
	return workers
}

var _ contract.Worker = (*roomWorker)(nil)

type roomWorker struct {
	router   *MessageRouter
	commands chan domain.SendMessageCommand
	log      *slog.Logger
}

func (w *roomWorker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Stopping room worker")
			return ctx.Err()
		case cmd, ok := <-w.commands:
			if !ok {
				return nil
			}
			w.router.process(ctx, cmd)
		}
	}
}

func (r *MessageRouter) process(ctx context.Context, cmd domain.SendMessageCommand) {
	// RECEIVED -> VALIDATED
	if !r.directory.IsSubscriber(cmd.SenderID, cmd.Room) {
		r.reject(cmd, fmt.Errorf("%w: user %s room %s", errors.ErrNotInRoom, cmd.SenderID, cmd.Room))
		return
	}
	if err := validateAttachment(cmd.Kind, cmd.Attachment); err != nil {
		r.reject(cmd, err)
		return
	}

	body := r.moderator.Censor(cmd.Body)
	message := domain.Message{
		// v7 so the identifier itself is time ordered, matching the key scheme.
		ID:         uuid.Must(uuid.NewV7()),
		RoomID:     cmd.Room,
		SenderID:   cmd.SenderID,
		SenderName: cmd.SenderName,
		Body:       body,
		Kind:       cmd.Kind,
		Attachment: cmd.Attachment,
		Lang:       moderation.DetectLanguage(body),
		CreatedAt:  time.Now().UTC(),
	}

	// VALIDATED -> PERSISTED, bounded so a slow store cannot stall the room.
	if err := r.persist(ctx, message); err != nil {
		r.reject(cmd, err)
		return
	}

	if err := r.rooms.SetLastMessage(message.RoomID, message.ID.String()); err != nil {
		r.log.Warn("Last-message pointer update failed", "room", message.RoomID, "error", err)
	}

	// PERSISTED -> BROADCAST: subscribers are computed now, not at
	// validation time, to include sessions that joined in between.
	broadcast := event.MessageBroadcast{Message: message}
	r.fanout.Deliver(ctx, r.directory.SubscribersOf(message.RoomID), broadcast)
	r.fanout.DeliverSinks(ctx, r.permanentSinks, broadcast)

	// BROADCAST -> ACKNOWLEDGED
	cmd.Ack <- domain.Ack{Message: message}
}

func (r *MessageRouter) persist(ctx context.Context, message domain.Message) error {
	persistCtx, cancel := context.WithTimeout(ctx, r.persistTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- r.messages.StoreMessage(message)
	}()

	select {
	case err := <-done:
		return err
	case <-persistCtx.Done():
		return fmt.Errorf("%w: append timed out after %s", errors.ErrPersistence, r.persistTimeout)
	}
}

func (r *MessageRouter) reject(cmd domain.SendMessageCommand, err error) {
	r.log.Info("Message rejected",
		"room", cmd.Room,
		"sender", cmd.SenderID,
		"reason", errors.Reason(err))
	cmd.Ack <- domain.Ack{Err: err}
}

// validateAttachment checks the declared metadata of image and file
// messages: the mime type must be a registered one, and image messages must
// actually declare an image type.
func validateAttachment(kind domain.MessageKind, attachment *domain.Attachment) error {
	switch kind {
	case domain.MessageKindImage, domain.MessageKindFile:
		if attachment == nil {
			return fmt.Errorf("%w: %s message without attachment metadata", errors.ErrValidation, kind)
		}
		resolved := mimetype.Lookup(attachment.MimeType)
		if resolved == nil {
			return fmt.Errorf("%w: unknown mime type %q", errors.ErrValidation, attachment.MimeType)
		}
		if kind == domain.MessageKindImage && !strings.HasPrefix(resolved.String(), "image/") {
			return fmt.Errorf("%w: mime type %q is not an image", errors.ErrValidation, attachment.MimeType)
		}
	}
	return nil
}
