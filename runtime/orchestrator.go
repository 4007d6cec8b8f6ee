package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"chathub/contract"
	"chathub/domain"
	"chathub/domain/event"
	"chathub/errors"
	"chathub/runtime/workers"
)

// Options carries the runtime knobs of the orchestrator's workers.
type Options struct {
	HandshakeTimeout time.Duration
	AckTimeout       time.Duration
	SweepInterval    time.Duration
	HealthInterval   time.Duration
}

// Orchestrator wires the registry, directory, typing tracker, router and
// dispatcher together and owns their supervised workers. The live and REST
// surfaces talk to the core through it.
type Orchestrator struct {
	log        *slog.Logger
	supervisor contract.ISupervisor
	sessions   contract.ISessionRegistry
	directory  contract.IRoomDirectory
	typing     contract.ITypingTracker
	router     *MessageRouter
	notifier   contract.INotificationDispatcher
	verifier   contract.IdentityVerifier
	fanout     *Fanout
	opts       Options
}

func NewOrchestrator(
	log *slog.Logger,
	supervisor contract.ISupervisor,
	sessions contract.ISessionRegistry,
	directory contract.IRoomDirectory,
	typing contract.ITypingTracker,
	router *MessageRouter,
	notifier contract.INotificationDispatcher,
	verifier contract.IdentityVerifier,
	fanout *Fanout,
	opts Options,
) *Orchestrator {
	return &Orchestrator{
		log:        log,
		supervisor: supervisor,
		sessions:   sessions,
		directory:  directory,
		typing:     typing,
		router:     router,
		notifier:   notifier,
		verifier:   verifier,
		fanout:     fanout,
		opts:       opts,
	}
}

// Connect verifies the credential with the auth collaborator within a
// bounded timeout and admits the connection. No Session exists until
// verification succeeds.
func (o *Orchestrator) Connect(ctx context.Context, credential string, sink contract.EventSink) (domain.Session, error) {
	verifyCtx, cancel := context.WithTimeout(ctx, o.opts.HandshakeTimeout)
	defer cancel()

	identity, err := o.verifier.VerifyIdentity(verifyCtx, credential)
	if err != nil {
		return domain.Session{}, err
	}

	session := o.sessions.Admit(identity, sink)
	o.log.Info(fmt.Sprintf("Session %s admitted for user %s", session.ID, session.UserID))

	o.broadcastPresence(ctx, session, true)
	return session, nil
}

// Disconnect runs the eviction cascade exactly once: the session leaves
// every room's subscriber set, its typing signals are cleared, and an
// offline presence event goes out once no session of the user remains.
func (o *Orchestrator) Disconnect(ctx context.Context, sessionID domain.SessionID) {
	session, rooms, ok := o.sessions.Evict(sessionID)
	if !ok {
		return
	}
	o.log.Info(fmt.Sprintf("Session %s evicted, cleaning %d room subscriptions", sessionID, len(rooms)))

	o.directory.DropSession(sessionID, rooms)
	o.typing.ClearUser(ctx, session.UserID, rooms)

	if len(o.sessions.SessionsForUser(session.UserID)) == 0 {
		o.broadcastPresence(ctx, session, false)
	}
}

// JoinRoom subscribes the session and returns the backlog for the initial
// room_history payload.
func (o *Orchestrator) JoinRoom(ctx context.Context, sessionID domain.SessionID, roomID domain.RoomID) ([]domain.Message, error) {
	o.sessions.Touch(sessionID)
	return o.directory.Subscribe(ctx, sessionID, roomID)
}

func (o *Orchestrator) LeaveRoom(sessionID domain.SessionID, roomID domain.RoomID) {
	o.sessions.Touch(sessionID)
	o.directory.Unsubscribe(sessionID, roomID)
}

// SendMessage dispatches the command to the room's worker and waits for the
// synchronous acknowledgment carrying the persisted message.
func (o *Orchestrator) SendMessage(ctx context.Context, cmd domain.SendMessageCommand) (domain.Message, error) {
	o.sessions.Touch(cmd.SessionID)
	if cmd.Ack == nil {
		cmd.Ack = make(chan domain.Ack, 1)
	}

	if err := o.router.Dispatch(ctx, cmd); err != nil {
		return domain.Message{}, err
	}

	select {
	case ack := <-cmd.Ack:
		return ack.Message, ack.Err
	case <-ctx.Done():
		return domain.Message{}, ctx.Err()
	case <-time.After(o.opts.AckTimeout):
		return domain.Message{}, fmt.Errorf("%w: acknowledgment timed out", errors.ErrPersistence)
	}
}

// SetTyping emits the ephemeral start/stop signal for a subscribed session.
func (o *Orchestrator) SetTyping(ctx context.Context, sessionID domain.SessionID, roomID domain.RoomID, typing bool) error {
	session, ok := o.sessions.SessionOf(sessionID)
	if !ok {
		return fmt.Errorf("%w: session %s", errors.ErrNotFound, sessionID)
	}
	if !o.directory.IsSubscriber(session.UserID, roomID) {
		return fmt.Errorf("%w: user %s room %s", errors.ErrNotInRoom, session.UserID, roomID)
	}

	o.sessions.Touch(sessionID)
	o.typing.SetTyping(ctx, domain.TypingSignal{
		RoomID:      roomID,
		UserID:      session.UserID,
		DisplayName: session.DisplayName,
		At:          time.Now().UTC(),
	}, typing)
	return nil
}

func (o *Orchestrator) Touch(sessionID domain.SessionID) {
	o.sessions.Touch(sessionID)
}

func (o *Orchestrator) StatusOf(userID domain.UserID) bool {
	return o.typing.StatusOf(userID)
}

func (o *Orchestrator) Notifier() contract.INotificationDispatcher {
	return o.notifier
}

func (o *Orchestrator) MarkNotificationRead(ctx context.Context, notificationID string, userID domain.UserID) error {
	return o.notifier.MarkRead(ctx, notificationID, userID)
}

// Start registers all supervised workers and runs the supervisor in the
// background. Stop cancels them and waits for the drain.
func (o *Orchestrator) Start(ctx context.Context) {
	o.supervisor.Add(o.router.Workers()...)
	o.supervisor.Add(workers.NewSweeperWorker(o.typing, o.opts.SweepInterval, o.log))
	o.supervisor.Add(workers.NewHealthWorker(o.log, o.opts.HealthInterval))

	o.log.Info("Starting orchestrator and all supervised workers")
	go o.supervisor.Run(ctx)
}

func (o *Orchestrator) Stop() {
	o.log.Info("Requesting orchestrator shutdown")
	o.supervisor.Stop()
}

// UpdateStatus broadcasts a client-declared status (e.g. "away") to all
// peers, same best-effort path as the online/offline signal.
func (o *Orchestrator) UpdateStatus(ctx context.Context, sessionID domain.SessionID, status string) error {
	session, ok := o.sessions.SessionOf(sessionID)
	if !ok {
		return fmt.Errorf("%w: session %s", errors.ErrNotFound, sessionID)
	}
	o.sessions.Touch(sessionID)
	o.broadcastStatus(ctx, session, status)
	return nil
}

// broadcastPresence is the global best-effort online/offline signal; it is
// never transactionally tied to persistence.
func (o *Orchestrator) broadcastPresence(ctx context.Context, session domain.Session, online bool) {
	status := "offline"
	if online {
		status = "online"
	}
	o.broadcastStatus(ctx, session, status)
}

func (o *Orchestrator) broadcastStatus(ctx context.Context, session domain.Session, status string) {
	var subscribers []contract.Subscriber
	o.sessions.ForEachSink(func(sessionID domain.SessionID, sink contract.EventSink) {
		subscribers = append(subscribers, contract.Subscriber{SessionID: sessionID, Sink: sink})
	})
	o.fanout.Deliver(ctx, subscribers, event.OnlineStatus{
		UserID:      session.UserID,
		DisplayName: session.DisplayName,
		Status:      status,
	})
}
