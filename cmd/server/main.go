package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"

	"chathub/auth"
	"chathub/infrastructure/httpapi"
	"chathub/infrastructure/ws"
	"chathub/moderation"
	"chathub/repositories"
	"chathub/runtime"
	"chathub/runtime/workers"
	"chathub/search"
	"chathub/services"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run initializes every component and manages the server lifecycle, so that
// deferred cleanup (database, search index) executes before the process exits.
func run() error {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Storage (BadgerDB) & Search (Bluge)
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.WARNING))
	if err != nil {
		return fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	index, err := search.NewIndex(config.SearchFilepath, log)
	if err != nil {
		return fmt.Errorf("search index opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing search index...")
		_ = index.Close()
	}()

	// 3. Repositories
	store := repositories.NewStore(db, log)
	userRepository := repositories.NewUserRepository(store)
	roomRepository := repositories.NewRoomRepository(store, log)
	messageRepository := repositories.NewMessageRepository(store, log)
	notificationRepository := repositories.NewNotificationRepository(store, log)

	// 4. Moderation
	wordList, err := moderation.LoadWordList()
	if err != nil {
		return fmt.Errorf("word list loading failed: %w", err)
	}
	log.Info("Loaded moderation dictionaries", "languages", wordList.Languages, "words", len(wordList.Words))
	replacement, err := config.CharacterRune()
	if err != nil {
		return err
	}
	moderator, err := moderation.NewModerator(wordList.Words, replacement, log)
	if err != nil {
		return fmt.Errorf("moderator setup failed: %w", err)
	}

	// 5. Runtime
	secret := []byte(config.JWTSecret)
	verifier := auth.NewVerifier(secret, userRepository)
	fanout := runtime.NewFanout(log, config.SinkTimeout)
	registry := runtime.NewSessionRegistry(config.ShardCount, log)
	directory := runtime.NewRoomDirectory(
		config.ShardCount, registry, roomRepository, messageRepository,
		verifier, fanout, config.BacklogSize, log,
	)
	typing := runtime.NewTypingTracker(
		config.ShardCount, registry, directory, fanout, config.TypingWindow, log,
	)
	router := runtime.NewMessageRouter(
		log, directory, messageRepository, roomRepository, &moderator, fanout,
		config.NumberOfWorkers, config.BufferSize, config.PersistTimeout,
	)
	router.AddSinks(index)
	notifier := runtime.NewNotificationDispatcher(log, registry, notificationRepository, fanout)

	sup := workers.NewSupervisor(log, config.RestartInterval)
	orchestrator := runtime.NewOrchestrator(
		log, sup, registry, directory, typing, router, notifier, verifier, fanout,
		runtime.Options{
			HandshakeTimeout: config.HandshakeTimeout,
			AckTimeout:       config.AckTimeout,
			SweepInterval:    config.SweepInterval,
			HealthInterval:   config.HealthInterval,
		},
	)

	// 6. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 7. Start the Engine
	orchestrator.Start(ctx)

	// 8. HTTP surface: REST routes plus the websocket upgrade endpoint
	authService := services.NewAuthService(userRepository, secret, config.TokenDuration)
	chatService := services.NewChatService(
		directory, roomRepository, messageRepository, notificationRepository, index,
	)

	mux := http.NewServeMux()
	httpapi.NewServer(authService, chatService, orchestrator, secret, log).Register(mux)
	mux.Handle("GET /ws", ws.NewGateway(ctx, orchestrator, log))

	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	server := &http.Server{Addr: address, Handler: mux}

	errChan := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP server", "address", address, "at", time.Now().UTC())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	// 9. Wait for Stop or Error
	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
	case err := <-errChan:
		return err
	}

	// 10. Final Cleanup
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = server.Shutdown(shutdownCtx)
	orchestrator.Stop()
	log.Info("Program stopped cleanly")

	return nil
}
