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
	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
	"github.com/rs/cors"

	"github.com/xtzs123/uniapp-backend/internal/inspect"
	"github.com/xtzs123/uniapp-backend/moderation"
	"github.com/xtzs123/uniapp-backend/projection"
	"github.com/xtzs123/uniapp-backend/repositories"
	"github.com/xtzs123/uniapp-backend/runtime"
	"github.com/xtzs123/uniapp-backend/runtime/workers"
	"github.com/xtzs123/uniapp-backend/services"
	"github.com/xtzs123/uniapp-backend/ws"
)

// Exit codes to provide meaningful status to the operating system or service manager (e.g., systemd).
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	// The main function acts as a thin wrapper.
	// Its only responsibility is to call run() and handle the OS exit code.
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Server terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run initializes all components, manages the server lifecycle, and centralizes error reporting.
// This pattern is preferred over calling os.Exit or panic directly because:
// 1. It ensures all 'defer' statements (like database cleanup) are executed before the program exits.
// 2. It improves testability by decoupling the initialization logic from the main entry point.
// 3. It provides a structured way to handle graceful shutdowns for the HTTP server and background workers.
func run() (int, error) {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	censoredChar, err := CharacterRune(config.CensoredCharacter)
	if err != nil {
		return exitConfig, err
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Database (BadgerDB)
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.WARNING))
	if err != nil {
		return exitRuntime, fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	// 3. Repositories & Projection
	messageRepository, err := repositories.NewMessageRepository(db, log)
	if err != nil {
		return exitRuntime, err
	}
	defer func() { _ = messageRepository.Close() }()

	groupRepository, err := repositories.NewGroupRepository(db)
	if err != nil {
		return exitRuntime, err
	}
	defer func() { _ = groupRepository.Close() }()

	conversationRepository := repositories.NewConversationRepository(db)
	projector := projection.NewProjector(conversationRepository, log)

	// 4. Moderation
	moderator, err := moderation.NewModerator(config.Words(), censoredChar, log)
	if err != nil {
		return exitRuntime, fmt.Errorf("moderator init failed: %w", err)
	}

	// 5. Registry, services, transport
	registry := runtime.NewRegistry(log)
	groupService := services.NewGroupService(groupRepository, projector, log)
	chatService := services.NewChatService(log, registry, messageRepository, projector, groupService, moderator)
	handler := ws.NewHandler(log, registry, chatService, config.Origins(), config.ConnectionBufferSize)

	// 6. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 7. Background workers under supervision
	sup := workers.NewSupervisor(log)
	sup.Add(
		workers.NewBadgerGCWorker(log, db, config.GCInterval),
		workers.NewTelemetryWorker(log, registry, config.TelemetryInterval),
	)
	go sup.Run(ctx)

	// Optional keyspace inspector, development only.
	if config.InspectPort > 0 {
		inspect.Start(db, config.InspectPort, func() map[string]any {
			return map[string]any{"online_sessions": registry.Count()}
		}, log)
	}

	// 8. HTTP server
	router := mux.NewRouter()
	router.Handle("/ws", handler)
	router.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   config.Origins(),
		AllowCredentials: true,
	}).Handler(router)

	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	server := &http.Server{Addr: address, Handler: corsHandler}

	errChan := make(chan error, 1)
	go func() {
		log.Info("Starting realtime server", "address", address, "at", time.Now().UTC())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("http server error: %w", err)
		}
	}()

	// 9. Wait for Stop or Error
	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
	case err := <-errChan:
		return exitRuntime, err
	}

	// 10. Final Cleanup
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = server.Shutdown(shutdownCtx)
	sup.Stop()
	log.Info("Program stopped cleanly")

	return exitOK, nil
}
