package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"storyteller/server/internal/config"
	"storyteller/server/internal/engine"
	"storyteller/server/internal/generators"
	"storyteller/server/internal/logger"
	"storyteller/server/internal/state"
	"storyteller/server/internal/storage"
	"storyteller/server/internal/web"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zapLogger, err := logger.New(cfg.Logging)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer zapLogger.Sync()

	// Persistence backend. A missing database is a warning, not a crash:
	// the server degrades to in-process state.
	persist := openPersistence(cfg.Database, zapLogger)
	defer persist.Close()

	// Debug event stream.
	hub := web.NewDebugHub(zapLogger)
	go hub.Run()

	actions := state.NewActionLogger(zapLogger, hub)

	// State containers and the audio they own.
	audio := generators.NewAudioStore()
	stories := state.NewStoryStore(persist, audio, actions, zapLogger)
	profiles := state.NewProfileStore(persist, actions, zapLogger)

	// Upstream clients. Missing credentials disable them without crashing.
	gemini := generators.NewGeminiClient(cfg.AI.Gemini, zapLogger)
	elevenlabs := generators.NewElevenLabsClient(cfg.AI.ElevenLabs, audio, zapLogger)

	storyEngine := engine.NewStoryEngine(gemini, elevenlabs, stories, profiles, zapLogger)

	r := web.NewRouter(storyEngine, stories, profiles, elevenlabs, audio, hub, zapLogger)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout.Std(),
		WriteTimeout: cfg.Server.WriteTimeout.Std(),
	}

	go func() {
		zapLogger.Info("server starting", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLogger.Info("server shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		zapLogger.Error("server shutdown error", zap.Error(err))
	}

	zapLogger.Info("server stopped")
}

// openPersistence picks the configured backend, falling back to in-process
// state when the backend is unreachable.
func openPersistence(cfg config.DatabaseConfig, zapLogger *zap.Logger) storage.Persistence {
	switch cfg.Backend {
	case "redis":
		store, err := storage.NewRedisStore(cfg.Redis)
		if err != nil {
			zapLogger.Warn("failed to connect to Redis, state will not persist", zap.Error(err))
			return storage.NewMemoryStore()
		}
		zapLogger.Info("Redis connected")
		return store

	case "mysql":
		store, err := storage.NewMySQLStore(cfg.MySQL)
		if err != nil {
			zapLogger.Warn("failed to connect to MySQL, state will not persist", zap.Error(err))
			return storage.NewMemoryStore()
		}
		zapLogger.Info("MySQL connected")
		return store

	default:
		zapLogger.Info("no database backend configured, state will not persist")
		return storage.NewMemoryStore()
	}
}
