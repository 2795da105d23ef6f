package web

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"storyteller/server/internal/engine"
	"storyteller/server/internal/generators"
	"storyteller/server/internal/state"
)

// NewRouter wires the HTTP surface over the engine and state containers.
func NewRouter(
	storyEngine *engine.StoryEngine,
	stories *state.StoryStore,
	profiles *state.ProfileStore,
	tts *generators.ElevenLabsClient,
	audio *generators.AudioStore,
	hub *DebugHub,
	logger *zap.Logger,
) *chi.Mux {
	h := NewHandlers(storyEngine, stories, profiles, tts, audio, hub, logger)

	r := chi.NewRouter()
	r.Use(requestLogger(logger, hub))
	r.Use(corsMiddleware)

	r.Get("/health", h.HealthCheck)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/story", func(r chi.Router) {
			r.Post("/start", h.StartStory)
			r.Post("/continue", h.ContinueStory)
			r.Post("/conclude", h.ConcludeStory)
			r.Post("/complete", h.CompleteStory)
			r.Post("/playing", h.SetPlaying)
			r.Get("/current", h.CurrentStory)
		})

		r.Route("/profiles", func(r chi.Router) {
			r.Get("/", h.ListProfiles)
			r.Post("/", h.CreateProfile)
			r.Get("/active", h.ActiveProfile)
			r.Put("/{id}", h.UpdateProfile)
			r.Delete("/{id}", h.DeleteProfile)
			r.Post("/{id}/activate", h.ActivateProfile)
			r.Get("/{id}/progress", h.ProfileProgress)
		})

		r.Get("/voices", h.ListVoices)
		r.Get("/audio/{id}", h.ServeAudio)
		r.Get("/debug/events", h.DebugEvents)
	})

	return r
}

// requestLogger logs every request with method, path, status and duration,
// and mirrors the record onto the debug event stream.
func requestLogger(logger *zap.Logger, hub *DebugHub) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)

			duration := time.Since(start)
			logger.Info("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.status),
				zap.Duration("duration", duration))

			if hub != nil {
				hub.Publish(state.ActionEvent{
					Store:  "api",
					Action: r.Method + " " + r.URL.Path,
					Payload: map[string]interface{}{
						"status":      ww.status,
						"duration_ms": duration.Milliseconds(),
					},
					Time: time.Now(),
				})
			}
		})
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// Hijack lets the websocket upgrade work through the logging wrapper.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	return hj.Hijack()
}

// corsMiddleware opens the API up to the browser client.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")
		w.Header().Set("Access-Control-Max-Age", "300")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
