package web

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"storyteller/server/internal/engine"
	"storyteller/server/internal/generators"
	"storyteller/server/internal/models"
	"storyteller/server/internal/state"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // browser client is served from another origin
	},
}

// Handlers carries the constructed collaborators for the HTTP surface.
type Handlers struct {
	engine   *engine.StoryEngine
	stories  *state.StoryStore
	profiles *state.ProfileStore
	tts      *generators.ElevenLabsClient
	audio    *generators.AudioStore
	hub      *DebugHub
	logger   *zap.Logger
}

func NewHandlers(
	storyEngine *engine.StoryEngine,
	stories *state.StoryStore,
	profiles *state.ProfileStore,
	tts *generators.ElevenLabsClient,
	audio *generators.AudioStore,
	hub *DebugHub,
	logger *zap.Logger,
) *Handlers {
	return &Handlers{
		engine:   storyEngine,
		stories:  stories,
		profiles: profiles,
		tts:      tts,
		audio:    audio,
		hub:      hub,
		logger:   logger,
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// statusForError maps the pipeline failure taxonomy onto HTTP statuses.
func statusForError(err error) int {
	switch {
	case errors.Is(err, models.ErrNotConfigured):
		return http.StatusServiceUnavailable
	case errors.Is(err, models.ErrNoActiveSegment),
		errors.Is(err, models.ErrGenerationInFlight):
		return http.StatusConflict
	case errors.Is(err, models.ErrEmptyInput):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrBlocked):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadGateway
	}
}

func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": "storyteller",
	})
}

// ListVoices returns the available narration voices. Best-effort upstream,
// never an error.
func (h *Handlers) ListVoices(w http.ResponseWriter, r *http.Request) {
	voices := h.tts.ListVoices(r.Context())
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"voices":           voices,
		"default_voice_id": h.tts.DefaultVoiceID(),
	})
}

// ServeAudio resolves a transient audio handle. Revoked or unknown handles
// are gone, not an internal error.
func (h *Handlers) ServeAudio(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	data, contentType, ok := h.audio.Get(id)
	if !ok {
		writeError(w, http.StatusGone, "audio no longer available")
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// DebugEvents upgrades the connection and streams store-action events.
func (h *Handlers) DebugEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	client := &Client{
		ID:   newClientID(),
		Conn: conn,
		Send: make(chan []byte, 256),
		Hub:  h.hub,
	}
	h.hub.register <- client

	go client.readPump()
}

func newClientID() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return "client"
	}
	return hex.EncodeToString(b)
}
