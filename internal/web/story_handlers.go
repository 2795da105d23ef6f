package web

import (
	"encoding/json"
	"net/http"

	"storyteller/server/internal/engine"
	"storyteller/server/internal/models"
)

// StartStoryRequest begins a fresh story session.
type StartStoryRequest struct {
	Theme         string `json:"theme"`
	CharacterName string `json:"character_name,omitempty"`
	Setting       string `json:"setting,omitempty"`
	VoiceID       string `json:"voice_id,omitempty"`
}

// ContinueStoryRequest advances the story along a choice.
type ContinueStoryRequest struct {
	ChoiceID string `json:"choice_id"`
	VoiceID  string `json:"voice_id,omitempty"`
}

// ConcludeStoryRequest asks for a final segment.
type ConcludeStoryRequest struct {
	VoiceID string `json:"voice_id,omitempty"`
}

// CompleteStoryRequest closes the newest open progress record for a profile.
type CompleteStoryRequest struct {
	ProfileID string `json:"profile_id,omitempty"`
}

// SetPlayingRequest records the playback flag from the player UI.
type SetPlayingRequest struct {
	Playing bool `json:"playing"`
}

// SegmentResponse is the payload for a freshly generated segment.
type SegmentResponse struct {
	Segment *models.StorySegment `json:"segment"`
}

// SessionResponse describes the whole current session.
type SessionResponse struct {
	Theme      string                         `json:"theme,omitempty"`
	Current    *models.StorySegment           `json:"current,omitempty"`
	Segments   []models.StorySegment          `json:"segments"`
	Generating bool                           `json:"generating"`
	Playing    bool                           `json:"playing"`
	LastError  string                         `json:"last_error,omitempty"`
	Questions  []models.ComprehensionQuestion `json:"questions,omitempty"`
}

// StartStory starts a new story from a theme.
func (h *Handlers) StartStory(w http.ResponseWriter, r *http.Request) {
	var req StartStoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Theme == "" {
		writeError(w, http.StatusBadRequest, "theme is required")
		return
	}

	segment, err := h.engine.StartNewStory(r.Context(), req.Theme, engine.StartOptions{
		CharacterName: req.CharacterName,
		Setting:       req.Setting,
		VoiceID:       req.VoiceID,
	})
	if err != nil {
		writeError(w, statusForError(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, SegmentResponse{Segment: segment})
}

// ContinueStory advances the story along the selected choice.
func (h *Handlers) ContinueStory(w http.ResponseWriter, r *http.Request) {
	var req ContinueStoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ChoiceID == "" {
		writeError(w, http.StatusBadRequest, "choice_id is required")
		return
	}

	segment, err := h.engine.ContinueStory(r.Context(), req.ChoiceID, req.VoiceID)
	if err != nil {
		writeError(w, statusForError(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, SegmentResponse{Segment: segment})
}

// ConcludeStory generates the final segment and closes the progress record.
func (h *Handlers) ConcludeStory(w http.ResponseWriter, r *http.Request) {
	var req ConcludeStoryRequest
	if r.Body != nil {
		// Body is optional here.
		json.NewDecoder(r.Body).Decode(&req)
	}

	segment, err := h.engine.ConcludeStory(r.Context(), req.VoiceID)
	if err != nil {
		writeError(w, statusForError(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, SegmentResponse{Segment: segment})
}

// CompleteStory closes the newest open progress record without generating a
// conclusion. Defaults to the active profile.
func (h *Handlers) CompleteStory(w http.ResponseWriter, r *http.Request) {
	var req CompleteStoryRequest
	if r.Body != nil {
		json.NewDecoder(r.Body).Decode(&req)
	}

	profileID := req.ProfileID
	if profileID == "" {
		profileID = h.profiles.ActiveProfileID()
	}
	if profileID == "" {
		writeError(w, http.StatusBadRequest, "no profile to complete a story for")
		return
	}

	h.stories.CompleteStory(profileID)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// SetPlaying records whether the player is currently playing audio.
func (h *Handlers) SetPlaying(w http.ResponseWriter, r *http.Request) {
	var req SetPlayingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	h.stories.SetPlaying(req.Playing)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// CurrentStory describes the running session.
func (h *Handlers) CurrentStory(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, SessionResponse{
		Theme:      h.stories.Theme(),
		Current:    h.stories.CurrentSegment(),
		Segments:   h.stories.Segments(),
		Generating: h.stories.IsGenerating(),
		Playing:    h.stories.Playing(),
		LastError:  h.engine.LastError(),
		Questions:  h.stories.Questions(),
	})
}
