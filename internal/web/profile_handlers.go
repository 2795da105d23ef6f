package web

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"storyteller/server/internal/models"
)

// ProfileRequest creates or updates a profile.
type ProfileRequest struct {
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
}

// ProfilesResponse lists profiles plus the active pointer.
type ProfilesResponse struct {
	Profiles        []models.Profile `json:"profiles"`
	ActiveProfileID string           `json:"active_profile_id,omitempty"`
}

// ListProfiles returns every profile and the active pointer.
func (h *Handlers) ListProfiles(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ProfilesResponse{
		Profiles:        h.profiles.Profiles(),
		ActiveProfileID: h.profiles.ActiveProfileID(),
	})
}

// CreateProfile adds a profile; the first one created becomes active.
func (h *Handlers) CreateProfile(w http.ResponseWriter, r *http.Request) {
	var req ProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	profile := h.profiles.AddProfile(req.Name, req.Avatar)
	writeJSON(w, http.StatusCreated, profile)
}

// UpdateProfile applies field updates.
func (h *Handlers) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req ProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	profile, err := h.profiles.UpdateProfile(id, req.Name, req.Avatar)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// DeleteProfile removes a profile; deleting the active one clears the
// active pointer.
func (h *Handlers) DeleteProfile(w http.ResponseWriter, r *http.Request) {
	h.profiles.DeleteProfile(chi.URLParam(r, "id"))
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ActivateProfile points the active pointer at a profile.
func (h *Handlers) ActivateProfile(w http.ResponseWriter, r *http.Request) {
	if err := h.profiles.SetActive(chi.URLParam(r, "id")); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ActiveProfile returns the active profile, or 404 when none is set.
func (h *Handlers) ActiveProfile(w http.ResponseWriter, r *http.Request) {
	profile := h.profiles.ActiveProfile()
	if profile == nil {
		writeError(w, http.StatusNotFound, "no active profile")
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// ProfileProgress lists a profile's story progress records.
func (h *Handlers) ProfileProgress(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	progress := h.stories.ProgressFor(id)
	if progress == nil {
		progress = []models.StoryProgress{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"progress": progress})
}
