package state

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"storyteller/server/internal/models"
	"storyteller/server/internal/storage"
)

// profileBlob is the persisted shape of the profile store: the full list plus
// the active pointer.
type profileBlob struct {
	Profiles        []models.Profile `json:"profiles"`
	ActiveProfileID string           `json:"active_profile_id"`
}

// ProfileStore holds the listener profiles and the active profile pointer.
type ProfileStore struct {
	mu      sync.RWMutex
	actions *ActionLogger
	persist storage.Persistence
	logger  *zap.Logger

	profiles []models.Profile
	activeID string
}

// NewProfileStore constructs the container and rehydrates it from the
// persistence backend.
func NewProfileStore(persist storage.Persistence, actions *ActionLogger, logger *zap.Logger) *ProfileStore {
	s := &ProfileStore{
		actions: actions,
		persist: persist,
		logger:  logger,
	}

	if persist != nil {
		var blob profileBlob
		found, err := persist.LoadBlob(context.Background(), storage.ProfilesKey, &blob)
		if err != nil {
			logger.Warn("failed to rehydrate profiles", zap.Error(err))
		} else if found {
			s.profiles = blob.Profiles
			s.activeID = blob.ActiveProfileID
			actions.Log("Profile", "rehydrated", map[string]interface{}{"profile_count": len(blob.Profiles)})
		}
	}

	return s
}

// AddProfile creates a profile. The first profile created becomes active
// automatically; later additions never change an already-set active profile.
func (s *ProfileStore) AddProfile(name, avatar string) models.Profile {
	profile := models.Profile{
		ID:        uuid.NewString(),
		Name:      name,
		Avatar:    avatar,
		CreatedAt: time.Now(),
	}

	s.actions.Log("Profile", "addProfile", map[string]interface{}{
		"profile_id": profile.ID,
		"name":       name,
	})

	s.mu.Lock()
	if len(s.profiles) == 0 {
		s.activeID = profile.ID
	}
	s.profiles = append(s.profiles, profile)
	s.mu.Unlock()

	s.save()
	return profile
}

// UpdateProfile applies field updates to an existing profile. Empty fields
// are left untouched.
func (s *ProfileStore) UpdateProfile(id, name, avatar string) (models.Profile, error) {
	s.actions.Log("Profile", "updateProfile", map[string]interface{}{
		"profile_id": id,
		"name":       name,
		"avatar":     avatar,
	})

	s.mu.Lock()
	var updated *models.Profile
	for i := range s.profiles {
		if s.profiles[i].ID == id {
			if name != "" {
				s.profiles[i].Name = name
			}
			if avatar != "" {
				s.profiles[i].Avatar = avatar
			}
			updated = &s.profiles[i]
			break
		}
	}
	if updated == nil {
		s.mu.Unlock()
		return models.Profile{}, fmt.Errorf("profile not found: %s", id)
	}
	result := *updated
	s.mu.Unlock()

	s.save()
	return result, nil
}

// DeleteProfile removes a profile. Deleting the active profile clears the
// active pointer.
func (s *ProfileStore) DeleteProfile(id string) {
	s.actions.Log("Profile", "deleteProfile", map[string]interface{}{"profile_id": id})

	s.mu.Lock()
	kept := s.profiles[:0]
	for _, p := range s.profiles {
		if p.ID != id {
			kept = append(kept, p)
		}
	}
	s.profiles = kept
	if s.activeID == id {
		s.activeID = ""
	}
	s.mu.Unlock()

	s.save()
}

// SetActive points the active-profile pointer at the given id, or clears it
// when the id is empty.
func (s *ProfileStore) SetActive(id string) error {
	s.actions.Log("Profile", "setActiveProfile", map[string]interface{}{"profile_id": id})

	s.mu.Lock()
	if id != "" {
		found := false
		for _, p := range s.profiles {
			if p.ID == id {
				found = true
				break
			}
		}
		if !found {
			s.mu.Unlock()
			return fmt.Errorf("profile not found: %s", id)
		}
	}
	s.activeID = id
	s.mu.Unlock()

	s.save()
	return nil
}

// ActiveProfile returns the active profile, or nil when none is set.
func (s *ProfileStore) ActiveProfile() *models.Profile {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.profiles {
		if p.ID == s.activeID {
			profile := p
			return &profile
		}
	}
	return nil
}

// ActiveProfileID returns the active pointer, empty when unset.
func (s *ProfileStore) ActiveProfileID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeID
}

// Profiles returns a copy of the profile list.
func (s *ProfileStore) Profiles() []models.Profile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Profile(nil), s.profiles...)
}

func (s *ProfileStore) save() {
	if s.persist == nil {
		return
	}

	s.mu.RLock()
	blob := profileBlob{
		Profiles:        append([]models.Profile(nil), s.profiles...),
		ActiveProfileID: s.activeID,
	}
	s.mu.RUnlock()

	if err := s.persist.SaveBlob(context.Background(), storage.ProfilesKey, blob); err != nil {
		s.logger.Warn("failed to persist profiles", zap.Error(err))
	}
}
