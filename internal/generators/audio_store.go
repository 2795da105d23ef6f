package generators

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"storyteller/server/internal/models"
)

// audioEntry holds the bytes behind one handle.
type audioEntry struct {
	data        []byte
	contentType string
}

// AudioStore owns the transient audio produced by synthesis. Handles live for
// the server process lifetime at most; the segment that owns a handle revokes
// it when a newer segment supersedes it, which bounds resource growth.
type AudioStore struct {
	entries map[string]*audioEntry
	mu      sync.RWMutex
}

// NewAudioStore creates an empty store.
func NewAudioStore() *AudioStore {
	return &AudioStore{
		entries: make(map[string]*audioEntry),
	}
}

// Put registers audio bytes and returns the handle that resolves them.
func (s *AudioStore) Put(data []byte, contentType string) *models.AudioHandle {
	id := uuid.NewString()

	s.mu.Lock()
	s.entries[id] = &audioEntry{data: data, contentType: contentType}
	s.mu.Unlock()

	return &models.AudioHandle{
		ID:          id,
		URL:         fmt.Sprintf("/api/v1/audio/%s", id),
		ContentType: contentType,
		Size:        len(data),
	}
}

// Get resolves a handle id to its bytes and content type.
func (s *AudioStore) Get(id string) ([]byte, string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.entries[id]
	if !ok {
		return nil, "", false
	}
	return entry.data, entry.contentType, true
}

// Revoke releases the bytes behind a handle. Revoking an unknown or already
// revoked id is a no-op.
func (s *AudioStore) Revoke(id string) {
	s.mu.Lock()
	delete(s.entries, id)
	s.mu.Unlock()
}

// Len reports the number of live handles.
func (s *AudioStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
