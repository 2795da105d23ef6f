package state

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"storyteller/server/internal/models"
	"storyteller/server/internal/storage"
)

// AudioReleaser revokes transient audio handles when their owning segment is
// superseded.
type AudioReleaser interface {
	Revoke(id string)
}

// storyBlob is the persisted shape of the story store: progress only, session
// content is ephemeral.
type storyBlob struct {
	Progress []models.StoryProgress `json:"progress"`
}

// StoryStore holds the state of the current story session plus the durable
// progress records. At most one segment is current at a time; it is always
// the most recently appended one or nil.
type StoryStore struct {
	mu      sync.RWMutex
	actions *ActionLogger
	persist storage.Persistence
	audio   AudioReleaser
	logger  *zap.Logger

	current  *models.StorySegment
	segments []models.StorySegment
	theme    string
	playing  bool

	// Single authoritative in-flight flag shared by the engine and the
	// handlers.
	generating atomic.Bool

	progress         []models.StoryProgress
	activeProgressID string
	questions        []models.ComprehensionQuestion
}

// NewStoryStore constructs the container and rehydrates the progress list
// from the persistence backend.
func NewStoryStore(persist storage.Persistence, audio AudioReleaser, actions *ActionLogger, logger *zap.Logger) *StoryStore {
	s := &StoryStore{
		actions: actions,
		persist: persist,
		audio:   audio,
		logger:  logger,
	}

	if persist != nil {
		var blob storyBlob
		found, err := persist.LoadBlob(context.Background(), storage.StoriesKey, &blob)
		if err != nil {
			logger.Warn("failed to rehydrate story progress", zap.Error(err))
		} else if found {
			s.progress = blob.Progress
			actions.Log("Story", "rehydrated", map[string]interface{}{"progress_count": len(blob.Progress)})
		}
	}

	return s
}

// SetTheme records the active theme.
func (s *StoryStore) SetTheme(theme string) {
	s.actions.Log("Story", "setTheme", map[string]interface{}{"theme": theme})
	s.mu.Lock()
	s.theme = theme
	s.mu.Unlock()
}

// AddSegment appends a segment to the session history and makes it current.
// The superseded segment's audio handle is revoked; the new segment owns its
// own handle from here on. The active progress record, if any, tracks the new
// segment id.
func (s *StoryStore) AddSegment(segment models.StorySegment) {
	s.actions.Log("Story", "addSegment", map[string]interface{}{
		"segment_id":    segment.ID,
		"text_length":   len(segment.Text),
		"has_audio":     segment.Audio != nil,
		"choices_count": len(segment.Choices),
	})

	s.mu.Lock()
	if s.current != nil && s.current.Audio != nil && s.audio != nil {
		s.audio.Revoke(s.current.Audio.ID)
	}
	s.segments = append(s.segments, segment)
	s.current = &s.segments[len(s.segments)-1]

	dirty := false
	if s.activeProgressID != "" {
		for i := range s.progress {
			if s.progress[i].ID == s.activeProgressID {
				s.progress[i].LastSegmentID = segment.ID
				dirty = true
				break
			}
		}
	}
	s.mu.Unlock()

	if dirty {
		s.saveProgress()
	}
}

// SetPlaying records whether audio is currently playing.
func (s *StoryStore) SetPlaying(playing bool) {
	s.actions.Log("Story", "setPlaying", map[string]interface{}{"playing": playing})
	s.mu.Lock()
	s.playing = playing
	s.mu.Unlock()
}

// SetQuestions replaces the comprehension questions for the current session.
func (s *StoryStore) SetQuestions(questions []models.ComprehensionQuestion) {
	s.actions.Log("Story", "setQuestions", map[string]interface{}{"count": len(questions)})
	s.mu.Lock()
	s.questions = questions
	s.mu.Unlock()
}

// StartStory clears the session and, when a profile is given, opens a new
// progress record for it. Runs before any network call is issued.
func (s *StoryStore) StartStory(profileID, theme string) {
	s.actions.Log("Story", "startStory", map[string]interface{}{
		"profile_id": profileID,
		"theme":      theme,
	})

	s.mu.Lock()
	s.resetSessionLocked()
	s.theme = theme

	if profileID != "" {
		record := models.StoryProgress{
			ID:        uuid.NewString(),
			ProfileID: profileID,
			Theme:     theme,
			StartedAt: time.Now(),
		}
		s.progress = append(s.progress, record)
		s.activeProgressID = record.ID
	}
	s.mu.Unlock()

	if profileID != "" {
		s.saveProgress()
	}
}

// CompleteStory closes the most recent open progress record for the profile.
// Idempotent: already-closed records are never touched again.
func (s *StoryStore) CompleteStory(profileID string) {
	s.actions.Log("Story", "completeStory", map[string]interface{}{"profile_id": profileID})

	now := time.Now()
	dirty := false

	s.mu.Lock()
	for i := len(s.progress) - 1; i >= 0; i-- {
		p := &s.progress[i]
		if p.ProfileID == profileID && p.CompletedAt == nil {
			p.CompletedAt = &now
			dirty = true
			break
		}
	}
	s.mu.Unlock()

	if dirty {
		s.saveProgress()
	}
}

// Reset clears the current session: history, current segment, theme, flags
// and questions. Progress records are untouched.
func (s *StoryStore) Reset() {
	s.actions.Log("Story", "reset", nil)
	s.mu.Lock()
	s.resetSessionLocked()
	s.mu.Unlock()
}

// resetSessionLocked revokes the current segment's audio and drops session
// content. Superseded segments' handles were already revoked when they were
// replaced, so only the current one is still live. Caller holds s.mu.
func (s *StoryStore) resetSessionLocked() {
	if s.audio != nil && s.current != nil && s.current.Audio != nil {
		s.audio.Revoke(s.current.Audio.ID)
	}
	s.current = nil
	s.segments = nil
	s.theme = ""
	s.playing = false
	s.questions = nil
	s.activeProgressID = ""
}

// TryBeginGenerating claims the in-flight flag. False means a request is
// already running; there is no queueing.
func (s *StoryStore) TryBeginGenerating() bool {
	ok := s.generating.CompareAndSwap(false, true)
	if ok {
		s.actions.Log("Story", "setGenerating", map[string]interface{}{"generating": true})
	}
	return ok
}

// EndGenerating releases the in-flight flag. Called on every exit path.
func (s *StoryStore) EndGenerating() {
	s.generating.Store(false)
	s.actions.Log("Story", "setGenerating", map[string]interface{}{"generating": false})
}

// IsGenerating reports whether a request is in flight.
func (s *StoryStore) IsGenerating() bool {
	return s.generating.Load()
}

// CurrentSegment returns a copy of the current segment, or nil.
func (s *StoryStore) CurrentSegment() *models.StorySegment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return nil
	}
	segment := *s.current
	segment.Choices = append([]models.StoryChoice(nil), s.current.Choices...)
	return &segment
}

// Segments returns a copy of the session history in order.
func (s *StoryStore) Segments() []models.StorySegment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.StorySegment(nil), s.segments...)
}

// Theme returns the active theme, empty when no story is running.
func (s *StoryStore) Theme() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.theme
}

// Playing reports the playback flag.
func (s *StoryStore) Playing() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.playing
}

// Questions returns the comprehension questions for the current session.
func (s *StoryStore) Questions() []models.ComprehensionQuestion {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.ComprehensionQuestion(nil), s.questions...)
}

// ProgressFor returns the progress records belonging to a profile.
func (s *StoryStore) ProgressFor(profileID string) []models.StoryProgress {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.StoryProgress
	for _, p := range s.progress {
		if p.ProfileID == profileID {
			out = append(out, p)
		}
	}
	return out
}

// FullStoryText joins the narrative text of every session segment, oldest
// first. Used to build the conclusion prompt.
func (s *StoryStore) FullStoryText() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out string
	for i, segment := range s.segments {
		if i > 0 {
			out += "\n\n"
		}
		out += segment.Text
	}
	return out
}

// saveProgress flushes the progress blob. Persistence failures are logged and
// do not affect control flow.
func (s *StoryStore) saveProgress() {
	if s.persist == nil {
		return
	}

	s.mu.RLock()
	blob := storyBlob{Progress: append([]models.StoryProgress(nil), s.progress...)}
	s.mu.RUnlock()

	if err := s.persist.SaveBlob(context.Background(), storage.StoriesKey, blob); err != nil {
		s.logger.Warn("failed to persist story progress", zap.Error(err))
	}
}
