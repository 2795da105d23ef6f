package state

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"storyteller/server/internal/models"
	"storyteller/server/internal/storage"
)

// fakeReleaser records which handles were revoked.
type fakeReleaser struct {
	mu      sync.Mutex
	revoked []string
}

func (f *fakeReleaser) Revoke(id string) {
	f.mu.Lock()
	f.revoked = append(f.revoked, id)
	f.mu.Unlock()
}

func (f *fakeReleaser) revokedIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.revoked...)
}

func newTestStoryStore(t *testing.T, persist storage.Persistence, audio AudioReleaser) *StoryStore {
	t.Helper()
	logger := zap.NewNop()
	return NewStoryStore(persist, audio, NewActionLogger(logger, nil), logger)
}

func segmentWithAudio(id, audioID string) models.StorySegment {
	return models.StorySegment{
		ID:   id,
		Text: "narrative for " + id,
		Audio: &models.AudioHandle{
			ID:  audioID,
			URL: "/api/v1/audio/" + audioID,
		},
	}
}

func TestStoryStoreSegments(t *testing.T) {
	releaser := &fakeReleaser{}
	store := newTestStoryStore(t, nil, releaser)

	t.Run("no current segment initially", func(t *testing.T) {
		assert.Nil(t, store.CurrentSegment())
		assert.Empty(t, store.Segments())
	})

	t.Run("appended segment becomes current", func(t *testing.T) {
		store.AddSegment(segmentWithAudio("seg-1", "audio-1"))

		current := store.CurrentSegment()
		require.NotNil(t, current)
		assert.Equal(t, "seg-1", current.ID)
		assert.Empty(t, releaser.revokedIDs())
	})

	t.Run("superseded segment's audio is revoked", func(t *testing.T) {
		store.AddSegment(segmentWithAudio("seg-2", "audio-2"))

		assert.Equal(t, "seg-2", store.CurrentSegment().ID)
		assert.Equal(t, []string{"audio-1"}, releaser.revokedIDs())
		assert.Len(t, store.Segments(), 2)
	})

	t.Run("reset revokes every remaining handle", func(t *testing.T) {
		store.Reset()

		assert.Nil(t, store.CurrentSegment())
		assert.Empty(t, store.Segments())
		assert.Empty(t, store.Theme())
		assert.Equal(t, []string{"audio-1", "audio-2"}, releaser.revokedIDs())
	})
}

func TestStoryStoreFullStoryText(t *testing.T) {
	store := newTestStoryStore(t, nil, nil)
	store.AddSegment(models.StorySegment{ID: "a", Text: "First part."})
	store.AddSegment(models.StorySegment{ID: "b", Text: "Second part."})

	assert.Equal(t, "First part.\n\nSecond part.", store.FullStoryText())
}

func TestStoryStoreGeneratingFlag(t *testing.T) {
	store := newTestStoryStore(t, nil, nil)

	assert.False(t, store.IsGenerating())
	assert.True(t, store.TryBeginGenerating())
	assert.True(t, store.IsGenerating())

	// A second claim fails while the first is still in flight.
	assert.False(t, store.TryBeginGenerating())

	store.EndGenerating()
	assert.False(t, store.IsGenerating())
	assert.True(t, store.TryBeginGenerating())
}

func TestStoryStoreProgress(t *testing.T) {
	persist := storage.NewMemoryStore()
	store := newTestStoryStore(t, persist, nil)

	t.Run("start opens a record for the profile", func(t *testing.T) {
		store.StartStory("profile-1", "Space Adventure")

		records := store.ProgressFor("profile-1")
		require.Len(t, records, 1)
		assert.Equal(t, "Space Adventure", records[0].Theme)
		assert.False(t, records[0].Completed())
		assert.Equal(t, "Space Adventure", store.Theme())
	})

	t.Run("segments update the open record", func(t *testing.T) {
		store.AddSegment(models.StorySegment{ID: "seg-1", Text: "..."})

		records := store.ProgressFor("profile-1")
		require.Len(t, records, 1)
		assert.Equal(t, "seg-1", records[0].LastSegmentID)
	})

	t.Run("completion is idempotent", func(t *testing.T) {
		store.CompleteStory("profile-1")
		records := store.ProgressFor("profile-1")
		require.Len(t, records, 1)
		require.True(t, records[0].Completed())
		completedAt := *records[0].CompletedAt

		store.CompleteStory("profile-1")
		records = store.ProgressFor("profile-1")
		assert.Equal(t, completedAt, *records[0].CompletedAt)
	})

	t.Run("anonymous session opens no record", func(t *testing.T) {
		store.StartStory("", "dinosaurs")
		assert.Len(t, store.ProgressFor(""), 0)
		assert.Equal(t, "dinosaurs", store.Theme())
	})

	t.Run("records survive a restart", func(t *testing.T) {
		rehydrated := newTestStoryStore(t, persist, nil)
		records := rehydrated.ProgressFor("profile-1")
		require.Len(t, records, 1)
		assert.True(t, records[0].Completed())
		// Session content is ephemeral and does not come back.
		assert.Nil(t, rehydrated.CurrentSegment())
		assert.Empty(t, rehydrated.Theme())
	})
}

func TestStoryStoreStartClearsSession(t *testing.T) {
	releaser := &fakeReleaser{}
	store := newTestStoryStore(t, nil, releaser)

	store.StartStory("", "pirates")
	store.AddSegment(segmentWithAudio("seg-1", "audio-1"))
	store.SetPlaying(true)

	store.StartStory("", "dragons")

	assert.Nil(t, store.CurrentSegment())
	assert.Empty(t, store.Segments())
	assert.False(t, store.Playing())
	assert.Equal(t, "dragons", store.Theme())
	assert.Equal(t, []string{"audio-1"}, releaser.revokedIDs())
}

func TestStoryStoreQuestions(t *testing.T) {
	store := newTestStoryStore(t, nil, nil)

	store.SetQuestions([]models.ComprehensionQuestion{
		{ID: "q1", Question: "Where did the rocket land?"},
	})
	require.Len(t, store.Questions(), 1)

	store.Reset()
	assert.Empty(t, store.Questions())
}
