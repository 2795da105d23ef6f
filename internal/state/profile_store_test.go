package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"storyteller/server/internal/storage"
)

func newTestProfileStore(t *testing.T, persist storage.Persistence) *ProfileStore {
	t.Helper()
	logger := zap.NewNop()
	return NewProfileStore(persist, NewActionLogger(logger, nil), logger)
}

func TestProfileStoreActivePointer(t *testing.T) {
	store := newTestProfileStore(t, storage.NewMemoryStore())

	t.Run("first profile becomes active", func(t *testing.T) {
		first := store.AddProfile("Mia", "fox")
		assert.Equal(t, first.ID, store.ActiveProfileID())
		require.NotNil(t, store.ActiveProfile())
		assert.Equal(t, "Mia", store.ActiveProfile().Name)
	})

	t.Run("second profile does not steal the pointer", func(t *testing.T) {
		active := store.ActiveProfileID()
		store.AddProfile("Theo", "owl")
		assert.Equal(t, active, store.ActiveProfileID())
		assert.Len(t, store.Profiles(), 2)
	})

	t.Run("explicit activation", func(t *testing.T) {
		profiles := store.Profiles()
		require.NoError(t, store.SetActive(profiles[1].ID))
		assert.Equal(t, profiles[1].ID, store.ActiveProfileID())
	})

	t.Run("activating an unknown profile fails", func(t *testing.T) {
		before := store.ActiveProfileID()
		assert.Error(t, store.SetActive("no-such-profile"))
		assert.Equal(t, before, store.ActiveProfileID())
	})

	t.Run("deleting the active profile clears the pointer", func(t *testing.T) {
		store.DeleteProfile(store.ActiveProfileID())
		assert.Empty(t, store.ActiveProfileID())
		assert.Nil(t, store.ActiveProfile())
		assert.Len(t, store.Profiles(), 1)
	})
}

func TestProfileStoreUpdate(t *testing.T) {
	store := newTestProfileStore(t, nil)
	created := store.AddProfile("Mia", "fox")

	t.Run("empty fields are left untouched", func(t *testing.T) {
		updated, err := store.UpdateProfile(created.ID, "", "rabbit")
		require.NoError(t, err)
		assert.Equal(t, "Mia", updated.Name)
		assert.Equal(t, "rabbit", updated.Avatar)
	})

	t.Run("unknown id fails", func(t *testing.T) {
		_, err := store.UpdateProfile("missing", "x", "y")
		assert.Error(t, err)
	})
}

func TestProfileStoreRehydrate(t *testing.T) {
	persist := storage.NewMemoryStore()

	first := newTestProfileStore(t, persist)
	created := first.AddProfile("Mia", "fox")
	first.AddProfile("Theo", "owl")

	second := newTestProfileStore(t, persist)
	assert.Len(t, second.Profiles(), 2)
	assert.Equal(t, created.ID, second.ActiveProfileID())
}
