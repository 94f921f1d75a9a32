package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testQuery(name string) SavedQuery {
	return SavedQuery{
		Name:       name,
		Query:      "status:open AND priority:high",
		EntityType: "issue",
		ProjectID:  42,
		LastRun:    time.Date(2026, time.March, 18, 12, 0, 0, 0, time.UTC),
		LastTotal:  7,
	}
}

func TestStore_SaveAndLoad(t *testing.T) {
	store := NewStore(t.TempDir())

	saved := testQuery("overdue")
	require.NoError(t, store.Save(saved))

	loaded, err := store.Load("overdue")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, saved, *loaded)
}

func TestStore_LoadMissingReturnsNil(t *testing.T) {
	store := NewStore(t.TempDir())

	loaded, err := store.Load("nonexistent")
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestStore_Exists(t *testing.T) {
	store := NewStore(t.TempDir())

	assert.False(t, store.Exists("overdue"))
	require.NoError(t, store.Save(testQuery("overdue")))
	assert.True(t, store.Exists("overdue"))
}

func TestStore_List(t *testing.T) {
	dataDir := t.TempDir()
	store := NewStore(dataDir)

	require.NoError(t, store.Save(testQuery("alpha")))
	require.NoError(t, store.Save(testQuery("beta")))

	// unrelated and broken files are skipped
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "notes.txt"), []byte("ignore me"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "broken.yaml"), []byte("{{{not yaml"), 0644))

	saved, err := store.List()
	require.NoError(t, err)

	names := make([]string, 0, len(saved))
	for _, item := range saved {
		names = append(names, item.Name)
	}
	assert.ElementsMatch(t, []string{"alpha", "beta"}, names)
}

func TestStore_Delete(t *testing.T) {
	store := NewStore(t.TempDir())

	require.NoError(t, store.Save(testQuery("overdue")))
	require.NoError(t, store.Delete("overdue"))
	assert.False(t, store.Exists("overdue"))

	// deleting a missing query is not an error
	require.NoError(t, store.Delete("overdue"))
}

func TestStore_SaveOverwrites(t *testing.T) {
	store := NewStore(t.TempDir())

	first := testQuery("overdue")
	require.NoError(t, store.Save(first))

	second := first
	second.LastTotal = 12
	require.NoError(t, store.Save(second))

	loaded, err := store.Load("overdue")
	require.NoError(t, err)
	assert.Equal(t, 12, loaded.LastTotal)
}
