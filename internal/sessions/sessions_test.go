package sessions

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_CreateAndLoad(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	session, err := store.Create("work", "https://issues.example.com/webissues", "alice")
	require.NoError(t, err)
	assert.NotEmpty(t, session.ID)
	assert.Equal(t, "work", session.Name)
	assert.Equal(t, session.ID+".db", filepath.Base(session.SnapshotPath))

	loaded, err := store.Load(session.ID)
	require.NoError(t, err)
	assert.Equal(t, session, loaded)
}

func TestStore_DuplicateNameRejected(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Create("work", "https://a.example.com", "alice")
	require.NoError(t, err)

	_, err = store.Create("Work", "https://b.example.com", "bob")
	var exists *SessionExistsError
	require.ErrorAs(t, err, &exists)
	assert.Equal(t, "Work", exists.Name)
}

func TestStore_FindByName(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	created, err := store.Create("Work Issues", "https://issues.example.com", "alice")
	require.NoError(t, err)

	found, err := store.FindByName("work issues")
	require.NoError(t, err)
	assert.Equal(t, created.ID, found.ID)

	_, err = store.FindByName("missing")
	var notFound *SessionNotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestStore_SaveUpdatesLastSync(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	session, err := store.Create("work", "https://issues.example.com", "alice")
	require.NoError(t, err)

	session.LastSync = time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, store.Save(session))

	loaded, err := store.Load(session.ID)
	require.NoError(t, err)
	assert.True(t, loaded.LastSync.Equal(session.LastSync))
}

func TestStore_DeleteRemovesSnapshot(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	session, err := store.Create("work", "https://issues.example.com", "alice")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(session.SnapshotPath, []byte("x"), 0600))

	require.NoError(t, store.Delete(session.ID))
	_, err = os.Stat(session.SnapshotPath)
	assert.True(t, os.IsNotExist(err))

	_, err = store.Load(session.ID)
	var notFound *SessionNotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestStore_ListSkipsForeignFiles(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	require.NoError(t, err)

	_, err = store.Create("work", "https://issues.example.com", "alice")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0600))

	sessions, err := store.List()
	require.NoError(t, err)
	assert.Len(t, sessions, 1)
}
