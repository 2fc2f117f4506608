package session

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/clemsonciti/slrun"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSession(jobID string) *slrun.JobSession {
	created := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)
	return &slrun.JobSession{
		JobID:      jobID,
		Command:    []string{"python", "train.py", "--epochs", "3"},
		WorkDir:    "/scratch/me/project",
		TempDir:    "/scratch/me/project/.slrun_tmp_1741944413_abcd1234",
		OutputLog:  "/scratch/me/project/.slrun_tmp_1741944413_abcd1234/logs/output.log",
		ErrorLog:   "/scratch/me/project/.slrun_tmp_1741944413_abcd1234/logs/error.log",
		CreatedAt:  created,
		LastStatus: slrun.StatusPending,
	}
}

func TestFileStoreRoundTrip(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	sess := testSession("123")
	detached := time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)
	sess.DetachedAt = &detached
	require.NoError(t, store.Save(sess))

	got, err := store.Load("123")
	require.NoError(t, err)
	assert.Equal(t, sess, got)
}

func TestFileStoreLoadMissing(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Load("999")
	assert.ErrorIs(t, err, slrun.ErrSessionNotFound)
}

func TestFileStoreSaveOverwrites(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	sess := testSession("123")
	require.NoError(t, store.Save(sess))
	sess.LastStatus = slrun.StatusRunning
	require.NoError(t, store.Save(sess))

	got, err := store.Load("123")
	require.NoError(t, err)
	assert.Equal(t, slrun.StatusRunning, got.LastStatus)
}

func TestFileStoreList(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	require.NoError(t, err)

	require.NoError(t, store.Save(testSession("1")))
	require.NoError(t, store.Save(testSession("2")))
	// Junk in the directory must not break the listing.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "garbage.json"), []byte("{not json"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hi"), 0644))

	sessions, err := store.List()
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	ids := []string{sessions[0].JobID, sessions[1].JobID}
	assert.ElementsMatch(t, []string{"1", "2"}, ids)
}

func TestFileStoreDeleteIdempotent(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Save(testSession("123")))
	require.NoError(t, store.Delete("123"))
	require.NoError(t, store.Delete("123"))

	_, err = store.Load("123")
	assert.ErrorIs(t, err, slrun.ErrSessionNotFound)
}

func TestFileStoreNoPartialFilesAfterSave(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	require.NoError(t, err)
	require.NoError(t, store.Save(testSession("123")))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "123.json", entries[0].Name())
}

func TestMemStoreIsolation(t *testing.T) {
	store := NewMemStore()
	sess := testSession("123")
	require.NoError(t, store.Save(sess))

	// Mutating the caller's value must not reach the stored copy.
	sess.LastStatus = slrun.StatusFailed
	sess.Command[0] = "mutated"

	got, err := store.Load("123")
	require.NoError(t, err)
	assert.Equal(t, slrun.StatusPending, got.LastStatus)
	assert.Equal(t, "python", got.Command[0])

	var missing error
	_, missing = store.Load("999")
	assert.ErrorIs(t, missing, slrun.ErrSessionNotFound)
}
