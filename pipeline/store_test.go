package pipeline

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreSaveLoad(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	job := sampleJob(StatusCompleted)
	require.NoError(t, store.Save(job))

	back, err := store.Load(job.ID)
	require.NoError(t, err)
	assert.Equal(t, job, back)
}

func TestStoreListSkipsUnreadable(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	require.NoError(t, err)

	good := sampleJob(StatusPending)
	require.NoError(t, store.Save(good))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.json"), []byte("{not json"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignore me"), 0o644))

	jobs, err := store.List()
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, good.ID, jobs[0].ID)
}

func TestStoreSaveOverwrites(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	job := sampleJob(StatusPending)
	require.NoError(t, store.Save(job))

	job.Status = StatusFailed
	job.Error = "ffmpeg exploded"
	now := time.Now().UTC().Truncate(time.Second)
	job.CompletedAt = &now
	require.NoError(t, store.Save(job))

	back, err := store.Load(job.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, back.Status)
	assert.Equal(t, "ffmpeg exploded", back.Error)
}
