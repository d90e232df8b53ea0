package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat-drama-pipeline/config"
	"chat-drama-pipeline/types"
)

// harness wires a pipeline over fake collaborators so state-machine
// behavior can be tested without ffmpeg or network access.
type harness struct {
	cfg      *config.Config
	store    *Store
	pipeline *Pipeline

	// when jobID is set, every fake records the persisted status at the
	// moment it is called, proving the transition was durable before the
	// stage ran
	jobID    string
	statuses []Status

	failGenerate   bool
	generateCalls  int
	failOnCall     int
	uploadCalls    int
	uploadID       string
	composedFrames []string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	root := t.TempDir()
	cfg := config.Default()
	cfg.Paths.Jobs = filepath.Join(root, "jobs")
	cfg.Paths.RendersFinal = filepath.Join(root, "final")
	cfg.Paths.RendersTmp = filepath.Join(root, "tmp")
	cfg.Paths.Logs = filepath.Join(root, "logs")
	require.NoError(t, cfg.EnsureDirs())

	store, err := NewStore(cfg.Paths.Jobs)
	require.NoError(t, err)

	h := &harness{cfg: cfg, store: store, uploadID: "yt-video-1", failOnCall: -1}
	h.pipeline = New(cfg, store, h, h, h, h, h)
	return h
}

func (h *harness) observe() {
	if h.jobID == "" {
		return
	}
	if job, err := h.store.Load(h.jobID); err == nil {
		h.statuses = append(h.statuses, job.Status)
	}
}

func (h *harness) Generate(_ context.Context, theme string, _ int) (*types.Story, error) {
	h.observe()
	h.generateCalls++
	if h.failGenerate || h.generateCalls == h.failOnCall {
		return nil, errors.New("model returned garbage")
	}
	if theme == "" {
		theme = "AITA"
	}
	return &types.Story{
		Title: fmt.Sprintf("drama %d", h.generateCalls),
		Theme: theme,
		Messages: []types.Message{
			{Username: "mia", Content: "you did WHAT", AvatarColor: "#f47fff"},
			{Username: "jax", Content: "it was one time", AvatarColor: "#7289da"},
			{Username: "mia", Content: "we are done", AvatarColor: "#f47fff"},
		},
	}, nil
}

func (h *harness) GenerateFromTopic(ctx context.Context, _, theme string, n int) (*types.Story, error) {
	return h.Generate(ctx, theme, n)
}

func (h *harness) RenderAllFrames(story *types.Story, outputDir string, includeTyping bool) ([]string, error) {
	h.observe()
	var paths []string
	frameNum := 0
	for i := range story.Messages {
		if includeTyping && i > 0 {
			frameNum++
			paths = append(paths, filepath.Join(outputDir, fmt.Sprintf("frame_%04d_typing.png", frameNum)))
		}
		frameNum++
		paths = append(paths, filepath.Join(outputDir, fmt.Sprintf("frame_%04d.png", frameNum)))
	}
	return paths, nil
}

func (h *harness) RenderThumbnail(_ *types.Story, outputPath string) error {
	return os.WriteFile(outputPath, []byte("png"), 0o644)
}

func (h *harness) MixForVideo(_ context.Context, _ int, _ string, _ []int, outputPath string) (string, error) {
	h.observe()
	return outputPath, nil
}

func (h *harness) ComposeFromFrames(_ context.Context, framePaths []string, outPath, _ string, _, _ float64) error {
	h.observe()
	h.composedFrames = framePaths
	return os.WriteFile(outPath, []byte("mp4"), 0o644)
}

func (h *harness) Upload(_ context.Context, _ string, _ *types.Story, _ string) (string, error) {
	h.observe()
	h.uploadCalls++
	return h.uploadID, nil
}

func TestRunJobHappyPathWithUpload(t *testing.T) {
	h := newHarness(t)

	job, err := h.pipeline.Run(context.Background(), "AITA", RunOptions{Upload: true})
	require.NoError(t, err)

	persisted, err := h.store.Load(job.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, persisted.Status)
	assert.Equal(t, "yt-video-1", persisted.YouTubeID)
	assert.NotNil(t, persisted.CompletedAt)
	assert.Empty(t, persisted.Error)
	assert.Equal(t, filepath.Join(h.cfg.Paths.RendersFinal, job.ID+".mp4"), persisted.VideoPath)
	assert.FileExists(t, persisted.VideoPath)
	assert.FileExists(t, persisted.ThumbnailPath)
	assert.Equal(t, 1, h.uploadCalls)
	// 3 reveal frames plus 2 typing frames, typing animation on by default
	assert.Len(t, h.composedFrames, 5)

	// temp work dir is removed on success
	assert.NoDirExists(t, filepath.Join(h.cfg.Paths.RendersTmp, job.ID))
}

func TestRunJobSkipsUploadingWhenDisabled(t *testing.T) {
	h := newHarness(t)

	job, err := h.pipeline.Run(context.Background(), "", RunOptions{Upload: false})
	require.NoError(t, err)

	persisted, err := h.store.Load(job.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, persisted.Status)
	assert.Empty(t, persisted.YouTubeID)
	assert.Zero(t, h.uploadCalls)
}

func TestRunJobFailurePersistsError(t *testing.T) {
	h := newHarness(t)
	h.failGenerate = true

	job, err := h.pipeline.Run(context.Background(), "AITA", RunOptions{})
	require.Error(t, err)
	require.NotNil(t, job)

	persisted, loadErr := h.store.Load(job.ID)
	require.NoError(t, loadErr)
	assert.Equal(t, StatusFailed, persisted.Status)
	assert.Equal(t, "model returned garbage", persisted.Error)
	assert.Nil(t, persisted.CompletedAt)

	// failed jobs keep their work dir for inspection
	assert.DirExists(t, filepath.Join(h.cfg.Paths.RendersTmp, job.ID))
}

func TestRunJobStatusSequenceIsDurable(t *testing.T) {
	h := newHarness(t)

	job, err := h.pipeline.CreateJob("AITA")
	require.NoError(t, err)
	h.jobID = job.ID

	persisted, err := h.store.Load(job.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, persisted.Status)

	require.NoError(t, h.pipeline.RunJob(context.Background(), job, RunOptions{Upload: true}))

	// each stage saw exactly its own status already on disk, in order
	assert.Equal(t, []Status{
		StatusGeneratingStory,
		StatusRenderingFrames,
		StatusMixingAudio,
		StatusComposingVideo,
		StatusUploading,
	}, h.statuses)

	final, err := h.store.Load(job.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, final.Status)
	require.NotNil(t, final.Story)
	assert.Len(t, final.Story.Messages, 3)
}

func TestRunJobStatusSequenceWithoutUpload(t *testing.T) {
	h := newHarness(t)

	job, err := h.pipeline.CreateJob("")
	require.NoError(t, err)
	h.jobID = job.ID

	require.NoError(t, h.pipeline.RunJob(context.Background(), job, RunOptions{Upload: false}))
	assert.Equal(t, []Status{
		StatusGeneratingStory,
		StatusRenderingFrames,
		StatusMixingAudio,
		StatusComposingVideo,
	}, h.statuses)
}

func TestRunBatchIsolatesFailures(t *testing.T) {
	h := newHarness(t)
	h.failOnCall = 2

	done, err := h.pipeline.RunBatch(context.Background(), 5, []string{"AITA", "family_dinner"}, RunOptions{})
	require.NoError(t, err)
	assert.Len(t, done, 4)

	all, err := h.pipeline.ListJobs("")
	require.NoError(t, err)
	assert.Len(t, all, 5)

	failed, err := h.pipeline.ListJobs(StatusFailed)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "model returned garbage", failed[0].Error)
}

func TestRunBatchCyclesThemes(t *testing.T) {
	h := newHarness(t)

	done, err := h.pipeline.RunBatch(context.Background(), 4, []string{"AITA", "family_dinner"}, RunOptions{})
	require.NoError(t, err)
	require.Len(t, done, 4)
	assert.Equal(t, "AITA", done[0].Theme)
	assert.Equal(t, "family_dinner", done[1].Theme)
	assert.Equal(t, "AITA", done[2].Theme)
	assert.Equal(t, "family_dinner", done[3].Theme)
}

func TestRunBatchRejectsNonPositiveCount(t *testing.T) {
	h := newHarness(t)
	_, err := h.pipeline.RunBatch(context.Background(), 0, nil, RunOptions{})
	assert.Error(t, err)
}

func TestRetryFailedRunsFromScratch(t *testing.T) {
	h := newHarness(t)
	h.failGenerate = true

	job, err := h.pipeline.Run(context.Background(), "AITA", RunOptions{})
	require.Error(t, err)

	h.failGenerate = false
	succeeded, err := h.pipeline.RetryFailed(context.Background(), RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, succeeded)

	persisted, err := h.store.Load(job.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, persisted.Status)
	assert.Empty(t, persisted.Error)
	// story generation ran again, not resumed
	assert.Equal(t, 2, h.generateCalls)
}

func TestListJobsSortedNewestFirst(t *testing.T) {
	h := newHarness(t)

	for i := 0; i < 3; i++ {
		job := sampleJob(StatusCompleted)
		job.ID = fmt.Sprintf("job-%d", i)
		job.CreatedAt = time.Date(2026, 8, 30, 10+i, 0, 0, 0, time.UTC)
		require.NoError(t, h.store.Save(job))
	}

	jobs, err := h.pipeline.ListJobs("")
	require.NoError(t, err)
	require.Len(t, jobs, 3)
	assert.Equal(t, "job-2", jobs[0].ID)
	assert.Equal(t, "job-1", jobs[1].ID)
	assert.Equal(t, "job-0", jobs[2].ID)
}
