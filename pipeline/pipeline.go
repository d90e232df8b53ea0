package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"chat-drama-pipeline/audio"
	"chat-drama-pipeline/config"
	"chat-drama-pipeline/types"
	"chat-drama-pipeline/video"
)

// StoryGenerator produces the chat drama for a job.
type StoryGenerator interface {
	Generate(ctx context.Context, theme string, numMessages int) (*types.Story, error)
	GenerateFromTopic(ctx context.Context, topic, theme string, numMessages int) (*types.Story, error)
}

// FrameRenderer produces the frame sequence and thumbnail for a story.
// RenderAllFrames must return paths in temporal production order.
type FrameRenderer interface {
	RenderAllFrames(story *types.Story, outputDir string, includeTyping bool) ([]string, error)
	RenderThumbnail(story *types.Story, outputPath string) error
}

// AudioMixer builds the duration-matched audio track for a video.
type AudioMixer interface {
	MixForVideo(ctx context.Context, durationMs int, musicPath string, sfxTimestampsMs []int, outputPath string) (string, error)
}

// VideoComposer assembles frames and audio into the final video file.
type VideoComposer interface {
	ComposeFromFrames(ctx context.Context, framePaths []string, outPath, audioPath string, displaySec, typingSec float64) error
}

// Uploader publishes the finished video. It retries transient failures
// internally and returns an empty id, not an error, when retries are
// exhausted; configuration problems are errors.
type Uploader interface {
	Upload(ctx context.Context, videoPath string, story *types.Story, thumbnailPath string) (string, error)
}

// RunOptions adjusts a single pipeline run.
type RunOptions struct {
	Upload    bool
	MusicPath string
	Topic     string
	Messages  int
}

// Pipeline sequences the stages for one job and owns all status
// transitions. Jobs are persisted after every mutation so a killed run
// leaves an accurate record behind.
type Pipeline struct {
	cfg      *config.Config
	store    *Store
	stories  StoryGenerator
	frames   FrameRenderer
	mixer    AudioMixer
	composer VideoComposer
	uploader Uploader
}

// New wires a Pipeline from its collaborators.
func New(cfg *config.Config, store *Store, stories StoryGenerator, frames FrameRenderer, mixer AudioMixer, composer VideoComposer, uploader Uploader) *Pipeline {
	return &Pipeline{
		cfg:      cfg,
		store:    store,
		stories:  stories,
		frames:   frames,
		mixer:    mixer,
		composer: composer,
		uploader: uploader,
	}
}

// CreateJob makes a new pending job and persists it.
func (p *Pipeline) CreateJob(theme string) (*Job, error) {
	job := &Job{
		ID:        uuid.NewString()[:8],
		Theme:     theme,
		Status:    StatusPending,
		CreatedAt: time.Now().UTC(),
	}
	if err := p.store.Save(job); err != nil {
		return nil, err
	}
	log.Info().Msgf("[pipeline] created job %s theme=%s", job.ID, orAny(theme))
	return job, nil
}

// Run creates and runs a single job end to end.
func (p *Pipeline) Run(ctx context.Context, theme string, opts RunOptions) (*Job, error) {
	job, err := p.CreateJob(theme)
	if err != nil {
		return nil, err
	}
	if err := p.RunJob(ctx, job, opts); err != nil {
		return job, err
	}
	return job, nil
}

// RunJob drives one job through every stage. The first stage error aborts
// the rest, marks the job failed with the error attached, persists it, and
// is returned to the caller.
func (p *Pipeline) RunJob(ctx context.Context, job *Job, opts RunOptions) error {
	if err := p.runStages(ctx, job, opts); err != nil {
		job.Status = StatusFailed
		job.Error = err.Error()
		if saveErr := p.store.Save(job); saveErr != nil {
			log.Error().Err(saveErr).Msgf("[pipeline] job %s: failed to persist failure", job.ID)
		}
		log.Error().Err(err).Msgf("[pipeline] job %s failed", job.ID)
		return err
	}
	return nil
}

func (p *Pipeline) runStages(ctx context.Context, job *Job, opts RunOptions) error {
	tmpDir := filepath.Join(p.cfg.Paths.RendersTmp, job.ID)
	if err := os.MkdirAll(tmpDir, 0o755); err != nil {
		return fmt.Errorf("create work dir: %w", err)
	}

	// story
	if err := p.transition(job, StatusGeneratingStory); err != nil {
		return err
	}
	var st *types.Story
	var err error
	if opts.Topic != "" {
		st, err = p.stories.GenerateFromTopic(ctx, opts.Topic, job.Theme, opts.Messages)
	} else {
		st, err = p.stories.Generate(ctx, job.Theme, opts.Messages)
	}
	if err != nil {
		return err
	}
	job.Story = st
	job.Theme = st.Theme
	if err := p.store.Save(job); err != nil {
		return err
	}

	// frames
	if err := p.transition(job, StatusRenderingFrames); err != nil {
		return err
	}
	framePaths, err := p.frames.RenderAllFrames(st, filepath.Join(tmpDir, "frames"), p.cfg.Video.TypingEnabled())
	if err != nil {
		return err
	}
	thumbPath := filepath.Join(p.cfg.Paths.RendersFinal, job.ID+"_thumb.png")
	if err := p.frames.RenderThumbnail(st, thumbPath); err != nil {
		return err
	}
	job.ThumbnailPath = thumbPath
	if err := p.store.Save(job); err != nil {
		return err
	}

	// audio
	if err := p.transition(job, StatusMixingAudio); err != nil {
		return err
	}
	displaySec, typingSec, err := video.Durations(len(st.Messages), p.cfg.Video.DurationMin, p.cfg.Video.DurationMax)
	if err != nil {
		return err
	}
	totalMs := int(video.TotalDuration(framePaths, displaySec, typingSec) * 1000)
	// cue spacing has to mirror the rendered frame timeline: no typing
	// frames means no typing beats between cues
	typingMs := int(typingSec * 1000)
	if !p.cfg.Video.TypingEnabled() {
		typingMs = 0
	}
	cues := audio.SFXTimestamps(len(st.Messages), int(displaySec*1000), typingMs, true)
	audioPath, err := p.mixer.MixForVideo(ctx, totalMs, opts.MusicPath, cues, filepath.Join(tmpDir, "audio.mp3"))
	if err != nil {
		return err
	}
	if err := p.store.Save(job); err != nil {
		return err
	}

	// video
	if err := p.transition(job, StatusComposingVideo); err != nil {
		return err
	}
	videoPath := filepath.Join(p.cfg.Paths.RendersFinal, job.ID+".mp4")
	if err := p.composer.ComposeFromFrames(ctx, framePaths, videoPath, audioPath, displaySec, typingSec); err != nil {
		return err
	}
	job.VideoPath = videoPath
	if err := p.store.Save(job); err != nil {
		return err
	}

	// upload
	if opts.Upload {
		if err := p.transition(job, StatusUploading); err != nil {
			return err
		}
		videoID, err := p.uploader.Upload(ctx, job.VideoPath, st, job.ThumbnailPath)
		if err != nil {
			return err
		}
		if videoID == "" {
			log.Warn().Msgf("[pipeline] job %s: upload exhausted retries, video kept locally", job.ID)
		}
		job.YouTubeID = videoID
		if err := p.store.Save(job); err != nil {
			return err
		}
	}

	now := time.Now().UTC()
	job.CompletedAt = &now
	if err := p.transition(job, StatusCompleted); err != nil {
		return err
	}

	// Temp artifacts are only removed on success; a failed job keeps its
	// frames and audio around for inspection.
	if err := os.RemoveAll(tmpDir); err != nil {
		log.Warn().Err(err).Msgf("[pipeline] job %s: temp cleanup failed", job.ID)
	}

	log.Info().Msgf("[pipeline] job %s completed: %s", job.ID, job.VideoPath)
	return nil
}

// transition sets the status and persists the job before the stage runs.
func (p *Pipeline) transition(job *Job, status Status) error {
	job.Status = status
	if err := p.store.Save(job); err != nil {
		return fmt.Errorf("persist %s: %w", status, err)
	}
	log.Info().Msgf("[pipeline] job %s -> %s", job.ID, status)
	return nil
}

// RunBatch runs count jobs strictly one after another, cycling through the
// given themes. A failed job is logged and skipped so the batch continues.
// Returns the jobs that completed successfully.
func (p *Pipeline) RunBatch(ctx context.Context, count int, themes []string, opts RunOptions) ([]*Job, error) {
	if count <= 0 {
		return nil, fmt.Errorf("batch count must be positive, got %d", count)
	}
	var done []*Job
	for i := 0; i < count; i++ {
		theme := ""
		if len(themes) > 0 {
			theme = themes[i%len(themes)]
		}
		log.Info().Msgf("[pipeline] batch %d/%d", i+1, count)
		job, err := p.Run(ctx, theme, opts)
		if err != nil {
			continue
		}
		done = append(done, job)
	}
	log.Info().Msgf("[pipeline] batch finished: %d/%d succeeded", len(done), count)
	return done, nil
}

// ListJobs returns persisted jobs, newest first, optionally filtered by
// status.
func (p *Pipeline) ListJobs(status Status) ([]*Job, error) {
	jobs, err := p.store.List()
	if err != nil {
		return nil, err
	}
	if status != "" {
		filtered := jobs[:0]
		for _, j := range jobs {
			if j.Status == status {
				filtered = append(filtered, j)
			}
		}
		jobs = filtered
	}
	sort.Slice(jobs, func(i, k int) bool {
		return jobs[i].CreatedAt.After(jobs[k].CreatedAt)
	})
	return jobs, nil
}

// RetryFailed resets every failed job to pending and re-runs it from the
// beginning. Runs do not resume from the last completed stage. Returns how
// many of the retried jobs succeeded.
func (p *Pipeline) RetryFailed(ctx context.Context, opts RunOptions) (int, error) {
	failed, err := p.ListJobs(StatusFailed)
	if err != nil {
		return 0, err
	}
	if len(failed) == 0 {
		log.Info().Msg("[pipeline] no failed jobs to retry")
		return 0, nil
	}

	succeeded := 0
	for _, job := range failed {
		job.Status = StatusPending
		job.Error = ""
		if err := p.store.Save(job); err != nil {
			log.Error().Err(err).Msgf("[pipeline] job %s: reset failed", job.ID)
			continue
		}
		log.Info().Msgf("[pipeline] retrying job %s", job.ID)
		if err := p.RunJob(ctx, job, opts); err != nil {
			continue
		}
		succeeded++
	}
	log.Info().Msgf("[pipeline] retry finished: %d/%d succeeded", succeeded, len(failed))
	return succeeded, nil
}

func orAny(theme string) string {
	if theme == "" {
		return "(random)"
	}
	return theme
}
