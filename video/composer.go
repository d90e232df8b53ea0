package video

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"

	"chat-drama-pipeline/config"
)

// Composer turns an ordered frame sequence plus an optional audio track
// into one encoded video file, using ffmpeg.
type Composer struct {
	cfg *config.Config
}

// NewComposer creates a new Composer.
func NewComposer(cfg *config.Config) *Composer {
	return &Composer{cfg: cfg}
}

// IsTypingFrame reports whether a frame path is a typing-indicator frame.
// The renderer tags typing frames by filename.
func IsTypingFrame(path string) bool {
	return strings.Contains(filepath.Base(path), "typing")
}

// TotalDuration returns the summed screen time of a frame list in seconds.
// The final video duration is exactly this value; audio is fitted to it.
func TotalDuration(framePaths []string, displaySec, typingSec float64) float64 {
	var total float64
	for _, p := range framePaths {
		if IsTypingFrame(p) {
			total += typingSec
		} else {
			total += displaySec
		}
	}
	return total
}

// ComposeFromFrames concatenates the frames in list order, each shown for
// its assigned duration, attaches the audio track if given, and writes the
// encoded result to outPath. Audio shorter than the video is looped and
// then trimmed to the video length, with configured fade in/out and gain.
func (c *Composer) ComposeFromFrames(ctx context.Context, framePaths []string, outPath, audioPath string, displaySec, typingSec float64) error {
	if len(framePaths) == 0 {
		return fmt.Errorf("compose: no frames to compose")
	}

	workDir := filepath.Dir(outPath)
	totalSec := TotalDuration(framePaths, displaySec, typingSec)
	log.Info().Msgf("[compose] %d frames, %.1fs total", len(framePaths), totalSec)

	listFile := filepath.Join(workDir, "frames_concat.txt")
	if err := writeConcatList(listFile, framePaths, displaySec, typingSec); err != nil {
		return fmt.Errorf("compose: write concat list: %w", err)
	}
	defer os.Remove(listFile)

	silentVideo := filepath.Join(workDir, "video_silent.mp4")
	if err := c.encodeFrames(ctx, listFile, silentVideo); err != nil {
		return err
	}
	defer os.Remove(silentVideo)

	if audioPath == "" {
		return os.Rename(silentVideo, outPath)
	}
	if _, err := os.Stat(audioPath); err != nil {
		log.Warn().Msgf("[compose] audio track missing at %s, writing video without audio", audioPath)
		return os.Rename(silentVideo, outPath)
	}
	return c.muxAudio(ctx, silentVideo, audioPath, outPath, totalSec)
}

// writeConcatList emits an ffmpeg concat-demuxer script assigning each
// frame its screen duration. The last frame is repeated without a duration
// entry, which the demuxer requires to honor the final duration.
func writeConcatList(listFile string, framePaths []string, displaySec, typingSec float64) error {
	var sb strings.Builder
	for _, p := range framePaths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return err
		}
		dur := displaySec
		if IsTypingFrame(p) {
			dur = typingSec
		}
		fmt.Fprintf(&sb, "file '%s'\nduration %.3f\n", abs, dur)
	}
	last, err := filepath.Abs(framePaths[len(framePaths)-1])
	if err != nil {
		return err
	}
	fmt.Fprintf(&sb, "file '%s'\n", last)
	return os.WriteFile(listFile, []byte(sb.String()), 0644)
}

func (c *Composer) encodeFrames(ctx context.Context, listFile, outFile string) error {
	w, h := c.cfg.Chat.Width, c.cfg.Chat.Height
	cmd := exec.CommandContext(ctx, "ffmpeg", "-y",
		"-f", "concat",
		"-safe", "0",
		"-i", listFile,
		"-vf", fmt.Sprintf("scale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2,setsar=1", w, h, w, h),
		"-r", fmt.Sprintf("%d", c.cfg.Video.FPS),
		"-c:v", c.cfg.Video.Codec,
		"-b:v", c.cfg.Video.Bitrate,
		"-preset", "medium",
		"-pix_fmt", "yuv420p",
		"-an",
		outFile,
	)
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("compose: ffmpeg concat frames: %w", err)
	}
	return nil
}

// muxAudio attaches the audio track to the silent video. The audio input is
// looped indefinitely and cut at the video duration, so the video length is
// never changed by the audio.
func (c *Composer) muxAudio(ctx context.Context, videoFile, audioFile, outFile string, totalSec float64) error {
	fadeOutStart := totalSec - c.cfg.Audio.FadeOutSec
	if fadeOutStart < 0 {
		fadeOutStart = 0
	}
	audioFilter := fmt.Sprintf(
		"volume=%.2f,afade=t=in:st=0:d=%.2f,afade=t=out:st=%.3f:d=%.2f",
		c.cfg.Audio.MusicVolume,
		c.cfg.Audio.FadeInSec,
		fadeOutStart,
		c.cfg.Audio.FadeOutSec,
	)

	cmd := exec.CommandContext(ctx, "ffmpeg", "-y",
		"-i", videoFile,
		"-stream_loop", "-1",
		"-i", audioFile,
		"-af", audioFilter,
		"-c:v", "copy",
		"-c:a", "aac",
		"-b:a", "192k",
		"-shortest",
		"-movflags", "+faststart",
		outFile,
	)
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("compose: ffmpeg mux audio: %w", err)
	}
	return nil
}
