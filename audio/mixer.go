package audio

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"

	"chat-drama-pipeline/config"
)

// supportedFormats lists the audio extensions the mixer will pick up from
// the asset directories.
var supportedFormats = []string{".mp3", ".wav", ".ogg", ".m4a", ".flac"}

// notificationNames are filename stems checked, in order, when looking for
// a message-notification stinger.
var notificationNames = []string{"notification", "notify", "ping", "message", "discord"}

// Mixer builds the mixed audio track for a video: looped background music
// plus notification stingers at computed timestamps. All mixing runs
// through ffmpeg.
type Mixer struct {
	cfg *config.Config
}

// NewMixer creates a new Mixer.
func NewMixer(cfg *config.Config) *Mixer {
	return &Mixer{cfg: cfg}
}

func listAudioFiles(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		for _, supported := range supportedFormats {
			if ext == supported {
				files = append(files, filepath.Join(dir, e.Name()))
				break
			}
		}
	}
	sort.Strings(files)
	return files
}

// RandomMusic returns a random track from the music library, or "" when the
// library is empty or missing.
func (m *Mixer) RandomMusic() string {
	files := listAudioFiles(m.cfg.Paths.Music)
	if len(files) == 0 {
		return ""
	}
	return files[rand.Intn(len(files))]
}

// notificationSound returns the stinger to overlay at message reveals, or
// "" when no SFX asset exists. Missing stingers are not an error.
func (m *Mixer) notificationSound() string {
	for _, name := range notificationNames {
		for _, ext := range supportedFormats {
			p := filepath.Join(m.cfg.Paths.SFX, name+ext)
			if _, err := os.Stat(p); err == nil {
				return p
			}
		}
	}
	if files := listAudioFiles(m.cfg.Paths.SFX); len(files) > 0 {
		return files[0]
	}
	return ""
}

// MixForVideo produces one duration-matched audio track at outputPath:
// background music looped/trimmed to durationMs, with notification
// stingers overlaid at the given timestamps. When musicPath is empty a
// random library track is used; when the library is empty too, the result
// is a fully silent track; a video must never fail solely because no
// music asset exists. Stingers are skipped silently when no SFX asset is
// available. A corrupt or unreadable asset is an error.
func (m *Mixer) MixForVideo(ctx context.Context, durationMs int, musicPath string, sfxTimestampsMs []int, outputPath string) (string, error) {
	durSec := float64(durationMs) / 1000.0

	if musicPath == "" {
		musicPath = m.RandomMusic()
	}

	// Silent base track pins the output to the exact requested duration;
	// amix with duration=first trims the looped music against it.
	args := []string{"-y",
		"-f", "lavfi",
		"-t", fmt.Sprintf("%.3f", durSec),
		"-i", "anullsrc=r=44100:cl=stereo",
	}
	var filters []string
	mixInputs := []string{"[0:a]"}
	inputIdx := 1

	if musicPath != "" {
		if _, err := os.Stat(musicPath); err != nil {
			return "", fmt.Errorf("mix: music file not found: %s", musicPath)
		}
		args = append(args, "-stream_loop", "-1", "-i", musicPath)
		mixInputs = append(mixInputs, fmt.Sprintf("[%d:a]", inputIdx))
		inputIdx++
	} else {
		log.Warn().Msg("[audio] no background music found, producing silent track")
	}

	if len(sfxTimestampsMs) > 0 && m.cfg.Audio.NotificationEnabled() {
		sfxPath := m.notificationSound()
		if sfxPath == "" {
			log.Warn().Msg("[audio] no notification sound asset, skipping stingers")
		} else {
			for _, ts := range sfxTimestampsMs {
				if ts >= durationMs {
					continue
				}
				args = append(args, "-i", sfxPath)
				filters = append(filters,
					fmt.Sprintf("[%d:a]volume=%.2f,adelay=%d|%d[s%d]",
						inputIdx, m.cfg.Audio.SFXVolume, ts, ts, inputIdx))
				mixInputs = append(mixInputs, fmt.Sprintf("[s%d]", inputIdx))
				inputIdx++
			}
		}
	}

	filters = append(filters, fmt.Sprintf("%samix=inputs=%d:duration=first:normalize=0[aout]",
		strings.Join(mixInputs, ""), len(mixInputs)))

	args = append(args,
		"-filter_complex", strings.Join(filters, ";"),
		"-map", "[aout]",
		"-c:a", "libmp3lame",
		"-q:a", "2",
		outputPath,
	)

	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("mix: ffmpeg audio mix: %w", err)
	}

	log.Info().Msgf("[audio] mixed %.1fs track: %s", durSec, outputPath)
	return outputPath, nil
}
