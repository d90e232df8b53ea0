package upload

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"

	"chat-drama-pipeline/config"
	"chat-drama-pipeline/types"
)

// ErrNoCredentials is returned when the YouTube OAuth environment
// variables are missing; this is a configuration error, not a transient
// failure.
var ErrNoCredentials = errors.New("upload: YOUTUBE_CLIENT_ID, YOUTUBE_CLIENT_SECRET and YOUTUBE_REFRESH_TOKEN must be set")

const maxUploadRetries = 10

// Uploader publishes finished videos to YouTube using a stored refresh
// token. Transient server errors are retried with exponential backoff; an
// exhausted retry budget returns an empty video id rather than an error.
type Uploader struct {
	cfg *config.Config
}

// NewUploader creates an Uploader. Credentials are checked at call time,
// not here, so a pipeline with uploading disabled never needs them.
func NewUploader(cfg *config.Config) *Uploader {
	return &Uploader{cfg: cfg}
}

func (u *Uploader) service(ctx context.Context) (*youtube.Service, error) {
	clientID := os.Getenv("YOUTUBE_CLIENT_ID")
	clientSecret := os.Getenv("YOUTUBE_CLIENT_SECRET")
	refreshToken := os.Getenv("YOUTUBE_REFRESH_TOKEN")
	if clientID == "" || clientSecret == "" || refreshToken == "" {
		return nil, ErrNoCredentials
	}

	oauthCfg := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{youtube.YoutubeUploadScope, youtube.YoutubeReadonlyScope},
	}
	token := &oauth2.Token{RefreshToken: refreshToken, Expiry: time.Now().Add(-time.Hour)}
	ts := oauthCfg.TokenSource(ctx, token)

	svc, err := youtube.NewService(ctx, option.WithTokenSource(ts))
	if err != nil {
		return nil, fmt.Errorf("upload: create youtube service: %w", err)
	}
	return svc, nil
}

// Authenticate verifies the stored credentials by fetching the channel
// they belong to.
func (u *Uploader) Authenticate(ctx context.Context) error {
	svc, err := u.service(ctx)
	if err != nil {
		return err
	}
	resp, err := svc.Channels.List([]string{"snippet", "statistics"}).Mine(true).Do()
	if err != nil {
		return fmt.Errorf("upload: fetch channel: %w", err)
	}
	if len(resp.Items) == 0 {
		return fmt.Errorf("upload: credentials valid but no channel found")
	}
	ch := resp.Items[0]
	log.Info().Msgf("[upload] authenticated as %q (%d subscribers, %d videos)",
		ch.Snippet.Title, ch.Statistics.SubscriberCount, ch.Statistics.VideoCount)
	return nil
}

// Upload publishes the video with metadata derived from the story and sets
// the thumbnail. Retriable server errors back off exponentially with
// jitter; when the retry budget runs out the video id is "" and err is
// nil, leaving the video on disk for manual publishing.
func (u *Uploader) Upload(ctx context.Context, videoPath string, story *types.Story, thumbnailPath string) (string, error) {
	svc, err := u.service(ctx)
	if err != nil {
		return "", err
	}

	file, err := os.Open(videoPath)
	if err != nil {
		return "", fmt.Errorf("upload: open video: %w", err)
	}
	defer file.Close()

	video := &youtube.Video{
		Snippet: &youtube.VideoSnippet{
			Title:       buildTitle(story),
			Description: buildDescription(u.cfg, story),
			Tags:        buildTags(u.cfg, story),
			CategoryId:  u.cfg.YouTube.CategoryID,
		},
		Status: &youtube.VideoStatus{
			PrivacyStatus:           u.cfg.YouTube.PrivacyStatus,
			SelfDeclaredMadeForKids: false,
		},
	}

	call := svc.Videos.Insert([]string{"snippet", "status"}, video).
		Media(file).
		NotifySubscribers(u.cfg.YouTube.NotifySubscribers)

	var uploaded *youtube.Video
	for retry := 0; ; retry++ {
		uploaded, err = call.Do()
		if err == nil {
			break
		}
		if !retriable(err) {
			return "", fmt.Errorf("upload: insert video: %w", err)
		}
		if retry >= maxUploadRetries {
			log.Error().Err(err).Msgf("[upload] giving up after %d retries", maxUploadRetries)
			return "", nil
		}
		wait := time.Duration(rand.Float64()*math.Pow(2, float64(retry))*1000) * time.Millisecond
		log.Warn().Err(err).Msgf("[upload] retriable error, retry %d/%d in %s", retry+1, maxUploadRetries, wait)
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return "", ctx.Err()
		}
		if _, err := file.Seek(0, 0); err != nil {
			return "", fmt.Errorf("upload: rewind video: %w", err)
		}
	}

	log.Info().Msgf("[upload] published https://youtube.com/shorts/%s", uploaded.Id)

	if thumbnailPath != "" {
		if err := u.setThumbnail(svc, uploaded.Id, thumbnailPath); err != nil {
			log.Warn().Err(err).Msg("[upload] thumbnail upload failed")
		}
	}
	u.logUpload(uploaded.Id, story)
	return uploaded.Id, nil
}

func (u *Uploader) setThumbnail(svc *youtube.Service, videoID, thumbnailPath string) error {
	thumb, err := os.Open(thumbnailPath)
	if err != nil {
		return fmt.Errorf("open thumbnail: %w", err)
	}
	defer thumb.Close()
	_, err = svc.Thumbnails.Set(videoID).Media(thumb).Do()
	return err
}

// logUpload appends a record of the published video to the upload log so
// the channel history survives job-store cleanup.
func (u *Uploader) logUpload(videoID string, story *types.Story) {
	entry := map[string]any{
		"video_id":    videoID,
		"title":       story.Title,
		"theme":       story.Theme,
		"uploaded_at": time.Now().UTC().Format(time.RFC3339),
	}
	line, err := json.Marshal(entry)
	if err != nil {
		return
	}
	logPath := filepath.Join(u.cfg.Paths.Logs, "uploads.jsonl")
	f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		log.Warn().Err(err).Msg("[upload] could not write upload log")
		return
	}
	defer f.Close()
	fmt.Fprintln(f, string(line))
}

// retriable reports whether an upload error is worth another attempt. API
// errors are retried only on server-side 5xx codes; any other error is a
// transport-level failure (connection reset, timeout, broken media stream)
// and gets retried too, except context cancellation.
func retriable(err error) bool {
	var gErr *googleapi.Error
	if errors.As(err, &gErr) {
		switch gErr.Code {
		case 500, 502, 503, 504:
			return true
		}
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return true
}

func buildTitle(story *types.Story) string {
	const suffix = " #shorts"
	title := []rune(story.Title)
	if max := 100 - len(suffix); len(title) > max {
		title = title[:max]
	}
	return string(title) + suffix
}

func buildDescription(cfg *config.Config, story *types.Story) string {
	desc := story.Description
	if desc == "" {
		desc = cfg.YouTube.DefaultDescription
	}
	return desc
}

func buildTags(cfg *config.Config, story *types.Story) []string {
	seen := make(map[string]bool)
	var tags []string
	for _, t := range append(append([]string{}, story.Tags...), cfg.YouTube.Tags...) {
		t = strings.TrimSpace(t)
		if t == "" || seen[strings.ToLower(t)] {
			continue
		}
		seen[strings.ToLower(t)] = true
		tags = append(tags, t)
	}
	return tags
}
