package pipeline

import (
	"encoding/json"
	"fmt"
	"time"

	"chat-drama-pipeline/types"
)

// Status is the job lifecycle state. The happy path is linear; Failed is
// terminal and reachable from any non-terminal state.
type Status string

const (
	StatusPending         Status = "pending"
	StatusGeneratingStory Status = "generating_story"
	StatusRenderingFrames Status = "rendering_frames"
	StatusMixingAudio     Status = "mixing_audio"
	StatusComposingVideo  Status = "composing_video"
	StatusUploading       Status = "uploading"
	StatusCompleted       Status = "completed"
	StatusFailed          Status = "failed"
)

var allStatuses = []Status{
	StatusPending, StatusGeneratingStory, StatusRenderingFrames,
	StatusMixingAudio, StatusComposingVideo, StatusUploading,
	StatusCompleted, StatusFailed,
}

// ParseStatus validates a persisted status tag. Unknown tags are an error,
// never silently defaulted.
func ParseStatus(s string) (Status, error) {
	for _, st := range allStatuses {
		if string(st) == s {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown job status %q", s)
}

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

func (s *Status) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseStatus(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Job is the unit of pipeline work. It owns its Story and artifact paths
// and is persisted as one JSON file per job after every status change.
type Job struct {
	ID            string       `json:"id"`
	Theme         string       `json:"theme,omitempty"`
	Status        Status       `json:"status"`
	Story         *types.Story `json:"story,omitempty"`
	VideoPath     string       `json:"video_path,omitempty"`
	ThumbnailPath string       `json:"thumbnail_path,omitempty"`
	YouTubeID     string       `json:"youtube_id,omitempty"`
	Error         string       `json:"error,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
	CompletedAt   *time.Time   `json:"completed_at,omitempty"`
}
