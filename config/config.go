package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

type Config struct {
	OpenAI  OpenAIConfig  `yaml:"openai"`
	Story   StoryConfig   `yaml:"story"`
	Chat    ChatConfig    `yaml:"chat"`
	Video   VideoConfig   `yaml:"video"`
	Audio   AudioConfig   `yaml:"audio"`
	Trends  TrendsConfig  `yaml:"trends"`
	YouTube YouTubeConfig `yaml:"youtube"`
	Paths   PathsConfig   `yaml:"paths"`
}

type OpenAIConfig struct {
	Model       string  `yaml:"model"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`
}

type StoryConfig struct {
	Themes      []string `yaml:"themes"`
	MinMessages int      `yaml:"min_messages"`
	MaxMessages int      `yaml:"max_messages"`
}

type ChatConfig struct {
	Width          int      `yaml:"width"`
	Height         int      `yaml:"height"`
	MaxVisible     int      `yaml:"max_visible_messages"`
	UsernameColors []string `yaml:"username_colors"`
}

type VideoConfig struct {
	FPS             int     `yaml:"fps"`
	DurationMin     float64 `yaml:"duration_min"`
	DurationMax     float64 `yaml:"duration_max"`
	TypingAnimation *bool   `yaml:"typing_animation"`
	Codec           string  `yaml:"codec"`
	Bitrate         string  `yaml:"bitrate"`
}

// TypingEnabled reports whether typing-indicator frames are rendered.
// Unset means enabled.
func (v VideoConfig) TypingEnabled() bool {
	return v.TypingAnimation == nil || *v.TypingAnimation
}

type AudioConfig struct {
	MusicVolume       float64 `yaml:"background_music_volume"`
	SFXVolume         float64 `yaml:"sfx_volume"`
	FadeInSec         float64 `yaml:"fade_in"`
	FadeOutSec        float64 `yaml:"fade_out"`
	NotificationSound *bool   `yaml:"notification_sound"`
}

// NotificationEnabled reports whether message stingers are overlaid on the
// audio track. Unset means enabled.
func (a AudioConfig) NotificationEnabled() bool {
	return a.NotificationSound == nil || *a.NotificationSound
}

type TrendsConfig struct {
	Subreddits  []string `yaml:"subreddits"`
	LimitPerSub int      `yaml:"limit_per_sub"`
}

type YouTubeConfig struct {
	CategoryID         string   `yaml:"category_id"`
	PrivacyStatus      string   `yaml:"privacy_status"`
	Tags               []string `yaml:"tags"`
	DefaultDescription string   `yaml:"default_description"`
	NotifySubscribers  bool     `yaml:"notify_subscribers"`
}

type PathsConfig struct {
	Jobs         string `yaml:"jobs"`
	RendersFinal string `yaml:"renders_final"`
	RendersTmp   string `yaml:"renders_tmp"`
	Music        string `yaml:"music"`
	SFX          string `yaml:"sfx"`
	Fonts        string `yaml:"fonts"`
	Logs         string `yaml:"logs"`
}

// Load reads a YAML config file and returns a Config with defaults applied.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

// Default returns a Config usable without a config file on disk.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// applyDefaults fills unset fields. A zero value counts as unset, so
// numeric fields where zero is meaningful (volumes, temperature) cannot be
// explicitly zeroed; use a small non-zero value instead.
func (c *Config) applyDefaults() {
	if c.OpenAI.Model == "" {
		c.OpenAI.Model = "gpt-4o"
	}
	if c.OpenAI.MaxTokens == 0 {
		c.OpenAI.MaxTokens = 2000
	}
	if c.OpenAI.Temperature == 0 {
		c.OpenAI.Temperature = 0.8
	}
	if len(c.Story.Themes) == 0 {
		c.Story.Themes = []string{
			"AITA", "relationship_drama", "workplace_chaos",
			"roommate_horror", "family_dinner", "online_dating",
		}
	}
	if c.Story.MinMessages == 0 {
		c.Story.MinMessages = 8
	}
	if c.Story.MaxMessages == 0 {
		c.Story.MaxMessages = 15
	}
	if c.Chat.Width == 0 {
		c.Chat.Width = 1080
	}
	if c.Chat.Height == 0 {
		c.Chat.Height = 1920
	}
	if c.Chat.MaxVisible == 0 {
		c.Chat.MaxVisible = 6
	}
	if len(c.Chat.UsernameColors) == 0 {
		c.Chat.UsernameColors = []string{
			"#f47fff", "#7289da", "#43b581", "#faa61a", "#f04747", "#00d4aa",
		}
	}
	if c.Video.FPS == 0 {
		c.Video.FPS = 30
	}
	if c.Video.DurationMin == 0 {
		c.Video.DurationMin = 30
	}
	if c.Video.DurationMax == 0 {
		c.Video.DurationMax = 59
	}
	if c.Video.Codec == "" {
		c.Video.Codec = "libx264"
	}
	if c.Video.Bitrate == "" {
		c.Video.Bitrate = "8M"
	}
	if c.Audio.MusicVolume == 0 {
		c.Audio.MusicVolume = 0.15
	}
	if c.Audio.SFXVolume == 0 {
		c.Audio.SFXVolume = 0.3
	}
	if c.Audio.FadeInSec == 0 {
		c.Audio.FadeInSec = 1.0
	}
	if c.Audio.FadeOutSec == 0 {
		c.Audio.FadeOutSec = 2.0
	}
	if len(c.Trends.Subreddits) == 0 {
		c.Trends.Subreddits = []string{
			"AmItheAsshole", "relationship_advice", "tifu",
			"pettyrevenge", "MaliciousCompliance", "entitledparents",
		}
	}
	if c.Trends.LimitPerSub == 0 {
		c.Trends.LimitPerSub = 5
	}
	if c.YouTube.CategoryID == "" {
		c.YouTube.CategoryID = "23" // Comedy
	}
	if c.YouTube.PrivacyStatus == "" {
		c.YouTube.PrivacyStatus = "public"
	}
	if c.Paths.Jobs == "" {
		c.Paths.Jobs = "data/jobs"
	}
	if c.Paths.RendersFinal == "" {
		c.Paths.RendersFinal = "renders/final"
	}
	if c.Paths.RendersTmp == "" {
		c.Paths.RendersTmp = "renders/tmp"
	}
	if c.Paths.Music == "" {
		c.Paths.Music = "assets/music"
	}
	if c.Paths.SFX == "" {
		c.Paths.SFX = "assets/sfx"
	}
	if c.Paths.Logs == "" {
		c.Paths.Logs = "logs"
	}
}

// EnsureDirs creates every directory the pipeline writes into.
func (c *Config) EnsureDirs() error {
	dirs := []string{
		c.Paths.Jobs, c.Paths.RendersFinal, c.Paths.RendersTmp, c.Paths.Logs,
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create dir %s: %w", dir, err)
		}
	}
	return nil
}

// FontPath returns the first usable TrueType font, checking the configured
// fonts dir first and then common system locations.
func (c *Config) FontPath() string {
	if c.Paths.Fonts != "" {
		for _, name := range []string{"chat.ttf", "default.ttf"} {
			p := filepath.Join(c.Paths.Fonts, name)
			if _, err := os.Stat(p); err == nil {
				return p
			}
		}
	}
	candidates := []string{
		"/usr/share/fonts/truetype/dejavu/DejaVuSans-Bold.ttf",
		"/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf",
		"/System/Library/Fonts/Supplemental/Arial Bold.ttf",
		"/System/Library/Fonts/Supplemental/Arial.ttf",
		"C:/Windows/Fonts/arialbd.ttf",
		"C:/Windows/Fonts/arial.ttf",
	}
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}
