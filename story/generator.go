package story

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
	openai "github.com/sashabaranov/go-openai"

	"chat-drama-pipeline/config"
	"chat-drama-pipeline/types"
)

// ErrMalformedOutput is returned when the model response cannot be parsed
// into a usable story.
var ErrMalformedOutput = errors.New("story: model returned malformed output")

// themePrompts maps a theme tag to the scenario description fed into the
// model.
var themePrompts = map[string]string{
	"AITA":               "an 'Am I the Asshole' style moral conflict where one person did something questionable and the group argues about it",
	"relationship_drama": "a couple's argument spilling into the group chat, with friends picking sides",
	"workplace_chaos":    "coworkers in a group chat reacting to something absurd that happened at work",
	"roommate_horror":    "roommates confronting each other about an escalating living-situation disaster",
	"family_dinner":      "a family group chat melting down while planning or recapping a family dinner",
	"online_dating":      "friends dissecting screenshots and stories from a disastrous online date",
}

const systemPrompt = `You write short, punchy group-chat dramas for vertical short-form videos.
Rules:
- 3 to 5 distinct usernames, casual internet style (no real people).
- Messages are short (under 120 characters), texting register, escalating tension.
- The last message lands a twist or punchline.
- Occasionally add emoji reactions to the most dramatic messages.
Respond with JSON only, matching exactly:
{"title": "...", "description": "...", "tags": ["..."], "messages": [{"username": "...", "content": "...", "timestamp": "...", "reactions": ["..."]}]}`

// Generator produces chat-drama stories via the OpenAI chat completion API.
type Generator struct {
	cfg    *config.Config
	client *openai.Client
}

// NewGenerator creates a Generator. The API key comes from OPENAI_API_KEY.
func NewGenerator(cfg *config.Config) (*Generator, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("story: OPENAI_API_KEY is not set")
	}
	return &Generator{cfg: cfg, client: openai.NewClient(apiKey)}, nil
}

// RandomTheme picks a theme from the configured list.
func (g *Generator) RandomTheme() string {
	themes := g.cfg.Story.Themes
	return themes[rand.Intn(len(themes))]
}

// Generate produces a story for the given theme. An empty theme picks a
// random configured one; numMessages <= 0 picks a random count within the
// configured range.
func (g *Generator) Generate(ctx context.Context, theme string, numMessages int) (*types.Story, error) {
	if theme == "" {
		theme = g.RandomTheme()
	}
	scenario, ok := themePrompts[theme]
	if !ok {
		scenario = fmt.Sprintf("a group chat drama about %s", strings.ReplaceAll(theme, "_", " "))
	}
	return g.generate(ctx, theme, scenario, numMessages)
}

// GenerateFromTopic produces a story seeded by a trending topic headline
// instead of a canned theme scenario.
func (g *Generator) GenerateFromTopic(ctx context.Context, topic, theme string, numMessages int) (*types.Story, error) {
	if theme == "" {
		theme = g.RandomTheme()
	}
	scenario := fmt.Sprintf("a group chat drama inspired by this real situation: %q. Reimagine it as a conversation between the people involved, do not mention it came from anywhere", topic)
	return g.generate(ctx, theme, scenario, numMessages)
}

// GenerateBatch produces count stories, cycling through the given themes
// (or random ones when none are given). A single failed generation is
// logged and skipped; the batch fails only when nothing could be produced.
func (g *Generator) GenerateBatch(ctx context.Context, count int, themes []string) ([]*types.Story, error) {
	if count <= 0 {
		return nil, fmt.Errorf("story: batch count must be positive, got %d", count)
	}
	var stories []*types.Story
	for i := 0; i < count; i++ {
		theme := ""
		if len(themes) > 0 {
			theme = themes[i%len(themes)]
		}
		st, err := g.Generate(ctx, theme, 0)
		if err != nil {
			log.Warn().Err(err).Msgf("[story] batch item %d/%d failed, skipping", i+1, count)
			continue
		}
		stories = append(stories, st)
	}
	if len(stories) == 0 {
		return nil, fmt.Errorf("story: batch produced no stories")
	}
	return stories, nil
}

func (g *Generator) generate(ctx context.Context, theme, scenario string, numMessages int) (*types.Story, error) {
	if numMessages <= 0 {
		numMessages = g.cfg.Story.MinMessages +
			rand.Intn(g.cfg.Story.MaxMessages-g.cfg.Story.MinMessages+1)
	}

	userPrompt := fmt.Sprintf("Write a group chat drama: %s. Exactly %d messages.", scenario, numMessages)
	log.Info().Msgf("[story] generating theme=%s messages=%d", theme, numMessages)

	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       g.cfg.OpenAI.Model,
		MaxTokens:   g.cfg.OpenAI.MaxTokens,
		Temperature: float32(g.cfg.OpenAI.Temperature),
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("story: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, ErrMalformedOutput
	}

	st, err := parseStory(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}
	st.Theme = theme
	assignAvatarColors(st, g.cfg.Chat.UsernameColors)

	log.Info().Msgf("[story] generated %q (%d messages)", st.Title, len(st.Messages))
	return st, nil
}

// parseStory strips markdown fences the model sometimes wraps around JSON
// and unmarshals the result.
func parseStory(raw string) (*types.Story, error) {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSuffix(strings.TrimSpace(raw), "```")
		raw = strings.TrimSpace(raw)
	}

	var st types.Story
	if err := json.Unmarshal([]byte(raw), &st); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}
	if st.Title == "" || len(st.Messages) == 0 {
		return nil, ErrMalformedOutput
	}
	for i := range st.Messages {
		if st.Messages[i].Username == "" || st.Messages[i].Content == "" {
			return nil, ErrMalformedOutput
		}
	}
	return &st, nil
}

// assignAvatarColors gives each distinct username a stable color, cycling
// through the palette in order of first appearance.
func assignAvatarColors(st *types.Story, palette []string) {
	assigned := make(map[string]string)
	next := 0
	for i := range st.Messages {
		user := st.Messages[i].Username
		color, ok := assigned[user]
		if !ok {
			color = palette[next%len(palette)]
			assigned[user] = color
			next++
		}
		st.Messages[i].AvatarColor = color
	}
}
