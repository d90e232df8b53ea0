package trends

import (
	"context"
	"fmt"
	"math/rand"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
	"github.com/vartanbeno/go-reddit/v2/reddit"

	"chat-drama-pipeline/config"
)

// subredditThemes maps a drama subreddit to the story theme its posts
// best seed.
var subredditThemes = map[string]string{
	"AmItheAsshole":       "AITA",
	"relationship_advice": "relationship_drama",
	"tifu":                "workplace_chaos",
	"pettyrevenge":        "roommate_horror",
	"MaliciousCompliance": "workplace_chaos",
	"entitledparents":     "family_dinner",
}

var titlePrefixRe = regexp.MustCompile(`(?i)^(aita|wibta|tifu|update:?|\[update\])[\s:,-]*(for|by)?\s*`)

// Topic is one trending drama candidate pulled from Reddit.
type Topic struct {
	Title     string
	Subreddit string
	Theme     string
	Score     int
}

// Fetcher pulls hot post titles from drama subreddits to seed story
// generation with material people are already talking about.
type Fetcher struct {
	cfg    *config.Config
	client *reddit.Client
}

// NewFetcher creates a read-only Reddit client.
func NewFetcher(cfg *config.Config) (*Fetcher, error) {
	client, err := reddit.NewReadonlyClient()
	if err != nil {
		return nil, fmt.Errorf("trends: reddit client: %w", err)
	}
	return &Fetcher{cfg: cfg, client: client}, nil
}

// FetchTopics collects hot posts across the configured subreddits,
// skipping stickied posts and cleaning titles. Subreddits that fail to
// fetch are logged and skipped.
func (f *Fetcher) FetchTopics(ctx context.Context) ([]Topic, error) {
	var topics []Topic
	for _, sub := range f.cfg.Trends.Subreddits {
		posts, _, err := f.client.Subreddit.HotPosts(ctx, sub, &reddit.ListOptions{
			Limit: f.cfg.Trends.LimitPerSub,
		})
		if err != nil {
			log.Warn().Err(err).Msgf("[trends] r/%s fetch failed, skipping", sub)
			continue
		}
		for _, post := range posts {
			if post.Stickied {
				continue
			}
			title := cleanTitle(post.Title)
			if title == "" {
				continue
			}
			topics = append(topics, Topic{
				Title:     title,
				Subreddit: sub,
				Theme:     themeFor(sub),
				Score:     post.Score,
			})
		}
	}
	if len(topics) == 0 {
		return nil, fmt.Errorf("trends: no topics found across %d subreddits", len(f.cfg.Trends.Subreddits))
	}
	log.Info().Msgf("[trends] collected %d topics", len(topics))
	return topics, nil
}

// PickTopic fetches topics and returns one, weighted by post score so
// hotter drama is picked more often.
func (f *Fetcher) PickTopic(ctx context.Context) (*Topic, error) {
	topics, err := f.FetchTopics(ctx)
	if err != nil {
		return nil, err
	}

	total := 0
	for _, t := range topics {
		total += weight(t.Score)
	}
	pick := rand.Intn(total)
	for i := range topics {
		pick -= weight(topics[i].Score)
		if pick < 0 {
			log.Info().Msgf("[trends] picked topic from r/%s: %s", topics[i].Subreddit, topics[i].Title)
			return &topics[i], nil
		}
	}
	return &topics[len(topics)-1], nil
}

func weight(score int) int {
	if score < 1 {
		return 1
	}
	return score
}

func themeFor(subreddit string) string {
	if theme, ok := subredditThemes[subreddit]; ok {
		return theme
	}
	return "AITA"
}

// cleanTitle strips subreddit-convention prefixes and trims the title to a
// prompt-friendly length.
func cleanTitle(title string) string {
	title = titlePrefixRe.ReplaceAllString(strings.TrimSpace(title), "")
	title = strings.TrimSpace(title)
	if runes := []rune(title); len(runes) > 200 {
		title = string(runes[:200])
	}
	if utf8.RuneCountInString(title) < 15 {
		return ""
	}
	return title
}
