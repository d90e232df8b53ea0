package story

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat-drama-pipeline/config"
	"chat-drama-pipeline/types"
)

const validStoryJSON = `{
  "title": "the birthday cake incident",
  "description": "who ate it",
  "tags": ["drama"],
  "messages": [
    {"username": "mia", "content": "WHO ate my cake"},
    {"username": "jax", "content": "define ate"},
    {"username": "mia", "content": "JAX."}
  ]
}`

func TestParseStory(t *testing.T) {
	st, err := parseStory(validStoryJSON)
	require.NoError(t, err)
	assert.Equal(t, "the birthday cake incident", st.Title)
	assert.Len(t, st.Messages, 3)
}

func TestParseStoryStripsMarkdownFences(t *testing.T) {
	st, err := parseStory("```json\n" + validStoryJSON + "\n```")
	require.NoError(t, err)
	assert.Equal(t, "the birthday cake incident", st.Title)
}

func TestParseStoryRejectsMalformed(t *testing.T) {
	cases := map[string]string{
		"not json":        "the model wrote prose instead",
		"empty messages":  `{"title": "x", "messages": []}`,
		"missing title":   `{"messages": [{"username": "a", "content": "b"}]}`,
		"blank username":  `{"title": "x", "messages": [{"username": "", "content": "b"}]}`,
		"missing content": `{"title": "x", "messages": [{"username": "a", "content": ""}]}`,
	}
	for name, raw := range cases {
		_, err := parseStory(raw)
		assert.ErrorIs(t, err, ErrMalformedOutput, name)
	}
}

func TestGenerateBatchRejectsNonPositiveCount(t *testing.T) {
	g := &Generator{cfg: config.Default()}
	_, err := g.GenerateBatch(context.Background(), 0, nil)
	assert.Error(t, err)
}

func TestAssignAvatarColors(t *testing.T) {
	st := &types.Story{
		Messages: []types.Message{
			{Username: "mia"},
			{Username: "jax"},
			{Username: "mia"},
			{Username: "kim"},
			{Username: "lee"},
		},
	}
	palette := []string{"#111111", "#222222", "#333333"}
	assignAvatarColors(st, palette)

	// colors are stable per user and cycle in order of first appearance
	assert.Equal(t, "#111111", st.Messages[0].AvatarColor)
	assert.Equal(t, "#222222", st.Messages[1].AvatarColor)
	assert.Equal(t, "#111111", st.Messages[2].AvatarColor)
	assert.Equal(t, "#333333", st.Messages[3].AvatarColor)
	assert.Equal(t, "#111111", st.Messages[4].AvatarColor)
}
