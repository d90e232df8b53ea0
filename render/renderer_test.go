package render

import (
	"path/filepath"
	"sort"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat-drama-pipeline/config"
	"chat-drama-pipeline/types"
)

func testStory() *types.Story {
	return &types.Story{
		Title: "the birthday cake incident",
		Theme: "roommate_horror",
		Messages: []types.Message{
			{Username: "mia", Content: "WHO ate my cake", AvatarColor: "#f47fff", Reactions: []string{"💀", "😭"}},
			{Username: "jax", Content: "define ate", AvatarColor: "#7289da"},
			{Username: "mia", Content: "JAX.", AvatarColor: "#f47fff"},
		},
	}
}

func newTestRenderer(t *testing.T) *Renderer {
	t.Helper()
	cfg := config.Default()
	if cfg.FontPath() == "" {
		t.Skip("no usable font on this machine")
	}
	r, err := NewRenderer(cfg)
	require.NoError(t, err)
	return r
}

func TestRenderAllFramesNamingAndOrder(t *testing.T) {
	r := newTestRenderer(t)
	dir := t.TempDir()

	paths, err := r.RenderAllFrames(testStory(), dir, true)
	require.NoError(t, err)

	// 3 reveal frames plus a typing frame before every message but the first
	require.Len(t, paths, 5)
	assert.Equal(t, "frame_0001.png", filepath.Base(paths[0]))
	assert.Equal(t, "frame_0002_typing.png", filepath.Base(paths[1]))
	assert.Equal(t, "frame_0003.png", filepath.Base(paths[2]))
	assert.Equal(t, "frame_0004_typing.png", filepath.Base(paths[3]))
	assert.Equal(t, "frame_0005.png", filepath.Base(paths[4]))
	for _, p := range paths {
		assert.FileExists(t, p)
	}
}

func TestRenderAllFramesNamesSortInProductionOrder(t *testing.T) {
	r := newTestRenderer(t)

	paths, err := r.RenderAllFrames(testStory(), t.TempDir(), true)
	require.NoError(t, err)

	sorted := append([]string(nil), paths...)
	sort.Strings(sorted)
	assert.Equal(t, paths, sorted)
}

func TestRenderAllFramesWithoutTyping(t *testing.T) {
	r := newTestRenderer(t)

	paths, err := r.RenderAllFrames(testStory(), t.TempDir(), false)
	require.NoError(t, err)
	require.Len(t, paths, 3)
	for _, p := range paths {
		assert.NotContains(t, filepath.Base(p), "typing")
	}
}

func TestRenderAllFramesRejectsEmptyStory(t *testing.T) {
	r := newTestRenderer(t)
	_, err := r.RenderAllFrames(&types.Story{}, t.TempDir(), true)
	assert.Error(t, err)
}

func TestRenderThumbnail(t *testing.T) {
	r := newTestRenderer(t)
	out := filepath.Join(t.TempDir(), "thumb.png")
	require.NoError(t, r.RenderThumbnail(testStory(), out))
	assert.FileExists(t, out)
}

func TestInitialOf(t *testing.T) {
	assert.Equal(t, "M", initialOf("mia"))
	assert.Equal(t, "É", initialOf("élodie"))
	assert.Equal(t, "💀", initialOf("💀skeletor"))
	assert.Equal(t, "?", initialOf(""))
	assert.True(t, utf8.ValidString(initialOf("ñoño")))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "exactly-te", truncate("exactly-te", 10))
	assert.Equal(t, "much too …", truncate("much too long for this", 10))
}
