package render

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fogleman/gg"
	"github.com/rs/zerolog/log"

	"chat-drama-pipeline/config"
	"chat-drama-pipeline/types"
)

const (
	bgColor       = "#313338"
	bubbleColor   = "#3b3d44"
	textColor     = "#dbdee1"
	mutedColor    = "#949ba4"
	reactionColor = "#2b2d31"

	marginX     = 48.0
	avatarSize  = 96.0
	avatarGap   = 28.0
	lineSpacing = 1.35

	usernameFontSize = 42.0
	messageFontSize  = 46.0
	reactionFontSize = 34.0
	titleFontSize    = 64.0
)

// Renderer draws chat conversation frames as PNG images. Each frame shows
// the conversation revealed up to a point, scrolled so only the most recent
// messages are visible.
type Renderer struct {
	cfg      *config.Config
	fontPath string
}

// NewRenderer creates a Renderer, resolving the font to draw with.
func NewRenderer(cfg *config.Config) (*Renderer, error) {
	fontPath := cfg.FontPath()
	if fontPath == "" {
		return nil, fmt.Errorf("render: no usable font found, set paths.fonts in config")
	}
	return &Renderer{cfg: cfg, fontPath: fontPath}, nil
}

// RenderAllFrames renders the full frame sequence for a story into
// outputDir and returns the frame paths in playback order. Every message
// gets a reveal frame; when includeTyping is set, each message after the
// first is preceded by a typing-indicator frame. Typing frames carry
// "typing" in their filename so downstream timing can tell them apart.
// One monotone counter numbers every emitted frame, so the filenames sort
// in production order.
func (r *Renderer) RenderAllFrames(story *types.Story, outputDir string, includeTyping bool) ([]string, error) {
	if len(story.Messages) == 0 {
		return nil, fmt.Errorf("render: story has no messages")
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("render: create output dir: %w", err)
	}

	var paths []string
	frameNum := 0
	for i := range story.Messages {
		if includeTyping && i > 0 {
			frameNum++
			p := filepath.Join(outputDir, fmt.Sprintf("frame_%04d_typing.png", frameNum))
			if err := r.renderFrame(story, i, true, p); err != nil {
				return nil, err
			}
			paths = append(paths, p)
		}
		frameNum++
		p := filepath.Join(outputDir, fmt.Sprintf("frame_%04d.png", frameNum))
		if err := r.renderFrame(story, i+1, false, p); err != nil {
			return nil, err
		}
		paths = append(paths, p)
	}

	log.Info().Msgf("[render] rendered %d frames to %s", len(paths), outputDir)
	return paths, nil
}

// RenderThumbnail renders a single frame showing the opening of the
// conversation, used as the video thumbnail.
func (r *Renderer) RenderThumbnail(story *types.Story, outputPath string) error {
	n := len(story.Messages)
	if n > 3 {
		n = 3
	}
	if n == 0 {
		return fmt.Errorf("render: story has no messages")
	}
	return r.renderFrame(story, n, false, outputPath)
}

// renderFrame draws the conversation with the first revealed messages
// visible, optionally with a typing indicator for the next speaker.
func (r *Renderer) renderFrame(story *types.Story, revealed int, typing bool, outputPath string) error {
	w, h := r.cfg.Chat.Width, r.cfg.Chat.Height
	dc := gg.NewContext(w, h)
	dc.SetHexColor(bgColor)
	dc.Clear()

	r.drawHeader(dc, story.Title)

	start := 0
	visible := revealed
	if typing {
		visible++
	}
	if visible > r.cfg.Chat.MaxVisible {
		start = visible - r.cfg.Chat.MaxVisible
	}

	y := 240.0
	for i := start; i < revealed; i++ {
		y = r.drawMessage(dc, &story.Messages[i], y)
	}
	if typing && revealed < len(story.Messages) {
		r.drawTypingIndicator(dc, &story.Messages[revealed], y)
	}

	if err := dc.SavePNG(outputPath); err != nil {
		return fmt.Errorf("render: save %s: %w", outputPath, err)
	}
	return nil
}

func (r *Renderer) drawHeader(dc *gg.Context, title string) {
	dc.SetHexColor("#1e1f22")
	dc.DrawRectangle(0, 0, float64(r.cfg.Chat.Width), 180)
	dc.Fill()

	if err := dc.LoadFontFace(r.fontPath, titleFontSize); err != nil {
		return
	}
	dc.SetHexColor("#ffffff")
	text := "# " + truncate(title, 34)
	dc.DrawStringAnchored(text, marginX, 100, 0, 0.5)
}

// drawMessage draws one message row and returns the y offset below it.
func (r *Renderer) drawMessage(dc *gg.Context, msg *types.Message, y float64) float64 {
	textX := marginX + avatarSize + avatarGap
	maxWidth := float64(r.cfg.Chat.Width) - textX - marginX

	r.drawAvatar(dc, msg, marginX, y)

	if err := dc.LoadFontFace(r.fontPath, usernameFontSize); err != nil {
		return y
	}
	dc.SetHexColor(msg.AvatarColor)
	dc.DrawString(msg.Username, textX, y+usernameFontSize)

	stamp := msg.Timestamp
	if stamp != "" {
		uw, _ := dc.MeasureString(msg.Username)
		dc.SetHexColor(mutedColor)
		dc.LoadFontFace(r.fontPath, reactionFontSize)
		dc.DrawString(stamp, textX+uw+24, y+usernameFontSize)
	}

	if err := dc.LoadFontFace(r.fontPath, messageFontSize); err != nil {
		return y
	}
	lines := dc.WordWrap(msg.Content, maxWidth)
	lineH := messageFontSize * lineSpacing
	ty := y + usernameFontSize + 24
	dc.SetHexColor(textColor)
	for _, line := range lines {
		dc.DrawString(line, textX, ty+messageFontSize)
		ty += lineH
	}

	if len(msg.Reactions) > 0 {
		ty = r.drawReactions(dc, msg.Reactions, textX, ty+12)
	}

	return ty + 48
}

func (r *Renderer) drawAvatar(dc *gg.Context, msg *types.Message, x, y float64) {
	cx := x + avatarSize/2
	cy := y + avatarSize/2
	dc.SetHexColor(msg.AvatarColor)
	dc.DrawCircle(cx, cy, avatarSize/2)
	dc.Fill()

	initial := initialOf(msg.Username)
	if err := dc.LoadFontFace(r.fontPath, avatarSize*0.5); err != nil {
		return
	}
	dc.SetHexColor("#ffffff")
	dc.DrawStringAnchored(initial, cx, cy, 0.5, 0.5)
}

func (r *Renderer) drawReactions(dc *gg.Context, reactions []string, x, y float64) float64 {
	if err := dc.LoadFontFace(r.fontPath, reactionFontSize); err != nil {
		return y
	}
	rx := x
	pillH := reactionFontSize * 1.8
	for _, re := range reactions {
		tw, _ := dc.MeasureString(re)
		pillW := tw + 40
		dc.SetHexColor(reactionColor)
		dc.DrawRoundedRectangle(rx, y, pillW, pillH, pillH/2)
		dc.Fill()
		dc.SetHexColor(textColor)
		dc.DrawStringAnchored(re, rx+pillW/2, y+pillH/2, 0.5, 0.5)
		rx += pillW + 16
	}
	return y + pillH
}

// drawTypingIndicator draws the "<user> is typing..." row for the next
// message's author.
func (r *Renderer) drawTypingIndicator(dc *gg.Context, next *types.Message, y float64) {
	textX := marginX + avatarSize + avatarGap

	r.drawAvatar(dc, next, marginX, y)

	if err := dc.LoadFontFace(r.fontPath, messageFontSize); err != nil {
		return
	}
	label := fmt.Sprintf("%s is typing", next.Username)
	dc.SetHexColor(mutedColor)
	dc.DrawString(label, textX, y+avatarSize/2+messageFontSize/3)

	tw, _ := dc.MeasureString(label)
	dotX := textX + tw + 28
	dotY := y + avatarSize/2
	for i := 0; i < 3; i++ {
		dc.DrawCircle(dotX+float64(i)*26, dotY, 7)
		dc.Fill()
	}
}

// initialOf returns the avatar letter for a username, honoring multi-byte
// first runes.
func initialOf(username string) string {
	for _, r := range username {
		return strings.ToUpper(string(r))
	}
	return "?"
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-1]) + "…"
}
