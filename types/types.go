package types

// Message is a single chat message inside a story.
type Message struct {
	Username    string   `json:"username"`
	Content     string   `json:"content"`
	AvatarColor string   `json:"avatar_color"`
	Timestamp   string   `json:"timestamp,omitempty"`
	Reactions   []string `json:"reactions"`
}

// Story is a complete generated conversation, ready for rendering.
// Message order is conversation order and must be preserved.
type Story struct {
	Title       string    `json:"title"`
	Theme       string    `json:"theme"`
	Description string    `json:"description"`
	Tags        []string  `json:"tags"`
	Messages    []Message `json:"messages"`
}
