package core

import "github.com/google/uuid"

// NoExtractedText is the sentinel the extractor emits when a message
// contains no target-language text at all.
const NoExtractedText = "NONE"

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message is a single turn in a conversation. Content grows while the turn
// is being streamed and is never touched again once the stream seals it.
type Message struct {
	ID      string `json:"id"`
	Role    Role   `json:"role"`
	Content string `json:"content"`
	// AudioFile is the name of the synthesized audio resource for this
	// message, derived from its identity at creation time. The file may or
	// may not exist; existence is the audio cache-hit signal.
	AudioFile string `json:"audio_file"`
}

// NewMessage creates a message with a fresh identity and a derived audio
// cache filename.
func NewMessage(role Role, content string) *Message {
	id := uuid.New().String()
	return &Message{
		ID:        id,
		Role:      role,
		Content:   content,
		AudioFile: id + ".mp3",
	}
}

func NewUserMessage(content string) *Message {
	return NewMessage(RoleUser, content)
}

// NewAssistantPlaceholder creates an empty assistant message for a streaming
// reply to fill in.
func NewAssistantPlaceholder() *Message {
	return NewMessage(RoleAssistant, "")
}
