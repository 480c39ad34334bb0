package core

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DefaultTitle is the sentinel title a conversation carries until title
// generation succeeds.
const DefaultTitle = "New chat"

// conversationFileSuffix identifies conversation records on disk.
const conversationFileSuffix = ".chat.json"

// Conversation is an ordered, append-only sequence of messages. Its identity
// is immutable for its lifetime; messages are never reordered or removed
// individually (deletion is whole-conversation only).
type Conversation struct {
	ID        string     `json:"id"`
	Messages  []*Message `json:"messages"`
	Title     string     `json:"title"`
	Language  Language   `json:"language"`
	CreatedAt time.Time  `json:"created_at"`
	// Pristine is true until the first message is appended. A pristine
	// conversation is eligible for reuse instead of creating a new one.
	Pristine bool `json:"-"`
}

// NewConversation creates an empty, pristine conversation.
func NewConversation(language Language) *Conversation {
	return &Conversation{
		ID:        uuid.New().String(),
		Messages:  []*Message{},
		Title:     DefaultTitle,
		Language:  language,
		CreatedAt: time.Now().UTC(),
		Pristine:  true,
	}
}

// Append adds a message to the tail of the conversation.
func (c *Conversation) Append(message *Message) {
	c.Messages = append(c.Messages, message)
	c.Pristine = false
}

// Filename returns the deterministic record name for this conversation,
// derived from its creation time and identity so names never collide.
func (c *Conversation) Filename() string {
	return fmt.Sprintf("conversation_%s_%s%s", c.CreatedAt.Format("20060102150405"), c.ID, conversationFileSuffix)
}

// IsConversationFilename reports whether name looks like a conversation
// record produced by Filename.
func IsConversationFilename(name string) bool {
	return len(name) > len(conversationFileSuffix) && name[len(name)-len(conversationFileSuffix):] == conversationFileSuffix
}

// HasDefaultTitle reports whether the conversation still carries the
// sentinel title, i.e. title generation has not succeeded yet.
func (c *Conversation) HasDefaultTitle() bool {
	return c.Title == DefaultTitle
}
