package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConversation(t *testing.T) {
	conversation := NewConversation(Korean)

	require.NotEmpty(t, conversation.ID)
	assert.Equal(t, DefaultTitle, conversation.Title)
	assert.Equal(t, Korean, conversation.Language)
	assert.True(t, conversation.Pristine)
	assert.True(t, conversation.HasDefaultTitle())
	assert.Empty(t, conversation.Messages)
}

func TestAppendClearsPristine(t *testing.T) {
	conversation := NewConversation(Korean)
	conversation.Append(NewUserMessage("안녕하세요"))

	assert.False(t, conversation.Pristine)
	require.Len(t, conversation.Messages, 1)
	assert.Equal(t, RoleUser, conversation.Messages[0].Role)
}

func TestConversationFilename(t *testing.T) {
	conversation := NewConversation(Japanese)
	conversation.ID = "abc-123"
	conversation.CreatedAt = time.Date(2024, 3, 15, 9, 30, 45, 0, time.UTC)

	assert.Equal(t, "conversation_20240315093045_abc-123.chat.json", conversation.Filename())
	assert.True(t, IsConversationFilename(conversation.Filename()))
}

func TestIsConversationFilename(t *testing.T) {
	assert.True(t, IsConversationFilename("conversation_20240315093045_abc.chat.json"))
	assert.False(t, IsConversationFilename("titles.json"))
	assert.False(t, IsConversationFilename(".chat.json"))
	assert.False(t, IsConversationFilename("notes.txt"))
}

func TestNewMessageDerivesAudioFilename(t *testing.T) {
	message := NewMessage(RoleAssistant, "hello")
	require.NotEmpty(t, message.ID)
	assert.Equal(t, message.ID+".mp3", message.AudioFile)
}

func TestNewAssistantPlaceholder(t *testing.T) {
	placeholder := NewAssistantPlaceholder()
	assert.Equal(t, RoleAssistant, placeholder.Role)
	assert.Empty(t, placeholder.Content)
}
