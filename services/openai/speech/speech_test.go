package speech

import (
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"

	"lingokit/core"
)

func TestNewServiceDefaults(t *testing.T) {
	service := NewService(Config{APIKey: "test"}, core.NewNopLogger())
	assert.Equal(t, string(openai.TTSModel1), service.config.Model)
	assert.Equal(t, string(openai.VoiceAlloy), service.config.Voice)
	assert.Equal(t, openai.Whisper1, service.config.TranscriptionModel)
}

func TestNewServiceKeepsExplicitConfig(t *testing.T) {
	service := NewService(Config{
		APIKey:             "test",
		Model:              "tts-1-hd",
		Voice:              "nova",
		TranscriptionModel: "whisper-1",
		Speed:              1.2,
	}, core.NewNopLogger())
	assert.Equal(t, "tts-1-hd", service.config.Model)
	assert.Equal(t, "nova", service.config.Voice)
	assert.Equal(t, 1.2, service.config.Speed)
}
