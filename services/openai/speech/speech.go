package speech

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/sashabaranov/go-openai"

	"lingokit/core"
)

// Config holds the configuration for the OpenAI speech service.
type Config struct {
	APIKey             string  `json:"api_key"`
	BaseURL            string  `json:"base_url"`
	Model              string  `json:"model"`
	Voice              string  `json:"voice"`
	TranscriptionModel string  `json:"transcription_model"`
	Speed              float64 `json:"speed"`
}

// Service wraps the OpenAI text-to-speech and transcription endpoints. Both
// directions are black boxes to the rest of the core: text in, audio bytes
// out, and audio bytes in, text out.
type Service struct {
	config Config
	client *openai.Client
	logger *core.Logger
}

// NewService creates a speech service from the given config.
func NewService(config Config, logger *core.Logger) *Service {
	if config.Model == "" {
		config.Model = string(openai.TTSModel1)
	}
	if config.Voice == "" {
		config.Voice = string(openai.VoiceAlloy)
	}
	if config.TranscriptionModel == "" {
		config.TranscriptionModel = openai.Whisper1
	}
	if logger == nil {
		logger = core.NewDevelopmentLogger()
	}
	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}
	return &Service{
		config: config,
		client: openai.NewClientWithConfig(clientConfig),
		logger: logger.With(map[string]interface{}{"component": "speech"}),
	}
}

// Synthesize renders text as audio bytes. speed scales the synthesized
// speaking rate; zero means the service default.
func (s *Service) Synthesize(ctx context.Context, text string, speed float64) ([]byte, error) {
	if speed == 0 {
		speed = s.config.Speed
	}
	response, err := s.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model: openai.SpeechModel(s.config.Model),
		Input: text,
		Voice: openai.SpeechVoice(s.config.Voice),
		Speed: speed,
	})
	if err != nil {
		classified := core.Classify(fmt.Errorf("creating speech: %w", err))
		s.logger.Warn("synthesis failed", "kind", classified.Kind.String(), "error", err)
		return nil, classified
	}
	defer response.Close()

	audio, err := io.ReadAll(response)
	if err != nil {
		classified := core.NewClassifiedError(core.KindMalformedResponse, fmt.Errorf("reading speech body: %w", err))
		s.logger.Warn("synthesis failed", "kind", classified.Kind.String(), "error", err)
		return nil, classified
	}
	return audio, nil
}

// Transcribe converts recorded WAV audio to text.
func (s *Service) Transcribe(ctx context.Context, wav []byte) (string, error) {
	response, err := s.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    s.config.TranscriptionModel,
		Reader:   bytes.NewReader(wav),
		FilePath: "recording.wav",
	})
	if err != nil {
		classified := core.Classify(fmt.Errorf("creating transcription: %w", err))
		s.logger.Warn("transcription failed", "kind", classified.Kind.String(), "error", err)
		return "", classified
	}
	return response.Text, nil
}
