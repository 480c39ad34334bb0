package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/sashabaranov/go-openai"

	"lingokit/core"
)

// Mode selects which system instruction a chat service carries. It is
// configuration, not behavior: every mode runs through the same client.
type Mode string

const (
	ModeTutor     Mode = "tutor"
	ModeExtractor Mode = "extractor"
	ModeTitler    Mode = "titler"
)

// Config holds the configuration for the OpenAI chat service.
type Config struct {
	APIKey      string  `json:"api_key"`
	BaseURL     string  `json:"base_url"`
	Model       string  `json:"model"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float32 `json:"temperature"`
}

// Service issues chat completions against an OpenAI-compatible endpoint,
// parameterized by a mode and a target language that together determine the
// system instruction prepended to every request.
//
// Transport failures are classified here, once, into the core error
// taxonomy; callers never see a raw transport error. The service performs no
// retries.
type Service struct {
	config       Config
	mode         Mode
	language     core.Language
	systemPrompt string
	client       *openai.Client
	logger       *core.Logger
}

// NewService creates a chat service for the given mode and language.
func NewService(config Config, mode Mode, language core.Language, logger *core.Logger) *Service {
	if config.Model == "" {
		config.Model = openai.GPT3Dot5Turbo
	}
	if logger == nil {
		logger = core.NewDevelopmentLogger()
	}
	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}
	return &Service{
		config:       config,
		mode:         mode,
		language:     language,
		systemPrompt: renderSystemPrompt(mode, language),
		client:       openai.NewClientWithConfig(clientConfig),
		logger:       logger.With(map[string]interface{}{"component": "chat", "mode": string(mode)}),
	}
}

// Mode returns the mode this service was built for.
func (s *Service) Mode() Mode { return s.mode }

// Language returns the language this service was built for.
func (s *Service) Language() core.Language { return s.language }

func (s *Service) buildRequest(history []*core.Message) openai.ChatCompletionRequest {
	messages := make([]openai.ChatCompletionMessage, 0, len(history)+1)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: s.systemPrompt,
	})
	for _, message := range history {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    string(message.Role),
			Content: message.Content,
		})
	}
	return openai.ChatCompletionRequest{
		Model:       s.config.Model,
		Messages:    messages,
		MaxTokens:   s.config.MaxTokens,
		Temperature: s.config.Temperature,
	}
}

// Complete runs a single-shot chat completion over the given history and
// returns the first candidate's content.
func (s *Service) Complete(ctx context.Context, history []*core.Message) (string, error) {
	response, err := s.client.CreateChatCompletion(ctx, s.buildRequest(history))
	if err != nil {
		classified := core.Classify(fmt.Errorf("chat completion: %w", err))
		s.logger.Warn("completion failed", "kind", classified.Kind.String(), "error", err)
		return "", classified
	}
	if len(response.Choices) == 0 {
		err := core.NewClassifiedError(core.KindMalformedResponse, errors.New("chat completion returned no choices"))
		s.logger.Warn("completion failed", "kind", err.Kind.String())
		return "", err
	}
	return response.Choices[0].Message.Content, nil
}

// Stream runs a streaming chat completion. Content deltas are delivered to
// onChunk in arrival order; the terminal marker fires onDone exactly once
// and no onChunk call follows it. Frames that fail to decode are skipped
// individually and logged rather than aborting the whole stream.
func (s *Service) Stream(ctx context.Context, history []*core.Message, onChunk func(string), onDone func(), onError func(error)) {
	request := s.buildRequest(history)
	request.Stream = true

	stream, err := s.client.CreateChatCompletionStream(ctx, request)
	if err != nil {
		classified := core.Classify(fmt.Errorf("creating completion stream: %w", err))
		s.logger.Warn("stream failed to open", "kind", classified.Kind.String(), "error", err)
		onError(classified)
		return
	}
	defer stream.Close()

	for {
		response, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			onDone()
			return
		}
		if err != nil {
			if isFrameDecodeError(err) {
				s.logger.Warn("skipping undecodable stream frame", "error", err)
				continue
			}
			classified := core.Classify(fmt.Errorf("receiving stream frame: %w", err))
			s.logger.Warn("stream aborted", "kind", classified.Kind.String(), "error", err)
			onError(classified)
			return
		}
		if len(response.Choices) == 0 {
			s.logger.Warn("skipping stream frame with no choices")
			continue
		}
		if delta := response.Choices[0].Delta.Content; delta != "" {
			onChunk(delta)
		}
	}
}

// isFrameDecodeError reports whether err came from decoding a single frame's
// JSON body, which is recoverable, as opposed to a dead transport.
func isFrameDecodeError(err error) bool {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	return errors.As(err, &syntaxErr) || errors.As(err, &typeErr)
}
