package audio

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"lingokit/core"
)

// ErrNoTargetText is returned by the extraction step when a message contains
// no target-language text to speak. The pipeline aborts without writing a
// cache entry.
var ErrNoTargetText = errors.New("audio: no target-language text in message")

// Extractor isolates the target-language substring of a bilingual message.
// Satisfied by the extractor-mode chat service.
type Extractor interface {
	Complete(ctx context.Context, history []*core.Message) (string, error)
}

// Synthesizer turns text into audio bytes. Satisfied by the speech service.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string, speed float64) ([]byte, error)
}

// Player is the black-box playback boundary. rate scales playback speed,
// 1.0 being normal.
type Player interface {
	Play(audio []byte, rate float64) error
}

// PlaybackRate is the pipeline-wide playback speed setting. Changing it
// affects whatever is played next; it never invalidates cached audio or
// touches audio already playing.
type PlaybackRate int

const (
	RateNormal PlaybackRate = iota
	RateSlow
)

func (r PlaybackRate) Speed() float64 {
	if r == RateSlow {
		return 0.7
	}
	return 1.0
}

func (r PlaybackRate) String() string {
	if r == RateSlow {
		return "slow"
	}
	return "normal"
}

// ParseRate maps a rate name to a PlaybackRate, defaulting to normal.
func ParseRate(name string) PlaybackRate {
	if name == "slow" {
		return RateSlow
	}
	return RateNormal
}

// Config holds the audio pipeline configuration.
type Config struct {
	// CacheDir is where synthesized audio resources live, one file per
	// message identity.
	CacheDir string `json:"cache_dir"`
}

// Pipeline resolves a message to playable audio: cached bytes when the
// message's audio resource exists, otherwise extract, synthesize, persist,
// then play. Existence of the resource is the sole cache-hit signal, which
// is sound because message content is sealed before audio is ever requested.
//
// Concurrent Play calls for the same message share one in-flight
// extraction+synthesis; calls for different messages never contend.
type Pipeline struct {
	config      Config
	extractors  func(core.Language) Extractor
	synthesizer Synthesizer
	player      Player
	logger      *core.Logger
	group       singleflight.Group

	mu   sync.Mutex
	rate PlaybackRate

	// OnLoading, if set, is notified when synthesis work for a message
	// starts and ends. Cache hits play without a loading phase.
	OnLoading func(messageID string, loading bool)
}

// NewPipeline creates an audio pipeline, creating the cache directory if
// needed.
func NewPipeline(config Config, extractors func(core.Language) Extractor, synthesizer Synthesizer, player Player, logger *core.Logger) (*Pipeline, error) {
	if err := os.MkdirAll(config.CacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("audio: creating cache dir %q: %w", config.CacheDir, err)
	}
	if logger == nil {
		logger = core.NewDevelopmentLogger()
	}
	return &Pipeline{
		config:      config,
		extractors:  extractors,
		synthesizer: synthesizer,
		player:      player,
		logger:      logger.With(map[string]interface{}{"component": "audio"}),
	}, nil
}

// SetRate sets the pipeline-wide playback rate.
func (p *Pipeline) SetRate(rate PlaybackRate) {
	p.mu.Lock()
	p.rate = rate
	p.mu.Unlock()
}

// Rate returns the current playback rate.
func (p *Pipeline) Rate() PlaybackRate {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rate
}

// CachePath returns the deterministic cache location for a message's audio.
func (p *Pipeline) CachePath(message *core.Message) string {
	return filepath.Join(p.config.CacheDir, message.AudioFile)
}

// Play makes the message's audio heard. A message with no target-language
// text plays nothing and is not an error. Extraction and synthesis failures
// are terminal for this invocation and leave no cache entry, so a later call
// redoes the work.
func (p *Pipeline) Play(ctx context.Context, message *core.Message, language core.Language) error {
	path := p.CachePath(message)
	if audio, err := os.ReadFile(path); err == nil {
		p.logger.Debug("audio cache hit", "message", message.ID)
		return p.playBytes(audio)
	}

	p.signalLoading(message.ID, true)
	defer p.signalLoading(message.ID, false)

	result, err, _ := p.group.Do(message.ID, func() (interface{}, error) {
		// A caller that queued behind the winning flight finds the file
		// it just wrote.
		if audio, err := os.ReadFile(path); err == nil {
			return audio, nil
		}
		return p.synthesize(ctx, message, language, path)
	})
	if err != nil {
		if errors.Is(err, ErrNoTargetText) {
			p.logger.Info("nothing to speak", "message", message.ID)
			return nil
		}
		return err
	}
	return p.playBytes(result.([]byte))
}

func (p *Pipeline) synthesize(ctx context.Context, message *core.Message, language core.Language, path string) ([]byte, error) {
	extracted, err := p.extractors(language).Complete(ctx, []*core.Message{
		{ID: message.ID, Role: core.RoleUser, Content: message.Content},
	})
	if err != nil {
		return nil, err
	}
	extracted = strings.TrimSpace(extracted)
	if extracted == "" || extracted == core.NoExtractedText {
		return nil, ErrNoTargetText
	}

	// Synthesis always runs at normal speed; the playback rate is applied
	// when playing, so one cached rendering serves both rates.
	audio, err := p.synthesizer.Synthesize(ctx, extracted, 1.0)
	if err != nil {
		return nil, err
	}

	if err := os.WriteFile(path, audio, 0o644); err != nil {
		// Local I/O failure: logged, treated as a cache miss. The bytes
		// are still good to play right now.
		p.logger.Warn("failed to persist audio cache entry", "path", path, "error", err)
	}
	return audio, nil
}

func (p *Pipeline) playBytes(audio []byte) error {
	if err := p.player.Play(audio, p.Rate().Speed()); err != nil {
		return fmt.Errorf("audio: playback: %w", err)
	}
	return nil
}

func (p *Pipeline) signalLoading(messageID string, loading bool) {
	if p.OnLoading != nil {
		p.OnLoading(messageID, loading)
	}
}
