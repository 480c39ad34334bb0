package factories

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"lingokit/audio"
	"lingokit/core"
	"lingokit/services/openai/chat"
	"lingokit/services/openai/speech"
)

// PlayerConfig selects the external playback command. Args may contain the
// {file} and {rate} placeholders.
type PlayerConfig struct {
	Command string   `json:"command,omitempty"`
	Args    []string `json:"args,omitempty"`
}

// SettingsConfig is the top-level config loaded from settings.json and
// overridden by environment variables.
type SettingsConfig struct {
	// Chat configures the language-model client shared by all modes.
	Chat chat.Config `json:"chat"`
	// Speech configures synthesis and transcription.
	Speech speech.Config `json:"speech"`
	// Audio configures the synthesized-audio cache.
	Audio audio.Config `json:"audio"`
	// Player selects the external playback command.
	Player PlayerConfig `json:"player"`
	// DataDir is where conversation records and the title index live.
	DataDir string `json:"data_dir"`
	// Language is the target language for new conversations.
	Language core.Language `json:"language"`
	// Streaming selects token-by-token replies.
	Streaming bool `json:"streaming"`
}

// DefaultSettingsConfig returns a SettingsConfig pre-filled with defaults.
func DefaultSettingsConfig() SettingsConfig {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	base := filepath.Join(home, ".lingokit")
	return SettingsConfig{
		DataDir:   filepath.Join(base, "conversations"),
		Audio:     audio.Config{CacheDir: filepath.Join(base, "audio")},
		Language:  core.DefaultLanguage,
		Streaming: true,
	}
}

// SettingsConfigFromJSON parses a JSON blob into a SettingsConfig, layered
// over the defaults.
func SettingsConfigFromJSON(data []byte) (SettingsConfig, error) {
	cfg := DefaultSettingsConfig()
	if err := json.Unmarshal(data, &cfg); err != nil {
		return SettingsConfig{}, fmt.Errorf("settings: %w", err)
	}
	return cfg, nil
}

// SettingsConfigFromFile reads and parses a SettingsConfig from a JSON file.
// A missing file yields the defaults.
func SettingsConfigFromFile(path string) (SettingsConfig, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return DefaultSettingsConfig(), nil
	}
	if err != nil {
		return DefaultSettingsConfig(), fmt.Errorf("settings: read %q: %w", path, err)
	}
	return SettingsConfigFromJSON(data)
}

// ApplyEnv overlays environment variables onto the settings. Only variables
// that are set override the file values.
func (c *SettingsConfig) ApplyEnv() {
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		c.Chat.APIKey = v
		c.Speech.APIKey = v
	}
	if v := os.Getenv("OPENAI_API_HOST"); v != "" {
		c.Chat.BaseURL = v
		c.Speech.BaseURL = v
	}
	if v := os.Getenv("LINGOKIT_MODEL"); v != "" {
		c.Chat.Model = v
	}
	if v := os.Getenv("LINGOKIT_LANGUAGE"); v != "" {
		c.Language = core.Language(v)
	}
	if v := os.Getenv("LINGOKIT_DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("LINGOKIT_AUDIO_DIR"); v != "" {
		c.Audio.CacheDir = v
	}
}
