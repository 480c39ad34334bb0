package factories

import (
	"sync"

	"lingokit/core"
	"lingokit/services/openai/chat"
)

type clientKey struct {
	mode     chat.Mode
	language core.Language
}

// ClientCache builds and memoizes one chat service per (mode, language)
// pair, so switching languages or modes never reconstructs a client that
// already exists.
type ClientCache struct {
	config  chat.Config
	logger  *core.Logger
	mu      sync.RWMutex
	clients map[clientKey]*chat.Service
}

// NewClientCache creates a client cache around a single chat config.
func NewClientCache(config chat.Config, logger *core.Logger) *ClientCache {
	if logger == nil {
		logger = core.NewDevelopmentLogger()
	}
	return &ClientCache{
		config:  config,
		logger:  logger,
		clients: map[clientKey]*chat.Service{},
	}
}

// Client returns the chat service for the given mode and language, building
// it on first use.
func (c *ClientCache) Client(mode chat.Mode, language core.Language) *chat.Service {
	key := clientKey{mode: mode, language: language}

	c.mu.RLock()
	service, ok := c.clients[key]
	c.mu.RUnlock()
	if ok {
		return service
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if service, ok := c.clients[key]; ok {
		return service
	}
	service = chat.NewService(c.config, mode, language, c.logger)
	c.clients[key] = service
	return service
}

// Tutor returns the tutor-mode service for a language.
func (c *ClientCache) Tutor(language core.Language) *chat.Service {
	return c.Client(chat.ModeTutor, language)
}

// Extractor returns the extractor-mode service for a language.
func (c *ClientCache) Extractor(language core.Language) *chat.Service {
	return c.Client(chat.ModeExtractor, language)
}

// Titler returns the titler-mode service for a language.
func (c *ClientCache) Titler(language core.Language) *chat.Service {
	return c.Client(chat.ModeTitler, language)
}
