package session

import (
	"context"
	"errors"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"lingokit/core"
)

// TitleGenerator produces a title candidate from a conversation's history.
// It is satisfied by the titler-mode chat service.
type TitleGenerator interface {
	Complete(ctx context.Context, history []*core.Message) (string, error)
}

// TitleIndex persists the conversation-id-to-title map. Satisfied by the
// store.
type TitleIndex interface {
	LoadTitles() (map[string]string, error)
	SaveTitles(titles map[string]string) error
}

// TitleCache maps conversation identity to a generated title. Generation is
// memoized, and concurrent callers for the same conversation share a single
// in-flight upstream request: dedup is by identity, not content. Failed
// generations memoize nothing, so the next call retries.
type TitleCache struct {
	mu      sync.RWMutex
	titles  map[string]string
	group   singleflight.Group
	titlers func(core.Language) TitleGenerator
	index   TitleIndex
	logger  *core.Logger
}

// NewTitleCache creates a title cache backed by the given per-language
// titler factory. When index is non-nil, memoized titles are loaded from it
// at construction and every update rewrites it fully.
func NewTitleCache(titlers func(core.Language) TitleGenerator, index TitleIndex, logger *core.Logger) *TitleCache {
	if logger == nil {
		logger = core.NewDevelopmentLogger()
	}
	cache := &TitleCache{
		titles:  map[string]string{},
		titlers: titlers,
		index:   index,
		logger:  logger.With(map[string]interface{}{"component": "titles"}),
	}
	if index != nil {
		titles, err := index.LoadTitles()
		if err != nil {
			cache.logger.Warn("failed to load title index, starting empty", "error", err)
		} else {
			cache.titles = titles
		}
	}
	return cache
}

// Get returns the memoized title for a conversation, if any.
func (tc *TitleCache) Get(conversationID string) (string, bool) {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	title, ok := tc.titles[conversationID]
	return title, ok
}

// GetOrGenerate returns the memoized title, or generates one from the given
// history. On failure the sentinel default title is returned alongside the
// error and nothing is memoized.
func (tc *TitleCache) GetOrGenerate(ctx context.Context, conversationID string, language core.Language, history []*core.Message) (string, error) {
	if title, ok := tc.Get(conversationID); ok {
		return title, nil
	}

	result, err, _ := tc.group.Do(conversationID, func() (interface{}, error) {
		// A caller that queued behind the winning flight may arrive here
		// after the title landed.
		if title, ok := tc.Get(conversationID); ok {
			return title, nil
		}

		raw, err := tc.titlers(language).Complete(ctx, history)
		if err != nil {
			return nil, err
		}
		title := trimWrappingQuotes(strings.TrimSpace(raw))
		if title == "" {
			return nil, core.NewClassifiedError(core.KindMalformedResponse, errors.New("titler returned empty title"))
		}

		tc.mu.Lock()
		tc.titles[conversationID] = title
		snapshot := tc.copyLocked()
		tc.mu.Unlock()

		tc.persist(snapshot)
		return title, nil
	})
	if err != nil {
		tc.logger.Warn("title generation failed", "conversation", conversationID, "error", err)
		return core.DefaultTitle, err
	}
	return result.(string), nil
}

// Forget drops the title for a deleted conversation.
func (tc *TitleCache) Forget(conversationID string) {
	tc.mu.Lock()
	_, existed := tc.titles[conversationID]
	delete(tc.titles, conversationID)
	snapshot := tc.copyLocked()
	tc.mu.Unlock()

	if existed {
		tc.persist(snapshot)
	}
}

func (tc *TitleCache) persist(titles map[string]string) {
	if tc.index == nil {
		return
	}
	if err := tc.index.SaveTitles(titles); err != nil {
		// Local I/O failure: logged and tolerated, the in-memory cache
		// stays authoritative for this process.
		tc.logger.Warn("failed to persist title index", "error", err)
	}
}

func (tc *TitleCache) copyLocked() map[string]string {
	snapshot := make(map[string]string, len(tc.titles))
	for id, title := range tc.titles {
		snapshot[id] = title
	}
	return snapshot
}

// trimWrappingQuotes strips quote characters the model tends to wrap titles
// in.
func trimWrappingQuotes(s string) string {
	return strings.Trim(s, "\"'“”‘’「」")
}
