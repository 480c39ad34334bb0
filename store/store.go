package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/bytedance/sonic"

	"lingokit/core"
)

const titleIndexFilename = "titles.json"

// Store persists conversations and the title index on durable storage.
// Each conversation is one self-contained JSON record named after its
// creation time and identity; the title index is a single JSON document
// rewritten fully on every update.
type Store struct {
	dir    string
	logger *core.Logger
}

// New creates a store rooted at dir, creating the directory if needed.
func New(dir string, logger *core.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("store: creating %q: %w", dir, err)
	}
	if logger == nil {
		logger = core.NewDevelopmentLogger()
	}
	return &Store{
		dir:    dir,
		logger: logger.With(map[string]interface{}{"component": "store"}),
	}, nil
}

// Dir returns the directory the store writes under.
func (s *Store) Dir() string { return s.dir }

// SaveConversation writes the conversation's record, replacing any previous
// version.
func (s *Store) SaveConversation(conversation *core.Conversation) error {
	data, err := sonic.Marshal(conversation)
	if err != nil {
		return core.NewClassifiedError(core.KindLocalIO, fmt.Errorf("store: marshaling conversation %s: %w", conversation.ID, err))
	}
	path := filepath.Join(s.dir, conversation.Filename())
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return core.NewClassifiedError(core.KindLocalIO, fmt.Errorf("store: writing %q: %w", path, err))
	}
	return nil
}

// DeleteConversation removes the conversation's record. A record that is
// already gone is not an error.
func (s *Store) DeleteConversation(conversation *core.Conversation) error {
	path := filepath.Join(s.dir, conversation.Filename())
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return core.NewClassifiedError(core.KindLocalIO, fmt.Errorf("store: removing %q: %w", path, err))
	}
	return nil
}

// LoadConversations scans the store directory and reconstructs every
// conversation record found, most recent first. Records that fail to decode
// are skipped and logged so one corrupt file never hides the rest.
func (s *Store) LoadConversations() ([]*core.Conversation, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, core.NewClassifiedError(core.KindLocalIO, fmt.Errorf("store: reading %q: %w", s.dir, err))
	}

	conversations := make([]*core.Conversation, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !core.IsConversationFilename(entry.Name()) {
			continue
		}
		path := filepath.Join(s.dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			s.logger.Warn("skipping unreadable conversation record", "path", path, "error", err)
			continue
		}
		conversation := &core.Conversation{}
		if err := sonic.Unmarshal(data, conversation); err != nil {
			s.logger.Warn("skipping malformed conversation record", "path", path, "error", err)
			continue
		}
		conversations = append(conversations, conversation)
	}

	sort.Slice(conversations, func(i, j int) bool {
		return conversations[i].CreatedAt.After(conversations[j].CreatedAt)
	})
	return conversations, nil
}

// LoadTitles reads the full title index. A missing index is an empty one.
func (s *Store) LoadTitles() (map[string]string, error) {
	path := filepath.Join(s.dir, titleIndexFilename)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, core.NewClassifiedError(core.KindLocalIO, fmt.Errorf("store: reading %q: %w", path, err))
	}
	titles := map[string]string{}
	if err := sonic.Unmarshal(data, &titles); err != nil {
		return nil, core.NewClassifiedError(core.KindLocalIO, fmt.Errorf("store: decoding %q: %w", path, err))
	}
	return titles, nil
}

// SaveTitles rewrites the full title index.
func (s *Store) SaveTitles(titles map[string]string) error {
	data, err := sonic.Marshal(titles)
	if err != nil {
		return core.NewClassifiedError(core.KindLocalIO, fmt.Errorf("store: marshaling title index: %w", err))
	}
	path := filepath.Join(s.dir, titleIndexFilename)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return core.NewClassifiedError(core.KindLocalIO, fmt.Errorf("store: writing %q: %w", path, err))
	}
	return nil
}
