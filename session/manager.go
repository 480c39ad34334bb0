package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"lingokit/audio"
	"lingokit/core"
)

// ChatClient is the language-model boundary the manager talks through.
// Satisfied by the tutor-mode chat service.
type ChatClient interface {
	Complete(ctx context.Context, history []*core.Message) (string, error)
	Stream(ctx context.Context, history []*core.Message, onChunk func(string), onDone func(), onError func(error))
}

// ConversationStore persists whole-conversation records. Satisfied by the
// store.
type ConversationStore interface {
	SaveConversation(conversation *core.Conversation) error
	DeleteConversation(conversation *core.Conversation) error
	LoadConversations() ([]*core.Conversation, error)
}

// MessageSnapshot is a read-only copy of a message for observers.
type MessageSnapshot struct {
	ID        string    `json:"id"`
	Role      core.Role `json:"role"`
	Content   string    `json:"content"`
	AudioFile string    `json:"audio_file"`
}

// ConversationSnapshot is a read-only copy of a conversation for observers.
type ConversationSnapshot struct {
	ID        string            `json:"id"`
	Title     string            `json:"title"`
	Language  core.Language     `json:"language"`
	CreatedAt time.Time         `json:"created_at"`
	Messages  []MessageSnapshot `json:"messages"`
}

// ManagerConfig holds the session manager configuration.
type ManagerConfig struct {
	// Language is the target language for new conversations.
	Language core.Language `json:"language"`
	// Streaming selects token-by-token replies over single-shot ones.
	Streaming bool `json:"streaming"`
}

// Manager owns the set of open conversations, the active-conversation
// pointer and the input buffer. It is the single owner of that state: all
// mutation happens under its mutex, and network or file I/O never runs while
// the mutex is held. In-flight calls capture their target conversation's
// identity at call start and apply results by that identity, never by
// whatever conversation is active at completion time.
type Manager struct {
	mu            sync.Mutex
	config        ManagerConfig
	conversations map[string]*core.Conversation
	order         []string // conversation ids, most recent first
	activeID      string
	inputBuffer   string

	tutors func(core.Language) ChatClient
	store  ConversationStore
	titles *TitleCache
	status *Status
	audio  *audio.Pipeline
	logger *core.Logger

	// Callbacks toward the observing UI layer. Set them before Load; all
	// are optional and invoked without the manager's lock held.
	OnConversationUpdated func(snapshot ConversationSnapshot)
	OnMessageDelta        func(conversationID, messageID, content string)
	OnTitleUpdated        func(conversationID, title string)
}

// NewManager creates a session manager. tutors builds (or reuses) the
// tutor-mode chat client for a language; pipeline may be nil when audio is
// not wired.
func NewManager(config ManagerConfig, tutors func(core.Language) ChatClient, store ConversationStore, titles *TitleCache, status *Status, pipeline *audio.Pipeline, logger *core.Logger) *Manager {
	if config.Language == "" {
		config.Language = core.DefaultLanguage
	}
	if logger == nil {
		logger = core.NewDevelopmentLogger()
	}
	return &Manager{
		config:        config,
		conversations: map[string]*core.Conversation{},
		tutors:        tutors,
		store:         store,
		titles:        titles,
		status:        status,
		audio:         pipeline,
		logger:        logger.With(map[string]interface{}{"component": "session"}),
	}
}

// Load reconstructs all persisted conversations, most recent first, applies
// memoized titles, and ensures an active conversation exists. A fresh
// process with no records starts with one pristine conversation.
// Conversations that earned a title but never got one (the titler was
// unreachable when they were persisted) have generation retried here.
func (m *Manager) Load() error {
	loaded, err := m.store.LoadConversations()
	if err != nil {
		// Treated as an empty store: the process still starts.
		m.logger.Warn("failed to load conversations", "error", err)
		loaded = nil
	}

	type titleJob struct {
		conversationID string
		language       core.Language
		history        []*core.Message
	}
	var missingTitles []titleJob

	m.mu.Lock()
	for _, conversation := range loaded {
		conversation.Pristine = len(conversation.Messages) == 0
		if m.titles != nil {
			if title, ok := m.titles.Get(conversation.ID); ok {
				conversation.Title = title
			}
		}
		if len(conversation.Messages) >= 2 && conversation.HasDefaultTitle() {
			missingTitles = append(missingTitles, titleJob{
				conversationID: conversation.ID,
				language:       conversation.Language,
				history:        copyMessages(conversation.Messages),
			})
		}
		m.conversations[conversation.ID] = conversation
		m.order = append(m.order, conversation.ID)
	}
	if len(m.order) > 0 {
		m.activeID = m.order[0]
	}
	m.mu.Unlock()

	if len(loaded) == 0 {
		m.AddConversation()
	}
	if m.titles != nil {
		for _, job := range missingTitles {
			go m.generateTitle(job.conversationID, job.language, job.history)
		}
	}
	m.logger.Info("sessions loaded", "conversations", len(loaded), "missing_titles", len(missingTitles))
	return nil
}

// AddConversation makes a pristine conversation active, reusing the most
// recently created one when it is still pristine so empty conversations
// never accumulate. Returns the active conversation's id.
func (m *Manager) AddConversation() string {
	m.mu.Lock()
	if len(m.order) > 0 {
		if newest := m.conversations[m.order[0]]; newest != nil && newest.Pristine {
			m.activeID = newest.ID
			m.mu.Unlock()
			return newest.ID
		}
	}
	conversation := core.NewConversation(m.config.Language)
	m.conversations[conversation.ID] = conversation
	m.order = append([]string{conversation.ID}, m.order...)
	m.activeID = conversation.ID
	m.mu.Unlock()

	m.notifyConversation(conversation.ID)
	return conversation.ID
}

// SelectConversation switches the active-conversation pointer.
func (m *Manager) SelectConversation(conversationID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.conversations[conversationID]; !ok {
		return fmt.Errorf("session: unknown conversation %s", conversationID)
	}
	m.activeID = conversationID
	return nil
}

// DeleteConversation removes a conversation and its durable record. If the
// active conversation is deleted, the most recent remaining one (or a fresh
// pristine one) becomes active.
func (m *Manager) DeleteConversation(conversationID string) error {
	m.mu.Lock()
	conversation, ok := m.conversations[conversationID]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("session: unknown conversation %s", conversationID)
	}
	delete(m.conversations, conversationID)
	for i, id := range m.order {
		if id == conversationID {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	wasActive := m.activeID == conversationID
	if wasActive {
		m.activeID = ""
		if len(m.order) > 0 {
			m.activeID = m.order[0]
		}
	}
	m.mu.Unlock()

	if m.titles != nil {
		m.titles.Forget(conversationID)
	}
	if err := m.store.DeleteConversation(conversation); err != nil {
		m.logger.Warn("failed to delete conversation record", "conversation", conversationID, "error", err)
	}
	if wasActive && m.ActiveID() == "" {
		m.AddConversation()
	}
	return nil
}

// ActiveID returns the active conversation's id, or "".
func (m *Manager) ActiveID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.activeID
}

// ActiveConversation returns a snapshot of the active conversation.
func (m *Manager) ActiveConversation() (ConversationSnapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	conversation, ok := m.conversations[m.activeID]
	if !ok {
		return ConversationSnapshot{}, false
	}
	return snapshotConversation(conversation), true
}

// Conversations returns snapshots of all conversations, most recent first.
func (m *Manager) Conversations() []ConversationSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	snapshots := make([]ConversationSnapshot, 0, len(m.order))
	for _, id := range m.order {
		if conversation, ok := m.conversations[id]; ok {
			snapshots = append(snapshots, snapshotConversation(conversation))
		}
	}
	return snapshots
}

// InputBuffer returns the pending input text.
func (m *Manager) InputBuffer() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.inputBuffer
}

// SetInputBuffer replaces the pending input text.
func (m *Manager) SetInputBuffer(text string) {
	m.mu.Lock()
	m.inputBuffer = text
	m.mu.Unlock()
}

// SendMessage appends a user message to the active conversation
// optimistically, clears the input buffer, and requests the assistant reply.
// On failure the optimistic message (and any partial reply) is removed, the
// input buffer is restored to text exactly as typed, and the classified
// error is surfaced through the status aggregator. Empty input is a no-op.
func (m *Manager) SendMessage(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	m.mu.Lock()
	conversation := m.activeLocked()
	conversationID := conversation.ID // identity captured at call start
	language := conversation.Language
	userMessage := core.NewUserMessage(text)
	conversation.Append(userMessage)
	m.inputBuffer = ""
	history := copyMessages(conversation.Messages)
	m.mu.Unlock()

	m.notifyConversation(conversationID)

	client := m.tutors(language)
	if m.config.Streaming {
		return m.streamReply(ctx, client, conversationID, history, userMessage.ID, text)
	}
	return m.completeReply(ctx, client, conversationID, history, userMessage.ID, text)
}

func (m *Manager) completeReply(ctx context.Context, client ChatClient, conversationID string, history []*core.Message, userMessageID, text string) error {
	content, err := client.Complete(ctx, history)
	if err != nil {
		m.rollback(conversationID, text, err, userMessageID)
		return err
	}

	m.mu.Lock()
	if conversation, ok := m.conversations[conversationID]; ok {
		conversation.Append(core.NewMessage(core.RoleAssistant, content))
	}
	m.mu.Unlock()

	m.status.SetHappy()
	m.afterReply(conversationID)
	return nil
}

func (m *Manager) streamReply(ctx context.Context, client ChatClient, conversationID string, history []*core.Message, userMessageID, text string) error {
	m.mu.Lock()
	conversation, ok := m.conversations[conversationID]
	if !ok {
		m.mu.Unlock()
		err := fmt.Errorf("session: conversation %s disappeared mid-send", conversationID)
		m.rollback(conversationID, text, err, userMessageID)
		return err
	}
	placeholder := core.NewAssistantPlaceholder()
	conversation.Append(placeholder)
	assembler := NewAssembler(placeholder, &m.mu, func(messageID, content string) {
		if m.OnMessageDelta != nil {
			m.OnMessageDelta(conversationID, messageID, content)
		}
	})
	m.mu.Unlock()

	var streamErr error
	client.Stream(ctx, history,
		assembler.Apply,
		assembler.Seal,
		func(err error) {
			assembler.Seal()
			streamErr = err
		},
	)
	if streamErr != nil {
		m.logger.Warn("stream failed", "conversation", conversationID, "deltas_applied", assembler.Applied())
		m.rollback(conversationID, text, streamErr, userMessageID, placeholder.ID)
		return streamErr
	}

	m.status.SetHappy()
	m.afterReply(conversationID)
	return nil
}

// rollback undoes the optimistic state of a failed send: the listed messages
// are removed and the input buffer is restored, unless the user already
// started typing something new.
func (m *Manager) rollback(conversationID, text string, err error, messageIDs ...string) {
	m.mu.Lock()
	if conversation, ok := m.conversations[conversationID]; ok {
		conversation.Messages = removeMessages(conversation.Messages, messageIDs...)
		conversation.Pristine = len(conversation.Messages) == 0
	}
	if m.inputBuffer == "" {
		m.inputBuffer = text
	}
	m.mu.Unlock()

	m.status.SetFromError(err)
	m.notifyConversation(conversationID)
}

// afterReply persists the conversation once it holds at least two messages
// and triggers title generation while the title is still the default.
func (m *Manager) afterReply(conversationID string) {
	m.mu.Lock()
	conversation, ok := m.conversations[conversationID]
	if !ok {
		m.mu.Unlock()
		return
	}
	persist := len(conversation.Messages) >= 2
	needsTitle := persist && conversation.HasDefaultTitle()
	language := conversation.Language
	record := copyConversation(conversation)
	history := copyMessages(conversation.Messages)
	m.mu.Unlock()

	if persist {
		if err := m.store.SaveConversation(record); err != nil {
			m.logger.Warn("failed to persist conversation", "conversation", conversationID, "error", err)
		}
	}
	if needsTitle && m.titles != nil {
		go m.generateTitle(conversationID, language, history)
	}
	m.notifyConversation(conversationID)
}

func (m *Manager) generateTitle(conversationID string, language core.Language, history []*core.Message) {
	title, err := m.titles.GetOrGenerate(context.Background(), conversationID, language, history)
	if err != nil {
		// Nothing was memoized; the next reply retries.
		return
	}

	m.mu.Lock()
	conversation, ok := m.conversations[conversationID]
	var record *core.Conversation
	if ok {
		conversation.Title = title
		record = copyConversation(conversation)
	}
	m.mu.Unlock()

	if record != nil {
		if err := m.store.SaveConversation(record); err != nil {
			m.logger.Warn("failed to persist titled conversation", "conversation", conversationID, "error", err)
		}
	}
	if m.OnTitleUpdated != nil {
		m.OnTitleUpdated(conversationID, title)
	}
	m.notifyConversation(conversationID)
}

// HearMessage runs the audio pipeline for one of the conversation's
// messages.
func (m *Manager) HearMessage(ctx context.Context, conversationID, messageID string) error {
	if m.audio == nil {
		return fmt.Errorf("session: audio pipeline not configured")
	}

	m.mu.Lock()
	conversation, ok := m.conversations[conversationID]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("session: unknown conversation %s", conversationID)
	}
	language := conversation.Language
	var message *core.Message
	for _, candidate := range conversation.Messages {
		if candidate.ID == messageID {
			copied := *candidate
			message = &copied
			break
		}
	}
	m.mu.Unlock()

	if message == nil {
		return fmt.Errorf("session: unknown message %s", messageID)
	}
	if err := m.audio.Play(ctx, message, language); err != nil {
		m.status.SetFromError(err)
		return err
	}
	m.status.SetHappy()
	return nil
}

// SetPlaybackRate adjusts the audio pipeline's rate for whatever plays next.
func (m *Manager) SetPlaybackRate(rate audio.PlaybackRate) {
	if m.audio != nil {
		m.audio.SetRate(rate)
	}
}

// activeLocked returns the active conversation, creating a pristine one when
// none exists. Caller holds m.mu.
func (m *Manager) activeLocked() *core.Conversation {
	if conversation, ok := m.conversations[m.activeID]; ok {
		return conversation
	}
	conversation := core.NewConversation(m.config.Language)
	m.conversations[conversation.ID] = conversation
	m.order = append([]string{conversation.ID}, m.order...)
	m.activeID = conversation.ID
	return conversation
}

func (m *Manager) notifyConversation(conversationID string) {
	if m.OnConversationUpdated == nil {
		return
	}
	m.mu.Lock()
	conversation, ok := m.conversations[conversationID]
	var snapshot ConversationSnapshot
	if ok {
		snapshot = snapshotConversation(conversation)
	}
	m.mu.Unlock()
	if ok {
		m.OnConversationUpdated(snapshot)
	}
}

func snapshotConversation(conversation *core.Conversation) ConversationSnapshot {
	messages := make([]MessageSnapshot, len(conversation.Messages))
	for i, message := range conversation.Messages {
		messages[i] = MessageSnapshot{
			ID:        message.ID,
			Role:      message.Role,
			Content:   message.Content,
			AudioFile: message.AudioFile,
		}
	}
	return ConversationSnapshot{
		ID:        conversation.ID,
		Title:     conversation.Title,
		Language:  conversation.Language,
		CreatedAt: conversation.CreatedAt,
		Messages:  messages,
	}
}

func copyMessages(messages []*core.Message) []*core.Message {
	copied := make([]*core.Message, len(messages))
	for i, message := range messages {
		value := *message
		copied[i] = &value
	}
	return copied
}

func copyConversation(conversation *core.Conversation) *core.Conversation {
	copied := *conversation
	copied.Messages = copyMessages(conversation.Messages)
	return &copied
}

func removeMessages(messages []*core.Message, ids ...string) []*core.Message {
	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}
	kept := messages[:0]
	for _, message := range messages {
		if _, gone := drop[message.ID]; !gone {
			kept = append(kept, message)
		}
	}
	return kept
}
