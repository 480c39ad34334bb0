package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lingokit/core"
)

// fakeChat scripts the tutor client: either a streamed reply delivered chunk
// by chunk, or an error after a number of chunks.
type fakeChat struct {
	chunks   []string
	reply    string
	err      error
	failAt   int // stream this many chunks before erroring (when err is set)
	onStream func()
}

func (f *fakeChat) Complete(ctx context.Context, history []*core.Message) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func (f *fakeChat) Stream(ctx context.Context, history []*core.Message, onChunk func(string), onDone func(), onError func(error)) {
	if f.onStream != nil {
		f.onStream()
	}
	if f.err != nil {
		for i := 0; i < f.failAt && i < len(f.chunks); i++ {
			onChunk(f.chunks[i])
		}
		onError(f.err)
		return
	}
	for _, chunk := range f.chunks {
		onChunk(chunk)
	}
	onDone()
}

type fakeStore struct {
	mu      sync.Mutex
	saved   map[string]*core.Conversation
	deleted []string
	loaded  []*core.Conversation
	loadErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{saved: map[string]*core.Conversation{}}
}

func (f *fakeStore) SaveConversation(conversation *core.Conversation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved[conversation.ID] = conversation
	return nil
}

func (f *fakeStore) DeleteConversation(conversation *core.Conversation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, conversation.ID)
	return nil
}

func (f *fakeStore) LoadConversations() ([]*core.Conversation, error) {
	return f.loaded, f.loadErr
}

func (f *fakeStore) savedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.saved)
}

func newTestManager(t *testing.T, client ChatClient, store *fakeStore, streaming bool) (*Manager, *Status) {
	t.Helper()
	status := NewStatus(core.NewNopLogger())
	titles := newTitleCacheWith(&fakeTitler{title: "Generated title"}, nil)
	manager := NewManager(
		ManagerConfig{Language: core.Korean, Streaming: streaming},
		func(core.Language) ChatClient { return client },
		store,
		titles,
		status,
		nil,
		core.NewNopLogger(),
	)
	require.NoError(t, manager.Load())
	return manager, status
}

func waitForTitle(t *testing.T, titleCh <-chan string) string {
	t.Helper()
	select {
	case title := <-titleCh:
		return title
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for title generation")
		return ""
	}
}

func TestLoadStartsWithOnePristineConversation(t *testing.T) {
	manager, _ := newTestManager(t, &fakeChat{}, newFakeStore(), true)

	snapshots := manager.Conversations()
	require.Len(t, snapshots, 1)
	assert.Equal(t, snapshots[0].ID, manager.ActiveID())
	assert.Equal(t, core.DefaultTitle, snapshots[0].Title)
	assert.Empty(t, snapshots[0].Messages)
}

func TestLoadOrdersMostRecentFirstAndAppliesTitles(t *testing.T) {
	older := core.NewConversation(core.Korean)
	older.CreatedAt = time.Now().UTC().Add(-time.Hour)
	older.Append(core.NewUserMessage("old"))
	newer := core.NewConversation(core.Korean)
	newer.Append(core.NewUserMessage("new"))

	store := newFakeStore()
	store.loaded = []*core.Conversation{newer, older}

	status := NewStatus(core.NewNopLogger())
	titles := newTitleCacheWith(&fakeTitler{title: "unused"}, &fakeTitleIndex{
		titles: map[string]string{older.ID: "Restored title"},
	})
	manager := NewManager(
		ManagerConfig{Language: core.Korean, Streaming: true},
		func(core.Language) ChatClient { return &fakeChat{} },
		store, titles, status, nil, core.NewNopLogger(),
	)
	require.NoError(t, manager.Load())

	snapshots := manager.Conversations()
	require.Len(t, snapshots, 2)
	assert.Equal(t, newer.ID, snapshots[0].ID)
	assert.Equal(t, newer.ID, manager.ActiveID())
	assert.Equal(t, "Restored title", snapshots[1].Title)
}

func TestLoadRetriesMissingTitles(t *testing.T) {
	// A conversation persisted while the titler was unreachable still holds
	// the sentinel title; startup retries generation for it.
	titled := core.NewConversation(core.Korean)
	titled.Append(core.NewUserMessage("안녕"))
	titled.Append(core.NewMessage(core.RoleAssistant, "Hello"))
	pristine := core.NewConversation(core.Korean)

	store := newFakeStore()
	store.loaded = []*core.Conversation{pristine, titled}

	titles := newTitleCacheWith(&fakeTitler{title: "Generated title"}, nil)
	manager := NewManager(
		ManagerConfig{Language: core.Korean, Streaming: true},
		func(core.Language) ChatClient { return &fakeChat{} },
		store, titles, NewStatus(core.NewNopLogger()), nil, core.NewNopLogger(),
	)
	titleCh := make(chan string, 1)
	manager.OnTitleUpdated = func(conversationID, title string) {
		assert.Equal(t, titled.ID, conversationID)
		titleCh <- title
	}

	require.NoError(t, manager.Load())
	assert.Equal(t, "Generated title", waitForTitle(t, titleCh))

	require.NoError(t, manager.SelectConversation(titled.ID))
	snapshot, _ := manager.ActiveConversation()
	assert.Equal(t, "Generated title", snapshot.Title)
}

func TestLoadSkipsTitleRetryWhenMemoized(t *testing.T) {
	conversation := core.NewConversation(core.Korean)
	conversation.Append(core.NewUserMessage("안녕"))
	conversation.Append(core.NewMessage(core.RoleAssistant, "Hello"))

	store := newFakeStore()
	store.loaded = []*core.Conversation{conversation}

	titler := &fakeTitler{title: "unused"}
	titles := newTitleCacheWith(titler, &fakeTitleIndex{
		titles: map[string]string{conversation.ID: "Restored title"},
	})
	manager := NewManager(
		ManagerConfig{Language: core.Korean, Streaming: true},
		func(core.Language) ChatClient { return &fakeChat{} },
		store, titles, NewStatus(core.NewNopLogger()), nil, core.NewNopLogger(),
	)
	require.NoError(t, manager.Load())

	snapshot, _ := manager.ActiveConversation()
	assert.Equal(t, "Restored title", snapshot.Title)
	assert.Equal(t, int32(0), titler.calls.Load())
}

func TestAddConversationReusesPristine(t *testing.T) {
	manager, _ := newTestManager(t, &fakeChat{}, newFakeStore(), true)

	first := manager.AddConversation()
	second := manager.AddConversation()
	assert.Equal(t, first, second)
	assert.Len(t, manager.Conversations(), 1)
}

func TestSendMessageStreamsReply(t *testing.T) {
	client := &fakeChat{chunks: []string{"Hi ", "there"}}
	store := newFakeStore()
	manager, status := newTestManager(t, client, store, true)

	titleCh := make(chan string, 1)
	manager.OnTitleUpdated = func(conversationID, title string) { titleCh <- title }

	var deltas []string
	manager.OnMessageDelta = func(conversationID, messageID, content string) {
		deltas = append(deltas, content)
	}

	require.NoError(t, manager.SendMessage(context.Background(), "안녕하세요"))

	snapshot, ok := manager.ActiveConversation()
	require.True(t, ok)
	require.Len(t, snapshot.Messages, 2)
	assert.Equal(t, core.RoleUser, snapshot.Messages[0].Role)
	assert.Equal(t, "안녕하세요", snapshot.Messages[0].Content)
	assert.Equal(t, core.RoleAssistant, snapshot.Messages[1].Role)
	assert.Equal(t, "Hi there", snapshot.Messages[1].Content)

	assert.Equal(t, []string{"Hi ", "Hi there"}, deltas)
	assert.Empty(t, manager.InputBuffer())
	assert.False(t, status.SomethingWrong())

	assert.Equal(t, "Generated title", waitForTitle(t, titleCh))
	snapshot, _ = manager.ActiveConversation()
	assert.Equal(t, "Generated title", snapshot.Title)
	assert.Equal(t, 1, store.savedCount())
}

func TestSendMessageCompleteReply(t *testing.T) {
	client := &fakeChat{reply: "반갑습니다 (Nice to meet you)"}
	manager, _ := newTestManager(t, client, newFakeStore(), false)

	titleCh := make(chan string, 1)
	manager.OnTitleUpdated = func(conversationID, title string) { titleCh <- title }

	require.NoError(t, manager.SendMessage(context.Background(), "hello"))

	snapshot, _ := manager.ActiveConversation()
	require.Len(t, snapshot.Messages, 2)
	assert.Equal(t, "반갑습니다 (Nice to meet you)", snapshot.Messages[1].Content)
	waitForTitle(t, titleCh)
}

func TestSendMessageEmptyInputIsNoOp(t *testing.T) {
	manager, _ := newTestManager(t, &fakeChat{}, newFakeStore(), true)
	require.NoError(t, manager.SendMessage(context.Background(), "   \n"))

	snapshot, _ := manager.ActiveConversation()
	assert.Empty(t, snapshot.Messages)
}

func TestSendMessageRollsBackOnStreamFailure(t *testing.T) {
	client := &fakeChat{
		chunks: []string{"par", "tial"},
		failAt: 1,
		err:    core.NewClassifiedError(core.KindUpstreamUnavailable, errors.New("503")),
	}
	manager, status := newTestManager(t, client, newFakeStore(), true)

	err := manager.SendMessage(context.Background(), "안녕하세요")
	require.Error(t, err)

	// Both the optimistic user message and the partial reply are gone, and
	// the typed text is back in the input buffer.
	snapshot, _ := manager.ActiveConversation()
	assert.Empty(t, snapshot.Messages)
	assert.Equal(t, "안녕하세요", manager.InputBuffer())
	assert.Equal(t, StatusSnapshot{UpstreamDown: true}, status.Snapshot())
}

func TestSendMessageRollbackKeepsNewerTyping(t *testing.T) {
	client := &fakeChat{
		err: core.NewClassifiedError(core.KindOffline, errors.New("no route")),
	}
	manager, _ := newTestManager(t, client, newFakeStore(), true)
	// The user starts typing a new draft while the send is in flight.
	client.onStream = func() { manager.SetInputBuffer("new draft") }

	require.Error(t, manager.SendMessage(context.Background(), "first attempt"))
	assert.Equal(t, "new draft", manager.InputBuffer())
}

func TestSendMessageRestoresInputWhenConversationDeletedMidSend(t *testing.T) {
	manager, _ := newTestManager(t, &fakeChat{chunks: []string{"ok"}}, newFakeStore(), true)

	// The conversation vanishes in the window between the optimistic append
	// and the streaming reply starting.
	var deleted bool
	manager.OnConversationUpdated = func(snapshot ConversationSnapshot) {
		if !deleted && len(snapshot.Messages) == 1 {
			deleted = true
			require.NoError(t, manager.DeleteConversation(snapshot.ID))
		}
	}

	err := manager.SendMessage(context.Background(), "hello")
	require.Error(t, err)
	assert.Equal(t, "hello", manager.InputBuffer())
}

func TestOfflineFlagSetAndClearedAcrossSends(t *testing.T) {
	client := &fakeChat{
		chunks: []string{"ok"},
		err:    core.NewClassifiedError(core.KindOffline, errors.New("no route")),
	}
	manager, status := newTestManager(t, client, newFakeStore(), true)

	require.Error(t, manager.SendMessage(context.Background(), "hello"))
	assert.True(t, status.Snapshot().Offline)

	// Connectivity returns; a successful send clears the flag.
	client.err = nil
	require.NoError(t, manager.SendMessage(context.Background(), "hello"))
	assert.False(t, status.SomethingWrong())
}

func TestSendMessageFailureLeavesNothingPersisted(t *testing.T) {
	store := newFakeStore()
	client := &fakeChat{err: errors.New("boom")}
	manager, _ := newTestManager(t, client, store, true)

	require.Error(t, manager.SendMessage(context.Background(), "hello"))
	assert.Zero(t, store.savedCount())
}

func TestSelectConversation(t *testing.T) {
	manager, _ := newTestManager(t, &fakeChat{chunks: []string{"ok"}}, newFakeStore(), true)

	first := manager.ActiveID()
	require.NoError(t, manager.SendMessage(context.Background(), "hi"))
	second := manager.AddConversation()
	require.NotEqual(t, first, second)

	require.NoError(t, manager.SelectConversation(first))
	assert.Equal(t, first, manager.ActiveID())

	assert.Error(t, manager.SelectConversation("no-such-id"))
}

func TestDeleteConversation(t *testing.T) {
	store := newFakeStore()
	manager, _ := newTestManager(t, &fakeChat{chunks: []string{"ok"}}, store, true)

	first := manager.ActiveID()
	require.NoError(t, manager.SendMessage(context.Background(), "hi"))
	second := manager.AddConversation()

	require.NoError(t, manager.DeleteConversation(second))
	assert.Equal(t, first, manager.ActiveID())
	assert.Contains(t, store.deleted, second)

	// Deleting the last conversation replaces it with a fresh pristine one.
	require.NoError(t, manager.DeleteConversation(first))
	snapshots := manager.Conversations()
	require.Len(t, snapshots, 1)
	assert.NotEqual(t, first, snapshots[0].ID)
	assert.Empty(t, snapshots[0].Messages)

	assert.Error(t, manager.DeleteConversation("no-such-id"))
}

func TestStreamTargetsCapturedConversation(t *testing.T) {
	// The reply must land in the conversation that was active when the send
	// started, even if the user switches away mid-stream.
	manager, _ := newTestManager(t, nil, newFakeStore(), true)
	origin := manager.ActiveID()

	var second string
	client := &fakeChat{chunks: []string{"안녕"}}
	client.onStream = func() {
		second = manager.AddConversation()
		require.NoError(t, manager.SelectConversation(second))
	}
	// Swap the scripted client in via the tutors hook.
	manager.tutors = func(core.Language) ChatClient { return client }

	require.NoError(t, manager.SendMessage(context.Background(), "hello"))

	require.NoError(t, manager.SelectConversation(origin))
	snapshot, _ := manager.ActiveConversation()
	require.Len(t, snapshot.Messages, 2)
	assert.Equal(t, "안녕", snapshot.Messages[1].Content)

	require.NoError(t, manager.SelectConversation(second))
	snapshot, _ = manager.ActiveConversation()
	assert.Empty(t, snapshot.Messages)
}
