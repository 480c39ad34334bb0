package factories

import (
	"fmt"

	"lingokit/audio"
	"lingokit/core"
	"lingokit/services/openai/speech"
	"lingokit/session"
	"lingokit/store"
)

// SessionCore bundles the constructed session-orchestration components.
type SessionCore struct {
	Manager  *session.Manager
	Status   *session.Status
	Titles   *session.TitleCache
	Pipeline *audio.Pipeline
	Store    *store.Store
	Clients  *ClientCache
	Speech   *speech.Service
}

// BuildSessionCore wires the full session core from settings: store, title
// cache, status aggregator, audio pipeline, and manager, all sharing one
// client cache. player may be nil to use the default exec player.
func BuildSessionCore(settings SettingsConfig, player audio.Player, logger *core.Logger) (*SessionCore, error) {
	if logger == nil {
		logger = core.NewDevelopmentLogger()
	}

	conversationStore, err := store.New(settings.DataDir, logger)
	if err != nil {
		return nil, fmt.Errorf("building store: %w", err)
	}

	clients := NewClientCache(settings.Chat, logger)
	speechService := speech.NewService(settings.Speech, logger)
	status := session.NewStatus(logger)
	titles := session.NewTitleCache(func(language core.Language) session.TitleGenerator {
		return clients.Titler(language)
	}, conversationStore, logger)

	if player == nil {
		player = audio.NewExecPlayer(settings.Player.Command, settings.Player.Args, logger)
	}
	pipeline, err := audio.NewPipeline(settings.Audio, func(language core.Language) audio.Extractor {
		return clients.Extractor(language)
	}, speechService, player, logger)
	if err != nil {
		return nil, fmt.Errorf("building audio pipeline: %w", err)
	}

	manager := session.NewManager(
		session.ManagerConfig{Language: settings.Language, Streaming: settings.Streaming},
		func(language core.Language) session.ChatClient {
			return clients.Tutor(language)
		},
		conversationStore,
		titles,
		status,
		pipeline,
		logger,
	)

	return &SessionCore{
		Manager:  manager,
		Status:   status,
		Titles:   titles,
		Pipeline: pipeline,
		Store:    conversationStore,
		Clients:  clients,
		Speech:   speechService,
	}, nil
}
