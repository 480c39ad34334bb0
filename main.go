package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"lingokit/audio"
	"lingokit/core"
	"lingokit/factories"
	"lingokit/feed"
	audioutil "lingokit/utils/audio"
)

const version = "0.3.0"

func main() {
	var connectURL string
	var settingsPath string
	flag.StringVar(&connectURL, "connect", "", "WebSocket URL of the UI feed endpoint (e.g. ws://ui:8888/ws/core)")
	flag.StringVar(&settingsPath, "settings", "settings.json", "path to the settings file")
	flag.Parse()

	logger := core.NewDevelopmentLogger()

	if err := godotenv.Load(".env.local"); err != nil {
		logger.With(map[string]interface{}{"error": err}).Warn("No .env.local file found or failed to load")
	}

	settings, err := factories.SettingsConfigFromFile(settingsPath)
	if err != nil {
		logger.With(map[string]interface{}{"error": err}).Warn("failed to load settings, using defaults")
		settings = factories.DefaultSettingsConfig()
	}
	settings.ApplyEnv()

	if settings.Chat.APIKey == "" {
		logger.Error("OPENAI_API_KEY is not set")
		os.Exit(1)
	}

	sessionCore, err := factories.BuildSessionCore(settings, nil, logger)
	if err != nil {
		logger.With(map[string]interface{}{"error": err}).Error("failed to build session core")
		os.Exit(1)
	}
	if err := sessionCore.Manager.Load(); err != nil {
		logger.With(map[string]interface{}{"error": err}).Error("failed to load sessions")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if connectURL != "" {
		runConnectedMode(ctx, cancel, connectURL, settings, sessionCore, logger)
		<-ctx.Done()
		logger.Info("Shutting down...")
		return
	}
	runStandaloneMode(ctx, sessionCore, logger)
}

// runConnectedMode attaches the session core to a UI over WebSocket: state
// changes are pushed out as feed events and input commands come back in.
func runConnectedMode(ctx context.Context, cancel context.CancelFunc, connectURL string, settings factories.SettingsConfig, sessionCore *factories.SessionCore, logger *core.Logger) {
	clientID := os.Getenv("LINGOKIT_CLIENT_ID")
	if clientID == "" {
		hostname, _ := os.Hostname()
		clientID = hostname
	}

	client := feed.NewClient(feed.ClientConfig{
		ConnectURL: connectURL,
		ClientID:   clientID,
		Version:    version,
		Language:   settings.Language,
		Logger:     logger,
	})

	manager := sessionCore.Manager
	manager.OnConversationUpdated = client.PublishConversation
	manager.OnMessageDelta = client.PublishDelta
	manager.OnTitleUpdated = client.PublishTitle
	sessionCore.Status.OnChange(client.PublishStatus)
	sessionCore.Pipeline.OnLoading = client.PublishAudioLoading
	client.ConversationCount = func() int { return len(manager.Conversations()) }

	client.OnSendMessage = func(text string) {
		go func() {
			if err := manager.SendMessage(ctx, text); err != nil {
				logger.With(map[string]interface{}{"error": err}).Warn("send failed")
			}
		}()
	}
	client.OnNewConversation = func() { manager.AddConversation() }
	client.OnSelectConversation = func(id string) {
		if err := manager.SelectConversation(id); err != nil {
			logger.With(map[string]interface{}{"error": err}).Warn("select failed")
		}
	}
	client.OnDeleteConversation = func(id string) {
		if err := manager.DeleteConversation(id); err != nil {
			logger.With(map[string]interface{}{"error": err}).Warn("delete failed")
		}
	}
	client.OnPlayMessage = func(conversationID, messageID string) {
		go func() {
			if err := manager.HearMessage(ctx, conversationID, messageID); err != nil {
				logger.With(map[string]interface{}{"error": err}).Warn("playback failed")
			}
		}()
	}
	client.OnSetRate = func(rate string) { manager.SetPlaybackRate(audio.ParseRate(rate)) }
	client.OnAudioInput = func(chunk core.AudioChunk) {
		go func() {
			logger.With(map[string]interface{}{"seconds": chunk.GetDurationInSeconds()}).Debug("recorder audio received")
			wav, err := audioutil.ChunkToWav(chunk)
			if err != nil {
				logger.With(map[string]interface{}{"error": err}).Warn("bad recorder audio")
				return
			}
			transcript, err := sessionCore.Speech.Transcribe(ctx, wav)
			if err != nil {
				sessionCore.Status.SetFromError(err)
				return
			}
			if err := manager.SendMessage(ctx, transcript); err != nil {
				logger.With(map[string]interface{}{"error": err}).Warn("send failed")
			}
		}()
	}
	client.OnShutdown = func(reason string) { cancel() }

	if err := client.Connect(ctx); err != nil {
		logger.With(map[string]interface{}{"error": err}).Error("failed to connect to UI feed")
		cancel()
		return
	}

	go func() {
		client.Wait()
		cancel()
	}()
}

// runStandaloneMode drives the session core from stdin, which is handy for
// poking at the core without a UI attached.
func runStandaloneMode(ctx context.Context, sessionCore *factories.SessionCore, logger *core.Logger) {
	manager := sessionCore.Manager
	manager.OnMessageDelta = func(conversationID, messageID, content string) {
		fmt.Printf("\r%s", content)
	}
	manager.OnTitleUpdated = func(conversationID, title string) {
		fmt.Printf("\n[title: %s]\n", title)
	}

	fmt.Println("lingokit — /new starts a conversation, /hear plays the last reply, /quit exits")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		line := scanner.Text()
		switch {
		case line == "/quit":
			return
		case line == "/new":
			manager.AddConversation()
		case line == "/hear":
			hearLastReply(ctx, sessionCore, logger)
		case strings.TrimSpace(line) == "":
		default:
			if err := manager.SendMessage(ctx, line); err != nil {
				fmt.Printf("error: %v\n", err)
				continue
			}
			fmt.Println()
		}
	}
}

func hearLastReply(ctx context.Context, sessionCore *factories.SessionCore, logger *core.Logger) {
	snapshot, ok := sessionCore.Manager.ActiveConversation()
	if !ok {
		return
	}
	for i := len(snapshot.Messages) - 1; i >= 0; i-- {
		if snapshot.Messages[i].Role == core.RoleAssistant {
			if err := sessionCore.Manager.HearMessage(ctx, snapshot.ID, snapshot.Messages[i].ID); err != nil {
				fmt.Printf("error: %v\n", err)
			}
			return
		}
	}
	fmt.Println("nothing to hear yet")
}
