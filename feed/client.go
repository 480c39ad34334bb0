package feed

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"lingokit/core"
	"lingokit/protocol"
	"lingokit/session"
)

const (
	defaultHeartbeatInterval = 5 * time.Second
	defaultSendBufferSize    = 256
	writeTimeout             = 10 * time.Second
)

// ClientConfig configures the UI feed WebSocket client.
type ClientConfig struct {
	ConnectURL        string
	ClientID          string
	Version           string
	Language          core.Language
	HeartbeatInterval time.Duration
	Logger            *core.Logger
}

// Client is the core-side WebSocket client that connects outward to the UI's
// feed endpoint. It pushes state updates (status, conversations, streaming
// deltas, titles, audio loading) and receives input commands. The feed is
// purely an observation surface: all logic stays in the session manager.
type Client struct {
	config ClientConfig
	conn   *websocket.Conn
	ctx    context.Context
	cancel context.CancelFunc
	logger *core.Logger

	// Callbacks wired to the session manager by the caller.
	OnSendMessage        func(text string)
	OnNewConversation    func()
	OnSelectConversation func(conversationID string)
	OnDeleteConversation func(conversationID string)
	OnPlayMessage        func(conversationID, messageID string)
	OnSetRate            func(rate string)
	OnAudioInput         func(chunk core.AudioChunk)
	OnShutdown           func(reason string)

	// ConversationCount, when set, feeds the heartbeat payload.
	ConversationCount func() int

	sendCh    chan []byte
	done      chan struct{}
	doneOnce  sync.Once
	closeOnce sync.Once
}

// NewClient creates a new feed client.
func NewClient(cfg ClientConfig) *Client {
	if cfg.HeartbeatInterval == 0 {
		cfg.HeartbeatInterval = defaultHeartbeatInterval
	}
	if cfg.Logger == nil {
		cfg.Logger = core.NewDevelopmentLogger()
	}
	return &Client{
		config: cfg,
		logger: cfg.Logger.With(map[string]interface{}{"component": "feed"}),
		sendCh: make(chan []byte, defaultSendBufferSize),
		done:   make(chan struct{}),
	}
}

// Connect dials the UI feed endpoint, sends the registration message, and
// starts the read/write/heartbeat loops. The provided context controls the
// client's lifetime — cancelling it closes the connection.
func (c *Client) Connect(ctx context.Context) error {
	c.ctx, c.cancel = context.WithCancel(ctx)

	c.logger.With(map[string]interface{}{"url": c.config.ConnectURL}).Info("connecting to UI feed")

	conn, _, err := websocket.DefaultDialer.DialContext(c.ctx, c.config.ConnectURL, nil)
	if err != nil {
		c.cancel()
		return fmt.Errorf("feed: dial %q: %w", c.config.ConnectURL, err)
	}
	c.conn = conn

	reg := protocol.RegisterPayload{
		ClientID:  c.config.ClientID,
		Version:   c.config.Version,
		Language:  string(c.config.Language),
		Timestamp: time.Now().UTC(),
	}
	if err := c.send(protocol.MsgRegister, reg); err != nil {
		conn.Close()
		c.cancel()
		return fmt.Errorf("feed: send register: %w", err)
	}

	c.logger.With(map[string]interface{}{"client_id": c.config.ClientID}).Info("registered with UI feed")

	go c.readLoop()
	go c.writeLoop()
	go c.heartbeatLoop()

	return nil
}

// PublishStatus pushes the current error-status flags.
func (c *Client) PublishStatus(status session.StatusSnapshot) {
	c.enqueue(protocol.MsgStatus, protocol.StatusPayload{
		Offline:      status.Offline,
		UpstreamDown: status.UpstreamDown,
	})
}

// PublishConversation pushes a full conversation snapshot.
func (c *Client) PublishConversation(snapshot session.ConversationSnapshot) {
	c.enqueue(protocol.MsgConversation, protocol.ConversationPayload{Conversation: snapshot})
}

// PublishDelta pushes one streamed content update.
func (c *Client) PublishDelta(conversationID, messageID, content string) {
	c.enqueue(protocol.MsgDelta, protocol.DeltaPayload{
		ConversationID: conversationID,
		MessageID:      messageID,
		Content:        content,
	})
}

// PublishTitle pushes a newly generated title.
func (c *Client) PublishTitle(conversationID, title string) {
	c.enqueue(protocol.MsgTitle, protocol.TitlePayload{
		ConversationID: conversationID,
		Title:          title,
	})
}

// PublishAudioLoading pushes an audio-pipeline loading transition.
func (c *Client) PublishAudioLoading(messageID string, loading bool) {
	c.enqueue(protocol.MsgAudio, protocol.AudioPayload{
		MessageID: messageID,
		Loading:   loading,
	})
}

// Wait blocks until the connection drops or the context is cancelled.
func (c *Client) Wait() error {
	<-c.done
	return nil
}

// Close shuts down the client and unblocks Wait.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		if c.cancel != nil {
			c.cancel()
		}
		if c.conn != nil {
			c.conn.Close()
		}
	})
	c.doneOnce.Do(func() { close(c.done) })
}

func (c *Client) send(msgType protocol.MessageType, payload interface{}) error {
	data, err := protocol.Marshal(msgType, payload)
	if err != nil {
		return err
	}
	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *Client) enqueue(msgType protocol.MessageType, payload interface{}) {
	data, err := protocol.Marshal(msgType, payload)
	if err != nil {
		c.logger.With(map[string]interface{}{"error": err, "type": string(msgType)}).Warn("failed to marshal message, dropping")
		return
	}
	select {
	case c.sendCh <- data:
	default:
		// Buffer full — drop oldest and push new.
		select {
		case <-c.sendCh:
		default:
		}
		select {
		case c.sendCh <- data:
		default:
		}
	}
}

func (c *Client) readLoop() {
	defer func() {
		c.doneOnce.Do(func() { close(c.done) })
		c.cancel()
		c.conn.Close()
	}()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.With(map[string]interface{}{"error": err}).Warn("UI feed connection lost")
			}
			return
		}

		msgType, payload, err := protocol.Unmarshal(data)
		if err != nil {
			c.logger.With(map[string]interface{}{"error": err}).Warn("invalid message from UI feed")
			continue
		}

		switch msgType {
		case protocol.MsgSendMessage:
			if c.OnSendMessage != nil {
				p, err := protocol.UnmarshalPayload[protocol.SendMessagePayload](payload)
				if err != nil {
					c.logger.With(map[string]interface{}{"error": err}).Warn("invalid send_message payload")
					continue
				}
				c.OnSendMessage(p.Text)
			}

		case protocol.MsgNewConversation:
			if c.OnNewConversation != nil {
				c.OnNewConversation()
			}

		case protocol.MsgSelectConversation:
			if c.OnSelectConversation != nil {
				p, err := protocol.UnmarshalPayload[protocol.SelectConversationPayload](payload)
				if err != nil {
					continue
				}
				c.OnSelectConversation(p.ConversationID)
			}

		case protocol.MsgDeleteConversation:
			if c.OnDeleteConversation != nil {
				p, err := protocol.UnmarshalPayload[protocol.DeleteConversationPayload](payload)
				if err != nil {
					continue
				}
				c.OnDeleteConversation(p.ConversationID)
			}

		case protocol.MsgPlayMessage:
			if c.OnPlayMessage != nil {
				p, err := protocol.UnmarshalPayload[protocol.PlayMessagePayload](payload)
				if err != nil {
					continue
				}
				c.OnPlayMessage(p.ConversationID, p.MessageID)
			}

		case protocol.MsgSetRate:
			if c.OnSetRate != nil {
				p, err := protocol.UnmarshalPayload[protocol.SetRatePayload](payload)
				if err != nil {
					continue
				}
				c.OnSetRate(p.Rate)
			}

		case protocol.MsgAudioInput:
			if c.OnAudioInput != nil {
				p, err := protocol.UnmarshalPayload[protocol.AudioInputPayload](payload)
				if err != nil {
					c.logger.With(map[string]interface{}{"error": err}).Warn("invalid audio_input payload")
					continue
				}
				c.OnAudioInput(core.AudioChunk{
					Data:       p.Data,
					SampleRate: p.SampleRate,
					Channels:   p.Channels,
					Format:     parseFormat(p.Format),
				})
			}

		case protocol.MsgShutdown:
			p, _ := protocol.UnmarshalPayload[protocol.ShutdownPayload](payload)
			reason := p.Reason
			if reason == "" {
				reason = "shutdown requested by UI"
			}
			c.logger.With(map[string]interface{}{"reason": reason}).Info("shutdown requested")
			if c.OnShutdown != nil {
				c.OnShutdown(reason)
			}
			return

		default:
			c.logger.With(map[string]interface{}{"type": string(msgType)}).Warn("unknown message type from UI feed")
		}
	}
}

func (c *Client) writeLoop() {
	for {
		select {
		case data := <-c.sendCh:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.logger.With(map[string]interface{}{"error": err}).Warn("write to UI feed failed")
				return
			}
		case <-c.ctx.Done():
			return
		}
	}
}

func (c *Client) heartbeatLoop() {
	ticker := time.NewTicker(c.config.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			hb := protocol.HeartbeatPayload{
				ClientID:  c.config.ClientID,
				Timestamp: time.Now().UTC(),
			}
			if c.ConversationCount != nil {
				hb.Conversations = c.ConversationCount()
			}
			c.enqueue(protocol.MsgHeartbeat, hb)
		case <-c.ctx.Done():
			return
		}
	}
}

func parseFormat(name string) core.AudioEncodingFormat {
	switch name {
	case "ulaw":
		return core.ULAW
	case "alaw":
		return core.ALAW
	default:
		return core.PCM
	}
}
