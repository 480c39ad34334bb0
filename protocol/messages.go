package protocol

import (
	"encoding/json"
	"time"

	"lingokit/session"
)

// MessageType enumerates all feed message types.
type MessageType string

const (
	// Core -> UI
	MsgRegister     MessageType = "register"
	MsgHeartbeat    MessageType = "heartbeat"
	MsgStatus       MessageType = "status"
	MsgConversation MessageType = "conversation"
	MsgDelta        MessageType = "delta"
	MsgTitle        MessageType = "title"
	MsgAudio        MessageType = "audio"

	// UI -> Core
	MsgSendMessage        MessageType = "send_message"
	MsgNewConversation    MessageType = "new_conversation"
	MsgSelectConversation MessageType = "select_conversation"
	MsgDeleteConversation MessageType = "delete_conversation"
	MsgPlayMessage        MessageType = "play_message"
	MsgSetRate            MessageType = "set_rate"
	MsgAudioInput         MessageType = "audio_input"
	MsgShutdown           MessageType = "shutdown"
)

// Envelope is the outer JSON wrapper for all WebSocket messages.
type Envelope struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// --- Core -> UI payloads ---

// RegisterPayload is sent once by the core immediately after connecting.
type RegisterPayload struct {
	ClientID  string    `json:"client_id"`
	Version   string    `json:"version,omitempty"`
	Language  string    `json:"language"`
	Timestamp time.Time `json:"timestamp"`
}

// HeartbeatPayload is sent periodically to keep the connection alive.
type HeartbeatPayload struct {
	ClientID      string    `json:"client_id"`
	Timestamp     time.Time `json:"timestamp"`
	Conversations int       `json:"conversations"`
}

// StatusPayload mirrors the error-status flags the UI renders.
type StatusPayload struct {
	Offline      bool `json:"offline"`
	UpstreamDown bool `json:"upstream_down"`
}

// ConversationPayload carries a full conversation snapshot.
type ConversationPayload struct {
	Conversation session.ConversationSnapshot `json:"conversation"`
}

// DeltaPayload carries one streamed content update for an in-flight message.
// Content is the accumulated text so far, not just the new fragment, so a UI
// that misses a frame still renders correctly.
type DeltaPayload struct {
	ConversationID string `json:"conversation_id"`
	MessageID      string `json:"message_id"`
	Content        string `json:"content"`
}

// TitlePayload announces a newly generated conversation title.
type TitlePayload struct {
	ConversationID string `json:"conversation_id"`
	Title          string `json:"title"`
}

// AudioPayload reports audio-pipeline loading transitions for a message.
type AudioPayload struct {
	MessageID string `json:"message_id"`
	Loading   bool   `json:"loading"`
}

// --- UI -> Core payloads ---

// SendMessagePayload submits user input to the active conversation.
type SendMessagePayload struct {
	Text string `json:"text"`
}

// SelectConversationPayload switches the active conversation.
type SelectConversationPayload struct {
	ConversationID string `json:"conversation_id"`
}

// DeleteConversationPayload removes a conversation and its record.
type DeleteConversationPayload struct {
	ConversationID string `json:"conversation_id"`
}

// PlayMessagePayload requests audio playback for a message.
type PlayMessagePayload struct {
	ConversationID string `json:"conversation_id"`
	MessageID      string `json:"message_id"`
}

// SetRatePayload adjusts the playback rate ("normal" or "slow").
type SetRatePayload struct {
	Rate string `json:"rate"`
}

// AudioInputPayload carries recorded audio for transcription. Data is
// base64-encoded on the wire by the JSON codec.
type AudioInputPayload struct {
	Data       []byte `json:"data"`
	SampleRate int    `json:"sample_rate"`
	Channels   int    `json:"channels"`
	Format     string `json:"format"` // "pcm", "ulaw", "alaw"
}

// ShutdownPayload requests the core to shut down gracefully.
type ShutdownPayload struct {
	Reason string `json:"reason,omitempty"`
}
