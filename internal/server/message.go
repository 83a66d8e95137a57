package server

import (
	"encoding/json"
	"time"

	"github.com/lox/rockpapercrane/internal/session"
)

// MessageType represents a WebSocket message type with type safety
type MessageType string

const (
	// Client to server messages
	MessageTypeAuth      MessageType = "auth"
	MessageTypeChallenge MessageType = "challenge"
	MessageTypeRespond   MessageType = "respond"
	MessageTypeChoose    MessageType = "choose"
	MessageTypeUpgrade   MessageType = "upgrade"
	MessageTypeRematch   MessageType = "rematch"
	MessageTypeList      MessageType = "list"

	// Server to client messages
	MessageTypeAuthResponse MessageType = "auth_response"
	MessageTypeError        MessageType = "error"
	MessageTypeSession      MessageType = "session"
	MessageTypeEvent        MessageType = "event"
	MessageTypeSessionList  MessageType = "session_list"
)

// String returns the string representation of the message type
func (mt MessageType) String() string {
	return string(mt)
}

// Message represents the base WebSocket message structure
type Message struct {
	Type      MessageType     `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
	RequestID string          `json:"requestId,omitempty"`
}

// NewMessage creates a new message with the current timestamp
func NewMessage(messageType MessageType, data any) (*Message, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Message{
		Type:      messageType,
		Data:      dataBytes,
		Timestamp: time.Now(),
	}, nil
}

// Reply creates a message answering the request with requestID.
func Reply(requestID string, messageType MessageType, data any) (*Message, error) {
	msg, err := NewMessage(messageType, data)
	if err != nil {
		return nil, err
	}
	msg.RequestID = requestID
	return msg, nil
}

// Client → Server Messages

type AuthData struct {
	PlayerID  string `json:"playerId"`
	ChannelID string `json:"channelId,omitempty"`
	Bot       bool   `json:"bot,omitempty"`
}

type ChallengeData struct {
	OpponentID string `json:"opponentId"`
}

type RespondData struct {
	SessionID string `json:"sessionId"`
	Accept    bool   `json:"accept"`
}

// ChoiceData carries an item name for both the choose and the upgrade
// messages.
type ChoiceData struct {
	SessionID string `json:"sessionId"`
	Item      string `json:"item"`
}

type RematchData struct {
	SessionID string `json:"sessionId"`
}

// Server → Client Messages

type AuthResponseData struct {
	Success  bool   `json:"success"`
	PlayerID string `json:"playerId,omitempty"`
	Error    string `json:"error,omitempty"`
}

type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// SessionData answers a successful request with the resulting state.
type SessionData struct {
	Session session.Snapshot `json:"session"`
	Text    string           `json:"text"`
}

// EventData is pushed to both participants whenever a session changes.
type EventData struct {
	Kind    session.EventType `json:"kind"`
	Text    string            `json:"text"`
	Session session.Snapshot  `json:"session"`
}

type SessionListData struct {
	Sessions []session.Snapshot `json:"sessions"`
}

// Adapter error codes, in addition to the engine's session.Code values.
const (
	CodeInvalidMessage     = "invalid_message"
	CodeUnknownMessageType = "unknown_message_type"
	CodeNotAuthenticated   = "not_authenticated"
	CodeInvalidAuth        = "invalid_auth"
	CodeUnavailable        = "service_unavailable"
)
