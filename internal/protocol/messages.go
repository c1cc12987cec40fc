package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// MessageType identifies websocket payload variants on the portal UI channel.
type MessageType string

const (
	TypeClientControl MessageType = "client_control"
	TypeClientText    MessageType = "client_text"

	TypeSessionState     MessageType = "session_state"
	TypeAssistantMessage MessageType = "assistant_message"
	TypeAudioLevel       MessageType = "audio_level"
	TypeToolCall         MessageType = "tool_call"
	TypeSystemEvent      MessageType = "system_event"
	TypeErrorEvent       MessageType = "error_event"
)

// Client control actions.
const (
	ActionConnect    = "connect"
	ActionDisconnect = "disconnect"
	ActionToggle     = "toggle"
	ActionClear      = "clear"
	ActionVoice      = "change_voice"
)

var ErrUnsupportedType = errors.New("unsupported message type")

type Envelope struct {
	Type MessageType `json:"type"`
}

// ClientControl drives the session lifecycle from the portal UI.
type ClientControl struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Action    string      `json:"action"`
	Voice     string      `json:"voice,omitempty"`
}

// ClientText injects a typed message into the live conversation.
type ClientText struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Text      string      `json:"text"`
}

// SessionState mirrors the orchestrator's observable state for the UI.
type SessionState struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	State     string      `json:"state"`
	Voice     string      `json:"voice"`
	Connected bool        `json:"connected"`
}

type AssistantMessage struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	MessageID string      `json:"message_id"`
	Role      string      `json:"role"`
	Content   string      `json:"content"`
	TSMs      int64       `json:"ts_ms"`
}

type AudioLevel struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Level     float64     `json:"level"`
}

// ToolCall forwards a host-application action to the portal UI, which owns
// the actual side effect (navigation, document generation, messaging).
type ToolCall struct {
	Type      MessageType    `json:"type"`
	SessionID string         `json:"session_id"`
	Name      string         `json:"name"`
	Args      map[string]any `json:"args"`
}

type SystemEvent struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Code      string      `json:"code"`
	Detail    string      `json:"detail,omitempty"`
}

type ErrorEvent struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Code      string      `json:"code"`
	Source    string      `json:"source"`
	Retryable bool        `json:"retryable"`
	Detail    string      `json:"detail"`
}

func ParseClientMessage(raw []byte) (any, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("invalid envelope: %w", err)
	}

	switch env.Type {
	case TypeClientControl:
		var msg ClientControl
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if msg.SessionID == "" || msg.Action == "" {
			return nil, errors.New("invalid client_control")
		}
		return msg, nil
	case TypeClientText:
		var msg ClientText
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if msg.SessionID == "" || msg.Text == "" {
			return nil, errors.New("invalid client_text")
		}
		return msg, nil
	default:
		return nil, ErrUnsupportedType
	}
}
