package realtime

import (
	"encoding/json"
	"errors"
	"fmt"
)

// EventType identifies control-channel payload variants.
type EventType string

// Outbound event types.
const (
	TypeSessionUpdate          EventType = "session.update"
	TypeResponseCreate         EventType = "response.create"
	TypeResponseCancel         EventType = "response.cancel"
	TypeConversationItemCreate EventType = "conversation.item.create"
)

// Inbound event types.
const (
	TypeResponseAudioDelta      EventType = "response.audio.delta"
	TypeSpeechStarted           EventType = "input_audio_buffer.speech_started"
	TypeTranscriptionCompleted  EventType = "conversation.item.input_audio_transcription.completed"
	TypeResponseDone            EventType = "response.done"
	TypeConversationItemCreated EventType = "conversation.item.created"
)

var ErrUnsupportedType = errors.New("unsupported event type")

type Envelope struct {
	Type EventType `json:"type"`
}

// SessionUpdate configures the remote session: voice identity, instructions,
// transcription model and the full tool schema.
type SessionUpdate struct {
	Type    EventType     `json:"type"`
	Session SessionConfig `json:"session"`
}

type SessionConfig struct {
	Voice                   string              `json:"voice,omitempty"`
	Instructions            string              `json:"instructions,omitempty"`
	InputAudioTranscription *TranscriptionModel `json:"input_audio_transcription,omitempty"`
	Tools                   []json.RawMessage   `json:"tools,omitempty"`
	ToolChoice              string              `json:"tool_choice,omitempty"`
}

type TranscriptionModel struct {
	Model string `json:"model"`
}

// ResponseCreate asks the remote model to produce a response; Instructions
// carry the one-off prompt used for the forced greeting.
type ResponseCreate struct {
	Type     EventType       `json:"type"`
	Response *ResponseParams `json:"response,omitempty"`
}

type ResponseParams struct {
	Instructions string `json:"instructions,omitempty"`
}

type ResponseCancel struct {
	Type EventType `json:"type"`
}

// ConversationItemCreate injects a programmatic item: either user text or a
// function-call output.
type ConversationItemCreate struct {
	Type EventType `json:"type"`
	Item Item      `json:"item"`
}

type Item struct {
	ID      string        `json:"id,omitempty"`
	Type    string        `json:"type,omitempty"`
	Role    string        `json:"role,omitempty"`
	CallID  string        `json:"call_id,omitempty"`
	Output  string        `json:"output,omitempty"`
	Content []ContentPart `json:"content,omitempty"`
}

type ContentPart struct {
	Type       string `json:"type,omitempty"`
	Text       string `json:"text,omitempty"`
	Transcript string `json:"transcript,omitempty"`
}

type ResponseAudioDelta struct {
	Type  EventType `json:"type"`
	Delta string    `json:"delta,omitempty"`
}

type SpeechStarted struct {
	Type EventType `json:"type"`
}

type TranscriptionCompleted struct {
	Type       EventType `json:"type"`
	ItemID     string    `json:"item_id,omitempty"`
	Transcript string    `json:"transcript"`
}

type ResponseDone struct {
	Type     EventType      `json:"type"`
	Response ResponseResult `json:"response"`
}

type ResponseResult struct {
	Output []OutputItem `json:"output"`
}

// OutputItem is one entry of response.done output; function-call entries carry
// Name and raw Arguments JSON.
type OutputItem struct {
	Type      string        `json:"type"`
	Role      string        `json:"role,omitempty"`
	Name      string        `json:"name,omitempty"`
	CallID    string        `json:"call_id,omitempty"`
	Arguments string        `json:"arguments,omitempty"`
	Content   []ContentPart `json:"content,omitempty"`
}

type ConversationItemCreated struct {
	Type EventType `json:"type"`
	Item Item      `json:"item"`
}

// ParseServerEvent decodes one inbound control-channel message. Unknown types
// return ErrUnsupportedType so the caller can drop them without failing the
// session; malformed JSON is an error the caller logs and drops.
func ParseServerEvent(raw []byte) (any, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("invalid envelope: %w", err)
	}

	switch env.Type {
	case TypeResponseAudioDelta:
		var evt ResponseAudioDelta
		if err := json.Unmarshal(raw, &evt); err != nil {
			return nil, err
		}
		return evt, nil
	case TypeSpeechStarted:
		var evt SpeechStarted
		if err := json.Unmarshal(raw, &evt); err != nil {
			return nil, err
		}
		return evt, nil
	case TypeTranscriptionCompleted:
		var evt TranscriptionCompleted
		if err := json.Unmarshal(raw, &evt); err != nil {
			return nil, err
		}
		return evt, nil
	case TypeResponseDone:
		var evt ResponseDone
		if err := json.Unmarshal(raw, &evt); err != nil {
			return nil, err
		}
		return evt, nil
	case TypeConversationItemCreated:
		var evt ConversationItemCreated
		if err := json.Unmarshal(raw, &evt); err != nil {
			return nil, err
		}
		return evt, nil
	default:
		return nil, ErrUnsupportedType
	}
}

// NewUserText builds the conversation.item.create event for programmatic text
// injection.
func NewUserText(text string) ConversationItemCreate {
	return ConversationItemCreate{
		Type: TypeConversationItemCreate,
		Item: Item{
			Type: "message",
			Role: "user",
			Content: []ContentPart{
				{Type: "input_text", Text: text},
			},
		},
	}
}

// NewToolOutput reports a completed tool call back to the remote model.
func NewToolOutput(callID, output string) ConversationItemCreate {
	return ConversationItemCreate{
		Type: TypeConversationItemCreate,
		Item: Item{
			Type:   "function_call_output",
			CallID: callID,
			Output: output,
		},
	}
}

// TextOf extracts the first text or transcript content of an item.
func TextOf(item Item) string {
	for _, part := range item.Content {
		if part.Text != "" {
			return part.Text
		}
		if part.Transcript != "" {
			return part.Transcript
		}
	}
	return ""
}
