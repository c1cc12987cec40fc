package session

import "time"

// State is the single voice-activity state of a live conversation. It only
// moves along the protocol state machine; nothing outside the orchestrator
// sets it directly.
type State string

const (
	StateIdle       State = "idle"
	StateConnecting State = "connecting"
	StateListening  State = "listening"
	StateThinking   State = "thinking"
	StateSpeaking   State = "speaking"
)

// Role identifies who is speaking in a conversation message.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one chat bubble held for UI display. The authoritative history
// lives behind the history store collaborator, not here.
type Message struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// CreateRequest defines the payload for creating a new portal session.
type CreateRequest struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	Voice  string `json:"voice"`
}

// CreateResponse returns created session metadata.
type CreateResponse struct {
	SessionID       string    `json:"session_id"`
	UserID          string    `json:"user_id"`
	Status          Status    `json:"status"`
	Role            string    `json:"role"`
	Voice           string    `json:"voice"`
	StartedAt       time.Time `json:"started_at"`
	LastActivityAt  time.Time `json:"last_activity_at"`
	InactivityTTLMS int64     `json:"inactivity_ttl_ms"`
}
