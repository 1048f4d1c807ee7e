package models

import (
	"encoding/json"

	"github.com/google/uuid"
)

// ChatMessage is one entry of the append-only classroom chat log.
// Timestamp is whatever the client declared and is relayed verbatim.
type ChatMessage struct {
	ID         uuid.UUID       `json:"id"`
	Message    string          `json:"message"`
	Sender     string          `json:"sender"`
	Timestamp  json.RawMessage `json:"timestamp,omitempty"`
	SenderType string          `json:"senderType,omitempty"` // "teacher", "student" or unset
}
