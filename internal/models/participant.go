package models

import (
	"time"

	"github.com/google/uuid"
)

// Participant is a student on the roster. ConnID names the connection the
// participant was last bound to; it may refer to a connection that has closed.
type Participant struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	ConnID    string    `json:"-"`
	HasVoted  bool      `json:"hasVoted"`
	KickedOut bool      `json:"kickedOut"`
	JoinedAt  time.Time `json:"joinedAt"`
}
