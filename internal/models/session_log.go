package models

import (
	"time"

	"github.com/google/uuid"
)

// AttendanceLog tracks one roster stay of a participant: from join (or rejoin) to kick or disconnect.
type AttendanceLog struct {
	ID            int64      `json:"id"`
	ParticipantID uuid.UUID  `json:"participant_id"`
	Name          string     `json:"name"`
	JoinedAt      time.Time  `json:"joined_at"`
	LeftAt        *time.Time `json:"left_at,omitempty"`
	LeftReason    string     `json:"left_reason,omitempty"` // "kicked" or "disconnected"
	StaySeconds   int64      `json:"stay_seconds"`
}

// ArchivedPoll is a poll history entry as stored in the archive, with its report location once uploaded.
type ArchivedPoll struct {
	PollHistoryEntry
	ArchivedAt time.Time `json:"archived_at"`
	ReportURL  *string   `json:"report_url,omitempty"`
}
