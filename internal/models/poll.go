package models

import (
	"time"

	"github.com/google/uuid"
)

// PollOption is one answer choice and its live vote count.
type PollOption struct {
	Text  string `json:"text"`
	Votes int    `json:"votes"`
}

// Poll is the multiple-choice question currently (or formerly) open in the classroom.
// StartTime and EndTime are Unix milliseconds; EndTime is advisory only.
type Poll struct {
	ID             uuid.UUID    `json:"id"`
	Question       string       `json:"question"`
	Options        []PollOption `json:"options"`
	CorrectAnswers []int        `json:"correctAnswers"`
	Duration       int          `json:"duration"` // seconds
	StartTime      int64        `json:"startTime"`
	EndTime        int64        `json:"endTime"`
}

// Clone returns a deep copy so callers can hold it outside the session lock.
func (p Poll) Clone() Poll {
	out := p
	out.Options = append([]PollOption(nil), p.Options...)
	out.CorrectAnswers = append([]int(nil), p.CorrectAnswers...)
	return out
}

// Votes returns the vote count of every option in option order.
func (p Poll) Votes() []int {
	votes := make([]int, len(p.Options))
	for i, o := range p.Options {
		votes[i] = o.Votes
	}
	return votes
}

// TotalVotes sums the votes across all options.
func (p Poll) TotalVotes() int {
	total := 0
	for _, o := range p.Options {
		total += o.Votes
	}
	return total
}

// Expired reports whether now is past the poll's advisory end time.
// Nothing on the server ends a poll because of this.
func (p Poll) Expired(now time.Time) bool {
	return p.EndTime > 0 && now.UnixMilli() > p.EndTime
}

// PollHistoryEntry is the immutable snapshot recorded when a poll is ended.
type PollHistoryEntry struct {
	Poll
	EndedAt int64 `json:"endedAt"` // Unix milliseconds
}

// Clone returns a deep copy of the entry.
func (e PollHistoryEntry) Clone() PollHistoryEntry {
	return PollHistoryEntry{Poll: e.Poll.Clone(), EndedAt: e.EndedAt}
}
