package reports

import (
	"time"

	"github.com/google/uuid"

	"github.com/aura-classroom/backend/internal/models"
)

// OptionResult is one option of a rendered poll report.
type OptionResult struct {
	Index   int     `json:"index"`
	Text    string  `json:"text"`
	Votes   int     `json:"votes"`
	Percent float64 `json:"percent"`
	Correct bool    `json:"correct"`
}

// PollReport is the document uploaded to S3 for an ended poll.
type PollReport struct {
	PollID       uuid.UUID      `json:"pollId"`
	Question     string         `json:"question"`
	Options      []OptionResult `json:"options"`
	TotalVotes   int            `json:"totalVotes"`
	CorrectVotes int            `json:"correctVotes"`
	HasAnswerKey bool           `json:"hasAnswerKey"`
	StartTime    int64          `json:"startTime"`
	EndedAt      int64          `json:"endedAt"`
	GeneratedAt  time.Time      `json:"generatedAt"`
}

// BuildPollReport summarises an ended poll. Percentages are of all votes cast, truncated
// to one decimal; they are 0 when nobody voted.
func BuildPollReport(e models.PollHistoryEntry, now time.Time) PollReport {
	correct := make(map[int]bool, len(e.CorrectAnswers))
	for _, i := range e.CorrectAnswers {
		correct[i] = true
	}

	total := e.TotalVotes()
	r := PollReport{
		PollID:       e.ID,
		Question:     e.Question,
		Options:      make([]OptionResult, 0, len(e.Options)),
		TotalVotes:   total,
		HasAnswerKey: len(correct) > 0,
		StartTime:    e.StartTime,
		EndedAt:      e.EndedAt,
		GeneratedAt:  now.UTC(),
	}
	for i, o := range e.Options {
		res := OptionResult{Index: i, Text: o.Text, Votes: o.Votes, Correct: correct[i]}
		if total > 0 {
			res.Percent = float64(o.Votes*1000/total) / 10
		}
		if res.Correct {
			r.CorrectVotes += o.Votes
		}
		r.Options = append(r.Options, res)
	}
	return r
}
