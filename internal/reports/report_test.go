package reports

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/aura-classroom/backend/internal/models"
)

func TestBuildPollReport(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.FixedZone("X", 3600))
	e := models.PollHistoryEntry{
		Poll: models.Poll{
			ID:             uuid.New(),
			Question:       "Pick primes",
			Options:        []models.PollOption{{Text: "2", Votes: 1}, {Text: "4", Votes: 1}, {Text: "5", Votes: 1}},
			CorrectAnswers: []int{0, 2},
			StartTime:      1000,
		},
		EndedAt: 5000,
	}

	r := BuildPollReport(e, now)

	assert.Equal(t, e.ID, r.PollID)
	assert.Equal(t, 3, r.TotalVotes)
	assert.Equal(t, 2, r.CorrectVotes)
	assert.True(t, r.HasAnswerKey)
	assert.Equal(t, int64(5000), r.EndedAt)
	assert.Equal(t, time.UTC, r.GeneratedAt.Location())
	if assert.Len(t, r.Options, 3) {
		assert.Equal(t, 33.3, r.Options[0].Percent)
		assert.True(t, r.Options[0].Correct)
		assert.False(t, r.Options[1].Correct)
		assert.True(t, r.Options[2].Correct)
		assert.Equal(t, 2, r.Options[2].Index)
	}
}

func TestBuildPollReportNoVotes(t *testing.T) {
	e := models.PollHistoryEntry{Poll: models.Poll{
		ID:      uuid.New(),
		Options: []models.PollOption{{Text: "yes"}, {Text: "no"}},
	}}

	r := BuildPollReport(e, time.Now())

	assert.Zero(t, r.TotalVotes)
	assert.False(t, r.HasAnswerKey)
	for _, o := range r.Options {
		assert.Zero(t, o.Percent)
	}
}
