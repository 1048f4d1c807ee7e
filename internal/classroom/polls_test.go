package classroom

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aura-classroom/backend/internal/models"
)

func TestTwoPlusTwoScenario(t *testing.T) {
	s, fanout, journal := newTestSession()
	_, err := s.JoinOrRejoin(student("a"), "A")
	require.NoError(t, err)

	poll, err := s.CreatePoll(teacher, twoPlusTwo())
	require.NoError(t, err)
	assert.Equal(t, epoch.UnixMilli(), poll.StartTime)
	assert.Equal(t, epoch.UnixMilli()+30_000, poll.EndTime)

	require.NoError(t, s.SubmitVote(student("a"), 1))
	results, ok := fanout.last(EventPollResults)
	require.True(t, ok)
	assert.Equal(t, []int{0, 1}, results.Payload.(models.Poll).Votes())

	fanout.reset()
	assert.ErrorIs(t, s.SubmitVote(student("a"), 1), ErrAlreadyVoted)
	assert.Empty(t, fanout.all())
	current, _ := s.CurrentPoll()
	assert.Equal(t, []int{0, 1}, current.Votes())

	entry, err := s.EndPoll(teacher)
	require.NoError(t, err)
	assert.NotZero(t, entry.EndedAt)

	history := s.History()
	require.Len(t, history, 1)
	assert.Equal(t, []int{0, 1}, history[0].Votes())
	assert.Equal(t, epoch.UnixMilli(), history[0].EndedAt)

	ended, ok := fanout.last(EventPollEnded)
	require.True(t, ok)
	assert.Equal(t, poll.ID, ended.Payload.(models.Poll).ID)
	_, active := s.CurrentPoll()
	assert.False(t, active)
	require.Len(t, journal.polls, 1)
	assert.Equal(t, poll.ID, journal.polls[0].ID)
}

func TestCreatePollValidation(t *testing.T) {
	s, fanout, _ := newTestSession()

	cases := map[string]PollInput{
		"blank question":   {Question: "  ", Options: []models.PollOption{{Text: "a"}}},
		"no options":       {Question: "Q?"},
		"negative seconds": {Question: "Q?", Options: []models.PollOption{{Text: "a"}}, Duration: -1},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := s.CreatePoll(teacher, in)
			assert.ErrorIs(t, err, ErrInvalidPoll)
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}
	_, active := s.CurrentPoll()
	assert.False(t, active)
	assert.Empty(t, fanout.all())
}

func TestCreatePollSanitisesInput(t *testing.T) {
	s, _, _ := newTestSession()

	poll, err := s.CreatePoll(teacher, PollInput{
		Question:       "Pick",
		Options:        []models.PollOption{{Text: "x", Votes: 40}, {Text: "y", Votes: 2}},
		CorrectAnswers: []int{1, 1, 7, -1},
	})
	require.NoError(t, err)

	assert.Equal(t, []int{0, 0}, poll.Votes())
	assert.Equal(t, []int{1}, poll.CorrectAnswers)
	assert.Equal(t, poll.StartTime, poll.EndTime)
}

func TestCreatePollResetsVotesInAnyState(t *testing.T) {
	s, fanout, journal := newTestSession()
	_, _ = s.JoinOrRejoin(student("a"), "A")
	_, _ = s.JoinOrRejoin(student("b"), "B")

	first, err := s.CreatePoll(teacher, twoPlusTwo())
	require.NoError(t, err)
	require.NoError(t, s.SubmitVote(student("a"), 0))
	require.NoError(t, s.SubmitVote(student("b"), 1))

	// replacing an active poll discards it
	fanout.reset()
	second, err := s.CreatePoll(teacher, twoPlusTwo())
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, []string{">" + EventPollStarted, ">" + EventParticipantsUpdated}, fanout.names())
	assert.Empty(t, s.History())
	assert.Empty(t, journal.polls)

	for _, name := range []string{"A", "B"} {
		p, _ := s.Participant(name)
		assert.False(t, p.HasVoted, name)
	}
	require.NoError(t, s.SubmitVote(student("a"), 1))

	// and from idle after an end
	_, err = s.EndPoll(teacher)
	require.NoError(t, err)
	_, err = s.CreatePoll(teacher, twoPlusTwo())
	require.NoError(t, err)
	p, _ := s.Participant("A")
	assert.False(t, p.HasVoted)
}

func TestVoteRejections(t *testing.T) {
	s, fanout, _ := newTestSession()
	_, _ = s.JoinOrRejoin(student("a"), "A")

	assert.ErrorIs(t, s.SubmitVote(student("a"), 0), ErrNoActivePoll)

	_, err := s.CreatePoll(teacher, twoPlusTwo())
	require.NoError(t, err)
	fanout.reset()

	assert.ErrorIs(t, s.SubmitVote(student("stranger"), 0), ErrUnknownParticipant)
	assert.ErrorIs(t, s.SubmitVote(student("a"), 2), ErrOptionOutOfRange)
	assert.ErrorIs(t, s.SubmitVote(student("a"), -1), ErrOptionOutOfRange)
	assert.Empty(t, fanout.all())

	// an out-of-range vote does not burn the participant's vote
	p, _ := s.Participant("A")
	assert.False(t, p.HasVoted)
	assert.NoError(t, s.SubmitVote(student("a"), 0))
}

func TestEndPollWhenIdleLeavesHistoryUnchanged(t *testing.T) {
	s, fanout, journal := newTestSession()

	_, err := s.EndPoll(teacher)
	assert.ErrorIs(t, err, ErrNoActivePoll)

	_, err = s.CreatePoll(teacher, twoPlusTwo())
	require.NoError(t, err)
	_, err = s.EndPoll(teacher)
	require.NoError(t, err)
	fanout.reset()

	_, err = s.EndPoll(teacher)
	assert.ErrorIs(t, err, ErrNoActivePoll)
	assert.Len(t, s.History(), 1)
	assert.Len(t, journal.polls, 1)
	assert.Empty(t, fanout.all())
}

func TestPollOperationsStrictRoles(t *testing.T) {
	s, _, _ := newTestSession(WithStrictRoles(true))

	_, err := s.CreatePoll(student("a"), twoPlusTwo())
	assert.ErrorIs(t, err, ErrPermissionDenied)

	_, err = s.CreatePoll(teacher, twoPlusTwo())
	require.NoError(t, err)
	_, err = s.EndPoll(student("a"))
	assert.ErrorIs(t, err, ErrPermissionDenied)
	_, active := s.CurrentPoll()
	assert.True(t, active)
}

func TestHistoryIsACopy(t *testing.T) {
	s, _, _ := newTestSession()
	_, _ = s.JoinOrRejoin(student("a"), "A")
	_, _ = s.CreatePoll(teacher, twoPlusTwo())
	_ = s.SubmitVote(student("a"), 1)
	_, _ = s.EndPoll(teacher)

	h := s.History()
	h[0].Options[1].Votes = 100
	assert.Equal(t, 1, s.History()[0].Options[1].Votes)
}

func TestSendHistoryGoesToCallerOnly(t *testing.T) {
	s, fanout, _ := newTestSession()
	_, _ = s.CreatePoll(teacher, twoPlusTwo())
	_, _ = s.EndPoll(teacher)
	fanout.reset()

	s.SendHistory(student("x"))

	events := fanout.all()
	require.Len(t, events, 1)
	assert.Equal(t, "x", events[0].To)
	assert.Equal(t, EventPollHistory, events[0].Event)
	assert.Len(t, events[0].Payload, 1)
}

func TestSendHistoryWhenEmpty(t *testing.T) {
	s, fanout, _ := newTestSession()
	s.SendHistory(student("x"))
	ev, ok := fanout.last(EventPollHistory)
	require.True(t, ok)
	assert.NotNil(t, ev.Payload)
	assert.Empty(t, ev.Payload)
}

// Polls are never ended by the server when endTime passes; only EndPoll ends them.
// If automatic expiry is ever added, this test must change with it.
func TestPollDoesNotAutoExpire(t *testing.T) {
	s, _, _ := newTestSession()
	_, _ = s.JoinOrRejoin(student("a"), "A")
	poll, err := s.CreatePoll(teacher, twoPlusTwo())
	require.NoError(t, err)

	late := epoch.Add(time.Duration(poll.Duration)*time.Second + time.Hour)
	s.now = func() time.Time { return late }
	require.True(t, poll.Expired(late))

	current, active := s.CurrentPoll()
	require.True(t, active)
	assert.Equal(t, poll.ID, current.ID)
	assert.NoError(t, s.SubmitVote(student("a"), 1))
}
