package classroom

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-classroom/backend/internal/models"
)

// PollInput is what a client sends to start a poll.
type PollInput struct {
	Question       string              `json:"question"`
	Options        []models.PollOption `json:"options"`
	CorrectAnswers []int               `json:"correctAnswers"`
	Duration       int                 `json:"duration"` // seconds
}

// newPoll validates the input and builds a fresh poll starting at now. Vote counts sent by the
// client are discarded; correct answers outside the option range are dropped.
func newPoll(in PollInput, now time.Time) (models.Poll, error) {
	question := strings.TrimSpace(in.Question)
	if question == "" {
		return models.Poll{}, fmt.Errorf("%w: question is required", ErrInvalidPoll)
	}
	if len(in.Options) == 0 {
		return models.Poll{}, fmt.Errorf("%w: at least one option is required", ErrInvalidPoll)
	}
	if in.Duration < 0 {
		return models.Poll{}, fmt.Errorf("%w: duration must not be negative", ErrInvalidPoll)
	}

	options := make([]models.PollOption, len(in.Options))
	for i, o := range in.Options {
		options[i] = models.PollOption{Text: o.Text}
	}

	correct := make([]int, 0, len(in.CorrectAnswers))
	seen := make(map[int]struct{}, len(in.CorrectAnswers))
	for _, idx := range in.CorrectAnswers {
		if idx < 0 || idx >= len(options) {
			continue
		}
		if _, dup := seen[idx]; dup {
			continue
		}
		seen[idx] = struct{}{}
		correct = append(correct, idx)
	}

	start := now.UnixMilli()
	return models.Poll{
		ID:             uuid.New(),
		Question:       question,
		Options:        options,
		CorrectAnswers: correct,
		Duration:       in.Duration,
		StartTime:      start,
		EndTime:        start + int64(in.Duration)*1000,
	}, nil
}

// CreatePoll makes a new poll current. It is permitted in any state: an active poll is replaced
// without being recorded to history. Every participant's vote flag is reset.
func (s *Session) CreatePoll(actor Actor, in PollInput) (models.Poll, error) {
	if s.strictRoles && !actor.IsTeacher() {
		return models.Poll{}, ErrPermissionDenied
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	poll, err := newPoll(in, s.now())
	if err != nil {
		return models.Poll{}, err
	}
	if s.currentPoll != nil {
		s.logger.Info("discarding active poll", zap.String("poll_id", s.currentPoll.ID.String()))
	}
	s.currentPoll = &poll
	for _, p := range s.participants {
		p.HasVoted = false
	}
	s.logger.Info("poll started",
		zap.String("poll_id", poll.ID.String()),
		zap.Int("options", len(poll.Options)),
		zap.Int("duration", poll.Duration),
	)

	s.fanout.Broadcast(EventPollStarted, poll.Clone())
	s.broadcastRosterLocked()
	return poll.Clone(), nil
}

// SubmitVote counts one vote for the participant bound to the acting connection.
// Each participant is counted at most once per poll.
func (s *Session) SubmitVote(actor Actor, optionIndex int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.currentPoll == nil {
		return ErrNoActivePoll
	}
	p := s.findByConn(actor.ConnID)
	if p == nil {
		return ErrUnknownParticipant
	}
	if p.HasVoted {
		return ErrAlreadyVoted
	}
	if optionIndex < 0 || optionIndex >= len(s.currentPoll.Options) {
		return ErrOptionOutOfRange
	}

	s.currentPoll.Options[optionIndex].Votes++
	p.HasVoted = true
	s.logger.Debug("vote counted",
		zap.String("poll_id", s.currentPoll.ID.String()),
		zap.String("participant_id", p.ID.String()),
		zap.Int("option", optionIndex),
	)

	s.fanout.Broadcast(EventPollResults, s.currentPoll.Clone())
	s.broadcastRosterLocked()
	return nil
}

// EndPoll archives the active poll to history, announces its final state and returns to idle.
func (s *Session) EndPoll(actor Actor) (models.PollHistoryEntry, error) {
	if s.strictRoles && !actor.IsTeacher() {
		return models.PollHistoryEntry{}, ErrPermissionDenied
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.currentPoll == nil {
		return models.PollHistoryEntry{}, ErrNoActivePoll
	}
	entry := models.PollHistoryEntry{Poll: s.currentPoll.Clone(), EndedAt: s.nowMillis()}
	s.history = append(s.history, entry)
	s.fanout.Broadcast(EventPollEnded, s.currentPoll.Clone())
	s.currentPoll = nil

	s.journal.PollEnded(entry.Clone())
	s.logger.Info("poll ended", zap.String("poll_id", entry.ID.String()), zap.Int("votes", entry.TotalVotes()))
	return entry.Clone(), nil
}

// History returns every ended poll in the order it was ended.
func (s *Session) History() []models.PollHistoryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneHistory(s.history)
}

// SendHistory delivers the poll history to the acting connection only.
func (s *Session) SendHistory(actor Actor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fanout.SendTo(actor.ConnID, EventPollHistory, cloneHistory(s.history))
}
