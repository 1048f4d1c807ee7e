package classroom

import (
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-classroom/backend/internal/models"
)

// JoinOrRejoin puts the acting connection on the roster under name. An unknown name creates a
// participant with a fresh identity; a known name is rebound to this connection and keeps its
// identity and vote state. If the connection was bound to a participant under another name,
// that participant leaves the roster.
func (s *Session) JoinOrRejoin(actor Actor, name string) (uuid.UUID, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return uuid.Nil, ErrInvalidName
	}
	if actor.IsTeacher() {
		return uuid.Nil, ErrPermissionDenied
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if prev := s.findByConn(actor.ConnID); prev != nil && prev.Name != name {
		s.removeAt(s.indexOf(prev))
		s.journal.ParticipantLeft(*prev, LeftDisconnected)
	}

	p := s.findByName(name)
	if p == nil {
		p = &models.Participant{
			ID:       uuid.New(),
			Name:     name,
			ConnID:   actor.ConnID,
			JoinedAt: s.now(),
		}
		s.participants = append(s.participants, p)
		s.journal.ParticipantJoined(*p)
		s.logger.Info("participant joined", zap.String("name", name), zap.String("participant_id", p.ID.String()))
	} else {
		p.ConnID = actor.ConnID
		p.KickedOut = false
		s.logger.Info("participant rejoined", zap.String("name", name), zap.String("participant_id", p.ID.String()))
	}

	if s.currentPoll != nil {
		s.fanout.SendTo(actor.ConnID, EventPollStarted, s.currentPoll.Clone())
	}
	s.broadcastRosterLocked()
	return p.ID, nil
}

// Kick removes the named participant from the roster and tells its connection it was kicked out.
// A later join under the same name creates a new identity.
func (s *Session) Kick(actor Actor, name string) error {
	if s.strictRoles && !actor.IsTeacher() {
		return ErrPermissionDenied
	}
	name = strings.TrimSpace(name)

	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.findByName(name)
	if p == nil {
		return ErrUnknownParticipant
	}
	if p.ConnID != "" {
		s.fanout.SendTo(p.ConnID, EventKickedOut, nil)
	}
	p.KickedOut = true
	s.removeAt(s.indexOf(p))
	s.journal.ParticipantLeft(*p, LeftKicked)
	s.logger.Info("participant kicked", zap.String("name", name), zap.String("participant_id", p.ID.String()))

	s.broadcastRosterLocked()
	return nil
}

// RemoveByConnection drops the participant bound to connID. It reports false, and broadcasts
// nothing, when no participant is bound to that connection.
func (s *Session) RemoveByConnection(connID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removeByConnectionLocked(connID)
}

func (s *Session) removeByConnectionLocked(connID string) bool {
	p := s.findByConn(connID)
	if p == nil {
		return false
	}
	s.removeAt(s.indexOf(p))
	s.journal.ParticipantLeft(*p, LeftDisconnected)
	s.logger.Info("participant disconnected", zap.String("name", p.Name), zap.String("participant_id", p.ID.String()))

	s.broadcastRosterLocked()
	return true
}

func (s *Session) findByName(name string) *models.Participant {
	for _, p := range s.participants {
		if p.Name == name {
			return p
		}
	}
	return nil
}

func (s *Session) findByConn(connID string) *models.Participant {
	if connID == "" {
		return nil
	}
	for _, p := range s.participants {
		if p.ConnID == connID {
			return p
		}
	}
	return nil
}

func (s *Session) indexOf(target *models.Participant) int {
	for i, p := range s.participants {
		if p == target {
			return i
		}
	}
	return -1
}

func (s *Session) removeAt(i int) {
	if i < 0 {
		return
	}
	s.participants = append(s.participants[:i], s.participants[i+1:]...)
}
