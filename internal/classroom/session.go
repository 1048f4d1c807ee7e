package classroom

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/aura-classroom/backend/internal/models"
)

// Session is the single, process-wide classroom state. All exported methods are safe for
// concurrent use; each one runs to completion (read, mutation, fanout) before the next starts.
type Session struct {
	mu          sync.Mutex
	fanout      Fanout
	journal     Journal
	logger      *zap.Logger
	strictRoles bool
	now         func() time.Time

	currentPoll  *models.Poll
	participants []*models.Participant
	history      []models.PollHistoryEntry
	chat         []models.ChatMessage
	chatEnabled  bool
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the session logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithJournal sets the sink for ended polls, chat messages and attendance changes.
func WithJournal(j Journal) Option {
	return func(s *Session) {
		if j != nil {
			s.journal = j
		}
	}
}

// WithStrictRoles restricts poll creation, poll ending and kicking to teacher connections.
// Off by default: any connection may drive the poll, as the classroom clients expect.
func WithStrictRoles(strict bool) Option {
	return func(s *Session) { s.strictRoles = strict }
}

// NewSession creates an empty session: no poll, empty roster, chat enabled.
func NewSession(fanout Fanout, opts ...Option) *Session {
	s := &Session{
		fanout:      fanout,
		journal:     nopJournal{},
		logger:      zap.NewNop(),
		now:         time.Now,
		chatEnabled: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Connect attaches a new connection and sends it the initial sync (chat log, chat permission,
// roster). Attaching and syncing happen under the session lock so no broadcast can overtake the sync.
func (s *Session) Connect(p Peer) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.fanout.Attach(p)
	s.fanout.SendTo(p.ID(), EventExistingMessages, s.chatLocked())
	s.fanout.SendTo(p.ID(), EventChatPermission, s.chatEnabled)
	s.fanout.SendTo(p.ID(), EventParticipantsUpdated, rosterNames(s.participants))
	s.logger.Debug("connection attached", zap.String("conn_id", p.ID()))
}

// Disconnect detaches a closed connection and removes the participant bound to it, if any.
func (s *Session) Disconnect(connID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.fanout.Detach(connID)
	s.removeByConnectionLocked(connID)
	s.logger.Debug("connection detached", zap.String("conn_id", connID))
}

// Snapshot is a read-only view of the session for the HTTP API.
type Snapshot struct {
	Participants []string     `json:"participants"`
	CurrentPoll  *models.Poll `json:"currentPoll"`
	ChatEnabled  bool         `json:"chatEnabled"`
	PollsEnded   int          `json:"pollsEnded"`
	ChatMessages int          `json:"chatMessages"`
	Connections  int          `json:"connections"`
}

// Snapshot returns a copy of the current session state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		Participants: rosterNames(s.participants),
		ChatEnabled:  s.chatEnabled,
		PollsEnded:   len(s.history),
		ChatMessages: len(s.chat),
		Connections:  s.fanout.PeerCount(),
	}
	if s.currentPoll != nil {
		p := s.currentPoll.Clone()
		snap.CurrentPoll = &p
	}
	return snap
}

// Participant looks a roster entry up by display name.
func (s *Session) Participant(name string) (models.Participant, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p := s.findByName(name); p != nil {
		return *p, true
	}
	return models.Participant{}, false
}

// Roster returns the display names of all participants in join order.
func (s *Session) Roster() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return rosterNames(s.participants)
}

// CurrentPoll returns a copy of the active poll.
func (s *Session) CurrentPoll() (models.Poll, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.currentPoll == nil {
		return models.Poll{}, false
	}
	return s.currentPoll.Clone(), true
}

// ChatEnabled reports whether students may currently post chat messages.
func (s *Session) ChatEnabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chatEnabled
}

// Messages returns a copy of the chat log.
func (s *Session) Messages() []models.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chatLocked()
}

func (s *Session) chatLocked() []models.ChatMessage {
	return append(make([]models.ChatMessage, 0, len(s.chat)), s.chat...)
}

func (s *Session) broadcastRosterLocked() {
	s.fanout.Broadcast(EventParticipantsUpdated, rosterNames(s.participants))
}

func (s *Session) nowMillis() int64 {
	return s.now().UnixMilli()
}
