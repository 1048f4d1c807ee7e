package classroom

import (
	"encoding/json"

	"github.com/aura-classroom/backend/internal/models"
)

// Outbound event names.
const (
	EventParticipantsUpdated = "participants_updated"
	EventPollStarted         = "poll_started"
	EventPollResults         = "poll_results"
	EventPollEnded           = "poll_ended"
	EventPollHistory         = "poll_history"
	EventChatMessage         = "chatMessage"
	EventChatPermission      = "chatPermission"
	EventKickedOut           = "kicked_out"
	EventExistingMessages    = "existingMessages"
)

// Peer is one live connection as seen by the fanout.
// Deliver must not block; it returns false when the message was dropped.
type Peer interface {
	ID() string
	Deliver(event string, data json.RawMessage) bool
}

// Fanout delivers session events to connected peers. Broadcast always targets every attached peer.
// Implementations must not block on a slow peer.
type Fanout interface {
	Attach(p Peer)
	Detach(id string)
	Broadcast(event string, payload interface{})
	SendTo(id string, event string, payload interface{})
	PeerCount() int
}

// Journal receives durable side effects of session operations. Calls happen inside the session's
// critical section, so implementations must hand the work off without blocking.
type Journal interface {
	ParticipantJoined(p models.Participant)
	ParticipantLeft(p models.Participant, reason string)
	PollEnded(entry models.PollHistoryEntry)
	ChatPosted(msg models.ChatMessage)
}

// Reasons passed to Journal.ParticipantLeft.
const (
	LeftKicked       = "kicked"
	LeftDisconnected = "disconnected"
)

type nopJournal struct{}

func (nopJournal) ParticipantJoined(models.Participant)       {}
func (nopJournal) ParticipantLeft(models.Participant, string) {}
func (nopJournal) PollEnded(models.PollHistoryEntry)          {}
func (nopJournal) ChatPosted(models.ChatMessage)              {}

// rosterNames is the roster projection sent to clients: display names only, in join order.
func rosterNames(participants []*models.Participant) []string {
	names := make([]string, 0, len(participants))
	for _, p := range participants {
		names = append(names, p.Name)
	}
	return names
}

func cloneHistory(history []models.PollHistoryEntry) []models.PollHistoryEntry {
	out := make([]models.PollHistoryEntry, 0, len(history))
	for _, e := range history {
		out = append(out, e.Clone())
	}
	return out
}
