package classroom

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/aura-classroom/backend/internal/models"
)

type sent struct {
	To      string // empty for broadcasts
	Event   string
	Payload interface{}
}

// recordingFanout remembers every event instead of delivering it.
type recordingFanout struct {
	mu     sync.Mutex
	peers  map[string]Peer
	events []sent
}

func newRecordingFanout() *recordingFanout {
	return &recordingFanout{peers: make(map[string]Peer)}
}

func (f *recordingFanout) Attach(p Peer) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.peers[p.ID()] = p
}

func (f *recordingFanout) Detach(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.peers, id)
}

func (f *recordingFanout) Broadcast(event string, payload interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, sent{Event: event, Payload: payload})
}

func (f *recordingFanout) SendTo(id string, event string, payload interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, sent{To: id, Event: event, Payload: payload})
}

func (f *recordingFanout) PeerCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.peers)
}

func (f *recordingFanout) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = nil
}

func (f *recordingFanout) all() []sent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sent(nil), f.events...)
}

func (f *recordingFanout) names() []string {
	var out []string
	for _, e := range f.all() {
		out = append(out, e.To+">"+e.Event)
	}
	return out
}

// last returns the most recent event with the given name.
func (f *recordingFanout) last(event string) (sent, bool) {
	events := f.all()
	for i := len(events) - 1; i >= 0; i-- {
		if events[i].Event == event {
			return events[i], true
		}
	}
	return sent{}, false
}

type stubPeer string

func (p stubPeer) ID() string { return string(p) }

func (p stubPeer) Deliver(string, json.RawMessage) bool { return true }

type recordingJournal struct {
	mu     sync.Mutex
	joined []string
	left   []string
	polls  []models.PollHistoryEntry
	chats  []models.ChatMessage
}

func (j *recordingJournal) ParticipantJoined(p models.Participant) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.joined = append(j.joined, p.Name)
}

func (j *recordingJournal) ParticipantLeft(p models.Participant, reason string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.left = append(j.left, p.Name+":"+reason)
}

func (j *recordingJournal) PollEnded(e models.PollHistoryEntry) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.polls = append(j.polls, e)
}

func (j *recordingJournal) ChatPosted(m models.ChatMessage) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.chats = append(j.chats, m)
}

var (
	teacher = Actor{ConnID: "t1", Role: RoleTeacher}
	epoch   = time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
)

func student(conn string) Actor { return Actor{ConnID: conn, Role: RoleStudent} }

func newTestSession(opts ...Option) (*Session, *recordingFanout, *recordingJournal) {
	fanout := newRecordingFanout()
	journal := &recordingJournal{}
	s := NewSession(fanout, append([]Option{WithJournal(journal)}, opts...)...)
	s.now = func() time.Time { return epoch }
	return s, fanout, journal
}

func twoPlusTwo() PollInput {
	return PollInput{
		Question: "2+2?",
		Options:  []models.PollOption{{Text: "3"}, {Text: "4"}},
		Duration: 30,
	}
}
