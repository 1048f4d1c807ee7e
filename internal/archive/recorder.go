package archive

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-classroom/backend/internal/models"
)

const (
	recorderBuffer = 512
	writeTimeout   = 5 * time.Second
	drainTimeout   = 10 * time.Second
)

// Store is the persistence the Recorder writes to. *Repository implements it.
type Store interface {
	SavePoll(ctx context.Context, e models.PollHistoryEntry) error
	SaveChatMessage(ctx context.Context, m models.ChatMessage) error
	LogJoin(ctx context.Context, p models.Participant) error
	LogLeave(ctx context.Context, p models.Participant, reason string) error
}

// ReportEnqueuer schedules a report for an archived poll. *queue.Queue implements it.
type ReportEnqueuer interface {
	EnqueuePollReport(ctx context.Context, pollID uuid.UUID) error
}

type recordKind int

const (
	recordJoin recordKind = iota
	recordLeave
	recordPoll
	recordChat
)

type record struct {
	kind        recordKind
	participant models.Participant
	reason      string
	poll        models.PollHistoryEntry
	chat        models.ChatMessage
}

// Recorder is the classroom journal backed by the archive. Journal calls only enqueue so the
// session lock is never held across database I/O; Run performs the writes.
type Recorder struct {
	store   Store
	reports ReportEnqueuer
	queue   chan record
	logger  *zap.Logger
}

// NewRecorder creates a recorder. reports may be nil when no report queue is configured.
func NewRecorder(store Store, reports ReportEnqueuer, logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{
		store:   store,
		reports: reports,
		queue:   make(chan record, recorderBuffer),
		logger:  logger,
	}
}

// ParticipantJoined records a new roster entry.
func (r *Recorder) ParticipantJoined(p models.Participant) {
	r.push(record{kind: recordJoin, participant: p})
}

// ParticipantLeft records a roster removal.
func (r *Recorder) ParticipantLeft(p models.Participant, reason string) {
	r.push(record{kind: recordLeave, participant: p, reason: reason})
}

// PollEnded records an ended poll and schedules its report.
func (r *Recorder) PollEnded(e models.PollHistoryEntry) {
	r.push(record{kind: recordPoll, poll: e.Clone()})
}

// ChatPosted records a relayed chat message.
func (r *Recorder) ChatPosted(m models.ChatMessage) {
	r.push(record{kind: recordChat, chat: m})
}

func (r *Recorder) push(rec record) {
	select {
	case r.queue <- rec:
	default:
		r.logger.Warn("archive queue full, record dropped", zap.Int("kind", int(rec.kind)))
	}
}

// Run writes queued records until ctx is done, then drains what is left with a short deadline.
func (r *Recorder) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			r.drain()
			return
		case rec := <-r.queue:
			r.write(ctx, rec)
		}
	}
}

func (r *Recorder) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	for {
		select {
		case rec := <-r.queue:
			r.write(ctx, rec)
		default:
			return
		}
	}
}

func (r *Recorder) write(ctx context.Context, rec record) {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	switch rec.kind {
	case recordJoin:
		if err := r.store.LogJoin(ctx, rec.participant); err != nil {
			r.logger.Warn("archive join failed", zap.String("participant", rec.participant.Name), zap.Error(err))
		}
	case recordLeave:
		if err := r.store.LogLeave(ctx, rec.participant, rec.reason); err != nil {
			r.logger.Warn("archive leave failed", zap.String("participant", rec.participant.Name), zap.Error(err))
		}
	case recordChat:
		if err := r.store.SaveChatMessage(ctx, rec.chat); err != nil {
			r.logger.Warn("archive chat failed", zap.String("message_id", rec.chat.ID.String()), zap.Error(err))
		}
	case recordPoll:
		if err := r.store.SavePoll(ctx, rec.poll); err != nil {
			r.logger.Warn("archive poll failed", zap.String("poll_id", rec.poll.ID.String()), zap.Error(err))
			return
		}
		if r.reports == nil {
			return
		}
		if err := r.reports.EnqueuePollReport(ctx, rec.poll.ID); err != nil {
			r.logger.Warn("enqueue poll report failed", zap.String("poll_id", rec.poll.ID.String()), zap.Error(err))
		}
	}
}
