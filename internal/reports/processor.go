package reports

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-classroom/backend/internal/archive"
	"github.com/aura-classroom/backend/internal/models"
	"github.com/aura-classroom/backend/pkg/queue"
	"github.com/aura-classroom/backend/pkg/storage"
)

// PollSource loads archived polls and records report locations. *archive.Repository implements it.
type PollSource interface {
	GetPoll(ctx context.Context, id uuid.UUID) (*models.ArchivedPoll, error)
	SetReportURL(ctx context.Context, id uuid.UUID, url string) error
}

// Uploader stores rendered reports. *storage.S3 implements it.
type Uploader interface {
	Upload(ctx context.Context, bucket, key, contentType string, body io.Reader, contentLength int64) (string, error)
	ReportsBucket() string
}

// JobQueue is the job source. *queue.Queue implements it.
type JobQueue interface {
	Dequeue(ctx context.Context) (*queue.Job, error)
	Retry(ctx context.Context, job *queue.Job) error
}

// Processor processes poll report jobs: load the archived poll, render the report, upload it to S3,
// store the URL.
type Processor struct {
	polls   PollSource
	store   Uploader
	queue   JobQueue
	logger  *zap.Logger
	backoff time.Duration
	now     func() time.Time
}

// NewProcessor creates a poll report processor.
func NewProcessor(polls PollSource, store Uploader, q JobQueue, logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{
		polls:   polls,
		store:   store,
		queue:   q,
		logger:  logger,
		backoff: queue.RetryBackoff,
		now:     time.Now,
	}
}

// Process executes one report job.
func (p *Processor) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypePollReport {
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
	var payload queue.PollReportPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	poll, err := p.polls.GetPoll(ctx, payload.PollID)
	if err != nil {
		return fmt.Errorf("load poll %s: %w", payload.PollID, err)
	}
	if poll.ReportURL != nil {
		p.logger.Info("poll report already generated", zap.String("poll_id", payload.PollID.String()))
		return nil
	}

	body, err := json.MarshalIndent(BuildPollReport(poll.PollHistoryEntry, p.now()), "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	key := storage.ReportKey(payload.PollID.String())
	url, err := p.store.Upload(ctx, p.store.ReportsBucket(), key, storage.ContentTypeJSON, bytes.NewReader(body), int64(len(body)))
	if err != nil {
		return fmt.Errorf("s3 upload: %w", err)
	}

	if err := p.polls.SetReportURL(ctx, payload.PollID, url); err != nil {
		return fmt.Errorf("update archive: %w", err)
	}

	p.logger.Info("poll report uploaded", zap.String("poll_id", payload.PollID.String()), zap.String("s3_key", key))
	return nil
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *Processor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("report worker stopping")
			return
		default:
		}

		job, err := p.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			p.logger.Warn("dequeue error", zap.Error(err))
			p.sleep(ctx)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Error(err))
			if errors.Is(err, archive.ErrNotFound) {
				// Missing polls go straight to the DLQ.
				job.Attempt = queue.MaxRetries
			}
			if reErr := p.queue.Retry(ctx, job); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			p.sleep(ctx)
		}
	}
}

func (p *Processor) sleep(ctx context.Context) {
	t := time.NewTimer(p.backoff)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
