package reports

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aura-classroom/backend/internal/archive"
	"github.com/aura-classroom/backend/internal/models"
	"github.com/aura-classroom/backend/pkg/queue"
)

type fakePolls struct {
	mu    sync.Mutex
	polls map[uuid.UUID]*models.ArchivedPoll
}

func (f *fakePolls) GetPoll(_ context.Context, id uuid.UUID) (*models.ArchivedPoll, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.polls[id]
	if !ok {
		return nil, archive.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakePolls) SetReportURL(_ context.Context, id uuid.UUID, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.polls[id]
	if !ok {
		return archive.ErrNotFound
	}
	p.ReportURL = &url
	return nil
}

func (f *fakePolls) reportURL(id uuid.UUID) *string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.polls[id].ReportURL
}

type fakeUploader struct {
	mu      sync.Mutex
	objects map[string][]byte
	err     error
}

func (f *fakeUploader) Upload(_ context.Context, bucket, key, _ string, body io.Reader, _ int64) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.objects == nil {
		f.objects = make(map[string][]byte)
	}
	f.objects[key] = data
	return "https://" + bucket + ".example/" + key, nil
}

func (f *fakeUploader) ReportsBucket() string { return "reports" }

type fakeQueue struct {
	jobs    chan *queue.Job
	mu      sync.Mutex
	retried []*queue.Job
}

func (f *fakeQueue) Dequeue(ctx context.Context) (*queue.Job, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case j := <-f.jobs:
		return j, nil
	}
}

func (f *fakeQueue) Retry(_ context.Context, job *queue.Job) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	job.Attempt++
	f.retried = append(f.retried, job)
	return nil
}

func (f *fakeQueue) retries() []*queue.Job {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*queue.Job(nil), f.retried...)
}

func reportJob(t *testing.T, id uuid.UUID) *queue.Job {
	t.Helper()
	job, err := queue.NewJob(queue.JobTypePollReport, queue.PollReportPayload{PollID: id})
	require.NoError(t, err)
	return job
}

func archivedPoll(id uuid.UUID) *models.ArchivedPoll {
	return &models.ArchivedPoll{PollHistoryEntry: models.PollHistoryEntry{Poll: models.Poll{
		ID:       id,
		Question: "2+2?",
		Options:  []models.PollOption{{Text: "3"}, {Text: "4", Votes: 1}},
	}}}
}

func TestProcessUploadsReport(t *testing.T) {
	id := uuid.New()
	polls := &fakePolls{polls: map[uuid.UUID]*models.ArchivedPoll{id: archivedPoll(id)}}
	up := &fakeUploader{}
	p := NewProcessor(polls, up, &fakeQueue{}, nil)

	require.NoError(t, p.Process(context.Background(), reportJob(t, id)))

	key := "reports/polls/" + id.String() + ".json"
	require.Contains(t, up.objects, key)
	var report PollReport
	require.NoError(t, json.Unmarshal(up.objects[key], &report))
	assert.Equal(t, 1, report.TotalVotes)
	assert.Equal(t, "2+2?", report.Question)

	url := polls.reportURL(id)
	require.NotNil(t, url)
	assert.Equal(t, "https://reports.example/"+key, *url)
}

func TestProcessSkipsExistingReport(t *testing.T) {
	id := uuid.New()
	done := "https://already/there"
	ap := archivedPoll(id)
	ap.ReportURL = &done
	up := &fakeUploader{}
	p := NewProcessor(&fakePolls{polls: map[uuid.UUID]*models.ArchivedPoll{id: ap}}, up, &fakeQueue{}, nil)

	require.NoError(t, p.Process(context.Background(), reportJob(t, id)))
	assert.Empty(t, up.objects)
}

func TestProcessRejectsUnknownJobType(t *testing.T) {
	p := NewProcessor(&fakePolls{}, &fakeUploader{}, &fakeQueue{}, nil)
	err := p.Process(context.Background(), &queue.Job{ID: "x", Type: "email"})
	assert.Error(t, err)
}

func TestRunRetriesFailedUpload(t *testing.T) {
	id := uuid.New()
	q := &fakeQueue{jobs: make(chan *queue.Job, 1)}
	p := NewProcessor(
		&fakePolls{polls: map[uuid.UUID]*models.ArchivedPoll{id: archivedPoll(id)}},
		&fakeUploader{err: errors.New("s3 down")},
		q, nil,
	)
	p.backoff = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q.jobs <- reportJob(t, id)
	go p.Run(ctx)

	require.Eventually(t, func() bool { return len(q.retries()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, q.retries()[0].Attempt)
}

func TestRunSendsMissingPollToDLQ(t *testing.T) {
	q := &fakeQueue{jobs: make(chan *queue.Job, 1)}
	p := NewProcessor(&fakePolls{polls: map[uuid.UUID]*models.ArchivedPoll{}}, &fakeUploader{}, q, nil)
	p.backoff = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q.jobs <- reportJob(t, uuid.New())
	go p.Run(ctx)

	require.Eventually(t, func() bool { return len(q.retries()) == 1 }, time.Second, 5*time.Millisecond)
	assert.GreaterOrEqual(t, q.retries()[0].Attempt, queue.MaxRetries)
}
