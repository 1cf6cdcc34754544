package jobs

import (
	"context"
	"sync"
	"time"

	"imagebatch/internal/models"
	"imagebatch/internal/progress"
)

// job is the registry-owned mutable state of one batch
type job struct {
	id        string
	opts      models.ProcessingOptions
	createdAt time.Time
	stream    *progress.Stream
	done      chan struct{}
	doneOnce  sync.Once

	mu         sync.Mutex
	status     models.JobStatus
	startedAt  *time.Time
	finishedAt *time.Time
	cancel     context.CancelFunc
	processed  int
	skipped    int
}

func newJob(id string, opts models.ProcessingOptions) *job {
	return &job{
		id:        id,
		opts:      opts,
		createdAt: time.Now(),
		stream:    progress.NewStream(),
		done:      make(chan struct{}),
		status:    models.JobStatusPending,
	}
}

// applyLocked appends s to the history and derives the status. The first terminal
// snapshot fixes the status; anything reported afterwards is dropped. j.mu must be held.
func (j *job) applyLocked(s models.Snapshot) {
	if j.status.IsTerminal() {
		return
	}
	if s.Timestamp.IsZero() {
		s.Timestamp = time.Now()
	}
	j.stream.Publish(s)

	switch {
	case s.IsCanceled:
		j.status = models.JobStatusCanceled
	case s.IsError:
		j.status = models.JobStatusFailed
	case s.IsComplete:
		j.status = models.JobStatusCompleted
	}
}

func (j *job) terminal() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.status.IsTerminal()
}

func (j *job) view() JobView {
	j.mu.Lock()
	defer j.mu.Unlock()

	v := JobView{
		ID:         j.id,
		Status:     j.status,
		Options:    j.opts,
		CreatedAt:  j.createdAt,
		StartedAt:  j.startedAt,
		FinishedAt: j.finishedAt,
		Processed:  j.processed,
		Skipped:    j.skipped,
	}
	if last, ok := j.stream.Last(); ok {
		v.LastUpdate = &last
	}
	return v
}

func (j *job) record() models.JobRecord {
	j.mu.Lock()
	defer j.mu.Unlock()

	return models.JobRecord{
		ID:         j.id,
		Status:     j.status,
		Options:    j.opts,
		CreatedAt:  j.createdAt,
		StartedAt:  j.startedAt,
		FinishedAt: j.finishedAt,
		History:    j.stream.Items(),
		Processed:  j.processed,
		Skipped:    j.skipped,
	}
}

// JobView is an immutable copy of a job handed to callers
type JobView struct {
	ID         string
	Status     models.JobStatus
	Options    models.ProcessingOptions
	CreatedAt  time.Time
	StartedAt  *time.Time
	FinishedAt *time.Time
	LastUpdate *models.Snapshot
	Processed  int
	Skipped    int
}

// Response converts the view to its API shape
func (v JobView) Response() models.JobStatusResponse {
	return models.JobStatusResponse{
		ID:         v.ID,
		Status:     v.Status,
		Options:    v.Options,
		CreatedAt:  v.CreatedAt,
		StartedAt:  v.StartedAt,
		FinishedAt: v.FinishedAt,
		LastUpdate: v.LastUpdate,
	}
}

func viewFromRecord(rec models.JobRecord) JobView {
	return JobView{
		ID:         rec.ID,
		Status:     rec.Status,
		Options:    rec.Options,
		CreatedAt:  rec.CreatedAt,
		StartedAt:  rec.StartedAt,
		FinishedAt: rec.FinishedAt,
		LastUpdate: rec.LastUpdate(),
		Processed:  rec.Processed,
		Skipped:    rec.Skipped,
	}
}
