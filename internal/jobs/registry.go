// Package jobs owns every submitted batch: its options, status, progress history and
// cancellation. A job moves Pending → Running → Completed | Failed | Canceled and never
// leaves a terminal status.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"imagebatch/internal/cache"
	"imagebatch/internal/models"
	"imagebatch/internal/pool"
	"imagebatch/internal/progress"
	"imagebatch/internal/services"
)

var (
	ErrJobNotFound   = errors.New("job not found")
	ErrJobNotPending = errors.New("job is not pending")
	ErrJobFinished   = errors.New("job already finished")
)

// Runner executes one batch; *services.ImageProcessor implements it
type Runner interface {
	Run(ctx context.Context, opts models.ProcessingOptions, reporter services.Reporter) services.Result
}

// LogSink receives the entries of every processed file; *processlog.Recorder implements it
type LogSink interface {
	Append(entries ...models.LogEntry) error
}

// Settings tunes a Registry
type Settings struct {
	Retention  time.Duration // how long finished jobs stay in memory; 0 keeps them forever
	SweepEvery time.Duration
	Debug      bool // log every snapshot of every job
}

// Registry is the concurrency-safe owner of all jobs
type Registry struct {
	runner   Runner
	workers  *pool.WorkerPool
	sink     LogSink
	archive  cache.JobArchive
	settings Settings

	mu   sync.RWMutex
	jobs map[string]*job

	baseCtx   context.Context
	cancelAll context.CancelFunc
	stopSweep chan struct{}
	closeOnce sync.Once
	sweepWg   sync.WaitGroup
}

// NewRegistry wires a registry. sink and archive may be nil.
func NewRegistry(runner Runner, workers *pool.WorkerPool, sink LogSink, archive cache.JobArchive, settings Settings) *Registry {
	ctx, cancel := context.WithCancel(context.Background())
	r := &Registry{
		runner:    runner,
		workers:   workers,
		sink:      sink,
		archive:   archive,
		settings:  settings,
		jobs:      make(map[string]*job),
		baseCtx:   ctx,
		cancelAll: cancel,
		stopSweep: make(chan struct{}),
	}

	if settings.Retention > 0 {
		every := settings.SweepEvery
		if every <= 0 {
			every = time.Minute
		}
		r.sweepWg.Add(1)
		go r.sweepLoop(every)
	}
	return r
}

// Create registers a new Pending job. Nothing runs until Start.
func (r *Registry) Create(opts models.ProcessingOptions) (JobView, error) {
	if err := opts.Validate(); err != nil {
		return JobView{}, err
	}

	j := newJob(uuid.NewString(), opts)

	r.mu.Lock()
	r.jobs[j.id] = j
	r.mu.Unlock()

	log.Printf("📝 Job %s created: input=%s output=%s", j.id, opts.InputFolder, opts.OutputFolder)
	return j.view(), nil
}

// Start moves a Pending job to Running and hands it to the worker pool, which runs it on
// its own goroutine at once. It returns without waiting for the run.
func (r *Registry) Start(id string) error {
	j, err := r.live(id)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(r.baseCtx)

	j.mu.Lock()
	if j.status != models.JobStatusPending {
		j.mu.Unlock()
		cancel()
		return fmt.Errorf("%w: %s is %s", ErrJobNotPending, id, j.status)
	}
	now := time.Now()
	j.status = models.JobStatusRunning
	j.startedAt = &now
	j.cancel = cancel
	j.mu.Unlock()

	if r.settings.Debug {
		go r.observe(j)
	}

	err = r.workers.Submit(func() error {
		return r.execute(ctx, j)
	})
	if err != nil {
		cancel()
		r.report(j, failureSnapshot(err))
		r.finish(j, services.Result{Outcome: services.OutcomeFailed, Err: err})
		return fmt.Errorf("failed to schedule job %s: %w", id, err)
	}

	log.Printf("▶️  Job %s started", id)
	return nil
}

// Cancel stops a job. A Pending job is canceled at once; a Running job has its context
// canceled and reaches Canceled when the run unwinds.
func (r *Registry) Cancel(id string) error {
	j, err := r.live(id)
	if err != nil {
		if _, archErr := r.archived(id); archErr == nil {
			return fmt.Errorf("%w: %s", ErrJobFinished, id)
		}
		return err
	}

	j.mu.Lock()
	switch {
	case j.status.IsTerminal():
		j.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrJobFinished, id)
	case j.status == models.JobStatusPending:
		j.applyLocked(canceledSnapshot())
		j.mu.Unlock()
		r.finish(j, services.Result{Outcome: services.OutcomeCanceled, Err: context.Canceled})
	default:
		cancel := j.cancel
		j.mu.Unlock()
		cancel()
	}

	log.Printf("⏹️  Job %s cancellation requested", id)
	return nil
}

// Get returns the current view of a job, falling back to the archive for evicted jobs
func (r *Registry) Get(id string) (JobView, error) {
	if j, err := r.live(id); err == nil {
		return j.view(), nil
	}
	rec, err := r.archived(id)
	if err != nil {
		return JobView{}, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	return viewFromRecord(rec), nil
}

// History returns every snapshot of a job in emission order
func (r *Registry) History(id string) ([]models.Snapshot, error) {
	if j, err := r.live(id); err == nil {
		return j.stream.Items(), nil
	}
	rec, err := r.archived(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	return rec.History, nil
}

// Subscribe returns a reader over a job's snapshots from the first one. For an archived
// job the reader replays the stored history and ends.
func (r *Registry) Subscribe(id string) (*progress.Subscription, error) {
	if j, err := r.live(id); err == nil {
		return j.stream.Subscribe(), nil
	}
	rec, err := r.archived(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	s := progress.NewStream()
	for _, snap := range rec.History {
		s.Publish(snap)
	}
	s.Close()
	return s.Subscribe(), nil
}

// Wait blocks until the job reaches a terminal status or ctx is done
func (r *Registry) Wait(ctx context.Context, id string) (JobView, error) {
	j, err := r.live(id)
	if err != nil {
		return r.Get(id)
	}
	select {
	case <-j.done:
		return j.view(), nil
	case <-ctx.Done():
		return j.view(), ctx.Err()
	}
}

// List returns live jobs oldest first, followed by archived jobs not held in memory
func (r *Registry) List() []JobView {
	r.mu.RLock()
	views := make([]JobView, 0, len(r.jobs))
	seen := make(map[string]bool, len(r.jobs))
	for id, j := range r.jobs {
		views = append(views, j.view())
		seen[id] = true
	}
	r.mu.RUnlock()

	sort.Slice(views, func(a, b int) bool { return views[a].CreatedAt.Before(views[b].CreatedAt) })

	if r.archive != nil {
		recs, err := r.archive.List(context.Background(), 0)
		if err != nil {
			log.Printf("⚠️  Failed to list archived jobs: %v", err)
		}
		for _, rec := range recs {
			if !seen[rec.ID] {
				views = append(views, viewFromRecord(rec))
			}
		}
	}
	return views
}

// Stats counts live jobs per status
func (r *Registry) Stats() map[string]interface{} {
	r.mu.RLock()
	defer r.mu.RUnlock()

	counts := map[models.JobStatus]int{}
	for _, j := range r.jobs {
		j.mu.Lock()
		counts[j.status]++
		j.mu.Unlock()
	}

	return map[string]interface{}{
		"total":     len(r.jobs),
		"pending":   counts[models.JobStatusPending],
		"running":   counts[models.JobStatusRunning],
		"completed": counts[models.JobStatusCompleted],
		"failed":    counts[models.JobStatusFailed],
		"canceled":  counts[models.JobStatusCanceled],
	}
}

// Shutdown cancels every running job and waits for them to unwind or for ctx to end
func (r *Registry) Shutdown(ctx context.Context) error {
	r.closeOnce.Do(func() {
		close(r.stopSweep)
		r.cancelAll()
	})
	r.sweepWg.Wait()

	r.mu.RLock()
	var running []*job
	for _, j := range r.jobs {
		j.mu.Lock()
		if j.status == models.JobStatusRunning {
			running = append(running, j)
		}
		j.mu.Unlock()
	}
	r.mu.RUnlock()

	for _, j := range running {
		select {
		case <-j.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// execute runs on the job's own pool goroutine
func (r *Registry) execute(ctx context.Context, j *job) (err error) {
	res := services.Result{Outcome: services.OutcomeFailed}
	defer func() {
		if p := recover(); p != nil {
			res = services.Result{Outcome: services.OutcomeFailed, Err: fmt.Errorf("panic: %v", p)}
			err = res.Err
			log.Printf("❌ Job %s panicked: %v", j.id, p)
			r.report(j, failureSnapshot(res.Err))
		}
		r.finish(j, res)
	}()

	// Canceled between Start and the run picking it up
	if ctxErr := ctx.Err(); ctxErr != nil {
		r.report(j, canceledSnapshot())
		res = services.Result{Outcome: services.OutcomeCanceled, Err: ctxErr}
		return ctxErr
	}

	res = r.runner.Run(ctx, j.opts, services.ReporterFunc(func(s models.Snapshot) {
		r.report(j, s)
	}))

	// A run that ended without a terminal snapshot still needs one
	if !j.terminal() {
		if ctx.Err() != nil || res.Outcome == services.OutcomeCanceled {
			r.report(j, canceledSnapshot())
		} else if res.Err != nil {
			r.report(j, failureSnapshot(res.Err))
		} else {
			r.report(j, models.Snapshot{Message: "Process completed!", IsComplete: true, OverallProgress: 1.0})
		}
	}
	return res.Err
}

// report appends a snapshot to the job's history in call order
func (r *Registry) report(j *job, s models.Snapshot) {
	j.mu.Lock()
	j.applyLocked(s)
	j.mu.Unlock()
}

// finish records results, archives the job and releases waiters
func (r *Registry) finish(j *job, res services.Result) {
	if r.sink != nil && len(res.Entries) > 0 {
		if err := r.sink.Append(res.Entries...); err != nil {
			log.Printf("⚠️  Job %s: failed to write processing log: %v", j.id, err)
		}
	}

	j.mu.Lock()
	now := time.Now()
	j.finishedAt = &now
	j.processed = len(res.Entries)
	j.skipped = res.Skipped
	if j.cancel != nil {
		j.cancel()
	}
	status := j.status
	j.mu.Unlock()

	// Archived before waiters are released so Wait followed by an archive lookup sees it
	if r.archive != nil {
		if err := r.archive.Save(context.Background(), j.record()); err != nil {
			log.Printf("⚠️  Job %s: failed to archive: %v", j.id, err)
		}
	}

	j.stream.Close()
	j.doneOnce.Do(func() { close(j.done) })

	log.Printf("🏁 Job %s finished: status=%s processed=%d skipped=%d", j.id, status, len(res.Entries), res.Skipped)
}

// observe logs every snapshot of a job as a second independent reader
func (r *Registry) observe(j *job) {
	sub := j.stream.Subscribe()
	for {
		s, ok := sub.Next(context.Background())
		if !ok {
			return
		}
		log.Printf("🔍 Job %s: %s (%.0f%%)", j.id, s.Message, s.OverallProgress*100)
	}
}

func (r *Registry) sweepLoop(every time.Duration) {
	defer r.sweepWg.Done()

	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			r.sweep(time.Now())
		case <-r.stopSweep:
			return
		}
	}
}

// sweep drops finished jobs older than the retention window from memory
func (r *Registry) sweep(now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, j := range r.jobs {
		j.mu.Lock()
		expired := j.finishedAt != nil && now.Sub(*j.finishedAt) > r.settings.Retention
		j.mu.Unlock()
		if expired {
			delete(r.jobs, id)
			removed++
		}
	}
	if removed > 0 {
		log.Printf("🧹 Job sweep: evicted %d finished jobs", removed)
	}
	return removed
}

func (r *Registry) live(id string) (*job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	j, ok := r.jobs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	return j, nil
}

func (r *Registry) archived(id string) (models.JobRecord, error) {
	if r.archive == nil {
		return models.JobRecord{}, cache.ErrNotArchived
	}
	return r.archive.Load(context.Background(), id)
}

func canceledSnapshot() models.Snapshot {
	return models.Snapshot{
		Message:      "The process was canceled.",
		IsError:      true,
		IsCanceled:   true,
		ErrorMessage: "Canceled",
	}
}

func failureSnapshot(err error) models.Snapshot {
	return models.Snapshot{
		Message:      fmt.Sprintf("An unexpected error occurred: %v. The process has been stopped.", err),
		IsError:      true,
		ErrorMessage: err.Error(),
	}
}
