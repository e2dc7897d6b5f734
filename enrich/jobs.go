package enrich

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/raushankrgupta/fitly-shop-links/metrics"
	"github.com/raushankrgupta/fitly-shop-links/models"
	"github.com/raushankrgupta/fitly-shop-links/store"
	"github.com/raushankrgupta/fitly-shop-links/utils"
)

var (
	ErrJobCancelled = errors.New("enrichment job cancelled")
	ErrJobFinished  = errors.New("enrichment job already finished")
)

// Enricher is the part of Orchestrator the job runner depends on.
type Enricher interface {
	Enrich(ctx context.Context, outfits []models.OutfitCard, owner models.Owner) ([]models.OutfitProducts, error)
}

// CompletionHook runs once a job reaches a terminal status. It may fill
// bookkeeping fields such as SnapshotKey but must not touch Status.
// result is nil unless the job completed.
type CompletionHook func(ctx context.Context, job *models.EnrichmentJob, result []models.OutfitProducts) error

type runningJob struct {
	cancel context.CancelFunc
	done   chan struct{}
	result []models.OutfitProducts
	err    error
}

// JobRunner runs enrichments in the background and keeps them awaitable.
type JobRunner struct {
	enricher Enricher
	jobs     store.JobStore
	links    store.LinkStore
	hooks    []CompletionHook
	logger   *utils.Logger
	metrics  *metrics.Metrics

	base     context.Context
	shutdown context.CancelFunc
	wg       sync.WaitGroup

	mu      sync.Mutex
	running map[string]*runningJob

	retain      time.Duration
	hookTimeout time.Duration
	now         func() time.Time
	newID       func() string
}

func NewJobRunner(enricher Enricher, jobs store.JobStore, links store.LinkStore, logger *utils.Logger, m *metrics.Metrics, hooks ...CompletionHook) *JobRunner {
	if logger == nil {
		logger = utils.NopLogger()
	}
	base, shutdown := context.WithCancel(context.Background())
	return &JobRunner{
		enricher:    enricher,
		jobs:        jobs,
		links:       links,
		hooks:       hooks,
		logger:      logger.With("component", "jobs"),
		metrics:     m,
		base:        base,
		shutdown:    shutdown,
		running:     make(map[string]*runningJob),
		retain:      10 * time.Minute,
		hookTimeout: 30 * time.Second,
		now:         time.Now,
		newID:       uuid.NewString,
	}
}

// Submit validates the outfits, records a pending job and starts it.
// The job outlives ctx; use Cancel to stop it.
func (r *JobRunner) Submit(ctx context.Context, outfits []models.OutfitCard, owner models.Owner, notifyEmail string) (models.EnrichmentJob, error) {
	outfits, err := models.NormalizeOutfits(outfits)
	if err != nil {
		return models.EnrichmentJob{}, err
	}

	now := r.now().UTC()
	job := models.EnrichmentJob{
		ID:          r.newID(),
		Status:      models.JobPending,
		UserID:      owner.UserIDPtr(),
		SessionID:   owner.SessionIDPtr(),
		NotifyEmail: notifyEmail,
		OutfitIDs:   make([]string, 0, len(outfits)),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	for _, o := range outfits {
		job.OutfitIDs = append(job.OutfitIDs, o.ID)
		for _, it := range o.Items {
			if it.HasName() {
				job.ItemCount++
			}
		}
	}
	if err := r.jobs.CreateJob(ctx, job); err != nil {
		return models.EnrichmentJob{}, err
	}

	jobCtx, cancel := context.WithCancel(r.base)
	rj := &runningJob{cancel: cancel, done: make(chan struct{})}
	r.mu.Lock()
	r.running[job.ID] = rj
	r.mu.Unlock()

	r.wg.Add(1)
	go r.run(jobCtx, job, outfits, owner, rj)

	r.logger.Info("enrichment job submitted", "job_id", job.ID, "outfits", len(outfits), "items", job.ItemCount)
	return job, nil
}

func (r *JobRunner) run(ctx context.Context, job models.EnrichmentJob, outfits []models.OutfitCard, owner models.Owner, rj *runningJob) {
	defer r.wg.Done()
	defer rj.cancel()

	job.Status = models.JobRunning
	job.UpdatedAt = r.now().UTC()
	if err := r.jobs.UpdateJob(r.base, job); err != nil {
		r.logger.Warn("marking job running failed", "job_id", job.ID, "error", err)
	}

	result, err := r.enricher.Enrich(ctx, outfits, owner)

	finished := r.now().UTC()
	job.UpdatedAt = finished
	job.CompletedAt = &finished
	switch {
	case err == nil:
		job.Status = models.JobComplete
		_, job.LinkedItems = LinkedItems(result)
	case ctx.Err() != nil && errors.Is(err, context.Canceled):
		job.Status = models.JobCancelled
		err = ErrJobCancelled
	default:
		job.Status = models.JobFailed
		job.Error = err.Error()
	}

	r.runHooks(&job, result)

	if uerr := r.jobs.UpdateJob(context.WithoutCancel(r.base), job); uerr != nil {
		r.logger.Error("saving finished job failed", "job_id", job.ID, "error", uerr)
	}
	r.metrics.JobFinished(job.Status)
	r.logger.Info("enrichment job finished",
		"job_id", job.ID,
		"status", job.Status,
		"items", job.ItemCount,
		"linked_items", job.LinkedItems,
	)

	rj.result, rj.err = result, err
	close(rj.done)

	time.AfterFunc(r.retain, func() {
		r.mu.Lock()
		delete(r.running, job.ID)
		r.mu.Unlock()
	})
}

func (r *JobRunner) runHooks(job *models.EnrichmentJob, result []models.OutfitProducts) {
	if len(r.hooks) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.base), r.hookTimeout)
	defer cancel()

	status := job.Status
	for _, hook := range r.hooks {
		if err := hook(ctx, job, result); err != nil {
			r.logger.Warn("job completion hook failed", "job_id", job.ID, "error", err)
		}
		job.Status = status
	}
}

// Wait blocks until the job finishes or ctx ends. Jobs no longer held in memory
// are answered from the stores.
func (r *JobRunner) Wait(ctx context.Context, id string) ([]models.OutfitProducts, error) {
	r.mu.Lock()
	rj, ok := r.running[id]
	r.mu.Unlock()

	if ok {
		select {
		case <-rj.done:
			return rj.result, rj.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	job, err := r.jobs.GetJob(ctx, id)
	if err != nil {
		return nil, err
	}
	switch job.Status {
	case models.JobComplete:
		return r.links.GetByOutfitIDs(ctx, job.OutfitIDs)
	case models.JobCancelled:
		return nil, ErrJobCancelled
	case models.JobFailed:
		return nil, fmt.Errorf("enrichment job %s failed: %s", id, job.Error)
	default:
		// started by another process, or lost before finishing
		return nil, fmt.Errorf("enrichment job %s is %s and not tracked by this runner", id, job.Status)
	}
}

// Cancel stops a running job. The job ends with status cancelled.
func (r *JobRunner) Cancel(id string) error {
	r.mu.Lock()
	rj, ok := r.running[id]
	r.mu.Unlock()

	if !ok {
		job, err := r.jobs.GetJob(context.Background(), id)
		if err != nil {
			return err
		}
		if job.Done() {
			return ErrJobFinished
		}
		return fmt.Errorf("enrichment job %s is not tracked by this runner", id)
	}

	select {
	case <-rj.done:
		return ErrJobFinished
	default:
	}
	rj.cancel()
	return nil
}

func (r *JobRunner) Get(ctx context.Context, id string) (models.EnrichmentJob, error) {
	return r.jobs.GetJob(ctx, id)
}

// Shutdown cancels every running job and waits for them to record their status.
func (r *JobRunner) Shutdown(ctx context.Context) error {
	r.shutdown()
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
