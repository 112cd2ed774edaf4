package aihint

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/defidojo/dojo-backend/internal/app/domain/aihint"
	"github.com/defidojo/dojo-backend/internal/app/storage"
	"github.com/defidojo/dojo-backend/internal/app/system"
	"github.com/defidojo/dojo-backend/internal/hub"
	"github.com/defidojo/dojo-backend/pkg/logger"
)

// ErrQueueFull is returned when the hint queue cannot accept more work.
var ErrQueueFull = errors.New("hint queue is full")

// Queue runs hint jobs on a bounded channel consumed by worker loops. Each
// unit of work re-reads its job through the store, so workers share no
// mutable connection state.
type Queue struct {
	store    storage.HintJobStore
	client   InferenceClient
	notifier Notifier
	jobs     chan string
	workers  int
	timeout  time.Duration
	log      *logger.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

var _ system.Service = (*Queue)(nil)

// QueueConfig sizes the hint queue.
type QueueConfig struct {
	Size        int
	WorkerCount int
	CallTimeout time.Duration
}

// NewQueue constructs the hint work queue.
func NewQueue(store storage.HintJobStore, client InferenceClient, notifier Notifier, cfg QueueConfig, log *logger.Logger) *Queue {
	if cfg.Size <= 0 {
		cfg.Size = 64
	}
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 2
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 20 * time.Second
	}
	if log == nil {
		log = logger.NewDefault("aihint-queue")
	}
	return &Queue{
		store:    store,
		client:   client,
		notifier: notifier,
		jobs:     make(chan string, cfg.Size),
		workers:  cfg.WorkerCount,
		timeout:  cfg.CallTimeout,
		log:      log,
	}
}

func (q *Queue) Name() string { return "aihint-queue" }

func (q *Queue) Start(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.running {
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	q.cancel = cancel
	q.running = true

	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go func() {
			defer q.wg.Done()
			for {
				select {
				case <-runCtx.Done():
					return
				case jobID := <-q.jobs:
					q.process(runCtx, jobID)
				}
			}
		}()
	}

	q.log.WithField("workers", q.workers).Info("hint queue started")
	return nil
}

func (q *Queue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if !q.running {
		q.mu.Unlock()
		return nil
	}
	cancel := q.cancel
	q.running = false
	q.cancel = nil
	q.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		q.wg.Wait()
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	q.log.Info("hint queue stopped")
	return nil
}

// Enqueue schedules a job without blocking the caller.
func (q *Queue) Enqueue(jobID string) error {
	select {
	case q.jobs <- jobID:
		return nil
	default:
		return ErrQueueFull
	}
}

// process resolves one job. Upstream failures terminate the job, never the
// worker, and a result is applied only while the job is still pending.
func (q *Queue) process(ctx context.Context, jobID string) {
	job, err := q.store.GetHintJob(ctx, jobID)
	if err != nil {
		q.log.WithError(err).WithField("job_id", jobID).Warn("hint job fetch failed")
		return
	}
	if job.Status != aihint.StatusPending {
		return
	}

	job.Prompt = BuildPrompt(job.Context)

	callCtx, cancel := context.WithTimeout(ctx, q.timeout)
	result, callErr := q.client.GenerateHint(callCtx, job.Prompt)
	cancel()

	// The call may have taken a while; apply the outcome only if the job
	// record is still pending.
	current, err := q.store.GetHintJob(ctx, jobID)
	if err != nil || current.Status != aihint.StatusPending {
		return
	}

	if callErr != nil {
		job.Status = aihint.StatusFailed
		job.Result = nil
		job.ErrorDetail = callErr.Error()
		q.log.WithError(callErr).WithField("job_id", jobID).Warn("hint generation failed")
	} else {
		job.Status = aihint.StatusCompleted
		job.Result = &result
	}

	updated, err := q.store.UpdateHintJob(ctx, job)
	if err != nil {
		q.log.WithError(err).WithField("job_id", jobID).Warn("hint job update failed")
		return
	}

	if q.notifier != nil {
		res := updated.ClientResult()
		q.notifier.SendToUser(updated.UserID, hub.HintReady(updated.ID, string(updated.Status), res.Hint, res.Risk, res.Param))
	}
}
