// Package aihint runs asynchronous AI coaching jobs: a synchronous submit and
// idempotent poll fronting a bounded background worker queue.
package aihint

import (
	"context"
	"errors"
	"fmt"

	"github.com/defidojo/dojo-backend/internal/app/domain/aihint"
	"github.com/defidojo/dojo-backend/internal/app/storage"
	"github.com/defidojo/dojo-backend/internal/hub"
	"github.com/defidojo/dojo-backend/pkg/logger"
)

// Errors
var (
	ErrNotEligible = errors.New("quest instance is not eligible for hints")
	ErrJobNotFound = errors.New("hint job not found")
)

// Notifier pushes user-visible events.
type Notifier interface {
	SendToUser(userID string, event hub.Event)
}

// Service accepts hint requests and exposes job results.
type Service struct {
	store     storage.HintJobStore
	instances storage.InstanceStore
	queue     *Queue
	log       *logger.Logger
}

// New constructs the hint service.
func New(store storage.HintJobStore, instances storage.InstanceStore, queue *Queue, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("aihint")
	}
	return &Service{store: store, instances: instances, queue: queue, log: log}
}

// Submit creates a pending job and enqueues it. The call never blocks on job
// execution. Eligibility requires an existing instance, owned by the caller,
// that is still accepting actions.
func (s *Service) Submit(ctx context.Context, userID, instanceID string, contextSnapshot map[string]interface{}) (aihint.Job, error) {
	inst, err := s.instances.GetInstance(ctx, instanceID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return aihint.Job{}, ErrNotEligible
		}
		return aihint.Job{}, fmt.Errorf("get instance: %w", err)
	}
	if inst.UserID != userID || !inst.State.Active() {
		return aihint.Job{}, ErrNotEligible
	}

	job, err := s.store.CreateHintJob(ctx, aihint.Job{
		UserID:          userID,
		QuestInstanceID: instanceID,
		Context:         contextSnapshot,
		Status:          aihint.StatusPending,
	})
	if err != nil {
		return aihint.Job{}, fmt.Errorf("create hint job: %w", err)
	}

	if err := s.queue.Enqueue(job.ID); err != nil {
		// Terminate the record rather than leaving it pending with no
		// worker ever picking it up.
		job.Status = aihint.StatusFailed
		job.ErrorDetail = err.Error()
		if _, updErr := s.store.UpdateHintJob(ctx, job); updErr != nil {
			s.log.WithError(updErr).WithField("job_id", job.ID).Warn("mark overflow job failed")
		}
		return aihint.Job{}, fmt.Errorf("enqueue hint job: %w", err)
	}

	s.log.WithField("job_id", job.ID).
		WithField("user_id", userID).
		WithField("instance_id", instanceID).
		Info("hint job queued")
	return job, nil
}

// Poll returns the caller's job. Terminal jobs are immutable, so repeated
// polling returns the stored result without touching the upstream service.
func (s *Service) Poll(ctx context.Context, userID, jobID string) (aihint.Job, error) {
	job, err := s.store.GetHintJob(ctx, jobID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return aihint.Job{}, ErrJobNotFound
		}
		return aihint.Job{}, fmt.Errorf("get hint job: %w", err)
	}
	if job.UserID != userID {
		return aihint.Job{}, ErrJobNotFound
	}
	return job, nil
}
