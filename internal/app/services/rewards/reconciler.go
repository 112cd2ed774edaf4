package rewards

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/defidojo/dojo-backend/internal/app/system"
	"github.com/defidojo/dojo-backend/pkg/logger"
)

// Reconciler consumes scheduled reconciliation work from a bounded queue and
// periodically sweeps stale pending transactions so none outlives the
// confirmation horizon.
type Reconciler struct {
	service      *Service
	queue        chan string
	sweepSpec    string
	pendingLimit time.Duration
	log          *logger.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	cron    *cron.Cron
	running bool
}

var _ system.Service = (*Reconciler)(nil)

// ReconcilerConfig sizes the reconciler.
type ReconcilerConfig struct {
	QueueSize    int
	SweepSpec    string
	PendingLimit time.Duration
}

// NewReconciler constructs the reconciler and attaches itself as the
// service's scheduler.
func NewReconciler(service *Service, cfg ReconcilerConfig, log *logger.Logger) *Reconciler {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	if cfg.SweepSpec == "" {
		cfg.SweepSpec = "@every 10m"
	}
	if cfg.PendingLimit <= 0 {
		cfg.PendingLimit = time.Hour
	}
	if log == nil {
		log = logger.NewDefault("reward-reconciler")
	}
	r := &Reconciler{
		service:      service,
		queue:        make(chan string, cfg.QueueSize),
		sweepSpec:    cfg.SweepSpec,
		pendingLimit: cfg.PendingLimit,
		log:          log,
	}
	service.WithScheduler(r)
	return r
}

func (r *Reconciler) Name() string { return "reward-reconciler" }

// Schedule queues one reconciliation attempt. The call never blocks; when
// the queue is full the stale sweep picks the transaction up later.
func (r *Reconciler) Schedule(rewardID string) {
	select {
	case r.queue <- rewardID:
	default:
		r.log.WithField("reward_id", rewardID).Warn("reconcile queue full; deferring to sweep")
	}
}

func (r *Reconciler) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.running = true

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		for {
			select {
			case <-runCtx.Done():
				return
			case rewardID := <-r.queue:
				workCtx, workCancel := context.WithTimeout(runCtx, 30*time.Second)
				r.service.Reconcile(workCtx, rewardID)
				workCancel()
			}
		}
	}()

	r.cron = cron.New()
	if _, err := r.cron.AddFunc(r.sweepSpec, func() { r.sweep(runCtx) }); err != nil {
		return err
	}
	r.cron.Start()

	r.log.WithField("sweep", r.sweepSpec).Info("reward reconciler started")
	return nil
}

func (r *Reconciler) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	cancel := r.cancel
	cronJob := r.cron
	r.running = false
	r.cancel = nil
	r.cron = nil
	r.mu.Unlock()

	if cronJob != nil {
		<-cronJob.Stop().Done()
	}
	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		r.wg.Wait()
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	r.log.Info("reward reconciler stopped")
	return nil
}

// sweep re-checks every pending transaction once and expires those past the
// confirmation horizon.
func (r *Reconciler) sweep(ctx context.Context) {
	txs, err := r.service.ListPending(ctx)
	if err != nil {
		r.log.WithError(err).Warn("pending sweep failed")
		return
	}

	now := time.Now().UTC()
	for _, tx := range txs {
		if now.Sub(tx.CreatedAt) > r.pendingLimit {
			// Past the confirmation horizon: one last chain check for
			// submitted transactions, then expire whatever is still pending
			// so the quest instance can be claimed again.
			if tx.TxID != "" {
				r.service.Reconcile(ctx, tx.ID)
			}
			r.service.ExpirePending(ctx, tx.ID)
			continue
		}
		if tx.TxID != "" {
			r.service.Reconcile(ctx, tx.ID)
		}
	}
}
