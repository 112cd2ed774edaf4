// Package app wires the dojo services together and manages their lifecycle.
package app

import (
	"context"

	"github.com/defidojo/dojo-backend/internal/app/services/aihint"
	"github.com/defidojo/dojo-backend/internal/app/services/catalog"
	"github.com/defidojo/dojo-backend/internal/app/services/quests"
	"github.com/defidojo/dojo-backend/internal/app/services/rewards"
	"github.com/defidojo/dojo-backend/internal/app/services/users"
	"github.com/defidojo/dojo-backend/internal/app/storage"
	"github.com/defidojo/dojo-backend/internal/app/storage/memory"
	"github.com/defidojo/dojo-backend/internal/app/system"
	"github.com/defidojo/dojo-backend/internal/config"
	"github.com/defidojo/dojo-backend/internal/hub"
	"github.com/defidojo/dojo-backend/internal/metrics"
	"github.com/defidojo/dojo-backend/internal/session"
	"github.com/defidojo/dojo-backend/pkg/logger"
)

// Stores encapsulates persistence dependencies. Nil stores default to the
// in-memory implementation.
type Stores struct {
	Users     storage.UserStore
	Instances storage.InstanceStore
	HintJobs  storage.HintJobStore
	Rewards   storage.RewardStore
}

// Deps carries the external collaborators the application cannot build for
// itself. Nil fields get safe defaults: an in-memory nonce store and the real
// HTTP inference and chain clients.
type Deps struct {
	Nonces    session.NonceStore
	Tokens    users.TokenIssuer
	Inference aihint.InferenceClient
	Chain     rewards.StatusPoller
	Metrics   *metrics.Metrics
}

// Application ties domain services together and manages their lifecycle.
type Application struct {
	manager *system.Manager
	log     *logger.Logger

	Hub     *hub.Hub
	Catalog *catalog.Catalog
	Users   *users.Service
	Quests  *quests.Service
	Hints   *aihint.Service
	Rewards *rewards.Service
}

// New builds a fully initialised application.
func New(cfg *config.Config, stores Stores, deps Deps, log *logger.Logger) (*Application, error) {
	if log == nil {
		log = logger.NewDefault("app")
	}

	mem := memory.New()
	if stores.Users == nil {
		stores.Users = mem
	}
	if stores.Instances == nil {
		stores.Instances = mem
	}
	if stores.HintJobs == nil {
		stores.HintJobs = mem
	}
	if stores.Rewards == nil {
		stores.Rewards = mem
	}
	if deps.Nonces == nil {
		deps.Nonces = session.NewMemoryNonceStore()
	}

	cat, err := catalog.Load(cfg.Quests.CatalogPath, log)
	if err != nil {
		return nil, err
	}

	events := hub.New(log)
	manager := system.NewManager(log)

	// Domain events flow through the metrics decorator when one is supplied.
	var notifier metrics.Notifier = events
	if deps.Metrics != nil {
		events.SetObserver(deps.Metrics)
		notifier = deps.Metrics.InstrumentNotifier(events)
	}

	if deps.Inference == nil {
		deps.Inference = aihint.NewHTTPClient(aihint.HTTPClientConfig{
			BaseURL: cfg.Inference.BaseURL,
			APIKey:  cfg.Inference.APIKey,
			Model:   cfg.Inference.Model,
			Timeout: cfg.Inference.Timeout,
		}, log)
	}
	if deps.Chain == nil {
		chain, err := rewards.NewChainClient(rewards.ChainClientConfig{
			APIURL:  cfg.Chain.APIURL,
			APIKey:  cfg.Chain.APIKey,
			Timeout: cfg.Chain.Timeout,
		}, log)
		if err != nil {
			return nil, err
		}
		deps.Chain = chain
	}

	userService := users.New(stores.Users, deps.Nonces, deps.Tokens, log)
	questService := quests.New(cat, stores.Instances, notifier, log)

	hintQueue := aihint.NewQueue(stores.HintJobs, deps.Inference, notifier, aihint.QueueConfig{
		Size:        cfg.Inference.QueueSize,
		WorkerCount: cfg.Inference.WorkerCount,
		CallTimeout: cfg.Inference.Timeout,
	}, log)
	hintService := aihint.New(stores.HintJobs, stores.Instances, hintQueue, log)

	rewardService := rewards.New(cat, stores.Rewards, stores.Instances, stores.Users, deps.Chain, notifier, rewards.Config{
		Contract: cfg.Chain.Contract,
		Function: cfg.Chain.Function,
	}, log)
	reconciler := rewards.NewReconciler(rewardService, rewards.ReconcilerConfig{
		SweepSpec:    cfg.Chain.SweepSpec,
		PendingLimit: cfg.Chain.PendingLimit,
	}, log)

	manager.Register(hintQueue)
	manager.Register(reconciler)

	return &Application{
		manager: manager,
		log:     log,
		Hub:     events,
		Catalog: cat,
		Users:   userService,
		Quests:  questService,
		Hints:   hintService,
		Rewards: rewardService,
	}, nil
}

// Attach registers an additional lifecycle-managed service. Call before Start.
func (a *Application) Attach(service system.Service) {
	a.manager.Register(service)
}

// Start begins all registered services.
func (a *Application) Start(ctx context.Context) error {
	return a.manager.Start(ctx)
}

// Stop stops all services.
func (a *Application) Stop(ctx context.Context) error {
	return a.manager.Stop(ctx)
}
