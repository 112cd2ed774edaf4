// Package quests drives the quest instance state machine: deterministic
// action validation, per-instance serialization and state-change fan-out.
package quests

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/defidojo/dojo-backend/internal/app/domain/quest"
	"github.com/defidojo/dojo-backend/internal/app/services/catalog"
	"github.com/defidojo/dojo-backend/internal/app/storage"
	"github.com/defidojo/dojo-backend/internal/hub"
	"github.com/defidojo/dojo-backend/internal/syncutil"
	"github.com/defidojo/dojo-backend/pkg/logger"
)

// Errors
var (
	ErrQuestNotFound    = errors.New("quest not found or inactive")
	ErrInstanceNotFound = errors.New("quest instance not found")
	ErrAlreadyStarted   = errors.New("quest already started")
	ErrQuestNotActive   = errors.New("quest is not active")
)

// Notifier pushes user-visible events. Delivery failures are absorbed by the
// implementation; the service never blocks on it.
type Notifier interface {
	SendToUser(userID string, event hub.Event)
}

// Service manages quest instances for users.
type Service struct {
	catalog  *catalog.Catalog
	store    storage.InstanceStore
	notifier Notifier
	locks    *syncutil.KeyedMutex
	log      *logger.Logger
}

// New constructs the quest service.
func New(cat *catalog.Catalog, store storage.InstanceStore, notifier Notifier, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("quests")
	}
	return &Service{
		catalog:  cat,
		store:    store,
		notifier: notifier,
		locks:    syncutil.NewKeyedMutex(),
		log:      log,
	}
}

// Start creates a quest instance for the user. At most one started/ongoing
// instance may exist per (user, quest) pair.
func (s *Service) Start(ctx context.Context, userID, questID string) (quest.Instance, error) {
	def, err := s.lookupQuest(questID)
	if err != nil {
		return quest.Instance{}, err
	}

	unlock := s.locks.Lock("start:" + userID + ":" + def.ID)
	defer unlock()

	if _, err := s.store.GetActiveInstance(ctx, userID, def.ID); err == nil {
		return quest.Instance{}, ErrAlreadyStarted
	} else if !errors.Is(err, storage.ErrNotFound) {
		return quest.Instance{}, fmt.Errorf("check active instance: %w", err)
	}

	seed, err := newServerSeed()
	if err != nil {
		return quest.Instance{}, fmt.Errorf("generate server seed: %w", err)
	}

	inst, err := s.store.CreateInstance(ctx, quest.Instance{
		UserID:     userID,
		QuestID:    def.ID,
		State:      quest.StateStarted,
		Progress:   map[string]interface{}{},
		ServerSeed: seed,
	})
	if err != nil {
		return quest.Instance{}, fmt.Errorf("create instance: %w", err)
	}

	s.log.WithField("instance_id", inst.ID).
		WithField("user_id", userID).
		WithField("quest_id", def.ID).
		Info("quest started")
	s.notify(inst)
	return inst, nil
}

// SubmitAction validates one action against the instance's rule set and
// applies the resulting transition. Submissions for the same instance are
// linearized; distinct instances proceed independently.
func (s *Service) SubmitAction(ctx context.Context, userID, instanceID string, action quest.Action) (quest.Instance, error) {
	unlock := s.locks.Lock("instance:" + instanceID)
	defer unlock()

	inst, err := s.getOwned(ctx, userID, instanceID)
	if err != nil {
		return quest.Instance{}, err
	}
	if !inst.State.Active() {
		return quest.Instance{}, ErrQuestNotActive
	}

	def, err := s.catalog.Get(inst.QuestID)
	if err != nil {
		return quest.Instance{}, fmt.Errorf("quest definition: %w", err)
	}

	out := Validate(def.Rules, inst.Progress, inst.ServerSeed, action)
	inst.Progress = out.Progress
	inst.Score = out.Score
	inst.State = out.State

	updated, err := s.store.UpdateInstance(ctx, inst)
	if err != nil {
		return quest.Instance{}, fmt.Errorf("update instance: %w", err)
	}

	s.log.WithField("instance_id", updated.ID).
		WithField("action", action.Type).
		WithField("state", string(updated.State)).
		WithField("score", updated.Score).
		Info("quest action accepted")
	s.notify(updated)
	return updated, nil
}

// Status returns the caller's instance.
func (s *Service) Status(ctx context.Context, userID, instanceID string) (quest.Instance, error) {
	return s.getOwned(ctx, userID, instanceID)
}

// List returns every instance owned by the user.
func (s *Service) List(ctx context.Context, userID string) ([]quest.Instance, error) {
	return s.store.ListInstances(ctx, userID)
}

// lookupQuest resolves id or slug to an active definition.
func (s *Service) lookupQuest(questID string) (quest.Definition, error) {
	def, err := s.catalog.Get(questID)
	if err != nil {
		def, err = s.catalog.GetBySlug(questID)
	}
	if err != nil || !def.Active {
		return quest.Definition{}, ErrQuestNotFound
	}
	return def, nil
}

// getOwned fetches an instance, hiding records owned by other users.
func (s *Service) getOwned(ctx context.Context, userID, instanceID string) (quest.Instance, error) {
	inst, err := s.store.GetInstance(ctx, instanceID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return quest.Instance{}, ErrInstanceNotFound
		}
		return quest.Instance{}, fmt.Errorf("get instance: %w", err)
	}
	if inst.UserID != userID {
		return quest.Instance{}, ErrInstanceNotFound
	}
	return inst, nil
}

func (s *Service) notify(inst quest.Instance) {
	if s.notifier == nil {
		return
	}
	s.notifier.SendToUser(inst.UserID, hub.QuestStateChanged(inst.ID, string(inst.State), inst.Score))
}

func newServerSeed() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
