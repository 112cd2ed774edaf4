// Package memory provides an in-memory implementation of the storage
// interfaces, used as the default store and in tests.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/defidojo/dojo-backend/internal/app/domain/aihint"
	"github.com/defidojo/dojo-backend/internal/app/domain/quest"
	"github.com/defidojo/dojo-backend/internal/app/domain/reward"
	"github.com/defidojo/dojo-backend/internal/app/domain/user"
	"github.com/defidojo/dojo-backend/internal/app/storage"
)

// Store implements every storage interface with process-local maps.
type Store struct {
	mu        sync.RWMutex
	users     map[string]user.User
	instances map[string]quest.Instance
	hintJobs  map[string]aihint.Job
	rewards   map[string]reward.Transaction
}

var (
	_ storage.UserStore     = (*Store)(nil)
	_ storage.InstanceStore = (*Store)(nil)
	_ storage.HintJobStore  = (*Store)(nil)
	_ storage.RewardStore   = (*Store)(nil)
)

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		users:     make(map[string]user.User),
		instances: make(map[string]quest.Instance),
		hintJobs:  make(map[string]aihint.Job),
		rewards:   make(map[string]reward.Transaction),
	}
}

// --- UserStore --------------------------------------------------------------

func (s *Store) CreateUser(ctx context.Context, u user.User) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now
	s.users[u.ID] = u
	return u, nil
}

func (s *Store) UpdateUser(ctx context.Context, u user.User) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[u.ID]; !ok {
		return user.User{}, storage.ErrNotFound
	}
	u.UpdatedAt = time.Now().UTC()
	s.users[u.ID] = u
	return u, nil
}

func (s *Store) GetUser(ctx context.Context, id string) (user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return user.User{}, storage.ErrNotFound
	}
	return u, nil
}

func (s *Store) GetUserByWallet(ctx context.Context, wallet string) (user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if u.WalletAddress == wallet {
			return u, nil
		}
	}
	return user.User{}, storage.ErrNotFound
}

// --- InstanceStore ----------------------------------------------------------

func (s *Store) CreateInstance(ctx context.Context, inst quest.Instance) (quest.Instance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if inst.ID == "" {
		inst.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	inst.CreatedAt = now
	inst.LastUpdated = now
	inst.Progress = cloneProgress(inst.Progress)
	s.instances[inst.ID] = inst
	return copyInstance(inst), nil
}

func (s *Store) UpdateInstance(ctx context.Context, inst quest.Instance) (quest.Instance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.instances[inst.ID]
	if !ok {
		return quest.Instance{}, storage.ErrNotFound
	}
	inst.CreatedAt = existing.CreatedAt
	inst.LastUpdated = time.Now().UTC()
	inst.Progress = cloneProgress(inst.Progress)
	s.instances[inst.ID] = inst
	return copyInstance(inst), nil
}

func (s *Store) GetInstance(ctx context.Context, id string) (quest.Instance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	inst, ok := s.instances[id]
	if !ok {
		return quest.Instance{}, storage.ErrNotFound
	}
	return copyInstance(inst), nil
}

func (s *Store) GetActiveInstance(ctx context.Context, userID, questID string) (quest.Instance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, inst := range s.instances {
		if inst.UserID == userID && inst.QuestID == questID && inst.State.Active() {
			return copyInstance(inst), nil
		}
	}
	return quest.Instance{}, storage.ErrNotFound
}

func (s *Store) ListInstances(ctx context.Context, userID string) ([]quest.Instance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []quest.Instance
	for _, inst := range s.instances {
		if inst.UserID == userID {
			result = append(result, copyInstance(inst))
		}
	}
	return result, nil
}

// --- HintJobStore -----------------------------------------------------------

func (s *Store) CreateHintJob(ctx context.Context, job aihint.Job) (aihint.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	job.CreatedAt = now
	job.UpdatedAt = now
	s.hintJobs[job.ID] = copyJob(job)
	return copyJob(job), nil
}

func (s *Store) UpdateHintJob(ctx context.Context, job aihint.Job) (aihint.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.hintJobs[job.ID]
	if !ok {
		return aihint.Job{}, storage.ErrNotFound
	}
	job.CreatedAt = existing.CreatedAt
	job.UpdatedAt = time.Now().UTC()
	s.hintJobs[job.ID] = copyJob(job)
	return copyJob(job), nil
}

func (s *Store) GetHintJob(ctx context.Context, id string) (aihint.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.hintJobs[id]
	if !ok {
		return aihint.Job{}, storage.ErrNotFound
	}
	return copyJob(job), nil
}

// --- RewardStore ------------------------------------------------------------

func (s *Store) CreateRewardTransaction(ctx context.Context, tx reward.Transaction) (reward.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	tx.CreatedAt = now
	tx.UpdatedAt = now
	s.rewards[tx.ID] = tx
	return tx, nil
}

func (s *Store) UpdateRewardTransaction(ctx context.Context, tx reward.Transaction) (reward.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.rewards[tx.ID]
	if !ok {
		return reward.Transaction{}, storage.ErrNotFound
	}
	tx.CreatedAt = existing.CreatedAt
	tx.UpdatedAt = time.Now().UTC()
	s.rewards[tx.ID] = tx
	return tx, nil
}

func (s *Store) GetRewardTransaction(ctx context.Context, id string) (reward.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tx, ok := s.rewards[id]
	if !ok {
		return reward.Transaction{}, storage.ErrNotFound
	}
	return tx, nil
}

func (s *Store) GetRewardTransactionByTxID(ctx context.Context, txid string) (reward.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, tx := range s.rewards {
		if tx.TxID == txid {
			return tx, nil
		}
	}
	return reward.Transaction{}, storage.ErrNotFound
}

func (s *Store) GetClaimedRewardByInstance(ctx context.Context, instanceID string) (reward.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, tx := range s.rewards {
		if tx.QuestInstanceID == instanceID && tx.Status.Claimed() {
			return tx, nil
		}
	}
	return reward.Transaction{}, storage.ErrNotFound
}

func (s *Store) ListPendingRewardTransactions(ctx context.Context) ([]reward.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []reward.Transaction
	for _, tx := range s.rewards {
		if tx.Status == reward.StatusPending {
			result = append(result, tx)
		}
	}
	return result, nil
}

func cloneProgress(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return nil
	}
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func copyInstance(inst quest.Instance) quest.Instance {
	inst.Progress = cloneProgress(inst.Progress)
	return inst
}

func copyJob(job aihint.Job) aihint.Job {
	job.Context = cloneProgress(job.Context)
	if job.Result != nil {
		result := *job.Result
		job.Result = &result
	}
	return job
}
