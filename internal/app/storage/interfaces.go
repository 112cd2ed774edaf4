// Package storage declares the persistence interfaces for the dojo backend.
// The core only needs point lookups, conditional inserts and full-record
// updates; ranking and reporting queries live outside this layer.
package storage

import (
	"context"
	"errors"

	"github.com/defidojo/dojo-backend/internal/app/domain/aihint"
	"github.com/defidojo/dojo-backend/internal/app/domain/quest"
	"github.com/defidojo/dojo-backend/internal/app/domain/reward"
	"github.com/defidojo/dojo-backend/internal/app/domain/user"
)

// ErrNotFound is returned for point lookups that match no record.
var ErrNotFound = errors.New("record not found")

// UserStore persists player accounts.
type UserStore interface {
	CreateUser(ctx context.Context, u user.User) (user.User, error)
	UpdateUser(ctx context.Context, u user.User) (user.User, error)
	GetUser(ctx context.Context, id string) (user.User, error)
	GetUserByWallet(ctx context.Context, wallet string) (user.User, error)
}

// InstanceStore persists quest instances.
type InstanceStore interface {
	CreateInstance(ctx context.Context, inst quest.Instance) (quest.Instance, error)
	UpdateInstance(ctx context.Context, inst quest.Instance) (quest.Instance, error)
	GetInstance(ctx context.Context, id string) (quest.Instance, error)
	// GetActiveInstance returns the started/ongoing instance for the
	// (user, quest) pair, or ErrNotFound when none exists.
	GetActiveInstance(ctx context.Context, userID, questID string) (quest.Instance, error)
	ListInstances(ctx context.Context, userID string) ([]quest.Instance, error)
}

// HintJobStore persists asynchronous hint jobs.
type HintJobStore interface {
	CreateHintJob(ctx context.Context, job aihint.Job) (aihint.Job, error)
	UpdateHintJob(ctx context.Context, job aihint.Job) (aihint.Job, error)
	GetHintJob(ctx context.Context, id string) (aihint.Job, error)
}

// RewardStore persists reward transactions.
type RewardStore interface {
	CreateRewardTransaction(ctx context.Context, tx reward.Transaction) (reward.Transaction, error)
	UpdateRewardTransaction(ctx context.Context, tx reward.Transaction) (reward.Transaction, error)
	GetRewardTransaction(ctx context.Context, id string) (reward.Transaction, error)
	GetRewardTransactionByTxID(ctx context.Context, txid string) (reward.Transaction, error)
	// GetClaimedRewardByInstance returns the pending or confirmed transaction
	// for a quest instance, or ErrNotFound when none exists.
	GetClaimedRewardByInstance(ctx context.Context, instanceID string) (reward.Transaction, error)
	ListPendingRewardTransactions(ctx context.Context) ([]reward.Transaction, error)
}
