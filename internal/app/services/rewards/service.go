// Package rewards coordinates on-chain reward settlement: claim payload
// preparation, submission handling and reconciliation against the ledger.
package rewards

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/defidojo/dojo-backend/internal/app/domain/quest"
	"github.com/defidojo/dojo-backend/internal/app/domain/reward"
	"github.com/defidojo/dojo-backend/internal/app/services/catalog"
	"github.com/defidojo/dojo-backend/internal/app/storage"
	"github.com/defidojo/dojo-backend/internal/hub"
	"github.com/defidojo/dojo-backend/internal/syncutil"
	"github.com/defidojo/dojo-backend/pkg/logger"
)

// Errors
var (
	ErrInstanceNotFound = errors.New("completed quest instance not found")
	ErrNotCompleted     = errors.New("quest instance is not completed")
	ErrAlreadyPrepared  = errors.New("reward already prepared for this quest")
	ErrTxNotFound       = errors.New("reward transaction not found")
	ErrNotPending       = errors.New("reward transaction is not pending")
	ErrBadSubmission    = errors.New("exactly one of signed_payload or txid must be provided")
)

// Notifier pushes user-visible events.
type Notifier interface {
	SendToUser(userID string, event hub.Event)
}

// Scheduler queues a reward transaction for background reconciliation.
type Scheduler interface {
	Schedule(rewardID string)
}

// Config holds the claim contract coordinates.
type Config struct {
	Contract string
	Function string
}

// Service is the reward settlement coordinator.
type Service struct {
	catalog   *catalog.Catalog
	store     storage.RewardStore
	instances storage.InstanceStore
	users     storage.UserStore
	poller    StatusPoller
	scheduler Scheduler
	notifier  Notifier
	locks     *syncutil.KeyedMutex
	cfg       Config
	log       *logger.Logger
}

// New constructs the reward service. The reconciliation scheduler is attached
// afterwards via WithScheduler since it needs the service itself.
func New(cat *catalog.Catalog, store storage.RewardStore, instances storage.InstanceStore, users storage.UserStore, poller StatusPoller, notifier Notifier, cfg Config, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("rewards")
	}
	if cfg.Contract == "" {
		cfg.Contract = "SP000000000000000000002Q6VF78.dojo-badge"
	}
	if cfg.Function == "" {
		cfg.Function = "mint-badge"
	}
	return &Service{
		catalog:   cat,
		store:     store,
		instances: instances,
		users:     users,
		poller:    poller,
		notifier:  notifier,
		locks:     syncutil.NewKeyedMutex(),
		cfg:       cfg,
		log:       log,
	}
}

// WithScheduler attaches the background reconciliation scheduler.
func (s *Service) WithScheduler(sched Scheduler) { s.scheduler = sched }

// Prepare builds the unsigned claim payload for a completed quest instance
// and records a pending reward transaction. At most one pending/confirmed
// transaction may exist per instance.
func (s *Service) Prepare(ctx context.Context, userID, instanceID string) (reward.ClaimPayload, reward.Transaction, error) {
	unlock := s.locks.Lock("prepare:" + instanceID)
	defer unlock()

	inst, err := s.instances.GetInstance(ctx, instanceID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return reward.ClaimPayload{}, reward.Transaction{}, ErrInstanceNotFound
		}
		return reward.ClaimPayload{}, reward.Transaction{}, fmt.Errorf("get instance: %w", err)
	}
	if inst.UserID != userID {
		return reward.ClaimPayload{}, reward.Transaction{}, ErrInstanceNotFound
	}
	if inst.State != quest.StateCompleted {
		return reward.ClaimPayload{}, reward.Transaction{}, ErrNotCompleted
	}

	if _, err := s.store.GetClaimedRewardByInstance(ctx, instanceID); err == nil {
		return reward.ClaimPayload{}, reward.Transaction{}, ErrAlreadyPrepared
	} else if !errors.Is(err, storage.ErrNotFound) {
		return reward.ClaimPayload{}, reward.Transaction{}, fmt.Errorf("check existing reward: %w", err)
	}

	def, err := s.catalog.Get(inst.QuestID)
	if err != nil {
		return reward.ClaimPayload{}, reward.Transaction{}, fmt.Errorf("quest definition: %w", err)
	}

	recipient := ""
	if s.users != nil {
		if u, err := s.users.GetUser(ctx, userID); err == nil {
			recipient = u.WalletAddress
		}
	}

	payload := reward.ClaimPayload{
		PayloadID: uuid.NewString(),
		Contract:  s.cfg.Contract,
		Function:  s.cfg.Function,
		Args:      []interface{}{"0x" + recipient, def.Reward.BadgeID, def.Reward.XP},
		Fee:       1000,
		Nonce:     0, // set by the wallet at signing time
	}

	tx, err := s.store.CreateRewardTransaction(ctx, reward.Transaction{
		UserID:          userID,
		QuestID:         inst.QuestID,
		QuestInstanceID: instanceID,
		Status:          reward.StatusPending,
	})
	if err != nil {
		return reward.ClaimPayload{}, reward.Transaction{}, fmt.Errorf("create reward transaction: %w", err)
	}

	s.log.WithField("reward_id", tx.ID).
		WithField("user_id", userID).
		WithField("instance_id", instanceID).
		Info("reward prepared")
	return payload, tx, nil
}

// Submit accepts exactly one of a signed payload (treated as an immediate
// broadcast and confirmed synchronously) or a raw transaction id (left
// pending and handed to background reconciliation).
func (s *Service) Submit(ctx context.Context, userID, rewardID, signedPayload, rawTxID string) (reward.Transaction, error) {
	signedPayload = strings.TrimSpace(signedPayload)
	rawTxID = strings.TrimSpace(rawTxID)
	if (signedPayload == "") == (rawTxID == "") {
		return reward.Transaction{}, ErrBadSubmission
	}

	tx, err := s.getOwned(ctx, userID, rewardID)
	if err != nil {
		return reward.Transaction{}, err
	}
	if tx.Status != reward.StatusPending {
		return reward.Transaction{}, ErrNotPending
	}

	if signedPayload != "" {
		// Broadcast simulation: a production system would relay the signed
		// transaction to the network here.
		tx.TxID = "simulated_tx_" + randomHex(8)
		updated, err := s.store.UpdateRewardTransaction(ctx, tx)
		if err != nil {
			return reward.Transaction{}, fmt.Errorf("update reward transaction: %w", err)
		}
		return s.confirm(ctx, updated.ID)
	}

	tx.TxID = rawTxID
	updated, err := s.store.UpdateRewardTransaction(ctx, tx)
	if err != nil {
		return reward.Transaction{}, fmt.Errorf("update reward transaction: %w", err)
	}

	if s.scheduler != nil {
		s.scheduler.Schedule(updated.ID)
	}
	s.log.WithField("reward_id", updated.ID).
		WithField("txid", rawTxID).
		Info("reward submitted for reconciliation")
	return updated, nil
}

// Status returns the transaction for a txid, re-polling the ledger first: a
// pending record whose transaction the chain reports successful is promoted
// to confirmed before returning. At most one promotion happens per call.
func (s *Service) Status(ctx context.Context, userID, txid string) (reward.Transaction, error) {
	tx, err := s.store.GetRewardTransactionByTxID(ctx, txid)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return reward.Transaction{}, ErrTxNotFound
		}
		return reward.Transaction{}, fmt.Errorf("get reward transaction: %w", err)
	}
	if tx.UserID != userID {
		return reward.Transaction{}, ErrTxNotFound
	}

	if tx.Status != reward.StatusPending || s.poller == nil {
		return tx, nil
	}

	chainStatus, err := s.poller.Check(ctx, txid)
	if err != nil {
		s.log.WithError(err).WithField("txid", txid).Warn("status poll failed")
		return tx, nil
	}
	if chainStatus == reward.ChainConfirmed {
		return s.confirm(ctx, tx.ID)
	}
	return tx, nil
}

// Reconcile performs one reconciliation attempt for a reward transaction.
// A successful chain report confirms it; a failed report or a poll error
// terminates it as failed so no record stays pending without an attempt.
// Chain "pending" leaves the record pending for the stale sweep to bound.
func (s *Service) Reconcile(ctx context.Context, rewardID string) {
	tx, err := s.store.GetRewardTransaction(ctx, rewardID)
	if err != nil {
		s.log.WithError(err).WithField("reward_id", rewardID).Warn("reconcile fetch failed")
		return
	}
	if tx.Status != reward.StatusPending || tx.TxID == "" {
		return
	}

	chainStatus, err := s.poller.Check(ctx, tx.TxID)
	if err != nil {
		s.fail(ctx, tx.ID, fmt.Sprintf("chain poll error: %v", err))
		return
	}

	switch chainStatus {
	case reward.ChainConfirmed:
		if _, err := s.confirm(ctx, tx.ID); err != nil {
			s.log.WithError(err).WithField("reward_id", tx.ID).Warn("confirm failed")
		}
	case reward.ChainFailed:
		s.fail(ctx, tx.ID, "transaction failed on chain")
	}
}

// ExpirePending terminates a pending transaction that outlived the
// confirmation horizon.
func (s *Service) ExpirePending(ctx context.Context, rewardID string) {
	s.fail(ctx, rewardID, "confirmation timeout")
}

// ListPending exposes pending transactions to the reconciler sweep.
func (s *Service) ListPending(ctx context.Context) ([]reward.Transaction, error) {
	return s.store.ListPendingRewardTransactions(ctx)
}

// confirm promotes a pending transaction and credits the quest reward to the
// user exactly once. Late or duplicate confirmations of a terminal record
// are ignored.
func (s *Service) confirm(ctx context.Context, rewardID string) (reward.Transaction, error) {
	unlock := s.locks.Lock("settle:" + rewardID)
	defer unlock()

	tx, err := s.store.GetRewardTransaction(ctx, rewardID)
	if err != nil {
		return reward.Transaction{}, fmt.Errorf("get reward transaction: %w", err)
	}
	if tx.Status != reward.StatusPending {
		return tx, nil
	}

	tx.Status = reward.StatusConfirmed
	updated, err := s.store.UpdateRewardTransaction(ctx, tx)
	if err != nil {
		return reward.Transaction{}, fmt.Errorf("update reward transaction: %w", err)
	}

	s.creditReward(ctx, &updated)
	s.log.WithField("reward_id", updated.ID).
		WithField("txid", updated.TxID).
		Info("reward confirmed")
	s.notify(updated)
	return updated, nil
}

func (s *Service) fail(ctx context.Context, rewardID, detail string) {
	unlock := s.locks.Lock("settle:" + rewardID)
	defer unlock()

	tx, err := s.store.GetRewardTransaction(ctx, rewardID)
	if err != nil {
		s.log.WithError(err).WithField("reward_id", rewardID).Warn("fail fetch failed")
		return
	}
	if tx.Status != reward.StatusPending {
		return
	}

	tx.Status = reward.StatusFailed
	tx.Detail = detail
	updated, err := s.store.UpdateRewardTransaction(ctx, tx)
	if err != nil {
		s.log.WithError(err).WithField("reward_id", rewardID).Warn("fail update failed")
		return
	}

	s.log.WithField("reward_id", updated.ID).
		WithField("detail", detail).
		Warn("reward failed")
	s.notify(updated)
}

// creditReward applies the quest's xp and badge to the user record. The
// XPCredited flag keeps the credit idempotent per transaction.
func (s *Service) creditReward(ctx context.Context, tx *reward.Transaction) {
	if s.users == nil || tx.XPCredited {
		return
	}
	def, err := s.catalog.Get(tx.QuestID)
	if err != nil {
		return
	}
	u, err := s.users.GetUser(ctx, tx.UserID)
	if err != nil {
		s.log.WithError(err).WithField("user_id", tx.UserID).Warn("credit lookup failed")
		return
	}

	u.XP += def.Reward.XP
	if def.Reward.BadgeID != "" && !u.HasBadge(def.Reward.BadgeID) {
		u.Badges = append(u.Badges, def.Reward.BadgeID)
	}
	if _, err := s.users.UpdateUser(ctx, u); err != nil {
		s.log.WithError(err).WithField("user_id", tx.UserID).Warn("credit update failed")
		return
	}

	tx.XPCredited = true
	if updated, err := s.store.UpdateRewardTransaction(ctx, *tx); err == nil {
		*tx = updated
	}
}

func (s *Service) getOwned(ctx context.Context, userID, rewardID string) (reward.Transaction, error) {
	tx, err := s.store.GetRewardTransaction(ctx, rewardID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return reward.Transaction{}, ErrTxNotFound
		}
		return reward.Transaction{}, fmt.Errorf("get reward transaction: %w", err)
	}
	if tx.UserID != userID {
		return reward.Transaction{}, ErrTxNotFound
	}
	return tx, nil
}

func (s *Service) notify(tx reward.Transaction) {
	if s.notifier == nil {
		return
	}
	s.notifier.SendToUser(tx.UserID, hub.RewardStatusChanged(tx.TxID, string(tx.Status)))
}

func randomHex(n int) string {
	buf := make([]byte, n)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}
