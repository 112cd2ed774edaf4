// Package postgres implements the storage interfaces on PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/defidojo/dojo-backend/internal/app/domain/aihint"
	"github.com/defidojo/dojo-backend/internal/app/domain/quest"
	"github.com/defidojo/dojo-backend/internal/app/domain/reward"
	"github.com/defidojo/dojo-backend/internal/app/domain/user"
	"github.com/defidojo/dojo-backend/internal/app/storage"
)

// Store implements the storage interfaces backed by PostgreSQL.
type Store struct {
	db *sqlx.DB
}

var _ storage.UserStore = (*Store)(nil)
var _ storage.InstanceStore = (*Store)(nil)
var _ storage.HintJobStore = (*Store)(nil)
var _ storage.RewardStore = (*Store)(nil)

// New creates a Store using the provided database handle.
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Connect opens and pings a database connection.
func Connect(dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	return db, nil
}

func translate(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return storage.ErrNotFound
	}
	return err
}

// --- UserStore --------------------------------------------------------------

func (s *Store) CreateUser(ctx context.Context, u user.User) (user.User, error) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO dojo_users (id, wallet_address, username, xp, badges, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, u.ID, u.WalletAddress, u.Username, u.XP, pq.Array(u.Badges), u.CreatedAt, u.UpdatedAt)
	if err != nil {
		return user.User{}, err
	}
	return u, nil
}

func (s *Store) UpdateUser(ctx context.Context, u user.User) (user.User, error) {
	u.UpdatedAt = time.Now().UTC()

	result, err := s.db.ExecContext(ctx, `
		UPDATE dojo_users
		SET wallet_address = $2, username = $3, xp = $4, badges = $5, updated_at = $6
		WHERE id = $1
	`, u.ID, u.WalletAddress, u.Username, u.XP, pq.Array(u.Badges), u.UpdatedAt)
	if err != nil {
		return user.User{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return user.User{}, storage.ErrNotFound
	}
	return u, nil
}

func (s *Store) GetUser(ctx context.Context, id string) (user.User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx, `
		SELECT id, wallet_address, username, xp, badges, created_at, updated_at
		FROM dojo_users
		WHERE id = $1
	`, id))
}

func (s *Store) GetUserByWallet(ctx context.Context, wallet string) (user.User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx, `
		SELECT id, wallet_address, username, xp, badges, created_at, updated_at
		FROM dojo_users
		WHERE wallet_address = $1
	`, wallet))
}

func (s *Store) scanUser(row *sql.Row) (user.User, error) {
	var u user.User
	var username sql.NullString
	if err := row.Scan(&u.ID, &u.WalletAddress, &username, &u.XP, pq.Array(&u.Badges), &u.CreatedAt, &u.UpdatedAt); err != nil {
		return user.User{}, translate(err)
	}
	u.Username = username.String
	return u, nil
}

// --- InstanceStore ----------------------------------------------------------

func (s *Store) CreateInstance(ctx context.Context, inst quest.Instance) (quest.Instance, error) {
	if inst.ID == "" {
		inst.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	inst.CreatedAt = now
	inst.LastUpdated = now

	progressJSON, err := json.Marshal(inst.Progress)
	if err != nil {
		return quest.Instance{}, err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO dojo_quest_instances (id, user_id, quest_id, state, progress, score, server_seed, created_at, last_updated)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, inst.ID, inst.UserID, inst.QuestID, inst.State, progressJSON, inst.Score, inst.ServerSeed, inst.CreatedAt, inst.LastUpdated)
	if err != nil {
		return quest.Instance{}, err
	}
	return inst, nil
}

func (s *Store) UpdateInstance(ctx context.Context, inst quest.Instance) (quest.Instance, error) {
	inst.LastUpdated = time.Now().UTC()

	progressJSON, err := json.Marshal(inst.Progress)
	if err != nil {
		return quest.Instance{}, err
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE dojo_quest_instances
		SET state = $2, progress = $3, score = $4, last_updated = $5
		WHERE id = $1
	`, inst.ID, inst.State, progressJSON, inst.Score, inst.LastUpdated)
	if err != nil {
		return quest.Instance{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return quest.Instance{}, storage.ErrNotFound
	}
	return inst, nil
}

const instanceColumns = `id, user_id, quest_id, state, progress, score, server_seed, created_at, last_updated`

func (s *Store) GetInstance(ctx context.Context, id string) (quest.Instance, error) {
	return s.scanInstance(s.db.QueryRowContext(ctx, `
		SELECT `+instanceColumns+`
		FROM dojo_quest_instances
		WHERE id = $1
	`, id))
}

func (s *Store) GetActiveInstance(ctx context.Context, userID, questID string) (quest.Instance, error) {
	return s.scanInstance(s.db.QueryRowContext(ctx, `
		SELECT `+instanceColumns+`
		FROM dojo_quest_instances
		WHERE user_id = $1 AND quest_id = $2 AND state IN ('started', 'ongoing')
		ORDER BY created_at DESC
		LIMIT 1
	`, userID, questID))
}

func (s *Store) ListInstances(ctx context.Context, userID string) ([]quest.Instance, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+instanceColumns+`
		FROM dojo_quest_instances
		WHERE user_id = $1
		ORDER BY created_at
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []quest.Instance
	for rows.Next() {
		inst, err := s.scanInstance(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, inst)
	}
	return result, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (s *Store) scanInstance(row rowScanner) (quest.Instance, error) {
	var inst quest.Instance
	var progressRaw []byte
	err := row.Scan(&inst.ID, &inst.UserID, &inst.QuestID, &inst.State, &progressRaw,
		&inst.Score, &inst.ServerSeed, &inst.CreatedAt, &inst.LastUpdated)
	if err != nil {
		return quest.Instance{}, translate(err)
	}
	if len(progressRaw) > 0 {
		_ = json.Unmarshal(progressRaw, &inst.Progress)
	}
	return inst, nil
}

// --- HintJobStore -----------------------------------------------------------

func (s *Store) CreateHintJob(ctx context.Context, job aihint.Job) (aihint.Job, error) {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	job.CreatedAt = now
	job.UpdatedAt = now

	contextJSON, err := json.Marshal(job.Context)
	if err != nil {
		return aihint.Job{}, err
	}
	resultJSON, err := marshalNullable(job.Result)
	if err != nil {
		return aihint.Job{}, err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO dojo_hint_jobs (id, user_id, quest_instance_id, context, prompt, status, result, error_detail, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, job.ID, job.UserID, job.QuestInstanceID, contextJSON, job.Prompt, job.Status, resultJSON, job.ErrorDetail, job.CreatedAt, job.UpdatedAt)
	if err != nil {
		return aihint.Job{}, err
	}
	return job, nil
}

func (s *Store) UpdateHintJob(ctx context.Context, job aihint.Job) (aihint.Job, error) {
	job.UpdatedAt = time.Now().UTC()

	resultJSON, err := marshalNullable(job.Result)
	if err != nil {
		return aihint.Job{}, err
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE dojo_hint_jobs
		SET status = $2, result = $3, error_detail = $4, updated_at = $5
		WHERE id = $1
	`, job.ID, job.Status, resultJSON, job.ErrorDetail, job.UpdatedAt)
	if err != nil {
		return aihint.Job{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return aihint.Job{}, storage.ErrNotFound
	}
	return job, nil
}

func (s *Store) GetHintJob(ctx context.Context, id string) (aihint.Job, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, quest_instance_id, context, prompt, status, result, error_detail, created_at, updated_at
		FROM dojo_hint_jobs
		WHERE id = $1
	`, id)

	var (
		job        aihint.Job
		contextRaw []byte
		resultRaw  []byte
	)
	err := row.Scan(&job.ID, &job.UserID, &job.QuestInstanceID, &contextRaw, &job.Prompt,
		&job.Status, &resultRaw, &job.ErrorDetail, &job.CreatedAt, &job.UpdatedAt)
	if err != nil {
		return aihint.Job{}, translate(err)
	}
	if len(contextRaw) > 0 {
		_ = json.Unmarshal(contextRaw, &job.Context)
	}
	if len(resultRaw) > 0 {
		var res aihint.Result
		if err := json.Unmarshal(resultRaw, &res); err == nil {
			job.Result = &res
		}
	}
	return job, nil
}

func marshalNullable(v interface{}) (interface{}, error) {
	if v == nil {
		return nil, nil
	}
	if res, ok := v.(*aihint.Result); ok && res == nil {
		return nil, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return raw, nil
}

// --- RewardStore ------------------------------------------------------------

func (s *Store) CreateRewardTransaction(ctx context.Context, tx reward.Transaction) (reward.Transaction, error) {
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	tx.CreatedAt = now
	tx.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO dojo_reward_transactions (id, user_id, quest_id, quest_instance_id, txid, status, detail, xp_credited, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, tx.ID, tx.UserID, tx.QuestID, tx.QuestInstanceID, tx.TxID, tx.Status, tx.Detail, tx.XPCredited, tx.CreatedAt, tx.UpdatedAt)
	if err != nil {
		return reward.Transaction{}, err
	}
	return tx, nil
}

func (s *Store) UpdateRewardTransaction(ctx context.Context, tx reward.Transaction) (reward.Transaction, error) {
	tx.UpdatedAt = time.Now().UTC()

	result, err := s.db.ExecContext(ctx, `
		UPDATE dojo_reward_transactions
		SET txid = $2, status = $3, detail = $4, xp_credited = $5, updated_at = $6
		WHERE id = $1
	`, tx.ID, tx.TxID, tx.Status, tx.Detail, tx.XPCredited, tx.UpdatedAt)
	if err != nil {
		return reward.Transaction{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return reward.Transaction{}, storage.ErrNotFound
	}
	return tx, nil
}

const rewardColumns = `id, user_id, quest_id, quest_instance_id, txid, status, detail, xp_credited, created_at, updated_at`

func (s *Store) GetRewardTransaction(ctx context.Context, id string) (reward.Transaction, error) {
	return s.scanReward(s.db.QueryRowContext(ctx, `
		SELECT `+rewardColumns+`
		FROM dojo_reward_transactions
		WHERE id = $1
	`, id))
}

func (s *Store) GetRewardTransactionByTxID(ctx context.Context, txid string) (reward.Transaction, error) {
	return s.scanReward(s.db.QueryRowContext(ctx, `
		SELECT `+rewardColumns+`
		FROM dojo_reward_transactions
		WHERE txid = $1
	`, txid))
}

func (s *Store) GetClaimedRewardByInstance(ctx context.Context, instanceID string) (reward.Transaction, error) {
	return s.scanReward(s.db.QueryRowContext(ctx, `
		SELECT `+rewardColumns+`
		FROM dojo_reward_transactions
		WHERE quest_instance_id = $1 AND status IN ('pending', 'confirmed')
		ORDER BY created_at DESC
		LIMIT 1
	`, instanceID))
}

func (s *Store) ListPendingRewardTransactions(ctx context.Context) ([]reward.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+rewardColumns+`
		FROM dojo_reward_transactions
		WHERE status = 'pending'
		ORDER BY created_at
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []reward.Transaction
	for rows.Next() {
		tx, err := s.scanReward(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, tx)
	}
	return result, rows.Err()
}

func (s *Store) scanReward(row rowScanner) (reward.Transaction, error) {
	var tx reward.Transaction
	var txid sql.NullString
	err := row.Scan(&tx.ID, &tx.UserID, &tx.QuestID, &tx.QuestInstanceID, &txid,
		&tx.Status, &tx.Detail, &tx.XPCredited, &tx.CreatedAt, &tx.UpdatedAt)
	if err != nil {
		return reward.Transaction{}, translate(err)
	}
	tx.TxID = txid.String
	return tx, nil
}
