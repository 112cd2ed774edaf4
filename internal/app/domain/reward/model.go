// Package reward defines the on-chain reward settlement domain model.
package reward

import "time"

// Status is the lifecycle state of a reward transaction.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusFailed    Status = "failed"
)

// Terminal reports whether the transaction can no longer change.
func (s Status) Terminal() bool {
	return s == StatusConfirmed || s == StatusFailed
}

// Claimed reports whether the transaction blocks a new preparation for the
// same quest instance. A failed claim may be prepared again.
func (s Status) Claimed() bool {
	return s == StatusPending || s == StatusConfirmed
}

// Transaction tracks one user's claim of an on-chain reward.
type Transaction struct {
	ID              string    `json:"id"`
	UserID          string    `json:"user_id"`
	QuestID         string    `json:"quest_id"`
	QuestInstanceID string    `json:"quest_instance_id"`
	TxID            string    `json:"txid,omitempty"`
	Status          Status    `json:"status"`
	Detail          string    `json:"-"`
	XPCredited      bool      `json:"-"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// ClaimPayload is the unsigned transaction a wallet signs to mint a badge.
type ClaimPayload struct {
	PayloadID string        `json:"payload_id"`
	Contract  string        `json:"contract"`
	Function  string        `json:"function"`
	Args      []interface{} `json:"args"`
	Fee       int64         `json:"fee"`
	Nonce     int64         `json:"nonce"`
}

// ChainStatus is the ledger's view of a broadcast transaction.
type ChainStatus string

const (
	ChainConfirmed ChainStatus = "confirmed"
	ChainPending   ChainStatus = "pending"
	ChainFailed    ChainStatus = "failed"
)
