// Package quest defines the quest catalog and quest instance domain model.
package quest

import (
	"strings"
	"time"
)

// State is the lifecycle state of a quest instance.
type State string

const (
	StateStarted   State = "started"
	StateOngoing   State = "ongoing"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

// Active reports whether the instance still accepts actions.
func (s State) Active() bool {
	return s == StateStarted || s == StateOngoing
}

// Terminal reports whether the state can no longer change.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// Definition is an immutable quest description loaded at catalog startup.
type Definition struct {
	ID          string    `json:"id" yaml:"id"`
	Slug        string    `json:"slug" yaml:"slug"`
	Title       string    `json:"title" yaml:"title"`
	Description string    `json:"description,omitempty" yaml:"description"`
	Difficulty  int       `json:"difficulty" yaml:"difficulty"`
	Rules       Rules     `json:"rules" yaml:"rules"`
	Reward      Reward    `json:"reward" yaml:"reward"`
	Active      bool      `json:"active" yaml:"active"`
	CreatedAt   time.Time `json:"created_at" yaml:"-"`
}

// Rules is the deterministic rule set a quest validates actions against.
// Type keys the completion predicate; Weights scale per-action-kind scores.
type Rules struct {
	Type        string             `json:"type" yaml:"type"`
	Pair        string             `json:"pair,omitempty" yaml:"pair"`
	MinAmount   float64            `json:"min_amount,omitempty" yaml:"min_amount"`
	MaxAttempts int                `json:"max_attempts,omitempty" yaml:"max_attempts"`
	Weights     map[string]float64 `json:"weights,omitempty" yaml:"weights"`
}

// Reward is the metadata minted when a quest instance is claimed.
type Reward struct {
	XP      int    `json:"xp" yaml:"xp"`
	BadgeID string `json:"badge_id" yaml:"badge_id"`
}

// Instance is one attempt by one user at one quest. The server seed is fixed
// at creation so any randomized validation stays reproducible and auditable.
type Instance struct {
	ID          string                 `json:"id"`
	UserID      string                 `json:"user_id"`
	QuestID     string                 `json:"quest_id"`
	State       State                  `json:"state"`
	Progress    map[string]interface{} `json:"progress"`
	Score       float64                `json:"score"`
	ServerSeed  string                 `json:"server_seed"`
	CreatedAt   time.Time              `json:"created_at"`
	LastUpdated time.Time              `json:"last_updated"`
}

// ActionKind is the closed set of recognised quest actions.
type ActionKind int

const (
	ActionUnknown ActionKind = iota
	ActionProvideLiquidity
	ActionPredictPrice
	ActionSubmitTxProof
)

// String returns the wire name of the action kind.
func (k ActionKind) String() string {
	switch k {
	case ActionProvideLiquidity:
		return "provide_liquidity"
	case ActionPredictPrice:
		return "predict_price"
	case ActionSubmitTxProof:
		return "submit_tx_proof"
	default:
		return "unknown"
	}
}

// actionKinds maps wire names to kinds. Legacy names from earlier clients are
// kept as aliases.
var actionKinds = map[string]ActionKind{
	"provide_liquidity":      ActionProvideLiquidity,
	"simulate_add_liquidity": ActionProvideLiquidity,
	"predict_price":          ActionPredictPrice,
	"predict_price_move":     ActionPredictPrice,
	"submit_tx_proof":        ActionSubmitTxProof,
}

// KindOf resolves a submitted action type to its kind, returning
// ActionUnknown for anything outside the closed set.
func KindOf(actionType string) ActionKind {
	if kind, ok := actionKinds[strings.ToLower(strings.TrimSpace(actionType))]; ok {
		return kind
	}
	return ActionUnknown
}

// Action is a single submitted quest action.
type Action struct {
	Type    string                 `json:"type"`
	Payload map[string]interface{} `json:"payload"`
}

// Kind resolves the action's declared type.
func (a Action) Kind() ActionKind { return KindOf(a.Type) }
