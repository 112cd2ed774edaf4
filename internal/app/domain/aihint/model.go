// Package aihint defines the asynchronous hint job domain model.
package aihint

import "time"

// Status is the lifecycle state of a hint job.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Terminal reports whether the job can no longer change.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Result is the structured coaching output of a completed job.
type Result struct {
	Hint  string `json:"hint"`
	Risk  string `json:"risk"`
	Param string `json:"param"`
}

// Job is one asynchronous hint request. It is mutated exactly once by the
// worker that resolves it and is immutable thereafter.
type Job struct {
	ID              string                 `json:"id"`
	UserID          string                 `json:"user_id"`
	QuestInstanceID string                 `json:"quest_instance_id"`
	Context         map[string]interface{} `json:"context"`
	Prompt          string                 `json:"prompt,omitempty"`
	Status          Status                 `json:"status"`
	Result          *Result                `json:"result,omitempty"`
	ErrorDetail     string                 `json:"-"`
	CreatedAt       time.Time              `json:"created_at"`
	UpdatedAt       time.Time              `json:"updated_at"`
}

// ClientResult is the result surfaced to callers. Failed jobs always present
// the fixed friendly fallback; the real cause stays in ErrorDetail.
func (j Job) ClientResult() *Result {
	switch j.Status {
	case StatusCompleted:
		return j.Result
	case StatusFailed:
		return &Result{Hint: FallbackHint, Risk: DefaultRisk, Param: DefaultParam}
	default:
		return nil
	}
}

// Client-facing fallbacks. FallbackHint is the fixed friendly message shown
// when the inference service itself fails; the internal cause stays in
// ErrorDetail.
const (
	FallbackHint = "I'm having trouble connecting right now. Try analyzing the market conditions and your current position."
	DefaultRisk  = "medium"
	DefaultParam = "slippage: 0.5%"
)
