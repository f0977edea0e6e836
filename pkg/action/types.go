// Package action defines the data model shared by the parser, graph,
// resolver, and scheduler: the declarative Action a stream produces, the
// ActionResult a scheduler returns, and the result store that binds them
// together across iterations.
package action

import (
	"encoding/json"
	"time"
)

// Kind identifies what a callable Action invokes.
type Kind string

const (
	KindTool     Kind = "tool"
	KindAgent    Kind = "agent"
	KindRelic    Kind = "relic"
	KindWorkflow Kind = "workflow"
	KindLLM      Kind = "llm"
	KindInternal Kind = "internal"
)

// Mode controls how the scheduler dispatches and waits on an Action.
type Mode string

const (
	ModeSync          Mode = "sync"
	ModeAsync         Mode = "async"
	ModeFireAndForget Mode = "fire_and_forget"
)

// Backoff selects the retry delay growth curve.
type Backoff string

const (
	BackoffNone        Backoff = "none"
	BackoffLinear      Backoff = "linear"
	BackoffExponential Backoff = "exponential"
)

// Factor returns the backoff multiplier base: 1 for linear (constant delay
// per attempt number), 2 for exponential.
func (b Backoff) Factor() float64 {
	switch b {
	case BackoffExponential:
		return 2
	case BackoffLinear:
		return 1
	default:
		return 0
	}
}

// Retry configures per-action retry behavior on transient failure.
type Retry struct {
	MaxAttempts    int     `yaml:"max_attempts" json:"max_attempts"`
	Backoff        Backoff `yaml:"backoff" json:"backoff"`
	InitialDelayMS int     `yaml:"initial_delay_ms" json:"initial_delay_ms"`
	MaxDelayMS     int     `yaml:"max_delay_ms" json:"max_delay_ms"`
}

// DefaultRetry mirrors the Configuration default_retry in spec.md §6.
func DefaultRetry() Retry {
	return Retry{
		MaxAttempts:    1,
		Backoff:        BackoffNone,
		InitialDelayMS: 1000,
		MaxDelayMS:     60_000,
	}
}

// Action is a declarative unit of work parsed from one LLM response.
type Action struct {
	ID          string            `json:"id"`
	Kind        Kind              `json:"kind"`
	Mode        Mode              `json:"mode"`
	Target      string            `json:"target"`
	Parameters  json.RawMessage   `json:"parameters,omitempty"`
	DependsOn   []string          `json:"depends_on,omitempty"`
	OutputKey   string            `json:"output_key,omitempty"`
	TimeoutMS   int               `json:"timeout_ms,omitempty"`
	Retry       Retry             `json:"retry"`
	SkipOnError bool              `json:"skip_on_error,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// Status is the terminal (or pending) state of an executed Action.
type Status string

const (
	StatusPending   Status = "pending"
	StatusReady     Status = "ready"
	StatusRunning   Status = "running"
	StatusSuccess   Status = "success"
	StatusError     Status = "error"
	StatusSkipped   Status = "skipped"
	StatusTimeout   Status = "timeout"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether the status represents a final ActionResult state.
func (s Status) Terminal() bool {
	switch s {
	case StatusSuccess, StatusError, StatusSkipped, StatusTimeout, StatusCancelled:
		return true
	default:
		return false
	}
}

// ErrorKind classifies why a terminal ActionResult was not a success.
type ErrorKind string

const (
	ErrorKindNone      ErrorKind = ""
	ErrorKindTransient ErrorKind = "transient"
	ErrorKindTimeout   ErrorKind = "timeout"
	ErrorKindCancelled ErrorKind = "cancelled"
	ErrorKindFatal     ErrorKind = "fatal"
)

// ResultError carries the structured failure detail of an ActionResult.
type ResultError struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

// Result is produced exactly once by the scheduler for each Action it
// dispatches, and is never mutated afterward.
type Result struct {
	ActionID   string          `json:"action_id"`
	Status     Status          `json:"status"`
	Output     json.RawMessage `json:"output,omitempty"`
	Error      *ResultError    `json:"error,omitempty"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
	Attempts   int             `json:"attempts"`
}

// ParsedResponse is the post-substitution text of a <response> construct.
type ParsedResponse struct {
	Text    string `json:"text"`
	IsFinal bool   `json:"is_final"`
}
