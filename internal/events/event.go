// Package events defines the ExecutionEvent tagged union (spec.md §3) and the
// sinks that deliver it to a single subscriber per execution, mirroring the
// teacher's pkg/models/agent_event.go and internal/agent/event_sink.go.
package events

import (
	"time"

	"github.com/cortex-prime/agentcore/pkg/action"
)

// Kind enumerates every ExecutionEvent variant named in spec.md §3.
type Kind string

const (
	KindExecutionStarted  Kind = "execution_started"
	KindIterationStarted  Kind = "iteration_started"
	KindThoughtStart      Kind = "thought_start"
	KindThoughtChunk      Kind = "thought_chunk"
	KindThoughtEnd        Kind = "thought_end"
	KindActionParsed      Kind = "action_parsed"
	KindActionStarted     Kind = "action_started"
	KindActionCompleted   Kind = "action_completed"
	KindActionFailed      Kind = "action_failed"
	KindResponseStart     Kind = "response_start"
	KindResponseChunk     Kind = "response_chunk"
	KindResponseEnd       Kind = "response_end"
	KindIterationComplete Kind = "iteration_completed"
	KindExecutionComplete Kind = "execution_completed"
	KindExecutionFailed   Kind = "execution_failed"
	KindWarning           Kind = "warning"
	KindError             Kind = "error"
)

// droppable reports whether a Kind may be coalesced under sink backpressure.
// Lifecycle events are never dropped (spec §4.5); only the high-volume
// streaming chunk events are.
func (k Kind) droppable() bool {
	switch k {
	case KindThoughtChunk, KindResponseChunk:
		return true
	default:
		return false
	}
}

// ThoughtPayload carries thought_start/chunk/end data.
type ThoughtPayload struct {
	Text string `json:"text,omitempty"`
}

// ActionPayload carries action_parsed/started/completed/failed data.
type ActionPayload struct {
	ActionID string          `json:"action_id"`
	Kind     action.Kind     `json:"kind,omitempty"`
	Target   string          `json:"target,omitempty"`
	Mode     action.Mode     `json:"mode,omitempty"`
	Status   action.Status   `json:"status,omitempty"`
	Output   interface{}     `json:"output,omitempty"`
	Error    *action.ResultError `json:"error,omitempty"`
	Attempts int             `json:"attempts,omitempty"`
}

// ResponsePayload carries response_start/chunk/end data.
type ResponsePayload struct {
	Text    string `json:"text,omitempty"`
	IsFinal bool   `json:"is_final,omitempty"`
}

// IterationPayload carries iteration_started/completed data.
type IterationPayload struct {
	Iteration    int  `json:"iteration"`
	ActionsTotal int  `json:"actions_total,omitempty"`
	NoProgress   bool `json:"no_progress,omitempty"`
}

// ExecutionSummaryPayload carries execution_completed/execution_failed data.
type ExecutionSummaryPayload struct {
	Iterations      int    `json:"iterations"`
	Failures        int    `json:"failures,omitempty"`
	Skipped         int    `json:"skipped,omitempty"`
	Kind            string `json:"kind,omitempty"`
	FirstFailingID  string `json:"first_failing_id,omitempty"`
	Cancelled       bool   `json:"cancelled,omitempty"`
}

// WarningPayload carries warning events, such as the malformed-JSON-body and
// duplicate_response cases. The resolver reports missing $name references
// only to its MissingReporter; nothing in this module turns those reports
// into warning events.
type WarningPayload struct {
	Reason string `json:"reason"`
	Detail string `json:"detail,omitempty"`
}

// ErrorPayload carries standalone error events, e.g. a protocol violation
// (nested <action> tags) that does not abort the outer parser.
type ErrorPayload struct {
	Reason string `json:"reason"`
	Detail string `json:"detail,omitempty"`
}

// Event is the ExecutionEvent tagged union. At most one payload pointer is
// non-nil, selected by Kind (execution_started, thought_start/end and
// response_start carry none) — mirrors the teacher's AgentEvent struct, which
// uses the same discriminated-pointer layout rather than an interface{} or a
// type switch on an embedded json.RawMessage.
type Event struct {
	Seq         uint64    `json:"seq"`
	Timestamp   time.Time `json:"ts"`
	ExecutionID string    `json:"execution_id"`
	Iteration   int       `json:"iteration"`
	Kind        Kind      `json:"kind"`

	Thought   *ThoughtPayload          `json:"thought,omitempty"`
	Action    *ActionPayload           `json:"action,omitempty"`
	Response  *ResponsePayload         `json:"response,omitempty"`
	IterInfo  *IterationPayload        `json:"iteration_info,omitempty"`
	Summary   *ExecutionSummaryPayload `json:"summary,omitempty"`
	Warning   *WarningPayload          `json:"warning,omitempty"`
	ErrorInfo *ErrorPayload            `json:"error_info,omitempty"`
}

// Droppable reports whether this event's Kind may be coalesced under
// backpressure rather than delivered verbatim.
func (e Event) Droppable() bool { return e.Kind.droppable() }
