package action

import (
	"errors"
	"fmt"
)

// Sentinel errors for conditions that are always the same regardless of
// context, mirroring the teacher's sentinel-error-plus-structured-type split.
var (
	// ErrCancelled indicates the execution-wide cancellation handle fired.
	ErrCancelled = errors.New("execution cancelled")

	// ErrMaxIterations indicates the iteration controller exceeded its
	// configured iteration budget without reaching a final response.
	ErrMaxIterations = errors.New("max iterations exceeded")

	// ErrMaxExecutionTime indicates total wall-clock time exceeded
	// max_execution_time_ms.
	ErrMaxExecutionTime = errors.New("max execution time exceeded")

	// ErrGraphTooLarge indicates the pending action queue overflowed its
	// configured bound (spec §5, "Resource limits").
	ErrGraphTooLarge = errors.New("action graph too large")
)

// ValidationSubkind enumerates the defects C2 can detect while building a
// graph from one iteration's parsed actions.
type ValidationSubkind string

const (
	SubkindDuplicateID             ValidationSubkind = "duplicate_id"
	SubkindDanglingDependency      ValidationSubkind = "dangling_dependency"
	SubkindCycle                   ValidationSubkind = "cycle"
	SubkindDependsOnFireAndForget  ValidationSubkind = "depends_on_fire_and_forget"
	SubkindDuplicateOutputKey      ValidationSubkind = "duplicate_output_key"
	SubkindGraphTooLarge           ValidationSubkind = "graph_too_large"
	// SubkindSchemaMismatch is not named in spec.md §4.2's enumerated defect
	// list; it backs the optional per-action parameter schema validation
	// SPEC_FULL.md adds for internal action targets. See DESIGN.md.
	SubkindSchemaMismatch ValidationSubkind = "schema_mismatch"
)

// ValidationError reports a fatal defect found while building an Action
// Graph. It is fatal for the iteration that produced it: the iteration
// controller emits execution_failed and stops without launching any action.
type ValidationError struct {
	Subkind ValidationSubkind
	// IDs names the actions implicated in the defect — the duplicate ids,
	// the missing dependency ids, the cycle's participants, or the pair of
	// actions involved in a duplicate output_key or a fire_and_forget
	// dependency.
	IDs []string
	Msg string
}

func (e *ValidationError) Error() string {
	if e.Msg != "" {
		return fmt.Sprintf("validation: %s: %s %v", e.Subkind, e.Msg, e.IDs)
	}
	return fmt.Sprintf("validation: %s %v", e.Subkind, e.IDs)
}

// NewValidationError builds a ValidationError for the given subkind.
func NewValidationError(subkind ValidationSubkind, ids []string, msg string) *ValidationError {
	return &ValidationError{Subkind: subkind, IDs: ids, Msg: msg}
}

// ActionError is the terminal failure of a single action after all retries
// have been exhausted. It is isolated by default: only the failing action's
// transitive dependents are affected (marked skipped, or run with a null
// input when skip_on_error is set).
type ActionError struct {
	ActionID string
	Kind     ErrorKind
	Message  string
	Attempts int
	Cause    error
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("action %s failed (%s, attempt %d): %s", e.ActionID, e.Kind, e.Attempts, e.Message)
}

func (e *ActionError) Unwrap() error { return e.Cause }

// AsResultError converts an ActionError to the ResultError stored on its
// ActionResult.
func (e *ActionError) AsResultError() *ResultError {
	return &ResultError{Kind: e.Kind, Message: e.Message}
}

// InternalError marks an invariant violation in the core's own code (not a
// user or collaborator mistake). It is always fatal to the whole execution.
type InternalError struct {
	Msg   string
	Cause error
}

func (e *InternalError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("internal: %s: %v", e.Msg, e.Cause)
	}
	return fmt.Sprintf("internal: %s", e.Msg)
}

func (e *InternalError) Unwrap() error { return e.Cause }

// IsRetryable reports whether err carries a retryable signal. The core never
// decides retryability itself (spec §9 Open Question 5): it trusts the
// boolean flag a Callable invocation returns, surfaced here as a CallError.
func IsRetryable(err error) bool {
	var ce *CallError
	if errors.As(err, &ce) {
		return ce.Retryable
	}
	return false
}

// CallError wraps the structured failure a Callable invocation reports back
// to the scheduler (spec §6 "Callable interface"): the collaborator, not the
// core, classifies whether the failure is worth retrying.
type CallError struct {
	Kind      ErrorKind
	Message   string
	Retryable bool
}

func (e *CallError) Error() string { return e.Message }
