package scheduler

import (
	"context"
	"encoding/json"

	"github.com/cortex-prime/agentcore/pkg/action"
)

// Callable is the external contract every non-internal Action is dispatched
// through (spec.md §6): one function covering tools, agents, relics,
// workflows, and llm sub-calls alike. The core does not care how each kind
// is actually implemented — it only ever calls this one method.
type Callable interface {
	Invoke(ctx context.Context, kind action.Kind, target string, parameters json.RawMessage) CallResult
}

// CallResult is the structured reply a Callable returns. Retryable is the
// caller's own classification (spec §9 Open Question 5: the core trusts the
// flag rather than deciding retryability itself).
type CallResult struct {
	Output    json.RawMessage
	Success   bool
	Retryable bool
	Error     *action.ResultError
}

// CallableFunc adapts a plain function to Callable.
type CallableFunc func(ctx context.Context, kind action.Kind, target string, parameters json.RawMessage) CallResult

// Invoke implements Callable.
func (f CallableFunc) Invoke(ctx context.Context, kind action.Kind, target string, parameters json.RawMessage) CallResult {
	return f(ctx, kind, target, parameters)
}
