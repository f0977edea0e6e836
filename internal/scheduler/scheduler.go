// Package scheduler implements the DAG Scheduler (C4): a dependency-driven,
// not wave-locked, concurrent executor honoring depends_on, dispatch modes,
// per-action retry/timeout, and a global max_parallel cap (spec.md §4.4).
// An action is launched as soon as its dependencies complete; the wave
// numbers computed by the graph package are not used to order launches.
package scheduler

import (
	"context"
	"fmt"
	"math"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cortex-prime/agentcore/internal/events"
	"github.com/cortex-prime/agentcore/internal/graph"
	"github.com/cortex-prime/agentcore/internal/resolve"
	"github.com/cortex-prime/agentcore/internal/telemetry"
	"github.com/cortex-prime/agentcore/pkg/action"
)

// Scheduler executes one Action Graph to completion.
type Scheduler struct {
	callable          Callable
	store             *action.Store
	feeds             *resolve.Registry
	resolver          *resolve.Resolver
	metrics           *telemetry.Metrics
	tracer            *telemetry.Tracer
	defaultTimeoutMS  int

	goalAchieved atomic.Bool
}

// Deps bundles the Scheduler's collaborators, all shared for the lifetime
// of one execution (all iterations).
type Deps struct {
	Callable Callable
	Store    *action.Store
	Feeds    *resolve.Registry
	Resolver *resolve.Resolver
	Metrics  *telemetry.Metrics
	Tracer   *telemetry.Tracer
	// DefaultActionTimeoutMS backs an Action's unset timeout_ms (spec §3
	// "timeout_ms (optional, default from config)"); a zero value falls
	// back to 30s.
	DefaultActionTimeoutMS int
}

// New builds a Scheduler. Metrics and Tracer may be nil; a nil Metrics
// disables collection, a nil Tracer uses otel's no-op tracer.
func New(d Deps) *Scheduler {
	if d.Tracer == nil {
		d.Tracer = telemetry.NewTracer()
	}
	return &Scheduler{
		callable:         d.Callable,
		store:            d.Store,
		feeds:            d.Feeds,
		resolver:         d.Resolver,
		metrics:          d.Metrics,
		tracer:           d.Tracer,
		defaultTimeoutMS: d.DefaultActionTimeoutMS,
	}
}

// GoalAchieved reports whether a signal_goal_achieved internal action has
// fired at any point during this Scheduler's lifetime (spec §4.5.7a).
func (s *Scheduler) GoalAchieved() bool { return s.goalAchieved.Load() }

// Summary is what Execute returns once every action has reached a terminal
// state (or the execution was cancelled).
type Summary struct {
	Results        map[string]action.Result
	Failures       int
	Skipped        int
	FirstFailingID string
	Cancelled      bool
}

type nodeState struct {
	node      *graph.Node
	mu        sync.Mutex
	remaining int
	resolved  bool // true once this node has a terminal status recorded
	status    action.Status
}

// Execute runs g to completion against store/resolver, emitting
// action_started/completed/failed via em. It honors ctx for execution-wide
// cancellation (spec §4.4 "Cancellation").
func (s *Scheduler) Execute(ctx context.Context, g *graph.Graph, maxParallel int, em *events.Emitter) Summary {
	ids := g.Order()
	summary := Summary{Results: make(map[string]action.Result, len(ids))}
	if len(ids) == 0 {
		return summary
	}
	if maxParallel <= 0 {
		maxParallel = 5
	}

	states := make(map[string]*nodeState, len(ids))
	for _, id := range ids {
		node, _ := g.Node(id)
		states[id] = &nodeState{node: node, remaining: len(node.Action.DependsOn)}
	}

	var summaryMu sync.Mutex
	var wg sync.WaitGroup
	sem := make(chan struct{}, maxParallel)

	// Every non-fire-and-forget node is accounted for up front, whether it
	// ends up dispatched or cascaded straight to skipped: fire_and_forget
	// nodes are never awaited (spec §4.4) so they never enter the count.
	for _, id := range ids {
		if states[id].node.Action.Mode != action.ModeFireAndForget {
			wg.Add(1)
		}
	}

	var launch func(id string)

	markTerminal := func(id string, res action.Result) bool {
		st := states[id]
		st.mu.Lock()
		if st.resolved {
			st.mu.Unlock()
			return false
		}
		st.resolved = true
		st.status = res.Status
		st.mu.Unlock()

		summaryMu.Lock()
		summary.Results[id] = res
		switch res.Status {
		case action.StatusError, action.StatusTimeout, action.StatusCancelled:
			summary.Failures++
			if summary.FirstFailingID == "" {
				summary.FirstFailingID = id
			}
		case action.StatusSkipped:
			summary.Skipped++
		}
		summaryMu.Unlock()

		payload := events.ActionPayload{
			ActionID: id,
			Kind:     st.node.Action.Kind,
			Target:   st.node.Action.Target,
			Mode:     st.node.Action.Mode,
			Status:   res.Status,
			Attempts: res.Attempts,
		}
		if res.Error != nil {
			payload.Error = res.Error
		}
		switch res.Status {
		case action.StatusSuccess, action.StatusSkipped:
			em.ActionCompleted(payload)
		default:
			em.ActionFailed(payload)
		}
		return true
	}

	// propagateSkip cascades skip status to transitive dependents, per spec
	// §4.4's error propagation rule (unless the failing action opted into
	// skip_on_error). markTerminal's own check-and-set makes this safe to
	// call more than once for the same id. fire_and_forget dependents were
	// never wg.Add'd (they are launched, not tracked — spec §4.4), so a
	// cascaded "skipped" status is both meaningless and unsafe to account
	// for here: it must not touch markTerminal/wg, only keep walking the
	// dependency tree so any non-fire-and-forget descendants still get
	// skipped.
	var propagateSkip func(id string)
	propagateSkip = func(id string) {
		st := states[id]
		if st.node.Action.Mode == action.ModeFireAndForget {
			for _, depID := range st.node.Dependents {
				propagateSkip(depID)
			}
			return
		}
		applied := markTerminal(id, action.Result{
			ActionID:   id,
			Status:     action.StatusSkipped,
			StartedAt:  time.Now(),
			FinishedAt: time.Now(),
		})
		if !applied {
			return
		}
		wg.Done()
		for _, depID := range st.node.Dependents {
			propagateSkip(depID)
		}
	}

	finish := func(id string, res action.Result) {
		markTerminal(id, res)
		st := states[id]

		failed := res.Status == action.StatusError || res.Status == action.StatusTimeout || res.Status == action.StatusCancelled
		skipOnErr := failed && st.node.Action.SkipOnError
		if failed && skipOnErr {
			// Dependents are not skipped; they observe a null output for
			// this dependency (spec §4.4 "skip_on_error").
			s.store.Bind(id, st.node.Action.OutputKey, []byte("null"))
		}

		wg.Done()

		for _, depID := range st.node.Dependents {
			if failed && !skipOnErr {
				propagateSkip(depID)
				continue
			}
			depSt := states[depID]
			depSt.mu.Lock()
			depSt.remaining--
			ready := depSt.remaining == 0
			depSt.mu.Unlock()
			if ready {
				launch(depID)
			}
		}
	}

	launch = func(id string) {
		st := states[id]
		a := st.node.Action

		st.mu.Lock()
		already := st.resolved
		st.mu.Unlock()
		if already {
			// A sibling dependency's failure already cascaded a skip onto
			// this node before its own remaining-dependency count reached
			// zero; nothing left to launch.
			return
		}

		if a.Mode == action.ModeFireAndForget {
			// Launched, not tracked for completion, never waited upon
			// (spec §4.4). wg is not incremented for it at all, so it must
			// never reach finish/markTerminal — including when the
			// execution-wide context is already cancelled by the time this
			// node becomes ready: cancellation delivered to a
			// fire-and-forget action is best-effort (spec §5), not a
			// tracked terminal outcome, so this is a no-op return rather
			// than a cancelled dispatch.
			if ctx.Err() != nil {
				return
			}
			em.ActionStarted(events.ActionPayload{ActionID: id, Kind: a.Kind, Target: a.Target, Mode: a.Mode})
			go func() {
				sem <- struct{}{}
				defer func() { <-sem }()
				_ = s.runAction(ctx, a)
			}()
			return
		}

		if ctx.Err() != nil {
			finish(id, action.Result{
				ActionID: id, Status: action.StatusCancelled,
				Error:      &action.ResultError{Kind: action.ErrorKindCancelled, Message: "execution cancelled before dispatch"},
				StartedAt:  time.Now(), FinishedAt: time.Now(),
			})
			return
		}

		go func() {
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				finish(id, action.Result{
					ActionID: id, Status: action.StatusCancelled,
					Error:      &action.ResultError{Kind: action.ErrorKindCancelled, Message: "execution cancelled"},
					StartedAt:  time.Now(), FinishedAt: time.Now(),
				})
				return
			}
			defer func() { <-sem }()

			if s.metrics != nil {
				s.metrics.ActionsInFlight.Inc()
				defer s.metrics.ActionsInFlight.Dec()
			}
			em.ActionStarted(events.ActionPayload{ActionID: id, Kind: a.Kind, Target: a.Target, Mode: a.Mode})
			spanCtx, span := s.tracer.StartAction(ctx, string(a.Kind), a.Target, string(a.Mode))
			res := s.runAction(spanCtx, a)
			telemetry.EndAction(span, string(res.Status))
			if s.metrics != nil {
				s.metrics.ActionsLaunched.WithLabelValues(string(res.Status)).Inc()
				s.metrics.ActionDuration.WithLabelValues(string(a.Kind)).Observe(res.FinishedAt.Sub(res.StartedAt).Seconds())
				if res.Attempts > 1 {
					s.metrics.ActionsRetried.Add(float64(res.Attempts - 1))
				}
			}
			finish(id, res)
		}()
	}

	for _, id := range ids {
		if states[id].remaining == 0 {
			launch(id)
		}
	}

	wg.Wait()
	summary.Cancelled = ctx.Err() != nil
	return summary
}

// runAction dispatches a single non-fire-and-forget-agnostic action with
// retry and per-action timeout, mirroring the teacher's
// Execute/executeWithTimeout pairing in internal/agent/executor.go.
func (s *Scheduler) runAction(ctx context.Context, a action.Action) action.Result {
	started := time.Now()

	if a.Kind == action.KindInternal {
		resolved, err := s.resolver.RawBytes(a.Parameters)
		if err != nil {
			resolved = a.Parameters
		}
		out, err := s.dispatchInternal(a, resolved)
		finished := time.Now()
		if err != nil {
			return action.Result{
				ActionID: a.ID, Status: action.StatusError,
				Error:      &action.ResultError{Kind: action.ErrorKindFatal, Message: err.Error()},
				StartedAt:  started, FinishedAt: finished, Attempts: 1,
			}
		}
		s.store.Bind(a.ID, a.OutputKey, out)
		return action.Result{ActionID: a.ID, Status: action.StatusSuccess, Output: out, StartedAt: started, FinishedAt: finished, Attempts: 1}
	}

	timeoutMS := a.TimeoutMS
	retry := a.Retry
	if retry.MaxAttempts <= 0 {
		retry = action.DefaultRetry()
	}
	if timeoutMS <= 0 {
		timeoutMS = s.defaultTimeoutMS
	}
	timeout := time.Duration(timeoutMS) * time.Millisecond
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	var last CallResult
	var timedOut bool
	attempts := 0
	for {
		attempts++

		// Parameters are resolved at dispatch time, not parse time (spec
		// §4.4), so a dependent always reads the latest result even across
		// retries of its own dependencies.
		params, err := s.resolver.RawBytes(a.Parameters)
		if err != nil {
			params = a.Parameters
		}

		callCtx, cancel := context.WithTimeout(ctx, timeout)
		last = s.invokeSafely(callCtx, a, params)
		timedOut = callCtx.Err() == context.DeadlineExceeded
		cancel()

		if last.Success {
			s.store.Bind(a.ID, a.OutputKey, last.Output)
			return action.Result{ActionID: a.ID, Status: action.StatusSuccess, Output: last.Output, StartedAt: started, FinishedAt: time.Now(), Attempts: attempts}
		}

		if ctx.Err() != nil {
			return action.Result{
				ActionID: a.ID, Status: action.StatusCancelled,
				Error:      &action.ResultError{Kind: action.ErrorKindCancelled, Message: "execution cancelled"},
				StartedAt:  started, FinishedAt: time.Now(), Attempts: attempts,
			}
		}

		retryable := timedOut || last.Retryable
		if attempts >= retry.MaxAttempts || !retryable {
			break
		}

		delay := backoffDelay(retry, attempts)
		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return action.Result{
					ActionID: a.ID, Status: action.StatusCancelled,
					Error:      &action.ResultError{Kind: action.ErrorKindCancelled, Message: "cancelled during retry backoff"},
					StartedAt:  started, FinishedAt: time.Now(), Attempts: attempts,
				}
			}
		}
	}

	status := action.StatusError
	kind := action.ErrorKindTransient
	msg := "action failed"
	if last.Error != nil {
		msg = last.Error.Message
		kind = last.Error.Kind
	}
	if timedOut {
		status = action.StatusTimeout
		kind = action.ErrorKindTimeout
		msg = fmt.Sprintf("action timed out after %s", timeout)
	}
	return action.Result{
		ActionID: a.ID, Status: status,
		Error:      &action.ResultError{Kind: kind, Message: msg},
		StartedAt:  started, FinishedAt: time.Now(), Attempts: attempts,
	}
}

// invokeSafely calls the Callable, converting a panic into a CallResult
// rather than crashing the scheduler goroutine (mirrors the teacher's
// executeWithTimeout panic recovery).
func (s *Scheduler) invokeSafely(ctx context.Context, a action.Action, params []byte) (result CallResult) {
	type out struct {
		r CallResult
	}
	ch := make(chan out, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- out{r: CallResult{
					Success: false,
					Error:   &action.ResultError{Kind: action.ErrorKindFatal, Message: fmt.Sprintf("panic: %v\n%s", r, debug.Stack())},
				}}
			}
		}()
		ch <- out{r: s.callable.Invoke(ctx, a.Kind, a.Target, params)}
	}()
	select {
	case o := <-ch:
		return o.r
	case <-ctx.Done():
		return CallResult{Success: false, Retryable: false, Error: &action.ResultError{Kind: action.ErrorKindTimeout, Message: "deadline exceeded"}}
	}
}

func backoffDelay(r action.Retry, attempt int) time.Duration {
	if r.Backoff == action.BackoffNone || attempt <= 0 {
		return 0
	}
	factor := r.Backoff.Factor()
	if factor <= 0 {
		factor = 1
	}
	ms := float64(r.InitialDelayMS) * math.Pow(factor, float64(attempt-1))
	if r.MaxDelayMS > 0 && ms > float64(r.MaxDelayMS) {
		ms = float64(r.MaxDelayMS)
	}
	return time.Duration(ms) * time.Millisecond
}
