// Package control implements the Iteration Controller (C5): the outer loop
// that issues an LLM request, feeds the streamed response to the parser
// (C1), routes parsed actions through the graph (C2) and scheduler (C4),
// and decides whether to iterate again (spec.md §4.5). It is the only
// component that emits events externally — C1 and C4 hand it their events
// for sequence/correlation annotation before forwarding.
package control

import (
	"context"
	"errors"
	"time"

	"github.com/cortex-prime/agentcore/internal/events"
	"github.com/cortex-prime/agentcore/internal/graph"
	"github.com/cortex-prime/agentcore/internal/parser"
	"github.com/cortex-prime/agentcore/internal/resolve"
	"github.com/cortex-prime/agentcore/internal/scheduler"
	"github.com/cortex-prime/agentcore/internal/telemetry"
	"github.com/cortex-prime/agentcore/pkg/action"
)

// Streamer is the external LLM stream interface consumed by the core (spec
// §6): StartLLMStream(request) -> stream[string], chunk order preserved.
// Channel close signals end-of-iteration.
type Streamer interface {
	StartLLMStream(ctx context.Context, request any) (<-chan string, error)
}

// StreamerFunc adapts a plain function to Streamer.
type StreamerFunc func(ctx context.Context, request any) (<-chan string, error)

// StartLLMStream implements Streamer.
func (f StreamerFunc) StartLLMStream(ctx context.Context, request any) (<-chan string, error) {
	return f(ctx, request)
}

// IterationRecord summarizes one completed iteration, handed back to the
// RequestBuilder so iterations after the first can add prior results as
// context (spec §4.5 step 2).
type IterationRecord struct {
	Iteration int
	Results   map[string]action.Result
	Response  *action.ParsedResponse
}

// RequestBuilder constructs the opaque request for iteration i's LLM call.
// The core never inspects the returned value; it is handed straight to the
// Streamer (spec §1: the LLM transport is an external collaborator).
type RequestBuilder func(iteration int, history []IterationRecord) any

// Outcome is what Run returns once the execution has reached a terminal
// state, successful or not.
type Outcome struct {
	Iterations     int
	FinalResponse  *action.ParsedResponse
	Failures       int
	Skipped        int
	FirstFailingID string
	Cancelled      bool
	StopReason     string // final_response | max_iterations | max_execution_time | no_progress | goal_achieved | cancelled | validation_error | stream_error
}

// Deps bundles the Controller's collaborators.
type Deps struct {
	Streamer  Streamer
	Scheduler *scheduler.Scheduler
	Store     *action.Store
	Feeds     *resolve.Registry
	Resolver  *resolve.Resolver
	Metrics   *telemetry.Metrics
	Tracer    *telemetry.Tracer
	Sink      events.Sink
	// Schemas, if set, validates internal-action parameter shapes before
	// the graph is built (SPEC_FULL.md domain stack: optional per-action
	// schema validation). Nil disables the check entirely.
	Schemas *graph.SchemaRegistry
}

// Controller drives one execution (one or more iterations) to completion.
type Controller struct {
	executionID string
	cfg         action.Config
	streamer    Streamer
	scheduler   *scheduler.Scheduler
	feeds       *resolve.Registry
	resolver    *resolve.Resolver
	metrics     *telemetry.Metrics
	tracer      *telemetry.Tracer
	emitter     *events.Emitter
	schemas     *graph.SchemaRegistry
}

// New builds a Controller for one execution, identified by executionID.
func New(executionID string, cfg action.Config, d Deps) *Controller {
	cfg = cfg.WithDefaults()
	if d.Tracer == nil {
		d.Tracer = telemetry.NewTracer()
	}
	return &Controller{
		executionID: executionID,
		cfg:         cfg,
		streamer:    d.Streamer,
		scheduler:   d.Scheduler,
		feeds:       d.Feeds,
		resolver:    d.Resolver,
		metrics:     d.Metrics,
		tracer:      d.Tracer,
		emitter:     events.NewEmitter(executionID, d.Sink),
		schemas:     d.Schemas,
	}
}

// Run drives iterations until a termination predicate fires (spec §4.5).
// build is called once per iteration to produce that iteration's LLM
// request; the caller's Streamer owns everything about the request/response
// shape beyond the chunk stream itself.
func (c *Controller) Run(ctx context.Context, build RequestBuilder) (Outcome, error) {
	start := time.Now()

	execCtx := ctx
	var cancel context.CancelFunc
	if c.cfg.MaxExecutionTimeMS > 0 {
		execCtx, cancel = context.WithTimeout(ctx, time.Duration(c.cfg.MaxExecutionTimeMS)*time.Millisecond)
		defer cancel()
	}

	c.emitter.ExecutionStarted()

	var (
		history          []IterationRecord
		noProgressStreak int
		totalFailures    int
		totalSkipped     int
		firstFailingID   string
	)

	for iteration := 1; ; iteration++ {
		if execCtx.Err() != nil {
			return c.finish(iteration-1, totalFailures, totalSkipped, firstFailingID, true, "cancelled"), action.ErrCancelled
		}

		c.emitter.IterationStarted(iteration)
		if c.metrics != nil {
			c.metrics.Iterations.Inc()
		}
		iterCtx, iterSpan := c.tracer.StartIteration(execCtx, c.executionID, iteration)

		c.resolver.ResetIteration()
		collected, response, err := c.runIteration(iterCtx, iteration, build(iteration, history))
		if err != nil {
			iterSpan.End()
			c.emitter.ExecutionFailed(events.ExecutionSummaryPayload{Iterations: iteration - 1, Kind: "internal", FirstFailingID: firstFailingID})
			if c.metrics != nil {
				c.metrics.Executions.WithLabelValues("failed").Inc()
			}
			return Outcome{Iterations: iteration - 1, StopReason: "stream_error"}, err
		}

		var gerr error
		if err := c.schemas.ValidateParameters(collected); err != nil {
			gerr = err
		}
		var g *graph.Graph
		if gerr == nil {
			g, gerr = graph.Build(collected, c.cfg.MaxPendingActions)
		}
		if gerr != nil {
			var verr *action.ValidationError
			var ids []string
			if errors.As(gerr, &verr) {
				ids = verr.IDs
			}
			firstID := ""
			if len(ids) > 0 {
				firstID = ids[0]
			}
			c.emitter.ExecutionFailed(events.ExecutionSummaryPayload{Iterations: iteration, Kind: "validation", FirstFailingID: firstID})
			iterSpan.End()
			if c.metrics != nil {
				c.metrics.Executions.WithLabelValues("failed").Inc()
			}
			return Outcome{Iterations: iteration, StopReason: "validation_error", FirstFailingID: firstID}, gerr
		}

		summary := c.scheduler.Execute(iterCtx, g, c.cfg.MaxParallel, c.emitter)
		iterSpan.End()

		totalFailures += summary.Failures
		totalSkipped += summary.Skipped
		if firstFailingID == "" {
			firstFailingID = summary.FirstFailingID
		}

		history = append(history, IterationRecord{Iteration: iteration, Results: summary.Results, Response: response})

		noProgress := len(collected) == 0 && response == nil
		c.emitter.IterationCompleted(iteration, len(collected), noProgress)

		if summary.Cancelled {
			return c.finish(iteration, totalFailures, totalSkipped, firstFailingID, true, "cancelled"), action.ErrCancelled
		}

		if response != nil && response.IsFinal {
			out := c.finish(iteration, totalFailures, totalSkipped, firstFailingID, false, "final_response")
			out.FinalResponse = response
			return out, nil
		}

		if noProgress {
			noProgressStreak++
		} else {
			noProgressStreak = 0
		}
		if c.cfg.TerminateOnNoProgress && noProgressStreak >= 2 {
			return c.finish(iteration, totalFailures, totalSkipped, firstFailingID, false, "no_progress"), nil
		}
		if c.cfg.TerminateOnGoalAchieved && c.scheduler.GoalAchieved() {
			return c.finish(iteration, totalFailures, totalSkipped, firstFailingID, false, "goal_achieved"), nil
		}
		if iteration+1 > c.cfg.MaxIterations {
			return c.finish(iteration, totalFailures, totalSkipped, firstFailingID, false, "max_iterations"), action.ErrMaxIterations
		}
		if c.cfg.MaxExecutionTimeMS > 0 && time.Since(start) >= time.Duration(c.cfg.MaxExecutionTimeMS)*time.Millisecond {
			return c.finish(iteration, totalFailures, totalSkipped, firstFailingID, false, "max_execution_time"), action.ErrMaxExecutionTime
		}
	}
}

// runIteration feeds one iteration's LLM stream through a freshly
// constructed parser (each iteration is its own top-level stream, spec §6)
// and returns the Actions it emitted plus the winning <response>, if any.
// Open Question 3: the first <response> in an iteration wins; later ones
// emit a warning and are ignored for the termination decision.
func (c *Controller) runIteration(ctx context.Context, iteration int, request any) ([]action.Action, *action.ParsedResponse, error) {
	chunks, err := c.streamer.StartLLMStream(ctx, request)
	if err != nil {
		return nil, nil, err
	}

	p := parser.New(parser.Config{
		FlushChars:   c.cfg.StreamChunkFlushChars,
		Resolver:     c.resolver,
		DefaultRetry: c.cfg.DefaultRetry,
	})

	var collected []action.Action
	var response *action.ParsedResponse
	responseSeen := false

	forward := func(res parser.Result) {
		for _, e := range res.Events {
			c.emitter.Emit(e)
		}
		for _, fu := range res.FeedUpdates {
			c.feeds.Bind(fu.ID, fu.Value)
		}
		collected = append(collected, res.Actions...)
		if res.Response != nil {
			if responseSeen {
				c.emitter.Warning("duplicate_response", "additional <response> in this iteration ignored")
				return
			}
			responseSeen = true
			response = res.Response
		}
	}

readLoop:
	for {
		select {
		case chunk, ok := <-chunks:
			if !ok {
				break readLoop
			}
			forward(p.Feed([]byte(chunk)))
		case <-ctx.Done():
			break readLoop
		}
	}
	forward(p.Close())

	return collected, response, nil
}

func (c *Controller) finish(iterations, failures, skipped int, firstFailingID string, cancelled bool, reason string) Outcome {
	summary := events.ExecutionSummaryPayload{
		Iterations:     iterations,
		Failures:       failures,
		Skipped:        skipped,
		FirstFailingID: firstFailingID,
		Cancelled:      cancelled,
		Kind:           reason,
	}
	c.emitter.ExecutionCompleted(summary)
	if c.metrics != nil {
		outcome := reason
		if cancelled {
			outcome = "cancelled"
		}
		c.metrics.Executions.WithLabelValues(outcome).Inc()
	}
	return Outcome{
		Iterations:     iterations,
		Failures:       failures,
		Skipped:        skipped,
		FirstFailingID: firstFailingID,
		Cancelled:      cancelled,
		StopReason:     reason,
	}
}
