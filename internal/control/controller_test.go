package control

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/cortex-prime/agentcore/internal/events"
	"github.com/cortex-prime/agentcore/internal/resolve"
	"github.com/cortex-prime/agentcore/internal/scheduler"
	"github.com/cortex-prime/agentcore/pkg/action"
)

func newController(t *testing.T, streamer Streamer, callable scheduler.Callable) (*Controller, *events.ChanSink) {
	t.Helper()
	store := action.NewStore()
	feeds := resolve.NewRegistry(nil, nil)
	resolver := resolve.New(store, feeds, nil)
	sched := scheduler.New(scheduler.Deps{Callable: callable, Store: store, Feeds: feeds, Resolver: resolver})
	sink := events.NewChanSink(256)
	cfg := action.DefaultConfig()
	c := New("exec-test", cfg, Deps{
		Streamer:  streamer,
		Scheduler: sched,
		Store:     store,
		Feeds:     feeds,
		Resolver:  resolver,
		Sink:      sink,
	})
	return c, sink
}

func chanOf(chunks ...string) <-chan string {
	ch := make(chan string, len(chunks))
	for _, c := range chunks {
		ch <- c
	}
	close(ch)
	return ch
}

func drain(sink *events.ChanSink) []events.Event {
	sink.Close()
	var out []events.Event
	for e := range sink.Chan() {
		out = append(out, e)
	}
	return out
}

// TestMultiIterationTerminatesOnFinalResponse exercises spec.md §8 scenario
// S4: iteration 1 emits a non-final response and an action; iteration 2
// emits the final response. Exactly two iteration_started/completed pairs
// and one execution_completed are expected.
func TestMultiIterationTerminatesOnFinalResponse(t *testing.T) {
	iterCount := 0
	streamer := StreamerFunc(func(ctx context.Context, req any) (<-chan string, error) {
		iterCount++
		if iterCount == 1 {
			return chanOf(`<response final="false">progress</response><action type="tool" mode="sync" id="X">{"target":"do-thing","parameters":{}}</action>`), nil
		}
		return chanOf(`<response final="true">done</response>`), nil
	})
	callable := scheduler.CallableFunc(func(ctx context.Context, kind action.Kind, target string, params json.RawMessage) scheduler.CallResult {
		return scheduler.CallResult{Success: true, Output: json.RawMessage(`"done"`)}
	})
	c, sink := newController(t, streamer, callable)

	outcome, err := c.Run(context.Background(), func(i int, history []IterationRecord) any {
		return map[string]any{"iteration": i}
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Iterations != 2 {
		t.Fatalf("expected 2 iterations, got %d", outcome.Iterations)
	}
	if outcome.FinalResponse == nil || outcome.FinalResponse.Text != "done" {
		t.Fatalf("expected final response %q, got %+v", "done", outcome.FinalResponse)
	}

	var started, completed, execCompleted int
	for _, e := range drain(sink) {
		switch e.Kind {
		case events.KindIterationStarted:
			started++
		case events.KindIterationComplete:
			completed++
		case events.KindExecutionComplete:
			execCompleted++
		}
	}
	if started != 2 || completed != 2 {
		t.Fatalf("expected 2 iteration_started/completed pairs, got started=%d completed=%d", started, completed)
	}
	if execCompleted != 1 {
		t.Fatalf("expected exactly 1 execution_completed, got %d", execCompleted)
	}
}

// TestNoProgressTerminatesAfterTwoEmptyIterations exercises the
// terminate_on_no_progress predicate: two successive iterations yield
// neither actions nor a response.
func TestNoProgressTerminatesAfterTwoEmptyIterations(t *testing.T) {
	streamer := StreamerFunc(func(ctx context.Context, req any) (<-chan string, error) {
		return chanOf(`<thought>thinking, nothing else</thought>`), nil
	})
	callable := scheduler.CallableFunc(func(ctx context.Context, kind action.Kind, target string, params json.RawMessage) scheduler.CallResult {
		t.Fatal("no action should be dispatched")
		return scheduler.CallResult{}
	})
	c, sink := newController(t, streamer, callable)

	outcome, err := c.Run(context.Background(), func(i int, history []IterationRecord) any { return nil })
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.StopReason != "no_progress" {
		t.Fatalf("expected no_progress stop, got %q", outcome.StopReason)
	}
	if outcome.Iterations != 2 {
		t.Fatalf("expected termination after 2 iterations, got %d", outcome.Iterations)
	}
	drain(sink)
}

// TestDuplicateResponseInOneIterationIsIgnored exercises Open Question 3:
// the first <response> in an iteration wins.
func TestDuplicateResponseInOneIterationIsIgnored(t *testing.T) {
	streamer := StreamerFunc(func(ctx context.Context, req any) (<-chan string, error) {
		return chanOf(`<response final="true">first</response><response final="true">second</response>`), nil
	})
	callable := scheduler.CallableFunc(func(ctx context.Context, kind action.Kind, target string, params json.RawMessage) scheduler.CallResult {
		return scheduler.CallResult{Success: true}
	})
	c, sink := newController(t, streamer, callable)

	outcome, err := c.Run(context.Background(), func(i int, history []IterationRecord) any { return nil })
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.FinalResponse == nil || outcome.FinalResponse.Text != "first" {
		t.Fatalf("expected the first response to win, got %+v", outcome.FinalResponse)
	}

	var warnings int
	for _, e := range drain(sink) {
		if e.Kind == events.KindWarning && e.Warning.Reason == "duplicate_response" {
			warnings++
		}
	}
	if warnings != 1 {
		t.Fatalf("expected 1 duplicate_response warning, got %d", warnings)
	}
}
