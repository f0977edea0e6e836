package events

import (
	"sync"
	"sync/atomic"
	"time"
)

// Emitter annotates events with a strictly monotonic sequence number,
// wall-clock timestamp, and correlation ids before forwarding to a Sink. C5
// owns the only Emitter in an execution (spec §4.5); C1 and C4 never call a
// Sink directly, only return events for C5 to annotate. C4 dispatches
// concurrent actions from multiple goroutines, each of which calls back into
// this Emitter (action_started/completed/failed) without any other mutual
// exclusion, so sequence assignment and the call into the Sink are grouped
// under one mutex: an atomic counter alone would let two goroutines race
// between "claim seq N" and "hand the event to the sink", letting a
// higher-numbered event reach the sink first and break spec §8 invariant 1
// ("Event sequence numbers are strictly monotonically increasing").
type Emitter struct {
	executionID string
	mu          sync.Mutex
	sequence    uint64
	iteration   atomic.Int64
	sink        Sink
}

// NewEmitter builds an Emitter for one execution.
func NewEmitter(executionID string, sink Sink) *Emitter {
	if sink == nil {
		sink = NopSink{}
	}
	return &Emitter{executionID: executionID, sink: sink}
}

// SetIteration updates the iteration number stamped on subsequent events.
func (em *Emitter) SetIteration(i int) { em.iteration.Store(int64(i)) }

// deliver stamps e under the emission lock and hands it to the sink before
// releasing it, so no other goroutine can claim a later sequence number and
// deliver ahead of it.
func (em *Emitter) deliver(e Event) {
	em.mu.Lock()
	defer em.mu.Unlock()
	e.Seq = em.sequence
	em.sequence++
	e.Timestamp = time.Now().UTC()
	e.ExecutionID = em.executionID
	if e.Iteration == 0 {
		e.Iteration = int(em.iteration.Load())
	}
	em.sink.Emit(e)
}

// Emit annotates e in place (stamping seq/ts/execution_id/iteration) and
// forwards it to the sink. Used to forward an event a sub-component
// constructed without those fields filled in.
func (em *Emitter) Emit(e Event) {
	em.deliver(e)
}

func (em *Emitter) ExecutionStarted() {
	em.deliver(Event{Kind: KindExecutionStarted})
}

func (em *Emitter) IterationStarted(i int) {
	em.SetIteration(i)
	em.deliver(Event{Kind: KindIterationStarted, IterInfo: &IterationPayload{Iteration: i}})
}

func (em *Emitter) IterationCompleted(i int, actionsTotal int, noProgress bool) {
	em.deliver(Event{
		Kind:     KindIterationComplete,
		IterInfo: &IterationPayload{Iteration: i, ActionsTotal: actionsTotal, NoProgress: noProgress},
	})
}

func (em *Emitter) ThoughtStart() { em.deliver(Event{Kind: KindThoughtStart}) }

func (em *Emitter) ThoughtChunk(text string) {
	em.deliver(Event{Kind: KindThoughtChunk, Thought: &ThoughtPayload{Text: text}})
}

func (em *Emitter) ThoughtEnd() { em.deliver(Event{Kind: KindThoughtEnd}) }

func (em *Emitter) ResponseStart() { em.deliver(Event{Kind: KindResponseStart}) }

func (em *Emitter) ResponseChunk(text string) {
	em.deliver(Event{Kind: KindResponseChunk, Response: &ResponsePayload{Text: text}})
}

func (em *Emitter) ResponseEnd(text string, isFinal bool) {
	em.deliver(Event{Kind: KindResponseEnd, Response: &ResponsePayload{Text: text, IsFinal: isFinal}})
}

func (em *Emitter) ActionParsed(p ActionPayload) {
	em.deliver(Event{Kind: KindActionParsed, Action: &p})
}

func (em *Emitter) ActionStarted(p ActionPayload) {
	em.deliver(Event{Kind: KindActionStarted, Action: &p})
}

func (em *Emitter) ActionCompleted(p ActionPayload) {
	em.deliver(Event{Kind: KindActionCompleted, Action: &p})
}

func (em *Emitter) ActionFailed(p ActionPayload) {
	em.deliver(Event{Kind: KindActionFailed, Action: &p})
}

func (em *Emitter) ExecutionCompleted(s ExecutionSummaryPayload) {
	em.deliver(Event{Kind: KindExecutionComplete, Summary: &s})
}

func (em *Emitter) ExecutionFailed(s ExecutionSummaryPayload) {
	em.deliver(Event{Kind: KindExecutionFailed, Summary: &s})
}

func (em *Emitter) Warning(reason, detail string) {
	em.deliver(Event{Kind: KindWarning, Warning: &WarningPayload{Reason: reason, Detail: detail}})
}

func (em *Emitter) Error(reason, detail string) {
	em.deliver(Event{Kind: KindError, ErrorInfo: &ErrorPayload{Reason: reason, Detail: detail}})
}
