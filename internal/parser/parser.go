// Package parser implements the Stream Parser (C1): a push-only finite
// state machine converting an incrementally-delivered character stream into
// typed protocol events and fully parsed Actions, per spec.md §4.1. It never
// requests more input — Feed returns whatever progress the buffered bytes
// allow and retains the remainder for the next call.
package parser

import (
	"bytes"
	"strings"

	"github.com/google/uuid"

	"github.com/cortex-prime/agentcore/internal/events"
	"github.com/cortex-prime/agentcore/pkg/action"
)

// Resolver substitutes $name references for the final text of a <response>
// element (spec §4.1: "all $name substitutions in the accumulated text are
// applied via C3 before the final response_end event is emitted").
type Resolver interface {
	ResolveText(s string) string
}

// ResolverFunc adapts a plain function to Resolver.
type ResolverFunc func(string) string

// ResolveText implements Resolver.
func (f ResolverFunc) ResolveText(s string) string { return f(s) }

// ContextFeedUpdate is a runtime feed binding parsed from a <context_feed>
// element. It is not part of spec.md §3's ExecutionEvent kinds, so the
// parser returns it out of band for the caller to apply to the feed cache.
type ContextFeedUpdate struct {
	ID    string
	Value []byte
}

// Result is everything one Feed (or Close) call produced.
type Result struct {
	Events      []events.Event
	Actions     []action.Action
	Response    *action.ParsedResponse
	FeedUpdates []ContextFeedUpdate
}

func (r *Result) emit(e events.Event) { r.Events = append(r.Events, e) }

// Config configures streaming thresholds and the resolver the parser calls
// at </response>.
type Config struct {
	FlushChars int // spec §6 stream_chunk_flush_chars, default 10
	Resolver   Resolver
	// DefaultRetry backs an action's retry policy when its body omits one
	// (spec §3: "retry {...}" with no stated fallback other than config's
	// default_retry, spec §6). A zero value falls back to action.DefaultRetry().
	DefaultRetry action.Retry
}

// Parser is the incremental FSM described in spec.md §3 ("ParserState").
type Parser struct {
	cfg Config
	st  state
	buf []byte

	// thought/response accumulation
	textAccum strings.Builder
	respFinal bool

	// action accumulation
	actAttrs       map[string]string
	actAttrKeys    []string
	actNestedWarned bool

	// context_feed accumulation
	feedID string
}

// New builds a Parser. A zero Config.FlushChars is replaced with spec's
// default of 10; a nil Resolver leaves response text unsubstituted (callers
// wiring C5 should always supply one).
func New(cfg Config) *Parser {
	if cfg.FlushChars <= 0 {
		cfg.FlushChars = 10
	}
	if cfg.Resolver == nil {
		cfg.Resolver = ResolverFunc(func(s string) string { return s })
	}
	if cfg.DefaultRetry.MaxAttempts <= 0 {
		cfg.DefaultRetry = action.DefaultRetry()
	}
	return &Parser{cfg: cfg, st: stateIdle}
}

// Feed accepts the next chunk of the LLM stream (not necessarily aligned to
// tag or token boundaries) and returns whatever events/actions that chunk's
// bytes, combined with anything buffered from prior calls, make available.
func (p *Parser) Feed(chunk []byte) Result {
	p.buf = append(p.buf, chunk...)
	var res Result
	p.drain(&res)
	return res
}

// Close signals end-of-stream (spec §6: "Stream close signals
// end-of-iteration"). Any construct left open is flushed best-effort: a
// trailing, never-closed thought or response is terminated at the stream
// boundary rather than dropped silently.
func (p *Parser) Close() Result {
	var res Result
	p.drain(&res)
	switch p.st {
	case stateInThought:
		p.flushRemainingText(&res, true)
		res.emit(events.Event{Kind: events.KindThoughtEnd})
		p.st = stateIdle
	case stateInResponse:
		p.flushRemainingText(&res, true)
		p.finishResponse(&res)
		p.st = stateIdle
	case stateInAction:
		res.emit(events.Event{
			Kind:    events.KindWarning,
			Warning: &events.WarningPayload{Reason: "unterminated_action", Detail: p.actAttrs["id"]},
		})
		p.st = stateIdle
	case stateInContextFeed:
		res.emit(events.Event{
			Kind:    events.KindWarning,
			Warning: &events.WarningPayload{Reason: "unterminated_context_feed", Detail: p.feedID},
		})
		p.st = stateIdle
	}
	p.buf = nil
	return res
}

// drain repeatedly advances the state machine from p.buf until no further
// progress is possible without more input.
func (p *Parser) drain(res *Result) {
	for {
		progressed := false
		switch p.st {
		case stateIdle:
			progressed = p.stepIdle(res)
		case stateInThought:
			progressed = p.stepText(res, "</thought>", false)
		case stateInResponse:
			progressed = p.stepText(res, "</response>", true)
		case stateInAction:
			progressed = p.stepAction(res)
		case stateInContextFeed:
			progressed = p.stepContextFeed(res)
		}
		if !progressed {
			return
		}
	}
}

// stepIdle consumes top-level text (silently absorbed per spec §4.1) up to
// the next '<', then attempts to parse a complete tag.
func (p *Parser) stepIdle(res *Result) bool {
	i := bytes.IndexByte(p.buf, '<')
	if i < 0 {
		if len(p.buf) > 0 {
			p.buf = p.buf[:0]
		}
		return false
	}
	if i > 0 {
		p.buf = p.buf[i:]
		return true
	}
	j := bytes.IndexByte(p.buf, '>')
	if j < 0 {
		// Tag not fully buffered yet.
		return false
	}
	raw := string(p.buf[:j+1])
	p.buf = p.buf[j+1:]
	t := parseTag(raw)
	p.dispatchOpenTag(res, t)
	return true
}

func (p *Parser) dispatchOpenTag(res *Result, t tag) {
	if t.closing {
		res.emit(events.Event{
			Kind:    events.KindWarning,
			Warning: &events.WarningPayload{Reason: "unexpected_closing_tag", Detail: t.name},
		})
		return
	}
	switch t.name {
	case "thought":
		p.st = stateInThought
		p.textAccum.Reset()
		res.emit(events.Event{Kind: events.KindThoughtStart})
	case "response":
		p.st = stateInResponse
		p.textAccum.Reset()
		p.respFinal = true
		if v, ok := t.attrs["final"]; ok {
			p.respFinal = v != "false"
		}
		res.emit(events.Event{Kind: events.KindResponseStart})
	case "action":
		p.st = stateInAction
		p.actAttrs = t.attrs
		p.actAttrKeys = t.attrKeys
		p.actNestedWarned = false
		p.textAccum.Reset()
	case "context_feed":
		p.st = stateInContextFeed
		p.feedID = t.attrs["id"]
		p.textAccum.Reset()
	default:
		res.emit(events.Event{
			Kind:    events.KindWarning,
			Warning: &events.WarningPayload{Reason: "unknown_tag", Detail: t.name},
		})
	}
}

// stepText streams thought/response content: batches of >= FlushChars
// characters or on any newline, whichever comes first (spec §4.1), holding
// back enough trailing bytes that a split closing tag or a split UTF-8
// sequence is never cut across a chunk event.
func (p *Parser) stepText(res *Result, closeTag string, isResponse bool) bool {
	if idx := bytes.Index(p.buf, []byte(closeTag)); idx >= 0 {
		remainder := p.buf[:idx]
		if len(remainder) > 0 {
			p.emitTextChunk(res, remainder, isResponse)
			p.textAccum.Write(remainder)
		}
		p.buf = p.buf[idx+len(closeTag):]
		if isResponse {
			p.finishResponse(res)
		} else {
			res.emit(events.Event{Kind: events.KindThoughtEnd})
		}
		p.st = stateIdle
		return true
	}

	holdBack := len(closeTag) - 1
	if len(p.buf) <= holdBack {
		return false
	}
	safeLen := len(p.buf) - holdBack
	if u := safeUTF8Prefix(p.buf[:safeLen]); u < safeLen {
		safeLen = u
	}
	if safeLen <= 0 {
		return false
	}
	candidate := p.buf[:safeLen]
	if len(candidate) >= p.cfg.FlushChars || bytes.ContainsRune(candidate, '\n') {
		p.emitTextChunk(res, candidate, isResponse)
		p.textAccum.Write(candidate)
		p.buf = p.buf[safeLen:]
		return true
	}
	return false
}

func (p *Parser) emitTextChunk(res *Result, b []byte, isResponse bool) {
	if isResponse {
		res.emit(events.Event{Kind: events.KindResponseChunk, Response: &events.ResponsePayload{Text: string(b)}})
	} else {
		res.emit(events.Event{Kind: events.KindThoughtChunk, Thought: &events.ThoughtPayload{Text: string(b)}})
	}
}

// flushRemainingText flushes whatever is left in p.buf as a final chunk at
// stream Close, ignoring the flush-threshold (there is no more input
// coming, so nothing is gained by withholding it).
func (p *Parser) flushRemainingText(res *Result, isResponse bool) {
	if len(p.buf) == 0 {
		return
	}
	p.emitTextChunk(res, p.buf, isResponse)
	p.textAccum.Write(p.buf)
	p.buf = nil
}

func (p *Parser) finishResponse(res *Result) {
	resolved := p.cfg.Resolver.ResolveText(p.textAccum.String())
	res.emit(events.Event{Kind: events.KindResponseEnd, Response: &events.ResponsePayload{Text: resolved, IsFinal: p.respFinal}})
	if res.Response != nil {
		// A second <response> closed within the same Feed/Close call: the
		// first one keeps its place and this one is only warned about.
		res.emit(events.Event{
			Kind:    events.KindWarning,
			Warning: &events.WarningPayload{Reason: "duplicate_response", Detail: "additional <response> in this iteration ignored"},
		})
		return
	}
	res.Response = &action.ParsedResponse{Text: resolved, IsFinal: p.respFinal}
}

// stepAction buffers the entire action body (spec §4.1: "buffered in full
// before parsing") and, once the matching outer </action> is located,
// decodes it and emits the Action for scheduling.
func (p *Parser) stepAction(res *Result) bool {
	bodyEnd, consumedThrough, nestedSeen, ok := matchOuterActionClose(p.buf)
	if nestedSeen && !p.actNestedWarned {
		p.actNestedWarned = true
		res.emit(events.Event{
			Kind:      events.KindError,
			ErrorInfo: &events.ErrorPayload{Reason: "nested_action", Detail: p.actAttrs["id"]},
		})
	}
	if !ok {
		return false
	}
	body := p.buf[:bodyEnd]
	p.buf = p.buf[consumedThrough:]
	p.st = stateIdle

	act, warn, dropped := p.buildAction(body)
	if dropped {
		truncated := body
		if len(truncated) > 200 {
			truncated = truncated[:200]
		}
		res.emit(events.Event{
			Kind:    events.KindWarning,
			Warning: &events.WarningPayload{Reason: "malformed_action_body", Detail: string(truncated)},
		})
		return true
	}
	if warn != "" {
		res.emit(events.Event{Kind: events.KindWarning, Warning: &events.WarningPayload{Reason: warn}})
	}
	res.Actions = append(res.Actions, act)
	res.emit(events.Event{
		Kind: events.KindActionParsed,
		Action: &events.ActionPayload{
			ActionID: act.ID,
			Kind:     act.Kind,
			Target:   act.Target,
			Mode:     act.Mode,
		},
	})
	return true
}

// buildAction merges the tag's attributes with the decoded JSON body into an
// Action. dropped is true when the body is unrecoverably malformed (spec
// §4.1: "Unrecoverable JSON -> the Action is dropped").
func (p *Parser) buildAction(rawBody []byte) (act action.Action, warn string, dropped bool) {
	trimmed := bytes.TrimSpace(rawBody)
	var body actionBody
	if len(trimmed) > 0 {
		var err error
		body, err = parseActionBody(trimmed)
		if err != nil {
			return action.Action{}, "", true
		}
	}

	id := p.actAttrs["id"]
	if id == "" {
		id = uuid.NewString()
	}
	kind := action.Kind(p.actAttrs["type"])
	if kind == "" {
		kind = action.KindTool
	}
	mode := action.Mode(p.actAttrs["mode"])
	if mode == "" {
		mode = action.ModeSync
	}
	var dependsOn []string
	if dep := p.actAttrs["depends_on"]; dep != "" {
		for _, d := range strings.Split(dep, ",") {
			d = strings.TrimSpace(d)
			if d != "" {
				dependsOn = append(dependsOn, d)
			}
		}
	}

	meta := make(map[string]string)
	for _, k := range p.actAttrKeys {
		switch k {
		case "type", "mode", "id", "depends_on":
			// already mapped onto typed fields
		default:
			meta[k] = p.actAttrs[k]
		}
	}
	if len(meta) == 0 {
		meta = nil
	}

	retry := p.cfg.DefaultRetry
	if body.Retry != nil {
		retry = *body.Retry
	}

	act = action.Action{
		ID:          id,
		Kind:        kind,
		Mode:        mode,
		Target:      body.Target,
		Parameters:  body.Parameters,
		DependsOn:   dependsOn,
		OutputKey:   body.OutputKey,
		TimeoutMS:   body.TimeoutMS,
		Retry:       retry,
		SkipOnError: body.SkipOnError,
		Metadata:    meta,
	}
	return act, "", false
}

func (p *Parser) stepContextFeed(res *Result) bool {
	const closeTag = "</context_feed>"
	idx := bytes.Index(p.buf, []byte(closeTag))
	if idx < 0 {
		return false
	}
	body := bytes.TrimSpace(p.buf[:idx])
	p.buf = p.buf[idx+len(closeTag):]
	p.st = stateIdle
	res.FeedUpdates = append(res.FeedUpdates, ContextFeedUpdate{ID: p.feedID, Value: append([]byte(nil), body...)})
	return true
}
