package parser

import (
	"strings"
	"testing"

	"github.com/cortex-prime/agentcore/internal/events"
)

func kindsOf(evs []events.Event) []events.Kind {
	out := make([]events.Kind, len(evs))
	for i, e := range evs {
		out[i] = e.Kind
	}
	return out
}

func TestThoughtStreamingInSingleFeedReassembles(t *testing.T) {
	p := New(Config{FlushChars: 5})
	res := p.Feed([]byte("<thought>hello world this is long</thought>"))

	var gotChunks []string
	for _, e := range res.Events {
		if e.Kind == events.KindThoughtChunk {
			gotChunks = append(gotChunks, e.Thought.Text)
		}
	}
	if len(gotChunks) == 0 {
		t.Fatalf("expected at least one thought_chunk, got none: %+v", res.Events)
	}
	joined := strings.Join(gotChunks, "")
	if joined != "hello world this is long" {
		t.Fatalf("chunks did not reassemble to original text: %q", joined)
	}
	last := res.Events[len(res.Events)-1]
	if last.Kind != events.KindThoughtEnd {
		t.Fatalf("expected final event thought_end, got %s", last.Kind)
	}
}

func TestThoughtStreamingAcrossChunkBoundaries(t *testing.T) {
	p := New(Config{FlushChars: 10})
	full := "<thought>split across feeds</thought>"
	var all Result
	for i := 0; i < len(full); i++ {
		r := p.Feed([]byte{full[i]})
		all.Events = append(all.Events, r.Events...)
	}
	var text strings.Builder
	for _, e := range all.Events {
		if e.Kind == events.KindThoughtChunk {
			text.WriteString(e.Thought.Text)
		}
	}
	if text.String() != "split across feeds" {
		t.Fatalf("got %q", text.String())
	}
}

func TestActionWithTrailingCommaAndComment(t *testing.T) {
	p := New(Config{})
	input := `<action type="tool" mode="sync" id="F1">{
		"target": "lookup", // a line comment
		"parameters": {"q": "x"},
	}</action>`
	res := p.Feed([]byte(input))
	if len(res.Actions) != 1 {
		t.Fatalf("expected 1 action, got %d (%+v)", len(res.Actions), res.Events)
	}
	a := res.Actions[0]
	if a.ID != "F1" || a.Target != "lookup" {
		t.Fatalf("unexpected action: %+v", a)
	}
	for _, e := range res.Events {
		if e.Kind == events.KindWarning {
			t.Fatalf("expected no warning for recoverable JSON, got %+v", e.Warning)
		}
	}
}

func TestActionBodyAliasNameKey(t *testing.T) {
	// Mirrors spec.md §8 S6: {"name":"t","parameters":{},}
	p := New(Config{})
	input := `<action type="tool" mode="sync" id="A1">{"name":"t","parameters":{},}</action>`
	res := p.Feed([]byte(input))
	if len(res.Actions) != 1 {
		t.Fatalf("expected 1 action, got %d", len(res.Actions))
	}
	if res.Actions[0].Target != "t" {
		t.Fatalf("expected target 't', got %q", res.Actions[0].Target)
	}
}

func TestMalformedActionBodyDropsActionAndWarns(t *testing.T) {
	p := New(Config{})
	input := `<action type="tool" mode="sync" id="F1">{not json at all!!!</action>`
	res := p.Feed([]byte(input))
	if len(res.Actions) != 0 {
		t.Fatalf("expected action to be dropped, got %+v", res.Actions)
	}
	found := false
	for _, e := range res.Events {
		if e.Kind == events.KindWarning && e.Warning.Reason == "malformed_action_body" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected malformed_action_body warning, got %+v", res.Events)
	}
}

func TestUnknownTopLevelTagWarnsAndSkips(t *testing.T) {
	p := New(Config{})
	res := p.Feed([]byte(`<bogus>stuff</bogus><thought>hi</thought>`))
	var sawUnknown, sawThoughtEnd bool
	for _, e := range res.Events {
		if e.Kind == events.KindWarning && e.Warning.Reason == "unknown_tag" {
			sawUnknown = true
		}
		if e.Kind == events.KindThoughtEnd {
			sawThoughtEnd = true
		}
	}
	if !sawUnknown {
		t.Fatalf("expected unknown_tag warning, got %+v", res.Events)
	}
	if !sawThoughtEnd {
		t.Fatalf("expected parser to recover and process the following thought, got %+v", res.Events)
	}
}

func TestNestedActionEmitsErrorButResumes(t *testing.T) {
	p := New(Config{})
	input := `<action type="tool" mode="sync" id="Outer">{"target":"x"} <action type="tool" id="Inner">{"target":"y"}</action></action>`
	res := p.Feed([]byte(input))
	var sawErr bool
	for _, e := range res.Events {
		if e.Kind == events.KindError && e.ErrorInfo.Reason == "nested_action" {
			sawErr = true
		}
	}
	if !sawErr {
		t.Fatalf("expected nested_action error event, got %+v", res.Events)
	}
	if len(res.Actions) != 0 {
		t.Fatalf("expected the nested occurrence to be swallowed as literal text, leaving the outer body malformed and dropped (0 actions), got %d", len(res.Actions))
	}
}

func TestResponseFinalAttributeDefaultsTrue(t *testing.T) {
	p := New(Config{})
	res := p.Feed([]byte(`<response>done</response>`))
	if res.Response == nil || !res.Response.IsFinal {
		t.Fatalf("expected default final=true, got %+v", res.Response)
	}
}

func TestResponseFinalFalse(t *testing.T) {
	p := New(Config{})
	res := p.Feed([]byte(`<response final="false">still working</response>`))
	if res.Response == nil || res.Response.IsFinal {
		t.Fatalf("expected final=false, got %+v", res.Response)
	}
}

func TestResponseAppliesResolver(t *testing.T) {
	p := New(Config{Resolver: ResolverFunc(func(s string) string {
		return strings.ReplaceAll(s, "$a", "10")
	})})
	res := p.Feed([]byte(`<response>sum=$a</response>`))
	if res.Response.Text != "sum=10" {
		t.Fatalf("expected resolver applied, got %q", res.Response.Text)
	}
}

func TestContextFeedUpdate(t *testing.T) {
	p := New(Config{})
	res := p.Feed([]byte(`<context_feed id="weather">{"temp":72}</context_feed>`))
	if len(res.FeedUpdates) != 1 || res.FeedUpdates[0].ID != "weather" {
		t.Fatalf("expected one feed update for 'weather', got %+v", res.FeedUpdates)
	}
}

func TestCloseFlushesUnterminatedThought(t *testing.T) {
	p := New(Config{})
	p.Feed([]byte(`<thought>never closes`))
	res := p.Close()
	var sawEnd bool
	for _, e := range res.Events {
		if e.Kind == events.KindThoughtEnd {
			sawEnd = true
		}
	}
	if !sawEnd {
		t.Fatalf("expected Close to flush an unterminated thought, got %+v", res.Events)
	}
}

func TestActionIDAutoAssignedWhenAbsent(t *testing.T) {
	p := New(Config{})
	res := p.Feed([]byte(`<action type="tool" mode="sync">{"target":"x"}</action>`))
	if len(res.Actions) != 1 || res.Actions[0].ID == "" {
		t.Fatalf("expected auto-assigned id, got %+v", res.Actions)
	}
}

func TestUnrecognizedAttributesPreservedAsMetadata(t *testing.T) {
	p := New(Config{})
	res := p.Feed([]byte(`<action type="tool" mode="sync" id="F1" priority="high">{"target":"x"}</action>`))
	if len(res.Actions) != 1 {
		t.Fatalf("expected 1 action")
	}
	if res.Actions[0].Metadata["priority"] != "high" {
		t.Fatalf("expected metadata to preserve unrecognized attribute, got %+v", res.Actions[0].Metadata)
	}
}
