package resolve

import (
	"encoding/json"
	"testing"

	"github.com/cortex-prime/agentcore/pkg/action"
)

type mapStore map[string]json.RawMessage

func (m mapStore) Lookup(name string) (json.RawMessage, bool) {
	v, ok := m[name]
	return v, ok
}

func (m mapStore) LookupVariable(name string) (json.RawMessage, bool) {
	return nil, false
}

func TestSoleReferencePreservesType(t *testing.T) {
	store := mapStore{"a": json.RawMessage(`{"x":1}`)}
	r := New(store, nil, nil)
	got := r.ResolveValue("$a")
	m, ok := got.(map[string]interface{})
	if !ok {
		t.Fatalf("expected type promotion to map, got %#v", got)
	}
	if m["x"].(float64) != 1 {
		t.Fatalf("unexpected value: %#v", m)
	}
}

func TestEmbeddedReferenceConcatenates(t *testing.T) {
	store := mapStore{"a": json.RawMessage(`10`), "b": json.RawMessage(`20`)}
	r := New(store, nil, nil)
	got := r.ResolveText("sum=$a+$b")
	if got != "sum=10+20" {
		t.Fatalf("got %q", got)
	}
}

func TestEmbeddedStringReferenceUnquoted(t *testing.T) {
	store := mapStore{"name": json.RawMessage(`"Ada"`)}
	r := New(store, nil, nil)
	got := r.ResolveText("hello $name!")
	if got != "hello Ada!" {
		t.Fatalf("got %q", got)
	}
}

type countingReporter struct{ seen map[string]int }

func (c *countingReporter) MissingReference(name string) {
	if c.seen == nil {
		c.seen = make(map[string]int)
	}
	c.seen[name]++
}

func TestMissingReferencePreservedAndWarnedOnce(t *testing.T) {
	store := mapStore{}
	rep := &countingReporter{}
	r := New(store, nil, rep)
	got1 := r.ResolveText("value=$missing")
	got2 := r.ResolveText("value=$missing again")
	if got1 != "value=$missing" || got2 != "value=$missing again" {
		t.Fatalf("expected literal preservation, got %q / %q", got1, got2)
	}
	if rep.seen["missing"] != 1 {
		t.Fatalf("expected exactly one warning, got %d", rep.seen["missing"])
	}
}

func TestResolveFixpoint(t *testing.T) {
	store := mapStore{"a": json.RawMessage(`"plain text"`)}
	r := New(store, nil, nil)
	once := r.ResolveText("$a")
	twice := r.ResolveText(once)
	if once != twice {
		t.Fatalf("resolve is not a fixpoint: %q vs %q", once, twice)
	}
}

func TestNestedJSONValueResolution(t *testing.T) {
	store := mapStore{"x": json.RawMessage(`5`)}
	r := New(store, nil, nil)
	in := map[string]interface{}{
		"list": []interface{}{"$x", "literal"},
	}
	out := r.ResolveValue(in).(map[string]interface{})
	list := out["list"].([]interface{})
	if list[0].(float64) != 5 {
		t.Fatalf("expected nested substitution, got %#v", list)
	}
	if list[1] != "literal" {
		t.Fatalf("expected literal preserved, got %#v", list[1])
	}
}

type fakeFeeds map[string]json.RawMessage

func (f fakeFeeds) Resolve(name string) (json.RawMessage, bool) {
	v, ok := f[name]
	return v, ok
}

func TestStoreOutranksFeed(t *testing.T) {
	store := mapStore{"x": json.RawMessage(`"from-store"`)}
	feeds := fakeFeeds{"x": json.RawMessage(`"from-feed"`)}
	r := New(store, feeds, nil)
	got := r.ResolveText("$x")
	if got != "from-store" {
		t.Fatalf("expected store binding to win, got %q", got)
	}
}

func TestFeedUsedWhenStoreMisses(t *testing.T) {
	store := mapStore{}
	feeds := fakeFeeds{"weather": json.RawMessage(`"sunny"`)}
	r := New(store, feeds, nil)
	got := r.ResolveText("$weather")
	if got != "sunny" {
		t.Fatalf("expected feed fallback, got %q", got)
	}
}

// TestFeedOutranksVariable exercises spec §4.3's precedence order: context
// feed values rank above execution-scoped variables set by internal
// actions.
func TestFeedOutranksVariable(t *testing.T) {
	store := action.NewStore()
	store.SetVariable("x", json.RawMessage(`"from-variable"`))
	feeds := fakeFeeds{"x": json.RawMessage(`"from-feed"`)}
	r := New(store, feeds, nil)
	got := r.ResolveText("$x")
	if got != "from-feed" {
		t.Fatalf("expected feed to outrank variable, got %q", got)
	}
}

// TestVariableUsedWhenStoreAndFeedMiss confirms variables still resolve as
// the lowest-precedence fallback tier.
func TestVariableUsedWhenStoreAndFeedMiss(t *testing.T) {
	store := action.NewStore()
	store.SetVariable("goal", json.RawMessage(`"shipped"`))
	r := New(store, nil, nil)
	got := r.ResolveText("$goal")
	if got != "shipped" {
		t.Fatalf("expected variable fallback, got %q", got)
	}
}
