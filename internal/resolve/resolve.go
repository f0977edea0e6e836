// Package resolve implements the Variable Resolver (C3): $name substitution
// over arbitrary JSON values and response text, plus the context-feed
// registry that backs the third of the four name-resolution tiers, below
// action outputs and above internal-action variables (spec.md §4.3).
package resolve

import (
	"encoding/json"
	"strings"
)

// Store is the subset of pkg/action.Store the resolver needs: Lookup covers
// the output_key/id tiers (highest precedence), LookupVariable the
// internal-action-variable tier (lowest precedence, below context feeds —
// spec §4.3).
type Store interface {
	Lookup(name string) (json.RawMessage, bool)
	LookupVariable(name string) (json.RawMessage, bool)
}

// Feeds resolves context feed values, the third precedence tier (spec
// §4.3: "context feed values → execution-scoped internal-action variables"
// — feeds rank above internal variables but below both output_key and id
// bindings).
type Feeds interface {
	Resolve(name string) (json.RawMessage, bool)
}

// MissingReporter is notified exactly once per unique missing name per
// iteration (spec §4.3 "Missing references").
type MissingReporter interface {
	MissingReference(name string)
}

// Resolver substitutes $name references against a Store and a Feeds
// registry. It is stateless between calls except for the de-duplicated
// missing-reference set, which callers reset per iteration via
// ResetIteration.
type Resolver struct {
	store    Store
	feeds    Feeds
	reporter MissingReporter
	warned   map[string]struct{}
}

// New builds a Resolver. feeds and reporter may be nil; a nil Feeds means
// no context feeds are registered, and a nil reporter silently drops the
// missing-reference notification.
func New(store Store, feeds Feeds, reporter MissingReporter) *Resolver {
	return &Resolver{store: store, feeds: feeds, reporter: reporter, warned: make(map[string]struct{})}
}

// ResetIteration clears the de-duplicated missing-reference set, so each
// iteration gets its own "warned once" window (spec §4.3).
func (r *Resolver) ResetIteration() {
	r.warned = make(map[string]struct{})
}

// lookup applies spec §4.3's precedence order (highest first): output_key
// bindings, action id bindings, context feed values, then internal-action
// variables.
func (r *Resolver) lookup(name string) (json.RawMessage, bool) {
	if v, ok := r.store.Lookup(name); ok {
		return v, true
	}
	if r.feeds != nil {
		if v, ok := r.feeds.Resolve(name); ok {
			return v, true
		}
	}
	return r.store.LookupVariable(name)
}

func (r *Resolver) reportMissing(name string) {
	if _, seen := r.warned[name]; seen {
		return
	}
	r.warned[name] = struct{}{}
	if r.reporter != nil {
		r.reporter.MissingReference(name)
	}
}

// ResolveText applies $name substitution to a plain string, per the
// type-promotion rule: a string that consists solely of one $name reference
// (optional surrounding whitespace) is replaced, type-preserved, by
// rendering it back through ResolveValue's caller; ResolveText itself
// always returns a string; see ResolveValue for the type-preserving path.
func (r *Resolver) ResolveText(s string) string {
	return substituteText(s, r.lookup, r.reportMissing)
}

// ResolveValue walks arbitrary JSON (already decoded into Go values: map,
// []interface{}, string, float64, bool, nil) and substitutes $name
// references in every string found, applying the type-promotion rule: a
// string that is solely one reference becomes the referenced value's native
// type instead of a string.
func (r *Resolver) ResolveValue(v interface{}) interface{} {
	switch t := v.(type) {
	case string:
		return r.resolveString(t)
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, vv := range t {
			out[k] = r.ResolveValue(vv)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, vv := range t {
			out[i] = r.ResolveValue(vv)
		}
		return out
	default:
		return v
	}
}

// resolveString implements the type-promotion rule for a single string
// value: sole-reference strings are promoted to the bound value's native
// JSON type; embedded references are serialized and concatenated.
func (r *Resolver) resolveString(s string) interface{} {
	if name, ok := soleReference(s); ok {
		raw, found := r.lookup(name)
		if !found {
			r.reportMissing(name)
			return s
		}
		var decoded interface{}
		if err := json.Unmarshal(raw, &decoded); err != nil {
			// Not valid JSON on its own (e.g. a bare unquoted token) — fall
			// back to the raw bytes as a string rather than failing the
			// whole resolve pass.
			return string(raw)
		}
		return decoded
	}
	return substituteText(s, r.lookup, r.reportMissing)
}

// RawBytes resolves value (JSON-encoded) and returns it re-encoded as JSON,
// for callers (the scheduler) that work in json.RawMessage rather than
// decoded Go values.
func (r *Resolver) RawBytes(raw json.RawMessage) (json.RawMessage, error) {
	if len(raw) == 0 {
		return raw, nil
	}
	var decoded interface{}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return raw, err
	}
	resolved := r.ResolveValue(decoded)
	return json.Marshal(resolved)
}

// isNameByte reports whether c is valid within [A-Za-z0-9_] (the $name
// grammar, minus the leading-char restriction against digits).
func isNameByte(c byte) bool {
	return c == '_' ||
		(c >= 'a' && c <= 'z') ||
		(c >= 'A' && c <= 'Z') ||
		(c >= '0' && c <= '9')
}

func isNameStartByte(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// soleReference reports whether s, trimmed of surrounding whitespace,
// consists of exactly one $name reference and nothing else.
func soleReference(s string) (string, bool) {
	t := strings.TrimSpace(s)
	if len(t) < 2 || t[0] != '$' {
		return "", false
	}
	name := t[1:]
	if name == "" || !isNameStartByte(name[0]) {
		return "", false
	}
	for i := 0; i < len(name); i++ {
		if !isNameByte(name[i]) {
			return "", false
		}
	}
	return name, true
}

// substituteText performs longest-greedy $name matching over arbitrary
// text, replacing each match with the serialized (string) form of its
// resolved value, and reporting unresolved names via report.
func substituteText(s string, lookup func(string) (json.RawMessage, bool), report func(string)) string {
	if !strings.Contains(s, "$") {
		return s
	}
	var b strings.Builder
	i := 0
	for i < len(s) {
		if s[i] != '$' {
			b.WriteByte(s[i])
			i++
			continue
		}
		j := i + 1
		if j >= len(s) || !isNameStartByte(s[j]) {
			b.WriteByte(s[i])
			i++
			continue
		}
		k := j + 1
		for k < len(s) && isNameByte(s[k]) {
			k++
		}
		name := s[j:k]
		if raw, ok := lookup(name); ok {
			b.WriteString(serializeForConcat(raw))
		} else {
			report(name)
			b.WriteString(s[i:k])
		}
		i = k
	}
	return b.String()
}

// serializeForConcat renders a bound value as the compact JSON string form
// used when a $name reference is embedded in other text (spec §4.3): a bare
// JSON string value is unquoted so "sum=$a" with a=10 reads "sum=10", not
// "sum=\"10\"" — but non-string values keep their native JSON spelling.
func serializeForConcat(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(raw))
}
