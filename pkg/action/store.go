package action

import (
	"encoding/json"
	"sync"
)

// Store is the per-execution ResultStore: a mapping from output_key (or,
// absent that, action id) to the action's resolved output. Lifetime equals
// one agent execution — all iterations share the same Store instance, so
// later iterations can read earlier iterations' bindings.
//
// Single-writer-many-readers by construction: exactly one scheduler worker
// writes a given key (the one executing the action that produced it), and a
// dependency edge provides the happens-before for any reader. The mutex here
// guards the map itself, not cross-key ordering.
type Store struct {
	mu      sync.RWMutex
	byKey   map[string]json.RawMessage
	byID    map[string]json.RawMessage
	vars    map[string]json.RawMessage
}

// NewStore returns an empty result store.
func NewStore() *Store {
	return &Store{
		byKey: make(map[string]json.RawMessage),
		byID:  make(map[string]json.RawMessage),
		vars:  make(map[string]json.RawMessage),
	}
}

// Bind records a completed action's output under its id and, if set, its
// output_key. Called exactly once per action by the scheduler.
func (s *Store) Bind(actionID, outputKey string, output json.RawMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[actionID] = output
	if outputKey != "" {
		s.byKey[outputKey] = output
	}
}

// Lookup resolves a $name reference against output_key bindings first, then
// action id bindings (spec §4.3's top two precedence tiers). It deliberately
// does not consult internal-action variables: those rank below context
// feeds (see LookupVariable), and the resolver only falls through to them
// after feeds have had a chance to match.
func (s *Store) Lookup(name string) (json.RawMessage, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if v, ok := s.byKey[name]; ok {
		return v, true
	}
	if v, ok := s.byID[name]; ok {
		return v, true
	}
	return nil, false
}

// LookupVariable resolves a $name reference against execution-scoped
// variables set by internal actions — spec §4.3's lowest precedence tier,
// below context feeds. Kept separate from Lookup so the resolver can
// consult context feeds before falling back to this tier.
func (s *Store) LookupVariable(name string) (json.RawMessage, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.vars[name]
	return v, ok
}

// SetVariable implements the internal set_variable action: execution-scoped
// bindings that sit below context feeds in resolution precedence.
func (s *Store) SetVariable(name string, value json.RawMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vars[name] = value
}

// DeleteVariable implements the internal delete_variable action.
func (s *Store) DeleteVariable(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.vars, name)
}

// ClearContext implements the internal clear_context action: drops all
// execution-scoped variables but leaves action output bindings intact,
// since those are owned by completed actions, not context state.
func (s *Store) ClearContext() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vars = make(map[string]json.RawMessage)
}
