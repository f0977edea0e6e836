package graph

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/cortex-prime/agentcore/pkg/action"
)

// SchemaRegistry holds optional per-target JSON Schemas for an Action's
// parameters, keyed by "kind/target" (e.g. "internal/set_variable"). It
// backs the optional parameter validation named in SPEC_FULL.md's domain
// stack: most action targets carry no schema and are left unvalidated here
// (the callable collaborator is free to reject bad parameters itself); only
// internal actions whose shape this core itself interprets are worth
// schema-checking before dispatch.
type SchemaRegistry struct {
	schemas map[string]*jsonschema.Schema
}

// NewSchemaRegistry compiles schema source documents (JSON Schema drafts,
// as raw bytes) keyed by "kind/target" into a ready-to-use registry.
func NewSchemaRegistry(sources map[string][]byte) (*SchemaRegistry, error) {
	c := jsonschema.NewCompiler()
	for key, src := range sources {
		if err := c.AddResource(key, bytes.NewReader(src)); err != nil {
			return nil, fmt.Errorf("schema %s: %w", key, err)
		}
	}
	reg := &SchemaRegistry{schemas: make(map[string]*jsonschema.Schema, len(sources))}
	for key := range sources {
		sch, err := c.Compile(key)
		if err != nil {
			return nil, fmt.Errorf("compiling schema %s: %w", key, err)
		}
		reg.schemas[key] = sch
	}
	return reg, nil
}

func schemaKey(a action.Action) string {
	return string(a.Kind) + "/" + a.Target
}

// ValidateParameters checks every action in actions whose kind/target has a
// registered schema; actions with no matching schema are skipped, not
// flagged. Unlike the fatal defects Build checks, a schema mismatch is
// reported as a single aggregate error naming every offending action id,
// left to the caller (the iteration controller) to treat as a
// ValidationError before the graph is ever built.
func (r *SchemaRegistry) ValidateParameters(actions []action.Action) error {
	if r == nil || len(r.schemas) == 0 {
		return nil
	}
	var bad []string
	for _, a := range actions {
		sch, ok := r.schemas[schemaKey(a)]
		if !ok {
			continue
		}
		var v any
		if len(a.Parameters) > 0 {
			if err := json.Unmarshal(a.Parameters, &v); err != nil {
				bad = append(bad, a.ID)
				continue
			}
		}
		if err := sch.Validate(v); err != nil {
			bad = append(bad, a.ID)
		}
	}
	if len(bad) > 0 {
		return action.NewValidationError(action.SubkindSchemaMismatch, bad, "")
	}
	return nil
}
