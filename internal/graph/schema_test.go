package graph

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/cortex-prime/agentcore/pkg/action"
)

func TestSchemaRegistryRejectsBadParameters(t *testing.T) {
	reg, err := NewSchemaRegistry(map[string][]byte{
		"internal/set_variable": []byte(`{
			"type": "object",
			"required": ["name", "value"],
			"properties": {"name": {"type": "string"}}
		}`),
	})
	if err != nil {
		t.Fatalf("NewSchemaRegistry: %v", err)
	}

	bad := action.Action{ID: "A", Kind: action.KindInternal, Target: "set_variable", Parameters: json.RawMessage(`{"name":"x"}`)}
	err = reg.ValidateParameters([]action.Action{bad})
	var ve *action.ValidationError
	if !errors.As(err, &ve) || ve.Subkind != action.SubkindSchemaMismatch {
		t.Fatalf("expected schema_mismatch, got %v", err)
	}
}

func TestSchemaRegistryIgnoresUnregisteredTargets(t *testing.T) {
	reg, err := NewSchemaRegistry(map[string][]byte{
		"internal/set_variable": []byte(`{"type":"object"}`),
	})
	if err != nil {
		t.Fatalf("NewSchemaRegistry: %v", err)
	}
	a := action.Action{ID: "A", Kind: action.KindTool, Target: "anything", Parameters: json.RawMessage(`{"whatever":1}`)}
	if err := reg.ValidateParameters([]action.Action{a}); err != nil {
		t.Fatalf("unexpected error for unregistered target: %v", err)
	}
}

func TestNilSchemaRegistryIsNoOp(t *testing.T) {
	var reg *SchemaRegistry
	a := action.Action{ID: "A", Kind: action.KindInternal, Target: "set_variable", Parameters: json.RawMessage(`{}`)}
	if err := reg.ValidateParameters([]action.Action{a}); err != nil {
		t.Fatalf("expected nil registry to be a no-op, got %v", err)
	}
}
