package graph

import (
	"errors"
	"testing"

	"github.com/cortex-prime/agentcore/pkg/action"
)

func act(id string, deps ...string) action.Action {
	return action.Action{ID: id, Kind: action.KindTool, Mode: action.ModeSync, Target: "x", DependsOn: deps}
}

func TestBuildSimpleChain(t *testing.T) {
	g, err := Build([]action.Action{act("A"), act("B", "A"), act("C", "B")}, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	nb, _ := g.Node("B")
	if nb.Wave != 2 {
		t.Fatalf("expected B wave 2, got %d", nb.Wave)
	}
	nc, _ := g.Node("C")
	if nc.Wave != 3 {
		t.Fatalf("expected C wave 3, got %d", nc.Wave)
	}
}

func TestDuplicateID(t *testing.T) {
	_, err := Build([]action.Action{act("A"), act("A")}, 0)
	var ve *action.ValidationError
	if !errors.As(err, &ve) || ve.Subkind != action.SubkindDuplicateID {
		t.Fatalf("expected duplicate_id, got %v", err)
	}
}

func TestDanglingDependency(t *testing.T) {
	_, err := Build([]action.Action{act("A", "ghost")}, 0)
	var ve *action.ValidationError
	if !errors.As(err, &ve) || ve.Subkind != action.SubkindDanglingDependency {
		t.Fatalf("expected dangling_dependency, got %v", err)
	}
}

func TestCycleDetected(t *testing.T) {
	_, err := Build([]action.Action{act("A", "B"), act("B", "A")}, 0)
	var ve *action.ValidationError
	if !errors.As(err, &ve) || ve.Subkind != action.SubkindCycle {
		t.Fatalf("expected cycle, got %v", err)
	}
	if len(ve.IDs) != 2 {
		t.Fatalf("expected both participants reported, got %v", ve.IDs)
	}
}

func TestFireAndForgetCannotBeDependency(t *testing.T) {
	faf := act("A")
	faf.Mode = action.ModeFireAndForget
	_, err := Build([]action.Action{faf, act("B", "A")}, 0)
	var ve *action.ValidationError
	if !errors.As(err, &ve) || ve.Subkind != action.SubkindDependsOnFireAndForget {
		t.Fatalf("expected depends_on_fire_and_forget, got %v", err)
	}
}

func TestDuplicateOutputKey(t *testing.T) {
	a1 := act("A")
	a1.OutputKey = "x"
	a2 := act("B")
	a2.OutputKey = "x"
	_, err := Build([]action.Action{a1, a2}, 0)
	var ve *action.ValidationError
	if !errors.As(err, &ve) || ve.Subkind != action.SubkindDuplicateOutputKey {
		t.Fatalf("expected duplicate_output_key, got %v", err)
	}
}

func TestGraphTooLarge(t *testing.T) {
	_, err := Build([]action.Action{act("A"), act("B")}, 1)
	var ve *action.ValidationError
	if !errors.As(err, &ve) || ve.Subkind != action.SubkindGraphTooLarge {
		t.Fatalf("expected graph_too_large, got %v", err)
	}
}

func TestEmptyGraphValidates(t *testing.T) {
	g, err := Build(nil, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if g.Len() != 0 {
		t.Fatalf("expected empty graph")
	}
}

func TestDiamondDependencyWave(t *testing.T) {
	// A is depended on by both B and C; D depends on both B and C.
	g, err := Build([]action.Action{act("A"), act("B", "A"), act("C", "A"), act("D", "B", "C")}, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	nd, _ := g.Node("D")
	if nd.Wave != 3 {
		t.Fatalf("expected D wave 3, got %d", nd.Wave)
	}
}
