// Package graph implements the Action Graph (C2): validating one
// iteration's parsed actions into a dependency DAG and computing each
// action's wave (its depth in the DAG, roots = 1). The scheduler does not
// consult waves when ordering launches.
package graph

import (
	"github.com/cortex-prime/agentcore/pkg/action"
)

// Node is one action plus its resolved graph position.
type Node struct {
	Action    action.Action
	Wave      int
	Dependents []string // ids of actions that declare this node as a dependency
}

// Graph is the validated, executable dependency structure C4 consumes.
type Graph struct {
	nodes map[string]*Node
	order []string // ids in the order C1 emitted their closing tags
}

// Len returns the number of actions in the graph.
func (g *Graph) Len() int { return len(g.nodes) }

// Node looks up a node by action id.
func (g *Graph) Node(id string) (*Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// Order returns action ids in emission order (spec §4.1 "ordering
// guarantee"): the canonical intra-iteration id sequence.
func (g *Graph) Order() []string {
	out := make([]string, len(g.order))
	copy(out, g.order)
	return out
}

// Roots returns ids with no dependencies (wave 1).
func (g *Graph) Roots() []string {
	var roots []string
	for _, id := range g.order {
		if len(g.nodes[id].Action.DependsOn) == 0 {
			roots = append(roots, id)
		}
	}
	return roots
}

// Build validates actions per spec §4.2 and returns an executable Graph, or
// the first ValidationError encountered. maxNodes bounds the accepted graph
// size (spec §5's "pending action queue is bounded").
func Build(actions []action.Action, maxNodes int) (*Graph, error) {
	if maxNodes > 0 && len(actions) > maxNodes {
		return nil, action.NewValidationError(action.SubkindGraphTooLarge, nil, "")
	}

	nodes := make(map[string]*Node, len(actions))
	order := make([]string, 0, len(actions))
	var dupes []string
	for _, a := range actions {
		if _, exists := nodes[a.ID]; exists {
			dupes = append(dupes, a.ID)
			continue
		}
		nodes[a.ID] = &Node{Action: a}
		order = append(order, a.ID)
	}
	if len(dupes) > 0 {
		return nil, action.NewValidationError(action.SubkindDuplicateID, dupes, "")
	}

	outputKeys := make(map[string]string)
	for _, id := range order {
		n := nodes[id]
		if n.Action.OutputKey == "" {
			continue
		}
		if owner, exists := outputKeys[n.Action.OutputKey]; exists {
			return nil, action.NewValidationError(action.SubkindDuplicateOutputKey, []string{owner, id}, n.Action.OutputKey)
		}
		outputKeys[n.Action.OutputKey] = id
	}

	var dangling []string
	for _, id := range order {
		for _, dep := range nodes[id].Action.DependsOn {
			target, ok := nodes[dep]
			if !ok {
				dangling = append(dangling, dep)
				continue
			}
			target.Dependents = append(target.Dependents, id)
			if target.Action.Mode == action.ModeFireAndForget {
				return nil, action.NewValidationError(action.SubkindDependsOnFireAndForget, []string{dep, id}, "")
			}
		}
	}
	if len(dangling) > 0 {
		return nil, action.NewValidationError(action.SubkindDanglingDependency, dangling, "")
	}

	waves, cycleIDs, ok := computeWaves(nodes, order)
	if !ok {
		return nil, action.NewValidationError(action.SubkindCycle, cycleIDs, "")
	}
	for id, w := range waves {
		nodes[id].Wave = w
	}

	return &Graph{nodes: nodes, order: order}, nil
}

// computeWaves runs Kahn's algorithm: repeatedly remove nodes whose
// dependencies are all resolved, assigning wave = 1 + max(dep waves). If any
// nodes remain unresolved when no further progress is possible, those
// unresolved ids participate in a cycle.
func computeWaves(nodes map[string]*Node, order []string) (map[string]int, []string, bool) {
	indegree := make(map[string]int, len(nodes))
	for _, id := range order {
		indegree[id] = len(nodes[id].Action.DependsOn)
	}

	wave := make(map[string]int, len(nodes))
	queue := make([]string, 0, len(nodes))
	for _, id := range order {
		if indegree[id] == 0 {
			wave[id] = 1
			queue = append(queue, id)
		}
	}

	processed := 0
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		processed++
		for _, dependentID := range nodes[id].Dependents {
			indegree[dependentID]--
			if w := wave[id] + 1; w > wave[dependentID] {
				wave[dependentID] = w
			}
			if indegree[dependentID] == 0 {
				queue = append(queue, dependentID)
			}
		}
	}

	if processed == len(nodes) {
		return wave, nil, true
	}

	var remaining []string
	for _, id := range order {
		if indegree[id] > 0 {
			remaining = append(remaining, id)
		}
	}
	return nil, remaining, false
}
