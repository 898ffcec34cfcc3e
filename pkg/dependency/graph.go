// Package dependency builds a reachable subgraph of module definitions
// from a selected root set and exposes two orderings over it: a flat
// topological sort (iterative DFS with three-color marking) and a
// level-grouped sort suitable for concurrent deploy scheduling (Kahn's
// algorithm over in-degree/adjacency bookkeeping).
package dependency

import (
	"fmt"

	"github.com/xdrop/cartel/pkg/cartelerr"
	"github.com/xdrop/cartel/pkg/types"
)

// Node is one vertex in the resolved graph: a module definition plus the
// marker under which it was reached from its parent (Instant or
// WaitProbe). The root modules of the selection carry MarkerInstant.
type Node struct {
	Key    string
	Def    *types.ModuleDefinition
	Marker types.EdgeMarker
}

// Graph is the reachable subgraph of module definitions starting from a
// selected set, with an adjacency list recording each node's outgoing
// dependency edges.
type Graph struct {
	nodes    map[string]*Node
	nodeList []*Node
	edges    map[string][]*Node // key -> dependency nodes (children, to be visited first)
}

// Build constructs the reachable subgraph starting from selected (a
// subset of the keys present in defs): a worklist traversal that visits
// each node once, recording its dependency edges as it goes.
func Build(defs []*types.ModuleDefinition, selected []string) (*Graph, error) {
	byName := make(map[string]*types.ModuleDefinition, len(defs))
	for _, d := range defs {
		byName[d.Name] = d
	}

	g := &Graph{
		nodes: make(map[string]*Node),
		edges: make(map[string][]*Node),
	}

	type stackItem struct {
		key    string
		marker types.EdgeMarker
	}

	var stack []stackItem
	expanded := make(map[string]bool)
	for _, name := range selected {
		def, ok := byName[name]
		if !ok {
			return nil, &cartelerr.NotFound{Name: name}
		}
		node := &Node{Key: name, Def: def, Marker: types.MarkerInstant}
		g.nodes[name] = node
		g.nodeList = append(g.nodeList, node)
		stack = append(stack, stackItem{key: name, marker: types.MarkerInstant})
	}

	for len(stack) > 0 {
		item := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		// A node's adjacency list may already hold entries from a From
		// edge recorded before the node itself was expanded, so expansion
		// is tracked separately from g.edges.
		if expanded[item.key] {
			continue
		}
		expanded[item.key] = true

		node := g.nodes[item.key]
		for _, edge := range node.Def.Edges() {
			// edge.Target always names the module on the other end of the
			// edge, regardless of direction: for a To edge the owner
			// depends on it, for a From edge it depends on the owner. It
			// must be validated and made reachable either way.
			target := edge.Target
			owner := item.key

			childDef, ok := byName[target]
			if !ok {
				return nil, &cartelerr.ValidationError{
					Message: fmt.Sprintf("module %q references unknown dependency %q", owner, target),
				}
			}
			if childDef.Kind == types.KindCheck {
				return nil, &cartelerr.ValidationError{
					Message: fmt.Sprintf("module %q depends on %q, but a Check cannot be used as a dependency", owner, target),
				}
			}

			childNode, exists := g.nodes[target]
			if !exists {
				childNode = &Node{Key: target, Def: childDef, Marker: edge.Marker}
				g.nodes[target] = childNode
				g.nodeList = append(g.nodeList, childNode)
				stack = append(stack, stackItem{key: target, marker: edge.Marker})
			}

			if edge.Direction == types.DirectionTo {
				g.edges[owner] = append(g.edges[owner], childNode)
			} else {
				// From: the target depends on the owner, so the owner
				// must be deployed first. Record the edge under the
				// target's adjacency list, pointing back at the owner.
				g.edges[target] = append(g.edges[target], node)
			}
		}
	}

	return g, nil
}

type markType int

const (
	unmarked markType = iota
	temporary
	permanent
)

// Sort returns the nodes of the graph in topological order: every node
// appears after all of its dependencies. Implemented as an iterative DFS
// with three-color marking (unmarked/temporary/permanent) and an
// explicit stack to avoid recursion depth limits on large graphs.
func (g *Graph) Sort() ([]*Node, error) {
	marks := make(map[string]markType, len(g.nodeList))
	sorted := make([]*Node, 0, len(g.nodeList))

	type frame struct {
		isParent bool
		node     *Node
	}

	for _, root := range g.nodeList {
		if marks[root.Key] != unmarked {
			continue
		}

		stack := []frame{{isParent: false, node: root}}
		for len(stack) > 0 {
			f := stack[len(stack)-1]
			stack = stack[:len(stack)-1]

			if f.isParent {
				sorted = append(sorted, f.node)
				marks[f.node.Key] = permanent
				continue
			}

			switch marks[f.node.Key] {
			case permanent:
				continue
			case temporary:
				return nil, &cartelerr.CycleDetected{}
			}

			marks[f.node.Key] = temporary
			stack = append(stack, frame{isParent: true, node: f.node})
			for _, child := range g.edges[f.node.Key] {
				stack = append(stack, frame{isParent: false, node: child})
			}
		}
	}

	return sorted, nil
}

// GroupSort returns the same node set partitioned into dependency levels
// (groups[i] may all be deployed concurrently once every group < i has
// finished), plus the flat linearization from Sort for callers that want
// a single deterministic order.
func (g *Graph) GroupSort() (groups [][]*Node, flat []*Node, err error) {
	flat, err = g.Sort()
	if err != nil {
		return nil, nil, err
	}

	inDegree := make(map[string]int, len(g.nodeList))
	dependents := make(map[string][]string) // dep key -> nodes that depend on it
	for key, children := range g.edges {
		inDegree[key] += len(children)
		for _, child := range children {
			dependents[child.Key] = append(dependents[child.Key], key)
		}
	}
	for _, n := range g.nodeList {
		if _, ok := inDegree[n.Key]; !ok {
			inDegree[n.Key] = 0
		}
	}

	remaining := make(map[string]int, len(inDegree))
	for k, v := range inDegree {
		remaining[k] = v
	}

	placed := make(map[string]bool, len(g.nodeList))
	for len(placed) < len(g.nodeList) {
		var level []*Node
		for _, n := range g.nodeList {
			if placed[n.Key] {
				continue
			}
			if remaining[n.Key] == 0 {
				level = append(level, n)
			}
		}
		if len(level) == 0 {
			// Sort() already validated acyclicity above, so this should
			// be unreachable; guard against it defensively anyway.
			return nil, nil, &cartelerr.CycleDetected{}
		}
		for _, n := range level {
			placed[n.Key] = true
			for _, dependent := range dependents[n.Key] {
				remaining[dependent]--
			}
		}
		groups = append(groups, level)
	}

	return groups, flat, nil
}

// Node returns the resolved node for key, if present.
func (g *Graph) Node(key string) (*Node, bool) {
	n, ok := g.nodes[key]
	return n, ok
}

// Nodes returns every node reachable in the graph, in discovery order.
func (g *Graph) Nodes() []*Node { return g.nodeList }
