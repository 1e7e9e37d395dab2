// Package graph builds the dependency DAG over a desired-state document and
// provides the deterministic orderings planning and execution rely on.
package graph

import (
	"container/heap"

	"github.com/edgeops/converge/kernel/model"
)

// Graph is the immutable dependency graph of one document. Node indices are
// declaration order, which doubles as the topological tie-break.
type Graph struct {
	ids      []model.ResourceId
	index    map[model.ResourceId]int
	incoming [][]int // prerequisites ("after" targets)
	outgoing [][]int // dependents
	indeg    []int
}

// Build constructs the graph and proves it acyclic. A cycle yields a
// *model.CycleError carrying one deterministic witness path.
func Build(state *model.DesiredState) (*Graph, error) {
	n := len(state.Resources)
	g := &Graph{
		ids:      make([]model.ResourceId, n),
		index:    make(map[model.ResourceId]int, n),
		incoming: make([][]int, n),
		outgoing: make([][]int, n),
		indeg:    make([]int, n),
	}
	for i, decl := range state.Resources {
		g.ids[i] = decl.Id()
		g.index[decl.Id()] = i
	}
	for i, decl := range state.Resources {
		for _, dep := range decl.After {
			p := g.index[dep]
			g.incoming[i] = append(g.incoming[i], p)
			g.outgoing[p] = append(g.outgoing[p], i)
			g.indeg[i]++
		}
	}

	order := g.topoOrderIndices()
	if len(order) != n {
		return nil, &model.CycleError{Path: g.findCycle()}
	}
	return g, nil
}

func (g *Graph) Len() int {
	return len(g.ids)
}

// TopoOrder returns the resources in dependency order, declaration order
// breaking ties.
func (g *Graph) TopoOrder() []model.ResourceId {
	indices := g.topoOrderIndices()
	out := make([]model.ResourceId, len(indices))
	for i, idx := range indices {
		out[i] = g.ids[idx]
	}
	return out
}

// Prerequisites returns the direct "after" targets of id.
func (g *Graph) Prerequisites(id model.ResourceId) []model.ResourceId {
	idx, ok := g.index[id]
	if !ok {
		return nil
	}
	out := make([]model.ResourceId, 0, len(g.incoming[idx]))
	for _, p := range g.incoming[idx] {
		out = append(out, g.ids[p])
	}
	return out
}

// Dependents returns every resource that transitively depends on id, in
// declaration order. Used to propagate skips when a prerequisite degrades.
func (g *Graph) Dependents(id model.ResourceId) []model.ResourceId {
	idx, ok := g.index[id]
	if !ok {
		return nil
	}
	seen := make([]bool, len(g.ids))
	stack := []int{idx}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, next := range g.outgoing[cur] {
			if !seen[next] {
				seen[next] = true
				stack = append(stack, next)
			}
		}
	}
	var out []model.ResourceId
	for i, s := range seen {
		if s && i != idx {
			out = append(out, g.ids[i])
		}
	}
	return out
}

type intMinHeap []int

func (h intMinHeap) Len() int           { return len(h) }
func (h intMinHeap) Less(i, j int) bool { return h[i] < h[j] }
func (h intMinHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *intMinHeap) Push(x any)        { *h = append(*h, x.(int)) }
func (h *intMinHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// topoOrderIndices runs Kahn's algorithm with a min-heap ready queue so the
// ordering is stable across runs.
func (g *Graph) topoOrderIndices() []int {
	indeg := make([]int, len(g.indeg))
	copy(indeg, g.indeg)

	ready := &intMinHeap{}
	heap.Init(ready)
	for i := range indeg {
		if indeg[i] == 0 {
			heap.Push(ready, i)
		}
	}

	out := make([]int, 0, len(indeg))
	for ready.Len() > 0 {
		n := heap.Pop(ready).(int)
		out = append(out, n)
		for _, m := range g.outgoing[n] {
			indeg[m]--
			if indeg[m] == 0 {
				heap.Push(ready, m)
			}
		}
	}
	return out
}

// findCycle extracts one cycle path via DFS over declaration indices. It does
// not enumerate all cycles; one stable witness is enough for the error.
func (g *Graph) findCycle() []model.ResourceId {
	const (
		white = 0
		gray  = 1
		black = 2
	)

	color := make([]int, len(g.ids))
	parent := make([]int, len(g.ids))
	for i := range parent {
		parent[i] = -1
	}

	var cycle []int

	var dfs func(u int) bool
	dfs = func(u int) bool {
		color[u] = gray
		for _, v := range g.outgoing[u] {
			if color[v] == white {
				parent[v] = u
				if dfs(v) {
					return true
				}
				continue
			}
			if color[v] == gray {
				// Back-edge u -> v. Reconstruct v ... u -> v.
				cycle = append(cycle, v)
				cur := u
				for cur != -1 && cur != v {
					cycle = append(cycle, cur)
					cur = parent[cur]
				}
				cycle = append(cycle, v)
				return true
			}
		}
		color[u] = black
		return false
	}

	for i := 0; i < len(g.ids); i++ {
		if color[i] != white {
			continue
		}
		if dfs(i) {
			break
		}
	}

	if len(cycle) == 0 {
		return nil
	}
	// Reverse into forward edge order.
	out := make([]model.ResourceId, 0, len(cycle))
	for i := len(cycle) - 1; i >= 0; i-- {
		out = append(out, g.ids[cycle[i]])
	}
	return out
}
