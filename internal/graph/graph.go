package graph

import (
	"errors"
	"fmt"
	"sort"
)

// ErrCycle is returned by TopoSort when the graph is not a DAG.
var ErrCycle = errors.New("dependency cycle detected")

// New builds an edgeless graph over ids. Duplicate ids are rejected.
func New(ids []string) (*Graph, error) {
	g := &Graph{
		IDs:   make([]string, 0, len(ids)),
		Out:   make([][]int, len(ids)),
		In:    make([][]int, len(ids)),
		index: make(map[string]int, len(ids)),
	}
	for _, id := range ids {
		if _, ok := g.index[id]; ok {
			return nil, fmt.Errorf("duplicate node id %q", id)
		}
		g.index[id] = len(g.IDs)
		g.IDs = append(g.IDs, id)
	}
	return g, nil
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	return len(g.IDs)
}

// Index resolves an id to its node handle.
func (g *Graph) Index(id string) (int, bool) {
	i, ok := g.index[id]
	return i, ok
}

// AddEdge adds from -> to. Edges that reference an unknown id are dropped and
// reported with false.
func (g *Graph) AddEdge(from, to string, rel Relation, lag int) bool {
	fi, ok := g.index[from]
	if !ok {
		return false
	}
	ti, ok := g.index[to]
	if !ok {
		return false
	}
	g.addEdge(Edge{From: fi, To: ti, Relation: rel, Lag: lag})
	return true
}

func (g *Graph) addEdge(e Edge) {
	g.Edges = append(g.Edges, e)
	idx := len(g.Edges) - 1
	g.Out[e.From] = append(g.Out[e.From], idx)
	g.In[e.To] = append(g.In[e.To], idx)
}

// Leaves returns the nodes with no successors.
func (g *Graph) Leaves() []int {
	var leaves []int
	for i := range g.IDs {
		if len(g.Out[i]) == 0 {
			leaves = append(leaves, i)
		}
	}
	return leaves
}

// Reachable marks every node reachable from start by following successor
// edges, start included.
func (g *Graph) Reachable(start int) []bool {
	seen := make([]bool, len(g.IDs))
	seen[start] = true
	stack := []int{start}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, ei := range g.Out[n] {
			to := g.Edges[ei].To
			if !seen[to] {
				seen[to] = true
				stack = append(stack, to)
			}
		}
	}
	return seen
}

// Induced returns the subgraph over the kept nodes, preserving their relative
// order. Only edges with both ends kept survive. The second return value maps
// each new handle to its handle in g.
func (g *Graph) Induced(keep []bool) (*Graph, []int) {
	var ids []string
	var orig []int
	remap := make([]int, len(g.IDs))
	for i, id := range g.IDs {
		remap[i] = -1
		if keep[i] {
			remap[i] = len(ids)
			ids = append(ids, id)
			orig = append(orig, i)
		}
	}

	sub := &Graph{
		IDs:   ids,
		Out:   make([][]int, len(ids)),
		In:    make([][]int, len(ids)),
		index: make(map[string]int, len(ids)),
	}
	for i, id := range ids {
		sub.index[id] = i
	}
	for _, e := range g.Edges {
		from, to := remap[e.From], remap[e.To]
		if from < 0 || to < 0 {
			continue
		}
		sub.addEdge(Edge{From: from, To: to, Relation: e.Relation, Lag: e.Lag})
	}
	return sub, orig
}

// DetectCycle returns the nodes of a cycle if one exists, or nil if the graph
// is acyclic. Uses DFS with coloring: white (unvisited), gray (in progress),
// black (done). Nodes are visited in handle order, so the result is
// deterministic for a given input order.
func (g *Graph) DetectCycle() []int {
	const (
		white = 0
		gray  = 1
		black = 2
	)

	color := make([]int, len(g.IDs))
	parent := make([]int, len(g.IDs))

	var dfs func(node int) []int
	dfs = func(node int) []int {
		color[node] = gray
		for _, ei := range g.Out[node] {
			next := g.Edges[ei].To
			if color[next] == gray {
				// Back edge: walk parents from node up to next.
				cycle := []int{node}
				for cur := node; cur != next; {
					cur = parent[cur]
					cycle = append(cycle, cur)
				}
				for i, j := 0, len(cycle)-1; i < j; i, j = i+1, j-1 {
					cycle[i], cycle[j] = cycle[j], cycle[i]
				}
				return cycle
			}
			if color[next] == white {
				parent[next] = node
				if cycle := dfs(next); cycle != nil {
					return cycle
				}
			}
		}
		color[node] = black
		return nil
	}

	for i := range g.IDs {
		if color[i] == white {
			if cycle := dfs(i); cycle != nil {
				return cycle
			}
		}
	}
	return nil
}

// TopoSort performs Kahn's algorithm for topological sorting. Roots start
// the queue in handle order and each batch of newly ready successors is
// sorted, so independent nodes keep their input order.
func (g *Graph) TopoSort() ([]int, error) {
	inDegree := make([]int, len(g.IDs))
	var queue []int
	for i := range g.IDs {
		inDegree[i] = len(g.In[i])
		if inDegree[i] == 0 {
			queue = append(queue, i)
		}
	}

	order := make([]int, 0, len(g.IDs))
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		order = append(order, node)

		var newReady []int
		for _, ei := range g.Out[node] {
			succ := g.Edges[ei].To
			inDegree[succ]--
			if inDegree[succ] == 0 {
				newReady = append(newReady, succ)
			}
		}
		sort.Ints(newReady)
		queue = append(queue, newReady...)
	}

	if len(order) != len(g.IDs) {
		return nil, fmt.Errorf("%w (%d of %d nodes sorted)", ErrCycle, len(order), len(g.IDs))
	}
	return order, nil
}

// NodeIDs maps handles back to ids.
func (g *Graph) NodeIDs(nodes []int) []string {
	ids := make([]string, len(nodes))
	for i, n := range nodes {
		ids[i] = g.IDs[n]
	}
	return ids
}
