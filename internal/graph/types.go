package graph

import "fmt"

// Relation is the precedence relation carried by an edge.
type Relation uint8

const (
	FinishToStart Relation = iota
	StartToStart
	FinishToFinish
	StartToFinish
)

func (r Relation) String() string {
	switch r {
	case FinishToStart:
		return "finish_to_start"
	case StartToStart:
		return "start_to_start"
	case FinishToFinish:
		return "finish_to_finish"
	case StartToFinish:
		return "start_to_finish"
	}
	return fmt.Sprintf("Relation(%d)", uint8(r))
}

// Edge is a directed dependency between two node handles.
type Edge struct {
	From     int // predecessor
	To       int // successor
	Relation Relation
	Lag      int // signed lead/lag in days
}

// Graph is a dependency graph over integer node handles. Handles are assigned
// in the order ids were supplied to New and stay stable for the graph's life.
type Graph struct {
	IDs   []string
	Edges []Edge
	Out   [][]int // node -> indices into Edges where node is the predecessor
	In    [][]int // node -> indices into Edges where node is the successor

	index map[string]int
}
