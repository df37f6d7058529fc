package crawler

import (
	"sync"
)

// Graph accumulates the crawl result: nodes deduplicated by normalized URL
// and edges kept once per discovered hyperlink occurrence.
type Graph struct {
	mu    sync.Mutex
	order []string
	nodes map[string]PageNode
	edges []Edge
}

// NewGraph returns an empty graph.
func NewGraph() *Graph {
	return &Graph{nodes: make(map[string]PageNode)}
}

// AddNode stores a node unless one with the same ID already exists. The
// first writer wins; nodes are never mutated after creation.
func (g *Graph) AddNode(n PageNode) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.nodes[n.ID]; ok {
		return false
	}
	g.nodes[n.ID] = n
	g.order = append(g.order, n.ID)
	return true
}

// AddEdge appends an edge. Duplicate edges to the same target are kept.
func (g *Graph) AddEdge(e Edge) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.edges = append(g.edges, e)
}

// NodeCount returns the number of nodes created so far.
func (g *Graph) NodeCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.nodes)
}

// EdgeCount returns the number of edges recorded so far.
func (g *Graph) EdgeCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.edges)
}

// Snapshot copies out nodes (in creation order) and edges.
func (g *Graph) Snapshot() ([]PageNode, []Edge) {
	g.mu.Lock()
	defer g.mu.Unlock()
	nodes := make([]PageNode, 0, len(g.order))
	for _, id := range g.order {
		nodes = append(nodes, g.nodes[id])
	}
	edges := make([]Edge, len(g.edges))
	copy(edges, g.edges)
	return nodes, edges
}
