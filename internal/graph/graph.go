// Package graph holds the in-memory mirror of the code graph.
//
// Node ids are user-visible strings; internally each id maps to a dense
// integer handle so BFS allocates against slices rather than string-keyed
// maps. The graph is immutable after construction — the indexer builds a
// fresh one and swaps it in behind the service's mutex.
package graph

import (
	"sort"
	"strings"
)

// Direction selects which edges a traversal follows.
type Direction int

const (
	Outgoing Direction = iota
	Incoming
	Both
)

// ParseDirection maps the wire strings to a Direction.
func ParseDirection(s string) (Direction, bool) {
	switch s {
	case "", "outgoing":
		return Outgoing, true
	case "incoming":
		return Incoming, true
	case "both":
		return Both, true
	}
	return Outgoing, false
}

// Node is the graph's view of a symbol.
type Node struct {
	ID        string `json:"id"`
	Kind      string `json:"kind"`
	Name      string `json:"name"`
	File      string `json:"file,omitempty"`
	LineStart int    `json:"line_start,omitempty"`
	LineEnd   int    `json:"line_end,omitempty"`
	Signature string `json:"signature,omitempty"`
}

type edge struct {
	to   int32
	kind string
}

// Graph is a directed labelled graph with name, file, and kind indexes.
type Graph struct {
	nodes    []Node
	handles  map[string]int32
	outgoing [][]edge
	incoming [][]edge

	byName map[string][]int32
	byFile map[string][]int32
	byKind map[string][]int32
}

// Builder accumulates nodes and edges before freezing into a Graph.
type Builder struct {
	g       *Graph
	pending []pendingEdge
}

type pendingEdge struct {
	source, target, kind string
}

// NewBuilder returns an empty builder.
func NewBuilder() *Builder {
	return &Builder{
		g: &Graph{
			handles: make(map[string]int32),
			byName:  make(map[string][]int32),
			byFile:  make(map[string][]int32),
			byKind:  make(map[string][]int32),
		},
	}
}

// AddNode registers a node. Duplicate ids overwrite the earlier attributes
// but keep the handle.
func (b *Builder) AddNode(n Node) {
	if n.Name == "" {
		n.Name = trailingName(n.ID)
	}
	if h, ok := b.g.handles[n.ID]; ok {
		b.g.nodes[h] = n
		return
	}
	h := int32(len(b.g.nodes))
	b.g.handles[n.ID] = h
	b.g.nodes = append(b.g.nodes, n)
	b.g.byName[strings.ToLower(n.Name)] = append(b.g.byName[strings.ToLower(n.Name)], h)
	if n.File != "" {
		b.g.byFile[n.File] = append(b.g.byFile[n.File], h)
	}
	b.g.byKind[n.Kind] = append(b.g.byKind[n.Kind], h)
}

// AddEdge registers an edge. Edges whose endpoints never materialize are
// dropped at Build time.
func (b *Builder) AddEdge(source, target, kind string) {
	b.pending = append(b.pending, pendingEdge{source, target, kind})
}

// Build freezes the builder into an immutable Graph.
func (b *Builder) Build() *Graph {
	g := b.g
	g.outgoing = make([][]edge, len(g.nodes))
	g.incoming = make([][]edge, len(g.nodes))
	for _, pe := range b.pending {
		from, ok1 := g.handles[pe.source]
		to, ok2 := g.handles[pe.target]
		if !ok1 || !ok2 {
			continue
		}
		g.outgoing[from] = append(g.outgoing[from], edge{to: to, kind: pe.kind})
		g.incoming[to] = append(g.incoming[to], edge{to: from, kind: pe.kind})
	}
	b.pending = nil
	return g
}

// NodeCount reports the number of nodes.
func (g *Graph) NodeCount() int { return len(g.nodes) }

// EdgeCount reports the number of edges.
func (g *Graph) EdgeCount() int {
	n := 0
	for _, es := range g.outgoing {
		n += len(es)
	}
	return n
}

// Get returns a node by id.
func (g *Graph) Get(id string) (Node, bool) {
	h, ok := g.handles[id]
	if !ok {
		return Node{}, false
	}
	return g.nodes[h], true
}

// NodesByName returns all nodes whose trailing identifier equals name
// (case-insensitive).
func (g *Graph) NodesByName(name string) []Node {
	hs := g.byName[strings.ToLower(name)]
	out := make([]Node, 0, len(hs))
	for _, h := range hs {
		out = append(out, g.nodes[h])
	}
	return out
}

// NodesByKind returns all nodes of one kind.
func (g *Graph) NodesByKind(kind string) []Node {
	hs := g.byKind[kind]
	out := make([]Node, 0, len(hs))
	for _, h := range hs {
		out = append(out, g.nodes[h])
	}
	return out
}

// FileSymbols lists nodes belonging to a file, sorted by start line.
func (g *Graph) FileSymbols(file string) []Node {
	hs := g.byFile[file]
	out := make([]Node, 0, len(hs))
	for _, h := range hs {
		out = append(out, g.nodes[h])
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].LineStart != out[j].LineStart {
			return out[i].LineStart < out[j].LineStart
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// SearchResult is one search hit with its relevance class.
type SearchResult struct {
	Node
	Score int `json:"-"`
}

const (
	scoreExact     = 100
	scorePrefix    = 50
	scoreSubstring = 25
)

// Search matches query case-insensitively against each node's trailing
// identifier, optionally filtered by kind and file. Ordering: exact >
// prefix > substring, ties broken by id ascending.
func (g *Graph) Search(query, kind, file string, limit int) []SearchResult {
	q := strings.ToLower(query)
	if q == "" || limit <= 0 {
		return nil
	}

	var results []SearchResult
	for _, n := range g.nodes {
		if kind != "" && n.Kind != kind {
			continue
		}
		if file != "" && !strings.Contains(n.File, file) {
			continue
		}
		name := strings.ToLower(n.Name)
		var score int
		switch {
		case name == q:
			score = scoreExact
		case strings.HasPrefix(name, q):
			score = scorePrefix
		case strings.Contains(name, q):
			score = scoreSubstring
		default:
			continue
		}
		results = append(results, SearchResult{Node: n, Score: score})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results
}

// Neighbor is one node reached by a bounded BFS.
type Neighbor struct {
	Node
	EdgeKind string `json:"edge_kind"`
	Distance int    `json:"distance"`
}

// NeighborResult carries the reached set plus a truncation marker.
type NeighborResult struct {
	Neighbors []Neighbor `json:"neighbors"`
	Truncated bool       `json:"truncated"`
}

// Neighbors runs a breadth-first traversal from id up to depth hops,
// following edges in the given direction and, when kinds is non-empty, only
// edges of the listed kinds. The anchor itself is not returned. Each node is
// visited at most once; output is capped at maxNodes.
func (g *Graph) Neighbors(id string, depth int, dir Direction, kinds []string, maxNodes int) NeighborResult {
	start, ok := g.handles[id]
	if !ok || depth < 1 {
		return NeighborResult{}
	}
	if depth > 5 {
		depth = 5
	}
	if maxNodes <= 0 {
		maxNodes = 500
	}

	kindSet := make(map[string]bool, len(kinds))
	for _, k := range kinds {
		kindSet[k] = true
	}

	type frontier struct {
		handle int32
		via    string
		dist   int
	}

	visited := make(map[int32]bool, 64)
	visited[start] = true
	queue := []frontier{{handle: start, dist: 0}}

	var result NeighborResult
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		if cur.handle != start {
			if len(result.Neighbors) >= maxNodes {
				result.Truncated = true
				break
			}
			result.Neighbors = append(result.Neighbors, Neighbor{
				Node:     g.nodes[cur.handle],
				EdgeKind: cur.via,
				Distance: cur.dist,
			})
		}
		if cur.dist == depth {
			continue
		}

		var candidates []edge
		switch dir {
		case Outgoing:
			candidates = g.outgoing[cur.handle]
		case Incoming:
			candidates = g.incoming[cur.handle]
		case Both:
			candidates = append(append([]edge(nil), g.outgoing[cur.handle]...), g.incoming[cur.handle]...)
		}

		for _, e := range candidates {
			if len(kindSet) > 0 && !kindSet[e.kind] {
				continue
			}
			if visited[e.to] {
				continue
			}
			visited[e.to] = true
			queue = append(queue, frontier{handle: e.to, via: e.kind, dist: cur.dist + 1})
		}
	}
	return result
}

// trailingName extracts the final :: segment of an id.
func trailingName(id string) string {
	if i := strings.LastIndex(id, "::"); i >= 0 {
		return id[i+2:]
	}
	return id
}
