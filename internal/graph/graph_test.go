package graph

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildTestGraph() *Graph {
	b := NewBuilder()
	b.AddNode(Node{ID: "a.py::foo", Kind: "function", Name: "foo", File: "a.py", LineStart: 1, LineEnd: 5})
	b.AddNode(Node{ID: "a.py::foobar", Kind: "function", Name: "foobar", File: "a.py", LineStart: 7, LineEnd: 9})
	b.AddNode(Node{ID: "b.py::bar", Kind: "function", Name: "bar", File: "b.py", LineStart: 1, LineEnd: 3})
	b.AddNode(Node{ID: "b.py::Foo", Kind: "class", Name: "Foo", File: "b.py", LineStart: 5, LineEnd: 20})
	b.AddEdge("a.py::foo", "b.py::bar", "calls")
	b.AddEdge("a.py::foobar", "a.py::foo", "calls")
	b.AddEdge("b.py::bar", "a.py::foobar", "calls")
	return b.Build()
}

func TestSearchOrdering(t *testing.T) {
	g := buildTestGraph()

	results := g.Search("foo", "", "", 10)
	require.Len(t, results, 3)
	// Exact matches first (case-insensitive, tie by id), then prefix.
	assert.Equal(t, "a.py::foo", results[0].ID)
	assert.Equal(t, "b.py::Foo", results[1].ID)
	assert.Equal(t, "a.py::foobar", results[2].ID)
}

func TestSearchFilters(t *testing.T) {
	g := buildTestGraph()

	results := g.Search("foo", "class", "", 10)
	require.Len(t, results, 1)
	assert.Equal(t, "b.py::Foo", results[0].ID)

	results = g.Search("foo", "", "a.py", 10)
	require.Len(t, results, 2)

	assert.Empty(t, g.Search("nothing", "", "", 10))
	assert.Empty(t, g.Search("foo", "", "", 0))
}

func TestFileSymbolsSortedByLine(t *testing.T) {
	g := buildTestGraph()

	symbols := g.FileSymbols("a.py")
	require.Len(t, symbols, 2)
	assert.Equal(t, "a.py::foo", symbols[0].ID)
	assert.Equal(t, "a.py::foobar", symbols[1].ID)

	assert.Empty(t, g.FileSymbols("missing.py"))
}

func TestSecondaryIndexes(t *testing.T) {
	g := buildTestGraph()

	byName := g.NodesByName("foo")
	require.Len(t, byName, 2) // foo and Foo, case-insensitive
	assert.Len(t, g.NodesByName("bar"), 1)
	assert.Empty(t, g.NodesByName("missing"))

	classes := g.NodesByKind("class")
	require.Len(t, classes, 1)
	assert.Equal(t, "b.py::Foo", classes[0].ID)
	assert.Len(t, g.NodesByKind("function"), 3)
}

func TestNeighborsDepthAndDirection(t *testing.T) {
	g := buildTestGraph()

	out := g.Neighbors("a.py::foo", 1, Outgoing, nil, 500)
	require.Len(t, out.Neighbors, 1)
	assert.Equal(t, "b.py::bar", out.Neighbors[0].ID)
	assert.Equal(t, 1, out.Neighbors[0].Distance)
	assert.Equal(t, "calls", out.Neighbors[0].EdgeKind)

	in := g.Neighbors("a.py::foo", 1, Incoming, nil, 500)
	require.Len(t, in.Neighbors, 1)
	assert.Equal(t, "a.py::foobar", in.Neighbors[0].ID)

	// The cycle foo -> bar -> foobar -> foo terminates via the visited set;
	// the anchor itself is never returned.
	both := g.Neighbors("a.py::foo", 5, Both, nil, 500)
	assert.Len(t, both.Neighbors, 2)
	for _, n := range both.Neighbors {
		assert.NotEqual(t, "a.py::foo", n.ID)
	}
}

func TestNeighborsKindFilter(t *testing.T) {
	b := NewBuilder()
	b.AddNode(Node{ID: "x", Kind: "function", Name: "x"})
	b.AddNode(Node{ID: "y", Kind: "function", Name: "y"})
	b.AddNode(Node{ID: "z", Kind: "module", Name: "z"})
	b.AddEdge("x", "y", "calls")
	b.AddEdge("x", "z", "imports")
	g := b.Build()

	result := g.Neighbors("x", 2, Outgoing, []string{"calls"}, 500)
	require.Len(t, result.Neighbors, 1)
	assert.Equal(t, "y", result.Neighbors[0].ID)
}

func TestNeighborsTruncation(t *testing.T) {
	b := NewBuilder()
	b.AddNode(Node{ID: "root", Kind: "function", Name: "root"})
	for i := 0; i < 20; i++ {
		id := fmt.Sprintf("n%d", i)
		b.AddNode(Node{ID: id, Kind: "function", Name: id})
		b.AddEdge("root", id, "calls")
	}
	g := b.Build()

	result := g.Neighbors("root", 1, Outgoing, nil, 5)
	assert.Len(t, result.Neighbors, 5)
	assert.True(t, result.Truncated)

	full := g.Neighbors("root", 1, Outgoing, nil, 500)
	assert.Len(t, full.Neighbors, 20)
	assert.False(t, full.Truncated)
}

func TestNeighborsUnknownAnchor(t *testing.T) {
	g := buildTestGraph()
	result := g.Neighbors("missing", 3, Both, nil, 500)
	assert.Empty(t, result.Neighbors)
	assert.False(t, result.Truncated)
}

func TestEdgesToMissingNodesDropped(t *testing.T) {
	b := NewBuilder()
	b.AddNode(Node{ID: "only", Kind: "function", Name: "only"})
	b.AddEdge("only", "ghost", "calls")
	g := b.Build()

	assert.Equal(t, 1, g.NodeCount())
	assert.Equal(t, 0, g.EdgeCount())
}

func TestParseDirection(t *testing.T) {
	for _, tc := range []struct {
		in   string
		want Direction
		ok   bool
	}{
		{"", Outgoing, true},
		{"outgoing", Outgoing, true},
		{"incoming", Incoming, true},
		{"both", Both, true},
		{"sideways", Outgoing, false},
	} {
		got, ok := ParseDirection(tc.in)
		assert.Equal(t, tc.ok, ok, tc.in)
		if ok {
			assert.Equal(t, tc.want, got, tc.in)
		}
	}
}
