package indexer

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/websines/codegraph-mcp/internal/config"
	"github.com/websines/codegraph-mcp/internal/store"
)

type fixture struct {
	root  string
	cfg   *config.Config
	store *store.Store
	ix    *Indexer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	root := t.TempDir()
	dir := filepath.Join(root, ".codegraph")
	require.NoError(t, os.MkdirAll(dir, 0o755))

	cfg := &config.Config{
		ProjectRoot:    root,
		Dir:            dir,
		CodeDBPath:     filepath.Join(dir, "code.db"),
		LearningDBPath: filepath.Join(dir, "learning.db"),
		Settings:       config.DefaultSettings(),
	}
	st, err := store.Open(cfg.CodeDBPath, cfg.LearningDBPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	return &fixture{root: root, cfg: cfg, store: st, ix: New(st, cfg)}
}

func (f *fixture) write(t *testing.T, rel, content string) {
	t.Helper()
	path := filepath.Join(f.root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// graphShape captures the comparable state of the code graph: node
// (id, kind) pairs and (source, target, kind) edge triples.
func (f *fixture) graphShape(t *testing.T) ([][2]string, [][3]string) {
	t.Helper()
	nodes, err := f.store.NodesByGraph("code")
	require.NoError(t, err)
	var ns [][2]string
	for _, n := range nodes {
		ns = append(ns, [2]string{n.ID, n.Kind})
	}
	edges, err := f.store.EdgesByGraph("code")
	require.NoError(t, err)
	var es [][3]string
	for _, e := range edges {
		es = append(es, [3]string{e.Source, e.Target, e.Kind})
	}
	sort.Slice(ns, func(i, j int) bool { return ns[i][0] < ns[j][0] })
	sort.Slice(es, func(i, j int) bool {
		return es[i][0]+"|"+es[i][1]+"|"+es[i][2] < es[j][0]+"|"+es[j][1]+"|"+es[j][2]
	})
	return ns, es
}

const aPy = `def foo():
    bar()
`

const bPy = `def bar():
    pass
`

func TestIndexResolvesCrossFileCall(t *testing.T) {
	f := newFixture(t)
	f.write(t, "a.py", aPy)
	f.write(t, "b.py", bPy)

	stats, err := f.ix.Run(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.FilesIndexed)
	assert.Equal(t, 2, stats.SymbolsFound)
	assert.GreaterOrEqual(t, stats.Resolved, 1)
	assert.Zero(t, stats.UnresolvedAfter)

	// One edge a.py::foo -[calls]-> b.py::bar, and no unresolved stubs.
	edges, err := f.store.EdgesFrom("a.py::foo")
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.Equal(t, "b.py::bar", edges[0].Target)
	assert.Equal(t, "calls", edges[0].Kind)

	stubs, err := f.store.UnresolvedNodes()
	require.NoError(t, err)
	assert.Empty(t, stubs)
}

func TestIndexIdempotent(t *testing.T) {
	f := newFixture(t)
	f.write(t, "a.py", aPy)
	f.write(t, "b.py", bPy)

	_, err := f.ix.Run(context.Background(), false)
	require.NoError(t, err)
	nodes1, edges1 := f.graphShape(t)

	// Second incremental run: everything unchanged, nothing re-indexed.
	stats, err := f.ix.Run(context.Background(), false)
	require.NoError(t, err)
	assert.Zero(t, stats.FilesIndexed)
	assert.Equal(t, 2, stats.FilesSkipped)

	nodes2, edges2 := f.graphShape(t)
	assert.Equal(t, nodes1, nodes2)
	assert.Equal(t, edges1, edges2)

	// A forced full run also converges to the same shape.
	_, err = f.ix.Run(context.Background(), true)
	require.NoError(t, err)
	nodes3, edges3 := f.graphShape(t)
	assert.Equal(t, nodes1, nodes3)
	assert.Equal(t, edges1, edges3)
}

func TestDeletedFileLeavesUnresolvedStub(t *testing.T) {
	f := newFixture(t)
	f.write(t, "a.py", aPy)
	f.write(t, "b.py", bPy)

	_, err := f.ix.Run(context.Background(), false)
	require.NoError(t, err)

	require.NoError(t, os.Remove(filepath.Join(f.root, "b.py")))

	stats, err := f.ix.Run(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.FilesRemoved)

	// The call edge survives, landing on a stub.
	edges, err := f.store.EdgesFrom("a.py::foo")
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.Equal(t, "unresolved::bar", edges[0].Target)

	// a.py's slice of the graph is otherwise untouched.
	node, err := f.store.GetNode("a.py::foo")
	require.NoError(t, err)
	require.NotNil(t, node)

	node, err = f.store.GetNode("b.py::bar")
	require.NoError(t, err)
	assert.Nil(t, node)
}

func TestIncrementalEditOnlyTouchesChangedFile(t *testing.T) {
	f := newFixture(t)
	f.write(t, "a.py", aPy)
	f.write(t, "b.py", bPy)

	_, err := f.ix.Run(context.Background(), false)
	require.NoError(t, err)

	// Edit b.py: bar stays, baz appears. The content change alters the hash,
	// so the edit is detected regardless of mtime granularity.
	f.write(t, "b.py", "def bar():\n    pass\n\ndef baz():\n    pass\n")

	stats, err := f.ix.Run(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.FilesIndexed)
	assert.Equal(t, 1, stats.FilesSkipped)

	// a.py nodes untouched, the cross-file edge re-resolved.
	edges, err := f.store.EdgesFrom("a.py::foo")
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.Equal(t, "b.py::bar", edges[0].Target)

	node, err := f.store.GetNode("b.py::baz")
	require.NoError(t, err)
	require.NotNil(t, node)
}

func TestResolutionMonotonic(t *testing.T) {
	f := newFixture(t)
	f.write(t, "a.py", aPy) // bar is external: stub stays

	var counts []int
	for i := 0; i < 3; i++ {
		stats, err := f.ix.Run(context.Background(), true)
		require.NoError(t, err)
		counts = append(counts, stats.UnresolvedAfter)
	}
	for i := 1; i < len(counts); i++ {
		assert.LessOrEqual(t, counts[i], counts[i-1])
	}
	assert.Equal(t, 1, counts[len(counts)-1]) // unresolved::bar persists
}

func TestAmbiguousNameKeepsStub(t *testing.T) {
	f := newFixture(t)
	f.write(t, "a.py", aPy)
	f.write(t, "b.py", bPy)
	f.write(t, "c.py", bPy) // second definition of bar

	stats, err := f.ix.Run(context.Background(), false)
	require.NoError(t, err)
	assert.Zero(t, stats.Resolved)
	assert.Equal(t, 1, stats.UnresolvedAfter)

	edges, err := f.store.EdgesFrom("a.py::foo")
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.Equal(t, "unresolved::bar", edges[0].Target)
}

func TestExcludedDirsAndUnknownExtensionsSkipped(t *testing.T) {
	f := newFixture(t)
	f.write(t, "a.py", aPy)
	f.write(t, "node_modules/dep/index.js", "function hidden() {}\n")
	f.write(t, "README.md", "# nope\n")

	stats, err := f.ix.Run(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.FilesScanned)
	assert.Equal(t, 1, stats.FilesIndexed)
}

func TestOversizedFileSkipped(t *testing.T) {
	f := newFixture(t)
	f.cfg.Settings.Indexing.MaxFileSize = 16
	f.write(t, "big.py", "def really_long_function_name():\n    pass\n")

	stats, err := f.ix.Run(context.Background(), false)
	require.NoError(t, err)
	assert.Zero(t, stats.FilesScanned)
	assert.Zero(t, stats.FilesIndexed)
}

func TestUnchangedMtimeAndHashSkips(t *testing.T) {
	f := newFixture(t)
	f.write(t, "a.py", aPy)

	_, err := f.ix.Run(context.Background(), false)
	require.NoError(t, err)

	// Touch the mtime without changing content: both fields must match
	// for a skip, so the changed mtime forces a re-parse once, after
	// which the stored pair is current again.
	future := time.Now().Add(2 * time.Second)
	require.NoError(t, os.Chtimes(filepath.Join(f.root, "a.py"), future, future))

	stats, err := f.ix.Run(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.FilesIndexed)

	stats, err = f.ix.Run(context.Background(), false)
	require.NoError(t, err)
	assert.Zero(t, stats.FilesIndexed)
	assert.Equal(t, 1, stats.FilesSkipped)
}
