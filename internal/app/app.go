// Package app owns the lazily initialized runtime shared by every tool:
// configuration, the two stores, the in-memory graph, and the subsystem
// managers.
//
// Project-root detection is deferred until the first tool call so the
// server can respect the working directory the client launched it with.
// The in-memory graph is an immutable snapshot swapped behind a RWMutex:
// queries see either the pre-index or the post-index graph, never a
// half-rebuilt one.
package app

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/websines/codegraph-mcp/internal/config"
	"github.com/websines/codegraph-mcp/internal/crosslang"
	"github.com/websines/codegraph-mcp/internal/graph"
	"github.com/websines/codegraph-mcp/internal/indexer"
	"github.com/websines/codegraph-mcp/internal/learning"
	"github.com/websines/codegraph-mcp/internal/session"
	"github.com/websines/codegraph-mcp/internal/store"
)

// App is the shared tool runtime.
type App struct {
	initOnce sync.Once
	initErr  error

	cfg   *config.Config
	store *store.Store

	Session      *session.Manager
	Patterns     *learning.PatternStore
	Failures     *learning.FailureStore
	Lineage      *learning.LineageStore
	Niches       *learning.NicheStore
	Instructions *learning.InstructionStore
	Inferrer     *crosslang.Inferrer

	// writeMu serializes mutating operations so writes are observed in
	// issue order even if the transport ever dispatches concurrently.
	writeMu sync.Mutex

	graphMu sync.RWMutex
	graph   *graph.Graph
}

// New returns an uninitialized App. Init runs on first use.
func New() *App {
	return &App{}
}

// Init resolves configuration, opens the stores, and loads the graph. It is
// safe to call from every tool handler; only the first call does work.
func (a *App) Init() error {
	a.initOnce.Do(func() {
		a.initErr = a.initialize()
	})
	return a.initErr
}

func (a *App) initialize() error {
	cfg, err := config.Detect()
	if err != nil {
		return err
	}
	if err := cfg.EnsureLayout(); err != nil {
		return err
	}

	st, err := store.Open(cfg.CodeDBPath, cfg.LearningDBPath)
	if err != nil {
		return err
	}

	a.cfg = cfg
	a.store = st
	a.Session = session.NewManager(st)
	a.Patterns = learning.NewPatternStore(st.Learning())
	a.Failures = learning.NewFailureStore(st.Learning())
	a.Lineage = learning.NewLineageStore(st.Learning())
	a.Niches = learning.NewNicheStore(st.Learning())
	a.Instructions = learning.NewInstructionStore(st.Learning())
	a.Inferrer = crosslang.New(st, cfg.ProjectRoot)

	return a.RebuildGraph()
}

// Close releases the stores. Safe to call before Init.
func (a *App) Close() error {
	if a.store == nil {
		return nil
	}
	return a.store.Close()
}

// Config returns the resolved configuration. Valid after Init.
func (a *App) Config() *config.Config { return a.cfg }

// Store returns the storage layer. Valid after Init.
func (a *App) Store() *store.Store { return a.store }

// Graph returns the current graph snapshot.
func (a *App) Graph() *graph.Graph {
	a.graphMu.RLock()
	defer a.graphMu.RUnlock()
	return a.graph
}

// RebuildGraph replays the code graph from the database and swaps the new
// snapshot in under one mutation boundary.
func (a *App) RebuildGraph() error {
	b := graph.NewBuilder()

	nodes, err := a.store.NodesByGraph("code")
	if err != nil {
		return fmt.Errorf("app: load nodes: %w", err)
	}
	for _, n := range nodes {
		b.AddNode(graphNode(n))
	}

	edges, err := a.store.EdgesByGraph("code")
	if err != nil {
		return fmt.Errorf("app: load edges: %w", err)
	}
	for _, e := range edges {
		b.AddEdge(e.Source, e.Target, e.Kind)
	}

	g := b.Build()
	a.graphMu.Lock()
	a.graph = g
	a.graphMu.Unlock()
	return nil
}

// Index runs the indexer and rebuilds the graph snapshot.
func (a *App) Index(ctx context.Context, full bool) (*indexer.Stats, error) {
	a.writeMu.Lock()
	defer a.writeMu.Unlock()

	ix := indexer.New(a.store, a.cfg)
	stats, err := ix.Run(ctx, full)
	if err != nil {
		return nil, err
	}
	if err := a.RebuildGraph(); err != nil {
		return nil, err
	}
	return stats, nil
}

// LockWrites serializes a mutating operation with the indexer.
func (a *App) LockWrites() func() {
	a.writeMu.Lock()
	return a.writeMu.Unlock
}

// graphNode converts a stored node's JSON data into the graph's node shape.
func graphNode(n store.Node) graph.Node {
	var data struct {
		Name      string `json:"name"`
		File      string `json:"file"`
		LineStart int    `json:"line_start"`
		LineEnd   int    `json:"line_end"`
		Signature string `json:"signature"`
	}
	_ = json.Unmarshal(n.Data, &data)
	return graph.Node{
		ID:        n.ID,
		Kind:      n.Kind,
		Name:      data.Name,
		File:      data.File,
		LineStart: data.LineStart,
		LineEnd:   data.LineEnd,
		Signature: data.Signature,
	}
}
