// Package indexer walks the project tree, detects changed files, drives the
// parser, and writes the resulting nodes and edges to the store.
//
// Parsing fans out across a bounded worker pool; every database write goes
// through the single indexing goroutine so transaction order matches file
// order. The cross-file resolution pass runs once per index, repo-wide.
package indexer

import (
	"context"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/websines/codegraph-mcp/internal/config"
	"github.com/websines/codegraph-mcp/internal/lang"
	"github.com/websines/codegraph-mcp/internal/parser"
	"github.com/websines/codegraph-mcp/internal/store"
)

// Stats summarizes one index run.
type Stats struct {
	FilesScanned     int      `json:"files_scanned"`
	FilesIndexed     int      `json:"files_indexed"`
	FilesSkipped     int      `json:"files_skipped"`
	FilesRemoved     int      `json:"files_removed"`
	SymbolsFound     int      `json:"symbols_found"`
	EdgesFound       int      `json:"edges_found"`
	UnresolvedBefore int      `json:"unresolved_before"`
	Resolved         int      `json:"resolved"`
	UnresolvedAfter  int      `json:"unresolved_after"`
	DurationMS       int64    `json:"duration_ms"`
	Warnings         []string `json:"warnings,omitempty"`
}

// Indexer binds a store to a project configuration.
type Indexer struct {
	store *store.Store
	cfg   *config.Config
}

// New creates an Indexer.
func New(st *store.Store, cfg *config.Config) *Indexer {
	return &Indexer{store: st, cfg: cfg}
}

// Run indexes the project. In full mode every supported file is re-parsed;
// otherwise only files whose (mtime, hash) pair changed.
func (ix *Indexer) Run(ctx context.Context, full bool) (*Stats, error) {
	start := time.Now()
	stats := &Stats{}

	candidates, err := ix.enumerate(stats)
	if err != nil {
		return nil, err
	}

	known, err := ix.store.ListFiles()
	if err != nil {
		return nil, fmt.Errorf("indexer: list indexed files: %w", err)
	}

	found := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		found[c.relPath] = true
	}

	// Files gone from disk leave the store before new work begins, so a
	// rename is a delete plus an insert within one run.
	for _, path := range known {
		if found[path] {
			continue
		}
		if err := ix.store.DeleteFile(path); err != nil {
			return nil, fmt.Errorf("indexer: remove %s: %w", path, err)
		}
		stats.FilesRemoved++
	}

	work, err := ix.filterChanged(candidates, full, stats)
	if err != nil {
		return nil, err
	}

	ix.parseAndWrite(ctx, work, stats)

	if err := ix.resolve(stats); err != nil {
		return nil, err
	}

	stats.DurationMS = time.Since(start).Milliseconds()
	log.Printf("index complete: %d scanned, %d indexed, %d skipped, %d removed (%d symbols, %d edges) in %dms",
		stats.FilesScanned, stats.FilesIndexed, stats.FilesSkipped, stats.FilesRemoved,
		stats.SymbolsFound, stats.EdgesFound, stats.DurationMS)
	return stats, nil
}

type candidate struct {
	absPath string
	relPath string
	mtime   int64
}

// enumerate walks the project, applying the exclude list, the size
// threshold, and the supported-extension filter.
func (ix *Indexer) enumerate(stats *Stats) ([]candidate, error) {
	exclude := make(map[string]bool, len(ix.cfg.Settings.Indexing.Exclude))
	for _, name := range ix.cfg.Settings.Indexing.Exclude {
		exclude[name] = true
	}

	var out []candidate
	root := ix.cfg.ProjectRoot
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			log.Printf("WARNING: indexer: walk %s: %v", path, err)
			return nil
		}
		if d.IsDir() {
			if path != root && exclude[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if lang.Detect(path) == nil {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			log.Printf("WARNING: indexer: stat %s: %v", path, err)
			return nil
		}
		if info.Size() > ix.cfg.Settings.Indexing.MaxFileSize {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		stats.FilesScanned++
		out = append(out, candidate{
			absPath: path,
			relPath: filepath.ToSlash(rel),
			mtime:   info.ModTime().Unix(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("indexer: walk project: %w", err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].relPath < out[j].relPath })
	return out, nil
}

type fileWork struct {
	candidate
	content []byte
	hash    string
}

// filterChanged reads candidates and keeps those whose (mtime, hash) pair
// differs from the stored row. Both must match for a skip.
func (ix *Indexer) filterChanged(candidates []candidate, full bool, stats *Stats) ([]fileWork, error) {
	var work []fileWork
	for _, c := range candidates {
		content, err := os.ReadFile(c.absPath)
		if err != nil {
			warn := fmt.Sprintf("read %s: %v", c.relPath, err)
			log.Printf("WARNING: indexer: %s", warn)
			stats.Warnings = append(stats.Warnings, warn)
			continue
		}
		hash := fmt.Sprintf("%016x", xxhash.Sum64(content))

		if !full {
			meta, err := ix.store.GetFileMeta(c.relPath)
			if err != nil {
				return nil, fmt.Errorf("indexer: file meta %s: %w", c.relPath, err)
			}
			if meta != nil && meta.Mtime == c.mtime && meta.Hash == hash {
				stats.FilesSkipped++
				continue
			}
		}
		work = append(work, fileWork{candidate: c, content: content, hash: hash})
	}
	return work, nil
}

type parsed struct {
	fileWork
	result *parser.Result
	err    error
}

// parseAndWrite parses the work set on a bounded pool and writes each
// file's slice of the graph in walk order through this goroutine.
func (ix *Indexer) parseAndWrite(ctx context.Context, work []fileWork, stats *Stats) {
	if len(work) == 0 {
		return
	}

	workers := runtime.NumCPU()
	if workers > len(work) {
		workers = len(work)
	}

	results := make([]parsed, len(work))
	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				fw := work[i]
				cfg := lang.Detect(fw.relPath)
				res, err := parser.Parse(ctx, cfg, fw.content)
				results[i] = parsed{fileWork: fw, result: res, err: err}
			}
		}()
	}
	for i := range work {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	for _, p := range results {
		if p.err != nil {
			warn := fmt.Sprintf("parse %s: %v", p.relPath, p.err)
			log.Printf("WARNING: indexer: %s", warn)
			stats.Warnings = append(stats.Warnings, warn)
			continue // file keeps its previous contents in the store
		}
		if err := ix.writeFile(p, stats); err != nil {
			warn := fmt.Sprintf("write %s: %v", p.relPath, err)
			log.Printf("WARNING: indexer: %s", warn)
			stats.Warnings = append(stats.Warnings, warn)
		}
	}
}

// writeFile converts one parse result into the store's per-file write
// sequence: symbol nodes, the per-file node with has_item edges, reference
// edges landing on real or stub targets.
func (ix *Indexer) writeFile(p parsed, stats *Stats) error {
	rel := p.relPath
	fileNodeID := "file::" + rel

	local := make(map[string]string, len(p.result.Symbols))
	nodes := []store.NodeWrite{{
		ID:   fileNodeID,
		Kind: "file",
		Data: map[string]any{"path": rel, "name": rel, "file": rel},
	}}
	var edges []store.EdgeWrite

	for _, sym := range p.result.Symbols {
		id := rel + "::" + sym.ScopedName()
		local[sym.ScopedName()] = id
		if _, ok := local[sym.Name]; !ok {
			local[sym.Name] = id
		}
		nodes = append(nodes, store.NodeWrite{
			ID:   id,
			Kind: sym.Kind,
			Data: map[string]any{
				"name":       sym.Name,
				"kind":       sym.Kind,
				"file":       rel,
				"line_start": sym.StartLine,
				"line_end":   sym.EndLine,
				"signature":  sym.Signature,
			},
		})
		edges = append(edges, store.EdgeWrite{
			Source: fileNodeID,
			Target: id,
			Kind:   "has_item",
		})
	}

	stubSet := make(map[string]bool)
	var stubs []store.NodeWrite
	for _, ref := range p.result.References {
		source := fileNodeID
		if ref.From != "" {
			if id, ok := local[ref.From]; ok {
				source = id
			}
		}

		target, ok := local[ref.Target]
		if !ok {
			target = "unresolved::" + ref.Target
			if !stubSet[target] {
				stubSet[target] = true
				stubs = append(stubs, store.NodeWrite{
					ID:   target,
					Kind: "unresolved",
					Data: map[string]any{"name": ref.Target},
				})
			}
		}
		if target == source {
			continue
		}
		edges = append(edges, store.EdgeWrite{
			Source: source,
			Target: target,
			Kind:   ref.Kind,
			Data:   map[string]any{"file": rel, "line": ref.Line, "target_name": ref.Target},
		})
	}

	if err := ix.store.ReplaceFile(rel, p.mtime, p.hash, nodes, stubs, edges); err != nil {
		return err
	}

	stats.FilesIndexed++
	stats.SymbolsFound += len(p.result.Symbols)
	stats.EdgesFound += len(edges)
	return nil
}

// resolve is the repo-wide post-pass: every stub with exactly one real
// candidate in the name index is rewritten to it and deleted. Ambiguous
// names and external symbols keep their stubs.
func (ix *Indexer) resolve(stats *Stats) error {
	stubs, err := ix.store.UnresolvedNodes()
	if err != nil {
		return fmt.Errorf("indexer: list stubs: %w", err)
	}
	stats.UnresolvedBefore = len(stubs)

	for _, stub := range stubs {
		id, name := stub[0], stub[1]
		if name == "" {
			continue
		}
		candidates, err := ix.store.FindNodesBySuffix(name)
		if err != nil {
			log.Printf("WARNING: indexer: resolve %s: %v", id, err)
			continue
		}
		if len(candidates) != 1 {
			continue
		}
		if _, err := ix.store.RetargetEdges(id, candidates[0]); err != nil {
			log.Printf("WARNING: indexer: retarget %s -> %s: %v", id, candidates[0], err)
			continue
		}
		if err := ix.store.DeleteNode(id); err != nil {
			log.Printf("WARNING: indexer: delete stub %s: %v", id, err)
			continue
		}
		stats.Resolved++
	}
	stats.UnresolvedAfter = stats.UnresolvedBefore - stats.Resolved
	return nil
}
