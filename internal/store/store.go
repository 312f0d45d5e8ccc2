// Package store owns the two embedded SQLite databases: code.db (nodes,
// edges, file metadata) and learning.db (patterns, failures, solutions,
// niches, cross-language edges, instructions).
//
// The databases are opened once per process with WAL mode and foreign keys
// enabled. Migrations are linear and numbered; the current version lives in
// a meta row. No other process may write these files while the server runs.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

// Node is a row in the nodes table. Data holds the kind-specific attributes
// as a JSON object (name, file, line range, signature, docstring, ...).
type Node struct {
	ID        string          `json:"id"`
	Graph     string          `json:"graph"`
	Kind      string          `json:"kind"`
	Data      json.RawMessage `json:"data"`
	CreatedAt int64           `json:"created_at,omitempty"`
	UpdatedAt int64           `json:"updated_at,omitempty"`
}

// Edge is a directed labelled relation. The primary key is the 4-tuple
// (source, target, kind, graph).
type Edge struct {
	Source    string          `json:"source"`
	Target    string          `json:"target"`
	Kind      string          `json:"kind"`
	Graph     string          `json:"graph"`
	Data      json.RawMessage `json:"data,omitempty"`
	CreatedAt int64           `json:"created_at,omitempty"`
}

// FileMeta tracks the last observed state of an indexed source file.
type FileMeta struct {
	Path      string `json:"path"`
	Mtime     int64  `json:"mtime"`
	Hash      string `json:"hash"`
	IndexedAt int64  `json:"indexed_at,omitempty"`
}

// Store wraps both database handles.
type Store struct {
	code     *sql.DB
	learning *sql.DB
	now      func() time.Time
}

// Open opens (creating if needed) both databases and applies migrations.
// The parent directories must already exist.
func Open(codePath, learningPath string) (*Store, error) {
	code, err := openDatabase(codePath)
	if err != nil {
		return nil, fmt.Errorf("store: open code database: %w", err)
	}
	learning, err := openDatabase(learningPath)
	if err != nil {
		code.Close()
		return nil, fmt.Errorf("store: open learning database: %w", err)
	}

	s := &Store{code: code, learning: learning, now: time.Now}
	if err := s.migrate(); err != nil {
		code.Close()
		learning.Close()
		return nil, fmt.Errorf("store: migration: %w", err)
	}
	return s, nil
}

func openDatabase(path string) (*sql.DB, error) {
	db, err := openDB("sqlite", path)
	if err != nil {
		return nil, err
	}

	// Single writer goroutine; avoid modernc's per-connection state
	// surprises by pinning one connection.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("pragma %q: %w", p, err)
		}
	}
	return db, nil
}

// Close closes both databases.
func (s *Store) Close() error {
	err := s.code.Close()
	if lerr := s.learning.Close(); err == nil {
		err = lerr
	}
	return err
}

// Learning exposes the learning database handle to the learning stores.
func (s *Store) Learning() *sql.DB { return s.learning }

// Code exposes the code database handle.
func (s *Store) Code() *sql.DB { return s.code }

func (s *Store) unix() int64 { return s.now().UTC().Unix() }

// ─── Node CRUD ───────────────────────────────────────────────────────────────

// UpsertNode inserts or replaces a node.
func (s *Store) UpsertNode(id, graph, kind string, data any) error {
	raw, err := marshalData(data)
	if err != nil {
		return fmt.Errorf("store: encode node %s: %w", id, err)
	}
	now := s.unix()
	_, err = s.code.Exec(`
		INSERT INTO nodes (id, graph, kind, data, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			graph = excluded.graph,
			kind = excluded.kind,
			data = excluded.data,
			updated_at = excluded.updated_at`,
		id, graph, kind, raw, now, now)
	if err != nil {
		return fmt.Errorf("store: upsert node %s: %w", id, err)
	}
	return nil
}

// GetNode returns a node by id, or nil when absent.
func (s *Store) GetNode(id string) (*Node, error) {
	row := s.code.QueryRow(`
		SELECT id, graph, kind, data, created_at, updated_at
		FROM nodes WHERE id = ?`, id)
	return scanNode(row)
}

// DeleteNode removes a node; edges referencing it are removed by cascade.
func (s *Store) DeleteNode(id string) error {
	_, err := s.code.Exec(`DELETE FROM nodes WHERE id = ?`, id)
	return err
}

// NodesByGraph lists all nodes in a graph.
func (s *Store) NodesByGraph(graph string) ([]Node, error) {
	rows, err := s.code.Query(`
		SELECT id, graph, kind, data, created_at, updated_at
		FROM nodes WHERE graph = ? ORDER BY id`, graph)
	if err != nil {
		return nil, err
	}
	return collectNodes(rows)
}

// NodesByKind lists nodes of one kind within a graph.
func (s *Store) NodesByKind(graph, kind string) ([]Node, error) {
	rows, err := s.code.Query(`
		SELECT id, graph, kind, data, created_at, updated_at
		FROM nodes WHERE graph = ? AND kind = ? ORDER BY id`, graph, kind)
	if err != nil {
		return nil, err
	}
	return collectNodes(rows)
}

// NodesByFile lists code nodes whose data.file equals path.
func (s *Store) NodesByFile(path string) ([]Node, error) {
	rows, err := s.code.Query(`
		SELECT id, graph, kind, data, created_at, updated_at
		FROM nodes
		WHERE graph = 'code' AND json_extract(data, '$.file') = ?
		ORDER BY id`, path)
	if err != nil {
		return nil, err
	}
	return collectNodes(rows)
}

// FindNodesBySuffix returns ids of real (non-stub) code nodes whose id ends
// with ::name. Used by the cross-file resolution pass, so ambiguity matters:
// all candidates are returned.
func (s *Store) FindNodesBySuffix(name string) ([]string, error) {
	rows, err := s.code.Query(`
		SELECT id FROM nodes
		WHERE graph = 'code' AND kind != 'unresolved' AND id LIKE ? ESCAPE '\'
		ORDER BY id`, "%::"+escapeLike(name))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	suffix := "::" + name
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		// LIKE compares ASCII letters case-insensitively; re-check the
		// exact suffix so that e.g. ::Bar does not match ::bar.
		if len(id) >= len(suffix) && id[len(id)-len(suffix):] == suffix {
			ids = append(ids, id)
		}
	}
	return ids, rows.Err()
}

// UnresolvedNodes returns (id, name) for every stub node.
func (s *Store) UnresolvedNodes() ([][2]string, error) {
	rows, err := s.code.Query(`
		SELECT id, json_extract(data, '$.name')
		FROM nodes WHERE graph = 'code' AND kind = 'unresolved'
		ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stubs [][2]string
	for rows.Next() {
		var id string
		var name sql.NullString
		if err := rows.Scan(&id, &name); err != nil {
			return nil, err
		}
		stubs = append(stubs, [2]string{id, name.String})
	}
	return stubs, rows.Err()
}

// DeleteGraph removes every node (and by cascade every edge) in a graph.
func (s *Store) DeleteGraph(graph string) error {
	tx, err := s.code.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.Exec(`DELETE FROM edges WHERE graph = ?`, graph); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM nodes WHERE graph = ?`, graph); err != nil {
		return err
	}
	return tx.Commit()
}

// ─── Edge CRUD ───────────────────────────────────────────────────────────────

// UpsertEdge inserts or replaces an edge. Both endpoints must exist.
func (s *Store) UpsertEdge(source, target, kind, graph string, data any) error {
	raw, err := marshalData(data)
	if err != nil {
		return fmt.Errorf("store: encode edge %s->%s: %w", source, target, err)
	}
	_, err = s.code.Exec(`
		INSERT INTO edges (source, target, kind, graph, data, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(source, target, kind, graph) DO UPDATE SET
			data = excluded.data`,
		source, target, kind, graph, raw, s.unix())
	if err != nil {
		return fmt.Errorf("store: upsert edge %s -[%s]-> %s: %w", source, kind, target, err)
	}
	return nil
}

// EdgesFrom lists edges whose source is id.
func (s *Store) EdgesFrom(id string) ([]Edge, error) {
	rows, err := s.code.Query(`
		SELECT source, target, kind, graph, data, created_at
		FROM edges WHERE source = ? ORDER BY target, kind`, id)
	if err != nil {
		return nil, err
	}
	return collectEdges(rows)
}

// EdgesTo lists edges whose target is id.
func (s *Store) EdgesTo(id string) ([]Edge, error) {
	rows, err := s.code.Query(`
		SELECT source, target, kind, graph, data, created_at
		FROM edges WHERE target = ? ORDER BY source, kind`, id)
	if err != nil {
		return nil, err
	}
	return collectEdges(rows)
}

// EdgesByGraph lists all edges in a graph.
func (s *Store) EdgesByGraph(graph string) ([]Edge, error) {
	rows, err := s.code.Query(`
		SELECT source, target, kind, graph, data, created_at
		FROM edges WHERE graph = ? ORDER BY source, target, kind`, graph)
	if err != nil {
		return nil, err
	}
	return collectEdges(rows)
}

// RetargetEdges rewrites edges pointing at oldTarget to point at newTarget.
// Edges that would collide with an existing (source, newTarget, kind, graph)
// row are deleted first so the UPDATE cannot violate the primary key.
func (s *Store) RetargetEdges(oldTarget, newTarget string) (int64, error) {
	tx, err := s.code.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`
		DELETE FROM edges WHERE target = ? AND EXISTS (
			SELECT 1 FROM edges e2
			WHERE e2.source = edges.source
			  AND e2.target = ?
			  AND e2.kind = edges.kind
			  AND e2.graph = edges.graph
		)`, oldTarget, newTarget); err != nil {
		return 0, err
	}

	res, err := tx.Exec(`UPDATE edges SET target = ? WHERE target = ?`, newTarget, oldTarget)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return n, tx.Commit()
}

// ─── File metadata ───────────────────────────────────────────────────────────

// GetFileMeta returns the stored metadata for a path, or nil.
func (s *Store) GetFileMeta(path string) (*FileMeta, error) {
	row := s.code.QueryRow(`
		SELECT path, mtime, hash, indexed_at FROM files WHERE path = ?`, path)
	var m FileMeta
	var indexedAt sql.NullInt64
	if err := row.Scan(&m.Path, &m.Mtime, &m.Hash, &indexedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	m.IndexedAt = indexedAt.Int64
	return &m, nil
}

// UpsertFileMeta records the observed (mtime, hash) for a path.
func (s *Store) UpsertFileMeta(path string, mtime int64, hash string) error {
	_, err := s.code.Exec(`
		INSERT INTO files (path, mtime, hash, indexed_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			mtime = excluded.mtime,
			hash = excluded.hash,
			indexed_at = excluded.indexed_at`,
		path, mtime, hash, s.unix())
	return err
}

// ListFiles returns every indexed path.
func (s *Store) ListFiles() ([]string, error) {
	rows, err := s.code.Query(`SELECT path FROM files ORDER BY path`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		paths = append(paths, p)
	}
	return paths, rows.Err()
}

// RemoveFileMeta deletes the files row for a path.
func (s *Store) RemoveFileMeta(path string) error {
	_, err := s.code.Exec(`DELETE FROM files WHERE path = ?`, path)
	return err
}

// ─── Per-file write sequence ─────────────────────────────────────────────────

// NodeWrite and EdgeWrite carry one file's parse output into ReplaceFile.
type NodeWrite struct {
	ID   string
	Kind string
	Data any
}

type EdgeWrite struct {
	Source string
	Target string
	Kind   string
	Data   any
}

// ReplaceFile atomically replaces a file's slice of the code graph: the
// file's previous nodes are deleted (cascading their edges), then the new
// nodes, stubs, and edges are inserted, then the files row is updated. One
// transaction; a failure leaves the previous contents intact.
func (s *Store) ReplaceFile(path string, mtime int64, hash string, nodes []NodeWrite, stubs []NodeWrite, edges []EdgeWrite) error {
	tx, err := s.code.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := deleteFileNodesTx(tx, path); err != nil {
		return fmt.Errorf("store: delete nodes for %s: %w", path, err)
	}

	now := s.unix()
	nodeStmt, err := tx.Prepare(`
		INSERT INTO nodes (id, graph, kind, data, created_at, updated_at)
		VALUES (?, 'code', ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			kind = excluded.kind,
			data = excluded.data,
			updated_at = excluded.updated_at`)
	if err != nil {
		return err
	}
	defer nodeStmt.Close()

	for _, lists := range [][]NodeWrite{nodes, stubs} {
		for _, n := range lists {
			raw, err := marshalData(n.Data)
			if err != nil {
				return fmt.Errorf("store: encode node %s: %w", n.ID, err)
			}
			if _, err := nodeStmt.Exec(n.ID, n.Kind, raw, now, now); err != nil {
				return fmt.Errorf("store: insert node %s: %w", n.ID, err)
			}
		}
	}

	edgeStmt, err := tx.Prepare(`
		INSERT INTO edges (source, target, kind, graph, data, created_at)
		VALUES (?, ?, ?, 'code', ?, ?)
		ON CONFLICT(source, target, kind, graph) DO UPDATE SET
			data = excluded.data`)
	if err != nil {
		return err
	}
	defer edgeStmt.Close()

	for _, e := range edges {
		raw, err := marshalData(e.Data)
		if err != nil {
			return fmt.Errorf("store: encode edge %s->%s: %w", e.Source, e.Target, err)
		}
		if _, err := edgeStmt.Exec(e.Source, e.Target, e.Kind, raw, now); err != nil {
			return fmt.Errorf("store: insert edge %s -[%s]-> %s: %w", e.Source, e.Kind, e.Target, err)
		}
	}

	if _, err := tx.Exec(`
		INSERT INTO files (path, mtime, hash, indexed_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			mtime = excluded.mtime,
			hash = excluded.hash,
			indexed_at = excluded.indexed_at`,
		path, mtime, hash, now); err != nil {
		return err
	}

	return tx.Commit()
}

// DeleteFile removes a file's nodes (cascading edges) and its files row.
func (s *Store) DeleteFile(path string) error {
	tx, err := s.code.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := deleteFileNodesTx(tx, path); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM files WHERE path = ?`, path); err != nil {
		return err
	}
	return tx.Commit()
}

func deleteFileNodesTx(tx *sql.Tx, path string) error {
	// Incoming edges from other files must survive this file's removal:
	// they are detached onto unresolved:: stubs before the cascade runs,
	// so a later resolution pass can re-bind them if the symbol returns.
	if err := detachIncomingEdgesTx(tx, path); err != nil {
		return err
	}

	// Symbol nodes carry data.file; the per-file node is file::<path>.
	if _, err := tx.Exec(`
		DELETE FROM nodes
		WHERE graph = 'code' AND json_extract(data, '$.file') = ?`, path); err != nil {
		return err
	}
	_, err := tx.Exec(`DELETE FROM nodes WHERE id = ?`, "file::"+path)
	return err
}

// detachIncomingEdgesTx rewrites edges that point into path's nodes from
// sources in other files so they land on unresolved stubs instead of being
// cascade-deleted with their targets.
func detachIncomingEdgesTx(tx *sql.Tx, path string) error {
	rows, err := tx.Query(`
		SELECT e.source, e.target, e.kind, e.graph,
		       COALESCE(json_extract(tn.data, '$.name'), ''),
		       COALESCE(json_extract(sn.data, '$.file'), '')
		FROM edges e
		JOIN nodes tn ON tn.id = e.target
		JOIN nodes sn ON sn.id = e.source
		WHERE tn.graph = 'code'
		  AND json_extract(tn.data, '$.file') = ?
		  AND tn.kind != 'file'`, path)
	if err != nil {
		return err
	}

	type detach struct {
		source, target, kind, graph, name string
	}
	var detaches []detach
	for rows.Next() {
		var d detach
		var sourceFile string
		if err := rows.Scan(&d.source, &d.target, &d.kind, &d.graph, &d.name, &sourceFile); err != nil {
			rows.Close()
			return err
		}
		if sourceFile == path || d.source == "file::"+path || d.name == "" {
			continue
		}
		detaches = append(detaches, d)
	}
	if err := rows.Close(); err != nil {
		return err
	}

	for _, d := range detaches {
		stub := "unresolved::" + d.name
		if _, err := tx.Exec(`
			INSERT INTO nodes (id, graph, kind, data, created_at, updated_at)
			VALUES (?, 'code', 'unresolved', json_object('name', ?), strftime('%s','now'), strftime('%s','now'))
			ON CONFLICT(id) DO NOTHING`, stub, d.name); err != nil {
			return err
		}
		// A same-shaped edge may already point at the stub.
		if _, err := tx.Exec(`
			DELETE FROM edges
			WHERE source = ? AND target = ? AND kind = ? AND graph = ?`,
			d.source, stub, d.kind, d.graph); err != nil {
			return err
		}
		if _, err := tx.Exec(`
			UPDATE edges SET target = ?
			WHERE source = ? AND target = ? AND kind = ? AND graph = ?`,
			stub, d.source, d.target, d.kind, d.graph); err != nil {
			return err
		}
	}
	return nil
}

// ─── helpers ─────────────────────────────────────────────────────────────────

func marshalData(data any) ([]byte, error) {
	switch v := data.(type) {
	case nil:
		return []byte("null"), nil
	case json.RawMessage:
		if len(v) == 0 {
			return []byte("null"), nil
		}
		return v, nil
	case []byte:
		if len(v) == 0 {
			return []byte("null"), nil
		}
		return v, nil
	default:
		return json.Marshal(v)
	}
}

func escapeLike(s string) string {
	// Escape the LIKE wildcards and the escape character itself so the name
	// matches literally (the query declares ESCAPE '\'). Names such as
	// hello_world contain '_'.
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '%' || s[i] == '_' || s[i] == '\\' {
			out = append(out, '\\')
		}
		out = append(out, s[i])
	}
	return string(out)
}

func scanNode(row *sql.Row) (*Node, error) {
	var n Node
	var data []byte
	var created, updated sql.NullInt64
	if err := row.Scan(&n.ID, &n.Graph, &n.Kind, &data, &created, &updated); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	n.Data = json.RawMessage(data)
	n.CreatedAt = created.Int64
	n.UpdatedAt = updated.Int64
	return &n, nil
}

func collectNodes(rows *sql.Rows) ([]Node, error) {
	defer rows.Close()
	var nodes []Node
	for rows.Next() {
		var n Node
		var data []byte
		var created, updated sql.NullInt64
		if err := rows.Scan(&n.ID, &n.Graph, &n.Kind, &data, &created, &updated); err != nil {
			return nil, err
		}
		n.Data = json.RawMessage(data)
		n.CreatedAt = created.Int64
		n.UpdatedAt = updated.Int64
		nodes = append(nodes, n)
	}
	return nodes, rows.Err()
}

func collectEdges(rows *sql.Rows) ([]Edge, error) {
	defer rows.Close()
	var edges []Edge
	for rows.Next() {
		var e Edge
		var data []byte
		var created sql.NullInt64
		if err := rows.Scan(&e.Source, &e.Target, &e.Kind, &e.Graph, &data, &created); err != nil {
			return nil, err
		}
		if len(data) > 0 {
			e.Data = json.RawMessage(data)
		}
		e.CreatedAt = created.Int64
		edges = append(edges, e)
	}
	return edges, rows.Err()
}
