package store

import (
	"database/sql"
	"fmt"
)

// migration pairs a version number with its DDL. Migrations are linear and
// append-only; each one runs in its own transaction and the reached version
// is recorded in the meta table.
type migration struct {
	version int
	sql     string
}

var codeMigrations = []migration{
	{1, `
		CREATE TABLE IF NOT EXISTS nodes (
			id         TEXT PRIMARY KEY,
			graph      TEXT NOT NULL,
			kind       TEXT NOT NULL,
			data       TEXT NOT NULL DEFAULT '{}',
			created_at INTEGER,
			updated_at INTEGER
		);

		CREATE TABLE IF NOT EXISTS edges (
			source     TEXT NOT NULL REFERENCES nodes(id) ON DELETE CASCADE,
			target     TEXT NOT NULL REFERENCES nodes(id) ON DELETE CASCADE,
			kind       TEXT NOT NULL,
			graph      TEXT NOT NULL,
			data       TEXT,
			created_at INTEGER,
			PRIMARY KEY (source, target, kind, graph)
		);

		CREATE TABLE IF NOT EXISTS files (
			path       TEXT PRIMARY KEY,
			mtime      INTEGER NOT NULL,
			hash       TEXT NOT NULL,
			indexed_at INTEGER
		);

		CREATE INDEX IF NOT EXISTS idx_nodes_graph_kind ON nodes(graph, kind);
		CREATE INDEX IF NOT EXISTS idx_nodes_file ON nodes(json_extract(data, '$.file'));
		CREATE INDEX IF NOT EXISTS idx_edges_source ON edges(source);
		CREATE INDEX IF NOT EXISTS idx_edges_target ON edges(target);
		CREATE INDEX IF NOT EXISTS idx_edges_graph ON edges(graph);
	`},
}

var learningMigrations = []migration{
	{1, `
		CREATE TABLE IF NOT EXISTS patterns (
			id             TEXT PRIMARY KEY,
			intent         TEXT NOT NULL,
			mechanism      TEXT,
			examples       TEXT NOT NULL DEFAULT '[]',
			scope          TEXT NOT NULL DEFAULT '{}',
			confidence     REAL NOT NULL,
			usage_count    INTEGER NOT NULL DEFAULT 0,
			success_count  INTEGER NOT NULL DEFAULT 0,
			low_quality    INTEGER NOT NULL DEFAULT 0,
			last_validated INTEGER,
			created_at     INTEGER NOT NULL,
			updated_at     INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS failures (
			id              TEXT PRIMARY KEY,
			cause           TEXT NOT NULL,
			avoidance_rule  TEXT NOT NULL,
			severity        TEXT NOT NULL,
			scope           TEXT NOT NULL DEFAULT '{}',
			times_prevented INTEGER NOT NULL DEFAULT 0,
			low_quality     INTEGER NOT NULL DEFAULT 0,
			created_at      INTEGER NOT NULL,
			updated_at      INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS solutions (
			id               TEXT PRIMARY KEY,
			task             TEXT NOT NULL,
			plan             TEXT NOT NULL,
			approach         TEXT,
			outcome          TEXT NOT NULL DEFAULT 'in_progress',
			metrics          TEXT,
			files_modified   TEXT NOT NULL DEFAULT '[]',
			symbols_modified TEXT NOT NULL DEFAULT '[]',
			parent_id        TEXT REFERENCES solutions(id),
			created_at       INTEGER NOT NULL,
			completed_at     INTEGER
		);

		CREATE TABLE IF NOT EXISTS niches (
			id                  TEXT PRIMARY KEY,
			feature_description TEXT NOT NULL,
			created_at          INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS niche_solutions (
			niche_id       TEXT NOT NULL REFERENCES niches(id) ON DELETE CASCADE,
			solution_id    TEXT NOT NULL,
			score          REAL NOT NULL,
			feature_vector TEXT NOT NULL DEFAULT '[]',
			PRIMARY KEY (niche_id, solution_id)
		);

		CREATE TABLE IF NOT EXISTS cross_edges (
			client_file TEXT NOT NULL,
			server_file TEXT NOT NULL,
			api_path    TEXT NOT NULL,
			method      TEXT,
			confidence  REAL NOT NULL DEFAULT 0.5,
			created_at  INTEGER,
			PRIMARY KEY (client_file, server_file, api_path)
		);

		CREATE TABLE IF NOT EXISTS instructions (
			id          TEXT PRIMARY KEY,
			instruction TEXT NOT NULL,
			category    TEXT NOT NULL DEFAULT 'general',
			created_at  INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_failures_severity ON failures(severity);
		CREATE INDEX IF NOT EXISTS idx_solutions_parent ON solutions(parent_id);
		CREATE INDEX IF NOT EXISTS idx_solutions_outcome ON solutions(outcome);
	`},
}

func (s *Store) migrate() error {
	if err := applyMigrations(s.code, codeMigrations, "code.db"); err != nil {
		return err
	}
	return applyMigrations(s.learning, learningMigrations, "learning.db")
}

func applyMigrations(db *sql.DB, migrations []migration, name string) error {
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS meta (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`); err != nil {
		return fmt.Errorf("%s: create meta: %w", name, err)
	}

	current, err := schemaVersion(db)
	if err != nil {
		return fmt.Errorf("%s: read schema version: %w", name, err)
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		tx, err := db.Begin()
		if err != nil {
			return err
		}
		if _, err := tx.Exec(m.sql); err != nil {
			tx.Rollback()
			return fmt.Errorf("%s: migration v%d: %w", name, m.version, err)
		}
		if _, err := tx.Exec(`
			INSERT INTO meta (key, value) VALUES ('schema_version', ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
			fmt.Sprint(m.version)); err != nil {
			tx.Rollback()
			return fmt.Errorf("%s: record version v%d: %w", name, m.version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("%s: commit migration v%d: %w", name, m.version, err)
		}
	}
	return nil
}

func schemaVersion(db *sql.DB) (int, error) {
	var value string
	err := db.QueryRow(`SELECT value FROM meta WHERE key = 'schema_version'`).Scan(&value)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	var v int
	if _, err := fmt.Sscanf(value, "%d", &v); err != nil {
		return 0, fmt.Errorf("corrupt schema_version %q", value)
	}
	return v, nil
}
