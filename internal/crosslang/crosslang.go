// Package crosslang infers client→server API connections across language
// boundaries by pattern-matching indexed files: fetch/axios calls against
// route registrations, GraphQL operations against resolvers.
package crosslang

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/websines/codegraph-mcp/internal/store"
)

// Connection is one inferred client/server API link.
type Connection struct {
	ClientFile string  `json:"client_file"`
	ServerFile string  `json:"server_file"`
	APIPath    string  `json:"api_path"`
	Method     string  `json:"method,omitempty"`
	Confidence float64 `json:"confidence"`
}

// Stats summarizes one inference run.
type Stats struct {
	ClientCallsFound  int   `json:"client_calls_found"`
	ServerRoutesFound int   `json:"server_routes_found"`
	ConnectionsMade   int   `json:"connections_made"`
	DurationMS        int64 `json:"duration_ms"`
}

type rule struct {
	name          string
	clientGlob    string
	serverGlob    string
	clientPattern *regexp.Regexp
	serverPattern *regexp.Regexp
	confidence    float64
}

var rules = []rule{
	{
		name:       "rest_fetch",
		clientGlob: "**/*.{js,ts,jsx,tsx}",
		serverGlob: "**/*.{py,rs,js,ts,go}",
		clientPattern: regexp.MustCompile(
			`(?:fetch|axios\.(?:get|post|put|delete|patch))\s*\(\s*['"` + "`" + `]([/\w\-{}:]+)['"` + "`" + `]`),
		serverPattern: regexp.MustCompile(
			`(?:@app\.route|@router\.|router\.(?:get|post|put|delete|patch)|app\.(?:get|post|put|delete|patch))\s*\(\s*['"` + "`" + `]([/\w\-{}:]+)['"` + "`" + `]`),
		confidence: 0.8,
	},
	{
		name:          "graphql",
		clientGlob:    "**/*.{js,ts,jsx,tsx,gql,graphql}",
		serverGlob:    "**/*.{py,rs,js,ts,go}",
		clientPattern: regexp.MustCompile(`(?:query|mutation)\s+(\w+)`),
		serverPattern: regexp.MustCompile(`def\s+(?:resolve_)?(\w+)`),
		confidence:    0.5,
	},
}

// Inferrer scans indexed files and records cross-language edges.
type Inferrer struct {
	store       *store.Store
	projectRoot string
	now         func() time.Time
}

// New creates an Inferrer rooted at the project directory.
func New(st *store.Store, projectRoot string) *Inferrer {
	return &Inferrer{store: st, projectRoot: projectRoot, now: time.Now}
}

// Infer matches client calls to server routes across the indexed file set.
// With rebuild, previously inferred edges are dropped first.
func (inf *Inferrer) Infer(rebuild bool) (*Stats, error) {
	start := time.Now()
	stats := &Stats{}

	db := inf.store.Learning()
	if rebuild {
		if _, err := db.Exec(`DELETE FROM cross_edges`); err != nil {
			return nil, fmt.Errorf("crosslang: clear edges: %w", err)
		}
	}

	files, err := inf.store.ListFiles()
	if err != nil {
		return nil, fmt.Errorf("crosslang: list files: %w", err)
	}

	for _, r := range rules {
		clientCalls := inf.scan(files, r.clientGlob, r.clientPattern)
		serverRoutes := inf.scan(files, r.serverGlob, r.serverPattern)
		stats.ClientCallsFound += len(clientCalls)
		stats.ServerRoutesFound += len(serverRoutes)

		for apiPath, clientFiles := range clientCalls {
			serverFiles, ok := serverRoutes[apiPath]
			if !ok {
				continue
			}
			for _, cf := range clientFiles {
				for _, sf := range serverFiles {
					if cf == sf {
						continue
					}
					if err := inf.record(db, Connection{
						ClientFile: cf,
						ServerFile: sf,
						APIPath:    apiPath,
						Confidence: r.confidence,
					}); err != nil {
						return nil, err
					}
					stats.ConnectionsMade++
				}
			}
		}
	}

	stats.DurationMS = time.Since(start).Milliseconds()
	return stats, nil
}

// scan collects capture → files for every indexed file matching the glob.
func (inf *Inferrer) scan(files []string, glob string, pattern *regexp.Regexp) map[string][]string {
	out := make(map[string][]string)
	for _, rel := range files {
		if ok, err := doublestar.Match(glob, rel); err != nil || !ok {
			continue
		}
		content, err := os.ReadFile(filepath.Join(inf.projectRoot, filepath.FromSlash(rel)))
		if err != nil {
			continue
		}
		for _, m := range pattern.FindAllStringSubmatch(string(content), -1) {
			if len(m) < 2 {
				continue
			}
			key := normalizePath(m[1])
			out[key] = appendUnique(out[key], rel)
		}
	}
	return out
}

func (inf *Inferrer) record(db *sql.DB, c Connection) error {
	_, err := db.Exec(`
		INSERT INTO cross_edges (client_file, server_file, api_path, method, confidence, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(client_file, server_file, api_path) DO UPDATE SET
			confidence = excluded.confidence`,
		c.ClientFile, c.ServerFile, c.APIPath, nullableString(c.Method),
		c.Confidence, inf.now().UTC().Unix())
	if err != nil {
		return fmt.Errorf("crosslang: record %s -> %s: %w", c.ClientFile, c.ServerFile, err)
	}
	return nil
}

// Connections lists inferred edges, optionally filtered to those touching a
// file (as client or server).
func (inf *Inferrer) Connections(file string) ([]Connection, error) {
	db := inf.store.Learning()
	query := `SELECT client_file, server_file, api_path, method, confidence FROM cross_edges`
	args := []any{}
	if file != "" {
		query += ` WHERE client_file = ? OR server_file = ?`
		args = append(args, file, file)
	}
	query += ` ORDER BY client_file, server_file, api_path`

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Connection
	for rows.Next() {
		var c Connection
		var method sql.NullString
		if err := rows.Scan(&c.ClientFile, &c.ServerFile, &c.APIPath, &method, &c.Confidence); err != nil {
			return nil, err
		}
		c.Method = method.String
		out = append(out, c)
	}
	return out, rows.Err()
}

// normalizePath strips path parameters so /users/{id} and /users/:id meet.
func normalizePath(p string) string {
	segments := strings.Split(p, "/")
	for i, seg := range segments {
		if strings.HasPrefix(seg, ":") || (strings.HasPrefix(seg, "{") && strings.HasSuffix(seg, "}")) {
			segments[i] = "*"
		}
	}
	return strings.Join(segments, "/")
}

func appendUnique(list []string, s string) []string {
	for _, v := range list {
		if v == s {
			return list
		}
	}
	return append(list, s)
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
