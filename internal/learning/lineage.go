package learning

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Solution outcomes. in_progress is the initial state set by record_attempt;
// the other three are terminal.
const (
	OutcomeInProgress = "in_progress"
	OutcomeSuccess    = "success"
	OutcomeFailure    = "failure"
	OutcomePartial    = "partial"
)

// TerminalOutcome reports whether s finalizes a solution.
func TerminalOutcome(s string) bool {
	return s == OutcomeSuccess || s == OutcomeFailure || s == OutcomePartial
}

// Solution is one recorded attempt. ParentID chains retries.
type Solution struct {
	ID              string             `json:"id"`
	Task            string             `json:"task"`
	Plan            string             `json:"plan"`
	Approach        string             `json:"approach,omitempty"`
	Outcome         string             `json:"outcome"`
	Metrics         map[string]float64 `json:"metrics,omitempty"`
	FilesModified   []string           `json:"files_modified"`
	SymbolsModified []string           `json:"symbols_modified"`
	ParentID        string             `json:"parent_id,omitempty"`
	CreatedAt       int64              `json:"created_at"`
	CompletedAt     int64              `json:"completed_at,omitempty"`
}

// LineageEntry is one solution in a lineage walk with its depth from the
// chain root.
type LineageEntry struct {
	Solution Solution `json:"solution"`
	Depth    int      `json:"depth"`
}

// LineageStore is the solutions table.
type LineageStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewLineageStore creates a LineageStore over the learning database.
func NewLineageStore(db *sql.DB) *LineageStore {
	return &LineageStore{db: db, now: time.Now}
}

// RecordAttempt inserts a solution with outcome in_progress. The parent, if
// given, must exist; the parent chain stays acyclic because a new row can
// only point at rows that already exist.
func (ls *LineageStore) RecordAttempt(task, plan, approach, parentID string) (*Solution, error) {
	if parentID != "" {
		parent, err := ls.Get(parentID)
		if err != nil {
			return nil, err
		}
		if parent == nil {
			return nil, fmt.Errorf("learning: parent solution %s not found", parentID)
		}
	}

	s := &Solution{
		ID:              uuid.NewString(),
		Task:            task,
		Plan:            plan,
		Approach:        approach,
		Outcome:         OutcomeInProgress,
		FilesModified:   []string{},
		SymbolsModified: []string{},
		ParentID:        parentID,
		CreatedAt:       ls.now().UTC().Unix(),
	}

	_, err := ls.db.Exec(`
		INSERT INTO solutions (id, task, plan, approach, outcome, parent_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.Task, s.Plan, nullable(s.Approach), s.Outcome, nullable(s.ParentID), s.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("learning: insert solution: %w", err)
	}
	return s, nil
}

// RecordOutcome finalizes an attempt. A solution whose outcome is already
// terminal rejects further mutation.
func (ls *LineageStore) RecordOutcome(id, outcome string, metrics map[string]float64, files, symbols []string) (*Solution, error) {
	if !TerminalOutcome(outcome) {
		return nil, fmt.Errorf("learning: outcome must be success, failure, or partial (got %q)", outcome)
	}

	s, err := ls.Get(id)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, fmt.Errorf("learning: solution %s not found", id)
	}
	if TerminalOutcome(s.Outcome) {
		return nil, fmt.Errorf("learning: solution %s already finalized as %s", id, s.Outcome)
	}

	if files == nil {
		files = []string{}
	}
	if symbols == nil {
		symbols = []string{}
	}
	var metricsJSON any
	if metrics != nil {
		b, err := json.Marshal(metrics)
		if err != nil {
			return nil, fmt.Errorf("learning: encode metrics: %w", err)
		}
		metricsJSON = string(b)
	}
	filesJSON, _ := json.Marshal(files)
	symbolsJSON, _ := json.Marshal(symbols)
	completedAt := ls.now().UTC().Unix()

	_, err = ls.db.Exec(`
		UPDATE solutions
		SET outcome = ?, metrics = ?, files_modified = ?, symbols_modified = ?, completed_at = ?
		WHERE id = ?`,
		outcome, metricsJSON, string(filesJSON), string(symbolsJSON), completedAt, id)
	if err != nil {
		return nil, fmt.Errorf("learning: finalize solution %s: %w", id, err)
	}

	s.Outcome = outcome
	s.Metrics = metrics
	s.FilesModified = files
	s.SymbolsModified = symbols
	s.CompletedAt = completedAt
	return s, nil
}

// Get returns a solution by id, or nil.
func (ls *LineageStore) Get(id string) (*Solution, error) {
	row := ls.db.QueryRow(solutionSelect+` WHERE id = ?`, id)
	s, err := scanSolution(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return s, err
}

// QueryLineage finds every solution whose task contains the substring
// (case-insensitive), then walks each hit's chain to its root and back down
// breadth-first, returning (solution, depth) ordered by chain then depth.
func (ls *LineageStore) QueryLineage(taskSubstring string) ([]LineageEntry, error) {
	rows, err := ls.db.Query(solutionSelect+`
		WHERE LOWER(task) LIKE ? ORDER BY created_at DESC, id`,
		"%"+strings.ToLower(taskSubstring)+"%")
	if err != nil {
		return nil, err
	}
	hits, err := collectSolutions(rows)
	if err != nil {
		return nil, err
	}

	children, err := ls.childIndex()
	if err != nil {
		return nil, err
	}

	var entries []LineageEntry
	visited := make(map[string]bool)
	for _, hit := range hits {
		root, err := ls.chainRoot(hit)
		if err != nil {
			return nil, err
		}
		if visited[root.ID] {
			continue
		}

		// Breadth-first over the retry tree rooted at the chain root.
		queue := []LineageEntry{{Solution: *root, Depth: 0}}
		for len(queue) > 0 {
			e := queue[0]
			queue = queue[1:]
			if visited[e.Solution.ID] {
				continue
			}
			visited[e.Solution.ID] = true
			entries = append(entries, e)
			for _, child := range children[e.Solution.ID] {
				queue = append(queue, LineageEntry{Solution: child, Depth: e.Depth + 1})
			}
		}
	}
	return entries, nil
}

// MostRecentSuccessOverlapping returns the newest successful solution whose
// task shares at least minTokens lowercase word tokens with task, or nil.
func (ls *LineageStore) MostRecentSuccessOverlapping(task string, minTokens int) (*Solution, error) {
	rows, err := ls.db.Query(solutionSelect + `
		WHERE outcome = 'success' ORDER BY completed_at DESC, created_at DESC, id`)
	if err != nil {
		return nil, err
	}
	successes, err := collectSolutions(rows)
	if err != nil {
		return nil, err
	}

	want := tokenSet(task)
	for _, s := range successes {
		shared := 0
		for tok := range tokenSet(s.Task) {
			if want[tok] {
				shared++
			}
		}
		if shared >= minTokens {
			out := s
			return &out, nil
		}
	}
	return nil, nil
}

func (ls *LineageStore) chainRoot(s Solution) (*Solution, error) {
	cur := s
	// The chain is acyclic by construction; the walk still bounds itself
	// against a corrupted database.
	for i := 0; cur.ParentID != "" && i < 1000; i++ {
		parent, err := ls.Get(cur.ParentID)
		if err != nil {
			return nil, err
		}
		if parent == nil {
			break
		}
		cur = *parent
	}
	return &cur, nil
}

func (ls *LineageStore) childIndex() (map[string][]Solution, error) {
	rows, err := ls.db.Query(solutionSelect + `
		WHERE parent_id IS NOT NULL ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	all, err := collectSolutions(rows)
	if err != nil {
		return nil, err
	}
	idx := make(map[string][]Solution)
	for _, s := range all {
		idx[s.ParentID] = append(idx[s.ParentID], s)
	}
	return idx, nil
}

const solutionSelect = `
	SELECT id, task, plan, approach, outcome, metrics, files_modified,
	       symbols_modified, parent_id, created_at, completed_at
	FROM solutions`

func scanSolution(scan func(...any) error) (*Solution, error) {
	var s Solution
	var approach, metrics, parentID sql.NullString
	var files, symbols string
	var completedAt sql.NullInt64
	if err := scan(&s.ID, &s.Task, &s.Plan, &approach, &s.Outcome, &metrics,
		&files, &symbols, &parentID, &s.CreatedAt, &completedAt); err != nil {
		return nil, err
	}
	s.Approach = approach.String
	s.ParentID = parentID.String
	s.CompletedAt = completedAt.Int64
	if metrics.Valid && metrics.String != "" {
		_ = json.Unmarshal([]byte(metrics.String), &s.Metrics)
	}
	if err := json.Unmarshal([]byte(files), &s.FilesModified); err != nil {
		s.FilesModified = []string{}
	}
	if err := json.Unmarshal([]byte(symbols), &s.SymbolsModified); err != nil {
		s.SymbolsModified = []string{}
	}
	return &s, nil
}

func collectSolutions(rows *sql.Rows) ([]Solution, error) {
	defer rows.Close()
	var out []Solution
	for rows.Next() {
		s, err := scanSolution(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func tokenSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, tok := range strings.Fields(strings.ToLower(s)) {
		tok = strings.Trim(tok, ".,;:!?()[]{}\"'")
		if len(tok) > 1 {
			set[tok] = true
		}
	}
	return set
}
