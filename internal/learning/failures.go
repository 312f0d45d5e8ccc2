package learning

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

// Failure severities.
const (
	SeverityCritical = "critical"
	SeverityMajor    = "major"
	SeverityMinor    = "minor"
)

// ValidSeverity reports whether s is a recognized severity.
func ValidSeverity(s string) bool {
	return s == SeverityCritical || s == SeverityMajor || s == SeverityMinor
}

func severityRank(s string) int {
	switch s {
	case SeverityCritical:
		return 0
	case SeverityMajor:
		return 1
	default:
		return 2
	}
}

// Failure is a stored, scoped record of something to avoid.
type Failure struct {
	ID             string `json:"id"`
	Cause          string `json:"cause"`
	AvoidanceRule  string `json:"avoidance_rule"`
	Severity       string `json:"severity"`
	Scope          Scope  `json:"scope"`
	TimesPrevented int64  `json:"times_prevented"`
	LowQuality     bool   `json:"low_quality,omitempty"`
	CreatedAt      int64  `json:"created_at"`
	UpdatedAt      int64  `json:"updated_at"`
}

// NewFailure carries the writable fields of a failure.
type NewFailure struct {
	Cause         string
	AvoidanceRule string
	Severity      string
	Scope         Scope
	LowQuality    bool
}

// FailureStore is the failures table.
type FailureStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewFailureStore creates a FailureStore over the learning database.
func NewFailureStore(db *sql.DB) *FailureStore {
	return &FailureStore{db: db, now: time.Now}
}

// Create inserts a failure. A failure with an identical cause is treated as
// a repeat: its times_prevented counter is bumped instead of inserting a
// duplicate row.
func (fs *FailureStore) Create(in NewFailure) (*Failure, error) {
	if !ValidSeverity(in.Severity) {
		return nil, fmt.Errorf("learning: unknown severity %q", in.Severity)
	}

	if existing, err := fs.findByCause(in.Cause); err != nil {
		return nil, err
	} else if existing != nil {
		now := fs.now().UTC().Unix()
		if _, err := fs.db.Exec(`
			UPDATE failures
			SET times_prevented = times_prevented + 1, updated_at = ?
			WHERE id = ?`, now, existing.ID); err != nil {
			return nil, fmt.Errorf("learning: bump failure %s: %w", existing.ID, err)
		}
		existing.TimesPrevented++
		existing.UpdatedAt = now
		return existing, nil
	}

	scope, err := json.Marshal(in.Scope)
	if err != nil {
		return nil, fmt.Errorf("learning: encode scope: %w", err)
	}

	f := &Failure{
		ID:            uuid.NewString(),
		Cause:         in.Cause,
		AvoidanceRule: in.AvoidanceRule,
		Severity:      in.Severity,
		Scope:         in.Scope,
		LowQuality:    in.LowQuality,
		CreatedAt:     fs.now().UTC().Unix(),
	}
	f.UpdatedAt = f.CreatedAt

	_, err = fs.db.Exec(`
		INSERT INTO failures (id, cause, avoidance_rule, severity, scope, low_quality, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		f.ID, f.Cause, f.AvoidanceRule, f.Severity, string(scope),
		boolToInt(f.LowQuality), f.CreatedAt, f.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("learning: insert failure: %w", err)
	}
	return f, nil
}

func (fs *FailureStore) findByCause(cause string) (*Failure, error) {
	row := fs.db.QueryRow(failureSelect+` WHERE cause = ?`, cause)
	f, err := scanFailure(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return f, err
}

// Get returns a failure by id, or nil.
func (fs *FailureStore) Get(id string) (*Failure, error) {
	row := fs.db.QueryRow(failureSelect+` WHERE id = ?`, id)
	f, err := scanFailure(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return f, err
}

// List returns every failure ordered by severity then recency.
func (fs *FailureStore) List() ([]Failure, error) {
	rows, err := fs.db.Query(failureSelect + `
		ORDER BY CASE severity WHEN 'critical' THEN 0 WHEN 'major' THEN 1 ELSE 2 END,
		         created_at DESC, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Failure
	for rows.Next() {
		f, err := scanFailure(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, *f)
	}
	return out, rows.Err()
}

// Recall returns the union of every critical failure with the
// scope-matching failures ranked by times_prevented descending then
// severity. Critical failures surface even for empty queries.
func (fs *FailureStore) Recall(q Query, limit int) ([]Failure, error) {
	all, err := fs.List()
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var out []Failure
	for _, f := range all {
		if f.Severity == SeverityCritical {
			seen[f.ID] = true
			out = append(out, f)
		}
	}

	var matched []Failure
	for _, f := range all {
		if seen[f.ID] || !f.Scope.Matches(q) {
			continue
		}
		matched = append(matched, f)
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].TimesPrevented != matched[j].TimesPrevented {
			return matched[i].TimesPrevented > matched[j].TimesPrevented
		}
		if severityRank(matched[i].Severity) != severityRank(matched[j].Severity) {
			return severityRank(matched[i].Severity) < severityRank(matched[j].Severity)
		}
		return matched[i].ID < matched[j].ID
	})

	out = append(out, matched...)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

const failureSelect = `
	SELECT id, cause, avoidance_rule, severity, scope, times_prevented,
	       low_quality, created_at, updated_at
	FROM failures`

func scanFailure(scan func(...any) error) (*Failure, error) {
	var f Failure
	var scope string
	var lowQuality int
	if err := scan(&f.ID, &f.Cause, &f.AvoidanceRule, &f.Severity, &scope,
		&f.TimesPrevented, &lowQuality, &f.CreatedAt, &f.UpdatedAt); err != nil {
		return nil, err
	}
	f.LowQuality = lowQuality != 0
	if err := json.Unmarshal([]byte(scope), &f.Scope); err != nil {
		f.Scope = Scope{}
	}
	return &f, nil
}
