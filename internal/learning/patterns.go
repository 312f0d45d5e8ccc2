package learning

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

// Pattern is a stored, scoped record of something that worked.
type Pattern struct {
	ID            string   `json:"id"`
	Intent        string   `json:"intent"`
	Mechanism     string   `json:"mechanism,omitempty"`
	Examples      []string `json:"examples"`
	Scope         Scope    `json:"scope"`
	Confidence    float64  `json:"confidence"`
	UsageCount    int64    `json:"usage_count"`
	SuccessCount  int64    `json:"success_count"`
	LowQuality    bool     `json:"low_quality,omitempty"`
	LastValidated int64    `json:"last_validated,omitempty"`
	CreatedAt     int64    `json:"created_at"`
	UpdatedAt     int64    `json:"updated_at"`
}

// RankedPattern pairs a pattern with its query-time confidence.
type RankedPattern struct {
	Pattern
	Effective float64 `json:"effective_confidence"`
	Drifting  bool    `json:"drifting,omitempty"`
}

// NewPattern carries the writable fields of a pattern.
type NewPattern struct {
	Intent     string
	Mechanism  string
	Examples   []string
	Scope      Scope
	Confidence float64
	LowQuality bool
}

// PatternStore is the patterns table.
type PatternStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewPatternStore creates a PatternStore over the learning database.
func NewPatternStore(db *sql.DB) *PatternStore {
	return &PatternStore{db: db, now: time.Now}
}

// Create inserts a pattern with a fresh UUID.
func (ps *PatternStore) Create(in NewPattern) (*Pattern, error) {
	if in.Confidence < 0 || in.Confidence > 1 {
		return nil, fmt.Errorf("learning: confidence %v outside [0,1]", in.Confidence)
	}
	if in.Examples == nil {
		in.Examples = []string{}
	}

	examples, err := json.Marshal(in.Examples)
	if err != nil {
		return nil, fmt.Errorf("learning: encode examples: %w", err)
	}
	scope, err := json.Marshal(in.Scope)
	if err != nil {
		return nil, fmt.Errorf("learning: encode scope: %w", err)
	}

	p := &Pattern{
		ID:         uuid.NewString(),
		Intent:     in.Intent,
		Mechanism:  in.Mechanism,
		Examples:   in.Examples,
		Scope:      in.Scope,
		Confidence: in.Confidence,
		LowQuality: in.LowQuality,
		CreatedAt:  ps.now().UTC().Unix(),
	}
	p.UpdatedAt = p.CreatedAt

	_, err = ps.db.Exec(`
		INSERT INTO patterns (id, intent, mechanism, examples, scope, confidence, low_quality, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Intent, p.Mechanism, string(examples), string(scope),
		p.Confidence, boolToInt(p.LowQuality), p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("learning: insert pattern: %w", err)
	}
	return p, nil
}

// Get returns a pattern by id, or nil.
func (ps *PatternStore) Get(id string) (*Pattern, error) {
	row := ps.db.QueryRow(patternSelect+` WHERE id = ?`, id)
	p, err := scanPattern(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return p, err
}

// List returns every pattern, newest first.
func (ps *PatternStore) List() ([]Pattern, error) {
	rows, err := ps.db.Query(patternSelect + ` ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Pattern
	for rows.Next() {
		p, err := scanPattern(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// UpdateUsage bumps the usage counters; a success also refreshes
// last_validated.
func (ps *PatternStore) UpdateUsage(id string, succeeded bool) error {
	now := ps.now().UTC().Unix()
	var err error
	if succeeded {
		_, err = ps.db.Exec(`
			UPDATE patterns
			SET usage_count = usage_count + 1,
			    success_count = success_count + 1,
			    last_validated = ?, updated_at = ?
			WHERE id = ?`, now, now, id)
	} else {
		_, err = ps.db.Exec(`
			UPDATE patterns
			SET usage_count = usage_count + 1, updated_at = ?
			WHERE id = ?`, now, id)
	}
	return err
}

// Recall ranks scope-matching patterns by effective confidence, descending.
func (ps *PatternStore) Recall(q Query, limit int, halfLifeDays int) ([]RankedPattern, error) {
	all, err := ps.List()
	if err != nil {
		return nil, err
	}

	now := ps.now().UTC().Unix()
	var ranked []RankedPattern
	for _, p := range all {
		if !p.Scope.Matches(q) {
			continue
		}
		age := float64(now-p.CreatedAt) / 86400
		c := EffectiveConfidence(p.Confidence, age, p.UsageCount, p.SuccessCount, halfLifeDays)
		ranked = append(ranked, RankedPattern{Pattern: p, Effective: c.Effective, Drifting: c.Drifting})
	}

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Effective != ranked[j].Effective {
			return ranked[i].Effective > ranked[j].Effective
		}
		return ranked[i].ID < ranked[j].ID
	})
	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked, nil
}

const patternSelect = `
	SELECT id, intent, mechanism, examples, scope, confidence,
	       usage_count, success_count, low_quality, last_validated,
	       created_at, updated_at
	FROM patterns`

func scanPattern(scan func(...any) error) (*Pattern, error) {
	var p Pattern
	var mechanism sql.NullString
	var examples, scope string
	var lowQuality int
	var lastValidated sql.NullInt64
	if err := scan(&p.ID, &p.Intent, &mechanism, &examples, &scope, &p.Confidence,
		&p.UsageCount, &p.SuccessCount, &lowQuality, &lastValidated,
		&p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.Mechanism = mechanism.String
	p.LowQuality = lowQuality != 0
	p.LastValidated = lastValidated.Int64
	if err := json.Unmarshal([]byte(examples), &p.Examples); err != nil {
		p.Examples = []string{}
	}
	if err := json.Unmarshal([]byte(scope), &p.Scope); err != nil {
		p.Scope = Scope{}
	}
	return &p, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
