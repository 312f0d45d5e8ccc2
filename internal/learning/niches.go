package learning

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Niche groups solutions by task-type label and remembers the best one.
type Niche struct {
	ID                 string `json:"id"`
	FeatureDescription string `json:"feature_description"`
	CreatedAt          int64  `json:"created_at"`
}

// BestSolution is a niche's current champion.
type BestSolution struct {
	SolutionID    string    `json:"solution_id"`
	Score         float64   `json:"score"`
	FeatureVector []float64 `json:"feature_vector"`
}

// NicheWithBest pairs a niche with its best solution, when one exists.
type NicheWithBest struct {
	Niche        Niche         `json:"niche"`
	BestSolution *BestSolution `json:"best_solution,omitempty"`
}

// NicheStore is the niches + niche_solutions tables. Clustering of niches
// is intentionally not implemented; the store only keeps and retrieves the
// best solution per niche.
type NicheStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewNicheStore creates a NicheStore over the learning database.
func NewNicheStore(db *sql.DB) *NicheStore {
	return &NicheStore{db: db, now: time.Now}
}

// List returns every niche with its best solution, optionally filtered by
// task-type label.
func (ns *NicheStore) List(taskType string) ([]NicheWithBest, error) {
	query := `SELECT id, feature_description, created_at FROM niches`
	args := []any{}
	if taskType != "" {
		query += ` WHERE id = ?`
		args = append(args, taskType)
	}
	query += ` ORDER BY id`

	rows, err := ns.db.Query(query, args...)
	if err != nil {
		return nil, err
	}

	// Collect before the per-niche lookups: the pool holds one connection.
	var niches []Niche
	for rows.Next() {
		var n Niche
		if err := rows.Scan(&n.ID, &n.FeatureDescription, &n.CreatedAt); err != nil {
			rows.Close()
			return nil, err
		}
		niches = append(niches, n)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	var out []NicheWithBest
	for _, n := range niches {
		best, err := ns.best(n.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, NicheWithBest{Niche: n, BestSolution: best})
	}
	return out, nil
}

// Assign records a solution's score in a niche, creating the niche on
// first use.
func (ns *NicheStore) Assign(taskType, description, solutionID string, score float64, features []float64) error {
	if taskType == "" {
		return fmt.Errorf("learning: niche task type required")
	}
	if features == nil {
		features = []float64{0.5, 0.5, 0.5}
	}
	vec, err := json.Marshal(features)
	if err != nil {
		return fmt.Errorf("learning: encode feature vector: %w", err)
	}

	tx, err := ns.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`
		INSERT INTO niches (id, feature_description, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			feature_description = CASE WHEN excluded.feature_description != ''
				THEN excluded.feature_description ELSE niches.feature_description END`,
		taskType, description, ns.now().UTC().Unix()); err != nil {
		return fmt.Errorf("learning: upsert niche %s: %w", taskType, err)
	}

	if _, err := tx.Exec(`
		INSERT INTO niche_solutions (niche_id, solution_id, score, feature_vector)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(niche_id, solution_id) DO UPDATE SET
			score = excluded.score,
			feature_vector = excluded.feature_vector`,
		taskType, solutionID, score, string(vec)); err != nil {
		return fmt.Errorf("learning: assign solution %s to niche %s: %w", solutionID, taskType, err)
	}

	return tx.Commit()
}

func (ns *NicheStore) best(nicheID string) (*BestSolution, error) {
	row := ns.db.QueryRow(`
		SELECT solution_id, score, feature_vector
		FROM niche_solutions WHERE niche_id = ?
		ORDER BY score DESC, solution_id LIMIT 1`, nicheID)

	var b BestSolution
	var vec string
	if err := row.Scan(&b.SolutionID, &b.Score, &vec); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	if err := json.Unmarshal([]byte(vec), &b.FeatureVector); err != nil {
		b.FeatureVector = nil
	}
	return &b, nil
}
