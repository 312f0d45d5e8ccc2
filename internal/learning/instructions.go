package learning

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Instruction is a manually added project guideline that survives alongside
// the distilled patterns and failures.
type Instruction struct {
	ID          string `json:"id"`
	Instruction string `json:"instruction"`
	Category    string `json:"category"`
	CreatedAt   int64  `json:"created_at"`
}

// InstructionStore is the instructions table.
type InstructionStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewInstructionStore creates an InstructionStore over the learning
// database.
func NewInstructionStore(db *sql.DB) *InstructionStore {
	return &InstructionStore{db: db, now: time.Now}
}

// Add inserts an instruction. Category defaults to "general".
func (is *InstructionStore) Add(text, category string) (*Instruction, error) {
	if text == "" {
		return nil, fmt.Errorf("learning: instruction text required")
	}
	if category == "" {
		category = "general"
	}
	in := &Instruction{
		ID:          uuid.NewString(),
		Instruction: text,
		Category:    category,
		CreatedAt:   is.now().UTC().Unix(),
	}
	_, err := is.db.Exec(`
		INSERT INTO instructions (id, instruction, category, created_at)
		VALUES (?, ?, ?, ?)`,
		in.ID, in.Instruction, in.Category, in.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("learning: insert instruction: %w", err)
	}
	return in, nil
}

// List returns every instruction grouped by category, then insertion order.
func (is *InstructionStore) List() ([]Instruction, error) {
	rows, err := is.db.Query(`
		SELECT id, instruction, category, created_at
		FROM instructions ORDER BY category, created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Instruction
	for rows.Next() {
		var in Instruction
		if err := rows.Scan(&in.ID, &in.Instruction, &in.Category, &in.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, in)
	}
	return out, rows.Err()
}
