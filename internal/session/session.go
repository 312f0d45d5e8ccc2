// Package session tracks the single active working session: task, ordered
// subtasks, decision log, and working context.
//
// The whole session is one JSON document persisted under a fixed node id in
// the session graph. Every mutation rewrites the document in a transaction,
// so smart_context survives a process restart byte-for-byte.
package session

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/websines/codegraph-mcp/internal/store"
)

// RootID is the well-known node id holding the session document.
const RootID = "session::root"

// Subtask statuses.
const (
	StatusPending    = "pending"
	StatusInProgress = "in_progress"
	StatusBlocked    = "blocked"
	StatusDone       = "done"
)

// Subtask is one ordered work item.
type Subtask struct {
	Text    string `json:"text"`
	Status  string `json:"status"`
	Blocker string `json:"blocker,omitempty"`
}

// Decision is one appended decision-log entry.
type Decision struct {
	ID        string   `json:"id"`
	Timestamp int64    `json:"timestamp"`
	Text      string   `json:"text"`
	Reasoning string   `json:"reasoning,omitempty"`
	Symbols   []string `json:"symbols,omitempty"`
}

// Context is the working context. Sub-fields are replaced wholesale by
// set_context, never merged.
type Context struct {
	Files   []string `json:"files"`
	Symbols []string `json:"symbols"`
	Notes   string   `json:"notes,omitempty"`
}

// Session is the persisted document.
type Session struct {
	Title     string     `json:"title"`
	Task      string     `json:"task"`
	Subtasks  []Subtask  `json:"subtasks"`
	Decisions []Decision `json:"decisions"`
	Context   Context    `json:"context"`
	StartedAt int64      `json:"started_at"`
}

// SmartContext is the compact restoration document.
type SmartContext struct {
	Title           string     `json:"title"`
	Task            string     `json:"task"`
	Progress        string     `json:"progress"`
	CurrentItem     string     `json:"current_item,omitempty"`
	RecentDecisions []Decision `json:"recent_decisions"`
	Context         Context    `json:"context"`
}

// Manager loads and persists the session document.
type Manager struct {
	store *store.Store
	now   func() time.Time
}

// NewManager creates a Manager.
func NewManager(st *store.Store) *Manager {
	return &Manager{store: st, now: time.Now}
}

// Start destructively replaces any prior session. Subtasks begin pending.
func (m *Manager) Start(title, task string, subtasks []string) (*Session, error) {
	if err := m.store.DeleteGraph("session"); err != nil {
		return nil, fmt.Errorf("session: clear previous session: %w", err)
	}

	s := &Session{
		Title:     title,
		Task:      task,
		Subtasks:  make([]Subtask, 0, len(subtasks)),
		Decisions: []Decision{},
		Context:   Context{Files: []string{}, Symbols: []string{}},
		StartedAt: m.now().UTC().Unix(),
	}
	for _, text := range subtasks {
		s.Subtasks = append(s.Subtasks, Subtask{Text: text, Status: StatusPending})
	}
	if err := m.persist(s); err != nil {
		return nil, err
	}
	return s, nil
}

// Get loads the current session, or nil when none is active.
func (m *Manager) Get() (*Session, error) {
	node, err := m.store.GetNode(RootID)
	if err != nil {
		return nil, fmt.Errorf("session: load: %w", err)
	}
	if node == nil {
		return nil, nil
	}
	var s Session
	if err := json.Unmarshal(node.Data, &s); err != nil {
		return nil, fmt.Errorf("session: decode stored session: %w", err)
	}
	return &s, nil
}

// UpdateTaskInput is a partial mutation of the subtask list.
type UpdateTaskInput struct {
	// ItemIndex selects the subtask for Status/Blocker; nil leaves
	// existing items untouched.
	ItemIndex *int
	Status    string
	Blocker   string
	AddItems  []string
}

// UpdateTask applies a partial mutation. Transitions are unrestricted
// except that a done subtask must not be demoted to pending.
func (m *Manager) UpdateTask(in UpdateTaskInput) (*Session, error) {
	s, err := m.Get()
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, fmt.Errorf("session: no active session")
	}

	if in.ItemIndex != nil {
		i := *in.ItemIndex
		if i < 0 || i >= len(s.Subtasks) {
			return nil, fmt.Errorf("session: subtask index %d out of range (have %d)", i, len(s.Subtasks))
		}
		if in.Status != "" {
			if !validStatus(in.Status) {
				return nil, fmt.Errorf("session: unknown status %q", in.Status)
			}
			if s.Subtasks[i].Status == StatusDone && in.Status == StatusPending {
				return nil, fmt.Errorf("session: subtask %d is done and cannot return to pending", i)
			}
			s.Subtasks[i].Status = in.Status
		}
		if in.Blocker != "" {
			s.Subtasks[i].Blocker = in.Blocker
		}
	}

	for _, text := range in.AddItems {
		s.Subtasks = append(s.Subtasks, Subtask{Text: text, Status: StatusPending})
	}

	if err := m.persist(s); err != nil {
		return nil, err
	}
	return s, nil
}

// AddDecision appends a decision entry with a UTC timestamp.
func (m *Manager) AddDecision(text, reasoning string, symbols []string) (*Decision, error) {
	s, err := m.Get()
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, fmt.Errorf("session: no active session")
	}

	d := Decision{
		ID:        uuid.NewString(),
		Timestamp: m.now().UTC().Unix(),
		Text:      text,
		Reasoning: reasoning,
		Symbols:   symbols,
	}
	s.Decisions = append(s.Decisions, d)
	if err := m.persist(s); err != nil {
		return nil, err
	}
	return &d, nil
}

// SetContextInput names the sub-fields to replace. A nil slice leaves the
// stored value; an empty slice clears it.
type SetContextInput struct {
	Files   []string
	Symbols []string
	Notes   *string
}

// SetContext replaces the named working-context sub-fields.
func (m *Manager) SetContext(in SetContextInput) (*Session, error) {
	s, err := m.Get()
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, fmt.Errorf("session: no active session")
	}

	if in.Files != nil {
		s.Context.Files = in.Files
	}
	if in.Symbols != nil {
		s.Context.Symbols = in.Symbols
	}
	if in.Notes != nil {
		s.Context.Notes = *in.Notes
	}

	if err := m.persist(s); err != nil {
		return nil, err
	}
	return s, nil
}

// recentDecisionCount bounds the smart-context decision slice.
const recentDecisionCount = 5

// SmartContext aggregates the restoration document: task, k/n progress,
// the first in-progress subtask, the most recent decisions, and the full
// working context.
func (m *Manager) SmartContext() (*SmartContext, error) {
	s, err := m.Get()
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, fmt.Errorf("session: no active session")
	}

	done := 0
	current := ""
	for _, st := range s.Subtasks {
		if st.Status == StatusDone {
			done++
		}
		if current == "" && st.Status == StatusInProgress {
			current = st.Text
		}
	}

	recent := s.Decisions
	if len(recent) > recentDecisionCount {
		recent = recent[len(recent)-recentDecisionCount:]
	}
	out := make([]Decision, len(recent))
	copy(out, recent)

	return &SmartContext{
		Title:           s.Title,
		Task:            s.Task,
		Progress:        fmt.Sprintf("%d/%d", done, len(s.Subtasks)),
		CurrentItem:     current,
		RecentDecisions: out,
		Context:         s.Context,
	}, nil
}

func (m *Manager) persist(s *Session) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("session: encode: %w", err)
	}
	if err := m.store.UpsertNode(RootID, "session", "session_root", json.RawMessage(data)); err != nil {
		return fmt.Errorf("session: persist: %w", err)
	}
	return nil
}

func validStatus(s string) bool {
	switch s {
	case StatusPending, StatusInProgress, StatusBlocked, StatusDone:
		return true
	}
	return false
}
