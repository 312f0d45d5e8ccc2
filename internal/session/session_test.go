package session

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/websines/codegraph-mcp/internal/store"
)

func openTestStore(t *testing.T, dir string) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(dir, "code.db"), filepath.Join(dir, "learning.db"))
	require.NoError(t, err)
	return s
}

func TestStartSession(t *testing.T) {
	st := openTestStore(t, t.TempDir())
	defer st.Close()
	m := NewManager(st)

	s, err := m.Start("t1", "fix bug", []string{"read", "patch", "test"})
	require.NoError(t, err)
	assert.Equal(t, "t1", s.Title)
	assert.Equal(t, "fix bug", s.Task)
	require.Len(t, s.Subtasks, 3)
	for _, sub := range s.Subtasks {
		assert.Equal(t, StatusPending, sub.Status)
	}
}

func TestStartReplacesPriorSession(t *testing.T) {
	st := openTestStore(t, t.TempDir())
	defer st.Close()
	m := NewManager(st)

	_, err := m.Start("first", "task one", []string{"a"})
	require.NoError(t, err)
	_, err = m.AddDecision("old decision", "", nil)
	require.NoError(t, err)

	s, err := m.Start("second", "task two", nil)
	require.NoError(t, err)
	assert.Equal(t, "second", s.Title)
	assert.Empty(t, s.Decisions)
	assert.Empty(t, s.Subtasks)
}

func TestUpdateTaskStatusRules(t *testing.T) {
	st := openTestStore(t, t.TempDir())
	defer st.Close()
	m := NewManager(st)

	_, err := m.Start("t", "task", []string{"a", "b"})
	require.NoError(t, err)

	idx := 0
	s, err := m.UpdateTask(UpdateTaskInput{ItemIndex: &idx, Status: StatusDone})
	require.NoError(t, err)
	assert.Equal(t, StatusDone, s.Subtasks[0].Status)

	// A done subtask cannot be demoted to pending.
	_, err = m.UpdateTask(UpdateTaskInput{ItemIndex: &idx, Status: StatusPending})
	assert.Error(t, err)

	// But other transitions stay open.
	s, err = m.UpdateTask(UpdateTaskInput{ItemIndex: &idx, Status: StatusInProgress})
	require.NoError(t, err)
	assert.Equal(t, StatusInProgress, s.Subtasks[0].Status)

	// Out-of-range and bad statuses are rejected.
	bad := 9
	_, err = m.UpdateTask(UpdateTaskInput{ItemIndex: &bad, Status: StatusDone})
	assert.Error(t, err)
	_, err = m.UpdateTask(UpdateTaskInput{ItemIndex: &idx, Status: "paused"})
	assert.Error(t, err)
}

func TestUpdateTaskAddItemsAndBlocker(t *testing.T) {
	st := openTestStore(t, t.TempDir())
	defer st.Close()
	m := NewManager(st)

	_, err := m.Start("t", "task", []string{"a"})
	require.NoError(t, err)

	idx := 0
	s, err := m.UpdateTask(UpdateTaskInput{
		ItemIndex: &idx,
		Status:    StatusBlocked,
		Blocker:   "waiting on review",
		AddItems:  []string{"b", "c"},
	})
	require.NoError(t, err)
	require.Len(t, s.Subtasks, 3)
	assert.Equal(t, StatusBlocked, s.Subtasks[0].Status)
	assert.Equal(t, "waiting on review", s.Subtasks[0].Blocker)
	assert.Equal(t, StatusPending, s.Subtasks[2].Status)
}

func TestSetContextReplacesNotMerges(t *testing.T) {
	st := openTestStore(t, t.TempDir())
	defer st.Close()
	m := NewManager(st)

	_, err := m.Start("t", "task", nil)
	require.NoError(t, err)

	_, err = m.SetContext(SetContextInput{
		Files:   []string{"a.py", "b.py"},
		Symbols: []string{"a.py::foo"},
	})
	require.NoError(t, err)

	// Sending a new files list replaces the old one wholesale; omitted
	// fields stay.
	s, err := m.SetContext(SetContextInput{Files: []string{"c.py"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"c.py"}, s.Context.Files)
	assert.Equal(t, []string{"a.py::foo"}, s.Context.Symbols)

	// An empty list clears; nil leaves alone.
	s, err = m.SetContext(SetContextInput{Symbols: []string{}})
	require.NoError(t, err)
	assert.Empty(t, s.Context.Symbols)
	assert.Equal(t, []string{"c.py"}, s.Context.Files)

	notes := "mid-refactor, tests red"
	s, err = m.SetContext(SetContextInput{Notes: &notes})
	require.NoError(t, err)
	assert.Equal(t, notes, s.Context.Notes)
}

func TestSmartContextProgressAndCurrentItem(t *testing.T) {
	st := openTestStore(t, t.TempDir())
	defer st.Close()
	m := NewManager(st)

	_, err := m.Start("t1", "fix bug", []string{"read", "patch", "test"})
	require.NoError(t, err)

	i0, i1 := 0, 1
	_, err = m.UpdateTask(UpdateTaskInput{ItemIndex: &i0, Status: StatusDone})
	require.NoError(t, err)
	_, err = m.UpdateTask(UpdateTaskInput{ItemIndex: &i1, Status: StatusInProgress})
	require.NoError(t, err)

	sc, err := m.SmartContext()
	require.NoError(t, err)
	assert.Equal(t, "1/3", sc.Progress)
	assert.Equal(t, "patch", sc.CurrentItem)
	assert.Equal(t, "fix bug", sc.Task)
}

func TestSmartContextRecentDecisionsCapped(t *testing.T) {
	st := openTestStore(t, t.TempDir())
	defer st.Close()
	m := NewManager(st)

	_, err := m.Start("t", "task", nil)
	require.NoError(t, err)

	for i := 0; i < 8; i++ {
		_, err = m.AddDecision("decision", "reason", nil)
		require.NoError(t, err)
	}

	sc, err := m.SmartContext()
	require.NoError(t, err)
	assert.Len(t, sc.RecentDecisions, 5)
}

func TestSessionRoundTripThroughRestart(t *testing.T) {
	dir := t.TempDir()

	st := openTestStore(t, dir)
	m := NewManager(st)
	_, err := m.Start("t1", "fix bug", []string{"read", "patch", "test"})
	require.NoError(t, err)
	i0 := 0
	_, err = m.UpdateTask(UpdateTaskInput{ItemIndex: &i0, Status: StatusDone})
	require.NoError(t, err)
	_, err = m.AddDecision("use WAL mode", "fewer writer stalls", []string{"store.go::Open"})
	require.NoError(t, err)
	_, err = m.SetContext(SetContextInput{Files: []string{"store.go"}})
	require.NoError(t, err)

	before, err := m.SmartContext()
	require.NoError(t, err)
	require.NoError(t, st.Close())

	// Simulated process restart: new store handle over the same files.
	st2 := openTestStore(t, dir)
	defer st2.Close()
	after, err := NewManager(st2).SmartContext()
	require.NoError(t, err)

	assert.Equal(t, before, after)
}

func TestOperationsWithoutSessionFail(t *testing.T) {
	st := openTestStore(t, t.TempDir())
	defer st.Close()
	m := NewManager(st)

	_, err := m.SmartContext()
	assert.Error(t, err)
	_, err = m.AddDecision("d", "", nil)
	assert.Error(t, err)
	_, err = m.SetContext(SetContextInput{})
	assert.Error(t, err)
	idx := 0
	_, err = m.UpdateTask(UpdateTaskInput{ItemIndex: &idx, Status: StatusDone})
	assert.Error(t, err)

	s, err := m.Get()
	require.NoError(t, err)
	assert.Nil(t, s)
}
