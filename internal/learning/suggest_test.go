package learning

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSuggestApproachFusesAllSources(t *testing.T) {
	db := openLearningDB(t)
	ps := NewPatternStore(db)
	fs := NewFailureStore(db)
	ls := NewLineageStore(db)

	for i, intent := range []string{"p-one", "p-two", "p-three", "p-four"} {
		_, err := ps.Create(NewPattern{
			Intent:     intent,
			Confidence: 0.5 + float64(i)*0.1,
			Scope:      Scope{Tags: []string{"cache"}},
		})
		require.NoError(t, err)
	}

	_, err := fs.Create(NewFailure{
		Cause: "FK violation on insert order", AvoidanceRule: "create parent first",
		Severity: SeverityCritical, Scope: Scope{Tags: []string{"sqlite"}},
	})
	require.NoError(t, err)
	_, err = fs.Create(NewFailure{
		Cause: "stale cache read", AvoidanceRule: "invalidate before write",
		Severity: SeverityMinor, Scope: Scope{Tags: []string{"cache"}},
	})
	require.NoError(t, err)

	prior, err := ls.RecordAttempt("refactor the cache eviction logic", "split by phase", "", "")
	require.NoError(t, err)
	_, err = ls.RecordOutcome(prior.ID, OutcomeSuccess, nil, nil, nil)
	require.NoError(t, err)

	s, err := SuggestApproach("refactor the cache warmup logic",
		Query{Tags: []string{"cache"}}, ps, fs, ls, 90)
	require.NoError(t, err)

	// Top three patterns only, best first.
	require.Len(t, s.Patterns, 3)
	assert.Equal(t, "p-four", s.Patterns[0].Intent)

	// The critical failure appears despite its unrelated scope, plus the
	// scope-matching minor one.
	require.Len(t, s.Failures, 2)
	assert.Equal(t, SeverityCritical, s.Failures[0].Severity)

	require.NotNil(t, s.PriorSuccess)
	assert.Equal(t, prior.ID, s.PriorSuccess.ID)

	// The approach text names the referenced records.
	assert.Contains(t, s.Approach, "p-four")
	assert.Contains(t, s.Approach, "FK violation on insert order")
	assert.Contains(t, s.Approach, "split by phase")
}

func TestSuggestApproachEmptyStore(t *testing.T) {
	db := openLearningDB(t)
	s, err := SuggestApproach("anything at all",
		Query{Tags: []string{"none"}},
		NewPatternStore(db), NewFailureStore(db), NewLineageStore(db), 90)
	require.NoError(t, err)

	assert.Empty(t, s.Patterns)
	assert.Empty(t, s.Failures)
	assert.Nil(t, s.PriorSuccess)
	assert.Contains(t, s.Approach, "first principles")
}

func TestSuggestApproachDeterministic(t *testing.T) {
	db := openLearningDB(t)
	ps := NewPatternStore(db)
	fs := NewFailureStore(db)
	ls := NewLineageStore(db)

	_, err := ps.Create(NewPattern{Intent: "stable", Confidence: 0.7, Scope: Scope{Tags: []string{"t"}}})
	require.NoError(t, err)

	a, err := SuggestApproach("task", Query{Tags: []string{"t"}}, ps, fs, ls, 90)
	require.NoError(t, err)
	b, err := SuggestApproach("task", Query{Tags: []string{"t"}}, ps, fs, ls, 90)
	require.NoError(t, err)
	assert.Equal(t, a.Approach, b.Approach)
}
