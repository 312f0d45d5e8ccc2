package learning

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNicheAssignAndBest(t *testing.T) {
	db := openLearningDB(t)
	ns := NewNicheStore(db)
	ls := NewLineageStore(db)

	s1, err := ls.RecordAttempt("optimize query", "denormalize", "", "")
	require.NoError(t, err)
	s2, err := ls.RecordAttempt("optimize query", "add index", "", "")
	require.NoError(t, err)

	require.NoError(t, ns.Assign("query-optimization", "speed up hot read paths",
		s1.ID, 0.6, []float64{0.9, 0.4, 0.5}))
	require.NoError(t, ns.Assign("query-optimization", "",
		s2.ID, 0.8, []float64{0.7, 0.8, 0.8}))

	niches, err := ns.List("")
	require.NoError(t, err)
	require.Len(t, niches, 1)
	assert.Equal(t, "query-optimization", niches[0].Niche.ID)
	assert.Equal(t, "speed up hot read paths", niches[0].Niche.FeatureDescription)
	require.NotNil(t, niches[0].BestSolution)
	assert.Equal(t, s2.ID, niches[0].BestSolution.SolutionID)
	assert.Equal(t, 0.8, niches[0].BestSolution.Score)
	assert.Equal(t, []float64{0.7, 0.8, 0.8}, niches[0].BestSolution.FeatureVector)

	// Re-scoring an existing assignment updates it in place.
	require.NoError(t, ns.Assign("query-optimization", "", s1.ID, 0.95, nil))
	niches, err = ns.List("query-optimization")
	require.NoError(t, err)
	require.Len(t, niches, 1)
	assert.Equal(t, s1.ID, niches[0].BestSolution.SolutionID)

	// Filter by unknown label.
	none, err := ns.List("missing")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestNicheRequiresLabel(t *testing.T) {
	ns := NewNicheStore(openLearningDB(t))
	assert.Error(t, ns.Assign("", "desc", "sid", 0.5, nil))
}

func TestInstructions(t *testing.T) {
	is := NewInstructionStore(openLearningDB(t))

	_, err := is.Add("", "")
	assert.Error(t, err)

	a, err := is.Add("prefer table tests", "testing")
	require.NoError(t, err)
	assert.Equal(t, "testing", a.Category)

	b, err := is.Add("keep handlers thin", "")
	require.NoError(t, err)
	assert.Equal(t, "general", b.Category)

	all, err := is.List()
	require.NoError(t, err)
	require.Len(t, all, 2)
	// Grouped by category: general before testing.
	assert.Equal(t, b.ID, all[0].ID)
	assert.Equal(t, a.ID, all[1].ID)
}
