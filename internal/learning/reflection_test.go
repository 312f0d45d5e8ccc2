package learning

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type reflectFixture struct {
	lineage  *LineageStore
	patterns *PatternStore
	failures *FailureStore
}

func newReflectFixture(t *testing.T) reflectFixture {
	t.Helper()
	db := openLearningDB(t)
	return reflectFixture{
		lineage:  NewLineageStore(db),
		patterns: NewPatternStore(db),
		failures: NewFailureStore(db),
	}
}

func (f reflectFixture) finalizedSolution(t *testing.T, outcome string) string {
	t.Helper()
	s, err := f.lineage.RecordAttempt("refactor cache", "split method", "", "")
	require.NoError(t, err)
	_, err = f.lineage.RecordOutcome(s.ID, outcome, nil, nil, nil)
	require.NoError(t, err)
	return s.ID
}

func TestLessonConforms(t *testing.T) {
	assert.True(t, LessonConforms(
		"When a method has two clustered responsibilities, split it because each cluster tests independently"))
	assert.True(t, LessonConforms(
		"When using multiple locks, always acquire them in order since that prevents deadlock"))
	assert.False(t, LessonConforms("fix it"))
	assert.False(t, LessonConforms("split the method because it is long"))
	assert.False(t, LessonConforms("When things break, panic"))
}

func TestReflectSuccessCreatesPattern(t *testing.T) {
	f := newReflectFixture(t)
	id := f.finalizedSolution(t, OutcomeSuccess)

	result, err := Reflect(ReflectionInput{
		SolutionID: id,
		Intent:     "split cache by phase",
		RootCause:  "single method held both stages",
		Lesson:     "When a method has two clustered responsibilities, split it because each cluster tests independently",
		Confidence: 0.8,
		Scope:      Scope{Files: []string{"**/cache.py"}, Tags: []string{"refactor"}},
	}, f.lineage, f.patterns, f.failures)
	require.NoError(t, err)

	require.NotNil(t, result.Pattern)
	assert.Nil(t, result.Failure)
	assert.False(t, result.LowQuality)
	assert.Equal(t, 0.8, result.Pattern.Confidence)

	// The new pattern is recallable by its tags and ranks first.
	ranked, err := f.patterns.Recall(Query{Tags: []string{"refactor"}}, 10, 90)
	require.NoError(t, err)
	require.NotEmpty(t, ranked)
	assert.Equal(t, result.Pattern.ID, ranked[0].ID)
}

func TestReflectFailureCreatesFailure(t *testing.T) {
	f := newReflectFixture(t)
	id := f.finalizedSolution(t, OutcomeFailure)

	result, err := Reflect(ReflectionInput{
		SolutionID: id,
		Intent:     "fix deadlock",
		RootCause:  "incorrect lock ordering caused a deadlock under load",
		Lesson:     "When using multiple locks, always acquire them in a consistent order because mixed orders deadlock",
		Scope:      Scope{Tags: []string{"concurrency"}},
	}, f.lineage, f.patterns, f.failures)
	require.NoError(t, err)

	assert.Nil(t, result.Pattern)
	require.NotNil(t, result.Failure)
	assert.Equal(t, SeverityMajor, result.Failure.Severity) // inferred from "deadlock"
	assert.Contains(t, result.Failure.Cause, "lock ordering")
}

func TestReflectPartialCreatesBothAtScaledConfidence(t *testing.T) {
	f := newReflectFixture(t)
	id := f.finalizedSolution(t, OutcomePartial)

	result, err := Reflect(ReflectionInput{
		SolutionID: id,
		Intent:     "migrate handlers",
		RootCause:  "half the handlers still depended on the legacy router",
		Lesson:     "When migrating handlers, do it router by router because mixed registries mask failures",
		Confidence: 1.0,
		Scope:      Scope{Tags: []string{"migration"}},
	}, f.lineage, f.patterns, f.failures)
	require.NoError(t, err)

	require.NotNil(t, result.Pattern)
	require.NotNil(t, result.Failure)
	assert.InDelta(t, 0.6, result.Pattern.Confidence, 0.001)
}

func TestReflectNonConformingLessonStoredButFlagged(t *testing.T) {
	f := newReflectFixture(t)
	id := f.finalizedSolution(t, OutcomeSuccess)

	result, err := Reflect(ReflectionInput{
		SolutionID: id,
		Intent:     "something",
		RootCause:  "a long and specific explanation of the underlying cause",
		Lesson:     "just be more careful next time",
	}, f.lineage, f.patterns, f.failures)
	require.NoError(t, err)

	assert.True(t, result.LowQuality)
	require.NotNil(t, result.Pattern)
	assert.True(t, result.Pattern.LowQuality)

	stored, err := f.patterns.Get(result.Pattern.ID)
	require.NoError(t, err)
	assert.True(t, stored.LowQuality)
}

func TestReflectRequiresTerminalOutcome(t *testing.T) {
	f := newReflectFixture(t)
	s, err := f.lineage.RecordAttempt("open task", "plan", "", "")
	require.NoError(t, err)

	_, err = Reflect(ReflectionInput{
		SolutionID: s.ID,
		Lesson:     "When x, do y because z",
	}, f.lineage, f.patterns, f.failures)
	assert.Error(t, err)

	_, err = Reflect(ReflectionInput{
		SolutionID: "missing",
		Lesson:     "When x, do y because z",
	}, f.lineage, f.patterns, f.failures)
	assert.Error(t, err)
}

func TestInferSeverity(t *testing.T) {
	assert.Equal(t, SeverityCritical, InferSeverity("SQL injection vulnerability found"))
	assert.Equal(t, SeverityCritical, InferSeverity("silent data loss on retry"))
	assert.Equal(t, SeverityMajor, InferSeverity("application crash on startup"))
	assert.Equal(t, SeverityMajor, InferSeverity("race condition in the pool"))
	assert.Equal(t, SeverityMinor, InferSeverity("misaligned output column"))
}
