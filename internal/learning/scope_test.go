package learning

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScopeMatchesGlobs(t *testing.T) {
	scope := Scope{Files: []string{"src/**/*.py"}}

	assert.True(t, scope.Matches(Query{Files: []string{"src/store/db.py"}}))
	assert.True(t, scope.Matches(Query{Files: []string{"src/a.py"}}))
	assert.False(t, scope.Matches(Query{Files: []string{"tests/integration.py"}}))
	assert.False(t, scope.Matches(Query{Files: []string{"src/store/db.rs"}}))
}

func TestScopeMatchesIdenticalGlob(t *testing.T) {
	scope := Scope{Files: []string{"**/cache.py"}}
	assert.True(t, scope.Matches(Query{Files: []string{"**/cache.py"}}))
	assert.True(t, scope.Matches(Query{Files: []string{"app/cache.py"}}))
}

func TestScopeMatchesTags(t *testing.T) {
	scope := Scope{Tags: []string{"refactor", "cache"}}

	assert.True(t, scope.Matches(Query{Tags: []string{"refactor"}}))
	assert.True(t, scope.Matches(Query{Tags: []string{"CACHE"}}))
	assert.False(t, scope.Matches(Query{Tags: []string{"unrelated"}}))
}

func TestScopeEitherDimensionSuffices(t *testing.T) {
	scope := Scope{Files: []string{"src/**"}, Tags: []string{"db"}}

	assert.True(t, scope.Matches(Query{Files: []string{"src/x.py"}}))
	assert.True(t, scope.Matches(Query{Tags: []string{"db"}}))
	assert.True(t, scope.Matches(Query{Files: []string{"other/x.py"}, Tags: []string{"db"}}))
	assert.False(t, scope.Matches(Query{Files: []string{"other/x.py"}, Tags: []string{"web"}}))
}

func TestEmptyQueryMatchesNothing(t *testing.T) {
	scope := Scope{Files: []string{"**"}, Tags: []string{"anything"}}
	assert.False(t, scope.Matches(Query{}))
	assert.True(t, Query{}.Empty())
}

func TestEmptyScopeMatchesNothing(t *testing.T) {
	assert.False(t, Scope{}.Matches(Query{Files: []string{"a.py"}, Tags: []string{"t"}}))
}

func TestScopeBraceSets(t *testing.T) {
	scope := Scope{Files: []string{"**/*.{ts,tsx}"}}
	assert.True(t, scope.Matches(Query{Files: []string{"web/app.tsx"}}))
	assert.False(t, scope.Matches(Query{Files: []string{"web/app.css"}}))
}
