package skill

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/websines/codegraph-mcp/internal/learning"
	"github.com/websines/codegraph-mcp/internal/store"
)

func TestDistillRendersSkillFile(t *testing.T) {
	dir := t.TempDir()
	st, err := store.Open(filepath.Join(dir, "code.db"), filepath.Join(dir, "learning.db"))
	require.NoError(t, err)
	defer st.Close()

	patterns := learning.NewPatternStore(st.Learning())
	failures := learning.NewFailureStore(st.Learning())
	instructions := learning.NewInstructionStore(st.Learning())

	_, err = patterns.Create(learning.NewPattern{
		Intent: "wrap writes in one transaction", Mechanism: "single tx per file",
		Confidence: 0.9, Scope: learning.Scope{Tags: []string{"sqlite"}},
	})
	require.NoError(t, err)
	_, err = patterns.Create(learning.NewPattern{
		Intent: "too weak to export", Confidence: 0.2,
	})
	require.NoError(t, err)

	_, err = failures.Create(learning.NewFailure{
		Cause: "FK violation on insert order", AvoidanceRule: "create parent first",
		Severity: learning.SeverityCritical,
	})
	require.NoError(t, err)
	_, err = failures.Create(learning.NewFailure{
		Cause: "cosmetic glitch", AvoidanceRule: "ignore", Severity: learning.SeverityMinor,
	})
	require.NoError(t, err)

	_, err = instructions.Add("run the linter before committing", "workflow")
	require.NoError(t, err)

	result, err := Distill(dir, patterns, failures, instructions)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Dos)
	assert.Equal(t, 1, result.Donts)
	assert.Equal(t, 1, result.Instructions)

	data, err := os.ReadFile(filepath.Join(dir, "SKILL.md"))
	require.NoError(t, err)
	content := string(data)
	assert.Contains(t, content, "wrap writes in one transaction")
	assert.Contains(t, content, "FK violation on insert order")
	assert.Contains(t, content, "run the linter before committing")
	assert.NotContains(t, content, "too weak to export")
	assert.NotContains(t, content, "cosmetic glitch")
}
