package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindProjectRootPrefersCodegraphDir(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".git"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "sub", ".codegraph"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "sub", "deep"), 0o755))

	// .codegraph in sub/ wins over .git higher up.
	got := findProjectRoot(filepath.Join(root, "sub", "deep"))
	assert.Equal(t, filepath.Join(root, "sub"), got)
}

func TestFindProjectRootFallsBackToGit(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".git"), 0o755))
	deep := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(deep, 0o755))

	assert.Equal(t, root, findProjectRoot(deep))
}

func TestFindProjectRootFallsBackToStart(t *testing.T) {
	dir := t.TempDir()
	assert.Equal(t, dir, findProjectRoot(dir))
}

func TestFromPathDefaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := FromPath(dir)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, ".codegraph"), cfg.Dir)
	assert.Equal(t, filepath.Join(cfg.Dir, "code.db"), cfg.CodeDBPath)
	assert.Equal(t, filepath.Join(cfg.Dir, "learning.db"), cfg.LearningDBPath)
	assert.Equal(t, int64(1<<20), cfg.Settings.Indexing.MaxFileSize)
	assert.Equal(t, 90, cfg.Settings.Learning.DecayHalfLife)
	assert.True(t, cfg.Settings.CrossLanguage.Enabled)
	assert.Contains(t, cfg.Settings.Indexing.Exclude, "node_modules")
	assert.Contains(t, cfg.Settings.Indexing.Exclude, ".codegraph")
}

func TestFromPathReadsConfigTOML(t *testing.T) {
	dir := t.TempDir()
	cg := filepath.Join(dir, ".codegraph")
	require.NoError(t, os.MkdirAll(cg, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(cg, "config.toml"), []byte(`
[indexing]
exclude = ["generated"]
max_file_size = 2048

[learning]
decay_half_life = 30

[cross_language]
enabled = false

[future_section]
unknown_key = "preserved on disk, ignored on load"
`), 0o644))

	cfg, err := FromPath(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"generated"}, cfg.Settings.Indexing.Exclude)
	assert.Equal(t, int64(2048), cfg.Settings.Indexing.MaxFileSize)
	assert.Equal(t, 30, cfg.Settings.Learning.DecayHalfLife)
	assert.False(t, cfg.Settings.CrossLanguage.Enabled)
}

func TestFromPathBadTOMLFallsBackToDefaults(t *testing.T) {
	dir := t.TempDir()
	cg := filepath.Join(dir, ".codegraph")
	require.NoError(t, os.MkdirAll(cg, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(cg, "config.toml"),
		[]byte("this is [not toml"), 0o644))

	cfg, err := FromPath(dir)
	require.NoError(t, err)
	assert.Equal(t, 90, cfg.Settings.Learning.DecayHalfLife)
}

func TestEnsureLayoutWritesDefaultsOnce(t *testing.T) {
	dir := t.TempDir()
	cfg, err := FromPath(dir)
	require.NoError(t, err)

	require.NoError(t, cfg.EnsureLayout())
	configPath := filepath.Join(cfg.Dir, "config.toml")
	gitignorePath := filepath.Join(cfg.Dir, ".gitignore")
	assert.FileExists(t, configPath)
	assert.FileExists(t, gitignorePath)

	// The authored default parses back to the built-in settings.
	reloaded, err := FromPath(dir)
	require.NoError(t, err)
	assert.Equal(t, DefaultSettings(), reloaded.Settings)

	// A user-edited config is never rewritten.
	require.NoError(t, os.WriteFile(configPath, []byte("[learning]\ndecay_half_life = 7\n"), 0o644))
	require.NoError(t, cfg.EnsureLayout())
	data, err := os.ReadFile(configPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "decay_half_life = 7")
}
