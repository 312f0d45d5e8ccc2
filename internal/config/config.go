// Package config resolves the project root and loads .codegraph/config.toml.
//
// Detection is cheap and side-effect free; directory creation and the
// default config write happen in EnsureLayout so the server can defer
// touching the filesystem until the first tool call.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config holds the resolved paths and parsed settings for one project.
type Config struct {
	// ProjectRoot is the detected repository root.
	ProjectRoot string
	// Dir is <ProjectRoot>/.codegraph.
	Dir string
	// CodeDBPath is the code graph database file.
	CodeDBPath string
	// LearningDBPath is the learning database file.
	LearningDBPath string
	// Settings holds the parsed config.toml values.
	Settings Settings
}

// Settings mirrors config.toml. All fields have defaults; unknown keys in
// the file are ignored on load and preserved on disk (the server only ever
// writes config.toml when the file is absent).
type Settings struct {
	Indexing      IndexingSettings      `toml:"indexing"`
	Learning      LearningSettings      `toml:"learning"`
	CrossLanguage CrossLanguageSettings `toml:"cross_language"`
}

type IndexingSettings struct {
	Exclude     []string `toml:"exclude"`
	MaxFileSize int64    `toml:"max_file_size"`
}

type LearningSettings struct {
	DecayHalfLife int `toml:"decay_half_life"`
}

type CrossLanguageSettings struct {
	Enabled bool `toml:"enabled"`
}

// DefaultSettings returns the built-in configuration.
func DefaultSettings() Settings {
	return Settings{
		Indexing: IndexingSettings{
			Exclude: []string{
				"node_modules", "target", ".git", "dist", "build",
				"__pycache__", ".cache", ".pytest_cache", "coverage",
				".codegraph", ".venv", "venv", ".tox", "vendor",
			},
			MaxFileSize: 1 << 20,
		},
		Learning:      LearningSettings{DecayHalfLife: 90},
		CrossLanguage: CrossLanguageSettings{Enabled: true},
	}
}

const defaultConfigTOML = `# Codegraph configuration

[indexing]
# Directories to exclude from indexing (matched as exact path components)
exclude = [
    "node_modules",
    "target",
    ".git",
    "dist",
    "build",
    "__pycache__",
    ".cache",
    ".pytest_cache",
    "coverage",
    ".codegraph",
    ".venv",
    "venv",
    ".tox",
    "vendor",
]

# Maximum file size in bytes (larger files are skipped)
max_file_size = 1048576

[learning]
# Half-life for confidence decay in days
decay_half_life = 90

[cross_language]
# Enable cross-language API inference
enabled = true
`

const gitignoreContents = `# Codegraph databases (user-local, not shared)
*.db
*.db-*
`

// Detect resolves configuration starting from the current working directory.
func Detect() (*Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("config: resolve working directory: %w", err)
	}
	return FromPath(cwd)
}

// FromPath resolves configuration from a specific starting directory.
func FromPath(start string) (*Config, error) {
	root := findProjectRoot(start)
	dir := filepath.Join(root, ".codegraph")

	cfg := &Config{
		ProjectRoot:    root,
		Dir:            dir,
		CodeDBPath:     filepath.Join(dir, "code.db"),
		LearningDBPath: filepath.Join(dir, "learning.db"),
		Settings:       DefaultSettings(),
	}

	path := filepath.Join(dir, "config.toml")
	if data, err := os.ReadFile(path); err == nil {
		// Decode over the defaults so partial files keep the rest.
		if _, err := toml.Decode(string(data), &cfg.Settings); err != nil {
			fmt.Fprintf(os.Stderr, "WARNING: config: parse %s: %v\n", path, err)
			cfg.Settings = DefaultSettings()
		}
	}
	if cfg.Settings.Learning.DecayHalfLife <= 0 {
		cfg.Settings.Learning.DecayHalfLife = 90
	}
	if cfg.Settings.Indexing.MaxFileSize <= 0 {
		cfg.Settings.Indexing.MaxFileSize = 1 << 20
	}

	return cfg, nil
}

// findProjectRoot walks upward from start, preferring a directory that
// already contains .codegraph/, then one containing .git/, and finally
// falling back to start itself.
func findProjectRoot(start string) string {
	abs, err := filepath.Abs(start)
	if err != nil {
		abs = start
	}

	var gitRoot string
	for dir := abs; ; {
		if isDir(filepath.Join(dir, ".codegraph")) {
			return dir
		}
		if gitRoot == "" && isDir(filepath.Join(dir, ".git")) {
			gitRoot = dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	if gitRoot != "" {
		return gitRoot
	}
	return abs
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// EnsureLayout creates the .codegraph directory and authors config.toml and
// .gitignore when they are missing. An existing config.toml is left exactly
// as the user wrote it.
func (c *Config) EnsureLayout() error {
	if err := os.MkdirAll(c.Dir, 0o755); err != nil {
		return fmt.Errorf("config: create %s: %w", c.Dir, err)
	}

	configPath := filepath.Join(c.Dir, "config.toml")
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := os.WriteFile(configPath, []byte(defaultConfigTOML), 0o644); err != nil {
			return fmt.Errorf("config: write %s: %w", configPath, err)
		}
	}

	gitignorePath := filepath.Join(c.Dir, ".gitignore")
	if _, err := os.Stat(gitignorePath); os.IsNotExist(err) {
		if err := os.WriteFile(gitignorePath, []byte(gitignoreContents), 0o644); err != nil {
			return fmt.Errorf("config: write %s: %w", gitignorePath, err)
		}
	}

	return nil
}
