package learning

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// exportThreshold is the minimum base confidence for a record to reach the
// human-readable export.
const exportThreshold = 0.5

// SyncStats summarizes one export run.
type SyncStats struct {
	PatternsSynced int      `json:"patterns_synced"`
	FailuresSynced int      `json:"failures_synced"`
	FilesWritten   []string `json:"files_written"`
	DurationMS     int64    `json:"duration_ms"`
}

// PatternsFile is the serialized patterns.json envelope.
type PatternsFile struct {
	Version  int       `json:"version"`
	SyncedAt string    `json:"synced_at"`
	Patterns []Pattern `json:"patterns"`
}

// FailuresFile is the serialized failures.json envelope.
type FailuresFile struct {
	Version  int       `json:"version"`
	SyncedAt string    `json:"synced_at"`
	Failures []Failure `json:"failures"`
}

// Sync writes patterns.json and failures.json under dir. Only records with
// base confidence >= 0.5 are exported (failures export critical and major
// severities). Records are ordered by id; each file is written to a
// temporary sibling and renamed into place, overwriting external edits.
func Sync(dir string, patterns *PatternStore, failures *FailureStore) (*SyncStats, error) {
	start := time.Now()
	stats := &SyncStats{}
	syncedAt := start.UTC().Format(time.RFC3339)

	allPatterns, err := patterns.List()
	if err != nil {
		return nil, err
	}
	exported := make([]Pattern, 0, len(allPatterns))
	for _, p := range allPatterns {
		if p.Confidence >= exportThreshold {
			exported = append(exported, p)
		}
	}
	sort.Slice(exported, func(i, j int) bool { return exported[i].ID < exported[j].ID })

	patternsPath := filepath.Join(dir, "patterns.json")
	if err := writeJSONAtomic(patternsPath, PatternsFile{
		Version: 1, SyncedAt: syncedAt, Patterns: exported,
	}); err != nil {
		return nil, err
	}
	stats.PatternsSynced = len(exported)
	stats.FilesWritten = append(stats.FilesWritten, patternsPath)

	allFailures, err := failures.List()
	if err != nil {
		return nil, err
	}
	kept := make([]Failure, 0, len(allFailures))
	for _, f := range allFailures {
		if f.Severity == SeverityCritical || f.Severity == SeverityMajor {
			kept = append(kept, f)
		}
	}
	sort.Slice(kept, func(i, j int) bool { return kept[i].ID < kept[j].ID })

	failuresPath := filepath.Join(dir, "failures.json")
	if err := writeJSONAtomic(failuresPath, FailuresFile{
		Version: 1, SyncedAt: syncedAt, Failures: kept,
	}); err != nil {
		return nil, err
	}
	stats.FailuresSynced = len(kept)
	stats.FilesWritten = append(stats.FilesWritten, failuresPath)

	stats.DurationMS = time.Since(start).Milliseconds()
	return stats, nil
}

// writeJSONAtomic writes v to a temp sibling of path and renames it in.
func writeJSONAtomic(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("learning: encode %s: %w", filepath.Base(path), err)
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("learning: temp file for %s: %w", path, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("learning: write %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("learning: close %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("learning: rename into %s: %w", path, err)
	}
	return nil
}
