// Package skill distills the learning store into a human-readable SKILL.md
// under the project's .codegraph directory.
package skill

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"text/template"
	"time"

	"github.com/websines/codegraph-mcp/internal/learning"
)

//go:embed skill.md.tmpl
var skillTemplate string

// distillThreshold is the minimum base confidence for a pattern to become a
// "Do" instruction.
const distillThreshold = 0.6

// Document is the data fed to the SKILL.md template.
type Document struct {
	GeneratedAt  string
	Dos          []Do
	Donts        []Dont
	Instructions []learning.Instruction
}

// Do is a distilled positive guideline.
type Do struct {
	Intent    string
	Mechanism string
	Scope     string
}

// Dont is a distilled negative guideline.
type Dont struct {
	Cause     string
	Avoidance string
	Severity  string
}

// Result reports what a distillation produced.
type Result struct {
	Path         string `json:"path"`
	Dos          int    `json:"dos"`
	Donts        int    `json:"donts"`
	Instructions int    `json:"instructions"`
}

// Distill renders SKILL.md from high-confidence patterns, critical and
// major failures, and manual instructions. The write is atomic.
func Distill(dir string, patterns *learning.PatternStore, failures *learning.FailureStore, instructions *learning.InstructionStore) (*Result, error) {
	doc := Document{GeneratedAt: time.Now().UTC().Format(time.RFC3339)}

	allPatterns, err := patterns.List()
	if err != nil {
		return nil, err
	}
	for _, p := range allPatterns {
		if p.Confidence < distillThreshold || p.LowQuality {
			continue
		}
		doc.Dos = append(doc.Dos, Do{
			Intent:    p.Intent,
			Mechanism: p.Mechanism,
			Scope:     scopeLabel(p.Scope),
		})
	}

	allFailures, err := failures.List()
	if err != nil {
		return nil, err
	}
	for _, f := range allFailures {
		if f.Severity == learning.SeverityMinor {
			continue
		}
		doc.Donts = append(doc.Donts, Dont{
			Cause:     f.Cause,
			Avoidance: f.AvoidanceRule,
			Severity:  f.Severity,
		})
	}

	doc.Instructions, err = instructions.List()
	if err != nil {
		return nil, err
	}

	tmpl, err := template.New("skill").Parse(skillTemplate)
	if err != nil {
		return nil, fmt.Errorf("skill: parse template: %w", err)
	}

	path := filepath.Join(dir, "SKILL.md")
	tmp, err := os.CreateTemp(dir, "SKILL.md.tmp-*")
	if err != nil {
		return nil, fmt.Errorf("skill: temp file: %w", err)
	}
	tmpName := tmp.Name()
	if err := tmpl.Execute(tmp, doc); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return nil, fmt.Errorf("skill: render: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return nil, err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return nil, fmt.Errorf("skill: rename into %s: %w", path, err)
	}

	return &Result{
		Path:         path,
		Dos:          len(doc.Dos),
		Donts:        len(doc.Donts),
		Instructions: len(doc.Instructions),
	}, nil
}

func scopeLabel(s learning.Scope) string {
	switch {
	case len(s.Files) > 0 && len(s.Tags) > 0:
		return fmt.Sprintf("%v %v", s.Files, s.Tags)
	case len(s.Files) > 0:
		return fmt.Sprint(s.Files)
	case len(s.Tags) > 0:
		return fmt.Sprint(s.Tags)
	}
	return "project-wide"
}
