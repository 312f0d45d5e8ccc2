package learning

import (
	"fmt"
	"strings"
)

// Suggestion fuses patterns, failures, and lineage into one recommendation.
type Suggestion struct {
	Patterns     []RankedPattern `json:"patterns"`
	Failures     []Failure       `json:"failures"`
	PriorSuccess *Solution       `json:"prior_success,omitempty"`
	Approach     string          `json:"approach"`
}

const (
	suggestPatternLimit = 3
	suggestFailureLimit = 3
	suggestTokenOverlap = 3
)

// SuggestApproach assembles the suggestion bundle for a task and scope. The
// textual approach is a deterministic template naming the referenced
// records; there is no model inference here.
func SuggestApproach(task string, q Query, patterns *PatternStore, failures *FailureStore, lineage *LineageStore, halfLifeDays int) (*Suggestion, error) {
	topPatterns, err := patterns.Recall(q, suggestPatternLimit, halfLifeDays)
	if err != nil {
		return nil, err
	}

	allFailures, err := failures.List()
	if err != nil {
		return nil, err
	}
	var picked []Failure
	for _, f := range allFailures {
		if f.Severity == SeverityCritical {
			picked = append(picked, f)
		}
	}
	matched := 0
	for _, f := range allFailures {
		if matched >= suggestFailureLimit {
			break
		}
		if f.Severity == SeverityCritical || !f.Scope.Matches(q) {
			continue
		}
		picked = append(picked, f)
		matched++
	}

	prior, err := lineage.MostRecentSuccessOverlapping(task, suggestTokenOverlap)
	if err != nil {
		return nil, err
	}

	s := &Suggestion{
		Patterns:     topPatterns,
		Failures:     picked,
		PriorSuccess: prior,
	}
	s.Approach = renderApproach(task, s)
	return s, nil
}

func renderApproach(task string, s *Suggestion) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Approach for %q:", task)

	if len(s.Patterns) == 0 && len(s.Failures) == 0 && s.PriorSuccess == nil {
		b.WriteString(" no recorded patterns, failures, or prior attempts apply; proceed from first principles.")
		return b.String()
	}

	if len(s.Patterns) > 0 {
		b.WriteString(" Apply ")
		for i, p := range s.Patterns {
			if i > 0 {
				b.WriteString("; ")
			}
			fmt.Fprintf(&b, "pattern %q (confidence %.2f)", p.Intent, p.Effective)
		}
		b.WriteString(".")
	}
	if len(s.Failures) > 0 {
		b.WriteString(" Avoid ")
		for i, f := range s.Failures {
			if i > 0 {
				b.WriteString("; ")
			}
			fmt.Fprintf(&b, "%q (%s: %s)", f.Cause, f.Severity, f.AvoidanceRule)
		}
		b.WriteString(".")
	}
	if s.PriorSuccess != nil {
		fmt.Fprintf(&b, " A prior success on %q used plan: %s.", s.PriorSuccess.Task, s.PriorSuccess.Plan)
	}
	return b.String()
}
