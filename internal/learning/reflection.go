package learning

import (
	"fmt"
	"regexp"
	"strings"
)

// ReflectionInput carries a reflect call's arguments.
type ReflectionInput struct {
	SolutionID string
	Intent     string
	Mechanism  string
	RootCause  string
	Lesson     string
	Confidence float64
	Examples   []string
	Scope      Scope
}

// ReflectionResult reports what a reflection produced.
type ReflectionResult struct {
	Pattern    *Pattern `json:"pattern,omitempty"`
	Failure    *Failure `json:"failure,omitempty"`
	LowQuality bool     `json:"low_quality"`
}

// partialConfidenceScale discounts records distilled from a partial outcome.
const partialConfidenceScale = 0.6

// lessonShape is the advisory "When X, do Y because Z" structure: a "when"
// clause, an action verb, and a reason connective. Non-conforming lessons
// are stored anyway, flagged low_quality.
var (
	lessonWhen   = regexp.MustCompile(`(?i)\bwhen\b`)
	lessonAction = regexp.MustCompile(`(?i)\b(do|use|avoid|never|always|prefer|split|create|add|keep)\b`)
	lessonReason = regexp.MustCompile(`(?i)\b(because|since|so that)\b`)
)

// LessonConforms reports whether a lesson matches the advisory schema.
func LessonConforms(lesson string) bool {
	return lessonWhen.MatchString(lesson) &&
		lessonAction.MatchString(lesson) &&
		lessonReason.MatchString(lesson)
}

// genericCauses are root causes too vague to act on; short causes matching
// one of these are flagged but still stored.
var genericCauses = []string{
	"it failed", "syntax error", "error occurred", "didn't work", "broke",
}

func genericRootCause(cause string) bool {
	if len(cause) >= 30 {
		return false
	}
	lower := strings.ToLower(cause)
	for _, g := range genericCauses {
		if strings.Contains(lower, g) {
			return true
		}
	}
	return false
}

// InferSeverity maps root-cause keywords to a severity. Reflect assigns it to
// every failure record it creates.
func InferSeverity(rootCause string) string {
	lower := strings.ToLower(rootCause)
	for _, kw := range []string{"security", "vulnerability", "data loss", "corruption"} {
		if strings.Contains(lower, kw) {
			return SeverityCritical
		}
	}
	for _, kw := range []string{"crash", "panic", "deadlock", "race condition"} {
		if strings.Contains(lower, kw) {
			return SeverityMajor
		}
	}
	return SeverityMinor
}

// Reflect converts a finalized solution's outcome into a pattern, a failure
// record, or both (for partial outcomes, at a discounted confidence).
func Reflect(in ReflectionInput, lineage *LineageStore, patterns *PatternStore, failures *FailureStore) (*ReflectionResult, error) {
	solution, err := lineage.Get(in.SolutionID)
	if err != nil {
		return nil, err
	}
	if solution == nil {
		return nil, fmt.Errorf("learning: solution %s not found", in.SolutionID)
	}
	if !TerminalOutcome(solution.Outcome) {
		return nil, fmt.Errorf("learning: solution %s has no terminal outcome yet", in.SolutionID)
	}
	if in.Lesson == "" {
		return nil, fmt.Errorf("learning: lesson required")
	}

	lowQuality := !LessonConforms(in.Lesson) || genericRootCause(in.RootCause)

	confidence := in.Confidence
	if confidence <= 0 || confidence > 1 {
		confidence = 0.7
	}

	examples := in.Examples
	if len(examples) == 0 {
		examples = []string{in.Lesson}
	}

	result := &ReflectionResult{LowQuality: lowQuality}

	makePattern := func(conf float64) error {
		p, err := patterns.Create(NewPattern{
			Intent:     in.Intent,
			Mechanism:  in.Mechanism,
			Examples:   examples,
			Scope:      in.Scope,
			Confidence: conf,
			LowQuality: lowQuality,
		})
		result.Pattern = p
		return err
	}
	makeFailure := func() error {
		f, err := failures.Create(NewFailure{
			Cause:         in.RootCause,
			AvoidanceRule: in.Lesson,
			Severity:      InferSeverity(in.RootCause),
			Scope:         in.Scope,
			LowQuality:    lowQuality,
		})
		result.Failure = f
		return err
	}

	switch solution.Outcome {
	case OutcomeSuccess:
		if err := makePattern(confidence); err != nil {
			return nil, err
		}
	case OutcomeFailure:
		if err := makeFailure(); err != nil {
			return nil, err
		}
	case OutcomePartial:
		if err := makePattern(confidence * partialConfidenceScale); err != nil {
			return nil, err
		}
		if err := makeFailure(); err != nil {
			return nil, err
		}
	}

	return result, nil
}
