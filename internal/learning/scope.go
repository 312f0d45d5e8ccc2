// Package learning implements the pattern / failure / lineage stores, the
// confidence model, reflection, suggestion, and the learnings export.
package learning

import (
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Scope controls a record's visibility: a list of file globs and a tag set.
type Scope struct {
	Files []string `json:"files,omitempty"`
	Tags  []string `json:"tags,omitempty"`
}

// Query is what a recall caller supplies: concrete paths or globs plus tags.
type Query struct {
	Files []string `json:"files,omitempty"`
	Tags  []string `json:"tags,omitempty"`
}

// Empty reports whether the query carries nothing to match on.
func (q Query) Empty() bool {
	return len(q.Files) == 0 && len(q.Tags) == 0
}

// Matches reports whether the query reaches this scope: at least one query
// path matching one of the scope's globs, or at least one shared tag. An
// empty query matches nothing.
//
// Glob semantics are doublestar's (leading **, segment wildcards, brace
// sets); matching is case-sensitive, which on Unix mirrors the filesystem.
// Callers on case-insensitive filesystems should normalize before querying.
func (s Scope) Matches(q Query) bool {
	if q.Empty() {
		return false
	}

	for _, glob := range s.Files {
		for _, path := range q.Files {
			if ok, err := doublestar.Match(glob, path); err == nil && ok {
				return true
			}
			// A caller may pass a glob rather than a concrete path; an
			// exact string match covers the common case.
			if glob == path {
				return true
			}
		}
	}

	for _, tag := range s.Tags {
		for _, qt := range q.Tags {
			if strings.EqualFold(tag, qt) {
				return true
			}
		}
	}

	return false
}
