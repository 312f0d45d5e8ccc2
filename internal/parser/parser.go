// Package parser turns source bytes into symbol and reference lists using
// the pre-authored tree-sitter queries from the lang registry.
package parser

import (
	"context"
	"fmt"
	"sort"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/websines/codegraph-mcp/internal/lang"
)

// Symbol is one extracted declaration. Scope is the chain of enclosing
// symbol names (outermost first) computed from byte-range containment; a
// top-level symbol has an empty Scope.
type Symbol struct {
	Name      string
	Kind      string
	Scope     []string
	StartLine int
	EndLine   int
	Signature string

	startByte uint32
	endByte   uint32
}

// ScopedName joins the scope chain and the name with "::".
func (s Symbol) ScopedName() string {
	if len(s.Scope) == 0 {
		return s.Name
	}
	return strings.Join(s.Scope, "::") + "::" + s.Name
}

// Reference is one extracted use of a name.
type Reference struct {
	// Kind is calls, imports, inherits, or implements.
	Kind string
	// Target is the referenced name (unqualified).
	Target string
	// From is the scoped name of the tightest enclosing symbol, or "" when
	// the reference occurs at file level.
	From string
	Line int
}

// Result bundles one file's parse output.
type Result struct {
	Symbols    []Symbol
	References []Reference
}

// Parse parses source in the given language and harvests symbols and
// references. A syntactically broken file still parses (tree-sitter
// produces error nodes); captures inside error regions are simply absent.
func Parse(ctx context.Context, cfg *lang.Config, source []byte) (*Result, error) {
	p := sitter.NewParser()
	p.SetLanguage(cfg.Language)

	tree, err := p.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, fmt.Errorf("parser: parse %s source: %w", cfg.Name, err)
	}
	defer tree.Close()

	root := tree.RootNode()

	symbols, err := extractSymbols(cfg, root, source)
	if err != nil {
		return nil, err
	}
	refs, err := extractReferences(cfg, root, source)
	if err != nil {
		return nil, err
	}

	assignScopes(symbols)
	attributeReferences(symbols, refs)

	return &Result{Symbols: symbols, References: refs}, nil
}

// symbolCaptureKinds maps capture names in the symbols queries to node kinds.
var symbolCaptureKinds = map[string]string{
	"function":  "function",
	"method":    "method",
	"class":     "class",
	"struct":    "struct",
	"enum":      "enum",
	"trait":     "trait",
	"interface": "interface",
	"type":      "type",
	"const":     "const",
	"static":    "static",
	"variable":  "variable",
	"module":    "module",
}

func extractSymbols(cfg *lang.Config, root *sitter.Node, source []byte) ([]Symbol, error) {
	query, err := sitter.NewQuery([]byte(cfg.Symbols), cfg.Language)
	if err != nil {
		return nil, fmt.Errorf("parser: %s symbols query: %w", cfg.Name, err)
	}
	defer query.Close()

	qc := sitter.NewQueryCursor()
	defer qc.Close()
	qc.Exec(query, root)

	var symbols []Symbol
	seen := make(map[string]int) // "start:end:name" -> index into symbols

	for {
		match, ok := qc.NextMatch()
		if !ok {
			break
		}

		var name string
		var kind string
		var node *sitter.Node
		for _, c := range match.Captures {
			captureName := query.CaptureNameForId(c.Index)
			if captureName == "name" {
				name = c.Node.Content(source)
				continue
			}
			if k, isKind := symbolCaptureKinds[captureName]; isKind {
				kind = k
				node = c.Node
			}
		}
		if name == "" || node == nil {
			continue
		}

		key := fmt.Sprintf("%d:%d:%s", node.StartByte(), node.EndByte(), name)
		if prev, dup := seen[key]; dup {
			// Overlapping patterns (e.g. a struct also matching the generic
			// type pattern): keep the more specific kind.
			if symbols[prev].Kind == "type" && kind != "type" {
				symbols[prev].Kind = kind
			}
			continue
		}
		seen[key] = len(symbols)

		symbols = append(symbols, Symbol{
			Name:      name,
			Kind:      kind,
			StartLine: int(node.StartPoint().Row) + 1,
			EndLine:   int(node.EndPoint().Row) + 1,
			Signature: firstLine(node.Content(source)),
			startByte: node.StartByte(),
			endByte:   node.EndByte(),
		})
	}

	sort.Slice(symbols, func(i, j int) bool {
		if symbols[i].startByte != symbols[j].startByte {
			return symbols[i].startByte < symbols[j].startByte
		}
		return symbols[i].endByte > symbols[j].endByte
	})
	return symbols, nil
}

// referenceCaptureKinds maps capture names in the references queries to
// edge kinds.
var referenceCaptureKinds = map[string]string{
	"call":       "calls",
	"import":     "imports",
	"use":        "imports",
	"extends":    "inherits",
	"implements": "implements",
}

func extractReferences(cfg *lang.Config, root *sitter.Node, source []byte) ([]Reference, error) {
	query, err := sitter.NewQuery([]byte(cfg.References), cfg.Language)
	if err != nil {
		return nil, fmt.Errorf("parser: %s references query: %w", cfg.Name, err)
	}
	defer query.Close()

	qc := sitter.NewQueryCursor()
	defer qc.Close()
	qc.Exec(query, root)

	var refs []Reference
	for {
		match, ok := qc.NextMatch()
		if !ok {
			break
		}

		var target string
		var kind string
		line := 0
		for _, c := range match.Captures {
			captureName := query.CaptureNameForId(c.Index)
			if captureName == "name" {
				target = cleanTarget(c.Node.Content(source))
				line = int(c.Node.StartPoint().Row) + 1
				continue
			}
			if k, isKind := referenceCaptureKinds[captureName]; isKind {
				kind = k
			}
		}
		if target == "" || kind == "" {
			continue
		}
		refs = append(refs, Reference{Kind: kind, Target: target, Line: line})
	}
	return refs, nil
}

// assignScopes computes each symbol's enclosing-scope chain. Symbols arrive
// sorted by (startByte asc, endByte desc), so a simple stack of open ranges
// yields the tightest container.
func assignScopes(symbols []Symbol) {
	type open struct {
		name    string
		endByte uint32
	}
	var stack []open

	for i := range symbols {
		s := &symbols[i]
		for len(stack) > 0 && s.startByte >= stack[len(stack)-1].endByte {
			stack = stack[:len(stack)-1]
		}
		for _, o := range stack {
			s.Scope = append(s.Scope, o.name)
		}
		// Only container-ish symbols open a scope; a const cannot nest
		// other declarations in any supported grammar.
		switch s.Kind {
		case "function", "method", "class", "struct", "enum", "trait", "interface", "module":
			stack = append(stack, open{name: s.Name, endByte: s.endByte})
		}
	}
}

// attributeReferences assigns each reference's From to the scoped name of
// the tightest symbol whose line range contains the reference line.
func attributeReferences(symbols []Symbol, refs []Reference) {
	containers := make([]int, 0, len(symbols))
	for i, s := range symbols {
		switch s.Kind {
		case "function", "method", "class", "struct", "trait", "interface", "module":
			containers = append(containers, i)
		}
	}
	// Smallest span first, so the first hit is the tightest enclosure.
	sort.Slice(containers, func(a, b int) bool {
		sa, sb := symbols[containers[a]], symbols[containers[b]]
		return sa.EndLine-sa.StartLine < sb.EndLine-sb.StartLine
	})

	for i := range refs {
		r := &refs[i]
		for _, ci := range containers {
			s := symbols[ci]
			if r.Line >= s.StartLine && r.Line <= s.EndLine {
				r.From = s.ScopedName()
				break
			}
		}
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

// cleanTarget normalizes a captured reference name: string-literal quotes
// and source-file extensions stripped for import paths, dotted module paths
// reduced to their last segment so the name index can match them.
func cleanTarget(s string) string {
	s = strings.TrimSpace(strings.Trim(s, "\"'`"))
	for _, ext := range []string{".ts", ".tsx", ".js", ".jsx", ".mjs", ".py", ".rs", ".go"} {
		if strings.HasSuffix(s, ext) {
			s = s[:len(s)-len(ext)]
			break
		}
	}
	if i := strings.LastIndexByte(s, '/'); i >= 0 {
		s = s[i+1:]
	}
	if i := strings.LastIndexByte(s, '.'); i >= 0 {
		s = s[i+1:]
	}
	return s
}
