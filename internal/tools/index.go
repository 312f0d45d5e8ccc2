package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/websines/codegraph-mcp/internal/app"
	"github.com/websines/codegraph-mcp/internal/graph"
)

// IndexProjectTool handles index_project.
type IndexProjectTool struct {
	app *app.App
}

// NewIndexProjectTool creates an IndexProjectTool.
func NewIndexProjectTool(a *app.App) *IndexProjectTool {
	return &IndexProjectTool{app: a}
}

// Definition returns the MCP tool definition for index_project.
func (t *IndexProjectTool) Definition() mcp.Tool {
	return mcp.NewTool("index_project",
		mcp.WithDescription(
			"Index the project's source files into the code graph. Incremental by default: "+
				"only files whose mtime or content hash changed are re-parsed. "+
				"Runs the cross-file reference resolution pass and reports its statistics.",
		),
		mcp.WithBoolean("full",
			mcp.Description("Force a full re-parse of every file (default: false)"),
		),
	)
}

// Handle processes the index_project tool call.
func (t *IndexProjectTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if res := ready(t.app); res != nil {
		return res, nil
	}

	stats, err := t.app.Index(ctx, boolArg(req, "full", false))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("index failed: %v", err)), nil
	}
	return jsonResult(stats), nil
}

// SearchSymbolsTool handles search_symbols.
type SearchSymbolsTool struct {
	app *app.App
}

// NewSearchSymbolsTool creates a SearchSymbolsTool.
func NewSearchSymbolsTool(a *app.App) *SearchSymbolsTool {
	return &SearchSymbolsTool{app: a}
}

// Definition returns the MCP tool definition for search_symbols.
func (t *SearchSymbolsTool) Definition() mcp.Tool {
	return mcp.NewTool("search_symbols",
		mcp.WithDescription(
			"Search indexed symbols by name. Case-insensitive substring match on the "+
				"trailing identifier; exact matches rank above prefix matches above substrings.",
		),
		mcp.WithString("query", mcp.Required(),
			mcp.Description("Symbol name or fragment"),
		),
		mcp.WithString("kind",
			mcp.Description("Filter by kind: function, method, class, struct, enum, trait, interface, type, const, static, variable, module"),
		),
		mcp.WithString("file",
			mcp.Description("Filter by file path fragment"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Max results (default: 20)"),
		),
	)
}

// Handle processes the search_symbols tool call.
func (t *SearchSymbolsTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if res := ready(t.app); res != nil {
		return res, nil
	}

	query := req.GetString("query", "")
	if query == "" {
		return mcp.NewToolResultError("'query' is required"), nil
	}

	results := t.app.Graph().Search(
		query,
		req.GetString("kind", ""),
		req.GetString("file", ""),
		intArg(req, "limit", 20),
	)
	if len(results) == 0 {
		return mcp.NewToolResultText("No symbols found. Has the project been indexed?"), nil
	}
	return jsonResult(results), nil
}

// FileSymbolsTool handles get_file_symbols.
type FileSymbolsTool struct {
	app *app.App
}

// NewFileSymbolsTool creates a FileSymbolsTool.
func NewFileSymbolsTool(a *app.App) *FileSymbolsTool {
	return &FileSymbolsTool{app: a}
}

// Definition returns the MCP tool definition for get_file_symbols.
func (t *FileSymbolsTool) Definition() mcp.Tool {
	return mcp.NewTool("get_file_symbols",
		mcp.WithDescription(
			"List every symbol in a file, sorted by start line. "+
				"Compact form omits signatures to save tokens.",
		),
		mcp.WithString("file", mcp.Required(),
			mcp.Description("Repository-relative path (forward slashes)"),
		),
		mcp.WithBoolean("compact",
			mcp.Description("Omit signatures (default: false)"),
		),
	)
}

// Handle processes the get_file_symbols tool call.
func (t *FileSymbolsTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if res := ready(t.app); res != nil {
		return res, nil
	}

	file := req.GetString("file", "")
	if file == "" {
		return mcp.NewToolResultError("'file' is required"), nil
	}

	symbols := t.app.Graph().FileSymbols(file)
	if len(symbols) == 0 {
		return mcp.NewToolResultText(fmt.Sprintf("No symbols indexed for %s.", file)), nil
	}

	if boolArg(req, "compact", false) {
		var b strings.Builder
		for _, s := range symbols {
			fmt.Fprintf(&b, "%s %s [%d-%d]\n", s.Kind, s.ID, s.LineStart, s.LineEnd)
		}
		return mcp.NewToolResultText(b.String()), nil
	}
	return jsonResult(symbols), nil
}

// NeighborsTool handles get_neighbors.
type NeighborsTool struct {
	app *app.App
}

// NewNeighborsTool creates a NeighborsTool.
func NewNeighborsTool(a *app.App) *NeighborsTool {
	return &NeighborsTool{app: a}
}

// Definition returns the MCP tool definition for get_neighbors.
func (t *NeighborsTool) Definition() mcp.Tool {
	return mcp.NewTool("get_neighbors",
		mcp.WithDescription(
			"Bounded breadth-first traversal from a symbol: who it calls, who calls it, "+
				"what it imports or inherits. Depth 1-5; output capped with a truncation flag.",
		),
		mcp.WithString("id", mcp.Required(),
			mcp.Description("Anchor node id (e.g. src/db.py::connect)"),
		),
		mcp.WithString("direction",
			mcp.Description("outgoing (default), incoming, or both"),
		),
		mcp.WithNumber("depth",
			mcp.Description("Hop limit, 1-5 (default: 1)"),
		),
		mcp.WithArray("kinds",
			mcp.Description("Edge kinds to follow (e.g. [\"calls\", \"imports\"]); empty follows all"),
			mcp.Items(stringItems()),
		),
	)
}

// Handle processes the get_neighbors tool call.
func (t *NeighborsTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if res := ready(t.app); res != nil {
		return res, nil
	}

	id := req.GetString("id", "")
	if id == "" {
		return mcp.NewToolResultError("'id' is required"), nil
	}

	dir, ok := graph.ParseDirection(req.GetString("direction", ""))
	if !ok {
		return mcp.NewToolResultError("'direction' must be outgoing, incoming, or both"), nil
	}

	depth := intArg(req, "depth", 1)
	if depth < 1 || depth > 5 {
		return mcp.NewToolResultError("'depth' must be between 1 and 5"), nil
	}

	g := t.app.Graph()
	if _, found := g.Get(id); !found {
		return mcp.NewToolResultError(fmt.Sprintf("symbol %q not found", id)), nil
	}

	result := g.Neighbors(id, depth, dir, stringListArg(req, "kinds"), 500)
	return jsonResult(result), nil
}
