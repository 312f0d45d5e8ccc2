// Package server wires all MCP components and creates the server instance.
//
// This is the composition root: it creates the shared app runtime and
// registers every tool against it. No business logic lives here — only
// wiring. The app itself initializes lazily on the first tool call so
// project-root detection happens after the client has set the working
// directory.
package server

import (
	"github.com/mark3labs/mcp-go/server"

	"github.com/websines/codegraph-mcp/internal/app"
	"github.com/websines/codegraph-mcp/internal/tools"
)

// Version is set at build time via ldflags.
var Version = "dev"

// New creates and configures the MCP server with all 26 tools registered.
// The returned cleanup function closes the databases and must be called on
// shutdown (typically via defer). It is always non-nil.
func New() (*server.MCPServer, func()) {
	a := app.New()

	s := server.NewMCPServer(
		"codegraph",
		Version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(serverInstructions()),
	)

	// --- Indexing & navigation ---

	indexTool := tools.NewIndexProjectTool(a)
	s.AddTool(indexTool.Definition(), indexTool.Handle)

	searchTool := tools.NewSearchSymbolsTool(a)
	s.AddTool(searchTool.Definition(), searchTool.Handle)

	fileSymbolsTool := tools.NewFileSymbolsTool(a)
	s.AddTool(fileSymbolsTool.Definition(), fileSymbolsTool.Handle)

	neighborsTool := tools.NewNeighborsTool(a)
	s.AddTool(neighborsTool.Definition(), neighborsTool.Handle)

	// --- Session ---

	startSession := tools.NewStartSessionTool(a)
	s.AddTool(startSession.Definition(), startSession.Handle)

	getSession := tools.NewGetSessionTool(a)
	s.AddTool(getSession.Definition(), getSession.Handle)

	updateTask := tools.NewUpdateTaskTool(a)
	s.AddTool(updateTask.Definition(), updateTask.Handle)

	addDecision := tools.NewAddDecisionTool(a)
	s.AddTool(addDecision.Definition(), addDecision.Handle)

	setContext := tools.NewSetContextTool(a)
	s.AddTool(setContext.Definition(), setContext.Handle)

	smartContext := tools.NewSmartContextTool(a)
	s.AddTool(smartContext.Definition(), smartContext.Handle)

	// --- Learning ---

	recallPatterns := tools.NewRecallPatternsTool(a)
	s.AddTool(recallPatterns.Definition(), recallPatterns.Handle)

	recallFailures := tools.NewRecallFailuresTool(a)
	s.AddTool(recallFailures.Definition(), recallFailures.Handle)

	extractPattern := tools.NewExtractPatternTool(a)
	s.AddTool(extractPattern.Definition(), extractPattern.Handle)

	recordFailure := tools.NewRecordFailureTool(a)
	s.AddTool(recordFailure.Definition(), recordFailure.Handle)

	recordAttempt := tools.NewRecordAttemptTool(a)
	s.AddTool(recordAttempt.Definition(), recordAttempt.Handle)

	recordOutcome := tools.NewRecordOutcomeTool(a)
	s.AddTool(recordOutcome.Definition(), recordOutcome.Handle)

	reflect := tools.NewReflectTool(a)
	s.AddTool(reflect.Definition(), reflect.Handle)

	queryLineage := tools.NewQueryLineageTool(a)
	s.AddTool(queryLineage.Definition(), queryLineage.Handle)

	suggestApproach := tools.NewSuggestApproachTool(a)
	s.AddTool(suggestApproach.Definition(), suggestApproach.Handle)

	// --- Niches, skill, cross-language ---

	listNiches := tools.NewListNichesTool(a)
	s.AddTool(listNiches.Definition(), listNiches.Handle)

	distillSkill := tools.NewDistillSkillTool(a)
	s.AddTool(distillSkill.Definition(), distillSkill.Handle)

	addInstruction := tools.NewAddInstructionTool(a)
	s.AddTool(addInstruction.Definition(), addInstruction.Handle)

	getInstructions := tools.NewGetInstructionsTool(a)
	s.AddTool(getInstructions.Definition(), getInstructions.Handle)

	inferCrossEdges := tools.NewInferCrossEdgesTool(a)
	s.AddTool(inferCrossEdges.Definition(), inferCrossEdges.Handle)

	apiConnections := tools.NewAPIConnectionsTool(a)
	s.AddTool(apiConnections.Definition(), apiConnections.Handle)

	// --- Sync ---

	syncLearnings := tools.NewSyncLearningsTool(a)
	s.AddTool(syncLearnings.Definition(), syncLearnings.Handle)

	cleanup := func() { _ = a.Close() }
	return s, cleanup
}

// serverInstructions returns the system instructions that tell the AI how
// to use codegraph effectively.
func serverInstructions() string {
	return `You have access to codegraph, a persistent code graph, session
memory, and learning store for this repository.

## Getting oriented

1. Call index_project once at the start of a session (incremental, cheap).
2. Navigate with search_symbols, get_file_symbols, and get_neighbors
   instead of reading whole files.
3. After a context compaction, call smart_context to restore your working
   state in one shot.

## Session discipline

- start_session when you begin a task; list the subtasks you plan.
- update_task as subtasks progress (pending -> in_progress -> done).
- add_decision for every consequential choice, with the reasoning.
- set_context with the full set of files/symbols you are touching —
  fields are replaced, not merged.

## Learning discipline

- Before starting, call suggest_approach with the task and a scope
  ({files, tags}) — it fuses prior patterns, failures, and successes.
- record_attempt before the work, record_outcome after.
- reflect on every finalized attempt. Write lessons as
  "When X, do Y because Z" — other shapes are stored but flagged.
- recall_failures returns critical failures unconditionally; heed them.
- sync_learnings exports the high-confidence knowledge to
  .codegraph/patterns.json and failures.json for humans to review.

## Costs

Indexing parses only changed files. Queries are served from memory and are
cheap; prefer several narrow queries over one broad one.`
}
