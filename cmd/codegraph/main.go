// Codegraph: persistent code graph, session memory, and learning store for
// AI coding agents, exposed as an MCP server over stdio.
//
// Usage:
//
//	codegraph serve    # Start the MCP server (stdio transport)
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/websines/codegraph-mcp/internal/server"
)

// Exit codes: 0 clean stream close, 1 fatal initialization error,
// 2 protocol framing violation.
const (
	exitOK       = 0
	exitFatal    = 1
	exitProtocol = 2
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(exitFatal)
	}

	switch os.Args[1] {
	case "serve":
		os.Exit(run())
	case "--help", "-h", "help":
		printUsage()
		os.Exit(exitOK)
	case "--version", "-v", "version":
		fmt.Printf("codegraph v%s\n", server.Version)
		os.Exit(exitOK)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(exitFatal)
	}
}

func run() int {
	s, cleanup := server.New()
	defer cleanup()

	err := mcpserver.ServeStdio(s)
	switch {
	case err == nil, errors.Is(err, io.EOF):
		return exitOK
	default:
		// Anything the transport could not frame or dispatch is a
		// protocol-level failure; init errors surface through tool
		// results, not here.
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitProtocol
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `Codegraph v%s — code graph + session memory + learning store (MCP)

Usage:
  codegraph serve    Start the MCP server (stdio transport)

Configuration:
  Add to your AI tool's MCP config:

  {
    "mcpServers": {
      "codegraph": {
        "command": "codegraph",
        "args": ["serve"]
      }
    }
  }

State lives under <project-root>/.codegraph/ (config.toml, code.db,
learning.db, exported patterns.json / failures.json, SKILL.md).
`, server.Version)
}
