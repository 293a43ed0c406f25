// Package server wires the MCP stdio surface and creates the server
// instance.
//
// This is the composition root: it creates concrete implementations
// and injects them into the tools that depend on them. No business
// logic lives here — only wiring.
package server

import (
	"fmt"

	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/HendryAvila/aidev/internal/config"
	"github.com/HendryAvila/aidev/internal/prompts"
	"github.com/HendryAvila/aidev/internal/protocol"
	"github.com/HendryAvila/aidev/internal/registry"
	"github.com/HendryAvila/aidev/internal/resources"
	"github.com/HendryAvila/aidev/internal/store"
	"github.com/HendryAvila/aidev/internal/tools"
)

// Version is set at build time via ldflags.
var Version = "dev"

// New creates the MCP server with the full tool catalog registered.
//
// The returned cleanup function closes the database and must be
// called on shutdown (typically via defer). It is always non-nil.
func New(cfg config.Config, logger *zap.Logger) (*server.MCPServer, func(), error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	st, err := store.New(store.Config{Path: cfg.DatabasePath})
	if err != nil {
		return nil, noop, fmt.Errorf("opening store: %w", err)
	}
	cleanup := func() {
		if err := st.Close(); err != nil {
			logger.Warn("closing store", zap.Error(err))
		}
	}

	dispatcher := protocol.New(st, logger)

	s := server.NewMCPServer(
		"aidev",
		Version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithPromptCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(serverInstructions()),
	)

	// The catalog tools are proxies over the dispatcher, so stdio
	// clients get the same validation and envelopes as HTTP clients.
	for _, def := range registry.All() {
		proxy := tools.NewProxyTool(def, dispatcher)
		s.AddTool(proxy.Definition(), proxy.Handle)
	}

	runAgent := tools.NewRunAgentTool(cfg, dispatcher, logger)
	s.AddTool(runAgent.Definition(), runAgent.Handle)

	health := tools.NewHealthTool(st, Version)
	s.AddTool(health.Definition(), health.Handle)

	startPrompt := prompts.NewStartPrompt()
	s.AddPrompt(startPrompt.Definition(), startPrompt.Handle)

	statusPrompt := prompts.NewStatusPrompt()
	s.AddPrompt(statusPrompt.Definition(), statusPrompt.Handle)

	resourceHandler := resources.NewHandler(st)
	s.AddResource(resourceHandler.ProjectsResource(), resourceHandler.HandleProjects)

	return s, cleanup, nil
}

// ServeStdio runs the server over stdin/stdout until EOF.
func ServeStdio(s *server.MCPServer) error {
	return server.ServeStdio(s)
}

func noop() {}

func serverInstructions() string {
	return `You have access to an AI development project server.

It stores projects and their development phases, tracks progress, and
can run a planning agent end to end.

## Typical flows

Manual planning:
1. create_project with a name and description
2. save_phase for each phase specification you produce
3. update_progress as phases are implemented
4. get_project_status / get_current_phase to see where the project is

Automatic planning:
- run_agent with a project name and description. The server
  brainstorms the project, then plans and saves phases until the
  configured phase count is reached, and returns the project ID with
  all planned phases.

## Phase specs

A phase's specs object should contain files_to_create, tests_to_write,
dependencies, and instructions. Phases are numbered from 1 and a
project's current phase is the lowest-numbered phase that is not yet
completed.

Use health_check to verify the server and its database are reachable.`
}
