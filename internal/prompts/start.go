// Package prompts implements MCP prompt handlers for the project workflow.
//
// MCP prompts are user-triggered workflows (like slash commands) that
// instruct the AI to execute a specific sequence. Unlike tools (which
// the AI calls), prompts are initiated by the user.
package prompts

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

// StartPrompt handles the aidev-start MCP prompt.
// It guides the AI to create a new project and begin phase planning.
type StartPrompt struct{}

// NewStartPrompt creates a StartPrompt.
func NewStartPrompt() *StartPrompt {
	return &StartPrompt{}
}

// Definition returns the MCP prompt definition for registration.
func (p *StartPrompt) Definition() mcp.Prompt {
	return mcp.NewPrompt("aidev-start",
		mcp.WithPromptDescription(
			"Start a new AI-assisted development project. "+
				"This will guide you through creating the project, "+
				"planning its phases, and tracking progress.",
		),
		mcp.WithArgument("project_name",
			mcp.ArgumentDescription("Name of your project"),
		),
		mcp.WithArgument("mode",
			mcp.ArgumentDescription(
				"Workflow mode: 'agent' (the run_agent tool plans all phases automatically) or 'manual' (you drive create_project and save_phase yourself). Default: agent",
			),
		),
	)
}

// Handle processes the aidev-start prompt request.
func (p *StartPrompt) Handle(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	projectName := "my-project"
	if args := req.Params.Arguments; args != nil {
		if name, ok := args["project_name"]; ok && name != "" {
			projectName = name
		}
	}

	mode := "agent"
	if args := req.Params.Arguments; args != nil {
		if m, ok := args["mode"]; ok && m != "" {
			mode = m
		}
	}

	var instructions string
	if mode == "manual" {
		instructions = fmt.Sprintf(
			"1. Run `create_project` with name='%s' and a description (ask me for one)\n"+
				"2. Ask me what the first development phase should cover\n"+
				"3. Run `save_phase` with the phase number, title, and specs we agree on\n"+
				"4. Repeat for each phase, using `update_progress` as work completes\n"+
				"5. Use `get_project_status` whenever I ask how far along we are",
			projectName,
		)
	} else {
		instructions = fmt.Sprintf(
			"1. Ask me for a brief description of the project\n"+
				"2. Run `run_agent` with project_name='%s', my description, and max_phases (ask if I have a preference)\n"+
				"3. Present the planned phases back to me\n"+
				"4. Use `update_progress` to mark phases as we complete them",
			projectName,
		)
	}

	return &mcp.GetPromptResult{
		Description: fmt.Sprintf("Start project: %s", projectName),
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.NewTextContent(fmt.Sprintf(
					"I want to start a new development project called '%s' in %s mode.\n\nPlease:\n%s",
					projectName, mode, instructions,
				)),
			},
		},
	}, nil
}
