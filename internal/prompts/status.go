package prompts

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
)

// StatusPrompt handles the aidev-status MCP prompt.
// It instructs the AI to read and present the current project state.
type StatusPrompt struct{}

// NewStatusPrompt creates a StatusPrompt.
func NewStatusPrompt() *StatusPrompt {
	return &StatusPrompt{}
}

// Definition returns the MCP prompt definition for registration.
func (p *StatusPrompt) Definition() mcp.Prompt {
	return mcp.NewPrompt("aidev-status",
		mcp.WithPromptDescription(
			"Check the status of your development projects. "+
				"Shows each project's phases, completion percentage, "+
				"and what to work on next.",
		),
	)
}

// Handle processes the aidev-status prompt request.
func (p *StatusPrompt) Handle(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	return &mcp.GetPromptResult{
		Description: "Project Status",
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.NewTextContent(
					"Please run `list_projects` to see my projects, then run " +
						"`get_project_status` for the one I'm working on.\n\n" +
						"Then:\n" +
						"1. Show me the phase progress in a clear, visual format\n" +
						"2. Highlight any failed or stalled phases\n" +
						"3. Run `get_current_phase` and tell me exactly what to do next",
				),
			},
		},
	}, nil
}
