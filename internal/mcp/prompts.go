package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerPrompts() {
	s.mcpServer.AddPrompt(mcp.NewPrompt(confirmPromptName,
		mcp.WithPromptDescription("Presents a destructive DatoCMS action to the user for confirmation before it runs"),
		mcp.WithArgument("action_description",
			mcp.ArgumentDescription("What will happen, e.g. \"Delete record 123\""),
			mcp.RequiredArgument(),
		),
		mcp.WithArgument("warning_message",
			mcp.ArgumentDescription("Consequences to point out to the user"),
		),
		mcp.WithArgument("original_tool_name",
			mcp.ArgumentDescription("Tool to pass to execute_confirmed_action"),
			mcp.RequiredArgument(),
		),
		mcp.WithArgument("original_tool_args_json",
			mcp.ArgumentDescription("Arguments to pass to execute_confirmed_action"),
			mcp.RequiredArgument(),
		),
	), s.handleConfirmPrompt)
}

func (s *Server) handleConfirmPrompt(_ context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	action := strings.TrimSpace(req.Params.Arguments["action_description"])
	if action == "" {
		return nil, fmt.Errorf("missing 'action_description' in prompt arguments")
	}
	tool := req.Params.Arguments["original_tool_name"]

	var b strings.Builder
	fmt.Fprintf(&b, "**DatoCMS Action Confirmation Required**\n\nACTION: %s.", action)
	if warning := strings.TrimSpace(req.Params.Arguments["warning_message"]); warning != "" {
		fmt.Fprintf(&b, "\n\n**WARNING:** %s", warning)
	}
	b.WriteString("\n\nPlease explicitly state if you 'approve' or 'deny' this action.")
	fmt.Fprintf(&b, "\n(The assistant will then call 'execute_confirmed_action' for '%s' with your decision.)", tool)

	return &mcp.GetPromptResult{
		Description: "Confirm: " + action,
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleAssistant,
				Content: mcp.TextContent{
					Type: "text",
					Text: b.String(),
				},
			},
		},
	}, nil
}
