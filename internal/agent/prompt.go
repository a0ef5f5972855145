package agent

import (
	"fmt"
	"sort"
	"strings"

	"mcpbot/internal/domain"
)

// Corrective instructions injected mid-conversation when the model's turn
// cannot be acted on.
const (
	formatCorrective = "Your tool call was malformed. When you need to use a tool, " +
		"format your response exactly like this:\n" +
		"[TOOL] tool_name\n" +
		`{"param1": "value1"}` + "\n" +
		"Include both the tool name AND the JSON arguments. Try again."

	singleToolCorrective = "Please make only ONE tool call per response. " +
		"Only your first tool call was executed; the rest were ignored. " +
		"Wait for its result before calling the next tool."
)

// BuildSystemPrompt renders the system message describing the available
// tools and the exact call format the parser understands.
func BuildSystemPrompt(tools []domain.ToolDescriptor) string {
	blocks := make([]string, 0, len(tools))
	for _, t := range tools {
		blocks = append(blocks, formatToolForPrompt(t))
	}

	var sb strings.Builder
	sb.WriteString("You are a helpful slack bot with the following tools:\n\n")
	sb.WriteString(strings.Join(blocks, "\n"))
	sb.WriteString("\n\n")
	sb.WriteString(`You can use tools to fulfill a user's request before providing a final response.
Make all of your tool calls BEFORE responding to the user otherwise, they will not be able to see the results.

Your goal should always be to provide useful information answering the user's question, or their implied question. Many of these tools respond with metadata that is uninteresting. Make sure to summarize effectively and to focus on what the member actually wants.

When you need to use a tool, you MUST format your response exactly like this:
[TOOL] tool_name
{"param1": "value1", "param2": "value2"}

Make only ONE tool call per response, then wait for its result before deciding on the next step.
Make sure to include both the tool name AND the JSON arguments.
Never leave out the JSON arguments.

Use the report_progress tool to keep the user informed during long multi-step tasks.
When the user's request is fully handled, call the end_conversation tool with an optional closing message.

After receiving tool results, provide a helpful interpretation that addresses the user's original request.`)
	return sb.String()
}

// formatToolForPrompt renders one tool as a Tool/Description/Arguments block.
func formatToolForPrompt(t domain.ToolDescriptor) string {
	var args []string
	if props, ok := t.InputSchema["properties"].(map[string]any); ok {
		required := map[string]bool{}
		if reqs, ok := t.InputSchema["required"].([]any); ok {
			for _, r := range reqs {
				if s, ok := r.(string); ok {
					required[s] = true
				}
			}
		}
		if reqs, ok := t.InputSchema["required"].([]string); ok {
			for _, r := range reqs {
				required[r] = true
			}
		}

		names := make([]string, 0, len(props))
		for name := range props {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			desc := "No description"
			if info, ok := props[name].(map[string]any); ok {
				if d, ok := info["description"].(string); ok && d != "" {
					desc = d
				}
			}
			line := fmt.Sprintf("- %s: %s", name, desc)
			if required[name] {
				line += " (required)"
			}
			args = append(args, line)
		}
	}

	return fmt.Sprintf("\nTool: %s\nDescription: %s\nArguments:\n%s\n",
		t.Name, t.Description, strings.Join(args, "\n"))
}
