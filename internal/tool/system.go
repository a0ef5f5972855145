package tool

import "mcpbot/internal/domain"

// System tool names. These are sentinels consumed by the orchestration loop
// itself; they appear in the catalog shown to the model but are never
// dispatched to a tool provider.
const (
	// EndConversation signals that the model is done with the request.
	EndConversation = "end_conversation"
	// ReportProgress carries a human-readable status update relayed to the
	// user while the model keeps working.
	ReportProgress = "report_progress"
)

// IsSystemTool reports whether name is one of the orchestration sentinels.
func IsSystemTool(name string) bool {
	return name == EndConversation || name == ReportProgress
}

// SystemTools returns the descriptors for the orchestration sentinels.
func SystemTools() []domain.ToolDescriptor {
	return []domain.ToolDescriptor{
		{
			Name:        EndConversation,
			Description: "End the conversation once the user's request is fully handled. Call this after your final answer.",
			InputSchema: Schema(map[string]Param{
				"message": {Type: "string", Description: "Optional closing message for the user"},
			}, nil),
			IsSystem: true,
		},
		{
			Name:        ReportProgress,
			Description: "Send the user a short progress update while you continue working. Does not execute anything.",
			InputSchema: Schema(map[string]Param{
				"message": {Type: "string", Description: "The progress update to show the user"},
			}, []string{"message"}),
			IsSystem: true,
		},
	}
}

// Param describes a single tool parameter.
type Param struct {
	Type        string
	Description string
}

// Schema builds a JSON-schema-like "input_schema" object for a tool.
func Schema(properties map[string]Param, required []string) map[string]any {
	props := make(map[string]any)
	for name, p := range properties {
		props[name] = map[string]any{"type": p.Type, "description": p.Description}
	}
	schema := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}
