package tool

import (
	"encoding/json"
	"fmt"
	"strings"

	"mcpbot/internal/domain"
)

// FormatResults renders tool results as a single text block for the model,
// in invocation order:
//
//	Tool 1: query
//	Success: True
//	Result:
//	{ ... }
//
// Structured results are pretty-printed JSON; plain values are stringified.
func FormatResults(results []domain.ToolResult) string {
	var sb strings.Builder
	for i, r := range results {
		fmt.Fprintf(&sb, "\n\nTool %d: %s\n", i+1, r.Tool)
		if r.Success {
			fmt.Fprintf(&sb, "Success: True\nResult:\n%s", formatValue(r.Result))
		} else {
			errMsg := r.Error
			if errMsg == "" {
				errMsg = "Unknown error"
			}
			fmt.Fprintf(&sb, "Success: False\nError: %s", errMsg)
		}
	}
	return sb.String()
}

func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case string:
		return val
	default:
		if data, err := json.MarshalIndent(val, "", "  "); err == nil {
			return string(data)
		}
		return fmt.Sprintf("%v", val)
	}
}
