package agent

import (
	"encoding/json"
	"strings"

	"mcpbot/internal/domain"
)

// Marker is the literal token that introduces a tool invocation inside
// model-generated text. The wire grammar is:
//
//	[TOOL] tool_name
//	{"param": "value"}
//
// with the JSON object starting on the next non-empty line. The object may
// span multiple lines and nest freely; its boundary is the first balanced
// {...} after the marker line.
const Marker = "[TOOL]"

// HasMarker reports whether text contains at least one marker occurrence.
func HasMarker(text string) bool {
	return strings.Contains(text, Marker)
}

// Parse extracts tool invocations from a block of free-form model output.
// It returns the text before the first marker (trimmed) as the preamble and
// the invocations in document order. A malformed occurrence (no JSON-shaped
// content, or JSON that fails to parse) is dropped without aborting the scan
// of subsequent occurrences. Text with no marker at all comes back verbatim
// as the preamble with no invocations.
//
// Parse is pure: no side effects, same output for the same input.
func Parse(text string) (string, []domain.ToolInvocation) {
	first := strings.Index(text, Marker)
	if first < 0 {
		return text, nil
	}
	preamble := strings.TrimSpace(text[:first])

	var invocations []domain.ToolInvocation
	rest := text[first:]
	for {
		i := strings.Index(rest, Marker)
		if i < 0 {
			break
		}
		rest = rest[i+len(Marker):]

		// Tool name is the remainder of the marker line.
		var nameLine string
		if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
			nameLine = rest[:nl]
			rest = rest[nl+1:]
		} else {
			nameLine = rest
			rest = ""
		}
		name := strings.TrimSpace(nameLine)
		if name == "" {
			continue
		}

		// Skip whitespace to the start of the JSON object. A marker with no
		// JSON-shaped content yields no invocation.
		j := 0
		for j < len(rest) && isSpace(rest[j]) {
			j++
		}
		if j >= len(rest) || rest[j] != '{' {
			continue
		}

		end := jsonObjectEnd(rest[j:])
		if end < 0 {
			// Unbalanced braces through end of text; nothing more to match here.
			continue
		}
		raw := rest[j : j+end]
		rest = rest[j+end:]

		args, ok := parseArguments(raw)
		if !ok {
			// Invalid JSON drops this occurrence only; keep scanning.
			continue
		}
		invocations = append(invocations, domain.ToolInvocation{Name: name, Arguments: args})
	}

	return preamble, invocations
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}

// jsonObjectEnd returns the index just past the first balanced {...} at the
// start of s, or -1 if the object never closes. The scan is string-aware so
// braces inside JSON strings and escaped quotes do not confuse it.
func jsonObjectEnd(s string) int {
	depth := 0
	inStr := false
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if inStr {
			if ch == '\\' {
				i++ // skip escaped character
				continue
			}
			if ch == '"' {
				inStr = false
			}
			continue
		}
		switch ch {
		case '"':
			inStr = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i + 1
			}
		}
	}
	return -1
}

// parseArguments unmarshals a captured JSON object, retrying once with
// invalid escape sequences stripped. Some models emit escapes like \% that
// are not legal JSON.
func parseArguments(raw string) (map[string]any, bool) {
	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		if err := json.Unmarshal([]byte(sanitizeJSONEscapes(raw)), &args); err != nil {
			return nil, false
		}
	}
	if args == nil {
		args = make(map[string]any)
	}
	return args, true
}

// sanitizeJSONEscapes fixes invalid JSON escape sequences produced by some
// models. Valid escapes: \", \\, \/, \b, \f, \n, \r, \t, \uXXXX. Invalid
// ones (e.g. \%) are corrected by dropping the backslash.
func sanitizeJSONEscapes(s string) string {
	var buf strings.Builder
	buf.Grow(len(s))
	inString := false
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if ch == '"' && (i == 0 || s[i-1] != '\\') {
			inString = !inString
			buf.WriteByte(ch)
			continue
		}
		if inString && ch == '\\' && i+1 < len(s) {
			switch s[i+1] {
			case '"', '\\', '/', 'b', 'f', 'n', 'r', 't', 'u':
				buf.WriteByte(ch)
			default:
				continue
			}
		} else {
			buf.WriteByte(ch)
		}
	}
	return buf.String()
}
