package conformance

import (
	"regexp"

	"github.com/mcp-conformance-harness/internal/domain"
)

// bodyMarker ends the header dump servers embed ahead of a response body
const bodyMarker = "\nResponse Body:\n"

var headerBlock = regexp.MustCompile(`\nHeaders:\n(?:.*\n)*?\nResponse Body:\n`)

// Normalize strips header dumps from the first text block of a tool result so output
// can be diffed across runs. The input is never modified; a changed copy is returned.
// Payloads of any other shape come back unchanged.
func Normalize(payload domain.Payload) domain.Payload {
	content, ok := payload["content"].([]any)
	if !ok || len(content) == 0 {
		return payload
	}
	first, ok := content[0].(map[string]any)
	if !ok {
		return payload
	}
	text, ok := first["text"].(string)
	if !ok {
		return payload
	}

	cleaned := stripHeaders(text)
	if cleaned == text {
		return payload
	}

	block := make(map[string]any, len(first))
	for k, v := range first {
		block[k] = v
	}
	block["text"] = cleaned

	blocks := make([]any, len(content))
	copy(blocks, content)
	blocks[0] = block

	out := make(domain.Payload, len(payload))
	for k, v := range payload {
		out[k] = v
	}
	out["content"] = blocks
	return out
}

// stripHeaders repeats the replacement until nothing matches. Every replacement
// shortens the text, so this terminates.
func stripHeaders(text string) string {
	for {
		next := headerBlock.ReplaceAllLiteralString(text, bodyMarker)
		if next == text {
			return text
		}
		text = next
	}
}
