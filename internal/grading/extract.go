package grading

import "strings"

// ExtractJSON pulls the inner text out of a fenced code block, with or
// without a language tag. The grading model is prompted to answer in
// JSON but routinely wraps it in prose or a markdown fence. When no
// fence is found the input is returned unchanged; a genuinely
// malformed response is left for the JSON decode to reject.
func ExtractJSON(raw string) string {
	start := strings.Index(raw, "```json")
	if start == -1 {
		start = strings.Index(raw, "```")
	}
	if start == -1 {
		return raw
	}

	newline := strings.IndexByte(raw[start:], '\n')
	if newline == -1 {
		return raw
	}
	start += newline + 1

	end := strings.LastIndex(raw, "```")
	if end <= start {
		return raw
	}

	return strings.TrimSpace(raw[start:end])
}
