package llm

import (
	"encoding/json"
	"strings"
)

// extractJSON tries to extract JSON from a response that might have
// markdown fences or extra prose around it. The input is returned
// unchanged when no valid JSON can be found.
func extractJSON(text string) string {
	trimmed := strings.TrimSpace(text)
	if json.Valid([]byte(trimmed)) && looksLikeJSON(trimmed) {
		return trimmed
	}

	if fenced, ok := extractFenced(trimmed); ok {
		return fenced
	}

	// Arrays first: batch responses are arrays and objects may appear
	// inside prose explaining them.
	if candidate, ok := spanCandidate(trimmed, '[', ']'); ok {
		return candidate
	}

	if candidate, ok := spanCandidate(trimmed, '{', '}'); ok {
		return candidate
	}

	return text
}

func looksLikeJSON(s string) bool {
	return strings.HasPrefix(s, "{") || strings.HasPrefix(s, "[")
}

func extractFenced(text string) (string, bool) {
	for _, fence := range []string{"```json", "```"} {
		start := strings.Index(text, fence)
		if start == -1 {
			continue
		}

		rest := text[start+len(fence):]

		end := strings.Index(rest, "```")
		if end == -1 {
			continue
		}

		candidate := strings.TrimSpace(rest[:end])
		if json.Valid([]byte(candidate)) && looksLikeJSON(candidate) {
			return candidate, true
		}
	}

	return "", false
}

func spanCandidate(text string, open, close byte) (string, bool) {
	start := strings.IndexByte(text, open)
	end := strings.LastIndexByte(text, close)

	if start == -1 || end == -1 || end <= start {
		return "", false
	}

	candidate := text[start : end+1]
	if json.Valid([]byte(candidate)) {
		return candidate, true
	}

	return "", false
}
