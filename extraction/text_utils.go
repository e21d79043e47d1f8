package extraction

import "strings"

// stripCodeFence removes a surrounding markdown code fence (``` or ```json).
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	// Drop the info string on the opening line.
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(s, "json")
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// extractObject returns the text from the first '{' to the last '}',
// dropping any prose the model put around the object.
func extractObject(s string) string {
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end < start {
		return ""
	}
	return s[start : end+1]
}

// arrayFirst reports whether a '[' opens before any '{', which means the
// reply's outermost JSON value is an array.
func arrayFirst(s string) bool {
	bracket := strings.IndexByte(s, '[')
	if bracket < 0 {
		return false
	}
	brace := strings.IndexByte(s, '{')
	return brace < 0 || bracket < brace
}
