package llm

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
)

// ErrNoJSONObject is returned when no JSON object can be recovered from model output.
var ErrNoJSONObject = errors.New("no json object in model output")

var reTrailingComma = regexp.MustCompile(`,(\s*[}\]])`)

// DecodeLenient recovers a JSON object from chatty model output. It tries,
// in order: the whole content after stripping markdown fences, the first
// balanced {...} block, and that block with single quotes and trailing
// commas repaired. The returned notes say which step succeeded.
func DecodeLenient(content string) (map[string]any, []string, error) {
	s := stripFences(content)
	if s == "" {
		return nil, nil, ErrNoJSONObject
	}

	if m, ok := decodeObject(s); ok {
		return m, nil, nil
	}

	candidate := firstObject(s)
	if candidate == "" {
		return nil, nil, ErrNoJSONObject
	}
	if m, ok := decodeObject(candidate); ok {
		return m, []string{"json extracted from surrounding text"}, nil
	}

	fixed := strings.ReplaceAll(candidate, "'", `"`)
	fixed = reTrailingComma.ReplaceAllString(fixed, "$1")
	if m, ok := decodeObject(fixed); ok {
		return m, []string{"json extracted from surrounding text", "json quotes/commas repaired"}, nil
	}
	return nil, nil, ErrNoJSONObject
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```JSON")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func decodeObject(s string) (map[string]any, bool) {
	var m map[string]any
	if err := json.Unmarshal([]byte(s), &m); err != nil || m == nil {
		return nil, false
	}
	return m, true
}

// firstObject returns the first brace-balanced {...} substring, honouring
// double-quoted strings.
func firstObject(s string) string {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return ""
	}
	depth := 0
	inStr, esc := false, false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inStr {
			switch {
			case esc:
				esc = false
			case c == '\\':
				esc = true
			case c == '"':
				inStr = false
			}
			continue
		}
		switch c {
		case '"':
			inStr = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}
