package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ParseError reports a completion that could not be decoded as JSON.
// Raw carries the original text so callers can log it.
type ParseError struct {
	Raw string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parsing llm response as JSON: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// StripFences removes a surrounding markdown code fence, with or
// without a language tag, leaving the enclosed text.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	// Drop a language tag like "json" on the opening fence line.
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		first := strings.TrimSpace(s[:i])
		if first == "" || isFenceTag(first) {
			s = s[i+1:]
		}
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func isFenceTag(s string) bool {
	for _, r := range s {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}

// ExtractJSON decodes the first JSON object found in a model
// completion into v. Chat models routinely wrap JSON in fences or
// surround it with prose, so the text between the first '{' and the
// last '}' is what gets decoded.
func ExtractJSON(s string, v any) error {
	cleaned := StripFences(s)

	start := strings.IndexByte(cleaned, '{')
	end := strings.LastIndexByte(cleaned, '}')
	if start < 0 || end < start {
		return &ParseError{Raw: s, Err: fmt.Errorf("no JSON object in response")}
	}

	if err := json.Unmarshal([]byte(cleaned[start:end+1]), v); err != nil {
		return &ParseError{Raw: s, Err: err}
	}
	return nil
}
