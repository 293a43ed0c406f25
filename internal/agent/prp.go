package agent

import (
	"fmt"
	"strings"
)

// preferenceLabels maps preference keys to prompt labels, in render
// order. String values render as "Label: value", true booleans as
// "Label: Yes", numbers as "Label: N%" where the label says so.
var preferenceLabels = []struct {
	key   string
	label string
}{
	{"programming_language", "Programming Language"},
	{"framework", "Framework"},
	{"architecture_pattern", "Architecture Pattern"},
	{"testing_framework", "Testing Framework"},
	{"database_type", "Database"},
	{"security_level", "Security Level"},
	{"use_type_hints", "Use Type Hints"},
	{"test_coverage_min", "Minimum Test Coverage"},
	{"use_linting", "Use Linting"},
	{"use_formatting", "Use Code Formatting"},
}

// PreferencesContext renders project preferences as prompt text.
// Unset preferences are omitted; with none set the caller still gets
// a usable line.
func PreferencesContext(prefs map[string]any) string {
	var lines []string
	for _, p := range preferenceLabels {
		v, ok := prefs[p.key]
		if !ok || v == nil {
			continue
		}
		switch val := v.(type) {
		case string:
			if val != "" {
				lines = append(lines, fmt.Sprintf("%s: %s", p.label, val))
			}
		case bool:
			if val {
				lines = append(lines, p.label+": Yes")
			}
		case int:
			lines = append(lines, fmt.Sprintf("%s: %d%%", p.label, val))
		case float64:
			lines = append(lines, fmt.Sprintf("%s: %d%%", p.label, int(val)))
		}
	}
	if len(lines) == 0 {
		return "Using market standard best practices"
	}
	return strings.Join(lines, "\n")
}
