package llm

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HendryAvila/aidev/internal/config"
)

func TestStripFences(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"no fences", `{"a": 1}`, `{"a": 1}`},
		{"json fence", "```json\n{\"a\": 1}\n```", `{"a": 1}`},
		{"bare fence", "```\n{\"a\": 1}\n```", `{"a": 1}`},
		{"leading whitespace", "  ```json\n{}\n```  ", "{}"},
		{"fence without newline", "```{\"a\": 1}```", `{"a": 1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StripFences(tt.in))
		})
	}
}

func TestExtractJSON(t *testing.T) {
	type payload struct {
		Phases []string `json:"phases"`
	}

	tests := []struct {
		name string
		in   string
		want []string
	}{
		{
			"plain object",
			`{"phases": ["setup"]}`,
			[]string{"setup"},
		},
		{
			"fenced object",
			"```json\n{\"phases\": [\"setup\", \"core\"]}\n```",
			[]string{"setup", "core"},
		},
		{
			"prose around object",
			"Here is the plan:\n{\"phases\": [\"setup\"]}\nLet me know!",
			[]string{"setup"},
		},
		{
			"nested braces",
			`preamble {"phases": ["a"], "meta": {"n": 1}} trailing`,
			[]string{"a"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got payload
			require.NoError(t, ExtractJSON(tt.in, &got))
			assert.Equal(t, tt.want, got.Phases)
		})
	}
}

func TestExtractJSON_Errors(t *testing.T) {
	var v map[string]any

	err := ExtractJSON("no object here", &v)
	require.Error(t, err)
	var perr *ParseError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "no object here", perr.Raw)

	err = ExtractJSON(`{"broken": `, &v)
	require.Error(t, err)
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, `{"broken": `, perr.Raw)
}

func TestNew_UnsupportedProvider(t *testing.T) {
	_, err := New(config.LLM{Provider: "watsonx", Model: "granite"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnsupportedProvider)
}
