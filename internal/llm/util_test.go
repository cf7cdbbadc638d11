package llm

import (
	"testing"
)

func TestCleanJSONBlock(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "json code block",
			input:    "```json\n{\"sincerity_score\": 0.8}\n```",
			expected: `{"sincerity_score": 0.8}`,
		},
		{
			name:     "generic code block",
			input:    "```\n{\"key\": \"value\"}\n```",
			expected: `{"key": "value"}`,
		},
		{
			name:     "plain JSON",
			input:    `{"key": "value"}`,
			expected: `{"key": "value"}`,
		},
		{
			name:     "russian preamble",
			input:    "Вот оценка текста:\n{\"sincerity_score\": 0.7, \"warmth_score\": 0.6}",
			expected: `{"sincerity_score": 0.7, "warmth_score": 0.6}`,
		},
		{
			name:     "trailing text",
			input:    "{\"key\": \"value\"}\n\nНадеюсь, это поможет!",
			expected: `{"key": "value"}`,
		},
		{
			name:     "preamble before array",
			input:    "Here are the items:\n[\"item1\", \"item2\"]",
			expected: `["item1", "item2"]`,
		},
		{
			name:     "nested objects",
			input:    "Output:\n{\"outer\": {\"inner\": \"value\"}}",
			expected: `{"outer": {"inner": "value"}}`,
		},
		{
			name:     "braces inside strings",
			input:    "Result: {\"comment\": \"uses {name} placeholder\"} done",
			expected: `{"comment": "uses {name} placeholder"}`,
		},
		{
			name:     "escaped quotes",
			input:    "Result: {\"message\": \"He said \\\"hi\\\"\"}",
			expected: `{"message": "He said \"hi\""}`,
		},
		{
			name:     "no json at all",
			input:    "  I cannot rate this text.  ",
			expected: "I cannot rate this text.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CleanJSONBlock(tt.input)
			if result != tt.expected {
				t.Errorf("CleanJSONBlock() = %q, want %q", result, tt.expected)
			}
		})
	}
}

func TestExtractJSONObject(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "simple", input: `{"key": "value"}`, expected: `{"key": "value"}`},
		{name: "with array", input: `{"items": [1, 2, 3]}`, expected: `{"items": [1, 2, 3]}`},
		{name: "trailing text", input: `{"key": "value"} and more`, expected: `{"key": "value"}`},
		{name: "unbalanced", input: `{"key": "value"`, expected: ""},
		{name: "empty", input: "", expected: ""},
		{name: "not an object", input: "not json", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := extractJSONObject(tt.input); got != tt.expected {
				t.Errorf("extractJSONObject() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestExtractJSONArray(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "nested", input: `[[1, 2], [3, 4]]`, expected: `[[1, 2], [3, 4]]`},
		{name: "objects", input: `[{"id": 1}, {"id": 2}] extra`, expected: `[{"id": 1}, {"id": 2}]`},
		{name: "not an array", input: "nope", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := extractJSONArray(tt.input); got != tt.expected {
				t.Errorf("extractJSONArray() = %q, want %q", got, tt.expected)
			}
		})
	}
}
