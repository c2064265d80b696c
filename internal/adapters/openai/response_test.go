package openai_test

import (
	"testing"

	"github.com/Amund211/docprompt/internal/adapters/openai"
	"github.com/stretchr/testify/require"
)

func TestExtractText(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		raw      string
		expected string
	}{
		{
			name:     "output_text",
			raw:      `{"output":[{"type":"message","content":[{"type":"output_text","text":"Hello"}]}]}`,
			expected: "Hello",
		},
		{
			name:     "text part",
			raw:      `{"output":[{"type":"message","content":[{"type":"text","text":"Hello"}]}]}`,
			expected: "Hello",
		},
		{
			name:     "text wrapped in value",
			raw:      `{"output":[{"type":"message","content":[{"type":"output_text","text":{"value":"Hello","annotations":[]}}]}]}`,
			expected: "Hello",
		},
		{
			name:     "first matching part of an item is used",
			raw:      `{"output":[{"type":"message","content":[{"type":"refusal","refusal":"no"},{"type":"output_text","text":"first"},{"type":"output_text","text":"second"}]}]}`,
			expected: "first",
		},
		{
			name:     "reasoning item before the message",
			raw:      `{"output":[{"type":"reasoning","summary":[]},{"type":"message","content":[{"type":"output_text","text":"Answer"}]}]}`,
			expected: "Answer",
		},
		{
			name:     "empty text falls through to the next item",
			raw:      `{"output":[{"type":"message","content":[{"type":"output_text","text":""}]},{"type":"message","content":[{"type":"output_text","text":"later"}]}]}`,
			expected: "later",
		},
		{
			name:     "no output falls back to indented json",
			raw:      `{"id":"resp_1","output":[]}`,
			expected: "{\n  \"id\": \"resp_1\",\n  \"output\": []\n}",
		},
		{
			name:     "unknown content falls back to indented json",
			raw:      `{"output":[{"type":"message","content":[{"type":"image","url":"x"}]}]}`,
			expected: "{\n  \"output\": [\n    {\n      \"type\": \"message\",\n      \"content\": [\n        {\n          \"type\": \"image\",\n          \"url\": \"x\"\n        }\n      ]\n    }\n  ]\n}",
		},
		{
			name:     "invalid json is returned as is",
			raw:      `not json`,
			expected: "not json",
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, c.expected, openai.ExtractText([]byte(c.raw)))
		})
	}
}
