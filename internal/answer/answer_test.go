package answer

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Answer
	}{
		{
			name: "plain json",
			raw:  `{"type": "sql", "query": "SELECT COUNT(*) FROM orders"}`,
			want: Answer{Type: TypeSQL, Query: "SELECT COUNT(*) FROM orders"},
		},
		{
			name: "json fence",
			raw:  "```json\n{\"type\": \"csv\", \"query\": \"SELECT city FROM weather\"}\n```",
			want: Answer{Type: TypeCSV, Query: "SELECT city FROM weather"},
		},
		{
			name: "python fence with literals",
			raw:  "```python\n{\n  \"type\": None,\n  \"query\": None\n}\n```",
			want: Answer{Type: TypeNone},
		},
		{
			name: "prose around object",
			raw:  "Sure! Here is the query:\n{\"type\": \"SQL\", \"query\": \"SELECT 1\"}\nLet me know.",
			want: Answer{Type: TypeSQL, Query: "SELECT 1"},
		},
		{
			name: "python dict",
			raw:  `{'type': 'sql', 'query': 'SELECT * FROM users WHERE name = \'Ada\''}`,
			want: Answer{Type: TypeSQL, Query: "SELECT * FROM users WHERE name = 'Ada'"},
		},
		{
			name: "keywords inside statement survive",
			raw:  "```json\n{\"type\": \"sql\", \"query\": \"SELECT json_payload, python_version FROM java_apps\"}\n```",
			want: Answer{Type: TypeSQL, Query: "SELECT json_payload, python_version FROM java_apps"},
		},
		{
			name: "literal words inside strings are untouched",
			raw:  `{"type": "sql", "query": "SELECT * FROM flags WHERE label = 'None' AND active = True"}`,
			want: Answer{Type: TypeSQL, Query: "SELECT * FROM flags WHERE label = 'None' AND active = True"},
		},
		{
			name: "multi-line statement in string",
			raw:  "{\"type\": \"sql\", \"query\": \"SELECT id\nFROM orders\"}",
			want: Answer{Type: TypeSQL, Query: "SELECT id\nFROM orders"},
		},
		{
			name: "braces inside statement",
			raw:  `{"type": "sql", "query": "SELECT '{x}' AS v"}`,
			want: Answer{Type: TypeSQL, Query: "SELECT '{x}' AS v"},
		},
		{
			name: "null type",
			raw:  `{"type": null, "query": null}`,
			want: Answer{Type: TypeNone},
		},
		{
			name: "none type string drops query",
			raw:  `{"type": "none", "query": "ignored"}`,
			want: Answer{Type: TypeNone},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseInvalid(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"empty", ""},
		{"no object", "I cannot answer that."},
		{"unbalanced", `{"type": "sql", "query": "SELECT 1"`},
		{"unknown type", `{"type": "python", "query": "print(1)"}`},
		{"sql without query", `{"type": "sql", "query": None}`},
		{"csv with blank query", `{"type": "csv", "query": "   "}`},
		{"query not a string", `{"type": "sql", "query": 42}`},
		{"not json", `{type: sql}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.raw)
			assert.True(t, errors.Is(err, ErrInvalidAnswer), "got %v", err)
		})
	}
}

func TestRunnable(t *testing.T) {
	assert.True(t, Answer{Type: TypeSQL}.Runnable())
	assert.True(t, Answer{Type: TypeCSV}.Runnable())
	assert.False(t, Answer{Type: TypeNone}.Runnable())
}
