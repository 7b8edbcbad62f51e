// Package answer parses the model's reply into a typed statement.
package answer

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidAnswer is returned when a reply cannot be turned into an Answer.
var ErrInvalidAnswer = errors.New("invalid model answer")

// Type is the kind of statement the model produced.
type Type string

const (
	TypeSQL  Type = "sql"
	TypeCSV  Type = "csv"
	TypeNone Type = "none" // the model did not know the answer
)

// Answer is a parsed model reply.
type Answer struct {
	Type  Type   `json:"type"`
	Query string `json:"query,omitempty"`
}

// Runnable reports whether the answer carries a statement to execute.
func (a Answer) Runnable() bool {
	return a.Type == TypeSQL || a.Type == TypeCSV
}

type rawAnswer struct {
	Type  *string         `json:"type"`
	Query json.RawMessage `json:"query"`
}

// Parse extracts the answer object from a model reply. The reply may wrap
// the object in Markdown fences or prose and may use Python literals.
func Parse(raw string) (Answer, error) {
	body := stripFences(raw)

	obj, ok := outerObject(body)
	if !ok {
		return Answer{}, fmt.Errorf("%w: no JSON object in %q", ErrInvalidAnswer, truncate(raw, 120))
	}

	var ra rawAnswer
	if err := json.Unmarshal([]byte(toJSON(obj)), &ra); err != nil {
		return Answer{}, fmt.Errorf("%w: %v", ErrInvalidAnswer, err)
	}

	typ := TypeNone
	if ra.Type != nil {
		switch t := strings.ToLower(strings.TrimSpace(*ra.Type)); t {
		case "", "none", "null":
		case "sql", "csv":
			typ = Type(t)
		default:
			return Answer{}, fmt.Errorf("%w: unknown type %q", ErrInvalidAnswer, *ra.Type)
		}
	}

	query, err := queryText(ra.Query)
	if err != nil {
		return Answer{}, err
	}

	if typ == TypeNone {
		return Answer{Type: TypeNone}, nil
	}
	if query == "" {
		return Answer{}, fmt.Errorf("%w: %s answer without a query", ErrInvalidAnswer, typ)
	}
	return Answer{Type: typ, Query: query}, nil
}

func queryText(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", fmt.Errorf("%w: query is not a string", ErrInvalidAnswer)
	}
	return strings.TrimSpace(s), nil
}

// stripFences returns the content of the first Markdown code fence, without
// its language tag, or the trimmed input when there is no fence.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	start := strings.Index(s, "```")
	if start < 0 {
		return s
	}
	rest := s[start+3:]
	// The language tag runs to the end of the opening fence line.
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 && !strings.ContainsAny(rest[:nl], "{}") {
		rest = rest[nl+1:]
	}
	if end := strings.Index(rest, "```"); end >= 0 {
		rest = rest[:end]
	}
	return strings.TrimSpace(rest)
}

// outerObject returns the first balanced {...} in s, skipping braces that
// appear inside quoted strings.
func outerObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}
	depth := 0
	var quote byte
	for i := start; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			switch c {
			case '\\':
				i++
			case quote:
				quote = 0
			}
			continue
		}
		switch c {
		case '"', '\'':
			quote = c
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}

// toJSON rewrites a Python-style dict literal into JSON: None, True and
// False outside strings become null, true and false, single-quoted strings
// become double-quoted, and raw control characters inside strings are
// escaped.
func toJSON(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '"' || c == '\'':
			i = copyString(&b, s, i)
		case isWordStart(s, i):
			j := i
			for j < len(s) && isWordByte(s[j]) {
				j++
			}
			switch word := s[i:j]; word {
			case "None":
				b.WriteString("null")
			case "True":
				b.WriteString("true")
			case "False":
				b.WriteString("false")
			default:
				b.WriteString(word)
			}
			i = j - 1
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// copyString writes the string literal starting at s[i] as a JSON string
// and returns the index of its closing quote.
func copyString(b *strings.Builder, s string, i int) int {
	quote := s[i]
	b.WriteByte('"')
	for i++; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '\\' && i+1 < len(s):
			next := s[i+1]
			if next == '\'' {
				b.WriteByte('\'')
			} else {
				b.WriteByte('\\')
				b.WriteByte(next)
			}
			i++
		case c == quote:
			b.WriteByte('"')
			return i
		case c == '"':
			b.WriteString(`\"`)
		case c == '\n':
			b.WriteString(`\n`)
		case c == '\r':
			b.WriteString(`\r`)
		case c == '\t':
			b.WriteString(`\t`)
		default:
			b.WriteByte(c)
		}
	}
	// Unterminated: let the JSON decoder report it.
	return i
}

func isWordStart(s string, i int) bool {
	return isWordByte(s[i]) && (i == 0 || !isWordByte(s[i-1]))
}

func isWordByte(c byte) bool {
	return c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
