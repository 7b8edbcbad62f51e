package sqlutil

import (
	"strings"
	"unicode"
)

// Statement is the lexical summary of a SQL text: its keywords and
// identifiers outside string literals and comments.
type Statement struct {
	Text        string
	Keyword     string   // first keyword, upper-cased
	Words       []string // bare words, upper-cased
	Identifiers []string // bare words and quoted identifiers, lower-cased
	Count       int      // number of non-empty statements
}

// readOnlyKeywords may start a statement that does not modify data.
var readOnlyKeywords = map[string]bool{
	"SELECT":   true,
	"WITH":     true,
	"SHOW":     true,
	"DESCRIBE": true,
	"DESC":     true,
	"EXPLAIN":  true,
	"VALUES":   true,
	"TABLE":    true,
}

// writeKeywords make a statement a write wherever they appear. Locking reads
// (SELECT ... FOR UPDATE) are rejected as well.
var writeKeywords = map[string]bool{
	"INSERT":   true,
	"UPDATE":   true,
	"DELETE":   true,
	"MERGE":    true,
	"DROP":     true,
	"ALTER":    true,
	"CREATE":   true,
	"TRUNCATE": true,
	"GRANT":    true,
	"REVOKE":   true,
	"INTO":     true,
	"ATTACH":   true,
	"COPY":     true,
}

// TrimStatement removes surrounding whitespace and trailing semicolons.
func TrimStatement(stmt string) string {
	return strings.TrimRight(strings.TrimSpace(stmt), "; \t\r\n")
}

// Analyze scans stmt, skipping string literals and comments.
func Analyze(stmt string) Statement {
	s := Statement{Text: stmt}
	runes := []rune(stmt)
	n := len(runes)

	pending := false // current statement has tokens
	var word strings.Builder

	flushWord := func() {
		if word.Len() == 0 {
			return
		}
		w := word.String()
		word.Reset()
		upper := strings.ToUpper(w)
		if s.Keyword == "" && !isNumber(w) {
			s.Keyword = upper
		}
		s.Words = append(s.Words, upper)
		s.Identifiers = append(s.Identifiers, strings.ToLower(w))
		pending = true
	}

	for i := 0; i < n; i++ {
		r := runes[i]
		switch {
		case r == '\'' || r == '"' || r == '`':
			flushWord()
			j := i + 1
			var quoted strings.Builder
			for j < n {
				if runes[j] == r {
					if j+1 < n && runes[j+1] == r {
						quoted.WriteRune(r)
						j += 2
						continue
					}
					break
				}
				if runes[j] == '\\' && r == '\'' && j+1 < n {
					quoted.WriteRune(runes[j+1])
					j += 2
					continue
				}
				quoted.WriteRune(runes[j])
				j++
			}
			if r != '\'' {
				s.Identifiers = append(s.Identifiers, strings.ToLower(quoted.String()))
			}
			pending = true
			i = j
		case r == '-' && i+1 < n && runes[i+1] == '-', r == '#':
			flushWord()
			for i < n && runes[i] != '\n' {
				i++
			}
		case r == '/' && i+1 < n && runes[i+1] == '*':
			flushWord()
			i += 2
			for i < n && !(runes[i] == '*' && i+1 < n && runes[i+1] == '/') {
				i++
			}
			i++
		case r == ';':
			flushWord()
			if pending {
				s.Count++
				pending = false
			}
		case r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) || r == '$':
			word.WriteRune(r)
		default:
			flushWord()
			if !unicode.IsSpace(r) {
				pending = true
			}
		}
	}
	flushWord()
	if pending {
		s.Count++
	}
	return s
}

// ReadOnly reports whether the statement is a single statement that cannot
// modify data.
func (s Statement) ReadOnly() bool {
	if s.Count != 1 || !readOnlyKeywords[s.Keyword] {
		return false
	}
	for _, w := range s.Words {
		if writeKeywords[w] {
			return false
		}
	}
	return true
}

// References reports whether name appears as an identifier in the statement.
func (s Statement) References(name string) bool {
	name = strings.ToLower(name)
	for _, id := range s.Identifiers {
		if id == name {
			return true
		}
	}
	return false
}

func isNumber(w string) bool {
	for _, r := range w {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
