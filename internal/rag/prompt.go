package rag

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/dbsmedya/goask/internal/retrieval"
	"github.com/dbsmedya/goask/internal/types"
)

const defaultPrompt = `Context:
{{.Context}}

Question:
{{.Question}}

A natural language question is given to you. Convert it into a SQL or CSV query
based on the schemas and sample data provided in the context.

If the data source is SQL, answer with a single statement in the dialect of that
database, qualifying tables with their database or schema name:
{"type": "sql", "query": "<sql statement>"}

If the data source is CSV, answer with a single SQLite SELECT statement. Each CSV
file is a table named after the file without its extension, with the CSV header
as column names:
{"type": "csv", "query": "<sqlite statement>"}

If you don't know the answer, return:
{"type": null, "query": null}
Don't try to make up an answer.

Answer with the JSON object only, in the exact format specified above.
`

// promptData feeds the prompt template.
type promptData struct {
	Context  string
	Question string
}

// DefaultTemplate returns the built-in prompt template.
func DefaultTemplate() *template.Template {
	return template.Must(template.New("prompt").Parse(defaultPrompt))
}

// ParseTemplate parses a custom prompt template. It receives .Context and
// .Question.
func ParseTemplate(text string) (*template.Template, error) {
	t, err := template.New("prompt").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("invalid prompt template: %w", err)
	}
	return t, nil
}

// BuildContext renders every document as a block of source details followed
// by its sample rows, separated by blank lines.
func BuildContext(docs []retrieval.Document) string {
	blocks := make([]string, len(docs))
	for i, d := range docs {
		blocks[i] = documentBlock(d)
	}
	return strings.Join(blocks, "\n\n")
}

func documentBlock(d retrieval.Document) string {
	src := d.Source
	var b strings.Builder

	switch src.Kind {
	case types.KindCSV:
		fmt.Fprintf(&b, "Source: CSV file in %s, table %s\n", src.Database, src.Table)
	default:
		fmt.Fprintf(&b, "Source: %s database %s, table %s\n", dialectName(src.Dialect), src.Database, src.Table)
	}

	cols := make([]string, len(src.Schema))
	for i, c := range src.Schema {
		if c.Type != "" {
			cols[i] = c.Name + " " + c.Type
		} else {
			cols[i] = c.Name
		}
	}
	fmt.Fprintf(&b, "Columns: %s\n", strings.Join(cols, ", "))
	fmt.Fprintf(&b, "Sample data: %s", d.Content)
	return b.String()
}

func dialectName(d types.Dialect) string {
	switch d {
	case types.DialectMySQL:
		return "MySQL"
	case types.DialectPostgres:
		return "PostgreSQL"
	default:
		return string(d)
	}
}
