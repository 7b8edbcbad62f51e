// Package sqlutil provides SQL utility functions for goask.
package sqlutil

import (
	"fmt"
	"path/filepath"
	"strings"
	"unicode"
)

// QuoteIdentifier quotes a MySQL identifier (table name, column name) with backticks.
// It escapes any existing backticks by doubling them.
// Example: "my_table" -> "`my_table`"
func QuoteIdentifier(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

// QuotePostgresIdentifier quotes a PostgreSQL or SQLite identifier with double quotes.
// Example: `my"table` -> `"my""table"`
func QuotePostgresIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// maxIdentifierLength is MySQL's limit for database, table and column names.
const maxIdentifierLength = 64

// ValidateIdentifier checks that name can be used as a quoted MySQL or
// PostgreSQL database or schema name.
func ValidateIdentifier(name string) error {
	switch {
	case name == "":
		return &InvalidIdentifierError{Name: name, Reason: "empty"}
	case len(name) > maxIdentifierLength:
		return &InvalidIdentifierError{Name: name, Reason: fmt.Sprintf("longer than %d bytes", maxIdentifierLength)}
	case strings.ContainsRune(name, 0):
		return &InvalidIdentifierError{Name: name, Reason: "contains a NUL byte"}
	case strings.HasSuffix(name, " "):
		return &InvalidIdentifierError{Name: name, Reason: "ends with a space"}
	}
	return nil
}

// InvalidIdentifierError is returned for names that no database accepts.
type InvalidIdentifierError struct {
	Name   string
	Reason string
}

func (e *InvalidIdentifierError) Error() string {
	return fmt.Sprintf("invalid identifier %q: %s", e.Name, e.Reason)
}

// TableNameForFile derives the SQL table name of a CSV file.
// "sales-2024.csv" -> "sales_2024". Names starting with a digit get a "t_" prefix.
func TableNameForFile(filename string) string {
	base := filepath.Base(filename)
	base = strings.TrimSuffix(base, filepath.Ext(base))

	var b strings.Builder
	for _, r := range base {
		if r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	name := b.String()
	if name == "" {
		return "t_"
	}
	if unicode.IsDigit([]rune(name)[0]) {
		name = "t_" + name
	}
	return name
}
