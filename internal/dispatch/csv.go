package dispatch

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/text/encoding"

	"github.com/dbsmedya/goask/internal/database"
	"github.com/dbsmedya/goask/internal/source"
	"github.com/dbsmedya/goask/internal/sqlutil"
)

// ErrNoCSVTable is returned when a CSV statement names no file of the directory.
var ErrNoCSVTable = errors.New("statement references no CSV file")

// csvRunner loads the CSV files a statement references into a private
// in-memory SQLite database and runs the statement there. Changes made by
// write statements are discarded with the database.
type csvRunner struct {
	dir string
	enc encoding.Encoding
}

func newCSVRunner(dir, encodingLabel string) (*csvRunner, error) {
	enc, err := source.LookupEncoding(encodingLabel)
	if err != nil {
		return nil, err
	}
	return &csvRunner{dir: dir, enc: enc}, nil
}

func (c *csvRunner) run(ctx context.Context, stmt string, analyzed sqlutil.Statement, readOnly bool, maxRows int, res *Result) error {
	files, err := source.ListCSVFiles(c.dir)
	if err != nil {
		return err
	}

	db, err := database.OpenSQLite(database.MemoryPath)
	if err != nil {
		return err
	}
	defer db.Close()

	loaded := 0
	for _, name := range files {
		table := sqlutil.TableNameForFile(name)
		if !analyzed.References(table) {
			continue
		}
		if err := c.load(ctx, db, table, filepath.Join(c.dir, name)); err != nil {
			return fmt.Errorf("failed to load %s: %w", name, err)
		}
		loaded++
	}
	if loaded == 0 {
		return fmt.Errorf("%w in %s", ErrNoCSVTable, c.dir)
	}

	return run(ctx, db, stmt, readOnly, maxRows, res)
}

// load creates table from the CSV file at path. Column types are inferred
// from the values: INTEGER or REAL when every non-empty value parses,
// TEXT otherwise. Empty values are stored as NULL.
func (c *csvRunner) load(ctx context.Context, db *sql.DB, table, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	cr := source.NewCSVReader(f, c.enc)
	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return source.ErrEmptyCSV
	}
	if err != nil {
		return err
	}
	columns := columnNames(header)

	var records [][]string
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		records = append(records, rec)
	}

	affinities := inferAffinities(len(columns), records)
	defs := make([]string, len(columns))
	quoted := make([]string, len(columns))
	marks := make([]string, len(columns))
	for i, col := range columns {
		quoted[i] = sqlutil.QuotePostgresIdentifier(col)
		defs[i] = quoted[i] + " " + affinities[i]
		marks[i] = "?"
	}
	quotedTable := sqlutil.QuotePostgresIdentifier(table)

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, fmt.Sprintf("CREATE TABLE %s (%s)", quotedTable, strings.Join(defs, ", "))); err != nil {
		return err
	}
	ins, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quotedTable, strings.Join(quoted, ", "), strings.Join(marks, ", ")))
	if err != nil {
		return err
	}
	defer ins.Close()

	args := make([]any, len(columns))
	for _, rec := range records {
		for i := range columns {
			var raw string
			if i < len(rec) {
				raw = rec[i]
			}
			args[i] = convertValue(raw, affinities[i])
		}
		if _, err := ins.ExecContext(ctx, args...); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// columnNames trims header names, names empty ones column_N and suffixes
// duplicates so every column can be created.
func columnNames(header []string) []string {
	names := make([]string, len(header))
	used := make(map[string]bool, len(header))
	for i, h := range header {
		base := strings.TrimSpace(h)
		if base == "" {
			base = "column_" + strconv.Itoa(i+1)
		}
		name := base
		for n := 2; used[strings.ToLower(name)]; n++ {
			name = base + "_" + strconv.Itoa(n)
		}
		used[strings.ToLower(name)] = true
		names[i] = name
	}
	return names
}

func inferAffinities(width int, records [][]string) []string {
	out := make([]string, width)
	for i := range out {
		isInt, isReal, seen := true, true, false
		for _, rec := range records {
			if i >= len(rec) {
				continue
			}
			v := strings.TrimSpace(rec[i])
			if v == "" {
				continue
			}
			seen = true
			if _, err := strconv.ParseInt(v, 10, 64); err != nil {
				isInt = false
			}
			if _, err := strconv.ParseFloat(v, 64); err != nil {
				isReal = false
			}
			if !isInt && !isReal {
				break
			}
		}
		switch {
		case !seen:
			out[i] = "TEXT"
		case isInt:
			out[i] = "INTEGER"
		case isReal:
			out[i] = "REAL"
		default:
			out[i] = "TEXT"
		}
	}
	return out
}

func convertValue(raw, affinity string) any {
	v := strings.TrimSpace(raw)
	if v == "" {
		return nil
	}
	switch affinity {
	case "INTEGER":
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	case "REAL":
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return raw
}
