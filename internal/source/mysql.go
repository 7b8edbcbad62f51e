package source

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"strings"

	"github.com/dbsmedya/goask/internal/config"
	"github.com/dbsmedya/goask/internal/logger"
	"github.com/dbsmedya/goask/internal/sqlutil"
	"github.com/dbsmedya/goask/internal/types"
)

// systemDatabases are never scanned.
var systemDatabases = []string{"information_schema", "mysql", "performance_schema", "sys"}

// MySQL extracts every table of every user database of a MySQL server.
type MySQL struct {
	db         *sql.DB
	database   string
	exclude    []string
	sampleRows int
	log        *logger.Logger
}

// NewMySQL creates a MySQL connector over an open connection pool.
func NewMySQL(db *sql.DB, cfg config.DatabaseConfig, sampleRowCount int, log *logger.Logger) *MySQL {
	if log == nil {
		log = logger.NewNop()
	}
	return &MySQL{
		db:         db,
		database:   cfg.Database,
		exclude:    cfg.ExcludeDatabases,
		sampleRows: sampleRows(sampleRowCount),
		log:        log.WithSource("mysql"),
	}
}

// Name returns "mysql".
func (m *MySQL) Name() string { return "mysql" }

// Extract lists databases, then tables, then reads each table's columns and
// sample rows. A table that cannot be read is logged and skipped.
func (m *MySQL) Extract(ctx context.Context) ([]types.DataItem, error) {
	databases, err := m.databases(ctx)
	if err != nil {
		return nil, err
	}

	var items []types.DataItem
	for _, dbName := range databases {
		tables, err := m.tables(ctx, dbName)
		if err != nil {
			return nil, err
		}
		for _, table := range tables {
			item, err := m.describe(ctx, dbName, table)
			if err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				m.log.WithTable(dbName+"."+table).Warnw("Skipping unreadable table", "error", err)
				continue
			}
			items = append(items, item)
		}
	}
	return items, nil
}

func (m *MySQL) databases(ctx context.Context) ([]string, error) {
	if m.database != "" {
		return []string{m.database}, nil
	}

	names, err := queryStrings(ctx, m.db, "SHOW DATABASES")
	if err != nil {
		return nil, fmt.Errorf("failed to list databases: %w", err)
	}

	out := names[:0]
	for _, name := range names {
		lower := strings.ToLower(name)
		if slices.Contains(systemDatabases, lower) || slices.Contains(m.exclude, name) {
			continue
		}
		out = append(out, name)
	}
	return out, nil
}

func (m *MySQL) tables(ctx context.Context, dbName string) ([]string, error) {
	tables, err := queryStrings(ctx, m.db, "SHOW TABLES FROM "+sqlutil.QuoteIdentifier(dbName))
	if err != nil {
		return nil, fmt.Errorf("failed to list tables of %s: %w", dbName, err)
	}
	return tables, nil
}

func (m *MySQL) describe(ctx context.Context, dbName, table string) (types.DataItem, error) {
	qualified := sqlutil.QuoteIdentifier(dbName) + "." + sqlutil.QuoteIdentifier(table)

	rows, err := m.db.QueryContext(ctx, "DESCRIBE "+qualified)
	if err != nil {
		return types.DataItem{}, fmt.Errorf("describe: %w", err)
	}
	var schema []types.Column
	err = scanEach(rows, func(values []any) {
		// Field, Type, Null, Key, Default, Extra
		schema = append(schema, types.Column{
			Name: asString(values[0]),
			Type: asString(values[1]),
		})
	})
	if err != nil {
		return types.DataItem{}, fmt.Errorf("describe: %w", err)
	}

	sample, err := sampleTable(ctx, m.db, fmt.Sprintf("SELECT * FROM %s LIMIT %d", qualified, m.sampleRows))
	if err != nil {
		return types.DataItem{}, fmt.Errorf("sample: %w", err)
	}

	return types.DataItem{
		Source:     m.Name(),
		Kind:       types.KindSQL,
		Dialect:    types.DialectMySQL,
		Database:   dbName,
		Table:      table,
		Schema:     schema,
		SampleData: sample,
	}, nil
}

// queryStrings returns the first column of every row.
func queryStrings(ctx context.Context, db *sql.DB, query string, args ...any) ([]string, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	var out []string
	err = scanEach(rows, func(values []any) {
		out = append(out, asString(values[0]))
	})
	return out, err
}

// sampleTable runs query and returns its rows with normalized values.
func sampleTable(ctx context.Context, db *sql.DB, query string, args ...any) ([][]any, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	sample := [][]any{}
	err = scanEach(rows, func(values []any) {
		sample = append(sample, types.NormalizeRow(values))
	})
	return sample, err
}

// scanEach scans every row into a fresh []any and closes rows.
func scanEach(rows *sql.Rows, fn func(values []any)) error {
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return err
	}
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return err
		}
		fn(values)
	}
	return rows.Err()
}

func asString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case []byte:
		return string(x)
	case string:
		return x
	default:
		return fmt.Sprint(x)
	}
}
