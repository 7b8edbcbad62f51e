package source

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/dbsmedya/goask/internal/config"
	"github.com/dbsmedya/goask/internal/logger"
	"github.com/dbsmedya/goask/internal/sqlutil"
	"github.com/dbsmedya/goask/internal/types"
)

const postgresTablesQuery = `SELECT table_schema, table_name
FROM information_schema.tables
WHERE table_type IN ('BASE TABLE', 'VIEW')
  AND table_schema NOT IN ('pg_catalog', 'information_schema')
  AND table_schema NOT LIKE 'pg_toast%'
ORDER BY table_schema, table_name`

const postgresColumnsQuery = `SELECT column_name, data_type
FROM information_schema.columns
WHERE table_schema = $1 AND table_name = $2
ORDER BY ordinal_position`

// Postgres extracts the tables and views of a PostgreSQL database.
type Postgres struct {
	db         *sql.DB
	schemas    map[string]bool
	sampleRows int
	log        *logger.Logger
}

// NewPostgres creates a Postgres connector. An empty schema list scans
// every non-system schema.
func NewPostgres(db *sql.DB, cfg config.PostgresConfig, sampleRowCount int, log *logger.Logger) *Postgres {
	if log == nil {
		log = logger.NewNop()
	}
	var schemas map[string]bool
	if len(cfg.Schemas) > 0 {
		schemas = make(map[string]bool, len(cfg.Schemas))
		for _, s := range cfg.Schemas {
			schemas[s] = true
		}
	}
	return &Postgres{
		db:         db,
		schemas:    schemas,
		sampleRows: sampleRows(sampleRowCount),
		log:        log.WithSource("postgres"),
	}
}

// Name returns "postgres".
func (p *Postgres) Name() string { return "postgres" }

// Extract reads the columns and sample rows of every table.
func (p *Postgres) Extract(ctx context.Context) ([]types.DataItem, error) {
	rows, err := p.db.QueryContext(ctx, postgresTablesQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	type tableRef struct{ schema, name string }
	var tables []tableRef
	err = scanEach(rows, func(values []any) {
		ref := tableRef{schema: asString(values[0]), name: asString(values[1])}
		if p.schemas == nil || p.schemas[ref.schema] {
			tables = append(tables, ref)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}

	var items []types.DataItem
	for _, t := range tables {
		item, err := p.describe(ctx, t.schema, t.name)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			p.log.WithTable(t.schema+"."+t.name).Warnw("Skipping unreadable table", "error", err)
			continue
		}
		items = append(items, item)
	}
	return items, nil
}

func (p *Postgres) describe(ctx context.Context, schema, table string) (types.DataItem, error) {
	rows, err := p.db.QueryContext(ctx, postgresColumnsQuery, schema, table)
	if err != nil {
		return types.DataItem{}, fmt.Errorf("columns: %w", err)
	}
	var columns []types.Column
	err = scanEach(rows, func(values []any) {
		columns = append(columns, types.Column{Name: asString(values[0]), Type: asString(values[1])})
	})
	if err != nil {
		return types.DataItem{}, fmt.Errorf("columns: %w", err)
	}

	qualified := strings.Join([]string{sqlutil.QuotePostgresIdentifier(schema), sqlutil.QuotePostgresIdentifier(table)}, ".")
	sample, err := sampleTable(ctx, p.db, fmt.Sprintf("SELECT * FROM %s LIMIT %d", qualified, p.sampleRows))
	if err != nil {
		return types.DataItem{}, fmt.Errorf("sample: %w", err)
	}

	return types.DataItem{
		Source:     p.Name(),
		Kind:       types.KindSQL,
		Dialect:    types.DialectPostgres,
		Database:   schema,
		Table:      table,
		Schema:     columns,
		SampleData: sample,
	}, nil
}
