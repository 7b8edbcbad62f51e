// Package dispatch runs a parsed answer against the data source it targets.
package dispatch

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dbsmedya/goask/internal/answer"
	"github.com/dbsmedya/goask/internal/config"
	"github.com/dbsmedya/goask/internal/logger"
	"github.com/dbsmedya/goask/internal/sqlutil"
	"github.com/dbsmedya/goask/internal/types"
)

var (
	// ErrWriteRejected is returned for statements that may modify data
	// while writes are not allowed.
	ErrWriteRejected = errors.New("statement is not read-only")
	// ErrNoTarget is returned when no configured source can run the statement.
	ErrNoTarget = errors.New("no data source available for statement")
)

// Result is the outcome of a dispatched statement.
type Result struct {
	Statement    string   `json:"statement"`
	Target       string   `json:"target"` // e.g. "mysql:shop" or "csv:./data"
	Executed     bool     `json:"executed"`
	Columns      []string `json:"columns,omitempty"`
	Rows         [][]any  `json:"rows,omitempty"`
	Truncated    bool     `json:"truncated,omitempty"`
	RowsAffected int64    `json:"rows_affected,omitempty"`
}

// Dispatcher executes statements against MySQL, Postgres or CSV files.
type Dispatcher struct {
	mysql    *sql.DB
	postgres *sql.DB
	csv      *csvRunner
	cfg      config.DispatchConfig
	log      *logger.Logger
}

// New creates a Dispatcher. mysql and postgres may be nil when the source
// is not configured; CSV statements run against csvCfg.ExecutionDirectory().
func New(mysql, postgres *sql.DB, csvCfg config.CSVConfig, cfg config.DispatchConfig, log *logger.Logger) (*Dispatcher, error) {
	if log == nil {
		log = logger.NewNop()
	}
	var runner *csvRunner
	if dir := csvCfg.ExecutionDirectory(); dir != "" {
		r, err := newCSVRunner(dir, csvCfg.Encoding)
		if err != nil {
			return nil, err
		}
		runner = r
	}
	return &Dispatcher{
		mysql:    mysql,
		postgres: postgres,
		csv:      runner,
		cfg:      cfg,
		log:      log.WithComponent("dispatch"),
	}, nil
}

// Dispatch runs ans. SQL statements go to the source of the best-ranked SQL
// document in sources. A TypeNone answer yields a nil Result.
func (d *Dispatcher) Dispatch(ctx context.Context, ans answer.Answer, sources []types.SourceRef) (*Result, error) {
	if !ans.Runnable() {
		return nil, nil
	}

	stmt := sqlutil.TrimStatement(ans.Query)
	analyzed := sqlutil.Analyze(stmt)
	readOnly := analyzed.ReadOnly()
	if !readOnly && !d.cfg.AllowWrites {
		return nil, fmt.Errorf("%w: %s", ErrWriteRejected, truncate(stmt, 80))
	}

	var (
		res *Result
		err error
	)
	switch ans.Type {
	case answer.TypeSQL:
		res, err = d.dispatchSQL(ctx, stmt, readOnly, sources)
	case answer.TypeCSV:
		res, err = d.dispatchCSV(ctx, stmt, analyzed, readOnly)
	}
	if err != nil {
		return nil, err
	}

	if res.Executed {
		d.log.Infow("Statement executed",
			"target", res.Target,
			"rows", len(res.Rows),
			"truncated", res.Truncated,
		)
	}
	return res, nil
}

func (d *Dispatcher) dispatchSQL(ctx context.Context, stmt string, readOnly bool, sources []types.SourceRef) (*Result, error) {
	src, ok := topSQLSource(sources)
	if !ok {
		return nil, fmt.Errorf("%w: no SQL source among retrieved documents", ErrNoTarget)
	}

	if err := sqlutil.ValidateIdentifier(src.Database); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoTarget, err)
	}

	var (
		db    *sql.DB
		setup string
	)
	switch src.Dialect {
	case types.DialectPostgres:
		db = d.postgres
		setup = "SET LOCAL search_path TO " + sqlutil.QuotePostgresIdentifier(src.Database)
	default:
		db = d.mysql
		setup = "USE " + sqlutil.QuoteIdentifier(src.Database)
	}

	res := &Result{Statement: stmt, Target: string(src.Dialect) + ":" + src.Database}
	if !d.cfg.Execute {
		return res, nil
	}
	if db == nil {
		return nil, fmt.Errorf("%w: %s is not connected", ErrNoTarget, src.Dialect)
	}

	// The transaction pins one connection, so the schema switch applies to
	// the statement. Read-only statements also run in a read-only transaction.
	tx, err := db.BeginTx(ctx, &sql.TxOptions{ReadOnly: readOnly})
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction on %s: %w", res.Target, err)
	}
	defer tx.Rollback()

	if src.Database != "" {
		if _, err := tx.ExecContext(ctx, setup); err != nil {
			return nil, fmt.Errorf("failed to select %s: %w", res.Target, err)
		}
	}

	if err := run(ctx, tx, stmt, readOnly, d.cfg.MaxRows, res); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit on %s: %w", res.Target, err)
	}
	return res, nil
}

func (d *Dispatcher) dispatchCSV(ctx context.Context, stmt string, analyzed sqlutil.Statement, readOnly bool) (*Result, error) {
	if d.csv == nil {
		return nil, fmt.Errorf("%w: no CSV directory configured", ErrNoTarget)
	}
	res := &Result{Statement: stmt, Target: "csv:" + d.csv.dir}
	if !d.cfg.Execute {
		return res, nil
	}
	if err := d.csv.run(ctx, stmt, analyzed, readOnly, d.cfg.MaxRows, res); err != nil {
		return nil, err
	}
	return res, nil
}

// querier is satisfied by *sql.DB, *sql.Conn and *sql.Tx.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// run executes stmt on q and fills res. Read-only statements return rows,
// at most maxRows of them when maxRows is positive.
func run(ctx context.Context, q querier, stmt string, readOnly bool, maxRows int, res *Result) error {
	res.Executed = true

	if !readOnly {
		r, err := q.ExecContext(ctx, stmt)
		if err != nil {
			return fmt.Errorf("statement failed on %s: %w", res.Target, err)
		}
		if n, err := r.RowsAffected(); err == nil {
			res.RowsAffected = n
		}
		return nil
	}

	rows, err := q.QueryContext(ctx, stmt)
	if err != nil {
		return fmt.Errorf("statement failed on %s: %w", res.Target, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return err
	}
	res.Columns = cols
	res.Rows = [][]any{}

	for rows.Next() {
		if maxRows > 0 && len(res.Rows) >= maxRows {
			res.Truncated = true
			break
		}
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return fmt.Errorf("failed to scan result row: %w", err)
		}
		res.Rows = append(res.Rows, types.NormalizeRow(values))
	}
	return rows.Err()
}

// topSQLSource returns the best-ranked SQL source. Sources arrive best first.
func topSQLSource(sources []types.SourceRef) (types.SourceRef, bool) {
	for _, s := range sources {
		if s.Kind == types.KindSQL {
			return s, true
		}
	}
	return types.SourceRef{}, false
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
