// Package database provides connection management for the MySQL and
// PostgreSQL sources and the local SQLite stores.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql" // MySQL driver
	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver, registered as "pgx"

	"github.com/dbsmedya/goask/internal/config"
)

// Manager handles the connections to the configured relational sources.
type Manager struct {
	MySQL    *sql.DB
	Postgres *sql.DB
	config   *config.Config
}

// NewManager creates a new database manager from configuration.
func NewManager(cfg *config.Config) *Manager {
	return &Manager{
		config: cfg,
	}
}

// Connect establishes connections to every configured relational source.
// Sources that are not configured are left nil.
func (m *Manager) Connect(ctx context.Context) error {
	if m.config.MySQL.Enabled() {
		if err := m.ConnectMySQL(ctx); err != nil {
			return err
		}
	}

	if m.config.Postgres.Enabled() {
		if err := m.ConnectPostgres(ctx); err != nil {
			m.Close()
			return err
		}
	}

	return nil
}

// ConnectMySQL establishes the MySQL connection only.
func (m *Manager) ConnectMySQL(ctx context.Context) error {
	cfg := &m.config.MySQL
	db, err := connectWithRetry(ctx, func() (*sql.DB, error) {
		return open("mysql", BuildDSN(cfg), cfg.MaxConnections, cfg.MaxIdleConnections)
	})
	if err != nil {
		return fmt.Errorf("failed to connect to mysql: %w", err)
	}
	m.MySQL = db
	return nil
}

// ConnectPostgres establishes the PostgreSQL connection only.
func (m *Manager) ConnectPostgres(ctx context.Context) error {
	cfg := &m.config.Postgres
	db, err := connectWithRetry(ctx, func() (*sql.DB, error) {
		return open("pgx", cfg.DSN, cfg.MaxConnections, 0)
	})
	if err != nil {
		return fmt.Errorf("failed to connect to postgres: %w", err)
	}
	m.Postgres = db
	return nil
}

// retryAttempts and retryBackoff control connectWithRetry.
var (
	retryAttempts = 3
	retryBackoff  = time.Second
)

// connectWithRetry attempts to connect with exponential backoff.
func connectWithRetry(ctx context.Context, openFn func() (*sql.DB, error)) (*sql.DB, error) {
	var db *sql.DB
	var err error

	backoff := retryBackoff

	for i := 0; i < retryAttempts; i++ {
		db, err = openFn()
		if err == nil {
			if pingErr := db.PingContext(ctx); pingErr == nil {
				return db, nil
			} else {
				db.Close()
				err = pingErr
			}
		}

		if i < retryAttempts-1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
				backoff *= 2
			}
		}
	}

	return nil, fmt.Errorf("failed after %d retries: %w", retryAttempts, err)
}

func open(driver, dsn string, maxOpen, maxIdle int) (*sql.DB, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, err
	}

	if maxOpen > 0 {
		db.SetMaxOpenConns(maxOpen)
	}
	if maxIdle > 0 {
		db.SetMaxIdleConns(maxIdle)
	}
	db.SetConnMaxLifetime(10 * time.Minute)

	return db, nil
}

// BuildDSN constructs a MySQL DSN from configuration.
// multiStatements stays off so a generated statement can never smuggle a second one.
func BuildDSN(cfg *config.DatabaseConfig) string {
	// Format: user:password@tcp(host:port)/database?params
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/",
		cfg.User,
		cfg.Password,
		cfg.Host,
		cfg.Port,
	)

	if cfg.Database != "" {
		dsn += cfg.Database
	}

	params := "?parseTime=true"
	switch cfg.TLS {
	case "disable":
		params += "&tls=false"
	case "required":
		params += "&tls=true"
	case "preferred", "":
		params += "&tls=preferred"
	}

	return dsn + params
}

// Close closes all database connections gracefully.
func (m *Manager) Close() error {
	var errs []error

	if m.Postgres != nil {
		if err := m.Postgres.Close(); err != nil {
			errs = append(errs, fmt.Errorf("postgres close: %w", err))
		}
		m.Postgres = nil
	}

	if m.MySQL != nil {
		if err := m.MySQL.Close(); err != nil {
			errs = append(errs, fmt.Errorf("mysql close: %w", err))
		}
		m.MySQL = nil
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors closing connections: %v", errs)
	}
	return nil
}

// Ping verifies all connections are alive.
func (m *Manager) Ping(ctx context.Context) error {
	if m.MySQL != nil {
		if err := m.MySQL.PingContext(ctx); err != nil {
			return fmt.Errorf("mysql ping failed: %w", err)
		}
	}

	if m.Postgres != nil {
		if err := m.Postgres.PingContext(ctx); err != nil {
			return fmt.Errorf("postgres ping failed: %w", err)
		}
	}

	return nil
}
