package source

import (
	"github.com/dbsmedya/goask/internal/config"
	"github.com/dbsmedya/goask/internal/database"
	"github.com/dbsmedya/goask/internal/logger"
)

// FromConfig builds the connectors for every configured source, in the
// order MySQL, Postgres, CSV directory, object store. Relational sources
// must already be connected through mgr.
func FromConfig(cfg *config.Config, mgr *database.Manager, log *logger.Logger) ([]Connector, error) {
	if !cfg.HasSources() {
		return nil, ErrNoSources
	}

	var connectors []Connector
	rows := cfg.CSV.MaxSampleRows

	if cfg.MySQL.Enabled() && mgr != nil && mgr.MySQL != nil {
		connectors = append(connectors, NewMySQL(mgr.MySQL, cfg.MySQL, rows, log))
	}
	if cfg.Postgres.Enabled() && mgr != nil && mgr.Postgres != nil {
		connectors = append(connectors, NewPostgres(mgr.Postgres, cfg.Postgres, rows, log))
	}
	if cfg.CSV.Enabled() {
		c, err := NewCSVDir(cfg.CSV, log)
		if err != nil {
			return nil, err
		}
		connectors = append(connectors, c)
	}
	if cfg.ObjectStore.Enabled {
		store, err := NewMinioStore(cfg.ObjectStore)
		if err != nil {
			return nil, err
		}
		o, err := NewObjectCSV(store, cfg.ObjectStore, cfg.CSV, log)
		if err != nil {
			return nil, err
		}
		connectors = append(connectors, o)
	}

	if len(connectors) == 0 {
		return nil, ErrNoSources
	}
	return connectors, nil
}
