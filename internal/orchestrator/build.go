package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"github.com/dbsmedya/goask/internal/cache"
	"github.com/dbsmedya/goask/internal/config"
	"github.com/dbsmedya/goask/internal/database"
	"github.com/dbsmedya/goask/internal/dispatch"
	"github.com/dbsmedya/goask/internal/embed"
	"github.com/dbsmedya/goask/internal/index"
	"github.com/dbsmedya/goask/internal/llm"
	"github.com/dbsmedya/goask/internal/lock"
	"github.com/dbsmedya/goask/internal/logger"
	"github.com/dbsmedya/goask/internal/rag"
	"github.com/dbsmedya/goask/internal/retrieval"
	"github.com/dbsmedya/goask/internal/source"
)

// App is an Orchestrator wired from configuration, together with the
// components the CLI uses directly.
type App struct {
	*Orchestrator

	Config    *config.Config
	Extractor *source.Extractor
	Retriever *retrieval.Retriever
	Store     index.Store
	Cache     *cache.Cache // nil when caching is disabled
	DB        *database.Manager
}

// Build connects to the configured sources and wires every component.
// The caller must Close the App.
func Build(ctx context.Context, cfg *config.Config, log *logger.Logger) (_ *App, err error) {
	if log == nil {
		log = logger.NewDefault()
	}

	app := &App{Config: cfg, DB: database.NewManager(cfg)}
	defer func() {
		if err != nil {
			app.Close()
		}
	}()

	if err := app.DB.Connect(ctx); err != nil {
		return nil, err
	}

	connectors, err := source.FromConfig(cfg, app.DB, log)
	if err != nil {
		return nil, err
	}
	app.Extractor = source.NewExtractor(connectors, cfg.Extraction.Concurrency, cfg.Extraction.Strict, log)

	embedder, err := embed.New(cfg.Embedding)
	if err != nil {
		return nil, err
	}
	app.Store, err = index.Open(cfg.Index)
	if err != nil {
		return nil, fmt.Errorf("failed to open index: %w", err)
	}
	indexer := retrieval.NewIndexer(embedder, app.Store, cfg.Embedding.BatchSize, log)
	app.Retriever = retrieval.NewRetriever(embedder, app.Store, cfg.Retrieval.TopK, log)

	var agentCache rag.Cache
	if cfg.Cache.Enabled {
		app.Cache, err = cache.Open(cfg.Cache.Path, cfg.Cache.TTL)
		if err != nil {
			return nil, fmt.Errorf("failed to open cache: %w", err)
		}
		agentCache = app.Cache
	}

	generator, err := llm.New(cfg.LLM, log)
	if err != nil {
		return nil, err
	}
	agent := rag.NewAgent(app.Retriever, generator, agentCache, nil, log)

	dispatcher, err := dispatch.New(app.DB.MySQL, app.DB.Postgres, cfg.CSV, cfg.Dispatch, log)
	if err != nil {
		return nil, err
	}

	deps := Deps{
		Extractor:       app.Extractor,
		Indexer:         indexer,
		Index:           app.Store,
		Agent:           agent,
		Dispatcher:      dispatcher,
		InvalidateCache: cfg.Cache.InvalidateOnChange,
	}
	if app.Cache != nil {
		deps.Cache = app.Cache
	}
	if app.DB.MySQL != nil {
		deps.Lock = lock.NewRefreshLock(app.DB.MySQL, cfg.Index.Path)
	}

	app.Orchestrator, err = New(deps, log)
	if err != nil {
		return nil, err
	}
	return app, nil
}

// Close releases every connection and file the App holds.
func (a *App) Close() error {
	if a == nil {
		return nil
	}
	var errs []error
	if a.Cache != nil {
		errs = append(errs, a.Cache.Close())
	}
	if a.Store != nil {
		errs = append(errs, a.Store.Close())
	}
	if a.DB != nil {
		errs = append(errs, a.DB.Close())
	}
	return errors.Join(errs...)
}
