// Package orchestrator ties extraction, indexing, generation and dispatch
// together into the two operations goask exposes: Refresh and Ask.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dbsmedya/goask/internal/answer"
	"github.com/dbsmedya/goask/internal/dispatch"
	"github.com/dbsmedya/goask/internal/index"
	"github.com/dbsmedya/goask/internal/lock"
	"github.com/dbsmedya/goask/internal/logger"
	"github.com/dbsmedya/goask/internal/rag"
	"github.com/dbsmedya/goask/internal/retrieval"
	"github.com/dbsmedya/goask/internal/types"
)

// Extractor scans the configured data sources.
type Extractor interface {
	Extract(ctx context.Context) ([]types.DataItem, *types.ExtractionStats, error)
}

// Indexer embeds data items into the vector index.
type Indexer interface {
	Index(ctx context.Context, items []types.DataItem, force bool) (*retrieval.IndexResult, error)
}

// IndexState reports on the saved index and can drop it.
type IndexState interface {
	Meta(ctx context.Context) (index.Meta, error)
	Delete(ctx context.Context) error
}

// Agent turns a question into a raw model answer.
type Agent interface {
	RunWithOptions(ctx context.Context, query string, opts rag.Options) (*rag.Response, error)
}

// Dispatcher runs parsed answers.
type Dispatcher interface {
	Dispatch(ctx context.Context, ans answer.Answer, sources []types.SourceRef) (*dispatch.Result, error)
}

// CacheClearer drops cached answers.
type CacheClearer interface {
	Clear(ctx context.Context) (int64, error)
}

// Locker serializes refreshes across processes.
type Locker interface {
	WithLock(ctx context.Context, timeoutSeconds int, fn func() error) error
	IsUsed(ctx context.Context) (bool, error)
	LockName() string
}

// Deps are the components an Orchestrator drives. Cache and Lock are optional.
type Deps struct {
	Extractor  Extractor
	Indexer    Indexer
	Index      IndexState
	Agent      Agent
	Dispatcher Dispatcher
	Cache      CacheClearer
	Lock       Locker

	// InvalidateCache clears the cache whenever a refresh changed the index.
	InvalidateCache bool
}

// RefreshResult describes one Refresh.
type RefreshResult struct {
	Stats        *types.ExtractionStats
	Index        *retrieval.IndexResult
	CacheCleared int64
	Duration     time.Duration
}

// AskOptions tune a single Ask.
type AskOptions struct {
	TopK    int
	NoCache bool
	Refresh bool // re-extract and re-index before answering
}

// Result is the answer to a question.
type Result struct {
	RequestID    string            `json:"request_id"`
	Query        string            `json:"query"`
	Type         answer.Type       `json:"type"`
	Statement    string            `json:"statement,omitempty"`
	Target       string            `json:"target,omitempty"`
	Executed     bool              `json:"executed"`
	Columns      []string          `json:"columns,omitempty"`
	Rows         [][]any           `json:"rows,omitempty"`
	Truncated    bool              `json:"truncated,omitempty"`
	RowsAffected int64             `json:"rows_affected,omitempty"`
	Sources      []types.SourceRef `json:"sources"`
	Cached       bool              `json:"cached"`
	Duration     time.Duration     `json:"duration"`
}

// Orchestrator coordinates the pipeline. It is safe for concurrent use.
type Orchestrator struct {
	deps Deps
	log  *logger.Logger
	mu   sync.Mutex // serializes Refresh within the process
}

// New creates an Orchestrator.
func New(deps Deps, log *logger.Logger) (*Orchestrator, error) {
	switch {
	case deps.Extractor == nil:
		return nil, fmt.Errorf("extractor is nil")
	case deps.Indexer == nil:
		return nil, fmt.Errorf("indexer is nil")
	case deps.Index == nil:
		return nil, fmt.Errorf("index state is nil")
	case deps.Agent == nil:
		return nil, fmt.Errorf("agent is nil")
	case deps.Dispatcher == nil:
		return nil, fmt.Errorf("dispatcher is nil")
	}
	if log == nil {
		log = logger.NewDefault()
	}
	return &Orchestrator{deps: deps, log: log.WithComponent("orchestrator")}, nil
}

// Refresh extracts every source and updates the index. The index is only
// rebuilt when the extracted catalog changed, unless force is set.
func (o *Orchestrator) Refresh(ctx context.Context, force bool) (*RefreshResult, error) {
	var res *RefreshResult
	err := o.exclusive(ctx, func() error {
		var err error
		res, err = o.refresh(ctx, force)
		return err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Reset deletes the saved index and builds it again from scratch.
func (o *Orchestrator) Reset(ctx context.Context) (*RefreshResult, error) {
	var res *RefreshResult
	err := o.exclusive(ctx, func() error {
		if err := o.deps.Index.Delete(ctx); err != nil {
			return err
		}
		o.log.Infow("Index deleted")
		var err error
		res, err = o.refresh(ctx, true)
		return err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// exclusive runs fn while no other refresh runs in this process or, with a
// Lock, in any other process sharing the index.
func (o *Orchestrator) exclusive(ctx context.Context, fn func() error) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.deps.Lock == nil {
		return fn()
	}
	if used, err := o.deps.Lock.IsUsed(ctx); err != nil {
		o.log.Debugw("Could not check refresh lock", "lock", o.deps.Lock.LockName(), "error", err)
	} else if used {
		o.log.Infow("Refresh in progress by another instance, waiting",
			"lock", o.deps.Lock.LockName(), "timeout_seconds", lock.RefreshTimeout)
	}
	return o.deps.Lock.WithLock(ctx, lock.RefreshTimeout, fn)
}

func (o *Orchestrator) refresh(ctx context.Context, force bool) (*RefreshResult, error) {
	start := time.Now()
	o.log.Infow("Refreshing index", "force", force)

	items, stats, err := o.deps.Extractor.Extract(ctx)
	if err != nil {
		return nil, fmt.Errorf("extraction failed: %w", err)
	}

	idx, err := o.deps.Indexer.Index(ctx, items, force)
	if err != nil {
		return nil, err
	}

	res := &RefreshResult{Stats: stats, Index: idx}
	if idx.Changed && o.deps.InvalidateCache && o.deps.Cache != nil {
		n, err := o.deps.Cache.Clear(ctx)
		if err != nil {
			o.log.Warnw("Failed to invalidate answer cache", "error", err)
		} else {
			res.CacheCleared = n
		}
	}
	res.Duration = time.Since(start)

	failed := 0
	if stats != nil {
		failed = stats.SourcesFailed
	}
	o.log.Infow("Refresh complete",
		"items", idx.Count,
		"changed", idx.Changed,
		"sources_failed", failed,
		"cache_cleared", res.CacheCleared,
		"duration", res.Duration,
	)
	return res, nil
}

// EnsureIndex refreshes when no index has been saved yet.
func (o *Orchestrator) EnsureIndex(ctx context.Context) error {
	_, err := o.deps.Index.Meta(ctx)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, index.ErrIndexNotFound), errors.Is(err, index.ErrCorruptIndex):
		o.log.Infow("Index not available, building it", "reason", err)
		_, err = o.Refresh(ctx, false)
		return err
	default:
		return fmt.Errorf("failed to read index: %w", err)
	}
}

// Ask answers a natural-language question.
func (o *Orchestrator) Ask(ctx context.Context, query string, opts AskOptions) (*Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, rag.ErrEmptyQuery
	}

	start := time.Now()
	requestID := uuid.NewString()
	log := o.log.WithRequest(requestID)
	log.Infow("Answering query", "query", query)

	if opts.Refresh {
		if _, err := o.Refresh(ctx, false); err != nil {
			return nil, err
		}
	} else if err := o.EnsureIndex(ctx); err != nil {
		return nil, err
	}

	resp, err := o.deps.Agent.RunWithOptions(ctx, query, rag.Options{TopK: opts.TopK, NoCache: opts.NoCache})
	if err != nil {
		return nil, err
	}

	ans, err := answer.Parse(resp.Answer)
	if err != nil {
		log.Warnw("Model answer could not be parsed", "answer", resp.Answer, "error", err)
		return nil, err
	}

	res := &Result{
		RequestID: requestID,
		Query:     query,
		Type:      ans.Type,
		Statement: ans.Query,
		Sources:   resp.Sources,
		Cached:    resp.Cached,
	}

	out, err := o.deps.Dispatcher.Dispatch(ctx, ans, resp.Sources)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", requestID, err)
	}
	if out != nil {
		res.Statement = out.Statement
		res.Target = out.Target
		res.Executed = out.Executed
		res.Columns = out.Columns
		res.Rows = out.Rows
		res.Truncated = out.Truncated
		res.RowsAffected = out.RowsAffected
	}
	res.Duration = time.Since(start)

	log.Infow("Query answered",
		"type", res.Type,
		"cached", res.Cached,
		"rows", len(res.Rows),
		"duration", res.Duration,
	)
	return res, nil
}
