// Package rag runs the retrieval-augmented generation step: it finds the
// data items relevant to a question and asks the model for a statement.
package rag

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"text/template"

	"golang.org/x/sync/singleflight"

	"github.com/dbsmedya/goask/internal/answer"
	"github.com/dbsmedya/goask/internal/cache"
	"github.com/dbsmedya/goask/internal/llm"
	"github.com/dbsmedya/goask/internal/logger"
	"github.com/dbsmedya/goask/internal/retrieval"
	"github.com/dbsmedya/goask/internal/types"
)

// ErrEmptyQuery is returned for a blank question.
var ErrEmptyQuery = errors.New("query is empty")

// Retriever finds documents for a question.
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) ([]retrieval.Document, error)
}

// Cache stores answers by exact question text.
type Cache interface {
	Get(ctx context.Context, query string) (cache.Entry, bool, error)
	Put(ctx context.Context, query, reply string, sources []types.SourceRef) error
}

// Response is the model's raw answer and the sources it was given.
type Response struct {
	Answer  string            `json:"answer"`
	Sources []types.SourceRef `json:"sources"`
	Cached  bool              `json:"cached"`
}

// Options tune a single Run.
type Options struct {
	TopK    int  // zero uses the retriever default
	NoCache bool // skip the cache lookup; the fresh answer is still stored
}

// Agent answers questions from retrieved context.
type Agent struct {
	retriever Retriever
	generator llm.Generator
	cache     Cache
	prompt    *template.Template
	log       *logger.Logger
	group     singleflight.Group
}

// NewAgent creates an Agent. cache may be nil to disable caching, and a nil
// prompt uses DefaultTemplate.
func NewAgent(r Retriever, g llm.Generator, c Cache, prompt *template.Template, log *logger.Logger) *Agent {
	if prompt == nil {
		prompt = DefaultTemplate()
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Agent{
		retriever: r,
		generator: g,
		cache:     c,
		prompt:    prompt,
		log:       log.WithComponent("rag"),
	}
}

// Run answers query with default options.
func (a *Agent) Run(ctx context.Context, query string) (*Response, error) {
	return a.RunWithOptions(ctx, query, Options{})
}

// RunWithOptions answers query. Concurrent calls for the same query and
// options share one pipeline run.
func (a *Agent) RunWithOptions(ctx context.Context, query string, opts Options) (*Response, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}

	key := fmt.Sprintf("%d|%t|%s", opts.TopK, opts.NoCache, query)
	v, err, shared := a.group.Do(key, func() (interface{}, error) {
		return a.run(ctx, query, opts)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		a.log.Debugw("Shared in-flight answer", "query", query)
	}
	resp := *v.(*Response)
	return &resp, nil
}

func (a *Agent) run(ctx context.Context, query string, opts Options) (*Response, error) {
	if a.cache != nil && !opts.NoCache {
		entry, ok, err := a.cache.Get(ctx, query)
		switch {
		case err != nil:
			a.log.Warnw("Cache lookup failed, continuing without cache", "error", err)
		case ok:
			a.log.Debugw("Cache hit", "query", query)
			return &Response{Answer: entry.Answer, Sources: entry.Sources, Cached: true}, nil
		}
	}

	docs, err := a.retriever.Retrieve(ctx, query, opts.TopK)
	if err != nil {
		return nil, fmt.Errorf("retrieval failed: %w", err)
	}

	prompt, err := a.render(query, docs)
	if err != nil {
		return nil, err
	}

	reply, err := a.generator.Generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("generation failed: %w", err)
	}

	sources := make([]types.SourceRef, len(docs))
	for i, d := range docs {
		sources[i] = d.Source
	}

	// Unparseable replies are returned but never cached, so the next
	// attempt asks the model again.
	if _, perr := answer.Parse(reply); perr != nil {
		a.log.Warnw("Not caching unparseable answer", "query", query, "error", perr)
	} else if a.cache != nil {
		if err := a.cache.Put(ctx, query, reply, sources); err != nil {
			a.log.Warnw("Failed to cache answer", "error", err)
		}
	}

	a.log.Infow("Answer generated", "query", query, "documents", len(docs))
	return &Response{Answer: reply, Sources: sources}, nil
}

// render fills the prompt template for query and docs.
func (a *Agent) render(query string, docs []retrieval.Document) (string, error) {
	var buf bytes.Buffer
	if err := a.prompt.Execute(&buf, promptData{Context: BuildContext(docs), Question: query}); err != nil {
		return "", fmt.Errorf("failed to render prompt: %w", err)
	}
	return buf.String(), nil
}
