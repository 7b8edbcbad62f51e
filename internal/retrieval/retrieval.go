// Package retrieval builds the vector index from data items and finds the
// items most relevant to a query.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dbsmedya/goask/internal/embed"
	"github.com/dbsmedya/goask/internal/index"
	"github.com/dbsmedya/goask/internal/logger"
	"github.com/dbsmedya/goask/internal/types"
)

// DefaultTopK is the number of documents retrieved when k is not positive.
const DefaultTopK = 5

// ErrNothingToIndex is returned when Index is called without items.
var ErrNothingToIndex = errors.New("no data items to index")

// Document is one retrieved data item.
type Document struct {
	// Content is the item's sample data as JSON.
	Content string          `json:"content"`
	Source  types.SourceRef `json:"source"`
}

// IndexResult describes what an Index call did.
type IndexResult struct {
	Changed bool // false when the saved index already matched the items
	Count   int
	Meta    index.Meta
}

// Indexer embeds data items and saves them in a store.
type Indexer struct {
	embedder  embed.Embedder
	store     index.Store
	batchSize int
	log       *logger.Logger
	now       func() time.Time
}

// NewIndexer creates an Indexer. A nil log discards output.
func NewIndexer(e embed.Embedder, s index.Store, batchSize int, log *logger.Logger) *Indexer {
	if log == nil {
		log = logger.NewNop()
	}
	return &Indexer{
		embedder:  e,
		store:     s,
		batchSize: batchSize,
		log:       log.WithComponent("indexer"),
		now:       time.Now,
	}
}

// Index embeds and saves items unless the saved index was built from the
// same items with the same model. force always rebuilds.
func (ix *Indexer) Index(ctx context.Context, items []types.DataItem, force bool) (*IndexResult, error) {
	if len(items) == 0 {
		return nil, ErrNothingToIndex
	}

	// The configured dimensions are part of the model identity: the same
	// model may be asked for shorter vectors.
	modelID := fmt.Sprintf("%s@%d", ix.embedder.Model(), ix.embedder.Dimensions())
	fingerprint := index.Fingerprint(items, ix.embedder.Name(), modelID)

	if !force {
		meta, err := ix.store.Meta(ctx)
		switch {
		case err == nil:
			if meta.Fingerprint == fingerprint {
				ix.log.Debugw("Index is up to date", "items", meta.Count, "fingerprint", short(fingerprint))
				return &IndexResult{Changed: false, Count: meta.Count, Meta: meta}, nil
			}
		case errors.Is(err, index.ErrIndexNotFound):
		case errors.Is(err, index.ErrCorruptIndex):
			ix.log.Warnw("Saved index is unreadable, rebuilding", "error", err)
		default:
			return nil, fmt.Errorf("failed to read index meta: %w", err)
		}
	}

	texts := make([]string, len(items))
	for i, item := range items {
		texts[i] = item.Text()
	}

	start := ix.now()
	vecs, err := embed.EmbedBatched(ctx, ix.embedder, texts, ix.batchSize)
	if err != nil {
		return nil, fmt.Errorf("failed to embed data items: %w", err)
	}
	embed.NormalizeAll(vecs)

	dims := len(vecs[0])
	entries := make([]index.Entry, len(items))
	for i, item := range items {
		entries[i] = index.Entry{Item: item, Vector: vecs[i]}
	}

	meta := index.Meta{
		Fingerprint: fingerprint,
		Provider:    ix.embedder.Name(),
		Model:       ix.embedder.Model(),
		Dimensions:  dims,
		Count:       len(entries),
		BuiltAt:     ix.now().UTC(),
	}
	if err := ix.store.Save(ctx, entries, meta); err != nil {
		return nil, fmt.Errorf("failed to save index: %w", err)
	}

	ix.log.Infow("Index built",
		"items", len(entries),
		"dimensions", dims,
		"model", meta.Model,
		"duration", ix.now().Sub(start),
	)
	return &IndexResult{Changed: true, Count: len(entries), Meta: meta}, nil
}

// Retriever finds the data items closest to a query.
type Retriever struct {
	embedder embed.Embedder
	store    index.Store
	topK     int
	log      *logger.Logger
}

// NewRetriever creates a Retriever returning topK documents by default.
func NewRetriever(e embed.Embedder, s index.Store, topK int, log *logger.Logger) *Retriever {
	if topK <= 0 {
		topK = DefaultTopK
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Retriever{embedder: e, store: s, topK: topK, log: log.WithComponent("retriever")}
}

// Retrieve returns up to k documents, best first. k <= 0 uses the default.
func (r *Retriever) Retrieve(ctx context.Context, query string, k int) ([]Document, error) {
	if k <= 0 {
		k = r.topK
	}

	vec, err := embed.EmbedQuery(ctx, r.embedder, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	embed.Normalize(vec)

	hits, err := r.store.Search(ctx, vec, k)
	if err != nil {
		return nil, err
	}

	docs := make([]Document, len(hits))
	for i, h := range hits {
		docs[i] = Document{
			Content: h.Item.SampleJSON(),
			Source:  h.Item.Ref(h.Score),
		}
	}
	r.log.Debugw("Retrieved documents", "query", query, "k", k, "found", len(docs))
	return docs, nil
}

func short(fingerprint string) string {
	if len(fingerprint) > 12 {
		return fingerprint[:12]
	}
	return fingerprint
}
