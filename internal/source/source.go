// Package source extracts data items (tables and CSV files with their
// schema and sample rows) from the configured data sources.
package source

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/elliotchance/orderedmap/v2"
	"golang.org/x/sync/errgroup"

	"github.com/dbsmedya/goask/internal/logger"
	"github.com/dbsmedya/goask/internal/types"
)

// DefaultSampleRows is the number of sample rows read per table or file.
const DefaultSampleRows = 10

var (
	// ErrNoSources is returned when no data source is configured.
	ErrNoSources = errors.New("no data sources configured")
	// ErrNoItems is returned when every source came back empty.
	ErrNoItems = errors.New("no data items found in any source")
)

// Connector extracts data items from one source.
type Connector interface {
	// Name identifies the connector in logs and in DataItem.Source.
	Name() string
	Extract(ctx context.Context) ([]types.DataItem, error)
}

// Extractor runs several connectors concurrently.
type Extractor struct {
	connectors  []Connector
	concurrency int
	strict      bool
	log         *logger.Logger
}

// NewExtractor creates an Extractor. At most concurrency connectors run at
// once. With strict set, the first failing connector aborts extraction;
// otherwise failures are logged and the connector is skipped.
func NewExtractor(connectors []Connector, concurrency int, strict bool, log *logger.Logger) *Extractor {
	if concurrency <= 0 {
		concurrency = 1
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Extractor{
		connectors:  connectors,
		concurrency: concurrency,
		strict:      strict,
		log:         log.WithComponent("extractor"),
	}
}

// Extract returns the items of every connector, in connector order.
func (e *Extractor) Extract(ctx context.Context) ([]types.DataItem, *types.ExtractionStats, error) {
	if len(e.connectors) == 0 {
		return nil, nil, ErrNoSources
	}

	start := time.Now()
	stats := &types.ExtractionStats{}

	// Slots are created up front so results keep connector order no
	// matter which goroutine finishes first.
	results := orderedmap.NewOrderedMap[string, []types.DataItem]()
	for _, c := range e.connectors {
		results.Set(c.Name(), nil)
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)

	for _, c := range e.connectors {
		g.Go(func() error {
			log := e.log.WithSource(c.Name())
			connStart := time.Now()

			items, err := c.Extract(gctx)

			mu.Lock()
			defer mu.Unlock()
			stats.SourcesScanned++

			if err != nil {
				stats.SourcesFailed++
				if e.strict || ctx.Err() != nil {
					return fmt.Errorf("source %s: %w", c.Name(), err)
				}
				log.Warnw("Source failed, skipping", "error", err)
				return nil
			}

			results.Set(c.Name(), items)
			log.Infow("Source extracted", "items", len(items), "duration", time.Since(connStart))
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, stats, err
	}

	var items []types.DataItem
	seen := make(map[string]bool)
	for el := results.Front(); el != nil; el = el.Next() {
		for _, item := range el.Value {
			id := item.ID()
			if seen[id] {
				e.log.Warnw("Duplicate data item, keeping the first", "item", id)
				continue
			}
			seen[id] = true
			items = append(items, item)
		}
	}

	stats.ItemsFound = len(items)
	stats.Duration = time.Since(start)

	if len(items) == 0 {
		return nil, stats, ErrNoItems
	}

	e.log.Infow("Extraction complete",
		"sources", stats.SourcesScanned,
		"failed", stats.SourcesFailed,
		"items", stats.ItemsFound,
		"duration", stats.Duration,
	)
	return items, stats, nil
}

// sampleRows returns n, or the default when n is not positive.
func sampleRows(n int) int {
	if n <= 0 {
		return DefaultSampleRows
	}
	return n
}
