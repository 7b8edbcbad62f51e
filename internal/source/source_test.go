package source

import (
	"context"
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbsmedya/goask/internal/config"
	"github.com/dbsmedya/goask/internal/types"
)

type stubConnector struct {
	name  string
	items []types.DataItem
	err   error
	delay time.Duration
}

func (s *stubConnector) Name() string { return s.name }

func (s *stubConnector) Extract(ctx context.Context) ([]types.DataItem, error) {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return s.items, s.err
}

func item(source, table string) types.DataItem {
	return types.DataItem{Source: source, Kind: types.KindSQL, Database: "db", Table: table}
}

func TestExtractorKeepsConnectorOrder(t *testing.T) {
	slow := &stubConnector{name: "mysql", items: []types.DataItem{item("mysql", "a"), item("mysql", "b")}, delay: 50 * time.Millisecond}
	fast := &stubConnector{name: "csv", items: []types.DataItem{item("csv", "c")}}

	items, stats, err := NewExtractor([]Connector{slow, fast}, 2, false, nil).Extract(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, "a", items[0].Table)
	assert.Equal(t, "b", items[1].Table)
	assert.Equal(t, "c", items[2].Table)
	assert.Equal(t, 2, stats.SourcesScanned)
	assert.Equal(t, 0, stats.SourcesFailed)
	assert.Equal(t, 3, stats.ItemsFound)
}

func TestExtractorSkipsFailingSource(t *testing.T) {
	bad := &stubConnector{name: "mysql", err: errors.New("connection refused")}
	good := &stubConnector{name: "csv", items: []types.DataItem{item("csv", "c")}}

	items, stats, err := NewExtractor([]Connector{bad, good}, 1, false, nil).Extract(context.Background())
	require.NoError(t, err)
	assert.Len(t, items, 1)
	assert.Equal(t, 1, stats.SourcesFailed)
}

func TestExtractorStrict(t *testing.T) {
	boom := errors.New("connection refused")
	bad := &stubConnector{name: "mysql", err: boom}
	good := &stubConnector{name: "csv", items: []types.DataItem{item("csv", "c")}}

	_, _, err := NewExtractor([]Connector{bad, good}, 2, true, nil).Extract(context.Background())
	assert.True(t, errors.Is(err, boom))
	assert.Contains(t, err.Error(), "source mysql")
}

func TestExtractorErrors(t *testing.T) {
	_, _, err := NewExtractor(nil, 4, false, nil).Extract(context.Background())
	assert.True(t, errors.Is(err, ErrNoSources))

	empty := &stubConnector{name: "csv"}
	_, _, err = NewExtractor([]Connector{empty}, 4, false, nil).Extract(context.Background())
	assert.True(t, errors.Is(err, ErrNoItems))
}

func TestExtractorDropsDuplicates(t *testing.T) {
	c := &stubConnector{name: "mysql", items: []types.DataItem{item("mysql", "a"), item("mysql", "a")}}
	items, _, err := NewExtractor([]Connector{c}, 1, false, nil).Extract(context.Background())
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

// countingConnector tracks how many Extract calls overlap.
type countingConnector struct {
	name    string
	running *atomic.Int32
	peak    *atomic.Int32
}

func (c *countingConnector) Name() string { return c.name }

func (c *countingConnector) Extract(ctx context.Context) ([]types.DataItem, error) {
	n := c.running.Add(1)
	defer c.running.Add(-1)
	for {
		p := c.peak.Load()
		if n <= p || c.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(20 * time.Millisecond)
	return []types.DataItem{item(c.name, "t")}, nil
}

func TestExtractorConcurrencyLimit(t *testing.T) {
	var running, peak atomic.Int32
	var connectors []Connector
	for _, name := range []string{"a", "b", "c", "d", "e"} {
		connectors = append(connectors, &countingConnector{name: name, running: &running, peak: &peak})
	}

	items, _, err := NewExtractor(connectors, 2, false, nil).Extract(context.Background())
	require.NoError(t, err)
	assert.Len(t, items, 5)
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestFromConfig(t *testing.T) {
	_, err := FromConfig(config.DefaultConfig(), nil, nil)
	assert.True(t, errors.Is(err, ErrNoSources))

	cfg := config.DefaultConfig()
	cfg.CSV.Directory = t.TempDir()
	cfg.ObjectStore = config.ObjectStoreConfig{
		Enabled: true, Endpoint: "localhost:9000", Bucket: "lake",
		AccessKeyID: "k", SecretAccessKey: "s",
	}
	connectors, err := FromConfig(cfg, nil, nil)
	require.NoError(t, err)
	require.Len(t, connectors, 2)
	assert.Equal(t, "csv", connectors[0].Name())
	assert.Equal(t, "s3", connectors[1].Name())

	// MySQL configured but not connected yields no connector.
	cfg = config.DefaultConfig()
	cfg.MySQL.Host = "db.internal"
	_, err = FromConfig(cfg, nil, nil)
	assert.True(t, errors.Is(err, ErrNoSources))

	cfg = config.DefaultConfig()
	cfg.CSV.Directory = filepath.Join(t.TempDir(), "x")
	cfg.CSV.Encoding = "bogus"
	_, err = FromConfig(cfg, nil, nil)
	assert.Error(t, err)
}
