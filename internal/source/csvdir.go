package source

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/text/encoding"

	"github.com/dbsmedya/goask/internal/config"
	"github.com/dbsmedya/goask/internal/logger"
	"github.com/dbsmedya/goask/internal/sqlutil"
	"github.com/dbsmedya/goask/internal/types"
)

// CSVDir extracts every *.csv file of a directory. Each file becomes a
// table named after the file.
type CSVDir struct {
	dir        string
	enc        encoding.Encoding
	sampleRows int
	log        *logger.Logger
}

// NewCSVDir creates a CSV directory connector.
func NewCSVDir(cfg config.CSVConfig, log *logger.Logger) (*CSVDir, error) {
	enc, err := LookupEncoding(cfg.Encoding)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &CSVDir{
		dir:        cfg.Directory,
		enc:        enc,
		sampleRows: sampleRows(cfg.MaxSampleRows),
		log:        log.WithSource("csv"),
	}, nil
}

// Name returns "csv".
func (c *CSVDir) Name() string { return "csv" }

// Extract samples every CSV file. Unreadable files are logged and skipped.
func (c *CSVDir) Extract(ctx context.Context) ([]types.DataItem, error) {
	files, err := ListCSVFiles(c.dir)
	if err != nil {
		return nil, err
	}

	var items []types.DataItem
	for _, name := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		log := c.log.WithTable(name)

		sample, err := c.sampleFile(filepath.Join(c.dir, name))
		if err != nil {
			log.Warnw("Skipping unreadable CSV file", "error", err)
			continue
		}
		if sample.Malformed != nil {
			log.Warnw("Malformed CSV row, sampling stopped early", "rows", len(sample.Rows), "error", sample.Malformed)
		}

		items = append(items, types.DataItem{
			Source:     c.Name(),
			Kind:       types.KindCSV,
			Dialect:    types.DialectCSV,
			Database:   c.dir,
			Table:      sqlutil.TableNameForFile(name),
			Schema:     sample.Columns(),
			SampleData: sample.Rows,
		})
	}
	return items, nil
}

func (c *CSVDir) sampleFile(path string) (*CSVSample, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return SampleCSV(f, c.enc, c.sampleRows)
}

// ListCSVFiles returns the names of the *.csv files in dir, sorted.
// The extension match is case-insensitive.
func ListCSVFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read csv directory %s: %w", dir, err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".csv") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}
