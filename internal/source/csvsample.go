package source

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/dbsmedya/goask/internal/types"
)

// ErrEmptyCSV is returned for a CSV without a header row.
var ErrEmptyCSV = errors.New("csv has no header row")

// CSVSample is the header and the first rows of a CSV file.
type CSVSample struct {
	Header []string
	Rows   [][]any
	// Malformed is set when sampling stopped at a row that could not be parsed.
	Malformed error
}

// Columns returns the header as schema columns.
func (s *CSVSample) Columns() []types.Column {
	cols := make([]types.Column, len(s.Header))
	for i, h := range s.Header {
		cols[i] = types.Column{Name: h}
	}
	return cols
}

// LookupEncoding resolves an encoding label such as "utf-8", "latin1" or
// "windows-1252". An empty label means UTF-8.
func LookupEncoding(label string) (encoding.Encoding, error) {
	if label == "" {
		return unicode.UTF8, nil
	}
	enc, err := htmlindex.Get(label)
	if err != nil {
		return nil, fmt.Errorf("unknown csv encoding %q: %w", label, err)
	}
	return enc, nil
}

// NewCSVReader decodes r from enc into UTF-8, drops a UTF-8 byte order mark
// and returns a CSV reader that accepts rows of varying width.
func NewCSVReader(r io.Reader, enc encoding.Encoding) *csv.Reader {
	if enc == nil {
		enc = unicode.UTF8
	}
	decoded := bufio.NewReader(transform.NewReader(r, enc.NewDecoder()))
	if bom, err := decoded.Peek(3); err == nil && bytes.Equal(bom, []byte{0xEF, 0xBB, 0xBF}) {
		_, _ = decoded.Discard(3)
	}

	cr := csv.NewReader(decoded)
	cr.FieldsPerRecord = -1
	return cr
}

// SampleCSV reads the header and up to maxRows rows. Sampling stops at the
// first malformed row; the rows read so far are kept and Malformed is set.
// Short rows are padded with nil and long rows truncated to the header.
func SampleCSV(r io.Reader, enc encoding.Encoding, maxRows int) (*CSVSample, error) {
	cr := NewCSVReader(r, enc)

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrEmptyCSV
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read csv header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	sample := &CSVSample{Header: header, Rows: [][]any{}}
	for len(sample.Rows) < maxRows {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			sample.Malformed = err
			break
		}
		sample.Rows = append(sample.Rows, alignRecord(record, len(header)))
	}
	return sample, nil
}

func alignRecord(record []string, width int) []any {
	row := make([]any, width)
	for i := 0; i < width && i < len(record); i++ {
		row[i] = record[i]
	}
	return row
}
