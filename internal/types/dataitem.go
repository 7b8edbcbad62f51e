// Package types contains shared types used across multiple packages to avoid import cycles.
package types

import (
	"encoding/json"
	"fmt"
	"time"
)

// Kind identifies how a data item is queried.
type Kind string

const (
	KindSQL Kind = "sql"
	KindCSV Kind = "csv"
)

// Dialect identifies the engine that owns a data item.
type Dialect string

const (
	DialectMySQL    Dialect = "mysql"
	DialectPostgres Dialect = "postgres"
	DialectCSV      Dialect = "csv"
)

// Column is one column of a table or CSV header.
type Column struct {
	Name string `json:"name"`
	Type string `json:"type,omitempty"`
}

// DataItem is a table or CSV file together with its schema and a few sample rows.
type DataItem struct {
	Source     string   `json:"source"` // connector name, e.g. "mysql" or "s3"
	Kind       Kind     `json:"kind"`
	Dialect    Dialect  `json:"dialect"`
	Database   string   `json:"database"` // MySQL database, Postgres schema, CSV directory or bucket/prefix
	Table      string   `json:"table"`
	Schema     []Column `json:"schema"`
	SampleData [][]any  `json:"sample_data"` // rows aligned with Schema
}

// ID returns a stable identifier for the item. Items from different
// connectors never share an ID.
func (d DataItem) ID() string {
	if d.Source != "" {
		return fmt.Sprintf("%s:%s:%s/%s", d.Source, d.Kind, d.Database, d.Table)
	}
	return fmt.Sprintf("%s:%s/%s", d.Kind, d.Database, d.Table)
}

// ColumnNames returns the schema column names in order.
func (d DataItem) ColumnNames() []string {
	names := make([]string, len(d.Schema))
	for i, c := range d.Schema {
		names[i] = c.Name
	}
	return names
}

type itemDocument struct {
	Database   string   `json:"database"`
	Table      string   `json:"table"`
	Kind       Kind     `json:"kind"`
	Schema     []Column `json:"schema"`
	SampleData [][]any  `json:"sample_data"`
}

// Text returns the JSON document that is embedded for similarity search.
func (d DataItem) Text() string {
	b, err := json.Marshal(itemDocument{
		Database:   d.Database,
		Table:      d.Table,
		Kind:       d.Kind,
		Schema:     d.Schema,
		SampleData: nonNilRows(d.SampleData),
	})
	if err != nil {
		// Sample data is normalized at extraction time, so this only happens
		// for hand-built items carrying unsupported values.
		return fmt.Sprintf(`{"database":%q,"table":%q}`, d.Database, d.Table)
	}
	return string(b)
}

// SampleJSON returns the sample rows as a JSON array of column-keyed objects.
func (d DataItem) SampleJSON() string {
	rows := make([]map[string]any, 0, len(d.SampleData))
	for _, row := range d.SampleData {
		obj := make(map[string]any, len(row))
		for i, v := range row {
			if i < len(d.Schema) {
				obj[d.Schema[i].Name] = v
			}
		}
		rows = append(rows, obj)
	}
	b, err := json.Marshal(rows)
	if err != nil {
		return "[]"
	}
	return string(b)
}

// Ref builds the source reference returned with answers.
func (d DataItem) Ref(score float32) SourceRef {
	return SourceRef{
		Database: d.Database,
		Table:    d.Table,
		Schema:   d.Schema,
		Kind:     d.Kind,
		Dialect:  d.Dialect,
		Source:   d.Source,
		Score:    score,
	}
}

func nonNilRows(rows [][]any) [][]any {
	if rows == nil {
		return [][]any{}
	}
	return rows
}

// SourceRef is the metadata returned with every retrieved document.
type SourceRef struct {
	Database string   `json:"database"`
	Table    string   `json:"table"`
	Schema   []Column `json:"schema"`
	Kind     Kind     `json:"context"`
	Dialect  Dialect  `json:"dialect"`
	Source   string   `json:"source,omitempty"`
	Score    float32  `json:"score"`
}

// ExtractionStats summarizes one extraction run.
type ExtractionStats struct {
	SourcesScanned int
	SourcesFailed  int
	ItemsFound     int
	Duration       time.Duration
}
