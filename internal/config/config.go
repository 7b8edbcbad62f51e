// Package config provides configuration structures and loading for goask.
package config

import "time"

// Config represents the complete application configuration.
type Config struct {
	MySQL       DatabaseConfig    `yaml:"mysql" mapstructure:"mysql"`
	Postgres    PostgresConfig    `yaml:"postgres" mapstructure:"postgres"`
	CSV         CSVConfig         `yaml:"csv" mapstructure:"csv"`
	ObjectStore ObjectStoreConfig `yaml:"object_store" mapstructure:"object_store"`
	Extraction  ExtractionConfig  `yaml:"extraction" mapstructure:"extraction"`
	Embedding   EmbeddingConfig   `yaml:"embedding" mapstructure:"embedding"`
	Index       IndexConfig       `yaml:"index" mapstructure:"index"`
	Retrieval   RetrievalConfig   `yaml:"retrieval" mapstructure:"retrieval"`
	LLM         LLMConfig         `yaml:"llm" mapstructure:"llm"`
	Cache       CacheConfig       `yaml:"cache" mapstructure:"cache"`
	Dispatch    DispatchConfig    `yaml:"dispatch" mapstructure:"dispatch"`
	Schedule    ScheduleConfig    `yaml:"schedule" mapstructure:"schedule"`
	Logging     LoggingConfig     `yaml:"logging" mapstructure:"logging"`
}

// DatabaseConfig represents a MySQL connection used as a data source and
// as the target of generated SQL statements.
type DatabaseConfig struct {
	Host               string   `yaml:"host" mapstructure:"host"`
	Port               int      `yaml:"port" mapstructure:"port"`
	User               string   `yaml:"user" mapstructure:"user"`
	Password           string   `yaml:"password" mapstructure:"password"`
	Database           string   `yaml:"database" mapstructure:"database"` // optional; empty scans every database
	TLS                string   `yaml:"tls" mapstructure:"tls"`           // disable, preferred, required
	MaxConnections     int      `yaml:"max_connections" mapstructure:"max_connections"`
	MaxIdleConnections int      `yaml:"max_idle_connections" mapstructure:"max_idle_connections"`
	ExcludeDatabases   []string `yaml:"exclude_databases" mapstructure:"exclude_databases"`
}

// Enabled reports whether a MySQL source is configured.
func (d DatabaseConfig) Enabled() bool {
	return d.Host != ""
}

// PostgresConfig represents an optional PostgreSQL data source.
type PostgresConfig struct {
	DSN            string   `yaml:"dsn" mapstructure:"dsn"`
	Schemas        []string `yaml:"schemas" mapstructure:"schemas"` // empty means every non-system schema
	MaxConnections int      `yaml:"max_connections" mapstructure:"max_connections"`
}

// Enabled reports whether a Postgres source is configured.
func (p PostgresConfig) Enabled() bool {
	return p.DSN != ""
}

// CSVConfig represents a directory of CSV files used as a data source.
type CSVConfig struct {
	Directory     string `yaml:"directory" mapstructure:"directory"`
	DataDirectory string `yaml:"data_directory" mapstructure:"data_directory"` // where CSV statements run; defaults to Directory
	Encoding      string `yaml:"encoding" mapstructure:"encoding"`
	MaxSampleRows int    `yaml:"max_sample_rows" mapstructure:"max_sample_rows"`
}

// Enabled reports whether a CSV directory source is configured.
func (c CSVConfig) Enabled() bool {
	return c.Directory != ""
}

// ExecutionDirectory returns the directory CSV statements are executed against.
func (c CSVConfig) ExecutionDirectory() string {
	if c.DataDirectory != "" {
		return c.DataDirectory
	}
	return c.Directory
}

// ObjectStoreConfig represents CSV files stored in an S3-compatible bucket.
type ObjectStoreConfig struct {
	Enabled         bool   `yaml:"enabled" mapstructure:"enabled"`
	Endpoint        string `yaml:"endpoint" mapstructure:"endpoint"`
	Region          string `yaml:"region" mapstructure:"region"`
	Bucket          string `yaml:"bucket" mapstructure:"bucket"`
	Prefix          string `yaml:"prefix" mapstructure:"prefix"`
	AccessKeyID     string `yaml:"access_key_id" mapstructure:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key" mapstructure:"secret_access_key"`
	UseSSL          bool   `yaml:"use_ssl" mapstructure:"use_ssl"`
}

// ExtractionConfig controls how data sources are scanned.
type ExtractionConfig struct {
	Concurrency int  `yaml:"concurrency" mapstructure:"concurrency"`
	Strict      bool `yaml:"strict" mapstructure:"strict"` // abort on the first failing source
}

// EmbeddingConfig configures the embedding provider.
type EmbeddingConfig struct {
	Provider   string `yaml:"provider" mapstructure:"provider"` // gemini, openai, hash
	Model      string `yaml:"model" mapstructure:"model"`
	Dimensions int    `yaml:"dimensions" mapstructure:"dimensions"`
	APIKey     string `yaml:"api_key" mapstructure:"api_key"`
	BaseURL    string `yaml:"base_url" mapstructure:"base_url"`
	BatchSize  int    `yaml:"batch_size" mapstructure:"batch_size"`
}

// IndexConfig configures the vector index.
type IndexConfig struct {
	Backend  string `yaml:"backend" mapstructure:"backend"`     // file or sqlite
	Path     string `yaml:"path" mapstructure:"path"`           // index file, or sqlite database for the sqlite backend
	DataPath string `yaml:"data_path" mapstructure:"data_path"` // parallel JSON data file (file backend)
}

// RetrievalConfig configures similarity search.
type RetrievalConfig struct {
	TopK int `yaml:"top_k" mapstructure:"top_k"`
}

// LLMConfig configures the language model used to translate queries.
type LLMConfig struct {
	Provider   string        `yaml:"provider" mapstructure:"provider"` // gemini or openai
	Model      string        `yaml:"model" mapstructure:"model"`
	APIKey     string        `yaml:"api_key" mapstructure:"api_key"`
	BaseURL    string        `yaml:"base_url" mapstructure:"base_url"`
	Timeout    time.Duration `yaml:"timeout" mapstructure:"timeout"`
	MaxRetries int           `yaml:"max_retries" mapstructure:"max_retries"`
	RateLimit  float64       `yaml:"rate_limit" mapstructure:"rate_limit"` // requests per second
	RateBurst  int           `yaml:"rate_burst" mapstructure:"rate_burst"`
}

// CacheConfig configures the answer cache.
type CacheConfig struct {
	Enabled            bool          `yaml:"enabled" mapstructure:"enabled"`
	Path               string        `yaml:"path" mapstructure:"path"`
	TTL                time.Duration `yaml:"ttl" mapstructure:"ttl"` // zero keeps entries forever
	InvalidateOnChange bool          `yaml:"invalidate_on_change" mapstructure:"invalidate_on_change"`
}

// DispatchConfig controls execution of generated statements.
type DispatchConfig struct {
	Execute     bool `yaml:"execute" mapstructure:"execute"`
	AllowWrites bool `yaml:"allow_writes" mapstructure:"allow_writes"`
	MaxRows     int  `yaml:"max_rows" mapstructure:"max_rows"`
}

// ScheduleConfig configures periodic re-indexing.
type ScheduleConfig struct {
	Reindex string `yaml:"reindex" mapstructure:"reindex"` // cron expression, e.g. "@every 1h"
}

// LoggingConfig represents logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`   // debug, info, warn, error
	Format string `yaml:"format" mapstructure:"format"` // json or text
	Output string `yaml:"output" mapstructure:"output"` // stdout, stderr, or file path
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() *Config {
	return &Config{
		MySQL: DatabaseConfig{
			Port:               3306,
			TLS:                "preferred",
			MaxConnections:     10,
			MaxIdleConnections: 5,
		},
		Postgres: PostgresConfig{
			MaxConnections: 10,
		},
		CSV: CSVConfig{
			Encoding:      "utf-8",
			MaxSampleRows: 10,
		},
		Extraction: ExtractionConfig{
			Concurrency: 4,
		},
		Embedding: EmbeddingConfig{
			Provider:   "gemini",
			Model:      "text-embedding-004",
			Dimensions: 768,
			BatchSize:  32,
		},
		Index: IndexConfig{
			Backend:  "file",
			Path:     "goask.index",
			DataPath: "goask.data.json",
		},
		Retrieval: RetrievalConfig{
			TopK: 5,
		},
		LLM: LLMConfig{
			Provider:   "gemini",
			Model:      "gemini-2.0-flash",
			Timeout:    60 * time.Second,
			MaxRetries: 3,
			RateLimit:  2,
			RateBurst:  2,
		},
		Cache: CacheConfig{
			Enabled: true,
			Path:    "goask_cache.db",
		},
		Dispatch: DispatchConfig{
			Execute: true,
			MaxRows: 1000,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
	}
}

// HasSources reports whether at least one data source is configured.
func (c *Config) HasSources() bool {
	return c.MySQL.Enabled() || c.Postgres.Enabled() || c.CSV.Enabled() || c.ObjectStore.Enabled
}
