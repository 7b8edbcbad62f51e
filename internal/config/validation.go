package config

import (
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("validation failed:\n  - %s", strings.Join(msgs, "\n  - "))
}

// Validate checks the configuration for required fields and valid values.
func (c *Config) Validate() error {
	var errors ValidationErrors

	if !c.HasSources() {
		errors = append(errors, ValidationError{
			Field:   "sources",
			Message: "at least one of mysql, postgres, csv or object_store must be configured",
		})
	}

	if c.MySQL.Enabled() {
		errors = append(errors, c.validateMySQL()...)
	}
	if c.CSV.Enabled() {
		errors = append(errors, c.validateCSV()...)
	}
	if c.ObjectStore.Enabled {
		errors = append(errors, c.validateObjectStore()...)
	}

	if c.Extraction.Concurrency < 1 {
		errors = append(errors, ValidationError{
			Field:   "extraction.concurrency",
			Message: "concurrency must be at least 1",
		})
	}

	errors = append(errors, c.validateEmbedding()...)
	errors = append(errors, c.validateIndex()...)
	errors = append(errors, c.validateLLM()...)

	if c.Retrieval.TopK < 1 {
		errors = append(errors, ValidationError{
			Field:   "retrieval.top_k",
			Message: "top_k must be at least 1",
		})
	}

	if c.Cache.Enabled && c.Cache.Path == "" {
		errors = append(errors, ValidationError{
			Field:   "cache.path",
			Message: "path is required when the cache is enabled",
		})
	}
	if c.Cache.TTL < 0 {
		errors = append(errors, ValidationError{
			Field:   "cache.ttl",
			Message: "ttl cannot be negative",
		})
	}

	if c.Dispatch.MaxRows < 0 {
		errors = append(errors, ValidationError{
			Field:   "dispatch.max_rows",
			Message: "max_rows cannot be negative",
		})
	}

	if c.Schedule.Reindex != "" {
		if _, err := cron.ParseStandard(c.Schedule.Reindex); err != nil {
			errors = append(errors, ValidationError{
				Field:   "schedule.reindex",
				Message: fmt.Sprintf("invalid cron expression: %v", err),
			})
		}
	}

	errors = append(errors, c.validateLogging()...)

	if len(errors) > 0 {
		return errors
	}
	return nil
}

func (c *Config) validateMySQL() ValidationErrors {
	var errors ValidationErrors

	if c.MySQL.Port <= 0 || c.MySQL.Port > 65535 {
		errors = append(errors, ValidationError{
			Field:   "mysql.port",
			Message: "port must be between 1 and 65535",
		})
	}

	if c.MySQL.User == "" {
		errors = append(errors, ValidationError{
			Field:   "mysql.user",
			Message: "user is required",
		})
	}

	validTLS := map[string]bool{"disable": true, "preferred": true, "required": true, "": true}
	if !validTLS[c.MySQL.TLS] {
		errors = append(errors, ValidationError{
			Field:   "mysql.tls",
			Message: "tls must be 'disable', 'preferred', or 'required'",
		})
	}

	if c.MySQL.MaxConnections < 0 {
		errors = append(errors, ValidationError{
			Field:   "mysql.max_connections",
			Message: "max_connections cannot be negative",
		})
	}

	if c.MySQL.MaxIdleConnections < 0 {
		errors = append(errors, ValidationError{
			Field:   "mysql.max_idle_connections",
			Message: "max_idle_connections cannot be negative",
		})
	}

	return errors
}

func (c *Config) validateCSV() ValidationErrors {
	var errors ValidationErrors

	if c.CSV.MaxSampleRows < 0 {
		errors = append(errors, ValidationError{
			Field:   "csv.max_sample_rows",
			Message: "max_sample_rows cannot be negative",
		})
	}

	return errors
}

func (c *Config) validateObjectStore() ValidationErrors {
	var errors ValidationErrors

	if c.ObjectStore.Endpoint == "" {
		errors = append(errors, ValidationError{
			Field:   "object_store.endpoint",
			Message: "endpoint is required",
		})
	}
	if c.ObjectStore.Bucket == "" {
		errors = append(errors, ValidationError{
			Field:   "object_store.bucket",
			Message: "bucket is required",
		})
	}
	if c.ObjectStore.AccessKeyID == "" || c.ObjectStore.SecretAccessKey == "" {
		errors = append(errors, ValidationError{
			Field:   "object_store.credentials",
			Message: "access_key_id and secret_access_key are required",
		})
	}

	return errors
}

func (c *Config) validateEmbedding() ValidationErrors {
	var errors ValidationErrors

	validProviders := map[string]bool{"gemini": true, "openai": true, "hash": true}
	if !validProviders[c.Embedding.Provider] {
		errors = append(errors, ValidationError{
			Field:   "embedding.provider",
			Message: "provider must be 'gemini', 'openai', or 'hash'",
		})
	}

	if c.Embedding.Provider == "hash" && c.Embedding.Dimensions <= 0 {
		errors = append(errors, ValidationError{
			Field:   "embedding.dimensions",
			Message: "dimensions must be positive for the hash provider",
		})
	}

	if c.Embedding.BatchSize < 1 {
		errors = append(errors, ValidationError{
			Field:   "embedding.batch_size",
			Message: "batch_size must be at least 1",
		})
	}

	return errors
}

func (c *Config) validateIndex() ValidationErrors {
	var errors ValidationErrors

	switch c.Index.Backend {
	case "file":
		if c.Index.Path == "" || c.Index.DataPath == "" {
			errors = append(errors, ValidationError{
				Field:   "index.path",
				Message: "path and data_path are required for the file backend",
			})
		}
	case "sqlite":
		if c.Index.Path == "" {
			errors = append(errors, ValidationError{
				Field:   "index.path",
				Message: "path is required for the sqlite backend",
			})
		}
	default:
		errors = append(errors, ValidationError{
			Field:   "index.backend",
			Message: "backend must be 'file' or 'sqlite'",
		})
	}

	return errors
}

func (c *Config) validateLLM() ValidationErrors {
	var errors ValidationErrors

	validProviders := map[string]bool{"gemini": true, "openai": true}
	if !validProviders[c.LLM.Provider] {
		errors = append(errors, ValidationError{
			Field:   "llm.provider",
			Message: "provider must be 'gemini' or 'openai'",
		})
	}

	if c.LLM.Model == "" {
		errors = append(errors, ValidationError{
			Field:   "llm.model",
			Message: "model is required",
		})
	}

	if c.LLM.MaxRetries < 0 {
		errors = append(errors, ValidationError{
			Field:   "llm.max_retries",
			Message: "max_retries cannot be negative",
		})
	}

	if c.LLM.RateLimit < 0 {
		errors = append(errors, ValidationError{
			Field:   "llm.rate_limit",
			Message: "rate_limit cannot be negative",
		})
	}

	return errors
}

func (c *Config) validateLogging() ValidationErrors {
	var errors ValidationErrors

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Message: "level must be 'debug', 'info', 'warn', or 'error'",
		})
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		errors = append(errors, ValidationError{
			Field:   "logging.format",
			Message: "format must be 'json' or 'text'",
		})
	}

	return errors
}
