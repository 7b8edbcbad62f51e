package config

import (
	"strings"
	"testing"
)

func validConfig() *Config {
	cfg := DefaultConfig()
	cfg.MySQL.Host = "localhost"
	cfg.MySQL.User = "root"
	cfg.CSV.Directory = "./csv"
	return cfg
}

func TestValidConfig(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Errorf("expected no validation errors, got: %v", err)
	}
}

func TestNoSources(t *testing.T) {
	cfg := DefaultConfig()

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error for missing sources")
	}
	if !strings.Contains(err.Error(), "sources") {
		t.Errorf("expected error to mention sources, got: %v", err)
	}
}

func TestValidationFieldErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"mysql port", func(c *Config) { c.MySQL.Port = 70000 }, "mysql.port"},
		{"mysql user", func(c *Config) { c.MySQL.User = "" }, "mysql.user"},
		{"mysql tls", func(c *Config) { c.MySQL.TLS = "sometimes" }, "mysql.tls"},
		{"mysql max connections", func(c *Config) { c.MySQL.MaxConnections = -1 }, "mysql.max_connections"},
		{"csv sample rows", func(c *Config) { c.CSV.MaxSampleRows = -1 }, "csv.max_sample_rows"},
		{"object store endpoint", func(c *Config) {
			c.ObjectStore = ObjectStoreConfig{Enabled: true, Bucket: "b", AccessKeyID: "a", SecretAccessKey: "s"}
		}, "object_store.endpoint"},
		{"object store credentials", func(c *Config) {
			c.ObjectStore = ObjectStoreConfig{Enabled: true, Endpoint: "minio:9000", Bucket: "b"}
		}, "object_store.credentials"},
		{"concurrency", func(c *Config) { c.Extraction.Concurrency = 0 }, "extraction.concurrency"},
		{"embedding provider", func(c *Config) { c.Embedding.Provider = "faiss" }, "embedding.provider"},
		{"hash dimensions", func(c *Config) {
			c.Embedding.Provider = "hash"
			c.Embedding.Dimensions = 0
		}, "embedding.dimensions"},
		{"batch size", func(c *Config) { c.Embedding.BatchSize = 0 }, "embedding.batch_size"},
		{"index backend", func(c *Config) { c.Index.Backend = "redis" }, "index.backend"},
		{"index data path", func(c *Config) { c.Index.DataPath = "" }, "index.path"},
		{"llm provider", func(c *Config) { c.LLM.Provider = "local" }, "llm.provider"},
		{"llm model", func(c *Config) { c.LLM.Model = "" }, "llm.model"},
		{"llm retries", func(c *Config) { c.LLM.MaxRetries = -1 }, "llm.max_retries"},
		{"llm rate", func(c *Config) { c.LLM.RateLimit = -1 }, "llm.rate_limit"},
		{"top k", func(c *Config) { c.Retrieval.TopK = 0 }, "retrieval.top_k"},
		{"cache path", func(c *Config) { c.Cache.Path = "" }, "cache.path"},
		{"cache ttl", func(c *Config) { c.Cache.TTL = -1 }, "cache.ttl"},
		{"max rows", func(c *Config) { c.Dispatch.MaxRows = -1 }, "dispatch.max_rows"},
		{"cron", func(c *Config) { c.Schedule.Reindex = "every tuesday" }, "schedule.reindex"},
		{"log level", func(c *Config) { c.Logging.Level = "verbose" }, "logging.level"},
		{"log format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if err == nil {
				t.Fatalf("expected validation error for %s", tt.field)
			}
			verrs, ok := err.(ValidationErrors)
			if !ok {
				t.Fatalf("expected ValidationErrors, got %T", err)
			}
			found := false
			for _, e := range verrs {
				if e.Field == tt.field {
					found = true
				}
			}
			if !found {
				t.Errorf("expected error on field %s, got: %v", tt.field, err)
			}
		})
	}
}

func TestDisabledCacheSkipsPathCheck(t *testing.T) {
	cfg := validConfig()
	cfg.Cache.Enabled = false
	cfg.Cache.Path = ""

	if err := cfg.Validate(); err != nil {
		t.Errorf("expected no validation errors, got: %v", err)
	}
}

func TestSQLiteBackendNeedsNoDataPath(t *testing.T) {
	cfg := validConfig()
	cfg.Index.Backend = "sqlite"
	cfg.Index.DataPath = ""

	if err := cfg.Validate(); err != nil {
		t.Errorf("expected no validation errors, got: %v", err)
	}
}

func TestValidCronExpressions(t *testing.T) {
	for _, expr := range []string{"@every 30m", "0 * * * *", "@daily"} {
		cfg := validConfig()
		cfg.Schedule.Reindex = expr
		if err := cfg.Validate(); err != nil {
			t.Errorf("expected %q to validate, got: %v", expr, err)
		}
	}
}

func TestValidationErrorsFormat(t *testing.T) {
	errs := ValidationErrors{
		{Field: "a", Message: "first"},
		{Field: "b", Message: "second"},
	}

	msg := errs.Error()
	if !strings.Contains(msg, "a: first") || !strings.Contains(msg, "b: second") {
		t.Errorf("unexpected error message: %s", msg)
	}
	if (ValidationErrors{}).Error() != "" {
		t.Error("expected empty message for no errors")
	}
}
