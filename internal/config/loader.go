package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// envFiles are loaded before the configuration is read. Existing environment
// variables are never overwritten.
var envFiles = []string{".env", ".env.local"}

// Load reads configuration from the specified file path.
// It supports YAML files and performs environment variable substitution.
// A missing file is not an error: defaults and environment variables are used.
func Load(configPath string) (*Config, error) {
	loadEnvFiles()

	v := viper.New()
	v.SetConfigType("yaml")

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			v.SetConfigFile(configPath)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		} else if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to stat config file: %w", err)
		}
	}

	return LoadFromViper(v)
}

// LoadFromViper creates a Config from an existing Viper instance.
// Useful for testing or when Viper is configured externally.
func LoadFromViper(v *viper.Viper) (*Config, error) {
	cfg := DefaultConfig()

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := substituteEnvVars(cfg); err != nil {
		return nil, fmt.Errorf("failed to substitute environment variables: %w", err)
	}

	applyEnvFallbacks(v, cfg)
	return cfg, nil
}

func loadEnvFiles() {
	for _, f := range envFiles {
		// godotenv.Load does not overwrite variables that are already set.
		_ = godotenv.Load(f)
	}
}

// envVarPattern matches ${VAR_NAME} or $VAR_NAME patterns
var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}|\$([A-Za-z_][A-Za-z0-9_]*)`)

// substituteEnvVars replaces ${VAR_NAME} patterns with environment variable values.
func substituteEnvVars(cfg *Config) error {
	cfg.MySQL.Host = expandEnvVar(cfg.MySQL.Host)
	cfg.MySQL.User = expandEnvVar(cfg.MySQL.User)
	cfg.MySQL.Password = expandEnvVar(cfg.MySQL.Password)
	cfg.MySQL.Database = expandEnvVar(cfg.MySQL.Database)

	cfg.Postgres.DSN = expandEnvVar(cfg.Postgres.DSN)

	cfg.CSV.Directory = expandEnvVar(cfg.CSV.Directory)
	cfg.CSV.DataDirectory = expandEnvVar(cfg.CSV.DataDirectory)

	cfg.ObjectStore.Endpoint = expandEnvVar(cfg.ObjectStore.Endpoint)
	cfg.ObjectStore.Bucket = expandEnvVar(cfg.ObjectStore.Bucket)
	cfg.ObjectStore.AccessKeyID = expandEnvVar(cfg.ObjectStore.AccessKeyID)
	cfg.ObjectStore.SecretAccessKey = expandEnvVar(cfg.ObjectStore.SecretAccessKey)

	cfg.Embedding.APIKey = expandEnvVar(cfg.Embedding.APIKey)
	cfg.Embedding.BaseURL = expandEnvVar(cfg.Embedding.BaseURL)
	cfg.LLM.APIKey = expandEnvVar(cfg.LLM.APIKey)
	cfg.LLM.BaseURL = expandEnvVar(cfg.LLM.BaseURL)

	cfg.Index.Path = expandEnvVar(cfg.Index.Path)
	cfg.Index.DataPath = expandEnvVar(cfg.Index.DataPath)
	cfg.Cache.Path = expandEnvVar(cfg.Cache.Path)

	cfg.Logging.Output = expandEnvVar(cfg.Logging.Output)

	return nil
}

// expandEnvVar expands environment variables in the format ${VAR} or $VAR.
func expandEnvVar(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		var varName string
		if strings.HasPrefix(match, "${") {
			varName = match[2 : len(match)-1]
		} else {
			varName = match[1:]
		}

		if value, exists := os.LookupEnv(varName); exists {
			return value
		}
		// Return original if env var not found
		return match
	})
}

// applyEnvFallbacks fills fields the configuration left unset from the plain
// environment variables deployments already export (MYSQL_HOST,
// GOOGLE_API_KEY, ...). Values from the file always win.
func applyEnvFallbacks(v *viper.Viper, cfg *Config) {
	setIfEmpty(&cfg.MySQL.Host, "MYSQL_HOST")
	setIfEmpty(&cfg.MySQL.User, "MYSQL_USER")
	setIfEmpty(&cfg.MySQL.Password, "MYSQL_PASSWORD")
	if !v.IsSet("mysql.port") {
		if port, err := strconv.Atoi(os.Getenv("MYSQL_PORT")); err == nil && port > 0 {
			cfg.MySQL.Port = port
		}
	}

	setIfEmpty(&cfg.Postgres.DSN, "POSTGRES_DSN")

	setIfEmpty(&cfg.CSV.Directory, "CSV_DIRECTORY")
	setIfEmpty(&cfg.CSV.DataDirectory, "CSV_DATA_DIRECTORY")
	setIfUnset(v, "csv.encoding", &cfg.CSV.Encoding, "CSV_ENCODING")

	setIfEmpty(&cfg.LLM.APIKey, "GOOGLE_API_KEY")
	setIfUnset(v, "llm.model", &cfg.LLM.Model, "MODEL_NAME")
	if cfg.Embedding.APIKey == "" {
		cfg.Embedding.APIKey = cfg.LLM.APIKey
	}
	setIfUnset(v, "embedding.model", &cfg.Embedding.Model, "EMBEDDING_MODEL_NAME", "FAISS_MODEL_NAME")

	setIfUnset(v, "index.path", &cfg.Index.Path, "FAISS_INDEX_FILE")
	setIfUnset(v, "index.data_path", &cfg.Index.DataPath, "FAISS_DATA_FILE")
	setIfUnset(v, "cache.path", &cfg.Cache.Path, "SQLITE_CACHE_FILE")
}

func setIfEmpty(field *string, envVar string) {
	if *field != "" {
		return
	}
	if value, ok := os.LookupEnv(envVar); ok {
		*field = value
	}
}

// setIfUnset replaces a default with the first non-empty envVar, unless the
// configuration sets key explicitly.
func setIfUnset(v *viper.Viper, key string, field *string, envVars ...string) {
	if v.IsSet(key) {
		return
	}
	for _, name := range envVars {
		if value := os.Getenv(name); value != "" {
			*field = value
			return
		}
	}
}

// ApplyOverrides applies CLI flag overrides to the global configuration.
// Only non-zero/non-empty values are applied.
func (c *Config) ApplyOverrides(logLevel, logFormat string, topK int, noCache bool) {
	if logLevel != "" {
		c.Logging.Level = logLevel
	}
	if logFormat != "" {
		c.Logging.Format = logFormat
	}
	if topK > 0 {
		c.Retrieval.TopK = topK
	}
	if noCache {
		c.Cache.Enabled = false
	}
}
