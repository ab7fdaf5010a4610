package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the callsight service configuration. It is loaded once at
// startup and never re-read.
type Config struct {
	HTTP       HTTPConfig       `yaml:"http"`
	Database   DatabaseConfig   `yaml:"database"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Collection CollectionConfig `yaml:"collection"`
	Ingest     IngestConfig     `yaml:"ingest"`
	App        AppConfig        `yaml:"app"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig holds document store connection settings.
// Connect budget is short, read budget longer: a query that exceeds the
// read budget fails outright, it is not retried.
type DatabaseConfig struct {
	Addrs             []string `yaml:"addrs"`
	Username          string   `yaml:"username"`
	Password          string   `yaml:"password"`
	ConnectTimeoutSec int      `yaml:"connect_timeout_sec"`
	ReadTimeoutSec    int      `yaml:"read_timeout_sec"`
	ReadinessTimeout  int      `yaml:"readiness_timeout_sec"`
}

// EmbeddingConfig holds the embedding provider settings (OpenAI-compatible API).
type EmbeddingConfig struct {
	APIKey     string `yaml:"api_key"`
	BaseURL    string `yaml:"base_url"`
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
}

// CollectionConfig holds the sentence collection and index settings.
type CollectionConfig struct {
	Name            string `yaml:"name"`
	HNSWM           int    `yaml:"hnsw_m"`
	HNSWEFConstruct int    `yaml:"hnsw_ef_construction"`
	HNSWEFRuntime   int    `yaml:"hnsw_ef_runtime"`
	Rerank          bool   `yaml:"rerank"`
	RerankFactor    int    `yaml:"rerank_factor"` // candidate oversampling multiplier
}

// IngestConfig holds the ingestion job settings.
type IngestConfig struct {
	SentencesPath string `yaml:"sentences_path"` // sentence-level parquet dataset
	MetaPath      string `yaml:"meta_path"`      // transcript-level metadata parquet
	BatchSize     int    `yaml:"batch_size"`     // rows per bulk write
	MaxRecords    int    `yaml:"max_records"`    // index size cap, 0 = unlimited
}

// AppConfig holds presentation-layer assets.
type AppConfig struct {
	BackgroundPath string `yaml:"background_path"` // static background markdown
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 30
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.ConnectTimeoutSec <= 0 {
		c.Database.ConnectTimeoutSec = 5
	}
	if c.Database.ReadTimeoutSec <= 0 {
		c.Database.ReadTimeoutSec = 15
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Collection.Name == "" {
		c.Collection.Name = "sentences"
	}
	if c.Collection.HNSWM <= 0 {
		c.Collection.HNSWM = 64
	}
	if c.Collection.HNSWEFConstruct <= 0 {
		c.Collection.HNSWEFConstruct = 512
	}
	if c.Collection.HNSWEFRuntime <= 0 {
		c.Collection.HNSWEFRuntime = 512
	}
	if c.Collection.RerankFactor <= 0 {
		c.Collection.RerankFactor = 3
	}
	if c.Ingest.BatchSize <= 0 {
		c.Ingest.BatchSize = 100
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if len(c.Database.Addrs) == 0 {
		return fmt.Errorf("database.addrs is required")
	}
	if c.Ingest.MaxRecords < 0 {
		return fmt.Errorf("ingest.max_records must not be negative, got %d", c.Ingest.MaxRecords)
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
