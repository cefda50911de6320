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

// Checkpoint drivers.
const (
	CheckpointNone  = "none"
	CheckpointFile  = "file"
	CheckpointRedis = "redis"
)

// Config holds the moviedex configuration.
type Config struct {
	Elastic    ElasticConfig    `yaml:"elastic"`
	Index      IndexConfig      `yaml:"index"`
	Ingest     IngestConfig     `yaml:"ingest"`
	Update     UpdateConfig     `yaml:"update"`
	Search     SearchConfig     `yaml:"search"`
	Checkpoint CheckpointConfig `yaml:"checkpoint"`
	Redis      RedisConfig      `yaml:"redis"`
	Data       DataConfig       `yaml:"data"`
	HTTP       HTTPConfig       `yaml:"http"`
	Auth       AuthConfig       `yaml:"auth"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// ElasticConfig holds Elasticsearch connection settings.
type ElasticConfig struct {
	Addresses        []string `yaml:"addresses"`
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	APIKey           string   `yaml:"api_key"`
	CACert           string   `yaml:"ca_cert"`
	Fingerprint      string   `yaml:"fingerprint"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// IndexConfig names the target index.
type IndexConfig struct {
	Name string `yaml:"name"`
}

// IngestConfig holds bulk ingestion settings.
type IngestConfig struct {
	BatchSize int `yaml:"batch_size"`
}

// UpdateConfig holds incremental update settings.
type UpdateConfig struct {
	ScriptID        string `yaml:"script_id"`
	RetryOnConflict int    `yaml:"retry_on_conflict"`
	Workers         int    `yaml:"workers"`
	ProgressEvery   int    `yaml:"progress_every"`
}

// SearchConfig holds query defaults.
type SearchConfig struct {
	DefaultSize int `yaml:"default_size"`
}

// CheckpointConfig selects where update cursors are kept.
type CheckpointConfig struct {
	Driver    string `yaml:"driver"` // none, file, redis (default: none)
	Dir       string `yaml:"dir"`
	KeyPrefix string `yaml:"key_prefix"`
	TTLSec    int    `yaml:"ttl_sec"` // 0 = no expiry
	SaveEvery int    `yaml:"save_every"`
}

// RedisConfig holds the checkpoint KV connection.
type RedisConfig struct {
	Addrs    []string `yaml:"addrs"`
	Username string   `yaml:"username"`
	Password string   `yaml:"password"`
	DB       int      `yaml:"db"`
}

// DataConfig points at the MovieLens CSV files.
type DataConfig struct {
	Movies  string `yaml:"movies"`
	Ratings string `yaml:"ratings"`
	Tags    string `yaml:"tags"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	return LoadFile(findConfigPath(env))
}

// LoadFile reads configuration from an explicit path.
func LoadFile(path string) (Config, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes YAML, expands ${VAR} references, applies defaults and validates.
func Parse(data []byte) (Config, error) {
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

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if len(c.Elastic.Addresses) == 0 {
		c.Elastic.Addresses = []string{"http://localhost:9200"}
	}
	if c.Elastic.ReadinessTimeout <= 0 {
		c.Elastic.ReadinessTimeout = 30
	}
	if c.Index.Name == "" {
		c.Index.Name = "movies"
	}
	if c.Ingest.BatchSize <= 0 {
		c.Ingest.BatchSize = 1000
	}
	if c.Update.ScriptID == "" {
		c.Update.ScriptID = "append-to-collection"
	}
	if c.Update.RetryOnConflict <= 0 {
		c.Update.RetryOnConflict = 3
	}
	if c.Update.Workers <= 0 {
		c.Update.Workers = 1
	}
	if c.Update.ProgressEvery <= 0 {
		c.Update.ProgressEvery = 1000
	}
	if c.Search.DefaultSize <= 0 {
		c.Search.DefaultSize = 10
	}
	if c.Checkpoint.Driver == "" {
		c.Checkpoint.Driver = CheckpointNone
	}
	if c.Checkpoint.Dir == "" {
		c.Checkpoint.Dir = ".moviedex"
	}
	if c.Checkpoint.KeyPrefix == "" {
		c.Checkpoint.KeyPrefix = "moviedex:"
	}
	if c.Checkpoint.SaveEvery <= 0 {
		c.Checkpoint.SaveEvery = 1000
	}
	if c.Data.Movies == "" {
		c.Data.Movies = "data/movies.csv"
	}
	if c.Data.Ratings == "" {
		c.Data.Ratings = "data/ratings.csv"
	}
	if c.Data.Tags == "" {
		c.Data.Tags = "data/tags.csv"
	}
	if c.HTTP.Port == 0 {
		c.HTTP.Port = 8080
	}
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 10
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if c.Index.Name != strings.ToLower(c.Index.Name) {
		return fmt.Errorf("index.name must be lowercase, got %q", c.Index.Name)
	}
	if c.Elastic.CACert != "" && c.Elastic.Fingerprint != "" {
		return fmt.Errorf("elastic.ca_cert and elastic.fingerprint are mutually exclusive")
	}
	if c.Checkpoint.TTLSec < 0 {
		return fmt.Errorf("checkpoint.ttl_sec must not be negative, got %d", c.Checkpoint.TTLSec)
	}
	switch c.Checkpoint.Driver {
	case CheckpointNone, CheckpointFile:
		// ok
	case CheckpointRedis:
		if len(c.Redis.Addrs) == 0 {
			return fmt.Errorf("redis.addrs is required for checkpoint.driver %q", CheckpointRedis)
		}
	default:
		return fmt.Errorf(
			"checkpoint.driver must be %q, %q or %q, got %q",
			CheckpointNone, CheckpointFile, CheckpointRedis, c.Checkpoint.Driver,
		)
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
