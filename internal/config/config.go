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

// Config holds the presto API configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Service   ServiceConfig   `yaml:"service"`
	Store     StoreConfig     `yaml:"store"`
	Cache     CacheConfig     `yaml:"cache"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Resolvers ResolversConfig `yaml:"resolvers"`
	Auth      AuthConfig      `yaml:"auth"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// AuthConfig holds API authentication settings. Keys guard mutating
// endpoints only; manifest reads are public.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
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

// ServiceConfig holds the public URLs baked into emitted manifests.
type ServiceConfig struct {
	BaseURL         string `yaml:"base_url"`
	ImageServiceURL string `yaml:"image_service_url"`
}

// StoreConfig holds durable blob store settings.
type StoreConfig struct {
	Driver           string      `yaml:"driver"` // s3, redis (default: s3)
	ReadinessTimeout int         `yaml:"readiness_timeout_sec"`
	S3               S3Config    `yaml:"s3"`
	Redis            RedisConfig `yaml:"redis"`
}

// S3Config holds S3 driver settings. Endpoint is optional and points
// the client at an S3-compatible store such as MinIO.
type S3Config struct {
	Bucket   string `yaml:"bucket"`
	Region   string `yaml:"region"`
	Endpoint string `yaml:"endpoint"`
	Prefix   string `yaml:"prefix"`
}

// RedisConfig holds Redis driver settings.
type RedisConfig struct {
	Addrs     []string `yaml:"addrs"`
	Username  string   `yaml:"username"`
	Password  string   `yaml:"password"`
	DB        int      `yaml:"db"`
	KeyPrefix string   `yaml:"key_prefix"`
}

// CacheConfig holds fast-tier cache settings.
type CacheConfig struct {
	FastMaxEntries int `yaml:"fast_max_entries"`
	FastTTLSec     int `yaml:"fast_ttl_sec"`
}

// PipelineConfig holds derivative pipeline settings.
type PipelineConfig struct {
	Quality         int    `yaml:"quality"`
	Workspace       string `yaml:"workspace"`
	FetchTimeoutSec int    `yaml:"fetch_timeout_sec"`
	UserAgent       string `yaml:"user_agent"`
}

// ResolversConfig holds per-source metadata resolver settings.
type ResolversConfig struct {
	GitHub GitHubConfig `yaml:"github"`
}

// GitHubConfig holds GitHub API settings.
type GitHubConfig struct {
	Token     string `yaml:"token"`
	UserAgent string `yaml:"user_agent"`
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
		// Manifest builds download and re-encode media, so writes can
		// legitimately take a while.
		c.HTTP.WriteTimeoutSec = 120
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Store.Driver == "" {
		c.Store.Driver = "s3"
	}
	if c.Store.ReadinessTimeout <= 0 {
		c.Store.ReadinessTimeout = 10
	}
	if c.Store.S3.Region == "" {
		c.Store.S3.Region = "us-east-1"
	}
	if c.Store.Redis.KeyPrefix == "" {
		c.Store.Redis.KeyPrefix = "presto:"
	}
	if c.Cache.FastMaxEntries <= 0 {
		c.Cache.FastMaxEntries = 100
	}
	if c.Cache.FastTTLSec <= 0 {
		c.Cache.FastTTLSec = 3600
	}
	if c.Pipeline.Quality <= 0 {
		c.Pipeline.Quality = 50
	}
	if c.Pipeline.Workspace == "" {
		c.Pipeline.Workspace = os.TempDir()
	}
	if c.Pipeline.FetchTimeoutSec <= 0 {
		c.Pipeline.FetchTimeoutSec = 60
	}
	if c.Pipeline.UserAgent == "" {
		c.Pipeline.UserAgent = "IIIF service"
	}
	if c.Service.BaseURL == "" {
		c.Service.BaseURL = fmt.Sprintf("http://localhost:%d", c.HTTP.Port)
	}
	if c.Service.ImageServiceURL == "" {
		c.Service.ImageServiceURL = c.Service.BaseURL
	}
	if c.Resolvers.GitHub.UserAgent == "" {
		c.Resolvers.GitHub.UserAgent = c.Pipeline.UserAgent
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	switch c.Store.Driver {
	case "s3":
		if c.Store.S3.Bucket == "" {
			return fmt.Errorf("store.s3.bucket is required")
		}
	case "redis":
		if len(c.Store.Redis.Addrs) == 0 {
			return fmt.Errorf("store.redis.addrs is required")
		}
	default:
		return fmt.Errorf("store.driver must be \"s3\" or \"redis\", got %q", c.Store.Driver)
	}
	if c.Pipeline.Quality > 100 {
		return fmt.Errorf("pipeline.quality must be between 1 and 100, got %d", c.Pipeline.Quality)
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
