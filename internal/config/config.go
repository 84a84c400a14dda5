package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Database     DatabaseConfig     `yaml:"database"`
	Redis        RedisConfig        `yaml:"redis"`
	Archive      ArchiveConfig      `yaml:"archive"`
	Generator    GeneratorConfig    `yaml:"generator"`
	Import       ImportConfig       `yaml:"import"`
	Optimization OptimizationConfig `yaml:"optimization"`
	Log          LogConfig          `yaml:"log"`
	Stub         StubConfig         `yaml:"stub"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`
	// AllowedOrigins is passed to the CORS middleware.
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// GetHost returns the server host, with ECS detection
func (c ServerConfig) GetHost() string {
	// On ECS/container, listen on all interfaces
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return "0.0.0.0"
	}
	// Allow override via environment
	if host := os.Getenv("SERVER_HOST"); host != "" {
		return host
	}
	return c.Host
}

// Addr returns host:port for http.Server.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.GetHost(), c.Port)
}

// DatabaseConfig holds PostgreSQL connection settings. An empty URL runs the
// server against in-memory repositories.
type DatabaseConfig struct {
	URL          string `yaml:"url"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
}

// Enabled reports whether a database is configured.
func (c DatabaseConfig) Enabled() bool { return c.URL != "" }

// RedisConfig holds the Redis connection used for distributed locks.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// Enabled reports whether Redis is configured.
func (c RedisConfig) Enabled() bool { return c.Addr != "" }

// ArchiveConfig controls raw upload archiving to S3.
type ArchiveConfig struct {
	Bucket   string `yaml:"bucket"`
	Prefix   string `yaml:"prefix"`
	Region   string `yaml:"region"`
	Compress bool   `yaml:"compress"`
}

// Enabled reports whether uploads should be archived.
func (c ArchiveConfig) Enabled() bool { return c.Bucket != "" }

// GeneratorConfig selects the content generator.
type GeneratorConfig struct {
	// Provider is "bedrock" or "static".
	Provider    string  `yaml:"provider"`
	ModelID     string  `yaml:"model_id"`
	Region      string  `yaml:"region"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`
}

// ImportConfig tunes the CSV pipeline.
type ImportConfig struct {
	ChunkSize     int   `yaml:"chunk_size"`
	MaxUploadSize int64 `yaml:"max_upload_bytes"`
}

// OptimizationConfig bounds winner selection and iteration.
type OptimizationConfig struct {
	MaxIterations  int `yaml:"max_iterations"`
	LockTTLSeconds int `yaml:"lock_ttl_seconds"`
}

// LockTTL returns the lock TTL as a duration
func (c OptimizationConfig) LockTTL() time.Duration {
	return time.Duration(c.LockTTLSeconds) * time.Second
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level     string `yaml:"level"`
	RedactPII *bool  `yaml:"redact_pii"`
}

// StubConfig applies when no database is configured.
type StubConfig struct {
	// SeedFile is a YAML file of campaigns and angles loaded into memory.
	SeedFile string `yaml:"seed_file"`
}

// Generator providers.
const (
	ProviderBedrock = "bedrock"
	ProviderStatic  = "static"
)

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	return &cfg, nil
}

// Default returns a configuration with every default applied, for running
// without a config file.
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

func (cfg *Config) applyDefaults() {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if len(cfg.Server.AllowedOrigins) == 0 {
		cfg.Server.AllowedOrigins = []string{"*"}
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Archive.Prefix == "" {
		cfg.Archive.Prefix = "copyloop/"
	}
	if cfg.Archive.Region == "" {
		cfg.Archive.Region = "us-west-2"
	}
	if cfg.Generator.Provider == "" {
		cfg.Generator.Provider = ProviderStatic
	}
	if cfg.Generator.Region == "" {
		cfg.Generator.Region = "us-west-2"
	}
	if cfg.Generator.MaxTokens == 0 {
		cfg.Generator.MaxTokens = 4000
	}
	if cfg.Generator.Temperature == 0 {
		cfg.Generator.Temperature = 0.7
	}
	if cfg.Import.ChunkSize == 0 {
		cfg.Import.ChunkSize = 500
	}
	if cfg.Import.MaxUploadSize == 0 {
		cfg.Import.MaxUploadSize = 32 << 20
	}
	if cfg.Optimization.MaxIterations == 0 {
		cfg.Optimization.MaxIterations = 20
	}
	if cfg.Optimization.LockTTLSeconds == 0 {
		cfg.Optimization.LockTTLSeconds = 120
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}

// LoadFromEnv loads configuration with environment variable overrides.
// It automatically loads a .env file (if present) before reading env vars,
// so secrets can live in .env locally and in real env vars on ECS.
// A missing config file is not an error; defaults are used instead.
func LoadFromEnv(path string) (*Config, error) {
	// Load .env file if it exists (no error if missing)
	_ = godotenv.Load()

	cfg, err := Load(path)
	if os.IsNotExist(err) {
		cfg, err = Default(), nil
	}
	if err != nil {
		return nil, err
	}

	// Override with environment variables if present
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("S3_ARCHIVE_BUCKET"); v != "" {
		cfg.Archive.Bucket = v
	}
	if v := os.Getenv("GENERATOR_PROVIDER"); v != "" {
		cfg.Generator.Provider = v
	}
	if v := os.Getenv("BEDROCK_MODEL_ID"); v != "" {
		cfg.Generator.ModelID = v
	}
	if v := os.Getenv("AWS_REGION"); v != "" {
		cfg.Generator.Region = v
		cfg.Archive.Region = v
	}
	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("PORT %q: %w", v, err)
		}
		cfg.Server.Port = port
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("STUB_SEED_FILE"); v != "" {
		cfg.Stub.SeedFile = v
	}

	return cfg, cfg.Validate()
}

// Validate rejects settings the server cannot start with.
func (cfg *Config) Validate() error {
	switch cfg.Generator.Provider {
	case ProviderBedrock, ProviderStatic:
	default:
		return fmt.Errorf("generator.provider %q: want %q or %q", cfg.Generator.Provider, ProviderBedrock, ProviderStatic)
	}
	if cfg.Import.ChunkSize < 0 {
		return fmt.Errorf("import.chunk_size must not be negative")
	}
	if cfg.Optimization.MaxIterations < 1 {
		return fmt.Errorf("optimization.max_iterations must be at least 1")
	}
	return nil
}
