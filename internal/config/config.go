package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config holds all configuration for mythgate
type Config struct {
	// Server configuration
	HTTPPort int    `env:"HTTP_PORT" envDefault:"5001"`
	GRPCPort int    `env:"GRPC_PORT" envDefault:"9090"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	Analysis  AnalysisConfig
	Mythril   MythrilConfig
	Explorer  ExplorerConfig
	Compiler  CompilerConfig
	Flattener FlattenerConfig
	Chain     ChainConfig
	Storage   StorageConfig
	Redis     RedisConfig
	LLM       LLMConfig
	Workers   WorkerConfig
	Timeouts  TimeoutConfig
}

// AnalysisConfig holds request-level analysis settings
type AnalysisConfig struct {
	DefaultMode string        `env:"ANALYSIS_DEFAULT_MODE" envDefault:"address"`
	Timeout     time.Duration `env:"ANALYSIS_TIMEOUT" envDefault:"300s"`
	WorkDir     string        `env:"WORK_DIR"`
}

// MythrilConfig holds analyzer invocation settings
type MythrilConfig struct {
	Binary           string `env:"MYTHRIL_BINARY" envDefault:"myth"`
	MaxDepth         int    `env:"MYTHRIL_MAX_DEPTH" envDefault:"3"`
	ExecutionTimeout int    `env:"MYTHRIL_EXECUTION_TIMEOUT" envDefault:"20"`
	InfuraID         string `env:"INFURA_ID"`
}

// ExplorerConfig holds block explorer API settings
type ExplorerConfig struct {
	BaseURL   string        `env:"EXPLORER_URL" envDefault:"https://api.etherscan.io/v2/api"`
	APIKey    string        `env:"EXPLORER_API_KEY"`
	ChainID   int64         `env:"EXPLORER_CHAIN_ID" envDefault:"1"`
	Timeout   time.Duration `env:"EXPLORER_TIMEOUT" envDefault:"15s"`
	RateLimit float64       `env:"EXPLORER_RATE_LIMIT" envDefault:"5"`
}

// CompilerConfig holds compiler-version manager settings
type CompilerConfig struct {
	Binary string `env:"SOLC_SELECT_BINARY" envDefault:"solc-select"`
}

// FlattenerConfig selects the flattening strategy
type FlattenerConfig struct {
	Kind    string   `env:"FLATTENER" envDefault:"builtin"`
	Command string   `env:"FLATTENER_CMD" envDefault:"truffle-flattener"`
	Args    []string `env:"FLATTENER_ARGS" envSeparator:" "`
}

// ChainConfig holds node provider settings
type ChainConfig struct {
	RPCURL string `env:"ETH_RPC_URL"`
}

// StorageConfig selects the storage and event backends
type StorageConfig struct {
	Backend        string        `env:"STORAGE_BACKEND" envDefault:"memory"`
	JobTTL         time.Duration `env:"JOB_TTL" envDefault:"24h"`
	ReportCacheTTL time.Duration `env:"REPORT_CACHE_TTL" envDefault:"1h"`
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	Password string `env:"REDIS_PASS"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`

	// Connection pool settings
	PoolSize     int           `env:"REDIS_POOL_SIZE" envDefault:"10"`
	MinIdleConns int           `env:"REDIS_MIN_IDLE_CONNS" envDefault:"2"`
	MaxRetries   int           `env:"REDIS_MAX_RETRIES" envDefault:"3"`
	DialTimeout  time.Duration `env:"REDIS_DIAL_TIMEOUT" envDefault:"5s"`
	ReadTimeout  time.Duration `env:"REDIS_READ_TIMEOUT" envDefault:"3s"`
	WriteTimeout time.Duration `env:"REDIS_WRITE_TIMEOUT" envDefault:"3s"`
}

// LLMConfig holds report summarizer configuration. Summaries are off without an API key.
type LLMConfig struct {
	Provider       string        `env:"LLM_PROVIDER" envDefault:"anthropic"`
	APIKey         string        `env:"LLM_API_KEY"`
	Model          string        `env:"LLM_MODEL" envDefault:"claude-3-5-haiku-latest"`
	MaxTokens      int           `env:"LLM_MAX_TOKENS" envDefault:"512"`
	RequestTimeout time.Duration `env:"LLM_REQUEST_TIMEOUT" envDefault:"30s"`
}

// WorkerConfig holds worker pool configuration
type WorkerConfig struct {
	PoolSize            int           `env:"WORKER_POOL_SIZE" envDefault:"2"`
	QueueSize           int           `env:"WORKER_QUEUE_SIZE" envDefault:"32"`
	HealthCheckInterval time.Duration `env:"WORKER_HEALTH_CHECK_INTERVAL" envDefault:"30s"`
}

// TimeoutConfig holds process-level timeouts
type TimeoutConfig struct {
	ShutdownTimeout time.Duration `env:"TIMEOUT_SHUTDOWN" envDefault:"30s"`
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	if c.GRPCPort < 1 || c.GRPCPort > 65535 {
		return fmt.Errorf("invalid gRPC port: %d", c.GRPCPort)
	}

	switch c.Analysis.DefaultMode {
	case "address", "source":
	default:
		return fmt.Errorf("invalid default analysis mode: %s (must be address or source)", c.Analysis.DefaultMode)
	}
	if c.Analysis.Timeout <= 0 {
		return fmt.Errorf("analysis timeout must be positive")
	}

	if c.Mythril.Binary == "" {
		return fmt.Errorf("mythril binary is required")
	}
	if c.Mythril.MaxDepth < 1 {
		return fmt.Errorf("mythril max depth must be at least 1")
	}
	if c.Mythril.ExecutionTimeout < 1 {
		return fmt.Errorf("mythril execution timeout must be at least 1 second")
	}

	if c.Explorer.BaseURL == "" {
		return fmt.Errorf("explorer URL is required")
	}
	if c.Explorer.RateLimit <= 0 {
		return fmt.Errorf("explorer rate limit must be positive")
	}

	switch c.Flattener.Kind {
	case "builtin":
	case "command":
		if c.Flattener.Command == "" {
			return fmt.Errorf("flattener command is required when FLATTENER=command")
		}
	default:
		return fmt.Errorf("invalid flattener: %s (must be builtin or command)", c.Flattener.Kind)
	}

	switch c.Storage.Backend {
	case "memory":
	case "redis":
		if c.Redis.Addr == "" {
			return fmt.Errorf("redis address is required")
		}
	default:
		return fmt.Errorf("invalid storage backend: %s (must be memory or redis)", c.Storage.Backend)
	}

	if c.LLM.APIKey != "" && c.LLM.Provider != "anthropic" {
		return fmt.Errorf("unsupported LLM provider: %s", c.LLM.Provider)
	}

	if c.Workers.PoolSize < 1 {
		return fmt.Errorf("worker pool size must be at least 1")
	}
	if c.Workers.QueueSize < 1 {
		return fmt.Errorf("worker queue size must be at least 1")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.LogLevel)
	}

	return nil
}

// GetHTTPAddr returns the HTTP server address
func (c *Config) GetHTTPAddr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}

// GetGRPCAddr returns the gRPC server address
func (c *Config) GetGRPCAddr() string {
	return fmt.Sprintf(":%d", c.GRPCPort)
}

// SummariesEnabled reports whether a report summarizer should be built
func (c *Config) SummariesEnabled() bool {
	return c.LLM.APIKey != ""
}
