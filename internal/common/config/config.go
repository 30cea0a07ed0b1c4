// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App       AppConfig               `mapstructure:"app"`
	Logging   LoggingConfig           `mapstructure:"logging"`
	Dataset   DatasetConfig           `mapstructure:"dataset"`
	LLM       LLMConfig               `mapstructure:"llm"`
	Resolver  ResolverConfig          `mapstructure:"resolver"`
	Memory    MemoryConfig            `mapstructure:"memory"`
	Analytics AnalyticsConfig         `mapstructure:"analytics"`
	Database  DatabaseConfig          `mapstructure:"database"`
	Server    ServerConfig            `mapstructure:"server"`
	Camunda   CamundaConfig           `mapstructure:"camunda"`
	Workers   map[string]WorkerConfig `mapstructure:"workers"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type DatasetConfig struct {
	Path string `mapstructure:"path"`
}

// LLMConfig selects the reasoning backend. Provider is "openai" or "gemini".
type LLMConfig struct {
	Provider       string `mapstructure:"provider"`
	APIKey         string `mapstructure:"api_key"`
	BaseURL        string `mapstructure:"base_url"`
	ChatModel      string `mapstructure:"chat_model"`
	CodeModel      string `mapstructure:"code_model"`
	EmbeddingModel string `mapstructure:"embedding_model"`
	Timeout        int    `mapstructure:"timeout_ms"`
	MaxRetries     int    `mapstructure:"max_retries"`
}

// ResolverConfig configures name resolution. Embedder is "openai", "gemini" or
// "hashing"; Index is "memory" or "elasticsearch".
type ResolverConfig struct {
	Embedder           string  `mapstructure:"embedder"`
	Index              string  `mapstructure:"index"`
	MinSimilarity      float64 `mapstructure:"min_similarity"`
	WarnBelow          float64 `mapstructure:"warn_below"`
	Timeout            int     `mapstructure:"timeout_ms"`
	CacheEnabled       bool    `mapstructure:"cache_enabled"`
	CacheTTL           int     `mapstructure:"cache_ttl_seconds"`
	ElasticsearchIndex string  `mapstructure:"elasticsearch_index"`
	HashingDimensions  int     `mapstructure:"hashing_dimensions"`
}

// MemoryConfig configures conversation memory. Backend is "file", "redis" or "postgres".
type MemoryConfig struct {
	Backend  string `mapstructure:"backend"`
	Path     string `mapstructure:"path"`
	MaxTurns int    `mapstructure:"max_turns"`
	Session  string `mapstructure:"session"`
}

type AnalyticsConfig struct {
	Timeout      int  `mapstructure:"timeout_ms"`
	CacheEnabled bool `mapstructure:"cache_enabled"`
	CacheTTL     int  `mapstructure:"cache_ttl_seconds"`
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type ElasticsearchConfig struct {
	Addresses []string `mapstructure:"addresses"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
	URL       string   `mapstructure:"url"`
}

// GetURL returns the first address or the URL field
func (e ElasticsearchConfig) GetURL() string {
	if e.URL != "" {
		return e.URL
	}
	if len(e.Addresses) > 0 {
		return e.Addresses[0]
	}
	return ""
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type ServerConfig struct {
	Address      string `mapstructure:"address"`
	ReadTimeout  int    `mapstructure:"read_timeout_ms"`
	WriteTimeout int    `mapstructure:"write_timeout_ms"`
}

type CamundaConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	BrokerAddress  string `mapstructure:"broker_address"`
	MaxJobsActive  int    `mapstructure:"max_jobs_active"`
	Timeout        int    `mapstructure:"timeout"`         // milliseconds
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
}

// WorkerConfig holds the core settings applicable to every worker.
type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"`     // milliseconds
	MaxRetries    int  `mapstructure:"max_retries"` // For error handling
}
