package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for reposage-engine.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (passwords, API keys) must only come from environment variables.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"8080"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	BaseURL  string `yaml:"base_url" env:"BASE_URL" env-default:""` // Auto-derived from Port if empty
	Version  string `yaml:"-"`                                      // Set at load time, not from config

	// Database configuration (PostgreSQL with pgvector)
	Database DatabaseConfig `yaml:"database"`

	// GitHub repository access
	GitHub GitHubConfig `yaml:"github"`

	// AI provider endpoints
	AI AIConfig `yaml:"ai"`

	// Indexing pipeline pacing
	Indexer IndexerConfig `yaml:"indexer"`
}

// DatabaseConfig holds PostgreSQL database configuration.
type DatabaseConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"reposage"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"reposage_engine"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"25"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
	MigrationsPath string `yaml:"migrations_path" env:"MIGRATIONS_PATH" env-default:"migrations"`
}

// GitHubConfig holds settings for the repository fetcher.
type GitHubConfig struct {
	// Token is the server's default access token. Anonymous GitHub access has
	// a strict low rate limit; a caller-supplied project token always takes
	// precedence over this one.
	Token string `yaml:"-" env:"GITHUB_TOKEN"` // Secret - not in YAML

	// Branch is the branch whose tree is indexed.
	Branch string `yaml:"branch" env:"GITHUB_BRANCH" env-default:"main"`

	// MaxFileSize caps the size of a blob fetched for indexing, in bytes.
	MaxFileSize int `yaml:"max_file_size" env:"GITHUB_MAX_FILE_SIZE" env-default:"262144"`

	// BaseURL points the fetcher at a GitHub Enterprise API.
	// Empty means github.com.
	BaseURL string `yaml:"base_url" env:"GITHUB_BASE_URL"`
}

// AIConfig holds the provider chain for summarization and embeddings.
type AIConfig struct {
	// Primary OpenAI-compatible endpoint (summarization + embeddings).
	OpenAIBaseURL string `yaml:"openai_base_url" env:"OPENAI_BASE_URL" env-default:"https://api.openai.com/v1"`
	OpenAIModel   string `yaml:"openai_model" env:"OPENAI_MODEL" env-default:"gpt-4o-mini"`
	OpenAIAPIKey  string `yaml:"-" env:"OPENAI_API_KEY"` // Secret - not in YAML

	// Fallback summarization provider.
	AnthropicModel  string `yaml:"anthropic_model" env:"ANTHROPIC_MODEL" env-default:"claude-3-5-haiku-latest"`
	AnthropicAPIKey string `yaml:"-" env:"ANTHROPIC_API_KEY"` // Secret - not in YAML

	// EmbeddingModel is the default model pinned onto new projects.
	EmbeddingModel string `yaml:"embedding_model" env:"EMBEDDING_MODEL" env-default:"text-embedding-3-small"`
}

// IndexerConfig holds pacing and retry knobs for the indexing pipeline.
// The defaults are tuned for shared rate budgets on free-tier AI providers.
type IndexerConfig struct {
	// MaxAttempts bounds retries per file for summarize and embed calls.
	MaxAttempts int `yaml:"max_attempts" env:"INDEXER_MAX_ATTEMPTS" env-default:"5"`

	// InterFileDelay is the minimum delay between files even on success.
	InterFileDelay time.Duration `yaml:"inter_file_delay" env:"INDEXER_INTER_FILE_DELAY" env-default:"1s"`

	// ComplexFileDelay replaces InterFileDelay for large, test, or
	// structured-data files, which cost more against the rate budget.
	ComplexFileDelay time.Duration `yaml:"complex_file_delay" env:"INDEXER_COMPLEX_FILE_DELAY" env-default:"3s"`

	// RateLimitDelay seeds the exponential backoff after a 429; it doubles
	// on each further rate-limit response.
	RateLimitDelay time.Duration `yaml:"rate_limit_delay" env:"INDEXER_RATE_LIMIT_DELAY" env-default:"20s"`

	// TransientDelay is the fixed wait after non-rate-limit transient errors.
	TransientDelay time.Duration `yaml:"transient_delay" env:"INDEXER_TRANSIENT_DELAY" env-default:"5s"`

	// MinPhaseDuration is a coarse floor on the summarization phase's total
	// elapsed time, as an additional steady-state throttle.
	MinPhaseDuration time.Duration `yaml:"min_phase_duration" env:"INDEXER_MIN_PHASE_DURATION" env-default:"30s"`

	// DiffConcurrency bounds concurrent commit-diff summarizations.
	DiffConcurrency int `yaml:"diff_concurrency" env:"INDEXER_DIFF_CONCURRENCY" env-default:"5"`
}

// Load reads configuration from config.yaml with environment variable overrides.
// The version parameter is injected at build time and set on the returned Config.
// Secrets (PGPASSWORD, OPENAI_API_KEY, ANTHROPIC_API_KEY, GITHUB_TOKEN) must
// come from environment variables (yaml:"-" fields).
func Load(version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
		return nil, fmt.Errorf("failed to read config.yaml: %w", err)
	}

	// Auto-derive BaseURL from Port if not explicitly set
	if cfg.BaseURL == "" {
		cfg.BaseURL = (&url.URL{
			Scheme: "http",
			Host:   "localhost:" + cfg.Port,
		}).String()
	}

	return cfg, nil
}

// ConnectionString returns a PostgreSQL connection string.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}
