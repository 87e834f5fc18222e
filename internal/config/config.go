// Package config provides application configuration.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// Default configuration values.
const (
	DefaultHost              = "0.0.0.0"
	DefaultPort              = 8000
	DefaultLogLevel          = "INFO"
	DefaultDailyBudgetGBP    = 2.00
	DefaultWeeklyBudgetGBP   = 8.00
	DefaultCostPerTokenGBP   = 0.000012
	DefaultWriterModel       = "claude-sonnet-4-20250514"
	DefaultReviewerModel     = "claude-sonnet-4-20250514"
	DefaultLocalModel        = "llama3.1:8b"
	DefaultEmbeddingModel    = "nomic-embed-text"
	DefaultOllamaURL         = "http://localhost:11434"
	DefaultMaxWriterRetries  = 2
	DefaultContractFile      = "contract.md"
	DefaultHTTPTimeout       = 30 * time.Second
	DefaultCommandTimeout    = 300 * time.Second
	DefaultPipelineTimeout   = 600 * time.Second
	DefaultDeployTimeout     = 600 * time.Second
	DefaultMaxQueryResults   = 50
	DefaultOutputTruncation  = 2000
	DefaultWriterMaxTokens   = 4096
	DefaultReviewerMaxTokens = 2048
)

// Conservative token estimates used when the local back-end does not
// report exact counts and for dry-run budget projections.
const (
	EstimatedTokensPerSummary     = 500
	EstimatedOutputTokensWriter   = 500
	EstimatedOutputTokensReviewer = 300
)

// LogFormat represents the log output format.
type LogFormat string

// LogFormat values.
const (
	LogFormatPretty LogFormat = "pretty"
	LogFormatJSON   LogFormat = "json"
)

// AppConfig holds the main application configuration.
type AppConfig struct {
	host      string
	port      int
	dataDir   string
	dbURL     string
	logLevel  string
	logFormat LogFormat

	repoPath     string
	contractFile string
	ledgerPath   string

	ollamaURL      string
	localModel     string
	embeddingModel string
	writerModel    string
	reviewerModel  string

	anthropicAPIKey string
	anthropicURL    string
	openAIAPIKey    string
	openAIBaseURL   string

	dailyBudgetGBP  float64
	weeklyBudgetGBP float64
	costPerTokenGBP float64

	maxWriterRetries int
	httpTimeout      time.Duration
	commandTimeout   time.Duration
	pipelineTimeout  time.Duration
	deployTimeout    time.Duration
	maxQueryResults  int
	outputTruncation int

	corsOrigins []string
	dryRun      bool
}

// DefaultDataDir returns the default data directory.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".plateau"
	}
	return filepath.Join(home, ".plateau")
}

// NewAppConfig creates a new AppConfig with defaults.
func NewAppConfig() AppConfig {
	dataDir := DefaultDataDir()
	return AppConfig{
		host:             DefaultHost,
		port:             DefaultPort,
		dataDir:          dataDir,
		dbURL:            "sqlite:///" + filepath.Join(dataDir, "plateau.db"),
		logLevel:         DefaultLogLevel,
		logFormat:        LogFormatPretty,
		repoPath:         ".",
		contractFile:     DefaultContractFile,
		ledgerPath:       filepath.Join(dataDir, "budget.json"),
		ollamaURL:        DefaultOllamaURL,
		localModel:       DefaultLocalModel,
		embeddingModel:   DefaultEmbeddingModel,
		writerModel:      DefaultWriterModel,
		reviewerModel:    DefaultReviewerModel,
		dailyBudgetGBP:   DefaultDailyBudgetGBP,
		weeklyBudgetGBP:  DefaultWeeklyBudgetGBP,
		costPerTokenGBP:  DefaultCostPerTokenGBP,
		maxWriterRetries: DefaultMaxWriterRetries,
		httpTimeout:      DefaultHTTPTimeout,
		commandTimeout:   DefaultCommandTimeout,
		pipelineTimeout:  DefaultPipelineTimeout,
		deployTimeout:    DefaultDeployTimeout,
		maxQueryResults:  DefaultMaxQueryResults,
		outputTruncation: DefaultOutputTruncation,
		corsOrigins:      []string{"http://localhost:5173"},
	}
}

// Host returns the server host to bind to.
func (c AppConfig) Host() string { return c.host }

// Port returns the server port to listen on.
func (c AppConfig) Port() int { return c.port }

// Addr returns the combined host:port address.
func (c AppConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.host, c.port)
}

// DataDir returns the data directory path.
func (c AppConfig) DataDir() string { return c.dataDir }

// DBURL returns the database connection URL.
func (c AppConfig) DBURL() string { return c.dbURL }

// LogLevel returns the log level.
func (c AppConfig) LogLevel() string { return c.logLevel }

// LogFormat returns the log format.
func (c AppConfig) LogFormat() LogFormat { return c.logFormat }

// RepoPath returns the target repository working tree path.
func (c AppConfig) RepoPath() string { return c.repoPath }

// ContractFile returns the contract file name relative to the repo root.
func (c AppConfig) ContractFile() string { return c.contractFile }

// LedgerPath returns the budget ledger file path.
func (c AppConfig) LedgerPath() string { return c.ledgerPath }

// OllamaURL returns the local model server base URL.
func (c AppConfig) OllamaURL() string { return c.ollamaURL }

// LocalModel returns the local chat model identifier.
func (c AppConfig) LocalModel() string { return c.localModel }

// EmbeddingModel returns the embedding model identifier.
func (c AppConfig) EmbeddingModel() string { return c.embeddingModel }

// WriterModel returns the paid writer model identifier.
func (c AppConfig) WriterModel() string { return c.writerModel }

// ReviewerModel returns the paid reviewer model identifier.
func (c AppConfig) ReviewerModel() string { return c.reviewerModel }

// AnthropicAPIKey returns the Anthropic API key.
func (c AppConfig) AnthropicAPIKey() string { return c.anthropicAPIKey }

// AnthropicURL returns the Anthropic base URL override (empty for default).
func (c AppConfig) AnthropicURL() string { return c.anthropicURL }

// OpenAIAPIKey returns the OpenAI-compatible API key.
func (c AppConfig) OpenAIAPIKey() string { return c.openAIAPIKey }

// OpenAIBaseURL returns the OpenAI-compatible base URL.
func (c AppConfig) OpenAIBaseURL() string { return c.openAIBaseURL }

// DailyBudgetGBP returns the daily spend cap.
func (c AppConfig) DailyBudgetGBP() float64 { return c.dailyBudgetGBP }

// WeeklyBudgetGBP returns the weekly spend cap.
func (c AppConfig) WeeklyBudgetGBP() float64 { return c.weeklyBudgetGBP }

// CostPerTokenGBP returns the blended per-token cost.
func (c AppConfig) CostPerTokenGBP() float64 { return c.costPerTokenGBP }

// MaxWriterRetries returns the write/review retry budget.
func (c AppConfig) MaxWriterRetries() int { return c.maxWriterRetries }

// HTTPTimeout returns the network call timeout.
func (c AppConfig) HTTPTimeout() time.Duration { return c.httpTimeout }

// CommandTimeout returns the per-git-command timeout.
func (c AppConfig) CommandTimeout() time.Duration { return c.commandTimeout }

// PipelineTimeout returns the pipeline script timeout.
func (c AppConfig) PipelineTimeout() time.Duration { return c.pipelineTimeout }

// DeployTimeout returns the deploy script timeout.
func (c AppConfig) DeployTimeout() time.Duration { return c.deployTimeout }

// MaxQueryResults returns the vector similarity query result cap.
func (c AppConfig) MaxQueryResults() int { return c.maxQueryResults }

// OutputTruncation returns the script output tail length in bytes.
func (c AppConfig) OutputTruncation() int { return c.outputTruncation }

// CORSOrigins returns the allowed CORS origins for the intake API.
func (c AppConfig) CORSOrigins() []string {
	origins := make([]string, len(c.corsOrigins))
	copy(origins, c.corsOrigins)
	return origins
}

// DryRun returns whether paid agents are replaced with dry-run shims.
func (c AppConfig) DryRun() bool { return c.dryRun }

// EnsureDataDir creates the data directory if it doesn't exist.
func (c AppConfig) EnsureDataDir() error {
	return os.MkdirAll(c.dataDir, 0o755)
}

// AppConfigOption is a functional option for AppConfig.
type AppConfigOption func(*AppConfig)

// WithHost sets the server host.
func WithHost(host string) AppConfigOption {
	return func(c *AppConfig) { c.host = host }
}

// WithPort sets the server port.
func WithPort(port int) AppConfigOption {
	return func(c *AppConfig) { c.port = port }
}

// WithDataDir sets the data directory and rebases the default DB URL
// and ledger path onto it.
func WithDataDir(dir string) AppConfigOption {
	return func(c *AppConfig) {
		c.dataDir = dir
		c.dbURL = "sqlite:///" + filepath.Join(dir, "plateau.db")
		c.ledgerPath = filepath.Join(dir, "budget.json")
	}
}

// WithDBURL sets the database URL.
func WithDBURL(url string) AppConfigOption {
	return func(c *AppConfig) { c.dbURL = url }
}

// WithLogLevel sets the log level.
func WithLogLevel(level string) AppConfigOption {
	return func(c *AppConfig) { c.logLevel = level }
}

// WithLogFormat sets the log format.
func WithLogFormat(format LogFormat) AppConfigOption {
	return func(c *AppConfig) { c.logFormat = format }
}

// WithRepoPath sets the target repository path.
func WithRepoPath(path string) AppConfigOption {
	return func(c *AppConfig) { c.repoPath = path }
}

// WithContractFile sets the contract file name.
func WithContractFile(name string) AppConfigOption {
	return func(c *AppConfig) { c.contractFile = name }
}

// WithLedgerPath sets the budget ledger file path.
func WithLedgerPath(path string) AppConfigOption {
	return func(c *AppConfig) { c.ledgerPath = path }
}

// WithOllamaURL sets the local model server base URL.
func WithOllamaURL(url string) AppConfigOption {
	return func(c *AppConfig) { c.ollamaURL = url }
}

// WithLocalModel sets the local chat model.
func WithLocalModel(model string) AppConfigOption {
	return func(c *AppConfig) { c.localModel = model }
}

// WithEmbeddingModel sets the embedding model.
func WithEmbeddingModel(model string) AppConfigOption {
	return func(c *AppConfig) { c.embeddingModel = model }
}

// WithWriterModel sets the paid writer model.
func WithWriterModel(model string) AppConfigOption {
	return func(c *AppConfig) { c.writerModel = model }
}

// WithReviewerModel sets the paid reviewer model.
func WithReviewerModel(model string) AppConfigOption {
	return func(c *AppConfig) { c.reviewerModel = model }
}

// WithAnthropicAPIKey sets the Anthropic API key.
func WithAnthropicAPIKey(key string) AppConfigOption {
	return func(c *AppConfig) { c.anthropicAPIKey = key }
}

// WithAnthropicURL sets the Anthropic base URL.
func WithAnthropicURL(url string) AppConfigOption {
	return func(c *AppConfig) { c.anthropicURL = url }
}

// WithOpenAIAPIKey sets the OpenAI-compatible API key.
func WithOpenAIAPIKey(key string) AppConfigOption {
	return func(c *AppConfig) { c.openAIAPIKey = key }
}

// WithOpenAIBaseURL sets the OpenAI-compatible base URL.
func WithOpenAIBaseURL(url string) AppConfigOption {
	return func(c *AppConfig) { c.openAIBaseURL = url }
}

// WithDailyBudgetGBP sets the daily spend cap.
func WithDailyBudgetGBP(cap float64) AppConfigOption {
	return func(c *AppConfig) { c.dailyBudgetGBP = cap }
}

// WithWeeklyBudgetGBP sets the weekly spend cap.
func WithWeeklyBudgetGBP(cap float64) AppConfigOption {
	return func(c *AppConfig) { c.weeklyBudgetGBP = cap }
}

// WithCostPerTokenGBP sets the blended per-token cost.
func WithCostPerTokenGBP(cost float64) AppConfigOption {
	return func(c *AppConfig) { c.costPerTokenGBP = cost }
}

// WithMaxWriterRetries sets the write/review retry budget.
func WithMaxWriterRetries(n int) AppConfigOption {
	return func(c *AppConfig) {
		if n >= 0 {
			c.maxWriterRetries = n
		}
	}
}

// WithHTTPTimeout sets the network call timeout.
func WithHTTPTimeout(d time.Duration) AppConfigOption {
	return func(c *AppConfig) { c.httpTimeout = d }
}

// WithCommandTimeout sets the per-git-command timeout.
func WithCommandTimeout(d time.Duration) AppConfigOption {
	return func(c *AppConfig) { c.commandTimeout = d }
}

// WithPipelineTimeout sets the pipeline script timeout.
func WithPipelineTimeout(d time.Duration) AppConfigOption {
	return func(c *AppConfig) { c.pipelineTimeout = d }
}

// WithDeployTimeout sets the deploy script timeout.
func WithDeployTimeout(d time.Duration) AppConfigOption {
	return func(c *AppConfig) { c.deployTimeout = d }
}

// WithMaxQueryResults sets the vector similarity query result cap.
func WithMaxQueryResults(n int) AppConfigOption {
	return func(c *AppConfig) {
		if n > 0 {
			c.maxQueryResults = n
		}
	}
}

// WithOutputTruncation sets the script output tail length.
func WithOutputTruncation(n int) AppConfigOption {
	return func(c *AppConfig) {
		if n > 0 {
			c.outputTruncation = n
		}
	}
}

// WithCORSOrigins sets the allowed CORS origins.
func WithCORSOrigins(origins []string) AppConfigOption {
	return func(c *AppConfig) {
		c.corsOrigins = make([]string, len(origins))
		copy(c.corsOrigins, origins)
	}
}

// WithDryRun replaces the paid agents with dry-run shims.
func WithDryRun(dryRun bool) AppConfigOption {
	return func(c *AppConfig) { c.dryRun = dryRun }
}

// NewAppConfigWithOptions creates an AppConfig with functional options.
func NewAppConfigWithOptions(opts ...AppConfigOption) AppConfig {
	c := NewAppConfig()
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// Apply returns a new AppConfig with the given options applied.
func (c AppConfig) Apply(opts ...AppConfigOption) AppConfig {
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// LogAttrs returns slog attributes for logging the configuration.
// Sensitive values are masked.
func (c AppConfig) LogAttrs() []slog.Attr {
	return []slog.Attr{
		slog.String("data_dir", c.dataDir),
		slog.String("db_url", c.maskedDBURL()),
		slog.String("repo_path", c.repoPath),
		slog.String("ledger_path", c.ledgerPath),
		slog.String("ollama_url", c.ollamaURL),
		slog.String("local_model", c.localModel),
		slog.String("embedding_model", c.embeddingModel),
		slog.String("writer_model", c.writerModel),
		slog.String("reviewer_model", c.reviewerModel),
		slog.Float64("daily_budget_gbp", c.dailyBudgetGBP),
		slog.Float64("weekly_budget_gbp", c.weeklyBudgetGBP),
		slog.Int("max_writer_retries", c.maxWriterRetries),
		slog.Bool("anthropic_key_set", c.anthropicAPIKey != ""),
		slog.Bool("dry_run", c.dryRun),
	}
}

func (c AppConfig) maskedDBURL() string {
	if c.dbURL == "" {
		return "(default)"
	}
	if len(c.dbURL) >= 7 && c.dbURL[:7] == "sqlite:" {
		return c.dbURL
	}
	return "postgres://***@***"
}
