package config

import (
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// EnvConfig holds all environment-based configuration.
// Field names map directly to environment variables.
type EnvConfig struct {
	// Host is the server host to bind to.
	// Env: HOST (default: 0.0.0.0)
	Host string `envconfig:"HOST" default:"0.0.0.0"`

	// Port is the server port to listen on.
	// Env: PORT (default: 8000)
	Port int `envconfig:"PORT" default:"8000"`

	// DataDir is the data directory path.
	// Env: DATA_DIR
	// Default: ~/.plateau
	DataDir string `envconfig:"DATA_DIR"`

	// DBURL is the database connection URL.
	// Env: DB_URL
	// Default: sqlite:///{data_dir}/plateau.db
	DBURL string `envconfig:"DB_URL"`

	// LogLevel is the log verbosity level.
	// Env: LOG_LEVEL (default: INFO)
	LogLevel string `envconfig:"LOG_LEVEL" default:"INFO"`

	// LogFormat is the log output format (pretty or json).
	// Env: LOG_FORMAT (default: pretty)
	LogFormat string `envconfig:"LOG_FORMAT" default:"pretty"`

	// RepoPath is the working tree the deployer operates on.
	// Env: REPO_PATH (default: .)
	RepoPath string `envconfig:"REPO_PATH" default:"."`

	// ContractFile is the contract file name relative to the repo root.
	// Env: CONTRACT_FILE (default: contract.md)
	ContractFile string `envconfig:"CONTRACT_FILE"`

	// LedgerPath is the budget ledger file path.
	// Env: LEDGER_PATH
	// Default: {data_dir}/budget.json
	LedgerPath string `envconfig:"LEDGER_PATH"`

	// OllamaURL is the local model server base URL.
	// Env: OLLAMA_URL (default: http://localhost:11434)
	OllamaURL string `envconfig:"OLLAMA_URL"`

	// LocalModel is the local chat model used for filtering and summaries.
	// Env: LOCAL_MODEL (default: llama3.1:8b)
	LocalModel string `envconfig:"LOCAL_MODEL"`

	// EmbeddingModel is the local embedding model.
	// Env: EMBEDDING_MODEL (default: nomic-embed-text)
	EmbeddingModel string `envconfig:"EMBEDDING_MODEL"`

	// WriterModel is the paid model used to draft change sets.
	// Env: WRITER_MODEL
	WriterModel string `envconfig:"WRITER_MODEL"`

	// ReviewerModel is the paid model used to review change sets.
	// Env: REVIEWER_MODEL
	ReviewerModel string `envconfig:"REVIEWER_MODEL"`

	// AnthropicAPIKey authenticates against the Anthropic API.
	// Env: ANTHROPIC_API_KEY
	AnthropicAPIKey string `envconfig:"ANTHROPIC_API_KEY"`

	// AnthropicURL overrides the Anthropic base URL.
	// Env: ANTHROPIC_URL
	AnthropicURL string `envconfig:"ANTHROPIC_URL"`

	// OpenAIAPIKey authenticates against an OpenAI-compatible API.
	// Env: OPENAI_API_KEY
	OpenAIAPIKey string `envconfig:"OPENAI_API_KEY"`

	// OpenAIBaseURL is the OpenAI-compatible base URL.
	// Env: OPENAI_BASE_URL
	OpenAIBaseURL string `envconfig:"OPENAI_BASE_URL"`

	// DailyBudgetGBP is the daily spend cap.
	// Env: DAILY_BUDGET_GBP (default: 2.00)
	DailyBudgetGBP float64 `envconfig:"DAILY_BUDGET_GBP" default:"2.00"`

	// WeeklyBudgetGBP is the weekly spend cap.
	// Env: WEEKLY_BUDGET_GBP (default: 8.00)
	WeeklyBudgetGBP float64 `envconfig:"WEEKLY_BUDGET_GBP" default:"8.00"`

	// CostPerTokenGBP is the blended per-token cost.
	// Env: COST_PER_TOKEN_GBP (default: 0.000012)
	CostPerTokenGBP float64 `envconfig:"COST_PER_TOKEN_GBP" default:"0.000012"`

	// MaxWriterRetries is the write/review retry budget.
	// Env: MAX_WRITER_RETRIES (default: 2)
	MaxWriterRetries int `envconfig:"MAX_WRITER_RETRIES" default:"2"`

	// HTTPTimeoutSeconds is the network call timeout in seconds.
	// Env: HTTP_TIMEOUT_SECONDS (default: 30)
	HTTPTimeoutSeconds float64 `envconfig:"HTTP_TIMEOUT_SECONDS" default:"30"`

	// CommandTimeoutSeconds is the per-git-command timeout in seconds.
	// Env: COMMAND_TIMEOUT_SECONDS (default: 300)
	CommandTimeoutSeconds float64 `envconfig:"COMMAND_TIMEOUT_SECONDS" default:"300"`

	// PipelineTimeoutSeconds is the pipeline script timeout in seconds.
	// Env: PIPELINE_TIMEOUT_SECONDS (default: 600)
	PipelineTimeoutSeconds float64 `envconfig:"PIPELINE_TIMEOUT_SECONDS" default:"600"`

	// DeployTimeoutSeconds is the deploy script timeout in seconds.
	// Env: DEPLOY_TIMEOUT_SECONDS (default: 600)
	DeployTimeoutSeconds float64 `envconfig:"DEPLOY_TIMEOUT_SECONDS" default:"600"`

	// CORSOrigins is a comma-separated list of allowed CORS origins.
	// Env: CORS_ORIGINS (default: http://localhost:5173)
	CORSOrigins string `envconfig:"CORS_ORIGINS"`

	// DryRun replaces the paid agents with dry-run shims.
	// Env: DRY_RUN (default: false)
	DryRun bool `envconfig:"DRY_RUN" default:"false"`
}

// LoadFromEnv loads configuration from environment variables.
func LoadFromEnv() (EnvConfig, error) {
	var cfg EnvConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return EnvConfig{}, err
	}
	return cfg, nil
}

// LoadFromEnvWithPrefix loads configuration with a custom prefix.
// For example, prefix "PLATEAU" would require PLATEAU_DATA_DIR instead
// of DATA_DIR.
func LoadFromEnvWithPrefix(prefix string) (EnvConfig, error) {
	var cfg EnvConfig
	if err := envconfig.Process(prefix, &cfg); err != nil {
		return EnvConfig{}, err
	}
	return cfg, nil
}

// Normalize trims whitespace from string fields.
func (e EnvConfig) Normalize() EnvConfig {
	e.Host = strings.TrimSpace(e.Host)
	e.DataDir = strings.TrimSpace(e.DataDir)
	e.DBURL = strings.TrimSpace(e.DBURL)
	e.RepoPath = strings.TrimSpace(e.RepoPath)
	e.OllamaURL = strings.TrimSpace(e.OllamaURL)
	e.AnthropicAPIKey = strings.TrimSpace(e.AnthropicAPIKey)
	e.OpenAIAPIKey = strings.TrimSpace(e.OpenAIAPIKey)
	return e
}

// ToAppConfig converts EnvConfig to AppConfig.
func (e EnvConfig) ToAppConfig() AppConfig {
	cfg := NewAppConfig()

	if e.Host != "" {
		cfg = cfg.Apply(WithHost(e.Host))
	}
	if e.Port != 0 {
		cfg = cfg.Apply(WithPort(e.Port))
	}
	if e.DataDir != "" {
		cfg = cfg.Apply(WithDataDir(e.DataDir))
	}
	if e.DBURL != "" {
		cfg = cfg.Apply(WithDBURL(e.DBURL))
	}
	if e.LogLevel != "" {
		cfg = cfg.Apply(WithLogLevel(e.LogLevel))
	}
	if e.LogFormat != "" {
		cfg = cfg.Apply(WithLogFormat(ParseLogFormat(e.LogFormat)))
	}
	if e.RepoPath != "" {
		cfg = cfg.Apply(WithRepoPath(e.RepoPath))
	}
	if e.ContractFile != "" {
		cfg = cfg.Apply(WithContractFile(e.ContractFile))
	}
	if e.LedgerPath != "" {
		cfg = cfg.Apply(WithLedgerPath(e.LedgerPath))
	}
	if e.OllamaURL != "" {
		cfg = cfg.Apply(WithOllamaURL(e.OllamaURL))
	}
	if e.LocalModel != "" {
		cfg = cfg.Apply(WithLocalModel(e.LocalModel))
	}
	if e.EmbeddingModel != "" {
		cfg = cfg.Apply(WithEmbeddingModel(e.EmbeddingModel))
	}
	if e.WriterModel != "" {
		cfg = cfg.Apply(WithWriterModel(e.WriterModel))
	}
	if e.ReviewerModel != "" {
		cfg = cfg.Apply(WithReviewerModel(e.ReviewerModel))
	}
	if e.AnthropicAPIKey != "" {
		cfg = cfg.Apply(WithAnthropicAPIKey(e.AnthropicAPIKey))
	}
	if e.AnthropicURL != "" {
		cfg = cfg.Apply(WithAnthropicURL(e.AnthropicURL))
	}
	if e.OpenAIAPIKey != "" {
		cfg = cfg.Apply(WithOpenAIAPIKey(e.OpenAIAPIKey))
	}
	if e.OpenAIBaseURL != "" {
		cfg = cfg.Apply(WithOpenAIBaseURL(e.OpenAIBaseURL))
	}
	if e.DailyBudgetGBP > 0 {
		cfg = cfg.Apply(WithDailyBudgetGBP(e.DailyBudgetGBP))
	}
	if e.WeeklyBudgetGBP > 0 {
		cfg = cfg.Apply(WithWeeklyBudgetGBP(e.WeeklyBudgetGBP))
	}
	if e.CostPerTokenGBP > 0 {
		cfg = cfg.Apply(WithCostPerTokenGBP(e.CostPerTokenGBP))
	}
	if e.MaxWriterRetries >= 0 {
		cfg = cfg.Apply(WithMaxWriterRetries(e.MaxWriterRetries))
	}
	if e.HTTPTimeoutSeconds > 0 {
		cfg = cfg.Apply(WithHTTPTimeout(secondsToDuration(e.HTTPTimeoutSeconds)))
	}
	if e.CommandTimeoutSeconds > 0 {
		cfg = cfg.Apply(WithCommandTimeout(secondsToDuration(e.CommandTimeoutSeconds)))
	}
	if e.PipelineTimeoutSeconds > 0 {
		cfg = cfg.Apply(WithPipelineTimeout(secondsToDuration(e.PipelineTimeoutSeconds)))
	}
	if e.DeployTimeoutSeconds > 0 {
		cfg = cfg.Apply(WithDeployTimeout(secondsToDuration(e.DeployTimeoutSeconds)))
	}
	if e.CORSOrigins != "" {
		cfg = cfg.Apply(WithCORSOrigins(splitOrigins(e.CORSOrigins)))
	}
	cfg = cfg.Apply(WithDryRun(e.DryRun))

	return cfg
}

// ParseLogFormat parses a log format string.
func ParseLogFormat(s string) LogFormat {
	switch strings.ToLower(s) {
	case "json":
		return LogFormatJSON
	default:
		return LogFormatPretty
	}
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

func splitOrigins(s string) []string {
	parts := strings.Split(s, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			origins = append(origins, p)
		}
	}
	return origins
}
