package plateau

import (
	"log/slog"

	"github.com/lostworld/plateau/domain/agent"
	"github.com/lostworld/plateau/infrastructure/provider"
	"github.com/lostworld/plateau/infrastructure/vcs"
	"github.com/lostworld/plateau/internal/config"
)

// clientConfig holds configuration for Client construction.
type clientConfig struct {
	cfg      config.AppConfig
	logger   *slog.Logger
	local    *provider.OllamaProvider
	paid     provider.TextGenerator
	driver   vcs.Driver
	registry *agent.Registry
}

func newClientConfig() *clientConfig {
	return &clientConfig{
		cfg: config.NewAppConfigWithOptions(),
	}
}

// Option configures the Client.
type Option func(*clientConfig)

// WithConfig sets the application configuration.
func WithConfig(cfg config.AppConfig) Option {
	return func(c *clientConfig) { c.cfg = cfg }
}

// WithConfigOptions applies configuration options on top of the defaults.
func WithConfigOptions(opts ...config.AppConfigOption) Option {
	return func(c *clientConfig) { c.cfg = c.cfg.Apply(opts...) }
}

// WithLogger sets the logger. By default a logger is built from the
// configuration and installed as the process default.
func WithLogger(logger *slog.Logger) Option {
	return func(c *clientConfig) { c.logger = logger }
}

// WithLocalProvider overrides the local Ollama back-end.
func WithLocalProvider(p *provider.OllamaProvider) Option {
	return func(c *clientConfig) { c.local = p }
}

// WithPaidProvider overrides the paid text generation back-end used by
// the write and review stages.
func WithPaidProvider(p provider.TextGenerator) Option {
	return func(c *clientConfig) { c.paid = p }
}

// WithVCSDriver overrides the git driver used by the deploy stage.
func WithVCSDriver(d vcs.Driver) Option {
	return func(c *clientConfig) { c.driver = d }
}

// WithRegistry replaces the whole agent registry. Intended for tests
// that stub out individual stages.
func WithRegistry(r *agent.Registry) Option {
	return func(c *clientConfig) { c.registry = r }
}

// WithDryRun toggles dry-run mode, where the paid and deploy stages are
// replaced by stand-ins that spend nothing and touch nothing.
func WithDryRun(dryRun bool) Option {
	return func(c *clientConfig) { c.cfg = c.cfg.Apply(config.WithDryRun(dryRun)) }
}
