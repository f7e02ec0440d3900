package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/dshills/semcache/internal/config"
	"github.com/dshills/semcache/internal/engine"
	"github.com/dshills/semcache/internal/logging"
	"github.com/dshills/semcache/internal/metrics"
)

// globalOptions are the persistent flags shared by every command
type globalOptions struct {
	configFile string
	dataDir    string
	logLevel   string
	logFormat  string
	format     string
}

// NewRootCmd creates the root command with all subcommands attached
func NewRootCmd() *cobra.Command {
	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:   "semcache",
		Short: "Hybrid retrieval engine with semantic caching",
		Long: `semcache indexes a directory of text documents and answers queries by
fusing dense vector similarity with BM25 keyword relevance, optionally
reranked by a cross-encoder.

Embeddings are cached by content hash so re-ingesting unchanged documents
costs nothing, and answered queries are cached by embedding similarity so a
paraphrase of a previous query returns instantly.

Configuration comes from defaults, the YAML file named by --config or
SEMCACHE_CONFIG, SEMCACHE_* environment variables (a .env file is loaded
automatically) and flags, in increasing precedence.`,
		SilenceUsage: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.configFile, "config", "", "Path to a YAML config file")
	flags.StringVar(&opts.dataDir, "data-dir", "", "Data directory (overrides data_dir)")
	flags.StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	flags.StringVar(&opts.logFormat, "log-format", "", "Log format: console or json")
	flags.StringVar(&opts.format, "format", "text", "Output format: text or json")

	cmd.AddCommand(
		NewServeCmd(opts),
		NewMCPCmd(opts),
		NewIngestCmd(opts),
		NewSearchCmd(opts),
		NewEmbedCmd(opts),
		NewVersionCmd(),
	)
	return cmd
}

// Execute runs the root command
func Execute() error {
	return NewRootCmd().Execute()
}

// loadConfig resolves configuration with flag overrides applied last
func (o *globalOptions) loadConfig() (*config.Config, error) {
	_ = godotenv.Load()

	if o.configFile != "" {
		if err := os.Setenv(config.ConfigFileEnv, o.configFile); err != nil {
			return nil, err
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	if o.dataDir != "" {
		cfg.DataDir = o.dataDir
	}
	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}
	if o.logFormat != "" {
		cfg.LogFormat = o.logFormat
	}
	return cfg, cfg.Validate()
}

// openEngine loads configuration and builds the engine. Logs go to the
// command's stderr so stdout stays clean for results and MCP traffic.
func (o *globalOptions) openEngine(ctx context.Context, cmd *cobra.Command) (*engine.Engine, zerolog.Logger, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, zerolog.Nop(), err
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat, cmd.ErrOrStderr())
	if err != nil {
		return nil, zerolog.Nop(), err
	}

	eng, err := engine.New(ctx, cfg,
		engine.WithLogger(logger),
		engine.WithMetrics(metrics.New()),
	)
	if err != nil {
		return nil, logger, fmt.Errorf("initializing engine: %w", err)
	}
	return eng, logger, nil
}
