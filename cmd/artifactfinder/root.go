package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Hazer/ArtifactFinder/internal/config"
	"github.com/Hazer/ArtifactFinder/internal/finder"
	"github.com/Hazer/ArtifactFinder/internal/metrics"
)

// app carries state shared by all subcommands
type app struct {
	cfgFile  string
	dbPath   string
	logLevel string

	cfg    *config.Config
	logger *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "artifactfinder",
		Short: "ArtifactFinder - find which artifact provides a class or function",
		Long: `ArtifactFinder keeps a local index of library artifacts and answers
"which artifact provides class or function X?".

Artifacts are queued with "add", indexed by a crawl driver, and queried with
"search" or through the MCP server started by "serve".`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "config file (default is ./"+config.DefaultFileName+")")
	flags.StringVar(&a.dbPath, "db", "", "index database path, overrides storage.path")
	flags.StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error")

	root.AddCommand(
		newServeCmd(a),
		newSearchCmd(a),
		newAddCmd(a),
		newStatusCmd(a),
		newSyncCmd(a),
		newVersionCmd(),
	)
	return root
}

// setup loads the configuration, applies flag overrides and builds the logger
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if cmd.Flags().Changed("db") {
		cfg.Storage.Path = a.dbPath
	}
	if cmd.Flags().Changed("log-level") {
		cfg.Logging.Level = a.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg

	logger, err := newLogger(cfg.Logging.Level)
	if err != nil {
		return err
	}
	a.logger = logger
	return nil
}

// newLogger builds a production logger writing to stderr. stdout is
// reserved for MCP protocol messages and command output.
func newLogger(level string) (*zap.Logger, error) {
	atomicLevel := zap.NewAtomicLevel()
	if err := atomicLevel.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = atomicLevel
	zapCfg.OutputPaths = []string{"stderr"}
	zapCfg.ErrorOutputPaths = []string{"stderr"}
	zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := zapCfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return logger, nil
}

// openFinder opens the configured index. m may be nil.
func (a *app) openFinder(m *metrics.Metrics) (*finder.Finder, error) {
	f, err := finder.Open(a.cfg, a.logger, m)
	if err != nil {
		return nil, err
	}
	a.logger.Debug("index opened", zap.String("path", a.cfg.Storage.Path))
	return f, nil
}
