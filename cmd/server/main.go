package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/ScraperAPI/internal/infrastructure/config"
	"github.com/GriffinCanCode/ScraperAPI/internal/infrastructure/logging"
	"github.com/GriffinCanCode/ScraperAPI/internal/infrastructure/server"
)

type flags struct {
	envFiles   []string
	port       string
	host       string
	modulesDir string
	pattern    string
	policy     string
	logLevel   string
	dev        bool
}

var opts flags

var rootCmd = &cobra.Command{
	Use:   "server",
	Short: "Serve every scraper module in a directory as GET /api/<name>",
	Long: `ScraperAPI discovers API modules (JavaScript files exporting {config,
initialize}, or declarative YAML/TOML scrapers) in the modules directory and
serves each one as GET /api/<name>.

Configuration comes from environment variables, optionally loaded from .env
files; flags override both.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup(cmd)
		if err != nil {
			return err
		}
		defer logger.Sync()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		srv, err := server.NewServer(ctx, cfg, logger)
		if err != nil {
			logger.Error("Failed to create server", zap.Error(err))
			return err
		}
		defer srv.Close()

		return srv.Run(ctx)
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringSliceVar(&opts.envFiles, "env-file", []string{".env"}, "dotenv files to load before reading the environment")
	pf.StringVar(&opts.modulesDir, "modules-dir", "", "directory scanned for modules (MODULES_DIR)")
	pf.StringVar(&opts.pattern, "pattern", "", "doublestar pattern of module files (MODULES_PATTERN)")
	pf.StringVar(&opts.policy, "load-policy", "", "fail or skip on module load errors (MODULES_LOAD_POLICY)")
	pf.StringVar(&opts.logLevel, "log-level", "", "debug, info, warn or error (LOG_LEVEL)")
	pf.BoolVar(&opts.dev, "dev", false, "development logging (LOG_DEV)")

	rootCmd.Flags().StringVar(&opts.port, "port", "", "listen port (PORT)")
	rootCmd.Flags().StringVar(&opts.host, "host", "", "listen host (HOST)")
}

// setup loads configuration with flag overrides and builds the logger.
func setup(cmd *cobra.Command) (*config.Config, *logging.Logger, error) {
	if err := config.LoadDotEnv(opts.envFiles...); err != nil {
		return nil, nil, err
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}

	changed := func(name string) bool {
		f := cmd.Flags().Lookup(name)
		return f != nil && f.Changed
	}
	if changed("port") {
		cfg.Server.Port = opts.port
	}
	if changed("host") {
		cfg.Server.Host = opts.host
	}
	if changed("modules-dir") {
		cfg.Modules.Dir = opts.modulesDir
	}
	if changed("pattern") {
		cfg.Modules.Pattern = opts.pattern
	}
	if changed("load-policy") {
		cfg.Modules.LoadPolicy = opts.policy
	}
	if changed("log-level") {
		cfg.Logging.Level = opts.logLevel
	}
	if changed("dev") {
		cfg.Logging.Development = opts.dev
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	logCfg := logging.DefaultConfig()
	if cfg.Logging.Development {
		logCfg = logging.DevelopmentConfig()
	}
	if cfg.Logging.Level != "" {
		logCfg.Level = cfg.Logging.Level
	}
	logger, err := logging.New(logCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return cfg, logger, nil
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
