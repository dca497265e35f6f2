package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dshills/langcore/internal/config"
	"github.com/dshills/langcore/internal/index"
	"github.com/dshills/langcore/internal/indexer"
	"github.com/dshills/langcore/internal/mcp"
	"github.com/dshills/langcore/internal/metrics"
	"github.com/dshills/langcore/internal/storage"
)

// CLI Constants
const (
	FlagConfig      = "config"
	FlagDB          = "db"
	FlagLogLevel    = "log-level"
	FlagLogFile     = "log-file"
	FlagMetricsAddr = "metrics-addr"
	FlagWatch       = "watch"
)

// CLI Variables
var (
	configPath    string
	dbPath        string
	logLevel      string
	logFile       string
	metricsAddr   string
	watch         bool
	includeTests  bool
	includeVendor bool
)

var rootCmd = &cobra.Command{
	Use:   "langcore",
	Short: "Language intelligence core served over MCP",
	Long: `langcore keeps open documents and projects, maintains a layered symbol
index and answers definition, hover and diagnostics queries.

  langcore                     # Serve MCP on stdio (same as 'langcore serve')
  langcore build-index ./repo  # Build the persisted index and exit
  langcore version             # Show build information`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve MCP requests on stdio",
	RunE:  runServe,
}

var buildIndexCmd = &cobra.Command{
	Use:   "build-index <path>...",
	Short: "Index Go projects into the database and exit",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runBuildIndex,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, _ []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "langcore\n")
		fmt.Fprintf(out, "Version: %s\n", version)
		fmt.Fprintf(out, "Build Time: %s\n", buildTime)
		fmt.Fprintf(out, "Build Mode: %s\n", storage.BuildMode)
		fmt.Fprintf(out, "SQLite Driver: %s\n", storage.DriverName)
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configPath, FlagConfig, "", "Configuration file (default ~/.langcore/config.yaml)")
	flags.StringVar(&dbPath, FlagDB, "", "Database path (overrides "+config.EnvDBPath+")")
	flags.StringVar(&logLevel, FlagLogLevel, "", "Log level: debug, info, warn, error")
	flags.StringVar(&logFile, FlagLogFile, "", "Append logs to this file instead of stderr")
	flags.StringVar(&metricsAddr, FlagMetricsAddr, "", "Serve Prometheus metrics on this address")
	flags.BoolVar(&watch, FlagWatch, false, "Reindex files changed on disk under open projects")

	buildIndexCmd.Flags().BoolVar(&includeTests, "include-tests", true, "Index *_test.go files")
	buildIndexCmd.Flags().BoolVar(&includeVendor, "include-vendor", false, "Index vendor/ directories")

	rootCmd.AddCommand(serveCmd, buildIndexCmd, versionCmd)
}

// loadConfig layers command-line flags over the loaded configuration
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed(FlagDB) {
		cfg.DBPath = dbPath
	}
	if flags.Changed(FlagLogLevel) {
		cfg.Log.Level = logLevel
	}
	if flags.Changed(FlagLogFile) {
		cfg.Log.File = logFile
	}
	if flags.Changed(FlagMetricsAddr) {
		cfg.MetricsAddr = metricsAddr
	}
	if flags.Changed(FlagWatch) {
		cfg.Watch = watch
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setup(cmd *cobra.Command) (*config.Config, *slog.Logger, io.Closer, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, nil, err
	}
	logger, closer, err := config.NewLogger(cfg.Log)
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, logger, closer, nil
}

// signalContext is cancelled on SIGINT or SIGTERM
func signalContext(logger *slog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received signal, shutting down gracefully", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigChan)
	}()

	return ctx, cancel
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, logger, closer, err := setup(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = closer.Close() }()

	logger.Info("langcore starting",
		"version", version,
		"build_mode", storage.BuildMode,
		"driver", storage.DriverName,
	)

	server, err := mcp.NewServer(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to create MCP server: %w", err)
	}
	defer func() {
		if err := server.Close(); err != nil {
			logger.Warn("shutdown incomplete", "error", err)
		}
	}()

	ctx, cancel := signalContext(logger)
	defer cancel()

	if cfg.MetricsAddr != "" {
		stop := serveMetrics(cfg.MetricsAddr, logger)
		defer stop()
	}

	logger.Info("MCP server ready, listening on stdio")
	if err := server.Serve(ctx); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	logger.Info("server stopped")
	return nil
}

// serveMetrics exposes /metrics until the returned stop function is called
func serveMetrics(addr string, logger *slog.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		logger.Info("metrics endpoint listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics endpoint failed", "error", err)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

func runBuildIndex(cmd *cobra.Command, args []string) error {
	cfg, logger, closer, err := setup(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = closer.Close() }()

	path, err := cfg.ResolvedDBPath()
	if err != nil {
		return err
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	store, err := storage.NewSQLiteStorage(path)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer func() { _ = store.Close() }()

	ctx, cancel := signalContext(logger)
	defer cancel()

	idx := indexer.New(store, index.NewMemoryStorage(), logger)
	icfg := indexer.DefaultConfig()
	icfg.IncludeTests = includeTests
	icfg.IncludeVendor = includeVendor

	out := cmd.OutOrStdout()
	for _, root := range args {
		stats, err := idx.BuildIndex(ctx, root, icfg)
		if err != nil {
			return fmt.Errorf("index %s: %w", root, err)
		}
		fmt.Fprintf(out, "%s: %d indexed, %d unchanged, %d failed, %d entries in %v\n",
			root, stats.FilesIndexed, stats.FilesSkipped, stats.FilesFailed,
			stats.EntriesExtracted, stats.Duration.Round(time.Millisecond))
		for _, msg := range stats.ErrorMessages {
			fmt.Fprintf(out, "  %s\n", msg)
		}
	}
	return nil
}
