// Package main is the entry point for the tuition payment gateway.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/melisa-sener/tuition-payment-api/internal/config"
	"github.com/melisa-sener/tuition-payment-api/internal/gateway"
	"github.com/melisa-sener/tuition-payment-api/internal/observability"
)

// cliFlags holds command line flags.
type cliFlags struct {
	configPath  string
	logLevel    string
	logFormat   string
	showVersion bool
}

func main() {
	flags := parseFlags()

	if flags.showVersion {
		printVersion()
		return
	}

	logger := initLogger(flags)
	defer func() { _ = logger.Sync() }()

	cfg := loadAndValidateConfig(flags.configPath, logger)

	gw, err := gateway.New(cfg, gateway.WithLogger(logger))
	if err != nil {
		logger.Fatal("failed to create gateway", observability.Error(err))
	}

	if err := gw.Start(context.Background()); err != nil {
		logger.Fatal("failed to start gateway", observability.Error(err))
	}

	waitForShutdown(gw, logger)
}

// parseFlags parses command line flags, with environment fallbacks.
func parseFlags() cliFlags {
	configPath := flag.String("config", getEnvOrDefault("GATEWAY_CONFIG_PATH", "configs/gateway.yaml"),
		"Path to configuration file")
	logLevel := flag.String("log-level", getEnvOrDefault("GATEWAY_LOG_LEVEL", "info"),
		"Log level (debug, info, warn, error)")
	logFormat := flag.String("log-format", getEnvOrDefault("GATEWAY_LOG_FORMAT", "json"),
		"Log format (json, console)")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	return cliFlags{
		configPath:  *configPath,
		logLevel:    *logLevel,
		logFormat:   *logFormat,
		showVersion: *showVersion,
	}
}

// printVersion prints version information and exits.
func printVersion() {
	fmt.Printf("tuition-payment-gateway version %s\n", gateway.Version)
	fmt.Printf("  Build time: %s\n", gateway.BuildTime)
	fmt.Printf("  Git commit: %s\n", gateway.Commit)
}

// initLogger initializes the global logger.
func initLogger(flags cliFlags) observability.Logger {
	logger, err := observability.NewLogger(observability.LogConfig{
		Level:  flags.logLevel,
		Format: flags.logFormat,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	observability.SetGlobalLogger(logger)
	return logger
}

// loadAndValidateConfig loads and validates the configuration, falling
// back to defaults when no config file exists at the given path.
func loadAndValidateConfig(configPath string, logger observability.Logger) *config.Config {
	logger.Info("starting tuition payment gateway",
		observability.String("version", gateway.Version),
		observability.String("config", configPath),
	)

	cfg, err := loadConfigOrDefault(configPath)
	if err != nil {
		logger.Fatal("failed to load configuration", observability.Error(err))
	}

	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid configuration", observability.Error(err))
	}

	logger.Info("configuration loaded",
		observability.String("listen", cfg.Server.ListenAddress),
		observability.String("upstream", cfg.Upstream.URL),
		observability.Bool("rate_limit_enabled", cfg.RateLimit.Enabled),
		observability.Int64("rate_limit_requests", cfg.RateLimit.Requests),
		observability.String("rate_limit_store", cfg.RateLimit.Store),
	)

	return cfg
}

// loadConfigOrDefault reads the config file when present, otherwise
// returns defaults so the gateway runs out of the box.
func loadConfigOrDefault(configPath string) (*config.Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return config.Default(), nil
	}
	return config.LoadConfig(configPath)
}

// waitForShutdown blocks until a termination signal or a listener
// failure, then drains the gateway.
func waitForShutdown(gw *gateway.Gateway, logger observability.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", observability.String("signal", sig.String()))
	case err := <-gw.Errors():
		logger.Error("listener failed", observability.Error(err))
	}

	if err := gw.Stop(context.Background()); err != nil {
		logger.Error("failed to stop gateway gracefully", observability.Error(err))
	}
}

// getEnvOrDefault returns the environment variable value or a default.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
