// Package main is the entry point for the tuition service, the
// upstream the gateway proxies to.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/melisa-sener/tuition-payment-api/internal/auth"
	"github.com/melisa-sener/tuition-payment-api/internal/auth/token"
	"github.com/melisa-sener/tuition-payment-api/internal/config"
	"github.com/melisa-sener/tuition-payment-api/internal/observability"
	"github.com/melisa-sener/tuition-payment-api/internal/tuition"
)

// cliFlags holds command line flags.
type cliFlags struct {
	listenAddress string
	databasePath  string
	jwtSecret     string
	tokenTTL      time.Duration
	logLevel      string
	logFormat     string
}

func main() {
	flags := parseFlags()

	logger := initLogger(flags)
	defer func() { _ = logger.Sync() }()

	store, err := tuition.OpenStore(flags.databasePath)
	if err != nil {
		logger.Fatal("failed to open store", observability.Error(err))
	}
	defer func() { _ = store.Close() }()

	tokens, err := token.NewService(flags.jwtSecret, flags.tokenTTL,
		token.WithLogger(logger),
	)
	if err != nil {
		logger.Fatal("failed to create token service", observability.Error(err))
	}

	credentials := auth.NewStaticStore(defaultUsers())

	gin.SetMode(gin.ReleaseMode)
	server := tuition.NewServer(store, tokens, credentials,
		tuition.WithServerLogger(logger),
	)

	logger.Info("tuition service listening",
		observability.String("address", flags.listenAddress),
		observability.String("database", flags.databasePath),
	)

	if err := server.Run(flags.listenAddress); err != nil {
		logger.Fatal("server failed", observability.Error(err))
	}
}

// parseFlags parses command line flags, with environment fallbacks.
func parseFlags() cliFlags {
	listenAddress := flag.String("listen", getEnvOrDefault("TUITION_LISTEN_ADDRESS", ":3000"),
		"Listen address")
	databasePath := flag.String("db", getEnvOrDefault("TUITION_DB_PATH", "tuition.db"),
		"SQLite database path")
	jwtSecret := flag.String("jwt-secret", getEnvOrDefault("JWT_SECRET", "supersecretkey-change-me"),
		"JWT signing secret")
	tokenTTL := flag.Duration("token-ttl", time.Hour, "Issued token lifetime")
	logLevel := flag.String("log-level", getEnvOrDefault("TUITION_LOG_LEVEL", "info"),
		"Log level (debug, info, warn, error)")
	logFormat := flag.String("log-format", getEnvOrDefault("TUITION_LOG_FORMAT", "json"),
		"Log format (json, console)")
	flag.Parse()

	return cliFlags{
		listenAddress: *listenAddress,
		databasePath:  *databasePath,
		jwtSecret:     *jwtSecret,
		tokenTTL:      *tokenTTL,
		logLevel:      *logLevel,
		logFormat:     *logFormat,
	}
}

// defaultUsers returns the demo credential set.
func defaultUsers() []config.UserConfig {
	return []config.UserConfig{
		{Username: "admin1", Password: getEnvOrDefault("TUITION_ADMIN_PASSWORD", "adminpass"), Role: "admin"},
		{Username: "bank1", Password: getEnvOrDefault("TUITION_BANK_PASSWORD", "bankpass"), Role: "bank"},
	}
}

// initLogger initializes the logger.
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

// getEnvOrDefault returns the environment variable value or a default.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
