package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"
)

// CLIConfig holds command-line configuration for dvmixerd.
type CLIConfig struct {
	ConfigPath      string
	ListenAddr      string
	LogLevel        string
	LogFormat       string
	Debug           bool
	ShutdownTimeout time.Duration
	HealthPort      int
	MetricsPort     int
	NATSURL         string
	ShowVersion     bool
	ShowHelp        bool
	Validate        bool
}

func parseFlags() *CLIConfig {
	cfg := &CLIConfig{}

	flag.StringVar(&cfg.ConfigPath, "config",
		getEnv("DVMIXER_CONFIG", ""),
		"Path to JSON configuration file, optional (env: DVMIXER_CONFIG)")

	flag.StringVar(&cfg.ConfigPath, "c",
		getEnv("DVMIXER_CONFIG", ""),
		"Path to JSON configuration file, optional (env: DVMIXER_CONFIG)")

	flag.StringVar(&cfg.ListenAddr, "listen",
		getEnv("DVMIXER_LISTEN", ":8600"),
		"Address to listen for source and sink connections on (env: DVMIXER_LISTEN)")

	flag.StringVar(&cfg.LogLevel, "log-level",
		getEnv("DVMIXER_LOG_LEVEL", "info"),
		"Log level: debug, info, warn, error (env: DVMIXER_LOG_LEVEL)")

	flag.StringVar(&cfg.LogFormat, "log-format",
		getEnv("DVMIXER_LOG_FORMAT", "json"),
		"Log format: json, text (env: DVMIXER_LOG_FORMAT)")

	flag.BoolVar(&cfg.Debug, "debug",
		getEnvBool("DVMIXER_DEBUG", false),
		"Enable debug logging (env: DVMIXER_DEBUG)")

	flag.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout",
		getEnvDuration("DVMIXER_SHUTDOWN_TIMEOUT", 10*time.Second),
		"Graceful shutdown timeout (env: DVMIXER_SHUTDOWN_TIMEOUT)")

	flag.IntVar(&cfg.HealthPort, "health-port",
		getEnvInt("DVMIXER_HEALTH_PORT", 8080),
		"Health check port, 0 to disable (env: DVMIXER_HEALTH_PORT)")

	flag.IntVar(&cfg.MetricsPort, "metrics-port",
		getEnvInt("DVMIXER_METRICS_PORT", 9090),
		"Prometheus metrics port, 0 to disable (env: DVMIXER_METRICS_PORT)")

	flag.StringVar(&cfg.NATSURL, "nats-url",
		getEnv("DVMIXER_NATS_URL", ""),
		"NATS server URL for structured log/health publication, empty to disable (env: DVMIXER_NATS_URL)")

	flag.BoolVar(&cfg.ShowVersion, "version", false, "Show version information")
	flag.BoolVar(&cfg.ShowVersion, "v", false, "Show version information")
	flag.BoolVar(&cfg.ShowHelp, "help", false, "Show help information")
	flag.BoolVar(&cfg.ShowHelp, "h", false, "Show help information")
	flag.BoolVar(&cfg.Validate, "validate", false, "Validate configuration and exit")

	flag.Usage = func() {
		printDetailedHelp()
	}

	flag.Parse()

	if cfg.Debug {
		cfg.LogLevel = "debug"
	}

	return cfg
}

func validateFlags(cfg *CLIConfig) error {
	if cfg.ShowVersion || cfg.ShowHelp {
		return nil
	}

	if cfg.ConfigPath != "" {
		if _, err := os.Stat(cfg.ConfigPath); err != nil {
			return fmt.Errorf("config file not found: %s", cfg.ConfigPath)
		}
	}

	validLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLevels, cfg.LogLevel) {
		return fmt.Errorf("invalid log level: %s", cfg.LogLevel)
	}

	validFormats := []string{"json", "text"}
	if !contains(validFormats, cfg.LogFormat) {
		return fmt.Errorf("invalid log format: %s", cfg.LogFormat)
	}

	if cfg.HealthPort < 0 || cfg.HealthPort > 65535 {
		return fmt.Errorf("invalid health port: %d", cfg.HealthPort)
	}

	if cfg.MetricsPort < 0 || cfg.MetricsPort > 65535 {
		return fmt.Errorf("invalid metrics port: %d", cfg.MetricsPort)
	}

	if cfg.ListenAddr == "" {
		return fmt.Errorf("listen address must not be empty")
	}

	return nil
}

func printDetailedHelp() {
	_, _ = fmt.Fprintf(os.Stderr, `%s - DV video mixer hub

Usage: %s [options]

Options:
`, appName, os.Args[0])
	flag.PrintDefaults()
	_, _ = fmt.Fprintf(os.Stderr, `
Examples:
  # Listen on a non-default port
  %s --listen=:8700

  # Run with debug logging in text format
  %s --log-level=debug --log-format=text

  # Run with environment variables
  export DVMIXER_LISTEN=:8700
  export DVMIXER_LOG_LEVEL=debug
  %s

  # Validate configuration only
  %s --validate

Version: %s
Build: %s
`, os.Args[0], os.Args[0], os.Args[0], os.Args[0], Version, BuildTime)
}

// Environment variable helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// Utility function to check if slice contains string
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
