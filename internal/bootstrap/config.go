package bootstrap

import (
	"flag"
	"fmt"
	"os"

	"github.com/camphubhq/pipeline/internal/config"
	"github.com/camphubhq/pipeline/internal/logger"
)

// configPath resolves the config file path: CONFIG_PATH env var wins,
// otherwise the given default.
func configPath(def string) string {
	if path := os.Getenv("CONFIG_PATH"); path != "" {
		return path
	}
	return def
}

// LoadConfig loads configuration. Uses the -config flag, defaulting to
// config.yml next to the binary.
func LoadConfig() (*config.Config, error) {
	path := flag.String("config", configPath("config.yml"), "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if validationErr := cfg.Validate(); validationErr != nil {
		return nil, fmt.Errorf("validate config: %w", validationErr)
	}
	return cfg, nil
}

// CreateLogger creates a logger instance from configuration.
func CreateLogger(cfg *config.Config, version string) (logger.Logger, error) {
	log, err := logger.NewLogger(cfg.Debug)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	return log.With(
		logger.String("service", "pipeline"),
		logger.String("version", version),
	), nil
}
