package bootstrap

import (
	"fmt"

	"github.com/camphubhq/pipeline/internal/config"
	"github.com/camphubhq/pipeline/internal/database"
	"github.com/camphubhq/pipeline/internal/logger"
)

// SetupDatabase creates a database connection.
func SetupDatabase(cfg *config.Config, log logger.Logger) (*database.DB, error) {
	db, err := database.New(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("database connection: %w", err)
	}
	return db, nil
}
