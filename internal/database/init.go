package database

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/gridiron-edge/internal/config"
)

// requiredTables must exist before the engine starts; schema management is
// handled outside this service.
var requiredTables = []string{
	"team_ratings",
	"rating_history",
	"games",
	"market_lines",
	"efactor_events",
	"source_quality",
	"predictions",
	"outcomes",
}

// Initialize creates a database connection pool and verifies the schema is present
func Initialize(ctx context.Context, cfg *config.Config, log *logrus.Logger) (*DB, error) {
	db, err := NewDB(ctx, &cfg.Database)
	if err != nil {
		return nil, err
	}

	var missing []string
	for _, table := range requiredTables {
		var exists bool
		err := db.pool.QueryRow(ctx, "SELECT to_regclass($1) IS NOT NULL", table).Scan(&exists)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to inspect schema: %w", err)
		}
		if !exists {
			missing = append(missing, table)
		}
	}
	if len(missing) > 0 {
		db.Close()
		return nil, fmt.Errorf("database schema incomplete, missing tables: %v", missing)
	}

	log.WithFields(logrus.Fields{
		"host":     cfg.Database.Host,
		"database": cfg.Database.Name,
	}).Info("Database connection established")

	return db, nil
}
