package database

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/yourusername/gridiron-edge/internal/config"
)

// TestConfigEnv names the config file used by integration tests
const TestConfigEnv = "GRIDIRON_EDGE_TEST_CONFIG"

// SetupTestDB connects to the integration database, skipping the test when
// no test configuration is provided
func SetupTestDB(t *testing.T) *DB {
	t.Helper()

	path := os.Getenv(TestConfigEnv)
	if path == "" {
		t.Skipf("integration test: set %s to run", TestConfigEnv)
	}

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("failed to load test config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	db, err := NewDB(ctx, &cfg.Database)
	if err != nil {
		t.Fatalf("failed to create test database connection: %v", err)
	}

	t.Cleanup(db.Close)
	return db
}
