package database

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	schemaInitOnce sync.Once
	schemaInitErr  error
	cleanupMutex   sync.Mutex // Serializes cleanup to prevent concurrent TRUNCATE conflicts
)

// TestDB wraps a connection pool configured for testing
type TestDB struct {
	Pool *pgxpool.Pool
}

// GetTestDatabaseURL returns the test database URL from the environment
func GetTestDatabaseURL() string {
	return os.Getenv("TEST_DATABASE_URL")
}

// NewTestDB creates a connection to the test database
// It will skip the test if the database is not configured or not reachable
func NewTestDB(t *testing.T) *TestDB {
	t.Helper()

	dbURL := GetTestDatabaseURL()
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping database test")
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	config, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		t.Skipf("Could not parse test database URL: %v", err)
		return nil
	}

	// Smaller pool for tests
	config.MaxConns = 5
	config.MinConns = 1

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		t.Skipf("Could not connect to test database: %v", err)
		return nil
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		t.Skipf("Could not ping test database: %v", err)
		return nil
	}

	tdb := &TestDB{Pool: pool}

	t.Cleanup(func() {
		tdb.Cleanup()
		tdb.Close()
	})

	return tdb
}

// SetupSchema executes the embedded schema
func (tdb *TestDB) SetupSchema() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	_, err := tdb.Pool.Exec(ctx, schemaSQL)
	return err
}

// Cleanup truncates all tables (thread-safe for parallel tests)
func (tdb *TestDB) Cleanup() {
	cleanupMutex.Lock()
	defer cleanupMutex.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Best effort cleanup
	_, _ = tdb.Pool.Exec(ctx, "TRUNCATE minutes")
}

// Close closes the connection pool
func (tdb *TestDB) Close() {
	if tdb.Pool != nil {
		tdb.Pool.Close()
	}
}

// WithTestDB is a helper for tests that need database access
// Usage:
//
//	func TestSomething(t *testing.T) {
//	    database.WithTestDB(t, func(tdb *database.TestDB) {
//	        // Use tdb.Pool for database operations
//	    })
//	}
func WithTestDB(t *testing.T, fn func(tdb *TestDB)) {
	t.Helper()

	tdb := NewTestDB(t)
	if tdb == nil {
		return // Test was skipped
	}

	// Setup schema once (thread-safe for parallel tests)
	schemaInitOnce.Do(func() {
		schemaInitErr = tdb.SetupSchema()
	})

	if schemaInitErr != nil {
		t.Skipf("Could not initialize test schema: %v", schemaInitErr)
		return
	}

	tdb.Cleanup()
	fn(tdb)
}
