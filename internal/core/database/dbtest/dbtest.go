// Package dbtest opens a migrated database for repository tests.
package dbtest

import (
	"context"
	"os"
	"testing"

	"storefront-orders/internal/core/database"
)

// Open connects to TEST_DATABASE_URL and applies migrations.
// The test is skipped when the variable is unset or the server is unreachable.
func Open(t *testing.T) *database.DB {
	t.Helper()

	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	db, err := database.New(context.Background(), url, 8)
	if err != nil {
		t.Skipf("Postgres not available: %v", err)
	}
	t.Cleanup(db.Close)

	if err := db.Migrate(); err != nil {
		t.Fatalf("migrations failed: %v", err)
	}
	return db
}

// Exec runs a setup or cleanup statement and fails the test on error.
func Exec(t *testing.T, db *database.DB, sql string, args ...any) {
	t.Helper()
	ctx := context.Background()
	if _, err := db.Conn(ctx).Exec(ctx, sql, args...); err != nil {
		t.Fatalf("exec %q failed: %v", sql, err)
	}
}
