package database

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrateURL(t *testing.T) {
	assert.Equal(t, "pgx5://u:p@db:5432/shop", migrateURL("postgres://u:p@db:5432/shop"))
	assert.Equal(t, "pgx5://db/shop?sslmode=disable", migrateURL("postgresql://db/shop?sslmode=disable"))
	assert.Equal(t, "pgx5://db/shop", migrateURL("pgx5://db/shop"))
}

func TestErrorCode(t *testing.T) {
	err := fmt.Errorf("insert: %w", &pgconn.PgError{Code: UniqueViolation, ConstraintName: "orders_order_number_key"})

	assert.Equal(t, UniqueViolation, ErrorCode(err))
	assert.Equal(t, "", ErrorCode(errors.New("plain")))
	assert.True(t, IsUniqueViolation(err, ""))
	assert.True(t, IsUniqueViolation(err, "orders_order_number_key"))
	assert.False(t, IsUniqueViolation(err, "orders_payment_reference_key"))

	fk := &pgconn.PgError{Code: "23503", ConstraintName: "orders_order_number_key"}
	assert.False(t, IsUniqueViolation(fk, "orders_order_number_key"))
	assert.False(t, IsUniqueViolation(errors.New("plain"), ""))
}

// TestDB_WithinTx needs a live database; it is skipped unless TEST_DATABASE_URL is set.
func TestDB_WithinTx(t *testing.T) {
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	db, err := New(ctx, url, 2)
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, db.Migrate())

	_, err = db.Conn(ctx).Exec(ctx, `INSERT INTO products (id, name, price, stock_count, in_stock) VALUES ('tx-check', 'Check', 1, 1, true) ON CONFLICT (id) DO NOTHING`)
	require.NoError(t, err)
	defer db.Conn(ctx).Exec(ctx, `DELETE FROM products WHERE id = 'tx-check'`)

	errAbort := errors.New("abort")
	err = db.WithinTx(ctx, func(ctx context.Context) error {
		_, err := db.Conn(ctx).Exec(ctx, `UPDATE products SET stock_count = 0 WHERE id = 'tx-check'`)
		require.NoError(t, err)
		return errAbort
	})
	assert.ErrorIs(t, err, errAbort)

	var stock int
	require.NoError(t, db.Conn(ctx).QueryRow(ctx, `SELECT stock_count FROM products WHERE id = 'tx-check'`).Scan(&stock))
	assert.Equal(t, 1, stock, "rolled back update must not be visible")
}
