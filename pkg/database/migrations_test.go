package database

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestInMemorySchemaApplies(t *testing.T) {
	db, err := NewInMemory(zap.NewNop())
	require.NoError(t, err)
	defer db.Close()

	for _, table := range []string{"users", "vendors", "vendor_requests", "claims", "claim_items", "claim_history", "payments", "payment_claims"} {
		var name string
		err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		require.NoError(t, err, "table %s should exist", table)
		assert.Equal(t, table, name)
	}
}

func TestMigrationsAreIdempotent(t *testing.T) {
	db, err := NewInMemory(zap.NewNop())
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, NewMigrator(db, zap.NewNop()).Run())

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count))
	assert.Equal(t, 1, count)
}

func TestWithTransactionRollsBackOnError(t *testing.T) {
	db, err := NewInMemory(zap.NewNop())
	require.NoError(t, err)
	defer db.Close()

	err = db.WithTransaction(func(tx *sql.Tx) error {
		if _, err := tx.Exec("INSERT INTO vendors (name) VALUES ('Acme')"); err != nil {
			return err
		}
		return assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM vendors").Scan(&count))
	assert.Equal(t, 0, count, "rolled-back insert must not be visible")
}
