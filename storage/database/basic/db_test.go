package basic

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"railkit/storage/database"
	"railkit/storage/database/dialect"
)

func openMemory(t *testing.T) *DB {
	t.Helper()
	db, err := Open(context.Background(), database.DBConfig{Driver: "sqlite", DSN: "file::memory:", MaxOpenConns: 1})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	_, err = db.Exec(context.Background(), "CREATE TABLE kv (k TEXT PRIMARY KEY, v INTEGER NOT NULL)")
	require.NoError(t, err)
	return db
}

func count(t *testing.T, db *DB) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow(context.Background(), "SELECT COUNT(*) FROM kv").Scan(&n))
	return n
}

func TestOpen_SQLite(t *testing.T) {
	db := openMemory(t)
	assert.Equal(t, dialect.NameSQLite, db.Dialect().Name())
	require.NoError(t, db.Ping(context.Background()))

	_, err := db.Exec(context.Background(), "INSERT INTO kv (k, v) VALUES (?, ?)", "a", 1)
	require.NoError(t, err)
	_, err = db.Exec(context.Background(), "INSERT INTO kv (k, v) VALUES (?, ?)", "a", 2)
	require.Error(t, err)
	assert.True(t, db.Dialect().IsUniqueViolation(err))

	rows, err := db.Query(context.Background(), "SELECT k, v FROM kv WHERE v >= ?", 1)
	require.NoError(t, err)
	defer rows.Close()
	require.True(t, rows.Next())
	var k string
	var v int
	require.NoError(t, rows.Scan(&k, &v))
	assert.Equal(t, "a", k)
	assert.Equal(t, 1, v)
	assert.False(t, rows.Next())
	assert.NoError(t, rows.Err())
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), database.DBConfig{Driver: "nope"})
	assert.Error(t, err)
}

func TestInTx(t *testing.T) {
	db := openMemory(t)
	ctx := context.Background()

	require.NoError(t, InTx(ctx, db, func(tx database.ITransaction) error {
		_, err := tx.Exec(ctx, "INSERT INTO kv (k, v) VALUES (?, ?)", "a", 1)
		return err
	}))
	assert.Equal(t, 1, count(t, db))

	boom := errors.New("boom")
	err := InTx(ctx, db, func(tx database.ITransaction) error {
		if _, err := tx.Exec(ctx, "INSERT INTO kv (k, v) VALUES (?, ?)", "b", 2); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, count(t, db))

	assert.Panics(t, func() {
		_ = InTx(ctx, db, func(tx database.ITransaction) error {
			_, _ = tx.Exec(ctx, "INSERT INTO kv (k, v) VALUES (?, ?)", "c", 3)
			panic("stop")
		})
	})
	assert.Equal(t, 1, count(t, db))
}
