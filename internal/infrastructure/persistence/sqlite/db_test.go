package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/purchase-approval/pkg/database"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	raw, err := database.New(database.Config{Path: filepath.Join(t.TempDir(), "tx.db")}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = raw.Close() })

	_, err = raw.Exec(`CREATE TABLE items (id INTEGER PRIMARY KEY, name TEXT NOT NULL)`)
	require.NoError(t, err)
	return NewDB(raw.DB, zap.NewNop())
}

func count(t *testing.T, db *DB) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM items`).Scan(&n))
	return n
}

func TestWithTransaction_Commit(t *testing.T) {
	db := newTestDB(t)

	err := db.WithTransaction(context.Background(), func(ctx context.Context) error {
		require.NotNil(t, TxFrom(ctx))
		_, err := Conn(ctx, db.DB).ExecContext(ctx, `INSERT INTO items (name) VALUES ('a')`)
		return err
	})

	require.NoError(t, err)
	assert.Equal(t, 1, count(t, db))
}

func TestWithTransaction_RollbackOnError(t *testing.T) {
	db := newTestDB(t)
	boom := errors.New("boom")

	err := db.WithTransaction(context.Background(), func(ctx context.Context) error {
		if _, err := Conn(ctx, db.DB).ExecContext(ctx, `INSERT INTO items (name) VALUES ('a')`); err != nil {
			return err
		}
		return boom
	})

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, count(t, db))
}

func TestWithTransaction_RollbackOnPanic(t *testing.T) {
	db := newTestDB(t)

	assert.Panics(t, func() {
		_ = db.WithTransaction(context.Background(), func(ctx context.Context) error {
			_, _ = Conn(ctx, db.DB).ExecContext(ctx, `INSERT INTO items (name) VALUES ('a')`)
			panic("kaboom")
		})
	})
	assert.Equal(t, 0, count(t, db))
}

func TestWithTransaction_NestedJoinsOuter(t *testing.T) {
	db := newTestDB(t)

	err := db.WithTransaction(context.Background(), func(outer context.Context) error {
		outerTx := TxFrom(outer)
		inner := db.WithTransaction(outer, func(ctx context.Context) error {
			assert.Same(t, outerTx, TxFrom(ctx))
			_, err := Conn(ctx, db.DB).ExecContext(ctx, `INSERT INTO items (name) VALUES ('a')`)
			return err
		})
		require.NoError(t, inner)
		return errors.New("abort outer")
	})

	require.Error(t, err)
	assert.Equal(t, 0, count(t, db))
}

func TestConn_WithoutTransaction(t *testing.T) {
	db := newTestDB(t)
	assert.Nil(t, TxFrom(context.Background()))
	assert.Equal(t, Executor(db.DB), Conn(context.Background(), db.DB))
}
