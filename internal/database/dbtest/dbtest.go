// Package dbtest opens migrated in-memory SQLite databases for tests.
package dbtest

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/blockedby/groupinviter/internal/database"
	"github.com/blockedby/groupinviter/internal/migrator"
	"github.com/blockedby/groupinviter/migrations"
)

// New returns a fresh in-memory database with all migrations applied. It is
// closed when the test ends.
func New(t testing.TB) *gorm.DB {
	t.Helper()
	ctx := context.Background()

	db, err := database.Open(ctx, sqlite.Open(":memory:"), database.DialectSQLite)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	src, err := migrations.ForDialect(database.DialectSQLite)
	require.NoError(t, err)
	m, err := migrator.NewWithFS(src)
	require.NoError(t, err)
	_, err = m.Up(ctx, db.GORM)
	require.NoError(t, err)

	return db.GORM
}
