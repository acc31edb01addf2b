package migrator

import (
	"context"
	"testing"
	"testing/fstest"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/blockedby/groupinviter/migrations"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	return db
}

func TestNewWithFS(t *testing.T) {
	fs := fstest.MapFS{
		"0002_more.up.sql":   &fstest.MapFile{Data: []byte("SELECT 2;")},
		"0001_test.up.sql":   &fstest.MapFile{Data: []byte("SELECT 1;")},
		"0001_test.down.sql": &fstest.MapFile{Data: []byte("SELECT 1;")},
		"README.md":          &fstest.MapFile{Data: []byte("ignored")},
	}
	m, err := NewWithFS(fs)
	require.NoError(t, err)
	require.Len(t, m.Migrations(), 2)
	assert.Equal(t, uint(1), m.Migrations()[0].Version)
	assert.Equal(t, "test", m.Migrations()[0].Name)
	assert.Equal(t, uint(2), m.Migrations()[1].Version)
}

func TestNewWithFS_NilFS(t *testing.T) {
	m, err := NewWithFS(nil)
	assert.Error(t, err)
	assert.Nil(t, m)
}

func TestNewWithFS_BadNames(t *testing.T) {
	cases := []string{"init.up.sql", "0001_init.sql", "abc_init.up.sql"}
	for _, name := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := NewWithFS(fstest.MapFS{name: &fstest.MapFile{Data: []byte("SELECT 1;")}})
			assert.Error(t, err)
		})
	}
}

func TestNewWithFS_DownOnly(t *testing.T) {
	_, err := NewWithFS(fstest.MapFS{"0001_x.down.sql": &fstest.MapFile{Data: []byte("SELECT 1;")}})
	assert.Error(t, err)
}

func TestSplitStatements(t *testing.T) {
	script := "-- comment\nCREATE TABLE a (\n  id INTEGER\n);\n\nCREATE INDEX i ON a(id);\nSELECT 1"
	stmts := splitStatements(script)
	require.Len(t, stmts, 3)
	assert.Equal(t, "CREATE TABLE a (\n  id INTEGER\n);", stmts[0])
	assert.Equal(t, "SELECT 1", stmts[2])
}

func TestMigrator_UpIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	src, err := migrations.ForDialect("sqlite")
	require.NoError(t, err)
	m, err := NewWithFS(src)
	require.NoError(t, err)

	ctx := context.Background()
	v, err := m.Version(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, uint(0), v)

	n, err := m.Up(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, len(m.Migrations()), n)

	n, err = m.Up(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	for _, table := range []string{"groups", "contacts", "invites", "users"} {
		assert.True(t, db.Migrator().HasTable(table), table)
	}

	v, err = m.Version(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, m.Migrations()[len(m.Migrations())-1].Version, v)
}

func TestMigrator_Down(t *testing.T) {
	db := openTestDB(t)
	src, err := migrations.ForDialect("sqlite")
	require.NoError(t, err)
	m, err := NewWithFS(src)
	require.NoError(t, err)

	ctx := context.Background()
	_, err = m.Up(ctx, db)
	require.NoError(t, err)

	// one step at a time, newest first
	require.NoError(t, m.Down(ctx, db))
	assert.False(t, db.Migrator().HasIndex("groups", "idx_groups_username_lower"))
	assert.True(t, db.Migrator().HasTable("invites"))

	require.NoError(t, m.Down(ctx, db))
	assert.False(t, db.Migrator().HasTable("invites"))
	v, err := m.Version(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, uint(0), v)
}

func TestMigrator_BrokenMigrationRollsBack(t *testing.T) {
	db := openTestDB(t)
	m, err := NewWithFS(fstest.MapFS{
		"0001_ok.up.sql":     &fstest.MapFile{Data: []byte("CREATE TABLE t1 (id INTEGER);")},
		"0002_broken.up.sql": &fstest.MapFile{Data: []byte("CREATE TABLE t2 (id INTEGER);\nNOT VALID SQL;")},
	})
	require.NoError(t, err)

	n, err := m.Up(context.Background(), db)
	assert.Error(t, err)
	assert.Equal(t, 1, n)
	assert.True(t, db.Migrator().HasTable("t1"))
	assert.False(t, db.Migrator().HasTable("t2"))

	v, err := m.Version(context.Background(), db)
	require.NoError(t, err)
	assert.Equal(t, uint(1), v)
}

func TestForDialect_Unknown(t *testing.T) {
	_, err := migrations.ForDialect("mysql")
	assert.Error(t, err)
}
