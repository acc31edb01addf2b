package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/blockedby/groupinviter/internal/database/dbtest"
	"github.com/blockedby/groupinviter/internal/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	return dbtest.New(t)
}

func seedGroup(t *testing.T, db *gorm.DB, username string) *models.Group {
	t.Helper()
	g := &models.Group{Name: username + " chat", Username: username}
	created, err := NewGroupsRepository(db).Create(context.Background(), g)
	require.NoError(t, err)
	require.True(t, created)
	return g
}
