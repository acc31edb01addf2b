package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blockedby/groupinviter/internal/models"
)

func TestInvitesRepository_RecordUpsertsAndCountsAttempts(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	g := seedGroup(t, db, "upsert")
	repo := NewInvitesRepository(db)

	require.NoError(t, repo.Record(ctx, &models.Invite{Username: "alice", GroupID: g.ID, Status: models.InviteStatusFailed, Error: "RPC_CALL_FAIL", InvitedBy: 1}))
	require.NoError(t, repo.Record(ctx, &models.Invite{Username: "alice", GroupID: g.ID, Status: models.InviteStatusSuccess, InvitedBy: 2}))

	inv, err := repo.Get(ctx, "alice", g.ID)
	require.NoError(t, err)
	require.NotNil(t, inv)
	assert.Equal(t, models.InviteStatusSuccess, inv.Status)
	assert.Equal(t, "", inv.Error)
	assert.Equal(t, 2, inv.Attempts)
	assert.Equal(t, int64(2), inv.InvitedBy)

	var rows int64
	require.NoError(t, db.Model(&models.Invite{}).Count(&rows).Error)
	assert.Equal(t, int64(1), rows)
}

func TestInvitesRepository_Pending(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	g := seedGroup(t, db, "pending")
	other := seedGroup(t, db, "other")
	contacts := NewContactsRepository(db)
	repo := NewInvitesRepository(db)

	names := []string{"fresh", "ok", "member", "skipped", "failed_once", "failed_max", "declined_old", "declined_new"}
	_, err := contacts.AddBatch(ctx, g.ID, names)
	require.NoError(t, err)
	_, err = contacts.AddBatch(ctx, other.ID, []string{"elsewhere"})
	require.NoError(t, err)

	now := time.Now().UTC()
	record := func(username string, status models.InviteStatus, times int, at time.Time) {
		for i := 0; i < times; i++ {
			require.NoError(t, repo.Record(ctx, &models.Invite{Username: username, GroupID: g.ID, Status: status, UpdatedAt: at}))
		}
	}
	record("ok", models.InviteStatusSuccess, 1, now)
	record("member", models.InviteStatusAlreadyMember, 1, now)
	record("skipped", models.InviteStatusSkipped, 1, now)
	record("failed_once", models.InviteStatusFailed, 1, now)
	record("failed_max", models.InviteStatusFailed, 3, now)
	record("declined_old", models.InviteStatusDeclined, 1, now.Add(-40*24*time.Hour))
	record("declined_new", models.InviteStatusDeclined, 1, now.Add(-2*24*time.Hour))

	got, err := repo.Pending(ctx, g.ID, PendingFilter{
		Limit:          50,
		MaxAttempts:    3,
		DeclinedBefore: now.Add(-30 * 24 * time.Hour),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"fresh", "failed_once", "declined_old"}, got)

	limited, err := repo.Pending(ctx, g.ID, PendingFilter{Limit: 1, MaxAttempts: 3, DeclinedBefore: now})
	require.NoError(t, err)
	assert.Equal(t, []string{"fresh"}, limited)

	n, err := repo.CountPending(ctx, g.ID, PendingFilter{MaxAttempts: 3, DeclinedBefore: now.Add(-30 * 24 * time.Hour)})
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

func TestInvitesRepository_CountsAndSummary(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	g := seedGroup(t, db, "summary")
	_, err := NewContactsRepository(db).AddBatch(ctx, g.ID, []string{"a", "b", "c", "d", "e", "f"})
	require.NoError(t, err)
	repo := NewInvitesRepository(db)

	now := time.Now().UTC()
	yesterday := now.Add(-48 * time.Hour)
	require.NoError(t, repo.Record(ctx, &models.Invite{Username: "a", GroupID: g.ID, Status: models.InviteStatusSuccess, InvitedBy: 9}))
	require.NoError(t, repo.Record(ctx, &models.Invite{Username: "b", GroupID: g.ID, Status: models.InviteStatusDeclined, InvitedBy: 9}))
	require.NoError(t, repo.Record(ctx, &models.Invite{Username: "c", GroupID: g.ID, Status: models.InviteStatusDeclined, UpdatedAt: now.Add(-60 * 24 * time.Hour)}))
	require.NoError(t, repo.Record(ctx, &models.Invite{Username: "d", GroupID: g.ID, Status: models.InviteStatusFailed, UpdatedAt: yesterday}))

	dayStart := StartOfDay(now)
	n, err := repo.CountForGroupSince(ctx, g.ID, dayStart)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = repo.CountByUserSince(ctx, 9, dayStart)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	s, err := repo.Summary(ctx, g.ID, now.Add(-30*24*time.Hour), dayStart)
	require.NoError(t, err)
	assert.Equal(t, int64(6), s.Contacts)
	assert.Equal(t, int64(1), s.Invited)
	assert.Equal(t, int64(2), s.Declined)
	assert.Equal(t, int64(1), s.RecentDeclined)
	assert.Equal(t, int64(1), s.Failed)
	assert.Equal(t, int64(2), s.NotInvited)
	assert.Equal(t, int64(2), s.Today)
}
