package inviter

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blockedby/groupinviter/internal/telegram"
)

func TestStatus(t *testing.T) {
	env := newTestEnv(t, testPolicy(), "alice", "bob", "carol", "dave")
	env.tg.script["bob"] = []reply{{res: telegram.InviteResult{MissingInvitee: true}}}
	ctx := context.Background()

	_, err := env.svc.Run(ctx, CampaignRequest{GroupID: env.group.ID, Limit: 2})
	require.NoError(t, err)

	st, err := env.svc.Status(ctx, env.group.ID, 0)
	require.NoError(t, err)

	assert.Equal(t, env.group.ID, st.Group.ID)
	assert.Equal(t, int64(4), st.Summary.Contacts)
	assert.Equal(t, int64(1), st.Summary.Invited)
	assert.Equal(t, int64(1), st.Summary.Declined)
	assert.Equal(t, int64(1), st.Summary.RecentDeclined)
	assert.Equal(t, int64(2), st.Summary.NotInvited)
	assert.Equal(t, int64(2), st.Summary.Today)
	assert.Equal(t, 2, st.Quota.GroupToday)
	assert.Equal(t, 48, st.Quota.Remaining)
	assert.Equal(t, int64(2), st.Pending)

	n, err := env.svc.PendingCount(ctx, env.group.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	_, err = env.svc.Status(ctx, 12345, 0)
	assert.ErrorIs(t, err, ErrGroupNotFound)
}

func TestQuota_NeverNegative(t *testing.T) {
	p := testPolicy()
	p.DailyLimit = 1
	env := newTestEnv(t, p, "alice")
	ctx := context.Background()

	_, err := env.svc.Run(ctx, CampaignRequest{GroupID: env.group.ID})
	require.NoError(t, err)

	env.svc.policy.DailyLimit = 0
	q, err := env.svc.Quota(ctx, env.group.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, q.Remaining)
	assert.Equal(t, 1, q.GroupToday)
}
