package bot

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	"github.com/blockedby/groupinviter/internal/inviter"
	"github.com/blockedby/groupinviter/internal/models"
	"github.com/blockedby/groupinviter/internal/scraper"
	"github.com/blockedby/groupinviter/internal/telegram"
)

func TestSearchFlow(t *testing.T) {
	env := newTestEnv(t)
	env.groups.found = []telegram.Channel{
		{ID: 1, Username: "golang", Title: "Go"},
		{ID: 2, Username: "rustlang", Title: "Rust"},
	}

	c := newContext(1)
	require.NoError(t, env.bot.onSearch(c))
	assert.Equal(t, StateWaitingKeywords, env.bot.states.Get(1).State)

	c.text = "go, rust"
	require.NoError(t, env.bot.onText(c))
	assert.Equal(t, []string{"go", "rust"}, env.groups.keywords)
	assert.Contains(t, c.lastSent(), "Found 2 group(s)")
	assert.Equal(t, StateSelectingGroups, env.bot.states.Get(1).State)

	c.data = "1"
	require.NoError(t, env.bot.onSearchToggle(c))
	assert.Equal(t, []int{1}, env.bot.states.Get(1).SelectedIndexes())

	require.NoError(t, env.bot.onSearchSave(c))
	require.Len(t, env.groups.saved, 1)
	assert.Equal(t, "rustlang", env.groups.saved[0].Username)
	assert.Contains(t, c.lastEdited(), "Saved: 1")
	assert.Equal(t, StateIdle, env.bot.states.Get(1).State)
}

func TestSearchSave_RequiresSelection(t *testing.T) {
	env := newTestEnv(t)
	env.bot.states.Set(1, Session{State: StateSelectingGroups, Found: []telegram.Channel{{ID: 1}}})

	c := newContext(1)
	require.NoError(t, env.bot.onSearchSave(c))
	require.Len(t, c.responses, 1)
	assert.Contains(t, c.responses[0].Text, "Select at least one")
	assert.Nil(t, env.groups.saved)
}

func TestKeywords_EmptyAndNoResults(t *testing.T) {
	env := newTestEnv(t)
	c := newContext(1)
	env.bot.states.Set(1, Session{State: StateWaitingKeywords})

	c.text = " , ;"
	require.NoError(t, env.bot.onText(c))
	assert.Contains(t, c.lastSent(), "at least one keyword")
	assert.Equal(t, StateWaitingKeywords, env.bot.states.Get(1).State)

	c.text = "nothing"
	require.NoError(t, env.bot.onText(c))
	assert.Contains(t, c.lastSent(), "No public groups")
	assert.Equal(t, StateIdle, env.bot.states.Get(1).State)
}

func TestDeleteFlow(t *testing.T) {
	env := newTestEnv(t)
	a := env.seedGroup(t, "alpha_group")
	env.seedGroup(t, "beta_group")

	c := newContext(1)
	require.NoError(t, env.bot.onDelete(c))
	assert.Equal(t, StateDeletingGroups, env.bot.states.Get(1).State)

	c.data = "0"
	require.NoError(t, env.bot.onDeleteToggle(c))
	require.NoError(t, env.bot.onDeleteConfirm(c))
	assert.Contains(t, c.lastEdited(), "Deleted groups: 1")

	gone, err := env.store.GetByID(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)

	left, err := env.store.List(context.Background())
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, "beta_group", left[0].Username)
}

func TestDeleteConfirm_RefusesGroupWithRunningCampaign(t *testing.T) {
	env := newTestEnv(t)
	g := env.seedGroup(t, "busy_group")
	env.campaigns.current = &inviter.Campaign{GroupID: g.ID, UserID: 1}

	c := newContext(1)
	require.NoError(t, env.bot.onDelete(c))
	require.NoError(t, env.bot.onDeleteAll(c))
	require.NoError(t, env.bot.onDeleteConfirm(c))

	require.NotEmpty(t, c.responses)
	assert.Contains(t, c.responses[len(c.responses)-1].Text, "campaign is running")
	still, err := env.store.GetByID(context.Background(), g.ID)
	require.NoError(t, err)
	assert.NotNil(t, still)
}

func TestAddGroup_Errors(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{telegram.ErrInviteLink, "Invite links"},
		{telegram.ErrInvalidGroupLink, "does not look like"},
		{scraper.ErrGroupDailyLimit, "today's limit"},
		{telegram.ErrNotFound, "No public group"},
		{errors.New("boom"), "Failed to add the group"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			env := newTestEnv(t)
			env.groups.addErr = tt.err
			env.bot.states.Set(1, Session{State: StateWaitingGroupName})

			c := newContext(1)
			c.text = "t.me/whatever"
			require.NoError(t, env.bot.onText(c))
			assert.Contains(t, c.lastSent(), tt.want)
			assert.Equal(t, StateIdle, env.bot.states.Get(1).State)
		})
	}
}

func TestAddGroup_Success(t *testing.T) {
	env := newTestEnv(t)
	env.groups.added = &models.Group{ID: 3, Name: "Go", Username: "golang"}
	env.groups.created = true

	c := newContext(1)
	require.NoError(t, env.bot.onAdd(c))
	c.text = "@golang"
	require.NoError(t, env.bot.onText(c))
	assert.Contains(t, c.lastSent(), "Group added")
	assert.Contains(t, c.lastSent(), "@golang")
}

func TestInviteGroup_StartsCampaignAndEditsProgress(t *testing.T) {
	env := newTestEnv(t)
	g := env.seedGroup(t, "target_group")

	c := newContext(1)
	c.data = strconv.FormatInt(g.ID, 10)
	require.NoError(t, env.bot.onInviteGroup(c))

	assert.Equal(t, g.ID, env.campaigns.opts.GroupID)
	assert.Equal(t, int64(1), env.campaigns.opts.UserID)
	assert.Contains(t, c.lastEdited(), "Starting invites into Group target_group")

	env.campaigns.opts.OnProgress(inviter.Progress{GroupID: g.ID, Total: 4, Processed: 2, Success: 2})
	env.campaigns.opts.OnDone(&inviter.Report{Progress: inviter.Progress{Total: 4, Processed: 4, Success: 4}, Group: g}, nil)

	texts := env.api.texts()
	require.Len(t, texts, 2)
	assert.Contains(t, texts[0], "2/4")
	assert.Contains(t, texts[1], "Campaign finished")
}

func TestInviteGroup_CampaignEndingAtOnceKeepsItsResult(t *testing.T) {
	env := newTestEnv(t)
	g := env.seedGroup(t, "empty_group")
	env.campaigns.finish = func(opts inviter.StartOptions) {
		opts.OnDone(nil, inviter.ErrNothingToInvite)
	}

	c := newContext(1)
	c.data = strconv.FormatInt(g.ID, 10)
	editsBeforeStart := -1
	c.onEdit = func() { editsBeforeStart = len(env.api.texts()) }
	require.NoError(t, env.bot.onInviteGroup(c))

	assert.Equal(t, 0, editsBeforeStart, "the result must not be shown before the starting text")
	assert.Contains(t, c.lastEdited(), "Starting invites")
	require.Eventually(t, func() bool { return len(env.api.texts()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Contains(t, env.api.texts()[0], "Nobody left to invite")
}

func TestInviteGroup_AlreadyRunning(t *testing.T) {
	env := newTestEnv(t)
	env.campaigns.err = inviter.ErrAlreadyRunning

	c := newContext(1)
	c.data = "1"
	require.NoError(t, env.bot.onInviteGroup(c))
	require.Len(t, c.responses, 1)
	assert.True(t, c.responses[0].ShowAlert)
}

func TestCampaignDone_Errors(t *testing.T) {
	env := newTestEnv(t)
	msg := &tele.Message{ID: 1}

	env.bot.campaignDone(msg, "Go", nil, inviter.ErrDailyLimitReached)
	env.bot.campaignDone(msg, "Go", nil, inviter.ErrNothingToInvite)

	texts := env.api.texts()
	require.Len(t, texts, 2)
	assert.Contains(t, texts[0], "limit for Go is used up")
	assert.Contains(t, texts[1], "Nobody left to invite")
}

func TestInvitePicker_ShowsPendingCounts(t *testing.T) {
	env := newTestEnv(t)
	g := env.seedGroup(t, "picker_group")
	env.invites.pending[g.ID] = 12

	c := newContext(1)
	require.NoError(t, env.bot.onInvite(c))
	require.Len(t, c.markups, 1)
	require.Len(t, c.markups[0].InlineKeyboard, 1)
	assert.Contains(t, c.markups[0].InlineKeyboard[0][0].Text, "12 pending")
}

func TestStopButtons_OnlyOwnerOrAdmin(t *testing.T) {
	env := newTestEnv(t)
	env.campaigns.current = &inviter.Campaign{GroupID: 1, UserID: 1}

	stranger := newContext(2)
	require.NoError(t, env.bot.onInviteStop(stranger))
	assert.False(t, env.campaigns.stopped)

	admin := newContext(adminID)
	require.NoError(t, env.bot.onInviteStop(admin))
	assert.True(t, env.campaigns.stopped)
}

func TestStopCommand(t *testing.T) {
	env := newTestEnv(t)
	env.campaigns.current = &inviter.Campaign{GroupID: 1, UserID: 1}
	env.scrapes.current = &scraper.ScrapeJob{GroupID: 1, UserID: 2}
	env.bot.states.Set(1, Session{State: StateWaitingKeywords})

	c := newContext(1)
	require.NoError(t, env.bot.onStop(c))
	assert.True(t, env.campaigns.stopped)
	assert.False(t, env.scrapes.stopped, "another user's scrape keeps running")
	assert.Contains(t, c.lastSent(), "invite campaign")
	assert.Equal(t, StateIdle, env.bot.states.Get(1).State)
}

func TestParseGroup_StartsScrape(t *testing.T) {
	env := newTestEnv(t)
	g := env.seedGroup(t, "scrape_group")

	c := newContext(1)
	c.data = strconv.FormatInt(g.ID, 10)
	require.NoError(t, env.bot.onParseGroup(c))
	assert.Equal(t, g.ID, env.scrapes.opts.GroupID)

	env.scrapes.opts.OnDone(&scraper.ScrapeResult{GroupID: g.ID, Found: 3, Saved: 3, TotalInDB: 3}, nil)
	texts := env.api.texts()
	require.Len(t, texts, 1)
	assert.Contains(t, texts[0], "Collecting finished")

	again := newContext(1)
	again.data = c.data
	require.NoError(t, env.bot.onParseGroup(again))
	require.Len(t, again.responses, 1)
	assert.Contains(t, again.responses[0].Text, "already being collected")
}

func TestSettingsFlow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	require.NoError(t, env.users.Touch(ctx, 1, "user"))

	c := newContext(1)
	require.NoError(t, env.bot.onSettings(c))
	assert.Equal(t, StateWaitingSettings, env.bot.states.Get(1).State)

	c.text = "lots"
	require.NoError(t, env.bot.onText(c))
	assert.Contains(t, c.lastSent(), "Invalid format")
	assert.Equal(t, StateWaitingSettings, env.bot.states.Get(1).State)

	c.text = "300 20"
	require.NoError(t, env.bot.onText(c))
	assert.Contains(t, c.lastSent(), "Members per group: 300")
	assert.Contains(t, c.lastSent(), "Invites per day: 20")

	u, err := env.users.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 300, u.ParseLimit)
	assert.Equal(t, 20, u.InviteLimit)
}

func TestGrantAndRevoke(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	c := newContext(adminID)
	c.args = []string{"42"}
	require.NoError(t, env.bot.onGrant(c))
	assert.Contains(t, c.lastSent(), "granted to 42")

	u, err := env.users.Get(ctx, 42)
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.True(t, u.IsPremium)

	require.NoError(t, env.bot.onRevoke(c))
	u, err = env.users.Get(ctx, 42)
	require.NoError(t, err)
	assert.False(t, u.IsPremium)

	c.args = []string{"abc"}
	require.NoError(t, env.bot.onGrant(c))
	assert.Contains(t, c.lastSent(), "Invalid user id")

	require.NoError(t, env.bot.onAdmin(c))
	assert.Contains(t, c.lastSent(), "Users: 1")
}

func TestMiddleware(t *testing.T) {
	env := newTestEnv(t)

	c := newContext(77)
	called := false
	h := env.bot.touchUser(func(tele.Context) error { called = true; return nil })
	require.NoError(t, h(c))
	assert.True(t, called)

	u, err := env.users.Get(context.Background(), 77)
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, "user", u.Username)

	panicky := env.bot.recoverPanics(func(tele.Context) error { panic("boom") })
	err = panicky(c)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}
