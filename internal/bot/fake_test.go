package bot

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	"github.com/blockedby/groupinviter/internal/config"
	"github.com/blockedby/groupinviter/internal/database/dbtest"
	"github.com/blockedby/groupinviter/internal/inviter"
	"github.com/blockedby/groupinviter/internal/logger"
	"github.com/blockedby/groupinviter/internal/models"
	"github.com/blockedby/groupinviter/internal/repository"
	"github.com/blockedby/groupinviter/internal/scraper"
	"github.com/blockedby/groupinviter/internal/telegram"
)

// fakeContext implements the parts of tele.Context the handlers use.
type fakeContext struct {
	tele.Context

	sender  *tele.User
	text    string
	data    string
	args    []string
	message *tele.Message

	sent      []string
	edited    []string
	responses []*tele.CallbackResponse
	markups   []*tele.ReplyMarkup
	onEdit    func()
}

func newContext(userID int64) *fakeContext {
	return &fakeContext{
		sender:  &tele.User{ID: userID, Username: "user"},
		message: &tele.Message{ID: 7, Chat: &tele.Chat{ID: userID}},
	}
}

func (c *fakeContext) Sender() *tele.User     { return c.sender }
func (c *fakeContext) Text() string           { return c.text }
func (c *fakeContext) Data() string           { return c.data }
func (c *fakeContext) Args() []string         { return c.args }
func (c *fakeContext) Message() *tele.Message { return c.message }

func (c *fakeContext) Send(what any, opts ...any) error {
	c.sent = append(c.sent, what.(string))
	c.keepMarkup(opts)
	return nil
}

func (c *fakeContext) Edit(what any, opts ...any) error {
	if c.onEdit != nil {
		c.onEdit()
	}
	c.edited = append(c.edited, what.(string))
	c.keepMarkup(opts)
	return nil
}

func (c *fakeContext) Respond(resp ...*tele.CallbackResponse) error {
	c.responses = append(c.responses, resp...)
	return nil
}

func (c *fakeContext) keepMarkup(opts []any) {
	for _, o := range opts {
		if m, ok := o.(*tele.ReplyMarkup); ok {
			c.markups = append(c.markups, m)
		}
	}
}

func (c *fakeContext) lastSent() string {
	if len(c.sent) == 0 {
		return ""
	}
	return c.sent[len(c.sent)-1]
}

func (c *fakeContext) lastEdited() string {
	if len(c.edited) == 0 {
		return ""
	}
	return c.edited[len(c.edited)-1]
}

// fakeMessenger records progress edits.
type fakeMessenger struct {
	mu     sync.Mutex
	edited []string
}

func (m *fakeMessenger) Send(_ tele.Recipient, what any, _ ...any) (*tele.Message, error) {
	return &tele.Message{}, nil
}

func (m *fakeMessenger) Edit(msg tele.Editable, what any, _ ...any) (*tele.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.edited = append(m.edited, what.(string))
	return &tele.Message{}, nil
}

func (m *fakeMessenger) texts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.edited...)
}

type fakeGroupService struct {
	found    []telegram.Channel
	err      error
	saved    []telegram.Channel
	addErr   error
	added    *models.Group
	created  bool
	keywords []string
}

func (f *fakeGroupService) Search(_ context.Context, keywords []string) ([]telegram.Channel, error) {
	f.keywords = keywords
	return f.found, f.err
}

func (f *fakeGroupService) SaveGroups(_ context.Context, chats []telegram.Channel, _ int64) (scraper.SaveResult, error) {
	f.saved = chats
	return scraper.SaveResult{Added: len(chats)}, nil
}

func (f *fakeGroupService) AddGroup(_ context.Context, input string, _ int64) (*models.Group, bool, error) {
	if f.addErr != nil {
		return nil, false, f.addErr
	}
	return f.added, f.created, nil
}

type fakeCampaigns struct {
	opts    inviter.StartOptions
	err     error
	current *inviter.Campaign
	stopped bool
	// finish, when set, ends the campaign from another goroutine right
	// away and gives it a moment to complete before Start returns
	finish func(inviter.StartOptions)
}

func (f *fakeCampaigns) Start(_ context.Context, opts inviter.StartOptions) (*inviter.Campaign, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.opts = opts
	f.current = &inviter.Campaign{GroupID: opts.GroupID, UserID: opts.UserID, StartedAt: time.Now()}
	if f.finish != nil {
		finished := make(chan struct{})
		go func() {
			f.finish(opts)
			close(finished)
		}()
		select {
		case <-finished:
		case <-time.After(50 * time.Millisecond):
		}
	}
	return f.current, nil
}

func (f *fakeCampaigns) Stop() bool {
	f.stopped = true
	running := f.current != nil
	f.current = nil
	return running
}

func (f *fakeCampaigns) Current() *inviter.Campaign { return f.current }

type fakeScrapes struct {
	opts    scraper.ScrapeOptions
	current *scraper.ScrapeJob
	stopped bool
}

func (f *fakeScrapes) Start(_ context.Context, opts scraper.ScrapeOptions) (*scraper.ScrapeJob, error) {
	if f.current != nil {
		return nil, scraper.ErrAlreadyRunning
	}
	f.opts = opts
	f.current = &scraper.ScrapeJob{GroupID: opts.GroupID, UserID: opts.UserID, StartedAt: time.Now()}
	return f.current, nil
}

func (f *fakeScrapes) Stop() bool {
	f.stopped = true
	running := f.current != nil
	f.current = nil
	return running
}

func (f *fakeScrapes) Current() *scraper.ScrapeJob { return f.current }

type fakeInvites struct {
	pending map[int64]int64
	status  *inviter.GroupStatus
	err     error
}

func (f *fakeInvites) Status(_ context.Context, _, _ int64) (*inviter.GroupStatus, error) {
	return f.status, f.err
}

func (f *fakeInvites) PendingCount(_ context.Context, groupID int64) (int64, error) {
	return f.pending[groupID], nil
}

type testEnv struct {
	bot       *Bot
	api       *fakeMessenger
	groups    *fakeGroupService
	store     *repository.GroupsRepository
	users     *repository.UsersRepository
	campaigns *fakeCampaigns
	scrapes   *fakeScrapes
	invites   *fakeInvites
}

const adminID = 1000

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := dbtest.New(t)

	env := &testEnv{
		api:       &fakeMessenger{},
		groups:    &fakeGroupService{},
		store:     repository.NewGroupsRepository(db),
		users:     repository.NewUsersRepository(db),
		campaigns: &fakeCampaigns{},
		scrapes:   &fakeScrapes{},
		invites:   &fakeInvites{pending: map[int64]int64{}},
	}
	env.bot = newBot(env.api, Deps{
		Groups:    env.groups,
		Store:     env.store,
		Users:     env.users,
		Scrapes:   env.scrapes,
		Campaigns: env.campaigns,
		Invites:   env.invites,
	}, Options{
		AdminIDs: []int64{adminID},
		Tiers:    config.DefaultTiers(),
		StateTTL: time.Hour,
	}, logger.NewWriter(io.Discard))
	return env
}

func (e *testEnv) seedGroup(t *testing.T, username string) *models.Group {
	t.Helper()
	g := &models.Group{Name: "Group " + username, Username: username}
	_, err := e.store.Create(context.Background(), g)
	require.NoError(t, err)
	return g
}
