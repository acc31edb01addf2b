package inviter

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/gotd/td/tgerr"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/blockedby/groupinviter/internal/database/dbtest"
	"github.com/blockedby/groupinviter/internal/events"
	"github.com/blockedby/groupinviter/internal/logger"
	"github.com/blockedby/groupinviter/internal/models"
	"github.com/blockedby/groupinviter/internal/repository"
	"github.com/blockedby/groupinviter/internal/telegram"
)

func rpcErr(code int, typ string) error {
	return fmt.Errorf("invite: %w", tgerr.New(code, typ))
}

type reply struct {
	res telegram.InviteResult
	err error
}

// fakeTelegram answers InviteToChannel from a per-username script; the last
// reply repeats once the script runs out.
type fakeTelegram struct {
	mu         sync.Mutex
	resolveErr map[string]error
	script     map[string][]reply
	calls      map[string]int
	resolved   int
}

func newFakeTelegram() *fakeTelegram {
	return &fakeTelegram{
		resolveErr: map[string]error{},
		script:     map[string][]reply{},
		calls:      map[string]int{},
	}
}

func (f *fakeTelegram) ResolveChannel(_ context.Context, username string) (*telegram.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resolved++
	return &telegram.Channel{ID: 555, AccessHash: 66, Username: username, Title: "Target"}, nil
}

func (f *fakeTelegram) ResolveUser(_ context.Context, username string) (*telegram.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.resolveErr[username]; err != nil {
		return nil, err
	}
	return &telegram.User{ID: int64(len(username)), AccessHash: 1, Username: username}, nil
}

func (f *fakeTelegram) InviteToChannel(_ context.Context, _ *telegram.Channel, user *telegram.User) (telegram.InviteResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := f.calls[user.Username]
	f.calls[user.Username]++
	replies := f.script[user.Username]
	if len(replies) == 0 {
		return telegram.InviteResult{}, nil
	}
	r := replies[min(n, len(replies)-1)]
	return r.res, r.err
}

type testEnv struct {
	db       *gorm.DB
	tg       *fakeTelegram
	groups   *repository.GroupsRepository
	contacts *repository.ContactsRepository
	invites  *repository.InvitesRepository
	users    *repository.UsersRepository
	svc      *Service
	group    *models.Group
	sleeps   []time.Duration
	events   []events.Type
}

func testPolicy() Policy {
	p := DefaultPolicy()
	p.Delay = 10 * time.Millisecond
	p.RetryDelay = 0
	p.ProgressEvery = 2
	return p
}

func newTestEnv(t *testing.T, policy Policy, contacts ...string) *testEnv {
	t.Helper()
	db := dbtest.New(t)
	ctx := context.Background()

	env := &testEnv{
		db:       db,
		tg:       newFakeTelegram(),
		groups:   repository.NewGroupsRepository(db),
		contacts: repository.NewContactsRepository(db),
		invites:  repository.NewInvitesRepository(db),
		users:    repository.NewUsersRepository(db),
	}

	env.group = &models.Group{Name: "Target", Username: "target_group"}
	_, err := env.groups.Create(ctx, env.group)
	require.NoError(t, err)
	if len(contacts) > 0 {
		_, err = env.contacts.AddBatch(ctx, env.group.ID, contacts)
		require.NoError(t, err)
	}

	var mu sync.Mutex
	pub := events.PublisherFunc(func(_ context.Context, e events.Event) error {
		mu.Lock()
		env.events = append(env.events, e.Type)
		mu.Unlock()
		return nil
	})

	env.svc = NewService(env.tg, env.groups, env.invites, env.users, pub, nil, policy, logger.NewWriter(io.Discard))
	env.svc.sleep = func(ctx context.Context, d time.Duration) error {
		mu.Lock()
		env.sleeps = append(env.sleeps, d)
		mu.Unlock()
		return ctx.Err()
	}
	return env
}

func (e *testEnv) status(t *testing.T, username string) models.InviteStatus {
	t.Helper()
	inv, err := e.invites.Get(context.Background(), username, e.group.ID)
	require.NoError(t, err)
	if inv == nil {
		return ""
	}
	return inv.Status
}
