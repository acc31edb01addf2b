package scraper

import (
	"context"
	"io"
	"strings"
	"sync"
	"testing"

	"gorm.io/gorm"

	"github.com/blockedby/groupinviter/internal/config"
	"github.com/blockedby/groupinviter/internal/database/dbtest"
	"github.com/blockedby/groupinviter/internal/logger"
	"github.com/blockedby/groupinviter/internal/repository"
	"github.com/blockedby/groupinviter/internal/telegram"
)

type fakeTelegram struct {
	mu sync.Mutex

	search    map[string][]telegram.Channel
	searchErr map[string]error
	queries   []string

	channels   map[string]*telegram.Channel
	members    map[telegram.ParticipantFilter][]telegram.Participant
	membersErr map[telegram.ParticipantFilter]error
	pageCalls  int
}

func newFakeTelegram() *fakeTelegram {
	return &fakeTelegram{
		search:     map[string][]telegram.Channel{},
		searchErr:  map[string]error{},
		channels:   map[string]*telegram.Channel{},
		members:    map[telegram.ParticipantFilter][]telegram.Participant{},
		membersErr: map[telegram.ParticipantFilter]error{},
	}
}

func (f *fakeTelegram) SearchChats(_ context.Context, query string, _ int) ([]telegram.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, query)
	if err := f.searchErr[query]; err != nil {
		return nil, err
	}
	return f.search[query], nil
}

func (f *fakeTelegram) ResolveChannel(_ context.Context, username string) (*telegram.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for name, ch := range f.channels {
		if strings.EqualFold(name, username) {
			cp := *ch
			return &cp, nil
		}
	}
	return nil, telegram.ErrNotFound
}

func (f *fakeTelegram) GetParticipants(_ context.Context, _ *telegram.Channel, filter telegram.ParticipantFilter, offset, limit int) (telegram.ParticipantsPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pageCalls++
	if err := f.membersErr[filter]; err != nil {
		return telegram.ParticipantsPage{}, err
	}
	all := f.members[filter]
	if offset >= len(all) {
		return telegram.ParticipantsPage{Total: len(all)}, nil
	}
	end := min(offset+limit, len(all))
	return telegram.ParticipantsPage{Participants: all[offset:end], Total: len(all)}, nil
}

type testEnv struct {
	db       *gorm.DB
	tg       *fakeTelegram
	groups   *repository.GroupsRepository
	contacts *repository.ContactsRepository
	users    *repository.UsersRepository
	svc      *Service
}

func newTestEnv(t *testing.T, tiers config.Tiers) *testEnv {
	t.Helper()
	db := dbtest.New(t)
	env := &testEnv{
		db:       db,
		tg:       newFakeTelegram(),
		groups:   repository.NewGroupsRepository(db),
		contacts: repository.NewContactsRepository(db),
		users:    repository.NewUsersRepository(db),
	}
	env.svc = NewService(env.tg, env.groups, env.contacts, env.users, nil, nil,
		Options{PageSize: 2, Tiers: tiers}, logger.NewWriter(io.Discard))
	return env
}
