package integration

import (
	"context"
	"sync"

	"github.com/gotd/td/tgerr"

	"github.com/blockedby/groupinviter/internal/telegram"
)

// fakeTelegram stands in for the automation account in both the scraper and
// the campaign runner.
type fakeTelegram struct {
	mu       sync.Mutex
	channels map[string]*telegram.Channel
	members  []telegram.Participant
	// invite errors by username; missing means success
	refuse  map[string]string
	invited []string
}

func (f *fakeTelegram) SearchChats(_ context.Context, query string, _ int) ([]telegram.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []telegram.Channel
	for _, ch := range f.channels {
		out = append(out, *ch)
	}
	return out, nil
}

func (f *fakeTelegram) ResolveChannel(_ context.Context, username string) (*telegram.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch, ok := f.channels[username]
	if !ok {
		return nil, telegram.ErrNotFound
	}
	cp := *ch
	return &cp, nil
}

func (f *fakeTelegram) GetParticipants(_ context.Context, _ *telegram.Channel, filter telegram.ParticipantFilter, offset, limit int) (telegram.ParticipantsPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if filter != telegram.FilterSearch || offset >= len(f.members) {
		return telegram.ParticipantsPage{Total: len(f.members)}, nil
	}
	end := min(offset+limit, len(f.members))
	return telegram.ParticipantsPage{Participants: f.members[offset:end], Total: len(f.members)}, nil
}

func (f *fakeTelegram) ResolveUser(_ context.Context, username string) (*telegram.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.members {
		if p.Username == username {
			return &telegram.User{ID: p.UserID, AccessHash: p.AccessHash, Username: username}, nil
		}
	}
	return nil, telegram.ErrNotFound
}

func (f *fakeTelegram) InviteToChannel(_ context.Context, _ *telegram.Channel, user *telegram.User) (telegram.InviteResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invited = append(f.invited, user.Username)
	if typ, ok := f.refuse[user.Username]; ok {
		return telegram.InviteResult{}, tgerr.New(400, typ)
	}
	return telegram.InviteResult{}, nil
}
