// Package scraper finds public groups and collects their member usernames.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/blockedby/groupinviter/internal/config"
	"github.com/blockedby/groupinviter/internal/events"
	"github.com/blockedby/groupinviter/internal/logger"
	"github.com/blockedby/groupinviter/internal/metrics"
	"github.com/blockedby/groupinviter/internal/models"
	"github.com/blockedby/groupinviter/internal/repository"
	"github.com/blockedby/groupinviter/internal/telegram"
)

var (
	ErrGroupNotFound   = errors.New("group not found")
	ErrGroupDailyLimit = errors.New("daily group limit reached")
)

// TelegramClient is the part of the MTProto client the scraper needs.
type TelegramClient interface {
	SearchChats(ctx context.Context, query string, limit int) ([]telegram.Channel, error)
	ResolveChannel(ctx context.Context, username string) (*telegram.Channel, error)
	GetParticipants(ctx context.Context, ch *telegram.Channel, filter telegram.ParticipantFilter, offset, limit int) (telegram.ParticipantsPage, error)
}

// GroupStore persists tracked groups.
type GroupStore interface {
	Create(ctx context.Context, g *models.Group) (bool, error)
	GetByID(ctx context.Context, id int64) (*models.Group, error)
	UpdateTelegramInfo(ctx context.Context, id, channelID, accessHash int64, title string) error
	CountAddedSince(ctx context.Context, userID int64, since time.Time) (int64, error)
}

// ContactStore persists scraped usernames.
type ContactStore interface {
	AddBatch(ctx context.Context, groupID int64, usernames []string) (int64, error)
	CountByGroup(ctx context.Context, groupID int64) (int64, error)
}

// UserStore looks up bot users for their tier.
type UserStore interface {
	Get(ctx context.Context, userID int64) (*models.User, error)
}

// Options tune search and scrape pacing.
type Options struct {
	SearchLimit int
	SearchDelay time.Duration
	ScrapeDelay time.Duration
	PageSize    int
	Tiers       config.Tiers
}

// OptionsFromConfig picks the scraper settings out of cfg.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		SearchLimit: cfg.SearchLimit,
		SearchDelay: cfg.SearchDelay,
		ScrapeDelay: cfg.ScrapeDelay,
		PageSize:    cfg.ScrapePageSize,
		Tiers:       cfg.Tiers,
	}
}

// Service searches, adds and scrapes groups.
type Service struct {
	tg        TelegramClient
	groups    GroupStore
	contacts  ContactStore
	users     UserStore
	publisher events.Publisher
	metrics   *metrics.Metrics
	opts      Options
	log       *logger.Logger
	now       func() time.Time
}

// NewService creates a scraper service. publisher and m may be nil.
func NewService(
	tg TelegramClient,
	groups GroupStore,
	contacts ContactStore,
	users UserStore,
	publisher events.Publisher,
	m *metrics.Metrics,
	opts Options,
	log *logger.Logger,
) *Service {
	if publisher == nil {
		publisher = events.Nop
	}
	if opts.SearchLimit <= 0 {
		opts.SearchLimit = 100
	}
	if opts.PageSize <= 0 {
		opts.PageSize = 200
	}
	if opts.Tiers == (config.Tiers{}) {
		opts.Tiers = config.DefaultTiers()
	}
	return &Service{
		tg:        tg,
		groups:    groups,
		contacts:  contacts,
		users:     users,
		publisher: publisher,
		metrics:   m,
		opts:      opts,
		log:       log,
		now:       time.Now,
	}
}

// limitsFor resolves the effective tier limits of a bot user. Unknown users
// get the free tier.
func (s *Service) limitsFor(ctx context.Context, userID int64) (config.TierLimits, error) {
	if s.users == nil || userID == 0 {
		return s.opts.Tiers.Free, nil
	}
	u, err := s.users.Get(ctx, userID)
	if err != nil {
		return config.TierLimits{}, fmt.Errorf("get user: %w", err)
	}
	if u == nil {
		return s.opts.Tiers.Free, nil
	}
	return s.opts.Tiers.For(u.IsPremium).Effective(u.ParseLimit, u.InviteLimit), nil
}

// groupQuota returns how many more groups userID may add today. userID 0
// (operator tooling) is unlimited.
func (s *Service) groupQuota(ctx context.Context, userID int64) (int, error) {
	if userID == 0 {
		return -1, nil
	}
	limits, err := s.limitsFor(ctx, userID)
	if err != nil {
		return 0, err
	}
	added, err := s.groups.CountAddedSince(ctx, userID, repository.StartOfDay(s.now()))
	if err != nil {
		return 0, fmt.Errorf("count groups added today: %w", err)
	}
	return max(limits.GroupsPerDay-int(added), 0), nil
}

// AddGroup stores a group given as a link, @name or bare username. created is
// false when the group was already tracked; the existing row is returned.
func (s *Service) AddGroup(ctx context.Context, input string, addedBy int64) (*models.Group, bool, error) {
	username, err := telegram.ParseGroupLink(input)
	if err != nil {
		return nil, false, err
	}

	quota, err := s.groupQuota(ctx, addedBy)
	if err != nil {
		return nil, false, err
	}
	if quota == 0 {
		return nil, false, ErrGroupDailyLimit
	}

	ch, err := s.tg.ResolveChannel(ctx, username)
	if err != nil {
		return nil, false, fmt.Errorf("resolve %s: %w", username, err)
	}

	// usernames resolve case-insensitively; keep the spelling Telegram reports
	if ch.Username != "" {
		username = ch.Username
	}
	g := groupFromChannel(ch, username, addedBy)
	created, err := s.groups.Create(ctx, g)
	if err != nil {
		return nil, false, fmt.Errorf("store group: %w", err)
	}
	if created {
		s.groupAdded(ctx, g)
	}
	return g, created, nil
}

// SaveResult counts what SaveGroups did with each selected chat.
type SaveResult struct {
	Added        int `json:"added"`
	Existing     int `json:"existing"`
	SkippedQuota int `json:"skipped_quota"`
}

// SaveGroups stores chats picked from search results, stopping at the user's
// daily group quota.
func (s *Service) SaveGroups(ctx context.Context, chats []telegram.Channel, addedBy int64) (SaveResult, error) {
	var res SaveResult

	quota, err := s.groupQuota(ctx, addedBy)
	if err != nil {
		return res, err
	}

	for i := range chats {
		ch := &chats[i]
		if ch.Username == "" {
			continue
		}
		if quota == 0 {
			res.SkippedQuota++
			continue
		}

		g := groupFromChannel(ch, ch.Username, addedBy)
		created, err := s.groups.Create(ctx, g)
		if err != nil {
			return res, fmt.Errorf("store group %s: %w", ch.Username, err)
		}
		if !created {
			res.Existing++
			continue
		}
		res.Added++
		if quota > 0 {
			quota--
		}
		s.groupAdded(ctx, g)
	}

	return res, nil
}

func (s *Service) groupAdded(ctx context.Context, g *models.Group) {
	s.metrics.GroupAdded()
	s.log.Info().Int64("group_id", g.ID).Str("username", g.Username).Msg("group added")
	s.publish(ctx, events.GroupAdded, g)
}

func groupFromChannel(ch *telegram.Channel, username string, addedBy int64) *models.Group {
	name := ch.Title
	if name == "" {
		name = username
	}
	return &models.Group{
		Name:         name,
		Username:     username,
		TGChannelID:  ch.ID,
		TGAccessHash: ch.AccessHash,
		AddedBy:      addedBy,
	}
}

// sleep waits d or until ctx ends.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
