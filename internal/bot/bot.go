// Package bot is the chat front end: menus, multi-step prompts and the
// progress messages of running scrapes and campaigns.
package bot

import (
	"context"
	"fmt"
	"slices"
	"time"

	tele "gopkg.in/telebot.v4"
	"gopkg.in/telebot.v4/middleware"

	"github.com/blockedby/groupinviter/internal/config"
	"github.com/blockedby/groupinviter/internal/inviter"
	"github.com/blockedby/groupinviter/internal/logger"
	"github.com/blockedby/groupinviter/internal/models"
	"github.com/blockedby/groupinviter/internal/scraper"
	"github.com/blockedby/groupinviter/internal/telegram"
)

// GroupService finds and stores groups.
type GroupService interface {
	Search(ctx context.Context, keywords []string) ([]telegram.Channel, error)
	SaveGroups(ctx context.Context, chats []telegram.Channel, addedBy int64) (scraper.SaveResult, error)
	AddGroup(ctx context.Context, input string, addedBy int64) (*models.Group, bool, error)
}

// GroupStore lists and deletes stored groups.
type GroupStore interface {
	List(ctx context.Context) ([]models.Group, error)
	ListWithStats(ctx context.Context, dayStart time.Time) ([]models.GroupStats, error)
	GetByID(ctx context.Context, id int64) (*models.Group, error)
	Delete(ctx context.Context, ids []int64) (int64, error)
}

// UserStore keeps the bot's users.
type UserStore interface {
	Touch(ctx context.Context, userID int64, username string) error
	Get(ctx context.Context, userID int64) (*models.User, error)
	SetPremium(ctx context.Context, userID int64, premium bool) error
	UpdateLimits(ctx context.Context, userID int64, parseLimit, inviteLimit int) error
	AdminStats(ctx context.Context, dayStart time.Time) (*models.AdminStats, error)
}

// ScrapeController runs member scrapes in the background.
type ScrapeController interface {
	Start(ctx context.Context, opts scraper.ScrapeOptions) (*scraper.ScrapeJob, error)
	Stop() bool
	Current() *scraper.ScrapeJob
}

// CampaignController runs invite campaigns in the background.
type CampaignController interface {
	Start(ctx context.Context, opts inviter.StartOptions) (*inviter.Campaign, error)
	Stop() bool
	Current() *inviter.Campaign
}

// InviteStatus reports per group invite numbers.
type InviteStatus interface {
	Status(ctx context.Context, groupID, userID int64) (*inviter.GroupStatus, error)
	PendingCount(ctx context.Context, groupID int64) (int64, error)
}

// Messenger sends and edits messages outside of an update, for progress
// reports of background jobs. *tele.Bot implements it.
type Messenger interface {
	Send(to tele.Recipient, what any, opts ...any) (*tele.Message, error)
	Edit(msg tele.Editable, what any, opts ...any) (*tele.Message, error)
}

// Deps are the services behind the bot.
type Deps struct {
	Groups    GroupService
	Store     GroupStore
	Users     UserStore
	Scrapes   ScrapeController
	Campaigns CampaignController
	Invites   InviteStatus
}

// Options tune access and conversation handling.
type Options struct {
	AdminIDs []int64
	// when set, only these users (and admins) get answers
	AllowedUserIDs []int64
	Tiers          config.Tiers
	StateTTL       time.Duration
	RequestTimeout time.Duration
}

// OptionsFromConfig builds Options from the application config.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		AdminIDs:       cfg.AdminIDs,
		AllowedUserIDs: cfg.AllowedUserIDs,
		Tiers:          cfg.Tiers,
		StateTTL:       30 * time.Minute,
		RequestTimeout: 30 * time.Second,
	}
}

// Bot handles updates from the chat bot API.
type Bot struct {
	tb     *tele.Bot
	api    Messenger
	deps   Deps
	opts   Options
	states *StateStore
	log    *logger.Logger

	// parent of request contexts; replaced by Run
	ctx context.Context
}

// New connects to the bot API and registers every handler. A configured
// WEBHOOK_URL switches from long polling to a webhook.
func New(cfg *config.Config, deps Deps, log *logger.Logger) (*Bot, error) {
	b := newBot(nil, deps, OptionsFromConfig(cfg), log)

	settings := tele.Settings{
		Token:  cfg.BotToken,
		Poller: poller(cfg),
		OnError: func(err error, c tele.Context) {
			ev := b.log.Error().Err(err)
			if c != nil && c.Sender() != nil {
				ev = ev.Int64("user_id", c.Sender().ID)
			}
			ev.Msg("bot handler failed")
		},
	}
	tb, err := tele.NewBot(settings)
	if err != nil {
		return nil, fmt.Errorf("create bot: %w", err)
	}
	b.tb = tb
	b.api = tb
	b.register(tb)

	return b, nil
}

func newBot(api Messenger, deps Deps, opts Options, log *logger.Logger) *Bot {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}
	return &Bot{
		api:    api,
		deps:   deps,
		opts:   opts,
		states: NewStateStore(opts.StateTTL),
		log:    log.Named("bot"),
		ctx:    context.Background(),
	}
}

func poller(cfg *config.Config) tele.Poller {
	if cfg.WebhookURL != "" {
		return &tele.Webhook{
			Listen:   cfg.WebhookListen,
			Endpoint: &tele.WebhookEndpoint{PublicURL: cfg.WebhookURL},
		}
	}
	return &tele.LongPoller{Timeout: cfg.PollTimeout}
}

func (b *Bot) register(tb *tele.Bot) {
	tb.Use(b.recoverPanics)
	tb.Use(middleware.AutoRespond())
	if len(b.opts.AllowedUserIDs) > 0 {
		tb.Use(middleware.Whitelist(append(slices.Clone(b.opts.AllowedUserIDs), b.opts.AdminIDs...)...))
	}
	tb.Use(b.touchUser)

	tb.Handle("/start", b.onStart)
	tb.Handle("/menu", b.onStart)
	tb.Handle("/help", b.onHelp)
	tb.Handle("/stop", b.onStop)
	tb.Handle("/status", b.onStatusCommand)

	admin := tb.Group()
	admin.Use(middleware.Whitelist(b.opts.AdminIDs...))
	admin.Handle("/admin", b.onAdmin)
	admin.Handle("/grant", b.onGrant)
	admin.Handle("/revoke", b.onRevoke)

	tb.Handle(&btnSearch, b.onSearch)
	tb.Handle(&btnParse, b.onParse)
	tb.Handle(&btnView, b.onView)
	tb.Handle(&btnDelete, b.onDelete)
	tb.Handle(&btnAdd, b.onAdd)
	tb.Handle(&btnInvite, b.onInvite)
	tb.Handle(&btnStatus, b.onStatus)
	tb.Handle(&btnSettings, b.onSettings)
	tb.Handle(&btnPremium, b.onPremium)

	tb.Handle(cbSearchToggle, b.onSearchToggle)
	tb.Handle(cbSearchAll, b.onSearchAll)
	tb.Handle(cbSearchNone, b.onSearchNone)
	tb.Handle(cbSearchSave, b.onSearchSave)
	tb.Handle(cbDeleteToggle, b.onDeleteToggle)
	tb.Handle(cbDeleteAll, b.onDeleteAll)
	tb.Handle(cbDeleteNone, b.onDeleteNone)
	tb.Handle(cbDeleteConfirm, b.onDeleteConfirm)
	tb.Handle(cbParseGroup, b.onParseGroup)
	tb.Handle(cbParseStop, b.onParseStop)
	tb.Handle(cbInviteGroup, b.onInviteGroup)
	tb.Handle(cbInviteStop, b.onInviteStop)
	tb.Handle(cbStatusGroup, b.onStatusGroup)

	tb.Handle(tele.OnText, b.onText)
}

// Run serves updates until ctx is done.
func (b *Bot) Run(ctx context.Context) error {
	if b.tb == nil {
		return fmt.Errorf("bot not connected")
	}
	b.ctx = ctx

	go b.states.Run(ctx, time.Minute)
	go b.tb.Start()
	b.log.Info().Str("username", b.tb.Me.Username).Msg("bot started")

	<-ctx.Done()
	b.tb.Stop()
	b.log.Info().Msg("bot stopped")
	return nil
}

func (b *Bot) requestContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(b.ctx, b.opts.RequestTimeout)
}

func (b *Bot) isAdmin(userID int64) bool {
	return slices.Contains(b.opts.AdminIDs, userID)
}

// fail logs err and tells the user something went wrong.
func (b *Bot) fail(c tele.Context, msg string, err error) error {
	ev := b.log.Error().Err(err)
	if c.Sender() != nil {
		ev = ev.Int64("user_id", c.Sender().ID)
	}
	ev.Msg(msg)
	return c.Send("❌ " + msg)
}

// sendLong sends text in as many messages as needed.
func (b *Bot) sendLong(c tele.Context, text string, opts ...any) error {
	for _, chunk := range splitMessage(text, maxMessageLen) {
		if err := c.Send(chunk, opts...); err != nil {
			return err
		}
	}
	return nil
}

// edit updates a progress message; failures such as "message is not
// modified" are only logged.
func (b *Bot) edit(msg *tele.Message, text string, opts ...any) {
	if b.api == nil || msg == nil {
		return
	}
	if _, err := b.api.Edit(msg, text, opts...); err != nil {
		b.log.Debug().Err(err).Int("message_id", msg.ID).Msg("failed to edit progress message")
	}
}
