package bot

import (
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/blockedby/groupinviter/internal/inviter"
	"github.com/blockedby/groupinviter/internal/models"
	"github.com/blockedby/groupinviter/internal/scraper"
)

func (b *Bot) now() time.Time { return time.Now().UTC() }

func (b *Bot) since(t time.Time) time.Duration { return b.now().Sub(t) }

// groupLabel names a group for job messages, falling back to its id.
func (b *Bot) groupLabel(id int64) string {
	ctx, cancel := b.requestContext()
	defer cancel()
	g, err := b.deps.Store.GetByID(ctx, id)
	if err != nil || g == nil {
		return fmt.Sprintf("group #%d", id)
	}
	return groupTitle(g)
}

func (b *Bot) listGroups() ([]models.Group, error) {
	ctx, cancel := b.requestContext()
	defer cancel()
	return b.deps.Store.List(ctx)
}

func (b *Bot) onParse(c tele.Context) error {
	groups, err := b.listGroups()
	if err != nil {
		return b.fail(c, "Failed to load groups", err)
	}
	if len(groups) == 0 {
		return c.Send("❌ No groups saved yet. Search or add one first.")
	}
	return c.Send("👥 Pick a group to collect members from:", groupPicker(groups, cbParseGroup.Unique, func(g *models.Group) string {
		return "👥 " + groupTitle(g)
	}))
}

func (b *Bot) onParseGroup(c tele.Context) error {
	groupID, err := strconv.ParseInt(c.Data(), 10, 64)
	if err != nil {
		return nil
	}
	userID := c.Sender().ID
	title := b.groupLabel(groupID)
	msg := c.Message()
	shown := newGate()
	defer shown.open()

	_, err = b.deps.Scrapes.Start(b.ctx, scraper.ScrapeOptions{
		GroupID: groupID,
		UserID:  userID,
		OnProgress: func(p scraper.ScrapeProgress) {
			shown.wait()
			b.edit(msg, scrapeProgressText(title, p), stopKeyboard(cbParseStop.Unique))
		},
		OnDone: func(res *scraper.ScrapeResult, err error) {
			shown.wait()
			b.scrapeDone(msg, title, res, err)
		},
	})
	if errors.Is(err, scraper.ErrAlreadyRunning) {
		return c.Respond(&tele.CallbackResponse{Text: "Members are already being collected, wait for it to finish.", ShowAlert: true})
	}
	if err != nil {
		return b.fail(c, "Failed to start collecting", err)
	}

	b.log.Info().Int64("user_id", userID).Int64("group_id", groupID).Msg("scrape started from bot")
	return c.Edit("🔄 Collecting members of "+title+"...", stopKeyboard(cbParseStop.Unique))
}

// gate holds back job updates until the handler has edited the status
// message, so a job that ends at once cannot be overwritten by "starting".
type gate struct {
	ch   chan struct{}
	once sync.Once
}

func newGate() *gate { return &gate{ch: make(chan struct{})} }

func (g *gate) open() { g.once.Do(func() { close(g.ch) }) }

func (g *gate) wait() { <-g.ch }

func (b *Bot) scrapeDone(msg *tele.Message, title string, res *scraper.ScrapeResult, err error) {
	switch {
	case errors.Is(err, scraper.ErrGroupNotFound):
		b.edit(msg, "❌ The group was deleted.")
	case err != nil:
		b.log.Error().Err(err).Str("group", title).Msg("scrape failed")
		b.edit(msg, "❌ Collecting members of "+title+" failed: "+err.Error())
	case res != nil:
		b.edit(msg, scrapeResultText(title, res))
	}
}

func (b *Bot) onParseStop(c tele.Context) error {
	cur := b.deps.Scrapes.Current()
	if cur == nil {
		return c.Respond(&tele.CallbackResponse{Text: "Nothing is running."})
	}
	if cur.UserID != c.Sender().ID && !b.isAdmin(c.Sender().ID) {
		return c.Respond(&tele.CallbackResponse{Text: "Only the user who started it can stop it."})
	}
	b.deps.Scrapes.Stop()
	return c.Respond(&tele.CallbackResponse{Text: "Stopping..."})
}

func (b *Bot) onInvite(c tele.Context) error {
	groups, err := b.listGroups()
	if err != nil {
		return b.fail(c, "Failed to load groups", err)
	}
	if len(groups) == 0 {
		return c.Send("❌ No groups saved yet.")
	}

	ctx, cancel := b.requestContext()
	defer cancel()
	pending := make(map[int64]int64, len(groups))
	for _, g := range groups {
		n, err := b.deps.Invites.PendingCount(ctx, g.ID)
		if err != nil {
			return b.fail(c, "Failed to count pending invites", err)
		}
		pending[g.ID] = n
	}

	return c.Send("📨 Pick a group to invite into:", groupPicker(groups, cbInviteGroup.Unique, func(g *models.Group) string {
		return fmt.Sprintf("📨 %s | 👥 %d pending", groupTitle(g), pending[g.ID])
	}))
}

func (b *Bot) onInviteGroup(c tele.Context) error {
	groupID, err := strconv.ParseInt(c.Data(), 10, 64)
	if err != nil {
		return nil
	}
	userID := c.Sender().ID
	title := b.groupLabel(groupID)
	msg := c.Message()
	shown := newGate()
	defer shown.open()

	_, err = b.deps.Campaigns.Start(b.ctx, inviter.StartOptions{
		GroupID: groupID,
		UserID:  userID,
		OnProgress: func(p inviter.Progress) {
			shown.wait()
			b.edit(msg, campaignProgressText(title, p), stopKeyboard(cbInviteStop.Unique))
		},
		OnDone: func(r *inviter.Report, err error) {
			shown.wait()
			b.campaignDone(msg, title, r, err)
		},
	})
	if errors.Is(err, inviter.ErrAlreadyRunning) {
		return c.Respond(&tele.CallbackResponse{Text: "A campaign is already running, wait for it to finish.", ShowAlert: true})
	}
	if err != nil {
		return b.fail(c, "Failed to start the campaign", err)
	}

	b.log.Info().Int64("user_id", userID).Int64("group_id", groupID).Msg("campaign started from bot")
	return c.Edit("🔄 Starting invites into "+title+"...", stopKeyboard(cbInviteStop.Unique))
}

func (b *Bot) campaignDone(msg *tele.Message, title string, r *inviter.Report, err error) {
	switch {
	case errors.Is(err, inviter.ErrDailyLimitReached):
		b.edit(msg, "⛔️ Today's invite limit for "+title+" is used up. Try again tomorrow.")
	case errors.Is(err, inviter.ErrNothingToInvite):
		b.edit(msg, "❌ Nobody left to invite into "+title+". Collect more members first.")
	case errors.Is(err, inviter.ErrGroupNotFound):
		b.edit(msg, "❌ The group was deleted.")
	case err != nil:
		b.log.Error().Err(err).Str("group", title).Msg("campaign failed")
		b.edit(msg, "❌ Invites into "+title+" failed: "+err.Error())
	case r != nil:
		b.edit(msg, campaignReportText(r))
	}
}

func (b *Bot) onInviteStop(c tele.Context) error {
	cur := b.deps.Campaigns.Current()
	if cur == nil {
		return c.Respond(&tele.CallbackResponse{Text: "Nothing is running."})
	}
	if cur.UserID != c.Sender().ID && !b.isAdmin(c.Sender().ID) {
		return c.Respond(&tele.CallbackResponse{Text: "Only the user who started it can stop it."})
	}
	b.deps.Campaigns.Stop()
	return c.Respond(&tele.CallbackResponse{Text: "Stopping..."})
}

func (b *Bot) onStatus(c tele.Context) error {
	groups, err := b.listGroups()
	if err != nil {
		return b.fail(c, "Failed to load groups", err)
	}
	if len(groups) == 0 {
		return c.Send("❌ No groups saved yet.")
	}
	return c.Send("📊 Pick a group:", groupPicker(groups, cbStatusGroup.Unique, func(g *models.Group) string {
		return "📊 " + groupTitle(g)
	}))
}

func (b *Bot) onStatusGroup(c tele.Context) error {
	groupID, err := strconv.ParseInt(c.Data(), 10, 64)
	if err != nil {
		return nil
	}

	ctx, cancel := b.requestContext()
	defer cancel()
	st, err := b.deps.Invites.Status(ctx, groupID, c.Sender().ID)
	if errors.Is(err, inviter.ErrGroupNotFound) {
		return c.Edit("❌ The group was deleted.")
	}
	if err != nil {
		return b.fail(c, "Failed to load the status", err)
	}
	return c.Edit(groupStatusText(st))
}
