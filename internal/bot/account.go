package bot

import (
	"fmt"
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v4"

	"github.com/blockedby/groupinviter/internal/repository"
)

func (b *Bot) onSettings(c tele.Context) error {
	ctx, cancel := b.requestContext()
	defer cancel()

	u, err := b.deps.Users.Get(ctx, c.Sender().ID)
	if err != nil {
		return b.fail(c, "Failed to load your settings", err)
	}
	premium, parseLimit, inviteLimit := false, 0, 0
	if u != nil {
		premium, parseLimit, inviteLimit = u.IsPremium, u.ParseLimit, u.InviteLimit
	}
	tier := b.opts.Tiers.For(premium)
	eff := tier.Effective(parseLimit, inviteLimit)

	b.states.Set(c.Sender().ID, Session{State: StateWaitingSettings})
	return c.Send(fmt.Sprintf(
		"⚙️ Current settings:\n- Members per group: %d (tier %d)\n- Invites per day: %d (tier %d)\n\n"+
			"Send two numbers separated by a space: members per group and invites per day. 0 means the tier limit.",
		eff.UsersPerGroup, tier.UsersPerGroup, eff.InvitesPerDay, tier.InvitesPerDay,
	))
}

// parseSettings reads "<parse limit> <invite limit>".
func parseSettings(text string) (parseLimit, inviteLimit int, err error) {
	fields := strings.Fields(text)
	if len(fields) != 2 {
		return 0, 0, fmt.Errorf("want two numbers, got %d values", len(fields))
	}
	if parseLimit, err = strconv.Atoi(fields[0]); err != nil || parseLimit < 0 {
		return 0, 0, fmt.Errorf("invalid members limit %q", fields[0])
	}
	if inviteLimit, err = strconv.Atoi(fields[1]); err != nil || inviteLimit < 0 {
		return 0, 0, fmt.Errorf("invalid invite limit %q", fields[1])
	}
	return parseLimit, inviteLimit, nil
}

func (b *Bot) onSettingsInput(c tele.Context) error {
	userID := c.Sender().ID
	parseLimit, inviteLimit, err := parseSettings(c.Text())
	if err != nil {
		return c.Send("Invalid format. Send two non-negative numbers separated by a space, or /stop to cancel.")
	}
	b.states.Clear(userID)

	ctx, cancel := b.requestContext()
	defer cancel()
	if err := b.deps.Users.UpdateLimits(ctx, userID, parseLimit, inviteLimit); err != nil {
		return b.fail(c, "Failed to save your settings", err)
	}

	u, err := b.deps.Users.Get(ctx, userID)
	if err != nil || u == nil {
		return c.Send("✅ Settings saved.", mainMenu)
	}
	eff := b.opts.Tiers.For(u.IsPremium).Effective(parseLimit, inviteLimit)
	return c.Send(fmt.Sprintf("✅ Settings saved:\n- Members per group: %d\n- Invites per day: %d",
		eff.UsersPerGroup, eff.InvitesPerDay), mainMenu)
}

func (b *Bot) onPremium(c tele.Context) error {
	ctx, cancel := b.requestContext()
	defer cancel()

	u, err := b.deps.Users.Get(ctx, c.Sender().ID)
	if err != nil {
		return b.fail(c, "Failed to load your account", err)
	}

	status := "🆓 You are on the free tier."
	if u != nil && u.IsPremium {
		status = "💎 You have premium access."
	}
	return c.Send(strings.Join([]string{
		status,
		limitsText("Free:", b.opts.Tiers.Free),
		limitsText("💎 Premium:", b.opts.Tiers.Premium),
		"Contact an administrator to get premium access.",
	}, "\n\n"))
}

func (b *Bot) onAdmin(c tele.Context) error {
	ctx, cancel := b.requestContext()
	defer cancel()

	st, err := b.deps.Users.AdminStats(ctx, repository.StartOfDay(b.now()))
	if err != nil {
		return b.fail(c, "Failed to load stats", err)
	}
	return c.Send(fmt.Sprintf(
		"👤 Users: %d\n💎 Premium users: %d\n📊 Active today: %d\n\n/grant <user id> gives premium\n/revoke <user id> takes it back",
		st.TotalUsers, st.PremiumUsers, st.ActiveToday,
	))
}

func (b *Bot) onGrant(c tele.Context) error  { return b.setPremium(c, true) }
func (b *Bot) onRevoke(c tele.Context) error { return b.setPremium(c, false) }

func (b *Bot) setPremium(c tele.Context, premium bool) error {
	args := c.Args()
	if len(args) != 1 {
		return c.Send("Usage: /grant <user id> or /revoke <user id>")
	}
	target, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || target <= 0 {
		return c.Send("Invalid user id.")
	}

	ctx, cancel := b.requestContext()
	defer cancel()
	if err := b.deps.Users.SetPremium(ctx, target, premium); err != nil {
		return b.fail(c, "Failed to update the user", err)
	}
	b.log.Info().Int64("admin_id", c.Sender().ID).Int64("user_id", target).Bool("premium", premium).Msg("premium changed")

	if premium {
		return c.Send(fmt.Sprintf("💎 Premium granted to %d", target))
	}
	return c.Send(fmt.Sprintf("Premium revoked from %d", target))
}
