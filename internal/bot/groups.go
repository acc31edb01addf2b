package bot

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v4"

	"github.com/blockedby/groupinviter/internal/repository"
	"github.com/blockedby/groupinviter/internal/scraper"
	"github.com/blockedby/groupinviter/internal/telegram"
)

const addGroupPrompt = `Send a link to the group in one of these formats:

✅ Accepted:
• https://t.me/group_name
• t.me/group_name
• @group_name
• group_name

❌ Not accepted:
• https://t.me/+AbCdEf123456
• https://t.me/joinchat/AbCdEf123456

⚠️ The group must be public and have a username`

func (b *Bot) onSearch(c tele.Context) error {
	b.states.Set(c.Sender().ID, Session{State: StateWaitingKeywords})
	return c.Send("🔍 Send keywords separated by commas, semicolons or new lines:")
}

func (b *Bot) onKeywords(c tele.Context) error {
	userID := c.Sender().ID
	keywords := scraper.ParseKeywords(c.Text())
	if len(keywords) == 0 {
		return c.Send("Send at least one keyword.")
	}

	_ = c.Send(fmt.Sprintf("🔄 Searching %d keyword(s)...", len(keywords)))

	// not bounded by the request timeout: every keyword waits SEARCH_DELAY
	found, err := b.deps.Groups.Search(b.ctx, keywords)
	if err != nil {
		b.states.Clear(userID)
		return b.fail(c, "Search failed", err)
	}
	if len(found) == 0 {
		b.states.Clear(userID)
		return c.Send("❌ No public groups found.", mainMenu)
	}
	if len(found) > maxSelectable {
		found = found[:maxSelectable]
	}

	sess := b.states.Update(userID, func(s *Session) {
		s.State = StateSelectingGroups
		s.Found = found
		s.SelectNone()
	})
	return c.Send(fmt.Sprintf("📋 Found %d group(s). Pick the ones to save:", len(sess.Found)),
		searchKeyboard(sess.Found, sess.Selected))
}

func (b *Bot) onSearchToggle(c tele.Context) error {
	i, err := strconv.Atoi(c.Data())
	if err != nil {
		return nil
	}
	return b.updateSearchSelection(c, func(s *Session) {
		if i >= 0 && i < len(s.Found) {
			s.Toggle(i)
		}
	})
}

func (b *Bot) onSearchAll(c tele.Context) error {
	return b.updateSearchSelection(c, func(s *Session) { s.SelectAll(len(s.Found)) })
}

func (b *Bot) onSearchNone(c tele.Context) error {
	return b.updateSearchSelection(c, func(s *Session) { s.SelectNone() })
}

func (b *Bot) updateSearchSelection(c tele.Context, fn func(*Session)) error {
	userID := c.Sender().ID
	if b.states.Get(userID).State != StateSelectingGroups {
		return c.Respond(&tele.CallbackResponse{Text: "This search has expired, start a new one."})
	}
	sess := b.states.Update(userID, fn)
	return c.Edit(fmt.Sprintf("📋 Found %d group(s). Pick the ones to save:", len(sess.Found)),
		searchKeyboard(sess.Found, sess.Selected))
}

func (b *Bot) onSearchSave(c tele.Context) error {
	userID := c.Sender().ID
	sess := b.states.Get(userID)
	if sess.State != StateSelectingGroups {
		return c.Respond(&tele.CallbackResponse{Text: "This search has expired, start a new one."})
	}
	idx := sess.SelectedIndexes()
	if len(idx) == 0 {
		return c.Respond(&tele.CallbackResponse{Text: "Select at least one group."})
	}

	chats := make([]telegram.Channel, 0, len(idx))
	for _, i := range idx {
		chats = append(chats, sess.Found[i])
	}

	ctx, cancel := b.requestContext()
	defer cancel()
	res, err := b.deps.Groups.SaveGroups(ctx, chats, userID)
	if err != nil {
		return b.fail(c, "Failed to save groups", err)
	}
	b.states.Clear(userID)

	text := fmt.Sprintf("✅ Saved: %d\n♻️ Already stored: %d", res.Added, res.Existing)
	if res.SkippedQuota > 0 {
		text += fmt.Sprintf("\n⛔️ Over today's group limit: %d", res.SkippedQuota)
	}
	return c.Edit(text)
}

func (b *Bot) onView(c tele.Context) error {
	ctx, cancel := b.requestContext()
	defer cancel()

	groups, err := b.deps.Store.ListWithStats(ctx, repository.StartOfDay(b.now()))
	if err != nil {
		return b.fail(c, "Failed to load groups", err)
	}
	if len(groups) == 0 {
		return c.Send("❌ No groups saved yet.")
	}
	return b.sendLong(c, groupListText(groups))
}

func (b *Bot) onDelete(c tele.Context) error {
	ctx, cancel := b.requestContext()
	defer cancel()

	groups, err := b.deps.Store.List(ctx)
	if err != nil {
		return b.fail(c, "Failed to load groups", err)
	}
	if len(groups) == 0 {
		return c.Send("❌ No groups saved yet.")
	}

	sess := b.states.Update(c.Sender().ID, func(s *Session) {
		s.State = StateDeletingGroups
		s.Groups = groups
		s.SelectNone()
	})
	return c.Send("📋 Pick the groups to delete:", deleteKeyboard(sess.Groups, sess.Selected))
}

func (b *Bot) onDeleteToggle(c tele.Context) error {
	i, err := strconv.Atoi(c.Data())
	if err != nil {
		return nil
	}
	return b.updateDeleteSelection(c, func(s *Session) {
		if i >= 0 && i < len(s.Groups) {
			s.Toggle(i)
		}
	})
}

func (b *Bot) onDeleteAll(c tele.Context) error {
	return b.updateDeleteSelection(c, func(s *Session) { s.SelectAll(len(s.Groups)) })
}

func (b *Bot) onDeleteNone(c tele.Context) error {
	return b.updateDeleteSelection(c, func(s *Session) { s.SelectNone() })
}

func (b *Bot) updateDeleteSelection(c tele.Context, fn func(*Session)) error {
	userID := c.Sender().ID
	if b.states.Get(userID).State != StateDeletingGroups {
		return c.Respond(&tele.CallbackResponse{Text: "This list has expired, open it again."})
	}
	sess := b.states.Update(userID, fn)
	return c.Edit("📋 Pick the groups to delete:", deleteKeyboard(sess.Groups, sess.Selected))
}

func (b *Bot) onDeleteConfirm(c tele.Context) error {
	userID := c.Sender().ID
	sess := b.states.Get(userID)
	if sess.State != StateDeletingGroups {
		return c.Respond(&tele.CallbackResponse{Text: "This list has expired, open it again."})
	}
	idx := sess.SelectedIndexes()
	if len(idx) == 0 {
		return c.Respond(&tele.CallbackResponse{Text: "Select at least one group."})
	}

	ids := make([]int64, 0, len(idx))
	for _, i := range idx {
		g := sess.Groups[i]
		if cur := b.deps.Campaigns.Current(); cur != nil && cur.GroupID == g.ID {
			return c.Respond(&tele.CallbackResponse{Text: "A campaign is running for " + g.Name + "."})
		}
		ids = append(ids, g.ID)
	}

	ctx, cancel := b.requestContext()
	defer cancel()
	n, err := b.deps.Store.Delete(ctx, ids)
	if err != nil {
		return b.fail(c, "Failed to delete groups", err)
	}
	b.states.Clear(userID)
	b.log.Info().Int64("user_id", userID).Ints64("group_ids", ids).Msg("groups deleted")

	return c.Edit(fmt.Sprintf("🗑 Deleted groups: %d", n))
}

func (b *Bot) onAdd(c tele.Context) error {
	b.states.Set(c.Sender().ID, Session{State: StateWaitingGroupName})
	return c.Send(addGroupPrompt)
}

func (b *Bot) onGroupName(c tele.Context) error {
	userID := c.Sender().ID
	b.states.Clear(userID)

	ctx, cancel := b.requestContext()
	defer cancel()

	g, created, err := b.deps.Groups.AddGroup(ctx, strings.TrimSpace(c.Text()), userID)
	switch {
	case err == nil:
	case errors.Is(err, telegram.ErrInviteLink):
		return c.Send("❌ Invite links are not supported. The group must be public and have a username.", mainMenu)
	case errors.Is(err, telegram.ErrInvalidGroupLink):
		return c.Send("❌ That does not look like a group link or username.", mainMenu)
	case errors.Is(err, scraper.ErrGroupDailyLimit):
		return c.Send("⛔️ You reached today's limit of new groups. Try again tomorrow or get 💎 Premium.", mainMenu)
	case errors.Is(err, telegram.ErrNotFound), errors.Is(err, telegram.ErrNotChannel):
		return c.Send("❌ No public group with that username.\n\nMake sure the group exists, is public and the username is right.", mainMenu)
	case errors.Is(err, telegram.ErrNotAuthorized):
		return c.Send("⚠️ The automation account is not logged in yet.", mainMenu)
	default:
		return b.fail(c, "Failed to add the group", err)
	}

	if !created {
		return c.Send(fmt.Sprintf("♻️ Already stored: %s\n🆔 ID: %d", groupTitle(g), g.ID), mainMenu)
	}
	return c.Send(fmt.Sprintf("✅ Group added!\n\n📱 Name: %s\n🔗 Username: @%s\n🆔 ID: %d", g.Name, g.Username, g.ID), mainMenu)
}
