package bot

import (
	"strings"

	tele "gopkg.in/telebot.v4"
)

const helpText = `This bot finds public groups, collects their members and invites them into your groups.

🔍 Search groups: find public groups by keywords and save the ones you pick
👥 Collect members: store the usernames of a saved group's members
📋 View groups: saved groups with their numbers
❌ Delete groups: remove saved groups with everything collected for them
➕ Add group manually: save a group by its link or @username
📨 Invite mailing: invite collected members into a group
📊 Invite status: daily usage and totals of a group
⚙️ Settings: your own parse and invite limits

/stop cancels the current prompt and your running jobs
/status shows the running jobs`

func (b *Bot) onStart(c tele.Context) error {
	b.states.Clear(c.Sender().ID)
	return c.Send("👋 Welcome!\nUse the menu to manage the bot.", mainMenu)
}

func (b *Bot) onHelp(c tele.Context) error {
	return c.Send(helpText, mainMenu)
}

// onStop leaves any prompt and stops the sender's running jobs. Admins stop
// any job.
func (b *Bot) onStop(c tele.Context) error {
	userID := c.Sender().ID
	b.states.Clear(userID)

	var stopped []string
	if cur := b.deps.Campaigns.Current(); cur != nil && (cur.UserID == userID || b.isAdmin(userID)) {
		if b.deps.Campaigns.Stop() {
			stopped = append(stopped, "invite campaign")
		}
	}
	if cur := b.deps.Scrapes.Current(); cur != nil && (cur.UserID == userID || b.isAdmin(userID)) {
		if b.deps.Scrapes.Stop() {
			stopped = append(stopped, "member collecting")
		}
	}

	if len(stopped) == 0 {
		return c.Send("Nothing to stop.", mainMenu)
	}
	return c.Send("⏹ Stopped: "+strings.Join(stopped, ", "), mainMenu)
}

func (b *Bot) onStatusCommand(c tele.Context) error {
	var parts []string
	if cur := b.deps.Campaigns.Current(); cur != nil {
		parts = append(parts, campaignProgressText(b.groupLabel(cur.GroupID), cur.Progress))
	}
	if cur := b.deps.Scrapes.Current(); cur != nil {
		parts = append(parts, "🔄 Collecting members of "+b.groupLabel(cur.GroupID)+
			"\n⏱ Running for "+formatDuration(b.since(cur.StartedAt)))
	}
	if len(parts) == 0 {
		return c.Send("💤 No jobs running.")
	}
	return c.Send(strings.Join(parts, "\n\n"))
}

// onText routes free text to the prompt the sender is answering.
func (b *Bot) onText(c tele.Context) error {
	sess := b.states.Get(c.Sender().ID)
	switch sess.State {
	case StateWaitingKeywords:
		return b.onKeywords(c)
	case StateWaitingGroupName:
		return b.onGroupName(c)
	case StateWaitingSettings:
		return b.onSettingsInput(c)
	case StateSelectingGroups, StateDeletingGroups:
		return c.Send("Use the buttons above, or /stop to cancel.")
	default:
		return c.Send("Choose an action:", mainMenu)
	}
}
