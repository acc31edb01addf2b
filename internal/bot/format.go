package bot

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/blockedby/groupinviter/internal/config"
	"github.com/blockedby/groupinviter/internal/inviter"
	"github.com/blockedby/groupinviter/internal/models"
	"github.com/blockedby/groupinviter/internal/scraper"
)

// telegram rejects messages above 4096 characters
const maxMessageLen = 4000

// progressBar renders current/total as a bar of the given width with a
// percentage.
func progressBar(current, total, width int) string {
	if width <= 0 {
		width = 20
	}
	ratio := 0.0
	if total > 0 {
		ratio = float64(current) / float64(total)
	}
	ratio = min(max(ratio, 0), 1)

	filled := int(float64(width) * ratio)
	return fmt.Sprintf("%s%s %.1f%%",
		strings.Repeat("█", filled),
		strings.Repeat("░", width-filled),
		ratio*100,
	)
}

// formatDuration prints d the way a person would read it: "1h 5m", "3m 20s",
// "45s".
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	if d <= 0 {
		return "0s"
	}
	h := int(d / time.Hour)
	m := int(d % time.Hour / time.Minute)
	s := int(d % time.Minute / time.Second)

	switch {
	case h > 0:
		return fmt.Sprintf("%dh %dm", h, m)
	case m > 0:
		return fmt.Sprintf("%dm %ds", m, s)
	default:
		return fmt.Sprintf("%ds", s)
	}
}

func groupTitle(g *models.Group) string {
	if g == nil {
		return "group"
	}
	if g.Username == "" {
		return g.Name
	}
	return fmt.Sprintf("%s (@%s)", g.Name, g.Username)
}

func campaignProgressText(title string, p inviter.Progress) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🔄 Inviting into %s\n", title)
	fmt.Fprintf(&b, "%s\n\n", progressBar(p.Processed, p.Total, 20))
	fmt.Fprintf(&b, "📊 Progress: %d/%d\n", p.Processed, p.Total)
	fmt.Fprintf(&b, "✅ Invited: %d\n", p.Success)
	fmt.Fprintf(&b, "👥 Already members: %d\n", p.AlreadyMember)
	fmt.Fprintf(&b, "⛔️ Declined: %d\n", p.Declined)
	fmt.Fprintf(&b, "❌ Failed: %d\n", p.Failed+p.Skipped)
	if p.FloodWait > 0 {
		fmt.Fprintf(&b, "⏸ Flood wait: %s\n", formatDuration(p.FloodWait))
	}
	if eta := p.ETA(); eta > 0 {
		fmt.Fprintf(&b, "⏳ ETA: %s\n", formatDuration(eta))
	}
	return b.String()
}

func campaignReportText(r *inviter.Report) string {
	var b strings.Builder
	switch r.Result() {
	case "aborted":
		fmt.Fprintf(&b, "⚠️ Campaign stopped: %s\n\n", r.AbortReason)
	case "canceled":
		b.WriteString("⏹ Campaign canceled\n\n")
	default:
		b.WriteString("✅ Campaign finished\n\n")
	}
	fmt.Fprintf(&b, "📱 Group: %s\n", groupTitle(r.Group))
	fmt.Fprintf(&b, "👥 Processed: %d/%d\n", r.Processed, r.Total)
	fmt.Fprintf(&b, "✅ Invited: %d\n", r.Success)
	fmt.Fprintf(&b, "👥 Already members: %d\n", r.AlreadyMember)
	fmt.Fprintf(&b, "⛔️ Declined: %d\n", r.Declined)
	fmt.Fprintf(&b, "❌ Failed: %d\n", r.Failed)
	fmt.Fprintf(&b, "🚫 Skipped: %d\n", r.Skipped)
	fmt.Fprintf(&b, "⏱ Took: %s\n", formatDuration(r.FinishedAt.Sub(r.StartedAt)))
	fmt.Fprintf(&b, "📨 Left for today: %d", r.Remaining)
	return b.String()
}

func scrapeProgressText(title string, p scraper.ScrapeProgress) string {
	return fmt.Sprintf("🔄 Collecting members of %s\n%s\n\n👥 Found: %d/%d\n📥 New: %d",
		title, progressBar(p.Found, p.Limit, 20), p.Found, p.Limit, p.Saved)
}

func scrapeResultText(title string, r *scraper.ScrapeResult) string {
	var b strings.Builder
	if r.Canceled {
		b.WriteString("⏹ Collecting canceled\n\n")
	} else {
		b.WriteString("✅ Collecting finished\n\n")
	}
	fmt.Fprintf(&b, "📱 Group: %s\n", title)
	fmt.Fprintf(&b, "👥 Members with username: %d\n", r.Found)
	fmt.Fprintf(&b, "📥 New: %d\n", r.Saved)
	fmt.Fprintf(&b, "♻️ Already known: %d\n", r.AlreadyKnown)
	fmt.Fprintf(&b, "🙈 Without username: %d\n", r.SkippedNoUsername)
	fmt.Fprintf(&b, "🤖 Bots, admins, deleted: %d\n", r.SkippedService)
	fmt.Fprintf(&b, "🗂 Total stored: %d", r.TotalInDB)
	if r.Errors > 0 {
		fmt.Fprintf(&b, "\n⚠️ Page errors: %d", r.Errors)
	}
	return b.String()
}

func groupStatusText(st *inviter.GroupStatus) string {
	s := st.Summary
	done := s.Invited + s.AlreadyMember + s.Declined + s.Failed + s.Skipped

	var b strings.Builder
	fmt.Fprintf(&b, "📊 Invite status of %s\n", groupTitle(st.Group))
	fmt.Fprintf(&b, "%s\n\n", progressBar(int(done), int(s.Contacts), 20))
	fmt.Fprintf(&b, "👥 Contacts: %d\n", s.Contacts)
	fmt.Fprintf(&b, "✅ Invited: %d\n", s.Invited)
	fmt.Fprintf(&b, "👥 Already members: %d\n", s.AlreadyMember)
	fmt.Fprintf(&b, "⛔️ Declined: %d (%d recently)\n", s.Declined, s.RecentDeclined)
	fmt.Fprintf(&b, "❌ Failed: %d\n", s.Failed)
	fmt.Fprintf(&b, "⏳ Not invited yet: %d\n", s.NotInvited)
	fmt.Fprintf(&b, "📨 Due now: %d\n\n", st.Pending)
	fmt.Fprintf(&b, "📅 Today: %d/%d\n", st.Quota.GroupToday, st.Quota.GroupLimit)
	if st.Quota.UserLimit > 0 {
		fmt.Fprintf(&b, "🙋 Your invites today: %d/%d\n", st.Quota.UserToday, st.Quota.UserLimit)
	}
	fmt.Fprintf(&b, "➡️ Remaining today: %d", st.Quota.Remaining)
	if st.Quota.Remaining > 0 && st.Pending > 0 {
		days := (st.Pending + int64(st.Quota.GroupLimit) - 1) / int64(max(st.Quota.GroupLimit, 1))
		fmt.Fprintf(&b, "\n🗓 Days to finish: %d", days)
	}
	return b.String()
}

func groupListText(groups []models.GroupStats) string {
	parts := make([]string, 0, len(groups))
	for _, g := range groups {
		parts = append(parts, fmt.Sprintf(
			"📱 %s\n🆔 ID: %d\n📥 Collected: %d\n📨 Invited: %d (today %d)\n⛔️ Declined: %d\n⏳ Pending: %d",
			groupTitle(&g.Group), g.ID, g.Contacts, g.Invited, g.InvitedToday, g.Declined, g.Pending,
		))
	}
	return "📋 Stored groups:\n\n" + strings.Join(parts, "\n\n")
}

func limitsText(title string, l config.TierLimits) string {
	return fmt.Sprintf("%s\n• groups per day: %d\n• members per group: %d\n• invites per day: %d",
		title, l.GroupsPerDay, l.UsersPerGroup, l.InvitesPerDay)
}

// splitMessage cuts text into chunks no longer than limit, preferring to
// break between paragraphs and then between lines.
func splitMessage(text string, limit int) []string {
	if len(text) <= limit {
		return []string{text}
	}

	var chunks []string
	for len(text) > limit {
		cut := strings.LastIndex(text[:limit], "\n\n")
		if cut <= 0 {
			cut = strings.LastIndex(text[:limit], "\n")
		}
		if cut <= 0 {
			cut = limit
			for cut > 0 && !utf8.RuneStart(text[cut]) {
				cut--
			}
		}
		chunks = append(chunks, strings.TrimRight(text[:cut], "\n"))
		text = strings.TrimLeft(text[cut:], "\n")
	}
	if text != "" {
		chunks = append(chunks, text)
	}
	return chunks
}
