package bot

import (
	"fmt"
	"strconv"

	tele "gopkg.in/telebot.v4"

	"github.com/blockedby/groupinviter/internal/models"
	"github.com/blockedby/groupinviter/internal/telegram"
)

// at most this many search results are offered at once
const maxSelectable = 50

var (
	mainMenu = &tele.ReplyMarkup{ResizeKeyboard: true}

	btnSearch   = mainMenu.Text("🔍 Search groups")
	btnParse    = mainMenu.Text("👥 Collect members")
	btnView     = mainMenu.Text("📋 View groups")
	btnDelete   = mainMenu.Text("❌ Delete groups")
	btnAdd      = mainMenu.Text("➕ Add group manually")
	btnInvite   = mainMenu.Text("📨 Invite mailing")
	btnStatus   = mainMenu.Text("📊 Invite status")
	btnSettings = mainMenu.Text("⚙️ Settings")
	btnPremium  = mainMenu.Text("💎 Premium")
)

// callback endpoints; the payload travels in the button data
var (
	cbSearchToggle = &tele.Btn{Unique: "srch_toggle"}
	cbSearchAll    = &tele.Btn{Unique: "srch_all"}
	cbSearchNone   = &tele.Btn{Unique: "srch_none"}
	cbSearchSave   = &tele.Btn{Unique: "srch_save"}

	cbDeleteToggle  = &tele.Btn{Unique: "del_toggle"}
	cbDeleteAll     = &tele.Btn{Unique: "del_all"}
	cbDeleteNone    = &tele.Btn{Unique: "del_none"}
	cbDeleteConfirm = &tele.Btn{Unique: "del_confirm"}

	cbParseGroup  = &tele.Btn{Unique: "parse_group"}
	cbParseStop   = &tele.Btn{Unique: "parse_stop"}
	cbInviteGroup = &tele.Btn{Unique: "invite_group"}
	cbInviteStop  = &tele.Btn{Unique: "invite_stop"}
	cbStatusGroup = &tele.Btn{Unique: "status_group"}
)

func init() {
	mainMenu.Reply(
		mainMenu.Row(btnSearch, btnParse),
		mainMenu.Row(btnView, btnDelete),
		mainMenu.Row(btnAdd, btnInvite),
		mainMenu.Row(btnStatus, btnSettings),
		mainMenu.Row(btnPremium),
	)
}

func checkbox(on bool) string {
	if on {
		return "✅"
	}
	return "⬜️"
}

func searchKeyboard(found []telegram.Channel, selected map[int]bool) *tele.ReplyMarkup {
	m := &tele.ReplyMarkup{}
	rows := make([]tele.Row, 0, len(found)+2)
	for i, ch := range found {
		label := fmt.Sprintf("%s %s (@%s)", checkbox(selected[i]), ch.Title, ch.Username)
		if ch.ParticipantsCount > 0 {
			label += fmt.Sprintf(" | 👥 %d", ch.ParticipantsCount)
		}
		rows = append(rows, m.Row(m.Data(label, cbSearchToggle.Unique, strconv.Itoa(i))))
	}
	rows = append(rows,
		m.Row(m.Data("✅ Select all", cbSearchAll.Unique), m.Data("❌ Clear", cbSearchNone.Unique)),
		m.Row(m.Data("💾 Save selected", cbSearchSave.Unique)),
	)
	m.Inline(rows...)
	return m
}

func deleteKeyboard(groups []models.Group, selected map[int]bool) *tele.ReplyMarkup {
	m := &tele.ReplyMarkup{}
	rows := make([]tele.Row, 0, len(groups)+2)
	for i := range groups {
		label := fmt.Sprintf("%s %s", checkbox(selected[i]), groupTitle(&groups[i]))
		rows = append(rows, m.Row(m.Data(label, cbDeleteToggle.Unique, strconv.Itoa(i))))
	}
	rows = append(rows,
		m.Row(m.Data("✅ Select all", cbDeleteAll.Unique), m.Data("❌ Clear", cbDeleteNone.Unique)),
		m.Row(m.Data("🗑 Confirm deletion", cbDeleteConfirm.Unique)),
	)
	m.Inline(rows...)
	return m
}

// groupPicker lists groups as one button each, labelled by label.
func groupPicker(groups []models.Group, unique string, label func(g *models.Group) string) *tele.ReplyMarkup {
	m := &tele.ReplyMarkup{}
	rows := make([]tele.Row, 0, len(groups))
	for i := range groups {
		g := &groups[i]
		rows = append(rows, m.Row(m.Data(label(g), unique, strconv.FormatInt(g.ID, 10))))
	}
	m.Inline(rows...)
	return m
}

func stopKeyboard(unique string) *tele.ReplyMarkup {
	m := &tele.ReplyMarkup{}
	m.Inline(m.Row(m.Data("⏹ Stop", unique)))
	return m
}
