package views

import (
	"fmt"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/matheus3301/tradechat/internal/directory"
	"github.com/matheus3301/tradechat/internal/tui/ui"
	"github.com/rivo/tview"
)

// ConversationList is the chat directory table.
type ConversationList struct {
	*tview.Table
	theme   *ui.Theme
	chats   []directory.ChatUser
	visible []directory.ChatUser
	filter  string
	now     func() time.Time
}

// NewConversationList creates the table.
func NewConversationList(theme *ui.Theme) *ConversationList {
	table := tview.NewTable().
		SetSelectable(true, false).
		SetBorders(false).
		SetFixed(1, 0)
	table.SetBorder(true)
	table.SetBorderColor(theme.BorderColor)
	table.SetBackgroundColor(theme.BgColor)
	table.SetSelectedStyle(tcell.StyleDefault.
		Foreground(theme.TableCursorFg).
		Background(theme.TableCursorBg))
	table.SetTitleColor(theme.TitleColor)

	cl := &ConversationList{
		Table: table,
		theme: theme,
		now:   time.Now,
	}
	cl.render()
	return cl
}

// Name implements ui.Component.
func (cl *ConversationList) Name() string { return "Chats" }

// Hints implements ui.Component.
func (cl *ConversationList) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "Enter", Description: "Open"},
		{Key: "1-9", Description: "Jump", Numeric: true},
	}
}

// Update replaces the directory.
func (cl *ConversationList) Update(chats []directory.ChatUser) {
	selected := cl.SelectedChat()
	cl.chats = chats
	cl.render()
	cl.Select(selected)
}

// SetFilter shows only entries whose name or last message contains filter.
func (cl *ConversationList) SetFilter(filter string) {
	cl.filter = filter
	cl.render()
}

// ClearFilter shows every entry.
func (cl *ConversationList) ClearFilter() {
	cl.SetFilter("")
}

// Filter returns the active filter.
func (cl *ConversationList) Filter() string { return cl.filter }

func (cl *ConversationList) matches(u directory.ChatUser) bool {
	if cl.filter == "" {
		return true
	}
	f := strings.ToLower(cl.filter)
	return strings.Contains(strings.ToLower(displayName(u)), f) ||
		strings.Contains(strings.ToLower(u.LastMessage), f)
}

func (cl *ConversationList) render() {
	cl.Clear()

	headers := []struct {
		text string
		exp  int
	}{
		{" NAME", 1},
		{" LAST MESSAGE", 2},
		{" UNREAD", 0},
		{" TIME", 0},
	}
	for col, h := range headers {
		cl.SetCell(0, col, tview.NewTableCell(h.text).
			SetSelectable(false).
			SetTextColor(cl.theme.TableHeaderFg).
			SetBackgroundColor(cl.theme.TableHeaderBg).
			SetAttributes(tcell.AttrBold).
			SetExpansion(h.exp))
	}

	cl.visible = cl.visible[:0]
	now := cl.now()
	for _, u := range cl.chats {
		if !cl.matches(u) {
			continue
		}
		cl.visible = append(cl.visible, u)
		row := len(cl.visible)

		color := cl.theme.FgColor
		if u.HasUnreadMessages() {
			color = cl.theme.UnreadColor
		}
		name := tview.Escape(sanitizeForTerminal(displayName(u)))
		switch {
		case u.IsGroup:
			name = fmt.Sprintf("%s (%d)", name, u.MemberCount)
		case u.PresenceVisible() && u.IsOnline:
			name = fmt.Sprintf("[%s]●[-] %s", ui.Tag(cl.theme.OnlineColor), name)
		}

		unread := ""
		if u.HasUnreadMessages() {
			unread = fmt.Sprintf("%d", u.UnreadCount)
		}

		cl.SetCell(row, 0, tview.NewTableCell(" "+name).SetExpansion(1).SetTextColor(color))
		cl.SetCell(row, 1, tview.NewTableCell(" "+tview.Escape(sanitizeForTerminal(u.LastMessage))).SetExpansion(2).SetTextColor(color))
		cl.SetCell(row, 2, tview.NewTableCell(unread).SetAlign(tview.AlignRight).SetTextColor(cl.theme.UnreadColor))
		cl.SetCell(row, 3, tview.NewTableCell(formatTimestamp(u.LastMessageAt, now)).SetAlign(tview.AlignRight).SetTextColor(cl.theme.FgColor))
	}

	if cl.filter != "" {
		cl.SetTitle(fmt.Sprintf(" Chats (%d/%d) filter: %s ", len(cl.visible), len(cl.chats), tview.Escape(cl.filter)))
	} else {
		cl.SetTitle(fmt.Sprintf(" Chats (%d) ", len(cl.chats)))
	}
}

// SelectedChat returns the ID of the highlighted entry, or "".
func (cl *ConversationList) SelectedChat() string {
	row, _ := cl.GetSelection()
	return cl.ChatByIndex(row)
}

// ChatByIndex returns the ID of the nth visible entry (1-based), or "".
func (cl *ConversationList) ChatByIndex(n int) string {
	if n < 1 || n > len(cl.visible) {
		return ""
	}
	return cl.visible[n-1].ID
}

// Select highlights the entry with id if it is visible.
func (cl *ConversationList) Select(id string) {
	for i, u := range cl.visible {
		if u.ID == id {
			cl.Table.Select(i+1, 0)
			return
		}
	}
}

func displayName(u directory.ChatUser) string {
	if u.Name != "" {
		return u.Name
	}
	return u.ID
}

// formatTimestamp shows the clock for today and the date otherwise.
func formatTimestamp(t, now time.Time) string {
	if t.IsZero() {
		return ""
	}
	t = t.In(now.Location())
	if t.Year() == now.Year() && t.YearDay() == now.YearDay() {
		return t.Format("15:04")
	}
	return t.Format("01/02")
}
