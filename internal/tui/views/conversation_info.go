package views

import (
	"fmt"
	"time"

	"github.com/matheus3301/tradechat/internal/directory"
	"github.com/matheus3301/tradechat/internal/tui/ui"
	"github.com/rivo/tview"
)

// ConversationInfo shows a chat's details, pins and shared content.
type ConversationInfo struct {
	*tview.TextView
	theme *ui.Theme
	now   func() time.Time
}

// NewConversationInfo creates the details view.
func NewConversationInfo(theme *ui.Theme) *ConversationInfo {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true)
	tv.SetBorder(true)
	tv.SetBorderColor(theme.BorderColor)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetTextColor(theme.FgColor)
	tv.SetTitle(" Details ")
	tv.SetTitleColor(theme.TitleColor)

	return &ConversationInfo{TextView: tv, theme: theme, now: time.Now}
}

// Name implements ui.Component.
func (ci *ConversationInfo) Name() string { return "Details" }

// Hints implements ui.Component.
func (ci *ConversationInfo) Hints() []ui.MenuHint { return nil }

// Update renders the chat, its pins and what was shared in it.
func (ci *ConversationInfo) Update(chat directory.ChatUser, pinned []directory.PinnedMessage, shared directory.Shared) {
	ci.Clear()
	ci.SetTitle(fmt.Sprintf(" %s ", tview.Escape(sanitizeForTerminal(displayName(chat)))))

	label := ui.Tag(ci.theme.FgColor)
	value := ui.Tag(ci.theme.CounterColor)
	row := func(name, v string) {
		_, _ = fmt.Fprintf(ci, " [%s::b]%-13s[-:-:-] [%s]%s[-]\n", label, name+":", value, v)
	}
	section := func(name string, n int) {
		_, _ = fmt.Fprintf(ci, "\n [%s::b]%s (%d)[-:-:-]\n", ui.Tag(ci.theme.TitleColor), name, n)
	}

	now := ci.now()
	row("ID", tview.Escape(chat.ID))
	if chat.IsGroup {
		row("Type", "Group")
		row("Members", fmt.Sprint(chat.MemberCount))
		row("Join", yesNo(chat.Settings.JoinNeedsApproval(), "needs approval", "open"))
		row("Posting", yesNo(chat.Settings.CanPost(false), "everyone", "admins only"))
		row("Invites", yesNo(chat.Settings.CanInvite(false), "everyone", "admins only"))
	} else {
		row("Type", "Direct")
		if chat.PresenceVisible() {
			presence := "offline"
			if chat.IsOnline {
				presence = "online"
			} else if !chat.LastSeen.IsZero() {
				presence = "last seen " + formatTimestamp(chat.LastSeen, now)
			}
			row("Presence", presence)
		}
	}
	row("Unread", fmt.Sprint(chat.UnreadCount))
	row("Last active", orDash(formatTimestamp(chat.LastMessageAt, now)))

	section("Pinned", len(pinned))
	for _, p := range pinned {
		_, _ = fmt.Fprintf(ci, "  %s by %s %s\n", tview.Escape(p.MessageID), tview.Escape(p.PinnedBy), formatTimestamp(p.PinnedAt, now))
	}
	section("Links", len(shared.Links))
	for _, l := range shared.Links {
		_, _ = fmt.Fprintf(ci, "  %s\n", tview.Escape(l))
	}
	section("Images", len(shared.Images))
	for _, img := range shared.Images {
		_, _ = fmt.Fprintf(ci, "  %s\n", tview.Escape(img.URL))
	}
	section("Files", len(shared.Files))
	for _, f := range shared.Files {
		_, _ = fmt.Fprintf(ci, "  %s (%s)\n", tview.Escape(sanitizeForTerminal(f.Name)), humanSize(f.Size))
	}
	ci.ScrollToBeginning()
}

func yesNo(b bool, yes, no string) string {
	if b {
		return yes
	}
	return no
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
