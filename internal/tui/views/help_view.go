package views

import (
	"fmt"
	"strings"

	"github.com/matheus3301/tradechat/internal/tui/ui"
	"github.com/rivo/tview"
)

type helpEntry struct{ key, text string }

var helpSections = []struct {
	title   string
	entries []helpEntry
}{
	{"Global", []helpEntry{
		{":", "Command mode"},
		{"b", "Notifications"},
		{"?", "Help"},
		{"Esc", "Back"},
		{"q", "Quit"},
	}},
	{"Chats", []helpEntry{
		{"Enter", "Open chat"},
		{"/", "Filter by name or last message"},
		{"0", "Clear filter"},
		{"1-9", "Open the Nth chat"},
	}},
	{"Chat", []helpEntry{
		{"i", "Focus composer"},
		{"j/k", "Select next/previous message"},
		{"p", "Pin or unpin selected message"},
		{"d", "Details, pins and shared content"},
	}},
	{"Notifications", []helpEntry{
		{"Enter", "Mark read and open its chat"},
		{"a", "Mark all read"},
	}},
	{"Commands", []helpEntry{
		{":chat <name>", "Open chat by name or ID"},
		{":react <symbol>", "Toggle a reaction on the selected message"},
		{":pin", "Pin or unpin the selected message"},
		{":bell", "Notifications"},
		{":read-all", "Mark all notifications read"},
		{":refresh", "Reload chats and notifications from the backend"},
		{":info", "Chat details"},
		{":help", "This help"},
		{":quit", "Quit"},
	}},
}

// HelpView lists the key bindings and commands.
type HelpView struct {
	*tview.TextView
}

// NewHelpView creates the help page.
func NewHelpView(theme *ui.Theme) *HelpView {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true)
	tv.SetBorder(true)
	tv.SetBorderColor(theme.BorderColor)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetTextColor(theme.FgColor)
	tv.SetTitle(" Help ")
	tv.SetTitleColor(theme.TitleColor)

	kc := ui.Tag(theme.MenuKeyColor)
	var b strings.Builder
	for _, s := range helpSections {
		fmt.Fprintf(&b, "\n  [::b]%s[-:-:-]\n\n", s.title)
		for _, e := range s.entries {
			fmt.Fprintf(&b, "  [%s]%-18s[-:-:-] %s\n", kc, tview.Escape(e.key), e.text)
		}
	}
	_, _ = fmt.Fprint(tv, b.String())

	return &HelpView{TextView: tv}
}

// Name implements ui.Component.
func (hv *HelpView) Name() string { return "Help" }

// Hints implements ui.Component.
func (hv *HelpView) Hints() []ui.MenuHint { return nil }
