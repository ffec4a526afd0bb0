package views

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/matheus3301/tradechat/internal/directory"
	"github.com/matheus3301/tradechat/internal/message"
	"github.com/matheus3301/tradechat/internal/tui/ui"
	"github.com/rivo/tview"
)

// MessageThread shows one conversation with a composer below it. One
// message at a time is selected for pinning and reactions.
type MessageThread struct {
	*tview.Flex
	theme    *ui.Theme
	messages *tview.TextView
	composer *tview.InputField
	chat     directory.ChatUser
	self     string
	msgs     []*message.Message
	selected int
	now      func() time.Time
	onSend   func(text string)
}

// NewMessageThread creates the thread view.
func NewMessageThread(theme *ui.Theme) *MessageThread {
	messages := tview.NewTextView().
		SetDynamicColors(true).
		SetRegions(true).
		SetScrollable(true).
		SetWordWrap(true)
	messages.SetBorder(true)
	messages.SetBorderColor(theme.BorderColor)
	messages.SetBackgroundColor(theme.BgColor)
	messages.SetTextColor(theme.FgColor)
	messages.SetTitle(" Messages ")
	messages.SetTitleColor(theme.TitleColor)

	composer := tview.NewInputField().
		SetLabel(" > ").
		SetFieldWidth(0)
	composer.SetBorder(true)
	composer.SetBorderColor(theme.BorderColor)
	composer.SetBackgroundColor(theme.BgColor)
	composer.SetFieldBackgroundColor(theme.BgColor)
	composer.SetFieldTextColor(theme.FgColor)
	composer.SetLabelColor(theme.MenuKeyColor)
	composer.SetTitle(" Compose (i to focus) ")
	composer.SetTitleColor(theme.TitleColor)

	flex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(messages, 0, 1, true).
		AddItem(composer, 3, 0, false)

	mt := &MessageThread{
		Flex:     flex,
		theme:    theme,
		messages: messages,
		composer: composer,
		selected: -1,
		now:      time.Now,
	}

	composer.SetDoneFunc(func(key tcell.Key) {
		if key != tcell.KeyEnter || mt.onSend == nil || !mt.CanCompose() {
			return
		}
		if text := strings.TrimSpace(composer.GetText()); text != "" {
			mt.onSend(text)
			composer.SetText("")
		}
	})

	return mt
}

// Name implements ui.Component.
func (mt *MessageThread) Name() string {
	if mt.chat.ID == "" {
		return "Messages"
	}
	return displayName(mt.chat)
}

// Hints implements ui.Component.
func (mt *MessageThread) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "Enter", Description: "Send"},
	}
}

// SetChat switches the thread to chat. self is the local user ID.
func (mt *MessageThread) SetChat(chat directory.ChatUser, self string) {
	if chat.ID != mt.chat.ID {
		mt.selected = -1
	}
	mt.chat = chat
	mt.self = self
	title := tview.Escape(sanitizeForTerminal(displayName(chat)))
	if chat.IsGroup {
		title = fmt.Sprintf("%s · %d members", title, chat.MemberCount)
		if chat.Settings.OnlyAdminsCanPost {
			title += " · admins only"
		}
	} else if chat.PresenceVisible() {
		if chat.IsOnline {
			title += " · online"
		} else if !chat.LastSeen.IsZero() {
			title += " · last seen " + formatTimestamp(chat.LastSeen, mt.now())
		}
	}
	mt.messages.SetTitle(" " + title + " ")

	if chat.CanPost() {
		mt.composer.SetDisabled(false)
		mt.composer.SetTitle(" Compose (i to focus) ")
	} else {
		mt.composer.SetText("")
		mt.composer.SetDisabled(true)
		mt.composer.SetTitle(" Only admins can post ")
	}
}

// CanCompose reports whether the local user may send to the chat shown.
func (mt *MessageThread) CanCompose() bool {
	return mt.chat.ID != "" && mt.chat.CanPost()
}

// ChatID returns the conversation shown.
func (mt *MessageThread) ChatID() string {
	return mt.chat.ID
}

// SetOnSend sets the callback for a submitted composer line.
func (mt *MessageThread) SetOnSend(fn func(text string)) {
	mt.onSend = fn
}

// Update renders msgs, oldest first. pinned marks messages with a pin.
func (mt *MessageThread) Update(msgs []*message.Message, pinned []directory.PinnedMessage) {
	keep := mt.SelectedMessage()
	mt.msgs = msgs
	mt.selected = -1
	if keep != "" {
		mt.selected = slices.IndexFunc(msgs, func(m *message.Message) bool { return m.ID == keep })
	}

	isPinned := make(map[string]bool, len(pinned))
	for _, p := range pinned {
		isPinned[p.MessageID] = true
	}

	mt.messages.Clear()
	now := mt.now()
	for i, m := range msgs {
		sender := m.SenderID
		color := ui.Tag(mt.theme.FgColor)
		if sender == mt.self {
			sender = "You"
			color = ui.Tag(mt.theme.SelfColor)
		}
		pin := ""
		if m.IsPinned || isPinned[m.ID] {
			pin = fmt.Sprintf(" [%s]pinned[-]", ui.Tag(mt.theme.PinColor))
		}
		_, _ = fmt.Fprintf(mt.messages, "[\"%d\"][%s::b]%s[-:-:-] [::d]%s[-:-:-]%s\n%s%s[\"\"]\n\n",
			i,
			color, tview.Escape(sanitizeForTerminal(sender)),
			formatTimestamp(m.Timestamp, now), pin,
			renderPayload(m, now),
			renderReactions(m.Reactions))
	}

	if mt.selected >= 0 {
		mt.messages.Highlight(strconv.Itoa(mt.selected)).ScrollToHighlight()
	} else {
		mt.messages.Highlight()
		mt.messages.ScrollToEnd()
	}
}

// SelectNext moves the selection down; from nothing it selects the newest.
func (mt *MessageThread) SelectNext() { mt.move(1) }

// SelectPrev moves the selection up; from nothing it selects the newest.
func (mt *MessageThread) SelectPrev() { mt.move(-1) }

func (mt *MessageThread) move(step int) {
	if len(mt.msgs) == 0 {
		return
	}
	switch {
	case mt.selected < 0:
		mt.selected = len(mt.msgs) - 1
	default:
		mt.selected = min(max(mt.selected+step, 0), len(mt.msgs)-1)
	}
	mt.messages.Highlight(strconv.Itoa(mt.selected)).ScrollToHighlight()
}

// SelectedMessage returns the ID of the selected message, or "".
func (mt *MessageThread) SelectedMessage() string {
	if mt.selected < 0 || mt.selected >= len(mt.msgs) {
		return ""
	}
	return mt.msgs[mt.selected].ID
}

// HasReacted reports whether self already reacted to the selected message
// with symbol.
func (mt *MessageThread) HasReacted(symbol string) bool {
	if mt.selected < 0 || mt.selected >= len(mt.msgs) {
		return false
	}
	return mt.msgs[mt.selected].Reactions[symbol].Has(mt.self)
}

// Messages returns the message list (for focus management).
func (mt *MessageThread) Messages() *tview.TextView {
	return mt.messages
}

// Composer returns the composer input (for focus management).
func (mt *MessageThread) Composer() *tview.InputField {
	return mt.composer
}

func renderPayload(m *message.Message, now time.Time) string {
	esc := func(s string) string { return tview.Escape(sanitizeForTerminal(s)) }
	switch p := m.Payload.(type) {
	case *message.Text:
		return esc(p.Body)
	case *message.Image:
		line := fmt.Sprintf("[::u]image[::-] %s", esc(p.URL))
		if p.Caption != "" {
			line += "\n" + esc(p.Caption)
		}
		return line
	case *message.File:
		return fmt.Sprintf("[::u]file[::-] %s (%s)", esc(p.Name), humanSize(p.Size))
	case *message.Audio:
		return fmt.Sprintf("[::u]audio[::-] %s", p.Duration.Round(time.Second))
	case *message.GIF:
		return fmt.Sprintf("[::u]gif[::-] %s", esc(p.URL))
	case *message.Poll:
		var b strings.Builder
		fmt.Fprintf(&b, "[::u]poll[::-] %s", esc(p.Question))
		if p.MultipleChoice {
			b.WriteString(" (multiple choice)")
		}
		for _, o := range p.Options {
			fmt.Fprintf(&b, "\n  %s  %d", esc(o.Text), o.Votes)
		}
		return b.String()
	case *message.Appointment:
		return fmt.Sprintf("[::u]appointment[::-] %s at %s, %d accepted",
			esc(p.Title), p.At.In(now.Location()).Format("2006-01-02 15:04"), len(p.Accepted()))
	}
	return esc(m.Preview())
}

func renderReactions(r message.Reactions) string {
	if len(r) == 0 {
		return ""
	}
	parts := make([]string, 0, len(r))
	for _, s := range r.Symbols() {
		parts = append(parts, fmt.Sprintf("%s %d", tview.Escape(s), r.Count(s)))
	}
	return "\n[::d]" + strings.Join(parts, "  ") + "[::-]"
}

func humanSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
