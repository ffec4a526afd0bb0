package views

import (
	"fmt"
	"time"

	"github.com/matheus3301/tradechat/internal/tui/ui"
	"github.com/rivo/tview"
)

// StatusBar is the bottom line: session, feed state, bell badge and clock.
type StatusBar struct {
	*tview.TextView
	theme   *ui.Theme
	session string
	state   string
	badge   string
	now     func() time.Time
}

// NewStatusBar creates the status bar.
func NewStatusBar(theme *ui.Theme) *StatusBar {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBackgroundColor(tview.Styles.MoreContrastBackgroundColor)

	sb := &StatusBar{TextView: tv, theme: theme, now: time.Now}
	sb.render()
	return sb
}

// SetSession updates the session name.
func (sb *StatusBar) SetSession(name string) {
	sb.session = name
	sb.render()
}

// SetState updates the feed state.
func (sb *StatusBar) SetState(state string) {
	sb.state = state
	sb.render()
}

// SetBadge updates the bell badge; "" hides it.
func (sb *StatusBar) SetBadge(badge string) {
	sb.badge = badge
	sb.render()
}

// Tick redraws the clock.
func (sb *StatusBar) Tick() {
	sb.render()
}

func (sb *StatusBar) render() {
	sb.Clear()

	state := sb.state
	if state == "" {
		state = "-"
	}
	bell := "bell"
	if sb.badge != "" {
		bell = fmt.Sprintf("bell [%s:%s:b] %s [-:-:-]", ui.Tag(sb.theme.BadgeFg), ui.Tag(sb.theme.BadgeBg), sb.badge)
	}

	_, _ = fmt.Fprintf(sb, " [::b]%s[-:-:-] | %s | %s | %s",
		tview.Escape(sb.session), tview.Escape(state), bell, sb.now().Format("15:04"))
}
