package ui

import (
	"fmt"
	"time"

	"github.com/matheus3301/tradechat/internal/rpc"
	"github.com/matheus3301/tradechat/internal/timeago"
	"github.com/rivo/tview"
)

// SessionInfo shows the daemon status block in the header.
type SessionInfo struct {
	*tview.TextView
	theme *Theme
	now   func() time.Time
}

// NewSessionInfo creates the status block.
func NewSessionInfo(theme *Theme) *SessionInfo {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetBorderPadding(0, 0, 1, 1)

	return &SessionInfo{
		TextView: tv,
		theme:    theme,
		now:      time.Now,
	}
}

// Update renders st; nil shows the block as disconnected.
func (si *SessionInfo) Update(st *rpc.StatusResponse) {
	si.Clear()

	label := Tag(si.theme.FgColor)
	value := Tag(si.theme.CounterColor)
	row := func(name, v string) {
		_, _ = fmt.Fprintf(si, "[%s::b]%-8s[-:-:-] [%s]%s[-]\n", label, name+":", value, tview.Escape(v))
	}

	if st == nil {
		row("Status", "DISCONNECTED")
		return
	}

	synced := "-"
	if !st.LastHydrate.IsZero() {
		synced = timeago.Format(st.LastHydrate, si.now())
	}

	row("Session", st.Session)
	row("API", orDash(st.APIBase))
	row("Feed", feedState(st))
	row("Chats", fmt.Sprintf("%d  unread %d", st.ChatCount, st.Unread))
	row("Uptime", formatDuration(time.Duration(st.UptimeMs)*time.Millisecond))
	row("Synced", synced)
}

func feedState(st *rpc.StatusResponse) string {
	if st.Reason == "" {
		return st.Status
	}
	return st.Status + " (" + st.Reason + ")"
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func formatDuration(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	if h > 0 {
		return fmt.Sprintf("%dh%dm", h, m)
	}
	return fmt.Sprintf("%dm", m)
}
