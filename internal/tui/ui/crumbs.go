package ui

import (
	"fmt"
	"strings"

	"github.com/rivo/tview"
)

// Crumbs shows the page stack, e.g. "Chats > Alice > Details".
type Crumbs struct {
	*tview.TextView
	theme *Theme
}

// NewCrumbs creates a breadcrumb bar.
func NewCrumbs(theme *Theme) *Crumbs {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBackgroundColor(theme.BgColor)

	return &Crumbs{
		TextView: tv,
		theme:    theme,
	}
}

// Update renders the trail. The last entry is highlighted.
func (c *Crumbs) Update(trail []string) {
	c.Clear()
	if len(trail) == 0 {
		return
	}

	active := fmt.Sprintf("[%s:%s:b]", Tag(c.theme.CrumbActiveFg), Tag(c.theme.CrumbActiveBg))
	inactive := fmt.Sprintf("[%s:%s:]", Tag(c.theme.CrumbInactiveFg), Tag(c.theme.CrumbInactiveBg))

	parts := make([]string, len(trail))
	for i, name := range trail {
		style := inactive
		if i == len(trail)-1 {
			style = active
		}
		parts[i] = style + " " + tview.Escape(name) + " [-:-:-]"
	}
	_, _ = fmt.Fprint(c, strings.Join(parts, " > "))
}
