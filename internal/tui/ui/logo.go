package ui

import (
	"fmt"

	"github.com/rivo/tview"
)

// Logo is the header's left-hand block.
type Logo struct {
	*tview.TextView
}

// NewLogo creates the logo block.
func NewLogo(theme *Theme) *Logo {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignLeft)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetBorderPadding(1, 0, 1, 0)

	title := Tag(theme.TitleColor)
	_, _ = fmt.Fprintf(tv,
		"[%s::b]╔╦╗╔═╗╦ ╦╔═╗╔╦╗[-:-:-]\n"+
			"[%s::b] ║ ║  ╠═╣╠═╣ ║ [-:-:-]\n"+
			"[%s::b] ╩ ╚═╝╩ ╩╩ ╩ ╩ [-:-:-]\n"+
			"[%s]Trade chat[-:-:-]",
		title, title, title, Tag(theme.FgColor),
	)
	return &Logo{TextView: tv}
}
