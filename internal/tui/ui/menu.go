package ui

import (
	"fmt"

	"github.com/rivo/tview"
)

// menuRows is how many hints fit in one header column.
const menuRows = 5

// Menu lists the key hints of the current view in columns.
type Menu struct {
	*tview.TextView
	theme *Theme
}

// NewMenu creates a menu.
func NewMenu(theme *Theme) *Menu {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignLeft)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetBorderPadding(0, 0, 2, 0)

	return &Menu{
		TextView: tv,
		theme:    theme,
	}
}

// Update renders hints column-first, menuRows per column.
func (m *Menu) Update(hints []MenuHint) {
	m.Clear()

	keyColor := Tag(m.theme.MenuKeyColor)
	numColor := Tag(m.theme.NumericKeyColor)

	cols := (len(hints) + menuRows - 1) / menuRows
	for row := range menuRows {
		for col := range cols {
			i := col*menuRows + row
			if i >= len(hints) {
				continue
			}
			h := hints[i]
			kc := keyColor
			if h.Numeric {
				kc = numColor
			}
			cell := fmt.Sprintf("<%s> %s", h.Key, h.Description)
			_, _ = fmt.Fprintf(m, "[%s::b]%-22s[-:-:-]", kc, tview.Escape(cell))
		}
		_, _ = fmt.Fprintln(m)
	}
}
