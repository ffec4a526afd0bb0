package views

import (
	"fmt"

	"github.com/gdamore/tcell/v2"
	"github.com/matheus3301/tradechat/internal/bell"
	"github.com/matheus3301/tradechat/internal/tui/ui"
	"github.com/rivo/tview"
)

// BellView is the notification dropdown: the most recent entries with
// unread ones highlighted.
type BellView struct {
	*tview.Table
	theme *ui.Theme
	items []bell.Item
}

// NewBellView creates the dropdown.
func NewBellView(theme *ui.Theme) *BellView {
	table := tview.NewTable().
		SetSelectable(true, false).
		SetBorders(false)
	table.SetBorder(true)
	table.SetBorderColor(theme.BorderFocusColor)
	table.SetBackgroundColor(theme.BgColor)
	table.SetSelectedStyle(tcell.StyleDefault.
		Foreground(theme.TableCursorFg).
		Background(theme.TableCursorBg))
	table.SetTitleColor(theme.TitleColor)

	bv := &BellView{Table: table, theme: theme}
	bv.Update(bell.View{})
	return bv
}

// Name implements ui.Component.
func (bv *BellView) Name() string { return "Notifications" }

// Hints implements ui.Component.
func (bv *BellView) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "Enter", Description: "Open"},
	}
}

// Update renders v.
func (bv *BellView) Update(v bell.View) {
	row, _ := bv.GetSelection()
	bv.items = v.Items
	bv.Clear()

	title := " Notifications "
	if v.Badge != "" {
		title = fmt.Sprintf(" Notifications [%s:%s:b] %s [-:-:-] ", ui.Tag(bv.theme.BadgeFg), ui.Tag(bv.theme.BadgeBg), v.Badge)
	}
	bv.SetTitle(title)

	if len(v.Items) == 0 {
		bv.SetCell(0, 0, tview.NewTableCell(" No notifications").
			SetSelectable(false).
			SetTextColor(bv.theme.DimColor))
		return
	}

	for i, it := range v.Items {
		color := bv.theme.DimColor
		attr := tcell.AttrNone
		marker := "  "
		if it.Unread {
			color = bv.theme.UnreadColor
			attr = tcell.AttrBold
			marker = " ●"
		}
		text := tview.Escape(sanitizeForTerminal(it.Title))
		if it.Body != "" {
			text += " · " + tview.Escape(sanitizeForTerminal(it.Body))
		}
		bv.SetCell(i, 0, tview.NewTableCell(marker).SetTextColor(color))
		bv.SetCell(i, 1, tview.NewTableCell(text).SetExpansion(1).SetTextColor(color).SetAttributes(attr))
		bv.SetCell(i, 2, tview.NewTableCell(tview.Escape(it.Age)+" ").SetAlign(tview.AlignRight).SetTextColor(bv.theme.DimColor))
	}
	bv.Select(min(max(row, 0), len(v.Items)-1), 0)
}

// Selected returns the highlighted notification ID, or "".
func (bv *BellView) Selected() string {
	row, _ := bv.GetSelection()
	if row < 0 || row >= len(bv.items) {
		return ""
	}
	return bv.items[row].ID
}
