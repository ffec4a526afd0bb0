package ui

import "github.com/rivo/tview"

// MenuHint describes a keyboard shortcut for the menu.
type MenuHint struct {
	Key         string
	Description string
	Numeric     bool // 0-9 shortcuts render in a different color
}

// Component is a page the app can push onto the stack.
type Component interface {
	tview.Primitive
	Name() string
	Hints() []MenuHint
}
