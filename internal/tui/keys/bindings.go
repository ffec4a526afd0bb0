// Package keys maps key events to actions, globally or per page.
package keys

import (
	"slices"

	"github.com/gdamore/tcell/v2"
	"github.com/matheus3301/tradechat/internal/tui/ui"
)

// Action is one key binding.
type Action struct {
	Key     tcell.Key
	Rune    rune
	Label   string // key as shown in the menu, e.g. "Enter"
	Help    string
	Handler func()
	Hidden  bool
}

// Matches reports whether ev triggers a.
func (a *Action) Matches(ev *tcell.EventKey) bool {
	if a.Key != tcell.KeyRune {
		return ev.Key() == a.Key
	}
	return ev.Key() == tcell.KeyRune && ev.Rune() == a.Rune
}

// Registry holds bindings in registration order. Page bindings shadow
// global ones.
type Registry struct {
	global []*Action
	pages  map[string][]*Action
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{pages: make(map[string][]*Action)}
}

// AddGlobal registers a binding active on every page.
func (r *Registry) AddGlobal(a *Action) {
	r.global = append(r.global, a)
}

// AddPage registers a binding for one page.
func (r *Registry) AddPage(page string, a *Action) {
	r.pages[page] = append(r.pages[page], a)
}

// Hints lists the visible bindings of page, page bindings first.
func (r *Registry) Hints(page string) []ui.MenuHint {
	var hints []ui.MenuHint
	for _, a := range slices.Concat(r.pages[page], r.global) {
		if a.Hidden {
			continue
		}
		label := a.Label
		if label == "" {
			label = string(a.Rune)
		}
		hints = append(hints, ui.MenuHint{Key: label, Description: a.Help})
	}
	return hints
}

// HandleEvent runs the first binding of page, then global, matching ev.
// It reports whether one ran.
func (r *Registry) HandleEvent(page string, ev *tcell.EventKey) bool {
	for _, a := range r.pages[page] {
		if a.Matches(ev) {
			a.Handler()
			return true
		}
	}
	for _, a := range r.global {
		if a.Matches(ev) {
			a.Handler()
			return true
		}
	}
	return false
}
