package ui

import "github.com/rivo/tview"

// Pages is a stack of components on top of tview.Pages. Components are
// keyed by ID so the same view can be pushed again without re-adding it.
type Pages struct {
	*tview.Pages
	stack    []entry
	onChange func(top Component, trail []string)
}

type entry struct {
	id string
	c  Component
}

// NewPages creates an empty stack.
func NewPages() *Pages {
	return &Pages{Pages: tview.NewPages()}
}

// SetOnChange sets the callback fired after every stack change with the top
// component and the names along the stack.
func (p *Pages) SetOnChange(fn func(top Component, trail []string)) {
	p.onChange = fn
}

// Push shows c on top. Pushing the component already on top is a no-op.
func (p *Pages) Push(id string, c Component) {
	if len(p.stack) > 0 && p.stack[len(p.stack)-1].id == id {
		return
	}
	if !p.HasPage(id) {
		p.AddPage(id, c, true, false)
	}
	if len(p.stack) > 0 {
		p.HidePage(p.stack[len(p.stack)-1].id)
	}
	p.stack = append(p.stack, entry{id: id, c: c})
	p.ShowPage(id)
	p.SendToFront(id)
	p.notify()
}

// Pop removes the top component and shows the previous one. The root stays.
func (p *Pages) Pop() (Component, bool) {
	if len(p.stack) <= 1 {
		return nil, false
	}
	top := p.stack[len(p.stack)-1]
	p.HidePage(top.id)
	p.stack = p.stack[:len(p.stack)-1]
	cur := p.stack[len(p.stack)-1]
	p.ShowPage(cur.id)
	p.SendToFront(cur.id)
	p.notify()
	return top.c, true
}

// Reset clears the stack down to the root and then pushes id, unless id is
// the root itself.
func (p *Pages) Reset(id string, c Component) {
	for len(p.stack) > 1 {
		p.HidePage(p.stack[len(p.stack)-1].id)
		p.stack = p.stack[:len(p.stack)-1]
	}
	if len(p.stack) == 1 && p.stack[0].id == id {
		p.ShowPage(id)
		p.notify()
		return
	}
	p.Push(id, c)
}

// Top returns the ID and component on top of the stack.
func (p *Pages) Top() (string, Component) {
	if len(p.stack) == 0 {
		return "", nil
	}
	e := p.stack[len(p.stack)-1]
	return e.id, e.c
}

// Depth returns the stack depth.
func (p *Pages) Depth() int {
	return len(p.stack)
}

func (p *Pages) notify() {
	if p.onChange == nil {
		return
	}
	trail := make([]string, len(p.stack))
	for i, e := range p.stack {
		trail[i] = e.c.Name()
	}
	_, top := p.Top()
	p.onChange(top, trail)
}
