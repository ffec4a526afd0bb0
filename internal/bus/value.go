package bus

import "sync"

// Value holds a piece of state and notifies observers synchronously when it
// changes. A new observer is called with the current value before Subscribe
// returns, then once per Set, in subscription order.
//
// Observers run on the goroutine that called Set and must not call Set on the
// same Value.
type Value[T any] struct {
	emit sync.Mutex // serialises deliveries so observers see sets in order

	mu   sync.Mutex
	cur  T
	obs  []observer[T]
	next int
}

type observer[T any] struct {
	id int
	fn func(T)
}

// NewValue creates a Value holding initial.
func NewValue[T any](initial T) *Value[T] {
	return &Value[T]{cur: initial}
}

// Get returns the current value.
func (v *Value[T]) Get() T {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.cur
}

// Set replaces the value and calls every observer with it.
func (v *Value[T]) Set(x T) {
	v.Update(func(T) T { return x })
}

// Update replaces the value with fn applied to the current one. No other Set
// or Update runs between the read and the write.
func (v *Value[T]) Update(fn func(T) T) {
	v.emit.Lock()
	defer v.emit.Unlock()

	v.mu.Lock()
	x := fn(v.cur)
	v.cur = x
	obs := make([]observer[T], len(v.obs))
	copy(obs, v.obs)
	v.mu.Unlock()

	for _, o := range obs {
		o.fn(x)
	}
}

// Subscribe registers fn and replays the current value to it. The returned
// function removes the observer; calling it more than once is harmless.
func (v *Value[T]) Subscribe(fn func(T)) func() {
	v.emit.Lock()
	v.mu.Lock()
	id := v.next
	v.next++
	v.obs = append(v.obs, observer[T]{id: id, fn: fn})
	cur := v.cur
	v.mu.Unlock()
	fn(cur)
	v.emit.Unlock()

	return func() {
		v.mu.Lock()
		defer v.mu.Unlock()
		for i, o := range v.obs {
			if o.id == id {
				v.obs = append(v.obs[:i:i], v.obs[i+1:]...)
				return
			}
		}
	}
}

// Observers reports how many observers are registered.
func (v *Value[T]) Observers() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.obs)
}

// Group collects unsubscribe functions so a view can release all of its
// subscriptions at once on teardown.
type Group struct {
	mu     sync.Mutex
	fns    []func()
	closed bool
}

// Add records an unsubscribe function. If the group is already closed, fn is
// called immediately.
func (g *Group) Add(fn func()) {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		fn()
		return
	}
	g.fns = append(g.fns, fn)
	g.mu.Unlock()
}

// Close calls every recorded unsubscribe function once.
func (g *Group) Close() {
	g.mu.Lock()
	fns := g.fns
	g.fns = nil
	g.closed = true
	g.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}
