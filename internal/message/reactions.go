package message

import (
	"maps"
	"slices"
)

// UserSet is a set of user ids.
type UserSet map[string]struct{}

// NewUserSet builds a set from ids; duplicates collapse.
func NewUserSet(ids ...string) UserSet {
	s := make(UserSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Add inserts id and reports whether it was new.
func (s UserSet) Add(id string) bool {
	if _, ok := s[id]; ok {
		return false
	}
	s[id] = struct{}{}
	return true
}

// Remove deletes id and reports whether it was present. Safe on a nil set.
func (s UserSet) Remove(id string) bool {
	if _, ok := s[id]; !ok {
		return false
	}
	delete(s, id)
	return true
}

// Has reports membership. Safe on a nil set.
func (s UserSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// Sorted returns the members in lexical order.
func (s UserSet) Sorted() []string {
	return slices.Sorted(maps.Keys(s))
}

// Clone copies the set; nil stays nil.
func (s UserSet) Clone() UserSet {
	if s == nil {
		return nil
	}
	return maps.Clone(s)
}

// Reactions maps a reaction symbol to the users who reacted with it.
type Reactions map[string]UserSet

// Add records userID reacting with symbol. Adding an existing pair is a no-op
// and returns false.
func (r Reactions) Add(symbol, userID string) bool {
	set, ok := r[symbol]
	if !ok {
		set = UserSet{}
		r[symbol] = set
	}
	return set.Add(userID)
}

// Remove withdraws a reaction and drops the symbol once nobody uses it.
func (r Reactions) Remove(symbol, userID string) bool {
	set, ok := r[symbol]
	if !ok || !set.Remove(userID) {
		return false
	}
	if len(set) == 0 {
		delete(r, symbol)
	}
	return true
}

// Count returns how many users reacted with symbol.
func (r Reactions) Count(symbol string) int {
	return len(r[symbol])
}

// Symbols returns the symbols in use, sorted.
func (r Reactions) Symbols() []string {
	return slices.Sorted(maps.Keys(r))
}

// Clone deep-copies the reactions; nil stays nil.
func (r Reactions) Clone() Reactions {
	if r == nil {
		return nil
	}
	c := make(Reactions, len(r))
	for k, v := range r {
		c[k] = v.Clone()
	}
	return c
}
