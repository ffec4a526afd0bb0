// Package notify holds the user's notifications and their unread count.
package notify

import (
	"slices"
	"sync"
	"time"

	"github.com/matheus3301/tradechat/internal/bus"
)

// Notification points at a conversation the user should look at.
type Notification struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversationId"`
	Title          string    `json:"title"`
	Body           string    `json:"body"`
	Read           bool      `json:"read"`
	Timestamp      time.Time `json:"timestamp"`
}

// Snapshot is an immutable view of the store: entries most recent first and
// the number of unread entries among them.
type Snapshot struct {
	Items  []Notification
	Unread int
}

// Recent returns at most n entries from the head of the snapshot.
func (s Snapshot) Recent(n int) []Notification {
	if n < 0 || n >= len(s.Items) {
		return s.Items
	}
	return s.Items[:n]
}

// Store keeps notifications ordered by timestamp, newest first. Capacity is
// unbounded; display code decides how many to show.
//
// Observers are called synchronously after each change and must not mutate
// the store from inside the callback.
type Store struct {
	pub   sync.Mutex // orders mutations with their emissions
	mu    sync.Mutex
	items []Notification
	state *bus.Value[Snapshot]
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{state: bus.NewValue(Snapshot{})}
}

// Snapshot returns the current state.
func (s *Store) Snapshot() Snapshot {
	return s.state.Get()
}

// Subscribe calls fn with the current snapshot and then after every change.
func (s *Store) Subscribe(fn func(Snapshot)) func() {
	return s.state.Subscribe(fn)
}

// SubscribeNotifications streams the ordered entries.
func (s *Store) SubscribeNotifications(fn func([]Notification)) func() {
	return s.state.Subscribe(func(snap Snapshot) { fn(snap.Items) })
}

// SubscribeUnreadCount streams the number of unread entries.
func (s *Store) SubscribeUnreadCount(fn func(int)) func() {
	return s.state.Subscribe(func(snap Snapshot) { fn(snap.Unread) })
}

// Get looks up a notification by id.
func (s *Store) Get(id string) (Notification, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.index(id); i >= 0 {
		return s.items[i], true
	}
	return Notification{}, false
}

// Replace swaps the whole list, as after a full fetch.
func (s *Store) Replace(items []Notification) {
	s.pub.Lock()
	defer s.pub.Unlock()

	s.mu.Lock()
	s.items = slices.Clone(items)
	sortNewestFirst(s.items)
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.state.Set(snap)
}

// Upsert inserts a pushed notification or updates the one with the same id.
func (s *Store) Upsert(n Notification) {
	s.pub.Lock()
	defer s.pub.Unlock()

	s.mu.Lock()
	if i := s.index(n.ID); i >= 0 {
		s.items[i] = n
	} else {
		s.items = append(s.items, n)
	}
	sortNewestFirst(s.items)
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.state.Set(snap)
}

// MarkAsRead flags one notification as read. It reports false, and notifies
// nobody, when the id is unknown or already read.
func (s *Store) MarkAsRead(id string) bool {
	s.pub.Lock()
	defer s.pub.Unlock()

	s.mu.Lock()
	i := s.index(id)
	if i < 0 || s.items[i].Read {
		s.mu.Unlock()
		return false
	}
	s.items[i].Read = true
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.state.Set(snap)
	return true
}

// MarkAllAsRead flags every notification as read in one step.
func (s *Store) MarkAllAsRead() {
	s.pub.Lock()
	defer s.pub.Unlock()

	s.mu.Lock()
	for i := range s.items {
		s.items[i].Read = true
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.state.Set(snap)
}

func (s *Store) index(id string) int {
	return slices.IndexFunc(s.items, func(n Notification) bool { return n.ID == id })
}

func (s *Store) snapshotLocked() Snapshot {
	snap := Snapshot{Items: slices.Clone(s.items)}
	for _, n := range s.items {
		if !n.Read {
			snap.Unread++
		}
	}
	return snap
}

func sortNewestFirst(items []Notification) {
	slices.SortStableFunc(items, func(a, b Notification) int {
		return b.Timestamp.Compare(a.Timestamp)
	})
}
